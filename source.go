package packetio

import "io"

// Source supplies bytes to a streaming Packet.
type Source interface {
	// Fill writes up to len(dst) bytes into dst and returns how many were
	// written. io.EOF signals that no more chunks can be obtained.
	Fill(dst []byte) (int, error)

	// Close releases the upstream resource.
	Close() error
}

// ReaderSource adapts an io.Reader to a Source. Close closes r when it
// implements io.Closer.
func ReaderSource(r io.Reader) Source {
	return readerSource{r}
}

type readerSource struct {
	r io.Reader
}

func (s readerSource) Fill(dst []byte) (int, error) {
	return s.r.Read(dst)
}

func (s readerSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
