package packetio

import (
	"context"
	"io"
)

func (c *Channel) ReadUint8(ctx context.Context) (byte, error) {
	return readScalar(ctx, c, 1, (*Packet).ReadByte)
}

func (c *Channel) ReadInt16(ctx context.Context) (int16, error) {
	return readScalar(ctx, c, 2, (*Packet).ReadInt16)
}

func (c *Channel) ReadInt32(ctx context.Context) (int32, error) {
	return readScalar(ctx, c, 4, (*Packet).ReadInt32)
}

func (c *Channel) ReadInt64(ctx context.Context) (int64, error) {
	return readScalar(ctx, c, 8, (*Packet).ReadInt64)
}

func (c *Channel) ReadFloat32(ctx context.Context) (float32, error) {
	return readScalar(ctx, c, 4, (*Packet).ReadFloat32)
}

func (c *Channel) ReadFloat64(ctx context.Context) (float64, error) {
	return readScalar(ctx, c, 8, (*Packet).ReadFloat64)
}

// readScalar waits until size bytes are flushed and decodes them with read.
func readScalar[T any](ctx context.Context, c *Channel, size int64, read func(*Packet) (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var v T
	if err := c.awaitBytesLocked(ctx, size); err != nil {
		return v, err
	}
	err := c.readable.track(func() (err error) {
		v, err = read(c.readable.Packet)
		return err
	})
	c.notFull.Signal()
	return v, err
}

// ReadAvailable copies up to len(dst) flushed bytes, waiting only when none
// are flushed. It returns io.EOF once a gracefully closed channel is
// drained.
func (c *Channel) ReadAvailable(ctx context.Context, dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ok, err := c.awaitLocked(ctx, 1)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, io.EOF
	}
	var n int
	_ = c.readable.track(func() (err error) {
		n, err = c.readable.ReadAvailable(dst)
		return err
	})
	c.notFull.Signal()
	return n, nil
}

// ReadFully fills dst, failing with ErrEndOfInput if the channel closes
// first.
func (c *Channel) ReadFully(ctx context.Context, dst []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	want := len(dst)
	for len(dst) > 0 {
		ok, err := c.awaitLocked(ctx, 1)
		if err != nil {
			return err
		}
		if !ok {
			return endOfInput(int64(want), int64(want-len(dst)))
		}
		var n int
		_ = c.readable.track(func() (err error) {
			n, err = c.readable.ReadAvailable(dst)
			return err
		})
		dst = dst[n:]
		c.notFull.Signal()
	}
	return nil
}

// ReadPacket reads exactly n bytes into a new packet, splicing whole chunks.
func (c *Channel) ReadPacket(ctx context.Context, n int64) (*Packet, error) {
	if n < 0 {
		return nil, invalidArgument("negative packet size %d", n)
	}
	b, err := c.readInto(ctx, n)
	if err != nil {
		b.Release()
		return nil, err
	}
	if got := b.Size(); got < n {
		b.Release()
		return nil, endOfInput(n, got)
	}
	return b.Build(), nil
}

// ReadRemaining reads until the channel is drained or limit bytes were read.
func (c *Channel) ReadRemaining(ctx context.Context, limit int64) (*Packet, error) {
	if limit < 0 {
		return nil, invalidArgument("negative limit %d", limit)
	}
	b, err := c.readInto(ctx, limit)
	if err != nil {
		b.Release()
		return nil, err
	}
	return b.Build(), nil
}

func (c *Channel) readInto(ctx context.Context, limit int64) (*Builder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := NewBuilder(c.pool)
	b.SetByteOrder(c.readable.ByteOrder())
	for b.Size() < limit {
		ok, err := c.awaitLocked(ctx, 1)
		if err != nil {
			return b, err
		}
		if !ok {
			break
		}
		_ = c.readable.track(func() error {
			_, err := b.writePacketLike(c.readable.Packet, limit-b.Size())
			return err
		})
		c.notFull.Signal()
	}
	return b, nil
}

// Discard drops up to limit bytes, waiting for more until limit are dropped
// or the channel is drained.
func (c *Channel) Discard(ctx context.Context, limit int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var dropped int64
	for dropped < limit {
		ok, err := c.awaitLocked(ctx, 1)
		if err != nil {
			return dropped, err
		}
		if !ok {
			break
		}
		_ = c.readable.track(func() error {
			dropped += c.readable.Discard(limit - dropped)
			return nil
		})
		c.notFull.Signal()
	}
	return dropped, nil
}

// AwaitContent waits until at least one byte is flushed. It reports false
// once a gracefully closed channel is drained.
func (c *Channel) AwaitContent(ctx context.Context) (bool, error) {
	return c.AwaitAtLeast(ctx, 1)
}

// AwaitAtLeast waits until n bytes are flushed. It reports false if the
// channel closes with fewer. n may not exceed the channel capacity.
func (c *Channel) AwaitAtLeast(ctx context.Context, n int64) (bool, error) {
	if n > c.capacity {
		return false, invalidArgument("cannot await %d bytes, capacity is %d", n, c.capacity)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaitLocked(ctx, n)
}

// ReadUTF8Line reads the next line, up to limit bytes without its
// terminator. It waits while only a partial line is flushed and reports
// false at a clean end of input.
func (c *Channel) ReadUTF8Line(ctx context.Context, limit int) (string, bool, error) {
	if limit < 0 {
		return "", false, invalidArgument("negative line limit %d", limit)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var scanned int64
	for {
		if c.cause != nil {
			return "", false, c.cause
		}
		idx, err := c.readable.scanLine(scanned, limit)
		if err != nil {
			return "", false, err
		}
		if idx >= 0 {
			var (
				line string
				ok   bool
			)
			err := c.readable.track(func() (err error) {
				line, ok, err = c.readable.consumeLine(idx)
				return err
			})
			c.notFull.Signal()
			return line, ok, err
		}

		scanned = c.readable.Remaining()
		ok, err := c.awaitLocked(ctx, scanned+1)
		if err != nil {
			return "", false, err
		}
		if !ok {
			if scanned == 0 {
				return "", false, nil
			}
			return "", false, endOfInput(scanned+1, scanned)
		}
	}
}

// Read implements io.Reader.
func (c *Channel) Read(p []byte) (int, error) {
	return c.ReadAvailable(context.Background(), p)
}

// WriteTo implements io.WriterTo by draining the channel into w until it is
// closed.
func (c *Channel) WriteTo(w io.Writer) (int64, error) {
	scratch := c.pool.Borrow()
	defer c.pool.Recycle(scratch)
	return copyBuffered(scratch.buf, c.Read, w.Write)
}

// Request returns the unread bytes of the head chunk if it holds at least
// atLeast of them, or nil. The slice stays valid until Consumed, which must
// be called next.
func (c *Channel) Request(atLeast int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cause != nil || c.lookahead {
		return nil
	}
	c.readable.dropEmptyHead()
	h := c.readable.head
	if h == nil || c.readable.headRemaining < max(atLeast, 1) {
		return nil
	}
	c.lookahead = true
	return h.buf[h.r:h.w]
}

// Consumed reports that n bytes of the slice returned by Request were read.
func (c *Channel) Consumed(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lookahead {
		return invalidArgument("consumed without a pending request")
	}
	c.lookahead = false
	if c.cause != nil {
		c.readable.release()
		return c.cause
	}
	if n < 0 || n > c.readable.headRemaining {
		return invalidArgument("consumed %d bytes, %d were requested", n, c.readable.headRemaining)
	}
	_ = c.readable.track(func() error {
		c.readable.head.r += n
		c.readable.headRemaining -= n
		return nil
	})
	c.notFull.Signal()
	return nil
}

// awaitBytesLocked waits until n bytes are flushed, failing with
// ErrEndOfInput if the channel closes with fewer.
func (c *Channel) awaitBytesLocked(ctx context.Context, n int64) error {
	ok, err := c.awaitLocked(ctx, n)
	if err != nil {
		return err
	}
	if !ok {
		return endOfInput(n, c.readable.Remaining())
	}
	return nil
}

// awaitLocked waits until n bytes are flushed or the channel closes. It
// reports whether n bytes are available. A writer blocked on capacity is let
// through while the reader needs more than is flushed.
func (c *Channel) awaitLocked(ctx context.Context, n int64) (bool, error) {
	if c.cause != nil {
		return false, c.cause
	}
	if c.readable.Remaining() >= n {
		return true, nil
	}
	c.waitingFor = n
	c.notFull.Signal()
	err := c.atLeast.Await(ctx, nil)
	c.waitingFor = 0
	if err != nil {
		return false, err
	}
	if c.cause != nil {
		return false, c.cause
	}
	return c.readable.Remaining() >= n, nil
}
