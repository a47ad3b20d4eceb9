package packetio

import (
	"context"
	"io"
	"math"
)

func (c *Channel) WriteUint8(ctx context.Context, v byte) error {
	return c.writeScalar(ctx, 1, func(b *Builder) { _ = b.WriteByte(v) })
}

func (c *Channel) WriteInt16(ctx context.Context, v int16) error {
	return c.writeScalar(ctx, 2, func(b *Builder) { b.WriteUint16(uint16(v)) })
}

func (c *Channel) WriteInt32(ctx context.Context, v int32) error {
	return c.writeScalar(ctx, 4, func(b *Builder) { b.WriteUint32(uint32(v)) })
}

func (c *Channel) WriteInt64(ctx context.Context, v int64) error {
	return c.writeScalar(ctx, 8, func(b *Builder) { b.WriteUint64(uint64(v)) })
}

func (c *Channel) WriteFloat32(ctx context.Context, v float32) error {
	return c.writeScalar(ctx, 4, func(b *Builder) { b.WriteUint32(math.Float32bits(v)) })
}

func (c *Channel) WriteFloat64(ctx context.Context, v float64) error {
	return c.writeScalar(ctx, 8, func(b *Builder) { b.WriteUint64(math.Float64bits(v)) })
}

func (c *Channel) writeScalar(ctx context.Context, size int, write func(*Builder)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.closedErr()
	}
	write(c.writable)
	return c.afterWriteLocked(ctx, size)
}

// WriteFully writes all of p, blocking while the channel is full.
func (c *Channel) WriteFully(ctx context.Context, p []byte) error {
	_, err := c.writeFully(ctx, p)
	return err
}

// WriteString writes all of s, blocking while the channel is full.
func (c *Channel) WriteString(ctx context.Context, s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(s) > 0 {
		if c.closed {
			return c.closedErr()
		}
		k := c.nextWriteLocked(len(s))
		_, _ = c.writable.WriteString(s[:k])
		s = s[k:]
		if err := c.afterWriteLocked(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (c *Channel) writeFully(ctx context.Context, p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	for len(p) > 0 {
		if c.closed {
			return n, c.closedErr()
		}
		k := c.nextWriteLocked(len(p))
		_, _ = c.writable.Write(p[:k])
		p = p[k:]
		n += k
		if err := c.afterWriteLocked(ctx, k); err != nil {
			return n, err
		}
	}
	return n, nil
}

// nextWriteLocked sizes the next piece of a large write so the writer waits
// for room between pieces.
func (c *Channel) nextWriteLocked(n int) int {
	return int(min(int64(n), max(c.availableForWriteLocked(), int64(c.pool.ChunkSize()))))
}

// WriteAvailable writes as much of p as currently fits, at least one byte,
// and returns the count.
func (c *Channel) WriteAvailable(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, c.closedErr()
	}
	k := int(min(int64(len(p)), max(c.availableForWriteLocked(), 1)))
	_, _ = c.writable.Write(p[:k])
	return k, c.afterWriteLocked(ctx, k)
}

// WritePacket moves every byte of p into the channel and releases p.
func (c *Channel) WritePacket(ctx context.Context, p *Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		p.Release()
		return c.closedErr()
	}
	before := c.writable.Size()
	err := c.writable.WritePacket(p)
	if n := c.writable.Size() - before; n > 0 {
		if werr := c.afterWriteLocked(ctx, int(n)); err == nil {
			err = werr
		}
	}
	return err
}

// Write implements io.Writer.
func (c *Channel) Write(p []byte) (int, error) {
	return c.writeFully(context.Background(), p)
}

// ReadFrom implements io.ReaderFrom by copying r into the channel until
// io.EOF. The channel is flushed before returning.
func (c *Channel) ReadFrom(r io.Reader) (int64, error) {
	scratch := c.pool.Borrow()
	defer c.pool.Recycle(scratch)
	n, err := copyBuffered(scratch.buf, r.Read, c.Write)
	c.Flush()
	return n, err
}

// afterWriteLocked accounts for n written bytes, flushes when auto-flush is
// on or the staging area is full, then waits until the channel is not full.
// Waiting flushes first so the reader can make room.
func (c *Channel) afterWriteLocked(ctx context.Context, n int) error {
	c.written.Add(int64(n))
	if c.autoFlush || c.availableForWriteLocked() == 0 {
		c.flushLocked()
	}
	return c.notFull.Await(ctx, c.flushLocked)
}
