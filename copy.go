package packetio

import (
	"context"
	"io"
)

// CopyTo moves up to limit bytes from c to dst, splicing chunks instead of
// copying bytes. It stops early when c is drained and flushes dst before
// returning.
func (c *Channel) CopyTo(ctx context.Context, dst *Channel, limit int64) (int64, error) {
	if limit < 0 {
		return 0, invalidArgument("negative limit %d", limit)
	}
	var total int64
	for total < limit {
		p, err := c.takeAvailable(ctx, limit-total)
		if err != nil {
			return total, err
		}
		if p == nil {
			break
		}
		n := p.Remaining()
		if err := dst.WritePacket(ctx, p); err != nil {
			return total, err
		}
		total += n
	}
	dst.Flush()
	return total, nil
}

// takeAvailable waits for flushed bytes and detaches up to limit of them.
// It returns nil once the channel is drained.
func (c *Channel) takeAvailable(ctx context.Context, limit int64) (*Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ok, err := c.awaitLocked(ctx, 1)
	if err != nil || !ok {
		return nil, err
	}
	b := NewBuilder(c.pool)
	_ = c.readable.track(func() error {
		_, err := b.writePacketLike(c.readable.Packet, limit)
		return err
	})
	c.notFull.Signal()
	return b.Build(), nil
}

func copyBuffered(buf []byte, read func([]byte) (int, error), write func([]byte) (int, error)) (int64, error) {
	var total int64
	for {
		n, rErr := read(buf)
		if n > 0 {
			wn, wErr := write(buf[:n])
			if wn < 0 || wn > n {
				wn = 0
				if wErr == nil {
					wErr = io.ErrShortWrite
				}
			}
			total += int64(wn)
			if wErr != nil {
				return total, wErr
			}
			if wn != n {
				return total, io.ErrShortWrite
			}
		}
		if rErr != nil {
			if rErr != io.EOF {
				return total, rErr
			}
			return total, nil
		}
	}
}
