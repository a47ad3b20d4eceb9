package packetio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestPipeCounters(t *testing.T) {
	pool := NewPool(8, 4)
	p := newPipe(pool)

	b := NewBuilder(pool)
	_, _ = b.WriteString("0123456789")
	p.appendBuilder(b)
	assert.Equal(t, int64(0), b.Size())

	appended, read := p.snapshot()
	assert.Equal(t, int64(10), appended)
	assert.Equal(t, int64(0), read)

	buf := make([]byte, 6)
	require.NoError(t, p.track(func() error { return p.ReadFully(buf) }))
	assert.Equal(t, "012345", string(buf))

	err := p.track(func() error { return p.ReadFully(make([]byte, 8)) })
	require.ErrorIs(t, err, ErrEndOfInput)

	appended, read = p.snapshot()
	assert.Equal(t, int64(10), appended)
	assert.Equal(t, int64(6), read)

	p.release()
	assert.Equal(t, int64(0), pool.Outstanding())
}

func TestPipeSnapshotConcurrent(t *testing.T) {
	p := newPipe(NewPool(0, 8))

	var g errgroup.Group
	g.Go(func() error {
		for range 1000 {
			c := NewChunk(1)
			_ = c.WriteByte(1)
			p.appendChain(c)
			_ = p.track(func() error {
				_, err := p.ReadByte()
				return err
			})
		}
		return nil
	})
	g.Go(func() error {
		var lastAppended, lastRead int64
		for range 1000 {
			appended, read := p.snapshot()
			assert.GreaterOrEqual(t, appended, lastAppended)
			assert.GreaterOrEqual(t, read, lastRead)
			lastAppended, lastRead = appended, read
		}
		return nil
	})
	require.NoError(t, g.Wait())

	appended, read := p.snapshot()
	assert.Equal(t, int64(1000), appended)
	assert.Equal(t, int64(1000), read)
}

func TestDuplicateRefcount(t *testing.T) {
	pool := NewPool(4, 8)
	c := pool.Borrow()
	_, _ = c.Write([]byte("abc"))

	d := c.duplicate()
	dd := d.duplicate()
	assert.Same(t, c, dd.origin, "views share the original owner")
	assert.False(t, c.exclusive())
	assert.Equal(t, int32(3), c.refs.Load())

	c.release()
	d.release()
	assert.Equal(t, int64(1), pool.Outstanding())
	dd.release()
	assert.Equal(t, int64(0), pool.Outstanding())
}
