package packetio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jacoelho/packetio"
	"github.com/jacoelho/packetio/internal/config"
)

func TestPoolBorrowRecycle(t *testing.T) {
	pool := packetio.NewPool(2, 16)

	c := pool.Borrow()
	assert.Equal(t, 16, c.Capacity())
	assert.Equal(t, int64(1), pool.Outstanding())

	_, _ = c.Write([]byte("dirty"))
	pool.Recycle(c)
	assert.Equal(t, int64(0), pool.Outstanding())
	assert.Equal(t, 1, pool.Idle())

	again := pool.Borrow()
	require.Same(t, c, again)
	assert.Equal(t, 0, again.ReadRemaining(), "recycled chunk must be reset")
	pool.Recycle(again)
}

func TestPoolDiscardsBeyondCapacity(t *testing.T) {
	pool := packetio.NewPool(2, 8)

	chunks := []*packetio.Chunk{pool.Borrow(), pool.Borrow(), pool.Borrow()}
	for _, c := range chunks {
		pool.Recycle(c)
	}
	assert.Equal(t, 2, pool.Idle())
	assert.Equal(t, int64(0), pool.Outstanding())
}

func TestPoolDoubleRecyclePanics(t *testing.T) {
	pool := packetio.NewPool(1, 8)

	c := pool.Borrow()
	pool.Recycle(c)
	assert.Panics(t, func() { pool.Recycle(c) })
}

func TestPoolConcurrent(t *testing.T) {
	pool := packetio.NewPool(8, 64)

	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			for i := range 1000 {
				c := pool.Borrow()
				if err := c.WriteByte(byte(i)); err != nil {
					return err
				}
				pool.Recycle(c)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(0), pool.Outstanding())
	assert.LessOrEqual(t, pool.Idle(), 8)
}

func TestPoolFromConfig(t *testing.T) {
	pool := packetio.NewPoolFromConfig(config.PoolConfig{Capacity: 4, ChunkSize: 128})
	assert.Equal(t, 128, pool.ChunkSize())

	fallback := packetio.NewPool(-1, 0)
	assert.Equal(t, packetio.DefaultChunkSize, fallback.ChunkSize())
	fallback.Recycle(fallback.Borrow())
	assert.Equal(t, 0, fallback.Idle())
}
