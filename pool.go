package packetio

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/jacoelho/packetio/internal/config"
)

const (
	// DefaultChunkSize is the capacity of chunks handed out by DefaultPool.
	DefaultChunkSize = 4096

	// DefaultPoolCapacity is the number of idle chunks DefaultPool retains.
	DefaultPoolCapacity = 1000
)

// DefaultPool is shared by packets, builders and channels created without an
// explicit pool.
var DefaultPool = NewPool(DefaultPoolCapacity, DefaultChunkSize)

// Pool is a bounded recycler of fixed-capacity chunks. Idle chunks are kept
// in a buffered channel; once it is full, recycled chunks are left to the
// garbage collector. A Pool is safe for concurrent use.
type Pool struct {
	chunks    chan *Chunk
	chunkSize int

	outstanding atomic.Int64
}

// NewPool returns a pool retaining up to capacity idle chunks of chunkSize
// bytes each. A zero capacity pool never retains chunks.
func NewPool(capacity, chunkSize int) *Pool {
	if capacity < 0 {
		capacity = 0
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Pool{
		chunks:    make(chan *Chunk, capacity),
		chunkSize: chunkSize,
	}
}

// NewPoolFromConfig builds a pool from the pool section of a configuration.
func NewPoolFromConfig(cfg config.PoolConfig) *Pool {
	return NewPool(cfg.Capacity, cfg.ChunkSize)
}

// ChunkSize returns the capacity of every chunk handed out by the pool.
func (p *Pool) ChunkSize() int { return p.chunkSize }

// Outstanding returns the number of chunks borrowed and not yet recycled.
func (p *Pool) Outstanding() int64 { return p.outstanding.Load() }

// Idle returns the number of chunks currently retained by the pool.
func (p *Pool) Idle() int { return len(p.chunks) }

// Borrow returns an empty chunk, reusing an idle one when available.
func (p *Pool) Borrow() *Chunk {
	var c *Chunk
	select {
	case c = <-p.chunks:
	default:
		c = &Chunk{buf: make([]byte, p.chunkSize), pool: p}
		chunksAllocated.Inc()
	}
	c.order = binary.BigEndian
	c.refs.Store(1)
	p.outstanding.Add(1)
	chunksBorrowed.Inc()
	chunksOutstanding.Inc()
	return c
}

// Recycle gives a chunk back. Chunks shared with a packet copy return to the
// pool once their last view is recycled.
func (p *Pool) Recycle(c *Chunk) {
	if c == nil {
		return
	}
	c.release()
}

// put is reached when the last reference to a chunk owned by p is dropped.
func (p *Pool) put(c *Chunk) {
	c.Reset()
	p.outstanding.Add(-1)
	chunksOutstanding.Dec()
	select {
	case p.chunks <- c:
		chunksRecycled.Inc()
	default:
		chunksDiscarded.Inc()
	}
}
