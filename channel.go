package packetio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/containerd/log"

	"github.com/jacoelho/packetio/internal/config"
)

// DefaultChannelCapacity bounds the bytes a channel buffers between writer
// and reader.
const DefaultChannelCapacity = 4088

var (
	_ io.Reader     = (*Channel)(nil)
	_ io.WriterTo   = (*Channel)(nil)
	_ io.Writer     = (*Channel)(nil)
	_ io.ReaderFrom = (*Channel)(nil)
	_ io.Closer     = (*Channel)(nil)
)

// Channel is a single-producer single-consumer byte stream. Writes are staged
// in a Builder and become visible to the reader when flushed; reads drain
// the flushed chunks. Writers block while more than the channel capacity is
// pending and readers block until enough bytes are flushed.
//
// One goroutine may write and another read concurrently. Concurrent writers
// or concurrent readers are not supported.
type Channel struct {
	mu sync.Mutex

	writable *Builder
	readable *pipe
	pool     *Pool

	capacity  int64
	autoFlush bool

	closed bool
	cause  error

	// notFull gates writers, atLeast gates readers on waitingFor bytes.
	notFull    *Condition
	atLeast    *Condition
	waitingFor int64

	// lookahead is set while a Request slice is handed out.
	lookahead bool
	scope     *scope

	written atomic.Int64
}

type scope struct {
	cancel context.CancelCauseFunc
	stop   func() bool
}

// Option configures a Channel.
type Option func(*options)

type options struct {
	pool       *Pool
	capacity   int
	initial    *Chunk
	readOrder  binary.ByteOrder
	writeOrder binary.ByteOrder
}

// WithPool sets the pool chunks are borrowed from.
func WithPool(p *Pool) Option {
	return func(o *options) { o.pool = p }
}

// WithCapacity sets the number of pending bytes above which writers block.
// Non-positive values keep the default.
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// WithInitialChunk makes the unread bytes of c readable from the start. The
// channel takes ownership of c.
func WithInitialChunk(c *Chunk) Option {
	return func(o *options) { o.initial = c }
}

func WithReadByteOrder(order binary.ByteOrder) Option {
	return func(o *options) { o.readOrder = order }
}

func WithWriteByteOrder(order binary.ByteOrder) Option {
	return func(o *options) { o.writeOrder = order }
}

// NewChannel returns an open channel. With autoFlush every write is made
// visible to the reader immediately.
func NewChannel(autoFlush bool, opts ...Option) *Channel {
	o := options{
		pool:       DefaultPool,
		capacity:   DefaultChannelCapacity,
		readOrder:  binary.BigEndian,
		writeOrder: binary.BigEndian,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.pool == nil {
		o.pool = DefaultPool
	}
	if o.capacity <= 0 {
		o.capacity = DefaultChannelCapacity
	}

	c := &Channel{
		writable:  NewBuilder(o.pool),
		readable:  newPipe(o.pool),
		pool:      o.pool,
		capacity:  int64(o.capacity),
		autoFlush: autoFlush,
	}
	c.writable.SetByteOrder(o.writeOrder)
	c.readable.SetByteOrder(o.readOrder)
	c.notFull = NewCondition(&c.mu, c.notFullLocked)
	c.atLeast = NewCondition(&c.mu, c.atLeastLocked)
	if o.initial != nil {
		c.written.Add(chainSize(o.initial))
		c.readable.appendChain(o.initial)
	}
	return c
}

// NewChannelFromConfig returns a channel configured by cfg.
func NewChannelFromConfig(cfg config.ChannelConfig, pool *Pool) *Channel {
	return NewChannel(cfg.AutoFlush,
		WithPool(pool),
		WithCapacity(cfg.Capacity),
		WithReadByteOrder(cfg.Order()),
		WithWriteByteOrder(cfg.Order()),
	)
}

// NewChannelFromBytes returns a closed channel whose reader drains a copy
// of b.
func NewChannelFromBytes(b []byte, opts ...Option) *Channel {
	c := NewChannel(false, opts...)
	_, _ = c.writable.Write(b)
	c.written.Add(int64(len(b)))
	c.readable.appendBuilder(c.writable)
	c.closed = true
	return c
}

func (c *Channel) notFullLocked() bool {
	return c.closed || c.pendingLocked() <= c.capacity || c.waitingFor > c.readable.Remaining()
}

func (c *Channel) atLeastLocked() bool {
	return c.closed || c.readable.Remaining() >= c.waitingFor
}

func (c *Channel) pendingLocked() int64 {
	return c.readable.Remaining() + c.writable.Size()
}

// AvailableForRead returns the number of flushed bytes ready to be read.
func (c *Channel) AvailableForRead() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readable.Remaining()
}

// AvailableForWrite returns how many bytes can be written before writers
// block.
func (c *Channel) AvailableForWrite() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.availableForWriteLocked()
}

func (c *Channel) availableForWriteLocked() int64 {
	return max(0, c.capacity-c.pendingLocked())
}

// IsClosedForRead reports whether no more bytes can ever be read.
func (c *Channel) IsClosedForRead() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed && (c.cause != nil || c.readable.Remaining() == 0)
}

// IsClosedForWrite reports whether the channel was closed.
func (c *Channel) IsClosedForWrite() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ClosedCause returns the error the channel was closed with, if any.
func (c *Channel) ClosedCause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cause
}

func (c *Channel) AutoFlush() bool { return c.autoFlush }

// TotalBytesRead returns the number of bytes consumed by the reader.
func (c *Channel) TotalBytesRead() int64 {
	return c.readable.bytesRead.Load()
}

// TotalBytesWritten returns the number of bytes accepted by writes.
func (c *Channel) TotalBytesWritten() int64 {
	return c.written.Load()
}

// Stats is a point-in-time view of channel progress.
type Stats struct {
	// Written counts bytes accepted by writes.
	Written int64
	// Flushed counts bytes made visible to the reader.
	Flushed int64
	Read    int64
}

// Unread returns the flushed bytes not read yet.
func (s Stats) Unread() int64 { return s.Flushed - s.Read }

// Stats returns the progress counters without taking the channel lock.
func (c *Channel) Stats() Stats {
	flushed, read := c.readable.snapshot()
	return Stats{Written: c.written.Load(), Flushed: flushed, Read: read}
}

func (c *Channel) ReadByteOrder() binary.ByteOrder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readable.ByteOrder()
}

// SetReadByteOrder changes the order of subsequent reads, including bytes
// already flushed.
func (c *Channel) SetReadByteOrder(order binary.ByteOrder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readable.SetByteOrder(order)
}

func (c *Channel) WriteByteOrder() binary.ByteOrder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writable.ByteOrder()
}

func (c *Channel) SetWriteByteOrder(order binary.ByteOrder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writable.SetByteOrder(order)
}

// Flush makes every written byte visible to the reader.
func (c *Channel) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

func (c *Channel) flushLocked() {
	if c.writable.Size() == 0 {
		return
	}
	c.readable.appendBuilder(c.writable)
	c.atLeast.Signal()
}

// Close flushes pending writes and closes the channel. The reader drains
// what was written before observing end of input. Closing twice returns
// ErrClosedChannel.
func (c *Channel) Close() error {
	if !c.CloseWithError(nil) {
		return ErrClosedChannel
	}
	return nil
}

// CloseWithError closes the channel. A nil cause closes gracefully. A
// non-nil cause releases every buffered byte and fails all pending and
// future operations with cause. It reports false if the channel was
// already closed.
func (c *Channel) CloseWithError(cause error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked(cause)
}

// Cancel closes the channel with cause, or context.Canceled if cause is nil.
func (c *Channel) Cancel(cause error) bool {
	if cause == nil {
		cause = context.Canceled
	}
	return c.CloseWithError(cause)
}

func (c *Channel) closeLocked(cause error) bool {
	if c.closed {
		return false
	}
	c.closed = true
	c.cause = cause
	if cause == nil {
		c.flushLocked()
		c.notFull.Signal()
		c.atLeast.Signal()
	} else {
		log.L.WithError(cause).Debug("channel closed with cause")
		c.writable.Release()
		if !c.lookahead {
			c.readable.release()
		}
		c.notFull.Cancel(cause)
		c.atLeast.Cancel(cause)
	}
	c.detachLocked(ErrClosedChannel)
	return true
}

// closedErr returns the error for operations that cannot proceed on a
// closed channel.
func (c *Channel) closedErr() error {
	if c.cause != nil {
		return c.cause
	}
	return ErrClosedChannel
}

// AttachContext binds the channel to a scope derived from parent. When the
// scope ends the channel is closed with its cause; when the channel closes
// the scope is cancelled. Attaching while another scope is attached cancels
// the stale scope, replaces it and returns an error wrapping ErrStaleScope.
func (c *Channel) AttachContext(parent context.Context) (context.Context, error) {
	ctx, cancel := context.WithCancelCause(parent)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		cancel(c.closedErr())
		return ctx, c.closedErr()
	}

	var err error
	if c.scope != nil {
		log.G(parent).WithError(ErrStaleScope).Error("channel attached to a second scope")
		c.detachLocked(ErrStaleScope)
		err = fmt.Errorf("attach channel: %w", ErrStaleScope)
	}

	s := &scope{cancel: cancel}
	s.stop = context.AfterFunc(ctx, func() {
		c.scopeDone(s, context.Cause(ctx))
	})
	c.scope = s
	log.G(parent).Debug("channel attached to scope")
	return ctx, err
}

func (c *Channel) scopeDone(s *scope, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scope != s {
		return
	}
	c.scope = nil
	log.L.WithError(cause).Debug("channel scope finished")
	c.closeLocked(cause)
}

// detachLocked stops watching the attached scope and cancels it with cause.
func (c *Channel) detachLocked(cause error) {
	s := c.scope
	if s == nil {
		return
	}
	c.scope = nil
	s.stop()
	s.cancel(cause)
}
