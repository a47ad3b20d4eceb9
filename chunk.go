package packetio

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// Chunk is a fixed-capacity byte buffer with read and write cursors. Chunks
// are linked into chains owned by exactly one Packet, Builder or channel at a
// time and go back to their Pool once released.
type Chunk struct {
	buf  []byte
	r, w int

	next  *Chunk
	pool  *Pool
	order binary.ByteOrder

	// origin is the chunk owning buf when this chunk is a duplicate view.
	origin *Chunk
	// refs counts the live views of buf, the origin included.
	refs atomic.Int32
}

// NewChunk allocates an unpooled chunk of the given capacity.
func NewChunk(capacity int) *Chunk {
	c := &Chunk{buf: make([]byte, capacity), order: binary.BigEndian}
	c.refs.Store(1)
	return c
}

// Capacity returns the fixed size of the chunk.
func (c *Chunk) Capacity() int { return len(c.buf) }

// ReadRemaining returns the number of unread bytes.
func (c *Chunk) ReadRemaining() int { return c.w - c.r }

// WriteRemaining returns the number of bytes that can still be written.
func (c *Chunk) WriteRemaining() int { return len(c.buf) - c.w }

// Bytes returns the unread bytes. The slice aliases the chunk memory.
func (c *Chunk) Bytes() []byte { return c.buf[c.r:c.w] }

// ByteOrder returns the order used by multi-byte reads and writes.
func (c *Chunk) ByteOrder() binary.ByteOrder { return c.order }

// SetByteOrder changes the order used by subsequent multi-byte operations.
func (c *Chunk) SetByteOrder(order binary.ByteOrder) { c.order = order }

// Reset rewinds both cursors and detaches the chunk from any chain.
func (c *Chunk) Reset() {
	c.r, c.w = 0, 0
	c.next = nil
	c.order = binary.BigEndian
}

// TryPeek returns the next unread byte without consuming it, or -1.
func (c *Chunk) TryPeek() int {
	if c.r == c.w {
		return -1
	}
	return int(c.buf[c.r])
}

// ReadByte consumes one byte; an empty chunk reports ErrEndOfInput.
func (c *Chunk) ReadByte() (byte, error) {
	if c.r == c.w {
		return 0, endOfInput(1, 0)
	}
	b := c.buf[c.r]
	c.r++
	return b, nil
}

// WriteByte appends one byte or returns ErrNoSpace.
func (c *Chunk) WriteByte(b byte) error {
	if c.w == len(c.buf) {
		return ErrNoSpace
	}
	c.buf[c.w] = b
	c.w++
	return nil
}

// ReadUint16 consumes two bytes in the chunk's byte order.
func (c *Chunk) ReadUint16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := c.order.Uint16(c.buf[c.r:])
	c.r += 2
	return v, nil
}

// ReadUint32 consumes four bytes in the chunk's byte order.
func (c *Chunk) ReadUint32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := c.order.Uint32(c.buf[c.r:])
	c.r += 4
	return v, nil
}

// ReadUint64 consumes eight bytes in the chunk's byte order.
func (c *Chunk) ReadUint64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := c.order.Uint64(c.buf[c.r:])
	c.r += 8
	return v, nil
}

// ReadFloat32 consumes an IEEE 754 single.
func (c *Chunk) ReadFloat32() (float32, error) {
	v, err := c.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadFloat64 consumes an IEEE 754 double.
func (c *Chunk) ReadFloat64() (float64, error) {
	v, err := c.ReadUint64()
	return math.Float64frombits(v), err
}

// WriteUint16 appends v in the chunk's byte order or returns ErrNoSpace.
func (c *Chunk) WriteUint16(v uint16) error {
	if c.WriteRemaining() < 2 {
		return ErrNoSpace
	}
	c.order.PutUint16(c.buf[c.w:], v)
	c.w += 2
	return nil
}

// WriteUint32 appends v in the chunk's byte order or returns ErrNoSpace.
func (c *Chunk) WriteUint32(v uint32) error {
	if c.WriteRemaining() < 4 {
		return ErrNoSpace
	}
	c.order.PutUint32(c.buf[c.w:], v)
	c.w += 4
	return nil
}

// WriteUint64 appends v in the chunk's byte order or returns ErrNoSpace.
func (c *Chunk) WriteUint64(v uint64) error {
	if c.WriteRemaining() < 8 {
		return ErrNoSpace
	}
	c.order.PutUint64(c.buf[c.w:], v)
	c.w += 8
	return nil
}

// WriteFloat32 appends the bits of v.
func (c *Chunk) WriteFloat32(v float32) error { return c.WriteUint32(math.Float32bits(v)) }

// WriteFloat64 appends the bits of v.
func (c *Chunk) WriteFloat64(v float64) error { return c.WriteUint64(math.Float64bits(v)) }

// ReadFully copies exactly len(dst) bytes or fails without consuming.
func (c *Chunk) ReadFully(dst []byte) error {
	if err := c.need(len(dst)); err != nil {
		return err
	}
	c.r += copy(dst, c.buf[c.r:c.w])
	return nil
}

// Write appends as much of p as fits. A short write returns ErrNoSpace.
func (c *Chunk) Write(p []byte) (int, error) {
	n := copy(c.buf[c.w:], p)
	c.w += n
	if n < len(p) {
		return n, ErrNoSpace
	}
	return n, nil
}

// DiscardExact skips n unread bytes or fails without consuming.
func (c *Chunk) DiscardExact(n int) error {
	if n < 0 {
		return invalidArgument("negative discard count %d", n)
	}
	if err := c.need(n); err != nil {
		return err
	}
	c.r += n
	return nil
}

func (c *Chunk) need(n int) error {
	if have := c.w - c.r; have < n {
		return endOfInput(int64(n), int64(have))
	}
	return nil
}

// decodeASCII appends leading bytes below 0x80, at most limit of them.
func (c *Chunk) decodeASCII(out []byte, limit int) ([]byte, int) {
	i, end := c.r, c.w
	if limit < end-i {
		end = i + limit
	}
	for i < end && c.buf[i] < utf8.RuneSelf {
		i++
	}
	n := i - c.r
	out = append(out, c.buf[c.r:i]...)
	c.r = i
	return out, n
}

// decodeUTF8 appends at most limit complete characters. It returns the number
// of bytes consumed and characters decoded. Zero bytes consumed together
// with errIncomplete means the next character straddles the chunk end.
func (c *Chunk) decodeUTF8(out []byte, limit int) ([]byte, int, int, error) {
	src := c.buf[c.r:c.w]
	if len(src) == 0 || limit == 0 {
		return out, 0, 0, nil
	}

	base := len(out)
	out = slices.Grow(out, len(src))
	_, valid, err := encoding.UTF8Validator.Transform(out[base:base+len(src)], src, false)

	consumed, chars := 0, 0
	for consumed < valid && chars < limit {
		_, size := utf8.DecodeRune(src[consumed:valid])
		consumed += size
		chars++
	}
	out = out[:base+consumed]
	c.r += consumed

	switch {
	case consumed > 0 || chars == limit:
		return out, consumed, chars, nil
	case err == transform.ErrShortSrc:
		return out, 0, 0, errIncomplete
	case err != nil:
		return out, 0, 0, fmt.Errorf("%w: %w at byte 0x%02x", ErrMalformedInput, err, src[0])
	}
	return out, consumed, chars, nil
}

// duplicate returns a view sharing the memory of c with its own cursors.
func (c *Chunk) duplicate() *Chunk {
	o := c
	if c.origin != nil {
		o = c.origin
	}
	o.refs.Add(1)
	return &Chunk{buf: c.buf, r: c.r, w: c.w, pool: c.pool, order: c.order, origin: o}
}

// exclusive reports whether no other view shares the chunk memory.
func (c *Chunk) exclusive() bool {
	return c.origin == nil && c.refs.Load() == 1
}

// release gives the chunk up. Memory goes back to the pool once the last view
// sharing it is released.
func (c *Chunk) release() {
	c.next = nil
	if o := c.origin; o != nil {
		c.origin, c.buf = nil, nil
		o.unref()
		return
	}
	c.unref()
}

func (c *Chunk) unref() {
	switch n := c.refs.Add(-1); {
	case n == 0:
		if c.pool != nil {
			c.pool.put(c)
		}
	case n < 0:
		panic("packetio: chunk released twice")
	}
}

// releaseChain releases every chunk from c to the end of its chain.
func releaseChain(c *Chunk) {
	for c != nil {
		next := c.next
		c.release()
		c = next
	}
}

// chainSize returns the number of unread bytes in the chain starting at c.
func chainSize(c *Chunk) int64 {
	var n int64
	for ; c != nil; c = c.next {
		n += int64(c.w - c.r)
	}
	return n
}

func chainTail(c *Chunk) *Chunk {
	for c != nil && c.next != nil {
		c = c.next
	}
	return c
}
