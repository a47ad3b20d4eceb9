package packetio

import (
	"encoding/binary"
	"io"
	"math"
	"unicode/utf8"
)

var (
	_ io.Writer       = (*Builder)(nil)
	_ io.ByteWriter   = (*Builder)(nil)
	_ io.StringWriter = (*Builder)(nil)
	_ io.ReaderFrom   = (*Builder)(nil)
)

// Builder accumulates writes into a private chain of pooled chunks. The
// chain is handed off without copying by Build. A Builder is not safe for
// concurrent use.
type Builder struct {
	head, tail *Chunk
	size       int64

	order binary.ByteOrder
	pool  *Pool
}

// NewBuilder returns an empty builder borrowing chunks from pool.
func NewBuilder(pool *Pool) *Builder {
	if pool == nil {
		pool = DefaultPool
	}
	return &Builder{order: binary.BigEndian, pool: pool}
}

// Size returns the number of bytes written and not yet handed off.
func (b *Builder) Size() int64 { return b.size }

// ByteOrder returns the order used by multi-byte writes.
func (b *Builder) ByteOrder() binary.ByteOrder { return b.order }

// SetByteOrder changes the order of subsequent multi-byte writes.
func (b *Builder) SetByteOrder(order binary.ByteOrder) { b.order = order }

func (b *Builder) WriteByte(v byte) error {
	t := b.writableTail()
	t.buf[t.w] = v
	t.w++
	b.size++
	return nil
}

func (b *Builder) WriteInt8(v int8) { _ = b.WriteByte(byte(v)) }

func (b *Builder) WriteUint16(v uint16) {
	if t := b.room(2); t != nil {
		b.order.PutUint16(t.buf[t.w:], v)
		t.w += 2
		b.size += 2
		return
	}
	var s [2]byte
	b.order.PutUint16(s[:], v)
	_, _ = b.Write(s[:])
}

func (b *Builder) WriteUint32(v uint32) {
	if t := b.room(4); t != nil {
		b.order.PutUint32(t.buf[t.w:], v)
		t.w += 4
		b.size += 4
		return
	}
	var s [4]byte
	b.order.PutUint32(s[:], v)
	_, _ = b.Write(s[:])
}

func (b *Builder) WriteUint64(v uint64) {
	if t := b.room(8); t != nil {
		b.order.PutUint64(t.buf[t.w:], v)
		t.w += 8
		b.size += 8
		return
	}
	var s [8]byte
	b.order.PutUint64(s[:], v)
	_, _ = b.Write(s[:])
}

func (b *Builder) WriteInt16(v int16)     { b.WriteUint16(uint16(v)) }
func (b *Builder) WriteInt32(v int32)     { b.WriteUint32(uint32(v)) }
func (b *Builder) WriteInt64(v int64)     { b.WriteUint64(uint64(v)) }
func (b *Builder) WriteFloat32(v float32) { b.WriteUint32(math.Float32bits(v)) }
func (b *Builder) WriteFloat64(v float64) { b.WriteUint64(math.Float64bits(v)) }

func (b *Builder) WriteInt16s(v []int16) {
	for _, x := range v {
		b.WriteUint16(uint16(x))
	}
}

func (b *Builder) WriteInt32s(v []int32) {
	for _, x := range v {
		b.WriteUint32(uint32(x))
	}
}

func (b *Builder) WriteInt64s(v []int64) {
	for _, x := range v {
		b.WriteUint64(uint64(x))
	}
}

func (b *Builder) WriteFloat32s(v []float32) {
	for _, x := range v {
		b.WriteUint32(math.Float32bits(x))
	}
}

func (b *Builder) WriteFloat64s(v []float64) {
	for _, x := range v {
		b.WriteUint64(math.Float64bits(x))
	}
}

// Write implements io.Writer. It never fails.
func (b *Builder) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		t := b.writableTail()
		k := copy(t.buf[t.w:], p)
		t.w += k
		b.size += int64(k)
		p = p[k:]
	}
	return n, nil
}

// WriteString implements io.StringWriter. It never fails.
func (b *Builder) WriteString(s string) (int, error) {
	n := len(s)
	for len(s) > 0 {
		t := b.writableTail()
		k := copy(t.buf[t.w:], s)
		t.w += k
		b.size += int64(k)
		s = s[k:]
	}
	return n, nil
}

// WriteRune appends the UTF-8 encoding of r.
func (b *Builder) WriteRune(r rune) (int, error) {
	var s [utf8.UTFMax]byte
	return b.Write(utf8.AppendRune(s[:0], r))
}

// WritePacket moves every byte of p into the builder and releases p. Whole
// chunks are spliced rather than copied.
func (b *Builder) WritePacket(p *Packet) error {
	defer p.Release()
	_, err := b.writePacketLike(p, math.MaxInt64)
	return err
}

// ReadFrom implements io.ReaderFrom, reading straight into pooled chunks
// until r reports io.EOF.
func (b *Builder) ReadFrom(r io.Reader) (int64, error) {
	var total int64
	for {
		t := b.writableTail()
		n, err := r.Read(t.buf[t.w:])
		if n < 0 || n > t.WriteRemaining() {
			n = 0
			if err == nil {
				err = io.ErrShortBuffer
			}
		}
		t.w += n
		b.size += int64(n)
		total += int64(n)
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Build hands the written chain to a new packet and leaves the builder
// empty.
func (b *Builder) Build() *Packet {
	p := NewPacket(b.stealAll(), b.pool)
	p.order = b.order
	return p
}

// Release returns every written chunk to the pool and empties the builder.
func (b *Builder) Release() {
	releaseChain(b.stealAll())
}

// stealAll detaches the whole chain. The caller takes ownership.
func (b *Builder) stealAll() *Chunk {
	h := b.head
	b.head, b.tail, b.size = nil, nil, 0
	return h
}

// writePacketLike moves up to limit bytes out of src. Chunks that fit
// entirely are unlinked from src and spliced; only a partial edge is copied.
func (b *Builder) writePacketLike(src *Packet, limit int64) (int64, error) {
	var moved int64
	for moved < limit {
		if src.Remaining() == 0 {
			if err := src.ensure(1); err != nil {
				return moved, err
			}
			if src.Remaining() == 0 {
				break
			}
		}
		src.dropEmptyHead()
		if n := int64(src.headRemaining); n <= limit-moved {
			b.appendChain(src.detachHead())
			moved += n
			continue
		}
		h := src.head
		k := int(limit - moved)
		_, _ = b.Write(h.buf[h.r : h.r+k])
		h.r += k
		src.headRemaining -= k
		moved += int64(k)
	}
	return moved, nil
}

// appendChain links c after the tail, taking ownership of it.
func (b *Builder) appendChain(c *Chunk) {
	if c == nil {
		return
	}
	if b.head == nil {
		b.head = c
	} else {
		b.tail.next = c
	}
	b.tail = chainTail(c)
	b.size += chainSize(c)
}

// writableTail returns a tail chunk with free space that no other view
// shares, borrowing a new one when needed.
func (b *Builder) writableTail() *Chunk {
	if t := b.tail; t != nil && t.WriteRemaining() > 0 && t.exclusive() {
		return t
	}
	c := b.pool.Borrow()
	b.appendChain(c)
	return c
}

// room returns the tail if n more bytes fit in it, or nil.
func (b *Builder) room(n int) *Chunk {
	if t := b.tail; t != nil && t.WriteRemaining() >= n && t.exclusive() {
		return t
	}
	if b.pool.ChunkSize() < n {
		return nil
	}
	if t := b.tail; t != nil && t.WriteRemaining() > 0 && t.exclusive() {
		return nil
	}
	return b.writableTail()
}
