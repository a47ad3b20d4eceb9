package packetio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/containerd/log"
)

// maxEmptyFills bounds consecutive fills that return no data and no error.
const maxEmptyFills = 100

var (
	_ io.Reader     = (*Packet)(nil)
	_ io.ByteReader = (*Packet)(nil)
	_ io.WriterTo   = (*Packet)(nil)
	_ io.Closer     = (*Packet)(nil)
)

// Packet is a single-pass readable byte sequence over a chain of chunks.
// Bytes are consumed as they are read and exhausted chunks go back to the
// pool. A Packet is not safe for concurrent use.
type Packet struct {
	head          *Chunk
	headRemaining int
	tailRemaining int64

	order        binary.ByteOrder
	noMoreChunks bool
	err          error

	pool *Pool
	src  Source
}

// NewPacket returns a packet reading the chain starting at head. The packet
// takes ownership of the chain.
func NewPacket(head *Chunk, pool *Pool) *Packet {
	if pool == nil {
		pool = DefaultPool
	}
	p := &Packet{order: binary.BigEndian, pool: pool, noMoreChunks: true}
	p.appendChain(head)
	return p
}

// NewStreamPacket returns a packet that pulls chunks from src on demand.
func NewStreamPacket(src Source, pool *Pool) *Packet {
	if pool == nil {
		pool = DefaultPool
	}
	return &Packet{order: binary.BigEndian, pool: pool, src: src}
}

// PacketFromBytes copies b into pooled chunks.
func PacketFromBytes(b []byte, pool *Pool) *Packet {
	bb := NewBuilder(pool)
	_, _ = bb.Write(b)
	return bb.Build()
}

// Remaining returns the number of bytes buffered and not yet read. Streaming
// packets may hold more once further chunks are filled.
func (p *Packet) Remaining() int64 {
	return int64(p.headRemaining) + p.tailRemaining
}

// ByteOrder returns the order used by multi-byte reads.
func (p *Packet) ByteOrder() binary.ByteOrder { return p.order }

// SetByteOrder changes the order of subsequent multi-byte reads, including
// bytes already buffered.
func (p *Packet) SetByteOrder(order binary.ByteOrder) { p.order = order }

// EndOfInput reports whether the packet is empty and no further chunks can
// be obtained.
func (p *Packet) EndOfInput() bool {
	if p.Remaining() > 0 {
		return false
	}
	_ = p.ensure(1)
	return p.Remaining() == 0
}

// CanRead reports whether at least one more byte can be read.
func (p *Packet) CanRead() bool { return !p.EndOfInput() }

// HasBytes reports whether at least n bytes can be read.
func (p *Packet) HasBytes(n int64) bool {
	_ = p.ensure(n)
	return p.Remaining() >= n
}

// TryPeek returns the next byte without consuming it, or -1 at end of input.
func (p *Packet) TryPeek() int {
	if p.ensure(1) != nil || p.Remaining() == 0 {
		return -1
	}
	p.dropEmptyHead()
	return p.head.TryPeek()
}

func (p *Packet) ReadByte() (byte, error) {
	if p.headRemaining > 0 {
		h := p.head
		b := h.buf[h.r]
		h.r++
		p.headRemaining--
		return b, nil
	}
	var b [1]byte
	if err := p.readSlow(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (p *Packet) ReadInt8() (int8, error) {
	b, err := p.ReadByte()
	return int8(b), err
}

func (p *Packet) ReadUint16() (uint16, error) {
	if p.headRemaining >= 2 {
		h := p.head
		v := p.order.Uint16(h.buf[h.r:])
		h.r += 2
		p.headRemaining -= 2
		return v, nil
	}
	var b [2]byte
	if err := p.readSlow(b[:]); err != nil {
		return 0, err
	}
	return p.order.Uint16(b[:]), nil
}

func (p *Packet) ReadUint32() (uint32, error) {
	if p.headRemaining >= 4 {
		h := p.head
		v := p.order.Uint32(h.buf[h.r:])
		h.r += 4
		p.headRemaining -= 4
		return v, nil
	}
	var b [4]byte
	if err := p.readSlow(b[:]); err != nil {
		return 0, err
	}
	return p.order.Uint32(b[:]), nil
}

func (p *Packet) ReadUint64() (uint64, error) {
	if p.headRemaining >= 8 {
		h := p.head
		v := p.order.Uint64(h.buf[h.r:])
		h.r += 8
		p.headRemaining -= 8
		return v, nil
	}
	var b [8]byte
	if err := p.readSlow(b[:]); err != nil {
		return 0, err
	}
	return p.order.Uint64(b[:]), nil
}

func (p *Packet) ReadInt16() (int16, error) {
	v, err := p.ReadUint16()
	return int16(v), err
}

func (p *Packet) ReadInt32() (int32, error) {
	v, err := p.ReadUint32()
	return int32(v), err
}

func (p *Packet) ReadInt64() (int64, error) {
	v, err := p.ReadUint64()
	return int64(v), err
}

func (p *Packet) ReadFloat32() (float32, error) {
	v, err := p.ReadUint32()
	return math.Float32frombits(v), err
}

func (p *Packet) ReadFloat64() (float64, error) {
	v, err := p.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadInt16s fills dst or fails without consuming anything.
func (p *Packet) ReadInt16s(dst []int16) error {
	if err := p.require(2 * int64(len(dst))); err != nil {
		return err
	}
	for i := range dst {
		v, _ := p.ReadUint16()
		dst[i] = int16(v)
	}
	return nil
}

// ReadInt32s fills dst or fails without consuming anything.
func (p *Packet) ReadInt32s(dst []int32) error {
	if err := p.require(4 * int64(len(dst))); err != nil {
		return err
	}
	for i := range dst {
		v, _ := p.ReadUint32()
		dst[i] = int32(v)
	}
	return nil
}

// ReadInt64s fills dst or fails without consuming anything.
func (p *Packet) ReadInt64s(dst []int64) error {
	if err := p.require(8 * int64(len(dst))); err != nil {
		return err
	}
	for i := range dst {
		v, _ := p.ReadUint64()
		dst[i] = int64(v)
	}
	return nil
}

// ReadFloat32s fills dst or fails without consuming anything.
func (p *Packet) ReadFloat32s(dst []float32) error {
	if err := p.require(4 * int64(len(dst))); err != nil {
		return err
	}
	for i := range dst {
		v, _ := p.ReadUint32()
		dst[i] = math.Float32frombits(v)
	}
	return nil
}

// ReadFloat64s fills dst or fails without consuming anything.
func (p *Packet) ReadFloat64s(dst []float64) error {
	if err := p.require(8 * int64(len(dst))); err != nil {
		return err
	}
	for i := range dst {
		v, _ := p.ReadUint64()
		dst[i] = math.Float64frombits(v)
	}
	return nil
}

// Read implements io.Reader.
func (p *Packet) Read(b []byte) (int, error) {
	return p.ReadAvailable(b)
}

// ReadAvailable copies up to len(dst) bytes. It fills at most once, when
// nothing is buffered, and returns io.EOF at end of input.
func (p *Packet) ReadAvailable(dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if p.Remaining() == 0 {
		if err := p.ensure(1); err != nil {
			return 0, err
		}
		if p.Remaining() == 0 {
			return 0, io.EOF
		}
	}
	n := int(min(int64(len(dst)), p.Remaining()))
	p.consumeInto(dst[:n])
	return n, nil
}

// ReadFully copies exactly len(dst) bytes or fails without consuming.
func (p *Packet) ReadFully(dst []byte) error {
	if err := p.require(int64(len(dst))); err != nil {
		return err
	}
	p.consumeInto(dst)
	return nil
}

// ReadPacket moves the next n bytes into a new packet. Whole chunks are
// spliced rather than copied.
func (p *Packet) ReadPacket(n int64) (*Packet, error) {
	if n < 0 {
		return nil, invalidArgument("negative packet size %d", n)
	}
	if err := p.require(n); err != nil {
		return nil, err
	}
	b := NewBuilder(p.pool)
	if _, err := b.writePacketLike(p, n); err != nil {
		b.Release()
		return nil, err
	}
	return b.Build(), nil
}

// WriteTo implements io.WriterTo, draining the packet into w.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for {
		if err := p.ensure(1); err != nil {
			return total, err
		}
		p.dropEmptyHead()
		if p.head == nil {
			return total, nil
		}
		h := p.head
		n, err := w.Write(h.buf[h.r:h.w])
		if n < 0 || n > h.w-h.r {
			n = 0
			if err == nil {
				err = io.ErrShortWrite
			}
		}
		h.r += n
		p.headRemaining -= n
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
}

// Discard drops up to n bytes and returns how many were dropped.
func (p *Packet) Discard(n int64) int64 {
	var dropped int64
	for dropped < n {
		if p.Remaining() == 0 {
			if p.ensure(1) != nil || p.Remaining() == 0 {
				break
			}
		}
		p.dropEmptyHead()
		k := min(int64(p.headRemaining), n-dropped)
		p.head.r += int(k)
		p.headRemaining -= int(k)
		dropped += k
	}
	return dropped
}

// DiscardExact drops exactly n bytes or fails without consuming.
func (p *Packet) DiscardExact(n int64) error {
	if n < 0 {
		return invalidArgument("negative discard count %d", n)
	}
	if err := p.require(n); err != nil {
		return err
	}
	p.Discard(n)
	return nil
}

// Copy returns an independent packet over the buffered bytes. Chunk memory
// is shared, not copied; both packets must be released.
func (p *Packet) Copy() *Packet {
	var head, tail *Chunk
	for c := p.head; c != nil; c = c.next {
		if c.ReadRemaining() == 0 {
			continue
		}
		d := c.duplicate()
		if head == nil {
			head = d
		} else {
			tail.next = d
		}
		tail = d
	}
	cp := NewPacket(head, p.pool)
	cp.order = p.order
	return cp
}

// Release returns every owned chunk to the pool and closes the source. It
// is safe to call more than once.
func (p *Packet) Release() {
	if err := p.Close(); err != nil {
		log.L.WithError(err).Debug("failed to close packet source")
	}
}

// Close is Release reporting the error from closing the source.
func (p *Packet) Close() error {
	releaseChain(p.head)
	p.head = nil
	p.headRemaining, p.tailRemaining = 0, 0
	p.noMoreChunks = true

	src := p.src
	p.src = nil
	if src != nil {
		return src.Close()
	}
	return nil
}

// require makes sure n bytes are buffered.
func (p *Packet) require(n int64) error {
	if err := p.ensure(n); err != nil {
		return err
	}
	if rem := p.Remaining(); rem < n {
		return endOfInput(n, rem)
	}
	return nil
}

// ensure fills until n bytes are buffered or the source is exhausted.
func (p *Packet) ensure(n int64) error {
	empty := 0
	for p.Remaining() < n && !p.noMoreChunks {
		filled, err := p.fill()
		if err != nil {
			return err
		}
		if filled > 0 {
			empty = 0
			continue
		}
		if empty++; empty >= maxEmptyFills {
			return io.ErrNoProgress
		}
	}
	return p.err
}

// fill borrows a chunk, asks the source for bytes and appends the result.
func (p *Packet) fill() (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	if p.src == nil {
		p.noMoreChunks = true
		return 0, nil
	}
	c := p.pool.Borrow()
	n, err := p.src.Fill(c.buf)
	if n < 0 || n > len(c.buf) {
		n, err = 0, errors.New("packetio: source returned invalid count")
	}
	c.w = n
	if n > 0 {
		p.appendChain(c)
	} else {
		c.release()
	}
	if err == io.EOF {
		p.noMoreChunks = true
		err = nil
	}
	if err != nil {
		p.err = err
	}
	return n, err
}

func (p *Packet) readSlow(dst []byte) error {
	if err := p.require(int64(len(dst))); err != nil {
		return err
	}
	p.consumeInto(dst)
	return nil
}

// consumeInto copies len(dst) buffered bytes, releasing drained chunks.
// The caller guarantees enough bytes are buffered.
func (p *Packet) consumeInto(dst []byte) {
	for len(dst) > 0 {
		p.dropEmptyHead()
		h := p.head
		n := copy(dst, h.buf[h.r:h.w])
		h.r += n
		p.headRemaining -= n
		dst = dst[n:]
	}
	p.dropEmptyHead()
}

// dropEmptyHead releases drained chunks at the front of the chain.
func (p *Packet) dropEmptyHead() {
	for p.head != nil && p.headRemaining == 0 {
		h := p.head
		p.head = h.next
		h.release()
		if p.head != nil {
			p.headRemaining = p.head.ReadRemaining()
			p.tailRemaining -= int64(p.headRemaining)
		}
	}
}

// detachHead unlinks the head chunk and hands it to the caller.
func (p *Packet) detachHead() *Chunk {
	h := p.head
	if h == nil {
		return nil
	}
	p.head = h.next
	h.next = nil
	p.headRemaining = 0
	if p.head != nil {
		p.headRemaining = p.head.ReadRemaining()
		p.tailRemaining -= int64(p.headRemaining)
	}
	return h
}

// appendChain links c after the last chunk, taking ownership of it.
func (p *Packet) appendChain(c *Chunk) {
	if c == nil {
		return
	}
	if p.head == nil {
		p.head = c
		p.headRemaining = c.ReadRemaining()
		p.tailRemaining = chainSize(c.next)
		return
	}
	chainTail(p.head).next = c
	p.tailRemaining += chainSize(c)
}

// indexByte returns the offset of the first b within the first limit
// buffered bytes, starting the search at offset from, or -1.
func (p *Packet) indexByte(b byte, from, limit int64) int64 {
	var off int64
	for c := p.head; c != nil && off < limit; c = c.next {
		data := c.buf[c.r:c.w]
		if int64(len(data)) > limit-off {
			data = data[:limit-off]
		}
		if from < off+int64(len(data)) {
			start := max(from-off, 0)
			if i := bytes.IndexByte(data[start:], b); i >= 0 {
				return off + start + int64(i)
			}
		}
		off += int64(len(data))
	}
	return -1
}
