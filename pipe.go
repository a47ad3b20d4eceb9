package packetio

import "sync/atomic"

// pipe is the read side of a Channel: a Packet that the producer can append
// to, with monotonic progress counters. Both counters are atomics, so
// snapshot observes a sequentially consistent pair without taking the
// channel lock.
type pipe struct {
	*Packet

	bytesAppended atomic.Int64
	bytesRead     atomic.Int64
}

func newPipe(pool *Pool) *pipe {
	return &pipe{Packet: NewPacket(nil, pool)}
}

// appendChain links c after the buffered bytes, taking ownership of it.
func (p *pipe) appendChain(c *Chunk) {
	n := chainSize(c)
	p.Packet.appendChain(c)
	p.bytesAppended.Add(n)
}

// appendBuilder splices everything b holds and leaves b empty.
func (p *pipe) appendBuilder(b *Builder) {
	p.appendChain(b.stealAll())
}

// track runs a read and accounts for the bytes it consumed.
func (p *pipe) track(read func() error) error {
	before := p.Remaining()
	err := read()
	if d := before - p.Remaining(); d > 0 {
		p.bytesRead.Add(d)
	}
	return err
}

// snapshot returns both counters as of a single instant. It retries until
// two consecutive loads agree.
func (p *pipe) snapshot() (appended, read int64) {
	for {
		appended, read = p.bytesAppended.Load(), p.bytesRead.Load()
		if appended == p.bytesAppended.Load() && read == p.bytesRead.Load() {
			return appended, read
		}
	}
}

// release drops every buffered chunk. The counters keep their values.
func (p *pipe) release() {
	p.Packet.Release()
}
