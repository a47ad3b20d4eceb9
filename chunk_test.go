package packetio_test

import (
	"encoding/binary"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacoelho/packetio"
)

func TestChunkTypedRoundTrip(t *testing.T) {
	c := packetio.NewChunk(32)

	require.NoError(t, c.WriteByte(0x7f))
	require.NoError(t, c.WriteUint16(0xbeef))
	require.NoError(t, c.WriteUint32(0xdeadbeef))
	require.NoError(t, c.WriteUint64(1<<63|42))
	require.NoError(t, c.WriteFloat32(1.5))
	require.NoError(t, c.WriteFloat64(-2.25))
	assert.Equal(t, 27, c.ReadRemaining())
	assert.Equal(t, 5, c.WriteRemaining())

	b, err := c.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x7f), b)
	u16, err := c.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xbeef), u16)
	u32, err := c.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), u32)
	u64, err := c.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<63|42), u64)
	f32, err := c.ReadFloat32()
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), f32)
	f64, err := c.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, -2.25, f64)

	assert.Equal(t, -1, c.TryPeek())
}

func TestChunkByteOrder(t *testing.T) {
	c := packetio.NewChunk(8)
	require.NoError(t, c.WriteUint32(0x01020304))
	assert.Equal(t, []byte{1, 2, 3, 4}, c.Bytes())

	c.SetByteOrder(binary.LittleEndian)
	v, err := c.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x04030201), v)
}

func TestChunkWriteNoSpace(t *testing.T) {
	c := packetio.NewChunk(3)

	require.ErrorIs(t, c.WriteUint32(1), packetio.ErrNoSpace)
	assert.Equal(t, 0, c.ReadRemaining(), "failed write must not advance")

	n, err := c.Write([]byte("abcd"))
	require.ErrorIs(t, err, packetio.ErrNoSpace)
	assert.Equal(t, 3, n)
	require.ErrorIs(t, c.WriteByte('x'), packetio.ErrNoSpace)
}

func TestChunkUnderRead(t *testing.T) {
	c := packetio.NewChunk(8)
	_, _ = c.Write([]byte{1, 2, 3})

	_, err := c.ReadUint32()
	require.ErrorIs(t, err, packetio.ErrEndOfInput)
	assert.Equal(t, 3, c.ReadRemaining())

	require.ErrorIs(t, c.ReadFully(make([]byte, 4)), packetio.ErrEndOfInput)
	require.ErrorIs(t, c.DiscardExact(4), packetio.ErrEndOfInput)
	assert.True(t, errdefs.IsInvalidArgument(c.DiscardExact(-1)))

	require.NoError(t, c.DiscardExact(1))
	assert.Equal(t, 2, c.TryPeek())
	dst := make([]byte, 2)
	require.NoError(t, c.ReadFully(dst))
	assert.Equal(t, []byte{2, 3}, dst)
}

func TestChunkReset(t *testing.T) {
	c := packetio.NewChunk(4)
	c.SetByteOrder(binary.LittleEndian)
	_, _ = c.Write([]byte("ab"))
	_, _ = c.ReadByte()

	c.Reset()
	assert.Equal(t, 0, c.ReadRemaining())
	assert.Equal(t, 4, c.WriteRemaining())
	assert.Equal(t, binary.ByteOrder(binary.BigEndian), c.ByteOrder())
}
