package packetio_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacoelho/packetio"
)

func TestBuilderBuildEmpties(t *testing.T) {
	pool := packetio.NewPool(8, 4)
	b := packetio.NewBuilder(pool)

	_, _ = b.WriteString("hello")
	assert.Equal(t, int64(5), b.Size())

	p := b.Build()
	assert.Equal(t, int64(0), b.Size())
	assert.Equal(t, int64(5), p.Remaining())

	empty := b.Build()
	assert.True(t, empty.EndOfInput())

	p.Release()
	assert.Equal(t, int64(0), pool.Outstanding())
}

func TestBuilderByteOrder(t *testing.T) {
	b := packetio.NewBuilder(nil)
	b.SetByteOrder(binary.LittleEndian)
	b.WriteUint32(0x01020304)
	b.WriteUint16(0x0506)

	p := b.Build()
	defer p.Release()
	assert.Equal(t, binary.ByteOrder(binary.LittleEndian), p.ByteOrder())

	raw := make([]byte, 6)
	require.NoError(t, p.ReadFully(raw))
	assert.Equal(t, []byte{4, 3, 2, 1, 6, 5}, raw)
}

func TestBuilderWriteRune(t *testing.T) {
	b := packetio.NewBuilder(packetio.NewPool(4, 4))
	for _, r := range "a€😀" {
		_, err := b.WriteRune(r)
		require.NoError(t, err)
	}

	p := b.Build()
	defer p.Release()
	s, err := p.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "a€😀", s)
}

func TestBuilderWritePacketSplices(t *testing.T) {
	pool := packetio.NewPool(16, 4)

	src := packetio.PacketFromBytes([]byte("0123456789"), pool)
	before := pool.Outstanding()

	b := packetio.NewBuilder(pool)
	require.NoError(t, b.WritePacket(src))
	assert.Equal(t, before, pool.Outstanding(), "whole chunks move without borrowing")
	assert.Equal(t, int64(10), b.Size())
	assert.Equal(t, int64(0), src.Remaining())

	_, _ = b.WriteString("ab")
	p := b.Build()
	got, err := io.ReadAll(p)
	require.NoError(t, err)
	assert.Equal(t, "0123456789ab", string(got))

	p.Release()
	assert.Equal(t, int64(0), pool.Outstanding())
}

func TestBuilderDoesNotWriteIntoSharedChunk(t *testing.T) {
	pool := packetio.NewPool(16, 8)

	original := packetio.PacketFromBytes([]byte("abc"), pool)
	view := original.Copy()

	b := packetio.NewBuilder(pool)
	require.NoError(t, b.WritePacket(original))
	_, _ = b.WriteString("XYZ")

	got, err := io.ReadAll(view)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	p := b.Build()
	got, err = io.ReadAll(p)
	require.NoError(t, err)
	assert.Equal(t, "abcXYZ", string(got))

	view.Release()
	p.Release()
	assert.Equal(t, int64(0), pool.Outstanding())
}

func TestBuilderReadFrom(t *testing.T) {
	pool := packetio.NewPool(8, 4)
	b := packetio.NewBuilder(pool)

	n, err := b.ReadFrom(strings.NewReader("streamed input"))
	require.NoError(t, err)
	assert.Equal(t, int64(14), n)

	var out bytes.Buffer
	p := b.Build()
	_, err = p.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, "streamed input", out.String())

	p.Release()
	assert.Equal(t, int64(0), pool.Outstanding())
}

func TestBuilderRelease(t *testing.T) {
	pool := packetio.NewPool(8, 4)
	b := packetio.NewBuilder(pool)
	_, _ = b.Write(make([]byte, 13))
	assert.Equal(t, int64(4), pool.Outstanding())

	b.Release()
	assert.Equal(t, int64(0), b.Size())
	assert.Equal(t, int64(0), pool.Outstanding())
}
