package packetio_test

import (
	"math"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding"

	"github.com/jacoelho/packetio"
)

func TestReadTextASCII(t *testing.T) {
	p := packetio.PacketFromBytes([]byte("hello world"), packetio.NewPool(4, 4))
	defer p.Release()

	s, err := p.ReadText(0, 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	s, err = p.ReadString()
	require.NoError(t, err)
	assert.Equal(t, " world", s)
}

func TestReadTextAcrossChunkBoundary(t *testing.T) {
	text := "añ€😀z"

	// Every multi-byte character straddles at least one 4-byte chunk edge
	// for some offset.
	for offset := range 4 {
		pool := packetio.NewPool(8, 4)
		prefix := make([]byte, offset)
		for i := range prefix {
			prefix[i] = '.'
		}
		p := packetio.PacketFromBytes(append(prefix, text...), pool)

		require.NoError(t, p.DiscardExact(int64(offset)))
		s, err := p.ReadText(0, math.MaxInt)
		require.NoError(t, err, "offset %d", offset)
		assert.Equal(t, text, s, "offset %d", offset)
		assert.True(t, p.EndOfInput())

		p.Release()
		assert.Equal(t, int64(0), pool.Outstanding())
	}
}

func TestReadTextExactCountsCharacters(t *testing.T) {
	p := packetio.PacketFromBytes([]byte("añ€b"), packetio.NewPool(4, 4))
	defer p.Release()

	s, err := p.ReadTextExact(3)
	require.NoError(t, err)
	assert.Equal(t, "añ€", s)
	assert.Equal(t, int64(1), p.Remaining())
}

func TestReadTextBounds(t *testing.T) {
	p := packetio.PacketFromBytes([]byte("ab"), nil)
	defer p.Release()

	_, err := p.ReadText(3, 2)
	assert.True(t, errdefs.IsInvalidArgument(err))
	_, err = p.ReadText(-1, 2)
	assert.True(t, errdefs.IsInvalidArgument(err))
	assert.Equal(t, int64(2), p.Remaining(), "rejected call must not consume")

	_, err = p.ReadText(3, 5)
	require.ErrorIs(t, err, packetio.ErrMalformedInput)
	require.ErrorIs(t, err, packetio.ErrEndOfInput)
}

func TestReadTextMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"InvalidByte", []byte{'a', 0xff, 'b'}},
		{"BadContinuation", []byte{'a', 0xc3, 0x28}},
		{"StraddlingBadContinuation", []byte{'a', 'b', 'c', 0xe2, 0x28, 0xa1}},
		{"Truncated", []byte{'a', 'b', 'c', 0xe2, 0x82}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := packetio.PacketFromBytes(tt.input, packetio.NewPool(4, 4))
			defer p.Release()

			_, err := p.ReadString()
			require.ErrorIs(t, err, packetio.ErrMalformedInput)
		})
	}
}

func TestReadTextMalformedWrapsValidatorError(t *testing.T) {
	p := packetio.PacketFromBytes([]byte{0xff}, nil)
	defer p.Release()

	_, err := p.ReadString()
	require.ErrorIs(t, err, encoding.ErrInvalidUTF8)
	require.ErrorIs(t, err, errdefs.ErrDataLoss)
}

func TestReadTextExactBytes(t *testing.T) {
	p := packetio.PacketFromBytes([]byte("€uro\xff"), packetio.NewPool(4, 4))
	defer p.Release()

	s, err := p.ReadTextExactBytes(6)
	require.NoError(t, err)
	assert.Equal(t, "€uro", s)

	_, err = p.ReadTextExactBytes(2)
	require.ErrorIs(t, err, packetio.ErrEndOfInput)

	_, err = p.ReadTextExactBytes(1)
	require.ErrorIs(t, err, packetio.ErrMalformedInput)
}

func TestPacketReadUTF8Line(t *testing.T) {
	p := packetio.PacketFromBytes([]byte("first\r\nsecond\n\nthird"), packetio.NewPool(8, 4))
	defer p.Release()

	for _, want := range []string{"first", "second", ""} {
		line, ok, err := p.ReadUTF8Line(16)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, line)
	}

	_, _, err := p.ReadUTF8Line(16)
	require.ErrorIs(t, err, packetio.ErrEndOfInput)
}

func TestPacketReadUTF8LineEnd(t *testing.T) {
	p := packetio.PacketFromBytes([]byte("done\n"), nil)
	defer p.Release()

	line, ok, err := p.ReadUTF8Line(8)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "done", line)

	_, ok, err = p.ReadUTF8Line(8)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPacketReadUTF8LineUnlimited(t *testing.T) {
	p := packetio.PacketFromBytes([]byte("abc\ndef\n"), packetio.NewPool(8, 4))
	defer p.Release()

	for _, want := range []string{"abc", "def"} {
		line, ok, err := p.ReadUTF8Line(math.MaxInt)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, line)
	}
}

func TestPacketReadUTF8LineTooLong(t *testing.T) {
	p := packetio.PacketFromBytes([]byte("abcdefgh\n"), nil)
	defer p.Release()

	_, _, err := p.ReadUTF8Line(4)
	require.ErrorIs(t, err, packetio.ErrLineTooLong)
	assert.True(t, errdefs.IsOutOfRange(err))

	line, ok, err := p.ReadUTF8Line(8)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abcdefgh", line)
}
