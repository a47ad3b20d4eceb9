package packetio

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// ReadText decodes between minChars and maxChars UTF-8 characters. Pure ASCII
// runs are copied directly; other bytes go through a validating decoder that
// resumes across chunk boundaries. Fewer than minChars characters before end
// of input is an error.
func (p *Packet) ReadText(minChars, maxChars int) (string, error) {
	if minChars < 0 {
		return "", invalidArgument("negative minimum %d", minChars)
	}
	if maxChars < minChars {
		return "", invalidArgument("maximum %d is less than minimum %d", maxChars, minChars)
	}
	out, chars, err := p.decodeText(nil, maxChars)
	if err != nil {
		return "", err
	}
	if chars < minChars {
		return "", fmt.Errorf("%w: %w: expected at least %d characters, got %d", ErrMalformedInput, ErrEndOfInput, minChars, chars)
	}
	return string(out), nil
}

// ReadTextExact decodes exactly n characters.
func (p *Packet) ReadTextExact(n int) (string, error) {
	return p.ReadText(n, n)
}

// ReadString decodes every remaining character.
func (p *Packet) ReadString() (string, error) {
	return p.ReadText(0, math.MaxInt)
}

// ReadTextExactBytes decodes exactly n bytes that must form valid UTF-8.
func (p *Packet) ReadTextExactBytes(n int) (string, error) {
	if n < 0 {
		return "", invalidArgument("negative byte count %d", n)
	}
	if err := p.require(int64(n)); err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.Grow(n)
	for n > 0 {
		p.dropEmptyHead()
		h := p.head
		k := min(n, h.w-h.r)
		sb.Write(h.buf[h.r : h.r+k])
		h.r += k
		p.headRemaining -= k
		n -= k
	}
	p.dropEmptyHead()
	s := sb.String()
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: invalid utf-8 in %d bytes", ErrMalformedInput, len(s))
	}
	return s, nil
}

// ReadUTF8Line reads up to the next '\n', dropping the terminator and a
// preceding '\r'. It returns false with no error at a clean end of input
// and ErrLineTooLong if no terminator occurs within limit bytes.
func (p *Packet) ReadUTF8Line(limit int) (string, bool, error) {
	if limit < 0 {
		return "", false, invalidArgument("negative line limit %d", limit)
	}
	var scanned int64
	for {
		idx, err := p.scanLine(scanned, limit)
		if err != nil {
			return "", false, err
		}
		if idx >= 0 {
			return p.consumeLine(idx)
		}
		scanned = p.Remaining()
		if err := p.ensure(scanned + 1); err != nil {
			return "", false, err
		}
		if p.Remaining() == scanned {
			if scanned == 0 {
				return "", false, nil
			}
			return "", false, fmt.Errorf("%w: unterminated line of %d bytes", ErrEndOfInput, scanned)
		}
	}
}

// scanLine looks for a terminator among the buffered bytes. It returns -1
// when more bytes are needed.
func (p *Packet) scanLine(from int64, limit int) (int64, error) {
	// The terminator may sit just past limit bytes of content.
	bound := int64(limit)
	if bound < math.MaxInt64 {
		bound++
	}
	if idx := p.indexByte('\n', from, bound); idx >= 0 {
		return idx, nil
	}
	if p.Remaining() > int64(limit) {
		return -1, fmt.Errorf("%w: no terminator within %d bytes", ErrLineTooLong, limit)
	}
	return -1, nil
}

func (p *Packet) consumeLine(idx int64) (string, bool, error) {
	s, err := p.ReadTextExactBytes(int(idx))
	if err != nil {
		return "", false, err
	}
	p.Discard(1)
	return strings.TrimSuffix(s, "\r"), true, nil
}

// decodeText appends up to maxChars characters to out.
func (p *Packet) decodeText(out []byte, maxChars int) ([]byte, int, error) {
	chars := 0
	for chars < maxChars {
		if p.headRemaining == 0 {
			if err := p.ensure(1); err != nil {
				return out, chars, err
			}
			p.dropEmptyHead()
			if p.head == nil {
				break
			}
		}
		h := p.head

		before := h.r
		var n int
		out, n = h.decodeASCII(out, maxChars-chars)
		chars += n
		p.headRemaining -= h.r - before
		if p.headRemaining == 0 || chars == maxChars {
			continue
		}

		var consumed int
		var err error
		out, consumed, n, err = h.decodeUTF8(out, maxChars-chars)
		p.headRemaining -= consumed
		chars += n
		switch {
		case err == errIncomplete:
			if out, err = p.decodeStraddling(out); err != nil {
				return out, chars, err
			}
			chars++
		case err != nil:
			return out, chars, err
		}
	}
	return out, chars, nil
}

// decodeStraddling decodes one character whose bytes span several chunks.
func (p *Packet) decodeStraddling(out []byte) ([]byte, error) {
	size := sequenceLength(p.head.buf[p.head.r])
	if size == 0 {
		return out, fmt.Errorf("%w: invalid utf-8 lead byte 0x%02x", ErrMalformedInput, p.head.buf[p.head.r])
	}
	if err := p.ensure(int64(size)); err != nil {
		return out, err
	}
	var buf [utf8.UTFMax]byte
	n := p.peekInto(buf[:size])
	if n < size {
		return out, fmt.Errorf("%w: %w: truncated utf-8 sequence", ErrMalformedInput, ErrEndOfInput)
	}
	if r, k := utf8.DecodeRune(buf[:n]); r == utf8.RuneError && k <= 1 || k != size {
		return out, fmt.Errorf("%w: invalid utf-8 sequence % x", ErrMalformedInput, buf[:n])
	}
	p.consumeInto(buf[:size])
	return append(out, buf[:size]...), nil
}

// peekInto copies buffered bytes into dst without consuming them.
func (p *Packet) peekInto(dst []byte) int {
	n := 0
	for c := p.head; c != nil && n < len(dst); c = c.next {
		n += copy(dst[n:], c.buf[c.r:c.w])
	}
	return n
}

// sequenceLength returns the encoded length announced by a UTF-8 lead byte,
// or 0 if b cannot start a sequence.
func sequenceLength(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b >= 0xC2 && b <= 0xDF:
		return 2
	case b >= 0xE0 && b <= 0xEF:
		return 3
	case b >= 0xF0 && b <= 0xF4:
		return 4
	}
	return 0
}
