package packetio

import (
	"errors"
	"fmt"
	"io"

	"github.com/containerd/errdefs"
)

var (
	// ErrEndOfInput is returned when a read needs more bytes or characters than
	// remain and no further chunks can be obtained.
	ErrEndOfInput = fmt.Errorf("premature end of input: %w", io.ErrUnexpectedEOF)

	// ErrMalformedInput is returned for invalid text encoding. The packet may
	// be released afterwards but further reads are unspecified.
	ErrMalformedInput = fmt.Errorf("malformed input: %w", errdefs.ErrDataLoss)

	// ErrClosedChannel is returned by writes after close and by reads on a
	// closed channel when no close cause was recorded.
	ErrClosedChannel = fmt.Errorf("channel was closed: %w", io.ErrClosedPipe)

	// ErrLineTooLong is returned when no line terminator is found within the
	// caller supplied limit.
	ErrLineTooLong = fmt.Errorf("line too long: %w", errdefs.ErrOutOfRange)

	// ErrNoSpace is returned by chunk writes that do not fit.
	ErrNoSpace = fmt.Errorf("not enough space in chunk: %w", errdefs.ErrResourceExhausted)

	// ErrStaleScope cancels a scope that was replaced by a newer attachment.
	ErrStaleScope = fmt.Errorf("scope replaced by a newer attachment: %w", errdefs.ErrFailedPrecondition)

	errIncomplete = errors.New("incomplete utf-8 sequence")
)

func endOfInput(need, have int64) error {
	return fmt.Errorf("%w: need %d bytes, %d remaining", ErrEndOfInput, need, have)
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errdefs.ErrInvalidArgument)
}
