package wire

import (
	"errors"
	"fmt"

	"github.com/rfratto/asyncfuse/internal/fuse"
)

// Errors returned by a Codec.
var (
	// ErrTruncatedFrame is returned when a frame is shorter than its header or
	// than the length its header declares.
	ErrTruncatedFrame = errors.New("truncated frame")

	// ErrFrameLength is returned when a frame is longer than the length its
	// header declares. The connection can't be trusted after this error.
	ErrFrameLength = errors.New("frame length mismatch")

	// ErrMalformedHeader is returned when a header is well-formed but names an
	// opcode unknown to the negotiated protocol version.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrInsufficientData is returned when a payload is too short for the
	// operation it belongs to.
	ErrInsufficientData = errors.New("insufficient data for operation")

	// ErrUnsupportedField is returned when encoding a message which uses a
	// field, flag, or operation not defined by the negotiated protocol
	// version.
	ErrUnsupportedField = errors.New("unsupported by protocol version")

	// ErrUnexpectedMessage is returned when encoding a message whose type
	// doesn't match its operation.
	ErrUnexpectedMessage = errors.New("unexpected message type")
)

// FrameError is returned when decoding a frame fails. Header is set when the
// request header could be read, allowing the caller to reply to the request.
type FrameError struct {
	Header *fuse.RequestHeader
	Err    error
}

// Error implements error.
func (e *FrameError) Error() string {
	if e.Header == nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("request %d (%s): %s", e.Header.RequestID, e.Header.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *FrameError) Unwrap() error { return e.Err }
