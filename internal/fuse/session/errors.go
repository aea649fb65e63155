package session

import (
	"context"
	"errors"
	"os"

	"github.com/rfratto/asyncfuse/internal/fuse"
)

var (
	// ErrProtocolDesync is returned by Serve when the stream of frames from
	// the kernel can no longer be trusted.
	ErrProtocolDesync = errors.New("protocol desync")

	// ErrDuplicateID is returned by Registry.Register when a request ID is
	// already in flight.
	ErrDuplicateID = errors.New("duplicate request ID")

	// ErrNotActive is returned when sending a notification to a session which
	// isn't active.
	ErrNotActive = errors.New("session not active")
)

// errorForResponse converts an error returned by a handler into the errno
// sent to the kernel.
func errorForResponse(err error) fuse.Error {
	if err == nil {
		return 0
	}

	var fe fuse.Error
	if errors.As(err, &fe) {
		if fe >= 0 || fe <= -512 {
			return fuse.ErrorIO
		}
		return fe
	}

	// Check for common system-level errors.
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fuse.ErrorAborted
	case errors.Is(err, context.Canceled):
		return fuse.ErrorInterrupted
	case errors.Is(err, os.ErrNotExist):
		return fuse.ErrorNotExist
	case errors.Is(err, os.ErrPermission):
		return fuse.ErrorNotPermitted
	case errors.Is(err, os.ErrExist):
		return fuse.ErrorExists
	}
	return fuse.ErrorIO
}
