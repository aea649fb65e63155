// Package fuse describes the FUSE kernel protocol: operations, protocol
// versions, capability flags, errors, and the typed request and response
// messages exchanged with the kernel.
//
// Encoding messages to and from bytes is handled by the wire package. Serving
// a mounted filesystem is handled by the session package.
//
// fuse supports protocol versions 7.9 through 7.19.
package fuse

import (
	"errors"
	"io"
	"os"
	"syscall"
)

// Request is used for protocol request messages which are sent by a kernel to
// the filesystem driver.
type Request interface {
	fuseRequest()
}

// Response is used for protocol response message types which are sent from the
// filesystem driver after processing a request.
type Response interface {
	fuseResponse()
}

// Device is a connection to the kernel. Each call to Read must return exactly
// one request frame, and each call to Write must carry exactly one response
// frame. Read returns io.EOF once the filesystem has been unmounted.
//
// Read and Write may be called concurrently with each other, but a Device is
// only read from a single goroutine.
type Device interface {
	io.ReadWriteCloser
}

// IsDeviceGone reports whether err indicates that the other side of a Device
// went away, either because the filesystem was unmounted or because the Device
// was closed.
func IsDeviceGone(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ENODEV) ||
		errors.Is(err, os.ErrClosed)
}
