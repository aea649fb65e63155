// Package dev connects a session to the kernel through /dev/fuse.
package dev

import (
	"io"
	"os"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/rfratto/asyncfuse/internal/fuse"
	"go.uber.org/atomic"
)

// Device is a fuse.Device backed by an open /dev/fuse file descriptor.
type Device struct {
	log log.Logger
	f   *os.File

	closed  atomic.Bool
	onClose func()
}

var _ fuse.Device = (*Device)(nil)

// NewDevice wraps f, an open connection to /dev/fuse. onClose, if non-nil, is
// called once after f has been closed.
func NewDevice(l log.Logger, f *os.File, onClose func()) *Device {
	if l == nil {
		l = log.NewNopLogger()
	}
	return &Device{log: l, f: f, onClose: onClose}
}

// Read reads exactly one request frame into p. p must be large enough to hold
// the largest request the kernel may send. Read returns io.EOF once the
// filesystem has been unmounted.
func (d *Device) Read(p []byte) (int, error) {
	for {
		if d.closed.Load() {
			return 0, os.ErrClosed
		}

		n, err := syscall.Read(int(d.f.Fd()), p)
		switch err {
		case nil:
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		case syscall.EINTR, syscall.EAGAIN:
			continue
		case syscall.ENOENT:
			// The request was interrupted before it could be read.
			continue
		case syscall.ENODEV:
			return 0, io.EOF
		default:
			if d.closed.Load() {
				return 0, os.ErrClosed
			}
			level.Error(d.log).Log("msg", "failed to read from device", "err", err)
			return 0, &os.PathError{Op: "read", Path: d.f.Name(), Err: err}
		}
	}
}

// Write writes exactly one response or notification frame. Writing a
// response for a request the kernel no longer waits on fails with
// syscall.ENOENT.
func (d *Device) Write(p []byte) (int, error) {
	if d.closed.Load() {
		return 0, os.ErrClosed
	}

	n, err := syscall.Write(int(d.f.Fd()), p)
	if err != nil {
		return n, &os.PathError{Op: "write", Path: d.f.Name(), Err: err}
	}
	return n, nil
}

// Close closes the device and unmounts the filesystem if the Device was
// created by Mount.
func (d *Device) Close() (err error) {
	if d.closed.CAS(false, true) {
		err = d.f.Close()
		if d.onClose != nil {
			d.onClose()
		}
		level.Debug(d.log).Log("msg", "closed device", "err", err)
	}
	return err
}
