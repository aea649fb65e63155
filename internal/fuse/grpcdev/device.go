// Package grpcdev carries FUSE frames over gRPC, so a filesystem can be
// served from a different machine than the one it's mounted on.
//
// The machine with the mount runs an Exporter, which relays frames between
// its /dev/fuse connection and a single client. The client connects with
// Connect and serves a session over the returned Device as if it were local.
package grpcdev

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rfratto/asyncfuse/internal/fuse"
	"go.uber.org/atomic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Device is a fuse.Device connected to a remote Exporter.
type Device struct {
	stream Device_FramesClient
	cancel context.CancelFunc

	wmut   sync.Mutex
	closed atomic.Bool
}

var _ fuse.Device = (*Device)(nil)

// Connect opens a Frames stream to the Exporter at cc. Canceling ctx closes
// the stream.
func Connect(ctx context.Context, cc grpc.ClientConnInterface) (*Device, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := NewDeviceClient(cc).Frames(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("opening frame stream: %w", err)
	}
	return &Device{stream: stream, cancel: cancel}, nil
}

// Read implements fuse.Device.
func (d *Device) Read(p []byte) (int, error) {
	f, err := d.stream.Recv()
	if err != nil {
		return 0, d.streamError(err)
	}
	if len(f.Data) > len(p) {
		return 0, fmt.Errorf("frame of %d bytes exceeds buffer of %d bytes: %w", len(f.Data), len(p), io.ErrShortBuffer)
	}
	return copy(p, f.Data), nil
}

// Write implements fuse.Device.
func (d *Device) Write(p []byte) (int, error) {
	d.wmut.Lock()
	defer d.wmut.Unlock()

	if d.closed.Load() {
		return 0, os.ErrClosed
	}
	if err := d.stream.Send(&Frame{Data: p}); err != nil {
		return 0, d.streamError(err)
	}
	return len(p), nil
}

// streamError converts errors from the stream into errors recognized by
// fuse.IsDeviceGone where appropriate.
func (d *Device) streamError(err error) error {
	switch {
	case d.closed.Load():
		return os.ErrClosed
	case errors.Is(err, io.EOF):
		return io.EOF
	case status.Code(err) == codes.Canceled:
		return io.EOF
	}
	return err
}

// Close closes the stream. The Exporter closes its device in response.
func (d *Device) Close() error {
	if !d.closed.CAS(false, true) {
		return nil
	}

	d.wmut.Lock()
	err := d.stream.CloseSend()
	d.wmut.Unlock()

	d.cancel()
	return err
}
