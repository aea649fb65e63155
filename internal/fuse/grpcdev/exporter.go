package grpcdev

import (
	"errors"
	"io"
	"sync"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/rfratto/asyncfuse/internal/fuse"
	"go.uber.org/atomic"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Exporter implements DeviceServer by relaying frames between a local
// fuse.Device and a single remote client. An Exporter is single use: once its
// client disconnects, the device is closed.
type Exporter struct {
	log     log.Logger
	dev     fuse.Device
	bufSize int

	claimed   atomic.Bool
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

var _ DeviceServer = (*Exporter)(nil)

// NewExporter creates an Exporter for dev. maxWrite must be at least as large
// as the MaxWrite negotiated by the remote session.
func NewExporter(l log.Logger, dev fuse.Device, maxWrite uint32) *Exporter {
	if l == nil {
		l = log.NewNopLogger()
	}
	return &Exporter{
		log:     l,
		dev:     dev,
		bufSize: int(maxWrite) + syscall.Getpagesize(),
		done:    make(chan struct{}),
	}
}

// Frames implements DeviceServer.
func (e *Exporter) Frames(stream Device_FramesServer) error {
	if !e.claimed.CAS(false, true) {
		return status.Error(codes.FailedPrecondition, "device is already exported to a client")
	}
	defer e.Close()

	level.Info(e.log).Log("msg", "client connected, relaying frames")

	var (
		requests  = make(chan error, 1)
		responses = make(chan error, 1)
	)
	go func() { requests <- e.relayRequests(stream) }()
	go func() { responses <- e.relayResponses(stream) }()

	var err error
	select {
	case err = <-requests:
		// The kernel side is gone, nothing more will be sent.
	case err = <-responses:
		// The client went away. Closing the device stops the request relay;
		// it has to exit before Frames returns since it sends on stream.
		_ = e.Close()
		<-requests
	}

	level.Info(e.log).Log("msg", "client disconnected", "err", err)
	if err == nil || errors.Is(err, io.EOF) || fuse.IsDeviceGone(err) {
		return nil
	}
	return status.Error(codes.Unavailable, err.Error())
}

// relayRequests forwards frames read from the device to the client.
func (e *Exporter) relayRequests(stream Device_FramesServer) error {
	buf := make([]byte, e.bufSize)
	for {
		n, err := e.dev.Read(buf)
		if err != nil {
			return err
		}
		if err := stream.Send(&Frame{Data: buf[:n]}); err != nil {
			return err
		}
	}
}

// relayResponses writes frames sent by the client to the device.
func (e *Exporter) relayResponses(stream Device_FramesServer) error {
	for {
		f, err := stream.Recv()
		if err != nil {
			return err
		}

		_, err = e.dev.Write(f.Data)
		switch {
		case err == nil:
		case errors.Is(err, syscall.ENOENT):
			level.Debug(e.log).Log("msg", "kernel dropped request before it was answered")
		case fuse.IsDeviceGone(err):
			return err
		default:
			level.Warn(e.log).Log("msg", "failed to write frame to device", "err", err)
		}
	}
}

// Done returns a channel which is closed once the device has been closed.
func (e *Exporter) Done() <-chan struct{} { return e.done }

// Close closes the underlying device. Close may be called multiple times.
func (e *Exporter) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.dev.Close()
		close(e.done)
	})
	return e.closeErr
}
