package session

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rfratto/asyncfuse/internal/fuse"
	"github.com/rfratto/asyncfuse/internal/fuse/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestSession_Handshake(t *testing.T) {
	h := &testHandler{}
	s, k, _ := newTestSession(t, h, nil)

	require.Equal(t, StateNegotiating, s.State())

	resp := k.init(fuse.Version{Major: 7, Minor: 19}, fuse.InitAsyncRead|fuse.InitBigWrites|fuse.InitPOSIXLocks)
	require.Equal(t, &fuse.InitResponse{
		Version:             fuse.Version{Major: 7, Minor: 19},
		MaxReadahead:        128 * 1024,
		Flags:               fuse.InitAsyncRead | fuse.InitBigWrites,
		MaxBackground:       64,
		CongestionThreshold: 48,
		MaxWrite:            128 * 1024,
	}, resp)

	require.Equal(t, StateActive, s.State())
	require.Equal(t, fuse.Version{Major: 7, Minor: 19}, s.Version())
	require.Equal(t, fuse.InitAsyncRead|fuse.InitBigWrites, s.Flags())
	require.Equal(t, int32(1), h.inits.Load())
}

func TestSession_NegotiatedValuesDuringHandshake(t *testing.T) {
	s, k, _ := newTestSession(t, &testHandler{}, nil)

	require.Equal(t, fuse.Version{}, s.Version())
	require.Equal(t, fuse.InitFlags(0), s.Flags())

	// Poll the accessors while the handshake runs; the race detector flags
	// unsynchronized access.
	stop := make(chan struct{})
	polled := make(chan struct{})
	go func() {
		defer close(polled)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if v := s.Version(); v != (fuse.Version{}) {
				assert.Equal(t, fuse.MaxVersion, v)
			}
			_ = s.Flags()
		}
	}()

	k.init(fuse.MaxVersion, fuse.InitAsyncRead)
	close(stop)
	<-polled

	require.Equal(t, StateActive, s.State())
	require.Equal(t, fuse.MaxVersion, s.Version())
	require.Equal(t, fuse.InitAsyncRead, s.Flags())
}

func TestSession_Handshake_OlderKernel(t *testing.T) {
	s, k, _ := newTestSession(t, &testHandler{}, nil)

	resp := k.init(fuse.Version{Major: 7, Minor: 12}, fuse.InitAsyncRead)
	require.Equal(t, fuse.Version{Major: 7, Minor: 12}, resp.Version)
	require.Equal(t, fuse.InitAsyncRead, resp.Flags)
	require.Zero(t, resp.MaxBackground, "background limits need 7.13")
	require.Equal(t, fuse.Version{Major: 7, Minor: 12}, s.Version())
}

func TestSession_Handshake_NewerMajor(t *testing.T) {
	s, k, _ := newTestSession(t, &testHandler{}, nil)

	resp := k.init(fuse.Version{Major: 8, Minor: 0}, fuse.InitAsyncRead)
	require.Equal(t, fuse.Version{Major: 7, Minor: 19}, resp.Version)
	require.Equal(t, StateNegotiating, s.State(), "session must wait for the kernel to downgrade")

	resp = k.init(fuse.Version{Major: 7, Minor: 31}, fuse.InitAsyncRead)
	require.Equal(t, fuse.Version{Major: 7, Minor: 19}, resp.Version)
	require.Equal(t, StateActive, s.State())
}

func TestSession_Handshake_Incompatible(t *testing.T) {
	h := &testHandler{}
	s, k, errc := newTestSession(t, h, nil)

	k.send(fuse.OpInit, 0, &fuse.InitRequest{LatestVersion: fuse.Version{Major: 7, Minor: 8}})
	hdr, _ := k.recv()
	require.Equal(t, fuse.ErrorProtocol, hdr.Error)

	require.ErrorIs(t, waitServe(t, errc), fuse.ErrIncompatibleVersion)
	require.Equal(t, StateClosed, s.State())
	require.Equal(t, int32(1), k.dev.closes.Load())
	require.Equal(t, int32(1), h.closes.Load())
}

func TestSession_Handshake_Malformed(t *testing.T) {
	h := &testHandler{}
	s, k, errc := newTestSession(t, h, nil)

	// Cut init_in short of the version fields and fix up the declared length
	// so only the payload is bad.
	frame, _ := k.encode(fuse.OpInit, 0, &fuse.InitRequest{LatestVersion: fuse.MaxVersion})
	frame = frame[:40+4]
	*(*uint32)(unsafe.Pointer(&frame[0])) = uint32(len(frame))
	k.sendFrame(frame)

	hdr, _ := k.recv()
	require.Equal(t, fuse.ErrorProtocol, hdr.Error)

	require.ErrorIs(t, waitServe(t, errc), wire.ErrInsufficientData)
	require.Equal(t, StateClosed, s.State())
	require.Equal(t, int32(1), k.dev.closes.Load())
	require.Equal(t, int32(0), h.inits.Load(), "handler must not be initialized")
}

func TestSession_Handshake_HandlerFails(t *testing.T) {
	h := &testHandler{initErr: os.ErrPermission}
	s, k, errc := newTestSession(t, h, nil)

	k.send(fuse.OpInit, 0, &fuse.InitRequest{LatestVersion: fuse.MaxVersion})
	hdr, _ := k.recv()
	require.Equal(t, fuse.ErrorIO, hdr.Error)

	require.ErrorIs(t, waitServe(t, errc), os.ErrPermission)
	require.Equal(t, StateClosed, s.State())
}

func TestSession_RequestBeforeInit(t *testing.T) {
	s, k, _ := newTestSession(t, &testHandler{}, nil)

	k.send(fuse.OpLookup, fuse.RootNode, &fuse.LookupRequest{Name: "hello"})
	hdr, _ := k.recv()
	require.Equal(t, fuse.ErrorIO, hdr.Error)
	require.Equal(t, StateNegotiating, s.State())
}

func TestSession_SecondInit(t *testing.T) {
	s, k, _ := newTestSession(t, &testHandler{}, nil)
	k.init(fuse.MaxVersion, 0)

	k.send(fuse.OpInit, 0, &fuse.InitRequest{LatestVersion: fuse.MaxVersion})
	hdr, _ := k.recv()
	require.Equal(t, fuse.ErrorIO, hdr.Error)
	require.Equal(t, StateActive, s.State())
}

func TestSession_Lookup(t *testing.T) {
	var seen fuse.RequestHeader
	h := &testHandler{
		lookup: func(_ context.Context, hdr *fuse.RequestHeader, req *fuse.LookupRequest) (*fuse.EntryResponse, error) {
			seen = *hdr
			if req.Name != "hello" {
				return nil, fuse.ErrorNotExist
			}
			return &fuse.EntryResponse{Entry: fuse.Entry{
				Node:     2,
				EntryTTL: time.Second,
				Attrib:   fuse.Attrib{Inode: 2, Size: 5, Mode: 0644},
			}}, nil
		},
	}
	_, k, _ := newTestSession(t, h, nil)
	k.init(fuse.MaxVersion, 0)

	id := k.send(fuse.OpLookup, fuse.RootNode, &fuse.LookupRequest{Name: "hello"})
	hdr, resp := k.recv()
	require.Equal(t, fuse.ResponseHeader{Op: fuse.OpLookup, RequestID: id}, hdr)
	require.Equal(t, fuse.Node(2), resp.(*fuse.EntryResponse).Entry.Node)
	require.Equal(t, uint64(5), resp.(*fuse.EntryResponse).Entry.Attrib.Size)

	require.Equal(t, fuse.RootNode, seen.Node)
	require.Equal(t, id, seen.RequestID)
	require.Equal(t, uint32(1000), seen.UID)

	k.send(fuse.OpLookup, fuse.RootNode, &fuse.LookupRequest{Name: "missing"})
	hdr, resp = k.recv()
	require.Equal(t, fuse.ErrorNotExist, hdr.Error)
	require.Nil(t, resp)
}

func TestSession_EmptyResponse(t *testing.T) {
	h := &testHandler{
		lookup: func(context.Context, *fuse.RequestHeader, *fuse.LookupRequest) (*fuse.EntryResponse, error) {
			return nil, nil
		},
	}
	_, k, _ := newTestSession(t, h, nil)
	k.init(fuse.MaxVersion, 0)

	k.send(fuse.OpLookup, fuse.RootNode, &fuse.LookupRequest{Name: "hello"})
	hdr, _ := k.recv()
	require.Equal(t, fuse.ErrorIO, hdr.Error)
}

func TestSession_Unimplemented(t *testing.T) {
	_, k, _ := newTestSession(t, &testHandler{}, nil)
	k.init(fuse.MaxVersion, 0)

	t.Run("unknown opcode", func(t *testing.T) {
		frame, id := k.encode(fuse.OpStatfs, fuse.RootNode, nil)
		*(*uint32)(unsafe.Pointer(&frame[4])) = 9000
		k.sendFrame(frame)

		hdr, _ := k.recv()
		require.Equal(t, id, hdr.RequestID)
		require.Equal(t, fuse.ErrorUnimplemented, hdr.Error)
	})

	t.Run("opcode without handler", func(t *testing.T) {
		k.send(fuse.OpIoctl, fuse.RootNode, nil)
		hdr, _ := k.recv()
		require.Equal(t, fuse.ErrorUnimplemented, hdr.Error)
	})

	t.Run("unimplemented handler method", func(t *testing.T) {
		k.send(fuse.OpStatfs, fuse.RootNode, nil)
		hdr, _ := k.recv()
		require.Equal(t, fuse.ErrorUnimplemented, hdr.Error)
	})
}

func TestSession_Forget(t *testing.T) {
	forgotten := make(chan uint64, 1)
	h := &testHandler{
		forget: func(_ context.Context, _ *fuse.RequestHeader, req *fuse.ForgetRequest) {
			forgotten <- req.NumLookups
		},
	}
	_, k, _ := newTestSession(t, h, nil)
	k.init(fuse.MaxVersion, 0)

	k.send(fuse.OpForget, 2, &fuse.ForgetRequest{NumLookups: 3})
	require.Equal(t, uint64(3), <-forgotten)

	// FORGET is never answered; the next frame must be the STATFS reply.
	id := k.send(fuse.OpStatfs, fuse.RootNode, nil)
	hdr, _ := k.recv()
	require.Equal(t, id, hdr.RequestID)
}

func TestSession_Interrupt(t *testing.T) {
	started := make(chan struct{})
	h := &testHandler{
		read: func(ctx context.Context, _ *fuse.RequestHeader, _ *fuse.ReadRequest) (*fuse.ReadResponse, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	s, k, _ := newTestSession(t, h, func(o *Options) {
		o.Registerer = prometheus.NewRegistry()
	})
	k.init(fuse.MaxVersion, 0)

	// Interrupting a request which isn't in flight is a no-op.
	k.send(fuse.OpInterrupt, 0, &fuse.InterruptRequest{RequestID: 999})

	id := k.send(fuse.OpRead, 2, &fuse.ReadRequest{Handle: 1, Size: 4096})
	<-started
	k.send(fuse.OpInterrupt, 0, &fuse.InterruptRequest{RequestID: id})

	hdr, _ := k.recv()
	require.Equal(t, id, hdr.RequestID)
	require.Equal(t, fuse.ErrorInterrupted, hdr.Error)
	require.Equal(t, float64(1), testutil.ToFloat64(s.metrics.interrupts))
	require.Equal(t, 0, s.registry.Len())
}

func TestSession_RequestTimeout(t *testing.T) {
	h := &testHandler{
		read: func(ctx context.Context, _ *fuse.RequestHeader, _ *fuse.ReadRequest) (*fuse.ReadResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	_, k, _ := newTestSession(t, h, func(o *Options) {
		o.RequestTimeout = 20 * time.Millisecond
	})
	k.init(fuse.MaxVersion, 0)

	k.send(fuse.OpRead, 2, &fuse.ReadRequest{Handle: 1, Size: 4096})
	hdr, _ := k.recv()
	require.Equal(t, fuse.ErrorAborted, hdr.Error)
}

func TestSession_DuplicateID(t *testing.T) {
	h := &testHandler{
		read: func(ctx context.Context, _ *fuse.RequestHeader, _ *fuse.ReadRequest) (*fuse.ReadResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	s, k, errc := newTestSession(t, h, func(o *Options) {
		o.DrainTimeout = 50 * time.Millisecond
	})
	k.init(fuse.MaxVersion, 0)

	k.sendID(5, fuse.OpRead, 2, &fuse.ReadRequest{Handle: 1, Size: 4096})
	k.sendID(5, fuse.OpRead, 2, &fuse.ReadRequest{Handle: 1, Size: 4096})

	require.ErrorIs(t, waitServe(t, errc), ErrProtocolDesync)
	require.Equal(t, StateClosed, s.State())
}

func TestSession_FrameLengthMismatch(t *testing.T) {
	_, k, errc := newTestSession(t, &testHandler{}, nil)
	k.init(fuse.MaxVersion, 0)

	frame, _ := k.encode(fuse.OpStatfs, fuse.RootNode, nil)
	k.sendFrame(append(frame, 0, 0, 0, 0))

	require.ErrorIs(t, waitServe(t, errc), ErrProtocolDesync)
}

func TestSession_Destroy(t *testing.T) {
	var (
		started = make(chan struct{})
		release = make(chan struct{})
	)
	h := &testHandler{
		read: func(context.Context, *fuse.RequestHeader, *fuse.ReadRequest) (*fuse.ReadResponse, error) {
			close(started)
			<-release
			return &fuse.ReadResponse{Data: []byte("hello")}, nil
		},
	}
	s, k, errc := newTestSession(t, h, nil)
	k.init(fuse.MaxVersion, 0)

	readID := k.send(fuse.OpRead, 2, &fuse.ReadRequest{Handle: 1, Size: 4096})
	<-started
	destroyID := k.send(fuse.OpDestroy, 0, nil)

	// New requests are rejected while the session drains.
	lookupID := k.send(fuse.OpLookup, fuse.RootNode, &fuse.LookupRequest{Name: "hello"})
	hdr, _ := k.recv()
	require.Equal(t, lookupID, hdr.RequestID)
	require.Equal(t, fuse.ErrorIO, hdr.Error)
	require.Equal(t, StateDraining, s.State())

	close(release)

	hdr, resp := k.recv()
	require.Equal(t, readID, hdr.RequestID)
	require.Equal(t, []byte("hello"), resp.(*fuse.ReadResponse).Data)

	hdr, _ = k.recv()
	require.Equal(t, fuse.ResponseHeader{Op: fuse.OpDestroy, RequestID: destroyID}, hdr)

	require.NoError(t, waitServe(t, errc))
	require.Equal(t, StateClosed, s.State())
	require.Equal(t, int32(1), k.dev.closes.Load())
	require.Equal(t, int32(1), h.closes.Load())
}

func TestSession_Shutdown(t *testing.T) {
	var (
		started = make(chan struct{}, 2)
		release = make(chan struct{})
	)
	h := &testHandler{
		read: func(context.Context, *fuse.RequestHeader, *fuse.ReadRequest) (*fuse.ReadResponse, error) {
			started <- struct{}{}
			<-release
			return &fuse.ReadResponse{Data: []byte("hello")}, nil
		},
	}
	s, k, errc := newTestSession(t, h, nil)
	k.init(fuse.MaxVersion, 0)

	k.send(fuse.OpRead, 2, &fuse.ReadRequest{Handle: 1, Size: 4096})
	k.send(fuse.OpRead, 3, &fuse.ReadRequest{Handle: 2, Size: 4096})
	<-started
	<-started

	shutdown := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdown <- s.Shutdown(ctx)
	}()
	require.Eventually(t, func() bool {
		return s.State() == StateDraining
	}, 5*time.Second, time.Millisecond)

	k.send(fuse.OpStatfs, fuse.RootNode, nil)
	hdr, _ := k.recv()
	require.Equal(t, fuse.ErrorIO, hdr.Error)

	close(release)
	for i := 0; i < 2; i++ {
		hdr, _ := k.recv()
		require.Zero(t, hdr.Error)
	}

	require.NoError(t, <-shutdown)
	require.NoError(t, waitServe(t, errc))
	require.Equal(t, StateClosed, s.State())
	require.Equal(t, int32(1), k.dev.closes.Load())
}

func TestSession_Shutdown_Timeout(t *testing.T) {
	started := make(chan struct{})
	h := &testHandler{
		read: func(ctx context.Context, _ *fuse.RequestHeader, _ *fuse.ReadRequest) (*fuse.ReadResponse, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	s, k, errc := newTestSession(t, h, nil)
	k.init(fuse.MaxVersion, 0)

	k.send(fuse.OpRead, 2, &fuse.ReadRequest{Handle: 1, Size: 4096})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Shutdown(ctx), context.DeadlineExceeded)
	require.Equal(t, StateClosed, s.State())
	require.Equal(t, 0, s.registry.Len())

	require.NoError(t, waitServe(t, errc))
}

func TestSession_ServeContextCanceled(t *testing.T) {
	dev := newFakeDevice()
	o := DefaultOptions
	o.Device = dev
	o.Handler = &testHandler{}
	s, err := New(log.NewNopLogger(), o)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx) }()

	cancel()
	require.NoError(t, waitServe(t, errc))
	require.Equal(t, StateClosed, s.State())
	require.Error(t, s.Serve(context.Background()), "sessions can only be served once")
}

func TestSession_Close(t *testing.T) {
	h := &testHandler{}
	s, k, errc := newTestSession(t, h, nil)
	k.init(fuse.MaxVersion, 0)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.NoError(t, waitServe(t, errc))

	require.Equal(t, StateClosed, s.State())
	require.Equal(t, int32(1), k.dev.closes.Load())
	require.Equal(t, int32(1), h.closes.Load())
}

func TestSession_Notify(t *testing.T) {
	t.Run("not active", func(t *testing.T) {
		s, _, _ := newTestSession(t, &testHandler{}, nil)
		require.ErrorIs(t, s.InvalidateEntry(fuse.RootNode, "hello"), ErrNotActive)
	})

	t.Run("active", func(t *testing.T) {
		s, k, _ := newTestSession(t, &testHandler{}, nil)
		k.init(fuse.MaxVersion, 0)

		require.NoError(t, s.InvalidateEntry(fuse.RootNode, "hello"))
		require.Equal(t, &fuse.InvalidateEntryNotification{Parent: fuse.RootNode, Name: "hello"}, k.recvNotify())

		require.NoError(t, s.InvalidateNode(2, 0, -1))
		require.Equal(t, &fuse.InvalidateNodeNotification{Node: 2, Offset: 0, Length: -1}, k.recvNotify())

		require.NoError(t, s.NotifyDelete(fuse.RootNode, 2, "hello"))
		require.Equal(t, &fuse.DeleteNotification{Parent: fuse.RootNode, Child: 2, Name: "hello"}, k.recvNotify())
	})

	t.Run("old kernel", func(t *testing.T) {
		s, k, _ := newTestSession(t, &testHandler{}, nil)
		k.init(fuse.Version{Major: 7, Minor: 11}, 0)

		require.ErrorIs(t, s.InvalidateNode(2, 0, 0), wire.ErrUnsupportedField)
		require.ErrorIs(t, s.NotifyDelete(fuse.RootNode, 2, "hello"), wire.ErrUnsupportedField)
	})
}

func TestSession_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := &testHandler{
		lookup: func(_ context.Context, _ *fuse.RequestHeader, req *fuse.LookupRequest) (*fuse.EntryResponse, error) {
			if req.Name != "hello" {
				return nil, fuse.ErrorNotExist
			}
			return &fuse.EntryResponse{Entry: fuse.Entry{Node: 2}}, nil
		},
	}
	s, k, _ := newTestSession(t, h, func(o *Options) { o.Registerer = reg })
	k.init(fuse.MaxVersion, 0)

	k.send(fuse.OpLookup, fuse.RootNode, &fuse.LookupRequest{Name: "hello"})
	k.recv()
	k.send(fuse.OpLookup, fuse.RootNode, &fuse.LookupRequest{Name: "missing"})
	k.recv()

	frame, _ := k.encode(fuse.OpStatfs, fuse.RootNode, nil)
	*(*uint32)(unsafe.Pointer(&frame[4])) = 9000
	k.sendFrame(frame)
	k.recv()

	require.Equal(t, float64(2), testutil.ToFloat64(s.metrics.requests.WithLabelValues("LOOKUP")))
	require.Equal(t, float64(1), testutil.ToFloat64(s.metrics.failures.WithLabelValues("LOOKUP")))
	require.Equal(t, float64(1), testutil.ToFloat64(s.metrics.decodeErrors.WithLabelValues("unknown_op")))

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	require.Contains(t, names, "asyncfuse_session_inflight_requests")
	require.Contains(t, names, "asyncfuse_session_request_duration_seconds")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, Options{Device: newFakeDevice()})
	require.Error(t, err)

	_, err = New(nil, Options{Handler: &testHandler{}})
	require.Error(t, err)

	_, err = New(nil, Options{
		Device:   newFakeDevice(),
		Handler:  &testHandler{},
		Versions: fuse.VersionRange{Min: fuse.Version{Major: 7, Minor: 5}, Max: fuse.MaxVersion},
	})
	require.Error(t, err)

	s, err := New(nil, Options{Device: newFakeDevice(), Handler: &testHandler{}})
	require.NoError(t, err)
	require.NotEmpty(t, s.ID())
	require.Equal(t, fuse.SupportedVersions, s.o.Versions)
	require.Equal(t, uint16(48), s.o.CongestionThreshold)
}

// newTestSession serves a session over a fake device. mod may be used to
// change options before the session is created.
func newTestSession(t *testing.T, h Handler, mod func(o *Options)) (*Session, *testKernel, <-chan error) {
	t.Helper()

	dev := newFakeDevice()

	o := DefaultOptions
	o.Device = dev
	o.Handler = h
	o.DrainTimeout = 5 * time.Second
	if mod != nil {
		mod(&o)
	}

	s, err := New(log.NewNopLogger(), o)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() { errc <- s.Serve(context.Background()) }()
	t.Cleanup(func() { _ = s.Close() })

	codec, err := wire.NewCodec(fuse.MinVersion)
	require.NoError(t, err)

	return s, &testKernel{t: t, dev: dev, codec: codec, sent: make(map[uint64]sentRequest)}, errc
}

func waitServe(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		require.FailNow(t, "Serve never returned")
		return nil
	}
}

// fakeDevice is an in-memory fuse.Device.
type fakeDevice struct {
	in  chan []byte
	out chan []byte

	closed    chan struct{}
	closeOnce sync.Once
	closes    atomic.Int32
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		in:     make(chan []byte),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	select {
	case frame := <-d.in:
		return copy(p, frame), nil
	case <-d.closed:
		return 0, io.EOF
	}
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	select {
	case <-d.closed:
		return 0, os.ErrClosed
	default:
	}
	d.out <- append([]byte(nil), p...)
	return len(p), nil
}

func (d *fakeDevice) Close() error {
	d.closes.Inc()
	d.closeOnce.Do(func() { close(d.closed) })
	return nil
}

type sentRequest struct {
	op  fuse.Op
	req fuse.Request
}

// testKernel plays the kernel's side of a fakeDevice.
type testKernel struct {
	t      *testing.T
	dev    *fakeDevice
	codec  *wire.Codec
	nextID uint64
	sent   map[uint64]sentRequest
}

// init performs the INIT handshake, switching the kernel to the negotiated
// version once it's accepted.
func (k *testKernel) init(v fuse.Version, flags fuse.InitFlags) *fuse.InitResponse {
	k.t.Helper()

	id := k.send(fuse.OpInit, 0, &fuse.InitRequest{LatestVersion: v, MaxReadahead: 128 * 1024, Flags: flags})
	hdr, resp := k.recv()
	require.Equal(k.t, fuse.ResponseHeader{Op: fuse.OpInit, RequestID: id}, hdr)

	ir := resp.(*fuse.InitResponse)
	if ir.Version.Major == v.Major {
		codec, err := wire.NewCodec(ir.Version)
		require.NoError(k.t, err)
		k.codec = codec
	}
	return ir
}

func (k *testKernel) encode(op fuse.Op, node fuse.Node, req fuse.Request) ([]byte, uint64) {
	k.t.Helper()

	k.nextID++
	id := k.nextID

	frame, err := k.codec.EncodeRequest(fuse.RequestHeader{Op: op, RequestID: id, Node: node, UID: 1000, GID: 1000, PID: 42}, req)
	require.NoError(k.t, err)
	k.sent[id] = sentRequest{op: op, req: req}
	return frame, id
}

func (k *testKernel) send(op fuse.Op, node fuse.Node, req fuse.Request) uint64 {
	k.t.Helper()
	frame, id := k.encode(op, node, req)
	k.sendFrame(frame)
	return id
}

func (k *testKernel) sendID(id uint64, op fuse.Op, node fuse.Node, req fuse.Request) {
	k.t.Helper()

	frame, err := k.codec.EncodeRequest(fuse.RequestHeader{Op: op, RequestID: id, Node: node}, req)
	require.NoError(k.t, err)
	k.sent[id] = sentRequest{op: op, req: req}
	k.sendFrame(frame)
}

func (k *testKernel) sendFrame(frame []byte) {
	k.t.Helper()
	select {
	case k.dev.in <- frame:
	case <-time.After(5 * time.Second):
		require.FailNow(k.t, "session never read frame")
	}
}

func (k *testKernel) recvFrame() []byte {
	k.t.Helper()
	select {
	case frame := <-k.dev.out:
		return frame
	case <-time.After(5 * time.Second):
		require.FailNow(k.t, "no frame written by session")
		return nil
	}
}

func (k *testKernel) recv() (fuse.ResponseHeader, fuse.Response) {
	k.t.Helper()

	frame := k.recvFrame()
	require.GreaterOrEqual(k.t, len(frame), 16)
	id := *(*uint64)(unsafe.Pointer(&frame[8]))

	sent, ok := k.sent[id]
	require.True(k.t, ok, "response for unknown request %d", id)
	delete(k.sent, id)

	hdr, resp, err := k.codec.DecodeResponse(sent.op, sent.req, frame)
	require.NoError(k.t, err)
	return hdr, resp
}

func (k *testKernel) recvNotify() fuse.Notification {
	k.t.Helper()

	n, err := k.codec.DecodeNotify(k.recvFrame())
	require.NoError(k.t, err)
	return n
}

// testHandler runs the func set for an op, falling back to
// UnimplementedHandler.
type testHandler struct {
	UnimplementedHandler

	initErr error
	inits   atomic.Int32
	closes  atomic.Int32

	lookup func(context.Context, *fuse.RequestHeader, *fuse.LookupRequest) (*fuse.EntryResponse, error)
	forget func(context.Context, *fuse.RequestHeader, *fuse.ForgetRequest)
	read   func(context.Context, *fuse.RequestHeader, *fuse.ReadRequest) (*fuse.ReadResponse, error)
}

func (h *testHandler) Init(context.Context) error {
	h.inits.Inc()
	return h.initErr
}

func (h *testHandler) Close() error {
	h.closes.Inc()
	return nil
}

func (h *testHandler) Lookup(ctx context.Context, hdr *fuse.RequestHeader, req *fuse.LookupRequest) (*fuse.EntryResponse, error) {
	if h.lookup == nil {
		return h.UnimplementedHandler.Lookup(ctx, hdr, req)
	}
	return h.lookup(ctx, hdr, req)
}

func (h *testHandler) Forget(ctx context.Context, hdr *fuse.RequestHeader, req *fuse.ForgetRequest) {
	if h.forget != nil {
		h.forget(ctx, hdr, req)
	}
}

func (h *testHandler) Read(ctx context.Context, hdr *fuse.RequestHeader, req *fuse.ReadRequest) (*fuse.ReadResponse, error) {
	if h.read == nil {
		return h.UnimplementedHandler.Read(ctx, hdr, req)
	}
	return h.read(ctx, hdr, req)
}
