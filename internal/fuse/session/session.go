// Package session serves a FUSE filesystem over a fuse.Device.
//
// A Session owns a device for its whole lifetime. It reads request frames
// from the device one at a time, decodes them with a codec selected during
// the INIT handshake, and runs each request on its own goroutine. Responses
// are written back as handlers finish, in completion order.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rfratto/asyncfuse/internal/fuse"
	"github.com/rfratto/asyncfuse/internal/fuse/wire"
	uuid "github.com/satori/go.uuid"
	"go.uber.org/atomic"
)

// Options configure a Session.
type Options struct {
	// Device to serve. The Session takes ownership of the Device after
	// passing to New; do not close directly.
	Device fuse.Device

	// Handler is used for handling individual requests.
	Handler Handler

	// Optional middleware to preprocess requests with.
	Middleware []Middleware

	// RequestTimeout will force a request to abort after a given amount of
	// time. 0 means to never time out.
	RequestTimeout time.Duration

	// MaxWrite is the largest write the kernel may send in one request.
	// Linux caps this at 128KiB.
	MaxWrite uint32

	// MaxBackground and CongestionThreshold limit how many background
	// requests the kernel queues for the session. They are only sent to
	// kernels speaking 7.13 or newer. CongestionThreshold defaults to 3/4 of
	// MaxBackground.
	MaxBackground       uint16
	CongestionThreshold uint16

	// RequestedFlags are the capabilities to enable if the kernel offers
	// them. Flags the package doesn't support are never enabled.
	RequestedFlags fuse.InitFlags

	// Versions is the range of protocol versions to accept. It must be within
	// fuse.SupportedVersions.
	Versions fuse.VersionRange

	// DrainTimeout bounds how long in-flight requests are waited on when the
	// session shuts down on its own (unmount, DESTROY, or a canceled Serve
	// context). Requests still running afterwards are abandoned.
	DrainTimeout time.Duration

	// Registerer to register session metrics with. Metrics are not registered
	// when nil.
	Registerer prometheus.Registerer
}

// DefaultOptions provides defaults for Session.
var DefaultOptions = Options{
	MaxWrite:            128 * 1024,
	MaxBackground:       64,
	CongestionThreshold: 48,
	RequestedFlags:      fuse.InitAsyncRead | fuse.InitBigWrites,
	Versions:            fuse.SupportedVersions,
	DrainTimeout:        30 * time.Second,
}

// Session serves a Handler over a Device.
type Session struct {
	id  string
	log log.Logger
	o   Options

	mw       Middleware
	invoker  Invoker
	registry *Registry
	metrics  *metrics
	bufs     sync.Pool

	// ctx is the parent of every request context. It is canceled when the
	// device is released.
	ctx    context.Context
	cancel context.CancelFunc

	// mut orders request admission against leaving StateActive. Admission
	// holds it for reading; state transitions hold it for writing.
	mut   sync.RWMutex
	state atomic.Uint32

	// Set by the handshake under mut as the session becomes active, and
	// never modified afterwards. The read loop and admitted requests may
	// read them without locking.
	codec   *wire.Codec
	version fuse.Version
	flags   fuse.InitFlags

	// wmut serializes writes to the device.
	wmut sync.Mutex

	serving  atomic.Bool
	handlers sync.WaitGroup

	releaseOnce sync.Once
}

// New creates a new Session. Call Serve to start serving requests.
func New(l log.Logger, o Options) (*Session, error) {
	if o.Handler == nil {
		return nil, fmt.Errorf("Handler must be set")
	}
	if o.Device == nil {
		return nil, fmt.Errorf("Device must be set")
	}
	if o.MaxWrite == 0 {
		o.MaxWrite = DefaultOptions.MaxWrite
	}
	if o.MaxBackground == 0 {
		o.MaxBackground = DefaultOptions.MaxBackground
	}
	if o.CongestionThreshold == 0 {
		o.CongestionThreshold = o.MaxBackground * 3 / 4
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = DefaultOptions.DrainTimeout
	}
	if o.Versions == (fuse.VersionRange{}) {
		o.Versions = DefaultOptions.Versions
	}
	if !o.Versions.Valid() || !fuse.SupportedVersions.Contains(o.Versions.Min) || !fuse.SupportedVersions.Contains(o.Versions.Max) {
		return nil, fmt.Errorf("versions %s must be within %s", o.Versions, fuse.SupportedVersions)
	}

	// The handshake only needs INIT, which every version decodes the same
	// way.
	codec, err := wire.NewCodec(o.Versions.Min)
	if err != nil {
		return nil, err
	}

	id := uuid.NewV4().String()
	if l == nil {
		l = log.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:  id,
		log: log.With(l, "session", id),
		o:   o,

		mw:       chainMiddleware(o.Middleware),
		invoker:  handlerInvoker(o.Handler),
		registry: NewRegistry(),

		ctx:    ctx,
		cancel: cancel,
		codec:  codec,
	}
	s.metrics = newMetrics(o.Registerer, s.registry)

	// Requests are at most one write of MaxWrite bytes plus its headers.
	bufSize := int(o.MaxWrite) + syscall.Getpagesize()
	s.bufs.New = func() interface{} {
		buf := make([]byte, bufSize)
		return &buf
	}
	return s, nil
}

// ID returns the unique ID of the session.
func (s *Session) ID() string { return s.id }

// State returns the current state of the session.
func (s *Session) State() State { return State(s.state.Load()) }

// Version returns the negotiated protocol version. It returns the zero
// Version until the session has become active.
func (s *Session) Version() fuse.Version {
	s.mut.RLock()
	defer s.mut.RUnlock()
	return s.version
}

// Flags returns the negotiated capabilities. It returns 0 until the session
// has become active.
func (s *Session) Flags() fuse.InitFlags {
	s.mut.RLock()
	defer s.mut.RUnlock()
	return s.flags
}

// Serve reads and dispatches requests until the device goes away, the kernel
// tears down the session, or a fatal error occurs. Canceling ctx shuts the
// session down gracefully, waiting up to Options.DrainTimeout for in-flight
// requests.
//
// Serve returns nil if the session ended normally. The device is always
// released by the time Serve returns. Serve may only be called once.
func (s *Session) Serve(ctx context.Context) error {
	if !s.serving.CAS(false, true) {
		return fmt.Errorf("session is already being served")
	}
	level.Info(s.log).Log("msg", "serving session")

	// Reading from the device isn't cancelable. Canceling ctx releases the
	// device instead, which unblocks the read loop.
	stop := make(chan struct{})
	var watcher sync.WaitGroup
	watcher.Add(1)
	go func() {
		defer watcher.Done()
		select {
		case <-stop:
		case <-ctx.Done():
			level.Info(s.log).Log("msg", "context canceled, shutting down session")
			if err := s.shutdownWithTimeout(); err != nil {
				level.Warn(s.log).Log("msg", "session did not shut down cleanly", "err", err)
			}
		}
	}()

	err := s.readLoop()

	close(stop)
	watcher.Wait()

	if serr := s.shutdownWithTimeout(); serr != nil {
		level.Warn(s.log).Log("msg", "session did not shut down cleanly", "err", serr)
	}
	s.handlers.Wait()

	level.Info(s.log).Log("msg", "session closed", "err", err)
	return err
}

func (s *Session) readLoop() error {
	for {
		bufp := s.bufs.Get().(*[]byte)
		n, err := s.o.Device.Read(*bufp)
		if err != nil {
			s.bufs.Put(bufp)
			if fuse.IsDeviceGone(err) {
				level.Debug(s.log).Log("msg", "device is gone, stopping read loop", "err", err)
				return nil
			}
			level.Error(s.log).Log("msg", "failed to read from device", "err", err)
			return fmt.Errorf("reading from device: %w", err)
		}

		// Decoded requests never reference the buffer, so it can be reused as
		// soon as dispatch returns.
		err = s.dispatch((*bufp)[:n])
		s.bufs.Put(bufp)
		if err != nil {
			level.Error(s.log).Log("msg", "stopping session", "err", err)
			return err
		}
	}
}

// dispatch handles a single frame from the kernel. Errors returned by
// dispatch are fatal to the session.
func (s *Session) dispatch(frame []byte) error {
	hdr, req, err := s.codec.DecodeRequest(frame)
	if err != nil {
		return s.handleDecodeError(err)
	}

	switch st := s.State(); {
	case st == StateNegotiating && hdr.Op == fuse.OpInit:
		init, _ := req.(*fuse.InitRequest)
		return s.handshake(hdr, init)
	case st == StateActive && hdr.Op == fuse.OpDestroy:
		s.destroy(hdr)
		return nil
	}
	return s.admit(hdr, req)
}

func (s *Session) handleDecodeError(err error) error {
	s.metrics.observeDecodeError(err)

	if errors.Is(err, wire.ErrFrameLength) {
		return fmt.Errorf("%w: %v", ErrProtocolDesync, err)
	}

	var fe *wire.FrameError
	if !errors.As(err, &fe) || fe.Header == nil {
		level.Warn(s.log).Log("msg", "dropping frame without a readable header", "err", err)
		return nil
	}

	level.Warn(s.log).Log("msg", "failed to decode request", "op", fe.Header.Op, "id", fe.Header.RequestID, "err", err)

	// A session that can't read INIT never becomes active.
	if fe.Header.Op == fuse.OpInit && s.State() == StateNegotiating {
		s.replyError(*fe.Header, fuse.ErrorProtocol)
		return s.failHandshake(fmt.Errorf("handshake failed: %w", err))
	}

	errno := fuse.ErrorIO
	if errors.Is(err, wire.ErrMalformedHeader) {
		errno = fuse.ErrorUnimplemented
	}
	s.replyError(*fe.Header, errno)
	return nil
}

// admit registers a request and starts its handler.
func (s *Session) admit(hdr fuse.RequestHeader, req fuse.Request) error {
	s.mut.RLock()
	defer s.mut.RUnlock()

	st := s.State()

	// Interrupts are still delivered while draining so requests being waited
	// on can be canceled.
	if hdr.Op == fuse.OpInterrupt && (st == StateActive || st == StateDraining) {
		s.interrupt(req)
		return nil
	}

	if st != StateActive {
		level.Debug(s.log).Log("msg", "rejecting request", "op", hdr.Op, "id", hdr.RequestID, "state", st)
		s.replyError(hdr, fuse.ErrorIO)
		return nil
	}

	switch hdr.Op {
	case fuse.OpInit:
		level.Warn(s.log).Log("msg", "rejecting INIT after handshake completed", "id", hdr.RequestID)
		s.replyError(hdr, fuse.ErrorIO)
		return nil
	case fuse.OpNotifyReply:
		// Retrieve notifications are never sent, so there's nothing to
		// match the reply with.
		level.Debug(s.log).Log("msg", "ignoring notify reply", "id", hdr.RequestID)
		return nil
	}

	ent, err := s.registry.Register(s.ctx, hdr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolDesync, err)
	}

	s.handlers.Add(1)
	go s.handle(ent, hdr, req)
	return nil
}

func (s *Session) interrupt(req fuse.Request) {
	ir, _ := req.(*fuse.InterruptRequest)
	if ir == nil {
		return
	}
	if !s.registry.Interrupt(ir.RequestID) {
		level.Debug(s.log).Log("msg", "ignoring interrupt for request which isn't in flight", "target", ir.RequestID)
		return
	}
	s.metrics.interrupts.Inc()
	level.Debug(s.log).Log("msg", "interrupted request", "target", ir.RequestID)
}

func (s *Session) handle(ent *Entry, hdr fuse.RequestHeader, req fuse.Request) {
	defer s.handlers.Done()

	ctx := ent.Context()
	if s.o.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.o.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.mw.HandleRequest(ctx, &hdr, req, s.invoker)
	errno := errorForResponse(err)
	s.metrics.observeRequest(hdr.Op, time.Since(start), errno)

	if hdr.Op.NoReply() {
		s.registry.Complete(hdr.RequestID)
		return
	}
	if errno != 0 {
		level.Debug(s.log).Log("msg", "request failed", "op", hdr.Op, "id", hdr.RequestID, "interrupted", ent.Interrupted(), "err", err)
		resp = nil
	}
	s.reply(fuse.ResponseHeader{Op: hdr.Op, RequestID: hdr.RequestID, Error: errno}, resp, ent)
}

// replyError answers a request which was never admitted.
func (s *Session) replyError(hdr fuse.RequestHeader, errno fuse.Error) {
	if hdr.Op.NoReply() {
		return
	}
	s.reply(fuse.ResponseHeader{Op: hdr.Op, RequestID: hdr.RequestID, Error: errno}, nil, nil)
}

// reply encodes and writes a response. ent is released from the registry
// when non-nil. Responses which fail to encode are answered with EIO instead.
func (s *Session) reply(h fuse.ResponseHeader, resp fuse.Response, ent *Entry) {
	frame, err := s.codec.EncodeResponse(h, resp)
	if err != nil {
		level.Error(s.log).Log("msg", "failed to encode response", "op", h.Op, "id", h.RequestID, "err", err)
		h.Error = fuse.ErrorIO
		frame, err = s.codec.EncodeResponse(h, nil)
	}
	if err != nil {
		level.Error(s.log).Log("msg", "failed to encode error response", "op", h.Op, "id", h.RequestID, "err", err)
		if ent != nil {
			s.registry.Complete(ent.RequestID)
		}
		return
	}
	s.write(h, frame, ent)
}

func (s *Session) write(h fuse.ResponseHeader, frame []byte, ent *Entry) {
	s.wmut.Lock()
	defer s.wmut.Unlock()

	// The kernel may reuse the ID as soon as it reads the response, so the
	// slot must be free before the write.
	if ent != nil {
		s.registry.Complete(ent.RequestID)
	}

	_, err := s.o.Device.Write(frame)
	switch {
	case err == nil:
	case errors.Is(err, syscall.ENOENT):
		// The kernel already gave up on the request, usually because it was
		// interrupted.
		level.Debug(s.log).Log("msg", "kernel dropped request before it was answered", "op", h.Op, "id", h.RequestID)
	case fuse.IsDeviceGone(err):
		level.Debug(s.log).Log("msg", "device gone before response was written", "op", h.Op, "id", h.RequestID)
	default:
		level.Error(s.log).Log("msg", "failed to write response", "op", h.Op, "id", h.RequestID, "err", err)
	}
}
