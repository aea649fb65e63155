package session

import (
	"context"
	"fmt"

	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/rfratto/asyncfuse/internal/fuse"
	"github.com/rfratto/asyncfuse/internal/fuse/wire"
)

var version713 = fuse.Version{Major: 7, Minor: 13}

// handshake answers INIT. The session becomes active once a version both
// sides support has been agreed on and the handler initialized.
func (s *Session) handshake(hdr fuse.RequestHeader, init *fuse.InitRequest) error {
	if init == nil {
		s.replyError(hdr, fuse.ErrorProtocol)
		return s.failHandshake(fmt.Errorf("%w: INIT without a payload", ErrProtocolDesync))
	}

	var (
		kernel = init.LatestVersion
		local  = s.o.Versions
	)
	level.Debug(s.log).Log("msg", "received handshake", "kernel_version", kernel, "kernel_flags", fmt.Sprintf("%#x", uint32(init.Flags)))

	if kernel.Major > local.Max.Major {
		// The kernel sends INIT again after downgrading to our major.
		level.Info(s.log).Log("msg", "kernel protocol is newer, waiting for it to downgrade", "kernel_version", kernel, "version", local.Max)
		s.reply(fuse.ResponseHeader{Op: hdr.Op, RequestID: hdr.RequestID}, &fuse.InitResponse{Version: local.Max}, nil)
		return nil
	}

	v, err := fuse.Negotiate(fuse.KernelRange(kernel), local)
	if err != nil {
		level.Error(s.log).Log("msg", "no protocol version in common with kernel", "kernel_version", kernel, "versions", local, "err", err)
		s.replyError(hdr, fuse.ErrorProtocol)
		return s.failHandshake(fmt.Errorf("handshake failed: %w", err))
	}
	codec, err := wire.NewCodec(v)
	if err != nil {
		s.replyError(hdr, fuse.ErrorIO)
		return s.failHandshake(fmt.Errorf("handshake failed: %w", err))
	}

	resp := &fuse.InitResponse{
		Version:      v,
		MaxReadahead: init.MaxReadahead,
		Flags:        fuse.NegotiateFlags(init.Flags, s.o.RequestedFlags, v),
		MaxWrite:     s.o.MaxWrite,
	}
	if v.GE(version713) {
		resp.MaxBackground = s.o.MaxBackground
		resp.CongestionThreshold = s.o.CongestionThreshold
	}

	if err := s.o.Handler.Init(s.ctx); err != nil {
		level.Error(s.log).Log("msg", "failed to initialize handler", "err", err)
		s.replyError(hdr, fuse.ErrorIO)
		return s.failHandshake(fmt.Errorf("initializing handler: %w", err))
	}

	s.mut.Lock()
	activated := s.state.CAS(uint32(StateNegotiating), uint32(StateActive))
	if activated {
		s.codec, s.version, s.flags = codec, v, resp.Flags
	}
	s.mut.Unlock()
	if !activated {
		// Shut down while the handler was initializing.
		s.replyError(hdr, fuse.ErrorIO)
		return nil
	}

	level.Info(s.log).Log("msg", "handshake complete", "version", v, "flags", fmt.Sprintf("%#x", uint32(resp.Flags)), "max_write", resp.MaxWrite)
	s.reply(fuse.ResponseHeader{Op: hdr.Op, RequestID: hdr.RequestID}, resp, nil)
	return nil
}

func (s *Session) failHandshake(err error) error {
	if rerr := s.release(); rerr != nil {
		level.Warn(s.log).Log("msg", "failed to release session", "err", rerr)
	}
	return err
}

// destroy starts tearing down the session on behalf of the kernel. The
// DESTROY reply is written after every in-flight request has been answered.
// Draining happens in the background so the read loop can keep delivering
// interrupts.
func (s *Session) destroy(hdr fuse.RequestHeader) {
	level.Info(s.log).Log("msg", "kernel requested session teardown")
	s.beginDrain()

	s.handlers.Add(1)
	go func() {
		defer s.handlers.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.o.DrainTimeout)
		defer cancel()
		if err := s.drain(ctx); err != nil {
			s.abandon()
		}

		s.reply(fuse.ResponseHeader{Op: hdr.Op, RequestID: hdr.RequestID}, nil, nil)
		if err := s.release(); err != nil {
			level.Warn(s.log).Log("msg", "failed to release session", "err", err)
		}
	}()
}

// beginDrain stops admitting new requests. It returns true if the session
// was moved into StateDraining.
func (s *Session) beginDrain() bool {
	s.mut.Lock()
	defer s.mut.Unlock()

	return s.state.CAS(uint32(StateActive), uint32(StateDraining)) ||
		s.state.CAS(uint32(StateNegotiating), uint32(StateDraining))
}

// drain waits for every admitted request to be answered.
func (s *Session) drain(ctx context.Context) error {
	err := s.registry.Drain(ctx)

	// Requests leave the registry right before their response is written.
	// Taking the write lock waits out the last write.
	s.wmut.Lock()
	s.wmut.Unlock() //nolint:staticcheck

	return err
}

func (s *Session) abandon() {
	if n := s.registry.Abandon(); n > 0 {
		level.Warn(s.log).Log("msg", "abandoned requests which did not finish in time", "count", n)
	}
}

// Shutdown gracefully shuts down the session. New requests are rejected with
// EIO while in-flight requests are given until ctx is canceled to finish.
// Requests still running after that are abandoned. The device and handler
// are closed before Shutdown returns.
func (s *Session) Shutdown(ctx context.Context) error {
	if s.beginDrain() {
		level.Info(s.log).Log("msg", "draining session", "inflight", s.registry.Len())
	}

	var errs *multierror.Error
	if err := s.drain(ctx); err != nil {
		s.abandon()
		errs = multierror.Append(errs, fmt.Errorf("draining session: %w", err))
	}
	if err := s.release(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

func (s *Session) shutdownWithTimeout() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.o.DrainTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// Close immediately closes the session, abandoning in-flight requests.
func (s *Session) Close() error {
	s.beginDrain()
	s.abandon()
	return s.release()
}

// release closes the device and handler. Only the first call does anything;
// later calls return nil.
func (s *Session) release() error {
	var err error
	s.releaseOnce.Do(func() {
		var errs *multierror.Error
		if cerr := s.o.Device.Close(); cerr != nil {
			errs = multierror.Append(errs, fmt.Errorf("closing device: %w", cerr))
		}
		if cerr := s.o.Handler.Close(); cerr != nil {
			errs = multierror.Append(errs, fmt.Errorf("closing handler: %w", cerr))
		}
		s.cancel()

		s.mut.Lock()
		s.state.Store(uint32(StateClosed))
		s.mut.Unlock()

		err = errs.ErrorOrNil()
	})
	return err
}
