package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rfratto/asyncfuse/internal/fuse"
	"go.uber.org/atomic"
)

// Entry is an in-flight request tracked by a Registry.
type Entry struct {
	RequestID uint64
	Op        fuse.Op
	Node      fuse.Node
	Started   time.Time

	ctx         context.Context
	cancel      context.CancelFunc
	interrupted atomic.Bool
}

// Context returns the context of the request. It is canceled when the
// request is interrupted or abandoned.
func (e *Entry) Context() context.Context { return e.ctx }

// Interrupted reports whether the kernel interrupted the request.
func (e *Entry) Interrupted() bool { return e.interrupted.Load() }

// Registry tracks requests which have been admitted but not yet answered.
// Request IDs are unique among in-flight requests; the kernel reuses an ID
// once its response has been written.
type Registry struct {
	mut     sync.Mutex
	entries map[uint64]*Entry
	drained chan struct{} // Closed when entries becomes empty. Nil if nobody is waiting.
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uint64]*Entry)}
}

// Register tracks a new request. The request's context is derived from
// parent. Register fails with ErrDuplicateID if hdr.RequestID is already in
// flight; the existing entry is left untouched.
func (r *Registry) Register(parent context.Context, hdr fuse.RequestHeader) (*Entry, error) {
	r.mut.Lock()
	defer r.mut.Unlock()

	if _, exist := r.entries[hdr.RequestID]; exist {
		return nil, fmt.Errorf("%w: %d (%s)", ErrDuplicateID, hdr.RequestID, hdr.Op)
	}

	ctx, cancel := context.WithCancel(parent)
	ent := &Entry{
		RequestID: hdr.RequestID,
		Op:        hdr.Op,
		Node:      hdr.Node,
		Started:   time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	r.entries[hdr.RequestID] = ent
	return ent, nil
}

// Get returns the in-flight entry for id.
func (r *Registry) Get(id uint64) (*Entry, bool) {
	r.mut.Lock()
	defer r.mut.Unlock()
	ent, ok := r.entries[id]
	return ent, ok
}

// Complete stops tracking id. Completing an unknown id is a no-op.
func (r *Registry) Complete(id uint64) {
	r.mut.Lock()
	defer r.mut.Unlock()

	ent, ok := r.entries[id]
	if !ok {
		return
	}
	ent.cancel()
	delete(r.entries, id)
	r.notifyDrained()
}

// Interrupt cancels the context of the in-flight request id. Interrupt returns
// false if id isn't in flight, which happens when the request completed
// before the interrupt was read.
func (r *Registry) Interrupt(id uint64) bool {
	r.mut.Lock()
	defer r.mut.Unlock()

	ent, ok := r.entries[id]
	if !ok {
		return false
	}
	ent.interrupted.Store(true)
	ent.cancel()
	return true
}

// Drain blocks until no requests are in flight or until ctx is canceled.
func (r *Registry) Drain(ctx context.Context) error {
	for {
		r.mut.Lock()
		if len(r.entries) == 0 {
			r.mut.Unlock()
			return nil
		}
		if r.drained == nil {
			r.drained = make(chan struct{})
		}
		ch := r.drained
		r.mut.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Abandon cancels and stops tracking every in-flight request, returning how
// many were abandoned. Handlers still running for abandoned requests may
// finish, but their responses are no longer tracked.
func (r *Registry) Abandon() int {
	r.mut.Lock()
	defer r.mut.Unlock()

	n := len(r.entries)
	for id, ent := range r.entries {
		ent.cancel()
		delete(r.entries, id)
	}
	r.notifyDrained()
	return n
}

// Len returns the number of in-flight requests.
func (r *Registry) Len() int {
	r.mut.Lock()
	defer r.mut.Unlock()
	return len(r.entries)
}

// notifyDrained wakes up Drain callers if the registry is empty. r.mut must be
// held.
func (r *Registry) notifyDrained() {
	if len(r.entries) == 0 && r.drained != nil {
		close(r.drained)
		r.drained = nil
	}
}
