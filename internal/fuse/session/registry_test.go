package session

import (
	"context"
	"testing"
	"time"

	"github.com/rfratto/asyncfuse/internal/fuse"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	first, err := r.Register(context.Background(), fuse.RequestHeader{Op: fuse.OpLookup, RequestID: 1, Node: fuse.RootNode})
	require.NoError(t, err)
	require.Equal(t, uint64(1), first.RequestID)
	require.Equal(t, fuse.OpLookup, first.Op)
	require.Equal(t, 1, r.Len())

	_, err = r.Register(context.Background(), fuse.RequestHeader{Op: fuse.OpGetattr, RequestID: 1})
	require.ErrorIs(t, err, ErrDuplicateID)

	ent, ok := r.Get(1)
	require.True(t, ok)
	require.Same(t, first, ent, "the original entry must stay registered")
	require.Equal(t, 1, r.Len())
}

func TestRegistry_Complete(t *testing.T) {
	r := NewRegistry()

	ent, err := r.Register(context.Background(), fuse.RequestHeader{Op: fuse.OpLookup, RequestID: 1})
	require.NoError(t, err)

	r.Complete(1)
	require.Equal(t, 0, r.Len())
	require.Error(t, ent.Context().Err(), "completed entries release their context")

	// Unknown IDs are ignored.
	r.Complete(1)
	r.Complete(99)

	// IDs may be reused once completed.
	_, err = r.Register(context.Background(), fuse.RequestHeader{Op: fuse.OpLookup, RequestID: 1})
	require.NoError(t, err)
}

func TestRegistry_Interrupt(t *testing.T) {
	r := NewRegistry()

	ent, err := r.Register(context.Background(), fuse.RequestHeader{Op: fuse.OpRead, RequestID: 5})
	require.NoError(t, err)

	require.False(t, r.Interrupt(6), "unknown IDs must be a no-op")
	require.False(t, ent.Interrupted())
	require.NoError(t, ent.Context().Err())

	require.True(t, r.Interrupt(5))
	require.True(t, ent.Interrupted())
	require.ErrorIs(t, ent.Context().Err(), context.Canceled)

	// Interrupted requests stay in flight until they're answered.
	require.Equal(t, 1, r.Len())
}

func TestRegistry_Drain(t *testing.T) {
	r := NewRegistry()

	for id := uint64(1); id <= 2; id++ {
		_, err := r.Register(context.Background(), fuse.RequestHeader{Op: fuse.OpRead, RequestID: id})
		require.NoError(t, err)
	}

	drained := make(chan error, 1)
	go func() { drained <- r.Drain(context.Background()) }()

	r.Complete(1)
	select {
	case <-drained:
		require.FailNow(t, "Drain returned with requests in flight")
	case <-time.After(50 * time.Millisecond):
	}

	r.Complete(2)
	select {
	case err := <-drained:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "Drain never returned")
	}
}

func TestRegistry_Drain_Timeout(t *testing.T) {
	r := NewRegistry()

	_, err := r.Register(context.Background(), fuse.RequestHeader{Op: fuse.OpRead, RequestID: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, r.Drain(ctx), context.DeadlineExceeded)
}

func TestRegistry_Abandon(t *testing.T) {
	r := NewRegistry()

	var ents []*Entry
	for id := uint64(1); id <= 3; id++ {
		ent, err := r.Register(context.Background(), fuse.RequestHeader{Op: fuse.OpRead, RequestID: id})
		require.NoError(t, err)
		ents = append(ents, ent)
	}

	require.Equal(t, 3, r.Abandon())
	require.Equal(t, 0, r.Len())
	for _, ent := range ents {
		require.Error(t, ent.Context().Err())
		require.False(t, ent.Interrupted())
	}
	require.NoError(t, r.Drain(context.Background()))
}
