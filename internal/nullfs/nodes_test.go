package nullfs

import (
	"errors"
	"testing"

	"github.com/rfratto/asyncfuse/internal/fuse"
	"github.com/stretchr/testify/require"
)

func TestNodeTable(t *testing.T) {
	root := &file{inode: 1}
	child := &file{inode: 2}

	nt := newNodeTable(root)
	n, err := nt.get(fuse.RootNode)
	require.NoError(t, err)
	require.Equal(t, root, n.file)

	a, err := nt.add(fuse.RootNode, "a", child)
	require.NoError(t, err)
	require.Equal(t, fuse.Node(2), a.id)

	_, err = nt.add(42, "b", child)
	require.True(t, errors.Is(err, fuse.ErrorStale), "parent must be known")

	// Forgetting more lookups than were made removes the node.
	require.NoError(t, nt.forget(a.id, 10))
	_, err = nt.get(a.id)
	require.True(t, errors.Is(err, fuse.ErrorStale))
	require.True(t, errors.Is(nt.forget(a.id, 1), fuse.ErrorStale))

	// A new lookup gets a new ID.
	a2, err := nt.add(fuse.RootNode, "a", child)
	require.NoError(t, err)
	require.NotEqual(t, a.id, a2.id)
	require.Equal(t, 2, nt.len())
}

func TestNodeTable_Handles(t *testing.T) {
	nt := newNodeTable(&file{inode: 1})

	h1, err := nt.open(&handle{})
	require.NoError(t, err)
	h2, err := nt.open(&handle{})
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
	require.Equal(t, 2, nt.openHandles())

	require.NoError(t, nt.release(h1))
	require.True(t, errors.Is(nt.release(h1), fuse.ErrorBadHandle))

	h3, err := nt.open(&handle{})
	require.NoError(t, err)
	require.Equal(t, h1, h3, "released handle IDs are reused")

	_, err = nt.handle(99)
	require.True(t, errors.Is(err, fuse.ErrorBadHandle))
}
