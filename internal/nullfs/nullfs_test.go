package nullfs

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/go-kit/log"
	"github.com/rfratto/asyncfuse/internal/fuse"
	"github.com/stretchr/testify/require"
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	fs, err := New(log.NewNopLogger(), map[string]string{
		"hello":         "Hello, world!\n",
		"dir/a.txt":     "aaaa",
		"dir/sub/b.txt": "b",
	})
	require.NoError(t, err)
	require.NoError(t, fs.Init(context.Background()))
	return fs
}

func lookup(t *testing.T, fs *FS, parent fuse.Node, name string) fuse.Entry {
	t.Helper()
	resp, err := fs.Lookup(context.Background(), &fuse.RequestHeader{Node: parent}, &fuse.LookupRequest{Name: name})
	require.NoError(t, err)
	return resp.Entry
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil, map[string]string{"/": "root"})
	require.Error(t, err)

	_, err = New(nil, map[string]string{"a": "file", "a/b": "nested"})
	require.Error(t, err)

	_, err = New(nil, map[string]string{"a": "one", "/a": "two"})
	require.Error(t, err)
}

func TestFS_Lookup(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	hello := lookup(t, fs, fuse.RootNode, "hello")
	require.Equal(t, uint64(14), hello.Attrib.Size)
	require.Equal(t, os.FileMode(0444), hello.Attrib.Mode)
	require.Equal(t, ttl, hello.EntryTTL)

	again := lookup(t, fs, fuse.RootNode, "hello")
	require.Equal(t, hello.Node, again.Node, "repeated lookups must return the same node")

	dir := lookup(t, fs, fuse.RootNode, "dir")
	require.True(t, dir.Attrib.Mode.IsDir())
	sub := lookup(t, fs, dir.Node, "sub")
	b := lookup(t, fs, sub.Node, "b.txt")
	require.Equal(t, uint64(1), b.Attrib.Size)

	_, err := fs.Lookup(ctx, &fuse.RequestHeader{Node: fuse.RootNode}, &fuse.LookupRequest{Name: "missing"})
	require.True(t, errors.Is(err, fuse.ErrorNotExist))

	_, err = fs.Lookup(ctx, &fuse.RequestHeader{Node: hello.Node}, &fuse.LookupRequest{Name: "x"})
	require.True(t, errors.Is(err, fuse.ErrorNotDirectory))

	_, err = fs.Lookup(ctx, &fuse.RequestHeader{Node: 999}, &fuse.LookupRequest{Name: "x"})
	require.True(t, errors.Is(err, fuse.ErrorStale))
}

func TestFS_Forget(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	hello := lookup(t, fs, fuse.RootNode, "hello")
	lookup(t, fs, fuse.RootNode, "hello")
	require.Equal(t, 2, fs.nodes.len())

	fs.Forget(ctx, &fuse.RequestHeader{Node: hello.Node}, &fuse.ForgetRequest{NumLookups: 1})
	_, err := fs.Getattr(ctx, &fuse.RequestHeader{Node: hello.Node}, &fuse.GetattrRequest{})
	require.NoError(t, err, "node must survive until all lookups are forgotten")

	fs.BatchForget(ctx, &fuse.RequestHeader{}, &fuse.BatchForgetRequest{Items: []fuse.BatchForgetItem{
		{Node: hello.Node, NumLookups: 1},
		{Node: fuse.RootNode, NumLookups: 1},
	}})
	_, err = fs.Getattr(ctx, &fuse.RequestHeader{Node: hello.Node}, &fuse.GetattrRequest{})
	require.True(t, errors.Is(err, fuse.ErrorStale))

	_, err = fs.Getattr(ctx, &fuse.RequestHeader{Node: fuse.RootNode}, &fuse.GetattrRequest{})
	require.NoError(t, err, "root node is never forgotten")
}

func TestFS_Read(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	hello := lookup(t, fs, fuse.RootNode, "hello")
	hdr := &fuse.RequestHeader{Node: hello.Node}

	_, err := fs.Open(ctx, hdr, &fuse.OpenRequest{Flags: fuse.OpenReadWrite})
	require.True(t, errors.Is(err, fuse.ErrorReadOnly))

	opened, err := fs.Open(ctx, hdr, &fuse.OpenRequest{Flags: fuse.OpenReadOnly})
	require.NoError(t, err)
	require.Equal(t, fuse.OpenedKeepCache, opened.OpenedFlags)

	tt := []struct {
		offset uint64
		size   uint32
		expect string
	}{
		{offset: 0, size: 4096, expect: "Hello, world!\n"},
		{offset: 7, size: 5, expect: "world"},
		{offset: 14, size: 10, expect: ""},
		{offset: 100, size: 10, expect: ""},
	}
	for _, tc := range tt {
		resp, err := fs.Read(ctx, hdr, &fuse.ReadRequest{Handle: opened.Handle, Offset: tc.offset, Size: tc.size})
		require.NoError(t, err)
		require.Equal(t, tc.expect, string(resp.Data))
	}

	require.NoError(t, fs.Release(ctx, hdr, &fuse.ReleaseRequest{Handle: opened.Handle}))
	_, err = fs.Read(ctx, hdr, &fuse.ReadRequest{Handle: opened.Handle, Size: 10})
	require.True(t, errors.Is(err, fuse.ErrorBadHandle))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = fs.Read(cctx, hdr, &fuse.ReadRequest{Handle: opened.Handle, Size: 10})
	require.True(t, errors.Is(err, context.Canceled))
}

func TestFS_Readdir(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()
	hdr := &fuse.RequestHeader{Node: fuse.RootNode}

	opened, err := fs.Opendir(ctx, hdr, &fuse.OpenRequest{})
	require.NoError(t, err)

	resp, err := fs.Readdir(ctx, hdr, &fuse.ReadRequest{Handle: opened.Handle, Size: 4096})
	require.NoError(t, err)

	var names []string
	for _, ent := range resp.Entries {
		names = append(names, ent.Name)
	}
	require.Equal(t, []string{".", "..", "dir", "hello"}, names)
	require.Equal(t, fuse.EntryDirectory, resp.Entries[2].Type)
	require.Equal(t, fuse.EntryRegular, resp.Entries[3].Type)

	// Each entry here takes 32 bytes; only two fit.
	resp, err = fs.Readdir(ctx, hdr, &fuse.ReadRequest{Handle: opened.Handle, Size: 70})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 2)

	// Continue from the offset of the last returned entry.
	resp, err = fs.Readdir(ctx, hdr, &fuse.ReadRequest{Handle: opened.Handle, Offset: resp.Entries[1].Offset, Size: 4096})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 2)
	require.Equal(t, "dir", resp.Entries[0].Name)

	resp, err = fs.Readdir(ctx, hdr, &fuse.ReadRequest{Handle: opened.Handle, Offset: 4, Size: 4096})
	require.NoError(t, err)
	require.Empty(t, resp.Entries)

	require.NoError(t, fs.Releasedir(ctx, hdr, &fuse.ReleaseRequest{Handle: opened.Handle}))
	require.Equal(t, 0, fs.nodes.openHandles())

	hello := lookup(t, fs, fuse.RootNode, "hello")
	_, err = fs.Opendir(ctx, &fuse.RequestHeader{Node: hello.Node}, &fuse.OpenRequest{})
	require.True(t, errors.Is(err, fuse.ErrorNotDirectory))
}

func TestFS_ReadOnly(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()
	hdr := &fuse.RequestHeader{Node: fuse.RootNode}

	_, err := fs.Mkdir(ctx, hdr, &fuse.MkdirRequest{})
	require.True(t, errors.Is(err, fuse.ErrorReadOnly))
	_, err = fs.Create(ctx, hdr, &fuse.CreateRequest{})
	require.True(t, errors.Is(err, fuse.ErrorReadOnly))
	require.True(t, errors.Is(fs.Unlink(ctx, hdr, &fuse.UnlinkRequest{}), fuse.ErrorReadOnly))

	require.NoError(t, fs.Access(ctx, hdr, &fuse.AccessRequest{Mask: 0x4}))
	require.True(t, errors.Is(fs.Access(ctx, hdr, &fuse.AccessRequest{Mask: wOK}), fuse.ErrorReadOnly))

	st, err := fs.Statfs(ctx, hdr)
	require.NoError(t, err)
	require.Equal(t, uint64(6), st.Statfs.Files)
}

func TestDirentSize(t *testing.T) {
	require.Equal(t, uint64(32), direntSize("a"))
	require.Equal(t, uint64(32), direntSize("12345678"))
	require.Equal(t, uint64(40), direntSize("123456789"))
}
