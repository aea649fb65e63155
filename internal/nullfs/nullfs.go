// Package nullfs implements a read-only filesystem over a fixed set of
// in-memory files. It has no backing store; it exists to exercise a session
// end to end.
package nullfs

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/rfratto/asyncfuse/internal/fuse"
	"github.com/rfratto/asyncfuse/internal/fuse/session"
)

// ttl is how long the kernel may cache entries and attributes. Files never
// change, so it can be long.
const ttl = time.Minute

// wOK is the write bit of an access mask.
const wOK = 0x2

type file struct {
	inode    uint64
	mode     os.FileMode
	data     []byte
	children map[string]*file // Nil for regular files.
}

func (f *file) isDir() bool { return f.mode.IsDir() }

// FS is a read-only session.Handler. Methods which would modify the
// filesystem fail with fuse.ErrorReadOnly.
type FS struct {
	session.UnimplementedHandler

	log     log.Logger
	root    *file
	files   int
	nodes   *nodeTable
	created time.Time
}

var _ session.Handler = (*FS)(nil)

// New creates an FS holding files, keyed by slash-separated path. Parent
// directories are created implicitly.
func New(l log.Logger, files map[string]string) (*FS, error) {
	if l == nil {
		l = log.NewNopLogger()
	}

	fs := &FS{
		log:     l,
		root:    &file{inode: 1, mode: os.ModeDir | 0555, children: map[string]*file{}},
		files:   1,
		created: time.Now(),
	}

	// Insert in sorted order so inode numbers are stable.
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := fs.insert(p, []byte(files[p])); err != nil {
			return nil, err
		}
	}

	fs.nodes = newNodeTable(fs.root)
	return fs, nil
}

func (fs *FS) insert(p string, data []byte) error {
	clean := strings.Trim(path.Clean("/"+p), "/")
	if clean == "" {
		return fmt.Errorf("invalid file path %q", p)
	}

	dir := fs.root
	parts := strings.Split(clean, "/")
	for _, name := range parts[:len(parts)-1] {
		next, ok := dir.children[name]
		switch {
		case !ok:
			fs.files++
			next = &file{inode: uint64(fs.files), mode: os.ModeDir | 0555, children: map[string]*file{}}
			dir.children[name] = next
		case !next.isDir():
			return fmt.Errorf("%s: %q is not a directory", p, name)
		}
		dir = next
	}

	name := parts[len(parts)-1]
	if _, exists := dir.children[name]; exists {
		return fmt.Errorf("duplicate file path %q", p)
	}
	fs.files++
	dir.children[name] = &file{inode: uint64(fs.files), mode: 0444, data: data}
	return nil
}

func (fs *FS) attrib(f *file) fuse.Attrib {
	a := fuse.Attrib{
		Inode:      f.inode,
		Size:       uint64(len(f.data)),
		Blocks:     (uint64(len(f.data)) + 511) / 512,
		LastAccess: fs.created,
		LastModify: fs.created,
		LastChange: fs.created,
		Mode:       f.mode,
		HardLinks:  1,
		UID:        uint32(os.Getuid()),
		GID:        uint32(os.Getgid()),
		BlockSize:  4096,
	}
	if f.isDir() {
		a.HardLinks = 2
	}
	return a
}

// Init implements session.Handler.
func (fs *FS) Init(context.Context) error {
	level.Debug(fs.log).Log("msg", "nullfs initialized", "files", fs.files)
	return nil
}

// Close implements session.Handler.
func (fs *FS) Close() error {
	if n := fs.nodes.openHandles(); n > 0 {
		level.Debug(fs.log).Log("msg", "closing with open handles", "handles", n)
	}
	return nil
}

func (fs *FS) Lookup(_ context.Context, hdr *fuse.RequestHeader, req *fuse.LookupRequest) (*fuse.EntryResponse, error) {
	parent, err := fs.nodes.get(hdr.Node)
	if err != nil {
		return nil, err
	}
	if !parent.file.isDir() {
		return nil, fuse.ErrorNotDirectory
	}
	child, ok := parent.file.children[req.Name]
	if !ok {
		return nil, fuse.ErrorNotExist
	}

	n, err := fs.nodes.add(hdr.Node, req.Name, child)
	if err != nil {
		return nil, err
	}
	return &fuse.EntryResponse{Entry: fuse.Entry{
		Node:       n.id,
		Generation: n.generation,
		EntryTTL:   ttl,
		AttribTTL:  ttl,
		Attrib:     fs.attrib(child),
	}}, nil
}

func (fs *FS) Forget(_ context.Context, hdr *fuse.RequestHeader, req *fuse.ForgetRequest) {
	if err := fs.nodes.forget(hdr.Node, req.NumLookups); err != nil {
		level.Warn(fs.log).Log("msg", "failed to forget node", "node", hdr.Node, "err", err)
	}
}

func (fs *FS) BatchForget(_ context.Context, _ *fuse.RequestHeader, req *fuse.BatchForgetRequest) {
	for _, item := range req.Items {
		if err := fs.nodes.forget(item.Node, item.NumLookups); err != nil {
			level.Warn(fs.log).Log("msg", "failed to forget node", "node", item.Node, "err", err)
		}
	}
}

func (fs *FS) Getattr(_ context.Context, hdr *fuse.RequestHeader, _ *fuse.GetattrRequest) (*fuse.AttrResponse, error) {
	n, err := fs.nodes.get(hdr.Node)
	if err != nil {
		return nil, err
	}
	return &fuse.AttrResponse{TTL: ttl, Attrib: fs.attrib(n.file)}, nil
}

func (fs *FS) Access(_ context.Context, hdr *fuse.RequestHeader, req *fuse.AccessRequest) error {
	if _, err := fs.nodes.get(hdr.Node); err != nil {
		return err
	}
	if req.Mask&wOK != 0 {
		return fuse.ErrorReadOnly
	}
	return nil
}

func (fs *FS) Open(_ context.Context, hdr *fuse.RequestHeader, req *fuse.OpenRequest) (*fuse.OpenedResponse, error) {
	n, err := fs.nodes.get(hdr.Node)
	if err != nil {
		return nil, err
	}
	if n.file.isDir() {
		return nil, fuse.ErrorIsDirectory
	}
	if req.Flags&fuse.OpenAccesMode != fuse.OpenReadOnly {
		return nil, fuse.ErrorReadOnly
	}

	id, err := fs.nodes.open(&handle{file: n.file})
	if err != nil {
		return nil, err
	}
	return &fuse.OpenedResponse{Handle: id, OpenedFlags: fuse.OpenedKeepCache}, nil
}

func (fs *FS) Read(ctx context.Context, _ *fuse.RequestHeader, req *fuse.ReadRequest) (*fuse.ReadResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, err := fs.nodes.handle(req.Handle)
	if err != nil {
		return nil, err
	}

	data := h.file.data
	if req.Offset >= uint64(len(data)) {
		return &fuse.ReadResponse{}, nil
	}
	end := req.Offset + uint64(req.Size)
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	return &fuse.ReadResponse{Data: data[req.Offset:end]}, nil
}

func (fs *FS) Flush(context.Context, *fuse.RequestHeader, *fuse.FlushRequest) error { return nil }

func (fs *FS) Release(_ context.Context, _ *fuse.RequestHeader, req *fuse.ReleaseRequest) error {
	return fs.nodes.release(req.Handle)
}

func (fs *FS) Opendir(_ context.Context, hdr *fuse.RequestHeader, _ *fuse.OpenRequest) (*fuse.OpenedResponse, error) {
	n, err := fs.nodes.get(hdr.Node)
	if err != nil {
		return nil, err
	}
	if !n.file.isDir() {
		return nil, fuse.ErrorNotDirectory
	}

	entries := []fuse.DirEntry{
		{Inode: n.file.inode, Type: fuse.EntryDirectory, Name: "."},
		{Inode: n.file.inode, Type: fuse.EntryDirectory, Name: ".."},
	}
	names := make([]string, 0, len(n.file.children))
	for name := range n.file.children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		child := n.file.children[name]
		typ := fuse.EntryRegular
		if child.isDir() {
			typ = fuse.EntryDirectory
		}
		entries = append(entries, fuse.DirEntry{Inode: child.inode, Type: typ, Name: name})
	}
	for i := range entries {
		entries[i].Offset = uint64(i + 1)
	}

	id, err := fs.nodes.open(&handle{file: n.file, entries: entries})
	if err != nil {
		return nil, err
	}
	return &fuse.OpenedResponse{Handle: id}, nil
}

// Readdir returns entries starting at req.Offset, the index of the next
// entry, that fit in req.Size bytes.
func (fs *FS) Readdir(_ context.Context, _ *fuse.RequestHeader, req *fuse.ReadRequest) (*fuse.ReaddirResponse, error) {
	h, err := fs.nodes.handle(req.Handle)
	if err != nil {
		return nil, err
	}
	if h.entries == nil {
		return nil, fuse.ErrorNotDirectory
	}

	var (
		resp = &fuse.ReaddirResponse{}
		used uint64
	)
	for i := req.Offset; i < uint64(len(h.entries)); i++ {
		ent := h.entries[i]
		size := direntSize(ent.Name)
		if used+size > uint64(req.Size) {
			break
		}
		used += size
		resp.Entries = append(resp.Entries, ent)
	}
	return resp, nil
}

// direntSize is the encoded size of a directory entry: a 24 byte header plus
// the name, padded to 8 bytes.
func direntSize(name string) uint64 {
	return (24 + uint64(len(name)) + 7) &^ 7
}

func (fs *FS) Releasedir(_ context.Context, _ *fuse.RequestHeader, req *fuse.ReleaseRequest) error {
	return fs.nodes.release(req.Handle)
}

func (fs *FS) Fsyncdir(context.Context, *fuse.RequestHeader, *fuse.FsyncRequest) error { return nil }

func (fs *FS) Statfs(context.Context, *fuse.RequestHeader) (*fuse.StatfsResponse, error) {
	return &fuse.StatfsResponse{Statfs: fuse.Statfs{
		Files:     uint64(fs.files),
		BlockSize: 4096,
		NameLen:   255,
		FragSize:  4096,
	}}, nil
}

func (fs *FS) Setattr(context.Context, *fuse.RequestHeader, *fuse.SetattrRequest) (*fuse.AttrResponse, error) {
	return nil, fuse.ErrorReadOnly
}

func (fs *FS) Mknod(context.Context, *fuse.RequestHeader, *fuse.MknodRequest) (*fuse.EntryResponse, error) {
	return nil, fuse.ErrorReadOnly
}

func (fs *FS) Mkdir(context.Context, *fuse.RequestHeader, *fuse.MkdirRequest) (*fuse.EntryResponse, error) {
	return nil, fuse.ErrorReadOnly
}

func (fs *FS) Create(context.Context, *fuse.RequestHeader, *fuse.CreateRequest) (*fuse.CreateResponse, error) {
	return nil, fuse.ErrorReadOnly
}

func (fs *FS) Write(context.Context, *fuse.RequestHeader, *fuse.WriteRequest) (*fuse.WriteResponse, error) {
	return nil, fuse.ErrorReadOnly
}

func (fs *FS) Unlink(context.Context, *fuse.RequestHeader, *fuse.UnlinkRequest) error {
	return fuse.ErrorReadOnly
}

func (fs *FS) Rmdir(context.Context, *fuse.RequestHeader, *fuse.RmdirRequest) error {
	return fuse.ErrorReadOnly
}

func (fs *FS) Rename(context.Context, *fuse.RequestHeader, *fuse.RenameRequest) error {
	return fuse.ErrorReadOnly
}
