package session

import (
	"context"

	"github.com/rfratto/asyncfuse/internal/fuse"
)

// UnimplementedHandler implements Handler and returns ErrorUnimplemented for all requests.
type UnimplementedHandler struct{}

// Static type check test
var _ Handler = UnimplementedHandler{}

func (UnimplementedHandler) Init(context.Context) error {
	return nil
}

func (UnimplementedHandler) Close() error {
	return nil
}

func (UnimplementedHandler) Lookup(context.Context, *fuse.RequestHeader, *fuse.LookupRequest) (*fuse.EntryResponse, error) {
	return nil, fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Forget(context.Context, *fuse.RequestHeader, *fuse.ForgetRequest) {
	// no-op
}

func (UnimplementedHandler) Getattr(context.Context, *fuse.RequestHeader, *fuse.GetattrRequest) (*fuse.AttrResponse, error) {
	return nil, fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Setattr(context.Context, *fuse.RequestHeader, *fuse.SetattrRequest) (*fuse.AttrResponse, error) {
	return nil, fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Readlink(context.Context, *fuse.RequestHeader) (*fuse.ReadlinkResponse, error) {
	return nil, fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Symlink(context.Context, *fuse.RequestHeader, *fuse.SymlinkRequest) (*fuse.EntryResponse, error) {
	return nil, fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Mknod(context.Context, *fuse.RequestHeader, *fuse.MknodRequest) (*fuse.EntryResponse, error) {
	return nil, fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Mkdir(context.Context, *fuse.RequestHeader, *fuse.MkdirRequest) (*fuse.EntryResponse, error) {
	return nil, fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Unlink(context.Context, *fuse.RequestHeader, *fuse.UnlinkRequest) error {
	return fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Rmdir(context.Context, *fuse.RequestHeader, *fuse.RmdirRequest) error {
	return fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Rename(context.Context, *fuse.RequestHeader, *fuse.RenameRequest) error {
	return fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Link(context.Context, *fuse.RequestHeader, *fuse.LinkRequest) (*fuse.EntryResponse, error) {
	return nil, fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Open(context.Context, *fuse.RequestHeader, *fuse.OpenRequest) (*fuse.OpenedResponse, error) {
	return nil, fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Read(context.Context, *fuse.RequestHeader, *fuse.ReadRequest) (*fuse.ReadResponse, error) {
	return nil, fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Write(context.Context, *fuse.RequestHeader, *fuse.WriteRequest) (*fuse.WriteResponse, error) {
	return nil, fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Statfs(context.Context, *fuse.RequestHeader) (*fuse.StatfsResponse, error) {
	return nil, fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Release(context.Context, *fuse.RequestHeader, *fuse.ReleaseRequest) error {
	return fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Fsync(context.Context, *fuse.RequestHeader, *fuse.FsyncRequest) error {
	return fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Setxattr(context.Context, *fuse.RequestHeader, *fuse.SetxattrRequest) error {
	return fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Getxattr(context.Context, *fuse.RequestHeader, *fuse.GetxattrRequest) (*fuse.XattrResponse, error) {
	return nil, fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Listxattr(context.Context, *fuse.RequestHeader, *fuse.GetxattrRequest) (*fuse.XattrResponse, error) {
	return nil, fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Removexattr(context.Context, *fuse.RequestHeader, *fuse.RemovexattrRequest) error {
	return fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Flush(context.Context, *fuse.RequestHeader, *fuse.FlushRequest) error {
	return fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Opendir(context.Context, *fuse.RequestHeader, *fuse.OpenRequest) (*fuse.OpenedResponse, error) {
	return nil, fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Readdir(context.Context, *fuse.RequestHeader, *fuse.ReadRequest) (*fuse.ReaddirResponse, error) {
	return nil, fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Releasedir(context.Context, *fuse.RequestHeader, *fuse.ReleaseRequest) error {
	return fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Fsyncdir(context.Context, *fuse.RequestHeader, *fuse.FsyncRequest) error {
	return fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Getlk(context.Context, *fuse.RequestHeader, *fuse.LockRequest) (*fuse.LockResponse, error) {
	return nil, fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Setlk(context.Context, *fuse.RequestHeader, *fuse.LockRequest) error {
	return fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Access(context.Context, *fuse.RequestHeader, *fuse.AccessRequest) error {
	return fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Create(context.Context, *fuse.RequestHeader, *fuse.CreateRequest) (*fuse.CreateResponse, error) {
	return nil, fuse.ErrorUnimplemented
}

func (UnimplementedHandler) Bmap(context.Context, *fuse.RequestHeader, *fuse.BmapRequest) (*fuse.BmapResponse, error) {
	return nil, fuse.ErrorUnimplemented
}

func (UnimplementedHandler) BatchForget(context.Context, *fuse.RequestHeader, *fuse.BatchForgetRequest) {
	// no-op
}

func (UnimplementedHandler) Fallocate(context.Context, *fuse.RequestHeader, *fuse.FallocateRequest) error {
	return fuse.ErrorUnimplemented
}
