package session

import (
	"context"
	"fmt"
	"reflect"

	"github.com/rfratto/asyncfuse/internal/fuse"
)

// Handler implements a filesystem. Each method is invoked on its own
// goroutine; implementations must be safe for concurrent use.
//
// The context passed to a method is canceled when the kernel interrupts the
// request, when the request times out, or when the session is torn down.
// Handlers should return promptly once it is done, typically with ctx.Err().
type Handler interface {
	// Init is called once the protocol version has been negotiated, before
	// the kernel is told the session is ready. Returning an error fails the
	// handshake.
	Init(context.Context) error

	// Close is called when the session releases its device.
	Close() error

	Lookup(context.Context, *fuse.RequestHeader, *fuse.LookupRequest) (*fuse.EntryResponse, error)
	Forget(context.Context, *fuse.RequestHeader, *fuse.ForgetRequest)
	Getattr(context.Context, *fuse.RequestHeader, *fuse.GetattrRequest) (*fuse.AttrResponse, error)
	Setattr(context.Context, *fuse.RequestHeader, *fuse.SetattrRequest) (*fuse.AttrResponse, error)
	Readlink(context.Context, *fuse.RequestHeader) (*fuse.ReadlinkResponse, error)
	Symlink(context.Context, *fuse.RequestHeader, *fuse.SymlinkRequest) (*fuse.EntryResponse, error)
	Mknod(context.Context, *fuse.RequestHeader, *fuse.MknodRequest) (*fuse.EntryResponse, error)
	Mkdir(context.Context, *fuse.RequestHeader, *fuse.MkdirRequest) (*fuse.EntryResponse, error)
	Unlink(context.Context, *fuse.RequestHeader, *fuse.UnlinkRequest) error
	Rmdir(context.Context, *fuse.RequestHeader, *fuse.RmdirRequest) error
	Rename(context.Context, *fuse.RequestHeader, *fuse.RenameRequest) error
	Link(context.Context, *fuse.RequestHeader, *fuse.LinkRequest) (*fuse.EntryResponse, error)
	Open(context.Context, *fuse.RequestHeader, *fuse.OpenRequest) (*fuse.OpenedResponse, error)
	Read(context.Context, *fuse.RequestHeader, *fuse.ReadRequest) (*fuse.ReadResponse, error)
	Write(context.Context, *fuse.RequestHeader, *fuse.WriteRequest) (*fuse.WriteResponse, error)
	Statfs(context.Context, *fuse.RequestHeader) (*fuse.StatfsResponse, error)
	Release(context.Context, *fuse.RequestHeader, *fuse.ReleaseRequest) error
	Fsync(context.Context, *fuse.RequestHeader, *fuse.FsyncRequest) error
	Setxattr(context.Context, *fuse.RequestHeader, *fuse.SetxattrRequest) error
	Getxattr(context.Context, *fuse.RequestHeader, *fuse.GetxattrRequest) (*fuse.XattrResponse, error)
	Listxattr(context.Context, *fuse.RequestHeader, *fuse.GetxattrRequest) (*fuse.XattrResponse, error)
	Removexattr(context.Context, *fuse.RequestHeader, *fuse.RemovexattrRequest) error
	Flush(context.Context, *fuse.RequestHeader, *fuse.FlushRequest) error
	Opendir(context.Context, *fuse.RequestHeader, *fuse.OpenRequest) (*fuse.OpenedResponse, error)
	Readdir(context.Context, *fuse.RequestHeader, *fuse.ReadRequest) (*fuse.ReaddirResponse, error)
	Releasedir(context.Context, *fuse.RequestHeader, *fuse.ReleaseRequest) error
	Fsyncdir(context.Context, *fuse.RequestHeader, *fuse.FsyncRequest) error
	Getlk(context.Context, *fuse.RequestHeader, *fuse.LockRequest) (*fuse.LockResponse, error)
	// Setlk handles both SETLK and SETLKW. LockRequest.Wait is set for
	// SETLKW, in which case Setlk should block until the lock is acquired.
	Setlk(context.Context, *fuse.RequestHeader, *fuse.LockRequest) error
	Access(context.Context, *fuse.RequestHeader, *fuse.AccessRequest) error
	Create(context.Context, *fuse.RequestHeader, *fuse.CreateRequest) (*fuse.CreateResponse, error)
	Bmap(context.Context, *fuse.RequestHeader, *fuse.BmapRequest) (*fuse.BmapResponse, error)
	BatchForget(context.Context, *fuse.RequestHeader, *fuse.BatchForgetRequest)
	Fallocate(context.Context, *fuse.RequestHeader, *fuse.FallocateRequest) error
}

func missingBody(op fuse.Op) error {
	return fmt.Errorf("missing request body for %s: %w", op, fuse.ErrorInvalid)
}

// nilIfEmpty converts a typed nil response into an untyped nil, so a handler
// returning (nil, nil) is caught by the codec rather than dereferenced.
func nilIfEmpty(resp fuse.Response, err error) (fuse.Response, error) {
	if resp == nil || reflect.ValueOf(resp).IsNil() {
		return nil, err
	}
	return resp, err
}

// handlerInvoker converts h into an Invoker.
func handlerInvoker(h Handler) Invoker {
	return func(ctx context.Context, header *fuse.RequestHeader, req fuse.Request) (resp fuse.Response, err error) {
		switch header.Op {
		case fuse.OpLookup:
			req, _ := req.(*fuse.LookupRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			return nilIfEmpty(h.Lookup(ctx, header, req))

		case fuse.OpForget:
			req, _ := req.(*fuse.ForgetRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			h.Forget(ctx, header, req)

		case fuse.OpGetattr:
			req, _ := req.(*fuse.GetattrRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			return nilIfEmpty(h.Getattr(ctx, header, req))

		case fuse.OpSetattr:
			req, _ := req.(*fuse.SetattrRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			return nilIfEmpty(h.Setattr(ctx, header, req))

		case fuse.OpReadlink:
			// Readlink has no request
			return nilIfEmpty(h.Readlink(ctx, header))

		case fuse.OpSymlink:
			req, _ := req.(*fuse.SymlinkRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			return nilIfEmpty(h.Symlink(ctx, header, req))

		case fuse.OpMknod:
			req, _ := req.(*fuse.MknodRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			return nilIfEmpty(h.Mknod(ctx, header, req))

		case fuse.OpMkdir:
			req, _ := req.(*fuse.MkdirRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			return nilIfEmpty(h.Mkdir(ctx, header, req))

		case fuse.OpUnlink:
			req, _ := req.(*fuse.UnlinkRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			err = h.Unlink(ctx, header, req)

		case fuse.OpRmdir:
			req, _ := req.(*fuse.RmdirRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			err = h.Rmdir(ctx, header, req)

		case fuse.OpRename:
			req, _ := req.(*fuse.RenameRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			err = h.Rename(ctx, header, req)

		case fuse.OpLink:
			req, _ := req.(*fuse.LinkRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			return nilIfEmpty(h.Link(ctx, header, req))

		case fuse.OpOpen:
			req, _ := req.(*fuse.OpenRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			return nilIfEmpty(h.Open(ctx, header, req))

		case fuse.OpRead:
			req, _ := req.(*fuse.ReadRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			return nilIfEmpty(h.Read(ctx, header, req))

		case fuse.OpWrite:
			req, _ := req.(*fuse.WriteRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			return nilIfEmpty(h.Write(ctx, header, req))

		case fuse.OpStatfs:
			return nilIfEmpty(h.Statfs(ctx, header))

		case fuse.OpRelease:
			req, _ := req.(*fuse.ReleaseRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			err = h.Release(ctx, header, req)

		case fuse.OpFsync:
			req, _ := req.(*fuse.FsyncRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			err = h.Fsync(ctx, header, req)

		case fuse.OpSetxattr:
			req, _ := req.(*fuse.SetxattrRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			err = h.Setxattr(ctx, header, req)

		case fuse.OpGetxattr:
			req, _ := req.(*fuse.GetxattrRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			return nilIfEmpty(h.Getxattr(ctx, header, req))

		case fuse.OpListxattr:
			req, _ := req.(*fuse.GetxattrRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			return nilIfEmpty(h.Listxattr(ctx, header, req))

		case fuse.OpRemovexattr:
			req, _ := req.(*fuse.RemovexattrRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			err = h.Removexattr(ctx, header, req)

		case fuse.OpFlush:
			req, _ := req.(*fuse.FlushRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			err = h.Flush(ctx, header, req)

		case fuse.OpOpendir:
			req, _ := req.(*fuse.OpenRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			return nilIfEmpty(h.Opendir(ctx, header, req))

		case fuse.OpReaddir:
			req, _ := req.(*fuse.ReadRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			return nilIfEmpty(h.Readdir(ctx, header, req))

		case fuse.OpReleasedir:
			req, _ := req.(*fuse.ReleaseRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			err = h.Releasedir(ctx, header, req)

		case fuse.OpFsyncdir:
			req, _ := req.(*fuse.FsyncRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			err = h.Fsyncdir(ctx, header, req)

		case fuse.OpGetlk:
			req, _ := req.(*fuse.LockRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			return nilIfEmpty(h.Getlk(ctx, header, req))

		case fuse.OpSetlk, fuse.OpSetlkw:
			req, _ := req.(*fuse.LockRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			err = h.Setlk(ctx, header, req)

		case fuse.OpAccess:
			req, _ := req.(*fuse.AccessRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			err = h.Access(ctx, header, req)

		case fuse.OpCreate:
			req, _ := req.(*fuse.CreateRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			return nilIfEmpty(h.Create(ctx, header, req))

		case fuse.OpBmap:
			req, _ := req.(*fuse.BmapRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			return nilIfEmpty(h.Bmap(ctx, header, req))

		case fuse.OpBatchForget:
			req, _ := req.(*fuse.BatchForgetRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			h.BatchForget(ctx, header, req)

		case fuse.OpFallocate:
			req, _ := req.(*fuse.FallocateRequest)
			if req == nil {
				return nil, missingBody(header.Op)
			}
			err = h.Fallocate(ctx, header, req)

		default:
			err = fmt.Errorf("unexpected opcode %s: %w", header.Op, fuse.ErrorUnimplemented)
		}

		return nil, err
	}
}
