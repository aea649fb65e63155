package wire

import (
	"fmt"
	"unsafe"

	"github.com/rfratto/asyncfuse/internal/fuse"
)

// Request decoders. Each decoder reads arguments in the same order the kernel
// sends them. Do not re-order them. Reading an argument panics with
// errIncomplete if the payload is too short; see Codec.DecodeRequest.
//
// Request encoders are the inverse and produce the frames a kernel would
// send. Fields the codec's version doesn't define must be left unset.

var version712 = fuse.Version{Major: 7, Minor: 12}
var version717 = fuse.Version{Major: 7, Minor: 17}

func unexpectedRequest(op fuse.Op, r fuse.Request) error {
	return fmt.Errorf("%w: %T for %s", ErrUnexpectedMessage, r, op)
}

func decodeLookup(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var (
		name = ar.String()
	)
	return &fuse.LookupRequest{Name: name}
}

func encodeLookup(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.LookupRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	aw.String(req.Name)
	return nil
}

func decodeForget(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawForgetIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return &fuse.ForgetRequest{NumLookups: in.NLookup}
}

func encodeForget(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.ForgetRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	in := rawForgetIn{NLookup: req.NumLookups}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return nil
}

func decodeGetattr(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawGetattrIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return &fuse.GetattrRequest{
		Flags:  fuse.GetAttribFlags(in.GetattrFlags),
		Handle: fuse.Handle(in.Fh),
	}
}

func encodeGetattr(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.GetattrRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	in := rawGetattrIn{GetattrFlags: uint32(req.Flags), Fh: uint64(req.Handle)}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return nil
}

func decodeSetattr(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawSetattrIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return &fuse.SetattrRequest{
		UpdateMask: fuse.AttribMask(in.Valid),
		Handle:     fuse.Handle(in.Fh),
		Size:       in.Size,
		LockOwner:  fuse.LockOwner(in.LockOwner),
		LastAccess: fromUnix(in.Atime, in.AtimeNsec),
		LastModify: fromUnix(in.Mtime, in.MtimeNsec),
		LastChange: fromUnix(in.Ctime, in.CtimeNsec),
		Mode:       toNativeMode(in.Mode),
		UID:        in.UID,
		GID:        in.GID,
	}
}

func encodeSetattr(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.SetattrRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	in := rawSetattrIn{
		Valid:     uint32(req.UpdateMask),
		Fh:        uint64(req.Handle),
		Size:      req.Size,
		LockOwner: uint64(req.LockOwner),
		Atime:     toUnix(req.LastAccess),
		Mtime:     toUnix(req.LastModify),
		Ctime:     toUnix(req.LastChange),
		AtimeNsec: toUnixNsOffset(req.LastAccess),
		MtimeNsec: toUnixNsOffset(req.LastModify),
		CtimeNsec: toUnixNsOffset(req.LastChange),
		Mode:      toLinuxMode(req.Mode),
		UID:       req.UID,
		GID:       req.GID,
	}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return nil
}

func decodeSymlink(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var (
		name   = ar.String()
		target = ar.String()
	)
	return &fuse.SymlinkRequest{Name: name, Target: target}
}

func encodeSymlink(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.SymlinkRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	aw.String(req.Name)
	aw.String(req.Target)
	return nil
}

func decodeMknod(c *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawMknodIn
	ar.Read(unsafe.Pointer(&in), c.mknodInSize)
	name := ar.String()

	return &fuse.MknodRequest{
		Mode:     toNativeMode(in.Mode),
		DeviceID: in.Rdev,
		Umask:    toPermMode(in.Umask),
		Name:     name,
	}
}

func encodeMknod(c *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.MknodRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	if req.Umask != 0 && c.version.LT(version712) {
		return c.unsupported("mknod umask", version712)
	}
	in := rawMknodIn{Mode: toLinuxMode(req.Mode), Rdev: req.DeviceID, Umask: uint32(req.Umask.Perm())}
	aw.Write(unsafe.Pointer(&in), c.mknodInSize)
	aw.String(req.Name)
	return nil
}

func decodeMkdir(c *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawMkdirIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))
	name := ar.String()

	if c.version.LT(version712) {
		in.Umask = 0 // Padding
	}
	return &fuse.MkdirRequest{
		Mode:  toNativeMode(in.Mode),
		Umask: toPermMode(in.Umask),
		Name:  name,
	}
}

func encodeMkdir(c *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.MkdirRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	if req.Umask != 0 && c.version.LT(version712) {
		return c.unsupported("mkdir umask", version712)
	}
	in := rawMkdirIn{Mode: toLinuxMode(req.Mode), Umask: uint32(req.Umask.Perm())}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	aw.String(req.Name)
	return nil
}

func decodeUnlink(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	return &fuse.UnlinkRequest{Name: ar.String()}
}

func encodeUnlink(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.UnlinkRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	aw.String(req.Name)
	return nil
}

func decodeRmdir(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	return &fuse.RmdirRequest{Name: ar.String()}
}

func encodeRmdir(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.RmdirRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	aw.String(req.Name)
	return nil
}

func decodeRename(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawRenameIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))
	var (
		oldName = ar.String()
		newName = ar.String()
	)
	return &fuse.RenameRequest{
		NewDir:  fuse.Node(in.Newdir),
		OldName: oldName,
		NewName: newName,
	}
}

func encodeRename(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.RenameRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	in := rawRenameIn{Newdir: uint64(req.NewDir)}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	aw.String(req.OldName)
	aw.String(req.NewName)
	return nil
}

func decodeLink(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawLinkIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return &fuse.LinkRequest{
		OldNode: fuse.Node(in.OldNodeID),
		NewName: ar.String(),
	}
}

func encodeLink(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.LinkRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	in := rawLinkIn{OldNodeID: uint64(req.OldNode)}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	aw.String(req.NewName)
	return nil
}

func decodeOpen(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawOpenIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return &fuse.OpenRequest{Flags: fuse.FileFlags(in.Flags)}
}

func encodeOpen(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.OpenRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	in := rawOpenIn{Flags: uint32(req.Flags)}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return nil
}

func decodeRead(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawReadIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return &fuse.ReadRequest{
		Handle:    fuse.Handle(in.Fh),
		Offset:    in.Offset,
		Size:      in.Size,
		Flags:     fuse.ReadFlags(in.ReadFlags),
		LockOwner: fuse.LockOwner(in.LockOwner),
		FileFlags: fuse.FileFlags(in.Flags),
	}
}

func encodeRead(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.ReadRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	in := rawReadIn{
		Fh:        uint64(req.Handle),
		Offset:    req.Offset,
		Size:      req.Size,
		ReadFlags: uint32(req.Flags),
		LockOwner: uint64(req.LockOwner),
		Flags:     uint32(req.FileFlags),
	}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return nil
}

func decodeWrite(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawWriteIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))
	data := ar.Bytes(int(in.Size))

	return &fuse.WriteRequest{
		Handle:    fuse.Handle(in.Fh),
		Offset:    in.Offset,
		Flags:     fuse.WriteFlags(in.WriteFlags),
		LockOwner: fuse.LockOwner(in.LockOwner),
		FileFlags: fuse.FileFlags(in.Flags),
		Data:      data,
	}
}

func encodeWrite(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.WriteRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	in := rawWriteIn{
		Fh:         uint64(req.Handle),
		Offset:     req.Offset,
		Size:       uint32(len(req.Data)),
		WriteFlags: uint32(req.Flags),
		LockOwner:  uint64(req.LockOwner),
		Flags:      uint32(req.FileFlags),
	}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	aw.Bytes(req.Data)
	return nil
}

func decodeRelease(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawReleaseIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return &fuse.ReleaseRequest{
		Handle:    fuse.Handle(in.Fh),
		Flags:     fuse.ReleaseFlags(in.ReleaseFlags),
		FileFlags: fuse.FileFlags(in.Flags),
		LockOwner: fuse.LockOwner(in.LockOwner),
	}
}

func encodeRelease(c *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.ReleaseRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	if req.Flags&fuse.ReleaseFlockUnlock != 0 && c.version.LT(version717) {
		return c.unsupported("release flock unlock", version717)
	}
	in := rawReleaseIn{
		Fh:           uint64(req.Handle),
		Flags:        uint32(req.FileFlags),
		ReleaseFlags: uint32(req.Flags),
		LockOwner:    uint64(req.LockOwner),
	}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return nil
}

func decodeFsync(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawFsyncIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return &fuse.FsyncRequest{
		Handle: fuse.Handle(in.Fh),
		Flags:  fuse.SyncFlags(in.FsyncFlags),
	}
}

func encodeFsync(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.FsyncRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	in := rawFsyncIn{Fh: uint64(req.Handle), FsyncFlags: uint32(req.Flags)}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return nil
}

func decodeSetxattr(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawSetxattrIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))
	var (
		name  = ar.String()
		value = ar.Bytes(int(in.Size))
	)
	return &fuse.SetxattrRequest{
		Name:  name,
		Value: value,
		Flags: fuse.ExtendedAttribFlags(in.Flags),
	}
}

func encodeSetxattr(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.SetxattrRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	in := rawSetxattrIn{Size: uint32(len(req.Value)), Flags: uint32(req.Flags)}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	aw.String(req.Name)
	aw.Bytes(req.Value)
	return nil
}

// decodeGetxattr handles GETXATTR and LISTXATTR. Only GETXATTR carries a
// name.
func decodeGetxattr(_ *Codec, op fuse.Op, ar *argReader) fuse.Request {
	var in rawGetxattrIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))

	req := &fuse.GetxattrRequest{Size: in.Size}
	if op == fuse.OpGetxattr {
		req.Name = ar.String()
	}
	return req
}

func encodeGetxattr(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.GetxattrRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	in := rawGetxattrIn{Size: req.Size}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	if op == fuse.OpGetxattr {
		aw.String(req.Name)
	}
	return nil
}

func decodeRemovexattr(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	return &fuse.RemovexattrRequest{Name: ar.String()}
}

func encodeRemovexattr(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.RemovexattrRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	aw.String(req.Name)
	return nil
}

func decodeFlush(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawFlushIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return &fuse.FlushRequest{
		Handle:    fuse.Handle(in.Fh),
		LockOwner: fuse.LockOwner(in.LockOwner),
	}
}

func encodeFlush(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.FlushRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	in := rawFlushIn{Fh: uint64(req.Handle), LockOwner: uint64(req.LockOwner)}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return nil
}

// decodeInit reads the fields of init_in common to every 7.x kernel. Newer
// kernels append fields which are ignored.
func decodeInit(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawInitIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return &fuse.InitRequest{
		LatestVersion: fuse.Version{Major: in.Major, Minor: in.Minor},
		MaxReadahead:  in.MaxReadahead,
		Flags:         fuse.InitFlags(in.Flags),
	}
}

func encodeInit(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.InitRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	in := rawInitIn{
		Major:        req.LatestVersion.Major,
		Minor:        req.LatestVersion.Minor,
		MaxReadahead: req.MaxReadahead,
		Flags:        uint32(req.Flags),
	}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return nil
}

// decodeLock handles GETLK, SETLK, and SETLKW.
func decodeLock(_ *Codec, op fuse.Op, ar *argReader) fuse.Request {
	var in rawLkIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return &fuse.LockRequest{
		Handle: fuse.Handle(in.Fh),
		Owner:  fuse.LockOwner(in.Owner),
		Lock:   fromRawFileLock(in.Lk),
		Flags:  fuse.LockFlags(in.LkFlags),
		Wait:   op == fuse.OpSetlkw,
	}
}

func encodeLock(c *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.LockRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	if req.Flags&fuse.LockFlock != 0 && c.version.LT(version717) {
		return c.unsupported("flock lock flag", version717)
	}
	in := rawLkIn{
		Fh:      uint64(req.Handle),
		Owner:   uint64(req.Owner),
		Lk:      toRawFileLock(req.Lock),
		LkFlags: uint32(req.Flags),
	}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return nil
}

func decodeAccess(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawAccessIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return &fuse.AccessRequest{Mask: in.Mask}
}

func encodeAccess(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.AccessRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	in := rawAccessIn{Mask: req.Mask}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return nil
}

func decodeCreate(c *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawCreateIn
	ar.Read(unsafe.Pointer(&in), c.createInSize)
	name := ar.String()

	return &fuse.CreateRequest{
		Flags: fuse.FileFlags(in.Flags),
		Mode:  toNativeMode(in.Mode),
		Umask: toPermMode(in.Umask),
		Name:  name,
	}
}

func encodeCreate(c *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.CreateRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	if req.Umask != 0 && c.version.LT(version712) {
		return c.unsupported("create umask", version712)
	}
	in := rawCreateIn{
		Flags: uint32(req.Flags),
		Mode:  toLinuxMode(req.Mode),
		Umask: uint32(req.Umask.Perm()),
	}
	aw.Write(unsafe.Pointer(&in), c.createInSize)
	aw.String(req.Name)
	return nil
}

func decodeInterrupt(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawInterruptIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return &fuse.InterruptRequest{RequestID: in.Unique}
}

func encodeInterrupt(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.InterruptRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	in := rawInterruptIn{Unique: req.RequestID}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return nil
}

func decodeBmap(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawBmapIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return &fuse.BmapRequest{Block: in.Block, BlockSize: in.BlockSize}
}

func encodeBmap(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.BmapRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	in := rawBmapIn{Block: req.Block, BlockSize: req.BlockSize}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return nil
}

func decodeNotifyReply(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	ar.Skip(ar.Len())
	return &fuse.NotifyReplyRequest{}
}

func decodeBatchForget(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawBatchForgetIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))

	// Check the count against the payload before allocating for it.
	if uint64(in.Count)*uint64(unsafe.Sizeof(rawForgetOne{})) > uint64(ar.Len()) {
		panic(errIncomplete)
	}

	items := make([]fuse.BatchForgetItem, 0, in.Count)
	for i := 0; i < int(in.Count); i++ {
		var one rawForgetOne
		ar.Read(unsafe.Pointer(&one), unsafe.Sizeof(one))
		items = append(items, fuse.BatchForgetItem{
			Node:       fuse.Node(one.NodeID),
			NumLookups: one.Nlookup,
		})
	}
	return &fuse.BatchForgetRequest{Items: items}
}

func encodeBatchForget(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.BatchForgetRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	in := rawBatchForgetIn{Count: uint32(len(req.Items))}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	for _, item := range req.Items {
		one := rawForgetOne{NodeID: uint64(item.Node), Nlookup: item.NumLookups}
		aw.Write(unsafe.Pointer(&one), unsafe.Sizeof(one))
	}
	return nil
}

func decodeFallocate(_ *Codec, _ fuse.Op, ar *argReader) fuse.Request {
	var in rawFallocateIn
	ar.Read(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return &fuse.FallocateRequest{
		Handle: fuse.Handle(in.Fh),
		Offset: in.Offset,
		Length: in.Length,
		Mode:   in.Mode,
	}
}

func encodeFallocate(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error {
	req, ok := r.(*fuse.FallocateRequest)
	if !ok {
		return unexpectedRequest(op, r)
	}
	in := rawFallocateIn{Fh: uint64(req.Handle), Offset: req.Offset, Length: req.Length, Mode: req.Mode}
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))
	return nil
}
