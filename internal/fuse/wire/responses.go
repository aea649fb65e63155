package wire

import (
	"fmt"
	"unsafe"

	"github.com/rfratto/asyncfuse/internal/fuse"
)

var (
	version710 = fuse.Version{Major: 7, Minor: 10}
	version713 = fuse.Version{Major: 7, Minor: 13}
)

func encodeEntry(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Response) error {
	resp, ok := r.(*fuse.EntryResponse)
	if !ok {
		return unexpectedResponse(op, r)
	}
	out := toRawEntryOut(resp.Entry)
	aw.Write(unsafe.Pointer(&out), unsafe.Sizeof(out))
	return nil
}

func decodeEntry(_ *Codec, ar *argReader, _ fuse.Request) fuse.Response {
	var out rawEntryOut
	ar.Read(unsafe.Pointer(&out), unsafe.Sizeof(out))
	return &fuse.EntryResponse{Entry: fromRawEntryOut(out)}
}

func encodeAttr(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Response) error {
	resp, ok := r.(*fuse.AttrResponse)
	if !ok {
		return unexpectedResponse(op, r)
	}
	out := rawAttrOut{
		AttrValid:     toSecondFrag(resp.TTL),
		AttrValidNsec: toNanosecondFrag(resp.TTL),
		Attr:          toRawAttr(resp.Attrib),
	}
	aw.Write(unsafe.Pointer(&out), unsafe.Sizeof(out))
	return nil
}

func decodeAttr(_ *Codec, ar *argReader, _ fuse.Request) fuse.Response {
	var out rawAttrOut
	ar.Read(unsafe.Pointer(&out), unsafe.Sizeof(out))
	return &fuse.AttrResponse{
		TTL:    fromFrags(out.AttrValid, out.AttrValidNsec),
		Attrib: fromRawAttr(out.Attr),
	}
}

func encodeReadlink(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Response) error {
	resp, ok := r.(*fuse.ReadlinkResponse)
	if !ok {
		return unexpectedResponse(op, r)
	}
	aw.Bytes(resp.Contents)
	return nil
}

func decodeReadlink(_ *Codec, ar *argReader, _ fuse.Request) fuse.Response {
	return &fuse.ReadlinkResponse{Contents: ar.Bytes(ar.Len())}
}

func encodeOpened(c *Codec, op fuse.Op, aw *argWriter, r fuse.Response) error {
	resp, ok := r.(*fuse.OpenedResponse)
	if !ok {
		return unexpectedResponse(op, r)
	}
	if err := c.checkOpenedFlags(resp.OpenedFlags); err != nil {
		return err
	}
	out := rawOpenOut{Fh: uint64(resp.Handle), OpenFlags: uint32(resp.OpenedFlags)}
	aw.Write(unsafe.Pointer(&out), unsafe.Sizeof(out))
	return nil
}

func decodeOpened(_ *Codec, ar *argReader, _ fuse.Request) fuse.Response {
	var out rawOpenOut
	ar.Read(unsafe.Pointer(&out), unsafe.Sizeof(out))
	return &fuse.OpenedResponse{
		Handle:      fuse.Handle(out.Fh),
		OpenedFlags: fuse.OpenedFlags(out.OpenFlags),
	}
}

func (c *Codec) checkOpenedFlags(f fuse.OpenedFlags) error {
	if f&fuse.OpenedNonSeekable != 0 && c.version.LT(version710) {
		return c.unsupported("non-seekable open flag", version710)
	}
	return nil
}

func encodeReadOut(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Response) error {
	resp, ok := r.(*fuse.ReadResponse)
	if !ok {
		return unexpectedResponse(op, r)
	}
	aw.Bytes(resp.Data)
	return nil
}

func decodeReadOut(_ *Codec, ar *argReader, _ fuse.Request) fuse.Response {
	return &fuse.ReadResponse{Data: ar.Bytes(ar.Len())}
}

func encodeWritten(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Response) error {
	resp, ok := r.(*fuse.WriteResponse)
	if !ok {
		return unexpectedResponse(op, r)
	}
	out := rawWriteOut{Size: resp.Written}
	aw.Write(unsafe.Pointer(&out), unsafe.Sizeof(out))
	return nil
}

func decodeWritten(_ *Codec, ar *argReader, _ fuse.Request) fuse.Response {
	var out rawWriteOut
	ar.Read(unsafe.Pointer(&out), unsafe.Sizeof(out))
	return &fuse.WriteResponse{Written: out.Size}
}

func encodeStatfs(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Response) error {
	resp, ok := r.(*fuse.StatfsResponse)
	if !ok {
		return unexpectedResponse(op, r)
	}
	st := resp.Statfs
	out := rawStatfsOut{St: rawKstatfs{
		Blocks:  st.Blocks,
		Bfree:   st.BlocksFree,
		Bavail:  st.BlocksAvail,
		Files:   st.Files,
		Ffree:   st.FilesFree,
		Bsize:   st.BlockSize,
		NameLen: st.NameLen,
		Frsize:  st.FragSize,
	}}
	aw.Write(unsafe.Pointer(&out), unsafe.Sizeof(out))
	return nil
}

func decodeStatfs(_ *Codec, ar *argReader, _ fuse.Request) fuse.Response {
	var out rawStatfsOut
	ar.Read(unsafe.Pointer(&out), unsafe.Sizeof(out))
	return &fuse.StatfsResponse{Statfs: fuse.Statfs{
		Blocks:      out.St.Blocks,
		BlocksFree:  out.St.Bfree,
		BlocksAvail: out.St.Bavail,
		Files:       out.St.Files,
		FilesFree:   out.St.Ffree,
		BlockSize:   out.St.Bsize,
		NameLen:     out.St.NameLen,
		FragSize:    out.St.Frsize,
	}}
}

// encodeXattr writes the size of the value when Data is nil, which answers a
// size probe (a request with Size 0). Otherwise Data is written as-is.
func encodeXattr(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Response) error {
	resp, ok := r.(*fuse.XattrResponse)
	if !ok {
		return unexpectedResponse(op, r)
	}
	if resp.Data == nil {
		out := rawGetxattrOut{Size: resp.Size}
		aw.Write(unsafe.Pointer(&out), unsafe.Sizeof(out))
		return nil
	}
	aw.Bytes(resp.Data)
	return nil
}

func decodeXattr(_ *Codec, ar *argReader, req fuse.Request) fuse.Response {
	if gr, ok := req.(*fuse.GetxattrRequest); ok && gr.Size == 0 {
		var out rawGetxattrOut
		ar.Read(unsafe.Pointer(&out), unsafe.Sizeof(out))
		return &fuse.XattrResponse{Size: out.Size}
	}
	return &fuse.XattrResponse{Data: ar.Bytes(ar.Len())}
}

// encodeInitOut validates the response against the version it announces
// rather than the codec's version, since the handshake codec is built before
// a version is chosen.
func encodeInitOut(c *Codec, op fuse.Op, aw *argWriter, r fuse.Response) error {
	resp, ok := r.(*fuse.InitResponse)
	if !ok {
		return unexpectedResponse(op, r)
	}

	v := resp.Version
	if v.Major == fuse.MaxVersion.Major {
		if (resp.MaxBackground != 0 || resp.CongestionThreshold != 0) && v.LT(version713) {
			return fmt.Errorf("%w: background limits require %s, announced %s", ErrUnsupportedField, version713, v)
		}
		if extra := resp.Flags &^ fuse.AvailableFlags(v); extra != 0 {
			return fmt.Errorf("%w: init flags %#x not defined at %s", ErrUnsupportedField, uint32(extra), v)
		}
	}

	out := rawInitOut{
		Major:               v.Major,
		Minor:               v.Minor,
		MaxReadahead:        resp.MaxReadahead,
		Flags:               uint32(resp.Flags),
		MaxBackground:       resp.MaxBackground,
		CongestionThreshold: resp.CongestionThreshold,
		MaxWrite:            resp.MaxWrite,
	}
	aw.Write(unsafe.Pointer(&out), unsafe.Sizeof(out))
	return nil
}

func decodeInitOut(_ *Codec, ar *argReader, _ fuse.Request) fuse.Response {
	var out rawInitOut
	ar.Read(unsafe.Pointer(&out), unsafe.Sizeof(out))

	resp := &fuse.InitResponse{
		Version:      fuse.Version{Major: out.Major, Minor: out.Minor},
		MaxReadahead: out.MaxReadahead,
		Flags:        fuse.InitFlags(out.Flags),
		MaxWrite:     out.MaxWrite,
	}
	if resp.Version.GE(version713) {
		resp.MaxBackground = out.MaxBackground
		resp.CongestionThreshold = out.CongestionThreshold
	}
	return resp
}

// encodeReaddir writes each entry as a dirent followed by its name, padded to
// 64 bits.
func encodeReaddir(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Response) error {
	resp, ok := r.(*fuse.ReaddirResponse)
	if !ok {
		return unexpectedResponse(op, r)
	}

	var off uint64
	for _, ent := range resp.Entries {
		var (
			entLen    = uint64(direntSize) + uint64(len(ent.Name))
			paddedLen = align64(entLen)
		)
		off += paddedLen

		next := ent.Offset
		if next == 0 {
			next = off
		}

		out := rawDirent{
			Ino:     ent.Inode,
			Offset:  next,
			NameLen: uint32(len(ent.Name)),
			Type:    uint32(ent.Type),
		}
		aw.Write(unsafe.Pointer(&out), unsafe.Sizeof(out))
		aw.Bytes([]byte(ent.Name))
		aw.Pad(int(paddedLen - entLen))
	}
	return nil
}

func decodeReaddir(_ *Codec, ar *argReader, _ fuse.Request) fuse.Response {
	var resp fuse.ReaddirResponse
	for ar.Len() > 0 {
		var ent rawDirent
		ar.Read(unsafe.Pointer(&ent), unsafe.Sizeof(ent))
		name := ar.Bytes(int(ent.NameLen))

		entLen := uint64(direntSize) + uint64(ent.NameLen)
		ar.Skip(int(align64(entLen) - entLen))

		resp.Entries = append(resp.Entries, fuse.DirEntry{
			Inode:  ent.Ino,
			Type:   fuse.EntryType(ent.Type),
			Name:   string(name),
			Offset: ent.Offset,
		})
	}
	return &resp
}

func encodeLockOut(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Response) error {
	resp, ok := r.(*fuse.LockResponse)
	if !ok {
		return unexpectedResponse(op, r)
	}
	out := rawLkOut{Lk: toRawFileLock(resp.Lock)}
	aw.Write(unsafe.Pointer(&out), unsafe.Sizeof(out))
	return nil
}

func decodeLockOut(_ *Codec, ar *argReader, _ fuse.Request) fuse.Response {
	var out rawLkOut
	ar.Read(unsafe.Pointer(&out), unsafe.Sizeof(out))
	return &fuse.LockResponse{Lock: fromRawFileLock(out.Lk)}
}

// encodeCreated writes an entry_out followed by an open_out.
func encodeCreated(c *Codec, op fuse.Op, aw *argWriter, r fuse.Response) error {
	resp, ok := r.(*fuse.CreateResponse)
	if !ok {
		return unexpectedResponse(op, r)
	}
	if err := c.checkOpenedFlags(resp.OpenedFlags); err != nil {
		return err
	}
	var (
		entry  = toRawEntryOut(resp.Entry)
		opened = rawOpenOut{Fh: uint64(resp.Handle), OpenFlags: uint32(resp.OpenedFlags)}
	)
	aw.Write(unsafe.Pointer(&entry), unsafe.Sizeof(entry))
	aw.Write(unsafe.Pointer(&opened), unsafe.Sizeof(opened))
	return nil
}

func decodeCreated(_ *Codec, ar *argReader, _ fuse.Request) fuse.Response {
	var (
		entry  rawEntryOut
		opened rawOpenOut
	)
	ar.Read(unsafe.Pointer(&entry), unsafe.Sizeof(entry))
	ar.Read(unsafe.Pointer(&opened), unsafe.Sizeof(opened))
	return &fuse.CreateResponse{
		Handle:      fuse.Handle(opened.Fh),
		OpenedFlags: fuse.OpenedFlags(opened.OpenFlags),
		Entry:       fromRawEntryOut(entry),
	}
}

func encodeBmapOut(_ *Codec, op fuse.Op, aw *argWriter, r fuse.Response) error {
	resp, ok := r.(*fuse.BmapResponse)
	if !ok {
		return unexpectedResponse(op, r)
	}
	out := rawBmapOut{Block: resp.Block}
	aw.Write(unsafe.Pointer(&out), unsafe.Sizeof(out))
	return nil
}

func decodeBmapOut(_ *Codec, ar *argReader, _ fuse.Request) fuse.Response {
	var out rawBmapOut
	ar.Read(unsafe.Pointer(&out), unsafe.Sizeof(out))
	return &fuse.BmapResponse{Block: out.Block}
}
