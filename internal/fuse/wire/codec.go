// Package wire converts between raw FUSE frames and the typed messages of the
// fuse package.
//
// The layout of several messages changes between protocol versions. A Codec
// is built once for a negotiated version and selects the correct layouts for
// every message it handles.
package wire

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/rfratto/asyncfuse/internal/fuse"
)

// opCodec converts the messages of one operation. Nil functions mean that
// direction carries no payload.
type opCodec struct {
	decodeRequest  func(c *Codec, op fuse.Op, ar *argReader) fuse.Request
	encodeRequest  func(c *Codec, op fuse.Op, aw *argWriter, r fuse.Request) error
	encodeResponse func(c *Codec, op fuse.Op, aw *argWriter, r fuse.Response) error
	decodeResponse func(c *Codec, ar *argReader, req fuse.Request) fuse.Response
}

var opCodecs = map[fuse.Op]opCodec{
	fuse.OpLookup:      {decodeLookup, encodeLookup, encodeEntry, decodeEntry},
	fuse.OpForget:      {decodeForget, encodeForget, nil, nil},
	fuse.OpGetattr:     {decodeGetattr, encodeGetattr, encodeAttr, decodeAttr},
	fuse.OpSetattr:     {decodeSetattr, encodeSetattr, encodeAttr, decodeAttr},
	fuse.OpReadlink:    {nil, nil, encodeReadlink, decodeReadlink},
	fuse.OpSymlink:     {decodeSymlink, encodeSymlink, encodeEntry, decodeEntry},
	fuse.OpMknod:       {decodeMknod, encodeMknod, encodeEntry, decodeEntry},
	fuse.OpMkdir:       {decodeMkdir, encodeMkdir, encodeEntry, decodeEntry},
	fuse.OpUnlink:      {decodeUnlink, encodeUnlink, nil, nil},
	fuse.OpRmdir:       {decodeRmdir, encodeRmdir, nil, nil},
	fuse.OpRename:      {decodeRename, encodeRename, nil, nil},
	fuse.OpLink:        {decodeLink, encodeLink, encodeEntry, decodeEntry},
	fuse.OpOpen:        {decodeOpen, encodeOpen, encodeOpened, decodeOpened},
	fuse.OpRead:        {decodeRead, encodeRead, encodeReadOut, decodeReadOut},
	fuse.OpWrite:       {decodeWrite, encodeWrite, encodeWritten, decodeWritten},
	fuse.OpStatfs:      {nil, nil, encodeStatfs, decodeStatfs},
	fuse.OpRelease:     {decodeRelease, encodeRelease, nil, nil},
	fuse.OpFsync:       {decodeFsync, encodeFsync, nil, nil},
	fuse.OpSetxattr:    {decodeSetxattr, encodeSetxattr, nil, nil},
	fuse.OpGetxattr:    {decodeGetxattr, encodeGetxattr, encodeXattr, decodeXattr},
	fuse.OpListxattr:   {decodeGetxattr, encodeGetxattr, encodeXattr, decodeXattr},
	fuse.OpRemovexattr: {decodeRemovexattr, encodeRemovexattr, nil, nil},
	fuse.OpFlush:       {decodeFlush, encodeFlush, nil, nil},
	fuse.OpInit:        {decodeInit, encodeInit, encodeInitOut, decodeInitOut},
	fuse.OpOpendir:     {decodeOpen, encodeOpen, encodeOpened, decodeOpened},
	fuse.OpReaddir:     {decodeRead, encodeRead, encodeReaddir, decodeReaddir},
	fuse.OpReleasedir:  {decodeRelease, encodeRelease, nil, nil},
	fuse.OpFsyncdir:    {decodeFsync, encodeFsync, nil, nil},
	fuse.OpGetlk:       {decodeLock, encodeLock, encodeLockOut, decodeLockOut},
	fuse.OpSetlk:       {decodeLock, encodeLock, nil, nil},
	fuse.OpSetlkw:      {decodeLock, encodeLock, nil, nil},
	fuse.OpAccess:      {decodeAccess, encodeAccess, nil, nil},
	fuse.OpCreate:      {decodeCreate, encodeCreate, encodeCreated, decodeCreated},
	fuse.OpInterrupt:   {decodeInterrupt, encodeInterrupt, nil, nil},
	fuse.OpBmap:        {decodeBmap, encodeBmap, encodeBmapOut, decodeBmapOut},
	fuse.OpDestroy:     {nil, nil, nil, nil},
	fuse.OpNotifyReply: {decodeNotifyReply, nil, nil, nil},
	fuse.OpBatchForget: {decodeBatchForget, encodeBatchForget, nil, nil},
	fuse.OpFallocate:   {decodeFallocate, encodeFallocate, nil, nil},

	// Known operations which aren't supported. They decode without a payload
	// and must be answered with fuse.ErrorUnimplemented.
	fuse.OpIoctl:    {},
	fuse.OpPoll:     {},
	fuse.OpCUSEInit: {},
}

// Codec encodes and decodes frames for a single protocol version. Codecs are
// immutable and safe for concurrent use.
type Codec struct {
	version fuse.Version
	ops     map[fuse.Op]opCodec

	mknodInSize  uintptr
	createInSize uintptr
}

// NewCodec returns a Codec for protocol version v. v must be within
// fuse.SupportedVersions.
func NewCodec(v fuse.Version) (*Codec, error) {
	if !fuse.SupportedVersions.Contains(v) {
		return nil, fmt.Errorf("%w: %s not in %s", ErrUnsupportedField, v, fuse.SupportedVersions)
	}

	c := &Codec{
		version:      v,
		ops:          make(map[fuse.Op]opCodec, len(opCodecs)),
		mknodInSize:  unsafe.Sizeof(rawMknodIn{}),
		createInSize: unsafe.Sizeof(rawCreateIn{}),
	}
	for op, oc := range opCodecs {
		if op.AvailableIn(v) {
			c.ops[op] = oc
		}
	}
	if v.LT(fuse.Version{Major: 7, Minor: 12}) {
		c.mknodInSize = mknodInCompatSize
		c.createInSize = createInCompatSize
	}
	return c, nil
}

// Version returns the protocol version of c.
func (c *Codec) Version() fuse.Version { return c.version }

// Supports reports whether op is known to c's protocol version.
func (c *Codec) Supports(op fuse.Op) bool {
	_, ok := c.ops[op]
	return ok
}

// DecodeRequest decodes a request frame read from the kernel. Errors after the
// header was read are returned as *FrameError with the header set.
//
// Some operations have no payload; req will be nil for them.
func (c *Codec) DecodeRequest(frame []byte) (hdr fuse.RequestHeader, req fuse.Request, err error) {
	if len(frame) < inHeaderSize {
		return hdr, nil, &FrameError{
			Err: fmt.Errorf("%w: read %d bytes, header is %d bytes", ErrTruncatedFrame, len(frame), inHeaderSize),
		}
	}

	var raw rawInHeader
	(&argReader{data: frame}).Read(unsafe.Pointer(&raw), unsafe.Sizeof(raw))
	hdr = toRequestHeader(raw)

	fail := func(err error) (fuse.RequestHeader, fuse.Request, error) {
		h := hdr
		return hdr, nil, &FrameError{Header: &h, Err: err}
	}

	switch {
	case int(raw.Len) > len(frame):
		return fail(fmt.Errorf("%w: read %d bytes, header declares %d", ErrTruncatedFrame, len(frame), raw.Len))
	case int(raw.Len) < len(frame):
		return fail(fmt.Errorf("%w: read %d bytes, header declares %d", ErrFrameLength, len(frame), raw.Len))
	}

	oc, ok := c.ops[hdr.Op]
	if !ok {
		return fail(fmt.Errorf("%w: opcode %d unknown at version %s", ErrMalformedHeader, raw.Opcode, c.version))
	}
	if oc.decodeRequest == nil {
		return hdr, nil, nil
	}

	// Reading past the end of the payload panics with errIncomplete, which is
	// turned into ErrInsufficientData here.
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if rerr, ok := r.(error); ok && errors.Is(rerr, errIncomplete) {
			_, req, err = fail(fmt.Errorf("%w: %s payload is %d bytes", ErrInsufficientData, hdr.Op, len(frame)-inHeaderSize))
			return
		}
		panic(r)
	}()

	ar := argReader{data: frame[inHeaderSize:]}
	req = oc.decodeRequest(c, hdr.Op, &ar)
	return hdr, req, nil
}

// EncodeResponse encodes a response frame to send to the kernel. Responses
// with a non-zero error never carry a payload and resp is ignored.
func (c *Codec) EncodeResponse(h fuse.ResponseHeader, resp fuse.Response) ([]byte, error) {
	if h.Error > 0 || h.Error <= -512 {
		return nil, fmt.Errorf("invalid error code %d for response", int32(h.Error))
	}

	var aw argWriter
	out := rawOutHeader{Error: int32(h.Error), Unique: h.RequestID}
	aw.Write(unsafe.Pointer(&out), unsafe.Sizeof(out))
	if h.Error != 0 {
		return aw.Finish(), nil
	}

	oc, ok := c.ops[h.Op]
	switch {
	case !ok:
		return nil, fmt.Errorf("%w: %s at version %s", ErrUnsupportedField, h.Op, c.version)
	case h.Op.NoReply():
		return nil, fmt.Errorf("%w: %s never has a response", ErrUnexpectedMessage, h.Op)
	case oc.encodeResponse == nil:
		if resp != nil {
			return nil, unexpectedResponse(h.Op, resp)
		}
		return aw.Finish(), nil
	case resp == nil:
		return nil, unexpectedResponse(h.Op, resp)
	}

	if err := oc.encodeResponse(c, h.Op, &aw, resp); err != nil {
		return nil, err
	}
	return aw.Finish(), nil
}

// EncodeRequest encodes a request frame as the kernel would send it. It is
// the inverse of DecodeRequest.
func (c *Codec) EncodeRequest(h fuse.RequestHeader, req fuse.Request) ([]byte, error) {
	oc, ok := c.ops[h.Op]
	if !ok {
		return nil, fmt.Errorf("%w: %s at version %s", ErrUnsupportedField, h.Op, c.version)
	}

	var aw argWriter
	in := toRawInHeader(h)
	aw.Write(unsafe.Pointer(&in), unsafe.Sizeof(in))

	switch {
	case oc.encodeRequest == nil && req != nil:
		return nil, fmt.Errorf("%w: %T for %s", ErrUnexpectedMessage, req, h.Op)
	case oc.encodeRequest != nil:
		if req == nil {
			return nil, fmt.Errorf("%w: missing request for %s", ErrUnexpectedMessage, h.Op)
		}
		if err := oc.encodeRequest(c, h.Op, &aw, req); err != nil {
			return nil, err
		}
	}
	return aw.Finish(), nil
}

// DecodeResponse decodes a response frame for an op. req is the request the
// response answers; it is only consulted for GETXATTR and LISTXATTR, where
// the payload shape depends on the requested size.
func (c *Codec) DecodeResponse(op fuse.Op, req fuse.Request, frame []byte) (h fuse.ResponseHeader, resp fuse.Response, err error) {
	if len(frame) < outHeaderSize {
		return h, nil, fmt.Errorf("%w: read %d bytes, header is %d bytes", ErrTruncatedFrame, len(frame), outHeaderSize)
	}

	var raw rawOutHeader
	(&argReader{data: frame}).Read(unsafe.Pointer(&raw), unsafe.Sizeof(raw))
	h = fuse.ResponseHeader{Op: op, RequestID: raw.Unique, Error: fuse.Error(raw.Error)}

	switch {
	case int(raw.Len) > len(frame):
		return h, nil, fmt.Errorf("%w: read %d bytes, header declares %d", ErrTruncatedFrame, len(frame), raw.Len)
	case int(raw.Len) < len(frame):
		return h, nil, fmt.Errorf("%w: read %d bytes, header declares %d", ErrFrameLength, len(frame), raw.Len)
	case raw.Error != 0:
		return h, nil, nil
	}

	oc, ok := c.ops[op]
	if !ok {
		return h, nil, fmt.Errorf("%w: %s at version %s", ErrUnsupportedField, op, c.version)
	}
	if oc.decodeResponse == nil {
		return h, nil, nil
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if rerr, ok := r.(error); ok && errors.Is(rerr, errIncomplete) {
			resp, err = nil, fmt.Errorf("%w: %s response is %d bytes", ErrInsufficientData, op, len(frame)-outHeaderSize)
			return
		}
		panic(r)
	}()

	ar := argReader{data: frame[outHeaderSize:]}
	return h, oc.decodeResponse(c, &ar, req), nil
}

func unexpectedResponse(op fuse.Op, r fuse.Response) error {
	return fmt.Errorf("%w: %T for %s", ErrUnexpectedMessage, r, op)
}

// unsupported returns an error for a field that v doesn't define.
func (c *Codec) unsupported(field string, since fuse.Version) error {
	return fmt.Errorf("%w: %s requires %s, negotiated %s", ErrUnsupportedField, field, since, c.version)
}
