package wire

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/rfratto/asyncfuse/internal/fuse"
)

// EncodeNotify encodes an unsolicited notification. Notifications are sent
// with a request ID of 0 and the notification code in place of the error.
func (c *Codec) EncodeNotify(n fuse.Notification) ([]byte, error) {
	code := n.NotifyCode()
	if since := code.Since(); since == (fuse.Version{}) || c.version.LT(since) {
		return nil, c.unsupported(fmt.Sprintf("notification %d", code), since)
	}

	var aw argWriter
	hdr := rawOutHeader{Error: int32(code)}
	aw.Write(unsafe.Pointer(&hdr), unsafe.Sizeof(hdr))

	switch n := n.(type) {
	case *fuse.InvalidateNodeNotification:
		out := rawNotifyInvalInodeOut{Ino: uint64(n.Node), Off: n.Offset, Len: n.Length}
		aw.Write(unsafe.Pointer(&out), unsafe.Sizeof(out))
	case *fuse.InvalidateEntryNotification:
		out := rawNotifyInvalEntryOut{Parent: uint64(n.Parent), NameLen: uint32(len(n.Name))}
		aw.Write(unsafe.Pointer(&out), unsafe.Sizeof(out))
		aw.String(n.Name)
	case *fuse.DeleteNotification:
		out := rawNotifyDeleteOut{Parent: uint64(n.Parent), Child: uint64(n.Child), NameLen: uint32(len(n.Name))}
		aw.Write(unsafe.Pointer(&out), unsafe.Sizeof(out))
		aw.String(n.Name)
	default:
		return nil, fmt.Errorf("%w: notification %T", ErrUnexpectedMessage, n)
	}
	return aw.Finish(), nil
}

// DecodeNotify decodes a notification frame as the kernel would read it.
func (c *Codec) DecodeNotify(frame []byte) (n fuse.Notification, err error) {
	if len(frame) < outHeaderSize {
		return nil, fmt.Errorf("%w: read %d bytes, header is %d bytes", ErrTruncatedFrame, len(frame), outHeaderSize)
	}

	ar := argReader{data: frame}
	var hdr rawOutHeader
	ar.Read(unsafe.Pointer(&hdr), unsafe.Sizeof(hdr))
	switch {
	case int(hdr.Len) != len(frame):
		return nil, fmt.Errorf("%w: read %d bytes, header declares %d", ErrFrameLength, len(frame), hdr.Len)
	case hdr.Unique != 0:
		return nil, fmt.Errorf("%w: notification with request ID %d", ErrMalformedHeader, hdr.Unique)
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if rerr, ok := r.(error); ok && errors.Is(rerr, errIncomplete) {
			n, err = nil, fmt.Errorf("%w: notification is %d bytes", ErrInsufficientData, len(frame))
			return
		}
		panic(r)
	}()

	switch code := fuse.NotifyCode(hdr.Error); code {
	case fuse.NotifyInvalidateNode:
		var out rawNotifyInvalInodeOut
		ar.Read(unsafe.Pointer(&out), unsafe.Sizeof(out))
		return &fuse.InvalidateNodeNotification{Node: fuse.Node(out.Ino), Offset: out.Off, Length: out.Len}, nil
	case fuse.NotifyInvalidateEntry:
		var out rawNotifyInvalEntryOut
		ar.Read(unsafe.Pointer(&out), unsafe.Sizeof(out))
		return &fuse.InvalidateEntryNotification{Parent: fuse.Node(out.Parent), Name: ar.String()}, nil
	case fuse.NotifyDelete:
		var out rawNotifyDeleteOut
		ar.Read(unsafe.Pointer(&out), unsafe.Sizeof(out))
		return &fuse.DeleteNotification{Parent: fuse.Node(out.Parent), Child: fuse.Node(out.Child), Name: ar.String()}, nil
	default:
		return nil, fmt.Errorf("%w: notification code %d", ErrUnsupportedField, code)
	}
}
