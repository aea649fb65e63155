package wire

import (
	"os"
	"syscall"
	"time"

	"github.com/rfratto/asyncfuse/internal/fuse"
)

func toSecondFrag(d time.Duration) uint64 {
	return uint64(d / time.Second)
}

func toNanosecondFrag(d time.Duration) uint32 {
	rem := d - d.Truncate(time.Second)
	return uint32(rem.Nanoseconds())
}

func fromFrags(sec uint64, nsec uint32) time.Duration {
	return time.Duration(sec)*time.Second + time.Duration(nsec)
}

func toUnix(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.Unix())
}

func toUnixNsOffset(t time.Time) uint32 {
	if t.IsZero() {
		return 0
	}
	return uint32(t.Nanosecond())
}

func fromUnix(sec uint64, nsec uint32) time.Time {
	return time.Unix(int64(sec), int64(nsec))
}

func toRequestHeader(hdr rawInHeader) fuse.RequestHeader {
	return fuse.RequestHeader{
		Op:        fuse.Op(hdr.Opcode),
		RequestID: hdr.Unique,
		Node:      fuse.Node(hdr.NodeID),
		UID:       hdr.UID,
		GID:       hdr.GID,
		PID:       hdr.PID,
	}
}

func toRawInHeader(hdr fuse.RequestHeader) rawInHeader {
	return rawInHeader{
		Opcode: uint32(hdr.Op),
		Unique: hdr.RequestID,
		NodeID: uint64(hdr.Node),
		UID:    hdr.UID,
		GID:    hdr.GID,
		PID:    hdr.PID,
	}
}

func toRawEntryOut(in fuse.Entry) rawEntryOut {
	return rawEntryOut{
		NodeID:         uint64(in.Node),
		Generation:     in.Generation,
		EntryValid:     toSecondFrag(in.EntryTTL),
		AttrValid:      toSecondFrag(in.AttribTTL),
		EntryValidNsec: toNanosecondFrag(in.EntryTTL),
		AttrValidNsec:  toNanosecondFrag(in.AttribTTL),
		Attr:           toRawAttr(in.Attrib),
	}
}

func fromRawEntryOut(in rawEntryOut) fuse.Entry {
	return fuse.Entry{
		Node:       fuse.Node(in.NodeID),
		Generation: in.Generation,
		EntryTTL:   fromFrags(in.EntryValid, in.EntryValidNsec),
		AttribTTL:  fromFrags(in.AttrValid, in.AttrValidNsec),
		Attrib:     fromRawAttr(in.Attr),
	}
}

func toRawAttr(in fuse.Attrib) rawAttr {
	return rawAttr{
		Inode:     in.Inode,
		Size:      in.Size,
		Blocks:    in.Blocks,
		Atime:     toUnix(in.LastAccess),
		Mtime:     toUnix(in.LastModify),
		Ctime:     toUnix(in.LastChange),
		ATimeNsec: toUnixNsOffset(in.LastAccess),
		MTimeNsec: toUnixNsOffset(in.LastModify),
		CTimeNsec: toUnixNsOffset(in.LastChange),
		Mode:      toLinuxMode(in.Mode),
		Nlink:     in.HardLinks,
		UID:       in.UID,
		GID:       in.GID,
		RDev:      in.RDev,
		BlockSize: in.BlockSize,
	}
}

func fromRawAttr(in rawAttr) fuse.Attrib {
	return fuse.Attrib{
		Inode:      in.Inode,
		Size:       in.Size,
		Blocks:     in.Blocks,
		LastAccess: fromUnix(in.Atime, in.ATimeNsec),
		LastModify: fromUnix(in.Mtime, in.MTimeNsec),
		LastChange: fromUnix(in.Ctime, in.CTimeNsec),
		Mode:       toNativeMode(in.Mode),
		HardLinks:  in.Nlink,
		UID:        in.UID,
		GID:        in.GID,
		RDev:       in.RDev,
		BlockSize:  in.BlockSize,
	}
}

func toRawFileLock(in fuse.Lock) rawFileLock {
	return rawFileLock{Start: in.Start, End: in.End, Type: uint32(in.Type), PID: in.PID}
}

func fromRawFileLock(in rawFileLock) fuse.Lock {
	return fuse.Lock{Start: in.Start, End: in.End, Type: fuse.LockType(in.Type), PID: in.PID}
}

func toLinuxMode(in os.FileMode) uint32 {
	var out uint32
	out = uint32(in) & 0o777
	switch {
	case in&os.ModeType == 0:
		out |= syscall.S_IFREG
	case in&os.ModeDir != 0:
		out |= syscall.S_IFDIR
	case in&os.ModeDevice != 0 && in&os.ModeCharDevice != 0:
		out |= syscall.S_IFCHR
	case in&os.ModeDevice != 0:
		out |= syscall.S_IFBLK
	case in&os.ModeNamedPipe != 0:
		out |= syscall.S_IFIFO
	case in&os.ModeSymlink != 0:
		out |= syscall.S_IFLNK
	case in&os.ModeSocket != 0:
		out |= syscall.S_IFSOCK
	}
	if in&os.ModeSetuid != 0 {
		out |= syscall.S_ISUID
	}
	if in&os.ModeSetgid != 0 {
		out |= syscall.S_ISGID
	}
	if in&os.ModeSticky != 0 {
		out |= syscall.S_ISVTX
	}
	return out
}

func toNativeMode(in uint32) os.FileMode {
	out := os.FileMode(in & 0o777)
	switch in & syscall.S_IFMT {
	case syscall.S_IFBLK:
		out |= os.ModeDevice
	case syscall.S_IFCHR:
		out |= os.ModeDevice | os.ModeCharDevice
	case syscall.S_IFDIR:
		out |= os.ModeDir
	case syscall.S_IFIFO:
		out |= os.ModeNamedPipe
	case syscall.S_IFLNK:
		out |= os.ModeSymlink
	case syscall.S_IFREG:
		// nothing to do
	case syscall.S_IFSOCK:
		out |= os.ModeSocket
	case 0:
		out |= os.ModeIrregular
	}
	if in&syscall.S_ISGID != 0 {
		out |= os.ModeSetgid
	}
	if in&syscall.S_ISUID != 0 {
		out |= os.ModeSetuid
	}
	if in&syscall.S_ISVTX != 0 {
		out |= os.ModeSticky
	}
	return out
}

// toPermMode converts a umask, which never carries file type bits.
func toPermMode(in uint32) os.FileMode { return os.FileMode(in & 0o777) }
