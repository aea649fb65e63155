package fuse

import "strconv"

// Op is a FUSE opcode.
type Op uint32

// Opcodes understood by the kernel. Opcodes not listed here are unknown to
// every supported protocol version.
const (
	OpLookup      Op = 1
	OpForget      Op = 2 // Does not generate a response
	OpGetattr     Op = 3
	OpSetattr     Op = 4
	OpReadlink    Op = 5
	OpSymlink     Op = 6
	OpMknod       Op = 8
	OpMkdir       Op = 9
	OpUnlink      Op = 10
	OpRmdir       Op = 11
	OpRename      Op = 12
	OpLink        Op = 13
	OpOpen        Op = 14
	OpRead        Op = 15
	OpWrite       Op = 16
	OpStatfs      Op = 17
	OpRelease     Op = 18
	OpFsync       Op = 20
	OpSetxattr    Op = 21
	OpGetxattr    Op = 22
	OpListxattr   Op = 23
	OpRemovexattr Op = 24
	OpFlush       Op = 25
	OpInit        Op = 26
	OpOpendir     Op = 27
	OpReaddir     Op = 28
	OpReleasedir  Op = 29
	OpFsyncdir    Op = 30
	OpGetlk       Op = 31
	OpSetlk       Op = 32
	OpSetlkw      Op = 33
	OpAccess      Op = 34
	OpCreate      Op = 35
	OpInterrupt   Op = 36 // Does not generate a response
	OpBmap        Op = 37
	OpDestroy     Op = 38
	OpIoctl       Op = 39
	OpPoll        Op = 40
	OpNotifyReply Op = 41 // Does not generate a response
	OpBatchForget Op = 42 // Does not generate a response
	OpFallocate   Op = 43

	OpCUSEInit Op = 4096
)

type opInfo struct {
	name  string
	since Version
}

var ops = map[Op]opInfo{
	OpLookup:      {"LOOKUP", Version{7, 0}},
	OpForget:      {"FORGET", Version{7, 0}},
	OpGetattr:     {"GETATTR", Version{7, 0}},
	OpSetattr:     {"SETATTR", Version{7, 0}},
	OpReadlink:    {"READLINK", Version{7, 0}},
	OpSymlink:     {"SYMLINK", Version{7, 0}},
	OpMknod:       {"MKNOD", Version{7, 0}},
	OpMkdir:       {"MKDIR", Version{7, 0}},
	OpUnlink:      {"UNLINK", Version{7, 0}},
	OpRmdir:       {"RMDIR", Version{7, 0}},
	OpRename:      {"RENAME", Version{7, 0}},
	OpLink:        {"LINK", Version{7, 0}},
	OpOpen:        {"OPEN", Version{7, 0}},
	OpRead:        {"READ", Version{7, 0}},
	OpWrite:       {"WRITE", Version{7, 0}},
	OpStatfs:      {"STATFS", Version{7, 0}},
	OpRelease:     {"RELEASE", Version{7, 0}},
	OpFsync:       {"FSYNC", Version{7, 0}},
	OpSetxattr:    {"SETXATTR", Version{7, 0}},
	OpGetxattr:    {"GETXATTR", Version{7, 0}},
	OpListxattr:   {"LISTXATTR", Version{7, 0}},
	OpRemovexattr: {"REMOVEXATTR", Version{7, 0}},
	OpFlush:       {"FLUSH", Version{7, 0}},
	OpInit:        {"INIT", Version{7, 0}},
	OpOpendir:     {"OPENDIR", Version{7, 3}},
	OpReaddir:     {"READDIR", Version{7, 3}},
	OpReleasedir:  {"RELEASEDIR", Version{7, 3}},
	OpFsyncdir:    {"FSYNCDIR", Version{7, 3}},
	OpGetlk:       {"GETLK", Version{7, 7}},
	OpSetlk:       {"SETLK", Version{7, 7}},
	OpSetlkw:      {"SETLKW", Version{7, 7}},
	OpAccess:      {"ACCESS", Version{7, 3}},
	OpCreate:      {"CREATE", Version{7, 6}},
	OpInterrupt:   {"INTERRUPT", Version{7, 8}},
	OpBmap:        {"BMAP", Version{7, 8}},
	OpDestroy:     {"DESTROY", Version{7, 8}},
	OpIoctl:       {"IOCTL", Version{7, 11}},
	OpPoll:        {"POLL", Version{7, 11}},
	OpNotifyReply: {"NOTIFY_REPLY", Version{7, 15}},
	OpBatchForget: {"BATCH_FORGET", Version{7, 16}},
	OpFallocate:   {"FALLOCATE", Version{7, 19}},
	OpCUSEInit:    {"CUSE_INIT", Version{7, 12}},
}

// String returns the kernel name of op.
func (op Op) String() string {
	if info, ok := ops[op]; ok {
		return info.name
	}
	return "Op(" + strconv.FormatUint(uint64(op), 10) + ")"
}

// Known reports whether op is defined by any protocol version.
func (op Op) Known() bool {
	_, ok := ops[op]
	return ok
}

// Since returns the first protocol version where op is defined. Since returns
// the zero Version for unknown opcodes.
func (op Op) Since() Version {
	return ops[op].since
}

// AvailableIn reports whether op is defined at protocol version v.
func (op Op) AvailableIn(v Version) bool {
	info, ok := ops[op]
	return ok && v.GE(info.since)
}

// NoReply reports whether the kernel expects no response for op.
func (op Op) NoReply() bool {
	switch op {
	case OpForget, OpBatchForget, OpInterrupt, OpNotifyReply:
		return true
	default:
		return false
	}
}

// Ops returns every opcode defined at protocol version v.
func Ops(v Version) []Op {
	res := make([]Op, 0, len(ops))
	for op, info := range ops {
		if v.GE(info.since) {
			res = append(res, op)
		}
	}
	return res
}
