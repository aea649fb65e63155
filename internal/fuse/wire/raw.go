package wire

import "unsafe"

// Raw FUSE types from Linux. These must match Linux's definitions verbatim,
// including padding fields, as their values are (unsafely) copied directly
// to and from frames in native byte order.
//
// `_` fields are used for padding, as structs must be 64-bit aligned.

type rawInHeader struct {
	Len    uint32
	Opcode uint32
	Unique uint64
	NodeID uint64
	UID    uint32
	GID    uint32
	PID    uint32
	_      uint32
}

type rawOutHeader struct {
	Len    uint32
	Error  int32
	Unique uint64
}

type rawAttr struct {
	Inode     uint64
	Size      uint64
	Blocks    uint64
	Atime     uint64
	Mtime     uint64
	Ctime     uint64
	ATimeNsec uint32
	MTimeNsec uint32
	CTimeNsec uint32
	Mode      uint32
	Nlink     uint32
	UID       uint32
	GID       uint32
	RDev      uint32
	BlockSize uint32
	_         uint32
}

type rawEntryOut struct {
	NodeID         uint64
	Generation     uint64
	EntryValid     uint64
	AttrValid      uint64
	EntryValidNsec uint32
	AttrValidNsec  uint32
	Attr           rawAttr
}

type rawForgetIn struct {
	NLookup uint64
}

type rawForgetOne struct {
	NodeID  uint64
	Nlookup uint64
}

type rawBatchForgetIn struct {
	Count uint32
	_     uint32
}

type rawGetattrIn struct {
	GetattrFlags uint32
	_            uint32
	Fh           uint64
}

type rawAttrOut struct {
	AttrValid     uint64
	AttrValidNsec uint32
	_             uint32
	Attr          rawAttr
}

// rawMknodIn gained Umask in 7.12. Earlier versions only send the first
// mknodInCompatSize bytes.
type rawMknodIn struct {
	Mode  uint32
	Rdev  uint32
	Umask uint32
	_     uint32
}

type rawMkdirIn struct {
	Mode  uint32
	Umask uint32 // Padding before 7.12
}

type rawRenameIn struct {
	Newdir uint64
}

type rawLinkIn struct {
	OldNodeID uint64
}

type rawSetattrIn struct {
	Valid     uint32
	_         uint32
	Fh        uint64
	Size      uint64
	LockOwner uint64
	Atime     uint64
	Mtime     uint64
	Ctime     uint64
	AtimeNsec uint32
	MtimeNsec uint32
	CtimeNsec uint32
	Mode      uint32
	_         uint32
	UID       uint32
	GID       uint32
	_         uint32
}

type rawOpenIn struct {
	Flags uint32
	_     uint32
}

// rawCreateIn gained Umask in 7.12. Earlier versions only send the first
// createInCompatSize bytes.
type rawCreateIn struct {
	Flags uint32
	Mode  uint32
	Umask uint32
	_     uint32
}

type rawOpenOut struct {
	Fh        uint64
	OpenFlags uint32
	_         uint32
}

type rawReleaseIn struct {
	Fh           uint64
	Flags        uint32
	ReleaseFlags uint32
	LockOwner    uint64
}

type rawFlushIn struct {
	Fh        uint64
	_         uint32
	_         uint32
	LockOwner uint64
}

type rawReadIn struct {
	Fh        uint64
	Offset    uint64
	Size      uint32
	ReadFlags uint32
	LockOwner uint64
	Flags     uint32
	_         uint32
}

type rawWriteIn struct {
	Fh         uint64
	Offset     uint64
	Size       uint32
	WriteFlags uint32
	LockOwner  uint64
	Flags      uint32
	_          uint32
}

type rawWriteOut struct {
	Size uint32
	_    uint32
}

type rawKstatfs struct {
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	Bsize   uint32
	NameLen uint32
	Frsize  uint32
	_       uint32
	_       [6]uint32
}

type rawStatfsOut struct {
	St rawKstatfs
}

type rawFsyncIn struct {
	Fh         uint64
	FsyncFlags uint32
	_          uint32
}

type rawSetxattrIn struct {
	Size  uint32
	Flags uint32
}

type rawGetxattrIn struct {
	Size uint32
	_    uint32
}

type rawGetxattrOut struct {
	Size uint32
	_    uint32
}

type rawFileLock struct {
	Start uint64
	End   uint64
	Type  uint32
	PID   uint32
}

type rawLkIn struct {
	Fh      uint64
	Owner   uint64
	Lk      rawFileLock
	LkFlags uint32
	_       uint32
}

type rawLkOut struct {
	Lk rawFileLock
}

type rawAccessIn struct {
	Mask uint32
	_    uint32
}

type rawInitIn struct {
	Major        uint32
	Minor        uint32
	MaxReadahead uint32
	Flags        uint32
}

// rawInitOut is the 7.x layout of init_out up to 7.22. Before 7.13,
// MaxBackground and CongestionThreshold were an unused uint32.
type rawInitOut struct {
	Major               uint32
	Minor               uint32
	MaxReadahead        uint32
	Flags               uint32
	MaxBackground       uint16
	CongestionThreshold uint16
	MaxWrite            uint32
}

type rawInterruptIn struct {
	Unique uint64
}

type rawBmapIn struct {
	Block     uint64
	BlockSize uint32
	_         uint32
}

type rawBmapOut struct {
	Block uint64
}

type rawFallocateIn struct {
	Fh     uint64
	Offset uint64
	Length uint64
	Mode   uint32
	_      uint32
}

type rawDirent struct {
	Ino     uint64
	Offset  uint64 // Offset of the next entry.
	NameLen uint32
	Type    uint32
	// Followed by NameLen bytes of name and padding to 64-bit alignment.
}

type rawNotifyInvalInodeOut struct {
	Ino uint64
	Off int64
	Len int64
}

type rawNotifyInvalEntryOut struct {
	Parent  uint64
	NameLen uint32
	_       uint32
}

type rawNotifyDeleteOut struct {
	Parent  uint64
	Child   uint64
	NameLen uint32
	_       uint32
}

const (
	inHeaderSize  = int(unsafe.Sizeof(rawInHeader{}))
	outHeaderSize = int(unsafe.Sizeof(rawOutHeader{}))
	direntSize    = int(unsafe.Sizeof(rawDirent{}))

	// Sizes of structures before they were extended in 7.12.
	mknodInCompatSize  = 8
	createInCompatSize = 8
)
