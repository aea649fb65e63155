package fuse

import (
	"os"
	"time"
)

// ID types. FUSE has a collection of handles that are used during the lifetime
// of a connection.
type (
	// Node is an ID representing a file. 0 is never a valid reference. 1 will
	// always refer to the root filesystem of the driver, and is always assumed
	// to exist by both sides of the connection.
	Node uint64

	// Handle is a specific handle for a Node. Handles must have unique IDs for
	// the lifetime of the handle. Handle IDs may be reassigned to other Nodes
	// once the handle is released.
	Handle uint64

	// LockOwner is an opaque ID that references an owner of a file lock.
	LockOwner uint64
)

// Common data types. Common data types represent entities in a filesystem and
// are communicated over the protocol as part of messages.
type (
	// RequestHeader is present in every request.
	RequestHeader struct {
		Op        Op     // Op representing the request.
		RequestID uint64 // Response must match this value.
		Node      Node   // Node the request is for.
		UID       uint32 // UID of requesting user.
		GID       uint32 // GID of requesting user.
		PID       uint32 // PID of requesting user.
	}

	// ResponseHeader is present in every response.
	ResponseHeader struct {
		Op        Op     // Op of the request being answered.
		RequestID uint64 // Request for which this response applies to.
		Error     Error
	}

	// Entry is a description of a file.
	Entry struct {
		Node       Node          // Node ID.
		Generation uint64        // Generation of Node. Increase whenever Node value wraps around to 0.
		EntryTTL   time.Duration // Cache validility of this Node.
		AttribTTL  time.Duration // Cache validility of this Node's attributes.
		Attrib     Attrib        // Attributes for the Node.
	}

	// Attrib are the set of attributes for a Node.
	Attrib struct {
		Inode      uint64      // Real inode number.
		Size       uint64      // Size in bytes.
		Blocks     uint64      // Size in blocks (512-byte units).
		LastAccess time.Time   // Last time file was accessed.
		LastModify time.Time   // Last time contents were modified
		LastChange time.Time   // Last time inode was updated.
		Mode       os.FileMode // File permissions.
		HardLinks  uint32      // Number of hard links to the file (usually 1)
		UID        uint32      // Owner UID
		GID        uint32      // Owner GID
		RDev       uint32      // Device ID (if special file)
		BlockSize  uint32      // Block size for filesystem i/O
	}

	// DirEntry is a directory entry returned during Readdir.
	DirEntry struct {
		Inode uint64
		Type  EntryType
		Name  string

		// Offset the kernel should pass to the next Readdir to continue after
		// this entry. When 0, the byte offset after the entry in the response
		// is used.
		Offset uint64
	}

	// Statfs describes filesystem-wide statistics.
	Statfs struct {
		Blocks      uint64 // Total data blocks in the filesystem.
		BlocksFree  uint64 // Free blocks.
		BlocksAvail uint64 // Free blocks available to unprivileged users.
		Files       uint64 // Total file nodes.
		FilesFree   uint64 // Free file nodes.
		BlockSize   uint32 // Optimal transfer block size.
		NameLen     uint32 // Maximum length of filenames.
		FragSize    uint32 // Fragment size.
	}

	// Lock is a POSIX advisory lock.
	Lock struct {
		Start uint64   // Absolute starting byte offset to lock.
		End   uint64   // Last byte offset to lock.
		Type  LockType // Type of lock.
		PID   uint32   // PID of holding process
	}

	BatchForgetItem struct {
		Node       Node
		NumLookups uint64
	}
)

// Enum types.
type (
	// EntryType specifies the type of a file in a directory.
	EntryType uint32

	// LockType indicates the type of file lock.
	LockType uint32
)

// Enum values.
const (
	EntryUnknown    EntryType = 0x0 // Entry type isn't known
	EntryPipe       EntryType = 0x1 // Entry is a named FIFO pipe
	EntryCharacter  EntryType = 0x2 // Entry is a character device
	EntryDirectory  EntryType = 0x4 // Entry is another directory
	EntryBlock      EntryType = 0x6 // Entry is a block device
	EntryRegular    EntryType = 0x8 // Entry is a regular file
	EntryLink       EntryType = 0xa // Entry is a symbolic link
	EntryUnixSocket EntryType = 0xc // Entry is a UNIX domain socket

	LockTypeRead   LockType = 0x0 // Read lock
	LockTypeWrite  LockType = 0x1 // Write lock
	LockTypeUnlock LockType = 0x2 // Used to release locks
)

// Flag types. Every flag type here is a bitmask of options.
type (
	// GetAttribFlags is a bitmask of flags for GetattrRequest.
	GetAttribFlags uint32
	// AttribMask is used when setting file attributes to mark which fields from
	// the request can be used.
	AttribMask uint32
	// Flags used for interacting with a node.
	FileFlags uint32
	// Flags returned for an opened file.
	OpenedFlags uint32
	// ReadFlags are used to customize a ReadRequest.
	ReadFlags uint32
	// WriteFlags are used to customize a WriteRequest.
	WriteFlags uint32
	// ReleaseFlags customize a release.
	ReleaseFlags uint32
	// SyncFlags controls a file sync.
	SyncFlags uint32
	// ExtendedAttribFlags controls setting an extended attribute.
	ExtendedAttribFlags uint32
	// Flags used during an init.
	InitFlags uint32
	// LockFlags control how a lock is created.
	LockFlags uint32
)

// Monolith of available flag options.
const (
	// GetAttribFlagHandle request attributes for a handle instead of the node.
	GetAttribFlagHandle GetAttribFlags = (1 << 0)

	AttribMaskMode          AttribMask = 1 << 0 // The Mode field can be used
	AttribMaskUID           AttribMask = 1 << 1 // The UID field can be used
	AttribMaskGID           AttribMask = 1 << 2 // The GID field can be used
	AttribMaskSize          AttribMask = 1 << 3 // The Size field can be used
	AttribMaskLastAccess    AttribMask = 1 << 4 // The LastAccess field can be used
	AttribMaskLastModify    AttribMask = 1 << 5 // The LastModify field can be used
	AttribMaskFileHandle    AttribMask = 1 << 6 // The Handle field can be used
	AttribMaskLastAccessNow AttribMask = 1 << 7 // Update LastAccess to the current time
	AttribMaskLastModifyNow AttribMask = 1 << 8 // Update LastModify to the current time
	AttribMaskLockOwner     AttribMask = 1 << 9 // The LockOwner field can be used

	OpenReadOnly  FileFlags = 0x0 // Open the file for reading.
	OpenWriteOnly FileFlags = 0x1 // Open the file for writing.
	OpenReadWrite FileFlags = 0x2 // Open the file for reading and writing.
	OpenAccesMode FileFlags = 0x3 // Open the file to get access mode bits.

	OpenCreate    FileFlags = 0x40     // Create the file if it doesn't exist.
	OpenExclusive FileFlags = 0x80     // Open the file with an exclusive lock.
	OpenTruncate  FileFlags = 0x200    // Truncate file contents before opening for writing
	OpenAppend    FileFlags = 0x400    // Open with the file seeked to the end.
	OpenNonblock  FileFlags = 0x800    // Enable non-blocking IO against the open file.
	OpenDirectory FileFlags = 0x10000  // Open the file as a directory.
	OpenSync      FileFlags = 0x101000 // Enable synchronous writes

	OpenedDirectIO    OpenedFlags = 1 << 0 // Page cache should be bypassed when writing
	OpenedKeepCache   OpenedFlags = 1 << 1 // Existing page cache should be kept intact
	OpenedNonSeekable OpenedFlags = 1 << 2 // File does not support seeking (7.10+)

	ReadLockOwner ReadFlags = 1 << 1 // Use LockOwner to check exclusive lock

	WriteCache     WriteFlags = 1 << 0 // Delayed write from cache
	WriteLockOwner WriteFlags = 1 << 1 // Lock owner field may be used for validating lock

	ReleaseFlush       ReleaseFlags = 1 << 0 // Flush the file after releasing
	ReleaseFlockUnlock ReleaseFlags = 1 << 1 // Remove the BSD lock after releasing (7.17+)

	SyncDataOnly SyncFlags = 1 << 0 // Only sync data, not file metadata

	ExtendedAttribCreate  ExtendedAttribFlags = 0x1 // Fail if the attrib already exists
	ExtendedAttribReplace ExtendedAttribFlags = 0x2 // Fail if the attrib doesn't already exist

	InitAsyncRead      InitFlags = 1 << 0  // Use asynchronous read requests
	InitPOSIXLocks     InitFlags = 1 << 1  // Use POSIX file locks
	InitFileOps        InitFlags = 1 << 2  // Kernel sends a file handle
	InitAtomicTruncate InitFlags = 1 << 3  // OpenTruncate is handled in the filesystem
	InitExportSupport  InitFlags = 1 << 4  // Filesystem can handle "." and ".."
	InitBigWrites      InitFlags = 1 << 5  // Filesystem can handle writes larger than 4K
	InitDontMask       InitFlags = 1 << 6  // Don't apply Umask to file mode on create operations
	InitSpliceWrite    InitFlags = 1 << 7  // Kernel supports splice write on the device
	InitSpliceMove     InitFlags = 1 << 8  // Kernel supports splice move on the device
	InitSpliceRead     InitFlags = 1 << 9  // Kernel supports splice read on the device
	InitFlockLocks     InitFlags = 1 << 10 // Use BSD style locks
	InitIoctlDir       InitFlags = 1 << 11 // Kernel supports running ioctl on directories

	LockFlock LockFlags = 1 << 0 // BSD-style lock (7.17+)
)
