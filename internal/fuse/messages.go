package fuse

import (
	"os"
	"time"
)

// Protocol types. Each type here is used as part of the request or response
// for one or more operations. Operations without a request payload
// (READLINK, STATFS, DESTROY) carry a nil Request. Operations which succeed
// without a payload carry a nil Response.
type (
	LookupRequest struct {
		Name string
	}
	EntryResponse struct {
		Entry Entry
	}

	ForgetRequest struct {
		NumLookups uint64
	}

	GetattrRequest struct {
		Flags  GetAttribFlags
		Handle Handle
	}
	SetattrRequest struct {
		UpdateMask AttribMask  // Mask indicating which fields to use for the update.
		Handle     Handle      // Handle to set attributes for.
		Size       uint64      // File size.
		LockOwner  LockOwner   // Owner of a lock.
		LastAccess time.Time   // Last time file was accessed.
		LastModify time.Time   // Last time file was modified.
		LastChange time.Time   // Last time file was updated.
		Mode       os.FileMode // File permissions.
		UID        uint32      // Owner UID
		GID        uint32      // Owner GID
	}
	AttrResponse struct {
		TTL    time.Duration // Cache validility of the attributes.
		Attrib Attrib        // Attribute data
	}

	ReadlinkResponse struct {
		Contents []byte // Contents of the link, up to the page size.
	}

	SymlinkRequest struct {
		Name   string // Name of the link being created
		Target string // Path the link points to
	}

	MknodRequest struct {
		Mode     os.FileMode // Permissions for the file
		DeviceID uint32      // Device ID for the special file
		Umask    os.FileMode // Umask of the request (7.12+)
		Name     string      // Name of the file
	}

	MkdirRequest struct {
		Mode  os.FileMode
		Umask os.FileMode // 7.12+
		Name  string
	}

	UnlinkRequest struct {
		Name string
	}

	RmdirRequest struct {
		Name string
	}

	RenameRequest struct {
		NewDir           Node
		OldName, NewName string
	}

	LinkRequest struct {
		OldNode Node
		NewName string
	}

	OpenRequest struct {
		Flags FileFlags
	}
	OpenedResponse struct {
		Handle      Handle
		OpenedFlags OpenedFlags
	}

	ReadRequest struct {
		Handle    Handle
		Offset    uint64
		Size      uint32
		Flags     ReadFlags
		LockOwner LockOwner
		FileFlags FileFlags
	}
	ReadResponse struct {
		Data []byte
	}

	WriteRequest struct {
		Handle    Handle     // Handle to write to
		Offset    uint64     // Offset in the handle to write
		Data      []byte     // Data to write
		Flags     WriteFlags // Flags for writing
		LockOwner LockOwner  // Owner of the write lock, if one exists.
		FileFlags FileFlags  // Permissions for writing
	}
	WriteResponse struct {
		Written uint32 // Written bytes
	}

	StatfsResponse struct {
		Statfs Statfs
	}

	ReleaseRequest struct {
		Handle    Handle
		Flags     ReleaseFlags
		FileFlags FileFlags
		LockOwner LockOwner
	}

	FsyncRequest struct {
		Handle Handle
		Flags  SyncFlags
	}

	SetxattrRequest struct {
		Name  string
		Value []byte
		Flags ExtendedAttribFlags
	}

	// GetxattrRequest is used for both GETXATTR and LISTXATTR. Name is empty
	// for LISTXATTR. When Size is 0, the kernel is probing for the size of the
	// value and the response must set XattrResponse.Size instead of Data.
	GetxattrRequest struct {
		Name string
		Size uint32
	}
	XattrResponse struct {
		Size uint32 // Size of the value; only used when probing.
		Data []byte // Value or NUL-separated name list.
	}

	RemovexattrRequest struct {
		Name string
	}

	FlushRequest struct {
		Handle    Handle
		LockOwner LockOwner
	}

	InitRequest struct {
		LatestVersion Version   // LatestVersion supported by the kernel
		MaxReadahead  uint32    // Length of data that can be prefetched
		Flags         InitFlags // Flags supported by the kernel
	}
	InitResponse struct {
		Version             Version   // Version chosen by the filesystem
		MaxReadahead        uint32    // Length of data that can be prefetched
		Flags               InitFlags // Response init flags
		MaxBackground       uint16    // 7.13+
		CongestionThreshold uint16    // 7.13+
		MaxWrite            uint32
	}

	// LockRequest is used for GETLK, SETLK, and SETLKW. Wait is set for
	// SETLKW.
	LockRequest struct {
		Handle Handle
		Owner  LockOwner
		Lock   Lock
		Flags  LockFlags
		Wait   bool
	}
	LockResponse struct {
		Lock Lock
	}

	ReaddirResponse struct {
		Entries []DirEntry
	}

	AccessRequest struct {
		Mask uint32 // Validate access for mask (R_OK, W_OK, X_OK)
	}

	CreateRequest struct {
		Flags FileFlags   // Flags for creation
		Mode  os.FileMode // File mode
		Umask os.FileMode // Umask for file (7.12+)
		Name  string      // Name of file to create
	}
	CreateResponse struct {
		Handle      Handle      // Handle to newly created node
		OpenedFlags OpenedFlags // Flags used for the create
		Entry       Entry       // Created node entry
	}

	// InterruptRequest interrupts an ongoing request. The interupted request
	// should return with ErrorInterrupted. Handler implementations may ignore
	// the context cancelation that comes from an interrupt.
	InterruptRequest struct {
		RequestID uint64 // Request to interrupt
	}

	BmapRequest struct {
		Block     uint64
		BlockSize uint32
	}
	BmapResponse struct {
		Block uint64
	}

	// NotifyReplyRequest is sent by the kernel in response to a retrieve
	// notification. It is accepted and discarded.
	NotifyReplyRequest struct{}

	BatchForgetRequest struct {
		Items []BatchForgetItem
	}

	FallocateRequest struct {
		Handle Handle
		Offset uint64
		Length uint64
		Mode   uint32
	}
)

//
// Request / Response type implementations
//

func (*LookupRequest) fuseRequest()      {}
func (*EntryResponse) fuseResponse()     {}
func (*ForgetRequest) fuseRequest()      {}
func (*GetattrRequest) fuseRequest()     {}
func (*SetattrRequest) fuseRequest()     {}
func (*AttrResponse) fuseResponse()      {}
func (*ReadlinkResponse) fuseResponse()  {}
func (*SymlinkRequest) fuseRequest()     {}
func (*MknodRequest) fuseRequest()       {}
func (*MkdirRequest) fuseRequest()       {}
func (*UnlinkRequest) fuseRequest()      {}
func (*RmdirRequest) fuseRequest()       {}
func (*RenameRequest) fuseRequest()      {}
func (*LinkRequest) fuseRequest()        {}
func (*OpenRequest) fuseRequest()        {}
func (*OpenedResponse) fuseResponse()    {}
func (*ReadRequest) fuseRequest()        {}
func (*ReadResponse) fuseResponse()      {}
func (*WriteRequest) fuseRequest()       {}
func (*WriteResponse) fuseResponse()     {}
func (*StatfsResponse) fuseResponse()    {}
func (*ReleaseRequest) fuseRequest()     {}
func (*FsyncRequest) fuseRequest()       {}
func (*SetxattrRequest) fuseRequest()    {}
func (*GetxattrRequest) fuseRequest()    {}
func (*XattrResponse) fuseResponse()     {}
func (*RemovexattrRequest) fuseRequest() {}
func (*FlushRequest) fuseRequest()       {}
func (*InitRequest) fuseRequest()        {}
func (*InitResponse) fuseResponse()      {}
func (*LockRequest) fuseRequest()        {}
func (*LockResponse) fuseResponse()      {}
func (*ReaddirResponse) fuseResponse()   {}
func (*AccessRequest) fuseRequest()      {}
func (*CreateRequest) fuseRequest()      {}
func (*CreateResponse) fuseResponse()    {}
func (*InterruptRequest) fuseRequest()   {}
func (*BmapRequest) fuseRequest()        {}
func (*BmapResponse) fuseResponse()      {}
func (*NotifyReplyRequest) fuseRequest() {}
func (*BatchForgetRequest) fuseRequest() {}
func (*FallocateRequest) fuseRequest()   {}
