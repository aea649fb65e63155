package fuse

// NotifyCode identifies an unsolicited notification sent from the filesystem
// to the kernel. It is sent in place of the error field of a response header
// with a request ID of 0.
type NotifyCode int32

// Notification codes.
const (
	NotifyPoll            NotifyCode = 1
	NotifyInvalidateNode  NotifyCode = 2
	NotifyInvalidateEntry NotifyCode = 3
	NotifyStore           NotifyCode = 4
	NotifyRetrieve        NotifyCode = 5
	NotifyDelete          NotifyCode = 6
)

var notifyVersions = map[NotifyCode]Version{
	NotifyPoll:            {7, 11},
	NotifyInvalidateNode:  {7, 12},
	NotifyInvalidateEntry: {7, 12},
	NotifyStore:           {7, 15},
	NotifyRetrieve:        {7, 15},
	NotifyDelete:          {7, 18},
}

// Since returns the first protocol version defining c.
func (c NotifyCode) Since() Version { return notifyVersions[c] }

// Notification is an unsolicited message sent to the kernel.
type Notification interface {
	NotifyCode() NotifyCode
}

type (
	// InvalidateNodeNotification invalidates cached attributes and data of
	// Node. A negative Offset invalidates attributes only; a Length of 0
	// invalidates to the end of the file.
	InvalidateNodeNotification struct {
		Node   Node
		Offset int64
		Length int64
	}

	// InvalidateEntryNotification invalidates the cached lookup of Name in
	// Parent.
	InvalidateEntryNotification struct {
		Parent Node
		Name   string
	}

	// DeleteNotification tells the kernel that Name in Parent, which
	// referred to Child, was deleted.
	DeleteNotification struct {
		Parent Node
		Child  Node
		Name   string
	}
)

func (*InvalidateNodeNotification) NotifyCode() NotifyCode  { return NotifyInvalidateNode }
func (*InvalidateEntryNotification) NotifyCode() NotifyCode { return NotifyInvalidateEntry }
func (*DeleteNotification) NotifyCode() NotifyCode          { return NotifyDelete }
