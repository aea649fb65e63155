package session

import (
	"fmt"

	"github.com/rfratto/asyncfuse/internal/fuse"
)

// InvalidateNode tells the kernel to drop cached data for node. A negative
// off only invalidates attributes; a length of 0 invalidates to the end of the
// file. Requires protocol 7.12.
func (s *Session) InvalidateNode(node fuse.Node, off, length int64) error {
	return s.notify(&fuse.InvalidateNodeNotification{Node: node, Offset: off, Length: length})
}

// InvalidateEntry tells the kernel to drop its cached lookup of name in
// parent. Requires protocol 7.12.
func (s *Session) InvalidateEntry(parent fuse.Node, name string) error {
	return s.notify(&fuse.InvalidateEntryNotification{Parent: parent, Name: name})
}

// NotifyDelete tells the kernel that name in parent, which pointed to child,
// was removed. Requires protocol 7.18.
func (s *Session) NotifyDelete(parent, child fuse.Node, name string) error {
	return s.notify(&fuse.DeleteNotification{Parent: parent, Child: child, Name: name})
}

func (s *Session) notify(n fuse.Notification) error {
	if st := s.State(); st != StateActive {
		return fmt.Errorf("%w: session is %s", ErrNotActive, st)
	}

	frame, err := s.codec.EncodeNotify(n)
	if err != nil {
		return err
	}

	s.wmut.Lock()
	defer s.wmut.Unlock()
	if _, err := s.o.Device.Write(frame); err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	return nil
}
