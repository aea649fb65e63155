package wire

import (
	"testing"

	"github.com/rfratto/asyncfuse/internal/fuse"
	"github.com/stretchr/testify/require"
)

func TestNotify_RoundTrip(t *testing.T) {
	c := mustCodec(t, fuse.MaxVersion)

	tt := []fuse.Notification{
		&fuse.InvalidateNodeNotification{Node: 5, Offset: -1},
		&fuse.InvalidateNodeNotification{Node: 5, Offset: 4096, Length: 8192},
		&fuse.InvalidateEntryNotification{Parent: fuse.RootNode, Name: "hello"},
		&fuse.DeleteNotification{Parent: fuse.RootNode, Child: 6, Name: "gone"},
	}

	for _, n := range tt {
		frame, err := c.EncodeNotify(n)
		require.NoError(t, err)

		actual, err := c.DecodeNotify(frame)
		require.NoError(t, err)
		require.Equal(t, n, actual)
	}
}

func TestEncodeNotify_Versions(t *testing.T) {
	_, err := mustCodec(t, fuse.Version{Major: 7, Minor: 11}).EncodeNotify(&fuse.InvalidateEntryNotification{Parent: 1, Name: "x"})
	require.ErrorIs(t, err, ErrUnsupportedField)

	_, err = mustCodec(t, fuse.Version{Major: 7, Minor: 17}).EncodeNotify(&fuse.DeleteNotification{Parent: 1, Child: 2, Name: "x"})
	require.ErrorIs(t, err, ErrUnsupportedField)

	_, err = mustCodec(t, fuse.Version{Major: 7, Minor: 18}).EncodeNotify(&fuse.DeleteNotification{Parent: 1, Child: 2, Name: "x"})
	require.NoError(t, err)
}

func TestEncodeNotify_Layout(t *testing.T) {
	c := mustCodec(t, fuse.MaxVersion)

	frame, err := c.EncodeNotify(&fuse.InvalidateEntryNotification{Parent: 1, Name: "abc"})
	require.NoError(t, err)

	// header + parent/namelen/padding + name + NUL
	require.Len(t, frame, outHeaderSize+16+4)
	require.Equal(t, byte(fuse.NotifyInvalidateEntry), frame[4])
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0}, frame[8:16], "request ID must be 0")
}
