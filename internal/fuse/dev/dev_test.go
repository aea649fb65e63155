package dev

import (
	"io"
	"os"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
)

func TestDevice_ReadWrite(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)

	reader := NewDevice(log.NewNopLogger(), r, nil)
	writer := NewDevice(log.NewNopLogger(), w, nil)
	defer reader.Close()

	n, err := writer.Write([]byte("frame"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	buf := make([]byte, 64)
	n, err = reader.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "frame", string(buf[:n]))

	// A closed peer looks like an unmounted filesystem.
	require.NoError(t, writer.Close())
	_, err = reader.Read(buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestDevice_Close(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()

	var unmounts int
	d := NewDevice(nil, r, func() { unmounts++ })

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	require.Equal(t, 1, unmounts)

	_, err = d.Read(make([]byte, 8))
	require.ErrorIs(t, err, os.ErrClosed)
	_, err = d.Write([]byte("x"))
	require.ErrorIs(t, err, os.ErrClosed)
}

func TestMountConfig_String(t *testing.T) {
	cfg := newMountConfig([]MountOption{
		ReadOnly(),
		FSName(`nullfs,with\slash`),
		AllowOther(),
		Subtype("nullfs"),
	})
	require.Equal(t, `allow_other,fsname=nullfs\,with\\slash,ro,subtype=nullfs`, cfg.String())
}

func TestParseMountOption(t *testing.T) {
	tt := []struct {
		in     string
		expect string
		err    bool
	}{
		{in: "fsname=nullfs", expect: "fsname=nullfs"},
		{in: "subtype=demo", expect: "subtype=demo"},
		{in: "allow_other", expect: "allow_other"},
		{in: "default_permissions", expect: "default_permissions"},
		{in: "ro", expect: "ro"},
		{in: "ro=1", err: true},
		{in: "suid", err: true},
		{in: "", err: true},
	}

	for _, tc := range tt {
		t.Run(tc.in, func(t *testing.T) {
			opt, err := ParseMountOption(tc.in)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expect, newMountConfig([]MountOption{opt}).String())
		})
	}
}
