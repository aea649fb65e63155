package fuse

import (
	"fmt"
	"io"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOp_String(t *testing.T) {
	require.Equal(t, "LOOKUP", OpLookup.String())
	require.Equal(t, "BATCH_FORGET", OpBatchForget.String())
	require.Equal(t, "Op(9000)", Op(9000).String())
}

func TestOp_AvailableIn(t *testing.T) {
	require.True(t, OpLookup.AvailableIn(MinVersion))
	require.False(t, OpBatchForget.AvailableIn(Version{7, 15}))
	require.True(t, OpBatchForget.AvailableIn(Version{7, 16}))
	require.False(t, OpFallocate.AvailableIn(Version{7, 18}))
	require.False(t, Op(9000).AvailableIn(MaxVersion))
}

func TestOps(t *testing.T) {
	require.Len(t, Ops(MaxVersion), len(ops))
	require.NotContains(t, Ops(Version{7, 18}), OpFallocate)
	require.Contains(t, Ops(MinVersion), OpDestroy)
}

func TestError(t *testing.T) {
	require.Equal(t, "no such file or directory", ErrorNotExist.Error())
	require.Equal(t, Error(-int32(syscall.ENOENT)), ErrorNotExist)
	require.Equal(t, Error(-int32(syscall.ENOSYS)), ErrorUnimplemented)
	require.Equal(t, Error(-int32(syscall.EPROTO)), ErrorProtocol)
}

func TestIsDeviceGone(t *testing.T) {
	require.True(t, IsDeviceGone(io.EOF))
	require.True(t, IsDeviceGone(fmt.Errorf("read: %w", syscall.ENODEV)))
	require.True(t, IsDeviceGone(os.ErrClosed))
	require.False(t, IsDeviceGone(syscall.EINTR))
}
