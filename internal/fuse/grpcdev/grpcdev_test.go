package grpcdev

import (
	"context"
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func TestExporter(t *testing.T) {
	kernel := newChanDevice()
	exp, cc := newTestExporter(t, kernel)

	dev, err := Connect(context.Background(), cc)
	require.NoError(t, err)

	// Kernel to client.
	kernel.in <- []byte("request")
	buf := make([]byte, 128)
	n, err := dev.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "request", string(buf[:n]))

	// Client to kernel.
	n, err = dev.Write([]byte("response"))
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, "response", string(recvFrame(t, kernel.out)))

	// Closing the client closes the exported device.
	require.NoError(t, dev.Close())
	select {
	case <-exp.Done():
	case <-time.After(5 * time.Second):
		require.FailNow(t, "exporter never closed device")
	}
	require.True(t, kernel.isClosed())

	_, err = dev.Write([]byte("late"))
	require.ErrorIs(t, err, os.ErrClosed)
}

func TestExporter_KernelGone(t *testing.T) {
	kernel := newChanDevice()
	_, cc := newTestExporter(t, kernel)

	dev, err := Connect(context.Background(), cc)
	require.NoError(t, err)
	defer dev.Close()

	// Make sure the stream is established before the device goes away.
	kernel.in <- []byte("request")
	_, err = dev.Read(make([]byte, 128))
	require.NoError(t, err)

	require.NoError(t, kernel.Close())
	_, err = dev.Read(make([]byte, 128))
	require.ErrorIs(t, err, io.EOF)
}

func TestExporter_SingleClient(t *testing.T) {
	kernel := newChanDevice()
	_, cc := newTestExporter(t, kernel)

	first, err := Connect(context.Background(), cc)
	require.NoError(t, err)
	defer first.Close()

	kernel.in <- []byte("request")
	_, err = first.Read(make([]byte, 128))
	require.NoError(t, err)

	second, err := Connect(context.Background(), cc)
	require.NoError(t, err)
	defer second.Close()

	_, err = second.Read(make([]byte, 128))
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestDevice_ShortBuffer(t *testing.T) {
	kernel := newChanDevice()
	_, cc := newTestExporter(t, kernel)

	dev, err := Connect(context.Background(), cc)
	require.NoError(t, err)
	defer dev.Close()

	kernel.in <- []byte("a long request")
	_, err = dev.Read(make([]byte, 4))
	require.ErrorIs(t, err, io.ErrShortBuffer)
}

func TestCodec(t *testing.T) {
	var c msgpackCodec

	bb, err := c.Marshal(&Frame{Data: []byte{1, 2, 3}})
	require.NoError(t, err)

	var f Frame
	require.NoError(t, c.Unmarshal(bb, &f))
	require.Equal(t, []byte{1, 2, 3}, f.Data)

	_, err = c.Marshal("not a frame")
	require.Error(t, err)
}

func newTestExporter(t *testing.T, dev *chanDevice) (*Exporter, *grpc.ClientConn) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	exp := NewExporter(log.NewNopLogger(), dev, 4096)

	srv := grpc.NewServer()
	RegisterDeviceServer(srv, exp)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cc, err := grpc.Dial(
		"bufconn",
		grpc.WithInsecure(),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })

	return exp, cc
}

func recvFrame(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case frame := <-ch:
		return frame
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no frame received")
		return nil
	}
}

// chanDevice is an in-memory fuse.Device standing in for /dev/fuse.
type chanDevice struct {
	in  chan []byte
	out chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newChanDevice() *chanDevice {
	return &chanDevice{
		in:     make(chan []byte),
		out:    make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (d *chanDevice) Read(p []byte) (int, error) {
	select {
	case frame := <-d.in:
		return copy(p, frame), nil
	case <-d.closed:
		return 0, io.EOF
	}
}

func (d *chanDevice) Write(p []byte) (int, error) {
	select {
	case <-d.closed:
		return 0, os.ErrClosed
	case d.out <- append([]byte(nil), p...):
		return len(p), nil
	}
}

func (d *chanDevice) Close() error {
	d.closeOnce.Do(func() { close(d.closed) })
	return nil
}

func (d *chanDevice) isClosed() bool {
	select {
	case <-d.closed:
		return true
	default:
		return false
	}
}
