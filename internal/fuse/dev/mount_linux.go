package dev

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Mount mounts a filesystem at dir using fusermount and returns the Device
// to serve it over. Closing the Device unmounts dir.
func Mount(l log.Logger, dir string, opts ...MountOption) (*Device, error) {
	if l == nil {
		l = log.NewNopLogger()
	}
	l = log.With(l, "mountpoint", dir)

	f, err := mount(l, dir, newMountConfig(opts))
	if err != nil {
		return nil, err
	}
	level.Info(l).Log("msg", "mounted filesystem")

	return NewDevice(l, f, func() {
		level.Debug(l).Log("msg", "unmounting filesystem")
		if err := Unmount(dir); err != nil {
			level.Error(l).Log("msg", "failed to unmount on close", "err", err)
			return
		}
		level.Info(l).Log("msg", "unmounted filesystem")
	}), nil
}

// Unmount lazily unmounts the filesystem at dir.
func Unmount(dir string) error {
	output, err := exec.Command("fusermount", "-z", "-u", dir).CombinedOutput()
	if err != nil {
		if output = bytes.TrimRight(output, "\n"); len(output) > 0 {
			err = fmt.Errorf("%w: %s", err, output)
		}
	}
	return err
}

// mount runs fusermount, which opens /dev/fuse, mounts it at dir, and passes
// the open file descriptor back over a socket.
func mount(l log.Logger, dir string, cfg *mountConfig) (*os.File, error) {
	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socketpair: %w", err)
	}

	childEnd := os.NewFile(uintptr(fds[0]), "fusermount-child")
	defer childEnd.Close()
	parentEnd := os.NewFile(uintptr(fds[1]), "fusermount-parent")
	defer parentEnd.Close()

	if err := runFusermount(l, dir, cfg, childEnd); err != nil {
		return nil, err
	}
	return receiveDevice(parentEnd)
}

func runFusermount(l log.Logger, dir string, cfg *mountConfig, commFile *os.File) error {
	cmd := exec.Command("fusermount", "-o", cfg.String(), "--", dir)
	cmd.ExtraFiles = []*os.File{commFile}
	cmd.Env = append(os.Environ(), "_FUSE_COMMFD=3")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("fusermount stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("fusermount stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting fusermount: %w", err)
	}

	// Both pipes must be drained before calling Wait.
	var pipes sync.WaitGroup
	pipes.Add(2)

	forward := func(r io.Reader, lvl level.Value) {
		defer pipes.Done()
		leveled := log.WithPrefix(l, level.Key(), lvl, "component", "fusermount")

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			leveled.Log("msg", scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			level.Error(l).Log("msg", "failed to read fusermount output", "err", err)
		}
	}
	go forward(stdout, level.DebugValue())
	go forward(stderr, level.WarnValue())

	pipes.Wait()
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("fusermount failed: %w", err)
	}
	return nil
}

// receiveDevice reads the /dev/fuse descriptor sent by fusermount as an
// SCM_RIGHTS control message.
func receiveDevice(f *os.File) (*os.File, error) {
	c, err := net.FileConn(f)
	if err != nil {
		return nil, fmt.Errorf("FileConn from fusermount socket: %w", err)
	}
	defer c.Close()

	uc, ok := c.(*net.UnixConn)
	if !ok {
		return nil, fmt.Errorf("unexpected FileConn type; expected UnixConn, got %T", c)
	}

	// Only the out-of-band data matters. A single descriptor needs 24 bytes;
	// the buffer is oversized a little.
	oob := make([]byte, 32)
	_, oobLen, _, _, err := uc.ReadMsgUnix(make([]byte, 32), oob)
	if err != nil {
		return nil, fmt.Errorf("reading fusermount message: %w", err)
	}

	msgs, err := syscall.ParseSocketControlMessage(oob[:oobLen])
	if err != nil {
		return nil, fmt.Errorf("parsing control message: %w", err)
	}
	if len(msgs) != 1 {
		return nil, fmt.Errorf("expected 1 control message, got %d", len(msgs))
	}

	fds, err := syscall.ParseUnixRights(&msgs[0])
	if err != nil {
		return nil, fmt.Errorf("parsing unix rights: %w", err)
	}
	if len(fds) != 1 {
		return nil, fmt.Errorf("expected 1 file descriptor, got %d", len(fds))
	}
	return os.NewFile(uintptr(fds[0]), "/dev/fuse"), nil
}
