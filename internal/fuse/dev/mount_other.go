//go:build !linux
// +build !linux

package dev

import (
	"fmt"
	"runtime"

	"github.com/go-kit/log"
)

// Mount is only supported on Linux.
func Mount(l log.Logger, dir string, opts ...MountOption) (*Device, error) {
	return nil, fmt.Errorf("mounting is not supported on %s", runtime.GOOS)
}

// Unmount is only supported on Linux.
func Unmount(dir string) error {
	return fmt.Errorf("unmounting is not supported on %s", runtime.GOOS)
}
