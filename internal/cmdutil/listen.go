package cmdutil

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/docker/go-connections/sockets"
	"github.com/mitchellh/go-homedir"
)

// ParseAddr splits an address of the form tcp://host:port or unix://path into
// its network and address. Addresses without a scheme are treated as TCP.
// Unix socket paths may start with ~.
func ParseAddr(addr string) (network, address string, err error) {
	if !strings.Contains(addr, "://") {
		return "tcp", addr, nil
	}

	u, err := url.Parse(addr)
	if err != nil {
		return "", "", fmt.Errorf("invalid address %q: %w", addr, err)
	}

	switch u.Scheme {
	case "tcp":
		if u.Host == "" {
			return "", "", fmt.Errorf("invalid address %q: missing host", addr)
		}
		return "tcp", u.Host, nil
	case "unix":
		// unix://~/sock parses ~ as the host.
		path, err := homedir.Expand(u.Host + u.Path)
		if err != nil {
			return "", "", fmt.Errorf("invalid address %q: %w", addr, err)
		}
		if path == "" {
			return "", "", fmt.Errorf("invalid address %q: missing path", addr)
		}
		return "unix", path, nil
	default:
		return "", "", fmt.Errorf("invalid address %q: unsupported scheme %q", addr, u.Scheme)
	}
}

// Listen creates a listener for addr. Unix sockets are created with
// permissions for the current user's group, replacing any stale socket.
func Listen(addr string) (net.Listener, error) {
	network, address, err := ParseAddr(addr)
	if err != nil {
		return nil, err
	}
	if network == "unix" {
		return sockets.NewUnixSocket(address, os.Getgid())
	}
	return net.Listen(network, address)
}

// DialTarget converts addr into a gRPC dial target.
func DialTarget(addr string) (string, error) {
	network, address, err := ParseAddr(addr)
	if err != nil {
		return "", err
	}
	if network == "unix" {
		return "unix://" + address, nil
	}
	return address, nil
}

// ExpandPath expands a leading ~ in path.
func ExpandPath(path string) (string, error) {
	return homedir.Expand(path)
}
