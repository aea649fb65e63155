package dev

import (
	"fmt"
	"sort"
	"strings"
)

// MountOption customizes the filesystem mount.
type MountOption func(*mountConfig)

type mountConfig struct{ options map[string]string }

func newMountConfig(opts []MountOption) *mountConfig {
	cfg := &mountConfig{options: map[string]string{}}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// String converts the mount options into the form accepted by fusermount's
// -o flag. Options are sorted by name.
func (m *mountConfig) String() string {
	keys := make([]string, 0, len(m.options))
	for k := range m.options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	escaper := strings.NewReplacer(`\`, `\\`, `,`, `\,`)

	opts := make([]string, 0, len(keys))
	for _, k := range keys {
		opt := k
		if v := m.options[k]; v != "" {
			opt += "=" + v
		}
		opts = append(opts, escaper.Replace(opt))
	}
	return strings.Join(opts, ",")
}

// FSName sets the name of the filesystem shown in the list of mounts.
func FSName(name string) MountOption {
	return func(mc *mountConfig) { mc.options["fsname"] = name }
}

// Subtype sets the subtype of the mount. The filesystem type will show up as
// fuse.<subtype>.
func Subtype(subtype string) MountOption {
	return func(mc *mountConfig) { mc.options["subtype"] = subtype }
}

// AllowOther allows other users to access the filesystem.
func AllowOther() MountOption {
	return func(mc *mountConfig) { mc.options["allow_other"] = "" }
}

// DefaultPermissions has the kernel check access against file modes. Without
// it, the filesystem is responsible for permission checks.
func DefaultPermissions() MountOption {
	return func(mc *mountConfig) { mc.options["default_permissions"] = "" }
}

// ReadOnly mounts the filesystem read-only.
func ReadOnly() MountOption {
	return func(mc *mountConfig) { mc.options["ro"] = "" }
}

// ParseMountOption converts a single option in fusermount's key[=value] form
// into a MountOption. Only options which are safe for unprivileged mounts are
// accepted.
func ParseMountOption(opt string) (MountOption, error) {
	key, value := opt, ""
	if i := strings.IndexByte(opt, '='); i >= 0 {
		key, value = opt[:i], opt[i+1:]
	}

	switch key {
	case "fsname":
		return FSName(value), nil
	case "subtype":
		return Subtype(value), nil
	case "allow_other", "default_permissions", "ro":
		if value != "" {
			return nil, fmt.Errorf("mount option %q does not take a value", key)
		}
		return func(mc *mountConfig) { mc.options[key] = "" }, nil
	default:
		return nil, fmt.Errorf("unsupported mount option %q", key)
	}
}
