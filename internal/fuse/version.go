package fuse

import "fmt"

var (
	// MinVersion is the oldest protocol version supported by the package.
	MinVersion = Version{Major: 7, Minor: 9}

	// MaxVersion is the newest protocol version supported by the package.
	MaxVersion = Version{Major: 7, Minor: 19}

	// SupportedVersions is the range of protocol versions the package can
	// encode and decode.
	SupportedVersions = VersionRange{Min: MinVersion, Max: MaxVersion}

	// RootNode represents the root filesystem. It always has inode ID 1.
	RootNode Node = Node(1)
)

// Version of the protocol.
type Version struct{ Major, Minor uint32 }

// String implements fmt.Stringer.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compare returns -1 if v is older than o, 1 if v is newer than o, and 0 if
// they are the same version.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major < o.Major:
		return -1
	case v.Major > o.Major:
		return 1
	case v.Minor < o.Minor:
		return -1
	case v.Minor > o.Minor:
		return 1
	default:
		return 0
	}
}

// LT reports whether v is older than o.
func (v Version) LT(o Version) bool { return v.Compare(o) < 0 }

// GE reports whether v is the same as or newer than o.
func (v Version) GE(o Version) bool { return v.Compare(o) >= 0 }

// VersionRange is an inclusive range of protocol versions.
type VersionRange struct{ Min, Max Version }

// String implements fmt.Stringer.
func (r VersionRange) String() string {
	return fmt.Sprintf("[%s, %s]", r.Min, r.Max)
}

// Contains reports whether v is within r.
func (r VersionRange) Contains(v Version) bool {
	return v.GE(r.Min) && !r.Max.LT(v)
}

// Valid reports whether r contains at least one version.
func (r VersionRange) Valid() bool {
	return !r.Max.LT(r.Min)
}

// KernelRange returns the range of versions supported by a kernel which
// advertised v in its INIT request. The kernel accepts any minor version of
// its major version, so the range starts at minor 0.
func KernelRange(v Version) VersionRange {
	return VersionRange{Min: Version{Major: v.Major}, Max: v}
}
