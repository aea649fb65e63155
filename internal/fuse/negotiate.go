package fuse

import (
	"errors"
	"fmt"
)

// ErrIncompatibleVersion is returned by Negotiate when two peers share no
// protocol version.
var ErrIncompatibleVersion = errors.New("incompatible protocol version")

// Negotiate picks the highest protocol version supported by both kernel and
// local. Negotiate returns an error wrapping ErrIncompatibleVersion if the
// ranges don't intersect.
func Negotiate(kernel, local VersionRange) (Version, error) {
	if !kernel.Valid() || !local.Valid() {
		return Version{}, fmt.Errorf("%w: empty range (kernel %s, local %s)", ErrIncompatibleVersion, kernel, local)
	}

	lo, hi := kernel.Min, kernel.Max
	if lo.LT(local.Min) {
		lo = local.Min
	}
	if local.Max.LT(hi) {
		hi = local.Max
	}
	if hi.LT(lo) {
		return Version{}, fmt.Errorf("%w: kernel supports %s, local supports %s", ErrIncompatibleVersion, kernel, local)
	}
	return hi, nil
}

// SupportedFlags is the set of init flags the package knows how to honor.
// Flags outside of this set are never negotiated, even if requested.
const SupportedFlags = InitAsyncRead |
	InitPOSIXLocks |
	InitAtomicTruncate |
	InitExportSupport |
	InitBigWrites |
	InitDontMask |
	InitFlockLocks

// initFlagVersions records the first protocol version defining each init
// flag.
var initFlagVersions = map[InitFlags]Version{
	InitAsyncRead:      {7, 6},
	InitPOSIXLocks:     {7, 7},
	InitFileOps:        {7, 9},
	InitAtomicTruncate: {7, 9},
	InitExportSupport:  {7, 10},
	InitBigWrites:      {7, 9},
	InitDontMask:       {7, 12},
	InitSpliceWrite:    {7, 14},
	InitSpliceMove:     {7, 14},
	InitSpliceRead:     {7, 14},
	InitFlockLocks:     {7, 17},
	InitIoctlDir:       {7, 18},
}

// AvailableFlags returns the mask of init flags defined at protocol version v.
func AvailableFlags(v Version) InitFlags {
	var mask InitFlags
	for flag, since := range initFlagVersions {
		if v.GE(since) {
			mask |= flag
		}
	}
	return mask
}

// NegotiateFlags returns the init flags to enable for a session at version v.
// The result is the intersection of what the kernel advertised, what was
// requested locally, what the package supports, and what v defines.
func NegotiateFlags(kernel, requested InitFlags, v Version) InitFlags {
	return kernel & requested & SupportedFlags & AvailableFlags(v)
}
