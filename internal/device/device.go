// Package device enumerates mounted removable storage volumes.
//
// Each platform carries its own enumeration strategy behind the Scanner
// interface; New selects the implementation for the running OS at build
// time. Scans are live and side-effect-free: devices may appear or
// disappear between calls, and an empty result is a normal state, not
// an error.
package device

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// Device describes one mounted removable volume. Discovered fresh per
// scan, never persisted, immutable once returned. TotalBytes zero and
// Filesystem empty mean unknown; values are never fabricated.
type Device struct {
	// Label is the volume label, or the base name of the mount path
	// when no label is available. Always non-empty.
	Label string `json:"label"`

	// MountPath is the volume's root directory.
	MountPath string `json:"mount_path"`

	// TotalBytes is the volume capacity, when known.
	TotalBytes uint64 `json:"total_bytes,omitempty"`

	// Filesystem is the filesystem type (vfat, exfat, ...), when known.
	Filesystem string `json:"filesystem,omitempty"`

	// Removable reports whether the platform identified the volume as
	// removable media.
	Removable bool `json:"removable"`
}

// Scanner enumerates currently mounted removable volumes, excluding the
// system/boot volume.
type Scanner interface {
	ListRemovable(ctx context.Context) ([]Device, error)
}

// New returns the Scanner for the running platform.
func New() Scanner {
	return newScanner()
}

// ErrNotFound indicates no scanned device matched the requested
// label or mount path.
var ErrNotFound = errors.New("device not found")

// Find returns the device whose label or mount path matches key.
// Label matching is case-insensitive; mount paths match exactly.
func Find(devices []Device, key string) (Device, error) {
	for _, d := range devices {
		if strings.EqualFold(d.Label, key) || d.MountPath == key {
			return d, nil
		}
	}
	return Device{}, errors.Wrapf(ErrNotFound, "%q", key)
}
