//go:build darwin

package device

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// darwinScanner enumerates /Volumes and drops the entry backing the
// boot volume (same device id as /).
type darwinScanner struct {
	volumesDir string
	statfs     func(path string, buf *unix.Statfs_t) error
}

func newScanner() Scanner {
	return &darwinScanner{
		volumesDir: "/Volumes",
		statfs:     unix.Statfs,
	}
}

func (s *darwinScanner) ListRemovable(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.volumesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading %s", s.volumesDir)
	}

	var rootStat unix.Stat_t
	if err := unix.Stat("/", &rootStat); err != nil {
		return nil, errors.Wrap(err, "stating root volume")
	}

	var devices []Device
	for _, entry := range entries {
		mount := filepath.Join(s.volumesDir, entry.Name())

		var st unix.Stat_t
		if err := unix.Stat(mount, &st); err != nil {
			continue
		}
		// The boot volume appears in /Volumes as a link back to /.
		if st.Dev == rootStat.Dev {
			continue
		}
		info, err := os.Stat(mount)
		if err != nil || !info.IsDir() {
			continue
		}

		dev := Device{
			Label:     entry.Name(),
			MountPath: mount,
			Removable: true,
		}
		var fs unix.Statfs_t
		if err := s.statfs(mount, &fs); err == nil {
			dev.TotalBytes = fs.Blocks * uint64(fs.Bsize)
			dev.Filesystem = fstypeName(fs.Fstypename)
		}
		devices = append(devices, dev)
	}

	return devices, nil
}

// fstypeName converts the fixed-size Fstypename field to a string.
func fstypeName(name [16]byte) string {
	for i, b := range name {
		if b == 0 {
			return string(name[:i])
		}
	}
	return string(name[:])
}
