//go:build linux

package device

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"

	"github.com/thoreinstein/cardkeep/pkg/fileutil"
)

// linuxScanner reads the kernel mount table and keeps mounts whose
// backing disk carries the sysfs removable flag. The table and sysfs
// roots are fields so tests can point them at fixtures.
type linuxScanner struct {
	mountsPath string
	sysBlock   string
	statfs     func(path string, buf *unix.Statfs_t) error
}

func newScanner() Scanner {
	return &linuxScanner{
		mountsPath: "/proc/self/mounts",
		sysBlock:   "/sys/block",
		statfs:     unix.Statfs,
	}
}

func (s *linuxScanner) ListRemovable(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := fileutil.ReadFileWithLimit(s.mountsPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading mount table")
	}

	var devices []Device
	seen := make(map[string]bool)

	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		source, mount, fstype := fields[0], unescapeMount(fields[1]), fields[2]

		// Only real block devices; pseudo filesystems (proc, tmpfs,
		// cgroup, ...) have non-device sources.
		if !strings.HasPrefix(source, "/dev/") {
			continue
		}
		// The volume holding the root filesystem is never offered,
		// even when the host booted from removable media.
		if mount == "/" {
			continue
		}
		if seen[source] {
			continue
		}

		disk := s.diskName(source)
		if disk == "" || !s.removable(disk) {
			continue
		}
		if _, err := os.Stat(mount); err != nil {
			// Listed but not reachable; a scan never fabricates roots.
			continue
		}

		seen[source] = true
		devices = append(devices, s.describe(mount, fstype))
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].MountPath < devices[j].MountPath })
	return devices, nil
}

func (s *linuxScanner) describe(mount, fstype string) Device {
	dev := Device{
		Label:      filepath.Base(mount),
		MountPath:  mount,
		Filesystem: fstype,
		Removable:  true,
	}
	var st unix.Statfs_t
	if err := s.statfs(mount, &st); err == nil {
		dev.TotalBytes = st.Blocks * uint64(st.Bsize)
	}
	return dev
}

// diskName maps a partition device node to the owning whole-disk name
// under /sys/block: /dev/sdb1 → sdb, /dev/mmcblk0p1 → mmcblk0,
// /dev/nvme0n1p2 → nvme0n1. Returns "" when no sysfs entry matches.
func (s *linuxScanner) diskName(source string) string {
	name := filepath.Base(source)

	// Whole disks appear directly under /sys/block.
	if s.sysDirExists(name) {
		return name
	}

	trimmed := strings.TrimRightFunc(name, unicode.IsDigit)
	if t := strings.TrimSuffix(trimmed, "p"); t != trimmed && s.sysDirExists(t) {
		return t
	}
	if trimmed != name && s.sysDirExists(trimmed) {
		return trimmed
	}
	return ""
}

func (s *linuxScanner) sysDirExists(name string) bool {
	info, err := os.Stat(filepath.Join(s.sysBlock, name))
	return err == nil && info.IsDir()
}

// removable reports whether the sysfs removable flag is set for the disk.
func (s *linuxScanner) removable(disk string) bool {
	data, err := fileutil.ReadFileWithLimit(filepath.Join(s.sysBlock, disk, "removable"))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}

// unescapeMount decodes the octal escapes the kernel uses for special
// characters in mount paths (space, tab, newline, backslash).
func unescapeMount(path string) string {
	if !strings.Contains(path, `\`) {
		return path
	}
	var b strings.Builder
	b.Grow(len(path))
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '\\' && i+3 < len(path) && isOctal(path[i+1]) && isOctal(path[i+2]) && isOctal(path[i+3]) {
			b.WriteByte((path[i+1]-'0')<<6 | (path[i+2]-'0')<<3 | (path[i+3] - '0'))
			i += 3
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isOctal(c byte) bool {
	return c >= '0' && c <= '7'
}
