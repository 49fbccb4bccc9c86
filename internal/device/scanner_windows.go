//go:build windows

package device

import (
	"context"
	"syscall"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/windows"
)

// windowsScanner walks the logical drive mask and keeps drives the OS
// reports as removable.
type windowsScanner struct{}

func newScanner() Scanner {
	return &windowsScanner{}
}

func (s *windowsScanner) ListRemovable(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mask, err := windows.GetLogicalDrives()
	if err != nil {
		return nil, errors.Wrap(err, "enumerating logical drives")
	}

	var devices []Device
	for i := 0; i < 26; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		root := string(rune('A'+i)) + `:\`
		rootPtr, err := windows.UTF16PtrFromString(root)
		if err != nil {
			continue
		}
		if windows.GetDriveType(rootPtr) != windows.DRIVE_REMOVABLE {
			continue
		}

		dev := Device{
			Label:     string(rune('A' + i)),
			MountPath: root,
			Removable: true,
		}

		var (
			volumeName   [windows.MAX_PATH + 1]uint16
			fsName       [windows.MAX_PATH + 1]uint16
			serialNumber uint32
			maxComponent uint32
			fsFlags      uint32
		)
		if err := windows.GetVolumeInformation(rootPtr, &volumeName[0], uint32(len(volumeName)),
			&serialNumber, &maxComponent, &fsFlags, &fsName[0], uint32(len(fsName))); err == nil {
			if label := syscall.UTF16ToString(volumeName[:]); label != "" {
				dev.Label = label
			}
			dev.Filesystem = syscall.UTF16ToString(fsName[:])
		}

		var free, total, totalFree uint64
		if err := windows.GetDiskFreeSpaceEx(rootPtr, &free, &total, &totalFree); err == nil {
			dev.TotalBytes = total
		}

		devices = append(devices, dev)
	}

	return devices, nil
}
