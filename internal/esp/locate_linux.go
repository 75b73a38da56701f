//go:build !windows

package esp

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// candidateMountRoots are the well-known ESP mount points checked in order.
var candidateMountRoots = []string{"/boot/efi", "/efi", "/boot"}

func locate() (*Locator, error) {
	for _, root := range candidateMountRoots {
		if hasEFIDir(root) {
			return &Locator{MountPoint: root, RawDevice: findRawDeviceFor(root)}, nil
		}
	}

	dev := findRawESPDevice()
	if dev == "" {
		return nil, ErrNoESP
	}
	return &Locator{RawDevice: dev}, nil
}

func hasEFIDir(root string) bool {
	info, err := os.Stat(filepath.Join(root, "EFI"))
	return err == nil && info.IsDir()
}

// findRawDeviceFor reports the block device backing a mount point, read
// from /proc/mounts, so Write can still fall back to the raw path if the
// mounted write itself fails (e.g. read-only remount).
func findRawDeviceFor(mountPoint string) string {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if fields[1] == mountPoint {
			return fields[0]
		}
	}
	return ""
}

// findRawESPDevice scans /proc/mounts for any vfat-type filesystem as a last
// resort when none of the well-known roots are mounted; callers still need
// an explicit mount to read the filesystem type reliably, so this only
// returns a device path for the raw fallback to attempt against.
func findRawESPDevice() string {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		if fields[2] == "vfat" {
			return fields[0]
		}
	}
	return ""
}
