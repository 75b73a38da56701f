//go:build !windows

package diagnostics

import "os"

// IsPrivileged reports whether the current process can read and write the
// platform Bluetooth store. On Linux that requires root, since
// /var/lib/bluetooth is owned by root:root with 0700 permissions.
func IsPrivileged() bool {
	return os.Geteuid() == 0
}
