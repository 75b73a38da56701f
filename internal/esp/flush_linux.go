//go:build !windows

package esp

import "golang.org/x/sys/unix"

// flush requests a system-wide flush-to-media so the write survives an
// unclean shutdown into the other OS. mountPoint is unused on Linux: Sync
// flushes all filesystems, matching what the mounted-write path needs.
func flush(mountPoint string) error {
	unix.Sync()
	return nil
}
