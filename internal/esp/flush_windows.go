//go:build windows

package esp

import (
	"strings"

	"golang.org/x/sys/windows"
)

// flush opens the volume handle for mountPoint and issues FlushFileBuffers
// so the write survives a reboot into the other OS.
func flush(mountPoint string) error {
	if mountPoint == "" {
		return nil
	}
	path := `\\.\` + strings.TrimSuffix(mountPoint, `\`)
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}

	handle, err := windows.CreateFile(
		pathPtr,
		windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		return err
	}
	defer windows.CloseHandle(handle)

	return windows.FlushFileBuffers(handle)
}
