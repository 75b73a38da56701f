//go:build windows

package esp

import (
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	kernel32                 = windows.NewLazySystemDLL("kernel32.dll")
	procGetLogicalDrives     = kernel32.NewProc("GetLogicalDrives")
	procGetVolumeInformation = kernel32.NewProc("GetVolumeInformationW")
)

// locate enumerates drive letters and returns the first one whose volume
// exposes an EFI directory at its root.
func locate() (*Locator, error) {
	ret, _, _ := procGetLogicalDrives.Call()
	mask := uint32(ret)

	for i := range 26 {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		letter := string(rune('A'+i)) + `:\`
		if !isFAT(letter) {
			continue
		}
		if hasEFIDir(letter) {
			return &Locator{MountPoint: letter, RawDevice: letter}, nil
		}
	}
	return nil, ErrNoESP
}

func hasEFIDir(root string) bool {
	info, err := os.Stat(filepath.Join(root, "EFI"))
	return err == nil && info.IsDir()
}

func isFAT(letter string) bool {
	rootPtr, err := windows.UTF16PtrFromString(letter)
	if err != nil {
		return false
	}
	fsName := make([]uint16, 32)
	ret, _, _ := procGetVolumeInformation.Call(
		uintptr(unsafe.Pointer(rootPtr)),
		0, 0, 0, 0, 0,
		uintptr(unsafe.Pointer(&fsName[0])),
		uintptr(len(fsName)),
	)
	if ret == 0 {
		return false
	}
	name := windows.UTF16ToString(fsName)
	return name == "FAT32" || name == "FAT"
}
