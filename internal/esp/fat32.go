package esp

import (
	"io"
	"os"

	"github.com/diskfs/go-diskfs"

	"github.com/meowrch/bluevein/internal/document"
)

// readRawFAT32 opens device as a raw FAT32 volume and reads the Canonical
// Document from its root directory. Used only when no mount point was
// found, or a mounted read failed for a reason other than NotFound.
func readRawFAT32(devicePath string) ([]byte, error) {
	disk, err := diskfs.Open(devicePath)
	if err != nil {
		return nil, err
	}
	defer disk.File.Close()

	fs, err := disk.GetFilesystem(0)
	if err != nil {
		return nil, err
	}

	f, err := fs.OpenFile("/"+document.Filename, os.O_RDONLY)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}

// writeRawFAT32 opens device as a raw FAT32 volume, creating or
// overwriting the Canonical Document file at its root.
func writeRawFAT32(devicePath string, data []byte) error {
	disk, err := diskfs.Open(devicePath)
	if err != nil {
		return err
	}
	defer disk.File.Close()

	fs, err := disk.GetFilesystem(0)
	if err != nil {
		return err
	}

	f, err := fs.OpenFile("/"+document.Filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}
