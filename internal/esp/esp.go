// Package esp locates the EFI System Partition and reads/writes the
// Canonical Document on it, preferring a mounted filesystem path and
// falling back to a raw FAT32 volume open when no mount point is found.
package esp

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/meowrch/bluevein/internal/document"
)

// ErrNoESP is returned when no candidate location contains an EFI
// directory — neither a mount point nor a raw volume could be identified.
var ErrNoESP = errors.New("no EFI system partition found")

// Locator finds the EFI System Partition on the current machine.
type Locator struct {
	// MountPoint, when non-empty, is the discovered mounted root containing
	// an EFI directory. Empty means no mount point was found.
	MountPoint string

	// RawDevice identifies the raw block device/volume to fall back to when
	// MountPoint is empty or a mounted write fails. Platform specific
	// (e.g. "/dev/sda1" on Linux, the volume's drive-letter root such as
	// `E:\` on Windows).
	RawDevice string
}

// Locate runs platform-specific discovery (see locate_linux.go /
// locate_windows.go) and returns the first match.
func Locate() (*Locator, error) {
	return locate()
}

// documentPath returns the mounted path for the Canonical Document.
func (l *Locator) documentPath() string {
	return filepath.Join(l.MountPoint, document.Filename)
}

// Read loads the Canonical Document, preferring the mounted path. On a read
// error (not NotFound) it falls through to the raw FAT32 volume. If the
// mounted view exists but lacks the file, NotFound is returned immediately
// since the mounted view is authoritative when available.
func (l *Locator) Read() (*document.Document, error) {
	var mountErr error
	if l.MountPoint != "" {
		data, err := os.ReadFile(l.documentPath())
		switch {
		case err == nil:
			return parse(l.documentPath(), data)
		case errors.Is(err, fs.ErrNotExist):
			return nil, document.ErrNotFound
		}
		// Any other mounted-read error falls through to raw.
		mountErr = err
	}

	if l.RawDevice == "" {
		if mountErr != nil {
			return nil, &document.ReadError{Path: l.documentPath(), Err: mountErr}
		}
		return nil, document.ErrNotFound
	}
	data, err := readRawFAT32(l.RawDevice)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, document.ErrNotFound
		}
		return nil, &document.ReadError{Path: l.RawDevice, Err: err}
	}
	return parse(l.RawDevice, data)
}

func parse(path string, data []byte) (*document.Document, error) {
	doc := document.New()
	if err := doc.UnmarshalJSON(data); err != nil {
		return nil, &document.ParseError{Path: path, Err: err}
	}
	return doc, nil
}

// Write serializes doc and persists it: mounted path first (with a
// flush-to-media request), falling back to the raw FAT32 volume only if no
// mount point was found or the mounted write itself failed.
func (l *Locator) Write(doc *document.Document) error {
	data, err := marshalIndent(doc)
	if err != nil {
		return &document.WriteError{Path: l.MountPoint, Err: err}
	}

	if l.MountPoint != "" {
		if err := writeMounted(l.documentPath(), data); err == nil {
			return flush(l.MountPoint)
		}
	}

	if l.RawDevice == "" {
		return &document.WriteError{Path: l.MountPoint, Err: ErrNoESP}
	}
	if err := writeRawFAT32(l.RawDevice, data); err != nil {
		return &document.WriteError{Path: l.RawDevice, Err: err}
	}
	return flush(l.MountPoint)
}

func writeMounted(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func marshalIndent(doc *document.Document) ([]byte, error) {
	raw, err := doc.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
