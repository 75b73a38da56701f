//go:build windows

package localconfig

import (
	"os"
	"path/filepath"
)

// path returns %ProgramData%\BlueVein\bluevein-local.json, the machine-wide
// location appropriate for a SYSTEM-level service.
func path() (string, error) {
	root := os.Getenv("ProgramData")
	if root == "" {
		root = `C:\ProgramData`
	}
	return filepath.Join(root, "BlueVein", filename), nil
}
