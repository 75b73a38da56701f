//go:build !windows

package localconfig

import "path/filepath"

// path returns /etc/bluevein/bluevein-local.json — root-owned, matching the
// privilege level already required to touch /var/lib/bluetooth.
func path() (string, error) {
	return filepath.Join("/etc/bluevein", filename), nil
}
