// Package store defines the platform-neutral Bluetooth pairing store
// contract. Concrete adapters live in linuxstore and windowsstore.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/meowrch/bluevein/internal/btcred"
)

// ErrNotFound is returned by GetDevice when the adapter or device is absent
// from the native store.
var ErrNotFound = errors.New("device not found in platform store")

// ErrStoreUnavailable is returned when the native store root cannot be
// reached at all (missing privilege, missing path). Fatal at startup,
// retried at runtime.
var ErrStoreUnavailable = errors.New("platform bluetooth store unavailable")

// PlatformError wraps a native API failure (registry open, fsnotify
// subscribe) that isn't a plain unavailability.
type PlatformError struct {
	Op  string
	Err error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("platform store: %s: %v", e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }

// Adapter is the capability set both platform store variants implement.
// Callers convert to/from native MAC representations only inside the
// implementation; every value crossing this interface uses canonical form.
type Adapter interface {
	// ListAdapters returns every local Bluetooth adapter's canonical MAC,
	// deduplicated.
	ListAdapters(ctx context.Context) ([]string, error)

	// ListDevices returns every device recorded under adapterMac. An empty
	// or absent adapter directory/key is not an error.
	ListDevices(ctx context.Context, adapterMac string) ([]btcred.Device, error)

	// GetDevice returns ErrNotFound when adapterMac/deviceMac is absent.
	GetDevice(ctx context.Context, adapterMac, deviceMac string) (btcred.Device, error)

	// SetDevice writes every present sub-object of device. Sub-objects left
	// nil on device are untouched in the native store.
	SetDevice(ctx context.Context, adapterMac string, device btcred.Device) error

	// RemoveDevice is idempotent; it succeeds even if there is nothing to
	// remove.
	RemoveDevice(ctx context.Context, adapterMac, deviceMac string) error
}
