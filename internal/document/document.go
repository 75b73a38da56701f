// Package document models the Canonical Document — the shared JSON file on
// the EFI System Partition that both operating systems reconcile against.
package document

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/meowrch/bluevein/internal/btcred"
)

// Filename is the Canonical Document's name at the ESP root.
const Filename = "bluevein.json"

// Sentinel errors for the canonical-document error taxonomy (spec §7).
var (
	ErrNotFound   = errors.New("canonical document not found")
	ErrRead       = errors.New("canonical document read error")
	ErrWrite      = errors.New("canonical document write error")
	ErrParse      = errors.New("canonical document parse error")
)

// AdapterEntry owns every device ever seen paired to one local Bluetooth
// adapter. Devices map is keyed by canonical device MAC.
type AdapterEntry struct {
	Devices map[string]btcred.Device `json:"devices"`
}

// Document is the top-level Canonical Document: adapter MAC -> AdapterEntry.
// The JSON top-level object literally is this map (the "devices" wrapper is
// a per-adapter serialization detail, not a flattening of the root).
type Document struct {
	Adapters map[string]AdapterEntry
}

// New returns an empty Document, ready to be populated and written.
func New() *Document {
	return &Document{Adapters: make(map[string]AdapterEntry)}
}

// MarshalJSON serializes the adapter map directly as the top-level object,
// with map keys sorted for deterministic byte output (round-trip tests
// compare parsed values, but deterministic field order makes the on-disk
// file diff-friendly across repeated no-op writes).
func (d *Document) MarshalJSON() ([]byte, error) {
	if d == nil || d.Adapters == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d.Adapters)
}

// UnmarshalJSON parses the top-level adapter map.
func (d *Document) UnmarshalJSON(data []byte) error {
	var m map[string]AdapterEntry
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	d.Adapters = m
	return nil
}

// GetAdapterDevices returns the device map for adapterMac, or nil if the
// adapter has no entry.
func (d *Document) GetAdapterDevices(adapterMac string) map[string]btcred.Device {
	entry, ok := d.Adapters[adapterMac]
	if !ok {
		return nil
	}
	return entry.Devices
}

// GetDevice returns a single device, or ok=false if either the adapter or
// the device is absent.
func (d *Document) GetDevice(adapterMac, deviceMac string) (btcred.Device, bool) {
	devices := d.GetAdapterDevices(adapterMac)
	if devices == nil {
		return btcred.Device{}, false
	}
	dev, ok := devices[deviceMac]
	return dev, ok
}

// SetAdapterDevices replaces the entire device map for an adapter.
func (d *Document) SetAdapterDevices(adapterMac string, devices map[string]btcred.Device) {
	if d.Adapters == nil {
		d.Adapters = make(map[string]AdapterEntry)
	}
	d.Adapters[adapterMac] = AdapterEntry{Devices: devices}
}

// UpdateDevice inserts or overwrites a single device entry for an adapter.
// This is an overwrite, not a merge — callers that want merge semantics
// call btcred.MergeDevice themselves first (see the sync engine).
func (d *Document) UpdateDevice(adapterMac string, device btcred.Device) {
	if d.Adapters == nil {
		d.Adapters = make(map[string]AdapterEntry)
	}
	entry, ok := d.Adapters[adapterMac]
	if !ok || entry.Devices == nil {
		entry = AdapterEntry{Devices: make(map[string]btcred.Device)}
	}
	entry.Devices[device.MacAddress] = device
	d.Adapters[adapterMac] = entry
}

// AdapterMacs returns the sorted list of adapter MACs recorded in the
// document, for deterministic iteration order in the sync engine and tests.
func (d *Document) AdapterMacs() []string {
	macs := make([]string, 0, len(d.Adapters))
	for mac := range d.Adapters {
		macs = append(macs, mac)
	}
	sort.Strings(macs)
	return macs
}
