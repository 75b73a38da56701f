// Package syncengine implements the bidirectional merge between a platform
// Bluetooth store and the Canonical Document on the EFI System Partition.
// It is the only component permitted to mutate either side.
package syncengine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/meowrch/bluevein/internal/btcred"
	"github.com/meowrch/bluevein/internal/document"
	"github.com/meowrch/bluevein/internal/store"
)

// DocumentStore persists the Canonical Document. esp.Locator satisfies
// this; tests use an in-memory fake.
type DocumentStore interface {
	Read() (*document.Document, error)
	Write(doc *document.Document) error
}

// Engine owns the platform store adapter and serializes every
// read-modify-write of the Canonical Document behind mu.
type Engine struct {
	mu sync.Mutex

	store store.Adapter
	doc   DocumentStore
	log   *slog.Logger
}

// New constructs an Engine over adapter and doc. log may be nil, in which
// case slog.Default() is used.
func New(adapter store.Adapter, doc DocumentStore, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: adapter, doc: doc, log: log}
}

func (e *Engine) readDocument() (*document.Document, error) {
	doc, err := e.doc.Read()
	if errors.Is(err, document.ErrNotFound) {
		return document.New(), nil
	}
	return doc, err
}

// BidirectionalSync runs the full reconciliation: SyncToDocument folds every
// system-only device into the canonical document, then SyncFromDocument
// pushes canonical updates back down to devices the system already knows
// about. Call at startup and on each reverse-check tick.
func (e *Engine) BidirectionalSync(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, err := e.readDocument()
	if err != nil {
		return err
	}

	adapters, err := e.store.ListAdapters(ctx)
	if err != nil {
		return err
	}

	for _, adapterMac := range adapters {
		systemDevices, err := e.store.ListDevices(ctx, adapterMac)
		if err != nil {
			e.log.Warn("list devices failed, skipping adapter", "adapter", adapterMac, "error", err)
			continue
		}

		e.syncToDocument(doc, adapterMac, systemDevices)
		e.syncFromDocument(ctx, doc, adapterMac, systemDevices)
	}

	return e.doc.Write(doc)
}

// SyncToDocument folds every device the platform store reports for
// adapterMac into doc, recording any device canonical doesn't yet know
// about. It never contacts the platform store — callers supply the
// already-listed system devices — and never writes doc; the caller owns
// persistence. This is the EFI-directed half of BidirectionalSync, kept as
// its own exported method for direct testing.
func (e *Engine) SyncToDocument(doc *document.Document, adapterMac string, systemDevices []btcred.Device) {
	e.syncToDocument(doc, adapterMac, systemDevices)
}

func (e *Engine) syncToDocument(doc *document.Document, adapterMac string, systemDevices []btcred.Device) {
	canonicalDevices := doc.GetAdapterDevices(adapterMac)
	for _, systemDev := range systemDevices {
		if _, ok := canonicalDevices[systemDev.MacAddress]; !ok {
			doc.UpdateDevice(adapterMac, systemDev)
		}
	}
}

// SyncFromDocument pushes merged updates for adapterMac down to the
// platform store: for every device present in both the canonical document
// and systemDevices, it merges the two (never materializing a canonical-only
// device the system has never seen) and writes the result back through the
// store adapter when it differs. This is the system-directed half of
// BidirectionalSync, kept as its own exported method for direct testing.
func (e *Engine) SyncFromDocument(ctx context.Context, doc *document.Document, adapterMac string, systemDevices []btcred.Device) {
	e.syncFromDocument(ctx, doc, adapterMac, systemDevices)
}

func (e *Engine) syncFromDocument(ctx context.Context, doc *document.Document, adapterMac string, systemDevices []btcred.Device) {
	systemByMac := make(map[string]btcred.Device, len(systemDevices))
	for _, d := range systemDevices {
		systemByMac[d.MacAddress] = d
	}

	canonicalDevices := doc.GetAdapterDevices(adapterMac)
	for deviceMac, canonicalDev := range canonicalDevices {
		systemDev, present := systemByMac[deviceMac]
		if !present {
			// Do not materialize a device the system has never agreed to.
			continue
		}
		merged := btcred.MergeDevice(systemDev, canonicalDev)
		if !btcred.DevicesEqual(systemDev, merged) {
			if err := e.store.SetDevice(ctx, adapterMac, merged); err != nil {
				e.log.Warn("set device failed", "adapter", adapterMac, "device", deviceMac, "error", err)
			}
		}
	}
}

// HandleDeviceChange is the per-event update fired by a monitor when a
// device's platform-store entry changes. It overwrites (not merges) the
// canonical entry, since the platform store is authoritative for the
// device that just changed.
func (e *Engine) HandleDeviceChange(ctx context.Context, adapterMac, deviceMac string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	dev, err := e.store.GetDevice(ctx, adapterMac, deviceMac)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.log.Warn("device change fired but device unreadable", "adapter", adapterMac, "device", deviceMac)
			return nil
		}
		return err
	}

	doc, err := e.readDocument()
	if err != nil {
		return err
	}

	doc.UpdateDevice(adapterMac, dev)
	if err := e.doc.Write(doc); err != nil {
		return err
	}

	e.verifyWrite(adapterMac, dev)
	return nil
}

// verifyWrite re-reads the Canonical Document after a per-event write and
// warns if the device just written doesn't round-trip identically. This is
// a standard step of HandleDeviceChange, not a correctness gate: a mismatch
// is logged but never fails the call, since the write itself already
// succeeded.
func (e *Engine) verifyWrite(adapterMac string, want btcred.Device) {
	doc, err := e.readDocument()
	if err != nil {
		e.log.Warn("post-write verification read failed", "adapter", adapterMac, "device", want.MacAddress, "error", err)
		return
	}
	got, ok := doc.GetDevice(adapterMac, want.MacAddress)
	if !ok {
		e.log.Warn("post-write verification found device missing", "adapter", adapterMac, "device", want.MacAddress)
		return
	}
	if !btcred.DevicesEqual(got, want) {
		e.log.Warn("post-write verification mismatch", "adapter", adapterMac, "device", want.MacAddress)
	}
}

// HandleDeviceRemoval logs a device's disappearance from the platform
// store. The canonical document is never mutated: the device may still be
// valid under the other OS.
func (e *Engine) HandleDeviceRemoval(adapterMac, deviceMac string) {
	e.log.Info("device removed from platform store, canonical document unchanged",
		"adapter", adapterMac, "device", deviceMac)
}

// ReverseCheck is the periodic reverse-check tick. It runs a full
// BidirectionalSync, so besides applying canonical-document updates to the
// devices the system already knows about, it also records system-only
// devices in the Canonical Document and writes the document back.
func (e *Engine) ReverseCheck(ctx context.Context) error {
	return e.BidirectionalSync(ctx)
}
