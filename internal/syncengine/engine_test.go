package syncengine

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/meowrch/bluevein/internal/btcred"
	"github.com/meowrch/bluevein/internal/document"
	"github.com/meowrch/bluevein/internal/store"
)

type fakeStore struct {
	devices map[string]map[string]btcred.Device // adapter -> deviceMac -> device
	sets    []btcred.Device
}

func newFakeStore() *fakeStore {
	return &fakeStore{devices: make(map[string]map[string]btcred.Device)}
}

func (f *fakeStore) put(adapter string, d btcred.Device) {
	if f.devices[adapter] == nil {
		f.devices[adapter] = make(map[string]btcred.Device)
	}
	f.devices[adapter][d.MacAddress] = d
}

func (f *fakeStore) ListAdapters(ctx context.Context) ([]string, error) {
	var out []string
	for a := range f.devices {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStore) ListDevices(ctx context.Context, adapterMac string) ([]btcred.Device, error) {
	var out []btcred.Device
	for _, d := range f.devices[adapterMac] {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeStore) GetDevice(ctx context.Context, adapterMac, deviceMac string) (btcred.Device, error) {
	d, ok := f.devices[adapterMac][deviceMac]
	if !ok {
		return btcred.Device{}, store.ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) SetDevice(ctx context.Context, adapterMac string, device btcred.Device) error {
	f.put(adapterMac, device)
	f.sets = append(f.sets, device)
	return nil
}

func (f *fakeStore) RemoveDevice(ctx context.Context, adapterMac, deviceMac string) error {
	delete(f.devices[adapterMac], deviceMac)
	return nil
}

type fakeDocStore struct {
	doc *document.Document
}

func (f *fakeDocStore) Read() (*document.Document, error) {
	if f.doc == nil {
		return nil, document.ErrNotFound
	}
	return f.doc, nil
}

func (f *fakeDocStore) Write(doc *document.Document) error {
	f.doc = doc
	return nil
}

func TestBidirectionalSyncInsertsNewSystemDevice(t *testing.T) {
	adapter := "AA:BB:CC:DD:EE:01"
	deviceMac := "11:22:33:44:55:66"

	s := newFakeStore()
	s.put(adapter, btcred.Device{
		MacAddress: deviceMac,
		Classic:    &btcred.ClassicKeys{LinkKey: "0123456789ABCDEF0123456789ABCDEF", KeyType: 4},
	})

	docStore := &fakeDocStore{}
	engine := New(s, docStore, nil)

	if err := engine.BidirectionalSync(context.Background()); err != nil {
		t.Fatalf("BidirectionalSync: %v", err)
	}

	dev, ok := docStore.doc.GetDevice(adapter, deviceMac)
	if !ok {
		t.Fatal("expected new system device to be inserted into canonical document")
	}
	if dev.Classic.LinkKey != "0123456789ABCDEF0123456789ABCDEF" {
		t.Fatalf("unexpected link key: %+v", dev.Classic)
	}
}

func TestBidirectionalSyncDoesNotMaterializeCanonicalOnlyDevice(t *testing.T) {
	adapter := "AA:BB:CC:DD:EE:01"
	deviceMac := "11:22:33:44:55:66"

	s := newFakeStore()
	// System has no devices at all for this adapter.
	s.devices[adapter] = map[string]btcred.Device{}

	doc := document.New()
	doc.UpdateDevice(adapter, btcred.Device{
		MacAddress: deviceMac,
		LE:         &btcred.LEKeys{LTK: &btcred.LongTermKey{Key: "FEDCBA9876543210FEDCBA9876543210"}},
	})
	docStore := &fakeDocStore{doc: doc}

	engine := New(s, docStore, nil)
	if err := engine.BidirectionalSync(context.Background()); err != nil {
		t.Fatalf("BidirectionalSync: %v", err)
	}

	if len(s.sets) != 0 {
		t.Fatalf("expected no SetDevice calls, got %d", len(s.sets))
	}
	if _, ok := s.devices[adapter][deviceMac]; ok {
		t.Fatal("expected canonical-only device to remain absent from the system")
	}
}

func TestBidirectionalSyncMergesCSRKCounterToMax(t *testing.T) {
	adapter := "AA:BB:CC:DD:EE:01"
	deviceMac := "11:22:33:44:55:66"

	s := newFakeStore()
	s.put(adapter, btcred.Device{
		MacAddress: deviceMac,
		LE: &btcred.LEKeys{
			CSRKLocal: &btcred.CSRK{Key: "K", Counter: 9},
		},
	})

	doc := document.New()
	doc.UpdateDevice(adapter, btcred.Device{
		MacAddress: deviceMac,
		LE: &btcred.LEKeys{
			CSRKLocal: &btcred.CSRK{Key: "K", Counter: 5},
		},
	})
	docStore := &fakeDocStore{doc: doc}

	engine := New(s, docStore, nil)
	if err := engine.BidirectionalSync(context.Background()); err != nil {
		t.Fatalf("BidirectionalSync: %v", err)
	}

	got := s.devices[adapter][deviceMac]
	if got.LE == nil || got.LE.CSRKLocal == nil || got.LE.CSRKLocal.Counter != 9 {
		t.Fatalf("expected system to hold max counter 9, got %+v", got.LE)
	}
}

func TestHandleDeviceChangeOverwritesCanonicalEntry(t *testing.T) {
	adapter := "AA:BB:CC:DD:EE:01"
	deviceMac := "11:22:33:44:55:66"

	s := newFakeStore()
	s.put(adapter, btcred.Device{MacAddress: deviceMac, Classic: &btcred.ClassicKeys{LinkKey: "NEW"}})

	doc := document.New()
	doc.UpdateDevice(adapter, btcred.Device{MacAddress: deviceMac, Classic: &btcred.ClassicKeys{LinkKey: "OLD"}})
	docStore := &fakeDocStore{doc: doc}

	engine := New(s, docStore, nil)
	if err := engine.HandleDeviceChange(context.Background(), adapter, deviceMac); err != nil {
		t.Fatalf("HandleDeviceChange: %v", err)
	}

	dev, _ := docStore.doc.GetDevice(adapter, deviceMac)
	if dev.Classic.LinkKey != "NEW" {
		t.Fatalf("expected overwrite to NEW, got %q", dev.Classic.LinkKey)
	}
}

func TestHandleDeviceChangeIdempotent(t *testing.T) {
	adapter := "AA:BB:CC:DD:EE:01"
	deviceMac := "11:22:33:44:55:66"

	s := newFakeStore()
	s.put(adapter, btcred.Device{MacAddress: deviceMac, Classic: &btcred.ClassicKeys{LinkKey: "X"}})
	docStore := &fakeDocStore{}
	engine := New(s, docStore, nil)

	if err := engine.HandleDeviceChange(context.Background(), adapter, deviceMac); err != nil {
		t.Fatalf("first HandleDeviceChange: %v", err)
	}
	first, _ := docStore.doc.GetDevice(adapter, deviceMac)

	if err := engine.HandleDeviceChange(context.Background(), adapter, deviceMac); err != nil {
		t.Fatalf("second HandleDeviceChange: %v", err)
	}
	second, _ := docStore.doc.GetDevice(adapter, deviceMac)

	if !btcred.DevicesEqual(first, second) {
		t.Fatalf("expected idempotent update, got %+v vs %+v", first, second)
	}
}

func TestHandleDeviceChangeVerifiesWriteAndLogsMismatch(t *testing.T) {
	adapter := "AA:BB:CC:DD:EE:01"
	deviceMac := "11:22:33:44:55:66"

	s := newFakeStore()
	s.put(adapter, btcred.Device{MacAddress: deviceMac, Classic: &btcred.ClassicKeys{LinkKey: "NEW"}})

	// A DocumentStore whose Write silently drops the update, so the
	// post-write re-read observes a document that never got the change.
	docStore := &dropWriteDocStore{}

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	engine := New(s, docStore, log)
	if err := engine.HandleDeviceChange(context.Background(), adapter, deviceMac); err != nil {
		t.Fatalf("HandleDeviceChange: %v", err)
	}

	if !strings.Contains(buf.String(), "post-write verification") {
		t.Fatalf("expected a post-write verification warning, got log output: %q", buf.String())
	}
}

// dropWriteDocStore acknowledges every Write without persisting it, so Read
// always returns the prior (empty) state. Used to exercise the warning path
// of verifyWrite (the device-missing branch) without needing a real storage
// backend.
type dropWriteDocStore struct{}

func (dropWriteDocStore) Read() (*document.Document, error) { return document.New(), nil }
func (dropWriteDocStore) Write(doc *document.Document) error { return nil }

func TestSyncToDocumentRecordsSystemOnlyDevice(t *testing.T) {
	adapter := "AA:BB:CC:DD:EE:01"
	deviceMac := "11:22:33:44:55:66"

	s := newFakeStore()
	engine := New(s, &fakeDocStore{}, nil)

	doc := document.New()
	systemDev := btcred.Device{MacAddress: deviceMac, Classic: &btcred.ClassicKeys{LinkKey: "X"}}
	engine.SyncToDocument(doc, adapter, []btcred.Device{systemDev})

	got, ok := doc.GetDevice(adapter, deviceMac)
	if !ok || got.Classic.LinkKey != "X" {
		t.Fatalf("expected system-only device recorded in document, got %+v, ok=%v", got, ok)
	}
}

func TestSyncFromDocumentSkipsCanonicalOnlyDevice(t *testing.T) {
	adapter := "AA:BB:CC:DD:EE:01"
	deviceMac := "11:22:33:44:55:66"

	s := newFakeStore()
	engine := New(s, &fakeDocStore{}, nil)

	doc := document.New()
	doc.UpdateDevice(adapter, btcred.Device{
		MacAddress: deviceMac,
		LE:         &btcred.LEKeys{LTK: &btcred.LongTermKey{Key: "FEDCBA9876543210FEDCBA9876543210"}},
	})

	engine.SyncFromDocument(context.Background(), doc, adapter, nil)

	if len(s.sets) != 0 {
		t.Fatalf("expected no SetDevice calls for a canonical-only device, got %d", len(s.sets))
	}
}

func TestHandleDeviceRemovalDoesNotMutateDocument(t *testing.T) {
	adapter := "AA:BB:CC:DD:EE:01"
	deviceMac := "11:22:33:44:55:66"

	doc := document.New()
	doc.UpdateDevice(adapter, btcred.Device{MacAddress: deviceMac, Classic: &btcred.ClassicKeys{LinkKey: "X"}})
	before, err := doc.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}

	s := newFakeStore()
	engine := New(s, &fakeDocStore{doc: doc}, nil)
	engine.HandleDeviceRemoval(adapter, deviceMac)

	after, err := doc.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatal("expected canonical document to be byte-identical after a removal event")
	}
}
