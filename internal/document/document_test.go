package document

import (
	"encoding/json"
	"testing"

	"github.com/meowrch/bluevein/internal/btcred"
)

func TestDocumentSerializationRoundTrip(t *testing.T) {
	doc := New()
	doc.UpdateDevice("AA:BB:CC:DD:EE:FF", btcred.Device{
		MacAddress: "11:22:33:44:55:66",
		Classic:    &btcred.ClassicKeys{LinkKey: "0123456789ABCDEF0123456789ABCDEF", KeyType: 4},
	})

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var roundTripped Document
	if err := json.Unmarshal(data, &roundTripped); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	dev, ok := roundTripped.GetDevice("AA:BB:CC:DD:EE:FF", "11:22:33:44:55:66")
	if !ok {
		t.Fatal("expected device to survive round trip")
	}
	if dev.Classic == nil || dev.Classic.LinkKey != "0123456789ABCDEF0123456789ABCDEF" {
		t.Fatalf("unexpected classic keys after round trip: %+v", dev.Classic)
	}
}

func TestDocumentUpdateDevice(t *testing.T) {
	doc := New()
	adapter := "AA:BB:CC:DD:EE:FF"
	deviceMac := "11:22:33:44:55:66"

	doc.UpdateDevice(adapter, btcred.Device{MacAddress: deviceMac, Classic: &btcred.ClassicKeys{LinkKey: "OLD"}})
	doc.UpdateDevice(adapter, btcred.Device{MacAddress: deviceMac, Classic: &btcred.ClassicKeys{LinkKey: "NEW"}})

	dev, ok := doc.GetDevice(adapter, deviceMac)
	if !ok {
		t.Fatal("expected device to be present")
	}
	if dev.Classic.LinkKey != "NEW" {
		t.Fatalf("expected UpdateDevice to overwrite, got %q", dev.Classic.LinkKey)
	}

	devices := doc.GetAdapterDevices(adapter)
	if len(devices) != 1 {
		t.Fatalf("expected exactly one device, got %d", len(devices))
	}
}

func TestDocumentGetDeviceMissing(t *testing.T) {
	doc := New()
	if _, ok := doc.GetDevice("no-such-adapter", "no-such-device"); ok {
		t.Fatal("expected ok=false for missing adapter")
	}

	doc.UpdateDevice("AA:BB:CC:DD:EE:FF", btcred.Device{MacAddress: "11:22:33:44:55:66"})
	if _, ok := doc.GetDevice("AA:BB:CC:DD:EE:FF", "FF:FF:FF:FF:FF:FF"); ok {
		t.Fatal("expected ok=false for missing device under existing adapter")
	}
}

func TestDocumentAdapterMacsSorted(t *testing.T) {
	doc := New()
	doc.UpdateDevice("CC:CC:CC:CC:CC:CC", btcred.Device{MacAddress: "X"})
	doc.UpdateDevice("AA:AA:AA:AA:AA:AA", btcred.Device{MacAddress: "Y"})
	doc.UpdateDevice("BB:BB:BB:BB:BB:BB", btcred.Device{MacAddress: "Z"})

	macs := doc.AdapterMacs()
	want := []string{"AA:AA:AA:AA:AA:AA", "BB:BB:BB:BB:BB:BB", "CC:CC:CC:CC:CC:CC"}
	if len(macs) != len(want) {
		t.Fatalf("expected %d adapters, got %d", len(want), len(macs))
	}
	for i := range want {
		if macs[i] != want[i] {
			t.Fatalf("AdapterMacs()[%d] = %q, want %q", i, macs[i], want[i])
		}
	}
}

func TestEmptyDocumentMarshalsToEmptyObject(t *testing.T) {
	doc := New()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "{}" {
		t.Fatalf("expected empty document to marshal to {}, got %s", data)
	}
}
