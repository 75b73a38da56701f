package btcred

import "testing"

func u8(v uint8) *uint8 { return &v }

func TestMergeDeviceIdempotent(t *testing.T) {
	auth := u8(1)
	d := Device{
		MacAddress: "AA:BB:CC:DD:EE:FF",
		Classic:    &ClassicKeys{LinkKey: "0123456789ABCDEF0123456789ABCDEF", KeyType: 4},
		LE: &LEKeys{
			LTK:       &LongTermKey{Key: "FEDCBA9876543210FEDCBA9876543210", Authenticated: auth},
			CSRKLocal: &CSRK{Key: "AAAA", Counter: 5, Authenticated: true},
		},
	}

	merged := MergeDevice(d, d)
	if !DevicesEqual(d, merged) {
		t.Fatalf("merge_device(d, d) != d: %+v vs %+v", d, merged)
	}
}

func TestMergeDeviceOverlayWins(t *testing.T) {
	base := Device{MacAddress: "AA:BB:CC:DD:EE:FF", Classic: &ClassicKeys{LinkKey: "OLD"}}
	overlay := Device{MacAddress: "AA:BB:CC:DD:EE:FF", Classic: &ClassicKeys{LinkKey: "NEW"}}

	merged := MergeDevice(base, overlay)
	if merged.Classic.LinkKey != "NEW" {
		t.Fatalf("expected overlay classic to win, got %q", merged.Classic.LinkKey)
	}
}

func TestMergeDeviceBasePersistsWhenOverlayAbsent(t *testing.T) {
	base := Device{MacAddress: "AA:BB:CC:DD:EE:FF", Classic: &ClassicKeys{LinkKey: "KEEP"}}
	overlay := Device{MacAddress: "AA:BB:CC:DD:EE:FF"}

	merged := MergeDevice(base, overlay)
	if merged.Classic == nil || merged.Classic.LinkKey != "KEEP" {
		t.Fatalf("expected base classic to persist, got %+v", merged.Classic)
	}
}

func TestMergeCSRKSameKeyTakesMaxCounter(t *testing.T) {
	a := &CSRK{Key: "K", Counter: 5, Authenticated: false}
	b := &CSRK{Key: "K", Counter: 9, Authenticated: true}

	merged := MergeCSRK(a, b)
	if merged.Counter != 9 {
		t.Fatalf("expected max counter 9, got %d", merged.Counter)
	}
	if !merged.Authenticated {
		t.Fatal("expected authenticated to be OR'd true")
	}

	// Order shouldn't matter for the max.
	merged2 := MergeCSRK(b, a)
	if merged2.Counter != 9 {
		t.Fatalf("expected max counter 9 regardless of order, got %d", merged2.Counter)
	}
}

func TestMergeCSRKDifferentKeyPrefersOverlay(t *testing.T) {
	a := &CSRK{Key: "K1", Counter: 100}
	b := &CSRK{Key: "K2", Counter: 1}

	merged := MergeCSRK(a, b)
	if merged.Key != "K2" {
		t.Fatalf("expected overlay key to win on mismatch, got %q", merged.Key)
	}
}

func TestMergeCSRKOneSidePresent(t *testing.T) {
	a := &CSRK{Key: "K", Counter: 3}
	if merged := MergeCSRK(a, nil); merged.Key != "K" || merged.Counter != 3 {
		t.Fatalf("expected base side to carry through, got %+v", merged)
	}
	if merged := MergeCSRK(nil, a); merged.Key != "K" || merged.Counter != 3 {
		t.Fatalf("expected overlay side to carry through, got %+v", merged)
	}
	if merged := MergeCSRK(nil, nil); merged != nil {
		t.Fatalf("expected nil when both sides absent, got %+v", merged)
	}
}

func TestDevicesEqual(t *testing.T) {
	d1 := Device{MacAddress: "A", Classic: &ClassicKeys{LinkKey: "K"}}
	d2 := Device{MacAddress: "B", Classic: &ClassicKeys{LinkKey: "K"}}
	if !DevicesEqual(d1, d2) {
		t.Fatal("expected devices with equal Classic/LE to be equal regardless of MAC")
	}

	d3 := Device{MacAddress: "A", Classic: &ClassicKeys{LinkKey: "DIFFERENT"}}
	if DevicesEqual(d1, d3) {
		t.Fatal("expected devices with different Classic to be unequal")
	}
}
