//go:build windows

package windowsstore

import "testing"

func TestHexRoundTrip(t *testing.T) {
	want := "0123456789ABCDEF0123456789ABCDEF"
	raw, err := hexDecode(want)
	if err != nil {
		t.Fatalf("hexDecode: %v", err)
	}
	if got := hexUpper(raw); got != want {
		t.Fatalf("hexUpper(hexDecode(%q)) = %q", want, got)
	}
}

func TestHexUpperUppercasesLowercaseInput(t *testing.T) {
	raw, _ := hexDecode("abcdef0123456789abcdef0123456789")
	if got := hexUpper(raw); got != "ABCDEF0123456789ABCDEF0123456789" {
		t.Fatalf("expected uppercase output, got %q", got)
	}
}
