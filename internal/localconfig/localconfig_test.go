package localconfig

import "testing"

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil zero-value config")
	}
}
