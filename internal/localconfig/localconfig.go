// Package localconfig persists small per-process discovery state — the
// discovered EFI path and an optional cached adapter MAC — distinct from
// the Canonical Document, which both OSes share. Created on first run.
package localconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const filename = "bluevein-local.json"

// Config is the per-process cache written to the platform config directory.
type Config struct {
	EFIPath    string `json:"efi_path"`
	AdapterMac string `json:"adapter_mac,omitempty"`
}

// Load reads the local config, returning a zero-value Config (not an error)
// when no file exists yet.
func Load() (*Config, error) {
	path, err := path()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to the platform config directory, creating it on first
// use.
func Save(cfg *Config) error {
	path, err := path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
