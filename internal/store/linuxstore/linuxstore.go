// Package linuxstore implements the platform store adapter over the BlueZ
// file-tree: <root>/<AdapterMac>/<DeviceMac>/info, INI formatted.
package linuxstore

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/go-ini/ini"

	"github.com/meowrch/bluevein/internal/btcred"
	"github.com/meowrch/bluevein/internal/store"
)

// DefaultRoot is the canonical BlueZ storage root on Linux.
const DefaultRoot = "/var/lib/bluetooth"

const infoFilename = "info"

// Store is the file-tree platform store adapter.
type Store struct {
	Root string

	// RestartService is called after a successful SetDevice so the running
	// bluetoothd picks up the new pairing material. Overridable in tests.
	RestartService func() error
}

// New returns a Store rooted at root, defaulting to DefaultRoot when root is
// empty.
func New(root string) *Store {
	if root == "" {
		root = DefaultRoot
	}
	return &Store{Root: root, RestartService: restartBluetoothService}
}

var _ store.Adapter = (*Store)(nil)

func restartBluetoothService() error {
	return exec.Command("systemctl", "restart", "bluetooth").Run()
}

func (s *Store) ListAdapters(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &store.PlatformError{Op: "ListAdapters", Err: store.ErrStoreUnavailable}
		}
		return nil, &store.PlatformError{Op: "ListAdapters", Err: err}
	}

	seen := make(map[string]bool)
	var adapters []string
	for _, e := range entries {
		if !e.IsDir() || !btcred.LooksLikeMac(e.Name()) {
			continue
		}
		mac := btcred.NormalizeMac(e.Name())
		if seen[mac] {
			continue
		}
		seen[mac] = true
		adapters = append(adapters, mac)
	}
	return adapters, nil
}

func (s *Store) ListDevices(ctx context.Context, adapterMac string) ([]btcred.Device, error) {
	adapterDir := filepath.Join(s.Root, btcred.NormalizeMac(adapterMac))
	entries, err := os.ReadDir(adapterDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &store.PlatformError{Op: "ListDevices", Err: err}
	}

	var devices []btcred.Device
	for _, e := range entries {
		if !e.IsDir() || !btcred.LooksLikeMac(e.Name()) {
			continue
		}
		dev, err := s.GetDevice(ctx, adapterMac, e.Name())
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				// Per-device read errors are logged here and skip only that device.
				slog.Warn("skipping unreadable device", "adapter", adapterMac, "device", e.Name(), "error", err)
			}
			continue
		}
		if dev.HasKeys() {
			devices = append(devices, dev)
		}
	}
	return devices, nil
}

func (s *Store) infoPath(adapterMac, deviceMac string) string {
	return filepath.Join(s.Root, btcred.NormalizeMac(adapterMac), btcred.NormalizeMac(deviceMac), infoFilename)
}

func (s *Store) GetDevice(ctx context.Context, adapterMac, deviceMac string) (btcred.Device, error) {
	path := s.infoPath(adapterMac, deviceMac)
	cfg, err := ini.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return btcred.Device{}, store.ErrNotFound
		}
		return btcred.Device{}, &store.PlatformError{Op: "GetDevice", Err: err}
	}
	return parseDevice(cfg, btcred.NormalizeMac(deviceMac)), nil
}

// parseDevice reads the recognized sections out of cfg, dropping any
// individually-invalid key without failing the whole device.
func parseDevice(cfg *ini.File, deviceMac string) btcred.Device {
	dev := btcred.Device{MacAddress: deviceMac}

	if sec := cfg.Section("LinkKey"); sec != nil && sec.HasKey("Key") {
		key := sec.Key("Key").String()
		if err := btcred.ValidateKey(key, "LinkKey"); err == nil {
			dev.Classic = &btcred.ClassicKeys{
				LinkKey:   key,
				KeyType:   uint8(sec.Key("Type").MustInt(4)),
				PINLength: uint8(sec.Key("PINLength").MustInt(0)),
			}
		}
	}

	le := &btcred.LEKeys{}
	if ltk := parseLTKSection(cfg.Section("LongTermKey")); ltk != nil {
		le.LTK = ltk
	}
	if ltk := parseLTKSection(cfg.Section("PeripheralLongTermKey")); ltk != nil {
		le.PeripheralLTK = ltk
	}
	if sec := cfg.Section("IdentityResolvingKey"); sec != nil && sec.HasKey("Key") {
		key := sec.Key("Key").String()
		if err := btcred.ValidateKey(key, "IdentityResolvingKey"); err == nil {
			le.IRK = &key
		}
	}
	if csrk := parseCSRKSection(cfg.Section("LocalSignatureKey")); csrk != nil {
		le.CSRKLocal = csrk
	}
	if csrk := parseCSRKSection(cfg.Section("RemoteSignatureKey")); csrk != nil {
		le.CSRKRemote = csrk
	}
	if sec := cfg.Section("General"); sec != nil && sec.HasKey("AddressType") {
		at := sec.Key("AddressType").String()
		le.AddressType = &at
	}

	if !le.IsEmpty() {
		dev.LE = le
	}
	return dev
}

func parseLTKSection(sec *ini.Section) *btcred.LongTermKey {
	if sec == nil || !sec.HasKey("Key") {
		return nil
	}
	key := sec.Key("Key").String()
	if err := btcred.ValidateKey(key, "LongTermKey"); err != nil {
		return nil
	}
	ltk := &btcred.LongTermKey{Key: key}
	if sec.HasKey("Authenticated") {
		v := uint8(sec.Key("Authenticated").MustInt(0))
		ltk.Authenticated = &v
	}
	if sec.HasKey("EncSize") {
		v := uint8(sec.Key("EncSize").MustInt(0))
		ltk.EncSize = &v
	}
	if sec.HasKey("EDiv") {
		v := uint16(sec.Key("EDiv").MustInt(0))
		ltk.EDiv = &v
	}
	if sec.HasKey("Rand") {
		v := sec.Key("Rand").MustUint64(0)
		ltk.Rand = &v
	}
	return ltk
}

func parseCSRKSection(sec *ini.Section) *btcred.CSRK {
	if sec == nil || !sec.HasKey("Key") {
		return nil
	}
	key := sec.Key("Key").String()
	if err := btcred.ValidateKey(key, "SignatureKey"); err != nil {
		return nil
	}
	return &btcred.CSRK{
		Key:           key,
		Counter:       uint32(sec.Key("Counter").MustInt(0)),
		Authenticated: sec.Key("Authenticated").MustBool(false),
	}
}

func (s *Store) SetDevice(ctx context.Context, adapterMac string, device btcred.Device) error {
	if device.Classic != nil {
		if err := btcred.ValidateKey(device.Classic.LinkKey, "LinkKey"); err != nil {
			// An invalid Classic key aborts the whole write, not just the
			// Classic section: unlike the LE sub-fields, Classic has no
			// partial-field granularity to fall back to.
			return &store.PlatformError{Op: "SetDevice", Err: err}
		}
	}

	path := s.infoPath(adapterMac, device.MacAddress)
	cfg, err := ini.LooseLoad(path)
	if err != nil {
		return &store.PlatformError{Op: "SetDevice", Err: err}
	}

	if device.Classic != nil {
		sec, _ := cfg.NewSection("LinkKey")
		sec.Key("Key").SetValue(device.Classic.LinkKey)
		sec.Key("Type").SetValue(strconv.Itoa(int(device.Classic.KeyType)))
		sec.Key("PINLength").SetValue(strconv.Itoa(int(device.Classic.PINLength)))
	}

	if device.LE != nil {
		writeLTKSection(cfg, "LongTermKey", device.LE.LTK)
		writeLTKSection(cfg, "PeripheralLongTermKey", device.LE.PeripheralLTK)
		if device.LE.IRK != nil {
			if err := btcred.ValidateKey(*device.LE.IRK, "IdentityResolvingKey"); err == nil {
				sec, _ := cfg.NewSection("IdentityResolvingKey")
				sec.Key("Key").SetValue(*device.LE.IRK)
			}
		}
		writeCSRKSection(cfg, "LocalSignatureKey", device.LE.CSRKLocal)
		writeCSRKSection(cfg, "RemoteSignatureKey", device.LE.CSRKRemote)
		if device.LE.AddressType != nil {
			sec, _ := cfg.GetSection("General")
			if sec == nil {
				sec, _ = cfg.NewSection("General")
			}
			sec.Key("AddressType").SetValue(*device.LE.AddressType)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return &store.PlatformError{Op: "SetDevice", Err: err}
	}
	if err := cfg.SaveTo(path); err != nil {
		return &store.PlatformError{Op: "SetDevice", Err: err}
	}

	if s.RestartService != nil {
		if err := s.RestartService(); err != nil {
			return &store.PlatformError{Op: "restart bluetooth service", Err: err}
		}
	}
	return nil
}

func writeLTKSection(cfg *ini.File, name string, ltk *btcred.LongTermKey) {
	if ltk == nil {
		return
	}
	if err := btcred.ValidateKey(ltk.Key, name); err != nil {
		return
	}
	sec, _ := cfg.NewSection(name)
	sec.Key("Key").SetValue(ltk.Key)
	sec.Key("Authenticated").SetValue(strconv.Itoa(int(ltk.AuthenticatedOrDefault())))
	if ltk.EncSize != nil {
		sec.Key("EncSize").SetValue(strconv.Itoa(int(*ltk.EncSize)))
	}
	if ltk.EDiv != nil {
		sec.Key("EDiv").SetValue(strconv.Itoa(int(*ltk.EDiv)))
	}
	if ltk.Rand != nil {
		sec.Key("Rand").SetValue(strconv.FormatUint(*ltk.Rand, 10))
	}
}

func writeCSRKSection(cfg *ini.File, name string, csrk *btcred.CSRK) {
	if csrk == nil {
		return
	}
	if err := btcred.ValidateKey(csrk.Key, name); err != nil {
		return
	}
	sec, _ := cfg.NewSection(name)
	sec.Key("Key").SetValue(csrk.Key)
	sec.Key("Counter").SetValue(strconv.FormatUint(uint64(csrk.Counter), 10))
	sec.Key("Authenticated").SetValue(strconv.FormatBool(csrk.Authenticated))
}

func (s *Store) RemoveDevice(ctx context.Context, adapterMac, deviceMac string) error {
	dir := filepath.Join(s.Root, btcred.NormalizeMac(adapterMac), btcred.NormalizeMac(deviceMac))
	if err := os.RemoveAll(dir); err != nil {
		return &store.PlatformError{Op: "RemoveDevice", Err: err}
	}
	return nil
}
