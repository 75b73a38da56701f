//go:build windows

// Package windowsstore implements the platform store adapter over the two
// sibling Bluetooth registry trees the Windows stack keeps under
// HKLM\SYSTEM\CurrentControlSet\Services: BTHPORT (Classic) and BTHLE (LE).
package windowsstore

import (
	"context"

	"golang.org/x/sys/windows/registry"

	"github.com/meowrch/bluevein/internal/btcred"
	"github.com/meowrch/bluevein/internal/store"
)

const (
	classicKeysPath = `SYSTEM\CurrentControlSet\Services\BTHPORT\Parameters\Keys`
	leKeysPath      = `SYSTEM\CurrentControlSet\Services\BTHLE\Parameters\Keys`
)

// Store is the registry-backed platform store adapter.
type Store struct {
	root registry.Key
}

// New returns a Store rooted at HKEY_LOCAL_MACHINE, which is where both
// Bluetooth key trees live.
func New() *Store {
	return &Store{root: registry.LOCAL_MACHINE}
}

var _ store.Adapter = (*Store)(nil)

func (s *Store) ListAdapters(ctx context.Context) ([]string, error) {
	k, err := registry.OpenKey(s.root, classicKeysPath, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil, &store.PlatformError{Op: "ListAdapters", Err: store.ErrStoreUnavailable}
	}
	defer k.Close()

	names, err := k.ReadSubKeyNames(-1)
	if err != nil {
		return nil, &store.PlatformError{Op: "ListAdapters", Err: err}
	}

	seen := make(map[string]bool)
	var adapters []string
	for _, name := range names {
		mac := btcred.NativeToMac(name)
		if !btcred.LooksLikeMac(mac) || seen[mac] {
			continue
		}
		seen[mac] = true
		adapters = append(adapters, mac)
	}
	return adapters, nil
}

func (s *Store) ListDevices(ctx context.Context, adapterMac string) ([]btcred.Device, error) {
	adapterHex := btcred.MacToNative(adapterMac)

	var devices []btcred.Device
	seen := make(map[string]bool)

	if k, err := registry.OpenKey(s.root, classicKeysPath+`\`+adapterHex, registry.QUERY_VALUE); err == nil {
		names, _ := k.ReadValueNames(-1)
		for _, name := range names {
			mac := btcred.NativeToMac(name)
			if !btcred.LooksLikeMac(mac) {
				continue
			}
			if dev, err := s.GetDevice(ctx, adapterMac, mac); err == nil && dev.HasKeys() {
				devices = append(devices, dev)
				seen[mac] = true
			}
		}
		k.Close()
	}

	if k, err := registry.OpenKey(s.root, leKeysPath+`\`+adapterHex, registry.ENUMERATE_SUB_KEYS); err == nil {
		names, _ := k.ReadSubKeyNames(-1)
		for _, name := range names {
			if len(name) != 12 {
				continue
			}
			mac := btcred.NativeToMac(name)
			if seen[mac] {
				continue
			}
			if dev, err := s.GetDevice(ctx, adapterMac, mac); err == nil && dev.HasKeys() {
				devices = append(devices, dev)
				seen[mac] = true
			}
		}
		k.Close()
	}

	return devices, nil
}

func (s *Store) GetDevice(ctx context.Context, adapterMac, deviceMac string) (btcred.Device, error) {
	adapterHex := btcred.MacToNative(adapterMac)
	deviceHex := btcred.MacToNative(deviceMac)
	dev := btcred.Device{MacAddress: btcred.NormalizeMac(deviceMac)}

	if k, err := registry.OpenKey(s.root, classicKeysPath+`\`+adapterHex, registry.QUERY_VALUE); err == nil {
		if linkKey, _, err := k.GetBinaryValue(deviceHex); err == nil && len(linkKey) == 16 {
			classic := btcred.NewClassicKeys(hexUpper(linkKey))
			dev.Classic = &classic
		}
		k.Close()
	}

	le := readLEDevice(s.root, leKeysPath+`\`+adapterHex+`\`+deviceHex)
	if le != nil {
		dev.LE = le
	}

	if !dev.HasKeys() {
		return btcred.Device{}, store.ErrNotFound
	}
	return dev, nil
}

func readLEDevice(root registry.Key, path string) *btcred.LEKeys {
	k, err := registry.OpenKey(root, path, registry.QUERY_VALUE)
	if err != nil {
		return nil
	}
	defer k.Close()

	le := &btcred.LEKeys{}

	if raw, _, err := k.GetBinaryValue("LTK"); err == nil && len(raw) == 16 {
		ltk := &btcred.LongTermKey{Key: hexUpper(raw)}
		if v, _, err := k.GetIntegerValue("Authenticated"); err == nil {
			a := uint8(v)
			ltk.Authenticated = &a
		}
		if v, _, err := k.GetIntegerValue("KeyLength"); err == nil {
			e := uint8(v)
			ltk.EncSize = &e
		}
		if v, _, err := k.GetIntegerValue("EDIV"); err == nil {
			ed := uint16(v)
			ltk.EDiv = &ed
		}
		if v, _, err := k.GetIntegerValue("ERand"); err == nil {
			r := v
			ltk.Rand = &r
		}
		le.LTK = ltk
	}

	if raw, _, err := k.GetBinaryValue("IRK"); err == nil && len(raw) == 16 {
		irk := hexUpper(raw)
		le.IRK = &irk
	}

	// Windows does not persist Counter/Authenticated alongside the CSRK
	// binary value; reads default both to zero/false, per the registry
	// store's documented limitation.
	if raw, _, err := k.GetBinaryValue("CSRK"); err == nil && len(raw) == 16 {
		le.CSRKLocal = &btcred.CSRK{Key: hexUpper(raw)}
	}
	if raw, _, err := k.GetBinaryValue("CSRKInbound"); err == nil && len(raw) == 16 {
		le.CSRKRemote = &btcred.CSRK{Key: hexUpper(raw)}
	}

	if le.IsEmpty() {
		return nil
	}
	return le
}

func (s *Store) SetDevice(ctx context.Context, adapterMac string, device btcred.Device) error {
	adapterHex := btcred.MacToNative(adapterMac)
	deviceHex := btcred.MacToNative(device.MacAddress)

	if device.Classic != nil {
		if err := btcred.ValidateKey(device.Classic.LinkKey, "LinkKey"); err == nil {
			if err := s.setClassic(adapterHex, deviceHex, device.Classic); err != nil {
				return err
			}
		}
	}

	if device.LE != nil {
		if err := s.setLE(adapterHex, deviceHex, device.LE); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) setClassic(adapterHex, deviceHex string, classic *btcred.ClassicKeys) error {
	k, _, err := registry.CreateKey(s.root, classicKeysPath+`\`+adapterHex, registry.SET_VALUE)
	if err != nil {
		return &store.PlatformError{Op: "setClassic", Err: err}
	}
	defer k.Close()

	raw, err := hexDecode(classic.LinkKey)
	if err != nil {
		return &store.PlatformError{Op: "setClassic", Err: err}
	}
	if err := k.SetBinaryValue(deviceHex, raw); err != nil {
		return &store.PlatformError{Op: "setClassic", Err: err}
	}
	return nil
}

func (s *Store) setLE(adapterHex, deviceHex string, le *btcred.LEKeys) error {
	path := leKeysPath + `\` + adapterHex + `\` + deviceHex
	k, _, err := registry.CreateKey(s.root, path, registry.SET_VALUE)
	if err != nil {
		return &store.PlatformError{Op: "setLE", Err: err}
	}
	defer k.Close()

	if le.LTK != nil {
		if err := btcred.ValidateKey(le.LTK.Key, "LTK"); err == nil {
			if raw, err := hexDecode(le.LTK.Key); err == nil {
				k.SetBinaryValue("LTK", raw)
				k.SetDWordValue("Authenticated", uint32(le.LTK.AuthenticatedOrDefault()))
				if le.LTK.EncSize != nil {
					k.SetDWordValue("KeyLength", uint32(*le.LTK.EncSize))
				}
				if le.LTK.EDiv != nil {
					k.SetDWordValue("EDIV", uint32(*le.LTK.EDiv))
				}
				if le.LTK.Rand != nil {
					k.SetQWordValue("ERand", *le.LTK.Rand)
				}
			}
		}
	}

	if le.IRK != nil {
		if err := btcred.ValidateKey(*le.IRK, "IRK"); err == nil {
			if raw, err := hexDecode(*le.IRK); err == nil {
				k.SetBinaryValue("IRK", raw)
			}
		}
	}

	if le.CSRKLocal != nil {
		if err := btcred.ValidateKey(le.CSRKLocal.Key, "CSRK"); err == nil {
			if raw, err := hexDecode(le.CSRKLocal.Key); err == nil {
				k.SetBinaryValue("CSRK", raw)
			}
		}
	}

	if le.CSRKRemote != nil {
		if err := btcred.ValidateKey(le.CSRKRemote.Key, "CSRKInbound"); err == nil {
			if raw, err := hexDecode(le.CSRKRemote.Key); err == nil {
				k.SetBinaryValue("CSRKInbound", raw)
			}
		}
	}

	return nil
}

func (s *Store) RemoveDevice(ctx context.Context, adapterMac, deviceMac string) error {
	adapterHex := btcred.MacToNative(adapterMac)
	deviceHex := btcred.MacToNative(deviceMac)

	if k, err := registry.OpenKey(s.root, classicKeysPath+`\`+adapterHex, registry.SET_VALUE); err == nil {
		k.DeleteValue(deviceHex)
		k.Close()
	}
	registry.DeleteKey(s.root, leKeysPath+`\`+adapterHex+`\`+deviceHex)
	return nil
}
