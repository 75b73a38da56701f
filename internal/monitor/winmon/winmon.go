//go:build windows

// Package winmon watches the BTHPORT Classic key tree for changes via the
// native RegNotifyChangeKeyValue primitive, re-snapshotting and diffing on
// each wake, combined with a periodic reverse-check tick for changes the
// registry-notify mechanism cannot observe (edits to the canonical
// document made from the other OS).
package winmon

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"github.com/meowrch/bluevein/internal/btcred"
	"github.com/meowrch/bluevein/internal/monitor"
)

const classicKeysPath = `SYSTEM\CurrentControlSet\Services\BTHPORT\Parameters\Keys`

var (
	advapi32                    = windows.NewLazySystemDLL("advapi32.dll")
	procRegNotifyChangeKeyValue = advapi32.NewProc("RegNotifyChangeKeyValue")
)

const (
	regNotifyChangeNameTree = 0x00000001
	regNotifyChangeLastSet  = 0x00000004
)

// deviceSnapshot maps adapter hex -> device hex -> raw link-key bytes.
type deviceSnapshot map[string]map[string][]byte

// Monitor watches the Classic key tree and calls into eng on changes.
type Monitor struct {
	Eng monitor.Engine
	Log *slog.Logger

	prev deviceSnapshot
}

// New constructs a Monitor. Call Run to start watching.
func New(eng monitor.Engine, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{Eng: eng, Log: log}
}

// Run blocks, alternating between waiting on a registry-change notification
// and diffing the tree, until ctx is canceled. A separate goroutine runs
// the reverse-check ticker; call RunReverseCheck alongside Run.
func (m *Monitor) Run(ctx context.Context) {
	m.prev, _ = snapshot()

	for {
		if ctx.Err() != nil {
			return
		}
		if err := m.waitForChange(ctx); err != nil {
			m.Log.Warn("registry watch failed, retrying", "error", err)
			select {
			case <-time.After(monitor.RetryBackoff):
				continue
			case <-ctx.Done():
				return
			}
		}
		m.diffAndDispatch(ctx)
	}
}

// RunReverseCheck runs the periodic reverse-check tick alongside Run.
func (m *Monitor) RunReverseCheck(ctx context.Context) {
	monitor.RunReverseCheckTicker(ctx, m.Eng, monitor.ReverseCheckInterval)
}

func (m *Monitor) waitForChange(ctx context.Context) error {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, classicKeysPath, registry.NOTIFY)
	if err != nil {
		return err
	}
	defer k.Close()

	ret, _, err := procRegNotifyChangeKeyValue.Call(
		uintptr(k),
		uintptr(1), // watch subtree
		uintptr(regNotifyChangeNameTree|regNotifyChangeLastSet),
		0,
		0, // synchronous: blocks until a change occurs
	)
	if ret != 0 {
		return err
	}
	return nil
}

func (m *Monitor) diffAndDispatch(ctx context.Context) {
	cur, err := snapshot()
	if err != nil {
		m.Log.Warn("snapshot failed", "error", err)
		return
	}
	defer func() { m.prev = cur }()

	for adapterHex, devices := range cur {
		prevDevices := m.prev[adapterHex]
		for deviceHex, raw := range devices {
			prevRaw, existed := prevDevices[deviceHex]
			if !existed || !bytes.Equal(prevRaw, raw) {
				adapterMac := btcred.NativeToMac(adapterHex)
				deviceMac := btcred.NativeToMac(deviceHex)
				if err := m.Eng.HandleDeviceChange(ctx, adapterMac, deviceMac); err != nil {
					m.Log.Warn("device change handling failed", "adapter", adapterMac, "device", deviceMac, "error", err)
				}
			}
		}
	}

	for adapterHex, prevDevices := range m.prev {
		curDevices := cur[adapterHex]
		for deviceHex := range prevDevices {
			if _, ok := curDevices[deviceHex]; !ok {
				m.Eng.HandleDeviceRemoval(btcred.NativeToMac(adapterHex), btcred.NativeToMac(deviceHex))
			}
		}
	}
}

func snapshot() (deviceSnapshot, error) {
	root, err := registry.OpenKey(registry.LOCAL_MACHINE, classicKeysPath, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	adapterNames, err := root.ReadSubKeyNames(-1)
	if err != nil {
		return nil, err
	}

	snap := make(deviceSnapshot, len(adapterNames))
	for _, adapterHex := range adapterNames {
		k, err := registry.OpenKey(registry.LOCAL_MACHINE, classicKeysPath+`\`+adapterHex, registry.QUERY_VALUE)
		if err != nil {
			continue
		}
		valueNames, err := k.ReadValueNames(-1)
		if err != nil {
			k.Close()
			continue
		}
		devices := make(map[string][]byte, len(valueNames))
		for _, name := range valueNames {
			if len(name) != 12 || !btcred.LooksLikeMac(btcred.NativeToMac(name)) {
				continue // classify a 12-hex-char value name as a device
			}
			raw, _, err := k.GetBinaryValue(name)
			if err == nil {
				devices[name] = raw
			}
		}
		k.Close()
		snap[adapterHex] = devices
	}
	return snap, nil
}
