//go:build !windows

// Package linuxmon watches the BlueZ file-tree root with fsnotify, adding
// watches dynamically as adapter and device directories appear.
package linuxmon

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/meowrch/bluevein/internal/btcred"
	"github.com/meowrch/bluevein/internal/monitor"
)

const infoFilename = "info"

// Monitor watches root (normally linuxstore.DefaultRoot) and calls into eng
// as pairing keys appear, change, or disappear.
type Monitor struct {
	Root string
	Eng  monitor.Engine
	Log  *slog.Logger

	watcher *fsnotify.Watcher
	// watchedDevice maps a watched device directory to its (adapter, device)
	// canonical MACs, so an event on the directory's info file can be
	// attributed back to the right pair.
	watchedDevice map[string][2]string
}

// New constructs a Monitor. Call Run to start watching.
func New(root string, eng monitor.Engine, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{Root: root, Eng: eng, Log: log, watchedDevice: make(map[string][2]string)}
}

// Run blocks, dispatching events until ctx is canceled. Transient setup
// errors are retried with monitor.RetryBackoff.
func (m *Monitor) Run(ctx context.Context) {
	for {
		if err := m.runOnce(ctx); err != nil {
			m.Log.Warn("linuxmon setup failed, retrying", "error", err)
			select {
			case <-time.After(monitor.RetryBackoff):
				continue
			case <-ctx.Done():
				return
			}
		}
		return
	}
}

func (m *Monitor) runOnce(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	m.watcher = w
	defer w.Close()

	if err := w.Add(m.Root); err != nil {
		return err
	}
	m.addExistingAdapters()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			m.handleEvent(ctx, ev)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.Log.Warn("linuxmon watch error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}

// addExistingAdapters walks the tree once at startup so devices already
// present before the watcher started aren't missed until their next write.
func (m *Monitor) addExistingAdapters() {
	entries, err := os.ReadDir(m.Root)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() && btcred.LooksLikeMac(e.Name()) {
			m.addAdapterWatch(filepath.Join(m.Root, e.Name()))
		}
	}
}

func (m *Monitor) addAdapterWatch(adapterDir string) {
	if err := m.watcher.Add(adapterDir); err != nil {
		m.Log.Warn("failed to watch adapter dir", "path", adapterDir, "error", err)
		return
	}
	entries, err := os.ReadDir(adapterDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() && btcred.LooksLikeMac(e.Name()) {
			m.addDeviceWatch(adapterDir, filepath.Join(adapterDir, e.Name()))
		}
	}
}

func (m *Monitor) addDeviceWatch(adapterDir, deviceDir string) {
	if err := m.watcher.Add(deviceDir); err != nil {
		m.Log.Warn("failed to watch device dir", "path", deviceDir, "error", err)
		return
	}
	adapterMac := btcred.NormalizeMac(filepath.Base(adapterDir))
	deviceMac := btcred.NormalizeMac(filepath.Base(deviceDir))
	m.watchedDevice[deviceDir] = [2]string{adapterMac, deviceMac}
}

func (m *Monitor) handleEvent(ctx context.Context, ev fsnotify.Event) {
	dir := filepath.Dir(ev.Name)
	base := filepath.Base(ev.Name)

	switch {
	case dir == m.Root:
		m.handleRootEvent(ev, base)
	case base == infoFilename:
		m.handleInfoEvent(ctx, ev, dir)
	default:
		// A device directory appearing/disappearing under an adapter dir.
		if btcred.LooksLikeMac(base) {
			m.handleAdapterChildEvent(ev, dir, ev.Name)
		}
	}
}

func (m *Monitor) handleRootEvent(ev fsnotify.Event, name string) {
	if !btcred.LooksLikeMac(name) {
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Rename) != 0 {
		info, err := os.Stat(ev.Name)
		if err == nil && info.IsDir() {
			m.addAdapterWatch(ev.Name)
		}
	}
}

func (m *Monitor) handleAdapterChildEvent(ev fsnotify.Event, adapterDir, childPath string) {
	if ev.Op&(fsnotify.Create|fsnotify.Rename) != 0 {
		info, err := os.Stat(childPath)
		if err == nil && info.IsDir() {
			m.addDeviceWatch(adapterDir, childPath)
			return
		}
	}
	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		if pair, ok := m.watchedDevice[childPath]; ok {
			m.Eng.HandleDeviceRemoval(pair[0], pair[1])
			delete(m.watchedDevice, childPath)
		}
	}
}

func (m *Monitor) handleInfoEvent(ctx context.Context, ev fsnotify.Event, deviceDir string) {
	if ev.Op&(fsnotify.Write|fsnotify.Chmod) == 0 {
		return
	}
	pair, ok := m.watchedDevice[deviceDir]
	if !ok {
		return
	}
	if !hasPairingKeys(filepath.Join(deviceDir, infoFilename)) {
		return
	}
	if err := m.Eng.HandleDeviceChange(ctx, pair[0], pair[1]); err != nil {
		m.Log.Warn("device change handling failed", "adapter", pair[0], "device", pair[1], "error", err)
	}
}

// hasPairingKeys reports whether the info file contains at least one
// recognized pairing-key section with a validly-formed Key= value.
func hasPairingKeys(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return containsValidKeyLine(string(data))
}

func containsValidKeyLine(content string) bool {
	pairingKeySections := map[string]bool{
		"LinkKey": true, "LongTermKey": true, "PeripheralLongTermKey": true,
		"IdentityResolvingKey": true, "LocalSignatureKey": true, "RemoteSignatureKey": true,
	}
	section := ""
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = line[1 : len(line)-1]
			continue
		}
		if rest, ok := strings.CutPrefix(line, "Key="); ok && pairingKeySections[section] {
			if btcred.ValidateKey(rest, "Key") == nil {
				return true
			}
		}
	}
	return false
}
