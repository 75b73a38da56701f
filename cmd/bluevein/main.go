// Command bluevein is the long-running process that keeps Bluetooth
// pairing credentials in sync between the two operating systems sharing
// this machine's EFI System Partition. It is invoked directly by each
// platform's service manager; install/uninstall/start/stop wrapping is
// handled outside this binary.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meowrch/bluevein/internal/applog"
	"github.com/meowrch/bluevein/internal/diagnostics"
	"github.com/meowrch/bluevein/internal/esp"
	"github.com/meowrch/bluevein/internal/localconfig"
	"github.com/meowrch/bluevein/internal/syncengine"
)

type config struct {
	Verbose bool
}

func loadConfig() config {
	return config{
		Verbose: os.Getenv("BLUEVEIN_VERBOSE") == "1",
	}
}

func main() {
	cfg := loadConfig()
	log := applog.New("bluevein", cfg.Verbose)

	if err := diagnostics.RequirePrivilege(); err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}

	locator, err := esp.Locate()
	if err != nil {
		log.Error("could not locate EFI system partition", "error", err)
		os.Exit(1)
	}
	log.Info("located EFI system partition", "mount", locator.MountPoint, "raw", locator.RawDevice)

	if err := localconfig.Save(&localconfig.Config{EFIPath: locator.MountPoint}); err != nil {
		log.Warn("failed to persist local config", "error", err)
	}

	adapter, err := newPlatformStore()
	if err != nil {
		log.Error("platform bluetooth store unavailable", "error", err)
		os.Exit(1)
	}

	eng := syncengine.New(adapter, locator, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel, log)

	log.Info("running startup bidirectional sync")
	if err := eng.BidirectionalSync(ctx); err != nil {
		log.Warn("startup sync failed, continuing", "error", err)
	}

	runMonitors(ctx, eng, log)

	<-ctx.Done()
	log.Info("shutting down")
	time.Sleep(200 * time.Millisecond)
}

func setupSignalHandler(cancel context.CancelFunc, log *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received termination signal")
		cancel()
	}()
}
