//go:build !windows

package main

import (
	"context"
	"log/slog"

	"github.com/meowrch/bluevein/internal/monitor"
	"github.com/meowrch/bluevein/internal/monitor/linuxmon"
	"github.com/meowrch/bluevein/internal/store"
	"github.com/meowrch/bluevein/internal/store/linuxstore"
	"github.com/meowrch/bluevein/internal/syncengine"
)

func newPlatformStore() (store.Adapter, error) {
	return linuxstore.New(linuxstore.DefaultRoot), nil
}

func runMonitors(ctx context.Context, eng *syncengine.Engine, log *slog.Logger) {
	mon := linuxmon.New(linuxstore.DefaultRoot, eng, log)
	go mon.Run(ctx)
	go monitor.RunReverseCheckTicker(ctx, eng, monitor.ReverseCheckInterval)
}
