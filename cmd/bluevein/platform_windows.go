//go:build windows

package main

import (
	"context"
	"log/slog"

	"github.com/meowrch/bluevein/internal/monitor/winmon"
	"github.com/meowrch/bluevein/internal/store"
	"github.com/meowrch/bluevein/internal/store/windowsstore"
	"github.com/meowrch/bluevein/internal/syncengine"
)

func newPlatformStore() (store.Adapter, error) {
	return windowsstore.New(), nil
}

func runMonitors(ctx context.Context, eng *syncengine.Engine, log *slog.Logger) {
	mon := winmon.New(eng, log)
	go mon.Run(ctx)
	go mon.RunReverseCheck(ctx)
}
