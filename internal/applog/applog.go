// Package applog wires up the structured logger every BlueVein component
// logs through, tagging each record with a "component" attribute and
// directing output to the platform-native journal via stdout.
package applog

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// New returns a tint-backed slog.Logger. verbose raises the level to debug;
// component is attached to every record so log lines tagged by subsystem
// are easy to grep out of journald/Event Viewer.
func New(component string, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
			}
			return a
		},
	})

	return slog.New(handler).With("component", component)
}
