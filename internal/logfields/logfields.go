package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBackend     = "backend"
	KeyMode        = "mode"
	KeyPassID      = "pass_id"
	KeyOutcome     = "outcome"
	KeyOutputDir   = "output_dir"
	KeySource      = "source"
	KeyDestination = "destination"
	KeyDurationMS  = "duration_ms"
	KeyHook        = "hook"
	KeyState       = "state"
	KeyStage       = "stage"
	KeyPath        = "path"
	KeyCount       = "count"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Backend(kind string) slog.Attr     { return slog.String(KeyBackend, kind) }
func Mode(m string) slog.Attr           { return slog.String(KeyMode, m) }
func PassID(id string) slog.Attr        { return slog.String(KeyPassID, id) }
func Outcome(o string) slog.Attr        { return slog.String(KeyOutcome, o) }
func OutputDir(dir string) slog.Attr    { return slog.String(KeyOutputDir, dir) }
func Source(dir string) slog.Attr       { return slog.String(KeySource, dir) }
func Destination(dir string) slog.Attr  { return slog.String(KeyDestination, dir) }
func Hook(name string) slog.Attr        { return slog.String(KeyHook, name) }
func State(s string) slog.Attr          { return slog.String(KeyState, s) }
func Stage(name string) slog.Attr       { return slog.String(KeyStage, name) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func Count(n int) slog.Attr             { return slog.Int(KeyCount, n) }
func Duration(d time.Duration) slog.Attr { return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
