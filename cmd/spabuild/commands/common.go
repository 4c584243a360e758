package commands

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/spabuild/internal/config"
	ferrors "git.home.luguber.info/inful/spabuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spabuild/internal/logfields"
	"git.home.luguber.info/inful/spabuild/internal/metrics"
	"git.home.luguber.info/inful/spabuild/internal/notify"
	"git.home.luguber.info/inful/spabuild/internal/orchestrator"
)

// ErrBuildFailed is returned when a pass ends with a Failure outcome. Its
// messages have already been logged.
var ErrBuildFailed = errors.New("build failed")

// disposeTimeout bounds how long shutdown waits for an in-flight pass.
const disposeTimeout = 2 * time.Minute

// Global carries shared state into subcommands.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (relative to --root)" default:"spabuild.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Root    string           `help:"Project root directory" default:"." type:"existingdir"`
	Stage   string           `help:"Active deployment stage (overrides the config file)"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build  BuildCmd  `cmd:"" help:"Run a one-shot build and stage the artifacts"`
	Watch  WatchCmd  `cmd:"" help:"Build, then rebuild and restage on every source change"`
	Hook   HookCmd   `cmd:"" help:"Run the build a deployment lifecycle hook asks for"`
	Detect DetectCmd `cmd:"" help:"Print the detected backend and resolved build configuration"`
	Init   InitCmd   `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// ConfigPath resolves the configuration file against the project root.
func (c *CLI) ConfigPath() string {
	if filepath.IsAbs(c.Config) {
		return c.Config
	}
	return filepath.Join(c.Root, c.Config)
}

// LoadConfig loads the configuration and applies the --stage override.
func (c *CLI) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Root, c.Config)
	if err != nil {
		return nil, err
	}
	if c.Stage != "" {
		cfg.Stage = c.Stage
	}
	return cfg, nil
}

// StrictFlags are shared by commands that run builds.
type StrictFlags struct {
	Strict   bool `help:"Treat warnings as errors" xor:"strict"`
	NoStrict bool `name:"no-strict" help:"Never treat warnings as errors" xor:"strict"`
}

// Resolve applies the precedence: flag, then config, then the CI indicator.
func (s StrictFlags) Resolve(cfg *config.Config) bool {
	switch {
	case s.Strict:
		return true
	case s.NoStrict:
		return false
	case cfg.Strict != nil:
		return *cfg.Strict
	default:
		return ciEnabled()
	}
}

// ciEnabled reports whether the CI environment variable is truthy.
func ciEnabled() bool {
	v := strings.TrimSpace(os.Getenv("CI"))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		// Some CI systems set CI to a vendor name.
		return true
	}
	return b
}

// newOrchestrator wires the optional publisher around an orchestrator. The
// returned func releases it.
func newOrchestrator(root *CLI, cfg *config.Config, strict bool, rec metrics.Recorder) (*orchestrator.Orchestrator, func()) {
	var pub notify.Publisher = notify.NoopPublisher{}
	if cfg.Notify.NATSURL != "" {
		p, err := notify.NewNATSPublisher(cfg.Notify.NATSURL, cfg.Notify.Subject)
		if err != nil {
			slog.Warn("Outcome notifications disabled", logfields.Error(err))
		} else {
			pub = p
		}
	}
	o := orchestrator.New(cfg, root.Root, strict,
		orchestrator.WithRecorder(rec),
		orchestrator.WithPublisher(pub),
		orchestrator.WithLogger(slog.Default()),
	)
	return o, func() {
		if err := pub.Close(); err != nil {
			slog.Warn("Closing outcome publisher failed", logfields.Error(err))
		}
	}
}

// outcomeErr converts a finished pass into the command's error result.
func outcomeErr(res orchestrator.Result) error {
	if res.Skipped || res.Outcome.Succeeded() {
		return nil
	}
	return ErrBuildFailed
}

// awaitSession blocks until the watch session ends or ctx is canceled, then
// disposes it. The in-flight pass finishes before this returns.
func awaitSession(ctx context.Context, o *orchestrator.Orchestrator) error {
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping watch session...")
	case <-o.Done():
		slog.Info("Watch session ended")
	}
	return dispose(o, disposeTimeout)
}

// dispose stops the session, giving the in-flight pass up to timeout.
func dispose(o *orchestrator.Orchestrator, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := o.Dispose(ctx); err != nil {
		return ferrors.RuntimeError("watch session did not stop in time").
			WithCause(err).
			WithContext("timeout", timeout.String()).
			Build()
	}
	return nil
}
