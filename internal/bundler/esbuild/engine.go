package esbuild

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/spabuild/internal/bundler"
	"git.home.luguber.info/inful/spabuild/internal/diagnostics"
	ferrors "git.home.luguber.info/inful/spabuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spabuild/internal/logfields"
	"git.home.luguber.info/inful/spabuild/internal/stage"
)

// Engine runs esbuild in-process. Every Build creates a fresh incremental
// context owned by the returned Handle.
type Engine struct{}

// NewEngine creates an esbuild engine.
func NewEngine() *Engine { return &Engine{} }

// Build compiles cfg once and returns a Handle for incremental rebuilds.
func (e *Engine) Build(ctx context.Context, cfg bundler.BuildConfig) (diagnostics.Report, bundler.Handle, error) {
	opts, err := buildOptions(cfg)
	if err != nil {
		return diagnostics.Report{}, nil, err
	}
	bctx, cerr := api.Context(opts)
	if cerr != nil {
		return diagnostics.Report{}, nil, ferrors.EngineFailure("create esbuild context").
			WithCause(fmt.Errorf("%v", messages(cerr.Errors))).
			WithContext("backend", string(cfg.Backend)).
			Build()
	}
	h := newHandle(bctx, cfg)
	report, err := h.Rebuild(ctx)
	if err != nil {
		_ = h.Close()
		return diagnostics.Report{}, nil, err
	}
	return report, h, nil
}

func buildOptions(cfg bundler.BuildConfig) (api.BuildOptions, error) {
	ldr, err := loaders(cfg.Loader)
	if err != nil {
		return api.BuildOptions{}, ferrors.InvalidConfig("esbuild loader").WithCause(err).Build()
	}
	define := map[string]string{"process.env.NODE_ENV": strconv.Quote(string(cfg.Mode))}
	for k, v := range cfg.Define {
		define[k] = v
	}
	opts := api.BuildOptions{
		EntryPoints:   cfg.EntryPoints,
		Outdir:        cfg.OutputDir,
		AbsWorkingDir: cfg.ProjectRoot,
		Bundle:        true,
		Write:         false,
		Platform:      api.PlatformBrowser,
		LogLevel:      api.LogLevelSilent,
		Define:        define,
		Loader:        ldr,
		Sourcemap:     api.SourceMapLinked,
	}
	if cfg.Mode.IsProduction() {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
		opts.Sourcemap = api.SourceMapNone
	}
	return opts, nil
}

// writeOutput persists the in-memory output files and the public root.
func writeOutput(cfg bundler.BuildConfig, files []api.OutputFile) error {
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(f.Path, f.Contents, 0o644); err != nil {
			return err
		}
	}
	if cfg.PublicRoot == "" {
		return nil
	}
	if st, err := os.Stat(cfg.PublicRoot); err != nil || !st.IsDir() {
		slog.Debug("No public directory to copy", logfields.Path(cfg.PublicRoot))
		return nil
	}
	_, err := stage.CopyTree(cfg.PublicRoot, cfg.OutputDir, nil)
	return err
}

func messages(msgs []api.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			out = append(out, fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		out = append(out, m.Text)
	}
	return out
}
