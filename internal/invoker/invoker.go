// Package invoker drives single build passes through a bundler engine.
package invoker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/spabuild/internal/bundler"
	"git.home.luguber.info/inful/spabuild/internal/diagnostics"
	ferrors "git.home.luguber.info/inful/spabuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spabuild/internal/logfields"
	"git.home.luguber.info/inful/spabuild/internal/metrics"
)

// Invoker runs build passes. It holds no per-pass state and may be shared.
type Invoker struct {
	recorder metrics.Recorder
}

// New creates an invoker with metrics disabled.
func New() *Invoker {
	return &Invoker{recorder: metrics.NoopRecorder{}}
}

// WithRecorder injects a metrics recorder.
func (i *Invoker) WithRecorder(r metrics.Recorder) *Invoker {
	if r != nil {
		i.recorder = r
	}
	return i
}

// RunOnce empties the output directory and runs a full build. A report with
// errors is a normal result; an error return is always a classified error,
// BuildEngineFailure when the engine crashed.
func (i *Invoker) RunOnce(ctx context.Context, eng bundler.Engine, cfg bundler.BuildConfig) (diagnostics.Report, bundler.Handle, error) {
	if err := prepareOutput(cfg.OutputDir); err != nil {
		return diagnostics.Report{}, nil, err
	}

	start := time.Now()
	report, handle, err := guardBuild(func() (diagnostics.Report, bundler.Handle, error) {
		return eng.Build(ctx, cfg)
	})
	i.observe(cfg, start)
	if err != nil {
		if handle != nil {
			_ = handle.Close()
		}
		return diagnostics.Report{}, nil, engineError(cfg, err)
	}
	return report, handle, nil
}

// Rebuild runs an incremental pass on a live handle with the same output
// preparation as RunOnce.
func (i *Invoker) Rebuild(ctx context.Context, cfg bundler.BuildConfig, h bundler.Handle) (diagnostics.Report, error) {
	if err := prepareOutput(cfg.OutputDir); err != nil {
		return diagnostics.Report{}, err
	}

	start := time.Now()
	report, _, err := guardBuild(func() (diagnostics.Report, bundler.Handle, error) {
		r, err := h.Rebuild(ctx)
		return r, nil, err
	})
	i.observe(cfg, start)
	if err != nil {
		return diagnostics.Report{}, engineError(cfg, err)
	}
	return report, nil
}

func (i *Invoker) observe(cfg bundler.BuildConfig, start time.Time) {
	d := time.Since(start)
	i.recorder.ObserveBuildDuration(string(cfg.Backend), d)
	slog.Debug("Bundler pass finished", logfields.Backend(string(cfg.Backend)), logfields.Duration(d))
}

// guardBuild converts an engine panic into a BuildEngineFailure.
func guardBuild(fn func() (diagnostics.Report, bundler.Handle, error)) (report diagnostics.Report, h bundler.Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			report, h = diagnostics.Report{}, nil
			err = ferrors.EngineFailure("bundler engine panicked").
				WithCause(fmt.Errorf("%v", r)).
				Build()
		}
	}()
	return fn()
}

func engineError(cfg bundler.BuildConfig, err error) error {
	if ferrors.IsClassified(err) {
		return err
	}
	return ferrors.EngineFailure("bundler engine failed").
		WithCause(err).
		WithContext("backend", string(cfg.Backend)).
		Build()
}

// prepareOutput ensures dir exists and is empty. The directory itself is kept so
// anything serving it does not lose its handle.
func prepareOutput(dir string) error {
	if dir == "" {
		return ferrors.InvalidConfig("output directory is empty").Build()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create output directory").
			WithContext("output_dir", dir).
			Build()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "read output directory").
			WithContext("output_dir", dir).
			Build()
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "clear output directory").
				WithContext("output_dir", dir).
				Build()
		}
	}
	return nil
}
