// Package webpack drives the module-bundler backend by running the webpack CLI
// as a child process and reading its JSON stats.
package webpack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/spabuild/internal/bundler"
	"git.home.luguber.info/inful/spabuild/internal/diagnostics"
	ferrors "git.home.luguber.info/inful/spabuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spabuild/internal/logfields"
	"git.home.luguber.info/inful/spabuild/internal/stage"
)

// Descriptor registers the backend with a bundler.Registry. The webpack config
// is JavaScript, so it is passed through to the CLI without being read.
func Descriptor() bundler.Descriptor {
	return bundler.Descriptor{
		Kind: bundler.KindModuleBundler,
		Markers: bundler.Markers{
			Packages: []string{"webpack"},
			Files:    []string{"webpack.config.js", "webpack.config.cjs", "webpack.config.mjs", "webpack.config.ts"},
		},
		Defaults: bundler.Defaults{
			Entry:      "src/index.js",
			PublicDir:  "public",
			OutputDir:  "dist",
			ConfigFile: "webpack.config.js",
		},
		New: func() bundler.Engine { return NewEngine() },
	}
}

// Engine invokes the project-local webpack binary, falling back to npx.
type Engine struct {
	lookPath func(string) (string, error)
}

// NewEngine creates a webpack engine.
func NewEngine() *Engine {
	return &Engine{lookPath: exec.LookPath}
}

// Build runs one compilation. webpack has no incremental session here, so the
// returned Handle is always nil.
func (e *Engine) Build(ctx context.Context, cfg bundler.BuildConfig) (diagnostics.Report, bundler.Handle, error) {
	name, args, err := e.command(cfg)
	if err != nil {
		return diagnostics.Report{}, nil, err
	}
	if len(cfg.Define) > 0 {
		slog.Warn("Defines are passed to webpack as --env; they reach the bundle only if the webpack config applies env",
			slog.Any("defines", sortedKeys(cfg.Define)))
	}

	// #nosec G204 -- binary is the project's own webpack or npx from PATH
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = cfg.ProjectRoot
	cmd.Env = append(os.Environ(), "NODE_ENV="+string(cfg.Mode))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	slog.Debug("Invoking webpack", logfields.Path(name), slog.Any("args", args))

	runErr := cmd.Run()
	if errStr := stderr.String(); errStr != "" {
		slog.Debug("webpack stderr", "output", errStr)
	}
	if ctx.Err() != nil {
		return diagnostics.Report{}, nil, ferrors.EngineFailure("webpack canceled").WithCause(ctx.Err()).Build()
	}

	report, parseErr := ParseStats(stdout.Bytes())
	if parseErr != nil {
		cause := parseErr
		if runErr != nil {
			cause = fmt.Errorf("%w: %s", runErr, strings.TrimSpace(stderr.String()))
		}
		return diagnostics.Report{}, nil, ferrors.EngineFailure("webpack did not produce build stats").
			WithCause(cause).
			WithContext("backend", string(cfg.Backend)).
			Build()
	}

	// Files webpack emitted are never overwritten by public ones.
	if len(report.Errors) == 0 && cfg.PublicRoot != "" {
		if st, err := os.Stat(cfg.PublicRoot); err == nil && st.IsDir() {
			if _, err := stage.CopyTree(cfg.PublicRoot, cfg.OutputDir, stage.KeepExisting(cfg.OutputDir)); err != nil {
				return diagnostics.Report{}, nil, ferrors.EngineFailure("copy public directory").WithCause(err).Build()
			}
		}
	}
	return report, nil, nil
}

func (e *Engine) command(cfg bundler.BuildConfig) (string, []string, error) {
	args := []string{
		"--mode", string(cfg.Mode),
		"--output-path", cfg.OutputDir,
		"--json",
	}
	for _, entry := range cfg.EntryPoints {
		args = append(args, "--entry", entry)
	}
	if cfg.ConfigFile != "" {
		args = append(args, "--config", cfg.ConfigFile)
	}
	for _, k := range sortedKeys(cfg.Define) {
		args = append(args, "--env", k+"="+cfg.Define[k])
	}

	local := filepath.Join(cfg.ProjectRoot, "node_modules", ".bin", "webpack")
	if st, err := os.Stat(local); err == nil && !st.IsDir() {
		return local, args, nil
	}
	npx, err := e.lookPath("npx")
	if err != nil {
		return "", nil, ferrors.EngineFailure("webpack binary not found").
			WithCause(err).
			WithContext("looked_in", local).
			Build()
	}
	return npx, append([]string{"--no-install", "webpack"}, args...), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type stats struct {
	Errors   []json.RawMessage `json:"errors"`
	Warnings []json.RawMessage `json:"warnings"`
}

type statsMessage struct {
	Message    string `json:"message"`
	ModuleName string `json:"moduleName"`
	Loc        string `json:"loc"`
}

// ParseStats extracts diagnostics from `webpack --json` output. Both the string
// messages of webpack 4 and the object messages of webpack 5 are accepted.
// Output printed before the JSON document is skipped.
func ParseStats(out []byte) (diagnostics.Report, error) {
	start := bytes.IndexByte(out, '{')
	if start < 0 {
		return diagnostics.Report{}, errors.New("no JSON stats in webpack output")
	}
	var s stats
	if err := json.NewDecoder(bytes.NewReader(out[start:])).Decode(&s); err != nil {
		return diagnostics.Report{}, fmt.Errorf("decode webpack stats: %w", err)
	}
	return diagnostics.Report{
		Errors:   decodeMessages(s.Errors),
		Warnings: decodeMessages(s.Warnings),
	}, nil
}

func decodeMessages(raw []json.RawMessage) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var str string
		if err := json.Unmarshal(r, &str); err == nil {
			out = append(out, str)
			continue
		}
		var m statsMessage
		if err := json.Unmarshal(r, &m); err != nil {
			out = append(out, string(r))
			continue
		}
		prefix := m.ModuleName
		if prefix != "" && m.Loc != "" {
			prefix += " " + m.Loc
		}
		if prefix != "" {
			out = append(out, prefix+": "+m.Message)
			continue
		}
		out = append(out, m.Message)
	}
	return out
}
