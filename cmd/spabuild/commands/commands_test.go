package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/spabuild/internal/bundler"
	"git.home.luguber.info/inful/spabuild/internal/config"
	"git.home.luguber.info/inful/spabuild/internal/diagnostics"
	ferrors "git.home.luguber.info/inful/spabuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spabuild/internal/orchestrator"
)

// blockingEngine hands out a handle whose rebuilds wait for release.
type blockingEngine struct {
	started chan struct{}
	release chan struct{}
	handle  *blockingHandle
}

func (e *blockingEngine) Build(context.Context, bundler.BuildConfig) (diagnostics.Report, bundler.Handle, error) {
	e.handle = &blockingHandle{engine: e, changes: make(chan struct{}, 1)}
	return diagnostics.Report{}, e.handle, nil
}

type blockingHandle struct {
	engine  *blockingEngine
	changes chan struct{}
	once    sync.Once
}

func (h *blockingHandle) Changes() <-chan struct{} { return h.changes }
func (h *blockingHandle) Rebuild(context.Context) (diagnostics.Report, error) {
	close(h.engine.started)
	<-h.engine.release
	return diagnostics.Report{}, nil
}
func (h *blockingHandle) Close() error {
	h.once.Do(func() { close(h.changes) })
	return nil
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"})
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	var out bytes.Buffer
	err = kctx.Run(&Global{Out: &out}, &cli)
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func newProject(t *testing.T, entry string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "package.json"), `{"devDependencies":{"esbuild":"^0.25.0"}}`)
	writeFile(t, filepath.Join(dir, "src", "index.js"), entry)
	writeFile(t, filepath.Join(dir, "public", "index.html"), "<html></html>")
	writeFile(t, filepath.Join(dir, "public", "robots.txt"), "User-agent: *")
	writeFile(t, filepath.Join(dir, "spabuild.yaml"), "staging:\n  destinations:\n    - deploy\n")
	return dir
}

func TestStrictFlagsResolve(t *testing.T) {
	yes, no := true, false
	cases := []struct {
		name  string
		flags StrictFlags
		cfg   *bool
		ci    string
		want  bool
	}{
		{"flag wins over config", StrictFlags{Strict: true}, &no, "", true},
		{"no-strict wins over CI", StrictFlags{NoStrict: true}, nil, "true", false},
		{"config wins over CI", StrictFlags{}, &no, "true", false},
		{"config enables", StrictFlags{}, &yes, "", true},
		{"CI fallback", StrictFlags{}, nil, "1", true},
		{"CI vendor name", StrictFlags{}, nil, "github", true},
		{"CI false", StrictFlags{}, nil, "false", false},
		{"nothing set", StrictFlags{}, nil, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("CI", tc.ci)
			require.Equal(t, tc.want, tc.flags.Resolve(&config.Config{Strict: tc.cfg}))
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := parseMode("dev")
	require.NoError(t, err)
	require.Equal(t, bundler.ModeDevelopment, m)

	_, err = parseMode("staging")
	require.ErrorIs(t, err, ferrors.ErrInvalidConfig, "unexpected kind: %v", err)
}

func TestOutcomeErr(t *testing.T) {
	require.NoError(t, outcomeErr(orchestrator.Result{Outcome: diagnostics.Success()}))
	require.NoError(t, outcomeErr(orchestrator.Result{Skipped: true}))
	require.ErrorIs(t, outcomeErr(orchestrator.Result{Outcome: diagnostics.Failure([]string{"boom"})}), ErrBuildFailed)
}

func TestBuildCommandStagesArtifacts(t *testing.T) {
	t.Setenv("CI", "")
	dir := newProject(t, "console.log('hello')\n")

	_, err := run(t, "--root", dir, "build")
	require.NoError(t, err)

	require.FileExists(t, filepath.Join(dir, "build", "index.js"))
	require.FileExists(t, filepath.Join(dir, "build", "index.html"))
	require.FileExists(t, filepath.Join(dir, "deploy", "index.js"))
	require.FileExists(t, filepath.Join(dir, "deploy", "robots.txt"))
	require.NoFileExists(t, filepath.Join(dir, "deploy", "index.html"))
}

func TestBuildCommandFailureOutcome(t *testing.T) {
	t.Setenv("CI", "")
	dir := newProject(t, "const = ;\n")

	_, err := run(t, "--root", dir, "build")
	require.ErrorIs(t, err, ErrBuildFailed)
	require.NoDirExists(t, filepath.Join(dir, "deploy"))
}

func TestBuildCommandNoBackend(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "--root", dir, "build")
	require.ErrorIs(t, err, ferrors.ErrBackendNotDetected)
}

func TestDetectCommand(t *testing.T) {
	dir := newProject(t, "export {}\n")

	out, err := run(t, "--root", dir, "detect", "--mode", "development")
	require.NoError(t, err)
	require.Contains(t, out, "backend:     native-es-bundler")
	require.Contains(t, out, "mode:        development")
	require.Contains(t, out, filepath.Join(dir, "deploy"))
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, "--root", dir, "init")
	require.NoError(t, err)
	require.Contains(t, out, "initialized successfully")
	require.FileExists(t, filepath.Join(dir, config.DefaultFile))

	_, err = run(t, "--root", dir, "init")
	require.Error(t, err)

	_, err = run(t, "--root", dir, "init", "--force")
	require.NoError(t, err)
}

func TestHookCommandUnknownEvent(t *testing.T) {
	dir := newProject(t, "export {}\n")
	_, err := run(t, "--root", dir, "hook", "after:nothing")
	require.Error(t, err)
}

func TestDisposeTimeoutIsRuntimeError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "blocking.marker"), "")
	eng := &blockingEngine{started: make(chan struct{}), release: make(chan struct{})}
	reg := bundler.NewRegistry(bundler.Descriptor{
		Kind:     bundler.KindNativeES,
		Markers:  bundler.Markers{Files: []string{"blocking.marker"}},
		Defaults: bundler.Defaults{Entry: "src/index.js", PublicDir: "public", OutputDir: "build"},
		New:      func() bundler.Engine { return eng },
	})
	cfg := &config.Config{}
	require.NoError(t, config.ApplyDefaults(cfg))
	cfg.Watch.Debounce = time.Millisecond
	o := orchestrator.New(cfg, root, false, orchestrator.WithRegistry(reg))

	res, err := o.TriggerBuild(context.Background(), bundler.ModeDevelopment, true)
	require.NoError(t, err)
	require.True(t, res.Watching)
	done := o.Done()

	eng.handle.changes <- struct{}{}
	select {
	case <-eng.started:
	case <-time.After(2 * time.Second):
		t.Fatal("rebuild did not start")
	}

	err = dispose(o, 20*time.Millisecond)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryRuntime), "unexpected error: %v", err)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(eng.release)
	<-done
	require.NoError(t, dispose(o, time.Second), "nothing left to stop")
}
