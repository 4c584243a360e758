package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/spabuild/internal/bundler"
	"git.home.luguber.info/inful/spabuild/internal/config"
	"git.home.luguber.info/inful/spabuild/internal/diagnostics"
	ferrors "git.home.luguber.info/inful/spabuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spabuild/internal/notify"
)

// fakeEngine writes a shell and a bundle into the output directory and returns
// the configured report on every pass.
type fakeEngine struct {
	report   diagnostics.Report
	err      error
	watch    bool
	builds   atomic.Int32
	lastCfg  bundler.BuildConfig
	handle   *fakeHandle
	mu       sync.Mutex
	rebuilds atomic.Int32
}

func (f *fakeEngine) Build(_ context.Context, cfg bundler.BuildConfig) (diagnostics.Report, bundler.Handle, error) {
	f.builds.Add(1)
	f.mu.Lock()
	f.lastCfg = cfg
	f.mu.Unlock()
	if f.err != nil {
		return diagnostics.Report{}, nil, f.err
	}
	if err := writeOutput(cfg, "v1"); err != nil {
		return diagnostics.Report{}, nil, err
	}
	if !f.watch {
		return f.report, nil, nil
	}
	f.handle = &fakeHandle{engine: f, cfg: cfg, changes: make(chan struct{})}
	return f.report, f.handle, nil
}

func writeOutput(cfg bundler.BuildConfig, version string) error {
	if err := os.WriteFile(filepath.Join(cfg.OutputDir, "index.html"), []byte("<html></html>"), 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cfg.OutputDir, "main.js"), []byte(version), 0o644)
}

type fakeHandle struct {
	engine  *fakeEngine
	cfg     bundler.BuildConfig
	changes chan struct{}
	closed  atomic.Bool
	once    sync.Once
}

func (h *fakeHandle) Changes() <-chan struct{} { return h.changes }
func (h *fakeHandle) Rebuild(context.Context) (diagnostics.Report, error) {
	h.engine.rebuilds.Add(1)
	return diagnostics.Report{}, writeOutput(h.cfg, "v2")
}
func (h *fakeHandle) Close() error {
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.changes)
	})
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}
func (*recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) snapshot() []notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notify.Event(nil), p.events...)
}

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "index.js"), []byte("console.log(1)"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "fake.marker"), nil, 0o644))
	return root
}

func registryFor(eng *fakeEngine) *bundler.Registry {
	return bundler.NewRegistry(bundler.Descriptor{
		Kind:     bundler.KindNativeES,
		Markers:  bundler.Markers{Files: []string{"fake.marker"}},
		Defaults: bundler.Defaults{Entry: "src/index.js", PublicDir: "public", OutputDir: "build"},
		New:      func() bundler.Engine { return eng },
	})
}

func newConfig(t *testing.T, destinations ...string) *config.Config {
	t.Helper()
	cfg := &config.Config{Staging: config.StagingConfig{Destinations: destinations}}
	require.NoError(t, config.ApplyDefaults(cfg))
	return cfg
}

func TestTriggerBuild_WarningsAreStagedWithoutShell(t *testing.T) {
	root := newProject(t)
	eng := &fakeEngine{report: diagnostics.Report{Warnings: []string{"unused variable"}}}
	pub := &recordingPublisher{}
	o := New(newConfig(t, "deploy"), root, false, WithRegistry(registryFor(eng)), WithPublisher(pub))

	res, err := o.TriggerBuild(context.Background(), bundler.ModeProduction, false)
	require.NoError(t, err)
	require.Equal(t, diagnostics.SuccessWithWarnings([]string{"unused variable"}), res.Outcome)
	require.True(t, res.Staged)
	require.False(t, res.Watching)
	require.NotEmpty(t, res.PassID)
	require.Equal(t, filepath.Join(root, "build"), res.OutputDir)
	require.Equal(t, res.OutputDir, o.OutputDir())
	require.Equal(t, res.Outcome, o.LastOutcome())
	require.Equal(t, bundler.ModeProduction, eng.lastCfg.Mode)

	dest := filepath.Join(root, "deploy")
	require.FileExists(t, filepath.Join(res.OutputDir, "index.html"))
	require.FileExists(t, filepath.Join(dest, "main.js"))
	require.NoFileExists(t, filepath.Join(dest, "index.html"))

	events := pub.snapshot()
	require.Len(t, events, 1)
	require.Equal(t, res.PassID, events[0].PassID)
	require.Equal(t, "success_with_warnings", events[0].Outcome)
	require.True(t, events[0].Staged)
}

func TestTriggerBuild_StrictWarningsFailWithoutStaging(t *testing.T) {
	root := newProject(t)
	eng := &fakeEngine{report: diagnostics.Report{Warnings: []string{"unused variable"}}}
	o := New(newConfig(t, "deploy"), root, true, WithRegistry(registryFor(eng)))

	res, err := o.TriggerBuild(context.Background(), bundler.ModeProduction, false)
	require.NoError(t, err, "a failing outcome is data, not an error")
	require.Equal(t, diagnostics.StatusFailure, res.Outcome.Status)
	require.True(t, res.Outcome.Promoted)
	require.False(t, res.Staged)
	require.NoDirExists(t, filepath.Join(root, "deploy"))
}

func TestTriggerBuild_EngineFailureIsFatal(t *testing.T) {
	root := newProject(t)
	eng := &fakeEngine{err: errors.New("bundler crashed")}
	pub := &recordingPublisher{}
	o := New(newConfig(t), root, false, WithRegistry(registryFor(eng)), WithPublisher(pub))

	_, err := o.TriggerBuild(context.Background(), bundler.ModeProduction, true)
	require.ErrorIs(t, err, ferrors.ErrBuildEngineFailure)
	require.False(t, o.Watching())
	require.Equal(t, "engine_failure", pub.snapshot()[0].Outcome)
}

func TestTriggerBuild_StageFilterSkips(t *testing.T) {
	root := newProject(t)
	eng := &fakeEngine{}
	cfg := newConfig(t)
	cfg.Stages = []string{"prod"}
	cfg.Stage = "dev"
	o := New(cfg, root, false, WithRegistry(registryFor(eng)))

	res, err := o.TriggerBuild(context.Background(), bundler.ModeProduction, false)
	require.NoError(t, err)
	require.True(t, res.Skipped)
	require.Zero(t, eng.builds.Load())
}

func TestTriggerBuild_DetectionAndConfigErrors(t *testing.T) {
	eng := &fakeEngine{}

	o := New(newConfig(t), t.TempDir(), false, WithRegistry(registryFor(eng)))
	_, err := o.TriggerBuild(context.Background(), bundler.ModeProduction, false)
	require.ErrorIs(t, err, ferrors.ErrBackendNotDetected)

	cfg := newConfig(t)
	cfg.Output = "."
	o = New(cfg, newProject(t), false, WithRegistry(registryFor(eng)))
	_, err = o.TriggerBuild(context.Background(), bundler.ModeProduction, false)
	require.ErrorIs(t, err, ferrors.ErrInvalidConfig)
	require.Zero(t, eng.builds.Load(), "no partial build after a configuration error")
}

func TestTriggerBuild_InjectsGitRevision(t *testing.T) {
	root := newProject(t)
	eng := &fakeEngine{}
	cfg := newConfig(t)
	cfg.InjectGitRevision = true
	o := New(cfg, root, false, WithRegistry(registryFor(eng)),
		WithRevisionFunc(func(string) (string, error) { return "deadbeef", nil }))

	_, err := o.TriggerBuild(context.Background(), bundler.ModeDevelopment, false)
	require.NoError(t, err)
	require.Equal(t, `"deadbeef"`, eng.lastCfg.Define[RevisionDefine])
}

func TestTriggerBuild_WatchSessionRebuildsAndDisposes(t *testing.T) {
	root := newProject(t)
	eng := &fakeEngine{watch: true}
	pub := &recordingPublisher{}
	cfg := newConfig(t, "deploy")
	cfg.Watch.Debounce = time.Millisecond
	o := New(cfg, root, false, WithRegistry(registryFor(eng)), WithPublisher(pub))

	res, err := o.TriggerBuild(context.Background(), bundler.ModeDevelopment, true)
	require.NoError(t, err)
	require.True(t, res.Watching)
	require.True(t, o.Watching())
	done := o.Done()
	require.NotNil(t, done)

	eng.handle.changes <- struct{}{}
	require.Eventually(t, func() bool { return len(pub.snapshot()) == 2 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, int32(1), eng.rebuilds.Load())
	data, err := os.ReadFile(filepath.Join(root, "deploy", "main.js"))
	require.NoError(t, err)
	require.Equal(t, "v2", string(data))
	require.True(t, pub.snapshot()[1].Staged)

	require.NoError(t, o.Dispose(context.Background()))
	<-done
	require.True(t, eng.handle.closed.Load())
	require.False(t, o.Watching())
	require.NoError(t, o.Dispose(context.Background()), "dispose is idempotent")
}

func TestTriggerBuild_ConflictingDestinationRejectedBeforeBuild(t *testing.T) {
	for _, dest := range []string{"build/copy", "public", "."} {
		t.Run(dest, func(t *testing.T) {
			root := newProject(t)
			eng := &fakeEngine{}
			pub := &recordingPublisher{}
			o := New(newConfig(t, dest), root, false, WithRegistry(registryFor(eng)), WithPublisher(pub))

			_, err := o.TriggerBuild(context.Background(), bundler.ModeProduction, false)
			require.ErrorIs(t, err, ferrors.ErrInvalidConfig)
			require.Equal(t, int32(0), eng.builds.Load())
			require.NoDirExists(t, filepath.Join(root, "build"))
			require.Empty(t, pub.snapshot())
		})
	}
}

func TestTriggerBuild_StagingWritesDoNotRetriggerWatch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte(`{"devDependencies":{"esbuild":"^0.25.0"}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.js"), []byte(`console.log("one");`), 0o644))
	cfg := newConfig(t, "deploy")
	cfg.Entry = "index.js"
	cfg.Watch.Debounce = 10 * time.Millisecond
	pub := &recordingPublisher{}
	o := New(cfg, root, false, WithPublisher(pub))

	res, err := o.TriggerBuild(context.Background(), bundler.ModeDevelopment, true)
	require.NoError(t, err)
	require.True(t, res.Watching)
	require.True(t, res.Staged)
	defer func() { require.NoError(t, o.Dispose(context.Background())) }()

	require.NoError(t, os.WriteFile(filepath.Join(root, "index.js"), []byte(`console.log("two");`), 0o644))
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join(root, "deploy", "index.js"))
		return err == nil && strings.Contains(string(data), "two")
	}, 5*time.Second, 10*time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	settled := len(pub.snapshot())
	time.Sleep(500 * time.Millisecond)
	require.Equal(t, settled, len(pub.snapshot()), "passes kept running without source edits")
	require.LessOrEqual(t, settled, 4)
}

func TestTriggerBuild_WatchUnsupportedBackend(t *testing.T) {
	root := newProject(t)
	eng := &fakeEngine{}
	o := New(newConfig(t), root, false, WithRegistry(registryFor(eng)))

	res, err := o.TriggerBuild(context.Background(), bundler.ModeDevelopment, true)
	require.NoError(t, err)
	require.False(t, res.Watching)
	require.Nil(t, o.Done())
}

func TestDispatch(t *testing.T) {
	root := newProject(t)
	eng := &fakeEngine{}
	o := New(newConfig(t), root, false, WithRegistry(registryFor(eng)))

	res, err := o.Dispatch(context.Background(), "before:package:createDeploymentArtifacts")
	require.NoError(t, err)
	require.Equal(t, diagnostics.StatusSuccess, res.Outcome.Status)
	require.Equal(t, bundler.ModeProduction, eng.lastCfg.Mode)

	_, err = o.Dispatch(context.Background(), "before:invoke:local:invoke")
	require.NoError(t, err)
	require.Equal(t, bundler.ModeDevelopment, eng.lastCfg.Mode)

	_, err = o.Dispatch(context.Background(), "after:nothing")
	require.Equal(t, ferrors.CategoryValidation, ferrors.GetCategory(err))
}

func TestHookNamesSorted(t *testing.T) {
	names := HookNames()
	require.Len(t, names, len(Hooks))
	require.IsNonDecreasing(t, names)
}

func TestDefaultRegistryPriority(t *testing.T) {
	require.Equal(t, []bundler.Kind{bundler.KindModuleBundler, bundler.KindNativeES}, DefaultRegistry().Kinds())
}
