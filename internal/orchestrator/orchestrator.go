// Package orchestrator ties backend selection, configuration resolution, build
// invocation, classification and staging into the build pipeline the
// deployment lifecycle triggers.
package orchestrator

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/spabuild/internal/bundler"
	"git.home.luguber.info/inful/spabuild/internal/bundler/esbuild"
	"git.home.luguber.info/inful/spabuild/internal/bundler/webpack"
	"git.home.luguber.info/inful/spabuild/internal/config"
	"git.home.luguber.info/inful/spabuild/internal/diagnostics"
	ferrors "git.home.luguber.info/inful/spabuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spabuild/internal/git"
	"git.home.luguber.info/inful/spabuild/internal/invoker"
	"git.home.luguber.info/inful/spabuild/internal/logfields"
	"git.home.luguber.info/inful/spabuild/internal/metrics"
	"git.home.luguber.info/inful/spabuild/internal/notify"
	"git.home.luguber.info/inful/spabuild/internal/resolve"
	"git.home.luguber.info/inful/spabuild/internal/stage"
)

// RevisionDefine is the compile-time identifier replaced with the git revision
// when revision injection is enabled.
const RevisionDefine = "process.env.GIT_COMMIT"

// outcomeEngineFailure labels passes that ended in a BuildEngineFailure.
const outcomeEngineFailure = "engine_failure"

// DefaultRegistry returns the built-in backends in detection priority order.
func DefaultRegistry() *bundler.Registry {
	return bundler.NewRegistry(webpack.Descriptor(), esbuild.Descriptor())
}

// Result describes a triggered build.
type Result struct {
	PassID    string
	Backend   bundler.Kind
	Outcome   diagnostics.Outcome
	OutputDir string
	Staged    bool
	// Skipped is true when the active deployment stage is filtered out.
	Skipped bool
	// Watching is true when a watch session was started after the pass.
	Watching bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRegistry replaces the backend registry.
func WithRegistry(reg *bundler.Registry) Option {
	return func(o *Orchestrator) { o.registry = reg }
}

// WithRecorder injects a metrics recorder into every pipeline component.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithPublisher injects an outcome publisher.
func WithPublisher(p notify.Publisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRevisionFunc replaces the git revision lookup.
func WithRevisionFunc(fn func(dir string) (string, error)) Option {
	return func(o *Orchestrator) { o.revision = fn }
}

// Orchestrator runs build passes for one project. At most one watch session is
// active at a time; starting a new one disposes the previous.
type Orchestrator struct {
	cfg       *config.Config
	root      string
	strict    bool
	registry  *bundler.Registry
	recorder  metrics.Recorder
	publisher notify.Publisher
	logger    *slog.Logger
	revision  func(dir string) (string, error)

	invoker *invoker.Invoker
	stager  *stage.Stager

	mu        sync.Mutex
	outputDir string
	last      diagnostics.Outcome
	session   *session
}

type session struct {
	cancel context.CancelFunc
	done   chan struct{}
	handle bundler.Handle
}

// New creates an orchestrator for the project at root. strict is the already
// decided warning promotion policy.
func New(cfg *config.Config, root string, strict bool, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		root:      root,
		strict:    strict,
		registry:  DefaultRegistry(),
		recorder:  metrics.NoopRecorder{},
		publisher: notify.NoopPublisher{},
		logger:    slog.Default(),
		revision:  git.Revision,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.invoker = invoker.New().WithRecorder(o.recorder)
	o.stager = stage.NewStager().WithRecorder(o.recorder)
	return o
}

// OutputDir returns the output directory of the most recent pass.
func (o *Orchestrator) OutputDir() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outputDir
}

// LastOutcome returns the outcome of the most recent pass.
func (o *Orchestrator) LastOutcome() diagnostics.Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Watching reports whether a watch session is active.
func (o *Orchestrator) Watching() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session != nil
}

// Done is closed when the active watch session ends. It is nil when no session
// is active.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil
	}
	return o.session.done
}

// Prepare selects the backend, resolves the BuildConfig and validates the
// configured staging destinations against it, without building.
func (o *Orchestrator) Prepare(mode bundler.Mode) (bundler.Descriptor, bundler.BuildConfig, error) {
	override, ok := bundler.ParseKind(o.cfg.Backend)
	if !ok {
		return bundler.Descriptor{}, bundler.BuildConfig{}, ferrors.UnsupportedBackend("unknown backend override").
			WithContext("backend", o.cfg.Backend).
			Build()
	}
	desc, err := bundler.Select(o.registry, override, o.root)
	if err != nil {
		return bundler.Descriptor{}, bundler.BuildConfig{}, err
	}
	bc, err := resolve.Resolve(o.cfg, desc, resolve.Request{
		ProjectRoot: o.root,
		Mode:        mode,
		Define:      o.defines(),
	})
	if err != nil {
		return bundler.Descriptor{}, bundler.BuildConfig{}, err
	}
	if err := stage.ValidateDestinations(bc, o.cfg.Staging); err != nil {
		return bundler.Descriptor{}, bundler.BuildConfig{}, err
	}
	return desc, bc, nil
}

func (o *Orchestrator) defines() map[string]string {
	if !o.cfg.InjectGitRevision || o.revision == nil {
		return nil
	}
	rev, err := o.revision(o.root)
	if err != nil {
		o.logger.Warn("Git revision unavailable; building without it", logfields.Error(err))
		return nil
	}
	o.logger.Info("Injecting git revision", slog.String("revision", git.ShortRevision(rev)))
	return map[string]string{RevisionDefine: strconv.Quote(rev)}
}

// TriggerBuild runs one pass: select, resolve, build, classify and, when the
// outcome succeeded, stage. With watch set and a backend that supports it, a
// watch session is started on the pass's BuildConfig and runs until Dispose.
//
// Configuration errors, BuildEngineFailure and StagingFailure are returned as
// errors. A Failure outcome is returned as data with a nil error.
func (o *Orchestrator) TriggerBuild(ctx context.Context, mode bundler.Mode, watchMode bool) (Result, error) {
	if !o.cfg.ShouldExecute(o.cfg.Stage) {
		o.logger.Info("Deployment stage not enabled; skipping build",
			logfields.Stage(o.cfg.Stage), slog.Any("stages", o.cfg.Stages))
		return Result{Skipped: true}, nil
	}

	desc, bc, err := o.Prepare(mode)
	if err != nil {
		return Result{}, err
	}
	if watchMode {
		// Sessions must not share an output directory.
		if err := o.Dispose(ctx); err != nil {
			return Result{}, err
		}
	}

	passID := uuid.NewString()
	res := Result{PassID: passID, Backend: desc.Kind, OutputDir: bc.OutputDir}
	log := o.logger.With(logfields.PassID(passID), logfields.Backend(string(desc.Kind)), logfields.Mode(string(bc.Mode)))
	log.Info("Starting build", logfields.OutputDir(bc.OutputDir), slog.Bool("watch", watchMode))

	o.mu.Lock()
	o.outputDir = bc.OutputDir
	o.mu.Unlock()

	start := time.Now()
	report, handle, err := o.invoker.RunOnce(ctx, desc.New(), bc)
	if err != nil {
		log.Error("Bundler engine failed", logfields.Error(err))
		o.finish(ctx, passID, bc, diagnostics.Outcome{}, false, err)
		return res, err
	}

	res.Outcome = o.classify(log, report, time.Since(start))
	res.Staged, err = o.stageIfSucceeded(ctx, log, bc, res.Outcome, handle)
	o.finish(ctx, passID, bc, res.Outcome, res.Staged, err)
	if err != nil {
		if handle != nil {
			_ = handle.Close()
		}
		return res, err
	}

	switch {
	case !watchMode:
		if handle != nil {
			_ = handle.Close()
		}
	case handle == nil:
		log.Warn("Backend has no incremental build support; watch not started")
	default:
		o.startSession(ctx, bc, handle)
		res.Watching = true
	}
	return res, nil
}

func (o *Orchestrator) classify(log *slog.Logger, report diagnostics.Report, d time.Duration) diagnostics.Outcome {
	outcome := diagnostics.Classify(report, o.strict)
	for _, msg := range report.Errors {
		log.Error("Build error", slog.String("message", msg))
	}
	for _, msg := range report.Warnings {
		log.Warn("Build warning", slog.String("message", msg))
	}
	attrs := []any{logfields.Outcome(outcome.String()), logfields.Duration(d)}
	switch {
	case outcome.Promoted:
		log.Error("Build failed: warnings are errors in strict mode", attrs...)
	case outcome.Succeeded():
		log.Info("Build finished", attrs...)
	default:
		log.Error("Build failed", attrs...)
	}
	return outcome
}

// stageIfSucceeded stages artifacts for passing outcomes only.
func (o *Orchestrator) stageIfSucceeded(ctx context.Context, log *slog.Logger, bc bundler.BuildConfig, outcome diagnostics.Outcome, handle bundler.Handle) (bool, error) {
	if !outcome.Succeeded() {
		return false, nil
	}
	return o.stageOutput(ctx, log, bc, handle)
}

// stageOutput copies the output directory to every detected destination. It
// reports false with a nil error when there is nowhere to stage. Destinations
// are excluded from the handle's change feed before anything is written to them.
func (o *Orchestrator) stageOutput(ctx context.Context, log *slog.Logger, bc bundler.BuildConfig, handle bundler.Handle) (bool, error) {
	plan, err := stage.NewPlan(bc, o.cfg.Staging)
	if err != nil {
		log.Error("Build succeeded but staging failed", logfields.Error(err))
		return false, err
	}
	if len(plan.Triples) == 0 {
		return false, nil
	}
	if ig, ok := handle.(bundler.PathIgnorer); ok {
		ig.IgnorePaths(plan.Destinations()...)
	}
	if err := o.stager.Stage(ctx, plan); err != nil {
		log.Error("Build succeeded but staging failed", logfields.Error(err))
		return false, err
	}
	return true, nil
}

// finish records the pass for LastOutcome, metrics and notification listeners.
func (o *Orchestrator) finish(ctx context.Context, passID string, bc bundler.BuildConfig, outcome diagnostics.Outcome, staged bool, err error) {
	label := string(outcome.Status)
	switch {
	case ferrors.HasCategory(err, ferrors.CategoryEngine):
		label = outcomeEngineFailure
	case err != nil:
		o.logger.Debug("Pass ended with an error", logfields.PassID(passID), slog.String("category", string(ferrors.GetCategory(err))))
	}
	if label != "" {
		o.recorder.IncBuildOutcome(string(bc.Backend), label)
	}

	o.mu.Lock()
	o.last = outcome
	o.mu.Unlock()

	ev := notify.Event{
		PassID:    passID,
		Backend:   string(bc.Backend),
		Mode:      string(bc.Mode),
		Outcome:   label,
		Messages:  outcome.Messages,
		OutputDir: bc.OutputDir,
		Staged:    staged,
		At:        time.Now().UTC(),
	}
	if err := o.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		o.logger.Warn("Failed to publish build outcome", logfields.PassID(passID), logfields.Error(err))
	}
}
