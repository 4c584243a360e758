// Package watch serializes incremental rebuilds for a watch session.
//
// A Coordinator consumes change notifications and runs at most one pass at a
// time. Notifications that arrive while a pass is building or staging are folded
// into a single follow-up pass.
package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/spabuild/internal/diagnostics"
	"git.home.luguber.info/inful/spabuild/internal/logfields"
	"git.home.luguber.info/inful/spabuild/internal/metrics"
)

// State is the coordinator's position in the watch cycle.
type State string

const (
	StateIdle      State = "idle"
	StateBuilding  State = "building"
	StateStaged    State = "staged"
	StateCancelled State = "cancelled"
)

// PassReport describes one completed pass.
type PassReport struct {
	Outcome diagnostics.Outcome
	Staged  bool
	// Err is the engine or staging error, if any. A Failure outcome is not an error.
	Err error
}

// Steps are the per-pass operations. Build runs the bundler and classifies the
// result. Stage runs only after a successful outcome and reports whether
// anything was copied. Done is optional.
type Steps struct {
	Build func(ctx context.Context) (diagnostics.Outcome, error)
	Stage func(ctx context.Context) (staged bool, err error)
	Done  func(PassReport)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDebounce waits for a quiet period of d after a notification before
// scheduling a pass.
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) { c.debounce = d }
}

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.recorder = r
		}
	}
}

// Coordinator runs the Idle → Building → Staged → Idle cycle.
type Coordinator struct {
	changes  <-chan struct{}
	steps    Steps
	debounce time.Duration
	recorder metrics.Recorder

	// kick holds at most one scheduled pass.
	kick chan struct{}

	mu     sync.Mutex
	state  State
	passes int
}

// New creates a coordinator fed by changes.
func New(changes <-chan struct{}, steps Steps, opts ...Option) *Coordinator {
	c := &Coordinator{
		changes:  changes,
		steps:    steps,
		recorder: metrics.NoopRecorder{},
		kick:     make(chan struct{}, 1),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Passes returns the number of passes started.
func (c *Coordinator) Passes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.passes
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	slog.Debug("Watch state changed", logfields.State(string(s)))
}

// Run blocks until ctx is canceled or the change feed is closed. Cancellation is
// cooperative: a pass in progress is finished before Run returns, and no further
// pass starts afterwards.
func (c *Coordinator) Run(ctx context.Context) {
	go c.pump(ctx)
	defer c.setState(StateCancelled)

	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case _, ok := <-c.kick:
			if !ok || ctx.Err() != nil {
				return
			}
			c.runPass(context.WithoutCancel(ctx))
		}
	}
}

// pump forwards change notifications into kick without ever blocking. A full
// kick buffer means a pass is already scheduled, so the notification is coalesced.
func (c *Coordinator) pump(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-c.changes:
			if !ok {
				close(c.kick)
				return
			}
			if c.debounce <= 0 {
				c.schedule()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(c.debounce)
			} else {
				timer.Reset(c.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			c.schedule()
		}
	}
}

func (c *Coordinator) schedule() {
	select {
	case c.kick <- struct{}{}:
	default:
		c.recorder.IncCoalesced()
		slog.Debug("Change coalesced into scheduled rebuild")
	}
}

func (c *Coordinator) runPass(ctx context.Context) {
	c.mu.Lock()
	c.passes++
	c.mu.Unlock()
	c.recorder.IncRebuild()
	c.setState(StateBuilding)
	defer c.setState(StateIdle)

	var report PassReport
	defer func() {
		if c.steps.Done != nil {
			c.steps.Done(report)
		}
	}()

	outcome, err := c.steps.Build(ctx)
	if err != nil {
		slog.Error("Rebuild failed; waiting for next change", logfields.Error(err))
		report.Err = err
		return
	}
	report.Outcome = outcome
	if !outcome.Succeeded() {
		slog.Warn("Rebuild produced a failing outcome; skipping staging",
			logfields.Outcome(outcome.String()),
			logfields.Count(len(outcome.Messages)))
		return
	}

	c.setState(StateStaged)
	if c.steps.Stage == nil {
		return
	}
	staged, err := c.steps.Stage(ctx)
	if err != nil {
		slog.Error("Staging failed after successful rebuild", logfields.Error(err))
		report.Err = err
		return
	}
	report.Staged = staged
}
