package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/spabuild/internal/bundler"
	"git.home.luguber.info/inful/spabuild/internal/diagnostics"
	"git.home.luguber.info/inful/spabuild/internal/logfields"
	"git.home.luguber.info/inful/spabuild/internal/watch"
)

// startSession runs a watch coordinator over handle until Dispose. The
// BuildConfig stays fixed for the whole session.
func (o *Orchestrator) startSession(ctx context.Context, bc bundler.BuildConfig, handle bundler.Handle) {
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &session{cancel: cancel, done: make(chan struct{}), handle: handle}

	var passID string
	var start time.Time
	coord := watch.New(handle.Changes(), watch.Steps{
		Build: func(ctx context.Context) (diagnostics.Outcome, error) {
			passID, start = uuid.NewString(), time.Now()
			log := o.logger.With(logfields.PassID(passID), logfields.Backend(string(bc.Backend)))
			log.Info("Change detected; rebuilding")
			report, err := o.invoker.Rebuild(ctx, bc, handle)
			if err != nil {
				return diagnostics.Outcome{}, err
			}
			return o.classify(log, report, time.Since(start)), nil
		},
		Stage: func(ctx context.Context) (bool, error) {
			return o.stageOutput(ctx, o.logger.With(logfields.PassID(passID)), bc, handle)
		},
		Done: func(r watch.PassReport) {
			o.finish(sctx, passID, bc, r.Outcome, r.Staged, r.Err)
		},
	}, watch.WithDebounce(o.cfg.Watch.Debounce), watch.WithRecorder(o.recorder))

	o.mu.Lock()
	o.session = s
	o.mu.Unlock()

	o.logger.Info("Watching for changes", logfields.Backend(string(bc.Backend)), logfields.OutputDir(bc.OutputDir))
	go func() {
		defer close(s.done)
		coord.Run(sctx)
	}()
}

// Dispose stops the active watch session, if any, and waits for an in-flight
// pass to finish or ctx to expire.
func (o *Orchestrator) Dispose(ctx context.Context) error {
	o.mu.Lock()
	s := o.session
	o.session = nil
	o.mu.Unlock()
	if s == nil {
		return nil
	}

	s.cancel()
	select {
	case <-s.done:
	case <-ctx.Done():
		// The pass keeps running in the background; the handle is closed once it ends.
		go func() {
			<-s.done
			_ = s.handle.Close()
		}()
		return ctx.Err()
	}
	if err := s.handle.Close(); err != nil {
		o.logger.Warn("Closing build handle failed", logfields.Error(err))
	}
	o.logger.Info("Watch session stopped")
	return nil
}
