package stage

import (
	"context"
	"log/slog"
	"time"

	ferrors "git.home.luguber.info/inful/spabuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spabuild/internal/logfields"
	"git.home.luguber.info/inful/spabuild/internal/metrics"
)

// Stager executes staging plans.
type Stager struct {
	recorder metrics.Recorder
}

// NewStager creates a stager with metrics disabled.
func NewStager() *Stager {
	return &Stager{recorder: metrics.NoopRecorder{}}
}

// WithRecorder injects a metrics recorder.
func (s *Stager) WithRecorder(r metrics.Recorder) *Stager {
	if r != nil {
		s.recorder = r
	}
	return s
}

// Stage runs every triple in order and stops at the first failure, which is
// returned as a StagingFailure. Staging is not retried.
func (s *Stager) Stage(ctx context.Context, plan Plan) error {
	start := time.Now()
	for _, t := range plan.Triples {
		if err := ctx.Err(); err != nil {
			s.recorder.IncStagingResult(false)
			return ferrors.StagingError("staging canceled").WithCause(err).Build()
		}
		n, err := CopyTree(t.Source, t.Destination, t.Exclude)
		if err != nil {
			s.recorder.IncStagingResult(false)
			return ferrors.StagingError("copy build output").
				WithCause(err).
				WithContext("source", t.Source).
				WithContext("destination", t.Destination).
				WithContext("reason", t.Reason).
				Build()
		}
		slog.Info("Staged build output",
			logfields.Source(t.Source),
			logfields.Destination(t.Destination),
			logfields.Count(n),
			slog.String("reason", t.Reason))
	}
	s.recorder.ObserveStagingDuration(time.Since(start))
	s.recorder.IncStagingResult(true)
	return nil
}
