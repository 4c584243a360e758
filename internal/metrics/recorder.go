package metrics

import "time"

// Recorder defines observability hooks for build passes, staging and watch
// sessions. Outcome labels are the diagnostics status strings plus "engine_failure".
type Recorder interface {
	ObserveBuildDuration(backend string, d time.Duration)
	IncBuildOutcome(backend, outcome string)
	ObserveStagingDuration(d time.Duration)
	IncStagingResult(success bool)
	IncRebuild()
	IncCoalesced()
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(string, time.Duration) {}
func (NoopRecorder) IncBuildOutcome(string, string)             {}
func (NoopRecorder) ObserveStagingDuration(time.Duration)       {}
func (NoopRecorder) IncStagingResult(bool)                      {}
func (NoopRecorder) IncRebuild()                                {}
func (NoopRecorder) IncCoalesced()                              {}
