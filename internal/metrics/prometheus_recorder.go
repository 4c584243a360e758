package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	buildDuration   *prom.HistogramVec
	buildOutcome    *prom.CounterVec
	stagingDuration prom.Histogram
	stagingResults  *prom.CounterVec
	rebuilds        prom.Counter
	coalesced       prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.buildDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "spabuild",
			Name:      "build_duration_seconds",
			Help:      "Duration of bundler build passes",
			Buckets:   prom.DefBuckets,
		}, []string{"backend"})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "spabuild",
			Name:      "build_outcomes_total",
			Help:      "Build pass outcomes by backend and status",
		}, []string{"backend", "outcome"})
		pr.stagingDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "spabuild",
			Name:      "staging_duration_seconds",
			Help:      "Duration of artifact staging",
			Buckets:   prom.DefBuckets,
		})
		pr.stagingResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "spabuild",
			Name:      "staging_results_total",
			Help:      "Staging results by success/failure",
		}, []string{"result"})
		pr.rebuilds = prom.NewCounter(prom.CounterOpts{
			Namespace: "spabuild",
			Name:      "watch_rebuilds_total",
			Help:      "Rebuilds started by the watch coordinator",
		})
		pr.coalesced = prom.NewCounter(prom.CounterOpts{
			Namespace: "spabuild",
			Name:      "watch_coalesced_notifications_total",
			Help:      "Change notifications folded into an already scheduled rebuild",
		})
		reg.MustRegister(pr.buildDuration, pr.buildOutcome, pr.stagingDuration, pr.stagingResults, pr.rebuilds, pr.coalesced)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(backend string, d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.WithLabelValues(backend).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(backend, outcome string) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(backend, outcome).Inc()
}

func (p *PrometheusRecorder) ObserveStagingDuration(d time.Duration) {
	if p == nil || p.stagingDuration == nil {
		return
	}
	p.stagingDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStagingResult(success bool) {
	if p == nil || p.stagingResults == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.stagingResults.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) IncRebuild() {
	if p == nil || p.rebuilds == nil {
		return
	}
	p.rebuilds.Inc()
}

func (p *PrometheusRecorder) IncCoalesced() {
	if p == nil || p.coalesced == nil {
		return
	}
	p.coalesced.Inc()
}
