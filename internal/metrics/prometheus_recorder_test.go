package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveBuildDuration("native-es-bundler", 500*time.Millisecond)
	pr.IncBuildOutcome("native-es-bundler", "success")
	pr.IncBuildOutcome("native-es-bundler", "success")
	pr.ObserveStagingDuration(20 * time.Millisecond)
	pr.IncStagingResult(true)
	pr.IncStagingResult(false)
	pr.IncRebuild()
	pr.IncCoalesced()

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 6)

	byName := map[string]*dto.MetricFamily{}
	for _, mf := range mfs {
		byName[mf.GetName()] = mf
	}
	outcomes := byName["spabuild_build_outcomes_total"]
	require.NotNil(t, outcomes)
	require.Len(t, outcomes.GetMetric(), 1)
	require.InDelta(t, 2, outcomes.GetMetric()[0].GetCounter().GetValue(), 0)

	staging := byName["spabuild_staging_results_total"]
	require.NotNil(t, staging)
	require.Len(t, staging.GetMetric(), 2)

	rebuilds := byName["spabuild_watch_rebuilds_total"]
	require.NotNil(t, rebuilds)
	require.InDelta(t, 1, rebuilds.GetMetric()[0].GetCounter().GetValue(), 0)
}

func TestPrometheusRecorder_NilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	require.NotPanics(t, func() {
		pr.IncRebuild()
		pr.IncStagingResult(true)
		pr.ObserveBuildDuration("x", time.Second)
	})
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncCoalesced()

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "spabuild_watch_coalesced_notifications_total")
}
