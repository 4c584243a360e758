// Package metrics provides build and staging observability for spabuild.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so instrumentation needs no nil checks. The Prometheus
// implementation is activated by the watch command when a metrics listen
// address is configured:
//
//	reg := prom.NewRegistry()
//	recorder := metrics.NewPrometheusRecorder(reg)
//	http.Handle("/metrics", metrics.HTTPHandler(reg))
package metrics
