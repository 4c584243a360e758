package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/spabuild/internal/bundler"
	"git.home.luguber.info/inful/spabuild/internal/logfields"
	"git.home.luguber.info/inful/spabuild/internal/metrics"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	MetricsAddr string `name:"metrics-addr" help:"Serve Prometheus metrics on this address (e.g. :9090)"`
	StrictFlags
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	addr := w.MetricsAddr
	if addr == "" {
		addr = cfg.Watch.MetricsAddr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var rec metrics.Recorder = metrics.NoopRecorder{}
	if addr != "" {
		reg := prom.NewRegistry()
		rec = metrics.NewPrometheusRecorder(reg)
		stop := serveMetrics(addr, reg)
		defer stop()
	}

	o, release := newOrchestrator(root, cfg, w.Resolve(cfg), rec)
	defer release()

	res, err := o.TriggerBuild(ctx, bundler.ModeDevelopment, true)
	if err != nil {
		return err
	}
	if !res.Watching {
		return outcomeErr(res)
	}
	return awaitSession(ctx, o)
}

// serveMetrics starts the metrics endpoint and returns its shutdown func.
func serveMetrics(addr string, reg *prom.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", logfields.Error(err))
		}
	}()
	slog.Info("Metrics server listening", "addr", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
