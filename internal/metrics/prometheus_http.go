package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/paperx/internal/logfields"
)

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prom.Registry {
	reg := prom.NewRegistry()
	reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	return reg
}

// WatchState reports the watch loop flags at scrape time.
type WatchState func() (buildInFlight, pendingRebuild bool)

// RegisterWatchGauges exposes the watch loop flags as gauges.
func RegisterWatchGauges(reg prom.Registerer, state WatchState) {
	gauge := func(name, help string, pick func(inFlight, pending bool) bool) prom.Collector {
		return prom.NewGaugeFunc(prom.GaugeOpts{Namespace: "paperx", Subsystem: "watch", Name: name, Help: help}, func() float64 {
			if pick(state()) {
				return 1
			}
			return 0
		})
	}
	reg.MustRegister(
		gauge("build_in_flight", "1 while a build runs", func(f, _ bool) bool { return f }),
		gauge("pending_rebuild", "1 while a follow-up rebuild is queued", func(_, p bool) bool { return p }),
	)
}

// HTTPHandler serves the metrics in reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Serve exposes reg on addr at path in the background. The returned stop
// shuts the server down.
func Serve(addr, path string, reg *prom.Registry) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle(path, HTTPHandler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("Metrics server stopped", logfields.Error(err))
		}
	}()
	slog.Info("Serving metrics", slog.String("addr", addr), logfields.Path(path))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
