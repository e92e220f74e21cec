package metrics

import (
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	buildDuration  *prom.HistogramVec
	passes         *prom.HistogramVec
	buildOutcome   *prom.CounterVec
	bibliography   *prom.CounterVec
	watchEvents    *prom.CounterVec
	rebuildTrigger *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		buildDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "paperx",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}, []string{"engine"}),
		passes: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "paperx",
			Name:      "build_passes",
			Help:      "Engine passes run per build",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		}, []string{"engine"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "paperx",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"engine", "outcome"}),
		bibliography: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "paperx",
			Name:      "bibliography_runs_total",
			Help:      "Bibliography tool invocations",
		}, []string{"tool"}),
		watchEvents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "paperx",
			Name:      "watch_events_total",
			Help:      "Filesystem events received by the watch loop",
		}, []string{"coalesced"}),
		rebuildTrigger: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "paperx",
			Name:      "watch_rebuilds_total",
			Help:      "Rebuilds started by the watch loop by trigger",
		}, []string{"trigger"}),
	}
	reg.MustRegister(pr.buildDuration, pr.passes, pr.buildOutcome, pr.bibliography, pr.watchEvents, pr.rebuildTrigger)
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(engine string, d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.WithLabelValues(engine).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObservePasses(engine string, n int) {
	if p == nil {
		return
	}
	p.passes.WithLabelValues(engine).Observe(float64(n))
}

func (p *PrometheusRecorder) IncBuildOutcome(engine string, outcome OutcomeLabel) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(engine, string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncBibliographyRun(tool string) {
	if p == nil {
		return
	}
	p.bibliography.WithLabelValues(tool).Inc()
}

func (p *PrometheusRecorder) IncWatchEvent(coalesced bool) {
	if p == nil {
		return
	}
	p.watchEvents.WithLabelValues(strconv.FormatBool(coalesced)).Inc()
}

func (p *PrometheusRecorder) IncRebuildTrigger(trigger TriggerLabel) {
	if p == nil {
		return
	}
	p.rebuildTrigger.WithLabelValues(string(trigger)).Inc()
}
