// Package metrics provides the observability hooks for paperx builds.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	pipeline := build.NewPipeline(mgr, runner).WithRecorder(metrics.NoopRecorder{})
//
// In watch mode a PrometheusRecorder is registered on a private registry and
// served by HTTPHandler when metrics.addr is configured.
package metrics
