package metrics

import "time"

// OutcomeLabel enumerates build outcome categories for counters.
type OutcomeLabel string

const (
	OutcomeSuccess OutcomeLabel = "success"
	OutcomeFailed  OutcomeLabel = "failed"
	OutcomeFatal   OutcomeLabel = "fatal"
)

// TriggerLabel enumerates why the watch loop started a rebuild.
type TriggerLabel string

const (
	TriggerInitial  TriggerLabel = "initial"
	TriggerDebounce TriggerLabel = "debounce"
	TriggerPending  TriggerLabel = "pending"
)

// Recorder defines observability hooks for builds and the watch loop.
type Recorder interface {
	ObserveBuildDuration(engine string, d time.Duration)
	ObservePasses(engine string, n int)
	IncBuildOutcome(engine string, outcome OutcomeLabel)
	IncBibliographyRun(tool string)
	IncWatchEvent(coalesced bool)
	IncRebuildTrigger(trigger TriggerLabel)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(string, time.Duration) {}
func (NoopRecorder) ObservePasses(string, int)                  {}
func (NoopRecorder) IncBuildOutcome(string, OutcomeLabel)       {}
func (NoopRecorder) IncBibliographyRun(string)                  {}
func (NoopRecorder) IncWatchEvent(bool)                         {}
func (NoopRecorder) IncRebuildTrigger(TriggerLabel)             {}
