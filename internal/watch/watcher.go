package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/paperx/internal/build"
	perrors "git.home.luguber.info/inful/paperx/internal/errors"
	"git.home.luguber.info/inful/paperx/internal/logfields"
	"git.home.luguber.info/inful/paperx/internal/metrics"
)

// Event is a single filesystem change.
type Event struct {
	Path string
	Op   string
}

// Builder runs one build. *build.Pipeline satisfies it.
type Builder interface {
	Run(ctx context.Context, req build.Request) (build.Result, error)
}

// Reporter is called on the control loop after every rebuild. err is set
// when the build aborted without a Result.
type Reporter func(res build.Result, err error)

// Session is the state of one watch session. Only the control loop writes it.
type Session struct {
	DebounceWindow time.Duration
	PendingRebuild bool
	BuildInFlight  bool
	LastResult     *build.Result
	Builds         int
	Events         int
}

type buildOutcome struct {
	res build.Result
	err error
}

// Watcher serializes rebuilds triggered by events.
type Watcher struct {
	builder  Builder
	request  build.Request
	events   <-chan Event
	recorder metrics.Recorder
	report   Reporter
	initial  bool

	mu      sync.Mutex
	session Session
}

// New returns a watcher. request is the template for every rebuild; each
// rebuild runs a fresh copy with a new ID.
func New(builder Builder, request build.Request, events <-chan Event, debounce time.Duration) *Watcher {
	return &Watcher{
		builder:  builder,
		request:  request,
		events:   events,
		recorder: metrics.NoopRecorder{},
		report:   func(build.Result, error) {},
		session:  Session{DebounceWindow: debounce},
	}
}

// WithRecorder sets the metrics recorder.
func (w *Watcher) WithRecorder(r metrics.Recorder) *Watcher {
	if r != nil {
		w.recorder = r
	}
	return w
}

// WithReporter sets the per-build report callback.
func (w *Watcher) WithReporter(r Reporter) *Watcher {
	if r != nil {
		w.report = r
	}
	return w
}

// WithInitialBuild makes Loop start one build before waiting for events.
func (w *Watcher) WithInitialBuild() *Watcher {
	w.initial = true
	return w
}

// Session returns a snapshot of the session state.
func (w *Watcher) Session() Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

func (w *Watcher) update(fn func(s *Session)) {
	w.mu.Lock()
	fn(&w.session)
	w.mu.Unlock()
}

// Loop runs until ctx is cancelled or the event queue is closed. An
// in-flight build is always allowed to finish before Loop returns.
func (w *Watcher) Loop(ctx context.Context) error {
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timerC = nil
	}
	done := make(chan buildOutcome, 1)
	events := w.events

	slog.Info("Watching for changes", slog.Duration("debounce", w.session.DebounceWindow))
	if w.initial {
		w.start(ctx, done, metrics.TriggerInitial)
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			w.drain(done)
			slog.Info("Watch stopped")
			return nil

		case ev, ok := <-events:
			if !ok {
				stopTimer()
				w.drain(done)
				return nil
			}
			w.update(func(s *Session) { s.Events++ })
			if w.Session().BuildInFlight {
				w.update(func(s *Session) { s.PendingRebuild = true })
				w.recorder.IncWatchEvent(true)
				slog.Debug("Change during build; rebuild pending", logfields.Path(ev.Path))
				continue
			}
			w.recorder.IncWatchEvent(false)
			slog.Debug("Change detected", logfields.Path(ev.Path), logfields.Op(ev.Op))
			if timer == nil {
				timer = time.NewTimer(w.session.DebounceWindow)
			} else {
				timer.Stop()
				timer.Reset(w.session.DebounceWindow)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			if w.Session().BuildInFlight {
				w.update(func(s *Session) { s.PendingRebuild = true })
				continue
			}
			w.start(ctx, done, metrics.TriggerDebounce)

		case out := <-done:
			w.finish(out)
			if w.Session().PendingRebuild {
				w.update(func(s *Session) { s.PendingRebuild = false })
				w.start(ctx, done, metrics.TriggerPending)
			}
		}
	}
}

// start launches one build on its own goroutine. The build is detached from
// ctx cancellation so an interrupt never kills a running engine.
func (w *Watcher) start(ctx context.Context, done chan<- buildOutcome, trigger metrics.TriggerLabel) {
	req := w.request.Next()
	w.update(func(s *Session) { s.BuildInFlight = true })
	w.recorder.IncRebuildTrigger(trigger)
	slog.Info("Rebuilding", logfields.BuildID(req.ID()), slog.String("trigger", string(trigger)))

	buildCtx := context.WithoutCancel(ctx)
	go func() {
		res, err := w.builder.Run(buildCtx, req)
		done <- buildOutcome{res: res, err: err}
	}()
}

func (w *Watcher) finish(out buildOutcome) {
	w.update(func(s *Session) {
		s.BuildInFlight = false
		s.Builds++
		if out.err == nil {
			res := out.res
			s.LastResult = &res
		}
	})
	if out.err != nil {
		// watch mode survives aborted builds; the next change retries
		slog.Error("Rebuild aborted", logfields.Error(out.err),
			logfields.Kind(string(perrors.GetCategory(out.err))))
	}
	w.report(out.res, out.err)
}

func (w *Watcher) drain(done <-chan buildOutcome) {
	if !w.Session().BuildInFlight {
		return
	}
	slog.Info("Waiting for in-flight build to finish")
	w.finish(<-done)
}
