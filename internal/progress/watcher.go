package progress

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/studygen/internal/domain/jobs"
	"github.com/yungbote/studygen/internal/navigation"
	"github.com/yungbote/studygen/internal/platform/logger"
	"github.com/yungbote/studygen/internal/realtime"
)

// JobSource fetches and cancels jobs. *jobapi.Client implements it.
type JobSource interface {
	GetJob(ctx context.Context, id string) (*jobs.Job, error)
	CancelJob(ctx context.Context, id string) error
}

// Feed delivers push events for one job until ctx is done, then closes the channel.
type Feed interface {
	Subscribe(ctx context.Context, jobID string) (<-chan realtime.JobEvent, error)
}

type Action int

const (
	ActionCancel Action = iota + 1
	ActionRetry
	ActionDashboard
)

type Options struct {
	PollInterval    time.Duration
	CompletionDelay time.Duration
	CancelTimeout   time.Duration
	// OnChange runs on the watcher goroutine after every visible transition.
	OnChange func(State)
}

type Option func(*Options)

func WithPollInterval(d time.Duration) Option    { return func(o *Options) { o.PollInterval = d } }
func WithCompletionDelay(d time.Duration) Option { return func(o *Options) { o.CompletionDelay = d } }
func WithCancelTimeout(d time.Duration) Option   { return func(o *Options) { o.CancelTimeout = d } }
func WithOnChange(fn func(State)) Option         { return func(o *Options) { o.OnChange = fn } }

// Watcher reconciles push events and polls for one job into a single State and
// navigates away exactly once. All state changes happen on the Run goroutine.
type Watcher struct {
	jobID  string
	source JobSource
	feed   Feed
	nav    navigation.Navigator
	log    *logger.Logger
	opts   Options

	actions    chan Action
	background sync.WaitGroup

	mu       sync.RWMutex
	snapshot State
}

func NewWatcher(jobID string, source JobSource, feed Feed, nav navigation.Navigator, log *logger.Logger, opts ...Option) *Watcher {
	o := Options{
		PollInterval:    DefaultPollInterval,
		CompletionDelay: DefaultCompletionDelay,
		CancelTimeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if log == nil {
		log = logger.Nop()
	}
	if nav == nil {
		nav = &navigation.LogNavigator{Log: log}
	}
	return &Watcher{
		jobID:    jobID,
		source:   source,
		feed:     feed,
		nav:      nav,
		log:      log.With("component", "ProgressWatcher", "job_id", jobID),
		opts:     o,
		actions:  make(chan Action, 4),
		snapshot: State{JobID: jobID},
	}
}

// State returns the latest published state.
func (w *Watcher) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot
}

// Act queues a user action for the running view. It never blocks. Actions queued
// while no Run is active are discarded when the next Run starts.
func (w *Watcher) Act(a Action) {
	select {
	case w.actions <- a:
	default:
		w.log.Debug("Dropping action; queue full", "action", a)
	}
}

// Wait blocks until fire-and-forget requests (cancellation) have finished.
func (w *Watcher) Wait() {
	w.background.Wait()
}

type pollOutcome struct {
	job *jobs.Job
	err error
}

// Run drives the view until it navigates away (nil error) or ctx is done (ctx.Err()).
func (w *Watcher) Run(ctx context.Context) (State, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.drainActions()

	state := State{JobID: w.jobID}
	w.publish(state)

	var events <-chan realtime.JobEvent
	if w.feed != nil {
		ch, err := w.feed.Subscribe(ctx, w.jobID)
		if err != nil {
			w.log.Warn("Push channel unavailable; polling only", "error", err)
		} else {
			events = ch
		}
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()
	tick := ticker.C
	stopPolling := func() {
		if tick != nil {
			ticker.Stop()
			tick = nil
			w.log.Debug("Polling stopped")
		}
	}

	pollResults := make(chan pollOutcome, 1)
	inFlight := false
	startPoll := func() {
		if inFlight || w.source == nil || w.jobID == "" {
			return
		}
		inFlight = true
		go func() {
			job, err := w.source.GetJob(ctx, w.jobID)
			select {
			case pollResults <- pollOutcome{job: job, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	var (
		navTimer *time.Timer
		navFire  <-chan time.Time
		pending  navigation.Route
	)
	defer func() {
		if navTimer != nil {
			navTimer.Stop()
		}
	}()

	// apply funnels every input through State.Apply and reports whether the
	// watcher has navigated away.
	apply := func(in Input) bool {
		next, eff := state.Apply(in)
		state = next
		if eff.Changed {
			w.log.Debug("State changed",
				"step_index", state.StepIndex,
				"step_label", state.StepLabel,
				"completed", state.Completed,
				"error", state.Error,
			)
			w.publish(state)
		}
		if eff.StopPolling {
			stopPolling()
		}
		if nav := eff.Navigate; nav != nil {
			if !nav.Delayed || w.opts.CompletionDelay <= 0 {
				w.navigate(nav.Route)
				return true
			}
			if navTimer == nil {
				pending = nav.Route
				navTimer = time.NewTimer(w.opts.CompletionDelay)
				navFire = navTimer.C
			}
		}
		return false
	}

	// Initial fetch on mount; it learns the job type and resolves jobs that
	// finished before the view opened.
	startPoll()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Status view closed", "error", ctx.Err())
			return state, ctx.Err()

		case <-tick:
			startPoll()

		case out := <-pollResults:
			inFlight = false
			// select picks randomly among ready cases; unmount must win.
			if ctx.Err() != nil {
				return state, ctx.Err()
			}
			if out.err != nil {
				w.log.Debug("Poll failed; retrying on next tick", "error", out.err)
				continue
			}
			if out.job == nil {
				continue
			}
			if apply(PollResult{Job: *out.job}) {
				return state, nil
			}

		case ev, ok := <-events:
			if ctx.Err() != nil {
				return state, ctx.Err()
			}
			if !ok {
				events = nil
				w.log.Debug("Push channel closed; polling only")
				continue
			}
			in, known := FromEvent(ev)
			if !known {
				continue
			}
			if apply(in) {
				return state, nil
			}

		case <-navFire:
			if ctx.Err() != nil {
				return state, ctx.Err()
			}
			w.navigate(pending)
			return state, nil

		case act := <-w.actions:
			switch act {
			case ActionCancel:
				if state.Terminal() {
					w.log.Debug("Ignoring cancel; job already finished")
					continue
				}
				w.cancelJob(ctx)
				w.navigate(navigation.RouteCreate)
				return state, nil
			case ActionRetry:
				w.navigate(navigation.RouteCreate)
				return state, nil
			case ActionDashboard:
				w.navigate(navigation.RouteDashboard)
				return state, nil
			}
		}
	}
}

func (w *Watcher) drainActions() {
	for {
		select {
		case <-w.actions:
		default:
			return
		}
	}
}

// cancelJob requests cancellation without waiting for the result. The request
// outlives the view, bounded by CancelTimeout.
func (w *Watcher) cancelJob(ctx context.Context) {
	if w.source == nil || w.jobID == "" {
		return
	}
	w.background.Add(1)
	go func() {
		defer w.background.Done()
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.opts.CancelTimeout)
		defer cancel()
		if err := w.source.CancelJob(cctx, w.jobID); err != nil {
			w.log.Debug("Cancel request failed; ignoring", "error", err)
		}
	}()
}

func (w *Watcher) navigate(route navigation.Route) {
	w.log.Debug("Leaving status view", "route", route.String())
	w.nav.Navigate(route)
}

func (w *Watcher) publish(s State) {
	w.mu.Lock()
	w.snapshot = s
	w.mu.Unlock()
	if w.opts.OnChange != nil {
		w.opts.OnChange(s)
	}
}
