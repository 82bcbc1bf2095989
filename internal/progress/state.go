package progress

import (
	"time"

	"github.com/yungbote/studygen/internal/domain/jobs"
	"github.com/yungbote/studygen/internal/navigation"
	"github.com/yungbote/studygen/internal/pkg/pointers"
	"github.com/yungbote/studygen/internal/realtime"
)

const (
	GenericFailureMessage  = "Processing failed"
	CancelledMessage       = "Processing was cancelled"
	DefaultCompletionDelay = 1500 * time.Millisecond
	DefaultPollInterval    = 5 * time.Second
)

// State is the reconciled view of one job. It is terminal once Completed is set
// or Error is non-empty, and from then on Apply returns it unchanged.
type State struct {
	JobID     string
	JobType   jobs.JobType
	StepIndex int
	StepLabel string
	Completed bool
	Error     string

	// Header metadata from the last job record seen. Display only.
	SourceName string
	SourceKind jobs.SourceKind
}

func (s State) Terminal() bool { return s.Completed || s.Error != "" }

// Input is one update from either channel.
type Input interface{ isInput() }

type StatusUpdate struct {
	JobID    string
	Step     *int
	StepName string
}

type CompletedEvent struct {
	JobID      string
	ResultType string
	ResultID   string
}

type ErrorEvent struct {
	JobID   string
	Message string
}

// PollResult carries a job record fetched from the API.
type PollResult struct {
	Job jobs.Job
}

func (StatusUpdate) isInput()   {}
func (CompletedEvent) isInput() {}
func (ErrorEvent) isInput()     {}
func (PollResult) isInput()     {}

// Navigation is a pending move away from the status view. Delayed navigations
// wait for the completion delay so the finished stepper stays visible briefly.
type Navigation struct {
	Route   navigation.Route
	Delayed bool
}

// Effect is what the driver must do after a transition.
type Effect struct {
	Changed     bool
	StopPolling bool
	Navigate    *Navigation
}

// FromEvent converts a push event into an Input. ok is false for unknown kinds.
func FromEvent(ev realtime.JobEvent) (Input, bool) {
	switch ev.Kind {
	case realtime.JobEventStatus:
		return StatusUpdate{JobID: ev.JobID, Step: ev.Step, StepName: ev.StepName}, true
	case realtime.JobEventCompleted:
		return CompletedEvent{JobID: ev.JobID, ResultType: ev.ResultType, ResultID: ev.ResultID}, true
	case realtime.JobEventError:
		return ErrorEvent{JobID: ev.JobID, Message: ev.ErrorMessage}, true
	default:
		return nil, false
	}
}

// Apply is the only way State changes. Terminal transitions are first-writer-wins;
// step progress is last-writer-wins.
func (s State) Apply(in Input) (State, Effect) {
	if s.Terminal() {
		return s, Effect{}
	}
	switch v := in.(type) {
	case StatusUpdate:
		if !s.matches(v.JobID) {
			return s, Effect{}
		}
		return s.withStep(pointers.IntOr(v.Step, 1), v.StepName)

	case CompletedEvent:
		if !s.matches(v.JobID) {
			return s, Effect{}
		}
		s.Completed = true
		return s, Effect{
			Changed:     true,
			StopPolling: true,
			Navigate: &Navigation{
				Route:   navigation.ForResult(v.ResultType, v.ResultID),
				Delayed: true,
			},
		}

	case ErrorEvent:
		if !s.matches(v.JobID) {
			return s, Effect{}
		}
		s.Error = orGeneric(v.Message)
		return s, Effect{Changed: true, StopPolling: true}

	case PollResult:
		return s.applyJob(v.Job)
	}
	return s, Effect{}
}

func (s State) applyJob(job jobs.Job) (State, Effect) {
	if !s.matches(job.ID) {
		return s, Effect{}
	}
	meta := false
	if job.Type != "" && job.Type != s.JobType {
		s.JobType = job.Type
		meta = true
	}
	if job.SourceName != "" && job.SourceName != s.SourceName {
		s.SourceName = job.SourceName
		meta = true
	}
	if job.SourceKind != "" && job.SourceKind != s.SourceKind {
		s.SourceKind = job.SourceKind
		meta = true
	}

	switch job.Status {
	case jobs.JobStatusCompleted:
		s.Completed = true
		resultType := job.ReferenceType
		if resultType == "" {
			resultType = string(job.Type)
		}
		return s, Effect{
			Changed:     true,
			StopPolling: true,
			Navigate:    &Navigation{Route: navigation.ForResult(resultType, job.ReferenceID)},
		}
	case jobs.JobStatusFailed:
		s.Error = orGeneric(job.Error)
		s.StepIndex = InferFailedStep(s.Error)
		s.StepLabel = ""
		return s, Effect{Changed: true, StopPolling: true}
	case jobs.JobStatusCancelled:
		s.Error = CancelledMessage
		return s, Effect{Changed: true, StopPolling: true}
	}

	if job.CurrentStep > 0 {
		next, eff := s.withStep(job.CurrentStep, job.StepName)
		eff.Changed = eff.Changed || meta
		return next, eff
	}
	return s, Effect{Changed: meta}
}

func (s State) withStep(step int, name string) (State, Effect) {
	idx := step - 1
	if last := len(StepsFor(s.JobType)) - 1; idx > last {
		idx = last
	}
	if idx < 0 {
		idx = 0
	}
	label := s.StepLabel
	if name != "" {
		label = name
	} else if idx != s.StepIndex {
		label = ""
	}
	if idx == s.StepIndex && label == s.StepLabel {
		return s, Effect{}
	}
	s.StepIndex = idx
	s.StepLabel = label
	return s, Effect{Changed: true}
}

// matches accepts events for the tracked job, or any job while none is known yet.
func (s State) matches(jobID string) bool {
	return s.JobID == "" || jobID == s.JobID
}

func orGeneric(msg string) string {
	if msg == "" {
		return GenericFailureMessage
	}
	return msg
}
