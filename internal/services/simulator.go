package services

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	repos "github.com/yungbote/studygen/internal/data/repos/jobs"
	"github.com/yungbote/studygen/internal/domain/jobs"
	"github.com/yungbote/studygen/internal/observability"
	"github.com/yungbote/studygen/internal/pkg/dbctx"
	"github.com/yungbote/studygen/internal/platform/logger"
	"github.com/yungbote/studygen/internal/progress"
)

const (
	DefaultSimStepDelay = 2 * time.Second
	simBatchSize        = 50
)

// Simulator stands in for the generation pipeline: each tick moves every
// active job one step forward, then completes or fails it.
type Simulator struct {
	log     *logger.Logger
	repo    repos.JobRepo
	notify  JobNotifier
	metrics *observability.Metrics
	delay   time.Duration
}

func NewSimulator(baseLog *logger.Logger, repo repos.JobRepo, notify JobNotifier, metrics *observability.Metrics, stepDelay time.Duration) *Simulator {
	if stepDelay <= 0 {
		stepDelay = DefaultSimStepDelay
	}
	return &Simulator{
		log:     baseLog.With("component", "JobSimulator"),
		repo:    repo,
		notify:  notify,
		metrics: metrics,
		delay:   stepDelay,
	}
}

// Run ticks until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	s.log.Info("Starting job simulator", "step_delay", s.delay.String())
	ticker := time.NewTicker(s.delay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Job simulator stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick advances every active job by one transition.
func (s *Simulator) Tick(ctx context.Context) {
	dbc := dbctx.Of(ctx)
	active, err := s.repo.ListActive(dbc, simBatchSize)
	if err != nil {
		s.log.Warn("ListActive failed", "error", err)
		return
	}
	for _, job := range active {
		if ctx.Err() != nil {
			return
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("Simulator panic", "job_id", job.ID, "panic", r)
				}
			}()
			s.advance(dbc, job)
		}()
	}
}

func (s *Simulator) advance(dbc dbctx.Context, job *jobs.Job) {
	steps := progress.StepsFor(job.Type)
	opts := ParseJobOptions(job.Options)
	now := time.Now().UTC()

	switch {
	case job.Status == jobs.JobStatusProcessing && opts.FailAtStep > 0 && job.CurrentStep == opts.FailAtStep:
		s.fail(dbc, job, failureMessage(job.Type, job.CurrentStep), now)
	case job.CurrentStep >= len(steps):
		s.complete(dbc, job, now)
	default:
		next := job.CurrentStep + 1
		updates := map[string]interface{}{
			"status":       jobs.JobStatusProcessing,
			"current_step": next,
			"step_name":    steps[next-1].Title,
			"heartbeat_at": now,
		}
		if !s.apply(dbc, job, updates) {
			return
		}
		job.Status = jobs.JobStatusProcessing
		job.CurrentStep = next
		job.StepName = steps[next-1].Title
		job.HeartbeatAt = &now
		s.log.Debug("Job advanced", "job_id", job.ID, "step", next, "step_name", job.StepName)
		s.metrics.IncJobStep(string(job.Type), strconv.Itoa(next))
		s.notify.JobProgress(dbc.Ctx, job)
	}
}

func (s *Simulator) complete(dbc dbctx.Context, job *jobs.Job, now time.Time) {
	refType := jobs.ResultTypeFor(job.Type)
	refID := uuid.NewString()
	if !s.apply(dbc, job, map[string]interface{}{
		"status":         jobs.JobStatusCompleted,
		"reference_type": refType,
		"reference_id":   refID,
		"heartbeat_at":   now,
	}) {
		return
	}
	job.Status = jobs.JobStatusCompleted
	job.ReferenceType = refType
	job.ReferenceID = refID
	s.log.Info("Job completed", "job_id", job.ID, "reference_type", refType, "reference_id", refID)
	s.metrics.IncJobFinished(string(job.Type), string(job.Status))
	s.notify.JobDone(dbc.Ctx, job)
}

func (s *Simulator) fail(dbc dbctx.Context, job *jobs.Job, msg string, now time.Time) {
	if !s.apply(dbc, job, map[string]interface{}{
		"status":       jobs.JobStatusFailed,
		"error":        msg,
		"heartbeat_at": now,
	}) {
		return
	}
	job.Status = jobs.JobStatusFailed
	job.Error = msg
	s.log.Info("Job failed", "job_id", job.ID, "step", job.CurrentStep, "error", msg)
	s.metrics.IncJobFinished(string(job.Type), string(job.Status))
	s.notify.JobFailed(dbc.Ctx, job)
}

// apply writes updates unless the job finished meanwhile (a cancel raced the tick).
func (s *Simulator) apply(dbc dbctx.Context, job *jobs.Job, updates map[string]interface{}) bool {
	changed, err := s.repo.UpdateFieldsUnlessStatus(dbc, job.ID, terminalStatuses, updates)
	if err != nil {
		s.log.Warn("Job update failed", "job_id", job.ID, "error", err)
		return false
	}
	if !changed {
		s.log.Debug("Job finished before update; skipping", "job_id", job.ID)
	}
	return changed
}

func failureMessage(t jobs.JobType, step int) string {
	switch step {
	case 1:
		return "Content analysis failed"
	case 2:
		return "Transcript extraction failed"
	case 3:
		switch t {
		case jobs.JobTypeQuiz:
			return "Question generation failed"
		case jobs.JobTypeFlashcard:
			return "Flashcard generation failed"
		default:
			return "Summary generation failed"
		}
	default:
		return "Saving results failed"
	}
}
