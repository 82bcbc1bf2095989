package services

import (
	"context"

	"github.com/yungbote/studygen/internal/domain/jobs"
	"github.com/yungbote/studygen/internal/realtime"
)

// JobNotifier turns job transitions into push events on the job's channel.
type JobNotifier interface {
	JobCreated(ctx context.Context, job *jobs.Job)
	JobProgress(ctx context.Context, job *jobs.Job)
	JobDone(ctx context.Context, job *jobs.Job)
	JobFailed(ctx context.Context, job *jobs.Job)
	JobCancelled(ctx context.Context, job *jobs.Job)
}

type jobNotifier struct {
	emit SSEEmitter
}

func NewJobNotifier(emit SSEEmitter) JobNotifier {
	return &jobNotifier{emit: emit}
}

func (n *jobNotifier) JobCreated(ctx context.Context, job *jobs.Job) {
	n.send(ctx, job, realtime.SSEEventJobCreated, map[string]any{
		"job_id": job.ID,
		"job":    job,
	})
}

func (n *jobNotifier) JobProgress(ctx context.Context, job *jobs.Job) {
	n.send(ctx, job, realtime.SSEEventJobProgress, map[string]any{
		"job_id":    job.ID,
		"step":      job.CurrentStep,
		"step_name": job.StepName,
		"job":       job,
	})
}

func (n *jobNotifier) JobDone(ctx context.Context, job *jobs.Job) {
	n.send(ctx, job, realtime.SSEEventJobDone, map[string]any{
		"job_id":      job.ID,
		"result_type": job.ReferenceType,
		"result_id":   job.ReferenceID,
		"job":         job,
	})
}

func (n *jobNotifier) JobFailed(ctx context.Context, job *jobs.Job) {
	n.send(ctx, job, realtime.SSEEventJobFailed, map[string]any{
		"job_id":        job.ID,
		"error_message": job.Error,
		"job":           job,
	})
}

func (n *jobNotifier) JobCancelled(ctx context.Context, job *jobs.Job) {
	n.send(ctx, job, realtime.SSEEventJobCancelled, map[string]any{
		"job_id": job.ID,
		"job":    job,
	})
}

func (n *jobNotifier) send(ctx context.Context, job *jobs.Job, event realtime.SSEEvent, data map[string]any) {
	if n == nil || n.emit == nil || job == nil {
		return
	}
	n.emit.Emit(ctx, realtime.SSEMessage{
		Channel: realtime.JobChannel(job.ID),
		Event:   event,
		Data:    data,
	})
}
