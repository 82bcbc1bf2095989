package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	repos "github.com/yungbote/studygen/internal/data/repos/jobs"
	"github.com/yungbote/studygen/internal/domain/jobs"
	"github.com/yungbote/studygen/internal/observability"
	"github.com/yungbote/studygen/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/studygen/internal/pkg/errors"
	"github.com/yungbote/studygen/internal/platform/apierr"
	"github.com/yungbote/studygen/internal/platform/ctxutil"
	"github.com/yungbote/studygen/internal/platform/logger"
)

// CreateJobInput is what a client submits to start generation.
type CreateJobInput struct {
	Type       jobs.JobType    `json:"type" validate:"required,oneof=summary-generation quiz-generation flashcard-generation"`
	SourceKind jobs.SourceKind `json:"source_kind" validate:"required,oneof=video_url upload"`
	SourceName string          `json:"source_name" validate:"required,max=512"`
	Options    JobOptions      `json:"options"`
}

// JobOptions are free-form generation options. FailAtStep makes the
// simulator fail the job when it reaches that step.
type JobOptions struct {
	FailAtStep int            `json:"fail_at_step,omitempty" validate:"omitempty,min=1,max=4"`
	Extra      map[string]any `json:"-"`
}

func (o *JobOptions) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*o = JobOptions{Extra: raw}
	if v, ok := raw["fail_at_step"]; ok {
		f, isNum := v.(float64)
		if !isNum || f != float64(int(f)) {
			return fmt.Errorf("fail_at_step must be an integer")
		}
		o.FailAtStep = int(f)
	}
	return nil
}

func (o JobOptions) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(o.Extra)+1)
	for k, v := range o.Extra {
		out[k] = v
	}
	if o.FailAtStep > 0 {
		out["fail_at_step"] = o.FailAtStep
	} else {
		delete(out, "fail_at_step")
	}
	return json.Marshal(out)
}

// ParseJobOptions reads options stored on a job. Malformed options read as empty.
func ParseJobOptions(raw datatypes.JSON) JobOptions {
	var o JobOptions
	if len(raw) == 0 {
		return o
	}
	_ = json.Unmarshal(raw, &o)
	return o
}

type JobService interface {
	Create(dbc dbctx.Context, in CreateJobInput) (*jobs.Job, error)
	Get(dbc dbctx.Context, id string) (*jobs.Job, error)
	Cancel(dbc dbctx.Context, id string) (*jobs.Job, error)
}

type jobService struct {
	log      *logger.Logger
	repo     repos.JobRepo
	notify   JobNotifier
	metrics  *observability.Metrics
	validate *validator.Validate
}

func NewJobService(baseLog *logger.Logger, repo repos.JobRepo, notify JobNotifier, metrics *observability.Metrics) JobService {
	return &jobService{
		log:      baseLog.With("service", "JobService"),
		repo:     repo,
		notify:   notify,
		metrics:  metrics,
		validate: validator.New(),
	}
}

var terminalStatuses = []jobs.JobStatus{jobs.JobStatusCompleted, jobs.JobStatusFailed, jobs.JobStatusCancelled}

func (s *jobService) Create(dbc dbctx.Context, in CreateJobInput) (*jobs.Job, error) {
	in.SourceName = strings.TrimSpace(in.SourceName)
	if err := s.validate.Struct(in); err != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_request", validationError(err))
	}

	opts, err := json.Marshal(in.Options)
	if err != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_options", err)
	}
	now := time.Now().UTC()
	job := &jobs.Job{
		ID:         uuid.NewString(),
		Type:       in.Type,
		Status:     jobs.JobStatusPending,
		SourceName: in.SourceName,
		SourceKind: in.SourceKind,
		Options:    datatypes.JSON(opts),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.repo.Create(dbc, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	fields := []interface{}{"job_id", job.ID, "type", job.Type}
	if td := ctxutil.GetTraceData(ctxutil.Default(dbc.Ctx)); td != nil {
		fields = append(fields, "request_id", td.RequestID)
	}
	s.log.Info("Job created", fields...)
	s.metrics.IncJobCreated(string(job.Type))
	s.notify.JobCreated(ctxutil.Default(dbc.Ctx), job)
	return job, nil
}

func (s *jobService) Get(dbc dbctx.Context, id string) (*jobs.Job, error) {
	job, err := s.repo.GetByID(dbc, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return job, nil
}

// Cancel moves a pending or processing job to cancelled. Finished jobs are a
// conflict; the stored record is left alone.
func (s *jobService) Cancel(dbc dbctx.Context, id string) (*jobs.Job, error) {
	now := time.Now().UTC()
	changed, err := s.repo.UpdateFieldsUnlessStatus(dbc, id, terminalStatuses, map[string]interface{}{
		"status":       jobs.JobStatusCancelled,
		"heartbeat_at": now,
		"updated_at":   now,
	})
	if err != nil {
		return nil, fmt.Errorf("cancel job %s: %w", id, err)
	}
	job, err := s.repo.GetByID(dbc, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !changed {
		return job, apierr.New(http.StatusConflict, "job_finished",
			fmt.Errorf("job %s already %s: %w", id, job.Status, pkgerrors.ErrConflict))
	}

	s.log.Info("Job cancelled", "job_id", job.ID, "step", job.CurrentStep)
	s.metrics.IncJobFinished(string(job.Type), string(job.Status))
	s.notify.JobCancelled(ctxutil.Default(dbc.Ctx), job)
	return job, nil
}

func mapRepoError(err error) error {
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		return apierr.New(http.StatusNotFound, "job_not_found", err)
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		return apierr.New(http.StatusBadRequest, "invalid_job_id", err)
	default:
		return err
	}
}

func validationError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		first := ve[0]
		return fmt.Errorf("validation error: %s - %s: %w", first.Field(), first.Tag(), pkgerrors.ErrInvalidArgument)
	}
	return fmt.Errorf("validation error: %v: %w", err, pkgerrors.ErrInvalidArgument)
}
