package jobs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/studygen/internal/domain/jobs"
	"github.com/yungbote/studygen/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/studygen/internal/pkg/errors"
	"github.com/yungbote/studygen/internal/platform/logger"
)

type JobRepo interface {
	Create(dbc dbctx.Context, job *types.Job) (*types.Job, error)
	GetByID(dbc dbctx.Context, id string) (*types.Job, error)
	ListActive(dbc dbctx.Context, limit int) ([]*types.Job, error)
	UpdateFields(dbc dbctx.Context, id string, updates map[string]interface{}) error
	// UpdateFieldsUnlessStatus applies updates only while the job's status is
	// not one of disallowed. It reports whether a row changed.
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id string, disallowed []types.JobStatus, updates map[string]interface{}) (bool, error)
}

type jobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return &jobRepo{
		db:  db,
		log: baseLog.With("repo", "JobRepo"),
	}
}

func (r *jobRepo) Create(dbc dbctx.Context, job *types.Job) (*types.Job, error) {
	if job == nil {
		return nil, fmt.Errorf("create job: %w", pkgerrors.ErrInvalidArgument)
	}
	if err := dbc.DB(r.db).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepo) GetByID(dbc dbctx.Context, id string) (*types.Job, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("job id: %w", pkgerrors.ErrInvalidArgument)
	}
	var job types.Job
	err := dbc.DB(r.db).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("job %s: %w", id, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListActive returns pending and processing jobs, oldest first.
func (r *jobRepo) ListActive(dbc dbctx.Context, limit int) ([]*types.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*types.Job
	err := dbc.DB(r.db).
		Where("status IN ?", []types.JobStatus{types.JobStatusPending, types.JobStatusProcessing}).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRepo) UpdateFields(dbc dbctx.Context, id string, updates map[string]interface{}) error {
	if id == "" {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.DB(r.db).
		Model(&types.Job{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *jobRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id string, disallowed []types.JobStatus, updates map[string]interface{}) (bool, error) {
	if id == "" {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}

	q := dbc.DB(r.db).
		Model(&types.Job{}).
		Where("id = ?", id)
	if len(disallowed) == 1 {
		q = q.Where("status <> ?", disallowed[0])
	} else if len(disallowed) > 1 {
		q = q.Where("status NOT IN ?", disallowed)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
