package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/studygen/internal/data/repos/testutil"
	types "github.com/yungbote/studygen/internal/domain/jobs"
	"github.com/yungbote/studygen/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/studygen/internal/pkg/errors"
)

func TestJobRepo(t *testing.T) {
	db := testutil.DB(t)
	repo := NewJobRepo(db, testutil.Logger(t))
	dbc := dbctx.Of(context.Background())

	now := time.Now().UTC()
	pending := &types.Job{
		ID:         "job-pending",
		Type:       types.JobTypeSummary,
		Status:     types.JobStatusPending,
		SourceName: "lecture.mp4",
		SourceKind: types.SourceUpload,
		Options:    datatypes.JSON([]byte(`{"fail_at_step":2}`)),
		CreatedAt:  now.Add(-2 * time.Minute),
		UpdatedAt:  now.Add(-2 * time.Minute),
	}
	processing := &types.Job{
		ID:          "job-processing",
		Type:        types.JobTypeQuiz,
		Status:      types.JobStatusProcessing,
		CurrentStep: 2,
		CreatedAt:   now.Add(-time.Minute),
		UpdatedAt:   now.Add(-time.Minute),
	}
	done := &types.Job{
		ID:          "job-done",
		Type:        types.JobTypeFlashcard,
		Status:      types.JobStatusCompleted,
		ReferenceID: "deck-1",
		CreatedAt:   now.Add(-3 * time.Minute),
		UpdatedAt:   now.Add(-3 * time.Minute),
	}
	for _, j := range []*types.Job{pending, processing, done} {
		if _, err := repo.Create(dbc, j); err != nil {
			t.Fatalf("Create %s: %v", j.ID, err)
		}
	}

	got, err := repo.GetByID(dbc, "job-pending")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.SourceName != "lecture.mp4" || string(got.Options) != `{"fail_at_step":2}` {
		t.Fatalf("GetByID: %+v", got)
	}

	if _, err := repo.GetByID(dbc, "nope"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("GetByID missing: want ErrNotFound, got %v", err)
	}

	active, err := repo.ListActive(dbc, 10)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 2 || active[0].ID != "job-pending" || active[1].ID != "job-processing" {
		t.Fatalf("ListActive: %+v", active)
	}

	if err := repo.UpdateFields(dbc, "job-processing", map[string]interface{}{"current_step": 3, "step_name": "Generating questions"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, _ = repo.GetByID(dbc, "job-processing")
	if got.CurrentStep != 3 || got.StepName != "Generating questions" {
		t.Fatalf("UpdateFields not applied: %+v", got)
	}

	terminal := []types.JobStatus{types.JobStatusCompleted, types.JobStatusFailed, types.JobStatusCancelled}
	changed, err := repo.UpdateFieldsUnlessStatus(dbc, "job-done", terminal, map[string]interface{}{"status": types.JobStatusCancelled})
	if err != nil || changed {
		t.Fatalf("terminal job must not change: changed=%v err=%v", changed, err)
	}
	changed, err = repo.UpdateFieldsUnlessStatus(dbc, "job-pending", terminal, map[string]interface{}{"status": types.JobStatusCancelled})
	if err != nil || !changed {
		t.Fatalf("pending job should cancel: changed=%v err=%v", changed, err)
	}
	got, _ = repo.GetByID(dbc, "job-pending")
	if got.Status != types.JobStatusCancelled {
		t.Fatalf("status: %s", got.Status)
	}
}
