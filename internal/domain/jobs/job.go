package jobs

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobType string

const (
	JobTypeSummary   JobType = "summary-generation"
	JobTypeQuiz      JobType = "quiz-generation"
	JobTypeFlashcard JobType = "flashcard-generation"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further progress is meaningful for the status.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

type SourceKind string

const (
	SourceVideoURL SourceKind = "video_url"
	SourceUpload   SourceKind = "upload"
)

// Result types as reported by the generation API on completion.
const (
	ResultSummary   = "summary"
	ResultQuiz      = "quiz"
	ResultFlashcard = "flashcard"
)

// Job is a unit of asynchronous generation work. Clients only read it; the
// generation API is the sole writer.
type Job struct {
	ID            string         `gorm:"type:varchar(64);primaryKey" json:"id"`
	Type          JobType        `gorm:"column:type;not null;index" json:"type"`
	Status        JobStatus      `gorm:"column:status;not null;index" json:"status"`
	CurrentStep   int            `gorm:"column:current_step;not null;default:0" json:"current_step"`
	StepName      string         `gorm:"column:step_name" json:"step_name,omitempty"`
	ReferenceType string         `gorm:"column:reference_type" json:"reference_type,omitempty"`
	ReferenceID   string         `gorm:"column:reference_id" json:"reference_id,omitempty"`
	Error         string         `gorm:"column:error;type:text" json:"error,omitempty"`
	SourceName    string         `gorm:"column:source_name" json:"source_name,omitempty"`
	SourceKind    SourceKind     `gorm:"column:source_kind" json:"source_kind,omitempty"`
	Options       datatypes.JSON `gorm:"column:options" json:"options,omitempty"`
	HeartbeatAt   *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;index" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Job) TableName() string { return "generation_job" }

// ResultTypeFor maps a job type to the result type it produces.
func ResultTypeFor(t JobType) string {
	switch t {
	case JobTypeQuiz:
		return ResultQuiz
	case JobTypeFlashcard:
		return ResultFlashcard
	default:
		return ResultSummary
	}
}
