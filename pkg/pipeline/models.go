package pipeline

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/assembler"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// runModel is the persistence shape for a feature pipeline run.
type runModel struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey;column:id"`
	SourceKind   string         `gorm:"column:source_kind"`
	Status       string         `gorm:"column:status;index"`
	Policies     datatypes.JSON `gorm:"column:policies"`
	Report       datatypes.JSON `gorm:"column:report"`
	RowsEmitted  int            `gorm:"column:rows_emitted"`
	ErrorMessage string         `gorm:"column:error_message"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at"`
	StartedAt    *time.Time     `gorm:"column:started_at"`
	CompletedAt  *time.Time     `gorm:"column:completed_at"`
}

func (runModel) TableName() string {
	return "pipeline_runs"
}

// Run is the API view of a pipeline run.
type Run struct {
	ID           uuid.UUID          `json:"id"`
	SourceKind   string             `json:"source_kind"`
	Status       string             `json:"status"`
	Policies     assembler.Policies `json:"policies"`
	RowsEmitted  int                `json:"rows_emitted"`
	ErrorMessage string             `json:"error_message,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	StartedAt    *time.Time         `json:"started_at,omitempty"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
}

// RunRequest carries per-run policy overrides. Zero-valued fields fall
// back to the service defaults.
type RunRequest struct {
	LabelWindowDays *float64 `json:"label_window_days,omitempty"`
	LabelPolicy     string   `json:"label_policy,omitempty"`
	AgePolicy       string   `json:"age_policy,omitempty"`
	AgeCeiling      *float64 `json:"age_ceiling,omitempty"`
}

func modelToDomain(m *runModel) Run {
	run := Run{
		ID:           m.ID,
		SourceKind:   m.SourceKind,
		Status:       m.Status,
		RowsEmitted:  m.RowsEmitted,
		ErrorMessage: m.ErrorMessage,
		CreatedAt:    m.CreatedAt,
		StartedAt:    m.StartedAt,
		CompletedAt:  m.CompletedAt,
	}
	if len(m.Policies) > 0 {
		_ = json.Unmarshal(m.Policies, &run.Policies)
	}
	return run
}
