package serving

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTaskNotFound    = errors.New("ward task not found")
	ErrTaskAlreadyDone = errors.New("ward task already completed")
	ErrInvalidLevel    = errors.New("invalid risk level")
)

// PredictionLogModel records every served score for ward analytics and
// model comparison after retraining.
type PredictionLogModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;column:id"`
	EncounterID string    `gorm:"column:encounter_id;index"`
	PatientID   string    `gorm:"column:patient_id;index"`
	Score       float64   `gorm:"column:score"`
	RiskLevel   string    `gorm:"column:risk_level"`
	ModelSource string    `gorm:"column:model_source"`
	RequestedBy string    `gorm:"column:requested_by"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (PredictionLogModel) TableName() string {
	return "prediction_logs"
}

const (
	TaskOpen = "open"
	TaskDone = "done"
)

type WardTaskModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey;column:id"`
	EncounterID string     `gorm:"column:encounter_id;index"`
	Description string     `gorm:"column:description"`
	Status      string     `gorm:"column:status;index"`
	CreatedBy   string     `gorm:"column:created_by"`
	CompletedBy string     `gorm:"column:completed_by"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
}

func (WardTaskModel) TableName() string {
	return "ward_tasks"
}

// Factor is one feature's contribution to a linear-model score.
type Factor struct {
	Feature      string  `json:"feature"`
	Label        string  `json:"label"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

type PredictionResponse struct {
	EncounterID string    `json:"encounter_id"`
	PatientID   string    `json:"patient_id"`
	Score       float64   `json:"score"`
	RiskLevel   string    `json:"risk_level"`
	ModelSource string    `json:"model_source"`
	Factors     []Factor  `json:"factors,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

type WardRiskEntry struct {
	EncounterID string    `json:"encounter_id"`
	PatientID   string    `json:"patient_id"`
	AgeYears    float64   `json:"age_years"`
	Score       float64   `json:"score"`
	RiskLevel   string    `json:"risk_level"`
	PredictedAt time.Time `json:"predicted_at"`
}

type WardTask struct {
	ID          uuid.UUID  `json:"id"`
	EncounterID string     `json:"encounter_id"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	CreatedBy   string     `json:"created_by,omitempty"`
	CompletedBy string     `json:"completed_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func taskToDomain(m *WardTaskModel) WardTask {
	return WardTask{
		ID:          m.ID,
		EncounterID: m.EncounterID,
		Description: m.Description,
		Status:      m.Status,
		CreatedBy:   m.CreatedBy,
		CompletedBy: m.CompletedBy,
		CreatedAt:   m.CreatedAt,
		CompletedAt: m.CompletedAt,
	}
}

type RecomputeResult struct {
	Updated     int    `json:"updated"`
	ModelSource string `json:"model_source"`
}
