package training

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	ModelName = "readmit30d_logistic"

	ModelType = "logistic_regression"

	Algorithm = "batch_gradient_descent"
)

type JobModel struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	ModelName    string            `gorm:"column:model_name"`
	Config       datatypes.JSONMap `gorm:"column:config"`
	TriggeredBy  string            `gorm:"column:triggered_by"`
	Status       string            `gorm:"column:status;index"`
	Metrics      datatypes.JSONMap `gorm:"column:metrics"`
	DatasetRows  int               `gorm:"column:dataset_rows"`
	ArtifactPath string            `gorm:"column:artifact_path"`
	ErrorMessage string            `gorm:"column:error_message"`
	CreatedAt    time.Time         `gorm:"column:created_at"`
	UpdatedAt    time.Time         `gorm:"column:updated_at"`
	StartedAt    *time.Time        `gorm:"column:started_at"`
	CompletedAt  *time.Time        `gorm:"column:completed_at"`
}

func (JobModel) TableName() string {
	return "training_jobs"
}

// TrainRequest overrides the configured hyperparameters for one job.
// Zero values keep the service defaults.
type TrainRequest struct {
	Epochs       int     `json:"epochs,omitempty"`
	LearningRate float64 `json:"learning_rate,omitempty"`
	L2           float64 `json:"l2,omitempty"`
	Holdout      float64 `json:"holdout,omitempty"`
	Seed         int64   `json:"seed,omitempty"`
	TriggeredBy  string  `json:"triggered_by,omitempty"`
}

// Job is the API view of a training job.
type Job struct {
	ID           uuid.UUID              `json:"id"`
	ModelName    string                 `json:"model_name"`
	Config       map[string]interface{} `json:"config,omitempty"`
	TriggeredBy  string                 `json:"triggered_by,omitempty"`
	Status       string                 `json:"status"`
	Metrics      map[string]interface{} `json:"metrics,omitempty"`
	DatasetRows  int                    `json:"dataset_rows"`
	ArtifactPath string                 `json:"artifact_path,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
}

func toDomain(job *JobModel) Job {
	result := Job{
		ID:           job.ID,
		ModelName:    job.ModelName,
		TriggeredBy:  job.TriggeredBy,
		Status:       job.Status,
		DatasetRows:  job.DatasetRows,
		ArtifactPath: job.ArtifactPath,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
	}
	if job.Config != nil {
		result.Config = map[string]interface{}(job.Config)
	}
	if job.Metrics != nil {
		result.Metrics = map[string]interface{}(job.Metrics)
	}
	return result
}
