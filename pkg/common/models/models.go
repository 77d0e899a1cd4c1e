package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a clinical staff account. Role is one of nurse, doctor, admin.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event is the envelope for every message on the bus.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// Event types published between the services.
const (
	// EventFeaturesReady announces a completed pipeline run. Data carries
	// run_id, rows, and label_prevalence.
	EventFeaturesReady = "pipeline.features.ready"

	// EventModelTrained announces a new model artifact. Data carries
	// job_id, model_name, and artifact_path.
	EventModelTrained = "training.model.trained"
)

type ModelWeights struct {
	Bias         float64   `json:"bias"`
	Coefficients []float64 `json:"coefficients"`
}

type ModelInfo struct {
	Type         string       `json:"type"`
	Algorithm    string       `json:"algorithm"`
	FeatureNames []string     `json:"feature_names"`
	Weights      ModelWeights `json:"weights"`
}

// LatestModelArtifact is the stable filename the predictor watches;
// every completed training job rewrites it.
const LatestModelArtifact = "readmit30d_latest.json"

// ModelArtifact is the on-disk JSON contract between the training and
// predictor services. Coefficients align positionally with FeatureNames.
type ModelArtifact struct {
	JobID           string             `json:"job_id"`
	Model           ModelInfo          `json:"model"`
	Metrics         map[string]float64 `json:"metrics"`
	DatasetRows     int                `json:"dataset_rows"`
	LabelPrevalence float64            `json:"label_prevalence"`
	TrainedAt       time.Time          `json:"trained_at"`
}
