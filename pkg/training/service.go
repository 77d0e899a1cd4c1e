package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/assembler"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/kafka"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/logger"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/models"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/ml/linear"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/observability/metrics"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/storage"
)

// Service trains readmission models off the feature store and tracks
// jobs in Postgres. Completed jobs write a versioned artifact plus the
// stable latest pointer the predictor watches.
type Service struct {
	repo        *Repository
	features    *storage.FeatureStore
	producer    *kafka.Producer
	artifactDir string
	defaults    linear.Options
	workerSem   chan struct{}
}

func NewService(repo *Repository, features *storage.FeatureStore, producer *kafka.Producer, artifactDir string, defaults linear.Options, maxWorkers int) (*Service, error) {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &Service{
		repo:        repo,
		features:    features,
		producer:    producer,
		artifactDir: artifactDir,
		defaults:    defaults,
		workerSem:   make(chan struct{}, maxWorkers),
	}, nil
}

func (s *Service) Create(ctx context.Context, req TrainRequest) (Job, error) {
	opts := s.resolveOptions(req)

	jobID := uuid.New()
	job := &JobModel{
		ID:        jobID,
		ModelName: ModelName,
		Config: datatypes.JSONMap{
			"epochs":        opts.Epochs,
			"learning_rate": opts.LearningRate,
			"l2":            opts.L2,
			"holdout":       opts.Holdout,
			"seed":          opts.Seed,
		},
		TriggeredBy: req.TriggeredBy,
		Status:      StatusQueued,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return Job{}, err
	}

	go s.run(jobID, opts)

	return toDomain(job), nil
}

func (s *Service) resolveOptions(req TrainRequest) linear.Options {
	opts := s.defaults
	if req.Epochs > 0 {
		opts.Epochs = req.Epochs
	}
	if req.LearningRate > 0 {
		opts.LearningRate = req.LearningRate
	}
	if req.L2 > 0 {
		opts.L2 = req.L2
	}
	if req.Holdout > 0 && req.Holdout < 1 {
		opts.Holdout = req.Holdout
	}
	if req.Seed != 0 {
		opts.Seed = req.Seed
	}
	return opts
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Job, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	return toDomain(job), nil
}

func (s *Service) List(ctx context.Context, limit int) ([]Job, error) {
	jobs, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	results := make([]Job, 0, len(jobs))
	for i := range jobs {
		results = append(results, toDomain(&jobs[i]))
	}
	return results, nil
}

// HandleFeaturesReady enqueues a retraining job whenever the pipeline
// announces a fresh feature table. Wired as a Kafka handler when
// TRAINING_AUTO is enabled.
func (s *Service) HandleFeaturesReady(ctx context.Context, event models.Event) error {
	runID, _ := event.Data["run_id"].(string)
	logger.Log.WithField("run_id", runID).Info("Features ready, enqueueing retraining job")

	_, err := s.Create(ctx, TrainRequest{TriggeredBy: "pipeline:" + runID})
	return err
}

func (s *Service) run(jobID uuid.UUID, opts linear.Options) {
	s.workerSem <- struct{}{}
	defer func() { <-s.workerSem }()

	ctx := context.Background()
	started := time.Now().UTC()
	if err := s.repo.Update(ctx, jobID, map[string]interface{}{
		"status":     StatusRunning,
		"started_at": &started,
	}); err != nil {
		logger.Log.WithError(err).Error("Failed to mark training job running")
		return
	}

	rows, err := s.features.All(ctx)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Errorf("read feature store: %w", err))
		return
	}
	if len(rows) == 0 {
		s.failJob(ctx, jobID, errors.New("feature store is empty; run the feature pipeline first"))
		return
	}

	samples, labels, prevalence := datasetFromRows(rows)
	weights, trainMetrics := linear.TrainLogistic(samples, labels, opts)

	artifact := buildArtifact(jobID, weights, trainMetrics, len(rows), prevalence)
	artifactPath, err := s.writeArtifact(artifact)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Errorf("write artifact: %w", err))
		return
	}

	completed := time.Now().UTC()
	err = s.repo.Update(ctx, jobID, map[string]interface{}{
		"status": StatusCompleted,
		"metrics": datatypes.JSONMap{
			"loss":       trainMetrics.Loss,
			"accuracy":   trainMetrics.Accuracy,
			"auc":        trainMetrics.AUC,
			"train_rows": trainMetrics.TrainRows,
			"eval_rows":  trainMetrics.EvalRows,
		},
		"dataset_rows":  len(rows),
		"artifact_path": artifactPath,
		"error_message": "",
		"completed_at":  &completed,
	})
	if err != nil {
		logger.Log.WithError(err).Error("Failed to mark training job completed")
	}

	if s.producer != nil {
		err := s.producer.PublishEvent(ctx, models.EventModelTrained, "training-service", map[string]interface{}{
			"job_id":        jobID.String(),
			"model_name":    ModelName,
			"artifact_path": artifactPath,
		})
		if err != nil {
			logger.Log.WithError(err).Warn("Failed to publish model-trained event")
		}
	}

	metrics.ObserveTrainingJob(false)
	logger.Log.WithFields(map[string]interface{}{
		"job_id":   jobID.String(),
		"rows":     len(rows),
		"auc":      trainMetrics.AUC,
		"accuracy": trainMetrics.Accuracy,
	}).Info("Training job completed")
}

func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, cause error) {
	logger.Log.WithError(cause).WithField("job_id", jobID.String()).Error("Training job failed")
	metrics.ObserveTrainingJob(true)

	completed := time.Now().UTC()
	err := s.repo.Update(ctx, jobID, map[string]interface{}{
		"status":        StatusFailed,
		"error_message": cause.Error(),
		"completed_at":  &completed,
	})
	if err != nil {
		logger.Log.WithError(err).Error("Failed to mark training job failed")
	}
}

func (s *Service) writeArtifact(artifact models.ModelArtifact) (string, error) {
	payload, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.artifactDir, fmt.Sprintf("%s_%s.json", ModelName, artifact.JobID))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", err
	}

	latest := filepath.Join(s.artifactDir, models.LatestModelArtifact)
	if err := os.WriteFile(latest, payload, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func datasetFromRows(rows []assembler.FeatureRow) ([][]float64, []float64, float64) {
	samples := make([][]float64, len(rows))
	labels := make([]float64, len(rows))
	var positives int
	for i := range rows {
		samples[i] = rows[i].Features()
		labels[i] = rows[i].Readmitted30d
		if rows[i].Readmitted30d == 1 {
			positives++
		}
	}
	prevalence := float64(positives) / float64(len(rows))
	return samples, labels, prevalence
}

func buildArtifact(jobID uuid.UUID, weights linear.Weights, trainMetrics linear.Metrics, datasetRows int, prevalence float64) models.ModelArtifact {
	return models.ModelArtifact{
		JobID: jobID.String(),
		Model: models.ModelInfo{
			Type:         ModelType,
			Algorithm:    Algorithm,
			FeatureNames: assembler.FeatureNames,
			Weights: models.ModelWeights{
				Bias:         weights.Bias,
				Coefficients: weights.Coefficients,
			},
		},
		Metrics: map[string]float64{
			"loss":       trainMetrics.Loss,
			"accuracy":   trainMetrics.Accuracy,
			"auc":        trainMetrics.AUC,
			"train_rows": float64(trainMetrics.TrainRows),
			"eval_rows":  float64(trainMetrics.EvalRows),
		},
		DatasetRows:     datasetRows,
		LabelPrevalence: prevalence,
		TrainedAt:       time.Now().UTC(),
	}
}
