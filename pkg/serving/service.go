package serving

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/assembler"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/logger"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/identity"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/observability/metrics"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/serving/predictor"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/storage"
)

const fallbackSource = "fallback_rules"

// Auditor records who looked at or acted on ward data. identity's
// Recorder satisfies it; a nil auditor disables recording.
type Auditor interface {
	Record(ctx context.Context, actor, action string, details map[string]interface{})
}

// Service answers readmission-risk queries for the ward. Scores come
// from the latest trained artifact, or from the rule-based heuristic
// until the first training job completes.
type Service struct {
	features *storage.FeatureStore
	pred     *predictor.Predictor
	repo     *Repository
	audit    Auditor
}

func NewService(features *storage.FeatureStore, pred *predictor.Predictor, repo *Repository, audit Auditor) *Service {
	return &Service{
		features: features,
		pred:     pred,
		repo:     repo,
		audit:    audit,
	}
}

// PredictEncounter scores one encounter. Returns
// storage.ErrFeatureRowNotFound when the encounter has no feature row.
func (s *Service) PredictEncounter(ctx context.Context, encounterID, actor string) (PredictionResponse, error) {
	row, err := s.features.Fetch(ctx, encounterID)
	if err != nil {
		return PredictionResponse{}, err
	}

	resp, err := s.score(row)
	if err != nil {
		return PredictionResponse{}, err
	}
	resp.GeneratedAt = time.Now().UTC()

	s.logPrediction(ctx, resp, actor)
	return resp, nil
}

func (s *Service) score(row assembler.FeatureRow) (PredictionResponse, error) {
	features := row.FeatureMap()

	score, artifact, err := s.pred.Score(features)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return PredictionResponse{}, err
		}
		// No trained model yet. Fall back to the clinical heuristic.
		fallback := ruleScore(features)
		metrics.ObservePrediction(true)
		return PredictionResponse{
			EncounterID: row.EncounterID,
			PatientID:   row.PatientID,
			Score:       fallback,
			RiskLevel:   fallbackRiskLevel(fallback),
			ModelSource: fallbackSource,
		}, nil
	}

	metrics.ObservePrediction(false)
	return PredictionResponse{
		EncounterID: row.EncounterID,
		PatientID:   row.PatientID,
		Score:       score,
		RiskLevel:   modelRiskLevel(score),
		ModelSource: "model:" + artifact.JobID,
		Factors:     topFactors(artifact.Model, features, 5),
	}, nil
}

func (s *Service) logPrediction(ctx context.Context, resp PredictionResponse, actor string) {
	entry := &PredictionLogModel{
		ID:          uuid.New(),
		EncounterID: resp.EncounterID,
		PatientID:   resp.PatientID,
		Score:       resp.Score,
		RiskLevel:   resp.RiskLevel,
		ModelSource: resp.ModelSource,
		RequestedBy: actor,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.RecordPrediction(ctx, entry); err != nil {
		logger.Log.WithError(err).Warn("Failed to record prediction")
	}
}

// WardRisk lists the latest prediction per encounter at or above
// minLevel, highest scores first.
func (s *Service) WardRisk(ctx context.Context, minLevel, actor string) ([]WardRiskEntry, error) {
	if minLevel == "" {
		minLevel = LevelLow
	}
	minRank := levelRank(minLevel)
	if minRank < 0 {
		return nil, ErrInvalidLevel
	}

	latest, err := s.repo.LatestPerEncounter(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.features.All(ctx)
	if err != nil {
		return nil, err
	}
	ages := make(map[string]float64, len(rows))
	for _, row := range rows {
		ages[row.EncounterID] = row.AgeYears
	}

	entries := make([]WardRiskEntry, 0, len(latest))
	for _, log := range latest {
		if levelRank(log.RiskLevel) < minRank {
			continue
		}
		entries = append(entries, WardRiskEntry{
			EncounterID: log.EncounterID,
			PatientID:   log.PatientID,
			AgeYears:    ages[log.EncounterID],
			Score:       log.Score,
			RiskLevel:   log.RiskLevel,
			PredictedAt: log.CreatedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })

	if s.audit != nil {
		s.audit.Record(ctx, actor, identity.ActionViewWard, map[string]interface{}{
			"min_level": minLevel,
			"entries":   len(entries),
		})
	}
	return entries, nil
}

// CreateTask opens a follow-up task against an encounter that has a
// feature row.
func (s *Service) CreateTask(ctx context.Context, encounterID, description, actor string) (WardTask, error) {
	if description == "" {
		return WardTask{}, fmt.Errorf("task description required")
	}
	if _, err := s.features.Get(ctx, encounterID); err != nil {
		return WardTask{}, err
	}

	task := &WardTaskModel{
		ID:          uuid.New(),
		EncounterID: encounterID,
		Description: description,
		Status:      TaskOpen,
		CreatedBy:   actor,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return WardTask{}, err
	}
	return taskToDomain(task), nil
}

func (s *Service) ListTasks(ctx context.Context, status string) ([]WardTask, error) {
	records, err := s.repo.ListTasks(ctx, status)
	if err != nil {
		return nil, err
	}
	tasks := make([]WardTask, 0, len(records))
	for i := range records {
		tasks = append(tasks, taskToDomain(&records[i]))
	}
	return tasks, nil
}

// CompleteTask transitions an open task to done. Completing a done
// task is ErrTaskAlreadyDone.
func (s *Service) CompleteTask(ctx context.Context, id uuid.UUID, actor string) (WardTask, error) {
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return WardTask{}, err
	}
	if task.Status == TaskDone {
		return WardTask{}, ErrTaskAlreadyDone
	}

	now := time.Now().UTC()
	err = s.repo.UpdateTask(ctx, id, map[string]interface{}{
		"status":       TaskDone,
		"completed_by": actor,
		"completed_at": &now,
	})
	if err != nil {
		return WardTask{}, err
	}

	task.Status = TaskDone
	task.CompletedBy = actor
	task.CompletedAt = &now

	if s.audit != nil {
		s.audit.Record(ctx, actor, identity.ActionCompleteTask, map[string]interface{}{
			"task_id":      id.String(),
			"encounter_id": task.EncounterID,
		})
	}
	return taskToDomain(task), nil
}

// RecomputeBatch re-scores every stored feature row, refreshing the
// prediction log after a pipeline run or retraining.
func (s *Service) RecomputeBatch(ctx context.Context, actor string) (RecomputeResult, error) {
	rows, err := s.features.All(ctx)
	if err != nil {
		return RecomputeResult{}, err
	}

	result := RecomputeResult{ModelSource: fallbackSource}
	if artifact, err := s.pred.Artifact(); err == nil {
		result.ModelSource = "model:" + artifact.JobID
	} else if !errors.Is(err, os.ErrNotExist) {
		return RecomputeResult{}, err
	}

	for _, row := range rows {
		resp, err := s.score(row)
		if err != nil {
			return result, fmt.Errorf("score encounter %s: %w", row.EncounterID, err)
		}
		resp.GeneratedAt = time.Now().UTC()
		s.logPrediction(ctx, resp, actor)
		result.Updated++
	}

	if s.audit != nil {
		s.audit.Record(ctx, actor, identity.ActionRecomputeBatch, map[string]interface{}{
			"updated":      result.Updated,
			"model_source": result.ModelSource,
		})
	}

	logger.Log.WithFields(map[string]interface{}{
		"updated": result.Updated,
		"source":  result.ModelSource,
		"actor":   actor,
	}).Info("Batch risk recompute finished")
	return result, nil
}
