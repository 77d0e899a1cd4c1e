package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/assembler"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/logger"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/extractor"
)

// Service runs feature pipeline jobs in the background and tracks their
// lifecycle in Postgres. A buffered channel bounds how many runs execute
// at once.
type Service struct {
	repo     *Repository
	engine   *Engine
	source   extractor.Source
	defaults assembler.Policies
	workers  chan struct{}
}

func NewService(repo *Repository, engine *Engine, source extractor.Source, defaults assembler.Policies, maxWorkers int) *Service {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Service{
		repo:     repo,
		engine:   engine,
		source:   source,
		defaults: defaults,
		workers:  make(chan struct{}, maxWorkers),
	}
}

// Enqueue records a queued run and starts it asynchronously.
func (s *Service) Enqueue(ctx context.Context, req RunRequest) (Run, error) {
	policies := s.resolvePolicies(req)
	if err := policies.Validate(); err != nil {
		return Run{}, err
	}

	policyJSON, err := json.Marshal(policies)
	if err != nil {
		return Run{}, err
	}

	m := &runModel{
		ID:         uuid.New(),
		SourceKind: s.source.Kind(),
		Status:     StatusQueued,
		Policies:   policyJSON,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return Run{}, err
	}

	go s.run(m.ID, policies)

	return modelToDomain(m), nil
}

func (s *Service) resolvePolicies(req RunRequest) assembler.Policies {
	policies := s.defaults
	if req.LabelWindowDays != nil {
		policies.LabelWindowDays = *req.LabelWindowDays
	}
	if req.LabelPolicy != "" {
		policies.LabelPolicy = assembler.LabelPolicy(req.LabelPolicy)
	}
	if req.AgePolicy != "" {
		policies.AgePolicy = assembler.AgePolicy(req.AgePolicy)
	}
	if req.AgeCeiling != nil {
		policies.AgeCeiling = *req.AgeCeiling
	}
	return policies
}

func (s *Service) run(runID uuid.UUID, policies assembler.Policies) {
	s.workers <- struct{}{}
	defer func() { <-s.workers }()

	ctx := context.Background()
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, runID, map[string]interface{}{
		"status":     StatusRunning,
		"started_at": &now,
	}); err != nil {
		logger.Log.WithError(err).Error("Failed to mark pipeline run running")
		return
	}

	result, err := s.engine.Run(ctx, runID, s.source, policies)
	if err != nil {
		s.fail(ctx, runID, result, err)
		return
	}

	reportJSON, merr := json.Marshal(result.Report)
	if merr != nil {
		s.fail(ctx, runID, nil, merr)
		return
	}

	completed := time.Now().UTC()
	updates := map[string]interface{}{
		"status":        StatusCompleted,
		"rows_emitted":  result.Report.RowsEmitted,
		"report":        reportJSON,
		"error_message": "",
		"completed_at":  &completed,
	}
	if err := s.repo.Update(ctx, runID, updates); err != nil {
		logger.Log.WithError(err).Error("Failed to mark pipeline run completed")
	}
}

func (s *Service) fail(ctx context.Context, runID uuid.UUID, result *Result, cause error) {
	logger.Log.WithError(cause).WithField("run_id", runID.String()).Error("Pipeline run failed")

	completed := time.Now().UTC()
	updates := map[string]interface{}{
		"status":        StatusFailed,
		"error_message": cause.Error(),
		"completed_at":  &completed,
	}
	if result != nil && result.Report != nil {
		if reportJSON, err := json.Marshal(result.Report); err == nil {
			updates["report"] = reportJSON
		}
	}
	if err := s.repo.Update(ctx, runID, updates); err != nil {
		logger.Log.WithError(err).Error("Failed to mark pipeline run failed")
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Run, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return Run{}, err
	}
	return modelToDomain(m), nil
}

// Latest returns the most recent completed run, or ErrRunNotFound when no
// run has finished yet.
func (s *Service) Latest(ctx context.Context) (Run, error) {
	m, err := s.repo.LatestCompleted(ctx)
	if err != nil {
		return Run{}, err
	}
	return modelToDomain(m), nil
}

func (s *Service) List(ctx context.Context, limit int) ([]Run, error) {
	ms, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	runs := make([]Run, 0, len(ms))
	for i := range ms {
		runs = append(runs, modelToDomain(&ms[i]))
	}
	return runs, nil
}

// Report returns the stored run report as raw JSON, or ErrRunNotFound.
func (s *Service) Report(ctx context.Context, id uuid.UUID) (json.RawMessage, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(m.Report) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(m.Report), nil
}
