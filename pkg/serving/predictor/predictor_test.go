package predictor

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/models"
)

func writeArtifact(t *testing.T, dir string, bias float64) {
	t.Helper()
	artifact := models.ModelArtifact{
		JobID: "test-job",
		Model: models.ModelInfo{
			Type:         "logistic_regression",
			Algorithm:    "batch_gradient_descent",
			FeatureNames: []string{"age_years_cleaned", "los_days"},
			Weights: models.ModelWeights{
				Bias:         bias,
				Coefficients: []float64{0.01, 0.1},
			},
		},
	}
	payload, err := json.Marshal(artifact)
	if err != nil {
		t.Fatalf("marshal artifact: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, models.LatestModelArtifact), payload, 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
}

func TestScoreAppliesWeights(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, -2)
	p := NewPredictor(dir)

	score, artifact, err := p.Score(map[string]float64{"age_years_cleaned": 100, "los_days": 5})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if artifact.JobID != "test-job" {
		t.Fatalf("expected artifact metadata, got %+v", artifact)
	}
	// sigmoid(-2 + 0.01*100 + 0.1*5) = sigmoid(-0.5)
	want := 1 / (1 + math.Exp(0.5))
	if math.Abs(score-want) > 1e-12 {
		t.Fatalf("expected %v, got %v", want, score)
	}
}

func TestScoreRejectsMissingFeature(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, 0)
	p := NewPredictor(dir)

	if _, _, err := p.Score(map[string]float64{"age_years_cleaned": 70}); err == nil {
		t.Fatal("expected missing feature error")
	}
}

func TestArtifactMissingWrapsNotExist(t *testing.T) {
	p := NewPredictor(t.TempDir())

	_, err := p.Artifact()
	if err == nil {
		t.Fatal("expected error with no artifact on disk")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped os.ErrNotExist, got %v", err)
	}
}

func TestArtifactReloadedOnChange(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, 0)
	p := NewPredictor(dir)

	first, _, err := p.Score(map[string]float64{"age_years_cleaned": 0, "los_days": 0})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if first != 0.5 {
		t.Fatalf("expected 0.5 with zero bias, got %v", first)
	}

	time.Sleep(10 * time.Millisecond)
	writeArtifact(t, dir, 1)

	second, _, err := p.Score(map[string]float64{"age_years_cleaned": 0, "los_days": 0})
	if err != nil {
		t.Fatalf("score after rewrite: %v", err)
	}
	if second <= 0.7 {
		t.Fatalf("expected reload to pick up new bias, got %v", second)
	}
}

func TestArtifactRejectsMismatchedWeights(t *testing.T) {
	dir := t.TempDir()
	broken := models.ModelArtifact{
		Model: models.ModelInfo{
			FeatureNames: []string{"a", "b"},
			Weights:      models.ModelWeights{Coefficients: []float64{0.1}},
		},
	}
	payload, _ := json.Marshal(broken)
	if err := os.WriteFile(filepath.Join(dir, models.LatestModelArtifact), payload, 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	if _, err := NewPredictor(dir).Artifact(); err == nil {
		t.Fatal("expected mismatched artifact to be rejected")
	}
}
