package training

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/assembler"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/models"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/ml/linear"
)

func TestDatasetFromRows(t *testing.T) {
	rows := []assembler.FeatureRow{
		{EncounterID: "e1", AgeYears: 70, GenderM: 1, LOSDays: 5, Readmitted30d: 1},
		{EncounterID: "e2", AgeYears: 55, DaysSinceLastAdmit: assembler.NoPriorAdmission},
		{EncounterID: "e3", AgeYears: 42, InsurancePrivate: 1},
	}

	samples, labels, prevalence := datasetFromRows(rows)
	if len(samples) != 3 || len(labels) != 3 {
		t.Fatalf("expected 3 samples and labels, got %d/%d", len(samples), len(labels))
	}
	if len(samples[0]) != len(assembler.FeatureNames) {
		t.Fatalf("expected %d features per sample, got %d", len(assembler.FeatureNames), len(samples[0]))
	}
	if samples[0][0] != 70 || samples[0][1] != 1 || samples[0][2] != 5 {
		t.Fatalf("sample values out of order: %v", samples[0])
	}
	if samples[1][4] != assembler.NoPriorAdmission {
		t.Fatalf("expected sentinel carried through, got %v", samples[1][4])
	}
	if labels[0] != 1 || labels[1] != 0 || labels[2] != 0 {
		t.Fatalf("unexpected labels %v", labels)
	}
	if prevalence < 0.33 || prevalence > 0.34 {
		t.Fatalf("expected prevalence ~1/3, got %v", prevalence)
	}
}

func TestBuildArtifactMatchesContract(t *testing.T) {
	jobID := uuid.New()
	weights := linear.Weights{Bias: -1.5, Coefficients: make([]float64, len(assembler.FeatureNames))}
	weights.Coefficients[0] = 0.02

	artifact := buildArtifact(jobID, weights, linear.Metrics{AUC: 0.7, Accuracy: 0.9, TrainRows: 80, EvalRows: 20}, 100, 0.12)

	if artifact.JobID != jobID.String() {
		t.Fatalf("expected job id %s, got %s", jobID, artifact.JobID)
	}
	if artifact.Model.Type != ModelType || artifact.Model.Algorithm != Algorithm {
		t.Fatalf("unexpected model info %+v", artifact.Model)
	}
	if len(artifact.Model.FeatureNames) != 15 {
		t.Fatalf("expected 15 feature names, got %d", len(artifact.Model.FeatureNames))
	}
	if len(artifact.Model.Weights.Coefficients) != len(artifact.Model.FeatureNames) {
		t.Fatal("coefficients must align with feature names")
	}
	if artifact.Metrics["auc"] != 0.7 || artifact.Metrics["train_rows"] != 80 {
		t.Fatalf("unexpected metrics %v", artifact.Metrics)
	}
	if artifact.DatasetRows != 100 || artifact.LabelPrevalence != 0.12 {
		t.Fatalf("unexpected dataset stats %+v", artifact)
	}
}

func TestWriteArtifactUpdatesLatest(t *testing.T) {
	dir := t.TempDir()
	svc := &Service{artifactDir: dir}

	jobID := uuid.New()
	artifact := buildArtifact(jobID, linear.Weights{Coefficients: make([]float64, 15)}, linear.Metrics{}, 10, 0.1)

	path, err := svc.writeArtifact(artifact)
	if err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	if filepath.Base(path) != ModelName+"_"+jobID.String()+".json" {
		t.Fatalf("unexpected artifact name %s", filepath.Base(path))
	}

	versioned, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read versioned artifact: %v", err)
	}
	latest, err := os.ReadFile(filepath.Join(dir, models.LatestModelArtifact))
	if err != nil {
		t.Fatalf("read latest artifact: %v", err)
	}
	if string(versioned) != string(latest) {
		t.Fatal("latest artifact should mirror the versioned one")
	}

	var decoded models.ModelArtifact
	if err := json.Unmarshal(latest, &decoded); err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	if decoded.JobID != jobID.String() {
		t.Fatalf("expected job id %s in artifact, got %s", jobID, decoded.JobID)
	}
}

func TestResolveOptionsOverrides(t *testing.T) {
	svc := &Service{defaults: linear.Options{Epochs: 400, LearningRate: 0.1, L2: 0.001, Holdout: 0.2, Seed: 42}}

	got := svc.resolveOptions(TrainRequest{Epochs: 50, Seed: 7})
	if got.Epochs != 50 || got.Seed != 7 {
		t.Fatalf("expected overrides applied, got %+v", got)
	}
	if got.LearningRate != 0.1 || got.Holdout != 0.2 {
		t.Fatalf("expected defaults preserved, got %+v", got)
	}

	if invalid := svc.resolveOptions(TrainRequest{Holdout: 1.5}); invalid.Holdout != 0.2 {
		t.Fatalf("expected out-of-range holdout ignored, got %v", invalid.Holdout)
	}
}
