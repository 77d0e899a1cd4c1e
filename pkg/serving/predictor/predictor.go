package predictor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/models"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/ml/linear"
)

// Predictor scores encounters with the latest trained artifact. The
// artifact is reloaded only when the file's mtime changes, so a
// freshly completed training job is picked up without a restart.
type Predictor struct {
	dir    string
	mu     sync.RWMutex
	cached models.ModelArtifact
	mod    int64
	loaded bool
}

func NewPredictor(dir string) *Predictor {
	return &Predictor{dir: dir}
}

// Artifact returns the current model. The error wraps os.ErrNotExist
// when no training job has produced an artifact yet.
func (p *Predictor) Artifact() (models.ModelArtifact, error) {
	path := filepath.Join(p.dir, models.LatestModelArtifact)
	info, err := os.Stat(path)
	if err != nil {
		return models.ModelArtifact{}, fmt.Errorf("no model artifact: %w", err)
	}
	mod := info.ModTime().UnixNano()

	p.mu.RLock()
	if p.loaded && p.mod == mod {
		cached := p.cached
		p.mu.RUnlock()
		return cached, nil
	}
	p.mu.RUnlock()

	content, err := os.ReadFile(path)
	if err != nil {
		return models.ModelArtifact{}, err
	}
	var artifact models.ModelArtifact
	if err := json.Unmarshal(content, &artifact); err != nil {
		return models.ModelArtifact{}, fmt.Errorf("decode model artifact: %w", err)
	}
	if len(artifact.Model.FeatureNames) == 0 {
		return models.ModelArtifact{}, fmt.Errorf("model artifact has no feature names")
	}
	if len(artifact.Model.Weights.Coefficients) != len(artifact.Model.FeatureNames) {
		return models.ModelArtifact{}, fmt.Errorf("model artifact weights do not match feature names")
	}

	p.mu.Lock()
	p.cached = artifact
	p.mod = mod
	p.loaded = true
	p.mu.Unlock()
	return artifact, nil
}

// Score builds the ordered sample from the feature map and applies the
// model. A feature missing from the map is an error, never a silent
// zero.
func (p *Predictor) Score(features map[string]float64) (float64, models.ModelArtifact, error) {
	artifact, err := p.Artifact()
	if err != nil {
		return 0, models.ModelArtifact{}, err
	}

	sample := make([]float64, len(artifact.Model.FeatureNames))
	for idx, name := range artifact.Model.FeatureNames {
		value, ok := features[name]
		if !ok {
			return 0, models.ModelArtifact{}, fmt.Errorf("missing feature %s", name)
		}
		sample[idx] = value
	}

	weights := linear.Weights{
		Bias:         artifact.Model.Weights.Bias,
		Coefficients: artifact.Model.Weights.Coefficients,
	}
	return linear.Predict(weights, sample), artifact, nil
}
