package serving

import (
	"math"
	"testing"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/models"
)

func TestRuleScoreScenarios(t *testing.T) {
	cases := []struct {
		name     string
		features map[string]float64
		want     float64
	}{
		{
			name: "elderly long emergency stay clamps at one",
			features: map[string]float64{
				"age_years_cleaned":    80,
				"los_days":             12,
				"admit_type_EMERGENCY": 1,
				"previous_admissions":  4,
			},
			want: 1.0,
		},
		{
			name: "young short elective stay",
			features: map[string]float64{
				"age_years_cleaned":   40,
				"los_days":            1,
				"previous_admissions": 0,
			},
			want: 0.1,
		},
		{
			name: "urgent senior with history",
			features: map[string]float64{
				"age_years_cleaned":   67,
				"los_days":            6,
				"admit_type_URGENT":   1,
				"previous_admissions": 1,
			},
			want: 0.7,
		},
		{
			name: "middle aged moderate stay",
			features: map[string]float64{
				"age_years_cleaned": 52,
				"los_days":          3,
			},
			want: 0.3,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ruleScore(tc.features)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestRiskLevels(t *testing.T) {
	if got := modelRiskLevel(0.15); got != LevelHigh {
		t.Fatalf("expected high at threshold, got %q", got)
	}
	if got := modelRiskLevel(0.08); got != LevelMedium {
		t.Fatalf("expected medium at threshold, got %q", got)
	}
	if got := modelRiskLevel(0.079); got != LevelLow {
		t.Fatalf("expected low below threshold, got %q", got)
	}

	if got := fallbackRiskLevel(0.7); got != LevelHigh {
		t.Fatalf("expected fallback high, got %q", got)
	}
	if got := fallbackRiskLevel(0.4); got != LevelMedium {
		t.Fatalf("expected fallback medium, got %q", got)
	}
	if got := fallbackRiskLevel(0.39); got != LevelLow {
		t.Fatalf("expected fallback low, got %q", got)
	}
}

func TestLevelRankOrdering(t *testing.T) {
	if !(levelRank(LevelLow) < levelRank(LevelMedium) && levelRank(LevelMedium) < levelRank(LevelHigh)) {
		t.Fatal("expected low < medium < high")
	}
	if levelRank("critical") != -1 {
		t.Fatalf("expected unknown level to rank -1, got %d", levelRank("critical"))
	}
}

func TestTopFactorsRanking(t *testing.T) {
	info := models.ModelInfo{
		FeatureNames: []string{"age_years_cleaned", "charlson_score", "gender_M", "los_days"},
		Weights: models.ModelWeights{
			Coefficients: []float64{0.5, -2.0, 0.4, 0.1},
		},
	}
	features := map[string]float64{
		"age_years_cleaned": 2,
		"charlson_score":    1,
		"gender_M":          0,
		"los_days":          3,
	}

	factors := topFactors(info, features, 2)
	if len(factors) != 2 {
		t.Fatalf("expected 2 factors, got %d", len(factors))
	}
	if factors[0].Feature != "charlson_score" || factors[0].Contribution != -2.0 {
		t.Fatalf("expected charlson strongest, got %+v", factors[0])
	}
	if factors[1].Feature != "age_years_cleaned" || factors[1].Contribution != 1.0 {
		t.Fatalf("expected age second, got %+v", factors[1])
	}
	if factors[0].Label != "Charlson comorbidity score" {
		t.Fatalf("expected readable label, got %q", factors[0].Label)
	}
}

func TestTopFactorsSkipsZeroContributions(t *testing.T) {
	info := models.ModelInfo{
		FeatureNames: []string{"gender_M", "los_days"},
		Weights:      models.ModelWeights{Coefficients: []float64{0.4, 0}},
	}
	factors := topFactors(info, map[string]float64{"gender_M": 0, "los_days": 9}, 5)
	if len(factors) != 0 {
		t.Fatalf("expected no factors when contributions are zero, got %+v", factors)
	}
}
