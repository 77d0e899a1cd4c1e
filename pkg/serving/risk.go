package serving

import (
	"math"
	"sort"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/models"
)

const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// Model scores cluster near the cohort's base readmission rate, so the
// level cutoffs sit far below the fallback ones.
const (
	modelHighThreshold   = 0.15
	modelMediumThreshold = 0.08

	fallbackHighThreshold   = 0.7
	fallbackMediumThreshold = 0.4
)

func modelRiskLevel(score float64) string {
	switch {
	case score >= modelHighThreshold:
		return LevelHigh
	case score >= modelMediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

func fallbackRiskLevel(score float64) string {
	switch {
	case score >= fallbackHighThreshold:
		return LevelHigh
	case score >= fallbackMediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

func levelRank(level string) int {
	switch level {
	case LevelLow:
		return 0
	case LevelMedium:
		return 1
	case LevelHigh:
		return 2
	default:
		return -1
	}
}

// ruleScore is the clinical heuristic used when no trained artifact
// exists yet. Additive points, clamped to [0, 1].
func ruleScore(features map[string]float64) float64 {
	var score float64

	age := features["age_years_cleaned"]
	switch {
	case age >= 75:
		score += 0.4
	case age >= 65:
		score += 0.3
	case age >= 50:
		score += 0.2
	default:
		score += 0.1
	}

	los := features["los_days"]
	switch {
	case los >= 10:
		score += 0.3
	case los >= 5:
		score += 0.2
	case los >= 2:
		score += 0.1
	}

	if features["admit_type_EMERGENCY"] == 1 {
		score += 0.2
	} else if features["admit_type_URGENT"] == 1 {
		score += 0.1
	}

	previous := features["previous_admissions"]
	switch {
	case previous >= 3:
		score += 0.2
	case previous >= 1:
		score += 0.1
	}

	return math.Min(1, math.Max(0, score))
}

var factorLabels = map[string]string{
	"age_years_cleaned":     "Age at admission",
	"gender_M":              "Male sex",
	"los_days":              "Length of stay",
	"previous_admissions":   "Previous admissions",
	"days_since_last_admit": "Days since last admission",
	"diagnosis_count":       "Diagnosis count",
	"charlson_score":        "Charlson comorbidity score",
	"procedure_count":       "Procedure count",
	"icu_stay_count":        "ICU stays",
	"icu_los_days":          "ICU days",
	"admit_type_EMERGENCY":  "Emergency admission",
	"admit_type_URGENT":     "Urgent admission",
	"insurance_Medicare":    "Medicare coverage",
	"insurance_Private":     "Private coverage",
	"hospital_expire_flag":  "Died in hospital",
}

// topFactors ranks features by |weight x value| and returns the
// strongest n contributors.
func topFactors(info models.ModelInfo, features map[string]float64, n int) []Factor {
	factors := make([]Factor, 0, len(info.FeatureNames))
	for i, name := range info.FeatureNames {
		value := features[name]
		weight := info.Weights.Coefficients[i]
		contribution := weight * value
		if contribution == 0 {
			continue
		}
		label := factorLabels[name]
		if label == "" {
			label = name
		}
		factors = append(factors, Factor{
			Feature:      name,
			Label:        label,
			Value:        value,
			Weight:       weight,
			Contribution: contribution,
		})
	}

	sort.Slice(factors, func(i, j int) bool {
		return math.Abs(factors[i].Contribution) > math.Abs(factors[j].Contribution)
	})
	if len(factors) > n {
		factors = factors[:n]
	}
	return factors
}
