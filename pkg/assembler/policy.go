package assembler

import "fmt"

// LabelPolicy governs encounters whose label cannot be observed: windows
// running past the end of data, and in-hospital deaths.
type LabelPolicy string

const (
	// LabelZero keeps the row with a 0 label.
	LabelZero LabelPolicy = "label-zero"
	// LabelExclude drops the row and counts it.
	LabelExclude LabelPolicy = "exclude"
)

// AgePolicy governs ages above the ceiling. Negative ages are always
// malformed regardless of policy.
type AgePolicy string

const (
	// AgeWinsorize clamps the age to the ceiling.
	AgeWinsorize AgePolicy = "winsorize"
	// AgeExclude drops the row and counts it.
	AgeExclude AgePolicy = "exclude"
)

// Policies are the explicit knobs of one run, applied uniformly and echoed
// in the run report.
type Policies struct {
	LabelWindowDays float64     `json:"label_window_days"`
	LabelPolicy     LabelPolicy `json:"label_policy"`
	AgePolicy       AgePolicy   `json:"age_policy"`
	AgeCeiling      float64     `json:"age_ceiling"`
}

func DefaultPolicies() Policies {
	return Policies{
		LabelWindowDays: 30,
		LabelPolicy:     LabelZero,
		AgePolicy:       AgeWinsorize,
		AgeCeiling:      90,
	}
}

func (p Policies) Validate() error {
	if p.LabelWindowDays <= 0 {
		return fmt.Errorf("label window must be positive, got %g", p.LabelWindowDays)
	}
	switch p.LabelPolicy {
	case LabelZero, LabelExclude:
	default:
		return fmt.Errorf("unknown label policy %q", p.LabelPolicy)
	}
	switch p.AgePolicy {
	case AgeWinsorize, AgeExclude:
	default:
		return fmt.Errorf("unknown age policy %q", p.AgePolicy)
	}
	if p.AgeCeiling <= 0 {
		return fmt.Errorf("age ceiling must be positive, got %g", p.AgeCeiling)
	}
	return nil
}
