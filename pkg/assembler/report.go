package assembler

import (
	"errors"
	"fmt"
	"time"
)

// ExclusionCounts breaks down everything a run dropped, by reason.
type ExclusionCounts struct {
	// Malformed counts structurally bad rows, keyed "table.field".
	Malformed map[string]int `json:"malformed,omitempty"`
	// Ambiguous counts out-of-domain categoricals, keyed "table.field=value".
	Ambiguous map[string]int `json:"ambiguous,omitempty"`
	// UnknownPatient counts encounters referencing no extracted patient.
	UnknownPatient int `json:"unknown_patient,omitempty"`
	// Age counts rows dropped by the age-exclude policy.
	Age int `json:"age,omitempty"`
	// Label counts rows dropped by the label-exclude policy.
	Label int `json:"label,omitempty"`
	Total int `json:"total"`
}

func (c *ExclusionCounts) addMalformed(table, field string) {
	if c.Malformed == nil {
		c.Malformed = make(map[string]int)
	}
	c.Malformed[table+"."+field]++
	c.Total++
}

func (c *ExclusionCounts) addAmbiguous(table, field, value string) {
	if c.Ambiguous == nil {
		c.Ambiguous = make(map[string]int)
	}
	c.Ambiguous[fmt.Sprintf("%s.%s=%s", table, field, value)]++
	c.Total++
}

// RunReport is the audit record of one derivation run.
type RunReport struct {
	SourceKind   string          `json:"source_kind"`
	Policies     Policies        `json:"policies"`
	TablesSeen   map[string]int  `json:"tables_seen"`
	EntitiesKept map[string]int  `json:"entities_kept"`
	Excluded     ExclusionCounts `json:"excluded"`

	RowsEmitted     int     `json:"rows_emitted"`
	LabelPositives  int     `json:"label_positives"`
	LabelPrevalence float64 `json:"label_prevalence"`
	// FirstEncounters counts rows carrying the days_since_last_admit
	// sentinel, disambiguating it from real negative gaps.
	FirstEncounters int `json:"first_encounters"`
	// CensoredZeroed and DeathZeroed count rows the label-zero policy kept.
	CensoredZeroed int `json:"censored_zeroed"`
	DeathZeroed    int `json:"death_zeroed"`

	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// EmptyCohortError is fatal: zero encounters survived the run.
type EmptyCohortError struct {
	Seen     int
	Excluded int
}

func (e EmptyCohortError) Error() string {
	return fmt.Sprintf("empty cohort: %d encounters seen, %d records excluded", e.Seen, e.Excluded)
}

func IsEmptyCohort(err error) bool {
	var ec EmptyCohortError
	return errors.As(err, &ec)
}
