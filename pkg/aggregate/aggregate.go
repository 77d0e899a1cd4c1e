// Package aggregate reduces grouped clinical detail to per-encounter values.
package aggregate

import (
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/comorbidity"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/extractor"
)

// Aggregator answers count and duration questions for single encounters.
// Encounters absent from a detail table read as zero, never as errors.
type Aggregator struct {
	catalog    *comorbidity.Catalog
	diagnoses  map[string][]extractor.Diagnosis
	procedures map[string]int
	stays      map[string][]extractor.ICUStay
}

func New(catalog *comorbidity.Catalog, diagnoses []extractor.Diagnosis, procedures []extractor.Procedure, stays []extractor.ICUStay) *Aggregator {
	a := &Aggregator{
		catalog:    catalog,
		diagnoses:  make(map[string][]extractor.Diagnosis),
		procedures: make(map[string]int),
		stays:      make(map[string][]extractor.ICUStay),
	}
	for _, d := range diagnoses {
		a.diagnoses[d.EncounterID] = append(a.diagnoses[d.EncounterID], d)
	}
	for _, p := range procedures {
		a.procedures[p.EncounterID]++
	}
	for _, s := range stays {
		a.stays[s.EncounterID] = append(a.stays[s.EncounterID], s)
	}
	return a
}

func (a *Aggregator) DiagnosisCount(encounterID string) int {
	return len(a.diagnoses[encounterID])
}

// Diagnoses returns the encounter's diagnosis rows in input order.
func (a *Aggregator) Diagnoses(encounterID string) []extractor.Diagnosis {
	return a.diagnoses[encounterID]
}

func (a *Aggregator) ProcedureCount(encounterID string) int {
	return a.procedures[encounterID]
}

// ICUStayCount counts stays independently; overlapping stays are not merged.
func (a *Aggregator) ICUStayCount(encounterID string) int {
	return len(a.stays[encounterID])
}

// ICULOSDays sums fractional days across all of the encounter's ICU stays.
func (a *Aggregator) ICULOSDays(encounterID string) float64 {
	var total float64
	for _, s := range a.stays[encounterID] {
		total += s.OutTime.Sub(s.InTime).Hours() / 24
	}
	return total
}

// CharlsonScore computes the comorbidity index over the encounter's
// diagnoses using the configured catalog.
func (a *Aggregator) CharlsonScore(encounterID string) int {
	return a.catalog.Score(a.diagnoses[encounterID])
}

// LOSDays is the encounter's length of stay in fractional days.
func LOSDays(e extractor.Encounter) float64 {
	return e.DischTime.Sub(e.AdmitTime).Hours() / 24
}
