// Package timeline indexes encounters into per-patient chronological order
// and answers the order-sensitive questions the feature set depends on:
// admission history, inter-admission gaps, and the readmission label.
package timeline

import (
	"sort"
	"time"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/extractor"
)

// LabelStatus is the outcome of the readmission-window check.
type LabelStatus int

const (
	NotReadmitted LabelStatus = iota
	Readmitted
	// Censored means the window extends past the end of observed data and
	// no readmission was seen; the label policy decides what to do with it.
	Censored
)

type position struct {
	patientID string
	idx       int
}

// Index holds every patient's encounters sorted by admission time, ties on
// identical admission timestamps broken by encounter id ascending. The order
// is total and deterministic, so repeated builds walk identically.
type Index struct {
	patientIDs []string
	byPatient  map[string][]extractor.Encounter
	pos        map[string]position
	dataEnd    time.Time
}

// Build constructs the index. Input order does not matter.
func Build(encounters []extractor.Encounter) *Index {
	ix := &Index{
		byPatient: make(map[string][]extractor.Encounter),
		pos:       make(map[string]position, len(encounters)),
	}

	for _, e := range encounters {
		ix.byPatient[e.PatientID] = append(ix.byPatient[e.PatientID], e)
		if e.DischTime.After(ix.dataEnd) {
			ix.dataEnd = e.DischTime
		}
	}

	ix.patientIDs = make([]string, 0, len(ix.byPatient))
	for id := range ix.byPatient {
		ix.patientIDs = append(ix.patientIDs, id)
	}
	sort.Strings(ix.patientIDs)

	for _, pid := range ix.patientIDs {
		seq := ix.byPatient[pid]
		sort.Slice(seq, func(i, j int) bool {
			if !seq[i].AdmitTime.Equal(seq[j].AdmitTime) {
				return seq[i].AdmitTime.Before(seq[j].AdmitTime)
			}
			return seq[i].ID < seq[j].ID
		})
		for i, e := range seq {
			ix.pos[e.ID] = position{patientID: pid, idx: i}
		}
	}

	return ix
}

// Patients returns patient ids in ascending order.
func (ix *Index) Patients() []string { return ix.patientIDs }

// Encounters returns one patient's encounters in index order.
func (ix *Index) Encounters(patientID string) []extractor.Encounter {
	return ix.byPatient[patientID]
}

// Len reports the number of indexed encounters.
func (ix *Index) Len() int { return len(ix.pos) }

// DataEnd is the latest discharge across the whole dataset, the horizon up
// to which absence of a readmission is observable.
func (ix *Index) DataEnd() time.Time { return ix.dataEnd }

// PriorAdmissions counts the patient's encounters ordered before this one.
// The second return is false for an unknown encounter id.
func (ix *Index) PriorAdmissions(encounterID string) (int, bool) {
	p, ok := ix.pos[encounterID]
	if !ok {
		return 0, false
	}
	return p.idx, true
}

// DaysSinceLastAdmit is the fractional-day gap between the previous
// encounter's discharge and this admission. The second return is false when
// there is no prior encounter (or the id is unknown). Negative gaps from
// overlapping stays are carried as-is.
func (ix *Index) DaysSinceLastAdmit(encounterID string) (float64, bool) {
	p, ok := ix.pos[encounterID]
	if !ok || p.idx == 0 {
		return 0, false
	}
	seq := ix.byPatient[p.patientID]
	return daysBetween(seq[p.idx-1].DischTime, seq[p.idx].AdmitTime), true
}

// ReadmissionStatus checks whether the patient's next admission falls
// strictly after this discharge and within windowDays of it. With no next
// encounter, the result is Censored when the window passes DataEnd and
// NotReadmitted otherwise. The second return is false for an unknown id.
func (ix *Index) ReadmissionStatus(encounterID string, windowDays float64) (LabelStatus, bool) {
	p, ok := ix.pos[encounterID]
	if !ok {
		return NotReadmitted, false
	}
	seq := ix.byPatient[p.patientID]
	e := seq[p.idx]
	windowEnd := e.DischTime.Add(time.Duration(windowDays * 24 * float64(time.Hour)))

	if p.idx+1 < len(seq) {
		next := seq[p.idx+1]
		if next.AdmitTime.After(e.DischTime) && !next.AdmitTime.After(windowEnd) {
			return Readmitted, true
		}
		return NotReadmitted, true
	}

	if windowEnd.After(ix.dataEnd) {
		return Censored, true
	}
	return NotReadmitted, true
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}
