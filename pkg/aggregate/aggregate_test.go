package aggregate

import (
	"testing"
	"time"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/comorbidity"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/extractor"
)

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return t
}

func testAggregator() *Aggregator {
	diagnoses := []extractor.Diagnosis{
		{EncounterID: "e1", Code: "4280", ICDVersion: 9},
		{EncounterID: "e1", Code: "5849", ICDVersion: 9},
		{EncounterID: "e1", Code: "2506", ICDVersion: 9},
		{EncounterID: "e2", Code: "4019", ICDVersion: 9},
	}
	procedures := []extractor.Procedure{
		{EncounterID: "e1", Code: "9604"},
		{EncounterID: "e1", Code: "9671"},
	}
	stays := []extractor.ICUStay{
		{EncounterID: "e1", InTime: at("2019-01-02 00:00:00"), OutTime: at("2019-01-03 12:00:00")},
		{EncounterID: "e1", InTime: at("2019-01-03 00:00:00"), OutTime: at("2019-01-04 00:00:00")},
	}
	return New(comorbidity.Default(), diagnoses, procedures, stays)
}

func TestCountsPerEncounter(t *testing.T) {
	a := testAggregator()

	if got := a.DiagnosisCount("e1"); got != 3 {
		t.Fatalf("expected 3 diagnoses, got %d", got)
	}
	if got := a.ProcedureCount("e1"); got != 2 {
		t.Fatalf("expected 2 procedures, got %d", got)
	}
	if got := a.ICUStayCount("e1"); got != 2 {
		t.Fatalf("expected 2 ICU stays, got %d", got)
	}
}

func TestMissingDetailReadsZero(t *testing.T) {
	a := testAggregator()

	if got := a.DiagnosisCount("e3"); got != 0 {
		t.Fatalf("expected 0 diagnoses for unknown encounter, got %d", got)
	}
	if got := a.ICULOSDays("e3"); got != 0 {
		t.Fatalf("expected 0 ICU days for unknown encounter, got %g", got)
	}
	if got := a.CharlsonScore("e3"); got != 0 {
		t.Fatalf("expected Charlson 0 for unknown encounter, got %d", got)
	}
}

func TestICULOSSumsOverlappingStays(t *testing.T) {
	a := testAggregator()

	// 1.5 days + 1 day, overlap not merged
	if got := a.ICULOSDays("e1"); got != 2.5 {
		t.Fatalf("expected 2.5 ICU days, got %g", got)
	}
}

func TestCharlsonScorePerEncounter(t *testing.T) {
	a := testAggregator()

	// CHF (1) + renal 5849 -> 584 not mapped; diabetes with complication (2)
	if got := a.CharlsonScore("e1"); got != 3 {
		t.Fatalf("expected Charlson 3, got %d", got)
	}
	if got := a.CharlsonScore("e2"); got != 0 {
		t.Fatalf("expected Charlson 0 for hypertension only, got %d", got)
	}
}

func TestLOSDays(t *testing.T) {
	e := extractor.Encounter{AdmitTime: at("2019-01-02 10:00:00"), DischTime: at("2019-01-05 16:00:00")}
	if got := LOSDays(e); got != 3.25 {
		t.Fatalf("expected 3.25 days, got %g", got)
	}
}
