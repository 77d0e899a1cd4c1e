package assembler

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/extractor"
)

func cleanTableSet() *extractor.TableSet {
	return &extractor.TableSet{
		Patients: []extractor.RawPatient{
			{Row: 1, ID: "p1", Gender: "M", DOB: "1950-01-01"},
			{Row: 2, ID: "p2", Gender: "F", DOB: "1980-06-15"},
		},
		Admissions: []extractor.RawAdmission{
			{Row: 1, EncounterID: "e1", PatientID: "p1", AdmitTime: "2019-01-10 00:00:00", DischTime: "2019-01-15 00:00:00", AdmissionType: "EMERGENCY", Insurance: "Medicare", ExpireFlag: "0"},
			{Row: 2, EncounterID: "e2", PatientID: "p1", AdmitTime: "2019-02-01 00:00:00", DischTime: "2019-02-04 00:00:00", AdmissionType: "URGENT", Insurance: "Medicare", ExpireFlag: "0"},
			{Row: 3, EncounterID: "e3", PatientID: "p2", AdmitTime: "2019-03-01 12:00:00", DischTime: "2019-03-03 12:00:00", AdmissionType: "ELECTIVE", Insurance: "Private", ExpireFlag: "0"},
		},
		Diagnoses: []extractor.RawDiagnosis{
			{Row: 1, EncounterID: "e1", Code: "428.0"},
			{Row: 2, EncounterID: "e1", Code: "250.00"},
		},
		Procedures: []extractor.RawProcedure{
			{Row: 1, EncounterID: "e1", Code: "96.04"},
		},
		ICUStays: []extractor.RawICUStay{
			{Row: 1, EncounterID: "e1", InTime: "2019-01-10 06:00:00", OutTime: "2019-01-12 06:00:00"},
		},
	}
}

func assembleClean(t *testing.T, opts Options) ([]FeatureRow, *RunReport) {
	t.Helper()
	rows, report, err := Assemble(context.Background(), cleanTableSet(), nil, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return rows, report
}

func rowByID(t *testing.T, rows []FeatureRow, id string) FeatureRow {
	t.Helper()
	for _, r := range rows {
		if r.EncounterID == id {
			return r
		}
	}
	t.Fatalf("no row for encounter %s", id)
	return FeatureRow{}
}

func TestAssembleBuildsFeatureRows(t *testing.T) {
	rows, report := assembleClean(t, Options{Policies: DefaultPolicies(), SourceKind: "test"})

	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	e1 := rowByID(t, rows, "e1")
	if e1.AgeYears < 69 || e1.AgeYears > 69.1 {
		t.Fatalf("expected age ~69 for e1, got %g", e1.AgeYears)
	}
	if e1.GenderM != 1 || e1.LOSDays != 5 {
		t.Fatalf("expected gender_M=1 los=5, got %g/%g", e1.GenderM, e1.LOSDays)
	}
	if e1.DiagnosisCount != 2 || e1.CharlsonScore != 2 || e1.ProcedureCount != 1 {
		t.Fatalf("unexpected counts for e1: %g/%g/%g", e1.DiagnosisCount, e1.CharlsonScore, e1.ProcedureCount)
	}
	if e1.ICUStayCount != 1 || e1.ICULOSDays != 2 {
		t.Fatalf("unexpected ICU features: %g/%g", e1.ICUStayCount, e1.ICULOSDays)
	}
	if e1.AdmitTypeEmergency != 1 || e1.AdmitTypeUrgent != 0 || e1.InsuranceMedicare != 1 || e1.InsurancePrivate != 0 {
		t.Fatal("unexpected one-hot encoding for e1")
	}
	if e1.DaysSinceLastAdmit != NoPriorAdmission || e1.PreviousAdmissions != 0 {
		t.Fatalf("expected first-encounter sentinel for e1, got %g/%g", e1.DaysSinceLastAdmit, e1.PreviousAdmissions)
	}
	if e1.Readmitted30d != 1 {
		t.Fatalf("expected e1 readmitted, got %g", e1.Readmitted30d)
	}

	e2 := rowByID(t, rows, "e2")
	if e2.PreviousAdmissions != 1 || e2.DaysSinceLastAdmit != 17 {
		t.Fatalf("expected prior=1 gap=17 for e2, got %g/%g", e2.PreviousAdmissions, e2.DaysSinceLastAdmit)
	}
	if e2.Readmitted30d != 0 {
		t.Fatalf("expected censored e2 labeled 0, got %g", e2.Readmitted30d)
	}

	e3 := rowByID(t, rows, "e3")
	if e3.AdmitTypeEmergency != 0 || e3.AdmitTypeUrgent != 0 {
		t.Fatal("expected ELECTIVE reference level to zero both admit indicators")
	}
	if e3.InsurancePrivate != 1 || e3.GenderM != 0 {
		t.Fatalf("unexpected e3 encoding: insurance_Private=%g gender_M=%g", e3.InsurancePrivate, e3.GenderM)
	}

	if report.RowsEmitted != 3 || report.LabelPositives != 1 {
		t.Fatalf("unexpected report totals: %d rows, %d positives", report.RowsEmitted, report.LabelPositives)
	}
	if report.FirstEncounters != 2 || report.CensoredZeroed != 2 {
		t.Fatalf("unexpected report detail: first=%d censored=%d", report.FirstEncounters, report.CensoredZeroed)
	}
	if report.LabelPrevalence <= 0.33 || report.LabelPrevalence >= 0.34 {
		t.Fatalf("expected prevalence 1/3, got %g", report.LabelPrevalence)
	}
}

func TestAssembleAgePolicies(t *testing.T) {
	ts := cleanTableSet()
	ts.Patients[0].DOB = "1910-01-01" // age ~109 at e1

	pol := DefaultPolicies()
	rows, _, err := Assemble(context.Background(), ts, nil, Options{Policies: pol})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rowByID(t, rows, "e1").AgeYears; got != 90 {
		t.Fatalf("expected winsorized age 90, got %g", got)
	}

	pol.AgePolicy = AgeExclude
	rows, report, err := Assemble(context.Background(), ts, nil, Options{Policies: pol})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].EncounterID != "e3" {
		t.Fatalf("expected only e3 to survive age exclusion, got %d rows", len(rows))
	}
	if report.Excluded.Age != 2 {
		t.Fatalf("expected 2 age exclusions, got %d", report.Excluded.Age)
	}
}

func TestAssembleNegativeAgeIsMalformed(t *testing.T) {
	ts := cleanTableSet()
	ts.Patients[1].DOB = "2020-01-01" // born after admission e3

	_, report, err := Assemble(context.Background(), ts, nil, Options{Policies: DefaultPolicies()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := report.Excluded.Malformed["admissions.age"]; got != 1 {
		t.Fatalf("expected 1 negative-age malformed record, got %d", got)
	}
	if report.RowsEmitted != 2 {
		t.Fatalf("expected 2 rows, got %d", report.RowsEmitted)
	}
}

func TestAssembleDeathLabelPolicy(t *testing.T) {
	ts := cleanTableSet()
	ts.Admissions[2].ExpireFlag = "1"

	rows, report, err := Assemble(context.Background(), ts, nil, Options{Policies: DefaultPolicies()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e3 := rowByID(t, rows, "e3")
	if e3.HospitalExpireFlag != 1 || e3.Readmitted30d != 0 {
		t.Fatalf("expected kept death row labeled 0, got flag=%g label=%g", e3.HospitalExpireFlag, e3.Readmitted30d)
	}
	if report.DeathZeroed != 1 {
		t.Fatalf("expected 1 death zeroed, got %d", report.DeathZeroed)
	}

	pol := DefaultPolicies()
	pol.LabelPolicy = LabelExclude
	rows, report, err = Assemble(context.Background(), ts, nil, Options{Policies: pol})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range rows {
		if r.EncounterID == "e3" {
			t.Fatal("expected e3 excluded under label-exclude policy")
		}
	}
	if report.Excluded.Label == 0 {
		t.Fatal("expected label exclusions counted")
	}
}

func TestAssembleUnknownPatientExcluded(t *testing.T) {
	ts := cleanTableSet()
	ts.Admissions = append(ts.Admissions, extractor.RawAdmission{
		Row: 4, EncounterID: "e9", PatientID: "ghost",
		AdmitTime: "2019-04-01 00:00:00", DischTime: "2019-04-02 00:00:00",
		AdmissionType: "EMERGENCY", Insurance: "Medicaid", ExpireFlag: "0",
	})

	rows, report, err := Assemble(context.Background(), ts, nil, Options{Policies: DefaultPolicies()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected ghost encounter dropped, got %d rows", len(rows))
	}
	if report.Excluded.UnknownPatient != 1 {
		t.Fatalf("expected 1 unknown-patient exclusion, got %d", report.Excluded.UnknownPatient)
	}
}

func TestAssembleEmptyCohortFails(t *testing.T) {
	ts := &extractor.TableSet{
		Patients: []extractor.RawPatient{{Row: 1, ID: "p1", Gender: "M", DOB: "1950-01-01"}},
		Admissions: []extractor.RawAdmission{
			{Row: 1, EncounterID: "e1", PatientID: "p1", AdmitTime: "2019-01-01 00:00:00", DischTime: "2019-01-02 00:00:00", AdmissionType: "EMERGENCY", Insurance: "Self Pay", ExpireFlag: "0"},
		},
	}

	_, report, err := Assemble(context.Background(), ts, nil, Options{Policies: DefaultPolicies()})
	if err == nil {
		t.Fatal("expected empty-cohort error")
	}
	if !IsEmptyCohort(err) {
		t.Fatalf("expected EmptyCohortError, got %v", err)
	}
	if report == nil || report.Excluded.Total != 1 {
		t.Fatalf("expected report with 1 exclusion, got %+v", report)
	}
}

func TestAssembleDeterministicAcrossRuns(t *testing.T) {
	ts := &extractor.TableSet{}
	for i := 0; i < 8; i++ {
		pid := fmt.Sprintf("p%02d", i)
		ts.Patients = append(ts.Patients, extractor.RawPatient{
			Row: i + 1, ID: pid, Gender: []string{"M", "F"}[i%2], DOB: fmt.Sprintf("19%02d-03-01", 40+i),
		})
		for j := 0; j < 2; j++ {
			ts.Admissions = append(ts.Admissions, extractor.RawAdmission{
				Row:         len(ts.Admissions) + 1,
				EncounterID: fmt.Sprintf("e%02d%d", i, j),
				PatientID:   pid,
				AdmitTime:   fmt.Sprintf("2019-%02d-01 00:00:00", 1+j*2),
				DischTime:   fmt.Sprintf("2019-%02d-05 00:00:00", 1+j*2),
				AdmissionType: []string{"EMERGENCY", "URGENT", "ELECTIVE"}[(i+j)%3],
				Insurance:     []string{"Medicare", "Medicaid", "Private"}[(i+j)%3],
				ExpireFlag:    "0",
			})
			ts.Diagnoses = append(ts.Diagnoses, extractor.RawDiagnosis{
				Row: len(ts.Diagnoses) + 1, EncounterID: fmt.Sprintf("e%02d%d", i, j), Code: "428.0",
			})
		}
	}

	render := func() string {
		rows, _, err := Assemble(context.Background(), ts, nil, Options{Policies: DefaultPolicies(), Parallelism: 4})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i := 1; i < len(rows); i++ {
			if rows[i-1].EncounterID >= rows[i].EncounterID {
				t.Fatalf("rows not sorted: %s >= %s", rows[i-1].EncounterID, rows[i].EncounterID)
			}
		}
		var buf bytes.Buffer
		if err := WriteCSV(&buf, rows); err != nil {
			t.Fatalf("write csv: %v", err)
		}
		return buf.String()
	}

	first := render()
	second := render()
	if first != second {
		t.Fatal("expected byte-identical CSV across runs")
	}
	if !strings.HasPrefix(first, "encounter_id,patient_id,age_years_cleaned,") {
		t.Fatalf("unexpected header: %s", strings.SplitN(first, "\n", 2)[0])
	}
}
