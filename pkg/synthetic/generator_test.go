package synthetic

import (
	"context"
	"reflect"
	"testing"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/assembler"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/extractor"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/identity"
)

func TestGenerateDeterministic(t *testing.T) {
	a := NewGenerator(Options{Patients: 200, Seed: 42}).Generate()
	b := NewGenerator(Options{Patients: 200, Seed: 42}).Generate()
	if !reflect.DeepEqual(a, b) {
		t.Fatal("expected identical tables for the same seed")
	}

	c := NewGenerator(Options{Patients: 200, Seed: 7}).Generate()
	if reflect.DeepEqual(a.Admissions, c.Admissions) {
		t.Fatal("expected a different seed to change the cohort")
	}
}

func TestGenerateDistributions(t *testing.T) {
	ts := NewGenerator(Options{Patients: 2000, Seed: 42}).Generate()

	if len(ts.Patients) != 2000 {
		t.Fatalf("expected 2000 patients, got %d", len(ts.Patients))
	}
	if len(ts.Admissions) < 2000 {
		t.Fatalf("expected at least one admission per patient, got %d", len(ts.Admissions))
	}

	males := 0
	for _, p := range ts.Patients {
		if p.Gender == "M" {
			males++
		}
	}
	maleFrac := float64(males) / float64(len(ts.Patients))
	if maleFrac < 0.48 || maleFrac > 0.60 {
		t.Fatalf("male fraction %.3f outside expected band", maleFrac)
	}

	emergency := 0
	for _, a := range ts.Admissions {
		if a.AdmissionType == "EMERGENCY" {
			emergency++
		}
	}
	emergencyFrac := float64(emergency) / float64(len(ts.Admissions))
	if emergencyFrac < 0.88 || emergencyFrac > 0.96 {
		t.Fatalf("emergency fraction %.3f outside expected band", emergencyFrac)
	}

	diagPerAdmission := float64(len(ts.Diagnoses)) / float64(len(ts.Admissions))
	if diagPerAdmission < 3 || diagPerAdmission > 12 {
		t.Fatalf("expected 3-12 diagnoses per admission on average, got %.2f", diagPerAdmission)
	}

	icuFrac := float64(len(ts.ICUStays)) / float64(len(ts.Admissions))
	if icuFrac < 0.2 || icuFrac > 0.4 {
		t.Fatalf("icu stay fraction %.3f outside expected band", icuFrac)
	}
}

func TestGenerateCleanAssembles(t *testing.T) {
	ts := NewGenerator(Options{Patients: 300, Seed: 42}).Generate()

	rows, report, err := assembler.Assemble(context.Background(), ts, nil, assembler.Options{
		Policies:   assembler.DefaultPolicies(),
		SourceKind: "synthetic",
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if report.Excluded.Total != 0 {
		t.Fatalf("expected a clean cohort, excluded %d: %+v", report.Excluded.Total, report.Excluded)
	}
	if len(rows) != len(ts.Admissions) {
		t.Fatalf("expected %d feature rows, got %d", len(ts.Admissions), len(rows))
	}

	positives := 0
	for _, r := range rows {
		if r.Readmitted30d == 1 {
			positives++
		}
	}
	if positives == 0 {
		t.Fatal("expected some 30-day readmissions in a 300-patient cohort")
	}
	if report.LabelPositives != positives {
		t.Fatalf("report counted %d positives, rows carry %d", report.LabelPositives, positives)
	}
}

func TestGenerateDirtyCountsExclusions(t *testing.T) {
	ts := NewGenerator(Options{Patients: 50, Seed: 42, Dirty: true}).Generate()

	_, report, err := assembler.Assemble(context.Background(), ts, nil, assembler.Options{
		Policies:   assembler.DefaultPolicies(),
		SourceKind: "synthetic",
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	malformed := 0
	for _, n := range report.Excluded.Malformed {
		malformed += n
	}
	ambiguous := 0
	for _, n := range report.Excluded.Ambiguous {
		ambiguous += n
	}
	if malformed == 0 {
		t.Fatalf("expected malformed exclusions in the dirty set, report %+v", report.Excluded)
	}
	if ambiguous == 0 {
		t.Fatalf("expected ambiguous category exclusions in the dirty set, report %+v", report.Excluded)
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	ts := NewGenerator(Options{Patients: 25, Seed: 42}).Generate()

	dir := t.TempDir()
	if err := WriteCSV(dir, ts); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	loaded, err := extractor.NewCSVSource(dir).Load(context.Background())
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	if !reflect.DeepEqual(ts, loaded) {
		t.Fatal("expected the written tables to load back unchanged")
	}
}

func TestSeedHelpers(t *testing.T) {
	users := SeedUsers()
	if len(users) != 3 {
		t.Fatalf("expected 3 seed users, got %d", len(users))
	}
	roles := make(map[string]bool)
	for _, u := range users {
		if u.Email == "" || u.Password == "" {
			t.Fatalf("seed user %q missing credentials", u.Name)
		}
		roles[u.Role] = true
	}
	for _, role := range []string{identity.RoleAdmin, identity.RoleDoctor, identity.RoleNurse} {
		if !roles[role] {
			t.Fatalf("expected a seed user with role %s", role)
		}
	}

	ts := NewGenerator(Options{Patients: 5, Seed: 1}).Generate()
	tasks := SampleTasks(ts)
	if len(tasks) != 3 {
		t.Fatalf("expected 3 sample tasks, got %d", len(tasks))
	}
	for _, task := range tasks {
		if task.EncounterID == "" || task.Description == "" {
			t.Fatalf("incomplete sample task %+v", task)
		}
	}
}
