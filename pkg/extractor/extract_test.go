package extractor

import (
	"testing"
	"time"
)

func TestExtractPatientsNormalizesAndExcludes(t *testing.T) {
	rows := []RawPatient{
		{Row: 1, ID: " p1 ", Gender: " m ", DOB: "1950-03-10"},
		{Row: 2, ID: "p2", Gender: "F", DOB: "1962-07-01 08:30:00"},
		{Row: 3, ID: "p3", Gender: "unknown", DOB: "1944-01-01"},
		{Row: 4, ID: "", Gender: "M", DOB: "1971-05-05"},
		{Row: 5, ID: "p1", Gender: "F", DOB: "1980-01-01"},
		{Row: 6, ID: "p4", Gender: "M", DOB: "not-a-date"},
	}

	patients, errs := ExtractPatients(rows)
	if len(patients) != 2 {
		t.Fatalf("expected 2 patients, got %d", len(patients))
	}
	if patients[0].ID != "p1" || patients[0].Sex != "M" {
		t.Fatalf("expected trimmed p1/M, got %s/%s", patients[0].ID, patients[0].Sex)
	}
	if len(errs) != 4 {
		t.Fatalf("expected 4 exclusions, got %d: %v", len(errs), errs)
	}
	if !IsAmbiguousCategory(errs[0]) {
		t.Fatalf("expected ambiguous category for unknown gender, got %v", errs[0])
	}
	for _, err := range errs[1:] {
		if !IsMalformedRecord(err) {
			t.Fatalf("expected malformed record, got %v", err)
		}
	}
}

func TestExtractEncountersValidatesTimestamps(t *testing.T) {
	rows := []RawAdmission{
		{Row: 1, EncounterID: "e1", PatientID: "p1", AdmitTime: "2019-01-02 10:00:00", DischTime: "2019-01-05 16:00:00", AdmissionType: "emergency", Insurance: "MEDICARE", ExpireFlag: "0"},
		{Row: 2, EncounterID: "e2", PatientID: "p1", AdmitTime: "2019-02-01 10:00:00", DischTime: "2019-01-01 10:00:00", AdmissionType: "ELECTIVE", Insurance: "Private", ExpireFlag: "0"},
		{Row: 3, EncounterID: "e3", PatientID: "p2", AdmitTime: "bogus", DischTime: "2019-01-01 10:00:00", AdmissionType: "URGENT", Insurance: "Medicaid", ExpireFlag: "1"},
		{Row: 4, EncounterID: "e4", PatientID: "p2", AdmitTime: "2019-03-01 10:00:00", DischTime: "2019-03-02 10:00:00", AdmissionType: "NEWBORN", Insurance: "Medicaid", ExpireFlag: "0"},
		{Row: 5, EncounterID: "e5", PatientID: "p2", AdmitTime: "2019-03-01 10:00:00", DischTime: "2019-03-02 10:00:00", AdmissionType: "URGENT", Insurance: "Self Pay", ExpireFlag: "0"},
	}

	encounters, errs := ExtractEncounters(rows)
	if len(encounters) != 1 {
		t.Fatalf("expected 1 encounter, got %d", len(encounters))
	}
	got := encounters[0]
	if got.AdmissionType != "EMERGENCY" || got.Insurance != "Medicare" {
		t.Fatalf("expected canonical EMERGENCY/Medicare, got %s/%s", got.AdmissionType, got.Insurance)
	}
	if len(errs) != 4 {
		t.Fatalf("expected 4 exclusions, got %d: %v", len(errs), errs)
	}

	var malformed, ambiguous int
	for _, err := range errs {
		switch {
		case IsMalformedRecord(err):
			malformed++
		case IsAmbiguousCategory(err):
			ambiguous++
		}
	}
	if malformed != 2 || ambiguous != 2 {
		t.Fatalf("expected 2 malformed + 2 ambiguous, got %d + %d", malformed, ambiguous)
	}
}

func TestExtractDiagnosesUndotsCodes(t *testing.T) {
	rows := []RawDiagnosis{
		{Row: 1, EncounterID: "e1", Code: "428.0"},
		{Row: 2, EncounterID: "e1", Code: " v45.81 ", ICDVersion: "9"},
		{Row: 3, EncounterID: "", Code: "4280"},
		{Row: 4, EncounterID: "e2", Code: "  "},
	}

	diagnoses, errs := ExtractDiagnoses(rows)
	if len(diagnoses) != 2 {
		t.Fatalf("expected 2 diagnoses, got %d", len(diagnoses))
	}
	if diagnoses[0].Code != "4280" {
		t.Fatalf("expected undotted 4280, got %s", diagnoses[0].Code)
	}
	if diagnoses[1].Code != "V4581" || diagnoses[1].ICDVersion != 9 {
		t.Fatalf("expected V4581/9, got %s/%d", diagnoses[1].Code, diagnoses[1].ICDVersion)
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 exclusions, got %d", len(errs))
	}
}

func TestExtractICUStaysRejectsReversedInterval(t *testing.T) {
	rows := []RawICUStay{
		{Row: 1, EncounterID: "e1", InTime: "2019-01-02 00:00:00", OutTime: "2019-01-03 12:00:00"},
		{Row: 2, EncounterID: "e1", InTime: "2019-01-05 00:00:00", OutTime: "2019-01-04 00:00:00"},
	}

	stays, errs := ExtractICUStays(rows)
	if len(stays) != 1 {
		t.Fatalf("expected 1 stay, got %d", len(stays))
	}
	if len(errs) != 1 || !IsMalformedRecord(errs[0]) {
		t.Fatalf("expected one malformed record, got %v", errs)
	}
	want := 36 * time.Hour
	if got := stays[0].OutTime.Sub(stays[0].InTime); got != want {
		t.Fatalf("expected %v stay, got %v", want, got)
	}
}
