package extractor

import (
	"context"
	"time"
)

// Typed entities produced by extraction. Row carries the source ordinal so
// later stages can attribute exclusions to the originating record.

type Patient struct {
	ID  string
	Sex string // "M" or "F"
	DOB time.Time
	Row int
}

type Encounter struct {
	ID            string
	PatientID     string
	AdmitTime     time.Time
	DischTime     time.Time
	AdmissionType string // EMERGENCY, URGENT, ELECTIVE
	Insurance     string // Medicare, Medicaid, Private
	ExpireFlag    bool   // died in hospital
	Row           int
}

type Diagnosis struct {
	EncounterID string
	Code        string // undotted, upper-cased ICD code
	ICDVersion  int
	Row         int
}

type Procedure struct {
	EncounterID string
	Code        string
	Row         int
}

type ICUStay struct {
	EncounterID string
	InTime      time.Time
	OutTime     time.Time
	Row         int
}

// Entities bundles everything extracted from one table set.
type Entities struct {
	Patients   []Patient
	Encounters []Encounter
	Diagnoses  []Diagnosis
	Procedures []Procedure
	ICUStays   []ICUStay
}

// Raw rows as read from a source, all fields untyped. Row is the 1-based
// data-row ordinal within the source table.

type RawPatient struct {
	Row    int
	ID     string
	Gender string
	DOB    string
}

type RawAdmission struct {
	Row           int
	EncounterID   string
	PatientID     string
	AdmitTime     string
	DischTime     string
	AdmissionType string
	Insurance     string
	ExpireFlag    string
}

type RawDiagnosis struct {
	Row         int
	EncounterID string
	Code        string
	ICDVersion  string
}

type RawProcedure struct {
	Row         int
	EncounterID string
	Code        string
}

type RawICUStay struct {
	Row         int
	EncounterID string
	InTime      string
	OutTime     string
}

// TableSet is one cohort's worth of raw tables.
type TableSet struct {
	Patients   []RawPatient
	Admissions []RawAdmission
	Diagnoses  []RawDiagnosis
	Procedures []RawProcedure
	ICUStays   []RawICUStay
}

// Source loads raw tables from somewhere concrete (CSV directory, Postgres).
type Source interface {
	Load(ctx context.Context) (*TableSet, error)
	Kind() string
}

// Table names used in exclusion accounting.
const (
	TablePatients   = "patients"
	TableAdmissions = "admissions"
	TableDiagnoses  = "diagnoses"
	TableProcedures = "procedures"
	TableICUStays   = "icustays"
)
