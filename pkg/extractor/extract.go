package extractor

import (
	"strconv"
	"strings"
	"time"
)

// Accepted timestamp layouts, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeSex canonicalizes a sex value against the closed domain {M, F}.
func NormalizeSex(v string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(v))
	if s == "M" || s == "F" {
		return s, true
	}
	return "", false
}

// NormalizeAdmissionType canonicalizes against {EMERGENCY, URGENT, ELECTIVE}.
func NormalizeAdmissionType(v string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(v))
	switch s {
	case "EMERGENCY", "URGENT", "ELECTIVE":
		return s, true
	}
	return "", false
}

// NormalizeInsurance canonicalizes against {Medicare, Medicaid, Private}.
func NormalizeInsurance(v string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "medicare":
		return "Medicare", true
	case "medicaid":
		return "Medicaid", true
	case "private":
		return "Private", true
	}
	return "", false
}

func normalizeCode(v string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(v)), ".", "")
}

// ExtractPatients validates raw patient rows. Duplicate ids keep the first
// occurrence; later rows are malformed.
func ExtractPatients(rows []RawPatient) ([]Patient, []error) {
	patients := make([]Patient, 0, len(rows))
	var errs []error
	seen := make(map[string]struct{}, len(rows))

	for _, r := range rows {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			errs = append(errs, MalformedRecordError{Table: TablePatients, Row: r.Row, Field: "patient_id", Reason: "missing identifier"})
			continue
		}
		if _, dup := seen[id]; dup {
			errs = append(errs, MalformedRecordError{Table: TablePatients, Row: r.Row, Field: "patient_id", Reason: "duplicate identifier"})
			continue
		}

		sex, ok := NormalizeSex(r.Gender)
		if !ok {
			errs = append(errs, AmbiguousCategoryError{Table: TablePatients, Row: r.Row, Field: "gender", Value: r.Gender})
			continue
		}

		dob, ok := parseTime(r.DOB)
		if !ok {
			errs = append(errs, MalformedRecordError{Table: TablePatients, Row: r.Row, Field: "dob", Reason: "unparseable timestamp"})
			continue
		}

		seen[id] = struct{}{}
		patients = append(patients, Patient{ID: id, Sex: sex, DOB: dob, Row: r.Row})
	}

	return patients, errs
}

// ExtractEncounters validates raw admission rows.
func ExtractEncounters(rows []RawAdmission) ([]Encounter, []error) {
	encounters := make([]Encounter, 0, len(rows))
	var errs []error
	seen := make(map[string]struct{}, len(rows))

	for _, r := range rows {
		id := strings.TrimSpace(r.EncounterID)
		if id == "" {
			errs = append(errs, MalformedRecordError{Table: TableAdmissions, Row: r.Row, Field: "encounter_id", Reason: "missing identifier"})
			continue
		}
		if _, dup := seen[id]; dup {
			errs = append(errs, MalformedRecordError{Table: TableAdmissions, Row: r.Row, Field: "encounter_id", Reason: "duplicate identifier"})
			continue
		}
		patientID := strings.TrimSpace(r.PatientID)
		if patientID == "" {
			errs = append(errs, MalformedRecordError{Table: TableAdmissions, Row: r.Row, Field: "patient_id", Reason: "missing identifier"})
			continue
		}

		admit, ok := parseTime(r.AdmitTime)
		if !ok {
			errs = append(errs, MalformedRecordError{Table: TableAdmissions, Row: r.Row, Field: "admittime", Reason: "unparseable timestamp"})
			continue
		}
		disch, ok := parseTime(r.DischTime)
		if !ok {
			errs = append(errs, MalformedRecordError{Table: TableAdmissions, Row: r.Row, Field: "dischtime", Reason: "unparseable timestamp"})
			continue
		}
		if disch.Before(admit) {
			errs = append(errs, MalformedRecordError{Table: TableAdmissions, Row: r.Row, Field: "dischtime", Reason: "discharge before admission"})
			continue
		}

		admType, ok := NormalizeAdmissionType(r.AdmissionType)
		if !ok {
			errs = append(errs, AmbiguousCategoryError{Table: TableAdmissions, Row: r.Row, Field: "admission_type", Value: r.AdmissionType})
			continue
		}
		insurance, ok := NormalizeInsurance(r.Insurance)
		if !ok {
			errs = append(errs, AmbiguousCategoryError{Table: TableAdmissions, Row: r.Row, Field: "insurance", Value: r.Insurance})
			continue
		}

		expire, err := strconv.ParseBool(strings.TrimSpace(r.ExpireFlag))
		if err != nil {
			errs = append(errs, MalformedRecordError{Table: TableAdmissions, Row: r.Row, Field: "hospital_expire_flag", Reason: "unparseable flag"})
			continue
		}

		seen[id] = struct{}{}
		encounters = append(encounters, Encounter{
			ID:            id,
			PatientID:     patientID,
			AdmitTime:     admit,
			DischTime:     disch,
			AdmissionType: admType,
			Insurance:     insurance,
			ExpireFlag:    expire,
			Row:           r.Row,
		})
	}

	return encounters, errs
}

// ExtractDiagnoses validates raw diagnosis rows. Codes are undotted and
// upper-cased; a missing icd_version defaults to 9.
func ExtractDiagnoses(rows []RawDiagnosis) ([]Diagnosis, []error) {
	diagnoses := make([]Diagnosis, 0, len(rows))
	var errs []error

	for _, r := range rows {
		id := strings.TrimSpace(r.EncounterID)
		if id == "" {
			errs = append(errs, MalformedRecordError{Table: TableDiagnoses, Row: r.Row, Field: "encounter_id", Reason: "missing identifier"})
			continue
		}
		code := normalizeCode(r.Code)
		if code == "" {
			errs = append(errs, MalformedRecordError{Table: TableDiagnoses, Row: r.Row, Field: "icd9_code", Reason: "missing code"})
			continue
		}

		version := 9
		if v := strings.TrimSpace(r.ICDVersion); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, MalformedRecordError{Table: TableDiagnoses, Row: r.Row, Field: "icd_version", Reason: "unparseable version"})
				continue
			}
			version = parsed
		}

		diagnoses = append(diagnoses, Diagnosis{EncounterID: id, Code: code, ICDVersion: version, Row: r.Row})
	}

	return diagnoses, errs
}

// ExtractProcedures validates raw procedure rows.
func ExtractProcedures(rows []RawProcedure) ([]Procedure, []error) {
	procedures := make([]Procedure, 0, len(rows))
	var errs []error

	for _, r := range rows {
		id := strings.TrimSpace(r.EncounterID)
		if id == "" {
			errs = append(errs, MalformedRecordError{Table: TableProcedures, Row: r.Row, Field: "encounter_id", Reason: "missing identifier"})
			continue
		}
		code := normalizeCode(r.Code)
		if code == "" {
			errs = append(errs, MalformedRecordError{Table: TableProcedures, Row: r.Row, Field: "icd9_code", Reason: "missing code"})
			continue
		}

		procedures = append(procedures, Procedure{EncounterID: id, Code: code, Row: r.Row})
	}

	return procedures, errs
}

// ExtractICUStays validates raw ICU stay rows.
func ExtractICUStays(rows []RawICUStay) ([]ICUStay, []error) {
	stays := make([]ICUStay, 0, len(rows))
	var errs []error

	for _, r := range rows {
		id := strings.TrimSpace(r.EncounterID)
		if id == "" {
			errs = append(errs, MalformedRecordError{Table: TableICUStays, Row: r.Row, Field: "encounter_id", Reason: "missing identifier"})
			continue
		}

		in, ok := parseTime(r.InTime)
		if !ok {
			errs = append(errs, MalformedRecordError{Table: TableICUStays, Row: r.Row, Field: "intime", Reason: "unparseable timestamp"})
			continue
		}
		out, ok := parseTime(r.OutTime)
		if !ok {
			errs = append(errs, MalformedRecordError{Table: TableICUStays, Row: r.Row, Field: "outtime", Reason: "unparseable timestamp"})
			continue
		}
		if out.Before(in) {
			errs = append(errs, MalformedRecordError{Table: TableICUStays, Row: r.Row, Field: "outtime", Reason: "ICU out before in"})
			continue
		}

		stays = append(stays, ICUStay{EncounterID: id, InTime: in, OutTime: out, Row: r.Row})
	}

	return stays, errs
}

// Extract runs all five table extractions and bundles the results. Exclusion
// errors come back in table order, row order within each table.
func Extract(ts *TableSet) (*Entities, []error) {
	var errs []error

	patients, e := ExtractPatients(ts.Patients)
	errs = append(errs, e...)
	encounters, e := ExtractEncounters(ts.Admissions)
	errs = append(errs, e...)
	diagnoses, e := ExtractDiagnoses(ts.Diagnoses)
	errs = append(errs, e...)
	procedures, e := ExtractProcedures(ts.Procedures)
	errs = append(errs, e...)
	stays, e := ExtractICUStays(ts.ICUStays)
	errs = append(errs, e...)

	return &Entities{
		Patients:   patients,
		Encounters: encounters,
		Diagnoses:  diagnoses,
		Procedures: procedures,
		ICUStays:   stays,
	}, errs
}
