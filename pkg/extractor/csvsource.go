package extractor

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// CSVSource reads the five raw tables from a directory of CSV files with
// header rows. patients.csv and admissions.csv are required; the detail
// tables are optional and load as empty when absent. Unknown columns are
// ignored; a missing required column fails the load.
type CSVSource struct {
	dir string
}

func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir}
}

func (s *CSVSource) Kind() string { return "csv" }

func (s *CSVSource) Load(ctx context.Context) (*TableSet, error) {
	ts := &TableSet{}

	cols, rows, err := s.readTable("patients.csv", []string{"patient_id", "gender", "dob"}, true)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		ts.Patients = append(ts.Patients, RawPatient{
			Row:    i + 1,
			ID:     cell(row, cols, "patient_id"),
			Gender: cell(row, cols, "gender"),
			DOB:    cell(row, cols, "dob"),
		})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cols, rows, err = s.readTable("admissions.csv", []string{
		"encounter_id", "patient_id", "admittime", "dischtime",
		"admission_type", "insurance", "hospital_expire_flag",
	}, true)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		ts.Admissions = append(ts.Admissions, RawAdmission{
			Row:           i + 1,
			EncounterID:   cell(row, cols, "encounter_id"),
			PatientID:     cell(row, cols, "patient_id"),
			AdmitTime:     cell(row, cols, "admittime"),
			DischTime:     cell(row, cols, "dischtime"),
			AdmissionType: cell(row, cols, "admission_type"),
			Insurance:     cell(row, cols, "insurance"),
			ExpireFlag:    cell(row, cols, "hospital_expire_flag"),
		})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cols, rows, err = s.readTable("diagnoses.csv", []string{"encounter_id", "icd9_code"}, false)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		ts.Diagnoses = append(ts.Diagnoses, RawDiagnosis{
			Row:         i + 1,
			EncounterID: cell(row, cols, "encounter_id"),
			Code:        cell(row, cols, "icd9_code"),
			ICDVersion:  cell(row, cols, "icd_version"),
		})
	}

	cols, rows, err = s.readTable("procedures.csv", []string{"encounter_id", "icd9_code"}, false)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		ts.Procedures = append(ts.Procedures, RawProcedure{
			Row:         i + 1,
			EncounterID: cell(row, cols, "encounter_id"),
			Code:        cell(row, cols, "icd9_code"),
		})
	}

	cols, rows, err = s.readTable("icustays.csv", []string{"encounter_id", "intime", "outtime"}, false)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		ts.ICUStays = append(ts.ICUStays, RawICUStay{
			Row:         i + 1,
			EncounterID: cell(row, cols, "encounter_id"),
			InTime:      cell(row, cols, "intime"),
			OutTime:     cell(row, cols, "outtime"),
		})
	}

	return ts, nil
}

// readTable returns the lower-cased header index and the data rows. Rows are
// allowed to be ragged; missing cells surface as empty strings so bad rows
// are excluded individually instead of failing the whole table.
func (s *CSVSource) readTable(name string, required []string, mandatory bool) (map[string]int, [][]string, error) {
	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !mandatory {
			return map[string]int{}, nil, nil
		}
		return nil, nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("read %s: missing header row", name)
	}

	cols := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range required {
		if _, ok := cols[col]; !ok {
			return nil, nil, fmt.Errorf("read %s: missing required column %q", name, col)
		}
	}

	return cols, records[1:], nil
}

func cell(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
