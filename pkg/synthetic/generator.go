package synthetic

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/extractor"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	dateLayout      = "2006-01-02"
)

// Options controls the generated cohort. The same seed always yields
// the same tables.
type Options struct {
	Patients int
	Seed     int64
	Dirty    bool
}

// Generator produces a MIMIC-shaped synthetic cohort: admission mix,
// stay lengths and readmission gaps roughly match the real data the
// pipeline was designed for, without any PHI.
type Generator struct {
	opts Options
	rng  *rand.Rand
}

func NewGenerator(opts Options) *Generator {
	if opts.Patients <= 0 {
		opts.Patients = 500
	}
	return &Generator{opts: opts, rng: rand.New(rand.NewSource(opts.Seed))}
}

// Diagnosis pools. The first carries Charlson-mapped ICD-9 codes so
// generated cohorts exercise the comorbidity scorer; the second is
// common non-Charlson noise.
var charlsonPool = []string{
	"41071", "4280", "44389", "4373", "2900", "49121", "7140", "53170",
	"5712", "25000", "25060", "34460", "58530", "1961", "20280", "5723",
	"1983", "042",
}

var commonPool = []string{
	"4019", "2724", "2859", "30000", "78650", "486", "5990", "27800",
	"311", "53081", "41401", "2768",
}

var procedurePool = []string{
	"3961", "9904", "966", "3893", "8856", "4513", "9671", "3995",
}

func (g *Generator) Generate() *extractor.TableSet {
	ts := &extractor.TableSet{}
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	encounterSeq := 0

	for i := 0; i < g.opts.Patients; i++ {
		patientID := fmt.Sprintf("P%05d", i+1)
		sex := "F"
		if g.rng.Float64() < 0.54 {
			sex = "M"
		}
		age := 18 + g.rng.Float64()*77
		firstAdmit := base.Add(time.Duration(g.rng.Intn(540*24)) * time.Hour)
		dob := firstAdmit.AddDate(0, 0, -int(age*365.25))

		ts.Patients = append(ts.Patients, extractor.RawPatient{
			Row:    len(ts.Patients) + 1,
			ID:     patientID,
			Gender: sex,
			DOB:    dob.Format(dateLayout),
		})

		encounters := 1
		for encounters < 6 && g.rng.Float64() < 0.25 {
			encounters++
		}

		admit := firstAdmit
		for e := 0; e < encounters; e++ {
			encounterSeq++
			encounterID := fmt.Sprintf("E%06d", encounterSeq)

			losDays := math.Exp(g.rng.NormFloat64()*0.8 + 1.1)
			losDays = clamp(losDays, 0.25, 60)
			disch := admit.Add(time.Duration(losDays * 24 * float64(time.Hour)))
			died := g.rng.Float64() < 0.03

			ts.Admissions = append(ts.Admissions, extractor.RawAdmission{
				Row:           len(ts.Admissions) + 1,
				EncounterID:   encounterID,
				PatientID:     patientID,
				AdmitTime:     admit.Format(timestampLayout),
				DischTime:     disch.Format(timestampLayout),
				AdmissionType: g.admissionType(),
				Insurance:     g.insurance(),
				ExpireFlag:    boolFlag(died),
			})

			g.addDiagnoses(ts, encounterID, age)
			g.addProcedures(ts, encounterID)
			g.addICUStay(ts, encounterID, admit, losDays)

			if died {
				break
			}

			gapDays := math.Exp(g.rng.NormFloat64()*1.0 + 3.8)
			gapDays = clamp(gapDays, 1, 365)
			admit = disch.Add(time.Duration(gapDays * 24 * float64(time.Hour)))
		}
	}

	if g.opts.Dirty {
		g.appendDirty(ts)
	}
	return ts
}

func (g *Generator) admissionType() string {
	r := g.rng.Float64()
	switch {
	case r < 0.92:
		return "EMERGENCY"
	case r < 0.98:
		return "ELECTIVE"
	default:
		return "URGENT"
	}
}

func (g *Generator) insurance() string {
	r := g.rng.Float64()
	switch {
	case r < 0.48:
		return "Medicare"
	case r < 0.86:
		return "Private"
	default:
		return "Medicaid"
	}
}

func (g *Generator) addDiagnoses(ts *extractor.TableSet, encounterID string, age float64) {
	count := 3 + g.rng.Intn(9)
	pCharlson := 0.15 + age/300
	for d := 0; d < count; d++ {
		var code string
		if g.rng.Float64() < pCharlson {
			code = charlsonPool[g.rng.Intn(len(charlsonPool))]
		} else {
			code = commonPool[g.rng.Intn(len(commonPool))]
		}
		ts.Diagnoses = append(ts.Diagnoses, extractor.RawDiagnosis{
			Row:         len(ts.Diagnoses) + 1,
			EncounterID: encounterID,
			Code:        code,
			ICDVersion:  "9",
		})
	}
}

func (g *Generator) addProcedures(ts *extractor.TableSet, encounterID string) {
	if g.rng.Float64() >= 0.6 {
		return
	}
	count := 1 + g.rng.Intn(3)
	for p := 0; p < count; p++ {
		ts.Procedures = append(ts.Procedures, extractor.RawProcedure{
			Row:         len(ts.Procedures) + 1,
			EncounterID: encounterID,
			Code:        procedurePool[g.rng.Intn(len(procedurePool))],
		})
	}
}

func (g *Generator) addICUStay(ts *extractor.TableSet, encounterID string, admit time.Time, losDays float64) {
	if g.rng.Float64() >= 0.3 {
		return
	}
	offset := losDays * 0.1 * g.rng.Float64()
	stay := losDays * (0.2 + 0.4*g.rng.Float64())
	in := admit.Add(time.Duration(offset * 24 * float64(time.Hour)))
	out := in.Add(time.Duration(stay * 24 * float64(time.Hour)))
	ts.ICUStays = append(ts.ICUStays, extractor.RawICUStay{
		Row:         len(ts.ICUStays) + 1,
		EncounterID: encounterID,
		InTime:      in.Format(timestampLayout),
		OutTime:     out.Format(timestampLayout),
	})
}

// appendDirty adds deterministic bad rows covering every validation
// path: malformed ids and timestamps, unknown categories, inverted
// intervals, and a birth date after admission.
func (g *Generator) appendDirty(ts *extractor.TableSet) {
	ts.Patients = append(ts.Patients,
		extractor.RawPatient{Row: len(ts.Patients) + 1, ID: "", Gender: "M", DOB: "1970-01-01"},
		extractor.RawPatient{Row: len(ts.Patients) + 2, ID: "PDIRTY1", Gender: "F", DOB: "not-a-date"},
		extractor.RawPatient{Row: len(ts.Patients) + 3, ID: "PDIRTY2", Gender: "U", DOB: "1960-05-01"},
		extractor.RawPatient{Row: len(ts.Patients) + 4, ID: "P00001", Gender: "M", DOB: "1950-01-01"},
		extractor.RawPatient{Row: len(ts.Patients) + 5, ID: "PDIRTY3", Gender: "F", DOB: "1948-03-15"},
		extractor.RawPatient{Row: len(ts.Patients) + 6, ID: "PDIRTY4", Gender: "M", DOB: "2050-01-01"},
	)

	ts.Admissions = append(ts.Admissions,
		extractor.RawAdmission{
			Row: len(ts.Admissions) + 1, EncounterID: "EDIRTY1", PatientID: "PDIRTY3",
			AdmitTime: "2019-02-01 10:00:00", DischTime: "2019-02-04 09:00:00",
			AdmissionType: "EMERGENCY", Insurance: "Self Pay", ExpireFlag: "0",
		},
		extractor.RawAdmission{
			Row: len(ts.Admissions) + 2, EncounterID: "EDIRTY2", PatientID: "PDIRTY3",
			AdmitTime: "yesterday", DischTime: "2019-03-04 09:00:00",
			AdmissionType: "EMERGENCY", Insurance: "Medicare", ExpireFlag: "0",
		},
		extractor.RawAdmission{
			Row: len(ts.Admissions) + 3, EncounterID: "EDIRTY3", PatientID: "PDIRTY3",
			AdmitTime: "2019-04-10 12:00:00", DischTime: "2019-04-08 12:00:00",
			AdmissionType: "ELECTIVE", Insurance: "Private", ExpireFlag: "0",
		},
		extractor.RawAdmission{
			Row: len(ts.Admissions) + 4, EncounterID: "EDIRTY4", PatientID: "PDIRTY3",
			AdmitTime: "2019-05-01 08:00:00", DischTime: "2019-05-03 16:00:00",
			AdmissionType: "NEWBORN", Insurance: "Medicare", ExpireFlag: "0",
		},
		extractor.RawAdmission{
			Row: len(ts.Admissions) + 5, EncounterID: "EDIRTY5", PatientID: "PDIRTY4",
			AdmitTime: "2019-06-01 08:00:00", DischTime: "2019-06-05 12:00:00",
			AdmissionType: "EMERGENCY", Insurance: "Medicare", ExpireFlag: "0",
		},
	)

	ts.Diagnoses = append(ts.Diagnoses, extractor.RawDiagnosis{
		Row: len(ts.Diagnoses) + 1, EncounterID: "", Code: "4280", ICDVersion: "9",
	})

	ts.ICUStays = append(ts.ICUStays, extractor.RawICUStay{
		Row: len(ts.ICUStays) + 1, EncounterID: "EDIRTY1",
		InTime: "2019-02-03 10:00:00", OutTime: "2019-02-02 10:00:00",
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// WriteCSV materializes the table set as the CSV directory layout the
// batch CLI and the csv source read.
func WriteCSV(dir string, ts *extractor.TableSet) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	patients := [][]string{{"patient_id", "gender", "dob"}}
	for _, p := range ts.Patients {
		patients = append(patients, []string{p.ID, p.Gender, p.DOB})
	}
	if err := writeTable(dir, "patients.csv", patients); err != nil {
		return err
	}

	admissions := [][]string{{"encounter_id", "patient_id", "admittime", "dischtime", "admission_type", "insurance", "hospital_expire_flag"}}
	for _, a := range ts.Admissions {
		admissions = append(admissions, []string{a.EncounterID, a.PatientID, a.AdmitTime, a.DischTime, a.AdmissionType, a.Insurance, a.ExpireFlag})
	}
	if err := writeTable(dir, "admissions.csv", admissions); err != nil {
		return err
	}

	diagnoses := [][]string{{"encounter_id", "icd9_code", "icd_version"}}
	for _, d := range ts.Diagnoses {
		diagnoses = append(diagnoses, []string{d.EncounterID, d.Code, d.ICDVersion})
	}
	if err := writeTable(dir, "diagnoses.csv", diagnoses); err != nil {
		return err
	}

	procedures := [][]string{{"encounter_id", "icd9_code"}}
	for _, p := range ts.Procedures {
		procedures = append(procedures, []string{p.EncounterID, p.Code})
	}
	if err := writeTable(dir, "procedures.csv", procedures); err != nil {
		return err
	}

	stays := [][]string{{"encounter_id", "intime", "outtime"}}
	for _, s := range ts.ICUStays {
		stays = append(stays, []string{s.EncounterID, s.InTime, s.OutTime})
	}
	return writeTable(dir, "icustays.csv", stays)
}

func writeTable(dir, name string, rows [][]string) error {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
