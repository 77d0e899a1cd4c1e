package storage

import (
	"context"
	"fmt"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/extractor"
	"gorm.io/gorm"
)

// Raw landing tables keep source values as text; typing and validation
// happen in the extractor, identically for CSV and database input.

type RawPatientModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement;column:id"`
	PatientID string `gorm:"column:patient_id"`
	Gender    string `gorm:"column:gender"`
	DOB       string `gorm:"column:dob"`
}

func (RawPatientModel) TableName() string { return "raw_patients" }

type RawAdmissionModel struct {
	ID            uint   `gorm:"primaryKey;autoIncrement;column:id"`
	EncounterID   string `gorm:"column:encounter_id"`
	PatientID     string `gorm:"column:patient_id"`
	AdmitTime     string `gorm:"column:admittime"`
	DischTime     string `gorm:"column:dischtime"`
	AdmissionType string `gorm:"column:admission_type"`
	Insurance     string `gorm:"column:insurance"`
	ExpireFlag    string `gorm:"column:hospital_expire_flag"`
}

func (RawAdmissionModel) TableName() string { return "raw_admissions" }

type RawDiagnosisModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement;column:id"`
	EncounterID string `gorm:"column:encounter_id"`
	Code        string `gorm:"column:icd9_code"`
	ICDVersion  string `gorm:"column:icd_version"`
}

func (RawDiagnosisModel) TableName() string { return "raw_diagnoses" }

type RawProcedureModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement;column:id"`
	EncounterID string `gorm:"column:encounter_id"`
	Code        string `gorm:"column:icd9_code"`
}

func (RawProcedureModel) TableName() string { return "raw_procedures" }

type RawICUStayModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement;column:id"`
	EncounterID string `gorm:"column:encounter_id"`
	InTime      string `gorm:"column:intime"`
	OutTime     string `gorm:"column:outtime"`
}

func (RawICUStayModel) TableName() string { return "raw_icustays" }

// RawStore reads and writes the raw landing tables. It satisfies
// extractor.Source, so the pipeline consumes Postgres and CSV input through
// the same contract.
type RawStore struct {
	db *gorm.DB
}

func NewRawStore(db *gorm.DB) *RawStore {
	return &RawStore{db: db}
}

func (s *RawStore) Kind() string { return "db" }

func (s *RawStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&RawPatientModel{},
		&RawAdmissionModel{},
		&RawDiagnosisModel{},
		&RawProcedureModel{},
		&RawICUStayModel{},
	)
}

// Load pulls all five tables in insertion order and assigns row ordinals.
func (s *RawStore) Load(ctx context.Context) (*extractor.TableSet, error) {
	ts := &extractor.TableSet{}

	var patients []RawPatientModel
	if err := s.db.WithContext(ctx).Order("id asc").Find(&patients).Error; err != nil {
		return nil, fmt.Errorf("load raw patients: %w", err)
	}
	for i, m := range patients {
		ts.Patients = append(ts.Patients, extractor.RawPatient{Row: i + 1, ID: m.PatientID, Gender: m.Gender, DOB: m.DOB})
	}

	var admissions []RawAdmissionModel
	if err := s.db.WithContext(ctx).Order("id asc").Find(&admissions).Error; err != nil {
		return nil, fmt.Errorf("load raw admissions: %w", err)
	}
	for i, m := range admissions {
		ts.Admissions = append(ts.Admissions, extractor.RawAdmission{
			Row:           i + 1,
			EncounterID:   m.EncounterID,
			PatientID:     m.PatientID,
			AdmitTime:     m.AdmitTime,
			DischTime:     m.DischTime,
			AdmissionType: m.AdmissionType,
			Insurance:     m.Insurance,
			ExpireFlag:    m.ExpireFlag,
		})
	}

	var diagnoses []RawDiagnosisModel
	if err := s.db.WithContext(ctx).Order("id asc").Find(&diagnoses).Error; err != nil {
		return nil, fmt.Errorf("load raw diagnoses: %w", err)
	}
	for i, m := range diagnoses {
		ts.Diagnoses = append(ts.Diagnoses, extractor.RawDiagnosis{Row: i + 1, EncounterID: m.EncounterID, Code: m.Code, ICDVersion: m.ICDVersion})
	}

	var procedures []RawProcedureModel
	if err := s.db.WithContext(ctx).Order("id asc").Find(&procedures).Error; err != nil {
		return nil, fmt.Errorf("load raw procedures: %w", err)
	}
	for i, m := range procedures {
		ts.Procedures = append(ts.Procedures, extractor.RawProcedure{Row: i + 1, EncounterID: m.EncounterID, Code: m.Code})
	}

	var stays []RawICUStayModel
	if err := s.db.WithContext(ctx).Order("id asc").Find(&stays).Error; err != nil {
		return nil, fmt.Errorf("load raw icustays: %w", err)
	}
	for i, m := range stays {
		ts.ICUStays = append(ts.ICUStays, extractor.RawICUStay{Row: i + 1, EncounterID: m.EncounterID, InTime: m.InTime, OutTime: m.OutTime})
	}

	return ts, nil
}

// Replace swaps the landing tables for a new table set in one transaction.
// The synthetic loader writes through this.
func (s *RawStore) Replace(ctx context.Context, ts *extractor.TableSet) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&RawPatientModel{}, &RawAdmissionModel{}, &RawDiagnosisModel{},
			&RawProcedureModel{}, &RawICUStayModel{},
		} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return err
			}
		}

		patients := make([]RawPatientModel, 0, len(ts.Patients))
		for _, r := range ts.Patients {
			patients = append(patients, RawPatientModel{PatientID: r.ID, Gender: r.Gender, DOB: r.DOB})
		}
		if len(patients) > 0 {
			if err := tx.CreateInBatches(patients, 500).Error; err != nil {
				return err
			}
		}

		admissions := make([]RawAdmissionModel, 0, len(ts.Admissions))
		for _, r := range ts.Admissions {
			admissions = append(admissions, RawAdmissionModel{
				EncounterID:   r.EncounterID,
				PatientID:     r.PatientID,
				AdmitTime:     r.AdmitTime,
				DischTime:     r.DischTime,
				AdmissionType: r.AdmissionType,
				Insurance:     r.Insurance,
				ExpireFlag:    r.ExpireFlag,
			})
		}
		if len(admissions) > 0 {
			if err := tx.CreateInBatches(admissions, 500).Error; err != nil {
				return err
			}
		}

		diagnoses := make([]RawDiagnosisModel, 0, len(ts.Diagnoses))
		for _, r := range ts.Diagnoses {
			diagnoses = append(diagnoses, RawDiagnosisModel{EncounterID: r.EncounterID, Code: r.Code, ICDVersion: r.ICDVersion})
		}
		if len(diagnoses) > 0 {
			if err := tx.CreateInBatches(diagnoses, 500).Error; err != nil {
				return err
			}
		}

		procedures := make([]RawProcedureModel, 0, len(ts.Procedures))
		for _, r := range ts.Procedures {
			procedures = append(procedures, RawProcedureModel{EncounterID: r.EncounterID, Code: r.Code})
		}
		if len(procedures) > 0 {
			if err := tx.CreateInBatches(procedures, 500).Error; err != nil {
				return err
			}
		}

		stays := make([]RawICUStayModel, 0, len(ts.ICUStays))
		for _, r := range ts.ICUStays {
			stays = append(stays, RawICUStayModel{EncounterID: r.EncounterID, InTime: r.InTime, OutTime: r.OutTime})
		}
		if len(stays) > 0 {
			if err := tx.CreateInBatches(stays, 500).Error; err != nil {
				return err
			}
		}

		return nil
	})
}
