package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/assembler"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrFeatureRowNotFound = errors.New("feature row not found")

// EncounterFeatureModel is the persisted form of one feature row. Columns
// mirror the output contract, lower-cased for Postgres.
type EncounterFeatureModel struct {
	EncounterID        string    `gorm:"primaryKey;column:encounter_id"`
	PatientID          string    `gorm:"column:patient_id;index"`
	RunID              uuid.UUID `gorm:"type:uuid;column:run_id"`
	AgeYears           float64   `gorm:"column:age_years_cleaned"`
	GenderM            float64   `gorm:"column:gender_m"`
	LOSDays            float64   `gorm:"column:los_days"`
	PreviousAdmissions float64   `gorm:"column:previous_admissions"`
	DaysSinceLastAdmit float64   `gorm:"column:days_since_last_admit"`
	DiagnosisCount     float64   `gorm:"column:diagnosis_count"`
	CharlsonScore      float64   `gorm:"column:charlson_score"`
	ProcedureCount     float64   `gorm:"column:procedure_count"`
	ICUStayCount       float64   `gorm:"column:icu_stay_count"`
	ICULOSDays         float64   `gorm:"column:icu_los_days"`
	AdmitTypeEmergency float64   `gorm:"column:admit_type_emergency"`
	AdmitTypeUrgent    float64   `gorm:"column:admit_type_urgent"`
	InsuranceMedicare  float64   `gorm:"column:insurance_medicare"`
	InsurancePrivate   float64   `gorm:"column:insurance_private"`
	HospitalExpireFlag float64   `gorm:"column:hospital_expire_flag"`
	Readmitted30d      float64   `gorm:"column:readmitted_30d"`
	CreatedAt          time.Time `gorm:"column:created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (EncounterFeatureModel) TableName() string {
	return "encounter_features"
}

func (m EncounterFeatureModel) toRow() assembler.FeatureRow {
	return assembler.FeatureRow{
		EncounterID:        m.EncounterID,
		PatientID:          m.PatientID,
		AgeYears:           m.AgeYears,
		GenderM:            m.GenderM,
		LOSDays:            m.LOSDays,
		PreviousAdmissions: m.PreviousAdmissions,
		DaysSinceLastAdmit: m.DaysSinceLastAdmit,
		DiagnosisCount:     m.DiagnosisCount,
		CharlsonScore:      m.CharlsonScore,
		ProcedureCount:     m.ProcedureCount,
		ICUStayCount:       m.ICUStayCount,
		ICULOSDays:         m.ICULOSDays,
		AdmitTypeEmergency: m.AdmitTypeEmergency,
		AdmitTypeUrgent:    m.AdmitTypeUrgent,
		InsuranceMedicare:  m.InsuranceMedicare,
		InsurancePrivate:   m.InsurancePrivate,
		HospitalExpireFlag: m.HospitalExpireFlag,
		Readmitted30d:      m.Readmitted30d,
	}
}

func fromRow(runID uuid.UUID, r assembler.FeatureRow) EncounterFeatureModel {
	return EncounterFeatureModel{
		EncounterID:        r.EncounterID,
		PatientID:          r.PatientID,
		RunID:              runID,
		AgeYears:           r.AgeYears,
		GenderM:            r.GenderM,
		LOSDays:            r.LOSDays,
		PreviousAdmissions: r.PreviousAdmissions,
		DaysSinceLastAdmit: r.DaysSinceLastAdmit,
		DiagnosisCount:     r.DiagnosisCount,
		CharlsonScore:      r.CharlsonScore,
		ProcedureCount:     r.ProcedureCount,
		ICUStayCount:       r.ICUStayCount,
		ICULOSDays:         r.ICULOSDays,
		AdmitTypeEmergency: r.AdmitTypeEmergency,
		AdmitTypeUrgent:    r.AdmitTypeUrgent,
		InsuranceMedicare:  r.InsuranceMedicare,
		InsurancePrivate:   r.InsurancePrivate,
		HospitalExpireFlag: r.HospitalExpireFlag,
		Readmitted30d:      r.Readmitted30d,
	}
}

// FeatureStore persists feature rows in Postgres and keeps a hot copy in
// Redis for serving. The cache client may be nil; everything then reads
// straight from Postgres.
type FeatureStore struct {
	db       *gorm.DB
	cache    *redis.Client
	cacheTTL time.Duration
}

func NewFeatureStore(db *gorm.DB, cache *redis.Client, cacheTTL time.Duration) *FeatureStore {
	return &FeatureStore{db: db, cache: cache, cacheTTL: cacheTTL}
}

func (f *FeatureStore) AutoMigrate() error {
	return f.db.AutoMigrate(&EncounterFeatureModel{})
}

// SaveRows upserts by encounter id, so re-running a pipeline refreshes rows
// in place.
func (f *FeatureStore) SaveRows(ctx context.Context, runID uuid.UUID, rows []assembler.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := make([]EncounterFeatureModel, 0, len(rows))
	for _, r := range rows {
		batch = append(batch, fromRow(runID, r))
	}
	return f.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "encounter_id"}},
			UpdateAll: true,
		}).
		CreateInBatches(batch, 500).Error
}

// Get reads one row from Postgres.
func (f *FeatureStore) Get(ctx context.Context, encounterID string) (assembler.FeatureRow, error) {
	var m EncounterFeatureModel
	result := f.db.WithContext(ctx).First(&m, "encounter_id = ?", encounterID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return assembler.FeatureRow{}, ErrFeatureRowNotFound
	}
	if result.Error != nil {
		return assembler.FeatureRow{}, result.Error
	}
	return m.toRow(), nil
}

// All returns every stored row ordered by encounter id, the training read.
func (f *FeatureStore) All(ctx context.Context) ([]assembler.FeatureRow, error) {
	var ms []EncounterFeatureModel
	result := f.db.WithContext(ctx).Order("encounter_id asc").Find(&ms)
	if result.Error != nil {
		return nil, result.Error
	}
	rows := make([]assembler.FeatureRow, 0, len(ms))
	for _, m := range ms {
		rows = append(rows, m.toRow())
	}
	return rows, nil
}

func (f *FeatureStore) Count(ctx context.Context) (int64, error) {
	var n int64
	result := f.db.WithContext(ctx).Model(&EncounterFeatureModel{}).Count(&n)
	return n, result.Error
}

// Fetch reads through the cache: Redis first, Postgres on miss, backfilling
// the cache on the way out.
func (f *FeatureStore) Fetch(ctx context.Context, encounterID string) (assembler.FeatureRow, error) {
	if f.cache != nil {
		data, err := f.cache.Get(ctx, featureKey(encounterID)).Bytes()
		if err == nil {
			var row assembler.FeatureRow
			if err := json.Unmarshal(data, &row); err == nil {
				return row, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			logger.Log.WithError(err).Warn("Feature cache read failed")
		}
	}

	row, err := f.Get(ctx, encounterID)
	if err != nil {
		return assembler.FeatureRow{}, err
	}
	f.cacheRow(ctx, row)
	return row, nil
}

// WarmCache pushes freshly derived rows into Redis after a pipeline run.
func (f *FeatureStore) WarmCache(ctx context.Context, rows []assembler.FeatureRow) {
	if f.cache == nil {
		return
	}
	for _, r := range rows {
		f.cacheRow(ctx, r)
	}
	logger.Log.WithField("rows", len(rows)).Info("Feature cache warmed")
}

func (f *FeatureStore) cacheRow(ctx context.Context, row assembler.FeatureRow) {
	if f.cache == nil {
		return
	}
	data, err := json.Marshal(row)
	if err != nil {
		return
	}
	if err := f.cache.Set(ctx, featureKey(row.EncounterID), data, f.cacheTTL).Err(); err != nil {
		logger.Log.WithError(err).WithField("encounter_id", row.EncounterID).Warn("Feature cache write failed")
	}
}

func featureKey(encounterID string) string {
	return "features:" + encounterID
}
