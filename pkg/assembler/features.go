package assembler

// NoPriorAdmission is the missing-value sentinel for days_since_last_admit
// on a patient's first observed encounter. Real gaps are non-negative in
// clean data; the sentinel is exactly -1 and never produced otherwise.
const NoPriorAdmission = -1.0

// FeatureNames is the model input contract, in column order. The serving
// artifact, the feature store, and the CSV writer all follow this order.
var FeatureNames = []string{
	"age_years_cleaned",
	"gender_M",
	"los_days",
	"previous_admissions",
	"days_since_last_admit",
	"diagnosis_count",
	"charlson_score",
	"procedure_count",
	"icu_stay_count",
	"icu_los_days",
	"admit_type_EMERGENCY",
	"admit_type_URGENT",
	"insurance_Medicare",
	"insurance_Private",
	"hospital_expire_flag",
}

// LabelColumn names the supervised target.
const LabelColumn = "readmitted_30d"

// FeatureRow is one retained encounter's derived features plus label.
// One-hot reference levels: ELECTIVE for admission type, Medicaid for
// insurance, F for sex.
type FeatureRow struct {
	EncounterID string `json:"encounter_id"`
	PatientID   string `json:"patient_id"`

	AgeYears           float64 `json:"age_years_cleaned"`
	GenderM            float64 `json:"gender_M"`
	LOSDays            float64 `json:"los_days"`
	PreviousAdmissions float64 `json:"previous_admissions"`
	DaysSinceLastAdmit float64 `json:"days_since_last_admit"`
	DiagnosisCount     float64 `json:"diagnosis_count"`
	CharlsonScore      float64 `json:"charlson_score"`
	ProcedureCount     float64 `json:"procedure_count"`
	ICUStayCount       float64 `json:"icu_stay_count"`
	ICULOSDays         float64 `json:"icu_los_days"`
	AdmitTypeEmergency float64 `json:"admit_type_EMERGENCY"`
	AdmitTypeUrgent    float64 `json:"admit_type_URGENT"`
	InsuranceMedicare  float64 `json:"insurance_Medicare"`
	InsurancePrivate   float64 `json:"insurance_Private"`
	HospitalExpireFlag float64 `json:"hospital_expire_flag"`

	Readmitted30d float64 `json:"readmitted_30d"`
}

// Features returns the row's values in FeatureNames order.
func (r FeatureRow) Features() []float64 {
	return []float64{
		r.AgeYears,
		r.GenderM,
		r.LOSDays,
		r.PreviousAdmissions,
		r.DaysSinceLastAdmit,
		r.DiagnosisCount,
		r.CharlsonScore,
		r.ProcedureCount,
		r.ICUStayCount,
		r.ICULOSDays,
		r.AdmitTypeEmergency,
		r.AdmitTypeUrgent,
		r.InsuranceMedicare,
		r.InsurancePrivate,
		r.HospitalExpireFlag,
	}
}

// FeatureMap returns name -> value for by-name consumers.
func (r FeatureRow) FeatureMap() map[string]float64 {
	values := r.Features()
	m := make(map[string]float64, len(values))
	for i, name := range FeatureNames {
		m[name] = values[i]
	}
	return m
}
