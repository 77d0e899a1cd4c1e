// Package assembler joins extraction, temporal indexing, and aggregation
// into the readmission feature table: one row per retained encounter plus
// the 30-day label, with every exclusion counted by reason.
package assembler

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"time"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/aggregate"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/comorbidity"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/extractor"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/timeline"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Policies Policies
	// Parallelism bounds the per-patient worker group; <= 0 uses GOMAXPROCS.
	Parallelism int
	SourceKind  string
}

type patientResult struct {
	rows            []FeatureRow
	malformed       []extractor.MalformedRecordError
	ageExcluded     int
	labelExcluded   int
	censoredZeroed  int
	deathZeroed     int
	firstEncounters int
	positives       int
}

// Assemble derives the feature table from one raw table set. Rows come back
// sorted by encounter id ascending; re-running on identical input with
// identical policies yields identical rows. A run that retains zero
// encounters fails with EmptyCohortError, report attached.
func Assemble(ctx context.Context, ts *extractor.TableSet, catalog *comorbidity.Catalog, opts Options) ([]FeatureRow, *RunReport, error) {
	started := time.Now()
	if err := opts.Policies.Validate(); err != nil {
		return nil, nil, err
	}
	if catalog == nil {
		catalog = comorbidity.Default()
	}

	entities, extractErrs := extractor.Extract(ts)

	report := &RunReport{
		SourceKind: opts.SourceKind,
		Policies:   opts.Policies,
		TablesSeen: map[string]int{
			extractor.TablePatients:   len(ts.Patients),
			extractor.TableAdmissions: len(ts.Admissions),
			extractor.TableDiagnoses:  len(ts.Diagnoses),
			extractor.TableProcedures: len(ts.Procedures),
			extractor.TableICUStays:   len(ts.ICUStays),
		},
		EntitiesKept: map[string]int{
			extractor.TablePatients:   len(entities.Patients),
			extractor.TableAdmissions: len(entities.Encounters),
			extractor.TableDiagnoses:  len(entities.Diagnoses),
			extractor.TableProcedures: len(entities.Procedures),
			extractor.TableICUStays:   len(entities.ICUStays),
		},
		StartedAt: started,
	}

	for _, err := range extractErrs {
		var me extractor.MalformedRecordError
		var ae extractor.AmbiguousCategoryError
		switch {
		case errors.As(err, &me):
			report.Excluded.addMalformed(me.Table, me.Field)
		case errors.As(err, &ae):
			report.Excluded.addAmbiguous(ae.Table, ae.Field, ae.Value)
		}
	}

	patientByID := make(map[string]extractor.Patient, len(entities.Patients))
	for _, p := range entities.Patients {
		patientByID[p.ID] = p
	}

	// Encounters joining no patient cannot produce age or sex; they are
	// excluded here. Policy exclusions later never remove an encounter from
	// the index, so admission history and labels see the full sequence.
	joined := make([]extractor.Encounter, 0, len(entities.Encounters))
	for _, e := range entities.Encounters {
		if _, ok := patientByID[e.PatientID]; !ok {
			report.Excluded.UnknownPatient++
			report.Excluded.Total++
			continue
		}
		joined = append(joined, e)
	}

	ix := timeline.Build(joined)
	agg := aggregate.New(catalog, entities.Diagnoses, entities.Procedures, entities.ICUStays)

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	patients := ix.Patients()
	results := make([]patientResult, len(patients))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, pid := range patients {
		i, pid := i, pid
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = assemblePatient(patientByID[pid], ix, agg, opts.Policies)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, report, err
	}

	var rows []FeatureRow
	for _, res := range results {
		rows = append(rows, res.rows...)
		for _, me := range res.malformed {
			report.Excluded.addMalformed(me.Table, me.Field)
		}
		report.Excluded.Age += res.ageExcluded
		report.Excluded.Label += res.labelExcluded
		report.Excluded.Total += res.ageExcluded + res.labelExcluded
		report.CensoredZeroed += res.censoredZeroed
		report.DeathZeroed += res.deathZeroed
		report.FirstEncounters += res.firstEncounters
		report.LabelPositives += res.positives
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].EncounterID < rows[j].EncounterID })

	report.RowsEmitted = len(rows)
	if len(rows) > 0 {
		report.LabelPrevalence = float64(report.LabelPositives) / float64(len(rows))
	}
	report.DurationMS = time.Since(started).Milliseconds()

	if len(rows) == 0 {
		return nil, report, EmptyCohortError{Seen: len(ts.Admissions), Excluded: report.Excluded.Total}
	}
	return rows, report, nil
}

func assemblePatient(p extractor.Patient, ix *timeline.Index, agg *aggregate.Aggregator, pol Policies) patientResult {
	var res patientResult

	for _, e := range ix.Encounters(p.ID) {
		age := ageYears(p.DOB, e.AdmitTime)
		if age < 0 {
			res.malformed = append(res.malformed, extractor.MalformedRecordError{
				Table: extractor.TableAdmissions, Row: e.Row, Field: "age", Reason: "negative age at admission",
			})
			continue
		}
		if age > pol.AgeCeiling {
			if pol.AgePolicy == AgeExclude {
				res.ageExcluded++
				continue
			}
			age = pol.AgeCeiling
		}

		row := FeatureRow{
			EncounterID:        e.ID,
			PatientID:          e.PatientID,
			AgeYears:           age,
			GenderM:            indicator(p.Sex == "M"),
			LOSDays:            aggregate.LOSDays(e),
			DiagnosisCount:     float64(agg.DiagnosisCount(e.ID)),
			CharlsonScore:      float64(agg.CharlsonScore(e.ID)),
			ProcedureCount:     float64(agg.ProcedureCount(e.ID)),
			ICUStayCount:       float64(agg.ICUStayCount(e.ID)),
			ICULOSDays:         agg.ICULOSDays(e.ID),
			AdmitTypeEmergency: indicator(e.AdmissionType == "EMERGENCY"),
			AdmitTypeUrgent:    indicator(e.AdmissionType == "URGENT"),
			InsuranceMedicare:  indicator(e.Insurance == "Medicare"),
			InsurancePrivate:   indicator(e.Insurance == "Private"),
			HospitalExpireFlag: indicator(e.ExpireFlag),
		}

		prior, _ := ix.PriorAdmissions(e.ID)
		row.PreviousAdmissions = float64(prior)

		if gap, ok := ix.DaysSinceLastAdmit(e.ID); ok {
			row.DaysSinceLastAdmit = gap
		} else {
			row.DaysSinceLastAdmit = NoPriorAdmission
			res.firstEncounters++
		}

		if e.ExpireFlag {
			// no readmission after in-hospital death
			if pol.LabelPolicy == LabelExclude {
				res.labelExcluded++
				continue
			}
			res.deathZeroed++
		} else {
			status, _ := ix.ReadmissionStatus(e.ID, pol.LabelWindowDays)
			switch status {
			case timeline.Readmitted:
				row.Readmitted30d = 1
				res.positives++
			case timeline.Censored:
				if pol.LabelPolicy == LabelExclude {
					res.labelExcluded++
					continue
				}
				res.censoredZeroed++
			}
		}

		res.rows = append(res.rows, row)
	}

	return res
}

func ageYears(dob, at time.Time) float64 {
	return at.Sub(dob).Hours() / 24 / 365.25
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
