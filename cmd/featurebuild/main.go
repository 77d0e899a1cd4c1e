package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/assembler"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/database"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/logger"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/comorbidity"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/extractor"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/pipeline"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/storage"
)

// featurebuild derives the readmission feature table in one shot, without
// Postgres, Redis or Kafka in the loop when reading CSV input. It is the
// batch twin of the pipeline service.
func main() {
	var (
		input       = flag.String("input", "", "directory of raw CSV tables (patients.csv, admissions.csv, ...)")
		dsn         = flag.String("dsn", "", "postgres DSN; read the raw tables from a database instead of CSV")
		out         = flag.String("out", "features.csv", "feature table output path")
		reportPath  = flag.String("report", "", "run report JSON output path (default: <out>.report.json)")
		charlson    = flag.String("charlson", "", "Charlson catalog YAML; empty uses the built-in catalog")
		labelWindow = flag.Float64("label-window", 30, "readmission label window in days")
		labelPolicy = flag.String("label-policy", string(assembler.LabelZero), "censored/death handling: label-zero or exclude")
		agePolicy   = flag.String("age-policy", string(assembler.AgeWinsorize), "over-ceiling age handling: winsorize or exclude")
		ageCeiling  = flag.Float64("age-ceiling", 90, "age cap in years")
		workers     = flag.Int("workers", 0, "assembly parallelism; 0 uses GOMAXPROCS")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	logger.Init("featurebuild")
	if *verbose {
		logger.Log.SetLevel(logrus.DebugLevel)
	}

	if (*input == "") == (*dsn == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -input or -dsn is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*input, *dsn, *out, *reportPath, *charlson, assembler.Policies{
		LabelWindowDays: *labelWindow,
		LabelPolicy:     assembler.LabelPolicy(*labelPolicy),
		AgePolicy:       assembler.AgePolicy(*agePolicy),
		AgeCeiling:      *ageCeiling,
	}, *workers); err != nil {
		logger.Log.WithFields(map[string]interface{}{"error": err.Error()}).Error("Feature build failed")
		os.Exit(1)
	}
}

func run(input, dsn, out, reportPath, charlson string, policies assembler.Policies, workers int) error {
	ctx := context.Background()

	catalog := comorbidity.Default()
	if charlson != "" {
		var err error
		if catalog, err = comorbidity.Load(charlson); err != nil {
			return fmt.Errorf("load charlson catalog: %w", err)
		}
	}

	var source extractor.Source
	if input != "" {
		source = extractor.NewCSVSource(input)
	} else {
		db, err := database.OpenPostgres(dsn)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		source = storage.NewRawStore(db)
	}

	engine := pipeline.NewEngine(catalog, nil, nil, workers)
	result, err := engine.Run(ctx, uuid.New(), source, policies)

	// The report is worth writing even when the run fails: an empty
	// cohort is diagnosed from its exclusion counts.
	if result != nil && result.Report != nil {
		if werr := writeReport(resolveReportPath(out, reportPath), result.Report); werr != nil && err == nil {
			err = werr
		}
	}
	if err != nil {
		if assembler.IsEmptyCohort(err) && result != nil && result.Report != nil {
			payload, _ := json.MarshalIndent(result.Report, "", "  ")
			fmt.Fprintln(os.Stderr, string(payload))
		}
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	defer f.Close()
	if err := assembler.WriteCSV(f, result.Rows); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"rows":       len(result.Rows),
		"positives":  result.Report.LabelPositives,
		"prevalence": result.Report.LabelPrevalence,
		"excluded":   result.Report.Excluded.Total,
		"output":     out,
	}).Info("Feature build completed")
	return nil
}

func resolveReportPath(out, reportPath string) string {
	if reportPath != "" {
		return reportPath
	}
	return strings.TrimSuffix(out, filepath.Ext(out)) + ".report.json"
}

func writeReport(path string, report *assembler.RunReport) error {
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
