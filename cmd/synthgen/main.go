package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/database"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/logger"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/identity"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/serving"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/storage"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/synthetic"
)

// synthgen fabricates a PHI-free cohort so the whole pipeline can run
// end to end on a laptop: CSV output feeds featurebuild, -db loads the
// raw tables the pipeline service reads.
func main() {
	var (
		patients  = flag.Int("patients", 500, "number of patients to generate")
		seed      = flag.Int64("seed", 42, "generator seed; the same seed reproduces the same cohort")
		dirty     = flag.Bool("dirty", false, "include deliberately malformed and out-of-domain rows")
		out       = flag.String("out", "", "write the cohort as a CSV directory")
		dsn       = flag.String("db", "", "postgres DSN; load the cohort into the raw tables")
		seedUsers = flag.Bool("seed-users", false, "with -db: create dev users and sample ward tasks")
	)
	flag.Parse()

	logger.Init("synthgen")

	if (*out == "") == (*dsn == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -out or -db is required")
		flag.Usage()
		os.Exit(2)
	}
	if *seedUsers && *dsn == "" {
		fmt.Fprintln(os.Stderr, "-seed-users requires -db")
		os.Exit(2)
	}

	opts := synthetic.Options{Patients: *patients, Seed: *seed, Dirty: *dirty}
	if err := run(opts, *out, *dsn, *seedUsers); err != nil {
		logger.Log.WithFields(map[string]interface{}{"error": err.Error()}).Error("Synthetic generation failed")
		os.Exit(1)
	}
}

func run(opts synthetic.Options, out, dsn string, seedUsers bool) error {
	ctx := context.Background()
	ts := synthetic.NewGenerator(opts).Generate()

	if out != "" {
		if err := synthetic.WriteCSV(out, ts); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		logger.Log.WithFields(map[string]interface{}{
			"patients":   len(ts.Patients),
			"admissions": len(ts.Admissions),
			"dir":        out,
		}).Info("Synthetic cohort written")
		return nil
	}

	db, err := database.OpenPostgres(dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}

	raw := storage.NewRawStore(db)
	if err := raw.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate raw tables: %w", err)
	}
	if err := raw.Replace(ctx, ts); err != nil {
		return fmt.Errorf("load raw tables: %w", err)
	}
	logger.Log.WithFields(map[string]interface{}{
		"patients":   len(ts.Patients),
		"admissions": len(ts.Admissions),
	}).Info("Synthetic cohort loaded")

	if !seedUsers {
		return nil
	}

	users := identity.NewRepository(db)
	if err := users.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate identity tables: %w", err)
	}
	if err := identity.NewService(users).EnsureSeedUsers(ctx, synthetic.SeedUsers()); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}

	tasks := serving.NewRepository(db)
	if err := tasks.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate serving tables: %w", err)
	}
	existing, err := tasks.ListTasks(ctx, "")
	if err != nil {
		return fmt.Errorf("list ward tasks: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, seedTask := range synthetic.SampleTasks(ts) {
		task := &serving.WardTaskModel{
			ID:          uuid.New(),
			EncounterID: seedTask.EncounterID,
			Description: seedTask.Description,
			Status:      serving.TaskOpen,
			CreatedBy:   "synthgen",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tasks.CreateTask(ctx, task); err != nil {
			return fmt.Errorf("seed ward task: %w", err)
		}
	}
	logger.Log.Info("Seed users and ward tasks created")
	return nil
}
