package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/assembler"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/kafka"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/logger"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/models"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/comorbidity"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/extractor"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/observability/metrics"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/storage"
)

// Engine turns raw encounter tables into the persisted feature table.
// The feature store and producer are optional; when nil the engine only
// assembles and returns the rows, which is what the CLI path uses.
type Engine struct {
	catalog     *comorbidity.Catalog
	features    *storage.FeatureStore
	producer    *kafka.Producer
	parallelism int
}

func NewEngine(catalog *comorbidity.Catalog, features *storage.FeatureStore, producer *kafka.Producer, parallelism int) *Engine {
	if catalog == nil {
		catalog = comorbidity.Default()
	}
	return &Engine{
		catalog:     catalog,
		features:    features,
		producer:    producer,
		parallelism: parallelism,
	}
}

// Result bundles the rows and the run report. The report is populated
// even when the run fails, so callers can persist exclusion counts for
// empty cohorts.
type Result struct {
	Rows   []assembler.FeatureRow
	Report *assembler.RunReport
}

func (e *Engine) Run(ctx context.Context, runID uuid.UUID, source extractor.Source, policies assembler.Policies) (*Result, error) {
	tables, err := source.Load(ctx)
	if err != nil {
		metrics.ObservePipelineRun(true)
		return nil, fmt.Errorf("load %s source: %w", source.Kind(), err)
	}

	rows, report, err := assembler.Assemble(ctx, tables, e.catalog, assembler.Options{
		Policies:    policies,
		Parallelism: e.parallelism,
		SourceKind:  source.Kind(),
	})
	if report != nil {
		metrics.ObservePipelineRows(report.RowsEmitted, report.Excluded.Total)
	}
	if err != nil {
		metrics.ObservePipelineRun(true)
		return &Result{Report: report}, err
	}

	if e.features != nil {
		if err := e.features.SaveRows(ctx, runID, rows); err != nil {
			metrics.ObservePipelineRun(true)
			return &Result{Rows: rows, Report: report}, fmt.Errorf("persist feature rows: %w", err)
		}
		e.features.WarmCache(ctx, rows)
	}

	if e.producer != nil {
		err := e.producer.PublishEvent(ctx, models.EventFeaturesReady, "pipeline-service", map[string]interface{}{
			"run_id":           runID.String(),
			"rows":             report.RowsEmitted,
			"label_prevalence": report.LabelPrevalence,
		})
		if err != nil {
			logger.Log.WithError(err).Warn("Failed to publish features-ready event")
		}
	}

	metrics.ObservePipelineRun(false)
	logger.Log.WithFields(map[string]interface{}{
		"run_id":           runID.String(),
		"source":           source.Kind(),
		"rows":             report.RowsEmitted,
		"label_prevalence": report.LabelPrevalence,
	}).Info("Feature pipeline run completed")

	return &Result{Rows: rows, Report: report}, nil
}
