package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	pipelineRunsCompleted atomic.Int64
	pipelineRunsFailed    atomic.Int64
	pipelineRowsEmitted   atomic.Int64
	pipelineRowsExcluded  atomic.Int64
	predictionsServed     atomic.Int64
	predictionsFallback   atomic.Int64
	trainingJobsCompleted atomic.Int64
	trainingJobsFailed    atomic.Int64
)

func Init() {}

func ObservePipelineRun(failed bool) {
	if failed {
		pipelineRunsFailed.Add(1)
		return
	}
	pipelineRunsCompleted.Add(1)
}

func ObservePipelineRows(emitted, excluded int) {
	pipelineRowsEmitted.Add(int64(emitted))
	pipelineRowsExcluded.Add(int64(excluded))
}

func ObservePrediction(fallback bool) {
	predictionsServed.Add(1)
	if fallback {
		predictionsFallback.Add(1)
	}
}

func ObserveTrainingJob(failed bool) {
	if failed {
		trainingJobsFailed.Add(1)
		return
	}
	trainingJobsCompleted.Add(1)
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP ehr_pipeline_runs_completed_total Number of feature pipeline runs that completed since process start.\n")
	fmt.Fprintf(w, "# TYPE ehr_pipeline_runs_completed_total counter\n")
	fmt.Fprintf(w, "ehr_pipeline_runs_completed_total %d\n", pipelineRunsCompleted.Load())

	fmt.Fprintf(w, "# HELP ehr_pipeline_runs_failed_total Number of feature pipeline runs that failed since process start.\n")
	fmt.Fprintf(w, "# TYPE ehr_pipeline_runs_failed_total counter\n")
	fmt.Fprintf(w, "ehr_pipeline_runs_failed_total %d\n", pipelineRunsFailed.Load())

	fmt.Fprintf(w, "# HELP ehr_pipeline_rows_emitted_total Number of feature rows emitted across all runs.\n")
	fmt.Fprintf(w, "# TYPE ehr_pipeline_rows_emitted_total counter\n")
	fmt.Fprintf(w, "ehr_pipeline_rows_emitted_total %d\n", pipelineRowsEmitted.Load())

	fmt.Fprintf(w, "# HELP ehr_pipeline_rows_excluded_total Number of records excluded by validation or policy across all runs.\n")
	fmt.Fprintf(w, "# TYPE ehr_pipeline_rows_excluded_total counter\n")
	fmt.Fprintf(w, "ehr_pipeline_rows_excluded_total %d\n", pipelineRowsExcluded.Load())

	fmt.Fprintf(w, "# HELP ehr_predictions_served_total Number of readmission predictions served.\n")
	fmt.Fprintf(w, "# TYPE ehr_predictions_served_total counter\n")
	fmt.Fprintf(w, "ehr_predictions_served_total %d\n", predictionsServed.Load())

	fmt.Fprintf(w, "# HELP ehr_predictions_fallback_total Number of predictions answered by the rule-based fallback scorer.\n")
	fmt.Fprintf(w, "# TYPE ehr_predictions_fallback_total counter\n")
	fmt.Fprintf(w, "ehr_predictions_fallback_total %d\n", predictionsFallback.Load())

	fmt.Fprintf(w, "# HELP ehr_training_jobs_completed_total Number of model training jobs that completed.\n")
	fmt.Fprintf(w, "# TYPE ehr_training_jobs_completed_total counter\n")
	fmt.Fprintf(w, "ehr_training_jobs_completed_total %d\n", trainingJobsCompleted.Load())

	fmt.Fprintf(w, "# HELP ehr_training_jobs_failed_total Number of model training jobs that failed.\n")
	fmt.Fprintf(w, "# TYPE ehr_training_jobs_failed_total counter\n")
	fmt.Fprintf(w, "ehr_training_jobs_failed_total %d\n", trainingJobsFailed.Load())
}
