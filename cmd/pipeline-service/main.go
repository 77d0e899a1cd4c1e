package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/assembler"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/config"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/database"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/kafka"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/logger"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/comorbidity"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/extractor"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/gateway/middleware"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/observability/metrics"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/pipeline"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/storage"
)

func main() {
	logger.Init("pipeline-service")
	metrics.Init()
	cfg := config.Load()

	db, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to Postgres")
	}
	redisClient := database.GetRedis(cfg)

	featureStore := storage.NewFeatureStore(db, redisClient, cfg.FeatureCacheTTL)
	if err := featureStore.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate feature tables")
	}
	rawStore := storage.NewRawStore(db)
	if err := rawStore.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate raw tables")
	}
	runRepo := pipeline.NewRepository(db)
	if err := runRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate pipeline tables")
	}

	catalog := comorbidity.Default()
	if cfg.CharlsonCatalogPath != "" {
		if catalog, err = comorbidity.Load(cfg.CharlsonCatalogPath); err != nil {
			logger.Log.WithError(err).Fatal("Failed to load Charlson catalog")
		}
	}

	producer := kafka.NewProducer(cfg, cfg.FeaturesReadyTopic)

	engine := pipeline.NewEngine(catalog, featureStore, producer, cfg.AssemblyParallelism)
	defaults := assembler.Policies{
		LabelWindowDays: float64(cfg.LabelWindowDays),
		LabelPolicy:     assembler.LabelPolicy(cfg.LabelPolicy),
		AgePolicy:       assembler.AgePolicy(cfg.AgePolicy),
		AgeCeiling:      cfg.AgeCeiling,
	}
	// Raw tables normally live in Postgres; RAW_DATA_DIR points runs at a
	// mounted CSV directory instead.
	var source extractor.Source = rawStore
	if cfg.RawDataDir != "" {
		source = extractor.NewCSVSource(cfg.RawDataDir)
		logger.Log.WithField("dir", cfg.RawDataDir).Info("Pipeline reading raw tables from CSV")
	}
	service := pipeline.NewService(runRepo, engine, source, defaults, cfg.PipelineWorkers)

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS)
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))
	router.Use(middleware.RateLimit(50, 100))

	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods("GET")

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	pipeline.NewHTTPHandler(service).Register(apiRouter)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, "8085"),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": "8085",
		}).Info("Pipeline Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Pipeline Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	if err := producer.Close(); err != nil {
		logger.Log.WithError(err).Error("Failed to close Kafka producer")
	}
	database.ClosePostgres()
	database.CloseRedis()

	logger.Log.Info("Pipeline Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
