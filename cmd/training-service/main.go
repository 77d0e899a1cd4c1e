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

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/config"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/database"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/kafka"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/logger"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/gateway/middleware"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/ml/linear"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/observability/metrics"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/storage"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/training"
)

func main() {
	logger.Init("training-service")
	metrics.Init()
	cfg := config.Load()

	db, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to Postgres")
	}

	// Training reads the whole feature table from Postgres; no cache client.
	featureStore := storage.NewFeatureStore(db, nil, 0)

	jobRepo := training.NewRepository(db)
	if err := jobRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate training tables")
	}

	producer := kafka.NewProducer(cfg, cfg.ModelTrainedTopic)

	defaults := linear.Options{
		Epochs:       cfg.TrainingEpochs,
		LearningRate: cfg.TrainingLearningRate,
		L2:           cfg.TrainingL2,
		Holdout:      cfg.TrainingHoldout,
		Seed:         cfg.TrainingSeed,
	}
	service, err := training.NewService(jobRepo, featureStore, producer, cfg.ArtifactDir, defaults, cfg.TrainingWorkers)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize training service")
	}

	consumeCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()

	var consumer *kafka.Consumer
	if cfg.TrainingAuto {
		consumer = kafka.NewConsumer(cfg, cfg.FeaturesReadyTopic, cfg.KafkaGroupID+"-training")
		go func() {
			logger.Log.WithField("topic", cfg.FeaturesReadyTopic).Info("Auto-retrain consumer started")
			if err := consumer.Consume(consumeCtx, service.HandleFeaturesReady); err != nil && err != context.Canceled {
				logger.Log.WithError(err).Error("Auto-retrain consumer stopped")
			}
		}()
	}

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
	training.NewHTTPHandler(service).Register(apiRouter)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, "8088"),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": "8088",
		}).Info("Training Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Training Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	stopConsumer()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Log.WithError(err).Error("Failed to close Kafka consumer")
		}
	}
	if err := producer.Close(); err != nil {
		logger.Log.WithError(err).Error("Failed to close Kafka producer")
	}
	database.ClosePostgres()

	logger.Log.Info("Training Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
