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
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/models"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/gateway/auth"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/gateway/middleware"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/identity"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/observability/metrics"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/serving"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/serving/predictor"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/storage"
)

func main() {
	logger.Init("predictor-service")
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
	if count, err := featureStore.Count(context.Background()); err == nil {
		logger.Log.WithField("rows", count).Info("Feature store ready")
	}

	userRepo := identity.NewRepository(db)
	if err := userRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate identity tables")
	}
	userService := identity.NewService(userRepo)
	audit := identity.NewRecorder(db)

	if cfg.AuthMode == "local" {
		if count, err := userRepo.CountUsers(context.Background()); err == nil && count == 0 {
			logger.Log.Warn("No user accounts exist; run synthgen with -seed-users to provision dev logins")
		}
	}

	servingRepo := serving.NewRepository(db)
	if err := servingRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate serving tables")
	}

	pred := predictor.NewPredictor(cfg.ArtifactDir)
	servingService := serving.NewService(featureStore, pred, servingRepo, audit)

	tokens, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to configure JWT signing")
	}

	var validator auth.TokenValidator = tokens
	if cfg.AuthMode == "oidc" {
		introspector, err := auth.NewOIDCIntrospector(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to configure OIDC introspection")
		}
		validator = introspector
		logger.Log.WithField("issuer", cfg.OIDCIssuer).Info("OIDC token verification enabled")
	}

	// Pre-warm the artifact cache whenever training publishes a new model.
	consumeCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()

	consumer := kafka.NewConsumer(cfg, cfg.ModelTrainedTopic, cfg.KafkaGroupID+"-predictor")
	go func() {
		err := consumer.Consume(consumeCtx, func(ctx context.Context, event models.Event) error {
			artifact, err := pred.Artifact()
			if err != nil {
				logger.Log.WithError(err).Warn("Model artifact not loadable after training event")
				return nil
			}
			logger.Log.WithFields(map[string]interface{}{
				"event_id": event.ID,
				"job_id":   artifact.JobID,
			}).Info("Model artifact reloaded")
			return nil
		})
		if err != nil && err != context.Canceled {
			logger.Log.WithError(err).Error("Model-trained consumer stopped")
		}
	}()

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

	identityHandler := identity.NewHTTPHandler(userService, tokens, audit)

	// Login stays outside the authenticated subrouter; everything else
	// under /api/v1 requires a bearer token.
	publicRouter := router.PathPrefix("/api/v1").Subrouter()
	identityHandler.RegisterPublic(publicRouter)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.Authenticate(validator))
	identityHandler.RegisterProtected(apiRouter)
	serving.NewHTTPHandler(servingService).Register(apiRouter)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":      cfg.ServerHost,
			"port":      cfg.ServerPort,
			"auth_mode": cfg.AuthMode,
		}).Info("Predictor Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Predictor Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	stopConsumer()
	if err := consumer.Close(); err != nil {
		logger.Log.WithError(err).Error("Failed to close Kafka consumer")
	}
	database.ClosePostgres()
	database.CloseRedis()

	logger.Log.Info("Predictor Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
