package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost       string
	RedisPort       string
	RedisPassword   string
	RedisDB         int
	FeatureCacheTTL time.Duration

	// Kafka
	KafkaBrokers       []string
	KafkaGroupID       string
	FeaturesReadyTopic string
	ModelTrainedTopic  string

	// Pipeline
	PipelineWorkers     int
	AssemblyParallelism int
	LabelWindowDays     int
	LabelPolicy         string
	AgePolicy           string
	AgeCeiling          float64
	CharlsonCatalogPath string
	RawDataDir          string

	// Training
	ArtifactDir          string
	TrainingWorkers      int
	TrainingAuto         bool
	TrainingEpochs       int
	TrainingLearningRate float64
	TrainingL2           float64
	TrainingHoldout      float64
	TrainingSeed         int64

	// Auth
	AuthMode         string
	JWTSecret        string
	JWTIssuer        string
	JWTAudience      string
	JWTTTL           time.Duration
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "ehr"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "ehr123"),
		PostgresDB:       getEnv("POSTGRES_DB", "ehr"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:       getEnv("REDIS_HOST", "localhost"),
		RedisPort:       getEnv("REDIS_PORT", "6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getIntEnv("REDIS_DB", 0),
		FeatureCacheTTL: getDuration("FEATURE_CACHE_TTL", 15*time.Minute),

		KafkaBrokers:       getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "ehr-predictor"),
		FeaturesReadyTopic: getEnv("KAFKA_TOPIC_FEATURES_READY", "pipeline.features.ready"),
		ModelTrainedTopic:  getEnv("KAFKA_TOPIC_MODEL_TRAINED", "training.model.trained"),

		PipelineWorkers:     getIntEnv("PIPELINE_WORKERS", 2),
		AssemblyParallelism: getIntEnv("ASSEMBLY_PARALLELISM", 4),
		LabelWindowDays:     getIntEnv("LABEL_WINDOW_DAYS", 30),
		LabelPolicy:         getEnv("LABEL_POLICY", "label-zero"),
		AgePolicy:           getEnv("AGE_POLICY", "winsorize"),
		AgeCeiling:          getFloatEnv("AGE_CEILING", 90),
		CharlsonCatalogPath: getEnv("CHARLSON_CATALOG_PATH", ""),
		RawDataDir:          getEnv("RAW_DATA_DIR", ""),

		ArtifactDir:          getEnv("ARTIFACT_DIR", "./artifacts"),
		TrainingWorkers:      getIntEnv("TRAINING_WORKERS", 1),
		TrainingAuto:         getBoolEnv("TRAINING_AUTO", false),
		TrainingEpochs:       getIntEnv("TRAINING_EPOCHS", 400),
		TrainingLearningRate: getFloatEnv("TRAINING_LEARNING_RATE", 0.1),
		TrainingL2:           getFloatEnv("TRAINING_L2", 0.001),
		TrainingHoldout:      getFloatEnv("TRAINING_HOLDOUT", 0.2),
		TrainingSeed:         int64(getIntEnv("TRAINING_SEED", 42)),

		AuthMode:         getEnv("AUTH_MODE", "local"),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:        getEnv("JWT_ISSUER", "ehr-predictor"),
		JWTAudience:      getEnv("JWT_AUDIENCE", "ehr-api"),
		JWTTTL:           getDuration("JWT_TTL", 30*time.Minute),
		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
