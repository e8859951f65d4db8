package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultHTTPPort        = "8080"
	defaultTemporalAddress = "localhost:7233"
	defaultTemporalNS      = "default"
	defaultTaskQueue       = "report-review-task-queue"
	defaultMinioEndpoint   = "localhost:9000"
	defaultMinioBucket     = "reports"
)

type Config struct {
	AppEnv             string
	LogLevel           string
	HTTPPort           string
	PostgresDSN        string
	TemporalAddress    string
	TemporalNamespace  string
	TemporalTaskQueue  string
	MinioEndpoint      string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioBucket        string
	MinioUseSSL        bool
	WorkflowIDPrefix   string
	AllowedUploadBytes int64
	ReviewResync       time.Duration
}

// Load reads configuration from the environment, after merging an optional
// .env file from the working directory.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_PORT", defaultHTTPPort)
	v.SetDefault("TEMPORAL_ADDRESS", defaultTemporalAddress)
	v.SetDefault("TEMPORAL_NAMESPACE", defaultTemporalNS)
	v.SetDefault("TEMPORAL_TASK_QUEUE", defaultTaskQueue)
	v.SetDefault("MINIO_ENDPOINT", defaultMinioEndpoint)
	v.SetDefault("MINIO_BUCKET", defaultMinioBucket)
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("WORKFLOW_ID_PREFIX", "report-review")
	v.SetDefault("MAX_UPLOAD_BYTES", 10*1024*1024)
	v.SetDefault("REVIEW_RESYNC_INTERVAL", "15m")

	cfg := Config{
		AppEnv:             strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV"))),
		LogLevel:           v.GetString("LOG_LEVEL"),
		HTTPPort:           v.GetString("HTTP_PORT"),
		PostgresDSN:        v.GetString("POSTGRES_DSN"),
		TemporalAddress:    v.GetString("TEMPORAL_ADDRESS"),
		TemporalNamespace:  v.GetString("TEMPORAL_NAMESPACE"),
		TemporalTaskQueue:  v.GetString("TEMPORAL_TASK_QUEUE"),
		MinioEndpoint:      v.GetString("MINIO_ENDPOINT"),
		MinioAccessKey:     v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey:     v.GetString("MINIO_SECRET_KEY"),
		MinioBucket:        v.GetString("MINIO_BUCKET"),
		MinioUseSSL:        v.GetBool("MINIO_USE_SSL"),
		WorkflowIDPrefix:   v.GetString("WORKFLOW_ID_PREFIX"),
		AllowedUploadBytes: v.GetInt64("MAX_UPLOAD_BYTES"),
		ReviewResync:       v.GetDuration("REVIEW_RESYNC_INTERVAL"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsLocal selects the in-memory store instead of Postgres.
func (c Config) IsLocal() bool {
	return c.AppEnv == "local"
}

// RequireSharedStore fails in local mode for processes that would read
// reports from a store of their own. The in-memory store lives inside the
// api process, which also hosts the review worker there.
func (c Config) RequireSharedStore(process string) error {
	if c.IsLocal() {
		return fmt.Errorf("%s cannot run with APP_ENV=local: reports live in the api process memory, run cmd/api alone or set POSTGRES_DSN", process)
	}
	return nil
}

func (c Config) Validate() error {
	if c.PostgresDSN == "" && !c.IsLocal() {
		return errors.New("POSTGRES_DSN is required")
	}
	if c.HTTPPort == "" {
		return errors.New("HTTP_PORT is required")
	}
	if c.AllowedUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	if c.ReviewResync <= 0 {
		return errors.New("REVIEW_RESYNC_INTERVAL must be positive")
	}
	return nil
}
