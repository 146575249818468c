// Package config loads every runtime setting from the environment. A .env
// file is honoured when present so local runs match the container setup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all settings groups.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	AWS         AWSConfig
	GenAI       GenAIConfig
	DataJud     DataJudConfig
	Scheduler   SchedulerConfig
	Concurrency ConcurrencyConfig
	Retry       RetryConfig
}

type ServerConfig struct {
	Port              string
	CORSAllowOrigins  []string
	MaxCallsPerMinute int
}

type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AWSConfig struct {
	Region          string
	Bucket          string
	MaxUploadSizeMB int
}

type GenAIConfig struct {
	APIKey        string
	BaseURL       string
	ClassifyModel string
	ExtractModel  string
	PromptsPath   string
	RulesPath     string
}

type DataJudConfig struct {
	APIKey  string
	BaseURL string
}

type SchedulerConfig struct {
	Timezone       string
	BatchSize      int
	ExternalRPM    int
	EveryDays      int
	StaleAfterDays int
}

type ConcurrencyConfig struct {
	MaxClassifyWorkers int
	MaxExtractWorkers  int
	IAMaxInFlight      int
}

type RetryConfig struct {
	MaxAttempts int
	WaitInitial time.Duration
	WaitMax     time.Duration
	IATimeout   time.Duration
}

// Load reads the environment (and an optional .env file) into a Config.
// Missing mandatory values return an error; everything else falls back to
// the documented defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:              envString("PORT", "8080"),
			CORSAllowOrigins:  []string{envString("CORS_ALLOW_ORIGIN", "*")},
			MaxCallsPerMinute: envInt("MAX_CALLS_PER_MINUTE", 120),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			Addr:     envString("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
		AWS: AWSConfig{
			Region:          envString("AWS_REGION", "sa-east-1"),
			Bucket:          os.Getenv("S3_BUCKET"),
			MaxUploadSizeMB: envInt("MAX_UPLOAD_SIZE_MB", 25),
		},
		GenAI: GenAIConfig{
			APIKey:        os.Getenv("GOOGLE_API_KEY"),
			BaseURL:       envString("GENAI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			ClassifyModel: envString("GENAI_CLASSIFY_MODEL", "gemini-2.0-flash"),
			ExtractModel:  envString("GENAI_EXTRACT_MODEL", "gemini-2.5-flash"),
			PromptsPath:   envString("PROMPTS_PATH", "ia/prompts.yaml"),
			RulesPath:     envString("RULES_PATH", "ia/validador.txt"),
		},
		DataJud: DataJudConfig{
			APIKey:  os.Getenv("DATAJUD_API_KEY"),
			BaseURL: os.Getenv("DATAJUD_URL"),
		},
		Scheduler: SchedulerConfig{
			Timezone:       envString("SCHED_TIMEZONE", "America/Sao_Paulo"),
			BatchSize:      envInt("CRON_BATCH_SIZE", 20),
			ExternalRPM:    envInt("EXTERNAL_RPM", 60),
			EveryDays:      envInt("CRON_EVERY_DAYS", 3),
			StaleAfterDays: envInt("STALE_AFTER_DAYS", 3),
		},
		Concurrency: ConcurrencyConfig{
			MaxClassifyWorkers: envInt("MAX_CLASSIFY_WORKERS", 4),
			MaxExtractWorkers:  envInt("MAX_EXTRACT_WORKERS", 6),
			IAMaxInFlight:      envInt("IA_MAX_IN_FLIGHT", 4),
		},
		Retry: RetryConfig{
			MaxAttempts: envInt("RETRY_MAX_ATTEMPTS", 3),
			WaitInitial: envDuration("RETRY_INITIAL", 500*time.Millisecond),
			WaitMax:     envDuration("RETRY_MAX", 10*time.Second),
			IATimeout:   envDuration("IA_TIMEOUT_SECONDS", 30*time.Second),
		},
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.AWS.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET environment variable is required for document storage")
	}
	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// envDuration reads a number of seconds, fractions allowed.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	seconds, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return time.Duration(seconds * float64(time.Second))
}
