package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/clintrovert/ourstreet/pkg/types"
)

// Gemini's OpenAI-compatible chat endpoint
const defaultAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// AIConfig configures the generative-text model
type AIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
}

// TwitterConfig holds the four OAuth1 credentials plus endpoint overrides
type TwitterConfig struct {
	APIKey        string
	APISecret     string
	AccessToken   string
	AccessSecret  string
	APIBaseURL    string
	UploadBaseURL string
}

// Complete reports whether all four credentials are present
func (c TwitterConfig) Complete() bool {
	return c.APIKey != "" && c.APISecret != "" && c.AccessToken != "" && c.AccessSecret != ""
}

// AutoPostConfig controls posting of newly created issues
type AutoPostConfig struct {
	Enabled      bool
	AutoApprove  bool
	Priorities   []types.Priority
	PollInterval time.Duration
	PostDelay    time.Duration
}

// TemporalConfig configures the durable batch runner
type TemporalConfig struct {
	Enabled   bool
	Address   string
	Namespace string
	TaskQueue string
}

// Config is the full service configuration
type Config struct {
	AI                AIConfig
	Twitter           TwitterConfig
	AutoPost          AutoPostConfig
	Temporal          TemporalConfig
	DatabaseURL       string
	RedisURL          string
	RESTPort          string
	GRPCPort          string
	WorkerMetricsPort string
	AdminToken        string
	LogLevel          string
}

// Load reads .env files, if any, and then the process environment
func Load(logger *zap.Logger) *Config {
	loadEnvFiles(logger)

	cfg := &Config{
		AI: AIConfig{
			APIKey:      firstEnv("GEMINI_API_KEY", "OPENAI_API_KEY"),
			Model:       getEnv("AI_MODEL", "gemini-2.0-flash"),
			BaseURL:     getEnv("AI_BASE_URL", defaultAIBaseURL),
			Temperature: float32(getEnvFloat(logger, "AI_TEMPERATURE", 0.7)),
		},
		Twitter: TwitterConfig{
			APIKey:        firstEnv("TWITTER_API_KEY", "X_API_KEY"),
			APISecret:     firstEnv("TWITTER_API_SECRET", "X_API_SECRET"),
			AccessToken:   firstEnv("TWITTER_ACCESS_TOKEN", "X_ACCESS_TOKEN"),
			AccessSecret:  firstEnv("TWITTER_ACCESS_SECRET", "X_ACCESS_SECRET"),
			APIBaseURL:    getEnv("TWITTER_API_BASE_URL", "https://api.twitter.com"),
			UploadBaseURL: getEnv("TWITTER_UPLOAD_BASE_URL", "https://upload.twitter.com"),
		},
		AutoPost: AutoPostConfig{
			Enabled:      getEnvBool(logger, "ENABLE_SOCIAL_MEDIA_AUTO_POST", false),
			AutoApprove:  getEnvBool(logger, "SOCIAL_MEDIA_AUTO_APPROVE", false),
			Priorities:   types.ParsePriorities(getEnv("SOCIAL_MEDIA_POST_PRIORITIES", "high,critical")),
			PollInterval: getEnvDuration(logger, "SOCIAL_MEDIA_POLL_INTERVAL", time.Minute),
			PostDelay:    getEnvDuration(logger, "SOCIAL_MEDIA_POST_DELAY", types.DefaultBatchDelay),
		},
		Temporal: TemporalConfig{
			Enabled:   getEnvBool(logger, "TEMPORAL_ENABLED", false),
			Address:   getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
			Namespace: getEnv("TEMPORAL_NAMESPACE", "default"),
			TaskQueue: getEnv("TASK_QUEUE", "social-posting-queue"),
		},
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		RESTPort:          getEnv("REST_PORT", "8080"),
		GRPCPort:          getEnv("GRPC_PORT", "9090"),
		WorkerMetricsPort: getEnv("WORKER_METRICS_PORT", "9091"),
		AdminToken:        getEnv("ADMIN_API_TOKEN", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	if !cfg.Twitter.Complete() {
		logger.Warn("X/Twitter credentials not configured, social media posting disabled",
			zap.Strings("required", []string{
				"TWITTER_API_KEY (or X_API_KEY)",
				"TWITTER_API_SECRET (or X_API_SECRET)",
				"TWITTER_ACCESS_TOKEN (or X_ACCESS_TOKEN)",
				"TWITTER_ACCESS_SECRET (or X_ACCESS_SECRET)",
			}),
		)
	}

	return cfg
}

func loadEnvFiles(logger *zap.Logger) {
	for _, file := range []string{".env", ".env.local"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			logger.Warn("failed to load env file", zap.String("file", file), zap.Error(err))
			continue
		}
		logger.Debug("loaded env file", zap.String("file", file))
	}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := getEnv(key, ""); value != "" {
			return value
		}
	}
	return ""
}

func getEnvBool(logger *zap.Logger, key string, defaultValue bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logger.Warn("invalid boolean, using default", zap.String("key", key), zap.Error(err))
		return defaultValue
	}
	return parsed
}

func getEnvFloat(logger *zap.Logger, key string, defaultValue float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logger.Warn("invalid number, using default", zap.String("key", key), zap.Error(err))
		return defaultValue
	}
	return parsed
}

func getEnvDuration(logger *zap.Logger, key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn("invalid duration, using default", zap.String("key", key), zap.Error(err))
		return defaultValue
	}
	return parsed
}
