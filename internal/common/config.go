package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/ratecon-tracker/constants"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	JobStore JobStoreConfig
	Server   ServerConfig
	Render   RenderConfig
	LLM      LLMConfig
	Storage  StorageConfig
	LogLevel slog.Level
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// JobStoreConfig selects where extraction run history is written.
type JobStoreConfig struct {
	Driver string // "sqlite" | "pgx"
	DSN    string
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string
	GRPCAddr       string
	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string
}

// RenderConfig controls document rasterisation.
type RenderConfig struct {
	Pdftoppm      string
	HeicConverter string
	Scale         float64
	MaxPages      int
	MaxPDFBytes   int64
	MaxImageBytes int64
	TmpDir        string
	Timeout       time.Duration
}

// LLMConfig holds extraction-service configuration
type LLMConfig struct {
	Provider       string // anthropic | openai | vertex
	AnthropicModel string
	AnthropicKey   string
	OpenAIModel    string
	OpenAIKey      string
	OpenAIBaseURL  string
	VertexModel    string
	VertexProject  string
	VertexRegion   string
	Temperature    float32
	MaxTokens      int64
	Timeout        time.Duration
	MaxAttempts    int
}

// StorageConfig configures the optional upload archive.
type StorageConfig struct {
	Bucket string
	Prefix string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		JobStore: JobStoreConfig{
			Driver: getEnv("JOBS_DRIVER", "sqlite"),
			DSN:    getEnv("JOBS_DSN", "file:ratecon-jobs.db"),
		},
		Server: ServerConfig{
			HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr:       getEnv("GRPC_ADDR", ":9090"),
			RateLimitRPS:   getEnvAsFloat64("RATE_LIMIT_RPS", 2),
			RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 4),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Render: RenderConfig{
			Pdftoppm:      getEnv("PDFTOPPM", "pdftoppm"),
			HeicConverter: getEnv("HEIC_CONVERTER", "magick"),
			Scale:         getEnvAsFloat64("RENDER_SCALE", constants.DefaultRenderScale),
			MaxPages:      getEnvAsInt("MAX_PAGES", constants.DefaultMaxPages),
			MaxPDFBytes:   getEnvAsInt64("MAX_PDF_BYTES", constants.DefaultMaxPDFBytes),
			MaxImageBytes: getEnvAsInt64("MAX_IMAGE_BYTES", constants.DefaultMaxImageBytes),
			TmpDir:        getEnv("TMP_DIR", os.TempDir()),
			Timeout:       getEnvAsDuration("RENDER_TIMEOUT", constants.DefaultRenderTimeout),
		},
		LLM: LLMConfig{
			Provider:       strings.ToLower(getEnv("LLM_PROVIDER", "anthropic")),
			AnthropicModel: getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
			OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			VertexModel:    getEnv("VERTEX_MODEL", "gemini-2.5-flash"),
			VertexProject:  getEnv("VERTEX_PROJECT", ""),
			VertexRegion:   getEnv("VERTEX_REGION", "us-central1"),
			Temperature:    getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			MaxTokens:      getEnvAsInt64("LLM_MAX_TOKENS", 4096),
			Timeout:        getEnvAsDuration("LLM_TIMEOUT", 90*time.Second),
			MaxAttempts:    getEnvAsInt("LLM_MAX_ATTEMPTS", 2),
		},
		Storage: StorageConfig{
			Bucket: getEnv("GCS_BUCKET", ""),
			Prefix: getEnv("GCS_PREFIX", "ratecons"),
		},
		LogLevel: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	var lvl slog.Level
	if value := os.Getenv(key); value != "" {
		if err := lvl.UnmarshalText([]byte(value)); err == nil {
			return lvl
		}
	}
	return defaultValue
}

// RunTimeout bounds one whole extraction run: the render stage plus every
// model attempt, with a little room for the retry backoff.
func (c *Config) RunTimeout() time.Duration {
	return c.Render.Timeout + time.Duration(c.LLM.MaxAttempts)*c.LLM.Timeout + 10*time.Second
}

// Validate checks the settings the daemon cannot start without.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Render.Scale < constants.MinRenderScale {
		return NewAppError("CONFIG_ERROR", "RENDER_SCALE must be at least 2", ErrInvalidInput)
	}
	if c.Render.MaxPages <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_PAGES must be positive", ErrInvalidInput)
	}
	if c.LLM.MaxAttempts < 1 || c.LLM.MaxAttempts > 2 {
		return NewAppError("CONFIG_ERROR", "LLM_MAX_ATTEMPTS must be 1 or 2", ErrInvalidInput)
	}
	return c.ValidateLLM()
}

// ValidateLLM checks that the selected provider has its credentials.
func (c *Config) ValidateLLM() error {
	switch c.LLM.Provider {
	case "anthropic":
		if c.LLM.AnthropicKey == "" {
			return NewAppError("CONFIG_ERROR", "ANTHROPIC_API_KEY is required", ErrInvalidInput)
		}
	case "openai":
		if c.LLM.OpenAIKey == "" {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
		}
	case "vertex":
		if c.LLM.VertexProject == "" {
			return NewAppError("CONFIG_ERROR", "VERTEX_PROJECT is required", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "LLM_PROVIDER must be one of anthropic|openai|vertex", ErrInvalidInput)
	}
	return nil
}
