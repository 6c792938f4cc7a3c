package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"oncodetect/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig
	Analysis AnalysisConfig
	Upload   UploadConfig
	Session  SessionConfig
	Logging  LoggingConfig
	Stub     StubConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port            string        `validate:"required,numeric"`
	GinMode         string        `validate:"oneof=debug release test"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

// AnalysisConfig holds settings for the remote analysis service
type AnalysisConfig struct {
	BaseURL        string        `validate:"required,url"`
	Timeout        time.Duration `validate:"gt=0"`
	MaxConcurrency int64         `validate:"gte=1"`
}

// UploadConfig holds image intake limits
type UploadConfig struct {
	MaxImageBytes int64 `validate:"gte=1"`
}

// SessionConfig holds browser session settings
type SessionConfig struct {
	CookieName string        `validate:"required"`
	TTL        time.Duration `validate:"gt=0"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string
	Format string `validate:"omitempty,oneof=console json"`
	File   string
}

// StubConfig holds settings for the development analysis stub
type StubConfig struct {
	Port string `validate:"omitempty,numeric"`
}

// DefaultMaxImageBytes is the 10 MiB image ceiling
const DefaultMaxImageBytes = 10 << 20

var validate = validator.New()

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server:   *loadServerConfig(),
		Analysis: *loadAnalysisConfig(),
		Upload:   *loadUploadConfig(),
		Session:  *loadSessionConfig(),
		Logging:  *loadLoggingConfig(),
		Stub:     *loadStubConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:            getEnvOrDefault("PORT", "8080"),
		GinMode:         getEnvOrDefault("GIN_MODE", "release"),
		ShutdownTimeout: getEnvDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func loadAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		BaseURL:        getEnvOrDefault("ANALYSIS_BASE_URL", "http://localhost:8000"),
		Timeout:        getEnvDurationOrDefault("ANALYSIS_TIMEOUT", 60*time.Second),
		MaxConcurrency: int64(getEnvIntOrDefault("MAX_CONCURRENT_ANALYSES", 8)),
	}
}

func loadUploadConfig() *UploadConfig {
	return &UploadConfig{
		MaxImageBytes: int64(getEnvIntOrDefault("MAX_IMAGE_BYTES", DefaultMaxImageBytes)),
	}
}

func loadSessionConfig() *SessionConfig {
	return &SessionConfig{
		CookieName: getEnvOrDefault("SESSION_COOKIE", "oncodetect_session"),
		TTL:        getEnvDurationOrDefault("SESSION_TTL", 2*time.Hour),
	}
}

func loadLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "INFO"),
		Format: getEnvOrDefault("LOG_FORMAT", "console"),
		File:   getEnvOrDefault("LOG_FILE", ""),
	}
}

func loadStubConfig() *StubConfig {
	return &StubConfig{
		Port: getEnvOrDefault("STUB_PORT", "8000"),
	}
}

func validateConfig(config *Config) error {
	if err := validate.Struct(config); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			first := verrs[0]
			return errors.ConfigInvalid(first.Namespace() + " failed '" + first.Tag() + "' check")
		}
		return errors.ConfigInvalid(err.Error())
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
