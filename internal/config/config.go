package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Database DatabaseConfig
	API      APIConfig
	Worker   WorkerConfig
	Notifier NotifierConfig
	Analyzer AnalyzerConfig
	Auth     AuthConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// APIConfig holds API server settings
type APIConfig struct {
	Port string
	Host string
}

// WorkerConfig holds worker settings
type WorkerConfig struct {
	PollInterval        time.Duration
	MaxDeliveryAttempts int
}

// NotifierConfig holds notification collaborator client settings
type NotifierConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// AnalyzerConfig holds website analyzer settings. An empty API key
// disables the analyzer endpoint.
type AnalyzerConfig struct {
	GeminiAPIKey string
	Model        string
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	Enabled      bool
	SharedSecret string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables and files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "leadengine"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		API: APIConfig{
			Port: getEnv("API_PORT", "8080"),
			Host: getEnv("API_HOST", "0.0.0.0"),
		},
		Worker: WorkerConfig{
			PollInterval:        parseDuration(getEnv("WORKER_POLL_INTERVAL", "5s"), 5*time.Second),
			MaxDeliveryAttempts: parseInt(getEnv("MAX_DELIVERY_ATTEMPTS", "5"), 5),
		},
		Notifier: NotifierConfig{
			URL:     getEnv("NOTIFIER_URL", ""),
			Token:   getEnv("NOTIFIER_TOKEN", ""),
			Timeout: parseDuration(getEnv("NOTIFIER_TIMEOUT", "30s"), 30*time.Second),
		},
		Analyzer: AnalyzerConfig{
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
			Model:        getEnv("GEMINI_MODEL", "gemini-2.5-flash-lite"),
		},
		Auth: AuthConfig{
			Enabled:      parseBool(getEnv("ENABLE_AUTH", "false")),
			SharedSecret: getEnv("SHARED_SECRET", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration fields are set
func (c *Config) Validate() error {
	if c.Notifier.URL == "" {
		return fmt.Errorf("NOTIFIER_URL is required")
	}
	if c.Notifier.Token == "" {
		return fmt.Errorf("NOTIFIER_TOKEN is required")
	}
	if c.Auth.Enabled && c.Auth.SharedSecret == "" {
		return fmt.Errorf("SHARED_SECRET is required when ENABLE_AUTH is true")
	}
	return nil
}

// AnalyzerEnabled reports whether the website analyzer is configured
func (c *Config) AnalyzerEnabled() bool {
	return c.Analyzer.GeminiAPIKey != ""
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func parseInt(value string, defaultValue int) int {
	var result int
	_, err := fmt.Sscanf(value, "%d", &result)
	if err != nil {
		return defaultValue
	}
	return result
}

func parseBool(value string) bool {
	return value == "true" || value == "1" || value == "yes"
}
