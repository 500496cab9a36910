package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// All environment variables are read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External sources
	Fundamentals FundamentalsConfig
	Universe     UniverseConfig

	// Auth
	Auth AuthConfig

	// Column/layout access
	Access AccessConfig

	// Background refresh
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// FundamentalsConfig holds the fundamentals source API configuration
type FundamentalsConfig struct {
	BaseURL string
	APIKey  string

	// Page size requested when a locally computed column drives the sort
	// and the source cannot pre-order rows.
	DerivedPageSize int

	Timeout      time.Duration
	RateLimitRPS float64
}

// UniverseConfig holds the index-constituents page configuration
type UniverseConfig struct {
	BaseURL string
}

// AuthConfig holds token verification configuration
type AuthConfig struct {
	JWTSecret string
}

// AccessConfig holds subscription gating configuration
type AccessConfig struct {
	// FreeDataset is the one universe that stays fully unlocked for
	// every tier.
	FreeDataset string

	// PaidTiers lists tier names that unlock premium columns.
	PaidTiers []string
}

// SchedulerConfig holds cron job configuration
type SchedulerConfig struct {
	Enabled     bool
	RefreshSpec string
	SweepSpec   string

	// Datasets re-fetched by the refresh job.
	Datasets []string
}

// Load reads configuration from environment variables.
// This is the only function that calls os.Getenv().
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		// External sources
		Fundamentals: FundamentalsConfig{
			BaseURL:         getEnv("FUNDAMENTALS_BASE_URL", "http://localhost:9400"),
			APIKey:          getEnv("FUNDAMENTALS_API_KEY", ""),
			DerivedPageSize: getEnvAsInt("FUNDAMENTALS_DERIVED_PAGE_SIZE", 600),
			Timeout:         getEnvAsDuration("FUNDAMENTALS_TIMEOUT", "30s"),
			RateLimitRPS:    getEnvAsFloat("FUNDAMENTALS_RATE_LIMIT_RPS", 5.0),
		},

		Universe: UniverseConfig{
			BaseURL: getEnv("UNIVERSE_BASE_URL", "https://www.slickcharts.com"),
		},

		// Auth
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},

		// Access gating
		Access: AccessConfig{
			FreeDataset: getEnv("ACCESS_FREE_DATASET", "sp500"),
			PaidTiers:   getEnvAsList("ACCESS_PAID_TIERS", "pro,premium"),
		},

		// Scheduler
		Scheduler: SchedulerConfig{
			Enabled:     getEnvAsBool("SCHEDULER_ENABLED", true),
			RefreshSpec: getEnv("SCHEDULER_REFRESH_SPEC", "0 0 */6 * * *"),
			SweepSpec:   getEnv("SCHEDULER_SWEEP_SPEC", "0 */30 * * * *"),
			Datasets:    getEnvAsList("SCHEDULER_DATASETS", "sp500,nasdaq100,dow30"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Fundamentals.BaseURL == "" {
		return fmt.Errorf("FUNDAMENTALS_BASE_URL is required")
	}

	if c.Fundamentals.DerivedPageSize <= 0 {
		return fmt.Errorf("FUNDAMENTALS_DERIVED_PAGE_SIZE must be positive")
	}

	if c.Access.FreeDataset == "" {
		return fmt.Errorf("ACCESS_FREE_DATASET is required")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsList(key string, defaultValue string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
