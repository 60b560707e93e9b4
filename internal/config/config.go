package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Database Configuration
	Database DatabaseConfig

	// Redis Configuration
	Redis RedisConfig

	// Logging Configuration
	Logging LoggingConfig

	// Authentication Configuration
	Auth AuthConfig

	// HTTP Configuration
	HTTP HTTPConfig

	// KPI Configuration
	KPI KPIConfig

	// Scheduled import Configuration
	Import ImportConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address string // Redis address (host:port)
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// AuthConfig holds token signing configuration
type AuthConfig struct {
	SecretKey string
	TokenTTL  time.Duration
}

// HTTPConfig holds the listener and CORS configuration
type HTTPConfig struct {
	Port        string
	CORSOrigins []string
}

// KPIConfig holds the inputs of the general indicators
type KPIConfig struct {
	SalesTarget float64
}

// ImportConfig holds the periodic CSV import configuration
type ImportConfig struct {
	File     string
	Schedule string // 5-field cron expression, empty = no scheduled import
}

const defaultTokenTTLMinutes = 300

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	secretKey := os.Getenv("SECRET_KEY")
	if secretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY is required")
	}

	ttlMinutes := defaultTokenTTLMinutes
	if v := os.Getenv("ACCESS_TOKEN_EXPIRE_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid ACCESS_TOKEN_EXPIRE_MINUTES '%s': must be a positive integer", v)
		}
		ttlMinutes = n
	}

	var salesTarget float64
	if v := os.Getenv("SALES_TARGET"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("invalid SALES_TARGET '%s': must be a non-negative number", v)
		}
		salesTarget = f
	}

	return &Config{
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", "painel.sqlite"),
		},
		Redis: RedisConfig{
			Address: getEnv("REDIS_ADDRESS", "localhost:6379"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			SecretKey: secretKey,
			TokenTTL:  time.Duration(ttlMinutes) * time.Minute,
		},
		HTTP: HTTPConfig{
			Port:        getEnv("PORT", "8000"),
			CORSOrigins: splitList(os.Getenv("CORS_ORIGINS")),
		},
		KPI: KPIConfig{
			SalesTarget: salesTarget,
		},
		Import: ImportConfig{
			File:     os.Getenv("IMPORT_FILE"),
			Schedule: os.Getenv("IMPORT_SCHEDULE"),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitList parses a comma separated list, ignoring blanks
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
