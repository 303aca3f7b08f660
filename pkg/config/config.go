package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Persisted state
	Storage StorageConfig

	// Market
	Market MarketConfig

	// Redis
	Redis RedisConfig

	// Policy file (optional YAML overrides)
	PolicyFile string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// StorageConfig holds file locations for the tracking, stability and snapshot files
type StorageConfig struct {
	DataDir      string
	TrackingFile string
	StableFile   string
	HistoryFile  string
	SnapshotFile string
	BackupDir    string
}

// MarketConfig holds market calendar and market-data provider configuration
type MarketConfig struct {
	Timezone    string
	DataBaseURL string
	DataTimeout time.Duration
	RequestsPS  int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	dataDir := getEnv("DATA_DIR", "data")

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Storage: StorageConfig{
			DataDir:      dataDir,
			TrackingFile: getEnv("TRACKING_FILE", filepath.Join(dataDir, "tracking", "interactive_tracking.json")),
			StableFile:   getEnv("STABLE_FILE", filepath.Join(dataDir, "stable_predictions.json")),
			HistoryFile:  getEnv("HISTORY_FILE", filepath.Join(dataDir, "predictions_history.json")),
			SnapshotFile: getEnv("SNAPSHOT_FILE", filepath.Join(dataDir, "top10.json")),
			BackupDir:    getEnv("BACKUP_DIR", filepath.Join(dataDir, "backups")),
		},

		Market: MarketConfig{
			Timezone:    getEnv("MARKET_TIMEZONE", "Asia/Kolkata"),
			DataBaseURL: getEnv("MARKET_DATA_BASE_URL", "https://query1.finance.yahoo.com"),
			DataTimeout: getEnvAsDuration("MARKET_DATA_TIMEOUT", "10s"),
			RequestsPS:  getEnvAsInt("MARKET_DATA_RPS", 2),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		PolicyFile: getEnv("POLICY_FILE", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Location returns the market timezone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Market.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("MARKET_TIMEZONE %q is invalid: %w", c.Market.Timezone, err)
	}

	if c.Storage.TrackingFile == "" {
		return fmt.Errorf("TRACKING_FILE is required")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
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
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
