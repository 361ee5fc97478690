package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/David-Botos/column-janitor/pkg/model"
)

// Config represents the application configuration
type Config struct {
	// Database connections, loaded on demand by the connector factory
	Snowflake *SnowflakeConfig
	Postgres  *PostgresConfig

	// Cleaning options
	Cleaning model.CleaningConfig

	// Audit settings
	AuditTable       string
	RecordOperations bool

	// Runner settings
	RetryAttempts  int
	WorkerPoolSize int

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory is read first when present; variables already set
// in the environment take precedence.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	cleaning, err := LoadCleaningConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Cleaning:         cleaning,
		AuditTable:       getEnv("CLEAN_AUDIT_TABLE", "cleaned_on_ingress"),
		RecordOperations: getEnvAsBool("CLEAN_RECORD_OPERATIONS", true),
		RetryAttempts:    getEnvAsInt("RETRY_ATTEMPTS", 3),
		WorkerPoolSize:   getEnvAsInt("WORKER_POOL_SIZE", 0), // 0 means use runtime.NumCPU()
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadCleaningConfig reads the CLEAN_* variables on top of the defaults
func LoadCleaningConfig() (model.CleaningConfig, error) {
	cfg := model.DefaultCleaningConfig()

	caseType, err := model.ParseCaseType(getEnv("CLEAN_CASE_TYPE", string(cfg.CaseType)))
	if err != nil {
		return cfg, err
	}
	cfg.CaseType = caseType

	strip, err := model.ParseUnderscoreStrip(getEnv("CLEAN_STRIP_UNDERSCORES", string(cfg.StripUnderscores)))
	if err != nil {
		return cfg, err
	}
	cfg.StripUnderscores = strip

	cfg.RemoveSpecial = getEnvAsBool("CLEAN_REMOVE_SPECIAL", cfg.RemoveSpecial)
	cfg.StripAccents = getEnvAsBool("CLEAN_STRIP_ACCENTS", cfg.StripAccents)

	if raw := getEnv("CLEAN_TRUNCATE_LIMIT", ""); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, fmt.Errorf("%w: CLEAN_TRUNCATE_LIMIT %q is not an integer", model.ErrInvalidConfig, raw)
		}
		cfg.TruncateLimit = limit
	}

	return cfg, cfg.Validate()
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.Cleaning.Validate(); err != nil {
		return err
	}

	if c.RetryAttempts < 0 {
		return errors.New("retry attempts cannot be negative")
	}

	if c.WorkerPoolSize < 0 {
		return errors.New("worker pool size cannot be negative")
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported log format %q", c.LogFormat)
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
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
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
