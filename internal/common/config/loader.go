// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like CREDIT_BUREAU_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load .env from multiple possible locations
func loadEnvFile() {
	// Try multiple paths (for running from different directories)
	possiblePaths := []string{
		".env",          // Current directory
		"../.env",       // Parent directory
		"../../.env",    // Two levels up
		"../../../.env", // Three levels up
	}

	// Also try to find project root by looking for go.mod
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				fmt.Printf("✅ Loaded .env from: %s\n", path)
				return
			}
		}
	}

	fmt.Printf("⚠️  .env file not found in any location, using system environment variables\n")
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Walk up directories looking for go.mod
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return ""
}

// Improved environment variable expansion
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		// Only process string values
		if strVal, ok := val.(string); ok {
			// Check if it contains environment variable pattern
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.Services.Dialogue.APIKey == "" {
		if val := os.Getenv("DIALOGUE_API_KEY"); val != "" {
			cfg.Services.Dialogue.APIKey = val
		}
	}
	if cfg.Services.OCR.APIKey == "" {
		if val := os.Getenv("OCR_API_KEY"); val != "" {
			cfg.Services.OCR.APIKey = val
		}
	}
	if cfg.Services.CreditBureau.APIKey == "" {
		if val := os.Getenv("CREDIT_BUREAU_API_KEY"); val != "" {
			cfg.Services.CreditBureau.APIKey = val
		}
	}

	// Database overrides
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile() // Load env file first

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Expand environment variables before unmarshal
	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}

	// Pipeline defaults
	if cfg.Pipeline.MaxStageRetries == 0 {
		cfg.Pipeline.MaxStageRetries = 3
	}
	if cfg.Pipeline.TurnTimeout == 0 {
		cfg.Pipeline.TurnTimeout = 30000
	}
	if cfg.Pipeline.BackoffInitial == 0 {
		cfg.Pipeline.BackoffInitial = 500
	}

	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	// Underwriting policy defaults
	if cfg.Underwriting.MinCreditScore == 0 {
		cfg.Underwriting.MinCreditScore = 700
	}
	if cfg.Underwriting.EMIRatioReviewBound == 0 {
		cfg.Underwriting.EMIRatioReviewBound = 0.40
	}
	if cfg.Underwriting.EMIRatioRejectBound == 0 {
		cfg.Underwriting.EMIRatioRejectBound = 0.50
	}
	if cfg.Underwriting.OCRConfidenceFloor == 0 {
		cfg.Underwriting.OCRConfidenceFloor = 0.45
	}
	if cfg.Underwriting.SalaryMismatchTolerance == 0 {
		cfg.Underwriting.SalaryMismatchTolerance = 0.20
	}
	if cfg.Underwriting.PreApprovedCapMultiplier == 0 {
		cfg.Underwriting.PreApprovedCapMultiplier = 2.0
	}
	if cfg.Underwriting.FastTrackRateAnnual == 0 {
		cfg.Underwriting.FastTrackRateAnnual = 12.0
	}
	if cfg.Underwriting.StandardRateAnnual == 0 {
		cfg.Underwriting.StandardRateAnnual = 14.0
	}
	if cfg.Underwriting.ProcessingFeeMinor == 0 {
		cfg.Underwriting.ProcessingFeeMinor = 500000 // 5000.00 in minor units
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// Stage defaults
	for key, stage := range cfg.Stages {
		if stage.Timeout == 0 {
			stage.Timeout = 30000
		}
		if stage.MaxRetries == 0 {
			stage.MaxRetries = 3
		}
		cfg.Stages[key] = stage
	}

	// Service timeout defaults
	if cfg.Services.Dialogue.Timeout == 0 {
		cfg.Services.Dialogue.Timeout = 10000
	}
	if cfg.Services.OCR.Timeout == 0 {
		cfg.Services.OCR.Timeout = 20000
	}
	if cfg.Services.CreditBureau.Timeout == 0 {
		cfg.Services.CreditBureau.Timeout = 10000
	}
	if cfg.Services.Renderer.Timeout == 0 {
		cfg.Services.Renderer.Timeout = 15000
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	if cfg.Underwriting.MinCreditScore < 300 || cfg.Underwriting.MinCreditScore > 900 {
		return fmt.Errorf("underwriting.min_credit_score must be within the bureau score range")
	}
	if cfg.Underwriting.EMIRatioReviewBound > cfg.Underwriting.EMIRatioRejectBound {
		return fmt.Errorf("underwriting.emi_ratio_review_bound must not exceed the reject bound")
	}
	if cfg.Underwriting.OCRConfidenceFloor < 0 || cfg.Underwriting.OCRConfidenceFloor > 1 {
		return fmt.Errorf("underwriting.ocr_confidence_floor must be in [0,1]")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetStageConfig retrieves stage-specific configuration with fallback to defaults
func GetStageConfig(cfg *Config, stageName string) StageConfig {
	if stage, exists := cfg.Stages[stageName]; exists {
		return stage
	}

	// Return default stage config if not found
	return StageConfig{
		Enabled:    true,
		Timeout:    30000,
		MaxRetries: 3,
	}
}

// IsStageEnabled checks if a specific stage is enabled
func IsStageEnabled(cfg *Config, stageName string) bool {
	if stage, exists := cfg.Stages[stageName]; exists {
		return stage.Enabled
	}
	return true
}
