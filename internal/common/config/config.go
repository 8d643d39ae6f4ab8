// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig              `mapstructure:"app"`
	Server       ServerConfig           `mapstructure:"server"`
	Pipeline     PipelineConfig         `mapstructure:"pipeline"`
	Database     DatabaseConfig         `mapstructure:"database"`
	Underwriting UnderwritingConfig     `mapstructure:"underwriting"`
	Stages       map[string]StageConfig `mapstructure:"stages"`
	Services     ServicesConfig         `mapstructure:"services"`
	Logging      LoggingConfig          `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

// PipelineConfig holds orchestrator-level settings. MaxStageRetries is the
// ceiling applied per stage regardless of any handler's internal retry logic.
type PipelineConfig struct {
	MaxStageRetries int `mapstructure:"max_stage_retries"`
	TurnTimeout     int `mapstructure:"turn_timeout"`    // milliseconds
	BackoffInitial  int `mapstructure:"backoff_initial"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// UnderwritingConfig holds every numeric policy threshold used by the
// decision engine and the underwriting stage. None of these may be
// hard-coded at call sites.
type UnderwritingConfig struct {
	MinCreditScore           int     `mapstructure:"min_credit_score"`
	EMIRatioReviewBound      float64 `mapstructure:"emi_ratio_review_bound"`
	EMIRatioRejectBound      float64 `mapstructure:"emi_ratio_reject_bound"`
	OCRConfidenceFloor       float64 `mapstructure:"ocr_confidence_floor"`
	SalaryMismatchTolerance  float64 `mapstructure:"salary_mismatch_tolerance"`
	PreApprovedCapMultiplier float64 `mapstructure:"pre_approved_cap_multiplier"`
	FastTrackRateAnnual      float64 `mapstructure:"fast_track_rate_annual"` // percent
	StandardRateAnnual       float64 `mapstructure:"standard_rate_annual"`   // percent
	ProcessingFeeMinor       int64   `mapstructure:"processing_fee_minor"`   // charged above the fast-track rate
}

// StageConfig holds the core settings applicable to every stage handler.
type StageConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Timeout    int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries int  `mapstructure:"max_retries"` // handler-internal retry budget
}

// ServicesConfig holds settings for external collaborator endpoints.
type ServicesConfig struct {
	Dialogue struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"dialogue"`

	OCR struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"ocr"`

	CreditBureau struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"credit_bureau"`

	Renderer struct {
		BaseURL string `mapstructure:"base_url"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"renderer"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
