// internal/stages/intake/config.go
package intake

import "time"

// No stage-specific thresholds for intake, but struct provided for consistency
type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
