// internal/stages/underwriting/config.go
package underwriting

import "time"

// Policy thresholds live in the shared underwriting config; only the
// stage timeout is local.
type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
