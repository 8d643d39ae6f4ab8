// internal/stages/verification/config.go
package verification

import "time"

type Config struct {
	Timeout time.Duration

	// MaxNameRetries bounds how many times the customer may restate their
	// name after a weak identity match before the band is recorded as-is.
	MaxNameRetries int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:        15 * time.Second,
		MaxNameRetries: 2,
	}
}
