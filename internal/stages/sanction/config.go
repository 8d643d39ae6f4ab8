// internal/stages/sanction/config.go
package sanction

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 20 * time.Second,
	}
}
