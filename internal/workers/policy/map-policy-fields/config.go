// internal/workers/policy/map-policy-fields/config.go
package mappolicyfields

import "time"

type Config struct {
	Timeout  time.Duration
	CacheTTL time.Duration // zero disables the mapping cache
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  30 * time.Second,
		CacheTTL: 60 * time.Minute,
	}
}
