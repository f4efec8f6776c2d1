// internal/workers/policy/validate-policy-record/config.go
package validatepolicyrecord

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
