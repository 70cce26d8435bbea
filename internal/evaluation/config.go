package evaluation

import "time"

// Config controls retries and the per-attempt deadline.
type Config struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`

	// Jitter adds up to this fraction of each backoff delay.
	Jitter float64 `mapstructure:"jitter"`

	// Timeout bounds a single provider call.
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns 3 attempts, 1s and 2s backoff with up to 10%
// jitter, and a 30s deadline per attempt.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Jitter:      0.1,
		Timeout:     30 * time.Second,
	}
}
