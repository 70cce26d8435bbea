package questiongen

import "time"

// Config controls the behavior of the Pipeline.
type Config struct {
	// MaxAttempts is used when the caller passes no attempt count.
	MaxAttempts int `mapstructure:"max_attempts"`

	// BaseDelay is the wait after the first failed attempt; each further
	// wait doubles it.
	BaseDelay time.Duration `mapstructure:"base_delay"`

	// MaxDelay caps a single wait, including a provider's Retry-After.
	// Zero means no cap.
	MaxDelay time.Duration `mapstructure:"max_delay"`

	// Heuristic configures the difficulty check.
	Heuristic HeuristicConfig `mapstructure:"heuristic"`
}

// DefaultConfig returns 3 attempts with 1s, 2s, 4s backoff and waits of
// at most 30s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Heuristic:   DefaultHeuristic(),
	}
}
