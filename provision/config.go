package provision

import (
	"time"

	"github.com/jacentio/storefront/record"
)

// Config holds configuration for the Provisioner.
type Config struct {
	// Collections names the record collections and the per-call timeout.
	Collections record.Config

	// MaxItemAttempts bounds how many times one dependent create is tried
	// when the store reports a transient error.
	// Default: 3
	MaxItemAttempts int

	// RetryInterval is the initial backoff between attempts.
	// Default: 200ms
	RetryInterval time.Duration

	// SettleDelay is how long Save waits after the dependent writes before
	// verifying, so server-side finalization can catch up. Zero disables it.
	// Default: 1.5s
	SettleDelay time.Duration
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Collections:     record.DefaultConfig(),
		MaxItemAttempts: 3,
		RetryInterval:   200 * time.Millisecond,
		SettleDelay:     1500 * time.Millisecond,
	}
}

// validate ensures config values are usable.
func (c *Config) validate() {
	c.Collections.Validate()
	if c.MaxItemAttempts < 1 {
		c.MaxItemAttempts = 3
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 200 * time.Millisecond
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
}
