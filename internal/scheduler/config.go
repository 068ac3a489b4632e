package scheduler

import (
	"time"

	"github.com/smallbiznis/filmbilling/internal/config"
)

// Config controls the sweep interval, batch size and age window.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	BatchSize   int
	// StaleAfter is how long a payment may sit without a status change
	// before the gateway is asked directly.
	StaleAfter time.Duration
	// MaxAge stops the sweep from polling payments the gateway has
	// long since expired.
	MaxAge     time.Duration
	JobTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		BatchSize:   50,
		StaleAfter:  10 * time.Minute,
		MaxAge:      72 * time.Hour,
		JobTimeout:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = defaults.StaleAfter
	}
	if c.MaxAge <= 0 {
		c.MaxAge = defaults.MaxAge
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.Sweeper.Enabled,
		RunInterval: time.Duration(cfg.Sweeper.IntervalSec) * time.Second,
		BatchSize:   cfg.Sweeper.BatchSize,
		StaleAfter:  time.Duration(cfg.Sweeper.StaleAfterSec) * time.Second,
		MaxAge:      time.Duration(cfg.Sweeper.MaxAgeHours) * time.Hour,
	}.withDefaults()
}
