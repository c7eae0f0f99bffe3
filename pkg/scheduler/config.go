package scheduler

import (
	"fmt"
	"time"
)

// Config holds the scheduler settings.
type Config struct {
	TickInterval      time.Duration `env:"SCHEDULER_TICK_INTERVAL" envDefault:"30s"`
	DefaultTTL        time.Duration `env:"SCHEDULER_DEFAULT_TTL" envDefault:"5m"`
	MaxConcurrentJobs int           `env:"SCHEDULER_MAX_CONCURRENT_JOBS" envDefault:"4"`
	Timezone          string        `env:"SCHEDULER_TIMEZONE" envDefault:"UTC"`
}

// DefaultConfig returns the values used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		TickInterval:      30 * time.Second,
		DefaultTTL:        5 * time.Minute,
		MaxConcurrentJobs: 4,
		Timezone:          "UTC",
	}
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTimezone, c.Timezone, err)
	}
	return loc, nil
}
