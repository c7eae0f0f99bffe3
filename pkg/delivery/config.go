package delivery

import "time"

// Config holds the delivery worker settings.
type Config struct {
	MaxAttempts int           `env:"DELIVERY_MAX_ATTEMPTS" envDefault:"5"`
	SendTimeout time.Duration `env:"DELIVERY_SEND_TIMEOUT" envDefault:"10s"`
	ClaimLease  time.Duration `env:"DELIVERY_CLAIM_LEASE" envDefault:"1m"`

	BackoffInitial    time.Duration `env:"DELIVERY_BACKOFF_INITIAL" envDefault:"30s"`
	BackoffMax        time.Duration `env:"DELIVERY_BACKOFF_MAX" envDefault:"30m"`
	BackoffMultiplier float64       `env:"DELIVERY_BACKOFF_MULTIPLIER" envDefault:"2"`
	BackoffJitter     float64       `env:"DELIVERY_BACKOFF_JITTER" envDefault:"0.1"`

	CircuitFailureThreshold int           `env:"DELIVERY_CIRCUIT_FAILURES" envDefault:"5"`
	CircuitSuccessThreshold int           `env:"DELIVERY_CIRCUIT_SUCCESSES" envDefault:"2"`
	CircuitRecovery         time.Duration `env:"DELIVERY_CIRCUIT_RECOVERY" envDefault:"30s"`
}

// DefaultConfig returns the values used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:             5,
		SendTimeout:             10 * time.Second,
		ClaimLease:              time.Minute,
		BackoffInitial:          30 * time.Second,
		BackoffMax:              30 * time.Minute,
		BackoffMultiplier:       2,
		BackoffJitter:           0.1,
		CircuitFailureThreshold: 5,
		CircuitSuccessThreshold: 2,
		CircuitRecovery:         30 * time.Second,
	}
}

// Backoff returns the exponential strategy described by the config.
func (c Config) Backoff() ExponentialBackoff {
	return ExponentialBackoff{
		InitialInterval: c.BackoffInitial,
		MaxInterval:     c.BackoffMax,
		Multiplier:      c.BackoffMultiplier,
		JitterFactor:    c.BackoffJitter,
	}
}
