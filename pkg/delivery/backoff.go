package delivery

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy computes the delay before the next delivery attempt.
// Implementations must be safe for concurrent use.
type BackoffStrategy interface {
	// NextInterval returns the delay after the given number of attempts.
	// attempts starts at 1 after the first failed send.
	NextInterval(attempts int) time.Duration
}

// ExponentialBackoff grows the delay geometrically with random jitter.
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

// NextInterval returns min(Initial * Multiplier^(attempts-1) * (1 ± Jitter), Max).
func (e ExponentialBackoff) NextInterval(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}

	initial := e.InitialInterval
	if initial <= 0 {
		initial = 30 * time.Second
	}
	maxInterval := e.MaxInterval
	if maxInterval <= 0 {
		maxInterval = 30 * time.Minute
	}
	multiplier := e.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}

	interval := float64(initial) * math.Pow(multiplier, float64(attempts-1))
	if e.JitterFactor > 0 {
		interval *= 1 + (rand.Float64()*2-1)*e.JitterFactor
	}
	if interval > float64(maxInterval) {
		interval = float64(maxInterval)
	}
	return time.Duration(interval)
}

// FixedBackoff waits the same interval after every attempt.
type FixedBackoff struct {
	Interval time.Duration
}

// NextInterval implements BackoffStrategy.
func (f FixedBackoff) NextInterval(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	return f.Interval
}
