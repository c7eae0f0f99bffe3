package api

import "time"

// Config holds HTTP API limits.
type Config struct {
	// CheckTimeout bounds one SMTP connectivity check.
	CheckTimeout time.Duration `env:"API_CHECK_TIMEOUT" envDefault:"15s"`
	// ListLimit is the page size when a list request does not give one.
	ListLimit int `env:"API_LIST_LIMIT" envDefault:"50"`
	// MaxListLimit caps the page size a client may ask for.
	MaxListLimit int `env:"API_MAX_LIST_LIMIT" envDefault:"500"`
}

// DefaultConfig returns the values used when nothing is configured.
func DefaultConfig() Config {
	return Config{CheckTimeout: 15 * time.Second, ListLimit: 50, MaxListLimit: 500}
}
