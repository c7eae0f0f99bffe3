package events

import "time"

// Config holds the event bus settings.
type Config struct {
	Partitions int `env:"EVENTS_PARTITIONS" envDefault:"8"`
	BufferSize int `env:"EVENTS_BUFFER_SIZE" envDefault:"64"`
	// MaxRedeliveries caps redeliveries of a failing event; 0 redelivers
	// until the handlers succeed.
	MaxRedeliveries      int           `env:"EVENTS_MAX_REDELIVERIES" envDefault:"0"`
	RedeliveryBackoff    time.Duration `env:"EVENTS_REDELIVERY_BACKOFF" envDefault:"1s"`
	MaxRedeliveryBackoff time.Duration `env:"EVENTS_MAX_REDELIVERY_BACKOFF" envDefault:"1m"`
	HandlerTimeout       time.Duration `env:"EVENTS_HANDLER_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout      time.Duration `env:"EVENTS_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns the values used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Partitions:           8,
		BufferSize:           64,
		RedeliveryBackoff:    time.Second,
		MaxRedeliveryBackoff: time.Minute,
		HandlerTimeout:       30 * time.Second,
		ShutdownTimeout:      30 * time.Second,
	}
}
