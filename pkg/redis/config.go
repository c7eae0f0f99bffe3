package redis

import "time"

type Config struct {
	ConnectionURL  string        `env:"REDIS_URL"`                                // ConnectionURL is in the format "redis://:password@localhost:6379/0". Empty disables Redis.
	KeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"crewnotify:"` // KeyPrefix namespaces every key written by the service.
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`       // RetryAttempts is the number of attempts to connect.
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`      // RetryInterval is the pause between connection attempts.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`    // ConnectTimeout bounds the whole connection procedure.
}

// Enabled reports whether a Redis URL is configured.
func (c Config) Enabled() bool {
	return c.ConnectionURL != ""
}
