package config

import (
	"fmt"

	"github.com/dmitrymomot/crewnotify/pkg/api"
	"github.com/dmitrymomot/crewnotify/pkg/delivery"
	"github.com/dmitrymomot/crewnotify/pkg/email"
	"github.com/dmitrymomot/crewnotify/pkg/events"
	"github.com/dmitrymomot/crewnotify/pkg/httpserver"
	"github.com/dmitrymomot/crewnotify/pkg/jobs"
	"github.com/dmitrymomot/crewnotify/pkg/logger"
	"github.com/dmitrymomot/crewnotify/pkg/messaging"
	"github.com/dmitrymomot/crewnotify/pkg/mongo"
	"github.com/dmitrymomot/crewnotify/pkg/pg"
	"github.com/dmitrymomot/crewnotify/pkg/queue"
	"github.com/dmitrymomot/crewnotify/pkg/redis"
	"github.com/dmitrymomot/crewnotify/pkg/scheduler"
)

// Backend names accepted by STORAGE_BACKEND and AUDIT_BACKEND.
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

// App is the full service configuration. Every component keeps its own
// Config with fully qualified variable names; App only composes them.
type App struct {
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"memory"`
	AuditBackend   string `env:"AUDIT_BACKEND" envDefault:"memory"`
	// TemplatesFile replaces the built-in template catalog when set.
	TemplatesFile string `env:"TEMPLATES_FILE"`
	// WatchChanges starts the Mongo change-stream watcher.
	WatchChanges bool `env:"WATCH_CHANGES" envDefault:"true"`

	Logger    logger.Config
	HTTP      httpserver.Config
	API       api.Config
	Mongo     mongo.Config
	Redis     redis.Config
	Postgres  pg.Config
	SMTP      email.SMTPConfig
	Postmark  email.PostmarkConfig
	Messaging messaging.Config
	Delivery  delivery.Config
	Queue     queue.Config
	Events    events.Config
	Scheduler scheduler.Config
	Jobs      jobs.Config
}

// Validate checks backend selection against the connection settings present.
func (a App) Validate() error {
	switch a.StorageBackend {
	case BackendMemory:
	case BackendMongo:
		if a.Mongo.ConnectionURL == "" {
			return fmt.Errorf("%w: STORAGE_BACKEND=mongo requires MONGODB_URL", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown STORAGE_BACKEND %q", ErrInvalidConfig, a.StorageBackend)
	}

	switch a.AuditBackend {
	case BackendMemory:
	case BackendMongo:
		if a.Mongo.ConnectionURL == "" {
			return fmt.Errorf("%w: AUDIT_BACKEND=mongo requires MONGODB_URL", ErrInvalidConfig)
		}
	case BackendPostgres:
		if a.Postgres.ConnectionString == "" {
			return fmt.Errorf("%w: AUDIT_BACKEND=postgres requires PG_CONN_URL", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown AUDIT_BACKEND %q", ErrInvalidConfig, a.AuditBackend)
	}

	if a.Delivery.MaxAttempts < 1 {
		return fmt.Errorf("%w: DELIVERY_MAX_ATTEMPTS must be at least 1", ErrInvalidConfig)
	}
	if _, err := a.Scheduler.Location(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// UsesMongo reports whether any backend needs a Mongo connection.
func (a App) UsesMongo() bool {
	return a.StorageBackend == BackendMongo || a.AuditBackend == BackendMongo
}
