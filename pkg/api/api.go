package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/crewnotify/pkg/audit"
	"github.com/dmitrymomot/crewnotify/pkg/delivery"
	"github.com/dmitrymomot/crewnotify/pkg/email"
	"github.com/dmitrymomot/crewnotify/pkg/notifications"
)

// Deliverer processes one notification record.
type Deliverer interface {
	Deliver(ctx context.Context, id string) (delivery.Outcome, error)
}

// RecordLister lists notification records.
type RecordLister interface {
	List(ctx context.Context, f notifications.Filter) ([]notifications.Record, error)
}

// AuditReader reads the audit log.
type AuditReader interface {
	Find(ctx context.Context, c audit.Criteria) ([]audit.Entry, error)
}

// CheckFunc tests SMTP settings.
type CheckFunc func(ctx context.Context, s email.Settings) (email.CheckResult, error)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Option configures the API.
type Option func(*API)

// WithConfig sets limits and timeouts.
func WithConfig(cfg Config) Option {
	return func(a *API) { a.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithChecker replaces email.CheckConnectivity.
func WithChecker(fn CheckFunc) Option {
	return func(a *API) {
		if fn != nil {
			a.check = fn
		}
	}
}

// WithReadinessCheck adds a named dependency to /health/ready.
func WithReadinessCheck(name string, fn HealthCheck) Option {
	return func(a *API) {
		if fn != nil {
			a.ready = append(a.ready, namedCheck{name: name, fn: fn})
		}
	}
}

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *API) { a.metrics = h }
}

type namedCheck struct {
	name string
	fn   HealthCheck
}

// API is the service's HTTP surface.
type API struct {
	deliverer Deliverer
	records   RecordLister
	auditLog  AuditReader
	check     CheckFunc
	ready     []namedCheck
	metrics   http.Handler
	cfg       Config
	logger    *slog.Logger
}

// New creates the API. It panics if a dependency is nil.
func New(deliverer Deliverer, records RecordLister, auditLog AuditReader, opts ...Option) *API {
	if deliverer == nil || records == nil || auditLog == nil {
		panic("api: nil dependency")
	}
	a := &API{
		deliverer: deliverer,
		records:   records,
		auditLog:  auditLog,
		check:     email.CheckConnectivity,
		cfg:       DefaultConfig(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Routes returns the router.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID, a.recoverer, a.accessLog)

	r.Get("/health/live", a.live)
	r.Get("/health/ready", a.readiness)
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/deliveries/{id}", a.deliver)
		r.Post("/admin/email/check", a.checkEmail)
		r.Get("/notifications", a.listNotifications)
		r.Get("/audit", a.listAudit)
	})
	return r
}
