package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/crewnotify/pkg/api"
	"github.com/dmitrymomot/crewnotify/pkg/audit"
	"github.com/dmitrymomot/crewnotify/pkg/channel"
	"github.com/dmitrymomot/crewnotify/pkg/config"
	"github.com/dmitrymomot/crewnotify/pkg/delivery"
	"github.com/dmitrymomot/crewnotify/pkg/email"
	"github.com/dmitrymomot/crewnotify/pkg/events"
	"github.com/dmitrymomot/crewnotify/pkg/httpserver"
	"github.com/dmitrymomot/crewnotify/pkg/jobs"
	"github.com/dmitrymomot/crewnotify/pkg/logger"
	"github.com/dmitrymomot/crewnotify/pkg/messaging"
	"github.com/dmitrymomot/crewnotify/pkg/metrics"
	"github.com/dmitrymomot/crewnotify/pkg/mongo"
	"github.com/dmitrymomot/crewnotify/pkg/notifications"
	"github.com/dmitrymomot/crewnotify/pkg/orchestrator"
	"github.com/dmitrymomot/crewnotify/pkg/pg"
	"github.com/dmitrymomot/crewnotify/pkg/provider"
	"github.com/dmitrymomot/crewnotify/pkg/queue"
	"github.com/dmitrymomot/crewnotify/pkg/redis"
	"github.com/dmitrymomot/crewnotify/pkg/scheduler"
	"github.com/dmitrymomot/crewnotify/pkg/templates"
	"github.com/dmitrymomot/crewnotify/pkg/workforce"

	mongodrv "go.mongodb.org/mongo-driver/v2/mongo"
)

const metricsNamespace = "crewnotify"

type application struct {
	bus       *events.Bus
	queue     *queue.Worker
	scheduler *scheduler.Scheduler
	watcher   *mongo.Watcher
	server    *httpserver.Server
	api       *api.API

	closers []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type backends struct {
	store    workforce.Store
	records  notifications.Storage
	auditLog audit.Storage
	locker   scheduler.Locker
	db       *mongodrv.Database
	ready    map[string]api.HealthCheck
}

// build wires every component. On error, anything already opened is closed.
func build(ctx context.Context, cfg config.App, log *slog.Logger) (_ *application, err error) {
	app := &application{}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	b, err := openBackends(ctx, cfg, log, app)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}

	m := metrics.New(metricsNamespace)
	auditor := audit.NewLogger(b.auditLog, audit.WithRedactedKeys("password", "token", "authToken"))

	registry, err := providers(cfg, log)
	if err != nil {
		return nil, err
	}

	catalog := templates.Default()
	if cfg.TemplatesFile != "" {
		if catalog, err = templates.LoadFile(cfg.TemplatesFile); err != nil {
			return nil, err
		}
	}

	taskRepo := queue.NewMemoryStorage()
	enqueuer, err := queue.NewEnqueuer(taskRepo, queue.WithMaxRetries(cfg.Queue.MaxRetries))
	if err != nil {
		return nil, err
	}

	worker := delivery.NewWorker(b.records, b.store, registry, catalog, enqueuer,
		delivery.WithConfig(cfg.Delivery),
		delivery.WithAuditor(auditor),
		delivery.WithMetrics(m),
		delivery.WithLogger(log),
	)

	qopts := append(queue.FromConfig(cfg.Queue), queue.WithWorkerLogger(log))
	if app.queue, err = queue.NewWorker(taskRepo, deliverHandler(worker, log), qopts...); err != nil {
		return nil, err
	}

	selector := channel.NewSelector()
	fanout := notifications.NewFanout(b.records, enqueuer,
		notifications.WithFanoutLogger(log),
		notifications.WithAuditor(auditor),
		notifications.WithFanoutMetrics(m),
	)

	app.bus = events.NewBus(events.WithConfig(cfg.Events), events.WithMetrics(m), events.WithLogger(log))
	orchestrator.New(b.store, fanout, auditor,
		orchestrator.WithSelector(selector),
		orchestrator.WithLogger(log),
	).Register(app.bus)

	if b.db != nil && cfg.WatchChanges {
		app.watcher = mongo.NewWatcher(b.db, app.bus, mongo.WithWatcherLogger(log))
	}

	if app.scheduler, err = scheduler.New(b.locker,
		scheduler.WithConfig(cfg.Scheduler),
		scheduler.WithMetrics(m),
		scheduler.WithLogger(log),
	); err != nil {
		return nil, err
	}
	deps := jobs.Deps{Store: b.store, Records: b.records, Fanout: fanout, Enqueuer: enqueuer}
	if err := jobs.Register(app.scheduler, deps, cfg.Jobs, loc, jobs.WithSelector(selector), jobs.WithLogger(log)); err != nil {
		return nil, fmt.Errorf("register jobs: %w", err)
	}

	opts := []api.Option{
		api.WithConfig(cfg.API),
		api.WithLogger(log),
		api.WithMetricsHandler(m.Handler()),
	}
	for name, check := range b.ready {
		opts = append(opts, api.WithReadinessCheck(name, check))
	}
	app.api = api.New(worker, b.records, audit.NewReader(b.auditLog), opts...)
	app.server = httpserver.New(cfg.HTTP, httpserver.WithLogger(log))

	return app, nil
}

func openBackends(ctx context.Context, cfg config.App, log *slog.Logger, app *application) (*backends, error) {
	b := &backends{
		store:    workforce.NewMemoryStore(),
		records:  notifications.NewMemoryStorage(),
		auditLog: audit.NewMemoryStorage(),
		locker:   scheduler.NewMemoryLocker(nil),
		ready:    map[string]api.HealthCheck{},
	}

	if cfg.UsesMongo() {
		db, err := mongo.NewWithDatabase(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = db.Client().Disconnect(context.Background()) })
		if err := mongo.Setup(ctx, db); err != nil {
			return nil, err
		}
		b.ready["mongo"] = mongo.Healthcheck(db.Client())

		if cfg.StorageBackend == config.BackendMongo {
			b.db = db
			b.store = mongo.NewEntityStore(db)
			b.records = mongo.NewNotificationStore(db)
		}
		if cfg.AuditBackend == config.BackendMongo {
			b.auditLog = mongo.NewAuditStore(db)
		}
	}

	if cfg.AuditBackend == config.BackendPostgres {
		pool, err := pg.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, pool.Close)
		if err := pg.Migrate(ctx, pool, cfg.Postgres, log); err != nil {
			return nil, err
		}
		b.auditLog = pg.NewAuditStore(pool)
		b.ready["postgres"] = pg.Healthcheck(pool)
	}

	if cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = client.Close() })
		b.locker = redis.NewLocker(client, cfg.Redis.KeyPrefix)
		b.ready["redis"] = redis.Healthcheck(client)
	} else {
		log.Warn("REDIS_URL not set, scheduler leases are process-local")
	}

	return b, nil
}

// providers builds the registry. Push has no provider, so push records are
// skipped by the worker.
func providers(cfg config.App, log *slog.Logger) (*provider.Registry, error) {
	sms, err := messaging.New(cfg.Messaging, channel.SMS, messaging.WithLogger(log))
	if err != nil {
		return nil, err
	}
	whatsapp, err := messaging.New(cfg.Messaging, channel.WhatsApp, messaging.WithLogger(log))
	if err != nil {
		return nil, err
	}
	mail := email.NewProvider(cfg.SMTP, cfg.Postmark, email.WithLogger(log))
	return provider.NewRegistry(mail, sms, whatsapp), nil
}

// deliverHandler adapts the delivery worker to the task queue. A record that
// no longer exists is dropped instead of retried.
func deliverHandler(w *delivery.Worker, log *slog.Logger) queue.Handler {
	return func(ctx context.Context, recordID string) error {
		outcome, err := w.Deliver(ctx, recordID)
		if errors.Is(err, notifications.ErrNotFound) {
			log.LogAttrs(ctx, slog.LevelWarn, "queued record not found", logger.RecordID(recordID))
			return nil
		}
		if err != nil {
			return err
		}
		log.LogAttrs(ctx, slog.LevelDebug, "queued delivery processed",
			logger.RecordID(recordID),
			logger.Outcome(string(outcome)),
		)
		return nil
	}
}
