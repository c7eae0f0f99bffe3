package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/crewnotify/pkg/audit"
	"github.com/dmitrymomot/crewnotify/pkg/channel"
	"github.com/dmitrymomot/crewnotify/pkg/logger"
	"github.com/dmitrymomot/crewnotify/pkg/metrics"
	"github.com/dmitrymomot/crewnotify/pkg/notifications"
	"github.com/dmitrymomot/crewnotify/pkg/provider"
	"github.com/dmitrymomot/crewnotify/pkg/templates"
	"github.com/dmitrymomot/crewnotify/pkg/workforce"
)

// Outcome is the result of one delivery attempt.
type Outcome string

const (
	OutcomeNoop    Outcome = "duplicate"
	OutcomeBusy    Outcome = "busy"
	OutcomeNotDue  Outcome = "not_due"
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeRetry   Outcome = "retry"
	OutcomeFailed  Outcome = "failed"
)

// ActionPrefix prefixes the audit action of every delivery outcome.
const ActionPrefix = "notification.delivery."

// Users loads notification recipients.
type Users interface {
	GetUser(ctx context.Context, id string) (workforce.User, error)
}

// Worker performs a single delivery attempt for a record.
type Worker struct {
	storage  notifications.Storage
	users    Users
	registry *provider.Registry
	catalog  *templates.Catalog
	enqueuer notifications.Enqueuer

	cfg      Config
	backoff  BackoffStrategy
	breakers breakers
	owner    string
	auditor  audit.Recorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Worker.
type Option func(*Worker)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(w *Worker) { w.cfg = cfg }
}

// WithBackoff overrides the retry schedule derived from the config.
func WithBackoff(b BackoffStrategy) Option {
	return func(w *Worker) { w.backoff = b }
}

// WithOwner sets the claim owner name. Defaults to a random id.
func WithOwner(owner string) Option {
	return func(w *Worker) {
		if owner != "" {
			w.owner = owner
		}
	}
}

// WithAuditor records every outcome in the audit log.
func WithAuditor(r audit.Recorder) Option {
	return func(w *Worker) { w.auditor = r }
}

// WithMetrics records outcomes and send durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWorker creates a delivery worker. All arguments are required.
func NewWorker(
	storage notifications.Storage,
	users Users,
	registry *provider.Registry,
	catalog *templates.Catalog,
	enqueuer notifications.Enqueuer,
	opts ...Option,
) *Worker {
	switch {
	case storage == nil:
		panic("delivery: storage cannot be nil")
	case users == nil:
		panic("delivery: users cannot be nil")
	case registry == nil:
		panic("delivery: provider registry cannot be nil")
	case catalog == nil:
		panic("delivery: template catalog cannot be nil")
	case enqueuer == nil:
		panic("delivery: enqueuer cannot be nil")
	}

	w := &Worker{
		storage:  storage,
		users:    users,
		registry: registry,
		catalog:  catalog,
		enqueuer: enqueuer,
		cfg:      DefaultConfig(),
		owner:    "delivery-" + uuid.NewString(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.cfg.MaxAttempts <= 0 {
		w.cfg.MaxAttempts = 1
	}
	if w.backoff == nil {
		w.backoff = w.cfg.Backoff()
	}
	w.breakers = newBreakers(w.cfg, w.now)
	w.logger = w.logger.With(logger.Component("delivery"), slog.String("owner", w.owner))
	return w
}

// Owner returns the name this worker claims records under.
func (w *Worker) Owner() string { return w.owner }

// Deliver runs one attempt for the record. A terminal record is a no-op, a
// record claimed by another worker is reported busy and a record whose retry
// is not due yet is released untouched. The error is non-nil only
// when storage or the user directory failed; provider errors are folded into
// the outcome and persisted on the record.
func (w *Worker) Deliver(ctx context.Context, recordID string) (Outcome, error) {
	now := w.now()
	rec, err := w.storage.Claim(ctx, recordID, w.owner, now.Add(w.cfg.ClaimLease))
	switch {
	case errors.Is(err, notifications.ErrTerminal):
		w.finish(ctx, rec, OutcomeNoop, nil)
		return OutcomeNoop, nil
	case errors.Is(err, notifications.ErrLocked):
		w.logger.LogAttrs(ctx, slog.LevelDebug, "record claimed elsewhere", logger.RecordID(recordID))
		return OutcomeBusy, nil
	case err != nil:
		return "", fmt.Errorf("claim record %s: %w", recordID, err)
	}

	claimed := rec.Clone()
	if rec.NextAttemptAt.After(now) {
		w.release(ctx, claimed)
		w.logger.LogAttrs(ctx, slog.LevelDebug, "record not due yet",
			logger.RecordID(rec.ID),
			slog.Time("next_attempt_at", rec.NextAttemptAt),
		)
		return OutcomeNotDue, nil
	}

	outcome, cause, err := w.attempt(ctx, &rec)
	if err != nil {
		w.release(ctx, claimed)
		return "", err
	}

	if err := w.storage.Save(ctx, rec, w.owner); err != nil {
		w.logger.LogAttrs(ctx, slog.LevelError, "failed to save delivery outcome",
			logger.RecordID(rec.ID),
			logger.Outcome(string(outcome)),
			logger.Error(err),
		)
		return "", errors.Join(ErrSaveRecord, err)
	}

	if outcome == OutcomeRetry {
		delay := max(0, rec.NextAttemptAt.Sub(w.now()))
		if err := w.enqueuer.Enqueue(ctx, rec.ID, delay); err != nil {
			w.logger.LogAttrs(ctx, slog.LevelWarn, "failed to re-enqueue record",
				logger.RecordID(rec.ID),
				logger.Error(err),
			)
		}
	}

	w.finish(ctx, rec, outcome, cause)
	return outcome, nil
}

// attempt moves rec to its next state. cause is the provider or resolution
// error explaining a non-sent outcome.
func (w *Worker) attempt(ctx context.Context, rec *notifications.Record) (Outcome, error, error) {
	user, err := w.users.GetUser(ctx, rec.UserID)
	switch {
	case errors.Is(err, workforce.ErrNotFound):
		return w.skip(rec, notifications.ReasonNoChannel)
	case err != nil:
		return "", nil, errors.Join(ErrUserLookup, err)
	}

	dest, ok := channel.Destination(user.Preference, rec.Channel)
	if !ok || user.Preference.OptedOut(rec.Category, rec.Channel) {
		return w.skip(rec, notifications.ReasonNoChannel)
	}

	p, err := w.registry.Get(rec.Channel)
	if err != nil {
		return w.skip(rec, notifications.ReasonNotConfigured)
	}

	tmpl, err := w.catalog.Lookup(rec.TemplateKey, rec.Channel)
	if err != nil {
		if err := rec.MarkFailed(notifications.ReasonTemplateMissing, err, w.now()); err != nil {
			return "", nil, err
		}
		return OutcomeFailed, err, nil
	}
	content := tmpl.Render(rec.Payload)

	breaker := w.breakers.get(rec.Channel)
	rec.Attempts++
	var (
		res     provider.Result
		sendErr error
	)
	if breaker.Allow() {
		res, sendErr = w.send(ctx, p, provider.Message{
			RecordID:    rec.ID,
			TemplateKey: rec.TemplateKey,
			Destination: dest,
			Subject:     content.Subject,
			Body:        content.Body,
		})
	} else {
		sendErr = provider.Transient(ErrCircuitOpen)
	}

	now := w.now()
	switch {
	case sendErr == nil && res.Status == provider.StatusSkipped,
		errors.Is(sendErr, provider.ErrNotConfigured):
		return w.skip(rec, notifications.ReasonNotConfigured)

	case sendErr == nil:
		breaker.RecordSuccess()
		if err := rec.MarkSent(res.ProviderID, now); err != nil {
			return "", nil, err
		}
		return OutcomeSent, nil, nil

	case errors.Is(sendErr, provider.ErrPermanent):
		if err := rec.MarkFailed(notifications.ReasonPermanent, sendErr, now); err != nil {
			return "", nil, err
		}
		return OutcomeFailed, sendErr, nil
	}

	if !errors.Is(sendErr, ErrCircuitOpen) {
		breaker.RecordFailure()
	}
	if rec.Attempts >= w.cfg.MaxAttempts {
		if err := rec.MarkFailed(notifications.ReasonMaxAttempts, sendErr, now); err != nil {
			return "", nil, err
		}
		return OutcomeFailed, sendErr, nil
	}
	next := now.Add(w.backoff.NextInterval(rec.Attempts))
	if err := rec.ScheduleRetry(sendErr, next, now); err != nil {
		return "", nil, err
	}
	return OutcomeRetry, sendErr, nil
}

func (w *Worker) send(ctx context.Context, p provider.Provider, msg provider.Message) (provider.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	defer cancel()

	start := w.now()
	res, err := p.Send(ctx, msg)
	w.metrics.SendDuration(string(p.Channel()), w.now().Sub(start))
	return res, err
}

func (w *Worker) skip(rec *notifications.Record, reason string) (Outcome, error, error) {
	if err := rec.MarkSkipped(reason, w.now()); err != nil {
		return "", nil, err
	}
	return OutcomeSkipped, nil, nil
}

// release returns the claim without changing the record so another attempt
// can pick it up immediately.
func (w *Worker) release(ctx context.Context, claimed notifications.Record) {
	if err := w.storage.Save(context.WithoutCancel(ctx), claimed, w.owner); err != nil {
		w.logger.LogAttrs(ctx, slog.LevelWarn, "failed to release claim",
			logger.RecordID(claimed.ID),
			logger.Error(err),
		)
	}
}

func (w *Worker) finish(ctx context.Context, rec notifications.Record, outcome Outcome, cause error) {
	w.metrics.Delivery(string(rec.Channel), string(outcome))

	attrs := []slog.Attr{
		logger.RecordID(rec.ID),
		logger.Channel(string(rec.Channel)),
		logger.TemplateKey(rec.TemplateKey),
		logger.Outcome(string(outcome)),
		logger.Attempt(rec.Attempts),
	}
	level := slog.LevelInfo
	if cause != nil {
		level = slog.LevelWarn
		attrs = append(attrs, logger.Error(cause))
	}
	w.logger.LogAttrs(ctx, level, "delivery attempt finished", attrs...)

	if w.auditor == nil {
		return
	}
	opts := []audit.EntryOption{
		audit.WithResource("notification", rec.ID),
		audit.WithMetadata("user_id", rec.UserID),
		audit.WithMetadata("channel", string(rec.Channel)),
		audit.WithMetadata("template", rec.TemplateKey),
		audit.WithMetadata("attempts", rec.Attempts),
	}
	if rec.Reason != "" {
		opts = append(opts, audit.WithMetadata("reason", rec.Reason))
	}
	if rec.ProviderID != "" {
		opts = append(opts, audit.WithMetadata("provider_id", rec.ProviderID))
	}

	action := ActionPrefix + string(outcome)
	var err error
	if cause != nil && (outcome == OutcomeRetry || outcome == OutcomeFailed) {
		err = w.auditor.LogError(ctx, action, cause, append(opts, audit.WithResult(audit.ResultFailure))...)
	} else {
		err = w.auditor.Log(ctx, action, opts...)
	}
	if err != nil {
		w.logger.LogAttrs(ctx, slog.LevelWarn, "failed to audit delivery", logger.RecordID(rec.ID), logger.Error(err))
	}
}
