package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dmitrymomot/crewnotify/pkg/audit"
	"github.com/dmitrymomot/crewnotify/pkg/channel"
	"github.com/dmitrymomot/crewnotify/pkg/logger"
	"github.com/dmitrymomot/crewnotify/pkg/metrics"
)

// ActionSkipped is audited for an intent that resolved to no channel.
const ActionSkipped = "notification.skipped"

// Enqueuer schedules a record for delivery after delay.
type Enqueuer interface {
	Enqueue(ctx context.Context, recordID string, delay time.Duration) error
}

// Fanout expands intents into pending records and hands them to the queue.
type Fanout struct {
	storage  Storage
	enqueuer Enqueuer
	auditor  audit.Recorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// FanoutOption configures a Fanout.
type FanoutOption func(*Fanout)

// WithFanoutLogger sets the logger for the Fanout.
func WithFanoutLogger(l *slog.Logger) FanoutOption {
	return func(f *Fanout) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithAuditor records intents that could not be expanded.
func WithAuditor(r audit.Recorder) FanoutOption {
	return func(f *Fanout) { f.auditor = r }
}

// WithFanoutMetrics counts created records.
func WithFanoutMetrics(m *metrics.Metrics) FanoutOption {
	return func(f *Fanout) { f.metrics = m }
}

// WithFanoutClock overrides the time source.
func WithFanoutClock(now func() time.Time) FanoutOption {
	return func(f *Fanout) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFanout creates a Fanout writing to storage and enqueuing on enqueuer.
func NewFanout(storage Storage, enqueuer Enqueuer, opts ...FanoutOption) *Fanout {
	if storage == nil {
		panic("notifications: storage cannot be nil")
	}
	if enqueuer == nil {
		panic("notifications: enqueuer cannot be nil")
	}

	f := &Fanout{
		storage:  storage,
		enqueuer: enqueuer,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(logger.Component("fanout"))
	return f
}

// Dispatch creates one pending record per intent and channel and enqueues it.
//
// Intents are isolated: a failing intent is logged and its error joined into
// the result while the rest of the batch proceeds. Records that already exist
// for the same dedupe key are left alone and not counted. The returned count
// is the number of records created by this call.
func (f *Fanout) Dispatch(ctx context.Context, intents ...Intent) (int, error) {
	var (
		created int
		errs    []error
	)
	for _, in := range intents {
		n, err := f.dispatch(ctx, in)
		created += n
		if err != nil {
			f.logger.LogAttrs(ctx, slog.LevelError, "failed to dispatch intent",
				logger.UserID(in.RecipientID),
				logger.TemplateKey(in.TemplateKey),
				logger.Error(err),
			)
			errs = append(errs, fmt.Errorf("intent %s/%s: %w", in.RecipientID, in.TemplateKey, err))
		}
	}
	return created, errors.Join(errs...)
}

func (f *Fanout) dispatch(ctx context.Context, in Intent) (int, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}

	channels := compact(in.Channels)
	if len(channels) == 0 {
		f.skipNoChannel(ctx, in)
		return 0, nil
	}

	now := f.now()
	scheduled := in.ScheduledAt
	if scheduled.IsZero() {
		scheduled = now
	}

	var (
		created int
		errs    []error
	)
	for _, ch := range channels {
		rec := Record{
			ID:            in.RecordID(ch),
			UserID:        in.RecipientID,
			TemplateKey:   in.TemplateKey,
			Category:      in.Category,
			Channel:       ch,
			ScheduledAt:   scheduled,
			Payload:       in.Payload,
			State:         StatePending,
			NextAttemptAt: scheduled,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := f.storage.Create(ctx, rec); err != nil {
			if errors.Is(err, ErrDuplicate) {
				f.logger.LogAttrs(ctx, slog.LevelDebug, "record already dispatched",
					logger.RecordID(rec.ID),
					logger.Channel(string(ch)),
				)
				continue
			}
			errs = append(errs, fmt.Errorf("create %s record: %w", ch, err))
			continue
		}
		created++

		// A record that fails to enqueue stays pending and is picked up by the sweep.
		if err := f.enqueuer.Enqueue(ctx, rec.ID, max(0, scheduled.Sub(now))); err != nil {
			f.logger.LogAttrs(ctx, slog.LevelWarn, "failed to enqueue record",
				logger.RecordID(rec.ID),
				logger.Error(err),
			)
		}
	}

	f.metrics.FanoutRecords(in.TemplateKey, created)
	return created, errors.Join(errs...)
}

func (f *Fanout) skipNoChannel(ctx context.Context, in Intent) {
	f.logger.LogAttrs(ctx, slog.LevelInfo, "no eligible channel",
		logger.UserID(in.RecipientID),
		logger.TemplateKey(in.TemplateKey),
	)
	if f.auditor == nil {
		return
	}
	err := f.auditor.Log(ctx, ActionSkipped,
		audit.WithResource("user", in.RecipientID),
		audit.WithMetadata("reason", ReasonNoChannel),
		audit.WithMetadata("template", in.TemplateKey),
		audit.WithMetadata("category", string(in.Category)),
	)
	if err != nil {
		f.logger.LogAttrs(ctx, slog.LevelWarn, "failed to audit skipped intent", logger.Error(err))
	}
}

// compact removes duplicate channels keeping first occurrence order.
func compact(in []channel.Channel) []channel.Channel {
	out := make([]channel.Channel, 0, len(in))
	for _, ch := range in {
		if !slices.Contains(out, ch) {
			out = append(out, ch)
		}
	}
	return out
}
