package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/crewnotify/pkg/logger"
	"github.com/dmitrymomot/crewnotify/pkg/notifications"
)

// PendingSweep re-enqueues pending records that should have been attempted
// already, for example after a restart lost the in-memory queue.
type PendingSweep struct {
	base
	records  notifications.Storage
	enqueuer notifications.Enqueuer
	grace    time.Duration
	batch    int
}

// NewPendingSweep creates the job. Records overdue by more than grace are
// re-enqueued, at most batch per run.
func NewPendingSweep(records notifications.Storage, enqueuer notifications.Enqueuer, grace time.Duration, batch int, opts ...Option) *PendingSweep {
	if batch <= 0 {
		batch = 100
	}
	return &PendingSweep{
		base:     newBase(NamePendingSweep, opts),
		records:  records,
		enqueuer: enqueuer,
		grace:    grace,
		batch:    batch,
	}
}

func (j *PendingSweep) Name() string { return NamePendingSweep }

func (j *PendingSweep) Run(ctx context.Context, now time.Time) error {
	due, err := j.records.ListDue(ctx, now.Add(-j.grace), j.batch)
	if err != nil {
		return fmt.Errorf("list overdue records: %w", err)
	}

	var errs []error
	for _, rec := range due {
		if err := j.enqueuer.Enqueue(ctx, rec.ID, 0); err != nil {
			errs = append(errs, fmt.Errorf("enqueue %s: %w", rec.ID, err))
			continue
		}
		j.logger.LogAttrs(ctx, slog.LevelDebug, "re-enqueued overdue record",
			logger.RecordID(rec.ID),
			slog.Time("next_attempt_at", rec.NextAttemptAt),
		)
	}
	if len(due) > 0 {
		j.logger.LogAttrs(ctx, slog.LevelInfo, "pending sweep finished", slog.Int("requeued", len(due)-len(errs)))
	}
	return errors.Join(errs...)
}
