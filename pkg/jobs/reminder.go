package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/crewnotify/pkg/channel"
	"github.com/dmitrymomot/crewnotify/pkg/logger"
	"github.com/dmitrymomot/crewnotify/pkg/notifications"
	"github.com/dmitrymomot/crewnotify/pkg/workforce"
)

// ReminderScan reminds foremen about draft submissions left unsent.
type ReminderScan struct {
	base
	store  workforce.Store
	fanout Dispatcher
	after  time.Duration
}

// NewReminderScan creates the job. Drafts older than after get one reminder.
func NewReminderScan(store workforce.Store, fanout Dispatcher, after time.Duration, opts ...Option) *ReminderScan {
	if after <= 0 {
		after = 24 * time.Hour
	}
	return &ReminderScan{base: newBase(NameReminderScan, opts), store: store, fanout: fanout, after: after}
}

func (j *ReminderScan) Name() string { return NameReminderScan }

// Run emits a reminder per overdue draft and then marks it reminded. A draft
// whose reminder could not be dispatched stays unmarked for the next run.
func (j *ReminderScan) Run(ctx context.Context, now time.Time) error {
	subs, err := j.store.ListReminderCandidates(ctx, now.Add(-j.after))
	if err != nil {
		return fmt.Errorf("list reminder candidates: %w", err)
	}

	var errs []error
	reminded := 0
	for _, sub := range subs {
		if err := j.remind(ctx, sub); err != nil {
			errs = append(errs, fmt.Errorf("submission %s: %w", sub.ID, err))
			continue
		}
		ok, err := j.store.MarkReminded(ctx, sub.ID, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("mark %s reminded: %w", sub.ID, err))
			continue
		}
		if ok {
			reminded++
		}
	}

	j.logger.LogAttrs(ctx, slog.LevelInfo, "reminder scan finished",
		slog.Int("candidates", len(subs)),
		slog.Int("reminded", reminded),
	)
	return errors.Join(errs...)
}

func (j *ReminderScan) remind(ctx context.Context, sub workforce.Submission) error {
	if sub.ForemanID == "" {
		j.logger.LogAttrs(ctx, slog.LevelInfo, "draft without foreman reference", logger.EntityID(sub.ID))
		return nil
	}
	foreman, err := user(ctx, j.store, sub.ForemanID)
	if err != nil {
		return err
	}
	job := sub.JobName
	if job == "" {
		job = sub.JobID
	}
	_, err = j.fanout.Dispatch(ctx, j.intent(foreman, TemplateReminder, channel.CategoryReminder,
		notifications.DedupeKey("reminder", sub.ID),
		map[string]string{
			"submissionId": sub.ID,
			"jobName":      job,
			"date":         sub.WorkDate().In(j.loc).Format(dateLayout),
		},
	))
	return err
}
