package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dmitrymomot/crewnotify/pkg/audit"
	"github.com/dmitrymomot/crewnotify/pkg/channel"
	"github.com/dmitrymomot/crewnotify/pkg/events"
	"github.com/dmitrymomot/crewnotify/pkg/hours"
	"github.com/dmitrymomot/crewnotify/pkg/logger"
	"github.com/dmitrymomot/crewnotify/pkg/notifications"
	"github.com/dmitrymomot/crewnotify/pkg/workforce"
)

// HandleSubmission processes a submission event. Invalid submissions are
// rejected and audited without returning an error; a returned error means the
// event should be redelivered.
func (o *Orchestrator) HandleSubmission(ctx context.Context, ev events.SubmissionEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if ev.Op == events.OpCreate {
		return o.submissionCreated(ctx, ev)
	}
	return o.submissionUpdated(ctx, ev)
}

func (o *Orchestrator) submissionCreated(ctx context.Context, ev events.SubmissionEvent) error {
	sub := ev.After.Clone()
	log := o.logger.With(logger.EventID(ev.ID), logger.EntityID(sub.ID))

	if err := sub.Validate(); err != nil {
		return o.reject(ctx, sub, err)
	}

	changed, err := recalculate(&sub)
	if err != nil {
		return o.reject(ctx, sub, err)
	}
	if sub.Status == "" {
		sub.Status = workforce.StatusSubmitted
		changed = true
	}
	if sub.Status == workforce.StatusSubmitted && sub.SubmittedAt == nil {
		now := o.now()
		sub.SubmittedAt = &now
		changed = true
	}
	if changed {
		sub.UpdatedAt = o.now()
		if err := o.store.SaveSubmission(ctx, sub); err != nil {
			return errors.Join(ErrSaveEntity, err)
		}
	}

	if sub.Status == workforce.StatusDraft {
		log.LogAttrs(ctx, slog.LevelDebug, "draft submission, nobody to notify")
		return nil
	}

	admins, err := o.recipients(ctx, workforce.RoleAdmin)
	if err != nil {
		return err
	}
	payload := submissionPayload(sub)
	intents := make([]notifications.Intent, 0, len(admins))
	for _, u := range admins {
		intents = append(intents, o.intent(ev.ID, u, TemplateNeedsApproval, channel.CategoryTimesheet, payload))
	}
	n, dispatchErr := o.fanout.Dispatch(ctx, intents...)

	o.audit(ctx, ActionSubmissionCreateSuccess,
		audit.WithResource("submission", sub.ID),
		audit.WithMetadata("event_id", ev.ID),
		audit.WithMetadata("status", string(sub.Status)),
		audit.WithMetadata("recipients", len(admins)),
		audit.WithMetadata("notified", n),
	)
	log.LogAttrs(ctx, slog.LevelInfo, "submission accepted", slog.Int("notified", n))
	return dispatchErr
}

// reject marks the submission as rejected with a system comment, persists it
// and audits the failure. Validation failures are resolved here and are never
// returned to the caller.
func (o *Orchestrator) reject(ctx context.Context, sub workforce.Submission, cause error) error {
	now := o.now()
	sub.Status = workforce.StatusRejected
	sub.Comments = append(sub.Comments, workforce.Comment{
		Author:    systemAuthor,
		Text:      rejectionPrefix + cause.Error(),
		System:    true,
		CreatedAt: now,
	})
	sub.UpdatedAt = now
	if err := o.store.SaveSubmission(ctx, sub); err != nil {
		return errors.Join(ErrSaveEntity, err)
	}

	o.auditFailure(ctx, ActionSubmissionCreateFail, cause,
		audit.WithResource("submission", sub.ID),
		audit.WithMetadata("reason", cause.Error()),
	)
	o.logger.LogAttrs(ctx, slog.LevelInfo, "submission rejected",
		logger.EntityID(sub.ID),
		logger.Error(cause),
	)
	return nil
}

func (o *Orchestrator) submissionUpdated(ctx context.Context, ev events.SubmissionEvent) error {
	before, after := ev.Before.Clone(), ev.After.Clone()

	// An empty previous status is the write that normalized a new submission.
	statusChanged := before.Status != "" && before.Status != after.Status

	var errs []error
	if !statusChanged && workforce.ShiftsChanged(before.Employees, after.Employees) {
		if err := o.recalculateUpdate(ctx, after); err != nil {
			errs = append(errs, err)
		}
	}

	if statusChanged {
		o.audit(ctx, ActionSubmissionStatusChange,
			audit.WithResource("submission", after.ID),
			audit.WithMetadata("event_id", ev.ID),
			audit.WithMetadata("from", string(before.Status)),
			audit.WithMetadata("to", string(after.Status)),
		)
		if autoRejected(before, after) {
			o.logger.LogAttrs(ctx, slog.LevelDebug, "validation rejection, nobody to notify",
				logger.EventID(ev.ID),
				logger.EntityID(after.ID),
			)
		} else if err := o.notifyForeman(ctx, ev.ID, after); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// autoRejected reports whether the update is the write made by reject: the
// status moved to rejected and the only new comment is the system one.
func autoRejected(before, after workforce.Submission) bool {
	if after.Status != workforce.StatusRejected || len(after.Comments) != len(before.Comments)+1 {
		return false
	}
	c := after.Comments[len(after.Comments)-1]
	return c.System && c.Author == systemAuthor && strings.HasPrefix(c.Text, rejectionPrefix)
}

func (o *Orchestrator) recalculateUpdate(ctx context.Context, sub workforce.Submission) error {
	if err := sub.Validate(); err != nil {
		o.auditFailure(ctx, ActionSubmissionRecalculate, err,
			audit.WithResource("submission", sub.ID),
			audit.WithMetadata("reason", err.Error()),
		)
		return nil
	}

	changed, err := recalculate(&sub)
	if err != nil {
		return err
	}
	if changed {
		sub.UpdatedAt = o.now()
		if err := o.store.SaveSubmission(ctx, sub); err != nil {
			return errors.Join(ErrSaveEntity, err)
		}
	}
	o.audit(ctx, ActionSubmissionRecalculate,
		audit.WithResource("submission", sub.ID),
		audit.WithMetadata("employees", len(sub.Employees)),
		audit.WithMetadata("total_hours", totalHours(sub)),
	)
	return nil
}

func (o *Orchestrator) notifyForeman(ctx context.Context, eventID string, sub workforce.Submission) error {
	var template string
	switch sub.Status {
	case workforce.StatusApproved:
		template = TemplateApproved
	case workforce.StatusRejected:
		template = TemplateRejected
	default:
		return nil
	}
	if sub.ForemanID == "" {
		o.logger.LogAttrs(ctx, slog.LevelInfo, "no foreman reference, skipping notification", logger.EntityID(sub.ID))
		return nil
	}

	foreman, err := o.user(ctx, sub.ForemanID)
	if err != nil {
		return err
	}
	_, err = o.fanout.Dispatch(ctx, o.intent(eventID, foreman, template, channel.CategoryTimesheet, submissionPayload(sub)))
	return err
}

// recalculate stores fresh hour breakdowns on every employee entry and
// reports whether any stored value changed.
func recalculate(sub *workforce.Submission) (bool, error) {
	date := sub.WorkDate()
	changed := false
	for i, e := range sub.Employees {
		b, err := hours.Calculate(e.Shift(date))
		if err != nil {
			return false, fmt.Errorf("%w: employee %d: %v", workforce.ErrInvalidShiftTime, i, err)
		}
		if b != e.Breakdown() {
			sub.Employees[i] = e.WithBreakdown(b)
			changed = true
		}
	}
	return changed, nil
}

func totalHours(sub workforce.Submission) float64 {
	var total float64
	for _, e := range sub.Employees {
		total += e.TotalHours + e.ShiftHours
	}
	return total
}

func submissionPayload(sub workforce.Submission) map[string]string {
	job := sub.JobName
	if job == "" {
		job = sub.JobID
	}
	p := map[string]string{
		"submissionId":  sub.ID,
		"jobName":       job,
		"foreman":       sub.Foreman,
		"date":          sub.WorkDate().Format(payloadDateLayout),
		"status":        string(sub.Status),
		"employeeCount": itoa(len(sub.Employees)),
		"totalHours":    strconv.FormatFloat(totalHours(sub), 'f', -1, 64),
	}
	if n := len(sub.Comments); n > 0 {
		p["comment"] = sub.Comments[n-1].Text
	}
	return p
}
