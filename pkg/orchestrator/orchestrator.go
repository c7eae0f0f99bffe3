package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"time"

	"github.com/dmitrymomot/crewnotify/pkg/audit"
	"github.com/dmitrymomot/crewnotify/pkg/channel"
	"github.com/dmitrymomot/crewnotify/pkg/events"
	"github.com/dmitrymomot/crewnotify/pkg/logger"
	"github.com/dmitrymomot/crewnotify/pkg/notifications"
	"github.com/dmitrymomot/crewnotify/pkg/workforce"
)

// Audit actions.
const (
	ActionSubmissionCreateFail    = "submission.create.fail"
	ActionSubmissionCreateSuccess = "submission.create.success"
	ActionSubmissionRecalculate   = "submission.update.recalculate"
	ActionSubmissionStatusChange  = "submission.status.change"
	ActionOrderCreate             = "materialOrder.create"
	ActionOrderStatusChange       = "materialOrder.status.change"
)

// Template keys.
const (
	TemplateNeedsApproval = "TS_NEEDS_APPROVAL_V1"
	TemplateApproved      = "TS_APPROVED_V1"
	TemplateRejected      = "TS_REJECTED_V1"
	TemplateNewOrder      = "MO_NEW_ORDER_V1"
	TemplateOrderStatus   = "MO_STATUS_UPDATE_V1"
)

const (
	systemAuthor      = "system"
	rejectionPrefix   = "Automatically rejected: "
	payloadDateLayout = "2006-01-02"
)

// Dispatcher turns intents into delivery records.
type Dispatcher interface {
	Dispatch(ctx context.Context, intents ...notifications.Intent) (int, error)
}

// Subscriber is the part of the event bus the orchestrator registers with.
type Subscriber interface {
	Subscribe(kind events.Kind, h events.Handler)
}

// Orchestrator reacts to submission and material order changes: it validates
// and recalculates entities, audits what happened and asks the fanout to
// notify the people involved.
type Orchestrator struct {
	store    workforce.Store
	fanout   Dispatcher
	selector *channel.Selector
	auditor  audit.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSelector overrides the channel selector.
func WithSelector(s *channel.Selector) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.selector = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an Orchestrator.
func New(store workforce.Store, fanout Dispatcher, auditor audit.Recorder, opts ...Option) *Orchestrator {
	switch {
	case store == nil:
		panic("orchestrator: store cannot be nil")
	case fanout == nil:
		panic("orchestrator: fanout cannot be nil")
	case auditor == nil:
		panic("orchestrator: auditor cannot be nil")
	}

	o := &Orchestrator{
		store:    store,
		fanout:   fanout,
		auditor:  auditor,
		selector: channel.NewSelector(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(logger.Component("orchestrator"))
	return o
}

// Register subscribes the orchestrator's handlers on the bus.
func (o *Orchestrator) Register(bus Subscriber) {
	bus.Subscribe(events.KindSubmission, events.Typed(o.HandleSubmission))
	bus.Subscribe(events.KindMaterialOrder, events.Typed(o.HandleMaterialOrder))
}

// recipients loads users by role.
func (o *Orchestrator) recipients(ctx context.Context, roles ...workforce.Role) ([]workforce.User, error) {
	users, err := o.store.ListUsersByRole(ctx, roles...)
	if err != nil {
		return nil, errors.Join(ErrRecipients, err)
	}
	return users, nil
}

// user loads a single recipient. A user missing from the directory yields an
// empty profile so the fanout records the intent as having no channel.
func (o *Orchestrator) user(ctx context.Context, id string) (workforce.User, error) {
	u, err := o.store.GetUser(ctx, id)
	if errors.Is(err, workforce.ErrNotFound) {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "recipient not found", logger.UserID(id))
		return workforce.User{ID: id}, nil
	}
	if err != nil {
		return workforce.User{}, errors.Join(ErrRecipients, fmt.Errorf("user %s: %w", id, err))
	}
	return u, nil
}

// intent addresses one user. The dedupe key ties the records to the event so
// a redelivered event does not notify twice.
func (o *Orchestrator) intent(eventID string, u workforce.User, template string, cat channel.Category, payload map[string]string) notifications.Intent {
	p := maps.Clone(payload)
	p["recipientName"] = u.Name
	return notifications.Intent{
		RecipientID: u.ID,
		TemplateKey: template,
		Category:    cat,
		Channels:    o.selector.Select(u.Preference, cat),
		Payload:     p,
		DedupeKey:   notifications.DedupeKey(eventID, u.ID, template),
	}
}

func (o *Orchestrator) audit(ctx context.Context, action string, opts ...audit.EntryOption) {
	if err := o.auditor.Log(ctx, action, opts...); err != nil {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "failed to write audit entry", slog.String("action", action), logger.Error(err))
	}
}

func (o *Orchestrator) auditFailure(ctx context.Context, action string, cause error, opts ...audit.EntryOption) {
	opts = append(opts, audit.WithResult(audit.ResultFailure))
	if err := o.auditor.LogError(ctx, action, cause, opts...); err != nil {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "failed to write audit entry", slog.String("action", action), logger.Error(err))
	}
}

func itoa(n int) string { return strconv.Itoa(n) }
