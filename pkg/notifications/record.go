package notifications

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/dmitrymomot/crewnotify/pkg/channel"
)

// State is the delivery lifecycle state of a record.
type State string

const (
	StatePending State = "pending"
	StateSent    State = "sent"
	StateSkipped State = "skipped"
	StateFailed  State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSent || s == StateSkipped || s == StateFailed
}

// Reasons attached to skipped and failed records.
const (
	ReasonNoChannel       = "no_channel"
	ReasonNotConfigured   = "not_configured"
	ReasonTemplateMissing = "template_missing"
	ReasonPermanent       = "permanent"
	ReasonMaxAttempts     = "max_attempts"
)

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StatePending: {StatePending, StateSent, StateSkipped, StateFailed},
}

// Record is one persisted delivery of one template to one user over one channel.
type Record struct {
	ID            string            `json:"id" bson:"_id"`
	UserID        string            `json:"userId" bson:"userId"`
	TemplateKey   string            `json:"templateKey" bson:"templateKey"`
	Category      channel.Category  `json:"category" bson:"category"`
	Channel       channel.Channel   `json:"channel" bson:"channel"`
	ScheduledAt   time.Time         `json:"scheduledAt" bson:"scheduledAt"`
	Payload       map[string]string `json:"payload,omitempty" bson:"payload,omitempty"`
	State         State             `json:"state" bson:"state"`
	Attempts      int               `json:"attempts" bson:"attempts"`
	LastError     string            `json:"lastError,omitempty" bson:"lastError,omitempty"`
	Reason        string            `json:"reason,omitempty" bson:"reason,omitempty"`
	ProviderID    string            `json:"providerId,omitempty" bson:"providerId,omitempty"`
	NextAttemptAt time.Time         `json:"nextAttemptAt" bson:"nextAttemptAt"`
	LockedBy      string            `json:"-" bson:"lockedBy,omitempty"`
	LockedUntil   *time.Time        `json:"-" bson:"lockedUntil,omitempty"`
	CreatedAt     time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt" bson:"updatedAt"`
	CompletedAt   *time.Time        `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	c := r
	c.Payload = maps.Clone(r.Payload)
	if r.LockedUntil != nil {
		t := *r.LockedUntil
		c.LockedUntil = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

// Locked reports whether a claim other than owner's is still live at now.
func (r Record) Locked(owner string, now time.Time) bool {
	return r.LockedBy != "" && r.LockedBy != owner && r.LockedUntil != nil && r.LockedUntil.After(now)
}

func (r *Record) transition(to State, now time.Time) error {
	if !slices.Contains(transitions[r.State], to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.State, to)
	}
	r.State = to
	r.UpdatedAt = now
	if to.Terminal() {
		r.CompletedAt = &now
	}
	return nil
}

// MarkSent records a successful send.
func (r *Record) MarkSent(providerID string, now time.Time) error {
	if err := r.transition(StateSent, now); err != nil {
		return err
	}
	r.ProviderID = providerID
	r.LastError = ""
	return nil
}

// MarkSkipped ends the record without sending.
func (r *Record) MarkSkipped(reason string, now time.Time) error {
	if err := r.transition(StateSkipped, now); err != nil {
		return err
	}
	r.Reason = reason
	return nil
}

// MarkFailed ends the record after an unrecoverable error.
func (r *Record) MarkFailed(reason string, cause error, now time.Time) error {
	if err := r.transition(StateFailed, now); err != nil {
		return err
	}
	r.Reason = reason
	if cause != nil {
		r.LastError = cause.Error()
	}
	return nil
}

// ScheduleRetry keeps the record pending until next.
func (r *Record) ScheduleRetry(cause error, next, now time.Time) error {
	if err := r.transition(StatePending, now); err != nil {
		return err
	}
	r.NextAttemptAt = next
	if cause != nil {
		r.LastError = cause.Error()
	}
	return nil
}
