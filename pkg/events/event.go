package events

import (
	"fmt"
	"time"

	"github.com/dmitrymomot/crewnotify/pkg/workforce"
)

// Kind identifies the entity type an event is about.
type Kind string

const (
	KindSubmission    Kind = "submission"
	KindMaterialOrder Kind = "material_order"
)

// Op is the mutation that produced the event.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
)

// Event is a change to a business entity.
type Event interface {
	// EventID is unique per mutation and stable across redeliveries.
	EventID() string
	Kind() Kind
	// EntityKey groups events that must be handled in order.
	EntityKey() string
	Validate() error
}

// SubmissionEvent reports a created or updated timesheet submission.
// Before is set for updates only.
type SubmissionEvent struct {
	ID         string                `json:"id"`
	Op         Op                    `json:"op"`
	Before     *workforce.Submission `json:"before,omitempty"`
	After      workforce.Submission  `json:"after"`
	OccurredAt time.Time             `json:"occurredAt"`
}

func (e SubmissionEvent) EventID() string   { return e.ID }
func (e SubmissionEvent) Kind() Kind        { return KindSubmission }
func (e SubmissionEvent) EntityKey() string { return string(KindSubmission) + ":" + e.After.ID }

// Validate checks the envelope, not the submission contents.
func (e SubmissionEvent) Validate() error {
	return validate(e.ID, e.Op, e.After.ID, e.Before != nil)
}

// MaterialOrderEvent reports a created or updated material order.
type MaterialOrderEvent struct {
	ID         string                   `json:"id"`
	Op         Op                       `json:"op"`
	Before     *workforce.MaterialOrder `json:"before,omitempty"`
	After      workforce.MaterialOrder  `json:"after"`
	OccurredAt time.Time                `json:"occurredAt"`
}

func (e MaterialOrderEvent) EventID() string   { return e.ID }
func (e MaterialOrderEvent) Kind() Kind        { return KindMaterialOrder }
func (e MaterialOrderEvent) EntityKey() string { return string(KindMaterialOrder) + ":" + e.After.ID }

// Validate checks the envelope, not the order contents.
func (e MaterialOrderEvent) Validate() error {
	return validate(e.ID, e.Op, e.After.ID, e.Before != nil)
}

func validate(id string, op Op, entityID string, hasBefore bool) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: missing event id", ErrInvalidEvent)
	case entityID == "":
		return fmt.Errorf("%w: missing entity id", ErrInvalidEvent)
	case op == OpCreate:
		return nil
	case op == OpUpdate && !hasBefore:
		return fmt.Errorf("%w: update without previous state", ErrInvalidEvent)
	case op == OpUpdate:
		return nil
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidEvent, op)
	}
}
