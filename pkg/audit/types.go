package audit

import (
	"fmt"
	"time"
)

// Result represents the outcome of an audited action
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultError   Result = "error"
)

// Entry is a single append-only audit record.
type Entry struct {
	ID         string         `json:"id" bson:"_id"`
	Action     string         `json:"action" bson:"action"`
	Resource   string         `json:"resource,omitempty" bson:"resource,omitempty"`
	ResourceID string         `json:"resource_id,omitempty" bson:"resourceId,omitempty"`
	Result     Result         `json:"result" bson:"result"`
	Error      string         `json:"error,omitempty" bson:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at" bson:"createdAt"`
}

// Validate checks if the entry has all required fields
func (e *Entry) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEntryValidation)
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrEntryValidation)
	}
	return nil
}

// EntryOption applies configuration to an Entry during creation.
type EntryOption func(*Entry)

// Criteria filters entries when reading the log. Zero values match everything.
type Criteria struct {
	Action     string
	Resource   string
	ResourceID string
	Result     Result
	Since      time.Time
	Until      time.Time
	Limit      int
	Offset     int
}

// Matches reports whether the entry satisfies every set field of the criteria.
func (c Criteria) Matches(e Entry) bool {
	switch {
	case c.Action != "" && e.Action != c.Action:
		return false
	case c.Resource != "" && e.Resource != c.Resource:
		return false
	case c.ResourceID != "" && e.ResourceID != c.ResourceID:
		return false
	case c.Result != "" && e.Result != c.Result:
		return false
	case !c.Since.IsZero() && e.CreatedAt.Before(c.Since):
		return false
	case !c.Until.IsZero() && !e.CreatedAt.Before(c.Until):
		return false
	}
	return true
}
