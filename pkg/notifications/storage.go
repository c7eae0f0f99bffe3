package notifications

import (
	"context"
	"time"

	"github.com/dmitrymomot/crewnotify/pkg/channel"
)

// Storage persists notification records.
type Storage interface {
	// Create stores a new record. It returns ErrDuplicate if the id exists.
	Create(ctx context.Context, rec Record) error

	// Get returns a record by id.
	Get(ctx context.Context, id string) (Record, error)

	// Claim takes the record for owner until the given time. It returns the
	// record with ErrTerminal when it is already terminal and ErrLocked while
	// another owner's claim is live.
	Claim(ctx context.Context, id, owner string, until time.Time) (Record, error)

	// Save writes a claimed record and releases the claim. It returns
	// ErrLockLost if owner no longer holds the claim or the stored record is
	// already terminal.
	Save(ctx context.Context, rec Record, owner string) error

	// ListDue returns pending, unclaimed records whose next attempt is at or
	// before the given time, oldest first.
	ListDue(ctx context.Context, before time.Time, limit int) ([]Record, error)

	// List returns records matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]Record, error)
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	UserID      string
	State       State
	TemplateKey string
	Channel     channel.Channel
	Limit       int // 0 means no limit
	Offset      int
}

// Matches reports whether the record satisfies every set field.
func (f Filter) Matches(r Record) bool {
	switch {
	case f.UserID != "" && r.UserID != f.UserID:
		return false
	case f.State != "" && r.State != f.State:
		return false
	case f.TemplateKey != "" && r.TemplateKey != f.TemplateKey:
		return false
	case f.Channel != "" && r.Channel != f.Channel:
		return false
	}
	return true
}
