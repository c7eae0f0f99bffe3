package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/crewnotify/pkg/channel"
)

// recordNamespace scopes deterministic record ids.
var recordNamespace = uuid.MustParse("6f1c4a52-9d0b-5e39-8a57-2b1f0c7e4d13")

// Intent asks for one user to be told about something over a set of channels.
// It is never persisted; Fanout turns it into records.
type Intent struct {
	RecipientID string
	TemplateKey string
	Category    channel.Category
	Channels    []channel.Channel
	ScheduledAt time.Time
	Payload     map[string]string
	// DedupeKey makes dispatch idempotent: the same key and channel always
	// produce the same record id.
	DedupeKey string
}

// Validate checks the fields Fanout needs.
func (i Intent) Validate() error {
	switch {
	case i.RecipientID == "":
		return fmt.Errorf("%w: recipient is required", ErrInvalidIntent)
	case i.TemplateKey == "":
		return fmt.Errorf("%w: template key is required", ErrInvalidIntent)
	}
	for _, ch := range i.Channels {
		if !ch.Valid() {
			return fmt.Errorf("%w: unknown channel %q", ErrInvalidIntent, ch)
		}
	}
	return nil
}

// RecordID returns the id of the record for one channel of the intent. Without
// a DedupeKey a random id is returned.
func (i Intent) RecordID(ch channel.Channel) string {
	if i.DedupeKey == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(recordNamespace, []byte(i.DedupeKey+"|"+string(ch))).String()
}

// DedupeKey joins the parts into an idempotency key.
func DedupeKey(parts ...string) string {
	return strings.Join(parts, "|")
}
