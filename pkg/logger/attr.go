package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// RecordID records a notification record id.
func RecordID(id string) slog.Attr {
	return slog.String("record_id", id)
}

// UserID records the recipient or actor id.
func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

// Channel records the delivery channel.
func Channel(ch string) slog.Attr {
	return slog.String("channel", ch)
}

// TemplateKey records the notification template key.
func TemplateKey(key string) slog.Attr {
	return slog.String("template", key)
}

// EntityID records the business entity id an event refers to.
func EntityID(id string) slog.Attr {
	return slog.String("entity_id", id)
}

// EventID records the bus event id.
func EventID(id string) slog.Attr {
	return slog.String("event_id", id)
}

// EventKind records the bus event kind, for example "submission.updated".
func EventKind(kind string) slog.Attr {
	return slog.String("event_kind", kind)
}

// Job records a scheduler job name.
func Job(name string) slog.Attr {
	return slog.String("job", name)
}

// Outcome records a delivery or job outcome.
func Outcome(o string) slog.Attr {
	return slog.String("outcome", o)
}

// Attempt records an attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// Duration records an elapsed duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
