package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage persists audit entries. Implementations must never update or delete
// stored entries.
type Storage interface {
	Store(ctx context.Context, entry Entry) error
	Query(ctx context.Context, criteria Criteria) ([]Entry, error)
}

// Recorder is what components use to write to the audit log.
type Recorder interface {
	Log(ctx context.Context, action string, opts ...EntryOption) error
	LogError(ctx context.Context, action string, err error, opts ...EntryOption) error
}

// Logger writes entries to a Storage.
type Logger struct {
	storage  Storage
	now      func() time.Time
	redacted map[string]struct{}
}

// Option configures Logger behavior during initialization
type Option func(*Logger)

// WithClock overrides the time source used to stamp entries.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithRedactedKeys masks the values of the given metadata keys before storing.
// Use it for contact details such as phone numbers and email addresses.
func WithRedactedKeys(keys ...string) Option {
	return func(l *Logger) {
		for _, k := range keys {
			l.redacted[k] = struct{}{}
		}
	}
}

// NewLogger creates a new audit logger
func NewLogger(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}

	l := &Logger{
		storage:  storage,
		now:      time.Now,
		redacted: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithResource sets the resource type and ID
func WithResource(resource, id string) EntryOption {
	return func(e *Entry) {
		e.Resource = resource
		e.ResourceID = id
	}
}

// WithMetadata adds metadata to the entry
func WithMetadata(key string, value any) EntryOption {
	return func(e *Entry) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}

// WithResult sets the entry result
func WithResult(result Result) EntryOption {
	return func(e *Entry) {
		e.Result = result
	}
}

// Log records an action. The result defaults to success.
func (l *Logger) Log(ctx context.Context, action string, opts ...EntryOption) error {
	entry := Entry{
		ID:        uuid.New().String(),
		Action:    action,
		Result:    ResultSuccess,
		CreatedAt: l.now().UTC(),
	}
	for _, opt := range opts {
		opt(&entry)
	}
	return l.store(ctx, entry)
}

// LogError records a failed action together with its error text.
func (l *Logger) LogError(ctx context.Context, action string, err error, opts ...EntryOption) error {
	entry := Entry{
		ID:        uuid.New().String(),
		Action:    action,
		Result:    ResultError,
		CreatedAt: l.now().UTC(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	for _, opt := range opts {
		opt(&entry)
	}
	return l.store(ctx, entry)
}

func (l *Logger) store(ctx context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	for k, v := range entry.Metadata {
		if _, ok := l.redacted[k]; ok {
			entry.Metadata[k] = mask(v)
		}
	}
	return l.storage.Store(ctx, entry)
}

// mask keeps the last four characters of a string value.
func mask(v any) any {
	s, ok := v.(string)
	if !ok {
		return "***"
	}
	if len(s) <= 4 {
		return "***"
	}
	return "***" + s[len(s)-4:]
}

// Reader reads the audit log.
type Reader struct {
	storage Storage
}

// NewReader creates a new audit reader
func NewReader(storage Storage) *Reader {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	return &Reader{storage: storage}
}

// Find retrieves audit entries matching the criteria, oldest first.
func (r *Reader) Find(ctx context.Context, criteria Criteria) ([]Entry, error) {
	return r.storage.Query(ctx, criteria)
}
