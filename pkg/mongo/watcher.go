package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/crewnotify/pkg/events"
	"github.com/dmitrymomot/crewnotify/pkg/logger"
	"github.com/dmitrymomot/crewnotify/pkg/workforce"
)

var eventNamespace = uuid.MustParse("8f0b7a51-3c1e-4d5e-9b8a-2f6c1d7e4a90")

// Publisher accepts entity events and returns once they were handled.
type Publisher interface {
	PublishWait(ctx context.Context, e events.Event) error
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithRetryInterval sets the pause before reopening a failed stream.
func WithRetryInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.retry = d
		}
	}
}

// Watcher turns change-stream events on submissions and material orders
// into bus events. Each stream is read one change at a time and its resume
// token is persisted only after the bus handled the change, so a restart
// continues from the first unhandled change. A change may be handled twice
// around a crash; handlers are idempotent.
type Watcher struct {
	db     *mongo.Database
	tokens *mongo.Collection
	bus    Publisher
	logger *slog.Logger
	retry  time.Duration
}

// NewWatcher creates a watcher over db publishing to bus.
func NewWatcher(db *mongo.Database, bus Publisher, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		db:     db,
		tokens: db.Collection(CollectionStreamTokens),
		bus:    bus,
		logger: slog.Default(),
		retry:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logger.Component("change_stream"))
	return w
}

// Watch blocks until ctx is cancelled, reopening streams that fail.
func (w *Watcher) Watch(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return keepWatching(ctx, w, CollectionSubmissions, submissionEvent)
	})
	g.Go(func() error {
		return keepWatching(ctx, w, CollectionMaterialOrders, orderEvent)
	})
	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Run returns a function for an errgroup.
func (w *Watcher) Run(ctx context.Context) func() error {
	return func() error { return w.Watch(ctx) }
}

type change[T any] struct {
	Token         bson.Raw  `bson:"_id"`
	OperationType string    `bson:"operationType"`
	WallTime      time.Time `bson:"wallTime"`
	FullDocument  *T        `bson:"fullDocument"`
	Before        *T        `bson:"fullDocumentBeforeChange"`
}

// eventID is stable for a change, so redelivered changes dedupe downstream.
func (c change[T]) eventID() string {
	return uuid.NewSHA1(eventNamespace, c.Token).String()
}

func (c change[T]) op() (events.Op, bool) {
	switch c.OperationType {
	case "insert":
		return events.OpCreate, true
	case "update", "replace":
		return events.OpUpdate, true
	}
	return "", false
}

func submissionEvent(c change[workforce.Submission], op events.Op) events.Event {
	return events.SubmissionEvent{ID: c.eventID(), Op: op, Before: c.Before, After: *c.FullDocument, OccurredAt: c.WallTime}
}

func orderEvent(c change[workforce.MaterialOrder], op events.Op) events.Event {
	return events.MaterialOrderEvent{ID: c.eventID(), Op: op, Before: c.Before, After: *c.FullDocument, OccurredAt: c.WallTime}
}

func keepWatching[T any](ctx context.Context, w *Watcher, coll string, build func(change[T], events.Op) events.Event) error {
	log := w.logger.With(slog.String("collection", coll))
	for {
		err := watchCollection(ctx, w, coll, build)
		if ctx.Err() != nil {
			return nil
		}
		log.LogAttrs(ctx, slog.LevelError, "change stream interrupted", logger.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.retry):
		}
	}
}

func watchCollection[T any](ctx context.Context, w *Watcher, coll string, build func(change[T], events.Op) events.Event) error {
	opts := changeStreamOptions()
	token, err := w.loadToken(ctx, coll)
	if err != nil {
		return err
	}
	if token != nil {
		opts.SetResumeAfter(token)
	}

	pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.D{
		{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update", "replace"}}}},
	}}}}
	stream, err := w.db.Collection(coll).Watch(ctx, pipeline, opts)
	if err != nil {
		return fmt.Errorf("open change stream on %s: %w", coll, err)
	}
	defer stream.Close(context.WithoutCancel(ctx))

	for stream.Next(ctx) {
		var c change[T]
		if err := stream.Decode(&c); err != nil {
			return fmt.Errorf("decode change on %s: %w", coll, err)
		}
		if err := forward(ctx, w, c, build); err != nil {
			return err
		}
		if err := w.saveToken(ctx, coll, stream.ResumeToken()); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("change stream on %s: %w", coll, err)
	}
	return ErrWatcherStopped
}

// changeStreamOptions asks for the post-image recorded with each change, not
// the current document, so two quick updates are seen as two transitions.
func changeStreamOptions() *options.ChangeStreamOptionsBuilder {
	return options.ChangeStream().
		SetFullDocument(options.WhenAvailable).
		SetFullDocumentBeforeChange(options.WhenAvailable)
}

// forward publishes one change and waits for it to be handled. A nil error
// means the change is done with and its token may be saved.
func forward[T any](ctx context.Context, w *Watcher, c change[T], build func(change[T], events.Op) events.Event) error {
	op, ok := c.op()
	if !ok {
		return nil
	}
	if c.FullDocument == nil {
		w.logger.LogAttrs(ctx, slog.LevelWarn, "skipping change without post-image",
			logger.EventID(c.eventID()),
			slog.String("operation", c.OperationType),
		)
		return nil
	}

	e := build(c, op)
	err := w.bus.PublishWait(ctx, e)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, events.ErrInvalidEvent), errors.Is(err, events.ErrEventDropped):
		// An update without a pre-image cannot be compared, and a dropped
		// event would fail the same way again.
		w.logger.LogAttrs(ctx, slog.LevelWarn, "skipping change",
			logger.EventID(e.EventID()),
			logger.EventKind(string(e.Kind())),
			logger.Error(err),
		)
		return nil
	default:
		return fmt.Errorf("publish %s: %w", e.EventID(), err)
	}
}

type streamToken struct {
	Collection string   `bson:"_id"`
	Token      bson.Raw `bson:"token"`
}

func (w *Watcher) loadToken(ctx context.Context, coll string) (bson.Raw, error) {
	var t streamToken
	err := w.tokens.FindOne(ctx, bson.M{"_id": coll}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load resume token for %s: %w", coll, err)
	}
	return t.Token, nil
}

func (w *Watcher) saveToken(ctx context.Context, coll string, token bson.Raw) error {
	if token == nil {
		return nil
	}
	_, err := w.tokens.ReplaceOne(ctx, bson.M{"_id": coll}, streamToken{Collection: coll, Token: token}, upsert())
	if err != nil {
		return fmt.Errorf("save resume token for %s: %w", coll, err)
	}
	return nil
}
