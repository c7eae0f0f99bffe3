package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/crewnotify/pkg/notifications"
)

// NotificationStore is a notifications.Storage over the notifications
// collection. Claims are taken with a single FindOneAndUpdate so two workers
// can never hold the same record.
type NotificationStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ notifications.Storage = (*NotificationStore)(nil)

// NotificationStoreOption configures a NotificationStore.
type NotificationStoreOption func(*NotificationStore)

// WithNotificationClock sets the time source used to judge claim expiry.
func WithNotificationClock(now func() time.Time) NotificationStoreOption {
	return func(s *NotificationStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewNotificationStore creates a store over db.
func NewNotificationStore(db *mongo.Database, opts ...NotificationStoreOption) *NotificationStore {
	s := &NotificationStore{coll: db.Collection(CollectionNotifications), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// unclaimed matches records with no live claim at now.
func unclaimed(now time.Time) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"lockedBy": nil},
		bson.M{"lockedUntil": nil},
		bson.M{"lockedUntil": bson.M{"$lte": now}},
	}}
}

func (s *NotificationStore) Create(ctx context.Context, rec notifications.Record) error {
	_, err := s.coll.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return notifications.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert notification %s: %w", rec.ID, err)
	}
	return nil
}

func (s *NotificationStore) Get(ctx context.Context, id string) (notifications.Record, error) {
	var rec notifications.Record
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return rec, notifications.ErrNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("find notification %s: %w", id, err)
	}
	return rec, nil
}

func (s *NotificationStore) Claim(ctx context.Context, id, owner string, until time.Time) (notifications.Record, error) {
	filter := bson.M{
		"_id":   id,
		"state": notifications.StatePending,
		"$or": bson.A{
			unclaimed(s.now()),
			bson.M{"lockedBy": owner},
		},
	}
	update := bson.M{"$set": bson.M{"lockedBy": owner, "lockedUntil": until}}

	var rec notifications.Record
	err := s.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rec)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return rec, fmt.Errorf("claim notification %s: %w", id, err)
	}

	// Nothing matched: tell apart missing, terminal and held by someone else.
	cur, err := s.Get(ctx, id)
	if err != nil {
		return cur, err
	}
	if cur.State.Terminal() {
		return cur, notifications.ErrTerminal
	}
	return cur, notifications.ErrLocked
}

func (s *NotificationStore) Save(ctx context.Context, rec notifications.Record, owner string) error {
	rec.LockedBy = ""
	rec.LockedUntil = nil

	res, err := s.coll.ReplaceOne(ctx, bson.M{
		"_id":      rec.ID,
		"state":    notifications.StatePending,
		"lockedBy": owner,
	}, rec)
	if err != nil {
		return fmt.Errorf("save notification %s: %w", rec.ID, err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := s.Get(ctx, rec.ID); err != nil {
		return err
	}
	return notifications.ErrLockLost
}

func (s *NotificationStore) ListDue(ctx context.Context, before time.Time, limit int) ([]notifications.Record, error) {
	filter := bson.M{
		"state":         notifications.StatePending,
		"nextAttemptAt": bson.M{"$lte": before},
	}
	for k, v := range unclaimed(s.now()) {
		filter[k] = v
	}
	opts := options.Find().SetSort(bson.D{{Key: "nextAttemptAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.find(ctx, filter, opts)
}

func (s *NotificationStore) List(ctx context.Context, f notifications.Filter) ([]notifications.Record, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if f.State != "" {
		filter["state"] = f.State
	}
	if f.TemplateKey != "" {
		filter["templateKey"] = f.TemplateKey
	}
	if f.Channel != "" {
		filter["channel"] = f.Channel
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	if f.Offset > 0 {
		opts.SetSkip(int64(f.Offset))
	}
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	return s.find(ctx, filter, opts)
}

func (s *NotificationStore) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]notifications.Record, error) {
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	out := []notifications.Record{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return out, nil
}
