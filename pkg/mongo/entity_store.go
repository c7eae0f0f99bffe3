package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/crewnotify/pkg/workforce"
)

// EntityStore is a workforce.Store over the business collections.
type EntityStore struct {
	submissions  *mongo.Collection
	orders       *mongo.Collection
	users        *mongo.Collection
	certificates *mongo.Collection
}

var _ workforce.Store = (*EntityStore)(nil)

// NewEntityStore creates a store over db.
func NewEntityStore(db *mongo.Database) *EntityStore {
	return &EntityStore{
		submissions:  db.Collection(CollectionSubmissions),
		orders:       db.Collection(CollectionMaterialOrders),
		users:        db.Collection(CollectionUsers),
		certificates: db.Collection(CollectionCertificates),
	}
}

func findOne[T any](ctx context.Context, c *mongo.Collection, id string) (T, error) {
	var v T
	err := c.FindOne(ctx, bson.M{"_id": id}).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return v, workforce.ErrNotFound
	}
	if err != nil {
		return v, fmt.Errorf("find %s in %s: %w", id, c.Name(), err)
	}
	return v, nil
}

func replace(ctx context.Context, c *mongo.Collection, id string, doc any) error {
	if id == "" {
		return workforce.ErrMissingID
	}
	if _, err := c.ReplaceOne(ctx, bson.M{"_id": id}, doc, upsert()); err != nil {
		return fmt.Errorf("save %s in %s: %w", id, c.Name(), err)
	}
	return nil
}

func findAll[T any](ctx context.Context, c *mongo.Collection, filter any) ([]T, error) {
	cur, err := c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.Name(), err)
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.Name(), err)
	}
	return out, nil
}

func (s *EntityStore) GetSubmission(ctx context.Context, id string) (workforce.Submission, error) {
	return findOne[workforce.Submission](ctx, s.submissions, id)
}

func (s *EntityStore) SaveSubmission(ctx context.Context, sub workforce.Submission) error {
	return replace(ctx, s.submissions, sub.ID, sub)
}

func (s *EntityStore) ListReminderCandidates(ctx context.Context, cutoff time.Time) ([]workforce.Submission, error) {
	filter := bson.M{
		"status":     workforce.StatusDraft,
		"remindedAt": nil,
		"$or": bson.A{
			bson.M{"submittedAt": bson.M{"$lt": cutoff}},
			bson.M{"submittedAt": nil, "createdAt": bson.M{"$gt": time.Time{}, "$lt": cutoff}},
		},
	}
	return findAll[workforce.Submission](ctx, s.submissions, filter)
}

// MarkReminded is a conditional update on remindedAt being unset, so
// concurrent scans remind once.
func (s *EntityStore) MarkReminded(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.submissions.UpdateOne(ctx,
		bson.M{"_id": id, "remindedAt": nil},
		bson.M{"$set": bson.M{"remindedAt": at}},
	)
	if err != nil {
		return false, fmt.Errorf("mark %s reminded: %w", id, err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	if _, err := s.GetSubmission(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *EntityStore) CountSubmissions(ctx context.Context, status workforce.SubmissionStatus) (int, error) {
	n, err := s.submissions.CountDocuments(ctx, bson.M{"status": status})
	if err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return int(n), nil
}

func (s *EntityStore) GetMaterialOrder(ctx context.Context, id string) (workforce.MaterialOrder, error) {
	return findOne[workforce.MaterialOrder](ctx, s.orders, id)
}

func (s *EntityStore) SaveMaterialOrder(ctx context.Context, o workforce.MaterialOrder) error {
	return replace(ctx, s.orders, o.ID, o)
}

func (s *EntityStore) CountMaterialOrders(ctx context.Context, status workforce.OrderStatus) (int, error) {
	n, err := s.orders.CountDocuments(ctx, bson.M{"status": status})
	if err != nil {
		return 0, fmt.Errorf("count material orders: %w", err)
	}
	return int(n), nil
}

func (s *EntityStore) GetUser(ctx context.Context, id string) (workforce.User, error) {
	return findOne[workforce.User](ctx, s.users, id)
}

func (s *EntityStore) SaveUser(ctx context.Context, u workforce.User) error {
	return replace(ctx, s.users, u.ID, u)
}

func (s *EntityStore) ListUsersByRole(ctx context.Context, roles ...workforce.Role) ([]workforce.User, error) {
	if len(roles) == 0 {
		return []workforce.User{}, nil
	}
	return findAll[workforce.User](ctx, s.users, bson.M{"role": bson.M{"$in": roles}})
}

func (s *EntityStore) SaveCertificate(ctx context.Context, c workforce.Certificate) error {
	return replace(ctx, s.certificates, c.ID, c)
}

func (s *EntityStore) ListExpiringCertificates(ctx context.Context, from, until time.Time) ([]workforce.Certificate, error) {
	return findAll[workforce.Certificate](ctx, s.certificates, bson.M{
		"expiresAt": bson.M{"$gt": from, "$lte": until},
	})
}

func (s *EntityStore) AddNotifiedThresholds(ctx context.Context, id string, days ...int) error {
	res, err := s.certificates.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{"notifiedThresholds": bson.M{"$each": days}}},
	)
	if err != nil {
		return fmt.Errorf("record thresholds for %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return workforce.ErrNotFound
	}
	return nil
}
