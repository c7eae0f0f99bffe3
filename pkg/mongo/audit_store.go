package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/crewnotify/pkg/audit"
)

// AuditStore is an append-only audit.Storage over the audit_log collection.
type AuditStore struct {
	coll *mongo.Collection
}

var _ audit.Storage = (*AuditStore)(nil)

// NewAuditStore creates a store over db.
func NewAuditStore(db *mongo.Database) *AuditStore {
	return &AuditStore{coll: db.Collection(CollectionAudit)}
}

func (s *AuditStore) Store(ctx context.Context, e audit.Entry) error {
	_, err := s.coll.InsertOne(ctx, e)
	if mongo.IsDuplicateKeyError(err) {
		return audit.ErrDuplicateEntry
	}
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Query returns matching entries oldest first.
func (s *AuditStore) Query(ctx context.Context, c audit.Criteria) ([]audit.Entry, error) {
	cur, err := s.coll.Find(ctx, auditFilter(c), auditFindOptions(c))
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	out := []audit.Entry{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode audit log: %w", err)
	}
	return out, nil
}

func auditFilter(c audit.Criteria) bson.M {
	f := bson.M{}
	if c.Action != "" {
		f["action"] = c.Action
	}
	if c.Resource != "" {
		f["resource"] = c.Resource
	}
	if c.ResourceID != "" {
		f["resourceId"] = c.ResourceID
	}
	if c.Result != "" {
		f["result"] = c.Result
	}
	created := bson.M{}
	if !c.Since.IsZero() {
		created["$gte"] = c.Since
	}
	if !c.Until.IsZero() {
		created["$lt"] = c.Until
	}
	if len(created) > 0 {
		f["createdAt"] = created
	}
	return f
}

func auditFindOptions(c audit.Criteria) *options.FindOptionsBuilder {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if c.Offset > 0 {
		opts.SetSkip(int64(c.Offset))
	}
	if c.Limit > 0 {
		opts.SetLimit(int64(c.Limit))
	}
	return opts
}
