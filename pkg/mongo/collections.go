package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names.
const (
	CollectionSubmissions    = "submissions"
	CollectionMaterialOrders = "material_orders"
	CollectionUsers          = "users"
	CollectionCertificates   = "certificates"
	CollectionNotifications  = "notifications"
	CollectionAudit          = "audit_log"
	CollectionStreamTokens   = "stream_tokens"
)

var indexes = map[string][]mongo.IndexModel{
	CollectionSubmissions: {
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "remindedAt", Value: 1}}},
	},
	CollectionMaterialOrders: {
		{Keys: bson.D{{Key: "status", Value: 1}}},
	},
	CollectionUsers: {
		{Keys: bson.D{{Key: "role", Value: 1}}},
	},
	CollectionCertificates: {
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}},
	},
	CollectionNotifications: {
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "nextAttemptAt", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
	},
	CollectionAudit: {
		{Keys: bson.D{{Key: "action", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "resourceId", Value: 1}}},
	},
}

// Setup creates indexes and enables pre-images on the watched collections,
// which the change-stream watcher needs to report the previous state of an
// updated document. Requires MongoDB 6.0 or newer.
func Setup(ctx context.Context, db *mongo.Database) error {
	for _, name := range []string{CollectionSubmissions, CollectionMaterialOrders} {
		if err := db.CreateCollection(ctx, name); err != nil && !isNamespaceExists(err) {
			return fmt.Errorf("create %s: %w", name, err)
		}
		cmd := bson.D{
			{Key: "collMod", Value: name},
			{Key: "changeStreamPreAndPostImages", Value: bson.D{{Key: "enabled", Value: true}}},
		}
		if err := db.RunCommand(ctx, cmd).Err(); err != nil {
			return fmt.Errorf("enable pre-images on %s: %w", name, err)
		}
	}
	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func isNamespaceExists(err error) bool {
	var ce mongo.CommandError
	return errors.As(err, &ce) && ce.Name == "NamespaceExists"
}

func upsert() *options.ReplaceOptionsBuilder {
	return options.Replace().SetUpsert(true)
}
