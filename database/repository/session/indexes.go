package sessionRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the session and earnings indexes. The bookingId index keeps one
// session per booking; the sessionId index keeps one earning per session.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	sessionIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		{
			Keys: bson.D{{Key: "bookingId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_booking").
				SetPartialFilterExpression(bson.M{"bookingId": bson.M{"$exists": true}}),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "endTs", Value: 1}},
			Options: options.Index().SetName("status_end_idx"),
		},
	}
	if _, err := db.Collection("sessions").Indexes().CreateMany(ctx, sessionIndexes); err != nil {
		return fmt.Errorf("failed to create session indexes: %w", err)
	}

	earningIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sessionId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_session"),
		},
		{
			Keys:    bson.D{{Key: "expertId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("expert_created_idx"),
		},
	}
	if _, err := db.Collection("earnings").Indexes().CreateMany(ctx, earningIndexes); err != nil {
		return fmt.Errorf("failed to create earning indexes: %w", err)
	}
	return nil
}
