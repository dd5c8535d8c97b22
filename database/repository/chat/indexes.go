package chatRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the chat indexes. The partial unique index on chat_calls allows
// a single active call per thread.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	threadIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		{
			Keys:    bson.D{{Key: "bookingId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_booking"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "expiresAt", Value: 1}},
			Options: options.Index().SetName("status_expires_idx"),
		},
	}
	if _, err := db.Collection("chat_threads").Indexes().CreateMany(ctx, threadIndexes); err != nil {
		return fmt.Errorf("failed to create thread indexes: %w", err)
	}

	messageIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "threadId", Value: 1}, {Key: "createdAt", Value: 1}},
		Options: options.Index().SetName("thread_created_idx"),
	}
	if _, err := db.Collection("chat_messages").Indexes().CreateOne(ctx, messageIndex); err != nil {
		return fmt.Errorf("failed to create message index: %w", err)
	}

	callIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		{
			Keys: bson.D{{Key: "threadId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("one_active_call_per_thread").
				SetPartialFilterExpression(bson.M{"active": bson.M{"$eq": true}}),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "initiatedAt", Value: 1}},
			Options: options.Index().SetName("status_initiated_idx"),
		},
	}
	if _, err := db.Collection("chat_calls").Indexes().CreateMany(ctx, callIndexes); err != nil {
		return fmt.Errorf("failed to create call indexes: %w", err)
	}
	return nil
}
