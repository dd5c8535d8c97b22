package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes used by the calendar lookups and the reconciliation scans.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	bookingIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		{
			Keys:    bson.D{{Key: "expertId", Value: 1}, {Key: "date", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("expert_date_status_idx"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "scheduledStartAt", Value: 1}},
			Options: options.Index().SetName("status_start_idx"),
		},
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "scheduledStartAt", Value: -1}},
			Options: options.Index().SetName("client_start_idx"),
		},
		{
			Keys:    bson.D{{Key: "expertUserId", Value: 1}, {Key: "scheduledStartAt", Value: -1}},
			Options: options.Index().SetName("expert_user_start_idx"),
		},
		{
			Keys: bson.D{{Key: "refundStatus", Value: 1}},
			Options: options.Index().SetName("refund_pending_idx").
				SetPartialFilterExpression(bson.M{"refundStatus": "pending"}),
		},
	}
	if _, err := db.Collection("bookings").Indexes().CreateMany(ctx, bookingIndexes); err != nil {
		return fmt.Errorf("failed to create booking indexes: %w", err)
	}

	dayIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "expertId", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("expert_date_unique"),
	}
	if _, err := db.Collection("expert_days").Indexes().CreateOne(ctx, dayIndex); err != nil {
		return fmt.Errorf("failed to create expert day index: %w", err)
	}
	return nil
}
