// File: database/repository/notification/notification.go
package notificationRepo

import (
	"context"
	"fmt"
	"time"

	"rivelya/database/repository"
	"rivelya/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InboxRepository stores in-app notifications.
type InboxRepository interface {
	Insert(ctx context.Context, n *models.Notification) error
	ListForUser(ctx context.Context, userID string, limit int64) ([]models.Notification, error)
}

// DeviceRepository maps users to push tokens.
type DeviceRepository interface {
	Upsert(ctx context.Context, d *models.Device) error
	TokensForUser(ctx context.Context, userID string) ([]string, error)
	RemoveToken(ctx context.Context, token string) error
}

// AlertRepository stores one-shot expert availability subscriptions.
type AlertRepository interface {
	// Subscribe activates (or re-activates) the subscription of subscriberID to expertID.
	Subscribe(ctx context.Context, a *models.AvailabilityAlert) error
	ListActive(ctx context.Context, expertID string) ([]models.AvailabilityAlert, error)
	// Deactivate flips an active subscription off. false means it was already fired.
	Deactivate(ctx context.Context, id string, firedAt time.Time) (bool, error)
}

type mongoInboxRepo struct{ coll *mongo.Collection }
type mongoDeviceRepo struct{ coll *mongo.Collection }
type mongoAlertRepo struct{ coll *mongo.Collection }

func NewMongoInboxRepo(db *mongo.Database) InboxRepository {
	return &mongoInboxRepo{coll: db.Collection("notifications")}
}

func NewMongoDeviceRepo(db *mongo.Database) DeviceRepository {
	return &mongoDeviceRepo{coll: db.Collection("devices")}
}

func NewMongoAlertRepo(db *mongo.Database) AlertRepository {
	return &mongoAlertRepo{coll: db.Collection("availability_alerts")}
}

func (r *mongoInboxRepo) Insert(ctx context.Context, n *models.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	_, err := r.coll.InsertOne(ctx, n)
	return repository.Translate("insert notification", err)
}

func (r *mongoInboxRepo) ListForUser(ctx context.Context, userID string, limit int64) ([]models.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, repository.Translate("list notifications", err)
	}
	defer cursor.Close(ctx)

	out := []models.Notification{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, repository.Translate("list notifications", err)
	}
	return out, nil
}

func (r *mongoDeviceRepo) Upsert(ctx context.Context, d *models.Device) error {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	_, err := r.coll.ReplaceOne(ctx, bson.M{"fcmToken": d.FCMToken}, d, options.Replace().SetUpsert(true))
	return repository.Translate("upsert device", err)
}

func (r *mongoDeviceRepo) TokensForUser(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	cursor, err := r.coll.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, repository.Translate("list devices", err)
	}
	defer cursor.Close(ctx)

	var devices []models.Device
	if err := cursor.All(ctx, &devices); err != nil {
		return nil, repository.Translate("list devices", err)
	}
	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		tokens = append(tokens, d.FCMToken)
	}
	return tokens, nil
}

func (r *mongoDeviceRepo) RemoveToken(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	_, err := r.coll.DeleteOne(ctx, bson.M{"fcmToken": token})
	return repository.Translate("remove device", err)
}

func (r *mongoAlertRepo) Subscribe(ctx context.Context, a *models.AvailabilityAlert) error {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	filter := bson.M{"expertId": a.ExpertID, "subscriberId": a.SubscriberID}
	update := bson.M{
		"$set":         bson.M{"active": true, "createdAt": a.CreatedAt},
		"$unset":       bson.M{"firedAt": ""},
		"$setOnInsert": bson.M{"id": a.ID},
	}
	_, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return repository.Translate("subscribe alert", err)
}

func (r *mongoAlertRepo) ListActive(ctx context.Context, expertID string) ([]models.AvailabilityAlert, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	cursor, err := r.coll.Find(ctx, bson.M{"expertId": expertID, "active": true})
	if err != nil {
		return nil, repository.Translate("list alerts", err)
	}
	defer cursor.Close(ctx)

	out := []models.AvailabilityAlert{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, repository.Translate("list alerts", err)
	}
	return out, nil
}

func (r *mongoAlertRepo) Deactivate(ctx context.Context, id string, firedAt time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"id": id, "active": true},
		bson.M{"$set": bson.M{"active": false, "firedAt": firedAt}},
	)
	if err != nil {
		return false, repository.Translate("deactivate alert "+id, err)
	}
	return res.MatchedCount > 0, nil
}

func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	inbox := mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("user_created_idx"),
	}
	if _, err := db.Collection("notifications").Indexes().CreateOne(ctx, inbox); err != nil {
		return fmt.Errorf("failed to create notification index: %w", err)
	}

	devices := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "fcmToken", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_token"),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetName("user_idx"),
		},
	}
	if _, err := db.Collection("devices").Indexes().CreateMany(ctx, devices); err != nil {
		return fmt.Errorf("failed to create device indexes: %w", err)
	}

	alerts := mongo.IndexModel{
		Keys:    bson.D{{Key: "expertId", Value: 1}, {Key: "subscriberId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("unique_expert_subscriber"),
	}
	if _, err := db.Collection("availability_alerts").Indexes().CreateOne(ctx, alerts); err != nil {
		return fmt.Errorf("failed to create alert index: %w", err)
	}
	return nil
}
