package chatRepo

import (
	"context"
	"errors"
	"slices"
	"time"

	"rivelya/database/repository"
	"rivelya/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *mongoThreadRepo) EnsureForBooking(ctx context.Context, t *models.ChatThread) (*models.ChatThread, error) {
	if t.BookingID == "" {
		return nil, errors.New("ensure thread: booking id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	if t.Version == 0 {
		t.Version = 1
	}
	insert, err := repository.OnInsertDoc(t, "bookingId")
	if err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var stored models.ChatThread
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"bookingId": t.BookingID},
		bson.M{"$setOnInsert": insert},
		opts,
	).Decode(&stored)
	if err != nil {
		return nil, repository.Translate("ensure thread for booking "+t.BookingID, err)
	}
	return &stored, nil
}

func (r *mongoThreadRepo) GetByID(ctx context.Context, id string) (*models.ChatThread, error) {
	return r.findOne(ctx, "get thread "+id, bson.M{"id": id})
}

func (r *mongoThreadRepo) GetByBookingID(ctx context.Context, bookingID string) (*models.ChatThread, error) {
	return r.findOne(ctx, "get thread for booking "+bookingID, bson.M{"bookingId": bookingID})
}

func (r *mongoThreadRepo) findOne(ctx context.Context, op string, filter bson.M) (*models.ChatThread, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	var t models.ChatThread
	if err := r.coll.FindOne(ctx, filter).Decode(&t); err != nil {
		return nil, repository.Translate(op, err)
	}
	return &t, nil
}

func (r *mongoThreadRepo) Swap(ctx context.Context, next *models.ChatThread, expected models.ThreadStatus) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	doc := *next
	doc.Version = next.Version + 1
	doc.UpdatedAt = time.Now().UTC()

	filter := bson.M{"id": next.ID, "version": next.Version, "status": expected}
	res, err := r.coll.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return false, repository.Translate("swap thread "+next.ID, err)
	}
	if res.MatchedCount == 0 {
		return false, nil
	}
	next.Version = doc.Version
	next.UpdatedAt = doc.UpdatedAt
	return true, nil
}

func (r *mongoThreadRepo) ListDue(ctx context.Context, now time.Time, limit int64) ([]models.ChatThread, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	filter := bson.M{"$or": bson.A{
		bson.M{"status": models.ThreadOpen, "expiresAt": bson.M{"$lte": now}},
		bson.M{"status": models.ThreadExpired, "finalized": false},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "expiresAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, repository.Translate("list due threads", err)
	}
	defer cursor.Close(ctx)

	threads := []models.ChatThread{}
	if err := cursor.All(ctx, &threads); err != nil {
		return nil, repository.Translate("list due threads", err)
	}
	return threads, nil
}

func (r *mongoMessageRepo) Insert(ctx context.Context, m *models.ChatMessage) error {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	_, err := r.coll.InsertOne(ctx, m)
	return repository.Translate("insert message", err)
}

func (r *mongoMessageRepo) ListByThread(ctx context.Context, threadID string, limit int64) ([]models.ChatMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.coll.Find(ctx, bson.M{"threadId": threadID}, opts)
	if err != nil {
		return nil, repository.Translate("list messages", err)
	}
	defer cursor.Close(ctx)

	messages := []models.ChatMessage{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, repository.Translate("list messages", err)
	}
	slices.Reverse(messages)
	return messages, nil
}
