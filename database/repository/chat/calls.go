package chatRepo

import (
	"context"
	"time"

	"rivelya/database/repository"
	"rivelya/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *mongoCallRepo) Create(ctx context.Context, c *models.ChatCall) error {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	if c.Version == 0 {
		c.Version = 1
	}
	c.Active = !c.Status.Terminal()
	_, err := r.coll.InsertOne(ctx, c)
	return repository.Translate("create call", err)
}

func (r *mongoCallRepo) GetByID(ctx context.Context, id string) (*models.ChatCall, error) {
	return r.findOne(ctx, "get call "+id, bson.M{"id": id})
}

func (r *mongoCallRepo) FindActiveByThread(ctx context.Context, threadID string) (*models.ChatCall, error) {
	return r.findOne(ctx, "get active call for thread "+threadID, bson.M{"threadId": threadID, "active": true})
}

func (r *mongoCallRepo) findOne(ctx context.Context, op string, filter bson.M) (*models.ChatCall, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	var c models.ChatCall
	if err := r.coll.FindOne(ctx, filter).Decode(&c); err != nil {
		return nil, repository.Translate(op, err)
	}
	return &c, nil
}

func (r *mongoCallRepo) Swap(ctx context.Context, next *models.ChatCall, expected models.CallStatus) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	doc := *next
	doc.Version = next.Version + 1
	doc.UpdatedAt = time.Now().UTC()
	doc.Active = !doc.Status.Terminal()

	filter := bson.M{"id": next.ID, "version": next.Version, "status": expected}
	res, err := r.coll.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return false, repository.Translate("swap call "+next.ID, err)
	}
	if res.MatchedCount == 0 {
		return false, nil
	}
	next.Version = doc.Version
	next.UpdatedAt = doc.UpdatedAt
	next.Active = doc.Active
	return true, nil
}

func (r *mongoCallRepo) ListRingingSince(ctx context.Context, initiatedBefore time.Time, limit int64) ([]models.ChatCall, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	filter := bson.M{
		"status":      models.CallCalling,
		"initiatedAt": bson.M{"$lte": initiatedBefore},
	}
	opts := options.Find().SetSort(bson.D{{Key: "initiatedAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, repository.Translate("list ringing calls", err)
	}
	defer cursor.Close(ctx)

	calls := []models.ChatCall{}
	if err := cursor.All(ctx, &calls); err != nil {
		return nil, repository.Translate("list ringing calls", err)
	}
	return calls, nil
}
