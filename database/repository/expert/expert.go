// File: database/repository/expert/expert.go
package expertRepo

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

type ExpertRepository interface {
	GetByID(ctx context.Context, id string) (*models.Expert, error)
	GetByUserID(ctx context.Context, userID string) (*models.Expert, error)
	Upsert(ctx context.Context, e *models.Expert) error
}

type mongoExpertRepo struct {
	coll *mongo.Collection
}

func NewMongoExpertRepo(db *mongo.Database) ExpertRepository {
	return &mongoExpertRepo{coll: db.Collection("experts")}
}

func (r *mongoExpertRepo) GetByID(ctx context.Context, id string) (*models.Expert, error) {
	return r.findOne(ctx, "get expert "+id, bson.M{"id": id})
}

func (r *mongoExpertRepo) GetByUserID(ctx context.Context, userID string) (*models.Expert, error) {
	return r.findOne(ctx, "get expert for user "+userID, bson.M{"userId": userID})
}

func (r *mongoExpertRepo) findOne(ctx context.Context, op string, filter bson.M) (*models.Expert, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	var e models.Expert
	if err := r.coll.FindOne(ctx, filter).Decode(&e); err != nil {
		return nil, repository.Translate(op, err)
	}
	return &e, nil
}

func (r *mongoExpertRepo) Upsert(ctx context.Context, e *models.Expert) error {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	_, err := r.coll.ReplaceOne(ctx, bson.M{"id": e.ID}, e, options.Replace().SetUpsert(true))
	return repository.Translate("upsert expert", err)
}

func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_user"),
		},
	}
	if _, err := db.Collection("experts").Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create expert indexes: %w", err)
	}
	return nil
}
