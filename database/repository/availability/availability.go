// File: database/repository/availability/availability.go
package availabilityRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rivelya/database/repository"
	"rivelya/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AvailabilityRepository stores weekly templates and monthly block documents.
type AvailabilityRepository interface {
	// GetWorkingHours returns nil without error when the expert has no template.
	GetWorkingHours(ctx context.Context, expertID string) (*models.WorkingHours, error)
	SaveWorkingHours(ctx context.Context, wh *models.WorkingHours) error
	GetBlocks(ctx context.Context, expertID string, year int, month time.Month) ([]models.BlockEntry, error)
	SaveBlocks(ctx context.Context, block *models.AvailabilityBlock) error
}

type mongoAvailabilityRepo struct {
	hours  *mongo.Collection
	blocks *mongo.Collection
}

func NewMongoAvailabilityRepo(db *mongo.Database) AvailabilityRepository {
	return &mongoAvailabilityRepo{
		hours:  db.Collection("working_hours"),
		blocks: db.Collection("availability_blocks"),
	}
}

func (r *mongoAvailabilityRepo) GetWorkingHours(ctx context.Context, expertID string) (*models.WorkingHours, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	var wh models.WorkingHours
	err := r.hours.FindOne(ctx, bson.M{"expertId": expertID}).Decode(&wh)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, repository.Translate("get working hours", err)
	}
	return &wh, nil
}

func (r *mongoAvailabilityRepo) SaveWorkingHours(ctx context.Context, wh *models.WorkingHours) error {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	_, err := r.hours.ReplaceOne(ctx, bson.M{"expertId": wh.ExpertID}, wh, options.Replace().SetUpsert(true))
	return repository.Translate("save working hours", err)
}

func (r *mongoAvailabilityRepo) GetBlocks(ctx context.Context, expertID string, year int, month time.Month) ([]models.BlockEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	var block models.AvailabilityBlock
	err := r.blocks.FindOne(ctx, bson.M{"expertId": expertID, "year": year, "month": int(month)}).Decode(&block)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []models.BlockEntry{}, nil
	}
	if err != nil {
		return nil, repository.Translate("get blocks", err)
	}
	return block.Entries, nil
}

func (r *mongoAvailabilityRepo) SaveBlocks(ctx context.Context, block *models.AvailabilityBlock) error {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	filter := bson.M{"expertId": block.ExpertID, "year": block.Year, "month": block.Month}
	_, err := r.blocks.ReplaceOne(ctx, filter, block, options.Replace().SetUpsert(true))
	return repository.Translate("save blocks", err)
}

// EnsureIndexes keeps one template per expert and one block document per expert month.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	hoursIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "expertId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("unique_expert"),
	}
	if _, err := db.Collection("working_hours").Indexes().CreateOne(ctx, hoursIndex); err != nil {
		return fmt.Errorf("failed to create working hours index: %w", err)
	}

	blockIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "expertId", Value: 1}, {Key: "year", Value: 1}, {Key: "month", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("unique_expert_month"),
	}
	if _, err := db.Collection("availability_blocks").Indexes().CreateOne(ctx, blockIndex); err != nil {
		return fmt.Errorf("failed to create block index: %w", err)
	}
	return nil
}
