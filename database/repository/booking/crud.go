package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"rivelya/database/repository"
	"rivelya/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

func (r *mongoBookingRepo) Create(ctx context.Context, b *models.Booking) error {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	if b.Version == 0 {
		b.Version = 1
	}
	_, err := r.coll.InsertOne(ctx, b)
	return repository.Translate("create booking", err)
}

func (r *mongoBookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	var b models.Booking
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&b); err != nil {
		return nil, repository.Translate("get booking "+id, err)
	}
	return &b, nil
}

func (r *mongoBookingRepo) Swap(ctx context.Context, next *models.Booking, expected models.BookingStatus) (bool, error) {
	return r.replace(ctx, swapFilter(next.ID, next.Version, expected), next)
}

func (r *mongoBookingRepo) ClaimAutoStart(ctx context.Context, next *models.Booking) (bool, error) {
	return r.replace(ctx, autoStartFilter(next.ID, next.Version), next)
}

func (r *mongoBookingRepo) replace(ctx context.Context, filter bson.M, next *models.Booking) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	doc := *next
	doc.Version = next.Version + 1
	doc.UpdatedAt = time.Now().UTC()

	res, err := r.coll.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return false, repository.Translate("swap booking "+next.ID, err)
	}
	if res.MatchedCount == 0 {
		return false, nil
	}
	next.Version = doc.Version
	next.UpdatedAt = doc.UpdatedAt
	return true, nil
}

// WithDayGuard bumps the expert_days counter for (expert, date) and runs fn in the same
// transaction. Two guarded transactions on the same day conflict on that document and the
// driver retries the loser, which then sees the winner's writes.
func (r *mongoBookingRepo) WithDayGuard(ctx context.Context, expertID, date string, fn func(ctx context.Context) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		_, err := r.days.UpdateOne(sc,
			bson.M{"expertId": expertID, "date": date},
			bson.M{
				"$inc": bson.M{"version": 1},
				"$set": bson.M{"updatedAt": time.Now().UTC()},
			},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return nil, fmt.Errorf("bump expert day: %w", err)
		}
		return nil, fn(sc)
	}, txnOpts)
	return err
}
