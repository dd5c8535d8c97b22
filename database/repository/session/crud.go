package sessionRepo

import (
	"context"
	"errors"
	"time"

	"rivelya/database/repository"
	"rivelya/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *mongoSessionRepo) Create(ctx context.Context, s *models.Session) error {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	if s.Version == 0 {
		s.Version = 1
	}
	_, err := r.coll.InsertOne(ctx, s)
	return repository.Translate("create session", err)
}

func (r *mongoSessionRepo) EnsureForBooking(ctx context.Context, s *models.Session) (*models.Session, error) {
	if s.BookingID == "" {
		return nil, errors.New("ensure session: booking id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	if s.Version == 0 {
		s.Version = 1
	}
	insert, err := repository.OnInsertDoc(s, "bookingId")
	if err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var stored models.Session
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"bookingId": s.BookingID},
		bson.M{"$setOnInsert": insert},
		opts,
	).Decode(&stored)
	if err != nil {
		return nil, repository.Translate("ensure session for booking "+s.BookingID, err)
	}
	return &stored, nil
}

func (r *mongoSessionRepo) GetByID(ctx context.Context, id string) (*models.Session, error) {
	return r.findOne(ctx, "get session "+id, bson.M{"id": id})
}

func (r *mongoSessionRepo) GetByBookingID(ctx context.Context, bookingID string) (*models.Session, error) {
	return r.findOne(ctx, "get session for booking "+bookingID, bson.M{"bookingId": bookingID})
}

func (r *mongoSessionRepo) findOne(ctx context.Context, op string, filter bson.M) (*models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	var s models.Session
	if err := r.coll.FindOne(ctx, filter).Decode(&s); err != nil {
		return nil, repository.Translate(op, err)
	}
	return &s, nil
}

func (r *mongoSessionRepo) Swap(ctx context.Context, next *models.Session, expected models.SessionStatus) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	doc := *next
	doc.Version = next.Version + 1
	doc.UpdatedAt = time.Now().UTC()

	filter := bson.M{"id": next.ID, "version": next.Version, "status": expected}
	res, err := r.coll.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return false, repository.Translate("swap session "+next.ID, err)
	}
	if res.MatchedCount == 0 {
		return false, nil
	}
	next.Version = doc.Version
	next.UpdatedAt = doc.UpdatedAt
	return true, nil
}

func (r *mongoSessionRepo) ListDue(ctx context.Context, now time.Time, limit int64) ([]models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "endTs", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.coll.Find(ctx, dueFilter(now), opts)
	if err != nil {
		return nil, repository.Translate("list due sessions", err)
	}
	defer cursor.Close(ctx)

	sessions := []models.Session{}
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, repository.Translate("list due sessions", err)
	}
	return sessions, nil
}

func dueFilter(now time.Time) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{
			"status": bson.M{"$in": bson.A{models.SessionCreated, models.SessionActive}},
			"endTs":  bson.M{"$lte": now},
		},
		bson.M{
			"status":    bson.M{"$in": bson.A{models.SessionEnded, models.SessionFailed}},
			"finalized": false,
		},
	}}
}

func (r *mongoEarningRepo) Record(ctx context.Context, e *models.Earning) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	_, err := r.coll.InsertOne(ctx, e)
	if err != nil {
		err = repository.Translate("record earning for session "+e.SessionID, err)
		if errors.Is(err, repository.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *mongoEarningRepo) ListByExpert(ctx context.Context, expertID string, limit int64) ([]models.Earning, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.coll.Find(ctx, bson.M{"expertId": expertID}, opts)
	if err != nil {
		return nil, repository.Translate("list earnings", err)
	}
	defer cursor.Close(ctx)

	earnings := []models.Earning{}
	if err := cursor.All(ctx, &earnings); err != nil {
		return nil, repository.Translate("list earnings", err)
	}
	return earnings, nil
}
