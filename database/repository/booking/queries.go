package bookingRepo

import (
	"context"
	"time"

	"rivelya/database/repository"
	"rivelya/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *mongoBookingRepo) find(ctx context.Context, op string, filter bson.M, opts *options.FindOptions) ([]models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, repository.OpTimeout)
	defer cancel()

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, repository.Translate(op, err)
	}
	defer cursor.Close(ctx)

	bookings := []models.Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, repository.Translate(op, err)
	}
	return bookings, nil
}

func byStart(limit int64) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "scheduledStartAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return opts
}

func (r *mongoBookingRepo) ListBlockingByExpertDate(ctx context.Context, expertID, date string) ([]models.Booking, error) {
	return r.find(ctx, "list bookings by expert date", expertDateFilter(expertID, date), byStart(0))
}

func (r *mongoBookingRepo) ListBlockingByExpertMonth(ctx context.Context, expertID string, year int, month time.Month) ([]models.Booking, error) {
	return r.find(ctx, "list bookings by expert month", expertMonthFilter(expertID, year, month), byStart(0))
}

func (r *mongoBookingRepo) ListByParticipant(ctx context.Context, userID string, limit int64) ([]models.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "scheduledStartAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return r.find(ctx, "list bookings by participant", participantFilter(userID), opts)
}

func (r *mongoBookingRepo) ListDueForPreparation(ctx context.Context, horizon time.Time, limit int64) ([]models.Booking, error) {
	return r.find(ctx, "list bookings due for preparation", dueForPreparationFilter(horizon), byStart(limit))
}

func (r *mongoBookingRepo) ListDueForStart(ctx context.Context, now time.Time, limit int64) ([]models.Booking, error) {
	return r.find(ctx, "list bookings due for start", dueForStartFilter(now), byStart(limit))
}

func (r *mongoBookingRepo) ListUnprovisioned(ctx context.Context, limit int64) ([]models.Booking, error) {
	return r.find(ctx, "list unprovisioned bookings", unprovisionedFilter(), byStart(limit))
}

func (r *mongoBookingRepo) ListStaleRequests(ctx context.Context, now time.Time, limit int64) ([]models.Booking, error) {
	return r.find(ctx, "list stale booking requests", staleRequestFilter(now), byStart(limit))
}

func (r *mongoBookingRepo) ListPendingRefunds(ctx context.Context, limit int64) ([]models.Booking, error) {
	return r.find(ctx, "list pending refunds", pendingRefundFilter(), byStart(limit))
}
