// File: database/repository/booking/interface.go
package bookingRepo

import (
	"context"
	"time"

	"rivelya/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// BookingRepository persists bookings. Every state change goes through Swap or
// ClaimAutoStart, which only apply when the stored version and status still match.
type BookingRepository interface {
	Create(ctx context.Context, b *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)

	// Swap replaces the stored booking with next when its version equals next.Version and
	// its status equals expected. On success next.Version is advanced.
	Swap(ctx context.Context, next *models.Booking, expected models.BookingStatus) (bool, error)
	// ClaimAutoStart is Swap guarded on status=ready_to_start and autoStarted!=true.
	ClaimAutoStart(ctx context.Context, next *models.Booking) (bool, error)

	// WithDayGuard runs fn so that no other guarded call for the same expert and date can
	// interleave with it.
	WithDayGuard(ctx context.Context, expertID, date string, fn func(ctx context.Context) error) error

	ListBlockingByExpertDate(ctx context.Context, expertID, date string) ([]models.Booking, error)
	ListBlockingByExpertMonth(ctx context.Context, expertID string, year int, month time.Month) ([]models.Booking, error)
	ListByParticipant(ctx context.Context, userID string, limit int64) ([]models.Booking, error)

	ListDueForPreparation(ctx context.Context, horizon time.Time, limit int64) ([]models.Booking, error)
	ListDueForStart(ctx context.Context, now time.Time, limit int64) ([]models.Booking, error)
	ListUnprovisioned(ctx context.Context, limit int64) ([]models.Booking, error)
	ListStaleRequests(ctx context.Context, now time.Time, limit int64) ([]models.Booking, error)
	ListPendingRefunds(ctx context.Context, limit int64) ([]models.Booking, error)
}

type mongoBookingRepo struct {
	client *mongo.Client
	coll   *mongo.Collection
	days   *mongo.Collection
}

// NewMongoBookingRepo constructs a MongoDB BookingRepository.
func NewMongoBookingRepo(db *mongo.Database) BookingRepository {
	return &mongoBookingRepo{
		client: db.Client(),
		coll:   db.Collection("bookings"),
		days:   db.Collection("expert_days"),
	}
}
