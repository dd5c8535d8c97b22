// File: database/repository/session/interface.go
package sessionRepo

import (
	"context"
	"time"

	"rivelya/models"

	"go.mongodb.org/mongo-driver/mongo"
)

type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	// EnsureForBooking inserts s unless a session for s.BookingID already exists, and
	// returns the stored one either way.
	EnsureForBooking(ctx context.Context, s *models.Session) (*models.Session, error)
	GetByID(ctx context.Context, id string) (*models.Session, error)
	GetByBookingID(ctx context.Context, bookingID string) (*models.Session, error)
	Swap(ctx context.Context, next *models.Session, expected models.SessionStatus) (bool, error)
	// ListDue returns sessions past their deadline that are still open, plus ended
	// sessions whose finalization has not completed.
	ListDue(ctx context.Context, now time.Time, limit int64) ([]models.Session, error)
}

// EarningRepository is the settlement ledger. A session is credited at most once.
type EarningRepository interface {
	// Record returns false when the session was already credited.
	Record(ctx context.Context, e *models.Earning) (bool, error)
	ListByExpert(ctx context.Context, expertID string, limit int64) ([]models.Earning, error)
}

type mongoSessionRepo struct {
	coll *mongo.Collection
}

func NewMongoSessionRepo(db *mongo.Database) SessionRepository {
	return &mongoSessionRepo{coll: db.Collection("sessions")}
}

type mongoEarningRepo struct {
	coll *mongo.Collection
}

func NewMongoEarningRepo(db *mongo.Database) EarningRepository {
	return &mongoEarningRepo{coll: db.Collection("earnings")}
}
