// File: database/repository/chat/interface.go
package chatRepo

import (
	"context"
	"time"

	"rivelya/models"

	"go.mongodb.org/mongo-driver/mongo"
)

type ThreadRepository interface {
	// EnsureForBooking inserts t unless a thread for t.BookingID exists, and returns the
	// stored one either way.
	EnsureForBooking(ctx context.Context, t *models.ChatThread) (*models.ChatThread, error)
	GetByID(ctx context.Context, id string) (*models.ChatThread, error)
	GetByBookingID(ctx context.Context, bookingID string) (*models.ChatThread, error)
	Swap(ctx context.Context, next *models.ChatThread, expected models.ThreadStatus) (bool, error)
	// ListDue returns open threads past expiresAt plus expired threads not yet finalized.
	ListDue(ctx context.Context, now time.Time, limit int64) ([]models.ChatThread, error)
}

type MessageRepository interface {
	Insert(ctx context.Context, m *models.ChatMessage) error
	// ListByThread returns the newest limit messages, oldest first.
	ListByThread(ctx context.Context, threadID string, limit int64) ([]models.ChatMessage, error)
}

type CallRepository interface {
	// Create fails with repository.ErrDuplicate when the thread already has a
	// non-terminal call.
	Create(ctx context.Context, c *models.ChatCall) error
	GetByID(ctx context.Context, id string) (*models.ChatCall, error)
	FindActiveByThread(ctx context.Context, threadID string) (*models.ChatCall, error)
	Swap(ctx context.Context, next *models.ChatCall, expected models.CallStatus) (bool, error)
	ListRingingSince(ctx context.Context, initiatedBefore time.Time, limit int64) ([]models.ChatCall, error)
}

type mongoThreadRepo struct {
	coll *mongo.Collection
}

func NewMongoThreadRepo(db *mongo.Database) ThreadRepository {
	return &mongoThreadRepo{coll: db.Collection("chat_threads")}
}

type mongoMessageRepo struct {
	coll *mongo.Collection
}

func NewMongoMessageRepo(db *mongo.Database) MessageRepository {
	return &mongoMessageRepo{coll: db.Collection("chat_messages")}
}

type mongoCallRepo struct {
	coll *mongo.Collection
}

func NewMongoCallRepo(db *mongo.Database) CallRepository {
	return &mongoCallRepo{coll: db.Collection("chat_calls")}
}
