package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rivelya/database/repository"
	"rivelya/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingSwapRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewBookings()
	require.NoError(t, repo.Create(ctx, &models.Booking{ID: "b1", Status: models.BookingAwaitingMaster}))

	first, err := repo.GetByID(ctx, "b1")
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, "b1")
	require.NoError(t, err)

	first.Status = models.BookingConfirmed
	ok, err := repo.Swap(ctx, first, models.BookingAwaitingMaster)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), first.Version)

	second.Status = models.BookingRejected
	ok, err = repo.Swap(ctx, second, models.BookingAwaitingMaster)
	require.NoError(t, err)
	assert.False(t, ok, "a stale copy must not overwrite the winner")

	stored, err := repo.GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, stored.Status)
}

func TestClaimAutoStartOnlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewBookings()
	require.NoError(t, repo.Create(ctx, &models.Booking{ID: "b1", Status: models.BookingReadyToStart}))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := repo.GetByID(ctx, "b1")
			if err != nil {
				return
			}
			b.Status = models.BookingActive
			b.AutoStarted = true
			if ok, _ := repo.ClaimAutoStart(ctx, b); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestGetMissingBookingIsNotFound(t *testing.T) {
	_, err := NewBookings().GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestCallsAllowOneActivePerThread(t *testing.T) {
	ctx := context.Background()
	repo := NewCalls()
	now := time.Now()

	first := &models.ChatCall{ID: "c1", ThreadID: "t1", Status: models.CallCalling, InitiatedAt: now}
	require.NoError(t, repo.Create(ctx, first))

	err := repo.Create(ctx, &models.ChatCall{ID: "c2", ThreadID: "t1", Status: models.CallCalling, InitiatedAt: now})
	assert.True(t, errors.Is(err, repository.ErrDuplicate))

	first.Status = models.CallRejected
	ok, err := repo.Swap(ctx, first, models.CallCalling)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.Create(ctx, &models.ChatCall{ID: "c3", ThreadID: "t1", Status: models.CallCalling, InitiatedAt: now}))
}

func TestEarningsRecordOncePerSession(t *testing.T) {
	ctx := context.Background()
	repo := NewEarnings()

	created, err := repo.Record(ctx, &models.Earning{ID: "e1", SessionID: "s1", ExpertID: "x"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Record(ctx, &models.Earning{ID: "e2", SessionID: "s1", ExpertID: "x"})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestListMessagesKeepsTheNewest(t *testing.T) {
	ctx := context.Background()
	repo := NewMessages()
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Insert(ctx, &models.ChatMessage{
			ID: fmt.Sprintf("m%d", i), ThreadID: "th1", CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	msgs, err := repo.ListByThread(ctx, "th1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m3", msgs[0].ID)
	assert.Equal(t, "m4", msgs[1].ID)

	all, err := repo.ListByThread(ctx, "th1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
