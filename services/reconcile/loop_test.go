package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rivelya/database/repository/memory"
	"rivelya/models"
	"rivelya/services/availability"
	"rivelya/services/booking"
	"rivelya/services/chat"
	"rivelya/services/notification"
	"rivelya/services/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type harness struct {
	loop  *Loop
	store *memory.Store
	rec   *notification.Recorder
	clock *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.Experts.Upsert(context.Background(), &models.Expert{
		ID: "e1", UserID: "u-expert", PricePerMinuteCents: 100, Currency: "eur", Timezone: "UTC",
	}))
	rec := &notification.Recorder{}
	clk := &clock{now: t0}
	logger := zap.NewNop()

	bookings := &booking.Service{
		Bookings:        store.Bookings,
		Sessions:        store.Sessions,
		Threads:         store.Threads,
		Experts:         store.Experts,
		Availability:    &availability.Service{Repo: store.Availability, Bookings: store.Bookings, Logger: logger},
		Payments:        booking.NewSimulatedGateway(logger),
		Notifier:        rec,
		Logger:          logger,
		UpcomingLead:    10 * time.Minute,
		DefaultCurrency: "eur",
		Now:             clk.Now,
	}
	sessions := &session.Service{
		Sessions:          store.Sessions,
		Earnings:          store.Earnings,
		Experts:           store.Experts,
		Bookings:          bookings,
		Notifier:          rec,
		Logger:            logger,
		CommissionPercent: 20,
		Now:               clk.Now,
	}
	chats := &chat.Service{
		Threads:     store.Threads,
		Messages:    store.Messages,
		Calls:       store.Calls,
		Bookings:    bookings,
		Notifier:    rec,
		Logger:      logger,
		RingTimeout: 30 * time.Second,
		Now:         clk.Now,
	}
	return &harness{
		store: store,
		rec:   rec,
		clock: clk,
		loop: &Loop{
			Bookings:     store.Bookings,
			Sessions:     store.Sessions,
			Threads:      store.Threads,
			Calls:        store.Calls,
			BookingSvc:   bookings,
			SessionSvc:   sessions,
			ChatSvc:      chats,
			Logger:       logger,
			AbandonAfter: 2 * time.Minute,
			Now:          clk.Now,
		},
	}
}

func (h *harness) seedReadyBooking(t *testing.T, id string, channel models.Channel, start time.Time) {
	t.Helper()
	require.NoError(t, h.store.Bookings.Create(context.Background(), &models.Booking{
		ID: id, ClientID: "u-client", ExpertID: "e1", ExpertUserID: "u-expert",
		Channel: channel, Status: models.BookingReadyToStart,
		Date: start.Format("2006-01-02"), StartTime: start.Format("15:04"), EndTime: start.Add(30 * time.Minute).Format("15:04"),
		ScheduledStartAt: start, ScheduledEndAt: start.Add(30 * time.Minute),
		DurationMinutes: 30, PricePerMinuteCents: 100, Currency: "eur", Timezone: "UTC",
	}))
}

func TestPassAutoStartsDueBookingOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedReadyBooking(t, "b1", models.ChannelVoice, t0.Add(-time.Minute))

	report := h.loop.RunOnce(ctx)
	assert.Equal(t, 1, report.Scan(ScanAutoStart).Processed)
	assert.Zero(t, report.Failed())

	b, err := h.store.Bookings.GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingActive, b.Status)
	assert.True(t, b.AutoStarted)
	assert.True(t, b.Provisioned)

	sess, err := h.store.Sessions.GetByBookingID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, b.SessionID, sess.ID)
	assert.Equal(t, models.SessionActive, sess.Status)
	assert.Equal(t, t0.Add(30*time.Minute), *sess.EndTS)

	second := h.loop.RunOnce(ctx)
	assert.Zero(t, second.Changed())
	assert.Zero(t, second.Scan(ScanAutoStart).Listed)

	again, err := h.store.Bookings.GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, b.Version, again.Version, "a second pass leaves the booking untouched")
	assert.Equal(t, 1, h.rec.Count("u-client", notification.EventSessionStarted))
}

func TestPassEndsSessionAndCompletesBooking(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedReadyBooking(t, "b1", models.ChannelChat, t0)
	h.loop.RunOnce(ctx)

	h.clock.Set(t0.Add(31 * time.Minute))
	report := h.loop.RunOnce(ctx)
	assert.Equal(t, 1, report.Scan(ScanSessions).Processed)
	assert.Equal(t, 1, report.Scan(ScanThreads).Processed)
	assert.Zero(t, report.Failed())

	b, err := h.store.Bookings.GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, b.Status)
	assert.Equal(t, 1, h.rec.Count("u-client", notification.EventBookingCompleted))

	sess, err := h.store.Sessions.GetByBookingID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionEnded, sess.Status)
	assert.Equal(t, int64(1860), sess.DurationSeconds)
	assert.Equal(t, int64(3100), sess.CostCents)

	earnings, err := h.store.Earnings.ListByExpert(ctx, "e1", 10)
	require.NoError(t, err)
	require.Len(t, earnings, 1)
	assert.Equal(t, int64(2480), earnings[0].NetCents)

	assert.Zero(t, h.loop.RunOnce(ctx).Changed())
}

func TestPassTimesOutAbandonedCallsOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, id := range []string{"th1", "th2"} {
		_, err := h.store.Threads.EnsureForBooking(ctx, &models.ChatThread{
			ID: id, BookingID: "b-" + id, ClientID: "u-client-" + id, ExpertUserID: "u-expert",
			Status: models.ThreadOpen, StartedAt: t0, ExpiresAt: t0.Add(time.Hour),
		})
		require.NoError(t, err)
	}
	require.NoError(t, h.store.Calls.Create(ctx, &models.ChatCall{
		ID: "old", ThreadID: "th1", CallerID: "u-client-th1", CalleeID: "u-expert",
		Status: models.CallCalling, InitiatedAt: t0.Add(-125 * time.Second),
	}))
	require.NoError(t, h.store.Calls.Create(ctx, &models.ChatCall{
		ID: "fresh", ThreadID: "th2", CallerID: "u-client-th2", CalleeID: "u-expert",
		Status: models.CallCalling, InitiatedAt: t0.Add(-20 * time.Second),
	}))

	report := h.loop.RunOnce(ctx)
	assert.Equal(t, ScanResult{Name: ScanCalls, Listed: 1, Processed: 1}, report.Scan(ScanCalls))

	old, err := h.store.Calls.GetByID(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, models.CallTimeout, old.Status)

	fresh, err := h.store.Calls.GetByID(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, models.CallCalling, fresh.Status)
}

func TestPassExpiresStaleRequests(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Bookings.Create(ctx, &models.Booking{
		ID: "b-stale", ClientID: "u-client", ExpertID: "e1", ExpertUserID: "u-expert",
		Channel: models.ChannelVoice, Status: models.BookingAwaitingMaster, Date: "2025-03-10",
		ScheduledStartAt: t0.Add(-time.Minute), DurationMinutes: 30,
	}))

	report := h.loop.RunOnce(ctx)
	assert.Equal(t, 1, report.Scan(ScanStaleRequests).Processed)

	b, err := h.store.Bookings.GetByID(ctx, "b-stale")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, b.Status)
}

type failingSessions struct{}

func (failingSessions) ExpireOne(context.Context, models.Session) (bool, error) {
	return false, errors.New("settlement store unavailable")
}

func TestFailuresAreCountedAndDoNotStopThePass(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.loop.SessionSvc = failingSessions{}
	start := t0.Add(-time.Hour)
	end := t0.Add(-30 * time.Minute)
	require.NoError(t, h.store.Sessions.Create(ctx, &models.Session{
		ID: "s1", ClientID: "u-client", ExpertID: "e1", ExpertUserID: "u-expert",
		Channel: models.ChannelVoice, Status: models.SessionActive, StartTS: &start, EndTS: &end,
	}))
	h.seedReadyBooking(t, "b1", models.ChannelVoice, t0.Add(-time.Minute))

	report := h.loop.RunOnce(ctx)
	assert.Equal(t, 1, report.Scan(ScanSessions).Failed)
	assert.Equal(t, 1, report.Scan(ScanAutoStart).Processed)
	assert.Equal(t, 1, report.Failed())
}

func TestStartStop(t *testing.T) {
	h := newHarness(t)
	h.loop.Interval = time.Hour

	require.NoError(t, h.loop.Start(context.Background()))
	assert.True(t, h.loop.Running())
	assert.ErrorIs(t, h.loop.Start(context.Background()), ErrAlreadyRunning)

	h.loop.Stop()
	assert.False(t, h.loop.Running())
	h.loop.Stop()
}
