package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"rivelya/database/repository/memory"
	"rivelya/models"
	"rivelya/services/notification"
	"rivelya/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCompleter struct {
	calls []string
	err   error
}

func (f *fakeCompleter) CompleteBooking(_ context.Context, bookingID string) error {
	f.calls = append(f.calls, bookingID)
	return f.err
}

type fixture struct {
	svc       *Service
	store     *memory.Store
	rec       *notification.Recorder
	completer *fakeCompleter
	now       time.Time
}

var t0 = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.Experts.Upsert(context.Background(), &models.Expert{
		ID: "e1", UserID: "u-expert", PricePerMinuteCents: 100, Currency: "eur",
	}))
	f := &fixture{store: store, rec: &notification.Recorder{}, completer: &fakeCompleter{}, now: t0}
	f.svc = &Service{
		Sessions:          store.Sessions,
		Earnings:          store.Earnings,
		Experts:           store.Experts,
		Bookings:          f.completer,
		Notifier:          f.rec,
		Logger:            zap.NewNop(),
		CommissionPercent: 20,
		Now:               func() time.Time { return f.now },
	}
	return f
}

func (f *fixture) activeBookedSession(t *testing.T) *models.Session {
	t.Helper()
	start, end := t0, t0.Add(30*time.Minute)
	s := &models.Session{
		ID: "s1", BookingID: "b1", ClientID: "u-client", ExpertID: "e1", ExpertUserID: "u-expert",
		Channel: models.ChannelVoice, Status: models.SessionActive, PricePerMinuteCents: 100,
		Currency: "eur", PlannedSeconds: 1800, StartTS: &start, EndTS: &end,
	}
	require.NoError(t, f.store.Sessions.Create(context.Background(), s))
	return s
}

func (f *fixture) reload(t *testing.T, id string) *models.Session {
	t.Helper()
	s, err := f.store.Sessions.GetByID(context.Background(), id)
	require.NoError(t, err)
	return s
}

func TestComputeBill(t *testing.T) {
	cases := []struct {
		name    string
		elapsed time.Duration
		want    Bill
	}{
		{"scenario e", 125 * time.Second, Bill{DurationSeconds: 125, BilledMinutes: 3, CostCents: 300}},
		{"exact minute", 60 * time.Second, Bill{DurationSeconds: 60, BilledMinutes: 1, CostCents: 100}},
		{"zero", 0, Bill{}},
		{"clock skew", -5 * time.Second, Bill{}},
		{"past the deadline", 30*time.Minute + 25*time.Second, Bill{DurationSeconds: 1825, BilledMinutes: 31, CostCents: 3100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeBill(t0, t0.Add(tc.elapsed), 100)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSplit(t *testing.T) {
	commission, net := Split(300, 20)
	assert.Equal(t, int64(60), commission)
	assert.Equal(t, int64(240), net)
}

func TestManualEndBillsAndSettlesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activeBookedSession(t)

	f.now = t0.Add(125 * time.Second)
	ended, err := f.svc.End(ctx, "u-client", "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionEnded, ended.Status)
	assert.Equal(t, int64(125), ended.DurationSeconds)
	assert.Equal(t, int64(3), ended.BilledMinutes)
	assert.Equal(t, int64(300), ended.CostCents)
	assert.Equal(t, EndReasonManual, ended.EndReason)

	again, err := f.svc.End(ctx, "u-expert", "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(300), again.CostCents, "ending twice changes nothing")

	stored, err := f.store.Sessions.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, stored.Finalized)

	changed, err := f.svc.ExpireOne(ctx, *stored)
	require.NoError(t, err)
	assert.False(t, changed)

	earnings, err := f.store.Earnings.ListByExpert(ctx, "e1", 10)
	require.NoError(t, err)
	require.Len(t, earnings, 1)
	assert.Equal(t, int64(240), earnings[0].NetCents)
	assert.Equal(t, []string{"b1"}, f.completer.calls)
	assert.Equal(t, 1, f.rec.Count("u-client", notification.EventSessionEnded))
}

func TestEndRequiresParticipant(t *testing.T) {
	f := newFixture(t)
	f.activeBookedSession(t)

	_, err := f.svc.End(context.Background(), "u-stranger", "s1")
	assert.True(t, utils.HasCode(err, CodeNotParticipant))

	_, err = f.svc.End(context.Background(), "u-client", "missing")
	assert.True(t, utils.HasCode(err, CodeSessionNotFound))
}

func TestExpireOneEndsAtDeadlineAndRetriesFinalization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activeBookedSession(t)
	f.completer.err = errors.New("booking store unavailable")

	f.now = t0.Add(31 * time.Minute)
	due, err := f.store.Sessions.ListDue(ctx, f.now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	changed, err := f.svc.ExpireOne(ctx, due[0])
	assert.True(t, changed)
	assert.Error(t, err)

	stored, err := f.store.Sessions.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionEnded, stored.Status)
	assert.Equal(t, int64(1860), stored.DurationSeconds)
	assert.Equal(t, int64(31), stored.BilledMinutes)
	assert.Equal(t, int64(3100), stored.CostCents)
	assert.False(t, stored.Finalized)

	f.completer.err = nil
	due, err = f.store.Sessions.ListDue(ctx, f.now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1, "unfinalized sessions stay due")

	changed, err = f.svc.ExpireOne(ctx, due[0])
	require.NoError(t, err)
	assert.True(t, changed)

	due, err = f.store.Sessions.ListDue(ctx, f.now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)
	assert.Equal(t, 1, f.rec.Count("u-expert", notification.EventSessionEnded))
}

func TestExpireOneBillsUntilTheMomentTheSessionEnds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activeBookedSession(t)

	f.now = t0.Add(30*time.Minute + 25*time.Second)
	changed, err := f.svc.ExpireOne(ctx, *f.reload(t, "s1"))
	require.NoError(t, err)
	assert.True(t, changed)

	stored := f.reload(t, "s1")
	assert.Equal(t, models.SessionEnded, stored.Status)
	assert.Equal(t, EndReasonDeadline, stored.EndReason)
	assert.Equal(t, int64(1825), stored.DurationSeconds)
	assert.Equal(t, int64(31), stored.BilledMinutes)
	assert.Equal(t, int64(3100), stored.CostCents)
}

func TestInstantSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.CreateInstant(ctx, "u-client", InstantInput{ExpertID: "e1", Channel: models.ChannelVoice, Minutes: 15})
	require.NoError(t, err)
	assert.Equal(t, models.SessionCreated, sess.Status)
	assert.Equal(t, 1, f.rec.Count("u-expert", notification.EventSessionRequested))

	f.now = t0.Add(time.Minute)
	started, err := f.svc.Start(ctx, "u-expert", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, f.now.Add(15*time.Minute), *started.EndTS)

	_, err = f.svc.Start(ctx, "u-expert", sess.ID)
	assert.True(t, utils.HasCode(err, CodeNothingToDo))

	view, err := f.svc.Get(ctx, "u-client", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15*60), view.RemainingSeconds)
	assert.Empty(t, f.completer.calls)
}

func TestUnstartedInstantSessionFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.CreateInstant(ctx, "u-client", InstantInput{ExpertID: "e1", Channel: models.ChannelChat, Minutes: 5})
	require.NoError(t, err)

	f.now = t0.Add(6 * time.Minute)
	changed, err := f.svc.ExpireOne(ctx, *sess)
	require.NoError(t, err)
	assert.True(t, changed)

	stored, err := f.store.Sessions.GetByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionFailed, stored.Status)
	assert.Equal(t, EndReasonNoStart, stored.EndReason)
	assert.True(t, stored.Finalized)

	earnings, _ := f.store.Earnings.ListByExpert(ctx, "e1", 10)
	assert.Empty(t, earnings)
}
