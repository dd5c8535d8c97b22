package chat

import (
	"context"
	"errors"
	"strings"
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

var t0 = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

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

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	_, err := store.Threads.EnsureForBooking(context.Background(), &models.ChatThread{
		ID: "th1", BookingID: "b1", ClientID: "u-client", ExpertUserID: "u-expert",
		Status: models.ThreadOpen, AllowedSeconds: 1800, StartedAt: t0, ExpiresAt: t0.Add(30 * time.Minute),
	})
	require.NoError(t, err)

	f := &fixture{store: store, rec: &notification.Recorder{}, completer: &fakeCompleter{}, now: t0}
	f.svc = &Service{
		Threads:     store.Threads,
		Messages:    store.Messages,
		Calls:       store.Calls,
		Bookings:    f.completer,
		Notifier:    f.rec,
		Logger:      zap.NewNop(),
		RingTimeout: 30 * time.Second,
		Now:         func() time.Time { return f.now },
	}
	return f
}

func TestPostMessageRelaysToCounterparty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.svc.PostMessage(ctx, "u-client", "th1", "  hello there  ")
	require.NoError(t, err)
	assert.Equal(t, "hello there", m.Body)
	assert.Equal(t, 1, f.rec.Count("u-expert", notification.EventChatMessage))
	assert.Zero(t, f.rec.Count("u-client", notification.EventChatMessage))

	msgs, err := f.svc.ListMessages(ctx, "u-expert", "th1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "u-client", msgs[0].SenderID)
}

func TestPostMessageRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PostMessage(ctx, "u-stranger", "th1", "hi")
	assert.True(t, utils.HasCode(err, CodeNotParticipant))

	_, err = f.svc.PostMessage(ctx, "u-client", "th1", "   ")
	assert.True(t, utils.HasCode(err, CodeInvalidMessage))

	_, err = f.svc.PostMessage(ctx, "u-client", "th1", strings.Repeat("a", MaxMessageLength+1))
	assert.True(t, utils.HasCode(err, CodeInvalidMessage))

	_, err = f.svc.PostMessage(ctx, "u-client", "missing", "hi")
	assert.True(t, utils.HasCode(err, CodeThreadNotFound))
}

func TestPostMessageAfterDeadlineIsRefusedBeforeSweep(t *testing.T) {
	f := newFixture(t)
	f.now = t0.Add(30 * time.Minute)

	_, err := f.svc.PostMessage(context.Background(), "u-client", "th1", "still there?")
	assert.True(t, utils.HasCode(err, CodeThreadExpired))

	view, err := f.svc.GetThread(context.Background(), "u-client", "th1")
	require.NoError(t, err)
	assert.Equal(t, models.ThreadOpen, view.Status)
	assert.Equal(t, models.ThreadExpired, view.EffectiveStatus)
	assert.False(t, view.CanPost)
}

func TestExpireOneClosesThreadAndRetriesCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.completer.err = errors.New("booking store unavailable")
	f.now = t0.Add(31 * time.Minute)

	due, err := f.store.Threads.ListDue(ctx, f.now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	changed, err := f.svc.ExpireOne(ctx, due[0])
	assert.True(t, changed)
	assert.Error(t, err)
	assert.Equal(t, 1, f.rec.Count("u-client", notification.EventChatExpired))
	assert.Equal(t, 1, f.rec.Count("u-expert", notification.EventChatExpired))

	f.completer.err = nil
	due, err = f.store.Threads.ListDue(ctx, f.now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	changed, err = f.svc.ExpireOne(ctx, due[0])
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"b1", "b1"}, f.completer.calls)
	assert.Equal(t, 1, f.rec.Count("u-client", notification.EventChatExpired), "expiry is announced once")

	due, err = f.store.Threads.ListDue(ctx, f.now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestCallAcceptAndEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	call, err := f.svc.InitiateCall(ctx, "u-client", "th1")
	require.NoError(t, err)
	assert.Equal(t, "u-expert", call.CalleeID)
	assert.Equal(t, 1, f.rec.Count("u-expert", notification.EventCallIncoming))

	_, err = f.svc.AcceptCall(ctx, "u-client", call.ID)
	assert.True(t, utils.HasCode(err, CodeNotParticipant), "the caller cannot accept")

	f.now = t0.Add(10 * time.Second)
	accepted, err := f.svc.AcceptCall(ctx, "u-expert", call.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallAccepted, accepted.Status)

	f.now = t0.Add(70 * time.Second)
	ended, err := f.svc.EndCall(ctx, "u-expert", call.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallEnded, ended.Status)
	assert.Equal(t, int64(60), ended.DurationSeconds)
	assert.Equal(t, 1, f.rec.Count("u-client", notification.EventCallEnded))

	_, err = f.svc.EndCall(ctx, "u-client", call.ID)
	assert.True(t, utils.HasCode(err, CodeNothingToDo))

	next, err := f.svc.InitiateCall(ctx, "u-expert", "th1")
	require.NoError(t, err, "a finished call frees the thread")
	assert.Equal(t, "u-client", next.CalleeID)
}

func TestOneLiveCallPerThread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.InitiateCall(ctx, "u-client", "th1")
	require.NoError(t, err)

	f.now = t0.Add(5 * time.Second)
	_, err = f.svc.InitiateCall(ctx, "u-expert", "th1")
	assert.True(t, utils.HasCode(err, CodeCallInProgress))

	f.now = t0.Add(40 * time.Second)
	_, err = f.svc.InitiateCall(ctx, "u-expert", "th1")
	require.NoError(t, err, "a stale ringing call is swept first")
	assert.Equal(t, 1, f.rec.Count("u-client", notification.EventCallTimeout))
}

func TestLateAcceptTimesOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	call, err := f.svc.InitiateCall(ctx, "u-client", "th1")
	require.NoError(t, err)

	f.now = t0.Add(30 * time.Second)
	_, err = f.svc.AcceptCall(ctx, "u-expert", call.ID)
	assert.True(t, utils.HasCode(err, CodeCallTimedOut))

	stored, err := f.store.Calls.GetByID(ctx, call.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallTimeout, stored.Status)
}

func TestCallerHangingUpBeforeAnswerRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	call, err := f.svc.InitiateCall(ctx, "u-client", "th1")
	require.NoError(t, err)

	_, err = f.svc.EndCall(ctx, "u-expert", call.ID)
	assert.True(t, utils.HasCode(err, CodeInvalidTransition))

	ended, err := f.svc.EndCall(ctx, "u-client", call.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallRejected, ended.Status)
	assert.Equal(t, 1, f.rec.Count("u-expert", notification.EventCallRejected))
}

func TestRejectCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	call, err := f.svc.InitiateCall(ctx, "u-client", "th1")
	require.NoError(t, err)

	rejected, err := f.svc.RejectCall(ctx, "u-expert", call.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallRejected, rejected.Status)
	assert.Equal(t, "u-expert", rejected.EndedBy)

	_, err = f.svc.RejectCall(ctx, "u-expert", call.ID)
	assert.True(t, utils.HasCode(err, CodeNothingToDo))
}

func TestRelaySignal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	call, err := f.svc.InitiateCall(ctx, "u-client", "th1")
	require.NoError(t, err)

	err = f.svc.RelaySignal(ctx, "u-client", call.ID, Signal{Type: "offer", Data: map[string]any{"sdp": "v=0"}})
	require.NoError(t, err)
	assert.Equal(t, 1, f.rec.Count("u-expert", notification.EventCallSignal))

	err = f.svc.RelaySignal(ctx, "u-client", call.ID, Signal{Type: "bogus"})
	assert.True(t, utils.HasCode(err, "invalid_signal"))

	f.now = t0.Add(45 * time.Second)
	err = f.svc.RelaySignal(ctx, "u-client", call.ID, Signal{Type: "ice-candidate"})
	assert.True(t, utils.HasCode(err, CodeInvalidTransition), "signals stop once the ring window lapses")
}

// Two calls on separate threads: one rang for 125 seconds, the other for 20.
func TestSweepTimesOutOnlyAbandonedCalls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.Threads.EnsureForBooking(ctx, &models.ChatThread{
		ID: "th2", BookingID: "b2", ClientID: "u-client2", ExpertUserID: "u-expert",
		Status: models.ThreadOpen, StartedAt: t0, ExpiresAt: t0.Add(time.Hour),
	})
	require.NoError(t, err)

	old, err := f.svc.InitiateCall(ctx, "u-client", "th1")
	require.NoError(t, err)
	f.now = t0.Add(105 * time.Second)
	fresh, err := f.svc.InitiateCall(ctx, "u-client2", "th2")
	require.NoError(t, err)

	f.now = t0.Add(125 * time.Second)
	ringing, err := f.store.Calls.ListRingingSince(ctx, f.now.Add(-2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, ringing, 1)
	assert.Equal(t, old.ID, ringing[0].ID)

	changed, err := f.svc.TimeoutOne(ctx, ringing[0])
	require.NoError(t, err)
	assert.True(t, changed)

	view, err := f.svc.GetCall(ctx, "u-client", old.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallTimeout, view.Status)

	stored, err := f.store.Calls.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallCalling, stored.Status)
}

func TestTransitionsArePure(t *testing.T) {
	c := models.ChatCall{ID: "c1", CallerID: "a", CalleeID: "b", Status: models.CallCalling, InitiatedAt: t0}

	next, ok := TimeoutCall(c, 30*time.Second, t0.Add(29*time.Second))
	assert.False(t, ok)
	assert.Equal(t, models.CallCalling, next.Status)

	next, ok = TimeoutCall(c, 30*time.Second, t0.Add(30*time.Second))
	assert.True(t, ok)
	assert.Equal(t, models.CallTimeout, next.Status)
	assert.Equal(t, models.CallCalling, c.Status)
}
