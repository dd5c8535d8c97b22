package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rivelya/database/repository/memory"
	"rivelya/models"
	"rivelya/services/tasks"

	"firebase.google.com/go/v4/messaging"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakePublisher struct {
	mu   sync.Mutex
	sent map[string][]Envelope
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, userID string, env Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = map[string][]Envelope{}
	}
	f.sent[userID] = append(f.sent[userID], env)
	return f.err
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t"}, nil
}

func TestDispatcherFansOut(t *testing.T) {
	ctx := context.Background()
	inbox := memory.NewInbox()
	pub := &fakePublisher{}
	queue := &fakeEnqueuer{}
	d := &Dispatcher{Inbox: inbox, Realtime: pub, Push: queue, Logger: zap.NewNop()}

	payload := map[string]any{"bookingId": "b1", "date": "2025-03-10", "startTime": "10:00"}
	require.NoError(t, d.Notify(ctx, "u1", EventBookingConfirmed, payload))

	entries, err := inbox.ListForUser(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Booking confirmed", entries[0].Title)
	assert.Contains(t, entries[0].Body, "2025-03-10 at 10:00")

	require.Len(t, pub.sent["u1"], 1)
	assert.Equal(t, EventBookingConfirmed, pub.sent["u1"][0].Event)

	require.Len(t, queue.tasks, 1)
	assert.Equal(t, tasks.TypePushSend, queue.tasks[0].Type())
}

func TestDispatcherKeepsChatMessagesOutOfInboxAndPush(t *testing.T) {
	ctx := context.Background()
	inbox := memory.NewInbox()
	pub := &fakePublisher{}
	queue := &fakeEnqueuer{}
	d := &Dispatcher{Inbox: inbox, Realtime: pub, Push: queue, Logger: zap.NewNop()}

	require.NoError(t, d.Notify(ctx, "u1", EventChatMessage, map[string]any{"body": "hi"}))

	entries, _ := inbox.ListForUser(ctx, "u1", 10)
	assert.Empty(t, entries)
	assert.Empty(t, queue.tasks)
	assert.Len(t, pub.sent["u1"], 1)
}

func TestDispatcherReportsRelayFailure(t *testing.T) {
	d := &Dispatcher{Realtime: &fakePublisher{err: errors.New("redis down")}, Logger: zap.NewNop()}
	err := d.Notify(context.Background(), "u1", EventCallIncoming, nil)
	assert.ErrorContains(t, err, "redis down")
}

func TestDescribeWithoutBookingSchedule(t *testing.T) {
	title, body := Describe(EventSessionStarted, map[string]any{"sessionId": "s1", "status": "active"})
	assert.Equal(t, "Session started", title)
	assert.Equal(t, "Your session has started.", body)

	_, body = Describe(EventSessionStarted, map[string]any{"date": "2025-03-10", "startTime": "10:00"})
	assert.Equal(t, "Your session on 2025-03-10 at 10:00 has started.", body)

	for event := range descriptions {
		_, body := Describe(event, map[string]any{})
		assert.NotContains(t, body, "%!", event)
	}
}

func TestStringifyFlattensValues(t *testing.T) {
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	out := Stringify(EventSessionStarted, map[string]any{"id": "s1", "seconds": 1800, "at": at, "none": nil})

	assert.Equal(t, map[string]string{
		"type":    EventSessionStarted,
		"id":      "s1",
		"seconds": "1800",
		"at":      "2025-03-10T09:00:00Z",
	}, out)
}

func TestAlertsFireOnce(t *testing.T) {
	ctx := context.Background()
	rec := &Recorder{}
	svc := &AlertService{Repo: memory.NewAlerts(), Notifier: rec, Logger: zap.NewNop()}

	_, err := svc.Subscribe(ctx, "e1", "u1")
	require.NoError(t, err)
	_, err = svc.Subscribe(ctx, "e1", "u2")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Fire(ctx, "e1", time.Now())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, rec.Count("u1", EventExpertAvailable))
	assert.Equal(t, 1, rec.Count("u2", EventExpertAvailable))

	fired, err := svc.Fire(ctx, "e1", time.Now())
	require.NoError(t, err)
	assert.Zero(t, fired)
}

type unreachableNotifier struct{}

func (unreachableNotifier) Notify(context.Context, string, string, map[string]any) error {
	return errors.New("relay down")
}

func TestAlertDeliveryFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	svc := &AlertService{Repo: memory.NewAlerts(), Notifier: unreachableNotifier{}, Logger: zap.New(core)}

	alert, err := svc.Subscribe(ctx, "e1", "u1")
	require.NoError(t, err)

	fired, err := svc.Fire(ctx, "e1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	entries := logs.FilterField(zap.String("alertID", alert.ID)).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "expert available alert not delivered", entries[0].Message)
}

type fakeFCM struct {
	messages []*messaging.Message
}

func (f *fakeFCM) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.messages = append(f.messages, m)
	return "projects/x/messages/1", nil
}

func TestFCMSenderTargetsEveryDevice(t *testing.T) {
	ctx := context.Background()
	devices := memory.NewDevices()
	require.NoError(t, devices.Upsert(ctx, &models.Device{UserID: "u1", FCMToken: "tok-a"}))
	require.NoError(t, devices.Upsert(ctx, &models.Device{UserID: "u1", FCMToken: "tok-b"}))
	require.NoError(t, devices.Upsert(ctx, &models.Device{UserID: "u2", FCMToken: "tok-c"}))

	fcm := &fakeFCM{}
	sender := &FCMSender{Client: fcm, Devices: devices, Logger: zap.NewNop()}

	require.NoError(t, sender.Send(ctx, models.PushPayload{UserID: "u1", Title: "t", Body: "b", Data: map[string]string{"type": "x"}}))
	require.Len(t, fcm.messages, 2)
	assert.Equal(t, "tok-a", fcm.messages[0].Token)
	assert.Equal(t, "high", fcm.messages[0].Android.Priority)

	require.NoError(t, sender.Send(ctx, models.PushPayload{UserID: "nobody"}))
	assert.Len(t, fcm.messages, 2)
}

func TestPushTaskRejectsBadPayloadWithoutRetry(t *testing.T) {
	handler := tasks.HandlePushTask(LogSender{Logger: zap.NewNop()})

	err := handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypePushSend, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	task, err := tasks.NewPushTask(models.PushPayload{UserID: "u1", Event: EventCallIncoming})
	require.NoError(t, err)
	assert.NoError(t, handler.ProcessTask(context.Background(), task))
}

func TestLocalHubDeliversToSubscribersOfTheUser(t *testing.T) {
	hub := NewLocalHub()
	ctx, cancel := context.WithCancel(context.Background())

	events, err := hub.Subscribe(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, hub.Publish(context.Background(), "u2", Envelope{Event: EventBookingConfirmed}))
	require.NoError(t, hub.Publish(context.Background(), "u1", Envelope{Event: EventBookingRequested}))

	select {
	case env := <-events:
		assert.Equal(t, EventBookingRequested, env.Event)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-events
		return !open
	}, time.Second, 10*time.Millisecond)
}
