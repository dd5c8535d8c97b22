package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	notificationRepo "rivelya/database/repository/notification"
	"rivelya/models"
	"rivelya/services/tasks"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const defaultTimeout = 3 * time.Second

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher is the production Notifier: it writes the inbox entry, relays the event
// to connected clients and queues a device push.
type Dispatcher struct {
	Inbox    notificationRepo.InboxRepository
	Realtime Publisher
	Push     TaskEnqueuer
	Logger   *zap.Logger
	Timeout  time.Duration
	Now      func() time.Time
}

func (d *Dispatcher) Notify(ctx context.Context, userID, event string, payload map[string]any) error {
	if userID == "" {
		return nil
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	now := time.Now().UTC()
	if d.Now != nil {
		now = d.Now()
	}
	title, body := Describe(event, payload)

	var errs []error
	if d.Inbox != nil && !ephemeral(event) {
		n := &models.Notification{
			ID:        uuid.NewString(),
			UserID:    userID,
			Type:      event,
			Title:     title,
			Body:      body,
			Data:      payload,
			CreatedAt: now,
		}
		if err := d.Inbox.Insert(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("inbox: %w", err))
		}
	}

	if d.Realtime != nil {
		env := Envelope{Event: event, Payload: payload, SentAt: now}
		if err := d.Realtime.Publish(ctx, userID, env); err != nil {
			errs = append(errs, fmt.Errorf("realtime: %w", err))
		}
	}

	if d.Push != nil && pushable(event) {
		task, err := tasks.NewPushTask(models.PushPayload{
			UserID: userID,
			Event:  event,
			Title:  title,
			Body:   body,
			Data:   Stringify(event, payload),
		})
		if err == nil {
			_, err = d.Push.EnqueueContext(ctx, task)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("push: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil && d.Logger != nil {
		d.Logger.Warn("notification delivery incomplete",
			zap.String("userID", userID), zap.String("event", event), zap.Error(err))
	}
	return err
}

// ephemeral events only make sense to a connected client.
func ephemeral(event string) bool {
	switch event {
	case EventChatMessage, EventCallSignal:
		return true
	}
	return false
}

func pushable(event string) bool {
	switch event {
	case EventChatMessage, EventCallSignal, EventCallAccepted, EventCallEnded:
		return false
	}
	return true
}

// Stringify flattens payload into FCM data, which only carries strings.
func Stringify(event string, payload map[string]any) map[string]string {
	out := map[string]string{"type": event}
	for k, v := range payload {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		case time.Time:
			out[k] = val.UTC().Format(time.RFC3339)
		case *time.Time:
			if val != nil {
				out[k] = val.UTC().Format(time.RFC3339)
			}
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

// descriptions hold a title, a body with the booking's date and time, and a body for
// payloads that carry neither.
var descriptions = map[string][3]string{
	EventBookingRequested:    {"New booking request", "A client requested a session on %s at %s.", "A client requested a session."},
	EventBookingConfirmed:    {"Booking confirmed", "Your session on %s at %s is confirmed.", "Your session is confirmed."},
	EventBookingRejected:     {"Booking declined", "Your request for %s at %s was declined. A refund is on its way.", "Your request was declined. A refund is on its way."},
	EventBookingCancelled:    {"Booking cancelled", "The session on %s at %s was cancelled.", "Your session was cancelled."},
	EventRescheduleRequested: {"Reschedule requested", "A new time was proposed: %s at %s.", "A new time was proposed for your session."},
	EventRescheduled:         {"Booking rescheduled", "Your session moved to %s at %s.", "Your session was moved."},
	EventRescheduleRejected:  {"Reschedule declined", "The session stays on %s at %s.", "The session keeps its original time."},
	EventStartNowRequested:   {"Start now?", "Your counterpart wants to start the session on %s at %s right away.", "Your counterpart wants to start the session right away."},
	EventStartNowRejected:    {"Start now declined", "The session keeps its time: %s at %s.", "The session keeps its time."},
	EventBookingCompleted:    {"Session completed", "Your session on %s at %s is complete.", "Your session is complete."},
	EventSessionUpcoming:     {"Session starting soon", "Your session on %s at %s starts shortly.", "Your session starts shortly."},
	EventSessionStarted:      {"Session started", "Your session on %s at %s has started.", "Your session has started."},
}

// Describe renders a title and body for event.
func Describe(event string, payload map[string]any) (string, string) {
	if d, ok := descriptions[event]; ok {
		date, _ := payload["date"].(string)
		startTime, _ := payload["startTime"].(string)
		if date == "" || startTime == "" {
			return d[0], d[2]
		}
		return d[0], fmt.Sprintf(d[1], date, startTime)
	}
	switch event {
	case EventSessionRequested:
		return "New session request", "A client wants to start a session now."
	case EventSessionEnded:
		return "Session ended", "Your session has ended."
	case EventChatExpired:
		return "Chat closed", "The chat for your session has closed."
	case EventCallIncoming:
		return "Incoming call", "You have an incoming call."
	case EventCallRejected:
		return "Call declined", "Your call was declined."
	case EventCallTimeout:
		return "Missed call", "A call went unanswered."
	case EventExpertAvailable:
		return "Expert available", "An expert you follow is available again."
	}
	return event, ""
}
