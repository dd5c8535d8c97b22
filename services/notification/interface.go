package notification

import (
	"context"
	"sync"
)

// Events delivered to participants.
const (
	EventBookingRequested    = "booking:requested"
	EventBookingConfirmed    = "booking:confirmed"
	EventBookingRejected     = "booking:rejected"
	EventBookingCancelled    = "booking:cancelled"
	EventRescheduleRequested = "booking:reschedule_requested"
	EventRescheduled         = "booking:rescheduled"
	EventRescheduleRejected  = "booking:reschedule_rejected"
	EventStartNowRequested   = "booking:start_now_requested"
	EventStartNowRejected    = "booking:start_now_rejected"
	EventBookingCompleted    = "booking:completed"
	EventSessionRequested    = "session:requested"
	EventSessionUpcoming     = "session:upcoming"
	EventSessionStarted      = "session:started"
	EventSessionEnded        = "session:ended"
	EventChatMessage         = "chat:message"
	EventChatExpired         = "chat:expired"
	EventCallIncoming        = "call:incoming"
	EventCallAccepted        = "call:accepted"
	EventCallRejected        = "call:rejected"
	EventCallTimeout         = "call:timeout"
	EventCallEnded           = "call:ended"
	EventCallSignal          = "call:signal"
	EventExpertAvailable     = "expert:available"
)

// Notifier relays an event to one user. Delivery is best effort: callers log a
// failure and never undo the state change that caused it.
type Notifier interface {
	Notify(ctx context.Context, userID, event string, payload map[string]any) error
}

// Sent is one recorded delivery.
type Sent struct {
	UserID  string
	Event   string
	Payload map[string]any
}

// Recorder keeps every notification in memory. Used by tests and the memory driver.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
}

func (r *Recorder) Notify(_ context.Context, userID, event string, payload map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{UserID: userID, Event: event, Payload: payload})
	return nil
}

func (r *Recorder) All() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Count returns how many times event was sent to userID. An empty userID matches anyone.
func (r *Recorder) Count(userID, event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.Event == event && (userID == "" || s.UserID == userID) {
			n++
		}
	}
	return n
}
