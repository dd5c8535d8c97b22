package notification

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Envelope is what a connected client receives for one event.
type Envelope struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload,omitempty"`
	SentAt  time.Time      `json:"sentAt"`
}

// Publisher pushes envelopes to connected clients of a user.
type Publisher interface {
	Publish(ctx context.Context, userID string, env Envelope) error
}

func UserChannel(userID string) string {
	return "realtime:user:" + userID
}

// RedisRelay fans events out over Redis pub/sub so any API instance holding the
// user's stream can deliver them.
type RedisRelay struct {
	Client *redis.Client
}

func (r *RedisRelay) Publish(ctx context.Context, userID string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.Client.Publish(ctx, UserChannel(userID), data).Err()
}

// Subscribe streams envelopes for userID until ctx is done. The returned channel is
// closed when the subscription ends.
func (r *RedisRelay) Subscribe(ctx context.Context, userID string) (<-chan Envelope, error) {
	sub := r.Client.Subscribe(ctx, UserChannel(userID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan Envelope, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// NoopPublisher drops realtime events when no Redis is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, Envelope) error { return nil }

// LocalHub relays events between subscribers of the same process. It backs the event
// stream when no Redis is configured, so it only reaches clients of this instance.
type LocalHub struct {
	mu   sync.Mutex
	subs map[string]map[chan Envelope]struct{}
}

func NewLocalHub() *LocalHub {
	return &LocalHub{subs: make(map[string]map[chan Envelope]struct{})}
}

// Publish never blocks; a subscriber whose buffer is full misses the event.
func (h *LocalHub) Publish(_ context.Context, userID string, env Envelope) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- env:
		default:
		}
	}
	return nil
}

func (h *LocalHub) Subscribe(ctx context.Context, userID string) (<-chan Envelope, error) {
	ch := make(chan Envelope, 16)
	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan Envelope]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs[userID], ch)
		if len(h.subs[userID]) == 0 {
			delete(h.subs, userID)
		}
		h.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}
