package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"rivelya/database/repository"
	"rivelya/models"
)

type Threads struct {
	mu   sync.RWMutex
	byID map[string]*models.ChatThread
}

func NewThreads() *Threads {
	return &Threads{byID: make(map[string]*models.ChatThread)}
}

func cloneThread(t *models.ChatThread) *models.ChatThread {
	c := *t
	c.ExpiredAt = clonePtr(t.ExpiredAt)
	return &c
}

func (r *Threads) EnsureForBooking(_ context.Context, t *models.ChatThread) (*models.ChatThread, error) {
	if t.BookingID == "" {
		return nil, errors.New("ensure thread: booking id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byID {
		if existing.BookingID == t.BookingID {
			return cloneThread(existing), nil
		}
	}
	if _, exists := r.byID[t.ID]; exists {
		return nil, fmt.Errorf("ensure thread: %w", repository.ErrDuplicate)
	}
	if t.Version == 0 {
		t.Version = 1
	}
	r.byID[t.ID] = cloneThread(t)
	return cloneThread(t), nil
}

func (r *Threads) GetByID(_ context.Context, id string) (*models.ChatThread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("get thread %s: %w", id, repository.ErrNotFound)
	}
	return cloneThread(t), nil
}

func (r *Threads) GetByBookingID(_ context.Context, bookingID string) (*models.ChatThread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.byID {
		if t.BookingID == bookingID {
			return cloneThread(t), nil
		}
	}
	return nil, fmt.Errorf("get thread for booking %s: %w", bookingID, repository.ErrNotFound)
}

func (r *Threads) Swap(_ context.Context, next *models.ChatThread, expected models.ThreadStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[next.ID]
	if !ok || cur.Version != next.Version || cur.Status != expected {
		return false, nil
	}
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	r.byID[next.ID] = cloneThread(next)
	return true, nil
}

func (r *Threads) ListDue(_ context.Context, now time.Time, limit int64) ([]models.ChatThread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.ChatThread{}
	for _, t := range r.byID {
		open := t.Status == models.ThreadOpen && !t.ExpiresAt.After(now)
		unfinished := t.Status == models.ThreadExpired && !t.Finalized
		if open || unfinished {
			out = append(out, *cloneThread(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

type Messages struct {
	mu       sync.RWMutex
	byThread map[string][]models.ChatMessage
}

func NewMessages() *Messages {
	return &Messages{byThread: make(map[string][]models.ChatMessage)}
}

func (r *Messages) Insert(_ context.Context, m *models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byThread[m.ThreadID] = append(r.byThread[m.ThreadID], *m)
	return nil
}

func (r *Messages) ListByThread(_ context.Context, threadID string, limit int64) ([]models.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.byThread[threadID]
	if limit > 0 && int64(len(msgs)) > limit {
		msgs = msgs[int64(len(msgs))-limit:]
	}
	return append([]models.ChatMessage{}, msgs...), nil
}

type Calls struct {
	mu   sync.RWMutex
	byID map[string]*models.ChatCall
}

func NewCalls() *Calls {
	return &Calls{byID: make(map[string]*models.ChatCall)}
}

func cloneCall(c *models.ChatCall) *models.ChatCall {
	out := *c
	out.StartedAt = clonePtr(c.StartedAt)
	out.EndedAt = clonePtr(c.EndedAt)
	return &out
}

func (r *Calls) Create(_ context.Context, c *models.ChatCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[c.ID]; exists {
		return fmt.Errorf("create call: %w", repository.ErrDuplicate)
	}
	c.Active = !c.Status.Terminal()
	if c.Active {
		for _, existing := range r.byID {
			if existing.ThreadID == c.ThreadID && existing.Active {
				return fmt.Errorf("create call: %w", repository.ErrDuplicate)
			}
		}
	}
	if c.Version == 0 {
		c.Version = 1
	}
	r.byID[c.ID] = cloneCall(c)
	return nil
}

func (r *Calls) GetByID(_ context.Context, id string) (*models.ChatCall, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("get call %s: %w", id, repository.ErrNotFound)
	}
	return cloneCall(c), nil
}

func (r *Calls) FindActiveByThread(_ context.Context, threadID string) (*models.ChatCall, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.byID {
		if c.ThreadID == threadID && c.Active {
			return cloneCall(c), nil
		}
	}
	return nil, fmt.Errorf("get active call for thread %s: %w", threadID, repository.ErrNotFound)
}

func (r *Calls) Swap(_ context.Context, next *models.ChatCall, expected models.CallStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[next.ID]
	if !ok || cur.Version != next.Version || cur.Status != expected {
		return false, nil
	}
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	next.Active = !next.Status.Terminal()
	r.byID[next.ID] = cloneCall(next)
	return true, nil
}

func (r *Calls) ListRingingSince(_ context.Context, initiatedBefore time.Time, limit int64) ([]models.ChatCall, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.ChatCall{}
	for _, c := range r.byID {
		if c.Status == models.CallCalling && !c.InitiatedAt.After(initiatedBefore) {
			out = append(out, *cloneCall(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InitiatedAt.Before(out[j].InitiatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}
