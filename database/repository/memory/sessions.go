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

type Sessions struct {
	mu   sync.RWMutex
	byID map[string]*models.Session
}

func NewSessions() *Sessions {
	return &Sessions{byID: make(map[string]*models.Session)}
}

func cloneSession(s *models.Session) *models.Session {
	c := *s
	c.StartTS = clonePtr(s.StartTS)
	c.EndTS = clonePtr(s.EndTS)
	c.EndedAt = clonePtr(s.EndedAt)
	return &c
}

func (r *Sessions) Create(_ context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(s)
}

func (r *Sessions) insertLocked(s *models.Session) error {
	if _, exists := r.byID[s.ID]; exists {
		return fmt.Errorf("create session: %w", repository.ErrDuplicate)
	}
	if s.BookingID != "" {
		for _, existing := range r.byID {
			if existing.BookingID == s.BookingID {
				return fmt.Errorf("create session: %w", repository.ErrDuplicate)
			}
		}
	}
	if s.Version == 0 {
		s.Version = 1
	}
	r.byID[s.ID] = cloneSession(s)
	return nil
}

func (r *Sessions) EnsureForBooking(_ context.Context, s *models.Session) (*models.Session, error) {
	if s.BookingID == "" {
		return nil, errors.New("ensure session: booking id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byID {
		if existing.BookingID == s.BookingID {
			return cloneSession(existing), nil
		}
	}
	if err := r.insertLocked(s); err != nil {
		return nil, err
	}
	return cloneSession(s), nil
}

func (r *Sessions) GetByID(_ context.Context, id string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("get session %s: %w", id, repository.ErrNotFound)
	}
	return cloneSession(s), nil
}

func (r *Sessions) GetByBookingID(_ context.Context, bookingID string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.byID {
		if s.BookingID == bookingID {
			return cloneSession(s), nil
		}
	}
	return nil, fmt.Errorf("get session for booking %s: %w", bookingID, repository.ErrNotFound)
}

func (r *Sessions) Swap(_ context.Context, next *models.Session, expected models.SessionStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[next.ID]
	if !ok || cur.Version != next.Version || cur.Status != expected {
		return false, nil
	}
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	r.byID[next.ID] = cloneSession(next)
	return true, nil
}

func (r *Sessions) ListDue(_ context.Context, now time.Time, limit int64) ([]models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.Session{}
	for _, s := range r.byID {
		open := (s.Status == models.SessionCreated || s.Status == models.SessionActive) &&
			s.EndTS != nil && !s.EndTS.After(now)
		unfinished := s.Status.Terminal() && !s.Finalized
		if open || unfinished {
			out = append(out, *cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return endOf(out[i]).Before(endOf(out[j])) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func endOf(s models.Session) time.Time {
	if s.EndTS == nil {
		return time.Time{}
	}
	return *s.EndTS
}

type Earnings struct {
	mu        sync.RWMutex
	bySession map[string]models.Earning
}

func NewEarnings() *Earnings {
	return &Earnings{bySession: make(map[string]models.Earning)}
}

func (r *Earnings) Record(_ context.Context, e *models.Earning) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySession[e.SessionID]; exists {
		return false, nil
	}
	r.bySession[e.SessionID] = *e
	return true, nil
}

func (r *Earnings) ListByExpert(_ context.Context, expertID string, limit int64) ([]models.Earning, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.Earning{}
	for _, e := range r.bySession {
		if e.ExpertID == expertID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}
