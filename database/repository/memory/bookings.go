package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"rivelya/database/repository"
	"rivelya/models"
)

type Bookings struct {
	mu   sync.RWMutex
	byID map[string]*models.Booking
	days keyedLocks
}

func NewBookings() *Bookings {
	return &Bookings{byID: make(map[string]*models.Booking)}
}

func cloneBooking(b *models.Booking) *models.Booking {
	c := *b
	c.RescheduleRequest = clonePtr(b.RescheduleRequest)
	c.RescheduleHistory = append([]models.RescheduleRequest(nil), b.RescheduleHistory...)
	c.StartNowRequest = clonePtr(b.StartNowRequest)
	c.OriginalSchedule = clonePtr(b.OriginalSchedule)
	c.ActualStartAt = clonePtr(b.ActualStartAt)
	c.ActualEndAt = clonePtr(b.ActualEndAt)
	c.CompletedAt = clonePtr(b.CompletedAt)
	c.ReminderSentAt = clonePtr(b.ReminderSentAt)
	return &c
}

func (r *Bookings) Create(_ context.Context, b *models.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[b.ID]; exists {
		return fmt.Errorf("create booking: %w", repository.ErrDuplicate)
	}
	if b.Version == 0 {
		b.Version = 1
	}
	r.byID[b.ID] = cloneBooking(b)
	return nil
}

func (r *Bookings) GetByID(_ context.Context, id string) (*models.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("get booking %s: %w", id, repository.ErrNotFound)
	}
	return cloneBooking(b), nil
}

func (r *Bookings) Swap(_ context.Context, next *models.Booking, expected models.BookingStatus) (bool, error) {
	return r.replace(next, func(cur *models.Booking) bool {
		return cur.Status == expected
	}), nil
}

func (r *Bookings) ClaimAutoStart(_ context.Context, next *models.Booking) (bool, error) {
	return r.replace(next, func(cur *models.Booking) bool {
		return cur.Status == models.BookingReadyToStart && !cur.AutoStarted
	}), nil
}

func (r *Bookings) replace(next *models.Booking, guard func(cur *models.Booking) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[next.ID]
	if !ok || cur.Version != next.Version || !guard(cur) {
		return false
	}
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	r.byID[next.ID] = cloneBooking(next)
	return true
}

func (r *Bookings) WithDayGuard(ctx context.Context, expertID, date string, fn func(ctx context.Context) error) error {
	l := r.days.get(expertID + "|" + date)
	l.Lock()
	defer l.Unlock()
	return fn(ctx)
}

func (r *Bookings) list(match func(b *models.Booking) bool, limit int64, desc bool) []models.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.Booking{}
	for _, b := range r.byID {
		if match(b) {
			out = append(out, *cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].ScheduledStartAt.After(out[j].ScheduledStartAt)
		}
		return out[i].ScheduledStartAt.Before(out[j].ScheduledStartAt)
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out
}

func (r *Bookings) ListBlockingByExpertDate(_ context.Context, expertID, date string) ([]models.Booking, error) {
	return r.list(func(b *models.Booking) bool {
		return b.ExpertID == expertID && b.Date == date && b.Status.Blocking()
	}, 0, false), nil
}

func (r *Bookings) ListBlockingByExpertMonth(_ context.Context, expertID string, year int, month time.Month) ([]models.Booking, error) {
	prefix := fmt.Sprintf("%04d-%02d-", year, int(month))
	return r.list(func(b *models.Booking) bool {
		return b.ExpertID == expertID && strings.HasPrefix(b.Date, prefix) && b.Status.Blocking()
	}, 0, false), nil
}

func (r *Bookings) ListByParticipant(_ context.Context, userID string, limit int64) ([]models.Booking, error) {
	return r.list(func(b *models.Booking) bool {
		return b.ClientID == userID || b.ExpertUserID == userID
	}, limit, true), nil
}

func (r *Bookings) ListDueForPreparation(_ context.Context, horizon time.Time, limit int64) ([]models.Booking, error) {
	return r.list(func(b *models.Booking) bool {
		return b.Status == models.BookingConfirmed && !b.ScheduledStartAt.After(horizon)
	}, limit, false), nil
}

func (r *Bookings) ListDueForStart(_ context.Context, now time.Time, limit int64) ([]models.Booking, error) {
	return r.list(func(b *models.Booking) bool {
		return b.Status == models.BookingReadyToStart && !b.AutoStarted && !b.ScheduledStartAt.After(now)
	}, limit, false), nil
}

func (r *Bookings) ListUnprovisioned(_ context.Context, limit int64) ([]models.Booking, error) {
	return r.list(func(b *models.Booking) bool {
		return b.Status == models.BookingActive && !b.Provisioned
	}, limit, false), nil
}

func (r *Bookings) ListStaleRequests(_ context.Context, now time.Time, limit int64) ([]models.Booking, error) {
	return r.list(func(b *models.Booking) bool {
		if b.Status == models.BookingAwaitingMaster {
			return !b.ScheduledStartAt.After(now)
		}
		return b.RescheduleLapsed(now)
	}, limit, false), nil
}

func (r *Bookings) ListPendingRefunds(_ context.Context, limit int64) ([]models.Booking, error) {
	return r.list(func(b *models.Booking) bool {
		return b.RefundStatus == models.RefundPending
	}, limit, false), nil
}
