package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"rivelya/database/repository"
	"rivelya/models"
)

type Availability struct {
	mu     sync.RWMutex
	hours  map[string]models.WorkingHours
	blocks map[string]models.AvailabilityBlock
}

func NewAvailability() *Availability {
	return &Availability{
		hours:  make(map[string]models.WorkingHours),
		blocks: make(map[string]models.AvailabilityBlock),
	}
}

func blockKey(expertID string, year, month int) string {
	return fmt.Sprintf("%s|%04d-%02d", expertID, year, month)
}

func (r *Availability) GetWorkingHours(_ context.Context, expertID string) (*models.WorkingHours, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wh, ok := r.hours[expertID]
	if !ok {
		return nil, nil
	}
	wh.Intervals = append([]models.WorkingInterval(nil), wh.Intervals...)
	return &wh, nil
}

func (r *Availability) SaveWorkingHours(_ context.Context, wh *models.WorkingHours) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *wh
	c.Intervals = append([]models.WorkingInterval(nil), wh.Intervals...)
	r.hours[wh.ExpertID] = c
	return nil
}

func (r *Availability) GetBlocks(_ context.Context, expertID string, year int, month time.Month) ([]models.BlockEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.blocks[blockKey(expertID, year, int(month))]
	if !ok {
		return []models.BlockEntry{}, nil
	}
	return append([]models.BlockEntry{}, b.Entries...), nil
}

func (r *Availability) SaveBlocks(_ context.Context, block *models.AvailabilityBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *block
	c.Entries = append([]models.BlockEntry(nil), block.Entries...)
	r.blocks[blockKey(block.ExpertID, block.Year, block.Month)] = c
	return nil
}

type Experts struct {
	mu   sync.RWMutex
	byID map[string]models.Expert
}

func NewExperts() *Experts {
	return &Experts{byID: make(map[string]models.Expert)}
}

func (r *Experts) GetByID(_ context.Context, id string) (*models.Expert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("get expert %s: %w", id, repository.ErrNotFound)
	}
	return &e, nil
}

func (r *Experts) GetByUserID(_ context.Context, userID string) (*models.Expert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.byID {
		if e.UserID == userID {
			found := e
			return &found, nil
		}
	}
	return nil, fmt.Errorf("get expert for user %s: %w", userID, repository.ErrNotFound)
}

func (r *Experts) Upsert(_ context.Context, e *models.Expert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[e.ID] = *e
	return nil
}

type Inbox struct {
	mu     sync.RWMutex
	byUser map[string][]models.Notification
}

func NewInbox() *Inbox {
	return &Inbox{byUser: make(map[string][]models.Notification)}
}

func (r *Inbox) Insert(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[n.UserID] = append(r.byUser[n.UserID], *n)
	return nil
}

func (r *Inbox) ListForUser(_ context.Context, userID string, limit int64) ([]models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src := r.byUser[userID]
	out := make([]models.Notification, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		out = append(out, src[i])
	}
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

type Devices struct {
	mu      sync.RWMutex
	byToken map[string]models.Device
}

func NewDevices() *Devices {
	return &Devices{byToken: make(map[string]models.Device)}
}

func (r *Devices) Upsert(_ context.Context, d *models.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byToken[d.FCMToken] = *d
	return nil
}

func (r *Devices) TokensForUser(_ context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens := []string{}
	for token, d := range r.byToken {
		if d.UserID == userID {
			tokens = append(tokens, token)
		}
	}
	sort.Strings(tokens)
	return tokens, nil
}

func (r *Devices) RemoveToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byToken, token)
	return nil
}

type Alerts struct {
	mu   sync.RWMutex
	byID map[string]*models.AvailabilityAlert
}

func NewAlerts() *Alerts {
	return &Alerts{byID: make(map[string]*models.AvailabilityAlert)}
}

func (r *Alerts) Subscribe(_ context.Context, a *models.AvailabilityAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byID {
		if existing.ExpertID == a.ExpertID && existing.SubscriberID == a.SubscriberID {
			existing.Active = true
			existing.CreatedAt = a.CreatedAt
			existing.FiredAt = nil
			return nil
		}
	}
	c := *a
	c.Active = true
	c.FiredAt = nil
	r.byID[a.ID] = &c
	return nil
}

func (r *Alerts) ListActive(_ context.Context, expertID string) ([]models.AvailabilityAlert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.AvailabilityAlert{}
	for _, a := range r.byID {
		if a.ExpertID == expertID && a.Active {
			c := *a
			c.FiredAt = clonePtr(a.FiredAt)
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Alerts) Deactivate(_ context.Context, id string, firedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok || !a.Active {
		return false, nil
	}
	a.Active = false
	a.FiredAt = &firedAt
	return true, nil
}
