// Package memory keeps every repository in process memory with the same compare-and-set
// semantics as the MongoDB implementations. It backs STORAGE_DRIVER=memory and the tests.
package memory

import (
	"sync"

	availabilityRepo "rivelya/database/repository/availability"
	bookingRepo "rivelya/database/repository/booking"
	chatRepo "rivelya/database/repository/chat"
	expertRepo "rivelya/database/repository/expert"
	notificationRepo "rivelya/database/repository/notification"
	sessionRepo "rivelya/database/repository/session"
)

// Store bundles one instance of every in-memory repository.
type Store struct {
	Bookings     *Bookings
	Sessions     *Sessions
	Earnings     *Earnings
	Threads      *Threads
	Messages     *Messages
	Calls        *Calls
	Availability *Availability
	Experts      *Experts
	Inbox        *Inbox
	Devices      *Devices
	Alerts       *Alerts
}

func NewStore() *Store {
	return &Store{
		Bookings:     NewBookings(),
		Sessions:     NewSessions(),
		Earnings:     NewEarnings(),
		Threads:      NewThreads(),
		Messages:     NewMessages(),
		Calls:        NewCalls(),
		Availability: NewAvailability(),
		Experts:      NewExperts(),
		Inbox:        NewInbox(),
		Devices:      NewDevices(),
		Alerts:       NewAlerts(),
	}
}

var (
	_ bookingRepo.BookingRepository           = (*Bookings)(nil)
	_ sessionRepo.SessionRepository           = (*Sessions)(nil)
	_ sessionRepo.EarningRepository           = (*Earnings)(nil)
	_ chatRepo.ThreadRepository               = (*Threads)(nil)
	_ chatRepo.MessageRepository              = (*Messages)(nil)
	_ chatRepo.CallRepository                 = (*Calls)(nil)
	_ availabilityRepo.AvailabilityRepository = (*Availability)(nil)
	_ expertRepo.ExpertRepository             = (*Experts)(nil)
	_ notificationRepo.InboxRepository        = (*Inbox)(nil)
	_ notificationRepo.DeviceRepository       = (*Devices)(nil)
	_ notificationRepo.AlertRepository        = (*Alerts)(nil)
)

// keyedLocks hands out one mutex per key.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedLocks) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	return l
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
