package handlers

import (
	expertRepo "rivelya/database/repository/expert"
	notificationRepo "rivelya/database/repository/notification"
	"rivelya/services/availability"
	"rivelya/services/booking"
	"rivelya/services/chat"
	"rivelya/services/notification"
	"rivelya/services/reconcile"
	"rivelya/services/session"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	Availability *AvailabilityHandler
	Expert       *ExpertHandler
	Booking      *BookingHandler
	Session      *SessionHandler
	Chat         *ChatHandler
	Notification *NotificationHandler
	Admin        *AdminHandler
}

// Services is everything the handlers need, assembled in main.
type Services struct {
	Availability *availability.Service
	Experts      expertRepo.ExpertRepository
	Bookings     *booking.Service
	Sessions     *session.Service
	Chat         *chat.Service
	Alerts       *notification.AlertService
	Inbox        notificationRepo.InboxRepository
	Devices      notificationRepo.DeviceRepository
	Events       EventSubscriber
	Loop         *reconcile.Loop

	DefaultCurrency string
}

func NewHandlerBundle(s Services) *HandlerBundle {
	return &HandlerBundle{
		Availability: &AvailabilityHandler{Service: s.Availability},
		Expert:       &ExpertHandler{Experts: s.Experts, DefaultCurrency: s.DefaultCurrency},
		Booking:      &BookingHandler{Service: s.Bookings},
		Session:      &SessionHandler{Service: s.Sessions},
		Chat:         &ChatHandler{Service: s.Chat},
		Notification: &NotificationHandler{Alerts: s.Alerts, Inbox: s.Inbox, Devices: s.Devices, Events: s.Events},
		Admin:        &AdminHandler{Loop: s.Loop},
	}
}
