package booking

import (
	"context"
	"fmt"
	"time"

	"rivelya/models"
	"rivelya/services/notification"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// The methods below are driven by the reconciliation loop. Each handles one booking and
// reports whether it changed anything; a lost compare-and-set is not an error.

// PrepareOne moves a confirmed booking into ready_to_start once it is within the lead
// window, announcing the upcoming session exactly once.
func (s *Service) PrepareOne(ctx context.Context, b models.Booking) (bool, error) {
	next, ok := Prepare(b, s.UpcomingLead, s.now())
	if !ok {
		return false, nil
	}
	won, err := s.Bookings.Swap(ctx, &next, models.BookingConfirmed)
	if err != nil || !won {
		return false, err
	}
	s.notify(ctx, next.ClientID, notification.EventSessionUpcoming, &next)
	s.notify(ctx, next.ExpertUserID, notification.EventSessionUpcoming, &next)
	return true, nil
}

// AutoStartOne activates a due booking. The claim guards on autoStarted so concurrent
// passes start it at most once.
func (s *Service) AutoStartOne(ctx context.Context, b models.Booking) (bool, error) {
	next, ok := AutoStart(b, s.now())
	if !ok {
		return false, nil
	}
	won, err := s.Bookings.ClaimAutoStart(ctx, &next)
	if err != nil || !won {
		return false, err
	}
	s.Availability.Invalidate(ctx, next.ExpertID, next.Date)
	if err := s.provision(ctx, &next); err != nil {
		return true, fmt.Errorf("provision auto-started booking %s: %w", next.ID, err)
	}
	return true, nil
}

// ProvisionOne repairs an active booking whose session or thread link is missing.
func (s *Service) ProvisionOne(ctx context.Context, b models.Booking) (bool, error) {
	if b.Status != models.BookingActive || b.Provisioned {
		return false, nil
	}
	if err := s.provision(ctx, &b); err != nil {
		return false, err
	}
	return b.Provisioned, nil
}

// ExpireStaleOne cancels a request or reschedule whose start passed without an
// answer and refunds it.
func (s *Service) ExpireStaleOne(ctx context.Context, b models.Booking) (bool, error) {
	next, ok := ExpireStale(b, s.now())
	if !ok {
		return false, nil
	}
	won, err := s.Bookings.Swap(ctx, &next, b.Status)
	if err != nil || !won {
		return false, err
	}
	s.Availability.Invalidate(ctx, next.ExpertID, next.Date)
	s.notify(ctx, next.ClientID, notification.EventBookingCancelled, &next, "reason", next.CancelReason)
	s.notify(ctx, next.ExpertUserID, notification.EventBookingCancelled, &next, "reason", next.CancelReason)
	if err := s.refund(ctx, &next); err != nil {
		return true, err
	}
	return true, nil
}

// RefundOne retries a pending refund.
func (s *Service) RefundOne(ctx context.Context, b models.Booking) (bool, error) {
	if b.RefundStatus != models.RefundPending {
		return false, nil
	}
	if err := s.refund(ctx, &b); err != nil {
		return false, err
	}
	return true, nil
}

// provision creates (or finds) the session and, for chat, the thread of an active
// booking and links them back. Both are keyed by booking id, so a retry reuses them.
func (s *Service) provision(ctx context.Context, b *models.Booking) error {
	if b.ActualStartAt == nil || b.ActualEndAt == nil {
		return fmt.Errorf("booking %s has no actual schedule", b.ID)
	}
	now := s.now()
	planned := int64(b.DurationMinutes) * 60

	startTS, endTS := *b.ActualStartAt, *b.ActualEndAt
	sess, err := s.Sessions.EnsureForBooking(ctx, &models.Session{
		ID:                  uuid.NewString(),
		BookingID:           b.ID,
		ClientID:            b.ClientID,
		ExpertID:            b.ExpertID,
		ExpertUserID:        b.ExpertUserID,
		Channel:             b.Channel,
		Status:              models.SessionActive,
		PricePerMinuteCents: b.PricePerMinuteCents,
		Currency:            b.Currency,
		PlannedSeconds:      planned,
		StartTS:             &startTS,
		EndTS:               &endTS,
		CreatedAt:           now,
		UpdatedAt:           now,
	})
	if err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	b.SessionID = sess.ID

	if b.Channel == models.ChannelChat {
		thread, err := s.Threads.EnsureForBooking(ctx, &models.ChatThread{
			ID:             uuid.NewString(),
			BookingID:      b.ID,
			ClientID:       b.ClientID,
			ExpertUserID:   b.ExpertUserID,
			Status:         models.ThreadOpen,
			AllowedSeconds: planned,
			StartedAt:      startTS,
			ExpiresAt:      endTS,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return fmt.Errorf("ensure thread: %w", err)
		}
		b.ThreadID = thread.ID
	}

	b.Provisioned = true
	won, err := s.Bookings.Swap(ctx, b, models.BookingActive)
	if err != nil {
		b.Provisioned = false
		return fmt.Errorf("link session to booking %s: %w", b.ID, err)
	}
	if !won {
		b.Provisioned = false
		s.Logger.Debug("booking changed while provisioning", zap.String("bookingID", b.ID))
		return nil
	}

	s.notify(ctx, b.ClientID, notification.EventSessionStarted, b, "endsAt", endTS)
	s.notify(ctx, b.ExpertUserID, notification.EventSessionStarted, b, "endsAt", endTS)
	s.Logger.Info("session provisioned",
		zap.String("bookingID", b.ID), zap.String("sessionID", b.SessionID), zap.String("threadID", b.ThreadID))
	return nil
}

// CompleteBooking closes the booking of a finished session or thread. It is safe to call
// repeatedly; only the call that performs the transition notifies and fires alerts.
func (s *Service) CompleteBooking(ctx context.Context, bookingID string) error {
	b, err := s.load(ctx, bookingID)
	if err != nil {
		return err
	}
	now := s.now()
	next, ok := Complete(*b, now)
	if !ok {
		return nil
	}
	won, err := s.Bookings.Swap(ctx, &next, models.BookingActive)
	if err != nil {
		return fmt.Errorf("complete booking %s: %w", bookingID, err)
	}
	if !won {
		current, err := s.load(ctx, bookingID)
		if err != nil {
			return err
		}
		if current.Status == models.BookingActive {
			return fmt.Errorf("complete booking %s: lost a concurrent update", bookingID)
		}
		return nil
	}

	s.Availability.Invalidate(ctx, next.ExpertID, next.Date)
	s.notify(ctx, next.ClientID, notification.EventBookingCompleted, &next)
	s.notify(ctx, next.ExpertUserID, notification.EventBookingCompleted, &next)
	if s.Alerts != nil {
		if _, err := s.Alerts.Fire(ctx, next.ExpertID, now); err != nil {
			s.Logger.Warn("expert alerts not delivered", zap.String("expertID", next.ExpertID), zap.Error(err))
		}
	}
	s.Logger.Info("booking completed", zap.String("bookingID", next.ID))
	return nil
}

// LeadWindow exposes the preparation horizon for the loop's listing query.
func (s *Service) LeadWindow(now time.Time) time.Time {
	return now.Add(s.UpcomingLead)
}
