package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rivelya/database/repository"
	bookingRepo "rivelya/database/repository/booking"
	chatRepo "rivelya/database/repository/chat"
	expertRepo "rivelya/database/repository/expert"
	sessionRepo "rivelya/database/repository/session"
	"rivelya/models"
	"rivelya/services/availability"
	"rivelya/services/notification"
	"rivelya/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const CodeConcurrentUpdate = "concurrent_update"

// AlertFirer delivers one-shot "expert available" alerts.
type AlertFirer interface {
	Fire(ctx context.Context, expertID string, now time.Time) (int, error)
}

// Service owns the booking lifecycle. Every write is a versioned compare-and-set, so
// the request path and the reconciliation loop never need a shared lock.
type Service struct {
	Bookings     bookingRepo.BookingRepository
	Sessions     sessionRepo.SessionRepository
	Threads      chatRepo.ThreadRepository
	Experts      expertRepo.ExpertRepository
	Availability *availability.Service
	Payments     PaymentGateway
	Notifier     notification.Notifier
	Alerts       AlertFirer
	Logger       *zap.Logger

	UpcomingLead    time.Duration
	DefaultCurrency string
	Now             func() time.Time
}

type CreateInput struct {
	ExpertID      string         `json:"expertId" binding:"required"`
	Channel       models.Channel `json:"channel" binding:"required"`
	Date          string         `json:"date" binding:"required"`
	StartTime     string         `json:"startTime" binding:"required"`
	EndTime       string         `json:"endTime" binding:"required"`
	PaymentMethod string         `json:"paymentMethod"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Create charges the client and stores a new request for the expert to decide on.
func (s *Service) Create(ctx context.Context, clientID string, in CreateInput) (*models.Booking, error) {
	if !in.Channel.Valid() {
		return nil, utils.Validation(CodeInvalidChannel, "channel must be chat or voice")
	}
	expert, err := s.Experts.GetByID(ctx, in.ExpertID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.NotFound(CodeExpertNotFound, "expert not found")
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}
	if expert.UserID == clientID {
		return nil, utils.Validation("self_booking", "you cannot book yourself")
	}

	loc, err := s.Availability.LocationFor(ctx, expert)
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	startAt, endAt, minutes, err := Schedule(in.Date, in.StartTime, in.EndTime, loc)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !now.Before(startAt) {
		return nil, utils.Validation(CodeStartPassed, "the requested start time is in the past")
	}
	if err := s.Availability.Check(ctx, expert.ID, in.Date, in.StartTime, in.EndTime, ""); err != nil {
		return nil, err
	}

	currency := expert.Currency
	if currency == "" {
		currency = s.DefaultCurrency
	}
	b := &models.Booking{
		ID:                  uuid.NewString(),
		ClientID:            clientID,
		ExpertID:            expert.ID,
		ExpertUserID:        expert.UserID,
		Channel:             in.Channel,
		Date:                in.Date,
		StartTime:           in.StartTime,
		EndTime:             in.EndTime,
		Timezone:            loc.String(),
		DurationMinutes:     minutes,
		PricePerMinuteCents: expert.PricePerMinuteCents,
		AmountCents:         int64(minutes) * expert.PricePerMinuteCents,
		Currency:            currency,
		Status:              models.BookingAwaitingMaster,
		RescheduleHistory:   []models.RescheduleRequest{},
		ScheduledStartAt:    startAt,
		ScheduledEndAt:      endAt,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if b.AmountCents > 0 {
		ref, err := s.Payments.Charge(ctx, ChargeRequest{
			BookingID:      b.ID,
			CustomerID:     clientID,
			AmountCents:    b.AmountCents,
			Currency:       b.Currency,
			PaymentMethod:  in.PaymentMethod,
			IdempotencyKey: chargeKey(b.ID),
		})
		if err != nil {
			return nil, utils.Unavailable(CodePaymentFailed, "payment could not be completed", err)
		}
		b.PaymentRef = ref
	}

	err = s.Bookings.WithDayGuard(ctx, b.ExpertID, b.Date, func(ctx context.Context) error {
		if err := s.Availability.Check(ctx, b.ExpertID, b.Date, b.StartTime, b.EndTime, ""); err != nil {
			return err
		}
		return s.Bookings.Create(ctx, b)
	})
	if err != nil {
		s.abandonCharged(ctx, b, err)
		return nil, err
	}

	s.Availability.Invalidate(ctx, b.ExpertID, b.Date)
	s.notify(ctx, b.ExpertUserID, notification.EventBookingRequested, b)
	s.Logger.Info("booking requested", zap.String("bookingID", b.ID), zap.String("expertID", b.ExpertID))
	return b, nil
}

// abandonCharged keeps a record of a payment whose booking could not be stored, so the
// refund is retried by the loop until it goes through.
func (s *Service) abandonCharged(ctx context.Context, b *models.Booking, cause error) {
	if b.PaymentRef == "" {
		return
	}
	b.Status = models.BookingCancelled
	b.CancelReason = "slot_unavailable"
	b.RefundStatus = models.RefundPending
	if err := s.Bookings.Create(ctx, b); err != nil {
		s.Logger.Error("could not record charge to refund", zap.String("bookingID", b.ID), zap.String("paymentRef", b.PaymentRef), zap.Error(err))
		return
	}
	s.Logger.Warn("booking lost its slot after payment", zap.String("bookingID", b.ID), zap.Error(cause))
	_ = s.refund(ctx, b)
}

func (s *Service) load(ctx context.Context, id string) (*models.Booking, error) {
	b, err := s.Bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.NotFound(CodeBookingNotFound, "booking not found")
		}
		return nil, err
	}
	return b, nil
}

// swap persists next for a request-path change. Losing the race is a conflict.
func (s *Service) swap(ctx context.Context, next *models.Booking, expected models.BookingStatus) error {
	ok, err := s.Bookings.Swap(ctx, next, expected)
	if err != nil {
		return fmt.Errorf("update booking %s: %w", next.ID, err)
	}
	if !ok {
		return utils.Conflict(CodeConcurrentUpdate, "the booking changed in the meantime, reload and try again")
	}
	return nil
}

func bookingLocation(b *models.Booking) *time.Location {
	if loc, err := time.LoadLocation(b.Timezone); err == nil && b.Timezone != "" {
		return loc
	}
	return time.UTC
}

func (s *Service) Decide(ctx context.Context, actorID, bookingID string, accept bool) (*models.Booking, error) {
	b, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	next, err := Decide(*b, actorID, accept, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.swap(ctx, &next, b.Status); err != nil {
		return nil, err
	}
	s.Availability.Invalidate(ctx, next.ExpertID, next.Date)

	if accept {
		s.notify(ctx, next.ClientID, notification.EventBookingConfirmed, &next)
	} else {
		s.notify(ctx, next.ClientID, notification.EventBookingRejected, &next)
		_ = s.refund(ctx, &next)
	}
	return &next, nil
}

func (s *Service) RequestReschedule(ctx context.Context, actorID, bookingID string, p Proposal) (*models.Booking, error) {
	b, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	next, err := ProposeReschedule(*b, actorID, p, bookingLocation(b), s.now())
	if err != nil {
		return nil, err
	}
	if err := s.Availability.Check(ctx, b.ExpertID, p.Date, p.StartTime, p.EndTime, b.ID); err != nil {
		return nil, err
	}
	if err := s.swap(ctx, &next, b.Status); err != nil {
		return nil, err
	}
	s.Availability.Invalidate(ctx, next.ExpertID, next.Date)
	s.notify(ctx, next.Counterparty(actorID), notification.EventRescheduleRequested, &next, "proposal", p)
	return &next, nil
}

func (s *Service) RespondReschedule(ctx context.Context, actorID, bookingID string, accept bool) (*models.Booking, error) {
	b, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	next, err := RespondReschedule(*b, actorID, accept, bookingLocation(b), s.now())
	if err != nil {
		return nil, err
	}

	if accept {
		err = s.Bookings.WithDayGuard(ctx, next.ExpertID, next.Date, func(ctx context.Context) error {
			if err := s.Availability.Check(ctx, next.ExpertID, next.Date, next.StartTime, next.EndTime, next.ID); err != nil {
				return err
			}
			return s.swap(ctx, &next, b.Status)
		})
	} else {
		err = s.swap(ctx, &next, b.Status)
	}
	if err != nil {
		return nil, err
	}

	s.Availability.Invalidate(ctx, b.ExpertID, b.Date)
	s.Availability.Invalidate(ctx, next.ExpertID, next.Date)

	proposer := next.Counterparty(actorID)
	if accept {
		s.notify(ctx, proposer, notification.EventRescheduled, &next)
	} else {
		s.notify(ctx, proposer, notification.EventRescheduleRejected, &next)
	}
	return &next, nil
}

func (s *Service) RequestStartNow(ctx context.Context, actorID, bookingID string) (*models.Booking, error) {
	b, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	next, err := RequestStartNow(*b, actorID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.swap(ctx, &next, b.Status); err != nil {
		return nil, err
	}
	s.notify(ctx, next.Counterparty(actorID), notification.EventStartNowRequested, &next)
	return &next, nil
}

func (s *Service) RespondStartNow(ctx context.Context, actorID, bookingID string, accept bool) (*models.Booking, error) {
	b, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	requester := ""
	if b.StartNowRequest != nil {
		requester = b.StartNowRequest.RequestedBy
	}
	next, err := RespondStartNow(*b, actorID, accept, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.swap(ctx, &next, b.Status); err != nil {
		return nil, err
	}

	if !accept {
		s.notify(ctx, requester, notification.EventStartNowRejected, &next)
		return &next, nil
	}
	s.Availability.Invalidate(ctx, next.ExpertID, next.Date)
	if err := s.provision(ctx, &next); err != nil {
		s.Logger.Warn("provisioning after start-now failed, the loop will retry", zap.String("bookingID", next.ID), zap.Error(err))
	}
	return &next, nil
}

func (s *Service) Cancel(ctx context.Context, actorID, bookingID, reason string) (*models.Booking, error) {
	b, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "cancelled_by_participant"
	}
	next, err := Cancel(*b, actorID, reason, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.swap(ctx, &next, b.Status); err != nil {
		return nil, err
	}
	s.Availability.Invalidate(ctx, next.ExpertID, next.Date)
	s.notify(ctx, next.Counterparty(actorID), notification.EventBookingCancelled, &next)
	_ = s.refund(ctx, &next)
	return &next, nil
}

// Start opens the session of a booking whose start is within the preparation window.
func (s *Service) Start(ctx context.Context, actorID, bookingID string) (*models.Booking, error) {
	b, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	next, err := StartManually(*b, actorID, s.UpcomingLead, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.swap(ctx, &next, b.Status); err != nil {
		return nil, err
	}
	s.Availability.Invalidate(ctx, next.ExpertID, next.Date)
	if err := s.provision(ctx, &next); err != nil {
		s.Logger.Warn("provisioning after manual start failed, the loop will retry", zap.String("bookingID", next.ID), zap.Error(err))
	}
	return &next, nil
}

// Get resolves a booking together with its expert, session and thread.
func (s *Service) Get(ctx context.Context, actorID, bookingID string) (*models.BookingDetails, error) {
	b, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.IsParticipant(actorID) {
		return nil, errNotParticipant()
	}
	now := s.now()
	details := &models.BookingDetails{
		Booking:           *b,
		EffectiveStatus:   b.EffectiveStatus(now),
		RemainingSeconds:  b.RemainingSeconds(now),
		SecondsUntilStart: b.SecondsUntilStart(now),
	}

	if e, err := s.Experts.GetByID(ctx, b.ExpertID); err == nil {
		details.Expert = &models.ExpertSummary{ID: e.ID, DisplayName: e.DisplayName, Timezone: e.Timezone}
	}
	if b.SessionID != "" {
		if sess, err := s.Sessions.GetByID(ctx, b.SessionID); err == nil {
			v := models.NewSessionView(*sess, now)
			details.Session = &v
		}
	}
	if b.ThreadID != "" {
		if t, err := s.Threads.GetByID(ctx, b.ThreadID); err == nil {
			v := models.NewThreadView(*t, now)
			details.Thread = &v
		}
	}
	return details, nil
}

func (s *Service) List(ctx context.Context, userID string, limit int64) ([]models.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.Bookings.ListByParticipant(ctx, userID, limit)
}

// refund returns the payment of a booking flagged refund-pending and records the result.
// A transient failure leaves the flag in place for the loop.
func (s *Service) refund(ctx context.Context, b *models.Booking) error {
	if b.RefundStatus != models.RefundPending {
		return nil
	}
	ref, err := s.Payments.Refund(ctx, b.PaymentRef, b.AmountCents, refundKey(b.ID))
	status := models.RefundRefunded
	if err != nil {
		if !errors.Is(err, ErrRefundRejected) {
			s.Logger.Warn("refund failed, will retry", zap.String("bookingID", b.ID), zap.Error(err))
			return err
		}
		s.Logger.Error("refund rejected", zap.String("bookingID", b.ID), zap.Error(err))
		status = models.RefundFailed
	}

	b.RefundStatus = status
	b.RefundRef = ref
	ok, err := s.Bookings.Swap(ctx, b, b.Status)
	if err != nil {
		return fmt.Errorf("record refund of %s: %w", b.ID, err)
	}
	if !ok {
		return fmt.Errorf("record refund of %s: booking changed concurrently", b.ID)
	}
	s.Logger.Info("refund recorded", zap.String("bookingID", b.ID), zap.String("refundStatus", string(status)))
	return nil
}

// notify sends event with the booking summary; extra holds alternating key/value pairs.
func (s *Service) notify(ctx context.Context, userID, event string, b *models.Booking, extra ...any) {
	if s.Notifier == nil || userID == "" {
		return
	}
	payload := map[string]any{
		"bookingId": b.ID,
		"status":    string(b.Status),
		"date":      b.Date,
		"startTime": b.StartTime,
		"endTime":   b.EndTime,
		"channel":   string(b.Channel),
	}
	if b.SessionID != "" {
		payload["sessionId"] = b.SessionID
	}
	if b.ThreadID != "" {
		payload["threadId"] = b.ThreadID
	}
	for i := 0; i+1 < len(extra); i += 2 {
		if k, ok := extra[i].(string); ok {
			payload[k] = extra[i+1]
		}
	}
	if err := s.Notifier.Notify(ctx, userID, event, payload); err != nil {
		s.Logger.Warn("notify failed", zap.String("bookingID", b.ID), zap.String("event", event), zap.Error(err))
	}
}
