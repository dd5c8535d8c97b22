package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rivelya/database/repository"
	expertRepo "rivelya/database/repository/expert"
	sessionRepo "rivelya/database/repository/session"
	"rivelya/models"
	"rivelya/services/notification"
	"rivelya/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingCompleter closes the booking a session belongs to.
type BookingCompleter interface {
	CompleteBooking(ctx context.Context, bookingID string) error
}

type Service struct {
	Sessions sessionRepo.SessionRepository
	Earnings sessionRepo.EarningRepository
	Experts  expertRepo.ExpertRepository
	Bookings BookingCompleter
	Notifier notification.Notifier
	Logger   *zap.Logger

	CommissionPercent int64
	DefaultCurrency   string
	Now               func() time.Time
}

type InstantInput struct {
	ExpertID string         `json:"expertId" binding:"required"`
	Channel  models.Channel `json:"channel" binding:"required"`
	Minutes  int            `json:"minutes" binding:"required,min=1,max=240"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// CreateInstant opens an unbooked session request. The expert has planned-duration
// time to start it before it fails.
func (s *Service) CreateInstant(ctx context.Context, clientID string, in InstantInput) (*models.Session, error) {
	if !in.Channel.Valid() {
		return nil, utils.Validation("invalid_channel", "channel must be chat or voice")
	}
	if in.Minutes <= 0 {
		return nil, utils.Validation("invalid_duration", "minutes must be positive")
	}
	expert, err := s.Experts.GetByID(ctx, in.ExpertID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.NotFound("expert_not_found", "expert not found")
		}
		return nil, fmt.Errorf("create session: %w", err)
	}
	if expert.UserID == clientID {
		return nil, utils.Validation("self_session", "you cannot start a session with yourself")
	}

	now := s.now()
	planned := int64(in.Minutes) * 60
	deadline := now.Add(time.Duration(planned) * time.Second)
	currency := expert.Currency
	if currency == "" {
		currency = s.DefaultCurrency
	}
	sess := &models.Session{
		ID:                  uuid.NewString(),
		ClientID:            clientID,
		ExpertID:            expert.ID,
		ExpertUserID:        expert.UserID,
		Channel:             in.Channel,
		Status:              models.SessionCreated,
		PricePerMinuteCents: expert.PricePerMinuteCents,
		Currency:            currency,
		PlannedSeconds:      planned,
		EndTS:               &deadline,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.Sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.notify(ctx, sess.ExpertUserID, notification.EventSessionRequested, sess)
	return sess, nil
}

func (s *Service) load(ctx context.Context, id string) (*models.Session, error) {
	sess, err := s.Sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.NotFound(CodeSessionNotFound, "session not found")
		}
		return nil, err
	}
	return sess, nil
}

func (s *Service) Get(ctx context.Context, actorID, id string) (*models.SessionView, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.IsParticipant(actorID) {
		return nil, utils.Forbidden(CodeNotParticipant, "you are not a participant of this session")
	}
	v := models.NewSessionView(*sess, s.now())
	return &v, nil
}

func (s *Service) Start(ctx context.Context, actorID, id string) (*models.Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := StartSession(*sess, actorID, s.now())
	if err != nil {
		return nil, err
	}
	ok, err := s.Sessions.Swap(ctx, &next, sess.Status)
	if err != nil {
		return nil, fmt.Errorf("start session %s: %w", id, err)
	}
	if !ok {
		return nil, utils.Conflict(CodeConcurrentUpdate, "the session changed in the meantime, reload and try again")
	}
	s.notify(ctx, next.ClientID, notification.EventSessionStarted, &next)
	s.notify(ctx, next.ExpertUserID, notification.EventSessionStarted, &next)
	return &next, nil
}

// End closes a session on a participant's request. Ending an ended session is a no-op.
func (s *Service) End(ctx context.Context, actorID, id string) (*models.Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.IsParticipant(actorID) {
		return nil, utils.Forbidden(CodeNotParticipant, "you are not a participant of this session")
	}
	if sess.Status.Terminal() {
		return sess, nil
	}
	next, changed, err := s.end(ctx, *sess, EndReasonManual)
	if err != nil {
		return nil, err
	}
	if !changed {
		current, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return current, nil
	}
	if err := s.finalize(ctx, &next); err != nil {
		s.Logger.Warn("session finalization failed, the loop will retry", zap.String("sessionID", id), zap.Error(err))
	}
	return &next, nil
}

// ExpireOne ends a session whose deadline passed and retries unfinished finalization.
func (s *Service) ExpireOne(ctx context.Context, sess models.Session) (bool, error) {
	changed := false
	if Due(sess, s.now()) {
		next, won, err := s.end(ctx, sess, EndReasonDeadline)
		if err != nil {
			return false, err
		}
		if !won {
			return false, nil
		}
		sess, changed = next, true
	}
	if !sess.Status.Terminal() || sess.Finalized {
		return changed, nil
	}
	if err := s.finalize(ctx, &sess); err != nil {
		return changed, err
	}
	return true, nil
}

func (s *Service) end(ctx context.Context, sess models.Session, reason string) (models.Session, bool, error) {
	prev := sess.Status
	next, ok := EndSession(sess, reason, s.now())
	if !ok {
		return sess, false, nil
	}
	won, err := s.Sessions.Swap(ctx, &next, prev)
	if err != nil {
		return sess, false, fmt.Errorf("end session %s: %w", sess.ID, err)
	}
	if !won {
		return sess, false, nil
	}
	s.notify(ctx, next.ClientID, notification.EventSessionEnded, &next)
	s.notify(ctx, next.ExpertUserID, notification.EventSessionEnded, &next)
	s.Logger.Info("session ended",
		zap.String("sessionID", next.ID), zap.String("status", string(next.Status)),
		zap.Int64("billedMinutes", next.BilledMinutes), zap.Int64("costCents", next.CostCents))
	return next, true, nil
}

// finalize completes the booking, credits the expert once and marks the session done.
// Every step tolerates being repeated.
func (s *Service) finalize(ctx context.Context, sess *models.Session) error {
	if sess.Status == models.SessionEnded && sess.BookingID != "" && s.Bookings != nil {
		if err := s.Bookings.CompleteBooking(ctx, sess.BookingID); err != nil {
			return fmt.Errorf("complete booking %s: %w", sess.BookingID, err)
		}
	}
	if sess.Status == models.SessionEnded && sess.CostCents > 0 {
		commission, net := Split(sess.CostCents, s.CommissionPercent)
		created, err := s.Earnings.Record(ctx, &models.Earning{
			ID:              uuid.NewString(),
			ExpertID:        sess.ExpertID,
			SessionID:       sess.ID,
			BookingID:       sess.BookingID,
			GrossCents:      sess.CostCents,
			CommissionCents: commission,
			NetCents:        net,
			Currency:        sess.Currency,
			CreatedAt:       s.now(),
		})
		if err != nil {
			return fmt.Errorf("record earning for %s: %w", sess.ID, err)
		}
		if created {
			s.Logger.Info("expert credited", zap.String("sessionID", sess.ID), zap.Int64("netCents", net))
		}
	}

	sess.Finalized = true
	ok, err := s.Sessions.Swap(ctx, sess, sess.Status)
	if err != nil {
		sess.Finalized = false
		return fmt.Errorf("mark session %s finalized: %w", sess.ID, err)
	}
	if !ok {
		sess.Finalized = false
	}
	return nil
}

// ListEarnings lists the settlements credited to the expert behind userID.
func (s *Service) ListEarnings(ctx context.Context, userID string, limit int64) ([]models.Earning, error) {
	expert, err := s.Experts.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.Forbidden("not_an_expert", "only experts have earnings")
		}
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.Earnings.ListByExpert(ctx, expert.ID, limit)
}

func (s *Service) notify(ctx context.Context, userID, event string, sess *models.Session) {
	if s.Notifier == nil {
		return
	}
	payload := map[string]any{
		"sessionId": sess.ID,
		"status":    string(sess.Status),
		"channel":   string(sess.Channel),
	}
	if sess.BookingID != "" {
		payload["bookingId"] = sess.BookingID
	}
	if sess.EndTS != nil {
		payload["endsAt"] = *sess.EndTS
	}
	if sess.Status == models.SessionEnded {
		payload["billedMinutes"] = sess.BilledMinutes
		payload["costCents"] = sess.CostCents
	}
	if err := s.Notifier.Notify(ctx, userID, event, payload); err != nil {
		s.Logger.Warn("notify failed", zap.String("sessionID", sess.ID), zap.String("event", event), zap.Error(err))
	}
}
