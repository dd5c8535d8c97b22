package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"rivelya/database/repository"
	chatRepo "rivelya/database/repository/chat"
	"rivelya/models"
	"rivelya/services/notification"
	"rivelya/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CodeNothingToDo       = "nothing_to_do"
	CodeInvalidTransition = "invalid_transition"
	CodeNotParticipant    = "not_participant"
	CodeThreadNotFound    = "thread_not_found"
	CodeCallNotFound      = "call_not_found"
	CodeThreadExpired     = "thread_expired"
	CodeCallInProgress    = "call_in_progress"
	CodeCallTimedOut      = "call_timed_out"
	CodeConcurrentUpdate  = "concurrent_update"
	CodeInvalidMessage    = "invalid_message"

	MaxMessageLength = 4000
	DefaultRing      = 30 * time.Second
)

// BookingCompleter closes the booking a thread belongs to.
type BookingCompleter interface {
	CompleteBooking(ctx context.Context, bookingID string) error
}

type Service struct {
	Threads  chatRepo.ThreadRepository
	Messages chatRepo.MessageRepository
	Calls    chatRepo.CallRepository
	Bookings BookingCompleter
	Notifier notification.Notifier
	Logger   *zap.Logger

	RingTimeout time.Duration
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) ring() time.Duration {
	if s.RingTimeout <= 0 {
		return DefaultRing
	}
	return s.RingTimeout
}

func (s *Service) loadThread(ctx context.Context, actorID, id string) (*models.ChatThread, error) {
	t, err := s.Threads.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.NotFound(CodeThreadNotFound, "thread not found")
		}
		return nil, err
	}
	if !t.IsParticipant(actorID) {
		return nil, utils.Forbidden(CodeNotParticipant, "you are not a participant of this thread")
	}
	return t, nil
}

func (s *Service) loadCall(ctx context.Context, actorID, id string) (*models.ChatCall, error) {
	c, err := s.Calls.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.NotFound(CodeCallNotFound, "call not found")
		}
		return nil, err
	}
	if !c.IsParticipant(actorID) {
		return nil, utils.Forbidden(CodeNotParticipant, "you are not on this call")
	}
	return c, nil
}

func (s *Service) GetThread(ctx context.Context, actorID, id string) (*models.ThreadView, error) {
	t, err := s.loadThread(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	v := models.NewThreadView(*t, s.now())
	return &v, nil
}

// PostMessage stores a message and relays it to the other participant. The thread's
// deadline is checked directly; a stored "open" status is not enough.
func (s *Service) PostMessage(ctx context.Context, actorID, threadID, body string) (*models.ChatMessage, error) {
	t, err := s.loadThread(ctx, actorID, threadID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !t.CanPost(now) {
		return nil, utils.Conflict(CodeThreadExpired, "this chat has ended")
	}
	body = strings.TrimSpace(body)
	if body == "" || utf8.RuneCountInString(body) > MaxMessageLength {
		return nil, utils.Validation(CodeInvalidMessage, fmt.Sprintf("message must be 1 to %d characters", MaxMessageLength))
	}

	m := &models.ChatMessage{
		ID:        uuid.NewString(),
		ThreadID:  t.ID,
		SenderID:  actorID,
		Body:      body,
		CreatedAt: now,
	}
	if err := s.Messages.Insert(ctx, m); err != nil {
		return nil, fmt.Errorf("post message: %w", err)
	}
	s.notify(ctx, t.Counterparty(actorID), notification.EventChatMessage, map[string]any{
		"threadId":  t.ID,
		"messageId": m.ID,
		"senderId":  actorID,
		"body":      m.Body,
		"createdAt": m.CreatedAt,
	})
	return m, nil
}

func (s *Service) ListMessages(ctx context.Context, actorID, threadID string, limit int64) ([]models.ChatMessage, error) {
	if _, err := s.loadThread(ctx, actorID, threadID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	return s.Messages.ListByThread(ctx, threadID, limit)
}

// ExpireOne closes a thread past its deadline and retries unfinished finalization.
func (s *Service) ExpireOne(ctx context.Context, t models.ChatThread) (bool, error) {
	now := s.now()
	changed := false
	if t.Status == models.ThreadOpen {
		if now.Before(t.ExpiresAt) {
			return false, nil
		}
		next := t
		next.Status = models.ThreadExpired
		next.ExpiredAt = &now
		won, err := s.Threads.Swap(ctx, &next, models.ThreadOpen)
		if err != nil || !won {
			return false, err
		}
		payload := map[string]any{"threadId": t.ID, "bookingId": t.BookingID}
		s.notify(ctx, t.ClientID, notification.EventChatExpired, payload)
		s.notify(ctx, t.ExpertUserID, notification.EventChatExpired, payload)
		t, changed = next, true
	}
	if t.Finalized {
		return changed, nil
	}

	if t.BookingID != "" && s.Bookings != nil {
		if err := s.Bookings.CompleteBooking(ctx, t.BookingID); err != nil {
			return changed, fmt.Errorf("complete booking %s: %w", t.BookingID, err)
		}
	}
	t.Finalized = true
	won, err := s.Threads.Swap(ctx, &t, models.ThreadExpired)
	if err != nil {
		return changed, fmt.Errorf("mark thread %s finalized: %w", t.ID, err)
	}
	return changed || won, nil
}

// InitiateCall rings the other participant of an open thread.
func (s *Service) InitiateCall(ctx context.Context, actorID, threadID string) (*models.ChatCall, error) {
	t, err := s.loadThread(ctx, actorID, threadID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !t.CanPost(now) {
		return nil, utils.Conflict(CodeThreadExpired, "this chat has ended")
	}

	if existing, err := s.Calls.FindActiveByThread(ctx, threadID); err == nil {
		if _, err := s.TimeoutOne(ctx, *existing); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("initiate call: %w", err)
	}

	c := &models.ChatCall{
		ID:          uuid.NewString(),
		ThreadID:    threadID,
		CallerID:    actorID,
		CalleeID:    t.Counterparty(actorID),
		Status:      models.CallCalling,
		InitiatedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Calls.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, utils.Conflict(CodeCallInProgress, "a call is already in progress in this chat")
		}
		return nil, fmt.Errorf("initiate call: %w", err)
	}
	s.notify(ctx, c.CalleeID, notification.EventCallIncoming, callPayload(c))
	return c, nil
}

func (s *Service) GetCall(ctx context.Context, actorID, id string) (*models.CallView, error) {
	c, err := s.loadCall(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	v := models.NewCallView(*c, s.now(), s.ring())
	return &v, nil
}

func (s *Service) AcceptCall(ctx context.Context, actorID, callID string) (*models.ChatCall, error) {
	c, err := s.loadCall(ctx, actorID, callID)
	if err != nil {
		return nil, err
	}
	next, err := AcceptCall(*c, actorID, s.ring(), s.now())
	if err != nil {
		if next.Status == models.CallTimeout && c.Status == models.CallCalling {
			s.persistTimeout(ctx, next)
		}
		return nil, err
	}
	if err := s.swapCall(ctx, &next, c.Status); err != nil {
		return nil, err
	}
	s.notify(ctx, next.CallerID, notification.EventCallAccepted, callPayload(&next))
	return &next, nil
}

func (s *Service) RejectCall(ctx context.Context, actorID, callID string) (*models.ChatCall, error) {
	c, err := s.loadCall(ctx, actorID, callID)
	if err != nil {
		return nil, err
	}
	next, err := RejectCall(*c, actorID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.swapCall(ctx, &next, c.Status); err != nil {
		return nil, err
	}
	s.notify(ctx, next.CallerID, notification.EventCallRejected, callPayload(&next))
	return &next, nil
}

func (s *Service) EndCall(ctx context.Context, actorID, callID string) (*models.ChatCall, error) {
	c, err := s.loadCall(ctx, actorID, callID)
	if err != nil {
		return nil, err
	}
	next, err := EndCall(*c, actorID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.swapCall(ctx, &next, c.Status); err != nil {
		return nil, err
	}
	event := notification.EventCallEnded
	if next.Status == models.CallRejected {
		event = notification.EventCallRejected
	}
	s.notify(ctx, next.Counterparty(actorID), event, callPayload(&next))
	return &next, nil
}

// RelaySignal forwards a negotiation message to the other participant while the call
// is still live.
func (s *Service) RelaySignal(ctx context.Context, actorID, callID string, sig Signal) error {
	if !validSignalType(sig.Type) {
		return utils.Validation("invalid_signal", "signal type must be offer, answer or ice-candidate")
	}
	c, err := s.loadCall(ctx, actorID, callID)
	if err != nil {
		return err
	}
	if c.EffectiveStatus(s.now(), s.ring()).Terminal() {
		return utils.Conflict(CodeInvalidTransition, "the call is over")
	}
	payload := callPayload(c)
	payload["signalType"] = sig.Type
	payload["data"] = sig.Data
	if err := s.Notifier.Notify(ctx, c.Counterparty(actorID), notification.EventCallSignal, payload); err != nil {
		return utils.Unavailable("relay_failed", "could not relay the signal", err)
	}
	return nil
}

// TimeoutOne marks a call that rang past its window as timed out.
func (s *Service) TimeoutOne(ctx context.Context, c models.ChatCall) (bool, error) {
	next, ok := TimeoutCall(c, s.ring(), s.now())
	if !ok {
		return false, nil
	}
	won, err := s.Calls.Swap(ctx, &next, models.CallCalling)
	if err != nil || !won {
		return false, err
	}
	s.notify(ctx, next.CallerID, notification.EventCallTimeout, callPayload(&next))
	s.notify(ctx, next.CalleeID, notification.EventCallTimeout, callPayload(&next))
	return true, nil
}

func (s *Service) persistTimeout(ctx context.Context, next models.ChatCall) {
	won, err := s.Calls.Swap(ctx, &next, models.CallCalling)
	if err != nil {
		s.Logger.Warn("could not record call timeout", zap.String("callID", next.ID), zap.Error(err))
		return
	}
	if won {
		s.notify(ctx, next.CallerID, notification.EventCallTimeout, callPayload(&next))
	}
}

func (s *Service) swapCall(ctx context.Context, next *models.ChatCall, expected models.CallStatus) error {
	ok, err := s.Calls.Swap(ctx, next, expected)
	if err != nil {
		return fmt.Errorf("update call %s: %w", next.ID, err)
	}
	if !ok {
		return utils.Conflict(CodeConcurrentUpdate, "the call changed in the meantime")
	}
	return nil
}

func callPayload(c *models.ChatCall) map[string]any {
	return map[string]any{
		"callId":   c.ID,
		"threadId": c.ThreadID,
		"callerId": c.CallerID,
		"calleeId": c.CalleeID,
		"status":   string(c.Status),
	}
}

func (s *Service) notify(ctx context.Context, userID, event string, payload map[string]any) {
	if s.Notifier == nil || userID == "" {
		return
	}
	if err := s.Notifier.Notify(ctx, userID, event, payload); err != nil {
		s.Logger.Warn("notify failed", zap.String("event", event), zap.String("userID", userID), zap.Error(err))
	}
}
