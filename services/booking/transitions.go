package booking

import (
	"fmt"
	"time"

	"rivelya/models"
	"rivelya/services/availability"
	"rivelya/utils"
)

// Transition functions are pure: they take a booking value and return the next value
// or a classified error. Persisting the result is the caller's job.

// Proposal is a requested new date and time.
type Proposal struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Reason    string `json:"reason,omitempty"`
}

// Schedule converts a local date and clock range into absolute instants.
func Schedule(date, start, end string, loc *time.Location) (time.Time, time.Time, int, error) {
	d, err := availability.ParseDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, 0, utils.Validation(CodeInvalidDate, "date must be formatted YYYY-MM-DD")
	}
	iv, err := availability.ParseRange(start, end)
	if err != nil || !iv.Valid() || iv.Start%availability.Granularity != 0 || iv.End%availability.Granularity != 0 {
		return time.Time{}, time.Time{}, 0, utils.Validation(availability.CodeInvalidRange,
			fmt.Sprintf("times must be HH:MM on a %d minute grid with end after start", availability.Granularity))
	}
	startAt := time.Date(d.Year(), d.Month(), d.Day(), 0, iv.Start, 0, 0, loc)
	endAt := time.Date(d.Year(), d.Month(), d.Day(), 0, iv.End, 0, 0, loc)
	return startAt.UTC(), endAt.UTC(), iv.End - iv.Start, nil
}

func needsRefund(b *models.Booking) bool {
	return b.AmountCents > 0 && b.PaymentRef != "" && b.RefundStatus == models.RefundNone
}

func markForRefund(b *models.Booking) {
	if needsRefund(b) {
		b.RefundStatus = models.RefundPending
	}
}

// Decide applies the expert's answer to a pending request.
func Decide(b models.Booking, actorID string, accept bool, now time.Time) (models.Booking, error) {
	if actorID != b.ExpertUserID {
		return b, utils.Forbidden(CodeNotParticipant, "only the expert can decide on a request")
	}
	if b.Status != models.BookingAwaitingMaster {
		return b, errNothingToDo(fmt.Sprintf("booking is already %s", b.Status))
	}
	if !now.Before(b.ScheduledStartAt) {
		return b, utils.Conflict(CodeStartPassed, "the requested start time has passed")
	}
	if accept {
		b.Status = models.BookingConfirmed
		return b, nil
	}
	b.Status = models.BookingRejected
	markForRefund(&b)
	return b, nil
}

// ProposeReschedule records a new pending proposal from either participant. The caller
// checks the proposed range against the expert's availability.
func ProposeReschedule(b models.Booking, actorID string, p Proposal, loc *time.Location, now time.Time) (models.Booking, error) {
	if !b.IsParticipant(actorID) {
		return b, errNotParticipant()
	}
	switch b.Status {
	case models.BookingConfirmed, models.BookingAwaitingMaster, models.BookingRescheduleRequested:
	default:
		return b, errInvalidTransition(fmt.Sprintf("a %s booking cannot be rescheduled", b.Status))
	}
	if !now.Before(b.ScheduledStartAt) {
		return b, utils.Conflict(CodeStartPassed, "the booking has already reached its start time")
	}

	startAt, _, minutes, err := Schedule(p.Date, p.StartTime, p.EndTime, loc)
	if err != nil {
		return b, err
	}
	if minutes != b.DurationMinutes {
		return b, utils.Validation(CodeDurationChanged, fmt.Sprintf("a reschedule must keep the %d minute duration", b.DurationMinutes))
	}
	if !now.Before(startAt) {
		return b, utils.Validation(CodeStartPassed, "the proposed start is in the past")
	}

	history := append([]models.RescheduleRequest(nil), b.RescheduleHistory...)
	if b.RescheduleRequest != nil && b.RescheduleRequest.Status == models.ProposalPending {
		old := *b.RescheduleRequest
		old.Status = models.ProposalSuperseded
		old.RespondedAt = &now
		history = append(history, old)
	}
	if b.Status != models.BookingRescheduleRequested {
		b.StatusBeforeReschedule = b.Status
	}

	b.RescheduleHistory = history
	b.RescheduleRequest = &models.RescheduleRequest{
		RequestedBy: actorID,
		Date:        p.Date,
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
		Reason:      p.Reason,
		StartAt:     startAt,
		Status:      models.ProposalPending,
		RequestedAt: now,
	}
	b.Status = models.BookingRescheduleRequested
	return b, nil
}

// RespondReschedule applies the counterparty's answer to the pending proposal.
func RespondReschedule(b models.Booking, actorID string, accept bool, loc *time.Location, now time.Time) (models.Booking, error) {
	if !b.IsParticipant(actorID) {
		return b, errNotParticipant()
	}
	req := b.RescheduleRequest
	if b.Status != models.BookingRescheduleRequested || req == nil || req.Status != models.ProposalPending {
		return b, errNothingToDo("there is no pending reschedule proposal")
	}
	if req.RequestedBy == actorID {
		return b, utils.Forbidden(CodeOwnRequest, "you cannot answer your own proposal")
	}

	resolved := *req
	resolved.RespondedAt = &now

	if accept {
		startAt, endAt, _, err := Schedule(req.Date, req.StartTime, req.EndTime, loc)
		if err != nil {
			return b, err
		}
		if !now.Before(startAt) {
			return b, utils.Conflict(CodeStartPassed, "the proposed start time has passed")
		}
		resolved.Status = models.ProposalAccepted
		b.Date = req.Date
		b.StartTime = req.StartTime
		b.EndTime = req.EndTime
		b.ScheduledStartAt = startAt
		b.ScheduledEndAt = endAt
		b.Status = models.BookingConfirmed
		b.ReminderSentAt = nil
	} else {
		resolved.Status = models.ProposalRejected
		b.Status = b.StatusBeforeReschedule
		if b.Status == "" {
			b.Status = models.BookingConfirmed
		}
	}

	b.RescheduleHistory = append(append([]models.RescheduleRequest(nil), b.RescheduleHistory...), resolved)
	b.RescheduleRequest = nil
	b.StatusBeforeReschedule = ""
	b.StartNowRequest = nil
	return b, nil
}

func canStartEarly(s models.BookingStatus) bool {
	return s == models.BookingConfirmed || s == models.BookingReadyToStart
}

// RequestStartNow asks the counterparty to begin immediately.
func RequestStartNow(b models.Booking, actorID string, now time.Time) (models.Booking, error) {
	if !b.IsParticipant(actorID) {
		return b, errNotParticipant()
	}
	if !canStartEarly(b.Status) {
		return b, errInvalidTransition(fmt.Sprintf("a %s booking cannot be started", b.Status))
	}
	if b.StartNowRequest != nil && b.StartNowRequest.RequestedBy == actorID {
		return b, errNothingToDo("you already asked to start now")
	}
	b.StartNowRequest = &models.StartNowRequest{RequestedBy: actorID, RequestedAt: now}
	return b, nil
}

// RespondStartNow accepts (and starts) or declines a start-now request.
func RespondStartNow(b models.Booking, actorID string, accept bool, now time.Time) (models.Booking, error) {
	if !b.IsParticipant(actorID) {
		return b, errNotParticipant()
	}
	if b.StartNowRequest == nil || !canStartEarly(b.Status) {
		return b, errNothingToDo("there is no pending start-now request")
	}
	if b.StartNowRequest.RequestedBy == actorID {
		return b, utils.Forbidden(CodeOwnRequest, "you cannot answer your own request")
	}
	if !accept {
		b.StartNowRequest = nil
		return b, nil
	}
	return activate(b, now, false), nil
}

// Cancel ends a booking before it starts.
func Cancel(b models.Booking, actorID, reason string, now time.Time) (models.Booking, error) {
	if !b.IsParticipant(actorID) {
		return b, errNotParticipant()
	}
	if b.Status.Terminal() {
		return b, errNothingToDo(fmt.Sprintf("booking is already %s", b.Status))
	}
	if b.Status == models.BookingActive {
		return b, errInvalidTransition("an active booking cannot be cancelled")
	}
	if !now.Before(b.ScheduledStartAt) {
		return b, utils.Conflict(CodeStartPassed, "the booking has already reached its start time")
	}
	b.Status = models.BookingCancelled
	b.CancelReason = reason
	b.RescheduleRequest = nil
	b.StartNowRequest = nil
	markForRefund(&b)
	return b, nil
}

// StartManually lets a participant open the session once it is within lead of its start.
func StartManually(b models.Booking, actorID string, lead time.Duration, now time.Time) (models.Booking, error) {
	if !b.IsParticipant(actorID) {
		return b, errNotParticipant()
	}
	if b.Status == models.BookingActive {
		return b, errNothingToDo("booking is already active")
	}
	if !canStartEarly(b.Status) {
		return b, errInvalidTransition(fmt.Sprintf("a %s booking cannot be started", b.Status))
	}
	if now.Before(b.ScheduledStartAt.Add(-lead)) {
		return b, utils.Conflict(CodeTooEarly, "the session cannot be started this early; ask to start now instead")
	}
	return activate(b, now, false), nil
}

// Prepare moves a confirmed booking whose start is within lead to ready_to_start.
func Prepare(b models.Booking, lead time.Duration, now time.Time) (models.Booking, bool) {
	if b.Status != models.BookingConfirmed || b.ScheduledStartAt.After(now.Add(lead)) {
		return b, false
	}
	b.Status = models.BookingReadyToStart
	b.ReminderSentAt = &now
	return b, true
}

// AutoStart activates a due ready_to_start booking that was never auto-started.
func AutoStart(b models.Booking, now time.Time) (models.Booking, bool) {
	if b.Status != models.BookingReadyToStart || b.AutoStarted || now.Before(b.ScheduledStartAt) {
		return b, false
	}
	return activate(b, now, true), true
}

// Complete closes an active booking.
func Complete(b models.Booking, now time.Time) (models.Booking, bool) {
	if b.Status != models.BookingActive {
		return b, false
	}
	b.Status = models.BookingCompleted
	b.CompletedAt = &now
	return b, true
}

// ExpireStale cancels a request the expert never answered before its start, and
// a reschedule proposal left unanswered until both starts passed.
func ExpireStale(b models.Booking, now time.Time) (models.Booking, bool) {
	switch {
	case b.Status == models.BookingAwaitingMaster && !now.Before(b.ScheduledStartAt):
		b.CancelReason = CancelReasonNoResponse
	case b.RescheduleLapsed(now):
		if b.RescheduleRequest != nil {
			lapsed := *b.RescheduleRequest
			lapsed.Status = models.ProposalSuperseded
			lapsed.RespondedAt = &now
			b.RescheduleHistory = append(append([]models.RescheduleRequest(nil), b.RescheduleHistory...), lapsed)
		}
		b.RescheduleRequest = nil
		b.StatusBeforeReschedule = ""
		b.CancelReason = CancelReasonRescheduleUnanswered
	default:
		return b, false
	}
	b.Status = models.BookingCancelled
	markForRefund(&b)
	return b, true
}

func activate(b models.Booking, now time.Time, auto bool) models.Booking {
	start := now
	end := now.Add(time.Duration(b.DurationMinutes) * time.Minute)

	b.OriginalSchedule = &models.ScheduleSnapshot{
		Date:      b.Date,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		StartAt:   b.ScheduledStartAt,
		EndAt:     b.ScheduledEndAt,
	}
	b.Status = models.BookingActive
	b.AutoStarted = auto
	b.ActualStartAt = &start
	b.ActualEndAt = &end
	b.StartNowRequest = nil
	b.Provisioned = false
	return b
}
