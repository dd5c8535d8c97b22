package session

import (
	"fmt"
	"time"

	"rivelya/models"
	"rivelya/utils"
)

const (
	CodeNothingToDo       = "nothing_to_do"
	CodeInvalidTransition = "invalid_transition"
	CodeNotParticipant    = "not_participant"
	CodeSessionNotFound   = "session_not_found"
	CodeConcurrentUpdate  = "concurrent_update"

	EndReasonManual   = "ended_by_participant"
	EndReasonDeadline = "time_elapsed"
	EndReasonNoStart  = "never_started"
)

// StartSession opens a created session and sets its deadline.
func StartSession(s models.Session, actorID string, now time.Time) (models.Session, error) {
	if !s.IsParticipant(actorID) {
		return s, utils.Forbidden(CodeNotParticipant, "you are not a participant of this session")
	}
	switch s.Status {
	case models.SessionActive:
		return s, utils.Noop(CodeNothingToDo, "session is already active")
	case models.SessionCreated:
	default:
		return s, utils.Conflict(CodeInvalidTransition, fmt.Sprintf("a %s session cannot be started", s.Status))
	}
	if s.EndTS != nil && !now.Before(*s.EndTS) {
		return s, utils.Conflict(CodeInvalidTransition, "the session was not started in time")
	}
	start := now
	end := now.Add(time.Duration(s.PlannedSeconds) * time.Second)
	s.Status = models.SessionActive
	s.StartTS = &start
	s.EndTS = &end
	return s, nil
}

// EndSession closes an active session and bills it, or fails one that never started.
func EndSession(s models.Session, reason string, now time.Time) (models.Session, bool) {
	switch s.Status {
	case models.SessionActive:
		start := now
		if s.StartTS != nil {
			start = *s.StartTS
		}
		bill := ComputeBill(start, now, s.PricePerMinuteCents)
		s.Status = models.SessionEnded
		s.DurationSeconds = bill.DurationSeconds
		s.BilledMinutes = bill.BilledMinutes
		s.CostCents = bill.CostCents
	case models.SessionCreated:
		s.Status = models.SessionFailed
		if reason == EndReasonDeadline {
			reason = EndReasonNoStart
		}
	default:
		return s, false
	}
	s.EndedAt = &now
	s.EndReason = reason
	return s, true
}

// Due reports whether the deadline of an open session has passed.
func Due(s models.Session, now time.Time) bool {
	return !s.Status.Terminal() && s.EndTS != nil && !now.Before(*s.EndTS)
}
