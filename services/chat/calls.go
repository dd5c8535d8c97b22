package chat

import (
	"fmt"
	"time"

	"rivelya/models"
	"rivelya/utils"
)

// Signal is an opaque WebRTC negotiation message relayed between call participants.
type Signal struct {
	Type string         `json:"type" binding:"required,oneof=offer answer ice-candidate"`
	Data map[string]any `json:"data"`
}

func validSignalType(t string) bool {
	return t == "offer" || t == "answer" || t == "ice-candidate"
}

// AcceptCall answers a ringing call. Past the ring window the call is returned as
// timed out together with a conflict, so the caller can persist the timeout.
func AcceptCall(c models.ChatCall, actorID string, ringTimeout time.Duration, now time.Time) (models.ChatCall, error) {
	if actorID != c.CalleeID {
		return c, utils.Forbidden(CodeNotParticipant, "only the callee can accept")
	}
	if c.Status != models.CallCalling {
		return c, utils.Noop(CodeNothingToDo, fmt.Sprintf("call is already %s", c.Status))
	}
	if !now.Before(c.InitiatedAt.Add(ringTimeout)) {
		timedOut, _ := TimeoutCall(c, ringTimeout, now)
		return timedOut, utils.Conflict(CodeCallTimedOut, "the call is no longer ringing")
	}
	c.Status = models.CallAccepted
	c.StartedAt = &now
	return c, nil
}

func RejectCall(c models.ChatCall, actorID string, now time.Time) (models.ChatCall, error) {
	if actorID != c.CalleeID {
		return c, utils.Forbidden(CodeNotParticipant, "only the callee can reject")
	}
	if c.Status != models.CallCalling {
		return c, utils.Noop(CodeNothingToDo, fmt.Sprintf("call is already %s", c.Status))
	}
	c.Status = models.CallRejected
	c.EndedAt = &now
	c.EndedBy = actorID
	return c, nil
}

// EndCall hangs up. A caller hanging up before an answer cancels the call as rejected.
func EndCall(c models.ChatCall, actorID string, now time.Time) (models.ChatCall, error) {
	if !c.IsParticipant(actorID) {
		return c, utils.Forbidden(CodeNotParticipant, "you are not on this call")
	}
	switch {
	case c.Status == models.CallAccepted:
		c.Status = models.CallEnded
		if c.StartedAt != nil {
			if d := int64(now.Sub(*c.StartedAt) / time.Second); d > 0 {
				c.DurationSeconds = d
			}
		}
	case c.Status == models.CallCalling && actorID == c.CallerID:
		c.Status = models.CallRejected
	case c.Status.Terminal():
		return c, utils.Noop(CodeNothingToDo, fmt.Sprintf("call is already %s", c.Status))
	default:
		return c, utils.Conflict(CodeInvalidTransition, "a ringing call is rejected, not ended, by the callee")
	}
	c.EndedAt = &now
	c.EndedBy = actorID
	return c, nil
}

// TimeoutCall marks an unanswered call whose ring window elapsed.
func TimeoutCall(c models.ChatCall, ringTimeout time.Duration, now time.Time) (models.ChatCall, bool) {
	if c.Status != models.CallCalling || now.Before(c.InitiatedAt.Add(ringTimeout)) {
		return c, false
	}
	c.Status = models.CallTimeout
	c.EndedAt = &now
	return c, true
}
