package models

import "time"

// Views carry the derived, time-dependent fields returned by read paths.

type SessionView struct {
	Session
	EffectiveStatus  SessionStatus `json:"effectiveStatus"`
	RemainingSeconds int64         `json:"remainingSeconds"`
}

func NewSessionView(s Session, now time.Time) SessionView {
	return SessionView{
		Session:          s,
		EffectiveStatus:  s.EffectiveStatus(now),
		RemainingSeconds: s.RemainingSeconds(now),
	}
}

type ThreadView struct {
	ChatThread
	EffectiveStatus  ThreadStatus `json:"effectiveStatus"`
	RemainingSeconds int64        `json:"remainingSeconds"`
	CanPost          bool         `json:"canPost"`
}

func NewThreadView(t ChatThread, now time.Time) ThreadView {
	return ThreadView{
		ChatThread:       t,
		EffectiveStatus:  t.EffectiveStatus(now),
		RemainingSeconds: t.RemainingSeconds(now),
		CanPost:          t.CanPost(now),
	}
}

type CallView struct {
	ChatCall
	EffectiveStatus CallStatus `json:"effectiveStatus"`
}

func NewCallView(c ChatCall, now time.Time, ringTimeout time.Duration) CallView {
	return CallView{ChatCall: c, EffectiveStatus: c.EffectiveStatus(now, ringTimeout)}
}

type ExpertSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Timezone    string `json:"timezone"`
}

// BookingDetails is a booking resolved together with the entities it references.
type BookingDetails struct {
	Booking
	EffectiveStatus   BookingStatus  `json:"effectiveStatus"`
	RemainingSeconds  int64          `json:"remainingSeconds"`
	SecondsUntilStart int64          `json:"secondsUntilStart"`
	Expert            *ExpertSummary `json:"expert,omitempty"`
	Session           *SessionView   `json:"session,omitempty"`
	Thread            *ThreadView    `json:"thread,omitempty"`
}
