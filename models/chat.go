package models

import "time"

type ThreadStatus string

const (
	ThreadOpen    ThreadStatus = "open"
	ThreadExpired ThreadStatus = "expired"
)

// ChatThread is the time-boxed text channel of a chat booking.
type ChatThread struct {
	ID             string       `bson:"id" json:"id"`
	BookingID      string       `bson:"bookingId" json:"bookingId"`
	ClientID       string       `bson:"clientId" json:"clientId"`
	ExpertUserID   string       `bson:"expertUserId" json:"expertUserId"`
	Status         ThreadStatus `bson:"status" json:"status"`
	AllowedSeconds int64        `bson:"allowedSeconds" json:"allowedSeconds"`
	StartedAt      time.Time    `bson:"startedAt" json:"startedAt"`
	ExpiresAt      time.Time    `bson:"expiresAt" json:"expiresAt"`
	ExpiredAt      *time.Time   `bson:"expiredAt,omitempty" json:"expiredAt,omitempty"`
	Finalized      bool         `bson:"finalized" json:"finalized"`

	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (t *ChatThread) IsParticipant(userID string) bool {
	return userID != "" && (userID == t.ClientID || userID == t.ExpertUserID)
}

func (t *ChatThread) Counterparty(userID string) string {
	switch userID {
	case t.ClientID:
		return t.ExpertUserID
	case t.ExpertUserID:
		return t.ClientID
	}
	return ""
}

// CanPost trusts the deadline, not the stored status.
func (t *ChatThread) CanPost(now time.Time) bool {
	return t.Status == ThreadOpen && now.Before(t.ExpiresAt)
}

func (t *ChatThread) EffectiveStatus(now time.Time) ThreadStatus {
	if t.CanPost(now) {
		return ThreadOpen
	}
	return ThreadExpired
}

func (t *ChatThread) RemainingSeconds(now time.Time) int64 {
	if t.Status != ThreadOpen {
		return 0
	}
	return remaining(t.ExpiresAt, now)
}

type ChatMessage struct {
	ID        string    `bson:"id" json:"id"`
	ThreadID  string    `bson:"threadId" json:"threadId"`
	SenderID  string    `bson:"senderId" json:"senderId"`
	Body      string    `bson:"body" json:"body"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

type CallStatus string

const (
	CallCalling  CallStatus = "calling"
	CallAccepted CallStatus = "accepted"
	CallRejected CallStatus = "rejected"
	CallTimeout  CallStatus = "timeout"
	CallEnded    CallStatus = "ended"
)

func (s CallStatus) Terminal() bool {
	return s == CallRejected || s == CallTimeout || s == CallEnded
}

// ChatCall is a voice call placed inside a chat thread.
// Active is true while the call is non-terminal and backs the one-call-per-thread index.
type ChatCall struct {
	ID              string     `bson:"id" json:"id"`
	ThreadID        string     `bson:"threadId" json:"threadId"`
	CallerID        string     `bson:"callerId" json:"callerId"`
	CalleeID        string     `bson:"calleeId" json:"calleeId"`
	Status          CallStatus `bson:"status" json:"status"`
	Active          bool       `bson:"active,omitempty" json:"-"`
	InitiatedAt     time.Time  `bson:"initiatedAt" json:"initiatedAt"`
	StartedAt       *time.Time `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	EndedAt         *time.Time `bson:"endedAt,omitempty" json:"endedAt,omitempty"`
	DurationSeconds int64      `bson:"durationSeconds" json:"durationSeconds"`
	EndedBy         string     `bson:"endedBy,omitempty" json:"endedBy,omitempty"`

	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (c *ChatCall) IsParticipant(userID string) bool {
	return userID != "" && (userID == c.CallerID || userID == c.CalleeID)
}

func (c *ChatCall) Counterparty(userID string) string {
	switch userID {
	case c.CallerID:
		return c.CalleeID
	case c.CalleeID:
		return c.CallerID
	}
	return ""
}

// EffectiveStatus reports an unanswered call as timed out once ringTimeout has elapsed.
func (c *ChatCall) EffectiveStatus(now time.Time, ringTimeout time.Duration) CallStatus {
	if c.Status == CallCalling && !now.Before(c.InitiatedAt.Add(ringTimeout)) {
		return CallTimeout
	}
	return c.Status
}
