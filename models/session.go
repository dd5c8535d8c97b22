package models

import "time"

type SessionStatus string

const (
	SessionCreated SessionStatus = "created"
	SessionActive  SessionStatus = "active"
	SessionEnded   SessionStatus = "ended"
	SessionFailed  SessionStatus = "failed"
)

func (s SessionStatus) Terminal() bool {
	return s == SessionEnded || s == SessionFailed
}

// Session is a live, billed consultation. BookingID is empty for instant sessions.
type Session struct {
	ID                  string        `bson:"id" json:"id"`
	BookingID           string        `bson:"bookingId,omitempty" json:"bookingId,omitempty"`
	ClientID            string        `bson:"clientId" json:"clientId"`
	ExpertID            string        `bson:"expertId" json:"expertId"`
	ExpertUserID        string        `bson:"expertUserId" json:"expertUserId"`
	Channel             Channel       `bson:"channel" json:"channel"`
	Status              SessionStatus `bson:"status" json:"status"`
	PricePerMinuteCents int64         `bson:"pricePerMinuteCents" json:"pricePerMinuteCents"`
	Currency            string        `bson:"currency" json:"currency"`
	PlannedSeconds      int64         `bson:"plannedSeconds" json:"plannedSeconds"`

	StartTS         *time.Time `bson:"startTs,omitempty" json:"startTs,omitempty"`
	EndTS           *time.Time `bson:"endTs,omitempty" json:"endTs,omitempty"` // deadline
	EndedAt         *time.Time `bson:"endedAt,omitempty" json:"endedAt,omitempty"`
	DurationSeconds int64      `bson:"durationSeconds" json:"durationSeconds"`
	BilledMinutes   int64      `bson:"billedMinutes" json:"billedMinutes"`
	CostCents       int64      `bson:"costCents" json:"costCents"`
	EndReason       string     `bson:"endReason,omitempty" json:"endReason,omitempty"`
	Finalized       bool       `bson:"finalized" json:"finalized"`

	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (s *Session) IsParticipant(userID string) bool {
	return userID != "" && (userID == s.ClientID || userID == s.ExpertUserID)
}

func (s *Session) EffectiveStatus(now time.Time) SessionStatus {
	if s.EndTS != nil && !now.Before(*s.EndTS) {
		switch s.Status {
		case SessionActive:
			return SessionEnded
		case SessionCreated:
			return SessionFailed
		}
	}
	return s.Status
}

func (s *Session) RemainingSeconds(now time.Time) int64 {
	if s.Status != SessionActive || s.EndTS == nil {
		return 0
	}
	return remaining(*s.EndTS, now)
}

// Earning is the one-time settlement credited to an expert for an ended session.
type Earning struct {
	ID              string    `bson:"id" json:"id"`
	ExpertID        string    `bson:"expertId" json:"expertId"`
	SessionID       string    `bson:"sessionId" json:"sessionId"`
	BookingID       string    `bson:"bookingId,omitempty" json:"bookingId,omitempty"`
	GrossCents      int64     `bson:"grossCents" json:"grossCents"`
	CommissionCents int64     `bson:"commissionCents" json:"commissionCents"`
	NetCents        int64     `bson:"netCents" json:"netCents"`
	Currency        string    `bson:"currency" json:"currency"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
}
