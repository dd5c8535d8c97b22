package models

import "time"

type BookingStatus string

const (
	BookingAwaitingMaster      BookingStatus = "awaiting_master"
	BookingConfirmed           BookingStatus = "confirmed"
	BookingReadyToStart        BookingStatus = "ready_to_start"
	BookingActive              BookingStatus = "active"
	BookingRejected            BookingStatus = "rejected"
	BookingCancelled           BookingStatus = "cancelled"
	BookingCompleted           BookingStatus = "completed"
	BookingRescheduleRequested BookingStatus = "reschedule_requested"
)

// BlockingBookingStatuses are the states that occupy an expert's calendar.
var BlockingBookingStatuses = []BookingStatus{
	BookingAwaitingMaster,
	BookingConfirmed,
	BookingReadyToStart,
	BookingActive,
	BookingRescheduleRequested,
}

// Blocking reports whether a booking in this state holds its time range.
func (s BookingStatus) Blocking() bool {
	for _, b := range BlockingBookingStatuses {
		if s == b {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s BookingStatus) Terminal() bool {
	return s == BookingRejected || s == BookingCancelled || s == BookingCompleted
}

type Channel string

const (
	ChannelChat  Channel = "chat"
	ChannelVoice Channel = "voice"
)

func (c Channel) Valid() bool {
	return c == ChannelChat || c == ChannelVoice
}

type RefundStatus string

const (
	RefundNone     RefundStatus = ""
	RefundPending  RefundStatus = "pending"
	RefundRefunded RefundStatus = "refunded"
	RefundFailed   RefundStatus = "failed"
)

type ProposalStatus string

const (
	ProposalPending    ProposalStatus = "pending"
	ProposalAccepted   ProposalStatus = "accepted"
	ProposalRejected   ProposalStatus = "rejected"
	ProposalSuperseded ProposalStatus = "superseded"
)

// RescheduleRequest is a proposal to move a booking to another date/time.
type RescheduleRequest struct {
	RequestedBy string         `bson:"requestedBy" json:"requestedBy"`
	Date        string         `bson:"date" json:"date"`
	StartTime   string         `bson:"startTime" json:"startTime"`
	EndTime     string         `bson:"endTime" json:"endTime"`
	Reason      string         `bson:"reason,omitempty" json:"reason,omitempty"`
	StartAt     time.Time      `bson:"startAt" json:"startAt"`
	Status      ProposalStatus `bson:"status" json:"status"`
	RequestedAt time.Time      `bson:"requestedAt" json:"requestedAt"`
	RespondedAt *time.Time     `bson:"respondedAt,omitempty" json:"respondedAt,omitempty"`
}

// StartNowRequest asks the counterparty to begin before the scheduled time.
type StartNowRequest struct {
	RequestedBy string    `bson:"requestedBy" json:"requestedBy"`
	RequestedAt time.Time `bson:"requestedAt" json:"requestedAt"`
}

// ScheduleSnapshot records the planned schedule at the moment a booking was started.
type ScheduleSnapshot struct {
	Date      string    `bson:"date" json:"date"`
	StartTime string    `bson:"startTime" json:"startTime"`
	EndTime   string    `bson:"endTime" json:"endTime"`
	StartAt   time.Time `bson:"startAt" json:"startAt"`
	EndAt     time.Time `bson:"endAt" json:"endAt"`
}

// Booking is a scheduled consultation between a client and an expert.
// Session and thread are referenced by id only.
type Booking struct {
	ID                  string  `bson:"id" json:"id"`
	ClientID            string  `bson:"clientId" json:"clientId"`
	ExpertID            string  `bson:"expertId" json:"expertId"`
	ExpertUserID        string  `bson:"expertUserId" json:"expertUserId"`
	Channel             Channel `bson:"channel" json:"channel"`
	Date                string  `bson:"date" json:"date"`           // "YYYY-MM-DD", expert local
	StartTime           string  `bson:"startTime" json:"startTime"` // "HH:MM"
	EndTime             string  `bson:"endTime" json:"endTime"`
	Timezone            string  `bson:"timezone" json:"timezone"`
	DurationMinutes     int     `bson:"durationMinutes" json:"durationMinutes"`
	PricePerMinuteCents int64   `bson:"pricePerMinuteCents" json:"pricePerMinuteCents"`
	AmountCents         int64   `bson:"amountCents" json:"amountCents"`
	Currency            string  `bson:"currency" json:"currency"`

	PaymentRef   string       `bson:"paymentRef,omitempty" json:"paymentRef,omitempty"`
	RefundStatus RefundStatus `bson:"refundStatus,omitempty" json:"refundStatus,omitempty"`
	RefundRef    string       `bson:"refundRef,omitempty" json:"refundRef,omitempty"`

	Status                 BookingStatus       `bson:"status" json:"status"`
	StatusBeforeReschedule BookingStatus       `bson:"statusBeforeReschedule,omitempty" json:"statusBeforeReschedule,omitempty"`
	RescheduleRequest      *RescheduleRequest  `bson:"rescheduleRequest,omitempty" json:"rescheduleRequest,omitempty"`
	RescheduleHistory      []RescheduleRequest `bson:"rescheduleHistory" json:"rescheduleHistory"`
	StartNowRequest        *StartNowRequest    `bson:"startNowRequest,omitempty" json:"startNowRequest,omitempty"`
	CancelReason           string              `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`

	ScheduledStartAt time.Time         `bson:"scheduledStartAt" json:"scheduledStartAt"`
	ScheduledEndAt   time.Time         `bson:"scheduledEndAt" json:"scheduledEndAt"`
	AutoStarted      bool              `bson:"autoStarted" json:"autoStarted"`
	OriginalSchedule *ScheduleSnapshot `bson:"originalSchedule,omitempty" json:"originalSchedule,omitempty"`
	ActualStartAt    *time.Time        `bson:"actualStartAt,omitempty" json:"actualStartAt,omitempty"`
	ActualEndAt      *time.Time        `bson:"actualEndAt,omitempty" json:"actualEndAt,omitempty"`
	CompletedAt      *time.Time        `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	ReminderSentAt   *time.Time        `bson:"reminderSentAt,omitempty" json:"reminderSentAt,omitempty"`

	SessionID   string `bson:"sessionId,omitempty" json:"sessionId,omitempty"`
	ThreadID    string `bson:"threadId,omitempty" json:"threadId,omitempty"`
	Provisioned bool   `bson:"provisioned" json:"-"` // session/thread exist for an active booking

	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// IsParticipant reports whether userID is the client or the expert of the booking.
func (b *Booking) IsParticipant(userID string) bool {
	return userID != "" && (userID == b.ClientID || userID == b.ExpertUserID)
}

// Counterparty returns the other participant, or "" if userID is not one.
func (b *Booking) Counterparty(userID string) string {
	switch userID {
	case b.ClientID:
		return b.ExpertUserID
	case b.ExpertUserID:
		return b.ClientID
	}
	return ""
}

// EffectiveStatus accounts for deadlines the reconciliation pass has not applied yet.
func (b *Booking) EffectiveStatus(now time.Time) BookingStatus {
	switch b.Status {
	case BookingActive:
		if b.ActualEndAt != nil && !now.Before(*b.ActualEndAt) {
			return BookingCompleted
		}
	case BookingAwaitingMaster:
		if !b.ScheduledStartAt.IsZero() && !now.Before(b.ScheduledStartAt) {
			return BookingCancelled
		}
	case BookingRescheduleRequested:
		if b.RescheduleLapsed(now) {
			return BookingCancelled
		}
	}
	return b.Status
}

// RescheduleLapsed reports whether both the current start and the pending
// proposal's start have passed, leaving nothing either side can still accept.
func (b *Booking) RescheduleLapsed(now time.Time) bool {
	if b.Status != BookingRescheduleRequested || b.ScheduledStartAt.IsZero() || now.Before(b.ScheduledStartAt) {
		return false
	}
	return b.RescheduleRequest == nil || !now.Before(b.RescheduleRequest.StartAt)
}

// RemainingSeconds is the time left of an active booking; zero otherwise.
func (b *Booking) RemainingSeconds(now time.Time) int64 {
	if b.Status != BookingActive || b.ActualEndAt == nil {
		return 0
	}
	return remaining(*b.ActualEndAt, now)
}

// SecondsUntilStart is the time until the scheduled start; zero once it has passed.
func (b *Booking) SecondsUntilStart(now time.Time) int64 {
	return remaining(b.ScheduledStartAt, now)
}

func remaining(deadline, now time.Time) int64 {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}
