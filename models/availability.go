package models

import "time"

// WorkingInterval is one recurring open window of an expert's week.
// Start and End are local wall-clock times in "HH:MM"; End may be "24:00".
type WorkingInterval struct {
	Weekday time.Weekday `bson:"weekday" json:"weekday"`
	Start   string       `bson:"start" json:"start"`
	End     string       `bson:"end" json:"end"`
}

// WorkingHours is the weekly template of an expert. One document per expert.
type WorkingHours struct {
	ExpertID  string            `bson:"expertId" json:"expertId"`
	Timezone  string            `bson:"timezone" json:"timezone"`
	Intervals []WorkingInterval `bson:"intervals" json:"intervals"`
	UpdatedAt time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// BlockEntry closes a date entirely (FullDay) or a partial range of it.
type BlockEntry struct {
	Date    string `bson:"date" json:"date"` // "YYYY-MM-DD"
	FullDay bool   `bson:"fullDay" json:"fullDay"`
	Start   string `bson:"start,omitempty" json:"start,omitempty"`
	End     string `bson:"end,omitempty" json:"end,omitempty"`
	Reason  string `bson:"reason,omitempty" json:"reason,omitempty"`
}

// AvailabilityBlock holds the date-specific overrides of one expert for one month.
type AvailabilityBlock struct {
	ID        string       `bson:"id" json:"id"`
	ExpertID  string       `bson:"expertId" json:"expertId"`
	Year      int          `bson:"year" json:"year"`
	Month     int          `bson:"month" json:"month"`
	Entries   []BlockEntry `bson:"entries" json:"entries"`
	UpdatedAt time.Time    `bson:"updatedAt" json:"updatedAt"`
}

// TimeRange is a half-open [Start, End) range in minutes from local midnight.
type TimeRange struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label,omitempty"` // e.g. "09:00-10:30"
}

// BookedRange is the calendar footprint of a booking, without payment or party details.
type BookedRange struct {
	BookingID string        `json:"bookingId"`
	StartTime string        `json:"startTime"`
	EndTime   string        `json:"endTime"`
	Status    BookingStatus `json:"status"`
}

// DayAvailability is one day of the month calendar view.
type DayAvailability struct {
	Date            string        `json:"date"`
	Weekday         string        `json:"weekday"`
	AvailableRanges []TimeRange   `json:"availableRanges"`
	FullDayBlocked  bool          `json:"fullDayBlocked"`
	Blocks          []BlockEntry  `json:"blocks"`
	Bookings        []BookedRange `json:"bookings"`
}

// ExpertDay guards concurrent reservations of the same expert calendar day.
type ExpertDay struct {
	ExpertID  string    `bson:"expertId" json:"expertId"`
	Date      string    `bson:"date" json:"date"`
	Version   int64     `bson:"version" json:"version"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
