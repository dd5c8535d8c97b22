package availability

import (
	"time"

	"rivelya/models"
	"rivelya/utils"
)

// Rejection codes returned by CheckAvailability.
const (
	CodeInvalidRange = "invalid_range"
	CodeOutsideHours = "outside_working_hours"
	CodeBlocked      = "blocked"
	CodeSlotTaken    = "slot_taken"
)

// Candidate is a requested range on a calendar date.
type Candidate struct {
	Date  string
	Start int
	End   int
}

func (c Candidate) Interval() Interval {
	return Interval{Start: c.Start, End: c.End}
}

// dayBusy is what occupies a single date. CheckAvailability and ComputeMonthAvailability
// both derive their answers from it.
type dayBusy struct {
	fullDay  bool
	blocks   []Interval
	bookings []Interval
	entries  []models.BlockEntry
	booked   []models.BookedRange
}

func (d dayBusy) intervals() []Interval {
	if d.fullDay {
		return []Interval{{Start: 0, End: MinutesPerDay}}
	}
	out := make([]Interval, 0, len(d.blocks)+len(d.bookings))
	out = append(out, d.blocks...)
	return append(out, d.bookings...)
}

func busyOn(date string, blocks []models.BlockEntry, bookings []models.Booking) dayBusy {
	d := dayBusy{entries: []models.BlockEntry{}, booked: []models.BookedRange{}}
	for _, e := range blocks {
		if e.Date != date {
			continue
		}
		d.entries = append(d.entries, e)
		if e.FullDay {
			d.fullDay = true
			continue
		}
		iv, err := ParseRange(e.Start, e.End)
		if err != nil || !iv.Valid() {
			continue
		}
		d.blocks = append(d.blocks, iv)
	}
	for _, b := range bookings {
		if b.Date != date || !b.Status.Blocking() {
			continue
		}
		d.booked = append(d.booked, models.BookedRange{
			BookingID: b.ID,
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
			Status:    b.Status,
		})
		iv, err := ParseRange(b.StartTime, b.EndTime)
		if err != nil || !iv.Valid() {
			continue
		}
		d.bookings = append(d.bookings, iv)
	}
	return d
}

// CheckAvailability returns nil when the candidate can be booked, otherwise an AppError
// naming the first failed rule. Rules run in order: well-formed range, inside working
// hours, not blocked, no overlapping blocking booking.
func CheckAvailability(
	c Candidate,
	blocks []models.BlockEntry,
	bookings []models.Booking,
	template *models.WorkingHours,
	weekday time.Weekday,
) error {
	iv := c.Interval()
	if iv.Start%Granularity != 0 || iv.End%Granularity != 0 || !iv.Valid() {
		return utils.Validation(CodeInvalidRange, "time range must be aligned to 5 minutes with start before end within the day")
	}

	inside := false
	for _, open := range ResolveDay(template, weekday) {
		if open.Contains(iv) {
			inside = true
			break
		}
	}
	if !inside {
		return utils.Conflict(CodeOutsideHours, "requested time is outside the expert's working hours")
	}

	busy := busyOn(c.Date, blocks, bookings)
	if busy.fullDay || overlapsAny(iv, busy.blocks) {
		return utils.Conflict(CodeBlocked, "requested time is blocked by the expert")
	}
	if overlapsAny(iv, busy.bookings) {
		return utils.Conflict(CodeSlotTaken, "requested time overlaps an existing booking")
	}
	return nil
}

// IsAvailable is the boolean form of CheckAvailability.
func IsAvailable(
	c Candidate,
	blocks []models.BlockEntry,
	bookings []models.Booking,
	template *models.WorkingHours,
	weekday time.Weekday,
) bool {
	return CheckAvailability(c, blocks, bookings, template, weekday) == nil
}
