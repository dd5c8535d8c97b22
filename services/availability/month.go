package availability

import (
	"time"

	"rivelya/models"
)

// ComputeMonthAvailability builds the calendar view of every day of the month.
func ComputeMonthAvailability(
	year int,
	month time.Month,
	blocks []models.BlockEntry,
	bookings []models.Booking,
	template *models.WorkingHours,
) []models.DayAvailability {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := make([]models.DayAvailability, 0, 31)

	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		date := d.Format(DateLayout)
		busy := busyOn(date, blocks, bookings)

		free := []Interval{}
		if !busy.fullDay {
			free = GenerateFreeRanges(ResolveDay(template, d.Weekday()), busy.intervals())
		}

		days = append(days, models.DayAvailability{
			Date:            date,
			Weekday:         d.Weekday().String(),
			AvailableRanges: ToTimeRanges(free),
			FullDayBlocked:  busy.fullDay,
			Blocks:          busy.entries,
			Bookings:        busy.booked,
		})
	}
	return days
}

// WeekdayOf returns the weekday of a "YYYY-MM-DD" date.
func WeekdayOf(date string) (time.Weekday, error) {
	d, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	return d.Weekday(), nil
}
