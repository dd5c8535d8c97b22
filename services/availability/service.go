package availability

import (
	"context"
	"fmt"
	"time"

	availabilityRepo "rivelya/database/repository/availability"
	"rivelya/models"
	"rivelya/utils"

	"go.uber.org/zap"
)

// templateHorizon is how many months ahead a template change invalidates.
const templateHorizon = 12

// BookingReader is the slice of the booking repository availability needs.
type BookingReader interface {
	ListBlockingByExpertDate(ctx context.Context, expertID, date string) ([]models.Booking, error)
	ListBlockingByExpertMonth(ctx context.Context, expertID string, year int, month time.Month) ([]models.Booking, error)
}

// Service answers availability questions from stored templates, blocks and bookings.
type Service struct {
	Repo     availabilityRepo.AvailabilityRepository
	Bookings BookingReader
	Cache    MonthCache
	Logger   *zap.Logger
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) cache() MonthCache {
	if s.Cache == nil {
		return NoopMonthCache{}
	}
	return s.Cache
}

// ParseCandidate validates the textual form of a requested range.
func ParseCandidate(date, start, end string) (Candidate, time.Weekday, error) {
	weekday, err := WeekdayOf(date)
	if err != nil {
		return Candidate{}, 0, utils.Validation("invalid_date", "date must be formatted YYYY-MM-DD")
	}
	iv, err := ParseRange(start, end)
	if err != nil {
		return Candidate{}, 0, utils.Validation(CodeInvalidRange, "times must be formatted HH:MM")
	}
	return Candidate{Date: date, Start: iv.Start, End: iv.End}, weekday, nil
}

// Check runs CheckAvailability against stored data. excludeBookingID lets a booking
// being rescheduled ignore its own footprint.
func (s *Service) Check(ctx context.Context, expertID, date, start, end, excludeBookingID string) error {
	c, weekday, err := ParseCandidate(date, start, end)
	if err != nil {
		return err
	}
	d, _ := ParseDate(date)

	template, err := s.Repo.GetWorkingHours(ctx, expertID)
	if err != nil {
		return fmt.Errorf("check availability: %w", err)
	}
	blocks, err := s.Repo.GetBlocks(ctx, expertID, d.Year(), d.Month())
	if err != nil {
		return fmt.Errorf("check availability: %w", err)
	}
	bookings, err := s.Bookings.ListBlockingByExpertDate(ctx, expertID, date)
	if err != nil {
		return fmt.Errorf("check availability: %w", err)
	}
	if excludeBookingID != "" {
		bookings = withoutBooking(bookings, excludeBookingID)
	}
	return CheckAvailability(c, blocks, bookings, template, weekday)
}

// Month returns the calendar of one month, served from cache when possible.
func (s *Service) Month(ctx context.Context, expertID string, year int, month time.Month) ([]models.DayAvailability, error) {
	if month < time.January || month > time.December || year < 1970 {
		return nil, utils.Validation("invalid_month", "year and month are out of range")
	}
	if days, ok := s.cache().Get(ctx, expertID, year, month); ok {
		return days, nil
	}

	template, err := s.Repo.GetWorkingHours(ctx, expertID)
	if err != nil {
		return nil, fmt.Errorf("month availability: %w", err)
	}
	blocks, err := s.Repo.GetBlocks(ctx, expertID, year, month)
	if err != nil {
		return nil, fmt.Errorf("month availability: %w", err)
	}
	bookings, err := s.Bookings.ListBlockingByExpertMonth(ctx, expertID, year, month)
	if err != nil {
		return nil, fmt.Errorf("month availability: %w", err)
	}

	days := ComputeMonthAvailability(year, month, blocks, bookings, template)
	s.cache().Set(ctx, expertID, year, month, days)
	return days, nil
}

// Invalidate drops the cached month that contains date.
func (s *Service) Invalidate(ctx context.Context, expertID, date string) {
	d, err := ParseDate(date)
	if err != nil {
		return
	}
	s.cache().Invalidate(ctx, expertID, YearMonth{Year: d.Year(), Month: d.Month()})
}

// SaveWorkingHours validates and stores an expert's weekly template. Reads tolerate
// malformed intervals, writes do not accept them.
func (s *Service) SaveWorkingHours(ctx context.Context, expertID, timezone string, intervals []models.WorkingInterval) (*models.WorkingHours, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, utils.Validation("invalid_timezone", "unknown timezone "+timezone)
	}
	for _, wi := range intervals {
		if wi.Weekday < time.Sunday || wi.Weekday > time.Saturday {
			return nil, utils.Validation("invalid_weekday", "weekday must be between 0 (Sunday) and 6 (Saturday)")
		}
		iv, err := ParseRange(wi.Start, wi.End)
		if err != nil || !iv.Valid() {
			return nil, utils.Validation(CodeInvalidRange, fmt.Sprintf("invalid interval %s-%s", wi.Start, wi.End))
		}
	}

	wh := &models.WorkingHours{
		ExpertID:  expertID,
		Timezone:  timezone,
		Intervals: intervals,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.Repo.SaveWorkingHours(ctx, wh); err != nil {
		return nil, fmt.Errorf("save working hours: %w", err)
	}

	months := make([]YearMonth, 0, templateHorizon)
	cursor := time.Date(s.now().Year(), s.now().Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < templateHorizon; i++ {
		months = append(months, YearMonth{Year: cursor.Year(), Month: cursor.Month()})
		cursor = cursor.AddDate(0, 1, 0)
	}
	s.cache().Invalidate(ctx, expertID, months...)

	if s.Logger != nil {
		s.Logger.Info("working hours saved", zap.String("expertID", expertID), zap.Int("intervals", len(intervals)))
	}
	return wh, nil
}

// SaveBlocks replaces the block entries of one expert month.
func (s *Service) SaveBlocks(ctx context.Context, expertID string, year int, month time.Month, entries []models.BlockEntry) (*models.AvailabilityBlock, error) {
	if month < time.January || month > time.December {
		return nil, utils.Validation("invalid_month", "month must be between 1 and 12")
	}
	for _, e := range entries {
		d, err := ParseDate(e.Date)
		if err != nil || d.Year() != year || d.Month() != month {
			return nil, utils.Validation("invalid_date", fmt.Sprintf("block date %q is not in %04d-%02d", e.Date, year, int(month)))
		}
		if e.FullDay {
			continue
		}
		iv, err := ParseRange(e.Start, e.End)
		if err != nil || !iv.Valid() {
			return nil, utils.Validation(CodeInvalidRange, fmt.Sprintf("invalid block range %s-%s on %s", e.Start, e.End, e.Date))
		}
	}

	block := &models.AvailabilityBlock{
		ID:        fmt.Sprintf("%s-%04d-%02d", expertID, year, int(month)),
		ExpertID:  expertID,
		Year:      year,
		Month:     int(month),
		Entries:   entries,
		UpdatedAt: s.now().UTC(),
	}
	if block.Entries == nil {
		block.Entries = []models.BlockEntry{}
	}
	if err := s.Repo.SaveBlocks(ctx, block); err != nil {
		return nil, fmt.Errorf("save blocks: %w", err)
	}
	s.cache().Invalidate(ctx, expertID, YearMonth{Year: year, Month: month})
	return block, nil
}

// Location resolves the expert's timezone: template first, then profile, then UTC.
func Location(template *models.WorkingHours, expert *models.Expert) *time.Location {
	for _, name := range []string{templateTZ(template), expertTZ(expert)} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

func templateTZ(t *models.WorkingHours) string {
	if t == nil {
		return ""
	}
	return t.Timezone
}

func expertTZ(e *models.Expert) string {
	if e == nil {
		return ""
	}
	return e.Timezone
}

func withoutBooking(in []models.Booking, id string) []models.Booking {
	out := make([]models.Booking, 0, len(in))
	for _, b := range in {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}

// LocationFor resolves the timezone bookings with this expert are scheduled in.
func (s *Service) LocationFor(ctx context.Context, expert *models.Expert) (*time.Location, error) {
	template, err := s.Repo.GetWorkingHours(ctx, expert.ID)
	if err != nil {
		return nil, fmt.Errorf("load working hours: %w", err)
	}
	return Location(template, expert), nil
}
