package availability

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"rivelya/models"
)

const (
	// MinutesPerDay is the exclusive upper bound of a local day.
	MinutesPerDay = 24 * 60
	// Granularity is the slot step in minutes.
	Granularity = 5

	DateLayout = "2006-01-02"
)

// Interval is a half-open [Start, End) range in minutes from local midnight.
type Interval struct {
	Start int
	End   int
}

func (i Interval) Valid() bool {
	return i.Start >= 0 && i.End <= MinutesPerDay && i.Start < i.End
}

// Overlaps uses half-open semantics: touching ranges do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

func (i Interval) Contains(o Interval) bool {
	return i.Start <= o.Start && o.End <= i.End
}

// ParseClock converts "HH:MM" into minutes from midnight. "24:00" is accepted.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes from midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseRange parses a start/end clock pair into an Interval.
func ParseRange(start, end string) (Interval, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: s, End: e}, nil
}

// ParseDate parses "YYYY-MM-DD" as a calendar date.
func ParseDate(date string) (time.Time, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return d, nil
}

// ResolveDay returns the ordered, disjoint open intervals of weekday. A template without
// any well-formed interval means "always open". Overlapping and touching intervals are
// merged.
func ResolveDay(template *models.WorkingHours, weekday time.Weekday) []Interval {
	valid := validIntervals(template)
	if len(valid) == 0 {
		return []Interval{{Start: 0, End: MinutesPerDay}}
	}

	var day []Interval
	for _, wi := range valid {
		if wi.weekday == weekday {
			day = append(day, wi.Interval)
		}
	}
	return mergeIntervals(day)
}

type weekdayInterval struct {
	Interval
	weekday time.Weekday
}

func validIntervals(template *models.WorkingHours) []weekdayInterval {
	if template == nil {
		return nil
	}
	out := make([]weekdayInterval, 0, len(template.Intervals))
	for _, wi := range template.Intervals {
		if wi.Weekday < time.Sunday || wi.Weekday > time.Saturday {
			continue
		}
		iv, err := ParseRange(wi.Start, wi.End)
		if err != nil || !iv.Valid() {
			continue
		}
		out = append(out, weekdayInterval{Interval: iv, weekday: wi.Weekday})
	}
	return out
}

func mergeIntervals(in []Interval) []Interval {
	if len(in) == 0 {
		return nil
	}
	sorted := append([]Interval(nil), in...)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].Start < sorted[b].Start })

	out := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}
