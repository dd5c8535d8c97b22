package availability

import "rivelya/models"

// GenerateFreeRanges walks each open interval in Granularity steps, drops every step that
// intersects a busy interval and merges the surviving steps into contiguous ranges.
// open must be ordered and disjoint, as returned by ResolveDay.
func GenerateFreeRanges(open, busy []Interval) []Interval {
	out := []Interval{}
	for _, iv := range open {
		current := -1
		for p := alignUp(iv.Start); p+Granularity <= iv.End; p += Granularity {
			step := Interval{Start: p, End: p + Granularity}
			if overlapsAny(step, busy) {
				current = -1
				continue
			}
			if current >= 0 && out[current].End == p {
				out[current].End = step.End
				continue
			}
			out = append(out, step)
			current = len(out) - 1
		}
	}
	return out
}

// ToTimeRanges labels intervals for API output.
func ToTimeRanges(in []Interval) []models.TimeRange {
	out := make([]models.TimeRange, 0, len(in))
	for _, iv := range in {
		out = append(out, models.TimeRange{
			Start: iv.Start,
			End:   iv.End,
			Label: FormatClock(iv.Start) + "-" + FormatClock(iv.End),
		})
	}
	return out
}

func alignUp(minute int) int {
	if r := minute % Granularity; r != 0 {
		return minute + Granularity - r
	}
	return minute
}

func overlapsAny(iv Interval, others []Interval) bool {
	for _, o := range others {
		if iv.Overlaps(o) {
			return true
		}
	}
	return false
}
