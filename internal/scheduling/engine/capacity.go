package engine

import (
	"time"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

// WorkIntervals converts one day's settings entry into available minute
// intervals. Disabled days, malformed clock strings, and inverted windows
// all degrade to an empty list rather than failing the generation.
func WorkIntervals(settings *domain.ScheduleSettings, date time.Time) []Interval {
	entry := settings.DayHours(date.Weekday())
	if !entry.Enabled {
		return nil
	}
	start, ok := domain.ClockMinutes(entry.Start)
	if !ok {
		return nil
	}
	end, ok := domain.ClockMinutes(entry.End)
	if !ok {
		return nil
	}
	if start >= end {
		return nil
	}

	intervals := []Interval{{Start: start, End: end}}
	for _, br := range entry.Breaks {
		bs, ok := domain.ClockMinutes(br.Start)
		if !ok {
			continue
		}
		be, ok := domain.ClockMinutes(br.End)
		if !ok {
			continue
		}
		// Clamp to the work window; malformed breaks are ignored.
		if bs < start {
			bs = start
		}
		if be > end {
			be = end
		}
		if bs >= be {
			continue
		}
		intervals = subtractInterval(intervals, Interval{Start: bs, End: be})
	}
	return intervals
}

// CapacityMinutes is the day's packable budget: total work minutes minus the
// buffer, floored at zero. The buffer comes off the total, not off any
// particular interval.
func CapacityMinutes(settings *domain.ScheduleSettings, date time.Time) int {
	total := totalMinutes(WorkIntervals(settings, date))
	capacity := total - int(settings.BufferHours*60)
	if capacity < 0 {
		return 0
	}
	return capacity
}

// WeeklyCapacityMinutes returns the seven per-weekday capacities, Sunday
// first. The array feeds the plan-params fingerprint: a settings change
// shows up as a capacity change.
func WeeklyCapacityMinutes(settings *domain.ScheduleSettings) []int {
	// Jan 4 2026 is a Sunday; only the weekday matters.
	sunday := time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC)
	out := make([]int, 7)
	for i := range out {
		out[i] = CapacityMinutes(settings, sunday.AddDate(0, 0, i))
	}
	return out
}
