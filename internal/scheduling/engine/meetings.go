package engine

import (
	"sort"
	"time"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

// meetingIntervals maps every live fixed-time task overlapping the date into
// merged local minute-intervals. All-day tasks consume the full day.
func meetingIntervals(tasks []*domain.Task, date time.Time, loc *time.Location) []Interval {
	dayEnd := date.AddDate(0, 0, 1)
	var intervals []Interval
	for _, t := range tasks {
		if !t.IsFixedMeeting() || t.IsDone() {
			continue
		}
		start, end, ok := fixedRange(t)
		if !ok || !start.Before(end) {
			continue
		}
		if !start.Before(dayEnd) || !end.After(date) {
			continue
		}
		if t.IsAllDay() {
			intervals = append(intervals, Interval{Start: 0, End: minutesPerDay})
			continue
		}
		intervals = append(intervals, Interval{
			Start: minuteOfDay(start, date, loc),
			End:   minuteOfDay(end, date, loc),
		})
	}
	return mergeIntervals(intervals)
}

// meetingBlocks emits one verbatim block per timed fixed task overlapping
// the date, ordered by start.
func meetingBlocks(tasks []*domain.Task, date time.Time, loc *time.Location) []domain.ScheduleTimeBlock {
	dayEnd := date.AddDate(0, 0, 1)
	var blocks []domain.ScheduleTimeBlock
	for _, t := range tasks {
		if !t.IsFixedMeeting() || t.IsDone() || t.IsAllDay() {
			continue
		}
		start, end, ok := fixedRange(t)
		if !ok || !start.Before(end) {
			continue
		}
		if !start.Before(dayEnd) || !end.After(date) {
			continue
		}
		blocks = append(blocks, domain.ScheduleTimeBlock{
			TaskID: t.ID(),
			Start:  start,
			End:    end,
			Kind:   domain.BlockKindMeeting,
			Status: t.Status(),
		})
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Start.Before(blocks[j].Start) })
	return blocks
}

func fixedRange(t *domain.Task) (time.Time, time.Time, bool) {
	if t.StartTime() == nil || t.EndTime() == nil {
		return time.Time{}, time.Time{}, false
	}
	return *t.StartTime(), *t.EndTime(), true
}

// minuteOfDay clamps an instant to the date and converts it to minutes
// since local midnight.
func minuteOfDay(instant, date time.Time, loc *time.Location) int {
	local := instant.In(loc)
	if local.Before(date) {
		return 0
	}
	if !local.Before(date.AddDate(0, 0, 1)) {
		return minutesPerDay
	}
	return local.Hour()*60 + local.Minute()
}

const minutesPerDay = 1440
