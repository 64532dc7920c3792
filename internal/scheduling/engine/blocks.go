package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

// layoutConfig drives the conversion of day allocations into concrete
// time blocks.
type layoutConfig struct {
	settings     *domain.ScheduleSettings
	loc          *time.Location
	tasks        []*domain.Task
	byID         map[uuid.UUID]*domain.Task
	pinnedAt     map[uuid.UUID]time.Time
	breakMinutes int
	fromNow      bool
	now          time.Time
	// ghostAllocations are today's allocations for tasks completed since the
	// previous generation; they are rendered as done blocks so the day keeps
	// its shape when replanning from the current time.
	ghostAllocations []domain.TaskAllocation
}

type queueItem struct {
	taskID  uuid.UUID
	minutes int
}

type taskSegment struct {
	taskID uuid.UUID
	seg    Interval
}

// buildBlocks lays every day's allocations into the free time between
// meetings. Work that does not fit a day carries over to the next one;
// work pinned to the day is flagged as pinned overflow instead.
func buildBlocks(cfg layoutConfig, days []domain.ScheduleDay) (map[string][]domain.ScheduleTimeBlock, map[string][]uuid.UUID) {
	blocksByDate := make(map[string][]domain.ScheduleTimeBlock, len(days))
	overflow := make(map[string][]uuid.UUID)

	var carry []queueItem
	for i, day := range days {
		date := day.Date
		key := domain.DateKey(date)
		isToday := cfg.fromNow && domain.SameDate(cfg.now, date, cfg.loc)

		work := WorkIntervals(cfg.settings, date)
		meetings := meetingIntervals(cfg.tasks, date, cfg.loc)
		free := subtractAll(work, meetings)

		dayBlocks := meetingBlocks(cfg.tasks, date, cfg.loc)

		if isToday && len(cfg.ghostAllocations) > 0 {
			// Ghost blocks keep their original position on an independent
			// copy of the intervals; live work may overlap them.
			dayBlocks = append(dayBlocks, cfg.layoutGhosts(date, free)...)
		}
		if isToday {
			free = clipFrom(free, minuteOfDay(cfg.now, date, cfg.loc))
		}

		queue := make([]queueItem, 0, len(carry)+len(day.TaskAllocations))
		queue = append(queue, carry...)
		for _, alloc := range day.TaskAllocations {
			queue = append(queue, queueItem{taskID: alloc.TaskID, minutes: alloc.Minutes})
		}
		carry = nil

		segments, _, leftovers := layoutQueue(queue, free, cfg.breakMinutes)
		for _, s := range segments {
			dayBlocks = append(dayBlocks, cfg.autoBlock(date, s))
		}
		for _, left := range leftovers {
			if pinnedDay, ok := cfg.pinnedAt[left.taskID]; ok && domain.SameDate(pinnedDay, date, cfg.loc) {
				overflow[key] = appendUnique(overflow[key], left.taskID)
				continue
			}
			if i < len(days)-1 {
				carry = append(carry, left)
			}
		}

		blocksByDate[key] = dayBlocks
	}

	return blocksByDate, overflow
}

// layoutQueue fills free intervals front to back. A task may split across
// intervals without a gap; once a task's minutes for the day are exhausted
// the break gap is applied before the next task, unless an interval boundary
// already separates them.
func layoutQueue(queue []queueItem, free []Interval, breakMinutes int) ([]taskSegment, []Interval, []queueItem) {
	var segments []taskSegment
	var leftovers []queueItem

	for _, item := range queue {
		if item.minutes <= 0 {
			continue
		}
		segs, rest, leftover := placeMinutes(free, item.minutes)
		free = rest
		for _, seg := range segs {
			segments = append(segments, taskSegment{taskID: item.taskID, seg: seg})
		}
		if leftover > 0 {
			leftovers = append(leftovers, queueItem{taskID: item.taskID, minutes: leftover})
			continue
		}
		if len(segs) > 0 {
			free = applyBreak(free, segs[len(segs)-1].End, breakMinutes)
		}
	}
	return segments, free, leftovers
}

// placeMinutes consumes free intervals from the front until the requested
// minutes are placed or the intervals run out.
func placeMinutes(free []Interval, minutes int) ([]Interval, []Interval, int) {
	var segs []Interval
	rest := free
	for minutes > 0 && len(rest) > 0 {
		cur := rest[0]
		take := cur.Length()
		if take > minutes {
			take = minutes
		}
		segs = append(segs, Interval{Start: cur.Start, End: cur.Start + take})
		minutes -= take
		if cur.Start+take < cur.End {
			rest = append([]Interval{{Start: cur.Start + take, End: cur.End}}, rest[1:]...)
		} else {
			rest = rest[1:]
		}
	}
	return segs, rest, minutes
}

// applyBreak eats the break gap out of the interval a task just ended in.
// When the task ended exactly at an interval boundary the physical gap
// already separates it from the next block.
func applyBreak(free []Interval, endedAt, breakMinutes int) []Interval {
	if breakMinutes <= 0 || len(free) == 0 || free[0].Start != endedAt {
		return free
	}
	trimmed := append([]Interval(nil), free...)
	trimmed[0].Start += breakMinutes
	if trimmed[0].Start >= trimmed[0].End {
		return trimmed[1:]
	}
	return trimmed
}

func (cfg layoutConfig) layoutGhosts(date time.Time, free []Interval) []domain.ScheduleTimeBlock {
	queue := make([]queueItem, 0, len(cfg.ghostAllocations))
	for _, alloc := range cfg.ghostAllocations {
		queue = append(queue, queueItem{taskID: alloc.TaskID, minutes: alloc.Minutes})
	}
	segments, _, _ := layoutQueue(queue, cloneIntervals(free), cfg.breakMinutes)

	blocks := make([]domain.ScheduleTimeBlock, 0, len(segments))
	for _, s := range segments {
		status := domain.StatusDone
		if t, ok := cfg.byID[s.taskID]; ok {
			status = t.Status()
		}
		blocks = append(blocks, domain.ScheduleTimeBlock{
			TaskID: s.taskID,
			Start:  instantAt(date, s.seg.Start, cfg.loc),
			End:    instantAt(date, s.seg.End, cfg.loc),
			Kind:   domain.BlockKindAuto,
			Status: status,
		})
	}
	return blocks
}

func (cfg layoutConfig) autoBlock(date time.Time, s taskSegment) domain.ScheduleTimeBlock {
	block := domain.ScheduleTimeBlock{
		TaskID: s.taskID,
		Start:  instantAt(date, s.seg.Start, cfg.loc),
		End:    instantAt(date, s.seg.End, cfg.loc),
		Kind:   domain.BlockKindAuto,
		Status: domain.StatusTodo,
	}
	if t, ok := cfg.byID[s.taskID]; ok {
		block.Status = t.Status()
		if t.PinnedDate() != nil {
			pinned := *t.PinnedDate()
			block.PinnedDate = &pinned
		}
	}
	return block
}

// instantAt converts a minute of day back into a wall-clock instant.
func instantAt(date time.Time, minute int, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, minute, 0, 0, loc)
}

func appendUnique(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
