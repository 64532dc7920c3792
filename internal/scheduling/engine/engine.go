// Package engine implements the pure scheduling core: capacity derivation,
// task classification, priority scoring, multi-day packing and time-block
// layout. It performs no I/O; callers gather inputs from the repositories
// and persist the result.
package engine

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

const DefaultMaxDays = 30

// Input is everything a single generation needs, fully resolved.
type Input struct {
	UserID   uuid.UUID
	Start    time.Time
	MaxDays  int
	FromNow  bool
	Now      time.Time
	Location *time.Location
	Settings *domain.ScheduleSettings
	Tasks    []*domain.Task
	Projects []*domain.Project
	// Windows narrows tasks to their planned windows from an active
	// schedule snapshot, when plan constraints apply.
	Windows map[uuid.UUID]domain.SnapshotTaskWindow
	// PriorTodayAllocations holds today's allocations from the previous
	// stored plan, used to render ghost blocks in from-now mode.
	PriorTodayAllocations []domain.TaskAllocation
}

// Result is the full generation output keyed by local date.
type Result struct {
	Days           []domain.ScheduleDay
	TaskInfos      []domain.TaskScheduleInfo
	Unscheduled    []domain.UnscheduledTask
	Excluded       []domain.ExcludedTask
	BlocksByDate   map[string][]domain.ScheduleTimeBlock
	PinnedOverflow map[string][]uuid.UUID
}

// Generate runs the whole pipeline over the given horizon.
func Generate(in Input) *Result {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	settings := in.Settings
	if settings == nil {
		settings = domain.DefaultScheduleSettings(in.UserID)
	}
	settings = settings.Normalized()

	maxDays := in.MaxDays
	if maxDays <= 0 {
		maxDays = DefaultMaxDays
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	start := domain.DateOf(in.Start, loc)

	cls := Classify(in.Tasks)
	scorer := NewScorer(in.Projects)
	dueInstant, dueDay, notBefore := effectiveConstraints(cls.Scheduled, in.Windows, loc)

	meetingLoad := func(date time.Time) int {
		work := WorkIntervals(settings, date)
		meetings := meetingIntervals(in.Tasks, date, loc)
		if in.FromNow && domain.SameDate(now, date, loc) {
			minute := minuteOfDay(now, date, loc)
			work = clipFrom(work, minute)
			meetings = clipFrom(meetings, minute)
		}
		return intersectMinutes(meetings, work)
	}

	packed := pack(packConfig{
		start:          start,
		maxDays:        maxDays,
		loc:            loc,
		settings:       settings,
		cls:            cls,
		scorer:         scorer,
		dueInstant:     dueInstant,
		dueDay:         dueDay,
		notBefore:      notBefore,
		meetingMinutes: meetingLoad,
	})

	blocks, layoutOverflow := buildBlocks(layoutConfig{
		settings:         settings,
		loc:              loc,
		tasks:            in.Tasks,
		byID:             cls.ByID,
		pinnedAt:         packed.pinnedAt,
		breakMinutes:     settings.BreakAfterTaskMinutes,
		fromNow:          in.FromNow,
		now:              now,
		ghostAllocations: doneAllocations(in.PriorTodayAllocations, cls.ByID),
	}, packed.days)

	overflow := packed.pinnedOverflow
	for key, ids := range layoutOverflow {
		for _, id := range ids {
			overflow[key] = appendUnique(overflow[key], id)
		}
	}

	return &Result{
		Days:           packed.days,
		TaskInfos:      taskInfos(cls, scorer, packed, dueDay, start),
		Unscheduled:    unscheduledList(cls, packed),
		Excluded:       cls.Excluded,
		BlocksByDate:   blocks,
		PinnedOverflow: overflow,
	}
}

// MeetingDay produces a day that carries only fixed-time meetings, used for
// past days of a mixed horizon where no stored plan row exists.
func MeetingDay(settings *domain.ScheduleSettings, tasks []*domain.Task, date time.Time, loc *time.Location) (domain.ScheduleDay, []domain.ScheduleTimeBlock) {
	settings = settings.Normalized()
	date = domain.DateOf(date, loc)
	day := domain.ScheduleDay{
		Date:            date,
		CapacityMinutes: CapacityMinutes(settings, date),
		TaskAllocations: []domain.TaskAllocation{},
	}
	work := WorkIntervals(settings, date)
	meetings := meetingIntervals(tasks, date, loc)
	day.SetMeetingMinutes(intersectMinutes(meetings, work))
	return day, meetingBlocks(tasks, date, loc)
}

// effectiveConstraints folds snapshot windows into each task's own due date
// and start-not-before: the window can only tighten, never widen.
func effectiveConstraints(tasks []*domain.Task, windows map[uuid.UUID]domain.SnapshotTaskWindow, loc *time.Location) (map[uuid.UUID]*time.Time, map[uuid.UUID]*time.Time, map[uuid.UUID]time.Time) {
	dueInstant := make(map[uuid.UUID]*time.Time)
	dueDay := make(map[uuid.UUID]*time.Time)
	notBefore := make(map[uuid.UUID]time.Time)

	for _, t := range tasks {
		id := t.ID()
		var due *time.Time
		if d := t.DueDate(); d != nil {
			v := *d
			due = &v
		}
		window, hasWindow := windows[id]
		if hasWindow && window.PlannedEnd != nil {
			if due == nil || window.PlannedEnd.Before(*due) {
				v := *window.PlannedEnd
				due = &v
			}
		}
		if due != nil {
			dueInstant[id] = due
			day := domain.DateOf(*due, loc)
			dueDay[id] = &day
		}

		var earliest *time.Time
		if s := t.StartNotBefore(); s != nil {
			v := domain.DateOf(*s, loc)
			earliest = &v
		}
		if hasWindow && window.PlannedStart != nil {
			v := domain.DateOf(*window.PlannedStart, loc)
			if earliest == nil || v.After(*earliest) {
				earliest = &v
			}
		}
		if earliest != nil {
			notBefore[id] = *earliest
		}
	}
	return dueInstant, dueDay, notBefore
}

func doneAllocations(allocations []domain.TaskAllocation, byID map[uuid.UUID]*domain.Task) []domain.TaskAllocation {
	var done []domain.TaskAllocation
	for _, alloc := range allocations {
		if t, ok := byID[alloc.TaskID]; ok && t.IsDone() {
			done = append(done, alloc)
		}
	}
	return done
}

func taskInfos(cls *Classification, scorer *Scorer, packed *packResult, dueDay map[uuid.UUID]*time.Time, start time.Time) []domain.TaskScheduleInfo {
	infos := make([]domain.TaskScheduleInfo, 0, len(cls.Scheduled))
	for _, t := range cls.Scheduled {
		id := t.ID()
		info := domain.TaskScheduleInfo{
			TaskID:        id,
			Title:         t.Title(),
			TotalMinutes:  cls.Estimates[id],
			PriorityScore: scorer.ScoreAt(t, dueDay[id], start),
			ParentID:      t.ParentID(),
			ProjectID:     t.ProjectID(),
		}
		if packed.reasons[id] != "" {
			info.TotalMinutes = packed.residual[id]
		}
		if s, ok := packed.taskStart[id]; ok {
			v := s
			info.PlannedStart = &v
		}
		if e, ok := packed.taskEnd[id]; ok {
			v := e
			info.PlannedEnd = &v
		}
		infos = append(infos, info)
	}
	return infos
}

func unscheduledList(cls *Classification, packed *packResult) []domain.UnscheduledTask {
	out := append([]domain.UnscheduledTask(nil), cls.Blocked...)
	failed := make([]uuid.UUID, 0, len(packed.reasons))
	for id := range packed.reasons {
		failed = append(failed, id)
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].String() < failed[j].String() })
	for _, id := range failed {
		out = append(out, domain.UnscheduledTask{TaskID: id, Reason: packed.reasons[id]})
	}
	return out
}
