package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

func runPack(tasks []*domain.Task, settings *domain.ScheduleSettings, maxDays int, meet func(time.Time) int) *packResult {
	cls := Classify(tasks)
	dueInstant, dueDay, notBefore := effectiveConstraints(cls.Scheduled, nil, time.UTC)
	if meet == nil {
		meet = func(time.Time) int { return 0 }
	}
	return pack(packConfig{
		start:          day(0),
		maxDays:        maxDays,
		loc:            time.UTC,
		settings:       settings,
		cls:            cls,
		scorer:         NewScorer(nil),
		dueInstant:     dueInstant,
		dueDay:         dueDay,
		notBefore:      notBefore,
		meetingMinutes: meet,
	})
}

func allocationsOf(day domain.ScheduleDay) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(day.TaskAllocations))
	for _, a := range day.TaskAllocations {
		ids = append(ids, a.TaskID)
	}
	return ids
}

// capacity 120: 09:00-12:00 minus a one-hour buffer.
func smallDaySettings() *domain.ScheduleSettings {
	return testSettings("09:00", "12:00", 1, 0)
}

func TestPackTwoDays(t *testing.T) {
	a := taskSpec{id: testID(1), title: "a", importance: domain.LevelHigh, estimate: intPtr(60)}.build()
	b := taskSpec{id: testID(2), title: "b", estimate: intPtr(60), deps: []uuid.UUID{a.ID()}}.build()
	c := taskSpec{id: testID(3), title: "c", importance: domain.LevelLow, estimate: intPtr(120)}.build()

	res := runPack([]*domain.Task{a, b, c}, smallDaySettings(), 3, nil)

	require.Len(t, res.days, 3)
	assert.Equal(t, []uuid.UUID{a.ID(), b.ID()}, allocationsOf(res.days[0]))
	assert.Equal(t, 120, res.days[0].AllocatedMinutes)
	assert.Equal(t, 0, res.days[0].OverflowMinutes)

	assert.Equal(t, []uuid.UUID{c.ID()}, allocationsOf(res.days[1]))
	assert.Equal(t, 120, res.days[1].AllocatedMinutes)

	assert.Empty(t, res.days[2].TaskAllocations)
	assert.Empty(t, res.reasons)
	assert.Equal(t, day(0), res.taskEnd[a.ID()])
	assert.Equal(t, day(0), res.taskEnd[b.ID()])
	assert.Equal(t, day(1), res.taskEnd[c.ID()])
}

func TestPackForcedDue(t *testing.T) {
	x := taskSpec{id: testID(1), estimate: intPtr(300), due: timePtr(day(1))}.build()

	res := runPack([]*domain.Task{x}, smallDaySettings(), 3, nil)

	first := res.days[0]
	require.Equal(t, []uuid.UUID{x.ID()}, allocationsOf(first))
	assert.Equal(t, 300, first.AllocatedMinutes)
	assert.Equal(t, 180, first.OverflowMinutes)
	assert.Equal(t, day(0), res.taskStart[x.ID()])
	assert.Equal(t, day(0), res.taskEnd[x.ID()])
	assert.Empty(t, res.days[1].TaskAllocations)
}

func TestPackForcedDueWaitsForDependency(t *testing.T) {
	a := taskSpec{id: testID(1), estimate: intPtr(120)}.build()
	b := taskSpec{id: testID(2), estimate: intPtr(90), due: timePtr(day(0)), deps: []uuid.UUID{a.ID()}}.build()

	res := runPack([]*domain.Task{a, b}, smallDaySettings(), 3, nil)

	// Day one is consumed by the dependency; the overdue task is forced
	// fully onto the next day.
	assert.Equal(t, []uuid.UUID{a.ID()}, allocationsOf(res.days[0]))
	assert.Equal(t, []uuid.UUID{b.ID()}, allocationsOf(res.days[1]))
	assert.Equal(t, 90, res.days[1].AllocatedMinutes)
	assert.True(t, !res.taskStart[b.ID()].Before(res.taskEnd[a.ID()]))
}

func TestPackPinned(t *testing.T) {
	t.Run("fits on its day", func(t *testing.T) {
		p := taskSpec{id: testID(1), estimate: intPtr(60), pinned: timePtr(day(1))}.build()

		res := runPack([]*domain.Task{p}, smallDaySettings(), 3, nil)

		assert.Empty(t, res.days[0].TaskAllocations)
		assert.Equal(t, []uuid.UUID{p.ID()}, allocationsOf(res.days[1]))
		assert.Empty(t, res.pinnedOverflow)
	})

	t.Run("overflow marker when the day is full", func(t *testing.T) {
		p := taskSpec{id: testID(1), estimate: intPtr(60), pinned: timePtr(day(0))}.build()
		fullDay := func(date time.Time) int {
			if date.Equal(day(0)) {
				return 180
			}
			return 0
		}

		res := runPack([]*domain.Task{p}, testSettings("09:00", "12:00", 1, 0), 3, fullDay)

		// The allocation still lands on the pinned day as a hint, and the id
		// is flagged; nothing leaks onto later days.
		assert.Equal(t, []uuid.UUID{p.ID()}, allocationsOf(res.days[0]))
		assert.Equal(t, []uuid.UUID{p.ID()}, res.pinnedOverflow[domain.DateKey(day(0))])
		for _, d := range res.days[1:] {
			assert.Empty(t, d.TaskAllocations)
		}
		assert.Empty(t, res.reasons)
	})

	t.Run("open dependencies surrender the day", func(t *testing.T) {
		dep := taskSpec{id: testID(1), estimate: intPtr(240)}.build()
		p := taskSpec{id: testID(2), estimate: intPtr(60), pinned: timePtr(day(0)), deps: []uuid.UUID{dep.ID()}}.build()

		res := runPack([]*domain.Task{dep, p}, smallDaySettings(), 3, nil)

		assert.Equal(t, []uuid.UUID{dep.ID()}, allocationsOf(res.days[0]))
		assert.Equal(t, []uuid.UUID{p.ID()}, res.pinnedOverflow[domain.DateKey(day(0))])
		for _, d := range res.days {
			assert.NotContains(t, allocationsOf(d), p.ID())
		}
	})

	t.Run("past pinned date clamps to the start", func(t *testing.T) {
		p := taskSpec{id: testID(1), estimate: intPtr(60), pinned: timePtr(day(-3))}.build()

		res := runPack([]*domain.Task{p}, smallDaySettings(), 3, nil)

		assert.Equal(t, []uuid.UUID{p.ID()}, allocationsOf(res.days[0]))
	})
}

func TestPackCycle(t *testing.T) {
	idA, idB := testID(1), testID(2)
	a := taskSpec{id: idA, estimate: intPtr(60), deps: []uuid.UUID{idB}}.build()
	b := taskSpec{id: idB, estimate: intPtr(60), deps: []uuid.UUID{idA}}.build()

	res := runPack([]*domain.Task{a, b}, smallDaySettings(), 3, nil)

	assert.Equal(t, domain.UnscheduledDependencyCycle, res.reasons[idA])
	assert.Equal(t, domain.UnscheduledDependencyCycle, res.reasons[idB])
	for _, d := range res.days {
		assert.Empty(t, d.TaskAllocations)
	}
	assert.Equal(t, 60, res.residual[idA])
}

func TestPackMaxDaysExceeded(t *testing.T) {
	big := taskSpec{id: testID(1), estimate: intPtr(600)}.build()

	res := runPack([]*domain.Task{big}, smallDaySettings(), 2, nil)

	assert.Equal(t, domain.UnscheduledMaxDaysExceeded, res.reasons[big.ID()])
	assert.Equal(t, 360, res.residual[big.ID()])
	assert.Equal(t, day(0), res.taskStart[big.ID()])
	_, finished := res.taskEnd[big.ID()]
	assert.False(t, finished)
}

func TestPackResidualIsCallerOwned(t *testing.T) {
	big := taskSpec{id: testID(1), estimate: intPtr(600)}.build()

	res := runPack([]*domain.Task{big}, smallDaySettings(), 2, nil)
	require.Equal(t, 360, res.residual[big.ID()])

	// Mutating the returned snapshot must not bleed into a later run.
	res.residual[big.ID()] = 0

	again := runPack([]*domain.Task{big}, smallDaySettings(), 2, nil)
	assert.Equal(t, 360, again.residual[big.ID()])
}

func TestPackInProgressContinuity(t *testing.T) {
	a := taskSpec{id: testID(1), estimate: intPtr(200)}.build()
	b := taskSpec{id: testID(2), estimate: intPtr(100)}.build()

	res := runPack([]*domain.Task{a, b}, smallDaySettings(), 3, nil)

	// A partially placed task finishes before the next one starts.
	require.Len(t, res.days[0].TaskAllocations, 1)
	assert.Equal(t, domain.TaskAllocation{TaskID: a.ID(), Minutes: 120}, res.days[0].TaskAllocations[0])

	require.Len(t, res.days[1].TaskAllocations, 2)
	assert.Equal(t, domain.TaskAllocation{TaskID: a.ID(), Minutes: 80}, res.days[1].TaskAllocations[0])
	assert.Equal(t, domain.TaskAllocation{TaskID: b.ID(), Minutes: 40}, res.days[1].TaskAllocations[1])

	require.Len(t, res.days[2].TaskAllocations, 1)
	assert.Equal(t, domain.TaskAllocation{TaskID: b.ID(), Minutes: 60}, res.days[2].TaskAllocations[0])
}

func TestPackEnergyBalance(t *testing.T) {
	deep := taskSpec{id: testID(1), importance: domain.LevelHigh, estimate: intPtr(60)}.build()
	light := taskSpec{id: testID(2), importance: domain.LevelLow, energy: domain.EnergyLow, estimate: intPtr(60)}.build()
	other := taskSpec{id: testID(3), estimate: intPtr(60)}.build()

	res := runPack([]*domain.Task{deep, light, other}, testSettings("09:00", "13:00", 1, 0), 1, nil)

	// After an hour of HIGH-energy work the LOW-energy candidate is
	// preferred despite its lower score.
	assert.Equal(t, []uuid.UUID{deep.ID(), light.ID(), other.ID()}, allocationsOf(res.days[0]))
}

func TestPackStartNotBefore(t *testing.T) {
	s := taskSpec{id: testID(1), estimate: intPtr(60), snb: timePtr(day(2))}.build()

	res := runPack([]*domain.Task{s}, smallDaySettings(), 4, nil)

	assert.Empty(t, res.days[0].TaskAllocations)
	assert.Empty(t, res.days[1].TaskAllocations)
	assert.Equal(t, []uuid.UUID{s.ID()}, allocationsOf(res.days[2]))
	assert.Empty(t, res.reasons)
}

func TestPackDependencyGaps(t *testing.T) {
	a := taskSpec{id: testID(1), estimate: intPtr(120)}.build()
	nextDay := taskSpec{id: testID(2), estimate: intPtr(60), deps: []uuid.UUID{a.ID()}, noSameDay: true}.build()
	spaced := taskSpec{id: testID(3), estimate: intPtr(60), deps: []uuid.UUID{a.ID()}, minGap: 3}.build()

	res := runPack([]*domain.Task{a, nextDay, spaced}, smallDaySettings(), 5, nil)

	assert.Equal(t, []uuid.UUID{a.ID()}, allocationsOf(res.days[0]))
	assert.Equal(t, []uuid.UUID{nextDay.ID()}, allocationsOf(res.days[1]))
	assert.Empty(t, res.days[2].TaskAllocations)
	assert.Equal(t, []uuid.UUID{spaced.ID()}, allocationsOf(res.days[3]))
}

func TestPackMeetingLoadReducesCapacity(t *testing.T) {
	task := taskSpec{id: testID(1), estimate: intPtr(120)}.build()
	meet := func(date time.Time) int {
		if date.Equal(day(0)) {
			return 90
		}
		return 0
	}

	res := runPack([]*domain.Task{task}, smallDaySettings(), 2, meet)

	// 120 capacity minus 90 minutes of meetings leaves 30 for the task.
	require.Len(t, res.days[0].TaskAllocations, 1)
	assert.Equal(t, 30, res.days[0].TaskAllocations[0].Minutes)
	assert.Equal(t, 90, res.days[0].MeetingMinutes)
	assert.Equal(t, 90, res.days[0].AvailableMinutes)
	assert.Equal(t, 90, res.days[1].TaskAllocations[0].Minutes)
}
