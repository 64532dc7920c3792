package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

func TestGenerateSchedulesAcrossDays(t *testing.T) {
	a := taskSpec{id: testID(1), title: "deep work", importance: domain.LevelHigh, estimate: intPtr(60)}.build()
	b := taskSpec{id: testID(2), title: "follow-up", estimate: intPtr(60), deps: []uuid.UUID{a.ID()}}.build()
	c := taskSpec{id: testID(3), title: "backlog", importance: domain.LevelLow, estimate: intPtr(120)}.build()

	res := Generate(Input{
		UserID:   testUser,
		Start:    day(0),
		MaxDays:  3,
		Location: time.UTC,
		Settings: smallDaySettings(),
		Tasks:    []*domain.Task{a, b, c},
	})

	require.Len(t, res.Days, 3)
	assert.Equal(t, []uuid.UUID{a.ID(), b.ID()}, allocationsOf(res.Days[0]))
	assert.Equal(t, []uuid.UUID{c.ID()}, allocationsOf(res.Days[1]))
	assert.Empty(t, res.Unscheduled)
	assert.Empty(t, res.Excluded)

	require.Len(t, res.TaskInfos, 3)
	infos := make(map[uuid.UUID]domain.TaskScheduleInfo)
	for _, info := range res.TaskInfos {
		infos[info.TaskID] = info
	}
	require.NotNil(t, infos[b.ID()].PlannedStart)
	assert.Equal(t, day(0), *infos[b.ID()].PlannedStart)
	assert.Equal(t, day(1), *infos[c.ID()].PlannedEnd)
	assert.Equal(t, 120, infos[c.ID()].TotalMinutes)
	assert.Greater(t, infos[a.ID()].PriorityScore, infos[c.ID()].PriorityScore)

	// Blocks follow the allocations: two on day one, one on day two.
	first := res.BlocksByDate[domain.DateKey(day(0))]
	require.Len(t, first, 2)
	assert.Equal(t, a.ID(), first[0].TaskID)
	assert.Equal(t, b.ID(), first[1].TaskID)
	assertNoAutoOverlap(t, first)
}

func TestGenerateForcedDueOverflow(t *testing.T) {
	x := taskSpec{id: testID(1), estimate: intPtr(300), due: timePtr(day(1))}.build()

	res := Generate(Input{
		UserID:   testUser,
		Start:    day(0),
		MaxDays:  3,
		Location: time.UTC,
		Settings: smallDaySettings(),
		Tasks:    []*domain.Task{x},
	})

	first := res.Days[0]
	assert.Equal(t, 300, first.AllocatedMinutes)
	assert.Equal(t, 180, first.OverflowMinutes)

	// The work window holds 180 minutes; the rest of the blocks spill over.
	assert.Len(t, res.BlocksByDate[domain.DateKey(day(0))], 1)
	spill := res.BlocksByDate[domain.DateKey(day(1))]
	require.Len(t, spill, 1)
	assert.Equal(t, x.ID(), spill[0].TaskID)
}

func TestGenerateFromNow(t *testing.T) {
	liveID, doneID, meetingID := testID(1), testID(2), testID(3)
	live := taskSpec{id: liveID, estimate: intPtr(60)}.build()
	finished := taskSpec{id: doneID, status: domain.StatusDone}.build()
	pastMeeting := taskSpec{
		id:    meetingID,
		fixed: true,
		start: timePtr(at(0, 10, 0)),
		end:   timePtr(at(0, 11, 0)),
	}.build()

	res := Generate(Input{
		UserID:                testUser,
		Start:                 day(0),
		MaxDays:               2,
		FromNow:               true,
		Now:                   at(0, 14, 30),
		Location:              time.UTC,
		Settings:              testSettings("09:00", "18:00", 1, 0),
		Tasks:                 []*domain.Task{live, finished, pastMeeting},
		PriorTodayAllocations: []domain.TaskAllocation{{TaskID: doneID, Minutes: 60}},
	})

	// The elapsed meeting no longer penalises capacity.
	assert.Equal(t, 0, res.Days[0].MeetingMinutes)

	blocks := res.BlocksByDate[domain.DateKey(day(0))]
	require.Len(t, blocks, 3)

	meeting := blocks[0]
	assert.Equal(t, domain.BlockKindMeeting, meeting.Kind)
	assert.Equal(t, at(0, 10, 0), meeting.Start)
	assert.Equal(t, at(0, 11, 0), meeting.End)

	ghost := blocks[1]
	assert.True(t, ghost.IsGhost())
	assert.Equal(t, at(0, 9, 0), ghost.Start)

	fresh := blocks[2]
	assert.Equal(t, liveID, fresh.TaskID)
	assert.False(t, fresh.Start.Before(at(0, 14, 30)))
}

func TestGenerateSnapshotWindows(t *testing.T) {
	taskID := testID(1)
	task := taskSpec{id: taskID, estimate: intPtr(60)}.build()

	res := Generate(Input{
		UserID:   testUser,
		Start:    day(0),
		MaxDays:  4,
		Location: time.UTC,
		Settings: smallDaySettings(),
		Tasks:    []*domain.Task{task},
		Windows: map[uuid.UUID]domain.SnapshotTaskWindow{
			taskID: {TaskID: taskID, PlannedStart: timePtr(day(2))},
		},
	})

	assert.Empty(t, res.Days[0].TaskAllocations)
	assert.Empty(t, res.Days[1].TaskAllocations)
	assert.Equal(t, []uuid.UUID{taskID}, allocationsOf(res.Days[2]))
}

func TestGenerateReportsEveryBucket(t *testing.T) {
	waiting := taskSpec{id: testID(1), status: domain.StatusWaiting}.build()
	orphan := taskSpec{id: testID(2), deps: []uuid.UUID{testID(9)}}.build()
	idA, idB := testID(3), testID(4)
	cycleA := taskSpec{id: idA, estimate: intPtr(30), deps: []uuid.UUID{idB}}.build()
	cycleB := taskSpec{id: idB, estimate: intPtr(30), deps: []uuid.UUID{idA}}.build()

	res := Generate(Input{
		UserID:   testUser,
		Start:    day(0),
		MaxDays:  2,
		Location: time.UTC,
		Settings: smallDaySettings(),
		Tasks:    []*domain.Task{waiting, orphan, cycleA, cycleB},
	})

	require.Len(t, res.Excluded, 1)
	assert.Equal(t, domain.ExcludedWaiting, res.Excluded[0].Reason)

	reasons := make(map[uuid.UUID]domain.UnscheduledReason)
	for _, u := range res.Unscheduled {
		reasons[u.TaskID] = u.Reason
	}
	assert.Equal(t, domain.UnscheduledDependencyMissing, reasons[orphan.ID()])
	assert.Equal(t, domain.UnscheduledDependencyCycle, reasons[idA])
	assert.Equal(t, domain.UnscheduledDependencyCycle, reasons[idB])
}

func TestGenerateDependencyOrder(t *testing.T) {
	a := taskSpec{id: testID(1), estimate: intPtr(200)}.build()
	b := taskSpec{id: testID(2), estimate: intPtr(60), deps: []uuid.UUID{a.ID()}}.build()

	res := Generate(Input{
		UserID:   testUser,
		Start:    day(0),
		MaxDays:  5,
		Location: time.UTC,
		Settings: smallDaySettings(),
		Tasks:    []*domain.Task{a, b},
	})

	infos := make(map[uuid.UUID]domain.TaskScheduleInfo)
	for _, info := range res.TaskInfos {
		infos[info.TaskID] = info
	}
	require.NotNil(t, infos[a.ID()].PlannedEnd)
	require.NotNil(t, infos[b.ID()].PlannedStart)
	assert.False(t, infos[b.ID()].PlannedStart.Before(*infos[a.ID()].PlannedEnd))
}

func TestGenerateDeterministic(t *testing.T) {
	tasks := []*domain.Task{
		taskSpec{id: testID(1), estimate: intPtr(90)}.build(),
		taskSpec{id: testID(2), estimate: intPtr(90)}.build(),
		taskSpec{id: testID(3), estimate: intPtr(90), energy: domain.EnergyLow}.build(),
		taskSpec{id: testID(4), estimate: intPtr(45), due: timePtr(day(3))}.build(),
	}
	input := Input{
		UserID:   testUser,
		Start:    day(0),
		MaxDays:  5,
		Location: time.UTC,
		Settings: testSettings("09:00", "18:00", 1, 5),
		Tasks:    tasks,
	}

	first := Generate(input)
	second := Generate(input)

	assert.Equal(t, first.Days, second.Days)
	assert.Equal(t, first.BlocksByDate, second.BlocksByDate)
	assert.Equal(t, first.TaskInfos, second.TaskInfos)
}

func TestGenerateTimezone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 01:00-02:00 UTC is 10:00-11:00 in Tokyo.
	meeting := taskSpec{
		id:    testID(1),
		fixed: true,
		start: timePtr(time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)),
		end:   timePtr(time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)),
	}.build()
	task := taskSpec{id: testID(2), estimate: intPtr(60)}.build()

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, tokyo)
	res := Generate(Input{
		UserID:   testUser,
		Start:    start,
		MaxDays:  1,
		Location: tokyo,
		Settings: testSettings("09:00", "18:00", 1, 0),
		Tasks:    []*domain.Task{meeting, task},
	})

	assert.Equal(t, 60, res.Days[0].MeetingMinutes)

	blocks := res.BlocksByDate["2026-03-02"]
	require.Len(t, blocks, 2)
	assert.Equal(t, domain.BlockKindMeeting, blocks[0].Kind)
	// The first free minute after the meeting in local time is 11:00 JST,
	// but work starts at 09:00 JST, so the auto block leads the meeting.
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, tokyo).String(), blocks[1].Start.String())
}

func TestMeetingDay(t *testing.T) {
	meeting := taskSpec{
		id:    testID(1),
		fixed: true,
		start: timePtr(at(0, 10, 0)),
		end:   timePtr(at(0, 11, 0)),
	}.build()

	settings := testSettings("09:00", "18:00", 1, 0)
	got, blocks := MeetingDay(settings, []*domain.Task{meeting}, day(0), time.UTC)

	assert.Equal(t, day(0), got.Date)
	assert.Equal(t, 480, got.CapacityMinutes)
	assert.Equal(t, 60, got.MeetingMinutes)
	assert.Equal(t, 0, got.AllocatedMinutes)
	assert.Empty(t, got.TaskAllocations)

	require.Len(t, blocks, 1)
	assert.Equal(t, domain.BlockKindMeeting, blocks[0].Kind)
	assert.Equal(t, at(0, 10, 0), blocks[0].Start)
}

func TestGenerateBreakGapCarryKeepsDayAggregates(t *testing.T) {
	// Two 90-minute tasks fill a 180-minute day exactly at the capacity
	// level; the break gap between them eats ten minutes of timeline, so
	// the tail of the second task renders on the next morning while its
	// allocation stays on the day it was packed onto.
	a := taskSpec{id: testID(1), estimate: intPtr(90)}.build()
	b := taskSpec{id: testID(2), estimate: intPtr(90)}.build()

	res := Generate(Input{
		UserID:   testUser,
		Start:    day(0),
		MaxDays:  2,
		Location: time.UTC,
		Settings: testSettings("09:00", "12:00", 0, 10),
		Tasks:    []*domain.Task{a, b},
	})

	assert.Equal(t, []uuid.UUID{a.ID(), b.ID()}, allocationsOf(res.Days[0]))
	assert.Equal(t, 180, res.Days[0].AllocatedMinutes)
	assert.Empty(t, res.Days[1].TaskAllocations)

	first := res.BlocksByDate[domain.DateKey(day(0))]
	require.Len(t, first, 2)
	assert.Equal(t, at(0, 10, 40), first[1].Start)
	assert.Equal(t, at(0, 12, 0), first[1].End)

	carried := res.BlocksByDate[domain.DateKey(day(1))]
	require.Len(t, carried, 1)
	assert.Equal(t, b.ID(), carried[0].TaskID)
	assert.Equal(t, at(1, 9, 0), carried[0].Start)
	assert.Equal(t, at(1, 9, 10), carried[0].End)
}

func assertNoAutoOverlap(t *testing.T, blocks []domain.ScheduleTimeBlock) {
	t.Helper()
	for i, a := range blocks {
		if a.Kind != domain.BlockKindAuto || a.IsGhost() {
			continue
		}
		for _, b := range blocks[i+1:] {
			if b.Kind != domain.BlockKindAuto || b.IsGhost() {
				continue
			}
			assert.False(t, a.OverlapsWith(b), "blocks %s and %s overlap", a.TaskID, b.TaskID)
		}
	}
}
