package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

var testUser = uuid.MustParse("7b8a3c21-54d0-4f6e-9a2b-0c1d2e3f4a5b")

// testID yields stable ids whose string order follows n.
func testID(n byte) uuid.UUID {
	return uuid.UUID{15: n}
}

// day returns midnight UTC of the nth day from Monday 2026-03-02.
func day(n int) time.Time {
	return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// at returns an instant on the nth test day.
func at(n, hour, minute int) time.Time {
	return time.Date(2026, 3, 2+n, hour, minute, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func timePtr(v time.Time) *time.Time { return &v }

// taskSpec builds rehydrated tasks with sensible defaults so tests only
// state what they care about.
type taskSpec struct {
	id         uuid.UUID
	projectID  *uuid.UUID
	parentID   *uuid.UUID
	title      string
	status     domain.Status
	importance domain.Level
	urgency    domain.Level
	energy     domain.EnergyLevel
	estimate   *int
	due        *time.Time
	snb        *time.Time
	pinned     *time.Time
	fixed      bool
	start      *time.Time
	end        *time.Time
	allDay     bool
	noSameDay  bool
	minGap     int
	deps       []uuid.UUID
	createdAt  time.Time
}

func (s taskSpec) build() *domain.Task {
	if s.title == "" {
		s.title = "task " + s.id.String()[:8]
	}
	if s.status == "" {
		s.status = domain.StatusTodo
	}
	if s.importance == "" {
		s.importance = domain.LevelMedium
	}
	if s.urgency == "" {
		s.urgency = domain.LevelMedium
	}
	if s.energy == "" {
		s.energy = domain.EnergyHigh
	}
	if s.createdAt.IsZero() {
		s.createdAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return domain.RehydrateTask(
		s.id, testUser, s.projectID, s.parentID,
		s.title, s.status, s.importance, s.urgency, s.energy,
		s.estimate, 0,
		s.due, s.snb, s.pinned,
		s.fixed, s.start, s.end, s.allDay,
		!s.noSameDay, s.minGap,
		false, 0,
		s.deps, nil,
		s.createdAt, s.createdAt,
	)
}

// testSettings enables every weekday with the same window.
func testSettings(start, end string, bufferHours float64, breakMinutes int) *domain.ScheduleSettings {
	s := domain.DefaultScheduleSettings(testUser)
	for i := range s.WeeklyWorkHours {
		s.WeeklyWorkHours[i] = domain.WorkdayHours{Enabled: true, Start: start, End: end}
	}
	s.BufferHours = bufferHours
	s.BreakAfterTaskMinutes = breakMinutes
	return s
}
