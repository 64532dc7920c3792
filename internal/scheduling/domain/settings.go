package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSettingsNotFound    = errors.New("schedule settings not found")
	ErrInvalidWeeklyHours  = errors.New("weekly work hours must have exactly 7 entries")
	ErrInvalidClockString  = errors.New("clock values must be HH:MM")
	ErrInvalidWorkWindow   = errors.New("work start must be before work end")
	ErrInvalidBufferHours  = errors.New("buffer hours cannot be negative")
	ErrInvalidBreakMinutes = errors.New("break-after-task minutes cannot be negative")
)

const (
	defaultWorkStart     = "09:00"
	defaultWorkEnd       = "18:00"
	defaultBufferHours   = 1.0
	defaultBreakMinutes  = 5
	minutesPerDay        = 1440
	weeklyWorkHoursCount = 7
)

// BreakWindow is a pause inside a workday, in "HH:MM" clock strings.
type BreakWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WorkdayHours describes one weekday's working window.
type WorkdayHours struct {
	Enabled bool          `json:"enabled"`
	Start   string        `json:"start"`
	End     string        `json:"end"`
	Breaks  []BreakWindow `json:"breaks,omitempty"`
}

// ScheduleSettings is the per-user scheduling configuration. WeeklyWorkHours
// always carries 7 entries indexed by time.Weekday (0 = Sunday).
type ScheduleSettings struct {
	UserID                uuid.UUID
	WeeklyWorkHours       []WorkdayHours
	BufferHours           float64
	BreakAfterTaskMinutes int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// DefaultWeeklyWorkHours returns 9:00–18:00, no breaks, every day.
func DefaultWeeklyWorkHours() []WorkdayHours {
	hours := make([]WorkdayHours, weeklyWorkHoursCount)
	for i := range hours {
		hours[i] = WorkdayHours{Enabled: true, Start: defaultWorkStart, End: defaultWorkEnd}
	}
	return hours
}

// DefaultScheduleSettings returns the settings applied when a user has never
// saved any.
func DefaultScheduleSettings(userID uuid.UUID) *ScheduleSettings {
	now := time.Now().UTC()
	return &ScheduleSettings{
		UserID:                userID,
		WeeklyWorkHours:       DefaultWeeklyWorkHours(),
		BufferHours:           defaultBufferHours,
		BreakAfterTaskMinutes: defaultBreakMinutes,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// Normalized returns a copy safe for capacity computation: a missing or
// wrong-length weekly list falls back to the default week. Individual
// malformed entries are left as-is; the capacity model degrades them to
// empty days.
func (s *ScheduleSettings) Normalized() *ScheduleSettings {
	out := *s
	if len(s.WeeklyWorkHours) != weeklyWorkHoursCount {
		out.WeeklyWorkHours = DefaultWeeklyWorkHours()
	} else {
		out.WeeklyWorkHours = make([]WorkdayHours, weeklyWorkHoursCount)
		copy(out.WeeklyWorkHours, s.WeeklyWorkHours)
	}
	return &out
}

// DayHours returns the entry governing the given weekday.
func (s *ScheduleSettings) DayHours(weekday time.Weekday) WorkdayHours {
	if len(s.WeeklyWorkHours) != weeklyWorkHoursCount {
		return WorkdayHours{Enabled: true, Start: defaultWorkStart, End: defaultWorkEnd}
	}
	return s.WeeklyWorkHours[int(weekday)]
}

// Validate enforces the write-path contract. The read path stays tolerant;
// only saves are rejected.
func (s *ScheduleSettings) Validate() error {
	if len(s.WeeklyWorkHours) != weeklyWorkHoursCount {
		return ErrInvalidWeeklyHours
	}
	if s.BufferHours < 0 {
		return ErrInvalidBufferHours
	}
	if s.BreakAfterTaskMinutes < 0 {
		return ErrInvalidBreakMinutes
	}
	for i, day := range s.WeeklyWorkHours {
		if !day.Enabled {
			continue
		}
		start, ok := ClockMinutes(day.Start)
		if !ok {
			return fmt.Errorf("weekday %d start %q: %w", i, day.Start, ErrInvalidClockString)
		}
		end, ok := ClockMinutes(day.End)
		if !ok {
			return fmt.Errorf("weekday %d end %q: %w", i, day.End, ErrInvalidClockString)
		}
		if start >= end {
			return fmt.Errorf("weekday %d: %w", i, ErrInvalidWorkWindow)
		}
		for _, br := range day.Breaks {
			if _, ok := ClockMinutes(br.Start); !ok {
				return fmt.Errorf("weekday %d break start %q: %w", i, br.Start, ErrInvalidClockString)
			}
			if _, ok := ClockMinutes(br.End); !ok {
				return fmt.Errorf("weekday %d break end %q: %w", i, br.End, ErrInvalidClockString)
			}
		}
	}
	return nil
}

// ClockMinutes parses "HH:MM" into minutes since midnight. The second result
// is false for anything malformed; callers degrade rather than fail.
func ClockMinutes(clock string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) != 2 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	mins, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	if hours < 0 || mins < 0 || mins > 59 {
		return 0, false
	}
	total := hours*60 + mins
	if total > minutesPerDay {
		return 0, false
	}
	return total, true
}
