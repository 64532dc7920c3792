package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrTimeBlockNotFound = errors.New("time block not found")

// BlockKind distinguishes fixed meetings from scheduler-placed work.
type BlockKind string

const (
	BlockKindMeeting BlockKind = "meeting"
	BlockKindAuto    BlockKind = "auto"
)

// ScheduleTimeBlock is one contiguous wall-clock slot in a day's plan. It is
// a value stored inside the plan row, not an entity of its own.
type ScheduleTimeBlock struct {
	TaskID     uuid.UUID  `json:"task_id"`
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
	Kind       BlockKind  `json:"kind"`
	Status     Status     `json:"status"`
	PinnedDate *time.Time `json:"pinned_date,omitempty"`
}

// NewScheduleTimeBlock validates the range and builds a block.
func NewScheduleTimeBlock(taskID uuid.UUID, start, end time.Time, kind BlockKind, status Status) (ScheduleTimeBlock, error) {
	if !end.After(start) {
		return ScheduleTimeBlock{}, ErrInvalidTimeRange
	}
	return ScheduleTimeBlock{
		TaskID: taskID,
		Start:  start,
		End:    end,
		Kind:   kind,
		Status: status,
	}, nil
}

// Duration returns the block length.
func (b ScheduleTimeBlock) Duration() time.Duration {
	return b.End.Sub(b.Start)
}

// DurationMinutes returns the block length in whole minutes.
func (b ScheduleTimeBlock) DurationMinutes() int {
	return int(b.End.Sub(b.Start) / time.Minute)
}

// OverlapsWith reports whether two blocks share any wall-clock time.
func (b ScheduleTimeBlock) OverlapsWith(other ScheduleTimeBlock) bool {
	return b.Start.Before(other.End) && b.End.After(other.Start)
}

// IsGhost reports whether the block is a completed past placement kept for
// display only. Ghosts never consume capacity and may overlap live blocks.
func (b ScheduleTimeBlock) IsGhost() bool {
	return b.Kind == BlockKindAuto && b.Status == StatusDone
}
