package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/mugi0227/nagi-sub000/internal/shared/domain"
)

var (
	ErrEmptyTitle       = errors.New("task title cannot be empty")
	ErrTaskNotFound     = errors.New("task not found")
	ErrInvalidEstimate  = errors.New("estimated minutes must be positive")
	ErrInvalidTimeRange = errors.New("end time must be after start time")
)

// DefaultEstimateMinutes is assumed when a task subtree carries no estimate at all.
const DefaultEstimateMinutes = 60

// Status represents the task lifecycle state.
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusWaiting    Status = "WAITING"
	StatusDone       Status = "DONE"
)

// Valid reports whether the status is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusWaiting, StatusDone:
		return true
	default:
		return false
	}
}

// Level is a three-step scale used for both importance and urgency.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// Weight maps the level onto the 1/2/3 scoring scale.
func (l Level) Weight() int {
	switch l {
	case LevelHigh:
		return 3
	case LevelMedium:
		return 2
	default:
		return 1
	}
}

// EnergyLevel describes the kind of focus a task demands.
type EnergyLevel string

const (
	EnergyLow  EnergyLevel = "LOW"
	EnergyHigh EnergyLevel = "HIGH"
)

// Task is the scheduling view of a unit of work. The scheduler owns none of
// the task lifecycle; the only mutations it performs are the time-block
// write-back paths (SetTimeRange, SetEstimatedMinutes).
type Task struct {
	sharedDomain.BaseAggregateRoot
	userID                 uuid.UUID
	projectID              *uuid.UUID
	parentID               *uuid.UUID
	title                  string
	status                 Status
	importance             Level
	urgency                Level
	energyLevel            EnergyLevel
	estimatedMinutes       *int
	progressPercent        int
	dueDate                *time.Time
	startNotBefore         *time.Time
	pinnedDate             *time.Time
	isFixedTime            bool
	startTime              *time.Time
	endTime                *time.Time
	isAllDay               bool
	sameDayAllowed         bool
	minGapDays             int
	touchpointEnabled      bool
	touchpointIntervalDays int
	dependencyIDs          []uuid.UUID
	completedAt            *time.Time
}

// NewTask creates a task with scheduling defaults. Used by fixtures and by
// collaborating contexts; production task CRUD lives outside this engine.
func NewTask(userID uuid.UUID, title string) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	return &Task{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		userID:            userID,
		title:             title,
		status:            StatusTodo,
		importance:        LevelMedium,
		urgency:           LevelMedium,
		energyLevel:       EnergyHigh,
		sameDayAllowed:    true,
	}, nil
}

// RehydrateTask recreates a task from persisted state without raising events.
func RehydrateTask(
	id uuid.UUID,
	userID uuid.UUID,
	projectID *uuid.UUID,
	parentID *uuid.UUID,
	title string,
	status Status,
	importance Level,
	urgency Level,
	energyLevel EnergyLevel,
	estimatedMinutes *int,
	progressPercent int,
	dueDate *time.Time,
	startNotBefore *time.Time,
	pinnedDate *time.Time,
	isFixedTime bool,
	startTime, endTime *time.Time,
	isAllDay bool,
	sameDayAllowed bool,
	minGapDays int,
	touchpointEnabled bool,
	touchpointIntervalDays int,
	dependencyIDs []uuid.UUID,
	completedAt *time.Time,
	createdAt, updatedAt time.Time,
) *Task {
	baseEntity := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)
	return &Task{
		BaseAggregateRoot:      sharedDomain.RehydrateBaseAggregateRoot(baseEntity),
		userID:                 userID,
		projectID:              projectID,
		parentID:               parentID,
		title:                  title,
		status:                 status,
		importance:             importance,
		urgency:                urgency,
		energyLevel:            energyLevel,
		estimatedMinutes:       estimatedMinutes,
		progressPercent:        progressPercent,
		dueDate:                dueDate,
		startNotBefore:         startNotBefore,
		pinnedDate:             pinnedDate,
		isFixedTime:            isFixedTime,
		startTime:              startTime,
		endTime:                endTime,
		isAllDay:               isAllDay,
		sameDayAllowed:         sameDayAllowed,
		minGapDays:             minGapDays,
		touchpointEnabled:      touchpointEnabled,
		touchpointIntervalDays: touchpointIntervalDays,
		dependencyIDs:          dependencyIDs,
		completedAt:            completedAt,
	}
}

// Getters

func (t *Task) UserID() uuid.UUID           { return t.userID }
func (t *Task) ProjectID() *uuid.UUID       { return t.projectID }
func (t *Task) ParentID() *uuid.UUID        { return t.parentID }
func (t *Task) Title() string               { return t.title }
func (t *Task) Status() Status              { return t.status }
func (t *Task) Importance() Level           { return t.importance }
func (t *Task) Urgency() Level              { return t.urgency }
func (t *Task) EnergyLevel() EnergyLevel    { return t.energyLevel }
func (t *Task) EstimatedMinutes() *int      { return t.estimatedMinutes }
func (t *Task) ProgressPercent() int        { return t.progressPercent }
func (t *Task) DueDate() *time.Time         { return t.dueDate }
func (t *Task) StartNotBefore() *time.Time  { return t.startNotBefore }
func (t *Task) PinnedDate() *time.Time      { return t.pinnedDate }
func (t *Task) IsFixedTime() bool           { return t.isFixedTime }
func (t *Task) StartTime() *time.Time       { return t.startTime }
func (t *Task) EndTime() *time.Time         { return t.endTime }
func (t *Task) IsAllDay() bool              { return t.isAllDay }
func (t *Task) SameDayAllowed() bool        { return t.sameDayAllowed }
func (t *Task) MinGapDays() int             { return t.minGapDays }
func (t *Task) TouchpointEnabled() bool     { return t.touchpointEnabled }
func (t *Task) TouchpointIntervalDays() int { return t.touchpointIntervalDays }
func (t *Task) DependencyIDs() []uuid.UUID  { return t.dependencyIDs }
func (t *Task) CompletedAt() *time.Time     { return t.completedAt }

func (t *Task) IsDone() bool       { return t.status == StatusDone }
func (t *Task) IsWaiting() bool    { return t.status == StatusWaiting }
func (t *Task) IsInProgress() bool { return t.status == StatusInProgress }

// IsFixedMeeting reports whether the task occupies a concrete wall-clock
// range (a meeting in the block builder's sense).
func (t *Task) IsFixedMeeting() bool {
	if !t.isFixedTime {
		return false
	}
	return t.isAllDay || (t.startTime != nil && t.endTime != nil)
}

// SetTimeRange writes back a moved fixed-time range.
func (t *Task) SetTimeRange(start, end time.Time) error {
	if !end.After(start) {
		return ErrInvalidTimeRange
	}
	t.startTime = &start
	t.endTime = &end
	t.Touch()
	return nil
}

// SetEstimatedMinutes writes back a resized duration.
func (t *Task) SetEstimatedMinutes(minutes int) error {
	if minutes <= 0 {
		return ErrInvalidEstimate
	}
	t.estimatedMinutes = &minutes
	t.Touch()
	return nil
}

// MarkDone is a fixture helper for the heartbeat and retrospective paths.
func (t *Task) MarkDone(at time.Time) {
	t.status = StatusDone
	t.completedAt = &at
	t.Touch()
}

// TaskPatch carries the only task fields the scheduler ever writes. Nil
// fields are left unchanged by TaskRepository.Update.
type TaskPatch struct {
	StartTime        *time.Time
	EndTime          *time.Time
	EstimatedMinutes *int
}

// IsEmpty reports whether the patch would change nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.StartTime == nil && p.EndTime == nil && p.EstimatedMinutes == nil
}
