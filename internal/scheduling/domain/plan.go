package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/mugi0227/nagi-sub000/internal/shared/domain"
)

var (
	ErrPlanNotFound      = errors.New("daily schedule plan not found")
	ErrPlanHorizonInPast = errors.New("plan horizon ends before today")
)

// TaskAllocation is a per-day minute budget placed against a task.
type TaskAllocation struct {
	TaskID  uuid.UUID `json:"task_id"`
	Minutes int       `json:"minutes"`
}

// ScheduleDay aggregates one day's capacity accounting.
//
// AllocatedMinutes always equals the sum of TaskAllocations;
// OverflowMinutes = max(0, allocated − capacity);
// AvailableMinutes = max(0, capacity − allocated).
type ScheduleDay struct {
	Date             time.Time        `json:"date"`
	CapacityMinutes  int              `json:"capacity_minutes"`
	AllocatedMinutes int              `json:"allocated_minutes"`
	OverflowMinutes  int              `json:"overflow_minutes"`
	MeetingMinutes   int              `json:"meeting_minutes"`
	AvailableMinutes int              `json:"available_minutes"`
	TaskAllocations  []TaskAllocation `json:"task_allocations"`
}

// AddAllocation appends a minute budget and keeps the aggregates consistent.
func (d *ScheduleDay) AddAllocation(taskID uuid.UUID, minutes int) {
	if minutes <= 0 {
		return
	}
	for i := range d.TaskAllocations {
		if d.TaskAllocations[i].TaskID == taskID {
			d.TaskAllocations[i].Minutes += minutes
			d.recompute()
			return
		}
	}
	d.TaskAllocations = append(d.TaskAllocations, TaskAllocation{TaskID: taskID, Minutes: minutes})
	d.recompute()
}

func (d *ScheduleDay) recompute() {
	total := 0
	for _, a := range d.TaskAllocations {
		total += a.Minutes
	}
	d.AllocatedMinutes = total
	d.OverflowMinutes = 0
	if total > d.CapacityMinutes {
		d.OverflowMinutes = total - d.CapacityMinutes
	}
	d.AvailableMinutes = d.CapacityMinutes - total
	if d.AvailableMinutes < 0 {
		d.AvailableMinutes = 0
	}
}

// SetMeetingMinutes records the day's effective meeting load and refreshes
// the derived fields.
func (d *ScheduleDay) SetMeetingMinutes(minutes int) {
	if minutes < 0 {
		minutes = 0
	}
	d.MeetingMinutes = minutes
	d.recompute()
}

// TaskScheduleInfo summarises where one task landed across the horizon.
type TaskScheduleInfo struct {
	TaskID        uuid.UUID  `json:"task_id"`
	Title         string     `json:"title"`
	PlannedStart  *time.Time `json:"planned_start,omitempty"`
	PlannedEnd    *time.Time `json:"planned_end,omitempty"`
	TotalMinutes  int        `json:"total_minutes"`
	PriorityScore float64    `json:"priority_score"`
	ParentID      *uuid.UUID `json:"parent_id,omitempty"`
	ProjectID     *uuid.UUID `json:"project_id,omitempty"`
}

// TaskPlanSnapshot freezes one task's scheduling-relevant state at
// generation time. Fingerprint mismatches later mark the plan stale.
type TaskPlanSnapshot struct {
	TaskID      uuid.UUID `json:"task_id"`
	Title       string    `json:"title"`
	Fingerprint string    `json:"fingerprint"`
}

// UnscheduledReason explains why a candidate task received no allocation.
type UnscheduledReason string

const (
	UnscheduledDependencyMissing    UnscheduledReason = "dependency_missing"
	UnscheduledDependencyUnresolved UnscheduledReason = "dependency_unresolved"
	UnscheduledDependencyCycle      UnscheduledReason = "dependency_cycle"
	UnscheduledMaxDaysExceeded      UnscheduledReason = "max_days_exceeded"
)

// UnscheduledTask pairs a task with the reason it was left out.
type UnscheduledTask struct {
	TaskID uuid.UUID         `json:"task_id"`
	Reason UnscheduledReason `json:"reason"`
}

// ExcludedReason explains why a task never became a packing candidate.
type ExcludedReason string

const (
	ExcludedWaiting    ExcludedReason = "waiting"
	ExcludedParentTask ExcludedReason = "parent_task"
)

// ExcludedTask pairs a task with its exclusion reason.
type ExcludedTask struct {
	TaskID uuid.UUID      `json:"task_id"`
	Title  string         `json:"title"`
	Reason ExcludedReason `json:"reason"`
}

// PlanState classifies a plan lookup result.
type PlanState string

const (
	PlanStatePlanned  PlanState = "planned"
	PlanStateStale    PlanState = "stale"
	PlanStateForecast PlanState = "forecast"
)

// ChangeType classifies one entry of a stale plan's pending changes.
type ChangeType string

const (
	ChangeTypeNew     ChangeType = "new"
	ChangeTypeUpdated ChangeType = "updated"
	ChangeTypeRemoved ChangeType = "removed"
)

// PendingChange is one detected drift between a stored plan and live tasks.
type PendingChange struct {
	TaskID     uuid.UUID  `json:"task_id"`
	Title      string     `json:"title"`
	ChangeType ChangeType `json:"change_type"`
}

// PlanParams captures the materialisation parameters of a generation. The
// params fingerprint treats two requests as equivalent only when every field
// here matches.
type PlanParams struct {
	StartDate             string  `json:"start_date"`
	MaxDays               int     `json:"max_days"`
	FilterByAssignee      bool    `json:"filter_by_assignee"`
	ApplyPlanConstraints  bool    `json:"apply_plan_constraints"`
	WeeklyCapacityMinutes []int   `json:"weekly_capacity_minutes"`
	BufferHours           float64 `json:"buffer_hours"`
	BreakAfterTaskMinutes int     `json:"break_after_task_minutes"`
}

// DailySchedulePlan is the persisted plan row for one (user, date) pair. All
// rows produced by one generation share a PlanGroupID; regeneration replaces
// the whole group.
type DailySchedulePlan struct {
	sharedDomain.BaseAggregateRoot
	userID                uuid.UUID
	planDate              time.Time
	planGroupID           uuid.UUID
	timezone              string
	day                   ScheduleDay
	taskSnapshots         []TaskPlanSnapshot
	unscheduledTasks      []UnscheduledTask
	excludedTasks         []ExcludedTask
	timeBlocks            []ScheduleTimeBlock
	pinnedOverflowTaskIDs []uuid.UUID
	planParams            PlanParams
	generatedAt           time.Time
}

// NewDailySchedulePlan materialises one generated day.
func NewDailySchedulePlan(
	userID uuid.UUID,
	planDate time.Time,
	planGroupID uuid.UUID,
	timezone string,
	day ScheduleDay,
	taskSnapshots []TaskPlanSnapshot,
	unscheduledTasks []UnscheduledTask,
	excludedTasks []ExcludedTask,
	timeBlocks []ScheduleTimeBlock,
	pinnedOverflowTaskIDs []uuid.UUID,
	planParams PlanParams,
) *DailySchedulePlan {
	return &DailySchedulePlan{
		BaseAggregateRoot:     sharedDomain.NewBaseAggregateRoot(),
		userID:                userID,
		planDate:              planDate,
		planGroupID:           planGroupID,
		timezone:              timezone,
		day:                   day,
		taskSnapshots:         taskSnapshots,
		unscheduledTasks:      unscheduledTasks,
		excludedTasks:         excludedTasks,
		timeBlocks:            timeBlocks,
		pinnedOverflowTaskIDs: pinnedOverflowTaskIDs,
		planParams:            planParams,
		generatedAt:           time.Now().UTC(),
	}
}

// RehydrateDailySchedulePlan recreates a plan row from persisted state.
func RehydrateDailySchedulePlan(
	id uuid.UUID,
	userID uuid.UUID,
	planDate time.Time,
	planGroupID uuid.UUID,
	timezone string,
	day ScheduleDay,
	taskSnapshots []TaskPlanSnapshot,
	unscheduledTasks []UnscheduledTask,
	excludedTasks []ExcludedTask,
	timeBlocks []ScheduleTimeBlock,
	pinnedOverflowTaskIDs []uuid.UUID,
	planParams PlanParams,
	generatedAt time.Time,
	createdAt, updatedAt time.Time,
) *DailySchedulePlan {
	baseEntity := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)
	return &DailySchedulePlan{
		BaseAggregateRoot:     sharedDomain.RehydrateBaseAggregateRoot(baseEntity),
		userID:                userID,
		planDate:              planDate,
		planGroupID:           planGroupID,
		timezone:              timezone,
		day:                   day,
		taskSnapshots:         taskSnapshots,
		unscheduledTasks:      unscheduledTasks,
		excludedTasks:         excludedTasks,
		timeBlocks:            timeBlocks,
		pinnedOverflowTaskIDs: pinnedOverflowTaskIDs,
		planParams:            planParams,
		generatedAt:           generatedAt,
	}
}

// Getters

func (p *DailySchedulePlan) UserID() uuid.UUID                  { return p.userID }
func (p *DailySchedulePlan) PlanDate() time.Time                { return p.planDate }
func (p *DailySchedulePlan) PlanGroupID() uuid.UUID             { return p.planGroupID }
func (p *DailySchedulePlan) Timezone() string                   { return p.timezone }
func (p *DailySchedulePlan) Day() ScheduleDay                   { return p.day }
func (p *DailySchedulePlan) TaskSnapshots() []TaskPlanSnapshot  { return p.taskSnapshots }
func (p *DailySchedulePlan) UnscheduledTasks() []UnscheduledTask {
	return p.unscheduledTasks
}
func (p *DailySchedulePlan) ExcludedTasks() []ExcludedTask       { return p.excludedTasks }
func (p *DailySchedulePlan) TimeBlocks() []ScheduleTimeBlock     { return p.timeBlocks }
func (p *DailySchedulePlan) PinnedOverflowTaskIDs() []uuid.UUID  { return p.pinnedOverflowTaskIDs }
func (p *DailySchedulePlan) PlanParams() PlanParams              { return p.planParams }
func (p *DailySchedulePlan) GeneratedAt() time.Time              { return p.generatedAt }

// FindTimeBlock returns the first live (non-ghost) block for the task.
func (p *DailySchedulePlan) FindTimeBlock(taskID uuid.UUID) (ScheduleTimeBlock, bool) {
	for _, b := range p.timeBlocks {
		if b.TaskID == taskID && !b.IsGhost() {
			return b, true
		}
	}
	return ScheduleTimeBlock{}, false
}

// UpdateTimeBlock rewrites the live block for the task in place.
func (p *DailySchedulePlan) UpdateTimeBlock(taskID uuid.UUID, newStart, newEnd time.Time) error {
	if !newEnd.After(newStart) {
		return ErrInvalidTimeRange
	}
	for i := range p.timeBlocks {
		if p.timeBlocks[i].TaskID == taskID && !p.timeBlocks[i].IsGhost() {
			p.timeBlocks[i].Start = newStart
			p.timeBlocks[i].End = newEnd
			p.Touch()
			return nil
		}
	}
	return ErrTimeBlockNotFound
}

// RemoveTimeBlock detaches the live block for the task, returning it.
func (p *DailySchedulePlan) RemoveTimeBlock(taskID uuid.UUID) (ScheduleTimeBlock, error) {
	for i := range p.timeBlocks {
		if p.timeBlocks[i].TaskID == taskID && !p.timeBlocks[i].IsGhost() {
			block := p.timeBlocks[i]
			p.timeBlocks = append(p.timeBlocks[:i], p.timeBlocks[i+1:]...)
			p.Touch()
			return block, nil
		}
	}
	return ScheduleTimeBlock{}, ErrTimeBlockNotFound
}

// AddTimeBlock appends a block moved in from another day.
func (p *DailySchedulePlan) AddTimeBlock(block ScheduleTimeBlock) {
	p.timeBlocks = append(p.timeBlocks, block)
	p.Touch()
}

// ReplaceTaskSnapshot refreshes one task's snapshot so the stored plan keeps
// matching the task after a write-back.
func (p *DailySchedulePlan) ReplaceTaskSnapshot(snapshot TaskPlanSnapshot) {
	for i := range p.taskSnapshots {
		if p.taskSnapshots[i].TaskID == snapshot.TaskID {
			p.taskSnapshots[i] = snapshot
			p.Touch()
			return
		}
	}
	p.taskSnapshots = append(p.taskSnapshots, snapshot)
	p.Touch()
}
