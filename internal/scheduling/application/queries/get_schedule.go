package queries

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/services"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

// TimeBlockDTO is a data transfer object for one plan time block.
type TimeBlockDTO struct {
	TaskID     uuid.UUID
	Start      time.Time
	End        time.Time
	Kind       string
	Status     string
	Ghost      bool
	PinnedDate *time.Time
}

// AllocationDTO is one task's minute budget on a day.
type AllocationDTO struct {
	TaskID  uuid.UUID
	Minutes int
}

// PlanDayDTO is a data transfer object for one day of a plan.
type PlanDayDTO struct {
	Date                  string
	CapacityMinutes       int
	AllocatedMinutes      int
	AvailableMinutes      int
	MeetingMinutes        int
	OverflowMinutes       int
	Allocations           []AllocationDTO
	TimeBlocks            []TimeBlockDTO
	PinnedOverflowTaskIDs []uuid.UUID
}

// TaskInfoDTO summarises one task's placement across the horizon.
type TaskInfoDTO struct {
	TaskID        uuid.UUID
	Title         string
	PlannedStart  *time.Time
	PlannedEnd    *time.Time
	TotalMinutes  int
	PriorityScore float64
}

// UnscheduledDTO names a task the packer could not place.
type UnscheduledDTO struct {
	TaskID uuid.UUID
	Reason string
}

// ExcludedDTO names a task that never became a candidate.
type ExcludedDTO struct {
	TaskID uuid.UUID
	Title  string
	Reason string
}

// PendingChangeDTO is one drift entry of a stale plan.
type PendingChangeDTO struct {
	TaskID     uuid.UUID
	Title      string
	ChangeType string
}

// ScheduleViewDTO is a data transfer object for a materialised plan.
type ScheduleViewDTO struct {
	State          string
	PlanGroupID    uuid.UUID
	Timezone       string
	GeneratedAt    time.Time
	Days           []PlanDayDTO
	TaskInfos      []TaskInfoDTO
	Unscheduled    []UnscheduledDTO
	Excluded       []ExcludedDTO
	PendingChanges []PendingChangeDTO
}

// GetScheduleQuery contains the parameters for materialising a plan.
type GetScheduleQuery struct {
	UserID               uuid.UUID
	Start                time.Time
	MaxDays              int
	FilterByAssignee     bool
	ApplyPlanConstraints bool
	Now                  time.Time
}

// QueryName implements application.Query.
func (GetScheduleQuery) QueryName() string { return "schedule.get_schedule" }

// GetScheduleHandler handles the GetScheduleQuery.
type GetScheduleHandler struct {
	planner *services.Planner
}

// NewGetScheduleHandler creates a new GetScheduleHandler.
func NewGetScheduleHandler(planner *services.Planner) *GetScheduleHandler {
	return &GetScheduleHandler{planner: planner}
}

// Handle executes the GetScheduleQuery. It never writes: a missing or
// incomplete plan materialises as a forecast.
func (h *GetScheduleHandler) Handle(ctx context.Context, query GetScheduleQuery) (*ScheduleViewDTO, error) {
	view, err := h.planner.Materialize(ctx, services.PlanRequest{
		UserID:               query.UserID,
		Start:                query.Start,
		MaxDays:              query.MaxDays,
		FilterByAssignee:     query.FilterByAssignee,
		ApplyPlanConstraints: query.ApplyPlanConstraints,
		Now:                  query.Now,
	})
	if err != nil {
		return nil, err
	}
	return toScheduleViewDTO(view), nil
}

// ScheduleViewFromPlan converts a materialised plan into the schedule DTO.
// Command handlers return *services.PlanView; adapters render it through
// the same mapping the query path uses.
func ScheduleViewFromPlan(view *services.PlanView) *ScheduleViewDTO {
	return toScheduleViewDTO(view)
}

func toScheduleViewDTO(view *services.PlanView) *ScheduleViewDTO {
	dto := &ScheduleViewDTO{
		State:          string(view.State),
		PlanGroupID:    view.PlanGroupID,
		Timezone:       view.Timezone,
		GeneratedAt:    view.GeneratedAt,
		Days:           make([]PlanDayDTO, 0, len(view.Days)),
		TaskInfos:      make([]TaskInfoDTO, 0, len(view.TaskInfos)),
		Unscheduled:    make([]UnscheduledDTO, 0, len(view.Unscheduled)),
		Excluded:       make([]ExcludedDTO, 0, len(view.Excluded)),
		PendingChanges: make([]PendingChangeDTO, 0, len(view.PendingChanges)),
	}
	for _, d := range view.Days {
		dto.Days = append(dto.Days, toPlanDayDTO(d))
	}
	for _, info := range view.TaskInfos {
		dto.TaskInfos = append(dto.TaskInfos, TaskInfoDTO{
			TaskID:        info.TaskID,
			Title:         info.Title,
			PlannedStart:  info.PlannedStart,
			PlannedEnd:    info.PlannedEnd,
			TotalMinutes:  info.TotalMinutes,
			PriorityScore: info.PriorityScore,
		})
	}
	for _, u := range view.Unscheduled {
		dto.Unscheduled = append(dto.Unscheduled, UnscheduledDTO{TaskID: u.TaskID, Reason: string(u.Reason)})
	}
	for _, e := range view.Excluded {
		dto.Excluded = append(dto.Excluded, ExcludedDTO{TaskID: e.TaskID, Title: e.Title, Reason: string(e.Reason)})
	}
	for _, c := range view.PendingChanges {
		dto.PendingChanges = append(dto.PendingChanges, PendingChangeDTO{TaskID: c.TaskID, Title: c.Title, ChangeType: string(c.ChangeType)})
	}
	return dto
}

func toPlanDayDTO(d services.PlanDay) PlanDayDTO {
	day := PlanDayDTO{
		Date:                  domain.DateKey(d.Date),
		CapacityMinutes:       d.Day.CapacityMinutes,
		AllocatedMinutes:      d.Day.AllocatedMinutes,
		AvailableMinutes:      d.Day.AvailableMinutes,
		MeetingMinutes:        d.Day.MeetingMinutes,
		OverflowMinutes:       d.Day.OverflowMinutes,
		Allocations:           make([]AllocationDTO, 0, len(d.Day.TaskAllocations)),
		TimeBlocks:            make([]TimeBlockDTO, 0, len(d.TimeBlocks)),
		PinnedOverflowTaskIDs: d.PinnedOverflowTaskIDs,
	}
	for _, a := range d.Day.TaskAllocations {
		day.Allocations = append(day.Allocations, AllocationDTO{TaskID: a.TaskID, Minutes: a.Minutes})
	}
	for _, b := range d.TimeBlocks {
		day.TimeBlocks = append(day.TimeBlocks, toTimeBlockDTO(b))
	}
	return day
}

func toTimeBlockDTO(b domain.ScheduleTimeBlock) TimeBlockDTO {
	return TimeBlockDTO{
		TaskID:     b.TaskID,
		Start:      b.Start,
		End:        b.End,
		Kind:       string(b.Kind),
		Status:     string(b.Status),
		Ghost:      b.IsGhost(),
		PinnedDate: b.PinnedDate,
	}
}
