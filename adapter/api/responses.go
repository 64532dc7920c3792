package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/queries"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/services"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

// Wire types. Dates are YYYY-MM-DD strings, instants RFC 3339 UTC.

type timeBlockResponse struct {
	TaskID     uuid.UUID  `json:"task_id"`
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
	Kind       string     `json:"kind"`
	Status     string     `json:"status"`
	Ghost      bool       `json:"ghost,omitempty"`
	PinnedDate *time.Time `json:"pinned_date,omitempty"`
}

type allocationResponse struct {
	TaskID  uuid.UUID `json:"task_id"`
	Minutes int       `json:"minutes"`
}

type planDayResponse struct {
	Date                  string               `json:"date"`
	CapacityMinutes       int                  `json:"capacity_minutes"`
	AllocatedMinutes      int                  `json:"allocated_minutes"`
	AvailableMinutes      int                  `json:"available_minutes"`
	MeetingMinutes        int                  `json:"meeting_minutes"`
	OverflowMinutes       int                  `json:"overflow_minutes"`
	Allocations           []allocationResponse `json:"allocations"`
	TimeBlocks            []timeBlockResponse  `json:"time_blocks"`
	PinnedOverflowTaskIDs []uuid.UUID          `json:"pinned_overflow_task_ids,omitempty"`
}

type taskInfoResponse struct {
	TaskID        uuid.UUID  `json:"task_id"`
	Title         string     `json:"title"`
	PlannedStart  *time.Time `json:"planned_start,omitempty"`
	PlannedEnd    *time.Time `json:"planned_end,omitempty"`
	TotalMinutes  int        `json:"total_minutes"`
	PriorityScore float64    `json:"priority_score"`
}

type unscheduledResponse struct {
	TaskID uuid.UUID `json:"task_id"`
	Reason string    `json:"reason"`
}

type excludedResponse struct {
	TaskID uuid.UUID `json:"task_id"`
	Title  string    `json:"title"`
	Reason string    `json:"reason"`
}

type pendingChangeResponse struct {
	TaskID     uuid.UUID `json:"task_id"`
	Title      string    `json:"title"`
	ChangeType string    `json:"change_type"`
}

type scheduleResponse struct {
	State          string                  `json:"state"`
	PlanGroupID    uuid.UUID               `json:"plan_group_id,omitempty"`
	Timezone       string                  `json:"timezone"`
	GeneratedAt    time.Time               `json:"generated_at"`
	Days           []planDayResponse       `json:"days"`
	TaskInfos      []taskInfoResponse      `json:"task_infos"`
	Unscheduled    []unscheduledResponse   `json:"unscheduled"`
	Excluded       []excludedResponse      `json:"excluded"`
	PendingChanges []pendingChangeResponse `json:"pending_changes"`
}

type todayTaskResponse struct {
	TaskID  uuid.UUID           `json:"task_id"`
	Title   string              `json:"title"`
	Minutes int                 `json:"minutes"`
	Blocks  []timeBlockResponse `json:"blocks"`
}

type todayResponse struct {
	Date                  string              `json:"date"`
	State                 string              `json:"state"`
	CapacityMinutes       int                 `json:"capacity_minutes"`
	AllocatedMinutes      int                 `json:"allocated_minutes"`
	AvailableMinutes      int                 `json:"available_minutes"`
	MeetingMinutes        int                 `json:"meeting_minutes"`
	OverflowMinutes       int                 `json:"overflow_minutes"`
	Tasks                 []todayTaskResponse `json:"tasks"`
	Meetings              []timeBlockResponse `json:"meetings"`
	Completed             []timeBlockResponse `json:"completed"`
	PinnedOverflowTaskIDs []uuid.UUID         `json:"pinned_overflow_task_ids,omitempty"`
}

type settingsResponse struct {
	WeeklyWorkHours       []domain.WorkdayHours `json:"weekly_work_hours"`
	BufferHours           float64               `json:"buffer_hours"`
	BreakAfterTaskMinutes int                   `json:"break_after_task_minutes"`
	UpdatedAt             time.Time             `json:"updated_at"`
}

func toScheduleResponse(dto *queries.ScheduleViewDTO) scheduleResponse {
	resp := scheduleResponse{
		State:          dto.State,
		PlanGroupID:    dto.PlanGroupID,
		Timezone:       dto.Timezone,
		GeneratedAt:    dto.GeneratedAt,
		Days:           make([]planDayResponse, 0, len(dto.Days)),
		TaskInfos:      make([]taskInfoResponse, 0, len(dto.TaskInfos)),
		Unscheduled:    make([]unscheduledResponse, 0, len(dto.Unscheduled)),
		Excluded:       make([]excludedResponse, 0, len(dto.Excluded)),
		PendingChanges: make([]pendingChangeResponse, 0, len(dto.PendingChanges)),
	}
	for _, d := range dto.Days {
		resp.Days = append(resp.Days, toPlanDayResponse(d))
	}
	for _, info := range dto.TaskInfos {
		resp.TaskInfos = append(resp.TaskInfos, taskInfoResponse(info))
	}
	for _, u := range dto.Unscheduled {
		resp.Unscheduled = append(resp.Unscheduled, unscheduledResponse(u))
	}
	for _, e := range dto.Excluded {
		resp.Excluded = append(resp.Excluded, excludedResponse(e))
	}
	for _, c := range dto.PendingChanges {
		resp.PendingChanges = append(resp.PendingChanges, pendingChangeResponse(c))
	}
	return resp
}

func toScheduleViewResponse(view *services.PlanView) scheduleResponse {
	return toScheduleResponse(queries.ScheduleViewFromPlan(view))
}

func toPlanDayResponse(d queries.PlanDayDTO) planDayResponse {
	day := planDayResponse{
		Date:                  d.Date,
		CapacityMinutes:       d.CapacityMinutes,
		AllocatedMinutes:      d.AllocatedMinutes,
		AvailableMinutes:      d.AvailableMinutes,
		MeetingMinutes:        d.MeetingMinutes,
		OverflowMinutes:       d.OverflowMinutes,
		Allocations:           make([]allocationResponse, 0, len(d.Allocations)),
		TimeBlocks:            make([]timeBlockResponse, 0, len(d.TimeBlocks)),
		PinnedOverflowTaskIDs: d.PinnedOverflowTaskIDs,
	}
	for _, a := range d.Allocations {
		day.Allocations = append(day.Allocations, allocationResponse(a))
	}
	for _, b := range d.TimeBlocks {
		day.TimeBlocks = append(day.TimeBlocks, timeBlockResponse(b))
	}
	return day
}

func toTodayResponse(dto *queries.TodayViewDTO) todayResponse {
	resp := todayResponse{
		Date:                  dto.Date,
		State:                 dto.State,
		CapacityMinutes:       dto.CapacityMinutes,
		AllocatedMinutes:      dto.AllocatedMinutes,
		AvailableMinutes:      dto.AvailableMinutes,
		MeetingMinutes:        dto.MeetingMinutes,
		OverflowMinutes:       dto.OverflowMinutes,
		Tasks:                 make([]todayTaskResponse, 0, len(dto.Tasks)),
		Meetings:              make([]timeBlockResponse, 0, len(dto.Meetings)),
		Completed:             make([]timeBlockResponse, 0, len(dto.Completed)),
		PinnedOverflowTaskIDs: dto.PinnedOverflowTaskIDs,
	}
	for _, task := range dto.Tasks {
		t := todayTaskResponse{
			TaskID:  task.TaskID,
			Title:   task.Title,
			Minutes: task.Minutes,
			Blocks:  make([]timeBlockResponse, 0, len(task.Blocks)),
		}
		for _, b := range task.Blocks {
			t.Blocks = append(t.Blocks, timeBlockResponse(b))
		}
		resp.Tasks = append(resp.Tasks, t)
	}
	for _, m := range dto.Meetings {
		resp.Meetings = append(resp.Meetings, timeBlockResponse(m))
	}
	for _, c := range dto.Completed {
		resp.Completed = append(resp.Completed, timeBlockResponse(c))
	}
	return resp
}

func toSettingsResponse(dto *queries.SettingsDTO) settingsResponse {
	return settingsResponse{
		WeeklyWorkHours:       dto.WeeklyWorkHours,
		BufferHours:           dto.BufferHours,
		BreakAfterTaskMinutes: dto.BreakAfterTaskMinutes,
		UpdatedAt:             dto.UpdatedAt,
	}
}
