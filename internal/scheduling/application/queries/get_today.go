package queries

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/services"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

// TodayTaskDTO is one task on the today view with its blocks.
type TodayTaskDTO struct {
	TaskID  uuid.UUID
	Title   string
	Minutes int
	Blocks  []TimeBlockDTO
}

// TodayViewDTO is a data transfer object for a single day's plan.
type TodayViewDTO struct {
	Date                  string
	State                 string
	CapacityMinutes       int
	AllocatedMinutes      int
	AvailableMinutes      int
	MeetingMinutes        int
	OverflowMinutes       int
	Tasks                 []TodayTaskDTO
	Meetings              []TimeBlockDTO
	Completed             []TimeBlockDTO
	PinnedOverflowTaskIDs []uuid.UUID
}

// GetTodayQuery contains the parameters for the today view. A zero Date
// means the user's current local day.
type GetTodayQuery struct {
	UserID uuid.UUID
	Date   time.Time
	Now    time.Time
}

// QueryName implements application.Query.
func (GetTodayQuery) QueryName() string { return "schedule.get_today" }

// GetTodayHandler handles the GetTodayQuery.
type GetTodayHandler struct {
	planner *services.Planner
}

// NewGetTodayHandler creates a new GetTodayHandler.
func NewGetTodayHandler(planner *services.Planner) *GetTodayHandler {
	return &GetTodayHandler{planner: planner}
}

// Handle executes the GetTodayQuery. The stored row for the date is used
// when one exists; otherwise a one-day forecast is computed on the fly.
func (h *GetTodayHandler) Handle(ctx context.Context, query GetTodayQuery) (*TodayViewDTO, error) {
	view, err := h.planner.Materialize(ctx, services.PlanRequest{
		UserID:           query.UserID,
		Start:            query.Date,
		MaxDays:          1,
		FilterByAssignee: true,
		Now:              query.Now,
	})
	if err != nil {
		return nil, err
	}
	if len(view.Days) == 0 {
		return &TodayViewDTO{State: string(view.State)}, nil
	}
	return toTodayViewDTO(view), nil
}

func toTodayViewDTO(view *services.PlanView) *TodayViewDTO {
	day := view.Days[0]
	titles := make(map[uuid.UUID]string, len(view.TaskSnapshots))
	for _, s := range view.TaskSnapshots {
		titles[s.TaskID] = s.Title
	}

	dto := &TodayViewDTO{
		Date:                  domain.DateKey(day.Date),
		State:                 string(view.State),
		CapacityMinutes:       day.Day.CapacityMinutes,
		AllocatedMinutes:      day.Day.AllocatedMinutes,
		AvailableMinutes:      day.Day.AvailableMinutes,
		MeetingMinutes:        day.Day.MeetingMinutes,
		OverflowMinutes:       day.Day.OverflowMinutes,
		Tasks:                 make([]TodayTaskDTO, 0, len(day.Day.TaskAllocations)),
		PinnedOverflowTaskIDs: day.PinnedOverflowTaskIDs,
	}

	blocksByTask := make(map[uuid.UUID][]TimeBlockDTO)
	for _, b := range day.TimeBlocks {
		switch {
		case b.Kind == domain.BlockKindMeeting:
			dto.Meetings = append(dto.Meetings, toTimeBlockDTO(b))
		case b.IsGhost():
			dto.Completed = append(dto.Completed, toTimeBlockDTO(b))
		default:
			blocksByTask[b.TaskID] = append(blocksByTask[b.TaskID], toTimeBlockDTO(b))
		}
	}

	for _, a := range day.Day.TaskAllocations {
		dto.Tasks = append(dto.Tasks, TodayTaskDTO{
			TaskID:  a.TaskID,
			Title:   titles[a.TaskID],
			Minutes: a.Minutes,
			Blocks:  blocksByTask[a.TaskID],
		})
	}
	return dto
}
