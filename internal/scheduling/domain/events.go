package domain

import (
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/mugi0227/nagi-sub000/internal/shared/domain"
)

const (
	AggregateType = "DailySchedulePlan"

	RoutingKeyPlanGenerated  = "scheduling.plan.generated"
	RoutingKeyTimeBlockMoved = "scheduling.plan.block_moved"
)

// PlanGenerated is emitted once per persisted generation (one plan group).
type PlanGenerated struct {
	sharedDomain.BaseEvent
	UserID    uuid.UUID `json:"user_id"`
	StartDate string    `json:"start_date"`
	Days      int       `json:"days"`
	TaskCount int       `json:"task_count"`
	FromNow   bool      `json:"from_now"`
}

// NewPlanGenerated creates a PlanGenerated event for a plan group.
func NewPlanGenerated(planGroupID, userID uuid.UUID, startDate time.Time, days, taskCount int, fromNow bool) PlanGenerated {
	return PlanGenerated{
		BaseEvent: sharedDomain.NewBaseEvent(planGroupID, AggregateType, RoutingKeyPlanGenerated),
		UserID:    userID,
		StartDate: DateKey(startDate),
		Days:      days,
		TaskCount: taskCount,
		FromNow:   fromNow,
	}
}

// TimeBlockMoved is emitted when a stored block is moved or resized.
type TimeBlockMoved struct {
	sharedDomain.BaseEvent
	UserID       uuid.UUID `json:"user_id"`
	TaskID       uuid.UUID `json:"task_id"`
	OriginalDate string    `json:"original_date"`
	NewStart     time.Time `json:"new_start"`
	NewEnd       time.Time `json:"new_end"`
	CrossDay     bool      `json:"cross_day"`
}

// NewTimeBlockMoved creates a TimeBlockMoved event for a plan row.
func NewTimeBlockMoved(planID, userID, taskID uuid.UUID, originalDate time.Time, newStart, newEnd time.Time, crossDay bool) TimeBlockMoved {
	return TimeBlockMoved{
		BaseEvent:    sharedDomain.NewBaseEvent(planID, AggregateType, RoutingKeyTimeBlockMoved),
		UserID:       userID,
		TaskID:       taskID,
		OriginalDate: DateKey(originalDate),
		NewStart:     newStart,
		NewEnd:       newEnd,
		CrossDay:     crossDay,
	}
}
