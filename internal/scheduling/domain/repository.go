package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskRepository is the scheduler's view of task storage. Find-style methods
// return (nil, nil) when nothing matches.
type TaskRepository interface {
	// List returns the tasks owned by the user, optionally including DONE.
	List(ctx context.Context, userID uuid.UUID, includeDone bool, limit int) ([]*Task, error)

	// Get returns one task, or (nil, nil) when absent.
	Get(ctx context.Context, userID, taskID uuid.UUID) (*Task, error)

	// Update applies a patch and returns the updated task.
	Update(ctx context.Context, userID, taskID uuid.UUID, patch TaskPatch) (*Task, error)

	// ListCompletedInPeriod returns DONE tasks completed within [start, end),
	// optionally restricted to one project.
	ListCompletedInPeriod(ctx context.Context, userID uuid.UUID, start, end time.Time, projectID *uuid.UUID) ([]*Task, error)
}

// ProjectRepository exposes the project fields scheduling reads.
type ProjectRepository interface {
	List(ctx context.Context, userID uuid.UUID, limit int) ([]*Project, error)
}

// TaskAssignmentRepository resolves task assignments for "my tasks" filtering.
type TaskAssignmentRepository interface {
	// ListForAssignee returns assignments naming the user as assignee.
	ListForAssignee(ctx context.Context, userID uuid.UUID) ([]*TaskAssignment, error)

	// ListAllForUser returns every assignment on the user's tasks.
	ListAllForUser(ctx context.Context, userID uuid.UUID) ([]*TaskAssignment, error)
}

// ScheduleSnapshotRepository reads externally produced plan baselines.
type ScheduleSnapshotRepository interface {
	// GetActive returns the active snapshot for the user (and project, when
	// given), or (nil, nil) when none exists.
	GetActive(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) (*ScheduleSnapshot, error)
}

// ScheduleSettingsRepository stores per-user schedule settings.
type ScheduleSettingsRepository interface {
	// Get returns the user's settings, or (nil, nil) when never saved.
	Get(ctx context.Context, userID uuid.UUID) (*ScheduleSettings, error)

	// Save creates or replaces the user's settings.
	Save(ctx context.Context, settings *ScheduleSettings) error
}

// DailySchedulePlanRepository stores generated plan rows, one per
// (user, plan date).
type DailySchedulePlanRepository interface {
	// GetByDate returns the plan row for the date, or (nil, nil).
	GetByDate(ctx context.Context, userID uuid.UUID, date time.Time) (*DailySchedulePlan, error)

	// ListByRange returns rows with start <= plan_date < end, ordered by date.
	ListByRange(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]*DailySchedulePlan, error)

	// UpsertMany replaces the user's plan from the earliest date in the batch
	// onward, atomically: rows on or after that date are deleted, then the
	// batch is inserted.
	UpsertMany(ctx context.Context, userID uuid.UUID, plans []*DailySchedulePlan) error

	// UpdateTimeBlock rewrites one live block in the date's row. Returns
	// ErrPlanNotFound or ErrTimeBlockNotFound without side effects.
	UpdateTimeBlock(ctx context.Context, userID uuid.UUID, date time.Time, taskID uuid.UUID, newStart, newEnd time.Time) error

	// MoveTimeBlockAcrossDays detaches the block from the original date's row
	// and attaches it, with the new range, to the target date's row. A missing
	// target row is created inside the same transaction, inheriting the source
	// row's plan group and timezone.
	MoveTimeBlockAcrossDays(ctx context.Context, userID uuid.UUID, originalDate, targetDate time.Time, taskID uuid.UUID, newStart, newEnd time.Time) error

	// UpdateTaskSnapshotForGroup refreshes one task's snapshot in every row of
	// the plan group.
	UpdateTaskSnapshotForGroup(ctx context.Context, userID, planGroupID uuid.UUID, snapshot TaskPlanSnapshot) error
}

// UserRepository exposes the user fields scheduling reads.
type UserRepository interface {
	// Get returns the user, or (nil, nil) when absent.
	Get(ctx context.Context, userID uuid.UUID) (*User, error)

	// List returns all users; the periodic driver iterates them.
	List(ctx context.Context) ([]*User, error)
}
