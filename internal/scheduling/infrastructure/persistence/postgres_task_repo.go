package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
	sharedPersistence "github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/persistence"
)

const taskColumns = `
	id, user_id, project_id, parent_id, title, status,
	importance, urgency, energy_level, estimated_minutes, progress_percent,
	due_date, start_not_before, pinned_date,
	is_fixed_time, start_time, end_time, is_all_day,
	same_day_allowed, min_gap_days, touchpoint_enabled, touchpoint_interval_days,
	dependency_ids, completed_at, created_at, updated_at
`

// PostgresTaskRepository implements domain.TaskRepository using PostgreSQL.
type PostgresTaskRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTaskRepository creates a new PostgreSQL task repository.
func NewPostgresTaskRepository(pool *pgxpool.Pool) *PostgresTaskRepository {
	return &PostgresTaskRepository{pool: pool}
}

// List returns the tasks owned by the user, optionally including DONE.
func (r *PostgresTaskRepository) List(ctx context.Context, userID uuid.UUID, includeDone bool, limit int) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`
	if !includeDone {
		query += ` AND status != 'DONE'`
	}
	query += ` ORDER BY created_at`

	args := []any{userID}
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTasks(rows)
}

// Get returns one task, or (nil, nil) when absent.
func (r *PostgresTaskRepository) Get(ctx context.Context, userID, taskID uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1 AND id = $2`

	row := taskRow{}
	err := scanTaskRow(sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx, query, userID, taskID), &row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toDomain()
}

// Update applies a patch and returns the updated task, or (nil, nil) when the
// task is absent.
func (r *PostgresTaskRepository) Update(ctx context.Context, userID, taskID uuid.UUID, patch domain.TaskPatch) (*domain.Task, error) {
	task, err := r.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}
	if err := applyTaskPatch(task, patch); err != nil {
		return nil, err
	}

	_, err = sharedPersistence.Executor(ctx, r.pool).Exec(ctx,
		`UPDATE tasks SET start_time = $3, end_time = $4, estimated_minutes = $5, updated_at = $6
		 WHERE user_id = $1 AND id = $2`,
		userID, taskID, task.StartTime(), task.EndTime(), task.EstimatedMinutes(), task.UpdatedAt(),
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListCompletedInPeriod returns DONE tasks completed within [start, end),
// optionally restricted to one project.
func (r *PostgresTaskRepository) ListCompletedInPeriod(ctx context.Context, userID uuid.UUID, start, end time.Time, projectID *uuid.UUID) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE user_id = $1 AND status = 'DONE' AND completed_at >= $2 AND completed_at < $3
	`
	args := []any{userID, start, end}
	if projectID != nil {
		query += fmt.Sprintf(` AND project_id = $%d`, len(args)+1)
		args = append(args, *projectID)
	}
	query += ` ORDER BY completed_at`

	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTasks(rows)
}

// applyTaskPatch mutates the loaded task through its write-back setters so
// domain validation stays in one place.
func applyTaskPatch(task *domain.Task, patch domain.TaskPatch) error {
	if patch.StartTime != nil && patch.EndTime != nil {
		if err := task.SetTimeRange(*patch.StartTime, *patch.EndTime); err != nil {
			return err
		}
	}
	if patch.EstimatedMinutes != nil {
		if err := task.SetEstimatedMinutes(*patch.EstimatedMinutes); err != nil {
			return err
		}
	}
	return nil
}

func scanTaskRow(row pgx.Row, out *taskRow) error {
	return row.Scan(
		&out.ID,
		&out.UserID,
		&out.ProjectID,
		&out.ParentID,
		&out.Title,
		&out.Status,
		&out.Importance,
		&out.Urgency,
		&out.EnergyLevel,
		&out.EstimatedMinutes,
		&out.ProgressPercent,
		&out.DueDate,
		&out.StartNotBefore,
		&out.PinnedDate,
		&out.IsFixedTime,
		&out.StartTime,
		&out.EndTime,
		&out.IsAllDay,
		&out.SameDayAllowed,
		&out.MinGapDays,
		&out.TouchpointEnabled,
		&out.TouchpointIntervalDays,
		&out.DependencyIDs,
		&out.CompletedAt,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
}

func scanTasks(rows pgx.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		row := taskRow{}
		if err := scanTaskRow(rows, &row); err != nil {
			return nil, err
		}
		task, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}
