package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
	sharedPersistence "github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/persistence"
)

const sqliteTaskColumns = `
	id, user_id, project_id, parent_id, title, status,
	importance, urgency, energy_level, estimated_minutes, progress_percent,
	due_date, start_not_before, pinned_date,
	is_fixed_time, start_time, end_time, is_all_day,
	same_day_allowed, min_gap_days, touchpoint_enabled, touchpoint_interval_days,
	dependency_ids, completed_at, created_at, updated_at
`

// SQLiteTaskRepository implements domain.TaskRepository using SQLite.
type SQLiteTaskRepository struct {
	dbConn *sql.DB
}

// NewSQLiteTaskRepository creates a new SQLite task repository.
func NewSQLiteTaskRepository(dbConn *sql.DB) *SQLiteTaskRepository {
	return &SQLiteTaskRepository{dbConn: dbConn}
}

// getQuerier returns the appropriate querier (transaction or connection) based on context.
func (r *SQLiteTaskRepository) getQuerier(ctx context.Context) sqliteQuerier {
	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return r.dbConn
}

// List returns the tasks owned by the user, optionally including DONE.
func (r *SQLiteTaskRepository) List(ctx context.Context, userID uuid.UUID, includeDone bool, limit int) ([]*domain.Task, error) {
	query := `SELECT ` + sqliteTaskColumns + ` FROM tasks WHERE user_id = ?`
	if !includeDone {
		query += ` AND status != 'DONE'`
	}
	query += ` ORDER BY created_at`

	args := []any{userID.String()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.getQuerier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSQLiteTasks(rows)
}

// Get returns one task, or (nil, nil) when absent.
func (r *SQLiteTaskRepository) Get(ctx context.Context, userID, taskID uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + sqliteTaskColumns + ` FROM tasks WHERE user_id = ? AND id = ?`

	row := r.getQuerier(ctx).QueryRowContext(ctx, query, userID.String(), taskID.String())
	task, err := scanSQLiteTask(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return task, nil
}

// Update applies a patch and returns the updated task, or (nil, nil) when the
// task is absent.
func (r *SQLiteTaskRepository) Update(ctx context.Context, userID, taskID uuid.UUID, patch domain.TaskPatch) (*domain.Task, error) {
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

	_, err = r.getQuerier(ctx).ExecContext(ctx,
		`UPDATE tasks SET start_time = ?, end_time = ?, estimated_minutes = ?, updated_at = ?
		 WHERE user_id = ? AND id = ?`,
		nullableTimeText(task.StartTime()),
		nullableTimeText(task.EndTime()),
		nullableInt(task.EstimatedMinutes()),
		task.UpdatedAt().UTC().Format(time.RFC3339Nano),
		userID.String(),
		taskID.String(),
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListCompletedInPeriod returns DONE tasks completed within [start, end),
// optionally restricted to one project.
func (r *SQLiteTaskRepository) ListCompletedInPeriod(ctx context.Context, userID uuid.UUID, start, end time.Time, projectID *uuid.UUID) ([]*domain.Task, error) {
	query := `SELECT ` + sqliteTaskColumns + `
		FROM tasks
		WHERE user_id = ? AND status = 'DONE' AND completed_at >= ? AND completed_at < ?
	`
	args := []any{
		userID.String(),
		start.UTC().Format(time.RFC3339Nano),
		end.UTC().Format(time.RFC3339Nano),
	}
	if projectID != nil {
		query += ` AND project_id = ?`
		args = append(args, projectID.String())
	}
	query += ` ORDER BY completed_at`

	rows, err := r.getQuerier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSQLiteTasks(rows)
}

func scanSQLiteTasks(rows *sql.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanSQLiteTask(rows.Scan)
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

func scanSQLiteTask(scan func(dest ...any) error) (*domain.Task, error) {
	var (
		id, userID, title, status           string
		importance, urgency, energyLevel    string
		createdAt, updatedAt                string
		projectID, parentID                 sql.NullString
		dueDate, startNotBefore, pinnedDate sql.NullString
		startTime, endTime, completedAt     sql.NullString
		dependencyIDs                       sql.NullString
		estimatedMinutes                    sql.NullInt64
		progressPercent, minGapDays         int
		touchpointIntervalDays              int
		isFixedTime, isAllDay               int64
		sameDayAllowed, touchpointEnabled   int64
	)

	err := scan(
		&id,
		&userID,
		&projectID,
		&parentID,
		&title,
		&status,
		&importance,
		&urgency,
		&energyLevel,
		&estimatedMinutes,
		&progressPercent,
		&dueDate,
		&startNotBefore,
		&pinnedDate,
		&isFixedTime,
		&startTime,
		&endTime,
		&isAllDay,
		&sameDayAllowed,
		&minGapDays,
		&touchpointEnabled,
		&touchpointIntervalDays,
		&dependencyIDs,
		&completedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	row := taskRow{
		Title:                  title,
		Status:                 status,
		Importance:             importance,
		Urgency:                urgency,
		EnergyLevel:            energyLevel,
		ProgressPercent:        progressPercent,
		IsFixedTime:            isFixedTime != 0,
		IsAllDay:               isAllDay != 0,
		SameDayAllowed:         sameDayAllowed != 0,
		MinGapDays:             minGapDays,
		TouchpointEnabled:      touchpointEnabled != 0,
		TouchpointIntervalDays: touchpointIntervalDays,
	}
	if row.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if row.UserID, err = uuid.Parse(userID); err != nil {
		return nil, err
	}
	if row.ProjectID, err = parseNullableUUID(projectID); err != nil {
		return nil, err
	}
	if row.ParentID, err = parseNullableUUID(parentID); err != nil {
		return nil, err
	}
	if estimatedMinutes.Valid {
		minutes := int(estimatedMinutes.Int64)
		row.EstimatedMinutes = &minutes
	}
	if row.DueDate, err = parseNullableTime(dueDate); err != nil {
		return nil, err
	}
	if row.StartNotBefore, err = parseNullableTime(startNotBefore); err != nil {
		return nil, err
	}
	if row.PinnedDate, err = parseNullableTime(pinnedDate); err != nil {
		return nil, err
	}
	if row.StartTime, err = parseNullableTime(startTime); err != nil {
		return nil, err
	}
	if row.EndTime, err = parseNullableTime(endTime); err != nil {
		return nil, err
	}
	if row.CompletedAt, err = parseNullableTime(completedAt); err != nil {
		return nil, err
	}
	if dependencyIDs.Valid {
		row.DependencyIDs = []byte(dependencyIDs.String)
	}
	if row.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if row.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return row.toDomain()
}

// Nullable conversion helpers shared by the SQLite repositories.

func parseNullableUUID(s sql.NullString) (*uuid.UUID, error) {
	if !s.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableTimeText(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableUUIDText(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
