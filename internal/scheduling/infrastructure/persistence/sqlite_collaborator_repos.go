package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
	sharedPersistence "github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/persistence"
)

// SQLiteProjectRepository implements domain.ProjectRepository using SQLite.
type SQLiteProjectRepository struct {
	dbConn *sql.DB
}

// NewSQLiteProjectRepository creates a new SQLite project repository.
func NewSQLiteProjectRepository(dbConn *sql.DB) *SQLiteProjectRepository {
	return &SQLiteProjectRepository{dbConn: dbConn}
}

func (r *SQLiteProjectRepository) getQuerier(ctx context.Context) sqliteQuerier {
	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return r.dbConn
}

// List returns the user's projects.
func (r *SQLiteProjectRepository) List(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Project, error) {
	query := `SELECT id, user_id, name, priority, visibility FROM projects WHERE user_id = ? ORDER BY created_at`
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

	var projects []*domain.Project
	for rows.Next() {
		var id, owner, name, visibility string
		var priority int
		if err := rows.Scan(&id, &owner, &name, &priority, &visibility); err != nil {
			return nil, err
		}
		p, err := sqliteProject(id, owner, name, priority, visibility)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return projects, nil
}

func sqliteProject(id, owner, name string, priority int, visibility string) (*domain.Project, error) {
	projectID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing project id: %w", err)
	}
	userID, err := uuid.Parse(owner)
	if err != nil {
		return nil, fmt.Errorf("parsing project user id: %w", err)
	}
	return &domain.Project{
		ID:         projectID,
		UserID:     userID,
		Name:       name,
		Priority:   priority,
		Visibility: domain.ProjectVisibility(visibility),
	}, nil
}

// SQLiteUserRepository implements domain.UserRepository using SQLite.
type SQLiteUserRepository struct {
	dbConn *sql.DB
}

// NewSQLiteUserRepository creates a new SQLite user repository.
func NewSQLiteUserRepository(dbConn *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{dbConn: dbConn}
}

func (r *SQLiteUserRepository) getQuerier(ctx context.Context) sqliteQuerier {
	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return r.dbConn
}

// Get returns the user, or (nil, nil) when absent.
func (r *SQLiteUserRepository) Get(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	query := `SELECT id, email, name, timezone FROM users WHERE id = ?`

	var id, email, name, timezone string
	err := r.getQuerier(ctx).QueryRowContext(ctx, query, userID.String()).Scan(&id, &email, &name, &timezone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sqliteUser(id, email, name, timezone)
}

// List returns all users; the periodic driver iterates them.
func (r *SQLiteUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT id, email, name, timezone FROM users ORDER BY created_at`

	rows, err := r.getQuerier(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		var id, email, name, timezone string
		if err := rows.Scan(&id, &email, &name, &timezone); err != nil {
			return nil, err
		}
		u, err := sqliteUser(id, email, name, timezone)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func sqliteUser(id, email, name, timezone string) (*domain.User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing user id: %w", err)
	}
	return &domain.User{ID: userID, Email: email, Name: name, Timezone: timezone}, nil
}

// SQLiteTaskAssignmentRepository implements domain.TaskAssignmentRepository
// using SQLite.
type SQLiteTaskAssignmentRepository struct {
	dbConn *sql.DB
}

// NewSQLiteTaskAssignmentRepository creates a new SQLite assignment repository.
func NewSQLiteTaskAssignmentRepository(dbConn *sql.DB) *SQLiteTaskAssignmentRepository {
	return &SQLiteTaskAssignmentRepository{dbConn: dbConn}
}

func (r *SQLiteTaskAssignmentRepository) getQuerier(ctx context.Context) sqliteQuerier {
	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return r.dbConn
}

// ListForAssignee returns assignments naming the user as assignee.
func (r *SQLiteTaskAssignmentRepository) ListForAssignee(ctx context.Context, userID uuid.UUID) ([]*domain.TaskAssignment, error) {
	query := `
		SELECT id, task_id, assignee_id, created_at
		FROM task_assignments
		WHERE assignee_id = ?
		ORDER BY created_at
	`
	return r.list(ctx, query, userID)
}

// ListAllForUser returns every assignment on the user's tasks.
func (r *SQLiteTaskAssignmentRepository) ListAllForUser(ctx context.Context, userID uuid.UUID) ([]*domain.TaskAssignment, error) {
	query := `
		SELECT a.id, a.task_id, a.assignee_id, a.created_at
		FROM task_assignments a
		JOIN tasks t ON t.id = a.task_id
		WHERE t.user_id = ?
		ORDER BY a.created_at
	`
	return r.list(ctx, query, userID)
}

func (r *SQLiteTaskAssignmentRepository) list(ctx context.Context, query string, userID uuid.UUID) ([]*domain.TaskAssignment, error) {
	rows, err := r.getQuerier(ctx).QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []*domain.TaskAssignment
	for rows.Next() {
		var id, taskID, assigneeID, createdAt string
		if err := rows.Scan(&id, &taskID, &assigneeID, &createdAt); err != nil {
			return nil, err
		}
		a, err := sqliteAssignment(id, taskID, assigneeID, createdAt)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

func sqliteAssignment(id, taskID, assigneeID, createdAt string) (*domain.TaskAssignment, error) {
	assignmentID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing assignment id: %w", err)
	}
	task, err := uuid.Parse(taskID)
	if err != nil {
		return nil, fmt.Errorf("parsing assignment task id: %w", err)
	}
	assignee, err := uuid.Parse(assigneeID)
	if err != nil {
		return nil, fmt.Errorf("parsing assignee id: %w", err)
	}
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing assignment created_at: %w", err)
	}
	return &domain.TaskAssignment{ID: assignmentID, TaskID: task, AssigneeID: assignee, CreatedAt: created}, nil
}

// SQLiteScheduleSnapshotRepository implements
// domain.ScheduleSnapshotRepository using SQLite.
type SQLiteScheduleSnapshotRepository struct {
	dbConn *sql.DB
}

// NewSQLiteScheduleSnapshotRepository creates a new SQLite snapshot repository.
func NewSQLiteScheduleSnapshotRepository(dbConn *sql.DB) *SQLiteScheduleSnapshotRepository {
	return &SQLiteScheduleSnapshotRepository{dbConn: dbConn}
}

func (r *SQLiteScheduleSnapshotRepository) getQuerier(ctx context.Context) sqliteQuerier {
	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return r.dbConn
}

// GetActive returns the newest active snapshot for the user (and project,
// when given), or (nil, nil) when none exists.
func (r *SQLiteScheduleSnapshotRepository) GetActive(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) (*domain.ScheduleSnapshot, error) {
	query := `
		SELECT id, user_id, project_id, is_active, task_windows, created_at
		FROM schedule_snapshots
		WHERE user_id = ? AND is_active = 1
	`
	args := []any{userID.String()}
	if projectID != nil {
		query += ` AND project_id = ?`
		args = append(args, projectID.String())
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	var id, owner, windows, createdAt string
	var project sql.NullString
	var active int64
	err := r.getQuerier(ctx).QueryRowContext(ctx, query, args...).Scan(
		&id, &owner, &project, &active, &windows, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	snapshotID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot id: %w", err)
	}
	ownerID, err := uuid.Parse(owner)
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot user id: %w", err)
	}
	projID, err := parseNullableUUID(project)
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot project id: %w", err)
	}
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot created_at: %w", err)
	}

	s := domain.ScheduleSnapshot{
		ID:        snapshotID,
		UserID:    ownerID,
		ProjectID: projID,
		IsActive:  active != 0,
		CreatedAt: created,
	}
	if err := json.Unmarshal([]byte(windows), &s.TaskWindows); err != nil {
		return nil, fmt.Errorf("decoding task windows: %w", err)
	}
	return &s, nil
}
