package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
	sharedPersistence "github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/persistence"
)

// The collaborator repositories are read models over tables owned by other
// parts of the system; scheduling never writes them.

// PostgresProjectRepository implements domain.ProjectRepository using PostgreSQL.
type PostgresProjectRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresProjectRepository creates a new PostgreSQL project repository.
func NewPostgresProjectRepository(pool *pgxpool.Pool) *PostgresProjectRepository {
	return &PostgresProjectRepository{pool: pool}
}

// List returns the user's projects.
func (r *PostgresProjectRepository) List(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Project, error) {
	query := `SELECT id, user_id, name, priority, visibility FROM projects WHERE user_id = $1 ORDER BY created_at`
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

	var projects []*domain.Project
	for rows.Next() {
		p := domain.Project{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Priority, &p.Visibility); err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return projects, nil
}

// PostgresUserRepository implements domain.UserRepository using PostgreSQL.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgreSQL user repository.
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Get returns the user, or (nil, nil) when absent.
func (r *PostgresUserRepository) Get(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	query := `SELECT id, email, name, timezone FROM users WHERE id = $1`

	u := domain.User{}
	err := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx, query, userID).Scan(
		&u.ID, &u.Email, &u.Name, &u.Timezone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// List returns all users; the periodic driver iterates them.
func (r *PostgresUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT id, email, name, timezone FROM users ORDER BY created_at`

	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u := domain.User{}
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Timezone); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// PostgresTaskAssignmentRepository implements domain.TaskAssignmentRepository
// using PostgreSQL.
type PostgresTaskAssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTaskAssignmentRepository creates a new PostgreSQL assignment repository.
func NewPostgresTaskAssignmentRepository(pool *pgxpool.Pool) *PostgresTaskAssignmentRepository {
	return &PostgresTaskAssignmentRepository{pool: pool}
}

// ListForAssignee returns assignments naming the user as assignee.
func (r *PostgresTaskAssignmentRepository) ListForAssignee(ctx context.Context, userID uuid.UUID) ([]*domain.TaskAssignment, error) {
	query := `
		SELECT id, task_id, assignee_id, created_at
		FROM task_assignments
		WHERE assignee_id = $1
		ORDER BY created_at
	`
	return r.list(ctx, query, userID)
}

// ListAllForUser returns every assignment on the user's tasks.
func (r *PostgresTaskAssignmentRepository) ListAllForUser(ctx context.Context, userID uuid.UUID) ([]*domain.TaskAssignment, error) {
	query := `
		SELECT a.id, a.task_id, a.assignee_id, a.created_at
		FROM task_assignments a
		JOIN tasks t ON t.id = a.task_id
		WHERE t.user_id = $1
		ORDER BY a.created_at
	`
	return r.list(ctx, query, userID)
}

func (r *PostgresTaskAssignmentRepository) list(ctx context.Context, query string, userID uuid.UUID) ([]*domain.TaskAssignment, error) {
	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []*domain.TaskAssignment
	for rows.Next() {
		a := domain.TaskAssignment{}
		if err := rows.Scan(&a.ID, &a.TaskID, &a.AssigneeID, &a.CreatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

// PostgresScheduleSnapshotRepository implements
// domain.ScheduleSnapshotRepository using PostgreSQL.
type PostgresScheduleSnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresScheduleSnapshotRepository creates a new PostgreSQL snapshot repository.
func NewPostgresScheduleSnapshotRepository(pool *pgxpool.Pool) *PostgresScheduleSnapshotRepository {
	return &PostgresScheduleSnapshotRepository{pool: pool}
}

// GetActive returns the newest active snapshot for the user (and project,
// when given), or (nil, nil) when none exists.
func (r *PostgresScheduleSnapshotRepository) GetActive(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) (*domain.ScheduleSnapshot, error) {
	query := `
		SELECT id, user_id, project_id, is_active, task_windows, created_at
		FROM schedule_snapshots
		WHERE user_id = $1 AND is_active
	`
	args := []any{userID}
	if projectID != nil {
		query += fmt.Sprintf(` AND project_id = $%d`, len(args)+1)
		args = append(args, *projectID)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	s := domain.ScheduleSnapshot{}
	var windows []byte
	err := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx, query, args...).Scan(
		&s.ID, &s.UserID, &s.ProjectID, &s.IsActive, &windows, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(windows, &s.TaskWindows); err != nil {
		return nil, fmt.Errorf("decoding task windows: %w", err)
	}
	return &s, nil
}
