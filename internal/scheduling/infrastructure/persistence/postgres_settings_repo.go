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

// PostgresScheduleSettingsRepository implements
// domain.ScheduleSettingsRepository using PostgreSQL.
type PostgresScheduleSettingsRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresScheduleSettingsRepository creates a new PostgreSQL settings repository.
func NewPostgresScheduleSettingsRepository(pool *pgxpool.Pool) *PostgresScheduleSettingsRepository {
	return &PostgresScheduleSettingsRepository{pool: pool}
}

// Get returns the user's settings, or (nil, nil) when never saved.
func (r *PostgresScheduleSettingsRepository) Get(ctx context.Context, userID uuid.UUID) (*domain.ScheduleSettings, error) {
	query := `
		SELECT weekly_work_hours, buffer_hours, break_after_task_minutes, created_at, updated_at
		FROM schedule_settings
		WHERE user_id = $1
	`

	settings := domain.ScheduleSettings{UserID: userID}
	var weekly []byte
	err := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx, query, userID).Scan(
		&weekly,
		&settings.BufferHours,
		&settings.BreakAfterTaskMinutes,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(weekly, &settings.WeeklyWorkHours); err != nil {
		return nil, fmt.Errorf("decoding weekly work hours: %w", err)
	}
	return &settings, nil
}

// Save creates or replaces the user's settings.
func (r *PostgresScheduleSettingsRepository) Save(ctx context.Context, settings *domain.ScheduleSettings) error {
	weekly, err := json.Marshal(settings.WeeklyWorkHours)
	if err != nil {
		return fmt.Errorf("encoding weekly work hours: %w", err)
	}

	query := `
		INSERT INTO schedule_settings (
			user_id, weekly_work_hours, buffer_hours, break_after_task_minutes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			weekly_work_hours = EXCLUDED.weekly_work_hours,
			buffer_hours = EXCLUDED.buffer_hours,
			break_after_task_minutes = EXCLUDED.break_after_task_minutes,
			updated_at = EXCLUDED.updated_at
	`
	_, err = sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query,
		settings.UserID,
		weekly,
		settings.BufferHours,
		settings.BreakAfterTaskMinutes,
		settings.CreatedAt,
		settings.UpdatedAt,
	)
	return err
}
