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

// SQLiteScheduleSettingsRepository implements
// domain.ScheduleSettingsRepository using SQLite.
type SQLiteScheduleSettingsRepository struct {
	dbConn *sql.DB
}

// NewSQLiteScheduleSettingsRepository creates a new SQLite settings repository.
func NewSQLiteScheduleSettingsRepository(dbConn *sql.DB) *SQLiteScheduleSettingsRepository {
	return &SQLiteScheduleSettingsRepository{dbConn: dbConn}
}

// getQuerier returns the appropriate querier (transaction or connection) based on context.
func (r *SQLiteScheduleSettingsRepository) getQuerier(ctx context.Context) sqliteQuerier {
	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return r.dbConn
}

// Get returns the user's settings, or (nil, nil) when never saved.
func (r *SQLiteScheduleSettingsRepository) Get(ctx context.Context, userID uuid.UUID) (*domain.ScheduleSettings, error) {
	query := `
		SELECT weekly_work_hours, buffer_hours, break_after_task_minutes, created_at, updated_at
		FROM schedule_settings
		WHERE user_id = ?
	`

	var (
		weekly               string
		createdAt, updatedAt string
	)
	settings := domain.ScheduleSettings{UserID: userID}
	err := r.getQuerier(ctx).QueryRowContext(ctx, query, userID.String()).Scan(
		&weekly,
		&settings.BufferHours,
		&settings.BreakAfterTaskMinutes,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(weekly), &settings.WeeklyWorkHours); err != nil {
		return nil, fmt.Errorf("decoding weekly work hours: %w", err)
	}
	if settings.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if settings.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Save creates or replaces the user's settings.
func (r *SQLiteScheduleSettingsRepository) Save(ctx context.Context, settings *domain.ScheduleSettings) error {
	weekly, err := json.Marshal(settings.WeeklyWorkHours)
	if err != nil {
		return fmt.Errorf("encoding weekly work hours: %w", err)
	}

	query := `
		INSERT INTO schedule_settings (
			user_id, weekly_work_hours, buffer_hours, break_after_task_minutes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			weekly_work_hours = excluded.weekly_work_hours,
			buffer_hours = excluded.buffer_hours,
			break_after_task_minutes = excluded.break_after_task_minutes,
			updated_at = excluded.updated_at
	`
	_, err = r.getQuerier(ctx).ExecContext(ctx, query,
		settings.UserID.String(),
		string(weekly),
		settings.BufferHours,
		settings.BreakAfterTaskMinutes,
		settings.CreatedAt.UTC().Format(time.RFC3339Nano),
		settings.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}
