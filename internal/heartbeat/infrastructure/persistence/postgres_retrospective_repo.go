package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mugi0227/nagi-sub000/internal/heartbeat/domain"
	sharedPersistence "github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/persistence"
)

// PostgresRetrospectiveRepository implements domain.RetrospectiveRepository
// using PostgreSQL.
type PostgresRetrospectiveRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRetrospectiveRepository creates a new PostgreSQL retrospective repository.
func NewPostgresRetrospectiveRepository(pool *pgxpool.Pool) *PostgresRetrospectiveRepository {
	return &PostgresRetrospectiveRepository{pool: pool}
}

// GetLatest returns the retrospective with the newest period end, or
// (nil, nil) when the user has none.
func (r *PostgresRetrospectiveRepository) GetLatest(ctx context.Context, userID uuid.UUID) (*domain.Retrospective, error) {
	query := `
		SELECT id, user_id, period_start, period_end, completed_count, total_minutes, summary, created_at
		FROM retrospectives
		WHERE user_id = $1
		ORDER BY period_end DESC
		LIMIT 1
	`
	retro := domain.Retrospective{}
	err := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx, query, userID).Scan(
		&retro.ID,
		&retro.UserID,
		&retro.PeriodStart,
		&retro.PeriodEnd,
		&retro.CompletedCount,
		&retro.TotalMinutes,
		&retro.Summary,
		&retro.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &retro, nil
}

// Save inserts the retrospective. The unique (user_id, period_end) index
// rejects closing the same boundary twice.
func (r *PostgresRetrospectiveRepository) Save(ctx context.Context, retro *domain.Retrospective) error {
	query := `
		INSERT INTO retrospectives (
			id, user_id, period_start, period_end, completed_count, total_minutes, summary, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query,
		retro.ID,
		retro.UserID,
		retro.PeriodStart,
		retro.PeriodEnd,
		retro.CompletedCount,
		retro.TotalMinutes,
		retro.Summary,
		retro.CreatedAt,
	)
	return err
}
