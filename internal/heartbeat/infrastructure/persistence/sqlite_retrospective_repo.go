package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/heartbeat/domain"
	sharedPersistence "github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/persistence"
)

// SQLiteRetrospectiveRepository implements domain.RetrospectiveRepository
// using SQLite.
type SQLiteRetrospectiveRepository struct {
	dbConn *sql.DB
}

// NewSQLiteRetrospectiveRepository creates a new SQLite retrospective repository.
func NewSQLiteRetrospectiveRepository(dbConn *sql.DB) *SQLiteRetrospectiveRepository {
	return &SQLiteRetrospectiveRepository{dbConn: dbConn}
}

// getQuerier returns the appropriate querier (transaction or connection) based on context.
func (r *SQLiteRetrospectiveRepository) getQuerier(ctx context.Context) sqliteQuerier {
	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return r.dbConn
}

// GetLatest returns the retrospective with the newest period end, or
// (nil, nil) when the user has none.
func (r *SQLiteRetrospectiveRepository) GetLatest(ctx context.Context, userID uuid.UUID) (*domain.Retrospective, error) {
	query := `
		SELECT id, user_id, period_start, period_end, completed_count, total_minutes, summary, created_at
		FROM retrospectives
		WHERE user_id = ?
		ORDER BY period_end DESC
		LIMIT 1
	`
	var (
		id, owner                         string
		periodStart, periodEnd, createdAt string
	)
	retro := domain.Retrospective{}
	err := r.getQuerier(ctx).QueryRowContext(ctx, query, userID.String()).Scan(
		&id,
		&owner,
		&periodStart,
		&periodEnd,
		&retro.CompletedCount,
		&retro.TotalMinutes,
		&retro.Summary,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if retro.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if retro.UserID, err = uuid.Parse(owner); err != nil {
		return nil, err
	}
	if retro.PeriodStart, err = time.Parse(time.RFC3339Nano, periodStart); err != nil {
		return nil, err
	}
	if retro.PeriodEnd, err = time.Parse(time.RFC3339Nano, periodEnd); err != nil {
		return nil, err
	}
	if retro.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	return &retro, nil
}

// Save inserts the retrospective. The unique (user_id, period_end) index
// rejects closing the same boundary twice.
func (r *SQLiteRetrospectiveRepository) Save(ctx context.Context, retro *domain.Retrospective) error {
	query := `
		INSERT INTO retrospectives (
			id, user_id, period_start, period_end, completed_count, total_minutes, summary, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.getQuerier(ctx).ExecContext(ctx, query,
		retro.ID.String(),
		retro.UserID.String(),
		retro.PeriodStart.UTC().Format(time.RFC3339Nano),
		retro.PeriodEnd.UTC().Format(time.RFC3339Nano),
		retro.CompletedCount,
		retro.TotalMinutes,
		retro.Summary,
		retro.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}
