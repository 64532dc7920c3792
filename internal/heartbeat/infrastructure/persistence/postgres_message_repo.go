package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mugi0227/nagi-sub000/internal/heartbeat/domain"
	sharedPersistence "github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/persistence"
)

// PostgresMessageRepository implements domain.MessageRepository using
// PostgreSQL.
type PostgresMessageRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresMessageRepository creates a new PostgreSQL message repository.
func NewPostgresMessageRepository(pool *pgxpool.Pool) *PostgresMessageRepository {
	return &PostgresMessageRepository{pool: pool}
}

// Save inserts one feed message.
func (r *PostgresMessageRepository) Save(ctx context.Context, message *domain.Message) error {
	query := `
		INSERT INTO messages (id, user_id, task_id, kind, severity, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query,
		message.ID,
		message.UserID,
		message.TaskID,
		message.Kind,
		severityValue(message.Severity),
		message.Content,
		message.CreatedAt,
	)
	return err
}

// ListRecent returns the user's newest messages, newest first.
func (r *PostgresMessageRepository) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, task_id, kind, severity, content, created_at
		FROM messages
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		m := domain.Message{}
		var severity *string
		if err := rows.Scan(&m.ID, &m.UserID, &m.TaskID, &m.Kind, &severity, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		if severity != nil {
			m.Severity = domain.Severity(*severity)
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// severityValue maps the empty severity to NULL.
func severityValue(s domain.Severity) any {
	if s == "" {
		return nil
	}
	return string(s)
}
