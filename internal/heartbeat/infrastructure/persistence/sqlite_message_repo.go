package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/heartbeat/domain"
	sharedPersistence "github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/persistence"
)

type sqliteQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteMessageRepository implements domain.MessageRepository using SQLite.
type SQLiteMessageRepository struct {
	dbConn *sql.DB
}

// NewSQLiteMessageRepository creates a new SQLite message repository.
func NewSQLiteMessageRepository(dbConn *sql.DB) *SQLiteMessageRepository {
	return &SQLiteMessageRepository{dbConn: dbConn}
}

// getQuerier returns the appropriate querier (transaction or connection) based on context.
func (r *SQLiteMessageRepository) getQuerier(ctx context.Context) sqliteQuerier {
	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return r.dbConn
}

// Save inserts one feed message.
func (r *SQLiteMessageRepository) Save(ctx context.Context, message *domain.Message) error {
	query := `
		INSERT INTO messages (id, user_id, task_id, kind, severity, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	var taskID any
	if message.TaskID != nil {
		taskID = message.TaskID.String()
	}
	_, err := r.getQuerier(ctx).ExecContext(ctx, query,
		message.ID.String(),
		message.UserID.String(),
		taskID,
		message.Kind,
		severityValue(message.Severity),
		message.Content,
		message.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// ListRecent returns the user's newest messages, newest first.
func (r *SQLiteMessageRepository) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, task_id, kind, severity, content, created_at
		FROM messages
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := r.getQuerier(ctx).QueryContext(ctx, query, userID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		var (
			id, owner, createdAt string
			taskID, severity     sql.NullString
		)
		m := domain.Message{}
		if err := rows.Scan(&id, &owner, &taskID, &m.Kind, &severity, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		if m.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if m.UserID, err = uuid.Parse(owner); err != nil {
			return nil, err
		}
		if m.TaskID, err = parseNullableUUID(taskID); err != nil {
			return nil, err
		}
		if severity.Valid {
			m.Severity = domain.Severity(severity.String)
		}
		if m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

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
