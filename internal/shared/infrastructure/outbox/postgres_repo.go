package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/persistence"
)

const (
	outboxInsert = `
		INSERT INTO outbox (
			event_id, aggregate_type, aggregate_id, event_type, routing_key,
			payload, metadata, created_at, next_retry_at, dead_lettered_at, dead_letter_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	// Oldest first, so delivery order follows creation order. Rows whose
	// backoff window has not elapsed are skipped until next_retry_at passes.
	outboxSelectPending = `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type, routing_key,
		       payload, metadata, created_at, published_at, next_retry_at, retry_count,
		       last_error, dead_lettered_at, dead_letter_reason
		FROM outbox
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at
		LIMIT $1`

	outboxMarkPublished = `
		UPDATE outbox SET published_at = NOW(), dead_lettered_at = NULL WHERE id = $1`

	outboxMarkFailed = `
		UPDATE outbox
		SET retry_count = retry_count + 1, last_error = $2, next_retry_at = $3
		WHERE id = $1`

	outboxMarkDead = `
		UPDATE outbox
		SET dead_lettered_at = NOW(), dead_letter_reason = $2
		WHERE id = $1`

	outboxPrune = `
		DELETE FROM outbox
		WHERE published_at IS NOT NULL
		  AND published_at < NOW() - INTERVAL '1 day' * $1`
)

// PostgresRepository stores outbox rows in PostgreSQL. Save participates
// in a surrounding unit-of-work transaction when one is in the context,
// which is what makes the write-plus-enqueue atomic.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save appends one message, writing through the ambient transaction if present.
func (r *PostgresRepository) Save(ctx context.Context, msg *Message) error {
	return r.insert(ctx, persistence.Executor(ctx, r.pool), msg)
}

// SaveBatch appends messages atomically. Outside a unit of work it opens
// its own transaction so a partial batch never becomes visible.
func (r *PostgresRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}

	if info, ok := persistence.TxInfoFromContext(ctx); ok {
		return r.insertAll(ctx, info.Tx, msgs)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := r.insertAll(ctx, tx, msgs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PostgresRepository) insert(ctx context.Context, q rowQuerier, msg *Message) error {
	return q.QueryRow(ctx, outboxInsert,
		msg.EventID, msg.AggregateType, msg.AggregateID, msg.EventType,
		msg.RoutingKey, msg.Payload, msg.Metadata, msg.CreatedAt,
		msg.NextRetryAt, msg.DeadLetteredAt, msg.DeadLetterReason,
	).Scan(&msg.ID)
}

func (r *PostgresRepository) insertAll(ctx context.Context, tx pgx.Tx, msgs []*Message) error {
	for _, msg := range msgs {
		if err := r.insert(ctx, tx, msg); err != nil {
			return err
		}
	}
	return nil
}

// GetUnpublished returns up to limit messages that are due for delivery.
func (r *PostgresRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	rows, err := r.pool.Query(ctx, outboxSelectPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID, &m.EventID, &m.AggregateType, &m.AggregateID, &m.EventType,
			&m.RoutingKey, &m.Payload, &m.Metadata, &m.CreatedAt, &m.PublishedAt,
			&m.NextRetryAt, &m.RetryCount, &m.LastError, &m.DeadLetteredAt,
			&m.DeadLetterReason,
		); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// MarkPublished records broker acceptance; clearing dead_lettered_at lets
// a manually requeued dead letter go back to normal status.
func (r *PostgresRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, outboxMarkPublished, id)
	return err
}

// MarkFailed bumps the retry counter and schedules the next attempt.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := r.pool.Exec(ctx, outboxMarkFailed, id, errMsg, nextRetryAt)
	return err
}

// MarkDead parks a message that exhausted its retry budget.
func (r *PostgresRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := r.pool.Exec(ctx, outboxMarkDead, id, reason)
	return err
}

// DeleteOld prunes published rows past the retention window and reports
// how many were removed.
func (r *PostgresRepository) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	result, err := r.pool.Exec(ctx, outboxPrune, olderThanDays)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// InMemoryRepository backs tests and local development without a database.
type InMemoryRepository struct {
	mu     sync.Mutex
	rows   []*Message
	nextID int64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1}
}

func (r *InMemoryRepository) Save(ctx context.Context, msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.append(msg)
	return nil
}

func (r *InMemoryRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range msgs {
		r.append(msg)
	}
	return nil
}

func (r *InMemoryRepository) append(msg *Message) {
	msg.ID = r.nextID
	r.nextID++
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	r.rows = append(r.rows, msg)
}

func (r *InMemoryRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var due []*Message
	for _, msg := range r.rows {
		if msg.PublishedAt != nil || msg.DeadLetteredAt != nil {
			continue
		}
		if msg.NextRetryAt != nil && msg.NextRetryAt.After(now) {
			continue
		}
		due = append(due, msg)
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (r *InMemoryRepository) MarkPublished(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg := r.find(id); msg != nil {
		now := time.Now()
		msg.PublishedAt = &now
		msg.DeadLetteredAt = nil
	}
	return nil
}

func (r *InMemoryRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg := r.find(id); msg != nil {
		msg.RetryCount++
		msg.LastError = &errMsg
		msg.NextRetryAt = &nextRetryAt
	}
	return nil
}

func (r *InMemoryRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg := r.find(id); msg != nil {
		now := time.Now()
		msg.DeadLetteredAt = &now
		msg.DeadLetterReason = &reason
	}
	return nil
}

func (r *InMemoryRepository) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	return 0, nil
}

func (r *InMemoryRepository) find(id int64) *Message {
	for _, msg := range r.rows {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}
