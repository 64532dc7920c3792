package outbox

import (
	"context"
	"time"
)

// Repository persists outbox messages next to the domain writes that
// produced them. Implementations exist for both database drivers.
type Repository interface {
	// Save stores one message.
	Save(ctx context.Context, msg *Message) error

	// SaveBatch stores several messages in one statement. Callers run
	// it inside the same transaction as the aggregate write.
	SaveBatch(ctx context.Context, msgs []*Message) error

	// GetUnpublished returns pending messages, oldest first, skipping
	// ones whose retry time has not arrived.
	GetUnpublished(ctx context.Context, limit int) ([]*Message, error)

	// MarkPublished flags a message as delivered.
	MarkPublished(ctx context.Context, id int64) error

	// MarkFailed records a delivery failure and when to try again.
	MarkFailed(ctx context.Context, id int64, err string, nextRetryAt time.Time) error

	// MarkDead parks a message that exhausted its retries.
	MarkDead(ctx context.Context, id int64, reason string) error

	// DeleteOld prunes published messages older than the retention
	// window and returns how many were removed.
	DeleteOld(ctx context.Context, olderThanDays int) (int64, error)
}
