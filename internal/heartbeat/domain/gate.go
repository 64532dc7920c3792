package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotificationGate rate-limits nudges: a per-task cooldown keeps the same
// task from being re-raised back to back, and a per-day counter caps how
// many nudges one user receives. dateKey is the user's local date
// (YYYY-MM-DD), so the cap resets on their midnight, not the server's.
type NotificationGate interface {
	// InCooldown reports whether the task was raised to the user within the
	// cooldown window.
	InCooldown(ctx context.Context, userID, taskID uuid.UUID) (bool, error)

	// SentToday returns how many nudges the user has received on dateKey.
	SentToday(ctx context.Context, userID uuid.UUID, dateKey string) (int, error)

	// MarkSent records one delivered nudge: starts the task cooldown and
	// bumps the day counter.
	MarkSent(ctx context.Context, userID, taskID uuid.UUID, dateKey string, cooldown time.Duration) error
}
