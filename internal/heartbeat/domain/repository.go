package domain

import (
	"context"

	"github.com/google/uuid"
)

// MessageRepository persists the notification feed.
type MessageRepository interface {
	Save(ctx context.Context, message *Message) error

	// ListRecent returns the user's newest messages, newest first.
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*Message, error)
}

// RetrospectiveRepository persists weekly summaries.
type RetrospectiveRepository interface {
	// GetLatest returns the retrospective with the newest period end, or
	// (nil, nil) when the user has none.
	GetLatest(ctx context.Context, userID uuid.UUID) (*Retrospective, error)

	// Save inserts the retrospective. Period ends are unique per user;
	// saving the same boundary twice is an error.
	Save(ctx context.Context, retro *Retrospective) error
}
