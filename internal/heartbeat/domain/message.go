package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message kinds. The kind drives rendering in the feed, not behaviour here.
const (
	MessageKindHeartbeat     = "heartbeat"
	MessageKindRetrospective = "retrospective"
)

// Message is one entry in the user's notification feed. Rows are written in
// the same transaction as the outbox record, so the feed and the published
// event cannot drift apart.
type Message struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TaskID    *uuid.UUID
	Kind      string
	Severity  Severity
	Content   string
	CreatedAt time.Time
}

// NewRiskMessage renders a heartbeat nudge for one at-risk task.
func NewRiskMessage(userID uuid.UUID, risk RiskAssessment, at time.Time) *Message {
	taskID := risk.TaskID
	return &Message{
		ID:        uuid.New(),
		UserID:    userID,
		TaskID:    &taskID,
		Kind:      MessageKindHeartbeat,
		Severity:  risk.Severity,
		Content:   risk.Describe(),
		CreatedAt: at.UTC(),
	}
}

// NewRetrospectiveMessage announces a finished weekly summary in the feed.
// Retrospective messages carry no task and no severity.
func NewRetrospectiveMessage(userID uuid.UUID, summary string, at time.Time) *Message {
	return &Message{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      MessageKindRetrospective,
		Content:   summary,
		CreatedAt: at.UTC(),
	}
}
