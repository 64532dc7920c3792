package domain

import (
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/mugi0227/nagi-sub000/internal/shared/domain"
)

const (
	AggregateTypeTask          = "Task"
	AggregateTypeRetrospective = "Retrospective"

	RoutingKeyTaskAtRisk             = "heartbeat.task.at_risk"
	RoutingKeyRetrospectiveCompleted = "heartbeat.retrospective.completed"
)

// TaskAtRisk is emitted when a risk nudge is persisted for a task.
type TaskAtRisk struct {
	sharedDomain.BaseEvent
	UserID    uuid.UUID `json:"user_id"`
	TaskID    uuid.UUID `json:"task_id"`
	Title     string    `json:"title"`
	Severity  Severity  `json:"severity"`
	Score     float64   `json:"score"`
	SlackDays int       `json:"slack_days"`
	DueDate   string    `json:"due_date"`
}

// NewTaskAtRisk creates a TaskAtRisk event from an assessment.
func NewTaskAtRisk(userID uuid.UUID, risk RiskAssessment) TaskAtRisk {
	return TaskAtRisk{
		BaseEvent: sharedDomain.NewBaseEvent(risk.TaskID, AggregateTypeTask, RoutingKeyTaskAtRisk),
		UserID:    userID,
		TaskID:    risk.TaskID,
		Title:     risk.Title,
		Severity:  risk.Severity,
		Score:     risk.Score,
		SlackDays: risk.SlackDays,
		DueDate:   risk.DueDate.Format(time.DateOnly),
	}
}

// RetrospectiveCompleted is emitted when a weekly summary is persisted.
type RetrospectiveCompleted struct {
	sharedDomain.BaseEvent
	UserID         uuid.UUID `json:"user_id"`
	PeriodStart    string    `json:"period_start"`
	PeriodEnd      string    `json:"period_end"`
	CompletedCount int       `json:"completed_count"`
	TotalMinutes   int       `json:"total_minutes"`
}

// NewRetrospectiveCompleted creates the completion event for a saved summary.
func NewRetrospectiveCompleted(retro *Retrospective) RetrospectiveCompleted {
	return RetrospectiveCompleted{
		BaseEvent:      sharedDomain.NewBaseEvent(retro.ID, AggregateTypeRetrospective, RoutingKeyRetrospectiveCompleted),
		UserID:         retro.UserID,
		PeriodStart:    retro.PeriodStart.Format(time.DateOnly),
		PeriodEnd:      retro.PeriodEnd.Format(time.DateOnly),
		CompletedCount: retro.CompletedCount,
		TotalMinutes:   retro.TotalMinutes,
	}
}
