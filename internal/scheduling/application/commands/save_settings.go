package commands

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

// SaveSettingsCommand replaces a user's schedule settings.
type SaveSettingsCommand struct {
	UserID                uuid.UUID
	WeeklyWorkHours       []domain.WorkdayHours
	BufferHours           float64
	BreakAfterTaskMinutes int
}

// CommandName implements application.Command.
func (SaveSettingsCommand) CommandName() string { return "schedule.save_settings" }

// SaveSettingsHandler validates and persists schedule settings.
type SaveSettingsHandler struct {
	settingsRepo domain.ScheduleSettingsRepository
}

// NewSaveSettingsHandler creates a new SaveSettingsHandler.
func NewSaveSettingsHandler(settingsRepo domain.ScheduleSettingsRepository) *SaveSettingsHandler {
	return &SaveSettingsHandler{settingsRepo: settingsRepo}
}

// Handle validates the settings and saves them, returning the stored value.
func (h *SaveSettingsHandler) Handle(ctx context.Context, cmd SaveSettingsCommand) (*domain.ScheduleSettings, error) {
	existing, err := h.settingsRepo.Get(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	settings := &domain.ScheduleSettings{
		UserID:                cmd.UserID,
		WeeklyWorkHours:       cmd.WeeklyWorkHours,
		BufferHours:           cmd.BufferHours,
		BreakAfterTaskMinutes: cmd.BreakAfterTaskMinutes,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if existing != nil {
		settings.CreatedAt = existing.CreatedAt
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if err := h.settingsRepo.Save(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}
