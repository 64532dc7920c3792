package queries

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

// SettingsDTO is a data transfer object for schedule settings.
type SettingsDTO struct {
	WeeklyWorkHours       []domain.WorkdayHours
	BufferHours           float64
	BreakAfterTaskMinutes int
	UpdatedAt             time.Time
}

// GetSettingsQuery contains the parameters for reading schedule settings.
type GetSettingsQuery struct {
	UserID uuid.UUID
}

// QueryName implements application.Query.
func (GetSettingsQuery) QueryName() string { return "schedule.get_settings" }

// GetSettingsHandler handles the GetSettingsQuery.
type GetSettingsHandler struct {
	settingsRepo domain.ScheduleSettingsRepository
}

// NewGetSettingsHandler creates a new GetSettingsHandler.
func NewGetSettingsHandler(settingsRepo domain.ScheduleSettingsRepository) *GetSettingsHandler {
	return &GetSettingsHandler{settingsRepo: settingsRepo}
}

// Handle executes the GetSettingsQuery. Users who never saved settings see
// the defaults.
func (h *GetSettingsHandler) Handle(ctx context.Context, query GetSettingsQuery) (*SettingsDTO, error) {
	settings, err := h.settingsRepo.Get(ctx, query.UserID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = domain.DefaultScheduleSettings(query.UserID)
	}
	settings = settings.Normalized()
	return &SettingsDTO{
		WeeklyWorkHours:       settings.WeeklyWorkHours,
		BufferHours:           settings.BufferHours,
		BreakAfterTaskMinutes: settings.BreakAfterTaskMinutes,
		UpdatedAt:             settings.UpdatedAt,
	}, nil
}
