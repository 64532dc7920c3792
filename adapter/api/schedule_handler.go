package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/commands"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/queries"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

// ScheduleHandler handles schedule API requests.
type ScheduleHandler struct {
	getSchedule   *queries.GetScheduleHandler
	getToday      *queries.GetTodayHandler
	getSettings   *queries.GetSettingsHandler
	generatePlan  *commands.GeneratePlanHandler
	moveTimeBlock *commands.MoveTimeBlockHandler
	saveSettings  *commands.SaveSettingsHandler
	defaultUserID uuid.UUID
	logger        *slog.Logger
}

// ScheduleHandlerConfig holds dependencies for the schedule handler.
type ScheduleHandlerConfig struct {
	GetSchedule   *queries.GetScheduleHandler
	GetToday      *queries.GetTodayHandler
	GetSettings   *queries.GetSettingsHandler
	GeneratePlan  *commands.GeneratePlanHandler
	MoveTimeBlock *commands.MoveTimeBlockHandler
	SaveSettings  *commands.SaveSettingsHandler
	DefaultUserID uuid.UUID
	Logger        *slog.Logger
}

// NewScheduleHandler creates a new schedule handler.
func NewScheduleHandler(cfg ScheduleHandlerConfig) *ScheduleHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ScheduleHandler{
		getSchedule:   cfg.GetSchedule,
		getToday:      cfg.GetToday,
		getSettings:   cfg.GetSettings,
		generatePlan:  cfg.GeneratePlan,
		moveTimeBlock: cfg.MoveTimeBlock,
		saveSettings:  cfg.SaveSettings,
		defaultUserID: cfg.DefaultUserID,
		logger:        cfg.Logger,
	}
}

// userID resolves the acting user. Authentication lives outside this
// service; an explicit user_id parameter overrides the configured default.
func (h *ScheduleHandler) userID(r *http.Request) (uuid.UUID, error) {
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		return uuid.Parse(raw)
	}
	if raw := r.Header.Get("X-User-ID"); raw != "" {
		return uuid.Parse(raw)
	}
	return h.defaultUserID, nil
}

// GetSchedule handles GET /api/v1/schedule
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	query := queries.GetScheduleQuery{
		UserID:               userID,
		MaxDays:              parseIntParam(r, "max_days", 0),
		FilterByAssignee:     parseBoolParam(r, "filter_by_assignee", true),
		ApplyPlanConstraints: parseBoolParam(r, "apply_plan_constraints", false),
	}
	if start := r.URL.Query().Get("start"); start != "" {
		date, err := time.Parse(time.DateOnly, start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
			return
		}
		query.Start = date
	}

	view, err := h.getSchedule.Handle(r.Context(), query)
	if err != nil {
		h.fail(w, r, "get schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(view))
}

// GeneratePlan handles POST /api/v1/schedule/plan
func (h *ScheduleHandler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	var req generatePlanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cmd := commands.GeneratePlanCommand{
		UserID:               userID,
		MaxDays:              req.MaxDays,
		FilterByAssignee:     req.filterByAssignee(),
		ApplyPlanConstraints: req.ApplyPlanConstraints,
		FromNow:              req.FromNow,
	}
	if req.Start != "" {
		date, err := time.Parse(time.DateOnly, req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
			return
		}
		cmd.Start = date
	}

	view, err := h.generatePlan.Handle(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, "generate plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleViewResponse(view))
}

// MoveTimeBlock handles PATCH /api/v1/schedule/plan/time-block
func (h *ScheduleHandler) MoveTimeBlock(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	var req moveTimeBlockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	taskID, err := uuid.Parse(req.TaskID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task_id")
		return
	}
	originalDate, err := time.Parse(time.DateOnly, req.OriginalDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "original_date must be YYYY-MM-DD")
		return
	}
	newStart, err := time.Parse(time.RFC3339, req.NewStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "new_start must be RFC 3339")
		return
	}
	newEnd, err := time.Parse(time.RFC3339, req.NewEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "new_end must be RFC 3339")
		return
	}

	err = h.moveTimeBlock.Handle(r.Context(), commands.MoveTimeBlockCommand{
		UserID:       userID,
		TaskID:       taskID,
		OriginalDate: originalDate,
		NewStart:     newStart,
		NewEnd:       newEnd,
	})
	if err != nil {
		h.fail(w, r, "move time block", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetToday handles GET /api/v1/schedule/today
func (h *ScheduleHandler) GetToday(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	query := queries.GetTodayQuery{UserID: userID}
	if target := r.URL.Query().Get("target_date"); target != "" {
		date, err := time.Parse(time.DateOnly, target)
		if err != nil {
			writeError(w, http.StatusBadRequest, "target_date must be YYYY-MM-DD")
			return
		}
		query.Date = date
	}

	view, err := h.getToday.Handle(r.Context(), query)
	if err != nil {
		h.fail(w, r, "get today", err)
		return
	}
	writeJSON(w, http.StatusOK, toTodayResponse(view))
}

// GetSettings handles GET /api/v1/schedule/settings
func (h *ScheduleHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	settings, err := h.getSettings.Handle(r.Context(), queries.GetSettingsQuery{UserID: userID})
	if err != nil {
		h.fail(w, r, "get settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}

// SaveSettings handles PUT /api/v1/schedule/settings
func (h *ScheduleHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	var req saveSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := h.saveSettings.Handle(r.Context(), commands.SaveSettingsCommand{
		UserID:                userID,
		WeeklyWorkHours:       req.WeeklyWorkHours,
		BufferHours:           req.BufferHours,
		BreakAfterTaskMinutes: req.BreakAfterTaskMinutes,
	})
	if err != nil {
		h.fail(w, r, "save settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(&queries.SettingsDTO{
		WeeklyWorkHours:       saved.WeeklyWorkHours,
		BufferHours:           saved.BufferHours,
		BreakAfterTaskMinutes: saved.BreakAfterTaskMinutes,
		UpdatedAt:             saved.UpdatedAt,
	}))
}

// fail maps domain errors to HTTP statuses.
func (h *ScheduleHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrTimeBlockNotFound), errors.Is(err, domain.ErrPlanNotFound), errors.Is(err, domain.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTimeRange),
		errors.Is(err, domain.ErrInvalidWeeklyHours),
		errors.Is(err, domain.ErrInvalidClockString),
		errors.Is(err, domain.ErrInvalidWorkWindow),
		errors.Is(err, domain.ErrInvalidBufferHours),
		errors.Is(err, domain.ErrInvalidBreakMinutes),
		errors.Is(err, domain.ErrPlanHorizonInPast):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("schedule API request failed",
			"operation", op,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// Request bodies

type generatePlanRequest struct {
	Start                string `json:"start,omitempty"`
	MaxDays              int    `json:"max_days,omitempty"`
	FromNow              bool   `json:"from_now,omitempty"`
	FilterByAssignee     *bool  `json:"filter_by_assignee,omitempty"`
	ApplyPlanConstraints bool   `json:"apply_plan_constraints,omitempty"`
}

func (r generatePlanRequest) filterByAssignee() bool {
	if r.FilterByAssignee == nil {
		return true
	}
	return *r.FilterByAssignee
}

type moveTimeBlockRequest struct {
	TaskID       string `json:"task_id"`
	OriginalDate string `json:"original_date"`
	NewStart     string `json:"new_start"`
	NewEnd       string `json:"new_end"`
}

type saveSettingsRequest struct {
	WeeklyWorkHours       []domain.WorkdayHours `json:"weekly_work_hours"`
	BufferHours           float64               `json:"buffer_hours"`
	BreakAfterTaskMinutes int                   `json:"break_after_task_minutes"`
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		// An empty body means all defaults.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.New("invalid JSON body")
	}
	return nil
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func parseBoolParam(r *http.Request, name string, fallback bool) bool {
	switch r.URL.Query().Get(name) {
	case "true", "1":
		return true
	case "false", "0":
		return false
	default:
		return fallback
	}
}
