package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// taskFingerprintFields is the exhaustive set of scheduling-relevant task
// fields. Field order is the canonical key order; any field added to the
// scheduler's inputs must be added here or drift detection silently breaks.
type taskFingerprintFields struct {
	EstimatedMinutes       *int     `json:"estimated_minutes"`
	DueDate                *string  `json:"due_date"`
	StartNotBefore         *string  `json:"start_not_before"`
	PinnedDate             *string  `json:"pinned_date"`
	ParentID               *string  `json:"parent_id"`
	DependencyIDs          []string `json:"dependency_ids"`
	SameDayAllowed         bool     `json:"same_day_allowed"`
	MinGapDays             int      `json:"min_gap_days"`
	Importance             string   `json:"importance"`
	Urgency                string   `json:"urgency"`
	EnergyLevel            string   `json:"energy_level"`
	IsFixedTime            bool     `json:"is_fixed_time"`
	IsAllDay               bool     `json:"is_all_day"`
	StartTime              *string  `json:"start_time"`
	EndTime                *string  `json:"end_time"`
	TouchpointEnabled      bool     `json:"touchpoint_enabled"`
	TouchpointIntervalDays int      `json:"touchpoint_interval_days"`
}

// TaskFingerprint hashes the scheduling-relevant subset of a task into a
// stable hex string. Equal fingerprints mean the task cannot change the
// outcome of a regeneration.
func TaskFingerprint(t *Task) string {
	fields := taskFingerprintFields{
		EstimatedMinutes:       t.EstimatedMinutes(),
		DueDate:                instantString(t.DueDate()),
		StartNotBefore:         instantString(t.StartNotBefore()),
		PinnedDate:             dateString(t.PinnedDate()),
		ParentID:               uuidString(t.ParentID()),
		DependencyIDs:          sortedIDStrings(t.DependencyIDs()),
		SameDayAllowed:         t.SameDayAllowed(),
		MinGapDays:             t.MinGapDays(),
		Importance:             string(t.Importance()),
		Urgency:                string(t.Urgency()),
		EnergyLevel:            string(t.EnergyLevel()),
		IsFixedTime:            t.IsFixedTime(),
		IsAllDay:               t.IsAllDay(),
		StartTime:              instantString(t.StartTime()),
		EndTime:                instantString(t.EndTime()),
		TouchpointEnabled:      t.TouchpointEnabled(),
		TouchpointIntervalDays: t.TouchpointIntervalDays(),
	}
	return hashJSON(fields)
}

// NewTaskPlanSnapshot captures a task's identity and fingerprint.
func NewTaskPlanSnapshot(t *Task) TaskPlanSnapshot {
	return TaskPlanSnapshot{
		TaskID:      t.ID(),
		Title:       t.Title(),
		Fingerprint: TaskFingerprint(t),
	}
}

// ParamsFingerprint hashes the materialisation parameters of a generation.
func ParamsFingerprint(p PlanParams) string {
	if p.WeeklyCapacityMinutes == nil {
		p.WeeklyCapacityMinutes = []int{}
	}
	return hashJSON(p)
}

func hashJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		// Only unsupported types can fail here; the field structs contain none.
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func instantString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func dateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func sortedIDStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	sort.Strings(out)
	return out
}
