// Package persistence implements the scheduling repositories for PostgreSQL
// (pgx) and SQLite (database/sql). Repositories participate in an ambient
// unit-of-work transaction when one is present in the context.
package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

// planRow is the storage shape of one daily plan. The value-object columns
// (day, snapshots, blocks, ...) are JSON documents; both drivers share this
// struct and the codec below.
type planRow struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	PlanDate       time.Time
	PlanGroupID    uuid.UUID
	Timezone       string
	Day            []byte
	TaskSnapshots  []byte
	Unscheduled    []byte
	Excluded       []byte
	TimeBlocks     []byte
	PinnedOverflow []byte
	PlanParams     []byte
	GeneratedAt    time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func encodePlanRow(p *domain.DailySchedulePlan) (planRow, error) {
	row := planRow{
		ID:          p.ID(),
		UserID:      p.UserID(),
		PlanDate:    p.PlanDate(),
		PlanGroupID: p.PlanGroupID(),
		Timezone:    p.Timezone(),
		GeneratedAt: p.GeneratedAt(),
		CreatedAt:   p.CreatedAt(),
		UpdatedAt:   p.UpdatedAt(),
	}

	var err error
	if row.Day, err = json.Marshal(p.Day()); err != nil {
		return planRow{}, fmt.Errorf("encoding day: %w", err)
	}
	if row.TaskSnapshots, err = encodeJSONList(p.TaskSnapshots()); err != nil {
		return planRow{}, fmt.Errorf("encoding task snapshots: %w", err)
	}
	if row.Unscheduled, err = encodeJSONList(p.UnscheduledTasks()); err != nil {
		return planRow{}, fmt.Errorf("encoding unscheduled tasks: %w", err)
	}
	if row.Excluded, err = encodeJSONList(p.ExcludedTasks()); err != nil {
		return planRow{}, fmt.Errorf("encoding excluded tasks: %w", err)
	}
	if row.TimeBlocks, err = encodeJSONList(p.TimeBlocks()); err != nil {
		return planRow{}, fmt.Errorf("encoding time blocks: %w", err)
	}
	if row.PinnedOverflow, err = encodeJSONList(p.PinnedOverflowTaskIDs()); err != nil {
		return planRow{}, fmt.Errorf("encoding pinned overflow: %w", err)
	}
	if row.PlanParams, err = json.Marshal(p.PlanParams()); err != nil {
		return planRow{}, fmt.Errorf("encoding plan params: %w", err)
	}
	return row, nil
}

func (r planRow) toDomain() (*domain.DailySchedulePlan, error) {
	var day domain.ScheduleDay
	if err := json.Unmarshal(r.Day, &day); err != nil {
		return nil, fmt.Errorf("decoding day: %w", err)
	}

	var snapshots []domain.TaskPlanSnapshot
	if err := decodeJSONList(r.TaskSnapshots, &snapshots); err != nil {
		return nil, fmt.Errorf("decoding task snapshots: %w", err)
	}
	var unscheduled []domain.UnscheduledTask
	if err := decodeJSONList(r.Unscheduled, &unscheduled); err != nil {
		return nil, fmt.Errorf("decoding unscheduled tasks: %w", err)
	}
	var excluded []domain.ExcludedTask
	if err := decodeJSONList(r.Excluded, &excluded); err != nil {
		return nil, fmt.Errorf("decoding excluded tasks: %w", err)
	}
	var blocks []domain.ScheduleTimeBlock
	if err := decodeJSONList(r.TimeBlocks, &blocks); err != nil {
		return nil, fmt.Errorf("decoding time blocks: %w", err)
	}
	var pinned []uuid.UUID
	if err := decodeJSONList(r.PinnedOverflow, &pinned); err != nil {
		return nil, fmt.Errorf("decoding pinned overflow: %w", err)
	}
	var params domain.PlanParams
	if len(r.PlanParams) > 0 {
		if err := json.Unmarshal(r.PlanParams, &params); err != nil {
			return nil, fmt.Errorf("decoding plan params: %w", err)
		}
	}

	return domain.RehydrateDailySchedulePlan(
		r.ID,
		r.UserID,
		r.PlanDate,
		r.PlanGroupID,
		r.Timezone,
		day,
		snapshots,
		unscheduled,
		excluded,
		blocks,
		pinned,
		params,
		r.GeneratedAt,
		r.CreatedAt,
		r.UpdatedAt,
	), nil
}

// encodeJSONList marshals a slice, normalising nil to the empty array so the
// stored document round-trips without null entries.
func encodeJSONList[T any](items []T) ([]byte, error) {
	if items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(items)
}

func decodeJSONList[T any](data []byte, out *[]T) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// taskRow is the storage shape of one task. Dependency ids travel as a JSON
// array column.
type taskRow struct {
	ID                     uuid.UUID
	UserID                 uuid.UUID
	ProjectID              *uuid.UUID
	ParentID               *uuid.UUID
	Title                  string
	Status                 string
	Importance             string
	Urgency                string
	EnergyLevel            string
	EstimatedMinutes       *int
	ProgressPercent        int
	DueDate                *time.Time
	StartNotBefore         *time.Time
	PinnedDate             *time.Time
	IsFixedTime            bool
	StartTime              *time.Time
	EndTime                *time.Time
	IsAllDay               bool
	SameDayAllowed         bool
	MinGapDays             int
	TouchpointEnabled      bool
	TouchpointIntervalDays int
	DependencyIDs          []byte
	CompletedAt            *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (r taskRow) toDomain() (*domain.Task, error) {
	var deps []uuid.UUID
	if err := decodeJSONList(r.DependencyIDs, &deps); err != nil {
		return nil, fmt.Errorf("decoding dependency ids: %w", err)
	}
	return domain.RehydrateTask(
		r.ID,
		r.UserID,
		r.ProjectID,
		r.ParentID,
		r.Title,
		domain.Status(r.Status),
		domain.Level(r.Importance),
		domain.Level(r.Urgency),
		domain.EnergyLevel(r.EnergyLevel),
		r.EstimatedMinutes,
		r.ProgressPercent,
		r.DueDate,
		r.StartNotBefore,
		r.PinnedDate,
		r.IsFixedTime,
		r.StartTime,
		r.EndTime,
		r.IsAllDay,
		r.SameDayAllowed,
		r.MinGapDays,
		r.TouchpointEnabled,
		r.TouchpointIntervalDays,
		deps,
		r.CompletedAt,
		r.CreatedAt,
		r.UpdatedAt,
	), nil
}
