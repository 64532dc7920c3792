package commands

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
	sharedApplication "github.com/mugi0227/nagi-sub000/internal/shared/application"
	sharedDomain "github.com/mugi0227/nagi-sub000/internal/shared/domain"
	"github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/outbox"
)

// MoveTimeBlockCommand moves or resizes one stored time block. The target
// day is derived from NewStart; when it differs from OriginalDate the block
// migrates to that day's plan row.
type MoveTimeBlockCommand struct {
	UserID       uuid.UUID
	TaskID       uuid.UUID
	OriginalDate time.Time
	NewStart     time.Time
	NewEnd       time.Time
}

// CommandName implements application.Command.
func (MoveTimeBlockCommand) CommandName() string { return "schedule.move_time_block" }

// MoveTimeBlockHandler applies a block move atomically: the plan row update,
// the task write-back, and the snapshot refresh commit together or not at
// all.
type MoveTimeBlockHandler struct {
	planRepo   domain.DailySchedulePlanRepository
	taskRepo   domain.TaskRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
}

// NewMoveTimeBlockHandler creates a new MoveTimeBlockHandler.
func NewMoveTimeBlockHandler(
	planRepo domain.DailySchedulePlanRepository,
	taskRepo domain.TaskRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
) *MoveTimeBlockHandler {
	return &MoveTimeBlockHandler{
		planRepo:   planRepo,
		taskRepo:   taskRepo,
		outboxRepo: outboxRepo,
		uow:        uow,
	}
}

// Handle moves the block and writes the new range back to the task.
func (h *MoveTimeBlockHandler) Handle(ctx context.Context, cmd MoveTimeBlockCommand) error {
	if !cmd.NewEnd.After(cmd.NewStart) {
		return domain.ErrInvalidTimeRange
	}

	return sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		row, err := h.planRepo.GetByDate(txCtx, cmd.UserID, cmd.OriginalDate)
		if err != nil {
			return err
		}
		if row == nil {
			return domain.ErrPlanNotFound
		}

		block, ok := row.FindTimeBlock(cmd.TaskID)
		if !ok {
			return domain.ErrTimeBlockNotFound
		}

		loc := domain.LoadLocation(row.Timezone())
		targetDate := domain.DateOf(cmd.NewStart, loc)
		crossDay := domain.DateKey(targetDate) != domain.DateKey(row.PlanDate())

		if crossDay {
			err = h.planRepo.MoveTimeBlockAcrossDays(txCtx, cmd.UserID, row.PlanDate(), targetDate, cmd.TaskID, cmd.NewStart, cmd.NewEnd)
		} else {
			err = h.planRepo.UpdateTimeBlock(txCtx, cmd.UserID, row.PlanDate(), cmd.TaskID, cmd.NewStart, cmd.NewEnd)
		}
		if err != nil {
			return err
		}

		if err := h.writeBack(txCtx, cmd, row, block); err != nil {
			return err
		}

		// Save domain events to outbox
		event := domain.NewTimeBlockMoved(row.ID(), cmd.UserID, cmd.TaskID, row.PlanDate(), cmd.NewStart, cmd.NewEnd, crossDay)
		events := []sharedDomain.DomainEvent{&event}
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(cmd.UserID))

		msgs := make([]*outbox.Message, 0, len(events))
		for _, e := range events {
			msg, err := outbox.NewMessage(e)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		return h.outboxRepo.SaveBatch(txCtx, msgs)
	})
}

// writeBack mirrors the moved range onto the task and refreshes the task's
// snapshot across the plan group so the plan does not go stale from its own
// mutation.
func (h *MoveTimeBlockHandler) writeBack(ctx context.Context, cmd MoveTimeBlockCommand, row *domain.DailySchedulePlan, block domain.ScheduleTimeBlock) error {
	task, err := h.taskRepo.Get(ctx, cmd.UserID, cmd.TaskID)
	if err != nil {
		return err
	}
	if task == nil {
		return nil
	}

	patch := domain.TaskPatch{}
	if task.IsFixedTime() {
		start, end := cmd.NewStart, cmd.NewEnd
		patch.StartTime = &start
		patch.EndTime = &end
	} else {
		newMinutes := int(cmd.NewEnd.Sub(cmd.NewStart).Minutes())
		if newMinutes != block.DurationMinutes() {
			patch.EstimatedMinutes = &newMinutes
		}
	}
	if patch.IsEmpty() {
		return nil
	}

	updated, err := h.taskRepo.Update(ctx, cmd.UserID, cmd.TaskID, patch)
	if err != nil {
		return err
	}
	if updated == nil {
		return nil
	}
	snapshot := domain.NewTaskPlanSnapshot(updated)
	return h.planRepo.UpdateTaskSnapshotForGroup(ctx, cmd.UserID, row.PlanGroupID(), snapshot)
}
