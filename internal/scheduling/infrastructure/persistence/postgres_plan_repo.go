package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
	sharedPersistence "github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/persistence"
)

const planColumns = `
	id, user_id, plan_date, plan_group_id, timezone,
	day, task_snapshots, unscheduled_tasks, excluded_tasks,
	time_blocks, pinned_overflow_task_ids, plan_params,
	generated_at, created_at, updated_at
`

const insertPlanQuery = `
	INSERT INTO daily_schedule_plans (
		id, user_id, plan_date, plan_group_id, timezone,
		day, task_snapshots, unscheduled_tasks, excluded_tasks,
		time_blocks, pinned_overflow_task_ids, plan_params,
		generated_at, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`

// PostgresDailyPlanRepository implements domain.DailySchedulePlanRepository
// using PostgreSQL.
type PostgresDailyPlanRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresDailyPlanRepository creates a new PostgreSQL plan repository.
func NewPostgresDailyPlanRepository(pool *pgxpool.Pool) *PostgresDailyPlanRepository {
	return &PostgresDailyPlanRepository{pool: pool}
}

// GetByDate returns the plan row for the date, or (nil, nil).
func (r *PostgresDailyPlanRepository) GetByDate(ctx context.Context, userID uuid.UUID, date time.Time) (*domain.DailySchedulePlan, error) {
	execer := sharedPersistence.Executor(ctx, r.pool)
	return r.getByDate(ctx, execer, userID, date)
}

func (r *PostgresDailyPlanRepository) getByDate(ctx context.Context, execer sharedPersistence.DBExecutor, userID uuid.UUID, date time.Time) (*domain.DailySchedulePlan, error) {
	query := `SELECT ` + planColumns + ` FROM daily_schedule_plans WHERE user_id = $1 AND plan_date = $2`

	row := planRow{}
	err := execer.QueryRow(ctx, query, userID, date).Scan(
		&row.ID,
		&row.UserID,
		&row.PlanDate,
		&row.PlanGroupID,
		&row.Timezone,
		&row.Day,
		&row.TaskSnapshots,
		&row.Unscheduled,
		&row.Excluded,
		&row.TimeBlocks,
		&row.PinnedOverflow,
		&row.PlanParams,
		&row.GeneratedAt,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toDomain()
}

// ListByRange returns rows with start <= plan_date < end, ordered by date.
func (r *PostgresDailyPlanRepository) ListByRange(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]*domain.DailySchedulePlan, error) {
	query := `SELECT ` + planColumns + `
		FROM daily_schedule_plans
		WHERE user_id = $1 AND plan_date >= $2 AND plan_date < $3
		ORDER BY plan_date
	`

	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, query, userID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPlans(rows)
}

// UpsertMany replaces the user's plan from the earliest date in the batch
// onward: rows on or after that date are deleted, then the batch is inserted.
func (r *PostgresDailyPlanRepository) UpsertMany(ctx context.Context, userID uuid.UUID, plans []*domain.DailySchedulePlan) error {
	if len(plans) == 0 {
		return nil
	}

	if info, ok := sharedPersistence.TxInfoFromContext(ctx); ok {
		return r.upsertAll(ctx, info.Tx, userID, plans)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := r.upsertAll(ctx, tx, userID, plans); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresDailyPlanRepository) upsertAll(ctx context.Context, tx pgx.Tx, userID uuid.UUID, plans []*domain.DailySchedulePlan) error {
	earliest := plans[0].PlanDate()
	for _, p := range plans[1:] {
		if domain.DateKey(p.PlanDate()) < domain.DateKey(earliest) {
			earliest = p.PlanDate()
		}
	}

	_, err := tx.Exec(ctx, `DELETE FROM daily_schedule_plans WHERE user_id = $1 AND plan_date >= $2`, userID, earliest)
	if err != nil {
		return err
	}

	for _, p := range plans {
		if err := insertPlan(ctx, tx, p); err != nil {
			return err
		}
	}
	return nil
}

func insertPlan(ctx context.Context, execer sharedPersistence.DBExecutor, p *domain.DailySchedulePlan) error {
	row, err := encodePlanRow(p)
	if err != nil {
		return err
	}
	_, err = execer.Exec(ctx, insertPlanQuery,
		row.ID,
		row.UserID,
		row.PlanDate,
		row.PlanGroupID,
		row.Timezone,
		row.Day,
		row.TaskSnapshots,
		row.Unscheduled,
		row.Excluded,
		row.TimeBlocks,
		row.PinnedOverflow,
		row.PlanParams,
		row.GeneratedAt,
		row.CreatedAt,
		row.UpdatedAt,
	)
	return err
}

// UpdateTimeBlock rewrites one live block in the date's row.
func (r *PostgresDailyPlanRepository) UpdateTimeBlock(ctx context.Context, userID uuid.UUID, date time.Time, taskID uuid.UUID, newStart, newEnd time.Time) error {
	execer := sharedPersistence.Executor(ctx, r.pool)

	plan, err := r.getByDate(ctx, execer, userID, date)
	if err != nil {
		return err
	}
	if plan == nil {
		return domain.ErrPlanNotFound
	}
	if err := plan.UpdateTimeBlock(taskID, newStart, newEnd); err != nil {
		return err
	}
	return r.saveBlocks(ctx, execer, plan)
}

// MoveTimeBlockAcrossDays detaches the block from the original date's row and
// attaches it to the target date's row, creating the target when missing.
func (r *PostgresDailyPlanRepository) MoveTimeBlockAcrossDays(ctx context.Context, userID uuid.UUID, originalDate, targetDate time.Time, taskID uuid.UUID, newStart, newEnd time.Time) error {
	if info, ok := sharedPersistence.TxInfoFromContext(ctx); ok {
		return r.moveAcrossDays(ctx, info.Tx, userID, originalDate, targetDate, taskID, newStart, newEnd)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := r.moveAcrossDays(ctx, tx, userID, originalDate, targetDate, taskID, newStart, newEnd); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresDailyPlanRepository) moveAcrossDays(ctx context.Context, tx pgx.Tx, userID uuid.UUID, originalDate, targetDate time.Time, taskID uuid.UUID, newStart, newEnd time.Time) error {
	source, err := r.getByDate(ctx, tx, userID, originalDate)
	if err != nil {
		return err
	}
	if source == nil {
		return domain.ErrPlanNotFound
	}

	block, err := source.RemoveTimeBlock(taskID)
	if err != nil {
		return err
	}
	block.Start = newStart
	block.End = newEnd

	target, err := r.getByDate(ctx, tx, userID, targetDate)
	if err != nil {
		return err
	}
	if target == nil {
		// The moved block lands on a day the generation never produced; the
		// new row inherits the source row's group, timezone and context.
		target = domain.NewDailySchedulePlan(
			userID,
			targetDate,
			source.PlanGroupID(),
			source.Timezone(),
			domain.ScheduleDay{Date: targetDate},
			source.TaskSnapshots(),
			source.UnscheduledTasks(),
			source.ExcludedTasks(),
			nil,
			nil,
			source.PlanParams(),
		)
		target.AddTimeBlock(block)
		if err := r.saveBlocks(ctx, tx, source); err != nil {
			return err
		}
		return insertPlan(ctx, tx, target)
	}

	target.AddTimeBlock(block)
	if err := r.saveBlocks(ctx, tx, source); err != nil {
		return err
	}
	return r.saveBlocks(ctx, tx, target)
}

// UpdateTaskSnapshotForGroup refreshes one task's snapshot in every row of
// the plan group.
func (r *PostgresDailyPlanRepository) UpdateTaskSnapshotForGroup(ctx context.Context, userID, planGroupID uuid.UUID, snapshot domain.TaskPlanSnapshot) error {
	execer := sharedPersistence.Executor(ctx, r.pool)

	query := `SELECT ` + planColumns + `
		FROM daily_schedule_plans
		WHERE user_id = $1 AND plan_group_id = $2
		ORDER BY plan_date
	`
	rows, err := execer.Query(ctx, query, userID, planGroupID)
	if err != nil {
		return err
	}
	plans, err := scanPlans(rows)
	rows.Close()
	if err != nil {
		return err
	}

	for _, plan := range plans {
		plan.ReplaceTaskSnapshot(snapshot)
		snapshots, err := encodeJSONList(plan.TaskSnapshots())
		if err != nil {
			return err
		}
		_, err = execer.Exec(ctx,
			`UPDATE daily_schedule_plans SET task_snapshots = $2, updated_at = $3 WHERE id = $1`,
			plan.ID(), snapshots, time.Now().UTC(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// saveBlocks persists the row's time-block and snapshot documents after an
// in-memory mutation.
func (r *PostgresDailyPlanRepository) saveBlocks(ctx context.Context, execer sharedPersistence.DBExecutor, plan *domain.DailySchedulePlan) error {
	blocks, err := encodeJSONList(plan.TimeBlocks())
	if err != nil {
		return err
	}
	snapshots, err := encodeJSONList(plan.TaskSnapshots())
	if err != nil {
		return err
	}
	_, err = execer.Exec(ctx,
		`UPDATE daily_schedule_plans SET time_blocks = $2, task_snapshots = $3, updated_at = $4 WHERE id = $1`,
		plan.ID(), blocks, snapshots, time.Now().UTC(),
	)
	return err
}

func scanPlans(rows pgx.Rows) ([]*domain.DailySchedulePlan, error) {
	var plans []*domain.DailySchedulePlan
	for rows.Next() {
		row := planRow{}
		err := rows.Scan(
			&row.ID,
			&row.UserID,
			&row.PlanDate,
			&row.PlanGroupID,
			&row.Timezone,
			&row.Day,
			&row.TaskSnapshots,
			&row.Unscheduled,
			&row.Excluded,
			&row.TimeBlocks,
			&row.PinnedOverflow,
			&row.PlanParams,
			&row.GeneratedAt,
			&row.CreatedAt,
			&row.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		plan, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return plans, nil
}
