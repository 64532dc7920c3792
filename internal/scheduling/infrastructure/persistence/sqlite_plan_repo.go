package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
	sharedPersistence "github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/persistence"
)

// sqliteQuerier abstracts *sql.DB and *sql.Tx for query execution.
type sqliteQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const sqlitePlanColumns = `
	id, user_id, plan_date, plan_group_id, timezone,
	day, task_snapshots, unscheduled_tasks, excluded_tasks,
	time_blocks, pinned_overflow_task_ids, plan_params,
	generated_at, created_at, updated_at
`

const sqliteInsertPlan = `
	INSERT INTO daily_schedule_plans (
		id, user_id, plan_date, plan_group_id, timezone,
		day, task_snapshots, unscheduled_tasks, excluded_tasks,
		time_blocks, pinned_overflow_task_ids, plan_params,
		generated_at, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// SQLiteDailyPlanRepository implements domain.DailySchedulePlanRepository
// using SQLite.
type SQLiteDailyPlanRepository struct {
	dbConn *sql.DB
}

// NewSQLiteDailyPlanRepository creates a new SQLite plan repository.
func NewSQLiteDailyPlanRepository(dbConn *sql.DB) *SQLiteDailyPlanRepository {
	return &SQLiteDailyPlanRepository{dbConn: dbConn}
}

// getQuerier returns the appropriate querier (transaction or connection) based on context.
func (r *SQLiteDailyPlanRepository) getQuerier(ctx context.Context) sqliteQuerier {
	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return r.dbConn
}

// GetByDate returns the plan row for the date, or (nil, nil).
func (r *SQLiteDailyPlanRepository) GetByDate(ctx context.Context, userID uuid.UUID, date time.Time) (*domain.DailySchedulePlan, error) {
	return r.getByDate(ctx, r.getQuerier(ctx), userID, date)
}

func (r *SQLiteDailyPlanRepository) getByDate(ctx context.Context, q sqliteQuerier, userID uuid.UUID, date time.Time) (*domain.DailySchedulePlan, error) {
	query := `SELECT ` + sqlitePlanColumns + ` FROM daily_schedule_plans WHERE user_id = ? AND plan_date = ?`

	row := q.QueryRowContext(ctx, query, userID.String(), domain.DateKey(date))
	plan, err := scanSQLitePlan(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return plan, nil
}

// ListByRange returns rows with start <= plan_date < end, ordered by date.
func (r *SQLiteDailyPlanRepository) ListByRange(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]*domain.DailySchedulePlan, error) {
	query := `SELECT ` + sqlitePlanColumns + `
		FROM daily_schedule_plans
		WHERE user_id = ? AND plan_date >= ? AND plan_date < ?
		ORDER BY plan_date
	`

	rows, err := r.getQuerier(ctx).QueryContext(ctx, query, userID.String(), domain.DateKey(start), domain.DateKey(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*domain.DailySchedulePlan
	for rows.Next() {
		plan, err := scanSQLitePlan(rows.Scan)
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

// UpsertMany replaces the user's plan from the earliest date in the batch
// onward: rows on or after that date are deleted, then the batch is inserted.
func (r *SQLiteDailyPlanRepository) UpsertMany(ctx context.Context, userID uuid.UUID, plans []*domain.DailySchedulePlan) error {
	if len(plans) == 0 {
		return nil
	}

	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		return r.upsertAll(ctx, info.Tx, userID, plans)
	}

	tx, err := r.dbConn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.upsertAll(ctx, tx, userID, plans); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteDailyPlanRepository) upsertAll(ctx context.Context, q sqliteQuerier, userID uuid.UUID, plans []*domain.DailySchedulePlan) error {
	earliest := domain.DateKey(plans[0].PlanDate())
	for _, p := range plans[1:] {
		if key := domain.DateKey(p.PlanDate()); key < earliest {
			earliest = key
		}
	}

	_, err := q.ExecContext(ctx, `DELETE FROM daily_schedule_plans WHERE user_id = ? AND plan_date >= ?`, userID.String(), earliest)
	if err != nil {
		return err
	}

	for _, p := range plans {
		if err := insertSQLitePlan(ctx, q, p); err != nil {
			return err
		}
	}
	return nil
}

func insertSQLitePlan(ctx context.Context, q sqliteQuerier, p *domain.DailySchedulePlan) error {
	row, err := encodePlanRow(p)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, sqliteInsertPlan,
		row.ID.String(),
		row.UserID.String(),
		domain.DateKey(row.PlanDate),
		row.PlanGroupID.String(),
		row.Timezone,
		string(row.Day),
		string(row.TaskSnapshots),
		string(row.Unscheduled),
		string(row.Excluded),
		string(row.TimeBlocks),
		string(row.PinnedOverflow),
		string(row.PlanParams),
		row.GeneratedAt.UTC().Format(time.RFC3339Nano),
		row.CreatedAt.UTC().Format(time.RFC3339Nano),
		row.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// UpdateTimeBlock rewrites one live block in the date's row.
func (r *SQLiteDailyPlanRepository) UpdateTimeBlock(ctx context.Context, userID uuid.UUID, date time.Time, taskID uuid.UUID, newStart, newEnd time.Time) error {
	q := r.getQuerier(ctx)

	plan, err := r.getByDate(ctx, q, userID, date)
	if err != nil {
		return err
	}
	if plan == nil {
		return domain.ErrPlanNotFound
	}
	if err := plan.UpdateTimeBlock(taskID, newStart, newEnd); err != nil {
		return err
	}
	return saveSQLiteBlocks(ctx, q, plan)
}

// MoveTimeBlockAcrossDays detaches the block from the original date's row and
// attaches it to the target date's row, creating the target when missing.
func (r *SQLiteDailyPlanRepository) MoveTimeBlockAcrossDays(ctx context.Context, userID uuid.UUID, originalDate, targetDate time.Time, taskID uuid.UUID, newStart, newEnd time.Time) error {
	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		return r.moveAcrossDays(ctx, info.Tx, userID, originalDate, targetDate, taskID, newStart, newEnd)
	}

	tx, err := r.dbConn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.moveAcrossDays(ctx, tx, userID, originalDate, targetDate, taskID, newStart, newEnd); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteDailyPlanRepository) moveAcrossDays(ctx context.Context, q sqliteQuerier, userID uuid.UUID, originalDate, targetDate time.Time, taskID uuid.UUID, newStart, newEnd time.Time) error {
	source, err := r.getByDate(ctx, q, userID, originalDate)
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

	target, err := r.getByDate(ctx, q, userID, targetDate)
	if err != nil {
		return err
	}
	if target == nil {
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
		if err := saveSQLiteBlocks(ctx, q, source); err != nil {
			return err
		}
		return insertSQLitePlan(ctx, q, target)
	}

	target.AddTimeBlock(block)
	if err := saveSQLiteBlocks(ctx, q, source); err != nil {
		return err
	}
	return saveSQLiteBlocks(ctx, q, target)
}

// UpdateTaskSnapshotForGroup refreshes one task's snapshot in every row of
// the plan group.
func (r *SQLiteDailyPlanRepository) UpdateTaskSnapshotForGroup(ctx context.Context, userID, planGroupID uuid.UUID, snapshot domain.TaskPlanSnapshot) error {
	q := r.getQuerier(ctx)

	query := `SELECT ` + sqlitePlanColumns + `
		FROM daily_schedule_plans
		WHERE user_id = ? AND plan_group_id = ?
		ORDER BY plan_date
	`
	rows, err := q.QueryContext(ctx, query, userID.String(), planGroupID.String())
	if err != nil {
		return err
	}

	var plans []*domain.DailySchedulePlan
	for rows.Next() {
		plan, err := scanSQLitePlan(rows.Scan)
		if err != nil {
			rows.Close()
			return err
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, plan := range plans {
		plan.ReplaceTaskSnapshot(snapshot)
		snapshots, err := encodeJSONList(plan.TaskSnapshots())
		if err != nil {
			return err
		}
		_, err = q.ExecContext(ctx,
			`UPDATE daily_schedule_plans SET task_snapshots = ?, updated_at = ? WHERE id = ?`,
			string(snapshots), time.Now().UTC().Format(time.RFC3339Nano), plan.ID().String(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func saveSQLiteBlocks(ctx context.Context, q sqliteQuerier, plan *domain.DailySchedulePlan) error {
	blocks, err := encodeJSONList(plan.TimeBlocks())
	if err != nil {
		return err
	}
	snapshots, err := encodeJSONList(plan.TaskSnapshots())
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`UPDATE daily_schedule_plans SET time_blocks = ?, task_snapshots = ?, updated_at = ? WHERE id = ?`,
		string(blocks), string(snapshots), time.Now().UTC().Format(time.RFC3339Nano), plan.ID().String(),
	)
	return err
}

// scanSQLitePlan reads one plan row through the given scan function,
// converting the string-typed SQLite columns back into domain values.
func scanSQLitePlan(scan func(dest ...any) error) (*domain.DailySchedulePlan, error) {
	var (
		id, userID, planDate, groupID, timezone string
		day, snapshots, unscheduled, excluded   string
		blocks, pinnedOverflow, params          string
		generatedAt, createdAt, updatedAt       string
	)

	err := scan(
		&id,
		&userID,
		&planDate,
		&groupID,
		&timezone,
		&day,
		&snapshots,
		&unscheduled,
		&excluded,
		&blocks,
		&pinnedOverflow,
		&params,
		&generatedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	row := planRow{
		Timezone:       timezone,
		Day:            []byte(day),
		TaskSnapshots:  []byte(snapshots),
		Unscheduled:    []byte(unscheduled),
		Excluded:       []byte(excluded),
		TimeBlocks:     []byte(blocks),
		PinnedOverflow: []byte(pinnedOverflow),
		PlanParams:     []byte(params),
	}
	if row.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if row.UserID, err = uuid.Parse(userID); err != nil {
		return nil, err
	}
	if row.PlanGroupID, err = uuid.Parse(groupID); err != nil {
		return nil, err
	}
	if row.PlanDate, err = time.Parse(time.DateOnly, planDate); err != nil {
		return nil, err
	}
	if row.GeneratedAt, err = time.Parse(time.RFC3339Nano, generatedAt); err != nil {
		return nil, err
	}
	if row.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if row.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return row.toDomain()
}
