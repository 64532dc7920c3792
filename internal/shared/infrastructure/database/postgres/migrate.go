package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate runs all schema migrations against the pool. Called once at
// startup; every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         UUID PRIMARY KEY,
		email      TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL DEFAULT '',
		timezone   TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS projects (
		id         UUID PRIMARY KEY,
		user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		priority   INTEGER NOT NULL DEFAULT 5,
		visibility TEXT NOT NULL DEFAULT 'private'
		           CHECK(visibility IN ('private','team')),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_projects_user ON projects(user_id)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		id                       UUID PRIMARY KEY,
		user_id                  UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		project_id               UUID REFERENCES projects(id) ON DELETE SET NULL,
		parent_id                UUID REFERENCES tasks(id) ON DELETE SET NULL,
		title                    TEXT NOT NULL,
		status                   TEXT NOT NULL DEFAULT 'TODO'
		                         CHECK(status IN ('TODO','IN_PROGRESS','WAITING','DONE')),
		importance               TEXT NOT NULL DEFAULT 'MEDIUM',
		urgency                  TEXT NOT NULL DEFAULT 'MEDIUM',
		energy_level             TEXT NOT NULL DEFAULT 'HIGH',
		estimated_minutes        INTEGER,
		progress_percent         INTEGER NOT NULL DEFAULT 0,
		due_date                 TIMESTAMPTZ,
		start_not_before         TIMESTAMPTZ,
		pinned_date              TIMESTAMPTZ,
		is_fixed_time            BOOLEAN NOT NULL DEFAULT FALSE,
		start_time               TIMESTAMPTZ,
		end_time                 TIMESTAMPTZ,
		is_all_day               BOOLEAN NOT NULL DEFAULT FALSE,
		same_day_allowed         BOOLEAN NOT NULL DEFAULT TRUE,
		min_gap_days             INTEGER NOT NULL DEFAULT 0,
		touchpoint_enabled       BOOLEAN NOT NULL DEFAULT FALSE,
		touchpoint_interval_days INTEGER NOT NULL DEFAULT 0,
		dependency_ids           JSONB,
		completed_at             TIMESTAMPTZ,
		created_at               TIMESTAMPTZ NOT NULL,
		updated_at               TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_user_status ON tasks(user_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks(user_id, completed_at)`,

	`CREATE TABLE IF NOT EXISTS task_assignments (
		id          UUID PRIMARY KEY,
		task_id     UUID NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		assignee_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at  TIMESTAMPTZ NOT NULL,
		UNIQUE(task_id, assignee_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_assignments_assignee ON task_assignments(assignee_id)`,

	`CREATE TABLE IF NOT EXISTS schedule_snapshots (
		id           UUID PRIMARY KEY,
		user_id      UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		project_id   UUID REFERENCES projects(id) ON DELETE CASCADE,
		is_active    BOOLEAN NOT NULL DEFAULT TRUE,
		task_windows JSONB NOT NULL DEFAULT '[]',
		created_at   TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_snapshots_user_active ON schedule_snapshots(user_id, is_active)`,

	`CREATE TABLE IF NOT EXISTS schedule_settings (
		user_id                  UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		weekly_work_hours        JSONB NOT NULL,
		buffer_hours             DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		break_after_task_minutes INTEGER NOT NULL DEFAULT 5,
		created_at               TIMESTAMPTZ NOT NULL,
		updated_at               TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS daily_schedule_plans (
		id                       UUID PRIMARY KEY,
		user_id                  UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		plan_date                DATE NOT NULL,
		plan_group_id            UUID NOT NULL,
		timezone                 TEXT NOT NULL DEFAULT '',
		day                      JSONB NOT NULL,
		task_snapshots           JSONB NOT NULL DEFAULT '[]',
		unscheduled_tasks        JSONB NOT NULL DEFAULT '[]',
		excluded_tasks           JSONB NOT NULL DEFAULT '[]',
		time_blocks              JSONB NOT NULL DEFAULT '[]',
		pinned_overflow_task_ids JSONB NOT NULL DEFAULT '[]',
		plan_params              JSONB NOT NULL DEFAULT '{}',
		generated_at             TIMESTAMPTZ NOT NULL,
		created_at               TIMESTAMPTZ NOT NULL,
		updated_at               TIMESTAMPTZ NOT NULL,
		UNIQUE(user_id, plan_date)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_plans_group ON daily_schedule_plans(user_id, plan_group_id)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id         UUID PRIMARY KEY,
		user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		task_id    UUID REFERENCES tasks(id) ON DELETE SET NULL,
		kind       TEXT NOT NULL,
		severity   TEXT,
		content    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_user_created ON messages(user_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS retrospectives (
		id              UUID PRIMARY KEY,
		user_id         UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		period_start    TIMESTAMPTZ NOT NULL,
		period_end      TIMESTAMPTZ NOT NULL,
		completed_count INTEGER NOT NULL DEFAULT 0,
		total_minutes   INTEGER NOT NULL DEFAULT 0,
		summary         TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL,
		UNIQUE(user_id, period_end)
	)`,

	`CREATE TABLE IF NOT EXISTS outbox (
		id                 BIGSERIAL PRIMARY KEY,
		event_id           UUID NOT NULL UNIQUE,
		aggregate_type     TEXT NOT NULL,
		aggregate_id       UUID NOT NULL,
		event_type         TEXT NOT NULL,
		routing_key        TEXT NOT NULL,
		payload            JSONB NOT NULL,
		metadata           JSONB,
		created_at         TIMESTAMPTZ NOT NULL,
		published_at       TIMESTAMPTZ,
		next_retry_at      TIMESTAMPTZ,
		retry_count        INTEGER NOT NULL DEFAULT 0,
		last_error         TEXT,
		dead_lettered_at   TIMESTAMPTZ,
		dead_letter_reason TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_outbox_unpublished ON outbox(created_at) WHERE published_at IS NULL`,
}
