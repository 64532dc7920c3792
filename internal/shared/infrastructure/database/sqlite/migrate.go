package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations. Statements are ordered and re-run on
// every open; CREATE ... IF NOT EXISTS keeps them idempotent, and duplicate
// column errors from ALTER TABLE are tolerated.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		email      TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL DEFAULT '',
		timezone   TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS projects (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		priority   INTEGER NOT NULL DEFAULT 5,
		visibility TEXT NOT NULL DEFAULT 'private'
		           CHECK(visibility IN ('private','team')),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_projects_user ON projects(user_id)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		id                       TEXT PRIMARY KEY,
		user_id                  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		project_id               TEXT REFERENCES projects(id) ON DELETE SET NULL,
		parent_id                TEXT REFERENCES tasks(id) ON DELETE SET NULL,
		title                    TEXT NOT NULL,
		status                   TEXT NOT NULL DEFAULT 'TODO'
		                         CHECK(status IN ('TODO','IN_PROGRESS','WAITING','DONE')),
		importance               TEXT NOT NULL DEFAULT 'MEDIUM',
		urgency                  TEXT NOT NULL DEFAULT 'MEDIUM',
		energy_level             TEXT NOT NULL DEFAULT 'HIGH',
		estimated_minutes        INTEGER,
		progress_percent         INTEGER NOT NULL DEFAULT 0,
		due_date                 TEXT,
		start_not_before         TEXT,
		pinned_date              TEXT,
		is_fixed_time            INTEGER NOT NULL DEFAULT 0,
		start_time               TEXT,
		end_time                 TEXT,
		is_all_day               INTEGER NOT NULL DEFAULT 0,
		same_day_allowed         INTEGER NOT NULL DEFAULT 1,
		min_gap_days             INTEGER NOT NULL DEFAULT 0,
		touchpoint_enabled       INTEGER NOT NULL DEFAULT 0,
		touchpoint_interval_days INTEGER NOT NULL DEFAULT 0,
		dependency_ids           TEXT,
		completed_at             TEXT,
		created_at               TEXT NOT NULL,
		updated_at               TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_user_status ON tasks(user_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks(user_id, completed_at)`,

	`CREATE TABLE IF NOT EXISTS task_assignments (
		id          TEXT PRIMARY KEY,
		task_id     TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		assignee_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at  TEXT NOT NULL,
		UNIQUE(task_id, assignee_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_assignments_assignee ON task_assignments(assignee_id)`,

	`CREATE TABLE IF NOT EXISTS schedule_snapshots (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		project_id   TEXT REFERENCES projects(id) ON DELETE CASCADE,
		is_active    INTEGER NOT NULL DEFAULT 1,
		task_windows TEXT NOT NULL DEFAULT '[]',
		created_at   TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_snapshots_user_active ON schedule_snapshots(user_id, is_active)`,

	`CREATE TABLE IF NOT EXISTS schedule_settings (
		user_id                  TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		weekly_work_hours        TEXT NOT NULL,
		buffer_hours             REAL NOT NULL DEFAULT 1.0,
		break_after_task_minutes INTEGER NOT NULL DEFAULT 5,
		created_at               TEXT NOT NULL,
		updated_at               TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS daily_schedule_plans (
		id                       TEXT PRIMARY KEY,
		user_id                  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		plan_date                TEXT NOT NULL,
		plan_group_id            TEXT NOT NULL,
		timezone                 TEXT NOT NULL DEFAULT '',
		day                      TEXT NOT NULL,
		task_snapshots           TEXT NOT NULL DEFAULT '[]',
		unscheduled_tasks        TEXT NOT NULL DEFAULT '[]',
		excluded_tasks           TEXT NOT NULL DEFAULT '[]',
		time_blocks              TEXT NOT NULL DEFAULT '[]',
		pinned_overflow_task_ids TEXT NOT NULL DEFAULT '[]',
		plan_params              TEXT NOT NULL DEFAULT '{}',
		generated_at             TEXT NOT NULL,
		created_at               TEXT NOT NULL,
		updated_at               TEXT NOT NULL,
		UNIQUE(user_id, plan_date)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_plans_group ON daily_schedule_plans(user_id, plan_group_id)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		task_id    TEXT REFERENCES tasks(id) ON DELETE SET NULL,
		kind       TEXT NOT NULL,
		severity   TEXT,
		content    TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_user_created ON messages(user_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS retrospectives (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		period_start    TEXT NOT NULL,
		period_end      TEXT NOT NULL,
		completed_count INTEGER NOT NULL DEFAULT 0,
		total_minutes   INTEGER NOT NULL DEFAULT 0,
		summary         TEXT NOT NULL DEFAULT '',
		created_at      TEXT NOT NULL,
		UNIQUE(user_id, period_end)
	)`,

	`CREATE TABLE IF NOT EXISTS outbox (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id           TEXT NOT NULL UNIQUE,
		aggregate_type     TEXT NOT NULL,
		aggregate_id       TEXT NOT NULL,
		event_type         TEXT NOT NULL,
		routing_key        TEXT NOT NULL,
		payload            TEXT NOT NULL,
		metadata           TEXT,
		created_at         TEXT NOT NULL,
		published_at       TEXT,
		next_retry_at      TEXT,
		retry_count        INTEGER NOT NULL DEFAULT 0,
		last_error         TEXT,
		dead_lettered_at   TEXT,
		dead_letter_reason TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_outbox_unpublished ON outbox(created_at) WHERE published_at IS NULL`,
}
