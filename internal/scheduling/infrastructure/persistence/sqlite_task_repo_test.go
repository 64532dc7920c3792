package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

type taskSeed struct {
	id               uuid.UUID
	userID           uuid.UUID
	projectID        *uuid.UUID
	title            string
	status           domain.Status
	estimatedMinutes *int
	isFixedTime      bool
	startTime        *time.Time
	endTime          *time.Time
	dueDate          *time.Time
	completedAt      *time.Time
	createdAt        time.Time
}

// insertTask seeds a task row directly; task CRUD is owned by another context,
// so the scheduling repositories have no insert path of their own.
func insertTask(t *testing.T, sqlDB *sql.DB, seed taskSeed) uuid.UUID {
	t.Helper()

	if seed.id == uuid.Nil {
		seed.id = uuid.New()
	}
	if seed.title == "" {
		seed.title = "Task"
	}
	if seed.status == "" {
		seed.status = domain.StatusTodo
	}
	if seed.createdAt.IsZero() {
		seed.createdAt = time.Now().UTC()
	}
	created := seed.createdAt.UTC().Format(time.RFC3339Nano)

	_, err := sqlDB.Exec(`INSERT INTO tasks (
			id, user_id, project_id, title, status,
			estimated_minutes, is_fixed_time, start_time, end_time,
			due_date, completed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seed.id.String(), seed.userID.String(), nullableUUIDText(seed.projectID),
		seed.title, string(seed.status),
		nullableInt(seed.estimatedMinutes), boolToInt(seed.isFixedTime),
		nullableTimeText(seed.startTime), nullableTimeText(seed.endTime),
		nullableTimeText(seed.dueDate), nullableTimeText(seed.completedAt),
		created, created,
	)
	require.NoError(t, err)
	return seed.id
}

func intPtr(v int) *int              { return &v }
func timePtr(v time.Time) *time.Time { return &v }

func TestSQLiteTaskRepo_List(t *testing.T) {
	sqlDB := setupSQLiteTestDB(t)
	ctx := context.Background()
	repo := NewSQLiteTaskRepository(sqlDB)

	userID := createTestUser(t, sqlDB)
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	insertTask(t, sqlDB, taskSeed{userID: userID, title: "First", createdAt: base})
	insertTask(t, sqlDB, taskSeed{userID: userID, title: "Second", createdAt: base.Add(time.Minute)})
	insertTask(t, sqlDB, taskSeed{
		userID: userID, title: "Finished", status: domain.StatusDone,
		completedAt: timePtr(base.Add(2 * time.Minute)), createdAt: base.Add(2 * time.Minute),
	})

	tasks, err := repo.List(ctx, userID, false, 0)
	require.NoError(t, err)
	require.Len(t, tasks, 2, "DONE tasks are filtered out by default")
	assert.Equal(t, "First", tasks[0].Title())
	assert.Equal(t, "Second", tasks[1].Title())

	tasks, err = repo.List(ctx, userID, true, 0)
	require.NoError(t, err)
	assert.Len(t, tasks, 3)

	tasks, err = repo.List(ctx, userID, true, 1)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "First", tasks[0].Title())
}

func TestSQLiteTaskRepo_Get(t *testing.T) {
	sqlDB := setupSQLiteTestDB(t)
	ctx := context.Background()
	repo := NewSQLiteTaskRepository(sqlDB)

	userID := createTestUser(t, sqlDB)
	due := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	taskID := insertTask(t, sqlDB, taskSeed{
		userID: userID, title: "Quarterly review",
		estimatedMinutes: intPtr(90), dueDate: timePtr(due),
	})

	task, err := repo.Get(ctx, userID, taskID)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, taskID, task.ID())
	assert.Equal(t, "Quarterly review", task.Title())
	assert.Equal(t, domain.StatusTodo, task.Status())
	require.NotNil(t, task.EstimatedMinutes())
	assert.Equal(t, 90, *task.EstimatedMinutes())
	require.NotNil(t, task.DueDate())
	assert.True(t, task.DueDate().Equal(due))

	missing, err := repo.Get(ctx, userID, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Tasks are scoped to their owner.
	otherUser := createTestUser(t, sqlDB)
	foreign, err := repo.Get(ctx, otherUser, taskID)
	require.NoError(t, err)
	assert.Nil(t, foreign)
}

func TestSQLiteTaskRepo_Update_TimeRange(t *testing.T) {
	sqlDB := setupSQLiteTestDB(t)
	ctx := context.Background()
	repo := NewSQLiteTaskRepository(sqlDB)

	userID := createTestUser(t, sqlDB)
	origStart := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	origEnd := origStart.Add(time.Hour)
	taskID := insertTask(t, sqlDB, taskSeed{
		userID: userID, title: "Standup", isFixedTime: true,
		startTime: timePtr(origStart), endTime: timePtr(origEnd),
		estimatedMinutes: intPtr(60),
	})

	newStart := origStart.Add(2 * time.Hour)
	newEnd := newStart.Add(time.Hour)
	updated, err := repo.Update(ctx, userID, taskID, domain.TaskPatch{
		StartTime: timePtr(newStart),
		EndTime:   timePtr(newEnd),
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.True(t, updated.StartTime().Equal(newStart))
	assert.True(t, updated.EndTime().Equal(newEnd))

	reread, err := repo.Get(ctx, userID, taskID)
	require.NoError(t, err)
	require.NotNil(t, reread)
	assert.True(t, reread.StartTime().Equal(newStart))
	assert.True(t, reread.EndTime().Equal(newEnd))
	require.NotNil(t, reread.EstimatedMinutes())
	assert.Equal(t, 60, *reread.EstimatedMinutes(), "estimate is untouched by a time-range patch")
}

func TestSQLiteTaskRepo_Update_Estimate(t *testing.T) {
	sqlDB := setupSQLiteTestDB(t)
	ctx := context.Background()
	repo := NewSQLiteTaskRepository(sqlDB)

	userID := createTestUser(t, sqlDB)
	taskID := insertTask(t, sqlDB, taskSeed{userID: userID, estimatedMinutes: intPtr(30)})

	updated, err := repo.Update(ctx, userID, taskID, domain.TaskPatch{EstimatedMinutes: intPtr(45)})
	require.NoError(t, err)
	require.NotNil(t, updated)
	require.NotNil(t, updated.EstimatedMinutes())
	assert.Equal(t, 45, *updated.EstimatedMinutes())

	reread, err := repo.Get(ctx, userID, taskID)
	require.NoError(t, err)
	require.NotNil(t, reread.EstimatedMinutes())
	assert.Equal(t, 45, *reread.EstimatedMinutes())
}

func TestSQLiteTaskRepo_Update_MissingTask(t *testing.T) {
	sqlDB := setupSQLiteTestDB(t)
	ctx := context.Background()
	repo := NewSQLiteTaskRepository(sqlDB)

	userID := createTestUser(t, sqlDB)
	updated, err := repo.Update(ctx, userID, uuid.New(), domain.TaskPatch{EstimatedMinutes: intPtr(45)})
	require.NoError(t, err)
	assert.Nil(t, updated)
}

func TestSQLiteTaskRepo_ListCompletedInPeriod(t *testing.T) {
	sqlDB := setupSQLiteTestDB(t)
	ctx := context.Background()
	repo := NewSQLiteTaskRepository(sqlDB)

	userID := createTestUser(t, sqlDB)
	projectID := insertProject(t, sqlDB, userID, "Deep work", 7, "private")

	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	weekEnd := weekStart.AddDate(0, 0, 7)

	insertTask(t, sqlDB, taskSeed{
		userID: userID, title: "In week", status: domain.StatusDone,
		completedAt: timePtr(weekStart.Add(26 * time.Hour)),
	})
	insertTask(t, sqlDB, taskSeed{
		userID: userID, projectID: &projectID, title: "In week, in project", status: domain.StatusDone,
		completedAt: timePtr(weekStart.Add(50 * time.Hour)),
	})
	insertTask(t, sqlDB, taskSeed{
		userID: userID, title: "Before week", status: domain.StatusDone,
		completedAt: timePtr(weekStart.Add(-time.Hour)),
	})
	insertTask(t, sqlDB, taskSeed{
		userID: userID, title: "At end boundary", status: domain.StatusDone,
		completedAt: timePtr(weekEnd),
	})
	insertTask(t, sqlDB, taskSeed{userID: userID, title: "Still open"})

	tasks, err := repo.ListCompletedInPeriod(ctx, userID, weekStart, weekEnd, nil)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "In week", tasks[0].Title())
	assert.Equal(t, "In week, in project", tasks[1].Title())

	tasks, err = repo.ListCompletedInPeriod(ctx, userID, weekStart, weekEnd, &projectID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "In week, in project", tasks[0].Title())
}
