package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProjectVisibility controls how a project's tasks are filtered in
// "my tasks" mode.
type ProjectVisibility string

const (
	VisibilityPrivate ProjectVisibility = "private"
	VisibilityTeam    ProjectVisibility = "team"
)

// DefaultProjectPriority applies when a task belongs to no project.
const DefaultProjectPriority = 5

// Project is the read model scheduling consumes: identity, priority weight,
// visibility. Project CRUD lives outside this context.
type Project struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Name       string
	Priority   int
	Visibility ProjectVisibility
}

// User is the read model scheduling consumes; only the timezone matters.
type User struct {
	ID       uuid.UUID
	Email    string
	Name     string
	Timezone string
}

// Location resolves the user's timezone, falling back to the default.
func (u *User) Location() *time.Location {
	if u == nil {
		return LoadLocation("")
	}
	return LoadLocation(u.Timezone)
}

// TaskAssignment links a task to an assignee.
type TaskAssignment struct {
	ID         uuid.UUID
	TaskID     uuid.UUID
	AssigneeID uuid.UUID
	CreatedAt  time.Time
}

// SnapshotTaskWindow is one task's planned window in an external baseline.
type SnapshotTaskWindow struct {
	TaskID       uuid.UUID  `json:"task_id"`
	PlannedStart *time.Time `json:"planned_start,omitempty"`
	PlannedEnd   *time.Time `json:"planned_end,omitempty"`
}

// ScheduleSnapshot is a read-only baseline produced elsewhere. When plan
// constraints are applied, each window restricts where its task may appear.
type ScheduleSnapshot struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ProjectID   *uuid.UUID
	IsActive    bool
	TaskWindows []SnapshotTaskWindow
	CreatedAt   time.Time
}

// WindowFor returns the planned window for a task, if the snapshot has one.
func (s *ScheduleSnapshot) WindowFor(taskID uuid.UUID) (SnapshotTaskWindow, bool) {
	if s == nil {
		return SnapshotTaskWindow{}, false
	}
	for _, w := range s.TaskWindows {
		if w.TaskID == taskID {
			return w, true
		}
	}
	return SnapshotTaskWindow{}, false
}
