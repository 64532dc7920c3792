package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mugi0227/nagi-sub000/internal/heartbeat/domain"
	schedulingDomain "github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
	"github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/outbox"
)

// mockTaskRepo is a mock implementation of the scheduling TaskRepository.
type mockTaskRepo struct {
	mock.Mock
}

func (m *mockTaskRepo) List(ctx context.Context, userID uuid.UUID, includeDone bool, limit int) ([]*schedulingDomain.Task, error) {
	args := m.Called(ctx, userID, includeDone, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*schedulingDomain.Task), args.Error(1)
}

func (m *mockTaskRepo) Get(ctx context.Context, userID, taskID uuid.UUID) (*schedulingDomain.Task, error) {
	args := m.Called(ctx, userID, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schedulingDomain.Task), args.Error(1)
}

func (m *mockTaskRepo) Update(ctx context.Context, userID, taskID uuid.UUID, patch schedulingDomain.TaskPatch) (*schedulingDomain.Task, error) {
	args := m.Called(ctx, userID, taskID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schedulingDomain.Task), args.Error(1)
}

func (m *mockTaskRepo) ListCompletedInPeriod(ctx context.Context, userID uuid.UUID, start, end time.Time, projectID *uuid.UUID) ([]*schedulingDomain.Task, error) {
	args := m.Called(ctx, userID, start, end, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*schedulingDomain.Task), args.Error(1)
}

// mockSettingsRepo is a mock implementation of ScheduleSettingsRepository.
type mockSettingsRepo struct {
	mock.Mock
}

func (m *mockSettingsRepo) Get(ctx context.Context, userID uuid.UUID) (*schedulingDomain.ScheduleSettings, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schedulingDomain.ScheduleSettings), args.Error(1)
}

func (m *mockSettingsRepo) Save(ctx context.Context, settings *schedulingDomain.ScheduleSettings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

// mockMessageRepo is a mock implementation of domain.MessageRepository.
type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) Save(ctx context.Context, message *domain.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *mockMessageRepo) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Message, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

// mockRetroRepo is a mock implementation of domain.RetrospectiveRepository.
type mockRetroRepo struct {
	mock.Mock
}

func (m *mockRetroRepo) GetLatest(ctx context.Context, userID uuid.UUID) (*domain.Retrospective, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Retrospective), args.Error(1)
}

func (m *mockRetroRepo) Save(ctx context.Context, retro *domain.Retrospective) error {
	args := m.Called(ctx, retro)
	return args.Error(0)
}

// mockGate is a mock implementation of domain.NotificationGate.
type mockGate struct {
	mock.Mock
}

func (m *mockGate) InCooldown(ctx context.Context, userID, taskID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID, taskID)
	return args.Bool(0), args.Error(1)
}

func (m *mockGate) SentToday(ctx context.Context, userID uuid.UUID, dateKey string) (int, error) {
	args := m.Called(ctx, userID, dateKey)
	return args.Int(0), args.Error(1)
}

func (m *mockGate) MarkSent(ctx context.Context, userID, taskID uuid.UUID, dateKey string, cooldown time.Duration) error {
	args := m.Called(ctx, userID, taskID, dateKey, cooldown)
	return args.Error(0)
}

// mockOutboxRepo is a mock implementation of outbox.Repository.
type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) Save(ctx context.Context, msg *outbox.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockOutboxRepo) SaveBatch(ctx context.Context, msgs []*outbox.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockOutboxRepo) GetUnpublished(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *mockOutboxRepo) MarkPublished(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOutboxRepo) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	args := m.Called(ctx, id, errMsg, nextRetryAt)
	return args.Error(0)
}

func (m *mockOutboxRepo) MarkDead(ctx context.Context, id int64, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *mockOutboxRepo) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	args := m.Called(ctx, olderThanDays)
	return args.Get(0).(int64), args.Error(1)
}

// mockUnitOfWork is a mock implementation of UnitOfWork.
type mockUnitOfWork struct {
	mock.Mock
}

func (m *mockUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	return args.Get(0).(context.Context), args.Error(1)
}

func (m *mockUnitOfWork) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockUnitOfWork) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type txKey string

var hbUser = uuid.MustParse("6e9d2b11-3c4f-4d8a-b7e6-5f0a1b2c3d4e")

// hbNow is Monday 2026-03-02 10:00 UTC, inside the default window.
var hbNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func hbClock() time.Time { return hbNow }

func hbUserRow() *schedulingDomain.User {
	return &schedulingDomain.User{ID: hbUser, Email: "dev@example.com", Name: "Dev", Timezone: "UTC"}
}

// hbTask builds a TODO task with a one-hour estimate due dueInDays from now.
func hbTask(n byte, title string, dueInDays int, importance schedulingDomain.Level) *schedulingDomain.Task {
	due := time.Date(2026, time.March, 2+dueInDays, 18, 0, 0, 0, time.UTC)
	est := 60
	created := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	return schedulingDomain.RehydrateTask(
		uuid.UUID{15: n}, hbUser, nil, nil,
		title, schedulingDomain.StatusTodo,
		importance, schedulingDomain.LevelMedium, schedulingDomain.EnergyHigh,
		&est, 0,
		&due, nil, nil,
		false, nil, nil, false,
		true, 0,
		false, 0,
		nil, nil,
		created, hbNow,
	)
}

type heartbeatMocks struct {
	tasks    *mockTaskRepo
	settings *mockSettingsRepo
	messages *mockMessageRepo
	gate     *mockGate
	outbox   *mockOutboxRepo
	uow      *mockUnitOfWork
}

func newHeartbeat(cfg HeartbeatConfig) (*HeartbeatService, heartbeatMocks) {
	m := heartbeatMocks{
		tasks:    new(mockTaskRepo),
		settings: new(mockSettingsRepo),
		messages: new(mockMessageRepo),
		gate:     new(mockGate),
		outbox:   new(mockOutboxRepo),
		uow:      new(mockUnitOfWork),
	}
	svc := NewHeartbeatService(m.tasks, m.settings, m.messages, m.gate, m.outbox, m.uow, cfg, nil).WithClock(hbClock)
	return svc, m
}

func savedFor(taskID uuid.UUID) any {
	return mock.MatchedBy(func(msg *domain.Message) bool {
		return msg.Kind == domain.MessageKindHeartbeat && msg.TaskID != nil && *msg.TaskID == taskID
	})
}

func TestHeartbeatRunForUser(t *testing.T) {
	ctx := context.Background()
	txCtx := context.WithValue(ctx, txKey("tx"), "transaction")
	urgentID := uuid.UUID{15: 1}

	t.Run("raises a nudge for an urgent task", func(t *testing.T) {
		svc, m := newHeartbeat(HeartbeatConfig{})

		m.tasks.On("List", ctx, hbUser, false, 0).Return([]*schedulingDomain.Task{
			hbTask(1, "Ship release", 0, schedulingDomain.LevelHigh),
			hbTask(2, "Read paper", 28, schedulingDomain.LevelLow),
		}, nil)
		m.settings.On("Get", ctx, hbUser).Return(nil, nil)
		m.gate.On("SentToday", ctx, hbUser, "2026-03-02").Return(0, nil)
		m.gate.On("InCooldown", ctx, hbUser, urgentID).Return(false, nil)
		m.gate.On("MarkSent", ctx, hbUser, urgentID, "2026-03-02", 24*time.Hour).Return(nil)
		m.uow.On("Begin", ctx).Return(txCtx, nil)
		m.uow.On("Commit", txCtx).Return(nil)
		m.messages.On("Save", txCtx, savedFor(urgentID)).Return(nil)
		m.outbox.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		notified, err := svc.RunForUser(ctx, hbUserRow())

		require.NoError(t, err)
		assert.Equal(t, 1, notified)
		m.messages.AssertExpectations(t)
		m.gate.AssertExpectations(t)
		m.outbox.AssertExpectations(t)
		m.uow.AssertExpectations(t)
	})

	t.Run("outside the delivery window nothing runs", func(t *testing.T) {
		svc, m := newHeartbeat(HeartbeatConfig{})
		svc.WithClock(func() time.Time {
			return time.Date(2026, 3, 2, 22, 30, 0, 0, time.UTC)
		})

		notified, err := svc.RunForUser(ctx, hbUserRow())

		require.NoError(t, err)
		assert.Equal(t, 0, notified)
		m.settings.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
		m.tasks.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("quiet backlog raises nothing", func(t *testing.T) {
		svc, m := newHeartbeat(HeartbeatConfig{})

		m.settings.On("Get", ctx, hbUser).Return(nil, nil)
		m.tasks.On("List", ctx, hbUser, false, 0).Return([]*schedulingDomain.Task{
			hbTask(1, "Read paper", 28, schedulingDomain.LevelLow),
		}, nil)

		notified, err := svc.RunForUser(ctx, hbUserRow())

		require.NoError(t, err)
		assert.Equal(t, 0, notified)
		m.gate.AssertNotCalled(t, "SentToday", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("cooldown suppresses a repeat nudge", func(t *testing.T) {
		svc, m := newHeartbeat(HeartbeatConfig{})
		secondID := uuid.UUID{15: 2}

		m.settings.On("Get", ctx, hbUser).Return(nil, nil)
		m.tasks.On("List", ctx, hbUser, false, 0).Return([]*schedulingDomain.Task{
			hbTask(1, "Ship release", 0, schedulingDomain.LevelHigh),
			hbTask(2, "Write report", 0, schedulingDomain.LevelMedium),
		}, nil)
		m.gate.On("SentToday", ctx, hbUser, "2026-03-02").Return(0, nil)
		m.gate.On("InCooldown", ctx, hbUser, urgentID).Return(true, nil)
		m.gate.On("InCooldown", ctx, hbUser, secondID).Return(false, nil)
		m.gate.On("MarkSent", ctx, hbUser, secondID, "2026-03-02", 24*time.Hour).Return(nil)
		m.uow.On("Begin", ctx).Return(txCtx, nil)
		m.uow.On("Commit", txCtx).Return(nil)
		m.messages.On("Save", txCtx, savedFor(secondID)).Return(nil)
		m.outbox.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		notified, err := svc.RunForUser(ctx, hbUserRow())

		require.NoError(t, err)
		assert.Equal(t, 1, notified)
		m.messages.AssertExpectations(t)
	})

	t.Run("daily cap counts nudges already sent", func(t *testing.T) {
		svc, m := newHeartbeat(HeartbeatConfig{DailyLimit: 2})

		m.settings.On("Get", ctx, hbUser).Return(nil, nil)
		m.tasks.On("List", ctx, hbUser, false, 0).Return([]*schedulingDomain.Task{
			hbTask(1, "Ship release", 0, schedulingDomain.LevelHigh),
			hbTask(2, "Write report", 0, schedulingDomain.LevelMedium),
			hbTask(3, "Plan sprint", 0, schedulingDomain.LevelLow),
		}, nil)
		m.gate.On("SentToday", ctx, hbUser, "2026-03-02").Return(1, nil)
		m.gate.On("InCooldown", ctx, hbUser, urgentID).Return(false, nil)
		m.gate.On("MarkSent", ctx, hbUser, urgentID, "2026-03-02", 24*time.Hour).Return(nil)
		m.uow.On("Begin", ctx).Return(txCtx, nil)
		m.uow.On("Commit", txCtx).Return(nil)
		m.messages.On("Save", txCtx, savedFor(urgentID)).Return(nil)
		m.outbox.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		notified, err := svc.RunForUser(ctx, hbUserRow())

		require.NoError(t, err)
		assert.Equal(t, 1, notified)
		m.messages.AssertNumberOfCalls(t, "Save", 1)
	})

	t.Run("one failed nudge does not block the next", func(t *testing.T) {
		svc, m := newHeartbeat(HeartbeatConfig{})
		secondID := uuid.UUID{15: 2}

		m.settings.On("Get", ctx, hbUser).Return(nil, nil)
		m.tasks.On("List", ctx, hbUser, false, 0).Return([]*schedulingDomain.Task{
			hbTask(1, "Ship release", 0, schedulingDomain.LevelHigh),
			hbTask(2, "Write report", 0, schedulingDomain.LevelMedium),
		}, nil)
		m.gate.On("SentToday", ctx, hbUser, "2026-03-02").Return(0, nil)
		m.gate.On("InCooldown", ctx, hbUser, urgentID).Return(false, nil)
		m.gate.On("InCooldown", ctx, hbUser, secondID).Return(false, nil)
		m.gate.On("MarkSent", ctx, hbUser, secondID, "2026-03-02", 24*time.Hour).Return(nil)
		m.uow.On("Begin", ctx).Return(txCtx, nil)
		m.uow.On("Rollback", txCtx).Return(nil)
		m.uow.On("Commit", txCtx).Return(nil)
		m.messages.On("Save", txCtx, savedFor(urgentID)).Return(errors.New("disk full"))
		m.messages.On("Save", txCtx, savedFor(secondID)).Return(nil)
		m.outbox.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		notified, err := svc.RunForUser(ctx, hbUserRow())

		require.NoError(t, err)
		assert.Equal(t, 1, notified)
		m.gate.AssertNotCalled(t, "MarkSent", ctx, hbUser, urgentID, mock.Anything, mock.Anything)
	})

	t.Run("gate read failures abort the run", func(t *testing.T) {
		svc, m := newHeartbeat(HeartbeatConfig{})
		gateErr := errors.New("redis down")

		m.settings.On("Get", ctx, hbUser).Return(nil, nil)
		m.tasks.On("List", ctx, hbUser, false, 0).Return([]*schedulingDomain.Task{
			hbTask(1, "Ship release", 0, schedulingDomain.LevelHigh),
		}, nil)
		m.gate.On("SentToday", ctx, hbUser, "2026-03-02").Return(0, gateErr)

		notified, err := svc.RunForUser(ctx, hbUserRow())

		assert.ErrorIs(t, err, gateErr)
		assert.Equal(t, 0, notified)
		m.uow.AssertNotCalled(t, "Begin", mock.Anything)
	})
}
