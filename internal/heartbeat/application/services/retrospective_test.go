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
)

type retroMocks struct {
	tasks    *mockTaskRepo
	retros   *mockRetroRepo
	messages *mockMessageRepo
	outbox   *mockOutboxRepo
	uow      *mockUnitOfWork
}

func newRetrospective() (*RetrospectiveService, retroMocks) {
	m := retroMocks{
		tasks:    new(mockTaskRepo),
		retros:   new(mockRetroRepo),
		messages: new(mockMessageRepo),
		outbox:   new(mockOutboxRepo),
		uow:      new(mockUnitOfWork),
	}
	svc := NewRetrospectiveService(m.tasks, m.retros, m.messages, m.outbox, m.uow, nil).WithClock(hbClock)
	return svc, m
}

// hbNow is Monday 2026-03-02; the last Friday boundary is Feb 27.
var lastFriday = time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)

func TestRetrospectiveRunForUser(t *testing.T) {
	ctx := context.Background()
	txCtx := context.WithValue(ctx, txKey("tx"), "transaction")

	t.Run("closes the first period", func(t *testing.T) {
		svc, m := newRetrospective()
		weekStart := lastFriday.AddDate(0, 0, -7)

		m.retros.On("GetLatest", ctx, hbUser).Return(nil, nil)
		m.tasks.On("ListCompletedInPeriod", ctx, hbUser, weekStart, lastFriday, (*uuid.UUID)(nil)).Return([]*schedulingDomain.Task{
			hbTask(1, "Write report", 10, schedulingDomain.LevelMedium),
			hbTask(2, "Fix login bug", 10, schedulingDomain.LevelMedium),
		}, nil)
		m.uow.On("Begin", ctx).Return(txCtx, nil)
		m.uow.On("Commit", txCtx).Return(nil)
		m.retros.On("Save", txCtx, mock.MatchedBy(func(r *domain.Retrospective) bool {
			return r.PeriodStart.Equal(weekStart) && r.PeriodEnd.Equal(lastFriday) && r.CompletedCount == 2
		})).Return(nil)
		m.messages.On("Save", txCtx, mock.MatchedBy(func(msg *domain.Message) bool {
			return msg.Kind == domain.MessageKindRetrospective && msg.TaskID == nil
		})).Return(nil)
		m.outbox.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		retro, err := svc.RunForUser(ctx, hbUserRow())

		require.NoError(t, err)
		require.NotNil(t, retro)
		assert.Equal(t, 2, retro.CompletedCount)
		assert.Equal(t, 120, retro.TotalMinutes)
		assert.Contains(t, retro.Summary, "Write report")
		m.retros.AssertExpectations(t)
		m.messages.AssertExpectations(t)
		m.uow.AssertExpectations(t)
	})

	t.Run("an already closed period is a no-op", func(t *testing.T) {
		svc, m := newRetrospective()

		m.retros.On("GetLatest", ctx, hbUser).Return(&domain.Retrospective{
			UserID:    hbUser,
			PeriodEnd: lastFriday,
		}, nil)

		retro, err := svc.RunForUser(ctx, hbUserRow())

		require.NoError(t, err)
		assert.Nil(t, retro)
		m.tasks.AssertNotCalled(t, "ListCompletedInPeriod",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("catch-up spans missed weeks", func(t *testing.T) {
		svc, m := newRetrospective()
		staleEnd := lastFriday.AddDate(0, 0, -14)

		m.retros.On("GetLatest", ctx, hbUser).Return(&domain.Retrospective{
			UserID:    hbUser,
			PeriodEnd: staleEnd,
		}, nil)
		m.tasks.On("ListCompletedInPeriod", ctx, hbUser, staleEnd, lastFriday, (*uuid.UUID)(nil)).Return([]*schedulingDomain.Task{
			hbTask(1, "Migrate database", 10, schedulingDomain.LevelHigh),
		}, nil)
		m.uow.On("Begin", ctx).Return(txCtx, nil)
		m.uow.On("Commit", txCtx).Return(nil)
		m.retros.On("Save", txCtx, mock.MatchedBy(func(r *domain.Retrospective) bool {
			return r.PeriodStart.Equal(staleEnd) && r.PeriodEnd.Equal(lastFriday)
		})).Return(nil)
		m.messages.On("Save", txCtx, mock.AnythingOfType("*domain.Message")).Return(nil)
		m.outbox.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		retro, err := svc.RunForUser(ctx, hbUserRow())

		require.NoError(t, err)
		require.NotNil(t, retro)
		assert.Equal(t, staleEnd, retro.PeriodStart)
		assert.Equal(t, lastFriday, retro.PeriodEnd)
	})

	t.Run("a quiet week writes nothing", func(t *testing.T) {
		svc, m := newRetrospective()

		m.retros.On("GetLatest", ctx, hbUser).Return(nil, nil)
		m.tasks.On("ListCompletedInPeriod", ctx, hbUser, lastFriday.AddDate(0, 0, -7), lastFriday, (*uuid.UUID)(nil)).Return(nil, nil)

		retro, err := svc.RunForUser(ctx, hbUserRow())

		require.NoError(t, err)
		assert.Nil(t, retro)
		m.uow.AssertNotCalled(t, "Begin", mock.Anything)
	})

	t.Run("a failed save rolls back", func(t *testing.T) {
		svc, m := newRetrospective()
		saveErr := errors.New("disk full")

		m.retros.On("GetLatest", ctx, hbUser).Return(nil, nil)
		m.tasks.On("ListCompletedInPeriod", ctx, hbUser, lastFriday.AddDate(0, 0, -7), lastFriday, (*uuid.UUID)(nil)).Return([]*schedulingDomain.Task{
			hbTask(1, "Write report", 10, schedulingDomain.LevelMedium),
		}, nil)
		m.uow.On("Begin", ctx).Return(txCtx, nil)
		m.uow.On("Rollback", txCtx).Return(nil)
		m.retros.On("Save", txCtx, mock.AnythingOfType("*domain.Retrospective")).Return(saveErr)

		retro, err := svc.RunForUser(ctx, hbUserRow())

		assert.ErrorIs(t, err, saveErr)
		assert.Nil(t, retro)
		m.messages.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		m.uow.AssertExpectations(t)
	})
}
