package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

func TestSQLiteSettingsRepo_GetMissing(t *testing.T) {
	sqlDB := setupSQLiteTestDB(t)
	ctx := context.Background()
	repo := NewSQLiteScheduleSettingsRepository(sqlDB)

	settings, err := repo.Get(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, settings)
}

func TestSQLiteSettingsRepo_SaveAndGet(t *testing.T) {
	sqlDB := setupSQLiteTestDB(t)
	ctx := context.Background()
	repo := NewSQLiteScheduleSettingsRepository(sqlDB)

	userID := createTestUser(t, sqlDB)
	settings := domain.DefaultScheduleSettings(userID)
	settings.WeeklyWorkHours[0].Enabled = false
	settings.WeeklyWorkHours[3].Breaks = []domain.BreakWindow{{Start: "12:00", End: "13:00"}}
	settings.BufferHours = 1.5
	settings.BreakAfterTaskMinutes = 10

	require.NoError(t, repo.Save(ctx, settings))

	found, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, userID, found.UserID)
	assert.Equal(t, 1.5, found.BufferHours)
	assert.Equal(t, 10, found.BreakAfterTaskMinutes)
	require.Len(t, found.WeeklyWorkHours, 7)
	assert.False(t, found.WeeklyWorkHours[0].Enabled)
	assert.Equal(t, "09:00", found.WeeklyWorkHours[1].Start)
	require.Len(t, found.WeeklyWorkHours[3].Breaks, 1)
	assert.Equal(t, "12:00", found.WeeklyWorkHours[3].Breaks[0].Start)
}

func TestSQLiteSettingsRepo_SaveOverwritesKeepingCreatedAt(t *testing.T) {
	sqlDB := setupSQLiteTestDB(t)
	ctx := context.Background()
	repo := NewSQLiteScheduleSettingsRepository(sqlDB)

	userID := createTestUser(t, sqlDB)
	first := domain.DefaultScheduleSettings(userID)
	require.NoError(t, repo.Save(ctx, first))

	second := domain.DefaultScheduleSettings(userID)
	second.BufferHours = 2
	second.UpdatedAt = first.UpdatedAt.Add(time.Hour)
	require.NoError(t, repo.Save(ctx, second))

	found, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 2.0, found.BufferHours)
	assert.WithinDuration(t, first.CreatedAt, found.CreatedAt, time.Second, "created_at survives the overwrite")
	assert.WithinDuration(t, second.UpdatedAt, found.UpdatedAt, time.Second)
}
