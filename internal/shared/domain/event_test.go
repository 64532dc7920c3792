package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mugi0227/nagi-sub000/internal/shared/domain"
	"github.com/stretchr/testify/assert"
)

func TestNewBaseEvent(t *testing.T) {
	aggID := uuid.New()
	before := time.Now().UTC()
	event := domain.NewBaseEvent(aggID, "DailySchedulePlan", "schedule.plan.generated")
	after := time.Now().UTC()

	assert.NotEqual(t, uuid.Nil, event.EventID())
	assert.Equal(t, aggID, event.AggregateID())
	assert.Equal(t, "DailySchedulePlan", event.AggregateType())
	assert.Equal(t, "schedule.plan.generated", event.RoutingKey())
	assert.False(t, event.OccurredAt().Before(before))
	assert.False(t, event.OccurredAt().After(after))
	assert.Zero(t, event.Metadata(), "metadata is attached later by the application layer")
}

func TestBaseEvent_SetMetadata(t *testing.T) {
	event := domain.NewBaseEvent(uuid.New(), "DailySchedulePlan", "schedule.plan.generated")

	meta := domain.EventMetadata{
		CorrelationID: uuid.New(),
		CausationID:   uuid.New(),
		UserID:        uuid.New(),
	}
	event.SetMetadata(meta)

	assert.Equal(t, meta, event.Metadata())
}
