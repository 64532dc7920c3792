// Package gate implements the heartbeat notification gate: per-task
// cooldowns and per-day counters, backed by Redis so multiple worker
// replicas share one budget, with an in-memory twin for tests and
// single-process setups.
package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mugi0227/nagi-sub000/internal/heartbeat/domain"
)

// counterTTL outlives a day in any timezone, so counters expire on their
// own without a cleanup job.
const counterTTL = 48 * time.Hour

func cooldownKey(userID, taskID uuid.UUID) string {
	return fmt.Sprintf("heartbeat:cooldown:%s:%s", userID, taskID)
}

func counterKey(userID uuid.UUID, dateKey string) string {
	return fmt.Sprintf("heartbeat:count:%s:%s", userID, dateKey)
}

// RedisGate stores cooldowns and counters in Redis.
type RedisGate struct {
	client *redis.Client
}

// NewRedisGate creates a new RedisGate.
func NewRedisGate(client *redis.Client) *RedisGate {
	return &RedisGate{client: client}
}

var _ domain.NotificationGate = (*RedisGate)(nil)

// InCooldown checks for a live cooldown key.
func (g *RedisGate) InCooldown(ctx context.Context, userID, taskID uuid.UUID) (bool, error) {
	n, err := g.client.Exists(ctx, cooldownKey(userID, taskID)).Result()
	if err != nil {
		return false, fmt.Errorf("reading cooldown: %w", err)
	}
	return n > 0, nil
}

// SentToday reads the day counter; a missing key counts as zero.
func (g *RedisGate) SentToday(ctx context.Context, userID uuid.UUID, dateKey string) (int, error) {
	count, err := g.client.Get(ctx, counterKey(userID, dateKey)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading day counter: %w", err)
	}
	return count, nil
}

// MarkSent starts the task cooldown and bumps the day counter.
func (g *RedisGate) MarkSent(ctx context.Context, userID, taskID uuid.UUID, dateKey string, cooldown time.Duration) error {
	if err := g.client.Set(ctx, cooldownKey(userID, taskID), "1", cooldown).Err(); err != nil {
		return fmt.Errorf("writing cooldown: %w", err)
	}
	key := counterKey(userID, dateKey)
	if err := g.client.Incr(ctx, key).Err(); err != nil {
		return fmt.Errorf("bumping day counter: %w", err)
	}
	if err := g.client.Expire(ctx, key, counterTTL).Err(); err != nil {
		return fmt.Errorf("expiring day counter: %w", err)
	}
	return nil
}

// InMemoryGate is a process-local gate for tests and setups without Redis.
type InMemoryGate struct {
	mu        sync.Mutex
	cooldowns map[string]time.Time
	counters  map[string]int
	now       func() time.Time
}

// NewInMemoryGate creates a new InMemoryGate.
func NewInMemoryGate() *InMemoryGate {
	return &InMemoryGate{
		cooldowns: make(map[string]time.Time),
		counters:  make(map[string]int),
		now:       time.Now,
	}
}

var _ domain.NotificationGate = (*InMemoryGate)(nil)

// WithClock overrides the gate clock. Tests only.
func (g *InMemoryGate) WithClock(now func() time.Time) *InMemoryGate {
	g.now = now
	return g
}

func (g *InMemoryGate) InCooldown(_ context.Context, userID, taskID uuid.UUID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	expiry, ok := g.cooldowns[cooldownKey(userID, taskID)]
	if !ok {
		return false, nil
	}
	if !g.now().Before(expiry) {
		delete(g.cooldowns, cooldownKey(userID, taskID))
		return false, nil
	}
	return true, nil
}

func (g *InMemoryGate) SentToday(_ context.Context, userID uuid.UUID, dateKey string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counters[counterKey(userID, dateKey)], nil
}

func (g *InMemoryGate) MarkSent(_ context.Context, userID, taskID uuid.UUID, dateKey string, cooldown time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cooldowns[cooldownKey(userID, taskID)] = g.now().Add(cooldown)
	g.counters[counterKey(userID, dateKey)]++
	return nil
}
