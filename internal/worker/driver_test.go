package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	heartbeatDomain "github.com/mugi0227/nagi-sub000/internal/heartbeat/domain"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/commands"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/services"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

// fakeUsers is a test double for domain.UserRepository.
type fakeUsers struct {
	users []*domain.User
	err   error
}

func (f *fakeUsers) Get(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	for _, u := range f.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) List(ctx context.Context) ([]*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users, nil
}

// fakePlanChecker is a test double for PlanChecker.
type fakePlanChecker struct {
	mu     sync.Mutex
	has    map[uuid.UUID]bool
	errFor map[uuid.UUID]error
	calls  []uuid.UUID
}

func (f *fakePlanChecker) HasPlanFor(ctx context.Context, userID uuid.UUID, date time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	if err := f.errFor[userID]; err != nil {
		return false, err
	}
	return f.has[userID], nil
}

// fakePlanGen is a test double for PlanGenerator.
type fakePlanGen struct {
	mu     sync.Mutex
	cmds   []commands.GeneratePlanCommand
	errFor map[uuid.UUID]error
}

func (f *fakePlanGen) Handle(ctx context.Context, cmd commands.GeneratePlanCommand) (*services.PlanView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
	if err := f.errFor[cmd.UserID]; err != nil {
		return nil, err
	}
	return &services.PlanView{}, nil
}

func (f *fakePlanGen) commandFor(userID uuid.UUID) (commands.GeneratePlanCommand, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cmd := range f.cmds {
		if cmd.UserID == userID {
			return cmd, true
		}
	}
	return commands.GeneratePlanCommand{}, false
}

// fakeHeartbeat is a test double for HeartbeatRunner.
type fakeHeartbeat struct {
	mu     sync.Mutex
	raised map[uuid.UUID]int
	errFor map[uuid.UUID]error
	calls  []uuid.UUID
}

func (f *fakeHeartbeat) RunForUser(ctx context.Context, user *domain.User) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, user.ID)
	if err := f.errFor[user.ID]; err != nil {
		return 0, err
	}
	return f.raised[user.ID], nil
}

// fakeRetro is a test double for RetrospectiveRunner.
type fakeRetro struct {
	mu     sync.Mutex
	closed map[uuid.UUID]*heartbeatDomain.Retrospective
	errFor map[uuid.UUID]error
	calls  []uuid.UUID
}

func (f *fakeRetro) RunForUser(ctx context.Context, user *domain.User) (*heartbeatDomain.Retrospective, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, user.ID)
	if err := f.errFor[user.ID]; err != nil {
		return nil, err
	}
	return f.closed[user.ID], nil
}

func (f *fakeRetro) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type driverFakes struct {
	users     *fakeUsers
	planCheck *fakePlanChecker
	planGen   *fakePlanGen
	heartbeat *fakeHeartbeat
	retro     *fakeRetro
}

func newTestDriver(users []*domain.User, config DriverConfig) (*Driver, *driverFakes) {
	f := &driverFakes{
		users:     &fakeUsers{users: users},
		planCheck: &fakePlanChecker{has: map[uuid.UUID]bool{}, errFor: map[uuid.UUID]error{}},
		planGen:   &fakePlanGen{errFor: map[uuid.UUID]error{}},
		heartbeat: &fakeHeartbeat{raised: map[uuid.UUID]int{}, errFor: map[uuid.UUID]error{}},
		retro:     &fakeRetro{closed: map[uuid.UUID]*heartbeatDomain.Retrospective{}, errFor: map[uuid.UUID]error{}},
	}
	d := NewDriver(f.users, f.planCheck, f.planGen, f.heartbeat, f.retro, config, nil)
	return d, f
}

func testUser(n byte) *domain.User {
	return &domain.User{
		ID:       uuid.UUID{15: n},
		Email:    "dev@example.com",
		Timezone: "UTC",
	}
}

// quietConfig removes the inter-user pause so sweeps run instantly.
func quietConfig() DriverConfig {
	config := DefaultDriverConfig()
	config.MinUserPause = 0
	config.MaxUserPause = 0
	return config
}

func TestMarkCrossed(t *testing.T) {
	at := func(h, m, s int) time.Time {
		return time.Date(2026, 3, 2, h, m, s, 0, time.UTC)
	}

	tests := []struct {
		name    string
		prev    time.Time
		now     time.Time
		period  time.Duration
		offset  time.Duration
		crossed bool
	}{
		{"hourly :05 mark inside window", at(10, 4, 30), at(10, 5, 30), time.Hour, 5 * time.Minute, true},
		{"hourly :05 mark already passed", at(10, 5, 10), at(10, 6, 10), time.Hour, 5 * time.Minute, false},
		{"hourly :05 mark not yet reached", at(10, 3, 0), at(10, 4, 0), time.Hour, 5 * time.Minute, false},
		{"half-hour mark at :30", at(10, 29, 0), at(10, 30, 0), 30 * time.Minute, 0, true},
		{"half-hour quiet stretch", at(10, 30, 30), at(10, 59, 0), 30 * time.Minute, 0, false},
		{"top of hour", at(10, 59, 0), at(11, 0, 0), 30 * time.Minute, 0, true},
		{"missed marks collapse into one", at(9, 0, 1), at(12, 0, 0), 30 * time.Minute, 0, true},
		{"clock did not advance", at(10, 5, 0), at(10, 5, 0), time.Hour, 5 * time.Minute, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.crossed, markCrossed(tt.prev, tt.now, tt.period, tt.offset))
		})
	}
}

func TestDriverPlanSweep(t *testing.T) {
	planned := testUser(1)
	unplanned := testUser(2)
	now := time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)

	t.Run("generates only for users without a plan", func(t *testing.T) {
		d, f := newTestDriver([]*domain.User{planned, unplanned}, quietConfig())
		d.WithClock(func() time.Time { return now })
		f.planCheck.has[planned.ID] = true

		d.planSweep(context.Background())

		assert.Len(t, f.planCheck.calls, 2)
		require.Len(t, f.planGen.cmds, 1)

		cmd, ok := f.planGen.commandFor(unplanned.ID)
		require.True(t, ok)
		assert.True(t, cmd.Start.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))
		assert.Equal(t, 30, cmd.MaxDays)
		assert.True(t, cmd.FilterByAssignee)
		assert.False(t, cmd.FromNow)
		assert.True(t, cmd.Now.Equal(now))

		stats := d.GetStats()
		assert.Equal(t, uint64(1), stats.PlansGenerated)
		assert.Equal(t, uint64(0), stats.UserFailures)
	})

	t.Run("one failing user does not halt the batch", func(t *testing.T) {
		d, f := newTestDriver([]*domain.User{planned, unplanned}, quietConfig())
		d.WithClock(func() time.Time { return now })
		f.planCheck.errFor[planned.ID] = errors.New("db down")

		d.planSweep(context.Background())

		require.Len(t, f.planGen.cmds, 1)
		assert.Equal(t, unplanned.ID, f.planGen.cmds[0].UserID)

		stats := d.GetStats()
		assert.Equal(t, uint64(1), stats.PlansGenerated)
		assert.Equal(t, uint64(1), stats.UserFailures)
		assert.Contains(t, stats.LastError, "db down")
	})

	t.Run("listing failure records and returns", func(t *testing.T) {
		d, f := newTestDriver(nil, quietConfig())
		f.users.err = errors.New("no users for you")

		d.planSweep(context.Background())

		assert.Empty(t, f.planCheck.calls)
		assert.Contains(t, d.GetStats().LastError, "no users")
	})

	t.Run("cancelled context yields between users", func(t *testing.T) {
		d, f := newTestDriver([]*domain.User{planned, unplanned}, quietConfig())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		d.planSweep(ctx)

		assert.Empty(t, f.planCheck.calls)
	})
}

func TestDriverHeartbeatSweep(t *testing.T) {
	one, two, three := testUser(1), testUser(2), testUser(3)
	d, f := newTestDriver([]*domain.User{one, two, three}, quietConfig())
	f.heartbeat.raised[one.ID] = 2
	f.heartbeat.errFor[two.ID] = errors.New("redis gone")

	d.heartbeatSweep(context.Background())

	assert.Len(t, f.heartbeat.calls, 3)
	stats := d.GetStats()
	assert.Equal(t, uint64(2), stats.NudgesRaised)
	assert.Equal(t, uint64(1), stats.UserFailures)
}

func TestDriverRetrospectiveSweep(t *testing.T) {
	one, two := testUser(1), testUser(2)
	d, f := newTestDriver([]*domain.User{one, two}, quietConfig())
	f.retro.closed[one.ID] = &heartbeatDomain.Retrospective{ID: uuid.New(), UserID: one.ID}

	d.retrospectiveSweep(context.Background())

	assert.Len(t, f.retro.calls, 2)
	assert.Equal(t, uint64(1), d.GetStats().RetrospectivesClosed)
}

func TestDriverFireCadence(t *testing.T) {
	user := testUser(1)
	at := func(h, m int) time.Time {
		return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
	}

	t.Run("five past the hour runs the plan job only", func(t *testing.T) {
		d, f := newTestDriver([]*domain.User{user}, quietConfig())
		d.WithClock(func() time.Time { return at(10, 5) })

		d.fire(context.Background(), at(10, 4), at(10, 5))

		assert.Len(t, f.planCheck.calls, 1)
		assert.Empty(t, f.heartbeat.calls)
		assert.Empty(t, f.retro.calls)
	})

	t.Run("half past runs the heartbeat only", func(t *testing.T) {
		d, f := newTestDriver([]*domain.User{user}, quietConfig())
		d.WithClock(func() time.Time { return at(10, 30) })

		d.fire(context.Background(), at(10, 29), at(10, 30))

		assert.Empty(t, f.planCheck.calls)
		assert.Len(t, f.heartbeat.calls, 1)
		assert.Empty(t, f.retro.calls)
	})

	t.Run("top of the hour runs heartbeat and retrospective", func(t *testing.T) {
		d, f := newTestDriver([]*domain.User{user}, quietConfig())
		d.WithClock(func() time.Time { return at(11, 0) })

		d.fire(context.Background(), at(10, 59), at(11, 0))

		assert.Empty(t, f.planCheck.calls)
		assert.Len(t, f.heartbeat.calls, 1)
		assert.Len(t, f.retro.calls, 1)
	})

	t.Run("quiet minute runs nothing", func(t *testing.T) {
		d, f := newTestDriver([]*domain.User{user}, quietConfig())
		d.WithClock(func() time.Time { return at(10, 17) })

		d.fire(context.Background(), at(10, 16), at(10, 17))

		assert.Empty(t, f.planCheck.calls)
		assert.Empty(t, f.heartbeat.calls)
		assert.Empty(t, f.retro.calls)
	})
}

func TestDriverStartStop(t *testing.T) {
	user := testUser(1)
	config := quietConfig()
	config.TickInterval = 5 * time.Millisecond

	d, f := newTestDriver([]*domain.User{user}, config)

	require.NoError(t, d.Start(context.Background()))
	assert.True(t, d.IsRunning())

	// The startup pass catches up on missed retrospectives.
	time.Sleep(30 * time.Millisecond)
	assert.GreaterOrEqual(t, f.retro.callCount(), 1)

	d.Stop()
	assert.False(t, d.IsRunning())

	// Restart and double stop are safe.
	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Start(context.Background()))
	d.Stop()
	d.Stop()
}

func TestDriverDisabled(t *testing.T) {
	config := quietConfig()
	config.JobsDisabled = true
	d, f := newTestDriver([]*domain.User{testUser(1)}, config)

	require.NoError(t, d.Start(context.Background()))
	assert.False(t, d.IsRunning())
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, f.retro.callCount())
	d.Stop()
}
