// Package worker hosts the periodic jobs that keep plans, nudges, and
// retrospectives fresh without user interaction.
package worker

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	heartbeatDomain "github.com/mugi0227/nagi-sub000/internal/heartbeat/domain"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/commands"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/services"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

const (
	// planOffset places the daily-plan job at five past every hour.
	planOffset      = 5 * time.Minute
	heartbeatPeriod = 30 * time.Minute
	// retroPeriod is an hourly sweep; the retrospective service only acts
	// when a Friday boundary has passed in the user's timezone.
	retroPeriod = time.Hour
)

// PlanChecker reports whether a stored plan row exists for a local date.
type PlanChecker interface {
	HasPlanFor(ctx context.Context, userID uuid.UUID, date time.Time) (bool, error)
}

// PlanGenerator runs one plan generation end to end.
type PlanGenerator interface {
	Handle(ctx context.Context, cmd commands.GeneratePlanCommand) (*services.PlanView, error)
}

// HeartbeatRunner raises risk nudges for one user.
type HeartbeatRunner interface {
	RunForUser(ctx context.Context, user *domain.User) (int, error)
}

// RetrospectiveRunner closes a due retrospective period for one user.
type RetrospectiveRunner interface {
	RunForUser(ctx context.Context, user *domain.User) (*heartbeatDomain.Retrospective, error)
}

// DriverConfig configures the periodic driver.
type DriverConfig struct {
	// JobsDisabled switches every periodic job off. Test mode.
	JobsDisabled bool

	// TickInterval is the clock resolution of the time wheel.
	TickInterval time.Duration

	// PlanMaxDays is the horizon for driver-triggered generations.
	PlanMaxDays int

	// MinUserPause and MaxUserPause bound the randomised sleep between
	// users in the plan job, smoothing repository load.
	MinUserPause time.Duration
	MaxUserPause time.Duration
}

// DefaultDriverConfig returns sensible defaults.
func DefaultDriverConfig() DriverConfig {
	return DriverConfig{
		TickInterval: time.Minute,
		PlanMaxDays:  30,
		MinUserPause: 200 * time.Millisecond,
		MaxUserPause: 800 * time.Millisecond,
	}
}

// Driver is the in-process time wheel: hourly daily-plan generation at
// :05, heartbeat risk checks every 30 minutes, and an hourly
// retrospective sweep with a catch-up pass at startup. Every per-user
// body is error-isolated so one user cannot halt a batch.
type Driver struct {
	users     domain.UserRepository
	planCheck PlanChecker
	planGen   PlanGenerator
	heartbeat HeartbeatRunner
	retro     RetrospectiveRunner
	config    DriverConfig
	logger    *slog.Logger

	wg       sync.WaitGroup
	stopChan chan struct{}
	running  bool
	mu       sync.Mutex

	statsMu sync.Mutex
	stats   Stats

	now func() time.Time
}

// NewDriver creates a new periodic driver.
func NewDriver(
	users domain.UserRepository,
	planCheck PlanChecker,
	planGen PlanGenerator,
	heartbeat HeartbeatRunner,
	retro RetrospectiveRunner,
	config DriverConfig,
	logger *slog.Logger,
) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultDriverConfig().TickInterval
	}
	if config.PlanMaxDays <= 0 {
		config.PlanMaxDays = DefaultDriverConfig().PlanMaxDays
	}
	if config.MinUserPause < 0 {
		config.MinUserPause = 0
	}
	if config.MaxUserPause < config.MinUserPause {
		config.MaxUserPause = config.MinUserPause
	}
	return &Driver{
		users:     users,
		planCheck: planCheck,
		planGen:   planGen,
		heartbeat: heartbeat,
		retro:     retro,
		config:    config,
		logger:    logger,
		stopChan:  make(chan struct{}),
		now:       time.Now,
	}
}

// WithClock overrides the driver's clock. Tests only.
func (d *Driver) WithClock(now func() time.Time) *Driver {
	d.now = now
	return d
}

// Start begins the tick loop in a goroutine.
func (d *Driver) Start(ctx context.Context) error {
	if d.config.JobsDisabled {
		d.logger.Info("periodic driver disabled")
		return nil
	}

	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	d.stopChan = make(chan struct{})
	d.mu.Unlock()

	d.wg.Add(1)
	go d.run(ctx)

	d.logger.Info("periodic driver started",
		"tick_interval", d.config.TickInterval,
		"plan_max_days", d.config.PlanMaxDays,
	)

	return nil
}

// Stop gracefully stops the driver and waits for the current sweep to yield.
func (d *Driver) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stopChan)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("periodic driver stopped")
}

// IsRunning returns true if the driver is running.
func (d *Driver) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Driver) run(ctx context.Context) {
	defer d.wg.Done()

	// Catch up on retrospectives missed while the process was down.
	d.retrospectiveSweep(ctx)

	ticker := time.NewTicker(d.config.TickInterval)
	defer ticker.Stop()

	prev := d.now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopChan:
			return
		case <-ticker.C:
			now := d.now()
			d.fire(ctx, prev, now)
			prev = now
		}
	}
}

// fire runs every job whose cadence mark lies in (prev, now].
func (d *Driver) fire(ctx context.Context, prev, now time.Time) {
	d.recordTick(now)
	if markCrossed(prev, now, time.Hour, planOffset) {
		d.planSweep(ctx)
	}
	if markCrossed(prev, now, heartbeatPeriod, 0) {
		d.heartbeatSweep(ctx)
	}
	if markCrossed(prev, now, retroPeriod, 0) {
		d.retrospectiveSweep(ctx)
	}
}

// markCrossed reports whether a cadence mark (period-aligned plus offset)
// lies in (prev, now]. Several missed marks collapse into one firing; the
// sweeps are idempotent so catch-up runs once, not per missed mark.
func markCrossed(prev, now time.Time, period, offset time.Duration) bool {
	if !now.After(prev) {
		return false
	}
	mark := now.Add(-offset).Truncate(period).Add(offset)
	return mark.After(prev)
}

// planSweep generates today's plan for every user still missing one.
func (d *Driver) planSweep(ctx context.Context) {
	users, err := d.users.List(ctx)
	if err != nil {
		d.recordError(err)
		d.logger.Error("listing users for plan generation", "error", err)
		return
	}

	for i, user := range users {
		if d.stopping(ctx) {
			return
		}
		if i > 0 && !d.pause(ctx) {
			return
		}
		d.planForUser(ctx, user)
	}
}

func (d *Driver) planForUser(ctx context.Context, user *domain.User) {
	now := d.now()
	today := domain.DateOf(now, user.Location())

	exists, err := d.planCheck.HasPlanFor(ctx, user.ID, today)
	if err != nil {
		d.fail("plan-check", user.ID, err)
		return
	}
	if exists {
		return
	}

	_, err = d.planGen.Handle(ctx, commands.GeneratePlanCommand{
		UserID:           user.ID,
		Start:            today,
		MaxDays:          d.config.PlanMaxDays,
		FilterByAssignee: true,
		Now:              now,
	})
	if err != nil {
		d.fail("plan-generation", user.ID, err)
		return
	}

	d.recordPlan()
	d.logger.Info("daily plan generated",
		"user_id", user.ID,
		"date", domain.DateKey(today),
	)
}

// heartbeatSweep evaluates risk and raises nudges for every user.
func (d *Driver) heartbeatSweep(ctx context.Context) {
	users, err := d.users.List(ctx)
	if err != nil {
		d.recordError(err)
		d.logger.Error("listing users for heartbeat", "error", err)
		return
	}

	for _, user := range users {
		if d.stopping(ctx) {
			return
		}
		raised, err := d.heartbeat.RunForUser(ctx, user)
		if err != nil {
			d.fail("heartbeat", user.ID, err)
			continue
		}
		if raised > 0 {
			d.recordNudges(raised)
		}
	}
}

// retrospectiveSweep closes due weekly periods for every user.
func (d *Driver) retrospectiveSweep(ctx context.Context) {
	users, err := d.users.List(ctx)
	if err != nil {
		d.recordError(err)
		d.logger.Error("listing users for retrospectives", "error", err)
		return
	}

	for _, user := range users {
		if d.stopping(ctx) {
			return
		}
		retro, err := d.retro.RunForUser(ctx, user)
		if err != nil {
			d.fail("retrospective", user.ID, err)
			continue
		}
		if retro != nil {
			d.recordRetrospective()
		}
	}
}

// stopping reports whether shutdown was requested. Checked before each
// user so a long sweep yields promptly.
func (d *Driver) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-d.stopChan:
		return true
	default:
		return false
	}
}

// pause sleeps the randomised inter-user delay, abandoning the sweep when
// shutdown wins the race.
func (d *Driver) pause(ctx context.Context) bool {
	delay := d.config.MinUserPause
	if span := d.config.MaxUserPause - d.config.MinUserPause; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	if delay <= 0 {
		return !d.stopping(ctx)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-d.stopChan:
		return false
	case <-timer.C:
		return true
	}
}

func (d *Driver) fail(job string, userID uuid.UUID, err error) {
	d.recordUserFailure(err)
	d.logger.Error("periodic job failed for user",
		"job", job,
		"user_id", userID,
		"error", err,
	)
}

// Stats reports driver counters.
type Stats struct {
	IsRunning            bool
	PlansGenerated       uint64
	NudgesRaised         uint64
	RetrospectivesClosed uint64
	UserFailures         uint64
	LastError            string
	LastErrorAt          *time.Time
	LastTickAt           *time.Time
}

// GetStats returns current driver statistics.
func (d *Driver) GetStats() Stats {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()

	stats := d.stats
	stats.IsRunning = d.IsRunning()
	return stats
}

func (d *Driver) recordTick(at time.Time) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.stats.LastTickAt = &at
}

func (d *Driver) recordPlan() {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.stats.PlansGenerated++
}

func (d *Driver) recordNudges(n int) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.stats.NudgesRaised += uint64(n)
}

func (d *Driver) recordRetrospective() {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.stats.RetrospectivesClosed++
}

func (d *Driver) recordUserFailure(err error) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.stats.UserFailures++
	now := time.Now()
	d.stats.LastError = err.Error()
	d.stats.LastErrorAt = &now
}

func (d *Driver) recordError(err error) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	now := time.Now()
	d.stats.LastError = err.Error()
	d.stats.LastErrorAt = &now
}
