package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/engine"
)

// PlanRequest describes one plan materialisation.
type PlanRequest struct {
	UserID               uuid.UUID
	Start                time.Time
	MaxDays              int
	FilterByAssignee     bool
	ApplyPlanConstraints bool
	FromNow              bool
	Now                  time.Time
}

// PlanDay is one calendar day of a materialised plan.
type PlanDay struct {
	Date                  time.Time
	Day                   domain.ScheduleDay
	TimeBlocks            []domain.ScheduleTimeBlock
	PinnedOverflowTaskIDs []uuid.UUID
}

// PlanView is the assembled response for both the read and the write path.
type PlanView struct {
	State          domain.PlanState
	PlanGroupID    uuid.UUID
	Timezone       string
	GeneratedAt    time.Time
	Days           []PlanDay
	TaskInfos      []domain.TaskScheduleInfo
	TaskSnapshots  []domain.TaskPlanSnapshot
	Unscheduled    []domain.UnscheduledTask
	Excluded       []domain.ExcludedTask
	PendingChanges []domain.PendingChange
}

// GenerationResult carries a fresh generation plus the rows the caller
// persists inside its transaction.
type GenerationResult struct {
	View  *PlanView
	Plans []*domain.DailySchedulePlan
	Event domain.PlanGenerated
}

// Planner gathers scheduling inputs, runs the engine, and reconciles the
// result against the stored plan rows. It performs reads only; commands own
// the transaction that persists a generation.
type Planner struct {
	tasks       domain.TaskRepository
	projects    domain.ProjectRepository
	assignments domain.TaskAssignmentRepository
	snapshots   domain.ScheduleSnapshotRepository
	settings    domain.ScheduleSettingsRepository
	plans       domain.DailySchedulePlanRepository
	users       domain.UserRepository
	logger      *slog.Logger
}

// NewPlanner creates a new Planner.
func NewPlanner(
	tasks domain.TaskRepository,
	projects domain.ProjectRepository,
	assignments domain.TaskAssignmentRepository,
	snapshots domain.ScheduleSnapshotRepository,
	settings domain.ScheduleSettingsRepository,
	plans domain.DailySchedulePlanRepository,
	users domain.UserRepository,
	logger *slog.Logger,
) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		tasks:       tasks,
		projects:    projects,
		assignments: assignments,
		snapshots:   snapshots,
		settings:    settings,
		plans:       plans,
		users:       users,
		logger:      logger,
	}
}

// planInputs is everything gathered from the repositories for one request.
type planInputs struct {
	loc              *time.Location
	timezone         string
	settings         *domain.ScheduleSettings
	tasks            []*domain.Task
	projects         []*domain.Project
	windows          map[uuid.UUID]domain.SnapshotTaskWindow
	now              time.Time
	today            time.Time
	start            time.Time
	end              time.Time
	maxDays          int
	filterByAssignee bool
	applyConstraints bool
	snapshots        []domain.TaskPlanSnapshot
}

// Materialize implements the read path: a stored plan when it is fresh, a
// stale plan with its pending changes, otherwise an in-memory forecast that
// writes nothing.
func (p *Planner) Materialize(ctx context.Context, req PlanRequest) (*PlanView, error) {
	in, err := p.gather(ctx, req)
	if err != nil {
		return nil, err
	}

	futureStart := in.start
	if futureStart.Before(in.today) {
		futureStart = in.today
	}

	// A horizon that lies entirely in the past is served from storage.
	if !in.end.After(futureStart) {
		days, complete, err := p.storedOrSyntheticDays(ctx, req.UserID, in, in.start, in.end)
		if err != nil {
			return nil, err
		}
		state := domain.PlanStatePlanned
		if !complete {
			state = domain.PlanStateForecast
		}
		return &PlanView{State: state, Timezone: in.timezone, Days: days}, nil
	}

	rows, err := p.plans.ListByRange(ctx, req.UserID, futureStart, in.end)
	if err != nil {
		return nil, err
	}

	if coversRange(rows, futureStart, in.end) {
		pending, paramsMatch := p.drift(rows[0], in, futureStart)
		state := domain.PlanStatePlanned
		if len(pending) > 0 || !paramsMatch {
			state = domain.PlanStateStale
		}
		view := &PlanView{
			State:          state,
			PlanGroupID:    rows[0].PlanGroupID(),
			Timezone:       rows[0].Timezone(),
			GeneratedAt:    rows[0].GeneratedAt(),
			TaskSnapshots:  rows[0].TaskSnapshots(),
			Unscheduled:    rows[0].UnscheduledTasks(),
			Excluded:       rows[0].ExcludedTasks(),
			PendingChanges: pending,
		}
		past, _, err := p.storedOrSyntheticDays(ctx, req.UserID, in, in.start, futureStart)
		if err != nil {
			return nil, err
		}
		view.Days = append(past, rowsToDays(rows)...)
		return view, nil
	}

	// Not enough rows: forecast without persisting.
	result, err := p.generate(ctx, req, in, futureStart)
	if err != nil {
		return nil, err
	}
	result.View.State = domain.PlanStateForecast
	result.View.PlanGroupID = uuid.Nil
	result.View.GeneratedAt = time.Time{}
	return result.View, nil
}

// BuildPlan always runs the engine over the future segment of the horizon
// and returns the rows for the caller to persist.
func (p *Planner) BuildPlan(ctx context.Context, req PlanRequest) (*GenerationResult, error) {
	in, err := p.gather(ctx, req)
	if err != nil {
		return nil, err
	}
	futureStart := in.start
	if futureStart.Before(in.today) {
		futureStart = in.today
	}
	if !in.end.After(futureStart) {
		return nil, domain.ErrPlanHorizonInPast
	}
	return p.generate(ctx, req, in, futureStart)
}

// HasPlanFor reports whether a stored row exists for the given local date.
func (p *Planner) HasPlanFor(ctx context.Context, userID uuid.UUID, date time.Time) (bool, error) {
	row, err := p.plans.GetByDate(ctx, userID, date)
	if err != nil {
		return false, err
	}
	return row != nil, nil
}

func (p *Planner) generate(ctx context.Context, req PlanRequest, in *planInputs, futureStart time.Time) (*GenerationResult, error) {
	futureDays := daysSpan(futureStart, in.end)

	var prior []domain.TaskAllocation
	if req.FromNow {
		todayRow, err := p.plans.GetByDate(ctx, req.UserID, in.today)
		if err != nil {
			return nil, err
		}
		if todayRow != nil {
			prior = todayRow.Day().TaskAllocations
		}
	}

	result := engine.Generate(engine.Input{
		UserID:                req.UserID,
		Start:                 futureStart,
		MaxDays:               futureDays,
		FromNow:               req.FromNow,
		Now:                   in.now,
		Location:              in.loc,
		Settings:              in.settings,
		Tasks:                 in.tasks,
		Projects:              in.projects,
		Windows:               in.windows,
		PriorTodayAllocations: prior,
	})

	groupID := uuid.New()
	params := p.params(in, futureStart)

	plans := make([]*domain.DailySchedulePlan, 0, len(result.Days))
	days := make([]PlanDay, 0, len(result.Days))
	for _, d := range result.Days {
		key := domain.DateKey(d.Date)
		row := domain.NewDailySchedulePlan(
			req.UserID, d.Date, groupID, in.timezone,
			d,
			in.snapshots,
			result.Unscheduled,
			result.Excluded,
			result.BlocksByDate[key],
			result.PinnedOverflow[key],
			params,
		)
		plans = append(plans, row)
		days = append(days, PlanDay{
			Date:                  d.Date,
			Day:                   d,
			TimeBlocks:            row.TimeBlocks(),
			PinnedOverflowTaskIDs: row.PinnedOverflowTaskIDs(),
		})
	}

	view := &PlanView{
		State:         domain.PlanStatePlanned,
		PlanGroupID:   groupID,
		Timezone:      in.timezone,
		TaskInfos:     result.TaskInfos,
		TaskSnapshots: in.snapshots,
		Unscheduled:   result.Unscheduled,
		Excluded:      result.Excluded,
	}
	if len(plans) > 0 {
		view.GeneratedAt = plans[0].GeneratedAt()
	}
	past, _, err := p.storedOrSyntheticDays(ctx, req.UserID, in, in.start, futureStart)
	if err != nil {
		return nil, err
	}
	view.Days = append(past, days...)

	event := domain.NewPlanGenerated(groupID, req.UserID, futureStart, len(plans), len(in.snapshots), req.FromNow)
	return &GenerationResult{View: view, Plans: plans, Event: event}, nil
}

func (p *Planner) gather(ctx context.Context, req PlanRequest) (*planInputs, error) {
	user, err := p.users.Get(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	loc := domain.LoadLocation("")
	timezone := domain.DefaultTimezone
	if user != nil && user.Timezone != "" {
		loc = user.Location()
		timezone = user.Timezone
	}

	settings, err := p.settings.Get(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = domain.DefaultScheduleSettings(req.UserID)
	}
	settings = settings.Normalized()

	tasks, err := p.tasks.List(ctx, req.UserID, true, 0)
	if err != nil {
		return nil, err
	}
	projects, err := p.projects.List(ctx, req.UserID, 0)
	if err != nil {
		return nil, err
	}
	if req.FilterByAssignee {
		tasks, err = p.filterByAssignee(ctx, req.UserID, tasks, projects)
		if err != nil {
			return nil, err
		}
	}

	windows := map[uuid.UUID]domain.SnapshotTaskWindow{}
	if req.ApplyPlanConstraints {
		snapshot, err := p.snapshots.GetActive(ctx, req.UserID, nil)
		if err != nil {
			return nil, err
		}
		if snapshot != nil {
			for _, w := range snapshot.TaskWindows {
				windows[w.TaskID] = w
			}
		}
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	today := domain.DateOf(now, loc)
	start := today
	if !req.Start.IsZero() {
		start = domain.DateOf(req.Start, loc)
	}
	maxDays := req.MaxDays
	if maxDays <= 0 {
		maxDays = engine.DefaultMaxDays
	}

	return &planInputs{
		loc:              loc,
		timezone:         timezone,
		settings:         settings,
		tasks:            tasks,
		projects:         projects,
		windows:          windows,
		now:              now,
		today:            today,
		start:            start,
		end:              start.AddDate(0, 0, maxDays),
		maxDays:          maxDays,
		filterByAssignee: req.FilterByAssignee,
		applyConstraints: req.ApplyPlanConstraints,
		snapshots:        currentSnapshots(tasks),
	}, nil
}

// filterByAssignee keeps personal tasks, tasks in private projects, and
// team-project tasks the user is assigned to. Completed tasks always pass:
// they only satisfy dependencies and render ghosts.
func (p *Planner) filterByAssignee(ctx context.Context, userID uuid.UUID, tasks []*domain.Task, projects []*domain.Project) ([]*domain.Task, error) {
	assignments, err := p.assignments.ListForAssignee(ctx, userID)
	if err != nil {
		return nil, err
	}
	assigned := make(map[uuid.UUID]bool, len(assignments))
	for _, a := range assignments {
		assigned[a.TaskID] = true
	}
	visibility := make(map[uuid.UUID]domain.ProjectVisibility, len(projects))
	for _, proj := range projects {
		visibility[proj.ID] = proj.Visibility
	}

	kept := make([]*domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.IsDone() {
			kept = append(kept, t)
			continue
		}
		pid := t.ProjectID()
		if pid == nil || visibility[*pid] != domain.VisibilityTeam || assigned[t.ID()] {
			kept = append(kept, t)
		}
	}
	return kept, nil
}

func (p *Planner) params(in *planInputs, futureStart time.Time) domain.PlanParams {
	return domain.PlanParams{
		StartDate:             domain.DateKey(futureStart),
		MaxDays:               in.maxDays,
		FilterByAssignee:      in.filterByAssignee,
		ApplyPlanConstraints:  in.applyConstraints,
		WeeklyCapacityMinutes: engine.WeeklyCapacityMinutes(in.settings),
		BufferHours:           in.settings.BufferHours,
		BreakAfterTaskMinutes: in.settings.BreakAfterTaskMinutes,
	}
}

// drift compares the stored generation against the current task set and
// request parameters.
func (p *Planner) drift(row *domain.DailySchedulePlan, in *planInputs, futureStart time.Time) ([]domain.PendingChange, bool) {
	stored := make(map[uuid.UUID]domain.TaskPlanSnapshot, len(row.TaskSnapshots()))
	for _, s := range row.TaskSnapshots() {
		stored[s.TaskID] = s
	}
	current := make(map[uuid.UUID]domain.TaskPlanSnapshot, len(in.snapshots))
	for _, s := range in.snapshots {
		current[s.TaskID] = s
	}

	var pending []domain.PendingChange
	for id, snapshot := range current {
		prev, ok := stored[id]
		switch {
		case !ok:
			pending = append(pending, domain.PendingChange{TaskID: id, Title: snapshot.Title, ChangeType: domain.ChangeTypeNew})
		case prev.Fingerprint != snapshot.Fingerprint:
			pending = append(pending, domain.PendingChange{TaskID: id, Title: snapshot.Title, ChangeType: domain.ChangeTypeUpdated})
		}
	}
	for id, snapshot := range stored {
		if _, ok := current[id]; !ok {
			pending = append(pending, domain.PendingChange{TaskID: id, Title: snapshot.Title, ChangeType: domain.ChangeTypeRemoved})
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].TaskID.String() < pending[j].TaskID.String()
	})

	paramsMatch := domain.ParamsFingerprint(row.PlanParams()) == domain.ParamsFingerprint(p.params(in, futureStart))
	return pending, paramsMatch
}

// storedOrSyntheticDays serves [from, to) from stored rows, synthesising
// meeting-only days for the gaps. It reports whether every day had a row.
func (p *Planner) storedOrSyntheticDays(ctx context.Context, userID uuid.UUID, in *planInputs, from, to time.Time) ([]PlanDay, bool, error) {
	if !to.After(from) {
		return nil, true, nil
	}
	rows, err := p.plans.ListByRange(ctx, userID, from, to)
	if err != nil {
		return nil, false, err
	}
	byDate := make(map[string]*domain.DailySchedulePlan, len(rows))
	for _, row := range rows {
		byDate[domain.DateKey(row.PlanDate())] = row
	}

	complete := true
	var days []PlanDay
	for date := from; date.Before(to); date = date.AddDate(0, 0, 1) {
		if row, ok := byDate[domain.DateKey(date)]; ok {
			days = append(days, PlanDay{
				Date:                  row.PlanDate(),
				Day:                   row.Day(),
				TimeBlocks:            row.TimeBlocks(),
				PinnedOverflowTaskIDs: row.PinnedOverflowTaskIDs(),
			})
			continue
		}
		complete = false
		day, blocks := engine.MeetingDay(in.settings, in.tasks, date, in.loc)
		days = append(days, PlanDay{Date: day.Date, Day: day, TimeBlocks: blocks})
	}
	return days, complete, nil
}

func currentSnapshots(tasks []*domain.Task) []domain.TaskPlanSnapshot {
	snapshots := make([]domain.TaskPlanSnapshot, 0, len(tasks))
	for _, t := range tasks {
		if t.IsDone() {
			continue
		}
		snapshots = append(snapshots, domain.NewTaskPlanSnapshot(t))
	}
	return snapshots
}

func rowsToDays(rows []*domain.DailySchedulePlan) []PlanDay {
	days := make([]PlanDay, 0, len(rows))
	for _, row := range rows {
		days = append(days, PlanDay{
			Date:                  row.PlanDate(),
			Day:                   row.Day(),
			TimeBlocks:            row.TimeBlocks(),
			PinnedOverflowTaskIDs: row.PinnedOverflowTaskIDs(),
		})
	}
	return days
}

func coversRange(rows []*domain.DailySchedulePlan, from, to time.Time) bool {
	if len(rows) == 0 {
		return false
	}
	byDate := make(map[string]bool, len(rows))
	for _, row := range rows {
		byDate[domain.DateKey(row.PlanDate())] = true
	}
	for date := from; date.Before(to); date = date.AddDate(0, 0, 1) {
		if !byDate[domain.DateKey(date)] {
			return false
		}
	}
	return true
}

func daysSpan(from, to time.Time) int {
	n := 0
	for date := from; date.Before(to); date = date.AddDate(0, 0, 1) {
		n++
	}
	return n
}
