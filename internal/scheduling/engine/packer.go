package engine

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

const (
	highEnergyThreshold = 0.4
	lowEnergyThreshold  = 0.6
)

// packConfig carries everything the packer needs, pre-resolved by the
// engine: effective due dates and earliest-start days already fold in any
// snapshot window constraints.
type packConfig struct {
	start          time.Time
	maxDays        int
	loc            *time.Location
	settings       *domain.ScheduleSettings
	cls            *Classification
	scorer         *Scorer
	dueInstant     map[uuid.UUID]*time.Time
	dueDay         map[uuid.UUID]*time.Time
	notBefore      map[uuid.UUID]time.Time
	meetingMinutes func(date time.Time) int
}

// packResult is the multi-day allocation before block building.
type packResult struct {
	days           []domain.ScheduleDay
	taskStart      map[uuid.UUID]time.Time
	taskEnd        map[uuid.UUID]time.Time
	residual       map[uuid.UUID]int
	reasons        map[uuid.UUID]domain.UnscheduledReason
	pinnedAt       map[uuid.UUID]time.Time
	pinnedOverflow map[string][]uuid.UUID
}

type packer struct {
	packConfig

	remaining     map[uuid.UUID]int
	indegree      map[uuid.UUID]int
	ready         map[uuid.UUID]bool
	inProgress    []uuid.UUID
	earliestStart map[uuid.UUID]time.Time
	pinnedAt      map[uuid.UUID]time.Time
	pinnedByDay   map[string][]uuid.UUID
	taskStart     map[uuid.UUID]time.Time
	taskEnd       map[uuid.UUID]time.Time
	reasons       map[uuid.UUID]domain.UnscheduledReason
	pinnedOver    map[string][]uuid.UUID
	days          []domain.ScheduleDay
}

type energyTally struct {
	high int
	low  int
}

func (e *energyTally) add(level domain.EnergyLevel, minutes int) {
	if level == domain.EnergyLow {
		e.low += minutes
	} else {
		e.high += minutes
	}
}

func pack(cfg packConfig) *packResult {
	p := &packer{
		packConfig:    cfg,
		remaining:     make(map[uuid.UUID]int),
		indegree:      make(map[uuid.UUID]int),
		ready:         make(map[uuid.UUID]bool),
		earliestStart: make(map[uuid.UUID]time.Time),
		pinnedAt:      make(map[uuid.UUID]time.Time),
		pinnedByDay:   make(map[string][]uuid.UUID),
		taskStart:     make(map[uuid.UUID]time.Time),
		taskEnd:       make(map[uuid.UUID]time.Time),
		reasons:       make(map[uuid.UUID]domain.UnscheduledReason),
		pinnedOver:    make(map[string][]uuid.UUID),
	}

	for _, t := range cfg.cls.Scheduled {
		id := t.ID()
		p.remaining[id] = cfg.cls.Estimates[id]
		p.indegree[id] = cfg.cls.Graph.Indegree[id]
		if nb, ok := cfg.notBefore[id]; ok {
			p.earliestStart[id] = nb
		}
		if pd := t.PinnedDate(); pd != nil {
			day := domain.DateOf(*pd, cfg.loc)
			if day.Before(cfg.start) {
				day = cfg.start
			}
			p.pinnedAt[id] = day
			key := domain.DateKey(day)
			p.pinnedByDay[key] = append(p.pinnedByDay[key], id)
			continue
		}
		if p.indegree[id] == 0 {
			p.ready[id] = true
		}
	}

	p.run()

	// The result owns its residual snapshot; packer state stays private.
	residual := make(map[uuid.UUID]int, len(p.remaining))
	for id, minutes := range p.remaining {
		residual[id] = minutes
	}

	return &packResult{
		days:           p.days,
		taskStart:      p.taskStart,
		taskEnd:        p.taskEnd,
		residual:       residual,
		reasons:        p.reasons,
		pinnedAt:       p.pinnedAt,
		pinnedOverflow: p.pinnedOver,
	}
}

func (p *packer) run() {
	stalledOnce := false
	day := p.start
	for i := 0; i < p.maxDays; i++ {
		p.packDay(day)
		if !stalledOnce && p.hasPendingWork() && p.stalled() {
			p.failPending(domain.UnscheduledDependencyCycle)
			stalledOnce = true
		}
		day = day.AddDate(0, 0, 1)
	}
	if p.hasPendingWork() {
		p.failPending(domain.UnscheduledMaxDaysExceeded)
	}
}

func (p *packer) packDay(date time.Time) {
	day := domain.ScheduleDay{
		Date:            date,
		CapacityMinutes: CapacityMinutes(p.settings, date),
		TaskAllocations: []domain.TaskAllocation{},
	}
	day.SetMeetingMinutes(p.meetingMinutes(date))
	capRemaining := day.CapacityMinutes - day.MeetingMinutes

	tally := &energyTally{}
	p.placeForced(date, &day, &capRemaining, tally)
	p.placePinned(date, &day, &capRemaining, tally)
	p.packRegular(date, &day, &capRemaining, tally)

	p.days = append(p.days, day)
}

// placeForced puts every placeable task whose due falls within the day fully
// onto it, capacity notwithstanding. The deadline dominates start-not-before
// and gap constraints.
func (p *packer) placeForced(date time.Time, day *domain.ScheduleDay, capRemaining *int, tally *energyTally) {
	endOfDay := date.AddDate(0, 0, 1)
	var forced []uuid.UUID
	for id := range p.ready {
		if due := p.dueInstant[id]; due != nil && !due.After(endOfDay) {
			forced = append(forced, id)
		}
	}
	for _, id := range p.inProgress {
		if p.remaining[id] == 0 {
			continue
		}
		if due := p.dueInstant[id]; due != nil && !due.After(endOfDay) {
			forced = append(forced, id)
		}
	}
	p.sortByPriority(forced, date)

	for _, id := range forced {
		minutes := p.remaining[id]
		if minutes <= 0 {
			continue
		}
		day.AddAllocation(id, minutes)
		*capRemaining -= minutes
		tally.add(p.cls.ByID[id].EnergyLevel(), minutes)
		p.markStart(id, date)
		p.finish(id, date)
	}
}

// placePinned handles tasks pinned to this date. A placeable pinned task is
// allocated fully (overflowing if it must); one that cannot fit inside the
// remaining capacity, or whose dependencies are still open, is recorded as
// pinned overflow. Either way nothing carries past the pinned day.
func (p *packer) placePinned(date time.Time, day *domain.ScheduleDay, capRemaining *int, tally *energyTally) {
	ids := append([]uuid.UUID(nil), p.pinnedByDay[domain.DateKey(date)]...)
	p.sortByPriority(ids, date)

	for _, id := range ids {
		minutes := p.remaining[id]
		if minutes <= 0 || p.reasons[id] != "" {
			continue
		}
		if p.indegree[id] > 0 {
			// The pinned day is here but the dependencies are not done; the
			// task cannot legally run today and may never run at all, so the
			// slot is surrendered and its dependents are unblocked.
			p.addPinnedOverflow(date, id)
			p.remaining[id] = 0
			p.releaseDependents(id, date)
			continue
		}
		if minutes > *capRemaining {
			p.addPinnedOverflow(date, id)
		}
		day.AddAllocation(id, minutes)
		*capRemaining -= minutes
		tally.add(p.cls.ByID[id].EnergyLevel(), minutes)
		p.markStart(id, date)
		p.finish(id, date)
	}
}

func (p *packer) packRegular(date time.Time, day *domain.ScheduleDay, capRemaining *int, tally *energyTally) {
	for *capRemaining > 0 {
		id, ok := p.pickNext(date, tally)
		if !ok {
			return
		}
		minutes := p.remaining[id]
		if minutes > *capRemaining {
			minutes = *capRemaining
		}
		day.AddAllocation(id, minutes)
		*capRemaining -= minutes
		p.remaining[id] -= minutes
		tally.add(p.cls.ByID[id].EnergyLevel(), minutes)
		p.markStart(id, date)

		if p.remaining[id] == 0 {
			p.finish(id, date)
		} else {
			p.moveToInProgress(id)
		}
	}
}

// pickNext selects the next task for regular packing: a started task first,
// then the best eligible ready task, energy balance applied over the day's
// placed minutes.
func (p *packer) pickNext(date time.Time, tally *energyTally) (uuid.UUID, bool) {
	var pool []uuid.UUID
	for _, id := range p.inProgress {
		if p.remaining[id] > 0 {
			pool = append(pool, id)
		}
	}
	if len(pool) == 0 {
		for id := range p.ready {
			if !p.eligibleOn(id, date) {
				continue
			}
			pool = append(pool, id)
		}
	}
	if len(pool) == 0 {
		return uuid.Nil, false
	}

	if preferred := p.preferByEnergy(pool, tally); len(preferred) > 0 {
		pool = preferred
	}
	p.sortByPriority(pool, date)
	return pool[0], true
}

func (p *packer) eligibleOn(id uuid.UUID, date time.Time) bool {
	earliest, ok := p.earliestStart[id]
	return !ok || !earliest.After(date)
}

// preferByEnergy narrows the pool when the day's mix is lopsided: too much
// HIGH work prefers LOW candidates and vice versa. The first placement of a
// day has no preference.
func (p *packer) preferByEnergy(pool []uuid.UUID, tally *energyTally) []uuid.UUID {
	total := tally.high + tally.low
	if total == 0 {
		return nil
	}
	var want domain.EnergyLevel
	switch {
	case float64(tally.high) > highEnergyThreshold*float64(total):
		want = domain.EnergyLow
	case float64(tally.low) > lowEnergyThreshold*float64(total):
		want = domain.EnergyHigh
	default:
		return nil
	}
	var preferred []uuid.UUID
	for _, id := range pool {
		if p.cls.ByID[id].EnergyLevel() == want {
			preferred = append(preferred, id)
		}
	}
	return preferred
}

// sortByPriority orders ids by (score desc, due asc, created asc, id asc).
func (p *packer) sortByPriority(ids []uuid.UUID, date time.Time) {
	sort.Slice(ids, func(i, j int) bool {
		return p.less(ids[i], ids[j], date)
	})
}

func (p *packer) less(a, b uuid.UUID, date time.Time) bool {
	sa := p.scorer.ScoreAt(p.cls.ByID[a], p.dueDay[a], date)
	sb := p.scorer.ScoreAt(p.cls.ByID[b], p.dueDay[b], date)
	if sa != sb {
		return sa > sb
	}
	da, db := p.dueDay[a], p.dueDay[b]
	switch {
	case da != nil && db == nil:
		return true
	case da == nil && db != nil:
		return false
	case da != nil && db != nil && !da.Equal(*db):
		return da.Before(*db)
	}
	ca := p.cls.ByID[a].CreatedAt()
	cb := p.cls.ByID[b].CreatedAt()
	if !ca.Equal(cb) {
		return ca.Before(cb)
	}
	return a.String() < b.String()
}

func (p *packer) markStart(id uuid.UUID, date time.Time) {
	if _, ok := p.taskStart[id]; !ok {
		p.taskStart[id] = date
	}
}

func (p *packer) finish(id uuid.UUID, date time.Time) {
	p.remaining[id] = 0
	p.taskEnd[id] = date
	delete(p.ready, id)
	p.removeInProgress(id)
	p.releaseDependents(id, date)
}

// releaseDependents decrements each dependent's indegree and applies the
// dependent's same-day and minimum-gap rules to its earliest start.
func (p *packer) releaseDependents(id uuid.UUID, date time.Time) {
	for _, depID := range p.cls.Graph.Dependents[id] {
		if _, scheduled := p.indegree[depID]; !scheduled {
			continue
		}
		p.indegree[depID]--
		dependent := p.cls.ByID[depID]
		gap := 0
		if !dependent.SameDayAllowed() {
			gap = 1
		}
		if dependent.MinGapDays() > gap {
			gap = dependent.MinGapDays()
		}
		earliest := date.AddDate(0, 0, gap)
		if current, ok := p.earliestStart[depID]; !ok || earliest.After(current) {
			p.earliestStart[depID] = earliest
		}
		if p.indegree[depID] == 0 {
			if _, pinned := p.pinnedAt[depID]; !pinned {
				p.ready[depID] = true
			}
		}
	}
}

func (p *packer) moveToInProgress(id uuid.UUID) {
	delete(p.ready, id)
	for _, existing := range p.inProgress {
		if existing == id {
			return
		}
	}
	p.inProgress = append(p.inProgress, id)
}

func (p *packer) removeInProgress(id uuid.UUID) {
	for i, existing := range p.inProgress {
		if existing == id {
			p.inProgress = append(p.inProgress[:i], p.inProgress[i+1:]...)
			return
		}
	}
}

func (p *packer) addPinnedOverflow(date time.Time, id uuid.UUID) {
	key := domain.DateKey(date)
	for _, existing := range p.pinnedOver[key] {
		if existing == id {
			return
		}
	}
	p.pinnedOver[key] = append(p.pinnedOver[key], id)
}

func (p *packer) hasPendingWork() bool {
	for id, minutes := range p.remaining {
		if minutes > 0 && p.reasons[id] == "" {
			return true
		}
	}
	return false
}

// stalled reports a true deadlock: work remains but nothing is ready, in
// progress, or waiting for a pinned day.
func (p *packer) stalled() bool {
	if len(p.ready) > 0 || len(p.inProgress) > 0 {
		return false
	}
	for id := range p.pinnedAt {
		if p.remaining[id] > 0 && p.reasons[id] == "" {
			return false
		}
	}
	return true
}

func (p *packer) failPending(reason domain.UnscheduledReason) {
	for id, minutes := range p.remaining {
		if minutes > 0 && p.reasons[id] == "" {
			p.reasons[id] = reason
		}
	}
	p.ready = make(map[uuid.UUID]bool)
	p.inProgress = nil
}
