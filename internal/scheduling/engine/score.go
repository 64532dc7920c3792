package engine

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

const (
	importanceFactor = 10
	urgencyFactor    = 8
	inProgressBonus  = 2
	lowEnergyBonus   = 1
	projectWeightPer = 0.05

	dueBonusMax     = 30.0
	dueBonusHorizon = 14
)

// Scorer computes deterministic priority scores. The base part is
// date-independent; the due bonus grows as the reference day approaches the
// due date.
type Scorer struct {
	projectPriority map[uuid.UUID]int
}

// NewScorer indexes project priorities for the multiplicative weight.
func NewScorer(projects []*domain.Project) *Scorer {
	idx := make(map[uuid.UUID]int, len(projects))
	for _, p := range projects {
		idx[p.ID] = p.Priority
	}
	return &Scorer{projectPriority: idx}
}

// Base is the date-independent score component.
func (s *Scorer) Base(t *domain.Task) float64 {
	score := float64(t.Importance().Weight()*importanceFactor + t.Urgency().Weight()*urgencyFactor)
	if t.IsInProgress() {
		score += inProgressBonus
	}
	if t.EnergyLevel() == domain.EnergyLow {
		score += lowEnergyBonus
	}
	priority := domain.DefaultProjectPriority
	if pid := t.ProjectID(); pid != nil {
		if p, ok := s.projectPriority[*pid]; ok {
			priority = p
		}
	}
	return score * (1 + float64(priority)*projectWeightPer)
}

// DueBonus returns the urgency bonus for a due date seen from a reference
// day. Both must be normalized to midnight in the same location.
func DueBonus(due *time.Time, day time.Time) float64 {
	if due == nil {
		return 0
	}
	d := daysBetween(day, *due)
	switch {
	case d <= 0:
		return dueBonusMax
	case d >= dueBonusHorizon:
		return 0
	default:
		return dueBonusMax - float64(d)*(dueBonusMax/dueBonusHorizon)
	}
}

// ScoreAt is the full per-day score.
func (s *Scorer) ScoreAt(t *domain.Task, due *time.Time, day time.Time) float64 {
	return s.Base(t) + DueBonus(due, day)
}

// daysBetween counts calendar days from a to b; both must be midnight in the
// same location. Rounding absorbs DST-shortened days.
func daysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}
