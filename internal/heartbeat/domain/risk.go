package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	schedulingDomain "github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

// Severity grades how urgently a task needs the user's attention.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// MinNotifySeverity is the lowest severity worth interrupting a user for.
// Lower assessments are computed but never raised.
const MinNotifySeverity = SeverityMedium

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank orders severities from LOW (0) to CRITICAL (3).
func (s Severity) Rank() int { return severityRank[s] }

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool { return s.Rank() >= other.Rank() }

const (
	importanceWeight       = 0.2
	stalenessWeight        = 0.3
	stalenessHorizonDays   = 30
	missingEstimatePenalty = 0.15
	overduePenalty         = 0.25

	// requiredDaysCap bounds the capacity walk so a zero-capacity week
	// cannot loop forever; slack simply bottoms out.
	requiredDaysCap = 60
)

// RiskAssessment is the heartbeat's verdict on one open task.
type RiskAssessment struct {
	TaskID       uuid.UUID
	Title        string
	Severity     Severity
	Score        float64
	SlackDays    int
	RequiredDays int
	DueDate      time.Time
}

// Describe renders the one-line notification body for this assessment.
func (r RiskAssessment) Describe() string {
	due := r.DueDate.Format(time.DateOnly)
	switch r.Severity {
	case SeverityCritical:
		return fmt.Sprintf("%q can no longer finish by %s at the planned pace. Re-plan or cut scope.", r.Title, due)
	case SeverityHigh:
		return fmt.Sprintf("%q is due %s with at most a day to spare. Start it next.", r.Title, due)
	default:
		return fmt.Sprintf("%q is due %s with %d day(s) of slack left.", r.Title, due, r.SlackDays)
	}
}

// EvaluateTask grades one task against the calendar. Slack is the calendar
// days until the due date minus the working days the remaining estimate
// needs at the user's planned weekly capacity.
//
// Tasks that should never page return false: done or waiting tasks, tasks
// without a due date, and same-day tasks whose start gate falls on the due
// date itself.
func EvaluateTask(task *schedulingDomain.Task, weeklyCapacity []int, now time.Time, loc *time.Location) (RiskAssessment, bool) {
	if task == nil || task.IsDone() || task.IsWaiting() {
		return RiskAssessment{}, false
	}
	due := task.DueDate()
	if due == nil {
		return RiskAssessment{}, false
	}
	if snb := task.StartNotBefore(); snb != nil && schedulingDomain.SameDate(*snb, *due, loc) {
		return RiskAssessment{}, false
	}

	today := schedulingDomain.DateOf(now, loc)
	dueDay := schedulingDomain.DateOf(*due, loc)
	daysLeft := daysBetween(today, dueDay)

	required := requiredDays(remainingMinutes(task), weeklyCapacity, today)
	slack := daysLeft - required

	return RiskAssessment{
		TaskID:       task.ID(),
		Title:        task.Title(),
		Severity:     severityForSlack(slack),
		Score:        riskScore(task, daysLeft, slack, now),
		SlackDays:    slack,
		RequiredDays: required,
		DueDate:      dueDay,
	}, true
}

func severityForSlack(slack int) Severity {
	switch {
	case slack < 0:
		return SeverityCritical
	case slack <= 1:
		return SeverityHigh
	case slack <= 3:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// riskScore orders tasks within a severity band. It blends importance,
// slack pressure, staleness since the last update, a penalty for missing
// estimates (their slack is a guess), and a penalty for being past due.
func riskScore(task *schedulingDomain.Task, daysLeft, slack int, now time.Time) float64 {
	score := float64(task.Importance().Weight()) * importanceWeight
	score += slackPressure(slack)
	if staleDays := now.Sub(task.UpdatedAt()).Hours() / 24; staleDays > 0 {
		score += math.Min(staleDays/stalenessHorizonDays, 1) * stalenessWeight
	}
	if est := task.EstimatedMinutes(); est == nil || *est <= 0 {
		score += missingEstimatePenalty
	}
	if daysLeft < 0 {
		score += overduePenalty
	}
	return score
}

func slackPressure(slack int) float64 {
	switch {
	case slack < 0:
		return 1.0
	case slack <= 1:
		return 0.7
	case slack <= 3:
		return 0.4
	case slack <= 7:
		return 0.2
	default:
		return 0
	}
}

// remainingMinutes discounts the estimate by reported progress, defaulting
// when no estimate is set.
func remainingMinutes(task *schedulingDomain.Task) int {
	estimate := schedulingDomain.DefaultEstimateMinutes
	if est := task.EstimatedMinutes(); est != nil && *est > 0 {
		estimate = *est
	}
	remaining := estimate * (100 - task.ProgressPercent()) / 100
	if remaining < 0 {
		return 0
	}
	return remaining
}

// requiredDays walks the calendar from today, accumulating each weekday's
// planned capacity until the remaining work fits. The count includes the
// finishing day, so work that fits into today costs one day.
func requiredDays(remaining int, weeklyCapacity []int, today time.Time) int {
	if remaining <= 0 {
		return 0
	}
	accumulated := 0
	for d := 0; d < requiredDaysCap; d++ {
		accumulated += capacityOn(weeklyCapacity, today.AddDate(0, 0, d))
		if accumulated >= remaining {
			return d + 1
		}
	}
	return requiredDaysCap
}

func capacityOn(weeklyCapacity []int, day time.Time) int {
	wd := int(day.Weekday())
	if wd < 0 || wd >= len(weeklyCapacity) {
		return 0
	}
	return weeklyCapacity[wd]
}

// daysBetween counts calendar days from a to b; both must be midnight in the
// same location. Rounding absorbs DST-shortened days.
func daysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}
