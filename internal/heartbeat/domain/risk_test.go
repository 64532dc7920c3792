package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	schedulingDomain "github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

var riskUser = uuid.MustParse("9f2d6c4e-1a3b-4c5d-8e7f-a0b1c2d3e4f5")

// fullWeek plans 480 minutes Monday through Friday.
var fullWeek = []int{0, 480, 480, 480, 480, 480, 0}

// riskNow is Monday 2026-03-02 10:00 UTC.
var riskNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func utcDate(day int) time.Time {
	return time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC)
}

type riskSpec struct {
	title      string
	status     schedulingDomain.Status
	importance schedulingDomain.Level
	estimate   *int
	progress   int
	due        *time.Time
	snb        *time.Time
	updated    time.Time
}

func (s riskSpec) build() *schedulingDomain.Task {
	if s.title == "" {
		s.title = "risk task"
	}
	if s.status == "" {
		s.status = schedulingDomain.StatusTodo
	}
	if s.importance == "" {
		s.importance = schedulingDomain.LevelMedium
	}
	if s.updated.IsZero() {
		s.updated = riskNow
	}
	return schedulingDomain.RehydrateTask(
		uuid.New(), riskUser, nil, nil,
		s.title, s.status, s.importance, schedulingDomain.LevelMedium, schedulingDomain.EnergyHigh,
		s.estimate, s.progress,
		s.due, s.snb, nil,
		false, nil, nil, false,
		true, 0,
		false, 0,
		nil, nil,
		s.updated, s.updated,
	)
}

func minutes(v int) *int { return &v }

func when(v time.Time) *time.Time { return &v }

func TestEvaluateTaskCandidates(t *testing.T) {
	due := utcDate(10)

	t.Run("nil task", func(t *testing.T) {
		_, ok := EvaluateTask(nil, fullWeek, riskNow, time.UTC)
		assert.False(t, ok)
	})

	t.Run("done and waiting never page", func(t *testing.T) {
		done := riskSpec{status: schedulingDomain.StatusDone, due: &due}.build()
		_, ok := EvaluateTask(done, fullWeek, riskNow, time.UTC)
		assert.False(t, ok)

		waiting := riskSpec{status: schedulingDomain.StatusWaiting, due: &due}.build()
		_, ok = EvaluateTask(waiting, fullWeek, riskNow, time.UTC)
		assert.False(t, ok)
	})

	t.Run("no due date", func(t *testing.T) {
		_, ok := EvaluateTask(riskSpec{}.build(), fullWeek, riskNow, time.UTC)
		assert.False(t, ok)
	})

	t.Run("same-day tasks are excluded", func(t *testing.T) {
		sameDay := riskSpec{
			due: when(time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC)),
			snb: when(time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)),
		}.build()
		_, ok := EvaluateTask(sameDay, fullWeek, riskNow, time.UTC)
		assert.False(t, ok)

		spread := riskSpec{
			due: when(time.Date(2026, 3, 6, 18, 0, 0, 0, time.UTC)),
			snb: when(time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)),
		}.build()
		_, ok = EvaluateTask(spread, fullWeek, riskNow, time.UTC)
		assert.True(t, ok)
	})

	t.Run("same-day check runs in the user timezone", func(t *testing.T) {
		tokyo, err := time.LoadLocation("Asia/Tokyo")
		if err != nil {
			t.Skip("tzdata unavailable")
		}
		// 23:00 and next-day 01:00 UTC are both March 5th in Tokyo.
		task := riskSpec{
			snb: when(time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC)),
			due: when(time.Date(2026, 3, 5, 1, 0, 0, 0, time.UTC)),
		}.build()

		_, ok := EvaluateTask(task, fullWeek, riskNow, tokyo)
		assert.False(t, ok)
		_, ok = EvaluateTask(task, fullWeek, riskNow, time.UTC)
		assert.True(t, ok)
	})
}

func TestEvaluateTaskSeverity(t *testing.T) {
	// One hour of work fits into Monday, so required is always 1 day.
	cases := []struct {
		name     string
		dueDay   int
		severity Severity
		slack    int
	}{
		{"overdue", -1, SeverityCritical, -4}, // March -1 normalizes to Feb 27
		{"due today", 2, SeverityCritical, -1},
		{"due tomorrow", 3, SeverityHigh, 0},
		{"two days out", 4, SeverityHigh, 1},
		{"three days out", 5, SeverityMedium, 2},
		{"four days out", 6, SeverityMedium, 3},
		{"five days out", 7, SeverityLow, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			due := utcDate(tc.dueDay)
			task := riskSpec{estimate: minutes(60), due: &due}.build()

			risk, ok := EvaluateTask(task, fullWeek, riskNow, time.UTC)
			assert.True(t, ok)
			assert.Equal(t, tc.severity, risk.Severity)
			assert.Equal(t, tc.slack, risk.SlackDays)
			assert.Equal(t, 1, risk.RequiredDays)
		})
	}
}

func TestEvaluateTaskRequiredDays(t *testing.T) {
	t.Run("large work spans several capacity days", func(t *testing.T) {
		// 1200 minutes against 480/day: Mon+Tue+Wed.
		task := riskSpec{estimate: minutes(1200), due: when(utcDate(6))}.build()

		risk, ok := EvaluateTask(task, fullWeek, riskNow, time.UTC)
		assert.True(t, ok)
		assert.Equal(t, 3, risk.RequiredDays)
		assert.Equal(t, 1, risk.SlackDays)
		assert.Equal(t, SeverityHigh, risk.Severity)
	})

	t.Run("weekends contribute nothing", func(t *testing.T) {
		// From Friday, 960 minutes needs Friday plus the following Monday.
		friday := time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC)
		task := riskSpec{estimate: minutes(960), due: when(utcDate(10))}.build()

		risk, ok := EvaluateTask(task, fullWeek, friday, time.UTC)
		assert.True(t, ok)
		assert.Equal(t, 4, risk.RequiredDays)
		assert.Equal(t, 0, risk.SlackDays)
	})

	t.Run("progress shrinks the remaining work", func(t *testing.T) {
		task := riskSpec{estimate: minutes(960), progress: 50, due: when(utcDate(4))}.build()

		risk, ok := EvaluateTask(task, fullWeek, riskNow, time.UTC)
		assert.True(t, ok)
		assert.Equal(t, 1, risk.RequiredDays)
	})

	t.Run("fully progressed work needs no days", func(t *testing.T) {
		task := riskSpec{estimate: minutes(960), progress: 100, due: when(utcDate(2))}.build()

		risk, ok := EvaluateTask(task, fullWeek, riskNow, time.UTC)
		assert.True(t, ok)
		assert.Equal(t, 0, risk.RequiredDays)
		assert.Equal(t, SeverityHigh, risk.Severity)
	})

	t.Run("zero capacity bottoms out instead of looping", func(t *testing.T) {
		task := riskSpec{estimate: minutes(60), due: when(utcDate(10))}.build()

		risk, ok := EvaluateTask(task, []int{0, 0, 0, 0, 0, 0, 0}, riskNow, time.UTC)
		assert.True(t, ok)
		assert.Equal(t, requiredDaysCap, risk.RequiredDays)
		assert.Equal(t, SeverityCritical, risk.Severity)
	})
}

func TestRiskScore(t *testing.T) {
	farDue := when(utcDate(30))

	t.Run("relaxed baseline is importance only", func(t *testing.T) {
		task := riskSpec{estimate: minutes(60), due: farDue}.build()
		risk, _ := EvaluateTask(task, fullWeek, riskNow, time.UTC)
		assert.InDelta(t, 0.4, risk.Score, 1e-9)
	})

	t.Run("high importance raises the score", func(t *testing.T) {
		task := riskSpec{importance: schedulingDomain.LevelHigh, estimate: minutes(60), due: farDue}.build()
		risk, _ := EvaluateTask(task, fullWeek, riskNow, time.UTC)
		assert.InDelta(t, 0.6, risk.Score, 1e-9)
	})

	t.Run("missing estimate is penalized", func(t *testing.T) {
		task := riskSpec{due: farDue}.build()
		risk, _ := EvaluateTask(task, fullWeek, riskNow, time.UTC)
		assert.InDelta(t, 0.55, risk.Score, 1e-9)
	})

	t.Run("staleness grows and caps", func(t *testing.T) {
		half := riskSpec{estimate: minutes(60), due: farDue, updated: riskNow.AddDate(0, 0, -15)}.build()
		risk, _ := EvaluateTask(half, fullWeek, riskNow, time.UTC)
		assert.InDelta(t, 0.55, risk.Score, 1e-9)

		old := riskSpec{estimate: minutes(60), due: farDue, updated: riskNow.AddDate(0, 0, -90)}.build()
		risk, _ = EvaluateTask(old, fullWeek, riskNow, time.UTC)
		assert.InDelta(t, 0.7, risk.Score, 1e-9)
	})

	t.Run("overdue stacks slack pressure and the overdue penalty", func(t *testing.T) {
		task := riskSpec{estimate: minutes(60), due: when(time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC))}.build()
		risk, _ := EvaluateTask(task, fullWeek, riskNow, time.UTC)
		// 0.4 importance + 1.0 pressure + 0.25 overdue
		assert.InDelta(t, 1.65, risk.Score, 1e-9)
	})
}

func TestSeverityOrdering(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityHigh))
	assert.True(t, SeverityMedium.AtLeast(SeverityMedium))
	assert.False(t, SeverityLow.AtLeast(MinNotifySeverity))
	assert.True(t, SeverityHigh.AtLeast(MinNotifySeverity))

	assert.Greater(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
}

func TestDescribe(t *testing.T) {
	due := utcDate(6)

	critical := RiskAssessment{Title: "Ship the release", Severity: SeverityCritical, DueDate: due}
	assert.Contains(t, critical.Describe(), "2026-03-06")
	assert.Contains(t, critical.Describe(), "no longer finish")

	high := RiskAssessment{Title: "Ship the release", Severity: SeverityHigh, DueDate: due}
	assert.Contains(t, high.Describe(), "Start it next")

	medium := RiskAssessment{Title: "Ship the release", Severity: SeverityMedium, SlackDays: 2, DueDate: due}
	assert.Contains(t, medium.Describe(), "2 day(s) of slack")
}
