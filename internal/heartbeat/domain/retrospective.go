package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	schedulingDomain "github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

// Retrospective is a weekly achievement summary over a closed period. Periods
// end on Friday midnight local time and never overlap for one user.
type Retrospective struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	PeriodStart    time.Time
	PeriodEnd      time.Time
	CompletedCount int
	TotalMinutes   int
	Summary        string
	CreatedAt      time.Time
}

// NewRetrospective summarizes the tasks completed in [periodStart, periodEnd).
// Minutes come from estimates; a task without one counts at the default.
func NewRetrospective(userID uuid.UUID, periodStart, periodEnd time.Time, completed []*schedulingDomain.Task, at time.Time) *Retrospective {
	total := 0
	for _, t := range completed {
		if est := t.EstimatedMinutes(); est != nil && *est > 0 {
			total += *est
		} else {
			total += schedulingDomain.DefaultEstimateMinutes
		}
	}
	return &Retrospective{
		ID:             uuid.New(),
		UserID:         userID,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		CompletedCount: len(completed),
		TotalMinutes:   total,
		Summary:        summarize(completed, total),
		CreatedAt:      at.UTC(),
	}
}

const summaryTitleLimit = 5

func summarize(completed []*schedulingDomain.Task, totalMinutes int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Closed %d task(s), roughly %.1fh of estimated work.", len(completed), float64(totalMinutes)/60)
	if len(completed) == 0 {
		return b.String()
	}
	titles := make([]string, 0, summaryTitleLimit)
	for _, t := range completed {
		if len(titles) == summaryTitleLimit {
			break
		}
		titles = append(titles, t.Title())
	}
	fmt.Fprintf(&b, " Done: %s", strings.Join(titles, ", "))
	if extra := len(completed) - summaryTitleLimit; extra > 0 {
		fmt.Fprintf(&b, " and %d more", extra)
	}
	b.WriteString(".")
	return b.String()
}

// LastFridayBoundary returns midnight of the most recent Friday at or before
// now in loc. A Friday counts as its own boundary from 00:00 onward.
func LastFridayBoundary(now time.Time, loc *time.Location) time.Time {
	day := schedulingDomain.DateOf(now, loc)
	for day.Weekday() != time.Friday {
		day = day.AddDate(0, 0, -1)
	}
	return day
}
