package engine

import "sort"

// Interval is a half-open minute range [Start, End) within a day, measured
// in minutes since local midnight.
type Interval struct {
	Start int
	End   int
}

// Length returns the interval's minute count.
func (iv Interval) Length() int {
	if iv.End <= iv.Start {
		return 0
	}
	return iv.End - iv.Start
}

func totalMinutes(intervals []Interval) int {
	total := 0
	for _, iv := range intervals {
		total += iv.Length()
	}
	return total
}

// subtractInterval removes cut from every interval, splitting where needed.
// Inputs are assumed sorted and non-overlapping; the output keeps both
// properties.
func subtractInterval(intervals []Interval, cut Interval) []Interval {
	if cut.End <= cut.Start {
		return intervals
	}
	out := make([]Interval, 0, len(intervals)+1)
	for _, iv := range intervals {
		if cut.End <= iv.Start || cut.Start >= iv.End {
			out = append(out, iv)
			continue
		}
		if cut.Start > iv.Start {
			out = append(out, Interval{Start: iv.Start, End: cut.Start})
		}
		if cut.End < iv.End {
			out = append(out, Interval{Start: cut.End, End: iv.End})
		}
	}
	return out
}

func subtractAll(intervals []Interval, cuts []Interval) []Interval {
	out := intervals
	for _, cut := range cuts {
		out = subtractInterval(out, cut)
	}
	return out
}

// mergeIntervals collapses overlapping or touching intervals. The input may
// be unsorted.
func mergeIntervals(intervals []Interval) []Interval {
	var kept []Interval
	for _, iv := range intervals {
		if iv.Length() > 0 {
			kept = append(kept, iv)
		}
	}
	if len(kept) <= 1 {
		return kept
	}
	sortIntervals(kept)
	out := kept[:1]
	for _, iv := range kept[1:] {
		last := &out[len(out)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

func sortIntervals(intervals []Interval) {
	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].Start < intervals[j].Start
	})
}

// intersectMinutes returns the overlap, in minutes, between two sorted
// non-overlapping interval lists.
func intersectMinutes(a, b []Interval) int {
	total := 0
	for _, x := range a {
		for _, y := range b {
			start := x.Start
			if y.Start > start {
				start = y.Start
			}
			end := x.End
			if y.End < end {
				end = y.End
			}
			if end > start {
				total += end - start
			}
		}
	}
	return total
}

// clipFrom drops all minutes before the given minute-of-day.
func clipFrom(intervals []Interval, from int) []Interval {
	out := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.End <= from {
			continue
		}
		if iv.Start < from {
			iv.Start = from
		}
		out = append(out, iv)
	}
	return out
}

func cloneIntervals(intervals []Interval) []Interval {
	out := make([]Interval, len(intervals))
	copy(out, intervals)
	return out
}
