package domain

import "time"

// DefaultTimezone is assumed when a user record carries no timezone.
const DefaultTimezone = "Asia/Tokyo"

// DateOf truncates an instant to midnight of its calendar day in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	year, month, day := t.In(loc).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// DateKey formats a date as YYYY-MM-DD. Dates normalised to the same
// location compare safely by key.
func DateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

// SameDate reports whether two instants fall on the same calendar day in loc.
func SameDate(a, b time.Time, loc *time.Location) bool {
	return DateKey(a.In(loc)) == DateKey(b.In(loc))
}

// LoadLocation resolves an IANA timezone name, falling back to the default
// and finally UTC rather than failing.
func LoadLocation(name string) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		return loc
	}
	return time.UTC
}
