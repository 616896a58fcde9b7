package availability

import "time"

// ISOWeekday maps a date to ISO-8601 weekday numbering: 1 (Monday) .. 7 (Sunday).
// The weekly schedule is keyed by this number.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// NextOccurrence returns the first calendar date on or after from whose weekday
// matches the given ISO weekday. It is pure date arithmetic, independent of any
// display formatting.
func NextOccurrence(weekday int, from time.Time) time.Time {
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	delta := (weekday - ISOWeekday(day) + 7) % 7
	return day.AddDate(0, 0, delta)
}
