package availability

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the canonical calendar-date form used across the services.
// Dates and wall-clock values are always local to the single service timezone;
// rendering them for a locale is the transport's job.
const DateLayout = "2006-01-02"

var ErrInvalidInterval = errors.New("invalid interval")

// Clock is a wall-clock time of day in minutes since midnight.
type Clock int

func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad clock value %q", ErrInvalidInterval, s)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

// Interval is a half-open [Start, End) window within a single day.
type Interval struct {
	Start Clock
	End   Clock
}

func NewInterval(start, end Clock) (Interval, error) {
	if start >= end {
		return Interval{}, fmt.Errorf("%w: start %s not before end %s", ErrInvalidInterval, start, end)
	}
	return Interval{Start: start, End: end}, nil
}

// Overlaps reports whether two half-open intervals share any instant:
// [a.Start,a.End) overlaps [b.Start,b.End) iff a.Start < b.End && b.Start < a.End.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && other.Start < i.End
}

func (i Interval) Contains(other Interval) bool {
	return i.Start <= other.Start && other.End <= i.End
}

// ParseDate validates an ISO calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// At resolves a local date + wall-clock pair into an absolute instant in loc.
// The wall clock is applied as calendar components rather than a duration from
// midnight, so the result stays on the requested hour across DST transitions.
func At(date string, c Clock, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), int(c)/60, int(c)%60, 0, 0, loc), nil
}
