package availability

import (
	"fmt"
	"time"
)

// DayConfig is the admin-defined weekly schedule for one weekday: open hours,
// slot length, the gap between consecutive slot starts, and break windows.
type DayConfig struct {
	Weekday     int // ISO: 1 (Monday) .. 7 (Sunday)
	Open        Clock
	Close       Clock
	SlotMinutes int
	GapMinutes  int
	Breaks      []Interval
}

// Validate rejects malformed configuration before it is ever persisted:
// open must precede close, slot duration must be positive, gap non-negative,
// and every break must sit inside the open hours without overlapping another.
func (c DayConfig) Validate() error {
	if c.Weekday < 1 || c.Weekday > 7 {
		return fmt.Errorf("%w: weekday %d out of range", ErrInvalidInterval, c.Weekday)
	}
	day, err := NewInterval(c.Open, c.Close)
	if err != nil {
		return err
	}
	if c.SlotMinutes <= 0 {
		return fmt.Errorf("%w: slot duration must be positive", ErrInvalidInterval)
	}
	if c.GapMinutes < 0 {
		return fmt.Errorf("%w: gap must not be negative", ErrInvalidInterval)
	}
	for i, b := range c.Breaks {
		if _, err := NewInterval(b.Start, b.End); err != nil {
			return err
		}
		if !day.Contains(b) {
			return fmt.Errorf("%w: break %s-%s outside open hours", ErrInvalidInterval, b.Start, b.End)
		}
		for _, other := range c.Breaks[:i] {
			if b.Overlaps(other) {
				return fmt.Errorf("%w: breaks %s-%s and %s-%s overlap", ErrInvalidInterval,
					other.Start, other.End, b.Start, b.End)
			}
		}
	}
	return nil
}

// Slot is one bookable window on the fixed grid.
type Slot struct {
	Start Clock
	End   Clock
}

func (s Slot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// GenerateSlots walks the day's fixed grid and returns the bookable slots for
// date, in ascending order. busy holds the occupying intervals for that exact
// date: ordinary bookings span [start, start+duration) and blocks their explicit
// [start, end), so a uniform overlap test covers both. A slot is dropped when it
// would not start strictly after now, when it overlaps a break, or when it
// overlaps any busy interval. The cursor advances by duration+gap on every
// iteration regardless of the outcome: rejected windows never shift the grid, so
// identical inputs always produce identical output and the first returned slot
// is the soonest bookable time.
//
// The caller is responsible for passing the DayConfig matching date's weekday.
func GenerateSlots(cfg DayConfig, date string, busy []Interval, now time.Time, loc *time.Location) []Slot {
	if cfg.SlotMinutes <= 0 {
		return nil
	}

	var slots []Slot
	for cursor := cfg.Open; cursor.Add(cfg.SlotMinutes) <= cfg.Close; cursor = cursor.Add(cfg.SlotMinutes + cfg.GapMinutes) {
		window := Interval{Start: cursor, End: cursor.Add(cfg.SlotMinutes)}

		startAt, err := At(date, cursor, loc)
		if err != nil {
			return nil
		}
		if !startAt.After(now) {
			continue
		}
		if overlapsAny(window, cfg.Breaks) {
			continue
		}
		if overlapsAny(window, busy) {
			continue
		}
		slots = append(slots, Slot{Start: window.Start, End: window.End})
	}
	return slots
}

func overlapsAny(window Interval, intervals []Interval) bool {
	for _, iv := range intervals {
		if window.Overlaps(iv) {
			return true
		}
	}
	return false
}
