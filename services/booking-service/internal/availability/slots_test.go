package availability

import (
	"errors"
	"testing"
	"time"
)

func baseConfig(t *testing.T) DayConfig {
	t.Helper()
	return DayConfig{
		Weekday:     1,
		Open:        mustClock(t, "09:00"),
		Close:       mustClock(t, "12:00"),
		SlotMinutes: 30,
	}
}

func slotStarts(slots []Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start.String())
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestGenerateSlotsEmptyDay(t *testing.T) {
	cfg := baseConfig(t)
	now := time.Date(2026, 8, 31, 7, 0, 0, 0, time.UTC)

	slots := GenerateSlots(cfg, "2026-08-31", nil, now, time.UTC)
	want := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	if !equalStrings(slotStarts(slots), want) {
		t.Fatalf("got %v, want %v", slotStarts(slots), want)
	}
	for _, s := range slots {
		if s.Start < cfg.Open || s.End > cfg.Close {
			t.Fatalf("slot %s-%s escapes open hours", s.Start, s.End)
		}
	}
}

func TestGenerateSlotsSkipsBreak(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Breaks = []Interval{{Start: mustClock(t, "10:00"), End: mustClock(t, "10:30")}}
	now := time.Date(2026, 8, 31, 7, 0, 0, 0, time.UTC)

	slots := GenerateSlots(cfg, "2026-08-31", nil, now, time.UTC)
	want := []string{"09:00", "09:30", "10:30", "11:00", "11:30"}
	if !equalStrings(slotStarts(slots), want) {
		t.Fatalf("got %v, want %v", slotStarts(slots), want)
	}
}

func TestGenerateSlotsSkipsBookedSlot(t *testing.T) {
	cfg := baseConfig(t)
	now := time.Date(2026, 8, 31, 7, 0, 0, 0, time.UTC)
	busy := []Interval{{Start: mustClock(t, "09:30"), End: mustClock(t, "10:00")}}

	slots := GenerateSlots(cfg, "2026-08-31", busy, now, time.UTC)
	want := []string{"09:00", "10:00", "10:30", "11:00", "11:30"}
	if !equalStrings(slotStarts(slots), want) {
		t.Fatalf("got %v, want %v", slotStarts(slots), want)
	}
}

func TestGenerateSlotsWideBlockKeepsGridStable(t *testing.T) {
	cfg := baseConfig(t)
	now := time.Date(2026, 8, 31, 7, 0, 0, 0, time.UTC)
	// A block not aligned to the grid removes only the slots it touches;
	// survivors stay on the original grid rather than repacking around it.
	busy := []Interval{{Start: mustClock(t, "09:45"), End: mustClock(t, "10:45")}}

	slots := GenerateSlots(cfg, "2026-08-31", busy, now, time.UTC)
	want := []string{"09:00", "11:00", "11:30"}
	if !equalStrings(slotStarts(slots), want) {
		t.Fatalf("got %v, want %v", slotStarts(slots), want)
	}
}

func TestGenerateSlotsFullDayBlock(t *testing.T) {
	cfg := baseConfig(t)
	now := time.Date(2026, 8, 31, 7, 0, 0, 0, time.UTC)
	busy := []Interval{{Start: mustClock(t, "00:00"), End: mustClock(t, "23:59")}}

	if slots := GenerateSlots(cfg, "2026-08-31", busy, now, time.UTC); len(slots) != 0 {
		t.Fatalf("expected no slots under a full-day block, got %v", slotStarts(slots))
	}
}

func TestGenerateSlotsTodayCutoff(t *testing.T) {
	cfg := baseConfig(t)
	// 10:00 sharp: the 10:00 slot does not start strictly after now, so the
	// first bookable slot is 10:30.
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	slots := GenerateSlots(cfg, "2026-08-31", nil, now, time.UTC)
	want := []string{"10:30", "11:00", "11:30"}
	if !equalStrings(slotStarts(slots), want) {
		t.Fatalf("got %v, want %v", slotStarts(slots), want)
	}

	// A future date ignores the time of day entirely.
	future := GenerateSlots(cfg, "2026-09-07", nil, now, time.UTC)
	if len(future) != 6 {
		t.Fatalf("future date: got %d slots, want 6", len(future))
	}
}

func TestGenerateSlotsGapAdvancesCursor(t *testing.T) {
	cfg := baseConfig(t)
	cfg.GapMinutes = 15
	now := time.Date(2026, 8, 31, 7, 0, 0, 0, time.UTC)

	slots := GenerateSlots(cfg, "2026-08-31", nil, now, time.UTC)
	want := []string{"09:00", "09:45", "10:30", "11:15"}
	if !equalStrings(slotStarts(slots), want) {
		t.Fatalf("got %v, want %v", slotStarts(slots), want)
	}
}

func TestGenerateSlotsDeterministic(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Breaks = []Interval{{Start: mustClock(t, "10:00"), End: mustClock(t, "10:30")}}
	now := time.Date(2026, 8, 31, 9, 10, 0, 0, time.UTC)
	busy := []Interval{{Start: mustClock(t, "11:00"), End: mustClock(t, "11:30")}}

	first := GenerateSlots(cfg, "2026-08-31", busy, now, time.UTC)
	second := GenerateSlots(cfg, "2026-08-31", busy, now, time.UTC)
	if !equalStrings(slotStarts(first), slotStarts(second)) {
		t.Fatalf("identical inputs produced different output: %v vs %v",
			slotStarts(first), slotStarts(second))
	}
	for i := 1; i < len(first); i++ {
		if first[i].Start <= first[i-1].Start {
			t.Fatalf("slots not strictly ascending: %v", slotStarts(first))
		}
	}
}

func TestDayConfigValidate(t *testing.T) {
	valid := baseConfig(t)
	valid.Breaks = []Interval{{Start: mustClock(t, "10:00"), End: mustClock(t, "10:30")}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*DayConfig)
	}{
		{"open after close", func(c *DayConfig) { c.Open, c.Close = c.Close, c.Open }},
		{"open equals close", func(c *DayConfig) { c.Close = c.Open }},
		{"zero duration", func(c *DayConfig) { c.SlotMinutes = 0 }},
		{"negative gap", func(c *DayConfig) { c.GapMinutes = -5 }},
		{"bad weekday", func(c *DayConfig) { c.Weekday = 8 }},
		{"break outside hours", func(c *DayConfig) {
			c.Breaks = []Interval{{Start: mustClock(t, "08:00"), End: mustClock(t, "08:30")}}
		}},
		{"inverted break", func(c *DayConfig) {
			c.Breaks = []Interval{{Start: mustClock(t, "10:30"), End: mustClock(t, "10:00")}}
		}},
		{"overlapping breaks", func(c *DayConfig) {
			c.Breaks = []Interval{
				{Start: mustClock(t, "10:00"), End: mustClock(t, "10:45")},
				{Start: mustClock(t, "10:30"), End: mustClock(t, "11:00")},
			}
		}},
	}
	for _, tc := range cases {
		cfg := baseConfig(t)
		tc.mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidInterval) {
			t.Fatalf("%s: expected ErrInvalidInterval, got %v", tc.name, err)
		}
	}
}
