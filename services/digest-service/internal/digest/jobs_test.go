package digest

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/yared-getachew/bookdesk/services/digest-service/internal/outbox"
)

type stubLedger struct {
	byDate map[string][]Entry
}

func (s *stubLedger) ListForDate(_ context.Context, date string) ([]Entry, error) {
	return s.byDate[date], nil
}

func (s *stubLedger) ListBetween(_ context.Context, from, to string) ([]Entry, error) {
	var out []Entry
	for date, entries := range s.byDate {
		if date >= from && date <= to {
			out = append(out, entries...)
		}
	}
	return out, nil
}

type stubSink struct {
	messages []Message
}

func (s *stubSink) Enqueue(_ context.Context, msg Message) error {
	s.messages = append(s.messages, msg)
	return nil
}

func fixedJobs(ledger Ledger, sink Sink, now time.Time) *Jobs {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	j := NewJobs(ledger, sink, logger, time.UTC)
	j.now = func() time.Time { return now }
	return j
}

func TestNightlySkipsEmptyDay(t *testing.T) {
	sink := &stubSink{}
	j := fixedJobs(&stubLedger{byDate: map[string][]Entry{}}, sink, time.Date(2026, 9, 6, 20, 0, 0, 0, time.UTC))

	j.RunNightly()

	if len(sink.messages) != 0 {
		t.Fatalf("messages = %d, want none for an empty day", len(sink.messages))
	}
}

func TestNightlySendsRosterAndReminders(t *testing.T) {
	ledger := &stubLedger{byDate: map[string][]Entry{
		"2026-09-07": {
			{BookingID: "b1", SubjectID: "user-1", VisitDate: "2026-09-07", StartTime: "09:00"},
			{BookingID: "b2", SubjectID: "user-2", VisitDate: "2026-09-07", StartTime: "10:00"},
		},
	}}
	sink := &stubSink{}
	j := fixedJobs(ledger, sink, time.Date(2026, 9, 6, 20, 0, 0, 0, time.UTC))

	j.RunNightly()

	if len(sink.messages) != 3 {
		t.Fatalf("messages = %d, want roster + 2 reminders", len(sink.messages))
	}
	roster := sink.messages[0]
	if roster.Audience != outbox.AudienceAdmin {
		t.Fatalf("first message audience = %q, want admin", roster.Audience)
	}
	if !strings.Contains(roster.Text, "2026-09-07") || !strings.Contains(roster.Text, "2 appointment(s)") {
		t.Fatalf("roster text = %q", roster.Text)
	}
	for _, msg := range sink.messages[1:] {
		if msg.Audience != outbox.AudienceSubject || msg.SubjectID == "" {
			t.Fatalf("reminder = %+v, want subject audience", msg)
		}
		if !strings.Contains(msg.Text, "tomorrow (2026-09-07)") {
			t.Fatalf("reminder text = %q", msg.Text)
		}
	}
}

func TestWeeklyCountsByDayKind(t *testing.T) {
	// 2026-09-07 is a Monday, 2026-09-09 a Wednesday.
	ledger := &stubLedger{byDate: map[string][]Entry{
		"2026-09-07": {{SubjectID: "u1", VisitDate: "2026-09-07", StartTime: "09:00"}},
		"2026-09-09": {
			{SubjectID: "u2", VisitDate: "2026-09-09", StartTime: "09:00"},
			{SubjectID: "u3", VisitDate: "2026-09-09", StartTime: "10:00"},
		},
		"2026-09-11": {{SubjectID: "u4", VisitDate: "2026-09-11", StartTime: "09:00"}},
	}}
	sink := &stubSink{}
	j := fixedJobs(ledger, sink, time.Date(2026, 9, 13, 20, 0, 0, 0, time.UTC))

	j.RunWeekly()

	if len(sink.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(sink.messages))
	}
	text := sink.messages[0].Text
	for _, want := range []string{
		"4 booking(s)",
		"consultation days (Mon): 1",
		"confession days (Wed): 2",
		"regular days: 1",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("summary %q missing %q", text, want)
		}
	}
}

func TestDayKind(t *testing.T) {
	cases := map[string]string{
		"2026-09-07": KindConsultation, // Monday
		"2026-09-09": KindConfession,   // Wednesday
		"2026-09-12": KindRegular,      // Saturday
		"not-a-date": KindRegular,
	}
	for date, want := range cases {
		if got := DayKind(date); got != want {
			t.Fatalf("DayKind(%s) = %s, want %s", date, got, want)
		}
	}
}
