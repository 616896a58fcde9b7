package blocking

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yared-getachew/bookdesk/services/booking-service/internal/availability"
	"github.com/yared-getachew/bookdesk/services/booking-service/internal/storage"
)

type stubLedger struct {
	records []storage.BookingRecord

	createdBlocks []storage.BookingRecord
	replacedDays  []string
	removedIDs    []string
}

func (s *stubLedger) ListForDate(_ context.Context, date string) ([]storage.BookingRecord, error) {
	var out []storage.BookingRecord
	for _, rec := range s.records {
		if rec.VisitDate == date && !rec.IsBlock() {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *stubLedger) ListOccupancy(_ context.Context, date string) ([]storage.BookingRecord, error) {
	var out []storage.BookingRecord
	for _, rec := range s.records {
		if rec.VisitDate == date {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *stubLedger) CreateBlock(_ context.Context, date string, iv availability.Interval) (storage.BookingRecord, error) {
	block := storage.BookingRecord{
		ID:          "block-1",
		SubjectID:   storage.BlockSubject,
		VisitDate:   date,
		StartMinute: iv.Start,
		EndMinute:   iv.End,
	}
	s.createdBlocks = append(s.createdBlocks, block)
	return block, nil
}

func (s *stubLedger) ReplaceDay(ctx context.Context, date string, iv availability.Interval) ([]storage.BookingRecord, storage.BookingRecord, error) {
	s.replacedDays = append(s.replacedDays, date)
	removed, _ := s.ListForDate(ctx, date)
	// every row on the date goes, block rows included; the full-day block
	// written below subsumes them
	var kept []storage.BookingRecord
	for _, rec := range s.records {
		if rec.VisitDate != date {
			kept = append(kept, rec)
		}
	}
	block := storage.BookingRecord{
		ID:          "block-1",
		SubjectID:   storage.BlockSubject,
		VisitDate:   date,
		StartMinute: iv.Start,
		EndMinute:   iv.End,
	}
	s.records = append(kept, block)
	return removed, block, nil
}

func (s *stubLedger) RemoveBlock(_ context.Context, id string) (storage.BookingRecord, error) {
	for i, rec := range s.records {
		if rec.ID == id && rec.IsBlock() {
			s.removedIDs = append(s.removedIDs, id)
			s.records = append(s.records[:i], s.records[i+1:]...)
			return rec, nil
		}
	}
	return storage.BookingRecord{}, storage.ErrNotFound
}

type stubNotifier struct {
	sent   map[string]string
	failOn map[string]bool
}

func newStubNotifier() *stubNotifier {
	return &stubNotifier{sent: map[string]string{}, failOn: map[string]bool{}}
}

func (n *stubNotifier) ProviderID() string { return "chat-stub" }

func (n *stubNotifier) Send(_ context.Context, subjectID string, body string) error {
	if n.failOn[subjectID] {
		return errors.New("delivery refused")
	}
	n.sent[subjectID] = body
	return nil
}

func booking(id, subject, date string, start availability.Clock) storage.BookingRecord {
	return storage.BookingRecord{
		ID:          id,
		SubjectID:   subject,
		VisitDate:   date,
		StartMinute: start,
		EndMinute:   start + 30,
	}
}

func TestNewDraftValidation(t *testing.T) {
	cases := []struct {
		name                   string
		date, mode, start, end string
		wantErr                bool
	}{
		{"interval ok", "2026-09-07", ModeInterval, "10:00", "11:00", false},
		{"full day ok", "2026-09-07", ModeFullDay, "", "", false},
		{"bad date", "07-09-2026", ModeInterval, "10:00", "11:00", true},
		{"bad mode", "2026-09-07", "half_day", "10:00", "11:00", true},
		{"inverted interval", "2026-09-07", ModeInterval, "11:00", "10:00", true},
		{"zero length interval", "2026-09-07", ModeInterval, "10:00", "10:00", true},
		{"unparseable start", "2026-09-07", ModeInterval, "ten", "11:00", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := NewDraft(tc.date, tc.mode, tc.start, tc.end)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidDraft) {
					t.Fatalf("err = %v, want ErrInvalidDraft", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewDraft: %v", err)
			}
			if tc.mode == ModeFullDay && (d.Interval.Start != 0 || d.Interval.End != 23*60+59) {
				t.Fatalf("full-day interval = %+v, want sentinel", d.Interval)
			}
		})
	}
}

func TestIntervalBlockCommitsOnClearWindow(t *testing.T) {
	ledger := &stubLedger{records: []storage.BookingRecord{
		booking("b1", "user-1", "2026-09-07", 9*60),
	}}
	w := NewWorkflow(ledger, newStubNotifier())

	d, err := NewDraft("2026-09-07", ModeInterval, "11:00", "12:00")
	if err != nil {
		t.Fatalf("NewDraft: %v", err)
	}
	res, err := w.Commit(context.Background(), d, false)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(res.Cascade) != 0 {
		t.Fatalf("interval block produced a cascade: %+v", res.Cascade)
	}
	if len(ledger.createdBlocks) != 1 {
		t.Fatalf("created %d blocks, want 1", len(ledger.createdBlocks))
	}
}

func TestIntervalBlockRejectsOverlap(t *testing.T) {
	ledger := &stubLedger{records: []storage.BookingRecord{
		booking("b1", "user-1", "2026-09-07", 9*60),
	}}
	w := NewWorkflow(ledger, newStubNotifier())

	d, err := NewDraft("2026-09-07", ModeInterval, "09:15", "10:00")
	if err != nil {
		t.Fatalf("NewDraft: %v", err)
	}
	if _, err := w.Commit(context.Background(), d, false); !errors.Is(err, ErrBlockOverlap) {
		t.Fatalf("err = %v, want ErrBlockOverlap", err)
	}
	if len(ledger.createdBlocks) != 0 {
		t.Fatalf("block created despite overlap")
	}
}

func TestFullDayBlockWithoutBookingsNeedsNoConfirmation(t *testing.T) {
	ledger := &stubLedger{}
	w := NewWorkflow(ledger, newStubNotifier())

	d, _ := NewDraft("2026-09-07", ModeFullDay, "", "")
	res, err := w.Commit(context.Background(), d, false)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(res.Cascade) != 0 {
		t.Fatalf("cascade on empty day: %+v", res.Cascade)
	}
	if !res.Block.IsFullDay() {
		t.Fatalf("block = %+v, want full-day sentinel", res.Block)
	}
}

func TestFullDayBlockRequiresConfirmation(t *testing.T) {
	ledger := &stubLedger{records: []storage.BookingRecord{
		booking("b1", "user-1", "2026-09-07", 9*60),
	}}
	w := NewWorkflow(ledger, newStubNotifier())

	d, _ := NewDraft("2026-09-07", ModeFullDay, "", "")
	if _, err := w.Commit(context.Background(), d, false); !errors.Is(err, ErrCascadeConfirmationRequired) {
		t.Fatalf("err = %v, want ErrCascadeConfirmationRequired", err)
	}
	if len(ledger.replacedDays) != 0 {
		t.Fatalf("day replaced without confirmation")
	}
	if got, _ := ledger.ListForDate(context.Background(), "2026-09-07"); len(got) != 1 {
		t.Fatalf("booking disappeared without confirmation")
	}
}

func TestFullDayCascadeCancelsAndNotifies(t *testing.T) {
	ledger := &stubLedger{records: []storage.BookingRecord{
		booking("b1", "user-1", "2026-09-07", 9*60),
		booking("b2", "user-2", "2026-09-07", 10*60),
		booking("b3", "user-3", "2026-09-08", 9*60),
	}}
	notifier := newStubNotifier()
	w := NewWorkflow(ledger, notifier)

	d, _ := NewDraft("2026-09-07", ModeFullDay, "", "")
	res, err := w.Commit(context.Background(), d, true)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(res.Cascade) != 2 {
		t.Fatalf("cascade size = %d, want 2", len(res.Cascade))
	}
	for _, o := range res.Cascade {
		if !o.Notified {
			t.Fatalf("outcome not notified: %+v", o)
		}
	}
	if msg := notifier.sent["user-1"]; !strings.Contains(msg, "2026-09-07") || !strings.Contains(msg, "09:00") {
		t.Fatalf("cancellation message missing date or time: %q", msg)
	}
	// the other date's booking is untouched
	if got, _ := ledger.ListForDate(context.Background(), "2026-09-08"); len(got) != 1 {
		t.Fatalf("neighbouring date was cascaded")
	}
}

func TestCascadeSurvivesDeliveryFailure(t *testing.T) {
	ledger := &stubLedger{records: []storage.BookingRecord{
		booking("b1", "user-1", "2026-09-07", 9*60),
		booking("b2", "user-2", "2026-09-07", 10*60),
	}}
	notifier := newStubNotifier()
	notifier.failOn["user-2"] = true
	w := NewWorkflow(ledger, notifier)

	d, _ := NewDraft("2026-09-07", ModeFullDay, "", "")
	res, err := w.Commit(context.Background(), d, true)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	byID := map[string]CancelOutcome{}
	for _, o := range res.Cascade {
		byID[o.SubjectID] = o
	}
	if !byID["user-1"].Notified {
		t.Fatalf("user-1 not notified")
	}
	if byID["user-2"].Notified || byID["user-2"].Error == "" {
		t.Fatalf("user-2 outcome = %+v, want failed delivery", byID["user-2"])
	}
	// cancellations committed regardless of delivery
	if got, _ := ledger.ListForDate(context.Background(), "2026-09-07"); len(got) != 0 {
		t.Fatalf("bookings survived a confirmed cascade")
	}
}

func TestFullDayBlockSubsumesIntervalBlock(t *testing.T) {
	ledger := &stubLedger{records: []storage.BookingRecord{
		{ID: "block-3", SubjectID: storage.BlockSubject, VisitDate: "2026-09-07", StartMinute: 10 * 60, EndMinute: 11 * 60},
	}}
	notifier := newStubNotifier()
	w := NewWorkflow(ledger, notifier)

	d, _ := NewDraft("2026-09-07", ModeFullDay, "", "")
	res, err := w.Commit(context.Background(), d, false)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(res.Cascade) != 0 {
		t.Fatalf("block rows must not cascade: %+v", res.Cascade)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("block rows must not notify: %v", notifier.sent)
	}

	var dayRows []storage.BookingRecord
	for _, rec := range ledger.records {
		if rec.VisitDate == "2026-09-07" {
			dayRows = append(dayRows, rec)
		}
	}
	if len(dayRows) != 1 || !dayRows[0].IsFullDay() {
		t.Fatalf("day rows = %+v, want only the full-day block", dayRows)
	}
}

func TestRemoveBlockDoesNotCascade(t *testing.T) {
	ledger := &stubLedger{records: []storage.BookingRecord{
		{ID: "block-7", SubjectID: storage.BlockSubject, VisitDate: "2026-09-07", StartMinute: 0, EndMinute: 23*60 + 59},
		booking("b1", "user-1", "2026-09-08", 9*60),
	}}
	notifier := newStubNotifier()
	w := NewWorkflow(ledger, notifier)

	rec, err := w.Remove(context.Background(), "block-7")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !rec.IsFullDay() {
		t.Fatalf("removed record = %+v, want full-day block", rec)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("unblock sent notifications: %v", notifier.sent)
	}

	if _, err := w.Remove(context.Background(), "block-7"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second remove err = %v, want ErrNotFound", err)
	}
}
