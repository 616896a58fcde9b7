package blocking

import (
	"context"
	"fmt"

	"github.com/yared-getachew/bookdesk/services/booking-service/internal/availability"
	"github.com/yared-getachew/bookdesk/services/booking-service/internal/notify"
	"github.com/yared-getachew/bookdesk/services/booking-service/internal/storage"
)

// Ledger is the slice of the booking store the workflow needs. ReplaceDay must
// be atomic: either every displaced booking is removed and the block row
// exists, or nothing changed.
type Ledger interface {
	ListForDate(ctx context.Context, date string) ([]storage.BookingRecord, error)
	ListOccupancy(ctx context.Context, date string) ([]storage.BookingRecord, error)
	CreateBlock(ctx context.Context, date string, iv availability.Interval) (storage.BookingRecord, error)
	ReplaceDay(ctx context.Context, date string, iv availability.Interval) ([]storage.BookingRecord, storage.BookingRecord, error)
	RemoveBlock(ctx context.Context, id string) (storage.BookingRecord, error)
}

// CancelOutcome reports the delivery result for one subject displaced by a
// full-day block. The cancellation itself has already committed; Notified only
// describes whether the subject heard about it.
type CancelOutcome struct {
	BookingID string `json:"booking_id"`
	SubjectID string `json:"subject_id"`
	StartTime string `json:"start_time"`
	Notified  bool   `json:"notified"`
	Error     string `json:"error,omitempty"`
}

// Result is a committed block plus the cascade it caused, if any.
type Result struct {
	Block   storage.BookingRecord
	Cascade []CancelOutcome
}

type Workflow struct {
	ledger   Ledger
	notifier notify.Notifier
}

func NewWorkflow(ledger Ledger, notifier notify.Notifier) *Workflow {
	return &Workflow{ledger: ledger, notifier: notifier}
}

// Conflicts returns the records a draft would collide with: existing subject
// bookings for a full-day block, any overlapping record for an interval block.
func (w *Workflow) Conflicts(ctx context.Context, d Draft) ([]storage.BookingRecord, error) {
	if d.IsFullDay() {
		return w.ledger.ListForDate(ctx, d.Date)
	}

	occupancy, err := w.ledger.ListOccupancy(ctx, d.Date)
	if err != nil {
		return nil, err
	}
	var conflicts []storage.BookingRecord
	for _, rec := range occupancy {
		if d.Interval.Overlaps(rec.Interval()) {
			conflicts = append(conflicts, rec)
		}
	}
	return conflicts, nil
}

// Commit applies a draft. Interval blocks refuse to commit over any existing
// record. Full-day blocks over standing bookings require confirmCascade; when
// confirmed the cancellations and the block commit atomically, then each
// displaced subject is messaged and the per-subject outcomes returned.
func (w *Workflow) Commit(ctx context.Context, d Draft, confirmCascade bool) (Result, error) {
	conflicts, err := w.Conflicts(ctx, d)
	if err != nil {
		return Result{}, err
	}

	if !d.IsFullDay() {
		if len(conflicts) > 0 {
			return Result{}, ErrBlockOverlap
		}
		block, err := w.ledger.CreateBlock(ctx, d.Date, d.Interval)
		if err != nil {
			return Result{}, err
		}
		return Result{Block: block}, nil
	}

	if len(conflicts) > 0 && !confirmCascade {
		return Result{}, ErrCascadeConfirmationRequired
	}

	removed, block, err := w.ledger.ReplaceDay(ctx, d.Date, d.Interval)
	if err != nil {
		return Result{}, err
	}

	outcomes := make([]CancelOutcome, 0, len(removed))
	for _, rec := range removed {
		outcome := CancelOutcome{
			BookingID: rec.ID,
			SubjectID: rec.SubjectID,
			StartTime: rec.StartMinute.String(),
		}
		msg := CancellationMessage(rec.VisitDate, rec.StartMinute)
		if err := w.notifier.Send(ctx, rec.SubjectID, msg); err != nil {
			outcome.Error = err.Error()
		} else {
			outcome.Notified = true
		}
		outcomes = append(outcomes, outcome)
	}
	return Result{Block: block, Cascade: outcomes}, nil
}

// Remove deletes a block by ID. Bookings made around the block are untouched;
// unblocking only re-opens the freed slots for future requests.
func (w *Workflow) Remove(ctx context.Context, id string) (storage.BookingRecord, error) {
	return w.ledger.RemoveBlock(ctx, id)
}

// CancellationMessage is the wording sent to a subject displaced by a
// full-day block.
func CancellationMessage(date string, start availability.Clock) string {
	return fmt.Sprintf(
		"Your appointment on %s at %s was cancelled because the day is no longer available. Please book a new time.",
		date, start.String(),
	)
}
