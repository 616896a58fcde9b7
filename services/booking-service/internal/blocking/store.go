package blocking

import (
	"context"
	"time"

	"github.com/yared-getachew/bookdesk/libs/db"
	"github.com/yared-getachew/bookdesk/services/booking-service/internal/availability"
	"github.com/yared-getachew/bookdesk/services/booking-service/internal/outbox"
	"github.com/yared-getachew/bookdesk/services/booking-service/internal/storage"
)

// Store implements Ledger over Postgres. ReplaceDay runs the cascade in a
// single transaction together with the outbox events it produces.
type Store struct {
	pool     *db.Pool
	bookings *storage.BookingRepository
	outbox   *outbox.Repository
	loc      *time.Location
}

func NewStore(pool *db.Pool, bookings *storage.BookingRepository, outboxRepo *outbox.Repository, loc *time.Location) *Store {
	return &Store{pool: pool, bookings: bookings, outbox: outboxRepo, loc: loc}
}

func (s *Store) ListForDate(ctx context.Context, date string) ([]storage.BookingRecord, error) {
	return s.bookings.ListForDate(ctx, date)
}

func (s *Store) ListOccupancy(ctx context.Context, date string) ([]storage.BookingRecord, error) {
	return s.bookings.ListOccupancy(ctx, date)
}

func (s *Store) CreateBlock(ctx context.Context, date string, iv availability.Interval) (storage.BookingRecord, error) {
	startsAt, err := availability.At(date, iv.Start, s.loc)
	if err != nil {
		return storage.BookingRecord{}, err
	}
	return s.bookings.Create(ctx, storage.BookingRecord{
		SubjectID:   storage.BlockSubject,
		VisitDate:   date,
		StartMinute: iv.Start,
		EndMinute:   iv.End,
		StartsAt:    startsAt,
	})
}

func (s *Store) ReplaceDay(ctx context.Context, date string, iv availability.Interval) ([]storage.BookingRecord, storage.BookingRecord, error) {
	startsAt, err := availability.At(date, iv.Start, s.loc)
	if err != nil {
		return nil, storage.BookingRecord{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storage.BookingRecord{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Every row on the date goes: subject bookings are cancelled, and any
	// earlier interval block is subsumed by the full-day one written below.
	rows, err := tx.Query(ctx, `
		DELETE FROM booking_records
		WHERE visit_date = $1::date
		RETURNING id::text, subject_id, visit_date::text, start_minute, end_minute, starts_at, created_at
	`, date)
	if err != nil {
		return nil, storage.BookingRecord{}, err
	}
	var removed []storage.BookingRecord
	for rows.Next() {
		var rec storage.BookingRecord
		var startMin, endMin int
		if err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.VisitDate, &startMin, &endMin, &rec.StartsAt, &rec.CreatedAt); err != nil {
			rows.Close()
			return nil, storage.BookingRecord{}, err
		}
		rec.StartMinute = availability.Clock(startMin)
		rec.EndMinute = availability.Clock(endMin)
		if rec.IsBlock() {
			continue
		}
		removed = append(removed, rec)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, storage.BookingRecord{}, rows.Err()
	}

	block, err := s.bookings.CreateTx(ctx, tx, storage.BookingRecord{
		SubjectID:   storage.BlockSubject,
		VisitDate:   date,
		StartMinute: iv.Start,
		EndMinute:   iv.End,
		StartsAt:    startsAt,
	})
	if err != nil {
		return nil, storage.BookingRecord{}, err
	}

	now := time.Now().UTC()
	for _, rec := range removed {
		evt, err := outbox.NewCascadeCancelled(rec.ID, outbox.CascadeCancelledEvent{
			BookingID: rec.ID,
			SubjectID: rec.SubjectID,
			VisitDate: rec.VisitDate,
			StartTime: rec.StartMinute.String(),
			Reason:    CancellationMessage(rec.VisitDate, rec.StartMinute),
			At:        now,
		})
		if err != nil {
			return nil, storage.BookingRecord{}, err
		}
		if err := s.outbox.Insert(ctx, tx, evt); err != nil {
			return nil, storage.BookingRecord{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storage.BookingRecord{}, err
	}
	return removed, block, nil
}

func (s *Store) RemoveBlock(ctx context.Context, id string) (storage.BookingRecord, error) {
	return s.bookings.DeleteOwned(ctx, id, storage.BlockSubject)
}
