package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yared-getachew/bookdesk/libs/db"
	"github.com/yared-getachew/bookdesk/services/booking-service/internal/availability"
)

// BlockSubject is the reserved subject marker for administrative blocks. Block
// rows live in the same table as bookings so they share the ledger's uniqueness
// guarantee on (visit_date, start_minute).
const BlockSubject = "ADMIN_BLOCK"

// BookingRecord is a row of the ledger: either a subject's reservation or an
// admin block. For reservations EndMinute is derived from the day's slot
// duration at insert time; for blocks it is the explicit block end (a full-day
// block spans 00:00-23:59). StartsAt is the absolute instant of the start in
// the service timezone, used for upcoming filters and chronological sort.
type BookingRecord struct {
	ID          string
	SubjectID   string
	VisitDate   string
	StartMinute availability.Clock
	EndMinute   availability.Clock
	StartsAt    time.Time
	CreatedAt   time.Time
}

func (r BookingRecord) IsBlock() bool {
	return r.SubjectID == BlockSubject
}

func (r BookingRecord) Interval() availability.Interval {
	return availability.Interval{Start: r.StartMinute, End: r.EndMinute}
}

// IsFullDay reports the 00:00-23:59 sentinel written by full-day blocking.
func (r BookingRecord) IsFullDay() bool {
	return r.IsBlock() && r.StartMinute == 0 && r.EndMinute == 23*60+59
}

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

const recordColumns = `id::text, subject_id, visit_date::text, start_minute, end_minute, starts_at, created_at`

// rowQuerier is satisfied by both *db.Pool and pgx.Tx so write paths can run
// standalone or inside a caller-owned transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Create inserts a record relying on the unique (visit_date, start_minute)
// index as the sole serialization between racing writers. The loser of a race
// gets ErrSlotTaken; there is deliberately no read-then-write check here.
func (r *BookingRepository) Create(ctx context.Context, rec BookingRecord) (BookingRecord, error) {
	return r.createIn(ctx, r.pool, rec)
}

// CreateTx is Create inside a caller-owned transaction, so the booking and its
// outbox event commit atomically.
func (r *BookingRepository) CreateTx(ctx context.Context, tx pgx.Tx, rec BookingRecord) (BookingRecord, error) {
	return r.createIn(ctx, tx, rec)
}

func (r *BookingRepository) createIn(ctx context.Context, q rowQuerier, rec BookingRecord) (BookingRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := q.QueryRow(ctx, `
		INSERT INTO booking_records (id, subject_id, visit_date, start_minute, end_minute, starts_at)
		VALUES ($1, $2, $3::date, $4, $5, $6)
		RETURNING `+recordColumns+`
	`, rec.ID, rec.SubjectID, rec.VisitDate, int(rec.StartMinute), int(rec.EndMinute), rec.StartsAt)

	created, err := scanRecord(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return BookingRecord{}, ErrSlotTaken
		}
		return BookingRecord{}, err
	}
	return created, nil
}

// HasBookingOn reports whether the subject already holds a non-block booking on
// the date. Checked before slot generation; it only guards against accidental
// double-booking by the same subject, not adversarial races.
func (r *BookingRepository) HasBookingOn(ctx context.Context, subjectID, date string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM booking_records
			WHERE subject_id = $1 AND visit_date = $2::date
		)
	`, subjectID, date).Scan(&exists)
	return exists, err
}

// DeleteOwned removes one record scoped to its owning subject and returns the
// deleted row, or ErrNotFound when it was already gone. Subject cancellation
// passes the real subject ID; block removal passes BlockSubject, so neither
// path can delete the other's rows.
func (r *BookingRepository) DeleteOwned(ctx context.Context, id, subjectID string) (BookingRecord, error) {
	return r.deleteOwnedIn(ctx, r.pool, id, subjectID)
}

func (r *BookingRepository) DeleteOwnedTx(ctx context.Context, tx pgx.Tx, id, subjectID string) (BookingRecord, error) {
	return r.deleteOwnedIn(ctx, tx, id, subjectID)
}

func (r *BookingRepository) deleteOwnedIn(ctx context.Context, q rowQuerier, id, subjectID string) (BookingRecord, error) {
	row := q.QueryRow(ctx, `
		DELETE FROM booking_records
		WHERE id = $1 AND subject_id = $2
		RETURNING `+recordColumns+`
	`, id, subjectID)
	rec, err := scanRecord(row)
	if err != nil {
		if db.IsNoRows(err) {
			return BookingRecord{}, ErrNotFound
		}
		return BookingRecord{}, err
	}
	return rec, nil
}

// ListUpcoming returns the subject's bookings with a start instant at or after
// now, ascending.
func (r *BookingRepository) ListUpcoming(ctx context.Context, subjectID string, now time.Time) ([]BookingRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM booking_records
		WHERE subject_id = $1 AND starts_at >= $2
		ORDER BY starts_at ASC
	`, subjectID, now)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// ListForDate returns the non-block bookings of a date ascending by start.
// Feeds admin rosters and the occupancy input of slot generation.
func (r *BookingRepository) ListForDate(ctx context.Context, date string) ([]BookingRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM booking_records
		WHERE visit_date = $1::date AND subject_id <> $2
		ORDER BY start_minute ASC
	`, date, BlockSubject)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// ListOccupancy returns every record of a date, bookings and blocks alike.
func (r *BookingRepository) ListOccupancy(ctx context.Context, date string) ([]BookingRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM booking_records
		WHERE visit_date = $1::date
		ORDER BY start_minute ASC
	`, date)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// ListBlocks returns all block rows ordered by (date, start).
func (r *BookingRepository) ListBlocks(ctx context.Context) ([]BookingRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM booking_records
		WHERE subject_id = $1
		ORDER BY visit_date ASC, start_minute ASC
	`, BlockSubject)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func scanRecord(row pgx.Row) (BookingRecord, error) {
	var rec BookingRecord
	var startMin, endMin int
	if err := row.Scan(&rec.ID, &rec.SubjectID, &rec.VisitDate, &startMin, &endMin, &rec.StartsAt, &rec.CreatedAt); err != nil {
		return BookingRecord{}, err
	}
	rec.StartMinute = availability.Clock(startMin)
	rec.EndMinute = availability.Clock(endMin)
	return rec, nil
}

func collectRecords(rows pgx.Rows) ([]BookingRecord, error) {
	defer rows.Close()

	var out []BookingRecord
	for rows.Next() {
		var rec BookingRecord
		var startMin, endMin int
		if err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.VisitDate, &startMin, &endMin, &rec.StartsAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.StartMinute = availability.Clock(startMin)
		rec.EndMinute = availability.Clock(endMin)
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
