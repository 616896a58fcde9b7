package digest

import (
	"context"

	"github.com/yared-getachew/bookdesk/libs/db"
)

// BlockSubject mirrors the ledger's block sentinel; digest queries filter it
// out so blocks never count as appointments.
const BlockSubject = "ADMIN_BLOCK"

// Entry is the slice of a booking row the digests need.
type Entry struct {
	BookingID string
	SubjectID string
	VisitDate string
	StartTime string
}

// Repository reads the booking ledger. Digest jobs never write booking state.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryQueryColumns = `
	id::text,
	subject_id,
	visit_date::text,
	to_char(make_interval(mins => start_minute), 'HH24:MI')
`

// ListForDate returns the subject bookings of one date ascending by start.
func (r *Repository) ListForDate(ctx context.Context, date string) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryQueryColumns+`
		FROM booking_records
		WHERE visit_date = $1::date AND subject_id <> $2
		ORDER BY start_minute ASC
	`, date, BlockSubject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.BookingID, &e.SubjectID, &e.VisitDate, &e.StartTime); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ListBetween returns the subject bookings with visit_date in [from, to],
// ascending by date then start.
func (r *Repository) ListBetween(ctx context.Context, from, to string) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryQueryColumns+`
		FROM booking_records
		WHERE visit_date BETWEEN $1::date AND $2::date AND subject_id <> $3
		ORDER BY visit_date ASC, start_minute ASC
	`, from, to, BlockSubject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.BookingID, &e.SubjectID, &e.VisitDate, &e.StartTime); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
