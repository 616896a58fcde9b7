package inbox

import (
	"context"

	"github.com/yared-getachew/bookdesk/libs/db"
)

// Repository is the consumer-side dedupe ledger. Every consumed event is
// inserted under its unique event_id; the insert failing with a unique
// violation means this service already handled the event.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record claims an event. It returns false when the event was seen before.
func (r *Repository) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	switch {
	case err == nil:
		return true, nil
	case db.IsUniqueViolation(err):
		return false, nil
	default:
		return false, err
	}
}
