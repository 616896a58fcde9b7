package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yared-getachew/bookdesk/libs/db"
	otelx "github.com/yared-getachew/bookdesk/libs/otel"
)

// Repository stages events next to the domain writes that produce them. An
// event inserted through the caller's transaction commits or rolls back with
// the booking change it describes.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, evt Event) error {
	// Trace context is captured at insert time and replayed by the
	// publisher, so the Kafka message stays on the originating trace.
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, traceparent, tracestate)
	return err
}

// StagedEvent is one outbox row awaiting publication.
type StagedEvent struct {
	ID          int64
	EventID     string
	AggregateID string
	EventType   string
	Payload     []byte
	Traceparent string
	Tracestate  string
	CreatedAt   time.Time
}

// LockPending claims up to limit unpublished rows for the calling transaction.
// SKIP LOCKED keeps concurrent publisher replicas off each other's batches.
func (r *Repository) LockPending(ctx context.Context, tx pgx.Tx, limit int) ([]StagedEvent, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_id, aggregate_id, event_type, payload, traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staged []StagedEvent
	for rows.Next() {
		var ev StagedEvent
		if err := rows.Scan(&ev.ID, &ev.EventID, &ev.AggregateID, &ev.EventType, &ev.Payload, &ev.Traceparent, &ev.Tracestate, &ev.CreatedAt); err != nil {
			return nil, err
		}
		staged = append(staged, ev)
	}
	return staged, rows.Err()
}

func (r *Repository) MarkPublished(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE outbox_events
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}
