package storage

import (
	"context"

	"github.com/yared-getachew/bookdesk/libs/db"
)

// Delivery statuses.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Notification is one delivery attempt: which event, to whom, over what
// channel, and whether it went out.
type Notification struct {
	EventID   string
	EventType string
	Channel   string
	Recipient string
	Body      string
	Status    string
	Error     string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (event_id, event_type, channel, recipient, body, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.EventID, n.EventType, n.Channel, n.Recipient, n.Body, n.Status, n.Error)
	return err
}
