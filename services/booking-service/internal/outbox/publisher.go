package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/yared-getachew/bookdesk/libs/db"
	"github.com/yared-getachew/bookdesk/libs/kafkax"
	otelx "github.com/yared-getachew/bookdesk/libs/otel"
)

const (
	defaultPollEvery = 2 * time.Second
	defaultBatchSize = 50
)

// Publisher drains staged events into Kafka, one topic per event type, keyed
// by aggregate ID so all events of one booking land on the same partition. It
// runs as a background goroutine next to the HTTP server and stops when the
// context is cancelled.
type Publisher struct {
	pool      *db.Pool
	repo      *Repository
	logger    *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(pool *db.Pool, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	p := &Publisher{
		pool:      pool,
		repo:      repo,
		logger:    logger,
		brokers:   kafkax.SplitBrokers(cfg.Brokers),
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
	if p.pollEvery <= 0 {
		p.pollEvery = defaultPollEvery
	}
	if p.batchSize <= 0 {
		p.batchSize = defaultBatchSize
	}
	return p
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  p.brokers,
		Balancer: &kafka.Hash{},
	})
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.drain(ctx, writer); err != nil {
				p.logger.Error("outbox publish failed", "err", err)
			}
		}
	}
}

// drain claims one batch, writes every message, and marks the batch published
// in the claiming transaction. A Kafka write error aborts the batch; the rows
// unlock on rollback and the next tick retries them, so delivery is
// at-least-once with the consumer inbox absorbing the duplicates.
func (p *Publisher) drain(ctx context.Context, writer *kafka.Writer) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	staged, err := p.repo.LockPending(ctx, tx, p.batchSize)
	if err != nil {
		return err
	}
	if len(staged) == 0 {
		return tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(staged))
	for _, ev := range staged {
		if err := writer.WriteMessages(ctx, p.message(ctx, ev)); err != nil {
			return err
		}
		ids = append(ids, ev.ID)
	}

	if err := p.repo.MarkPublished(ctx, tx, ids); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Publisher) message(ctx context.Context, ev StagedEvent) kafka.Message {
	msgCtx := otelx.ContextWithTraceContext(ctx, ev.Traceparent, ev.Tracestate)
	msg := kafka.Message{
		Topic: ev.EventType,
		Key:   []byte(ev.AggregateID),
		Value: ev.Payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.EventID)},
			{Key: "event_type", Value: []byte(ev.EventType)},
		},
	}
	msg.Headers = kafkax.InjectTraceHeaders(msgCtx, msg.Headers)
	return msg
}
