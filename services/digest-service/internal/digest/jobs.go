package digest

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yared-getachew/bookdesk/services/digest-service/internal/outbox"
)

// Ledger is the read slice of the booking store the jobs need.
type Ledger interface {
	ListForDate(ctx context.Context, date string) ([]Entry, error)
	ListBetween(ctx context.Context, from, to string) ([]Entry, error)
}

// Sink accepts built digest messages for delivery.
type Sink interface {
	Enqueue(ctx context.Context, msg Message) error
}

// Message re-exports the outbox payload so job code and tests stay in one
// vocabulary.
type Message = outbox.Message

const jobTimeout = 30 * time.Second

// Jobs owns the scheduled digests. Both jobs fire at 20:00 in the service
// timezone, matching the operator's end-of-day routine.
type Jobs struct {
	ledger Ledger
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
}

func NewJobs(ledger Ledger, sink Sink, logger *slog.Logger, loc *time.Location) *Jobs {
	return &Jobs{
		ledger: ledger,
		sink:   sink,
		logger: logger,
		now:    func() time.Time { return time.Now().In(loc) },
	}
}

// Register attaches the jobs to a cron runner. The runner must be built with
// the same location the jobs use, otherwise "tomorrow" drifts at midnight.
func (j *Jobs) Register(c *cron.Cron) error {
	if _, err := c.AddFunc("0 20 * * *", j.RunNightly); err != nil {
		return err
	}
	if _, err := c.AddFunc("0 20 * * 0", j.RunWeekly); err != nil {
		return err
	}
	return nil
}

// RunNightly sends tomorrow's roster to the operator (skipped when the day is
// empty) and a reminder to every subject booked tomorrow.
func (j *Jobs) RunNightly() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	tomorrow := j.now().AddDate(0, 0, 1).Format(dateLayout)
	entries, err := j.ledger.ListForDate(ctx, tomorrow)
	if err != nil {
		j.logger.Error("nightly digest query failed", "date", tomorrow, "err", err)
		return
	}
	if len(entries) == 0 {
		j.logger.Info("nightly digest skipped, no bookings", "date", tomorrow)
		return
	}

	if err := j.sink.Enqueue(ctx, Message{
		Audience: outbox.AudienceAdmin,
		Text:     RosterMessage(tomorrow, entries),
		At:       time.Now().UTC(),
	}); err != nil {
		j.logger.Error("enqueue roster digest failed", "err", err)
	}

	for _, e := range entries {
		if err := j.sink.Enqueue(ctx, Message{
			Audience:  outbox.AudienceSubject,
			SubjectID: e.SubjectID,
			Text:      ReminderMessage(e),
			At:        time.Now().UTC(),
		}); err != nil {
			j.logger.Error("enqueue reminder failed", "subject_id", e.SubjectID, "err", err)
		}
	}
	j.logger.Info("nightly digest sent", "date", tomorrow, "bookings", len(entries))
}

// RunWeekly sends the trailing-seven-day summary to the operator.
func (j *Jobs) RunWeekly() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	to := j.now()
	from := to.AddDate(0, 0, -6)
	fromDate := from.Format(dateLayout)
	toDate := to.Format(dateLayout)

	entries, err := j.ledger.ListBetween(ctx, fromDate, toDate)
	if err != nil {
		j.logger.Error("weekly digest query failed", "from", fromDate, "to", toDate, "err", err)
		return
	}

	if err := j.sink.Enqueue(ctx, Message{
		Audience: outbox.AudienceAdmin,
		Text:     WeeklySummary(fromDate, toDate, entries),
		At:       time.Now().UTC(),
	}); err != nil {
		j.logger.Error("enqueue weekly digest failed", "err", err)
		return
	}
	j.logger.Info("weekly digest sent", "from", fromDate, "to", toDate, "bookings", len(entries))
}
