package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/yared-getachew/bookdesk/libs/kafkax"
	"github.com/yared-getachew/bookdesk/services/notification-service/internal/chat"
	"github.com/yared-getachew/bookdesk/services/notification-service/internal/directory"
	"github.com/yared-getachew/bookdesk/services/notification-service/internal/email"
	"github.com/yared-getachew/bookdesk/services/notification-service/internal/storage"
)

// Topics this service consumes.
const (
	TopicSlotBooked       = "booking.slot.booked.v1"
	TopicSlotCancelled    = "booking.slot.cancelled.v1"
	TopicCascadeCancelled = "booking.cascade.cancelled.v1"
	TopicNoAvailability   = "booking.no_availability.v1"
	TopicDigestMessage    = "digest.message.v1"
)

const (
	channelChat  = "chat"
	channelEmail = "email"
)

// Recorder persists one delivery attempt.
type Recorder interface {
	Insert(ctx context.Context, n storage.Notification) error
}

// Dispatcher turns consumed events into chat or email deliveries and records
// every attempt. Subjects are always reached over chat; the operator over
// chat when a chat ID is configured, otherwise email.
type Dispatcher struct {
	chat           chat.Sender
	email          email.Sender
	directory      directory.Provider
	records        Recorder
	logger         *slog.Logger
	operatorChatID string
	operatorEmail  string
}

func New(
	chatSender chat.Sender,
	emailSender email.Sender,
	dir directory.Provider,
	records Recorder,
	logger *slog.Logger,
	operatorChatID string,
	operatorEmail string,
) *Dispatcher {
	return &Dispatcher{
		chat:           chatSender,
		email:          emailSender,
		directory:      dir,
		records:        records,
		logger:         logger,
		operatorChatID: operatorChatID,
		operatorEmail:  operatorEmail,
	}
}

type slotPayload struct {
	BookingID string `json:"booking_id"`
	SubjectID string `json:"subject_id"`
	VisitDate string `json:"visit_date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

type digestPayload struct {
	Audience  string `json:"audience"`
	SubjectID string `json:"subject_id"`
	Text      string `json:"text"`
}

// Handle routes one message by topic. Unknown topics are logged and dropped
// rather than retried forever.
func (d *Dispatcher) Handle(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)

	switch msg.Topic {
	case TopicSlotBooked:
		// The operator gets a copy of every confirmed booking, not just the
		// nightly roster.
		var p slotPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Topic, err)
		}
		text := fmt.Sprintf("Your appointment is confirmed for %s at %s.", p.VisitDate, p.StartTime)
		note := fmt.Sprintf("New booking: %s on %s at %s.", p.SubjectID, p.VisitDate, p.StartTime)
		return errors.Join(
			d.toSubject(ctx, meta, p.SubjectID, text),
			d.toOperator(ctx, meta, "New booking", note),
		)

	case TopicSlotCancelled:
		var p slotPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Topic, err)
		}
		text := fmt.Sprintf("Your appointment on %s at %s has been cancelled.", p.VisitDate, p.StartTime)
		note := fmt.Sprintf("Cancelled by subject: %s on %s at %s.", p.SubjectID, p.VisitDate, p.StartTime)
		return errors.Join(
			d.toSubject(ctx, meta, p.SubjectID, text),
			d.toOperator(ctx, meta, "Booking cancelled", note),
		)

	case TopicCascadeCancelled:
		// The displaced subject was already messaged by the blocking
		// workflow; here only the operator gets the audit note.
		var p slotPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Topic, err)
		}
		text := fmt.Sprintf("Cancelled by day block: %s on %s at %s.", p.SubjectID, p.VisitDate, p.StartTime)
		return d.toOperator(ctx, meta, "Booking cancelled by block", text)

	case TopicNoAvailability:
		var p slotPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Topic, err)
		}
		text := fmt.Sprintf("A visitor (%s) found no bookable days. Consider opening more availability.", p.SubjectID)
		return d.toOperator(ctx, meta, "No availability", text)

	case TopicDigestMessage:
		var p digestPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Topic, err)
		}
		if p.Audience == "subject" {
			return d.toSubject(ctx, meta, p.SubjectID, p.Text)
		}
		return d.toOperator(ctx, meta, "Bookdesk digest", p.Text)

	default:
		d.logger.Warn("unknown topic dropped", "topic", msg.Topic)
		return nil
	}
}

func (d *Dispatcher) toSubject(ctx context.Context, meta kafkax.EventMeta, subjectID, text string) error {
	chatID, err := d.directory.ResolveChat(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("resolve chat for %s: %w", subjectID, err)
	}
	sendErr := d.chat.Send(ctx, chatID, text)
	d.record(ctx, meta, channelChat, chatID, text, sendErr)
	return sendErr
}

func (d *Dispatcher) toOperator(ctx context.Context, meta kafkax.EventMeta, subject, text string) error {
	if d.operatorChatID != "" {
		sendErr := d.chat.Send(ctx, d.operatorChatID, text)
		d.record(ctx, meta, channelChat, d.operatorChatID, text, sendErr)
		return sendErr
	}
	if d.operatorEmail != "" {
		sendErr := d.email.Send(d.operatorEmail, subject, text)
		d.record(ctx, meta, channelEmail, d.operatorEmail, text, sendErr)
		return sendErr
	}
	d.logger.Warn("no operator address configured; message dropped", "event_id", meta.EventID)
	return nil
}

func (d *Dispatcher) record(ctx context.Context, meta kafkax.EventMeta, channel, recipient, body string, sendErr error) {
	n := storage.Notification{
		EventID:   meta.EventID,
		EventType: meta.EventType,
		Channel:   channel,
		Recipient: recipient,
		Body:      body,
		Status:    storage.StatusSent,
	}
	if sendErr != nil {
		n.Status = storage.StatusFailed
		n.Error = sendErr.Error()
	}
	if err := d.records.Insert(ctx, n); err != nil {
		d.logger.Error("record delivery attempt failed", "err", err, "event_id", meta.EventID)
	}
}
