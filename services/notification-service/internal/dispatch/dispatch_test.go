package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/yared-getachew/bookdesk/services/notification-service/internal/storage"
)

type stubChat struct {
	sent   map[string]string
	failOn string
}

func (s *stubChat) ProviderID() string { return "chat-stub" }

func (s *stubChat) Send(_ context.Context, chatID string, text string) error {
	if chatID == s.failOn {
		return errors.New("delivery refused")
	}
	if s.sent == nil {
		s.sent = map[string]string{}
	}
	s.sent[chatID] = text
	return nil
}

type stubEmail struct {
	to, subject, body string
}

func (s *stubEmail) Send(to string, subject string, body string) error {
	s.to, s.subject, s.body = to, subject, body
	return nil
}

type stubRecorder struct {
	rows []storage.Notification
}

func (s *stubRecorder) Insert(_ context.Context, n storage.Notification) error {
	s.rows = append(s.rows, n)
	return nil
}

type identityDir struct{}

func (identityDir) ResolveChat(_ context.Context, subjectID string) (string, error) {
	return subjectID, nil
}

func message(topic, eventID string, payload string) kafka.Message {
	return kafka.Message{
		Topic: topic,
		Value: []byte(payload),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte(topic)},
		},
	}
}

func newTestDispatcher(chatSender *stubChat, emailSender *stubEmail, rec *stubRecorder, operatorChatID string) *Dispatcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(chatSender, emailSender, identityDir{}, rec, logger, operatorChatID, "ops@example.test")
}

func TestBookedEventMessagesSubject(t *testing.T) {
	chatSender := &stubChat{}
	rec := &stubRecorder{}
	d := newTestDispatcher(chatSender, &stubEmail{}, rec, "")

	msg := message(TopicSlotBooked, "evt-1",
		`{"booking_id":"b1","subject_id":"user-1","visit_date":"2026-09-07","start_time":"09:00","end_time":"09:30"}`)
	if err := d.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	text := chatSender.sent["user-1"]
	if !strings.Contains(text, "2026-09-07") || !strings.Contains(text, "09:00") {
		t.Fatalf("confirmation text = %q", text)
	}
	// two attempts: the subject confirmation and the operator email copy
	if len(rec.rows) != 2 {
		t.Fatalf("recorded rows = %+v", rec.rows)
	}
	for _, row := range rec.rows {
		if row.Status != storage.StatusSent || row.EventID != "evt-1" {
			t.Fatalf("recorded row = %+v", row)
		}
	}
}

func TestBookedEventCopiesOperatorChat(t *testing.T) {
	chatSender := &stubChat{}
	rec := &stubRecorder{}
	d := newTestDispatcher(chatSender, &stubEmail{}, rec, "operator-chat")

	msg := message(TopicSlotBooked, "evt-7",
		`{"booking_id":"b1","subject_id":"user-1","visit_date":"2026-09-07","start_time":"09:00","end_time":"09:30"}`)
	if err := d.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	note := chatSender.sent["operator-chat"]
	if !strings.Contains(note, "user-1") || !strings.Contains(note, "2026-09-07") {
		t.Fatalf("operator note = %q", note)
	}
	if !strings.Contains(chatSender.sent["user-1"], "confirmed") {
		t.Fatalf("subject confirmation = %q", chatSender.sent["user-1"])
	}
}

func TestCancelledEventCopiesOperator(t *testing.T) {
	chatSender := &stubChat{}
	rec := &stubRecorder{}
	d := newTestDispatcher(chatSender, &stubEmail{}, rec, "operator-chat")

	msg := message(TopicSlotCancelled, "evt-8",
		`{"booking_id":"b1","subject_id":"user-1","visit_date":"2026-09-07","start_time":"09:00"}`)
	if err := d.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(chatSender.sent["operator-chat"], "Cancelled by subject") {
		t.Fatalf("operator note = %q", chatSender.sent["operator-chat"])
	}
}

func TestCascadeEventGoesToOperatorOnly(t *testing.T) {
	chatSender := &stubChat{}
	rec := &stubRecorder{}
	d := newTestDispatcher(chatSender, &stubEmail{}, rec, "operator-chat")

	msg := message(TopicCascadeCancelled, "evt-2",
		`{"booking_id":"b1","subject_id":"user-1","visit_date":"2026-09-07","start_time":"09:00","reason":"day closed"}`)
	if err := d.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if _, ok := chatSender.sent["user-1"]; ok {
		t.Fatal("subject was messaged again for a cascade event")
	}
	if _, ok := chatSender.sent["operator-chat"]; !ok {
		t.Fatal("operator did not receive the cascade note")
	}
}

func TestDigestRoutesByAudience(t *testing.T) {
	chatSender := &stubChat{}
	emailSender := &stubEmail{}
	rec := &stubRecorder{}
	// no operator chat configured: admin digests fall back to email
	d := newTestDispatcher(chatSender, emailSender, rec, "")

	adminMsg := message(TopicDigestMessage, "evt-3", `{"audience":"admin","text":"Schedule for tomorrow"}`)
	if err := d.Handle(context.Background(), adminMsg); err != nil {
		t.Fatalf("Handle admin digest: %v", err)
	}
	if emailSender.to != "ops@example.test" || !strings.Contains(emailSender.body, "Schedule for tomorrow") {
		t.Fatalf("email = %+v", emailSender)
	}

	subjectMsg := message(TopicDigestMessage, "evt-4", `{"audience":"subject","subject_id":"user-9","text":"Reminder"}`)
	if err := d.Handle(context.Background(), subjectMsg); err != nil {
		t.Fatalf("Handle subject digest: %v", err)
	}
	if chatSender.sent["user-9"] != "Reminder" {
		t.Fatalf("subject digest = %q", chatSender.sent["user-9"])
	}
}

func TestFailedDeliveryIsRecorded(t *testing.T) {
	chatSender := &stubChat{failOn: "user-1"}
	rec := &stubRecorder{}
	d := newTestDispatcher(chatSender, &stubEmail{}, rec, "")

	msg := message(TopicSlotCancelled, "evt-5",
		`{"booking_id":"b1","subject_id":"user-1","visit_date":"2026-09-07","start_time":"09:00"}`)
	if err := d.Handle(context.Background(), msg); err == nil {
		t.Fatal("expected delivery error")
	}
	// subject chat failed, operator email copy still went out
	if len(rec.rows) != 2 || rec.rows[0].Status != storage.StatusFailed || rec.rows[0].Error == "" {
		t.Fatalf("recorded rows = %+v", rec.rows)
	}
	if rec.rows[1].Status != storage.StatusSent {
		t.Fatalf("operator copy = %+v", rec.rows[1])
	}
}

func TestUnknownTopicDropped(t *testing.T) {
	chatSender := &stubChat{}
	rec := &stubRecorder{}
	d := newTestDispatcher(chatSender, &stubEmail{}, rec, "operator-chat")

	if err := d.Handle(context.Background(), message("stray.topic.v1", "evt-6", `{}`)); err != nil {
		t.Fatalf("unknown topic should not error: %v", err)
	}
	if len(rec.rows) != 0 || len(chatSender.sent) != 0 {
		t.Fatal("unknown topic produced deliveries")
	}
}
