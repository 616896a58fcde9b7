package outbox

import (
	"encoding/json"
	"time"
)

// Kafka topic per event type. Consumers subscribe by event name.
const (
	TopicSlotBooked       = "booking.slot.booked.v1"
	TopicSlotCancelled    = "booking.slot.cancelled.v1"
	TopicCascadeCancelled = "booking.cascade.cancelled.v1"
	TopicNoAvailability   = "booking.no_availability.v1"
)

// Event is the envelope written to the outbox table together with the domain
// write it describes. The topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// SlotEvent is the payload shared by booked and cancelled events.
type SlotEvent struct {
	BookingID string    `json:"booking_id"`
	SubjectID string    `json:"subject_id"`
	VisitDate string    `json:"visit_date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	At        time.Time `json:"at"`
}

// CascadeCancelledEvent records one booking removed by a full-day block.
// Reason carries the exact wording relayed to the displaced subject.
type CascadeCancelledEvent struct {
	BookingID string    `json:"booking_id"`
	SubjectID string    `json:"subject_id"`
	VisitDate string    `json:"visit_date"`
	StartTime string    `json:"start_time"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// NoAvailabilityEvent is emitted when a subject asked for slots on a date that
// had none, so operators can spot demand the schedule does not cover.
type NoAvailabilityEvent struct {
	SubjectID string    `json:"subject_id"`
	VisitDate string    `json:"visit_date"`
	At        time.Time `json:"at"`
}

func NewSlotBooked(bookingID string, evt SlotEvent) (Event, error) {
	return envelope("booking", bookingID, TopicSlotBooked, evt)
}

func NewSlotCancelled(bookingID string, evt SlotEvent) (Event, error) {
	return envelope("booking", bookingID, TopicSlotCancelled, evt)
}

func NewCascadeCancelled(bookingID string, evt CascadeCancelledEvent) (Event, error) {
	return envelope("booking", bookingID, TopicCascadeCancelled, evt)
}

func NewNoAvailability(subjectID string, evt NoAvailabilityEvent) (Event, error) {
	return envelope("subject", subjectID, TopicNoAvailability, evt)
}

func envelope(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}
