package storage

import (
	"testing"

	"github.com/yared-getachew/bookdesk/services/booking-service/internal/availability"
)

func TestRecordBlockClassification(t *testing.T) {
	booking := BookingRecord{SubjectID: "user-1", StartMinute: 600, EndMinute: 630}
	if booking.IsBlock() {
		t.Fatalf("subject booking classified as block")
	}
	if booking.IsFullDay() {
		t.Fatalf("subject booking classified as full-day block")
	}

	interval := BookingRecord{SubjectID: BlockSubject, StartMinute: 600, EndMinute: 720}
	if !interval.IsBlock() {
		t.Fatalf("interval block not classified as block")
	}
	if interval.IsFullDay() {
		t.Fatalf("interval block classified as full-day")
	}

	fullDay := BookingRecord{SubjectID: BlockSubject, StartMinute: 0, EndMinute: 23*60 + 59}
	if !fullDay.IsFullDay() {
		t.Fatalf("full-day sentinel not recognized")
	}
}

func TestRecordInterval(t *testing.T) {
	rec := BookingRecord{StartMinute: 540, EndMinute: 570}
	got := rec.Interval()
	want := availability.Interval{Start: 540, End: 570}
	if got != want {
		t.Fatalf("interval = %+v, want %+v", got, want)
	}
}
