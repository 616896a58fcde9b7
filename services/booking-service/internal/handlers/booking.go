package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yared-getachew/bookdesk/services/booking-service/internal/availability"
	"github.com/yared-getachew/bookdesk/services/booking-service/internal/outbox"
	"github.com/yared-getachew/bookdesk/services/booking-service/internal/storage"
)

// openDaysWindow bounds how far ahead the transport offers dates.
const openDaysWindow = 14

// TxBeginner opens the transaction a booking mutation shares with its outbox
// row. *db.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Ledger is the slice of the booking store the handlers need.
type Ledger interface {
	HasBookingOn(ctx context.Context, subjectID, date string) (bool, error)
	CreateTx(ctx context.Context, tx pgx.Tx, rec storage.BookingRecord) (storage.BookingRecord, error)
	DeleteOwnedTx(ctx context.Context, tx pgx.Tx, id, subjectID string) (storage.BookingRecord, error)
	ListUpcoming(ctx context.Context, subjectID string, now time.Time) ([]storage.BookingRecord, error)
	ListForDate(ctx context.Context, date string) ([]storage.BookingRecord, error)
	ListOccupancy(ctx context.Context, date string) ([]storage.BookingRecord, error)
	ListBlocks(ctx context.Context) ([]storage.BookingRecord, error)
}

// Schedule is the weekday-availability store.
type Schedule interface {
	Get(ctx context.Context, weekday int) (availability.DayConfig, error)
	List(ctx context.Context) ([]availability.DayConfig, error)
	Upsert(ctx context.Context, cfg availability.DayConfig) error
}

// EventLog stages outbox events inside the caller's transaction.
type EventLog interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

// BookingHandler serves the public booking flow: open days, slots, book,
// upcoming list and cancel.
type BookingHandler struct {
	pool     TxBeginner
	bookings Ledger
	schedule Schedule
	outbox   EventLog
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewBookingHandler(
	pool TxBeginner,
	bookings Ledger,
	schedule Schedule,
	outboxRepo EventLog,
	logger *slog.Logger,
	loc *time.Location,
) *BookingHandler {
	return &BookingHandler{
		pool:     pool,
		bookings: bookings,
		schedule: schedule,
		outbox:   outboxRepo,
		logger:   logger,
		loc:      loc,
		now:      func() time.Time { return time.Now().In(loc) },
	}
}

type recordView struct {
	ID        string `json:"id"`
	SubjectID string `json:"subject_id"`
	VisitDate string `json:"visit_date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func viewOf(rec storage.BookingRecord) recordView {
	return recordView{
		ID:        rec.ID,
		SubjectID: rec.SubjectID,
		VisitDate: rec.VisitDate,
		StartTime: rec.StartMinute.String(),
		EndTime:   rec.EndMinute.String(),
	}
}

// OpenDays lists bookable dates over the next two weeks: every date whose
// weekday has availability configured. An empty schedule alerts the operator
// through the outbox so unmet demand is visible.
func (h *BookingHandler) OpenDays(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
		return
	}
	ctx := r.Context()

	configs, err := h.schedule.List(ctx)
	if err != nil {
		h.logger.Error("list schedule failed", "err", err)
		writeInternal(w)
		return
	}
	configured := make(map[int]bool, len(configs))
	for _, cfg := range configs {
		configured[cfg.Weekday] = true
	}

	var dates []string
	day := h.now()
	for i := 0; i < openDaysWindow; i++ {
		if configured[availability.ISOWeekday(day)] {
			dates = append(dates, day.Format(availability.DateLayout))
		}
		day = day.AddDate(0, 0, 1)
	}

	if len(dates) == 0 {
		h.alertNoAvailability(r, strings.TrimSpace(r.URL.Query().Get("subject_id")))
		writeError(w, http.StatusNotFound, codeNoAvailability, "no bookable days at the moment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dates": dates})
}

// Slots returns the free slots of one date.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if _, err := availability.ParseDate(date); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "date must be YYYY-MM-DD")
		return
	}

	slots, _, err := h.slotsFor(r, date)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, codeNoAvailability, "no availability on this day")
			return
		}
		h.logger.Error("slot generation failed", "date", date, "err", err)
		writeInternal(w)
		return
	}
	if len(slots) == 0 {
		writeError(w, http.StatusNotFound, codeNoAvailability, "no free slots on this day")
		return
	}

	type slotView struct {
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	}
	out := make([]slotView, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotView{StartTime: s.Start.String(), EndTime: s.End.String()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "slots": out})
}

type bookRequest struct {
	SubjectID string `json:"subject_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
}

// Book validates the requested slot against the current grid and inserts the
// booking. The unique index decides races; a loser gets 409 and the transport
// re-runs slot listing.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
		return
	}
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
		return
	}
	req.SubjectID = strings.TrimSpace(req.SubjectID)
	if req.SubjectID == "" || req.SubjectID == storage.BlockSubject {
		writeError(w, http.StatusBadRequest, codeBadRequest, "subject_id is required")
		return
	}
	if _, err := availability.ParseDate(req.Date); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "date must be YYYY-MM-DD")
		return
	}
	start, err := availability.ParseClock(req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "start_time must be HH:MM")
		return
	}

	ctx := r.Context()
	taken, err := h.bookings.HasBookingOn(ctx, req.SubjectID, req.Date)
	if err != nil {
		h.logger.Error("daily pre-check failed", "err", err)
		writeInternal(w)
		return
	}
	if taken {
		writeError(w, http.StatusUnprocessableEntity, codeAlreadyBooked, "you already have a booking on this day")
		return
	}

	slots, cfg, err := h.slotsFor(r, req.Date)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, codeNoAvailability, "no availability on this day")
			return
		}
		h.logger.Error("slot generation failed", "date", req.Date, "err", err)
		writeInternal(w)
		return
	}
	offered := false
	for _, s := range slots {
		if s.Start == start {
			offered = true
			break
		}
	}
	if !offered {
		writeError(w, http.StatusUnprocessableEntity, codeOutsideAvailability, "this time is not offered on this day")
		return
	}

	startsAt, err := availability.At(req.Date, start, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid date")
		return
	}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		h.logger.Error("begin tx failed", "err", err)
		writeInternal(w)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, err := h.bookings.CreateTx(ctx, tx, storage.BookingRecord{
		SubjectID:   req.SubjectID,
		VisitDate:   req.Date,
		StartMinute: start,
		EndMinute:   start.Add(cfg.SlotMinutes),
		StartsAt:    startsAt,
	})
	if err != nil {
		if errors.Is(err, storage.ErrSlotTaken) {
			writeError(w, http.StatusConflict, codeConflict, "this slot was just taken, please pick another")
			return
		}
		h.logger.Error("create booking failed", "err", err)
		writeInternal(w)
		return
	}

	evt, err := outbox.NewSlotBooked(rec.ID, outbox.SlotEvent{
		BookingID: rec.ID,
		SubjectID: rec.SubjectID,
		VisitDate: rec.VisitDate,
		StartTime: rec.StartMinute.String(),
		EndTime:   rec.EndMinute.String(),
		At:        time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("encode booked event failed", "err", err)
		writeInternal(w)
		return
	}
	if err := h.outbox.Insert(ctx, tx, evt); err != nil {
		h.logger.Error("enqueue booked event failed", "err", err)
		writeInternal(w)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		h.logger.Error("commit booking failed", "err", err)
		writeInternal(w)
		return
	}

	writeJSON(w, http.StatusCreated, viewOf(rec))
}

// Appointments lists a subject's upcoming bookings, soonest first.
func (h *BookingHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
		return
	}
	subjectID := strings.TrimSpace(r.URL.Query().Get("subject_id"))
	if subjectID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "subject_id is required")
		return
	}

	records, err := h.bookings.ListUpcoming(r.Context(), subjectID, h.now())
	if err != nil {
		h.logger.Error("list upcoming failed", "err", err)
		writeInternal(w)
		return
	}
	out := make([]recordView, 0, len(records))
	for _, rec := range records {
		out = append(out, viewOf(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": out})
}

type cancelRequest struct {
	SubjectID string `json:"subject_id"`
	BookingID string `json:"booking_id"`
}

// Cancel removes a subject's own booking. A booking that is already gone is a
// soft success so the transport can confirm either way.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
		return
	}
	req.SubjectID = strings.TrimSpace(req.SubjectID)
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.SubjectID == "" || req.BookingID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "subject_id and booking_id are required")
		return
	}

	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		h.logger.Error("begin tx failed", "err", err)
		writeInternal(w)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, err := h.bookings.DeleteOwnedTx(ctx, tx, req.BookingID, req.SubjectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "already_removed"})
			return
		}
		h.logger.Error("cancel booking failed", "err", err)
		writeInternal(w)
		return
	}

	evt, err := outbox.NewSlotCancelled(rec.ID, outbox.SlotEvent{
		BookingID: rec.ID,
		SubjectID: rec.SubjectID,
		VisitDate: rec.VisitDate,
		StartTime: rec.StartMinute.String(),
		EndTime:   rec.EndMinute.String(),
		At:        time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("encode cancelled event failed", "err", err)
		writeInternal(w)
		return
	}
	if err := h.outbox.Insert(ctx, tx, evt); err != nil {
		h.logger.Error("enqueue cancelled event failed", "err", err)
		writeInternal(w)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		h.logger.Error("commit cancel failed", "err", err)
		writeInternal(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// slotsFor regenerates the free-slot grid for a date from the weekday config
// and the date's occupancy. storage.ErrNotFound means the weekday is closed.
func (h *BookingHandler) slotsFor(r *http.Request, date string) ([]availability.Slot, availability.DayConfig, error) {
	ctx := r.Context()
	parsed, err := availability.ParseDate(date)
	if err != nil {
		return nil, availability.DayConfig{}, err
	}
	cfg, err := h.schedule.Get(ctx, availability.ISOWeekday(parsed))
	if err != nil {
		return nil, availability.DayConfig{}, err
	}
	occupancy, err := h.bookings.ListOccupancy(ctx, date)
	if err != nil {
		return nil, availability.DayConfig{}, err
	}
	busy := make([]availability.Interval, 0, len(occupancy))
	for _, rec := range occupancy {
		busy = append(busy, rec.Interval())
	}
	return availability.GenerateSlots(cfg, date, busy, h.now(), h.loc), cfg, nil
}

// alertNoAvailability records an operator alert outside the request's fate:
// the 404 is returned regardless of whether the alert could be stored.
func (h *BookingHandler) alertNoAvailability(r *http.Request, subjectID string) {
	if subjectID == "" {
		subjectID = "anonymous"
	}
	ctx := r.Context()
	evt, err := outbox.NewNoAvailability(subjectID, outbox.NoAvailabilityEvent{
		SubjectID: subjectID,
		VisitDate: h.now().Format(availability.DateLayout),
		At:        time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("encode no-availability event failed", "err", err)
		return
	}
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		h.logger.Error("begin tx failed", "err", err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := h.outbox.Insert(ctx, tx, evt); err != nil {
		h.logger.Error("enqueue no-availability event failed", "err", err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		h.logger.Error("commit no-availability event failed", "err", err)
	}
}
