package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yared-getachew/bookdesk/services/booking-service/internal/availability"
	"github.com/yared-getachew/bookdesk/services/booking-service/internal/blocking"
	"github.com/yared-getachew/bookdesk/services/booking-service/internal/storage"
)

// AdminHandler serves schedule administration: weekly availability, day
// roster, blocks. Admin authorization happens at the gateway; this service
// trusts its private network edge.
type AdminHandler struct {
	schedule Schedule
	bookings Ledger
	workflow *blocking.Workflow
	logger   *slog.Logger
}

func NewAdminHandler(
	schedule Schedule,
	bookings Ledger,
	workflow *blocking.Workflow,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		schedule: schedule,
		bookings: bookings,
		workflow: workflow,
		logger:   logger,
	}
}

type breakView struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type dayConfigView struct {
	Weekday     int         `json:"weekday"`
	Open        string      `json:"open"`
	Close       string      `json:"close"`
	SlotMinutes int         `json:"slot_minutes"`
	GapMinutes  int         `json:"gap_minutes"`
	Breaks      []breakView `json:"breaks"`
}

func configView(cfg availability.DayConfig) dayConfigView {
	v := dayConfigView{
		Weekday:     cfg.Weekday,
		Open:        cfg.Open.String(),
		Close:       cfg.Close.String(),
		SlotMinutes: cfg.SlotMinutes,
		GapMinutes:  cfg.GapMinutes,
		Breaks:      []breakView{},
	}
	for _, b := range cfg.Breaks {
		v.Breaks = append(v.Breaks, breakView{Start: b.Start.String(), End: b.End.String()})
	}
	return v
}

// Availability handles PUT (upsert one weekday) and GET (list all).
func (h *AdminHandler) Availability(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		h.putAvailability(w, r)
	case http.MethodGet:
		h.getAvailability(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	}
}

func (h *AdminHandler) putAvailability(w http.ResponseWriter, r *http.Request) {
	var req dayConfigView
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
		return
	}
	cfg, err := parseDayConfig(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInterval, err.Error())
		return
	}
	if err := h.schedule.Upsert(r.Context(), cfg); err != nil {
		if errors.Is(err, availability.ErrInvalidInterval) {
			writeError(w, http.StatusBadRequest, codeInvalidInterval, err.Error())
			return
		}
		h.logger.Error("upsert availability failed", "weekday", cfg.Weekday, "err", err)
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, configView(cfg))
}

func (h *AdminHandler) getAvailability(w http.ResponseWriter, r *http.Request) {
	configs, err := h.schedule.List(r.Context())
	if err != nil {
		h.logger.Error("list availability failed", "err", err)
		writeInternal(w)
		return
	}
	out := make([]dayConfigView, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, configView(cfg))
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": out})
}

func parseDayConfig(req dayConfigView) (availability.DayConfig, error) {
	open, err := availability.ParseClock(req.Open)
	if err != nil {
		return availability.DayConfig{}, err
	}
	cl, err := availability.ParseClock(req.Close)
	if err != nil {
		return availability.DayConfig{}, err
	}
	cfg := availability.DayConfig{
		Weekday:     req.Weekday,
		Open:        open,
		Close:       cl,
		SlotMinutes: req.SlotMinutes,
		GapMinutes:  req.GapMinutes,
	}
	for _, b := range req.Breaks {
		from, err := availability.ParseClock(b.Start)
		if err != nil {
			return availability.DayConfig{}, err
		}
		to, err := availability.ParseClock(b.End)
		if err != nil {
			return availability.DayConfig{}, err
		}
		iv, err := availability.NewInterval(from, to)
		if err != nil {
			return availability.DayConfig{}, err
		}
		cfg.Breaks = append(cfg.Breaks, iv)
	}
	return cfg, nil
}

// Roster lists the subject bookings of one date for the operator.
func (h *AdminHandler) Roster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if _, err := availability.ParseDate(date); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "date must be YYYY-MM-DD")
		return
	}
	records, err := h.bookings.ListForDate(r.Context(), date)
	if err != nil {
		h.logger.Error("list roster failed", "date", date, "err", err)
		writeInternal(w)
		return
	}
	out := make([]recordView, 0, len(records))
	for _, rec := range records {
		out = append(out, viewOf(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "bookings": out})
}

type blockRequest struct {
	Date           string `json:"date"`
	Mode           string `json:"mode"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	ConfirmCascade bool   `json:"confirm_cascade"`
}

type blockView struct {
	ID        string `json:"id"`
	VisitDate string `json:"visit_date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	FullDay   bool   `json:"full_day"`
}

func blockViewOf(rec storage.BookingRecord) blockView {
	return blockView{
		ID:        rec.ID,
		VisitDate: rec.VisitDate,
		StartTime: rec.StartMinute.String(),
		EndTime:   rec.EndMinute.String(),
		FullDay:   rec.IsFullDay(),
	}
}

// Blocks handles POST (create, possibly cascading) and GET (list).
func (h *AdminHandler) Blocks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createBlock(w, r)
	case http.MethodGet:
		h.listBlocks(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	}
}

func (h *AdminHandler) createBlock(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
		return
	}
	draft, err := blocking.NewDraft(req.Date, req.Mode, req.StartTime, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInterval, err.Error())
		return
	}

	ctx := r.Context()
	res, err := h.workflow.Commit(ctx, draft, req.ConfirmCascade)
	if err != nil {
		switch {
		case errors.Is(err, blocking.ErrCascadeConfirmationRequired):
			conflicts, cErr := h.workflow.Conflicts(ctx, draft)
			if cErr != nil {
				h.logger.Error("conflict listing failed", "date", draft.Date, "err", cErr)
				writeInternal(w)
				return
			}
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":          "blocking this day cancels existing bookings; repeat with confirm_cascade",
				"code":           codeConfirmRequired,
				"conflict_count": len(conflicts),
			})
		case errors.Is(err, blocking.ErrBlockOverlap), errors.Is(err, storage.ErrSlotTaken):
			writeError(w, http.StatusConflict, codeConflict, "the block overlaps existing bookings or blocks")
		default:
			h.logger.Error("block commit failed", "date", draft.Date, "err", err)
			writeInternal(w)
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"block":   blockViewOf(res.Block),
		"cascade": res.Cascade,
	})
}

func (h *AdminHandler) listBlocks(w http.ResponseWriter, r *http.Request) {
	records, err := h.bookings.ListBlocks(r.Context())
	if err != nil {
		h.logger.Error("list blocks failed", "err", err)
		writeInternal(w)
		return
	}
	out := make([]blockView, 0, len(records))
	for _, rec := range records {
		out = append(out, blockViewOf(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": out})
}

type deleteBlockRequest struct {
	BlockID string `json:"block_id"`
}

// DeleteBlock removes one block. Removal never resurrects bookings cancelled
// by an earlier cascade; a missing block is a soft success.
func (h *AdminHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
		return
	}
	var req deleteBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
		return
	}
	req.BlockID = strings.TrimSpace(req.BlockID)
	if req.BlockID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "block_id is required")
		return
	}

	rec, err := h.workflow.Remove(r.Context(), req.BlockID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "already_removed"})
			return
		}
		h.logger.Error("delete block failed", "block_id", req.BlockID, "err", err)
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "removed", "block": blockViewOf(rec)})
}
