package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yared-getachew/bookdesk/libs/db"
	"github.com/yared-getachew/bookdesk/services/booking-service/internal/availability"
)

// ScheduleRepository persists the weekly availability template, one row per
// ISO weekday. Breaks are stored as a jsonb array of [start,end) minute pairs.
type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

type breakRow struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Upsert validates and writes the config for its weekday, replacing any
// previous row. Later bookings made under the old template are untouched.
func (r *ScheduleRepository) Upsert(ctx context.Context, cfg availability.DayConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	breaks := make([]breakRow, 0, len(cfg.Breaks))
	for _, b := range cfg.Breaks {
		breaks = append(breaks, breakRow{Start: int(b.Start), End: int(b.End)})
	}
	payload, err := json.Marshal(breaks)
	if err != nil {
		return fmt.Errorf("encode breaks: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO schedule_days (weekday, open_minute, close_minute, slot_minutes, gap_minutes, breaks, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (weekday) DO UPDATE SET
			open_minute  = EXCLUDED.open_minute,
			close_minute = EXCLUDED.close_minute,
			slot_minutes = EXCLUDED.slot_minutes,
			gap_minutes  = EXCLUDED.gap_minutes,
			breaks       = EXCLUDED.breaks,
			updated_at   = now()
	`, cfg.Weekday, int(cfg.Open), int(cfg.Close), cfg.SlotMinutes, cfg.GapMinutes, payload)
	return err
}

// Get returns the config for an ISO weekday (1=Monday..7=Sunday), or
// ErrNotFound when the day has no availability configured.
func (r *ScheduleRepository) Get(ctx context.Context, weekday int) (availability.DayConfig, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT weekday, open_minute, close_minute, slot_minutes, gap_minutes, breaks
		FROM schedule_days
		WHERE weekday = $1
	`, weekday)
	cfg, err := scanDayConfig(row)
	if err != nil {
		if db.IsNoRows(err) {
			return availability.DayConfig{}, ErrNotFound
		}
		return availability.DayConfig{}, err
	}
	return cfg, nil
}

// List returns every configured weekday ascending.
func (r *ScheduleRepository) List(ctx context.Context) ([]availability.DayConfig, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, open_minute, close_minute, slot_minutes, gap_minutes, breaks
		FROM schedule_days
		ORDER BY weekday ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.DayConfig
	for rows.Next() {
		cfg, err := scanDayConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanDayConfig(row pgx.Row) (availability.DayConfig, error) {
	var cfg availability.DayConfig
	var open, close int
	var payload []byte
	if err := row.Scan(&cfg.Weekday, &open, &close, &cfg.SlotMinutes, &cfg.GapMinutes, &payload); err != nil {
		return availability.DayConfig{}, err
	}
	cfg.Open = availability.Clock(open)
	cfg.Close = availability.Clock(close)

	var breaks []breakRow
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &breaks); err != nil {
			return availability.DayConfig{}, fmt.Errorf("decode breaks: %w", err)
		}
	}
	for _, b := range breaks {
		cfg.Breaks = append(cfg.Breaks, availability.Interval{Start: availability.Clock(b.Start), End: availability.Clock(b.End)})
	}
	return cfg, nil
}
