package blocking

import (
	"errors"
	"fmt"

	"github.com/yared-getachew/bookdesk/services/booking-service/internal/availability"
)

// Block modes. A full-day block is stored as the 00:00-23:59 sentinel interval
// and is the only mode that may displace existing bookings.
const (
	ModeInterval = "interval"
	ModeFullDay  = "full_day"
)

var (
	ErrInvalidDraft = errors.New("invalid block draft")

	// ErrBlockOverlap rejects an interval block that would cover an existing
	// booking or block. Interval blocks never cancel anything.
	ErrBlockOverlap = errors.New("interval block overlaps existing records")

	// ErrCascadeConfirmationRequired forces a second request before a
	// full-day block cancels standing bookings.
	ErrCascadeConfirmationRequired = errors.New("full-day block would cancel bookings; confirmation required")
)

// Draft is a validated block request, ready for conflict detection and commit.
type Draft struct {
	Date     string
	Mode     string
	Interval availability.Interval
}

// NewDraft validates a raw block request. For full-day mode the start and end
// arguments are ignored and the sentinel interval is used.
func NewDraft(date, mode, start, end string) (Draft, error) {
	if _, err := availability.ParseDate(date); err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}

	switch mode {
	case ModeFullDay:
		return Draft{
			Date:     date,
			Mode:     ModeFullDay,
			Interval: availability.Interval{Start: 0, End: 23*60 + 59},
		}, nil
	case ModeInterval:
		from, err := availability.ParseClock(start)
		if err != nil {
			return Draft{}, fmt.Errorf("%w: start: %v", ErrInvalidDraft, err)
		}
		to, err := availability.ParseClock(end)
		if err != nil {
			return Draft{}, fmt.Errorf("%w: end: %v", ErrInvalidDraft, err)
		}
		iv, err := availability.NewInterval(from, to)
		if err != nil {
			return Draft{}, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
		}
		return Draft{Date: date, Mode: ModeInterval, Interval: iv}, nil
	default:
		return Draft{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidDraft, mode)
	}
}

func (d Draft) IsFullDay() bool {
	return d.Mode == ModeFullDay
}
