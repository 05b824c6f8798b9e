package reservation

import (
	"fmt"
	"time"
)

// TimeSlot is the half-open interval [start, end).
type TimeSlot struct {
	start time.Time
	end   time.Time
}

func NewTimeSlot(start, end time.Time) (TimeSlot, error) {
	if !start.Before(end) {
		return TimeSlot{}, ErrInvalidReservationTime
	}
	return TimeSlot{
		start: start.UTC(),
		end:   end.UTC(),
	}, nil
}

func (ts TimeSlot) Start() time.Time {
	return ts.start
}

func (ts TimeSlot) End() time.Time {
	return ts.end
}

func (ts TimeSlot) Duration() time.Duration {
	return ts.end.Sub(ts.start)
}

// Overlaps is the half-open interval test; touching slots do not overlap.
func (ts TimeSlot) Overlaps(other TimeSlot) bool {
	return ts.start.Before(other.end) && other.start.Before(ts.end)
}

// DayWindow widens the slot to whole UTC days, used as the storage pre-filter.
func (ts TimeSlot) DayWindow() (from, to time.Time) {
	from = ts.start.Truncate(24 * time.Hour)
	to = ts.end.Truncate(24 * time.Hour)
	if !to.Equal(ts.end) {
		to = to.Add(24 * time.Hour)
	}
	return from, to
}

func (ts TimeSlot) ToTstzrange() string {
	return fmt.Sprintf("[%s,%s)", ts.start.Format(time.RFC3339Nano), ts.end.Format(time.RFC3339Nano))
}
