/*
clock.go - Minute-offset time arithmetic for booking ranges

PURPOSE:
  All scheduling math in this system happens on integer minutes since
  midnight within a single calendar date. Dates themselves are opaque
  "YYYY-MM-DD" partition keys and are never combined with clock times
  into timezone-aware instants. That keeps overlap checks down to plain
  integer comparisons and removes the whole class of local/UTC drift bugs.

RANGE SEMANTICS:
  Ranges are half-open: [start, end). A booking ending at 10:00 and one
  starting at 10:00 do not overlap.

CROSS-MIDNIGHT:
  Not supported. The valid minute domain is [0, 1440]; 1440 only ever
  appears as a closing boundary ("24:00") and is never a start. Anything
  that would extend past midnight is rejected by the caller's validation,
  and ToClock flags out-of-domain values instead of wrapping.

"NOW":
  Anything that needs the current time takes a Clock value instead of
  calling time.Now directly, so tests can pin the calendar.

SEE ALSO:
  - slots.go: candidate start-time grid built on these helpers
  - conflict.go: overlap checks against existing bookings
*/
package schedule

import (
	"fmt"
	"time"
)

// MinutesPerDay bounds the valid minute domain. The value itself ("24:00")
// is only legal as a range end, never as a start.
const MinutesPerDay = 24 * 60

// BlockedSlotMinutes is the width of a single blocked time slot. Owners
// block time at 30-minute granularity even though the booking grid is
// hourly, so one blocked slot can partially cover an hourly candidate.
const BlockedSlotMinutes = 30

// Range is a half-open [Start, End) interval in minutes since midnight.
type Range struct {
	Start int
	End   int
}

// Overlaps reports whether two half-open ranges share any minute.
func (r Range) Overlaps(other Range) bool {
	return RangesOverlap(r.Start, r.End, other.Start, other.End)
}

// RangesOverlap is the single overlap predicate used everywhere: true iff
// startA < endB && startB < endA. Touching endpoints do not overlap.
func RangesOverlap(startA, endA, startB, endB int) bool {
	return startA < endB && startB < endA
}

// ToMinutes parses an "HH:MM" clock string into minutes since midnight.
// Hours must be in [0, 23] and minutes in [0, 59]; anything else is an
// *InvalidClockError.
func ToMinutes(clock string) (int, error) {
	if len(clock) != 5 || clock[2] != ':' {
		return 0, &InvalidClockError{Value: clock}
	}
	var hh, mm int
	if _, err := fmt.Sscanf(clock, "%02d:%02d", &hh, &mm); err != nil {
		return 0, &InvalidClockError{Value: clock}
	}
	if !isDigits(clock[:2]) || !isDigits(clock[3:]) {
		return 0, &InvalidClockError{Value: clock}
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, &InvalidClockError{Value: clock}
	}
	return hh*60 + mm, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ToClock formats minutes since midnight as "HH:MM". The closing boundary
// 1440 renders as "24:00"; values outside [0, 1440] are flagged rather
// than wrapped around.
func ToClock(minutes int) (string, error) {
	if minutes < 0 || minutes > MinutesPerDay {
		return "", fmt.Errorf("minute offset %d outside a single day: %w", minutes, ErrInvalidClock)
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60), nil
}

// DurationMinutes converts a duration in hours to whole minutes.
// Durations are validated upstream to be positive multiples of half an
// hour, so the rounding here never loses information.
func DurationMinutes(hours float64) int {
	return int(hours*60 + 0.5)
}

// BookingRange computes the half-open [start, end) range a booking of the
// given start clock and duration would occupy. The end may be MinutesPerDay
// exactly (a booking running to close at midnight) but never beyond it.
func BookingRange(startClock string, durationHours float64) (Range, error) {
	start, err := ToMinutes(startClock)
	if err != nil {
		return Range{}, err
	}
	end := start + DurationMinutes(durationHours)
	if end > MinutesPerDay {
		return Range{}, fmt.Errorf("range %s+%.1fh extends past midnight: %w", startClock, durationHours, ErrInvalidClock)
	}
	return Range{Start: start, End: end}, nil
}

// =============================================================================
// CLOCK - explicit time source
// =============================================================================

// Clock supplies "now" to anything that needs it. Production code uses
// SystemClock; tests pin a fixed date.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by the wall clock.
func SystemClock() Clock { return systemClock{} }

// FixedClock returns a Clock frozen at t.
func FixedClock(t time.Time) Clock { return fixedClock{t} }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// Today renders the clock's current date as an ISO "YYYY-MM-DD" key, the
// same representation bookings are partitioned by.
func Today(c Clock) string { return c.Now().Format("2006-01-02") }
