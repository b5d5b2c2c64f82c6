/*
conflict.go - Accept/reject decision for a proposed booking range

The guard evaluates rejections in a fixed order, first match wins:

  1. Full-date block          (cheapest, hardest rejection)
  2. Outside operating hours  (the whole range must fit; no truncation)
  3. Blocked time slot overlap
  4. Overlap with an existing non-cancelled booking

The booking scan is O(n) against every loaded booking. Bookings per field
per day are small in cardinality, so no interval structure is warranted.

The guard is used twice per creation: once as a cheap optimistic pre-check
and once authoritatively inside the storage transaction (the store re-runs
check 4 itself against committed rows). Callers treat a conflict from
either identically.
*/
package schedule

import "fmt"

// ConflictKind enumerates the rejection reasons, plus ConflictNone for
// acceptance.
type ConflictKind int

const (
	ConflictNone ConflictKind = iota
	ConflictDateBlocked
	ConflictOutsideHours
	ConflictSlotBlocked
	ConflictOverlapsBooking
)

func (k ConflictKind) String() string {
	switch k {
	case ConflictNone:
		return "ok"
	case ConflictDateBlocked:
		return "date_blocked"
	case ConflictOutsideHours:
		return "outside_operating_hours"
	case ConflictSlotBlocked:
		return "slot_blocked"
	case ConflictOverlapsBooking:
		return "overlaps_booking"
	default:
		return "unknown"
	}
}

// ConflictResult is the guard's verdict.
type ConflictResult struct {
	Kind    ConflictKind
	Message string
}

// OK reports acceptance.
func (r ConflictResult) OK() bool { return r.Kind == ConflictNone }

// Err converts a rejection into a *ConflictError; nil on acceptance.
func (r ConflictResult) Err() error {
	if r.OK() {
		return nil
	}
	return &ConflictError{Kind: r.Kind, Message: r.Message}
}

func accepted() ConflictResult { return ConflictResult{Kind: ConflictNone} }

func rejected(kind ConflictKind, format string, args ...any) ConflictResult {
	return ConflictResult{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// CheckConflict decides whether [proposedStart, proposedStart+duration)
// may be booked on the field and date. The bookings argument must contain
// only blocking (non-cancelled) bookings for that field and date.
func CheckConflict(field *Field, date, proposedStart string, durationHours float64, bookings []*Booking) (ConflictResult, error) {
	proposed, err := BookingRange(proposedStart, durationHours)
	if err != nil {
		return ConflictResult{}, err
	}

	if field.DateBlocked(date) {
		return rejected(ConflictDateBlocked, "Field is not available on %s", date), nil
	}

	hours := field.Hours.OrDefault()
	openMin, err := ToMinutes(hours.Open)
	if err != nil {
		return ConflictResult{}, err
	}
	closeMin, err := ToMinutes(hours.Close)
	if err != nil {
		return ConflictResult{}, err
	}
	// The entire range must fit; partial overflow is a rejection, never a
	// truncation.
	if proposed.Start < openMin || proposed.End > closeMin {
		return rejected(ConflictOutsideHours,
			"Requested time is outside operating hours (%s-%s)", hours.Open, hours.Close), nil
	}

	for _, r := range field.BlockedRangesOn(date) {
		if proposed.Overlaps(r) {
			return rejected(ConflictSlotBlocked,
				"Selected time range includes a blocked time slot on %s", date), nil
		}
	}

	for _, b := range bookings {
		r, err := b.Range()
		if err != nil {
			return ConflictResult{}, err
		}
		if proposed.Overlaps(r) {
			return rejected(ConflictOverlapsBooking,
				"Selected time range overlaps with an existing booking (%s-%s)", b.StartTime, b.EndTime), nil
		}
	}

	return accepted(), nil
}
