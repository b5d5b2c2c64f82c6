/*
availability.go - Per-slot availability for one field and date

PURPOSE:
  Merges a field's operating hours, blocked dates, blocked time slots and
  existing bookings into a verdict per candidate start time. This is what
  the booking UI renders, so the flags are deliberately redundant: a
  client can tell "blocked day" apart from "every slot individually
  booked" without re-deriving anything.

DURATION PARAMETERIZATION:
  Availability is always evaluated for a requested duration, never in the
  abstract. A 2-hour request can be blocked by a booking that a 1-hour
  request at the same start time clears. Evaluating [t, t+duration)
  against every obstacle is what prevents showing a start time as free
  that cannot actually fit the chosen length.

ALGORITHM:
  1. Fully blocked date short-circuits: every slot blocked, none available.
  2. Each candidate slot's provisional range is checked against the close
     boundary, every active booking, and every 30-minute blocked interval.
  3. A bookedRanges summary is attached so "already booked 14:00-16:00"
     renders without recomputing from hourly flags.
*/
package schedule

import "sort"

// Slot is the availability verdict for one candidate start time.
type Slot struct {
	Time             string
	Available        bool
	Booked           bool
	Blocked          bool
	ExtendsPastClose bool
}

// ClockRange is a [start, end) interval rendered back as clock strings.
type ClockRange struct {
	StartTime string
	EndTime   string
}

// Availability is the full answer for one (field, date, duration) query.
type Availability struct {
	FieldID      FieldID
	Date         string
	OpenTime     string
	CloseTime    string
	DateBlocked  bool
	Slots        []Slot
	BookedRanges []ClockRange
}

// ComputeAvailability classifies every candidate slot of the field's
// operating hours for the given date and requested duration. The bookings
// argument must contain only blocking (non-cancelled) bookings for that
// field and date; the caller loads them.
func ComputeAvailability(field *Field, date string, durationHours float64, bookings []*Booking) (*Availability, error) {
	hours := field.Hours.OrDefault()
	candidates, err := GenerateSlots(hours.Open, hours.Close, DefaultStepMinutes)
	if err != nil {
		return nil, err
	}

	avail := &Availability{
		FieldID:   field.ID,
		Date:      date,
		OpenTime:  hours.Open,
		CloseTime: hours.Close,
	}

	// Fully blocked day dominates everything else, including an empty
	// booking list. The UI shows this as a distinct state.
	if field.DateBlocked(date) {
		avail.DateBlocked = true
		avail.Slots = make([]Slot, len(candidates))
		for i, t := range candidates {
			avail.Slots[i] = Slot{Time: t, Blocked: true}
		}
		return avail, nil
	}

	closeMin, err := ToMinutes(hours.Close)
	if err != nil {
		return nil, err
	}

	bookedRanges := make([]Range, 0, len(bookings))
	for _, b := range bookings {
		r, err := b.Range()
		if err != nil {
			return nil, err
		}
		bookedRanges = append(bookedRanges, r)
	}
	blockedRanges := field.BlockedRangesOn(date)

	durMin := DurationMinutes(durationHours)
	avail.Slots = make([]Slot, 0, len(candidates))
	for _, t := range candidates {
		start, err := ToMinutes(t)
		if err != nil {
			return nil, err
		}
		proposed := Range{Start: start, End: start + durMin}

		slot := Slot{Time: t}
		slot.ExtendsPastClose = proposed.End > closeMin
		for _, r := range bookedRanges {
			if proposed.Overlaps(r) {
				slot.Booked = true
				break
			}
		}
		for _, r := range blockedRanges {
			if proposed.Overlaps(r) {
				slot.Blocked = true
				break
			}
		}
		slot.Available = !slot.ExtendsPastClose && !slot.Booked && !slot.Blocked
		avail.Slots = append(avail.Slots, slot)
	}

	avail.BookedRanges = clockRanges(bookedRanges)
	return avail, nil
}

// clockRanges renders minute ranges back to sorted clock pairs.
func clockRanges(ranges []Range) []ClockRange {
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := make([]ClockRange, 0, len(sorted))
	for _, r := range sorted {
		start, err := ToClock(r.Start)
		if err != nil {
			continue
		}
		end, err := ToClock(r.End)
		if err != nil {
			continue
		}
		out = append(out, ClockRange{StartTime: start, EndTime: end})
	}
	return out
}
