/*
types.go - Domain types for fields and bookings

PURPOSE:
  The records the engine schedules against. Fields are read-mostly from
  this package's point of view (only the blocking operations mutate them);
  bookings are created by the transaction manager and only ever change
  status afterwards.

DESIGN DECISIONS:
  1. Dates are "YYYY-MM-DD" strings used as opaque partition keys.
  2. Clock times are "HH:MM" strings; all math happens on minute offsets
     (see clock.go).
  3. Money uses decimal.Decimal. Prices multiplied by fractional hours
     must not pick up float dust.
  4. Blocked time slots are a map date -> set of start times, not a
     scanned list of records.

SEE ALSO:
  - store.go: persistence interfaces over these types
  - availability.go: per-slot verdicts computed from them
*/
package schedule

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// MustParseDecimal parses a stored decimal string, falling back to zero
// on corruption rather than failing a whole read.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FieldID identifies a bookable field.
type FieldID string

// BookingID identifies a booking.
type BookingID string

// =============================================================================
// STRING SETS - blocked dates and blocked time slots
// =============================================================================

// StringSet is a set of date or clock strings with idempotent mutations.
type StringSet map[string]struct{}

// NewStringSet builds a set from its members.
func NewStringSet(members ...string) StringSet {
	s := make(StringSet, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s StringSet) Add(v string)    { s[v] = struct{}{} }
func (s StringSet) Remove(v string) { delete(s, v) }

// Sorted returns the members in ascending order. ISO dates and zero-padded
// clocks sort correctly as strings.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// FIELD
// =============================================================================

// Default operating hours when a field doesn't specify its own.
const (
	DefaultOpenTime  = "08:00"
	DefaultCloseTime = "23:00"
)

// OperatingHours is the daily bookable window, open inclusive to close
// exclusive.
type OperatingHours struct {
	Open  string
	Close string
}

// OrDefault fills in the 08:00-23:00 default for unset hours.
func (h OperatingHours) OrDefault() OperatingHours {
	if h.Open == "" || h.Close == "" {
		return OperatingHours{Open: DefaultOpenTime, Close: DefaultCloseTime}
	}
	return h
}

// Field is a bookable facility. The engine reads everything except the
// blocked sets, which BlockingManager mutates.
type Field struct {
	ID           FieldID
	Name         string
	PricePerHour decimal.Decimal
	Hours        OperatingHours

	// AllowedDurations lists permitted booking lengths in hours, e.g.
	// {1, 1.5, 2, 3}. Enforced by the intake collaborator; the engine
	// only applies its own global duration rules.
	AllowedDurations []float64

	// Active fields accept bookings. Deactivation is an owner/admin
	// concern; the engine just refuses inactive fields.
	Active bool

	// BlockedDates lists whole days the field accepts zero bookings on.
	BlockedDates StringSet

	// BlockedSlots maps a date to the set of 30-minute start times made
	// unavailable on that date. A date may appear both here and in
	// BlockedDates; the full-date block dominates.
	BlockedSlots map[string]StringSet

	CreatedAt time.Time
}

// DateBlocked reports whether the whole date is blocked.
func (f *Field) DateBlocked(date string) bool {
	return f.BlockedDates.Has(date)
}

// BlockedRangesOn returns the fixed-width [t, t+30) intervals blocked on
// the given date, unordered.
func (f *Field) BlockedRangesOn(date string) []Range {
	slots, ok := f.BlockedSlots[date]
	if !ok {
		return nil
	}
	ranges := make([]Range, 0, len(slots))
	for clock := range slots {
		start, err := ToMinutes(clock)
		if err != nil {
			// Stored slots are validated on the way in; skip anything
			// unparseable rather than poisoning the whole day.
			continue
		}
		ranges = append(ranges, Range{Start: start, End: start + BlockedSlotMinutes})
	}
	return ranges
}

// =============================================================================
// BOOKING
// =============================================================================

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Blocking reports whether a booking in this status participates in
// conflict checks. Only cancelled bookings are excluded; they stay stored
// for history.
func (s BookingStatus) Blocking() bool { return s != StatusCancelled }

// Booking is one reserved [start, end) range on a field and date.
// EndTime is derivable from StartTime and Duration but persisted
// explicitly so readers never recompute it.
type Booking struct {
	ID      BookingID
	FieldID FieldID

	UserName  string
	UserEmail string
	UserPhone string

	Date      string // "YYYY-MM-DD", opaque partition key
	StartTime string // "HH:MM"
	EndTime   string // "HH:MM" or "24:00"
	Duration  float64

	TotalPrice decimal.Decimal
	Status     BookingStatus

	// IdempotencyKey, when set, makes retried submissions detectable as
	// DuplicateSubmission instead of racing the transaction.
	IdempotencyKey string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Range returns the booking's half-open minute range within its date.
func (b *Booking) Range() (Range, error) {
	return BookingRange(b.StartTime, b.Duration)
}

// Ended reports whether the booking's date is strictly before the clock's
// current date. Comparison is by date key, never by instant.
func (b *Booking) Ended(c Clock) bool {
	return b.Date < Today(c)
}
