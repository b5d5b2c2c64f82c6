/*
store.go - Persistence interfaces consumed by the engine

The engine depends on these interfaces; store/sqlite implements them.
CreateBooking is the one operation with non-trivial semantics: it is the
atomic unit. The implementation must re-scan committed bookings for the
same field and date and insert the new row inside one transaction, so no
interleaving of two concurrent attempts can both observe "no conflict"
and both commit.
*/
package schedule

import "context"

// FieldStore persists fields and their blocked sets.
type FieldStore interface {
	// SaveField inserts or replaces a field record (blocked sets included).
	SaveField(ctx context.Context, field *Field) error

	// GetField loads a field with its blocked dates and blocked slots.
	// Returns ErrFieldNotFound if absent.
	GetField(ctx context.Context, id FieldID) (*Field, error)

	// ListFields returns all fields ordered by name.
	ListFields(ctx context.Context) ([]*Field, error)

	// Blocked-set mutations. All are idempotent: re-adding a present
	// member or removing an absent one is a no-op, not an error.
	AddBlockedDates(ctx context.Context, id FieldID, dates []string) error
	RemoveBlockedDates(ctx context.Context, id FieldID, dates []string) error
	AddBlockedSlots(ctx context.Context, id FieldID, date string, slots []string) error
	RemoveBlockedSlots(ctx context.Context, id FieldID, date string, slots []string) error
}

// BookingStore persists bookings.
type BookingStore interface {
	// CreateBooking runs the atomic unit: verify the field still exists,
	// re-scan blocking bookings for (FieldID, Date) for overlaps, insert
	// the row, commit. On overlap it returns a *ConflictError with kind
	// ConflictOverlapsBooking; on a retried submission it returns
	// ErrDuplicateSubmission; on storage failure nothing is persisted and
	// the error matches ErrStorageUnavailable.
	CreateBooking(ctx context.Context, booking *Booking) error

	// GetBooking returns ErrBookingNotFound if absent.
	GetBooking(ctx context.Context, id BookingID) (*Booking, error)

	// ListBookings returns all bookings for the field and date, any
	// status, ordered by start time.
	ListBookings(ctx context.Context, fieldID FieldID, date string) ([]*Booking, error)

	// ListBlockingBookings returns only the bookings that participate in
	// conflict checks (everything not cancelled), ordered by start time.
	ListBlockingBookings(ctx context.Context, fieldID FieldID, date string) ([]*Booking, error)

	// UpdateBookingStatus transitions a booking's status. Returns
	// ErrBookingNotFound if absent.
	UpdateBookingStatus(ctx context.Context, id BookingID, status BookingStatus) error
}

// Store is the full persistence surface the server wires up.
type Store interface {
	FieldStore
	BookingStore
}
