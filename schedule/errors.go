/*
errors.go - Centralized error taxonomy for the booking engine

PURPOSE:
  All error kinds the engine can produce, in one place. Callers branch on
  these with errors.Is / errors.As; the API layer maps them to HTTP status
  codes without ever inspecting message text.

CATEGORIES:
  1. Validation errors  - malformed input, fixable by the caller (400)
  2. Not-found errors   - missing field or booking (404)
  3. Conflict errors    - slot cannot be booked; expected and frequent (409)
  4. Storage errors     - the atomic unit could not complete; retryable (5xx)

CONFLICTS ARE NOT BUGS:
  A ConflictError is the normal outcome of two people wanting the same
  hour. It is never logged at error level and carries a user-facing,
  slot-specific message.

USAGE:
  if schedule.IsConflict(err) { ... re-query availability ... }
  var v *schedule.ValidationError
  if errors.As(err, &v) { ... v.Field ... }
*/
package schedule

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidClock is returned for clock strings that are not "HH:MM"
	// or minute offsets outside a single day.
	ErrInvalidClock = errors.New("invalid clock value")

	// ErrValidation is the root of all input-validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrFieldNotFound is returned when a referenced field doesn't exist.
	ErrFieldNotFound = errors.New("field not found")

	// ErrBookingNotFound is returned when a referenced booking doesn't exist.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrFieldInactive is returned when booking against a deactivated field.
	ErrFieldInactive = errors.New("field is not active")

	// Conflict sentinels, one per rejection reason. Each structured
	// ConflictError unwraps to exactly one of these.
	ErrDateBlocked           = errors.New("date is blocked")
	ErrSlotBlocked           = errors.New("time slot is blocked")
	ErrOutsideOperatingHours = errors.New("outside operating hours")
	ErrOverlapsBooking       = errors.New("overlaps an existing booking")

	// ErrDuplicateSubmission is returned when a retried or double-clicked
	// create request hits the idempotency defenses. Expected on retries.
	ErrDuplicateSubmission = errors.New("duplicate booking submission")

	// ErrStorageUnavailable marks failures of the atomic unit itself.
	// The whole creation attempt is safe to retry from scratch.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidTransition is returned for booking status changes the
	// lifecycle does not allow (e.g. completing a cancelled booking).
	ErrInvalidTransition = errors.New("invalid status transition")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidClockError reports a clock string that failed to parse.
type InvalidClockError struct {
	Value string
}

func (e *InvalidClockError) Error() string {
	return fmt.Sprintf("invalid clock %q: expected HH:MM with hour 00-23 and minute 00-59", e.Value)
}

func (e *InvalidClockError) Unwrap() error { return ErrInvalidClock }

// ValidationError reports a single bad input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError reports why a proposed booking range was rejected. Message
// is user-facing and slot-specific.
type ConflictError struct {
	Kind    ConflictKind
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Unwrap() error {
	switch e.Kind {
	case ConflictDateBlocked:
		return ErrDateBlocked
	case ConflictSlotBlocked:
		return ErrSlotBlocked
	case ConflictOutsideHours:
		return ErrOutsideOperatingHours
	case ConflictOverlapsBooking:
		return ErrOverlapsBooking
	default:
		return nil
	}
}

// StorageError wraps a low-level storage failure so callers see a single
// retryable kind while the underlying cause stays in the chain.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorageUnavailable }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation reports whether the error is caller-fixable bad input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidClock) ||
		errors.Is(err, ErrFieldInactive) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound reports whether the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFieldNotFound) || errors.Is(err, ErrBookingNotFound)
}

// IsConflict reports whether the error is a booking conflict, from either
// the optimistic pre-check or the authoritative in-transaction re-check.
// Callers must treat both identically.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDateBlocked) ||
		errors.Is(err, ErrSlotBlocked) ||
		errors.Is(err, ErrOutsideOperatingHours) ||
		errors.Is(err, ErrOverlapsBooking) ||
		errors.Is(err, ErrDuplicateSubmission)
}

// IsRetryable reports whether re-running the whole attempt might succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
