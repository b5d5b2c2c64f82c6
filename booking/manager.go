/*
manager.go - The create-booking use case

PURPOSE:
  Owns booking creation end to end: input validation, optimistic conflict
  pre-check, and the handoff to the store's atomic unit. Also carries the
  read-side operations (availability, lookup) and the status lifecycle.

RACE FREEDOM:
  Two concurrent requests for overlapping ranges can both pass the
  optimistic CheckConflict here on a stale read. That is fine: the store's
  CreateBooking re-scans committed bookings and inserts inside one
  transaction, so exactly one of them commits and the other surfaces a
  ConflictError. Which one wins is unspecified; first committer does.

VALIDATION ORDER:
  Everything caller-fixable fails before storage is touched. A duration of
  13 hours never opens a transaction.

PRICING:
  totalPrice = pricePerHour * duration, in decimal. Commission and payment
  handling live with collaborators.
*/
package booking

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/booking-engine/schedule"
)

// MaxDurationHours caps a single booking. Durations must also be positive
// multiples of half an hour so a request can never straddle the 30-minute
// blocked-slot grid in a way the grid cannot express.
const MaxDurationHours = 12

var dateKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// EventSink receives domain events after a successful commit. The
// notification collaborator subscribes here; the engine itself only
// guarantees the call happens after the booking is durable.
type EventSink interface {
	BookingCreated(ctx context.Context, booking *schedule.Booking)
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) BookingCreated(context.Context, *schedule.Booking) {}

// Manager is the booking transaction manager.
type Manager struct {
	store  schedule.Store
	clock  schedule.Clock
	events EventSink
	logger *zap.Logger
}

// NewManager wires the manager. A nil events sink or logger falls back to
// no-ops.
func NewManager(store schedule.Store, clock schedule.Clock, events EventSink, logger *zap.Logger) *Manager {
	if events == nil {
		events = NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, clock: clock, events: events, logger: logger}
}

// CreateBookingInput is the raw request, pre-authorization.
type CreateBookingInput struct {
	FieldID   schedule.FieldID
	UserName  string
	UserEmail string
	UserPhone string
	Date      string
	StartTime string
	Duration  float64

	// IdempotencyKey, when supplied, lets a retried submission be
	// rejected as DuplicateSubmission instead of re-racing the slot.
	IdempotencyKey string
}

// CreateBooking validates, pre-checks, and commits a new pending booking.
// Error kinds follow the taxonomy in schedule/errors.go; the API layer
// maps them to 400/404/409/500.
func (m *Manager) CreateBooking(ctx context.Context, input CreateBookingInput) (*schedule.Booking, error) {
	if err := m.validate(input); err != nil {
		return nil, err
	}

	field, err := m.store.GetField(ctx, input.FieldID)
	if err != nil {
		return nil, err
	}
	if !field.Active {
		return nil, schedule.ErrFieldInactive
	}

	// Optimistic pre-check on a plain read. Cheap, and rejects the common
	// cases with a specific message before any transaction is opened.
	existing, err := m.store.ListBlockingBookings(ctx, field.ID, input.Date)
	if err != nil {
		return nil, err
	}
	result, err := schedule.CheckConflict(field, input.Date, input.StartTime, input.Duration, existing)
	if err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		return nil, err
	}

	// Normalize the start to its canonical zero-padded form and derive
	// the end; both are persisted explicitly.
	r, err := schedule.BookingRange(input.StartTime, input.Duration)
	if err != nil {
		return nil, err
	}
	startClock, err := schedule.ToClock(r.Start)
	if err != nil {
		return nil, err
	}
	endClock, err := schedule.ToClock(r.End)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now().UTC()
	booking := &schedule.Booking{
		ID:             schedule.BookingID(uuid.NewString()),
		FieldID:        field.ID,
		UserName:       strings.TrimSpace(input.UserName),
		UserEmail:      strings.TrimSpace(input.UserEmail),
		UserPhone:      strings.TrimSpace(input.UserPhone),
		Date:           input.Date,
		StartTime:      startClock,
		EndTime:        endClock,
		Duration:       input.Duration,
		TotalPrice:     field.PricePerHour.Mul(decimal.NewFromFloat(input.Duration)),
		Status:         schedule.StatusPending,
		IdempotencyKey: input.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// The atomic unit. The store re-checks overlaps against committed
	// rows and inserts in one transaction; a loss here is a ConflictError
	// exactly like a pre-check rejection.
	if err := m.store.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}

	m.logger.Info("booking created",
		zap.String("booking_id", string(booking.ID)),
		zap.String("field_id", string(booking.FieldID)),
		zap.String("date", booking.Date),
		zap.String("start", booking.StartTime),
		zap.String("end", booking.EndTime),
		zap.String("total_price", booking.TotalPrice.String()),
	)
	m.events.BookingCreated(ctx, booking)

	return booking, nil
}

func (m *Manager) validate(input CreateBookingInput) error {
	if input.FieldID == "" {
		return &schedule.ValidationError{Field: "fieldId", Message: "required"}
	}
	if strings.TrimSpace(input.UserName) == "" {
		return &schedule.ValidationError{Field: "userName", Message: "required"}
	}
	if strings.TrimSpace(input.UserEmail) == "" {
		return &schedule.ValidationError{Field: "userEmail", Message: "required"}
	}
	if strings.TrimSpace(input.UserPhone) == "" {
		return &schedule.ValidationError{Field: "userPhone", Message: "required"}
	}
	if !dateKeyPattern.MatchString(input.Date) {
		return &schedule.ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	if input.Date < schedule.Today(m.clock) {
		return &schedule.ValidationError{Field: "date", Message: "must not be in the past"}
	}
	if _, err := schedule.ToMinutes(input.StartTime); err != nil {
		return &schedule.ValidationError{Field: "startTime", Message: "must be HH:MM"}
	}
	if input.Duration <= 0 || input.Duration > MaxDurationHours {
		return &schedule.ValidationError{
			Field:   "duration",
			Message: fmt.Sprintf("must be between 0 and %d hours", MaxDurationHours),
		}
	}
	// Reject, not round: a duration off the half-hour grid cannot be
	// compared cleanly against 30-minute blocked slots.
	if minutes := schedule.DurationMinutes(input.Duration); minutes%30 != 0 {
		return &schedule.ValidationError{Field: "duration", Message: "must be a multiple of 0.5 hours"}
	}
	// Cross-midnight bookings are an explicit input error, not undefined
	// wraparound.
	if _, err := schedule.BookingRange(input.StartTime, input.Duration); err != nil {
		return &schedule.ValidationError{Field: "startTime", Message: "booking must end by midnight"}
	}
	return nil
}

// Availability answers the (field, date, duration) query the booking UI
// renders. Duration defaults to one hour when the caller omits it.
func (m *Manager) Availability(ctx context.Context, fieldID schedule.FieldID, date string, durationHours float64) (*schedule.Availability, error) {
	if !dateKeyPattern.MatchString(date) {
		return nil, &schedule.ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	if durationHours == 0 {
		durationHours = 1
	}
	if durationHours < 0 || durationHours > MaxDurationHours {
		return nil, &schedule.ValidationError{
			Field:   "duration",
			Message: fmt.Sprintf("must be between 0 and %d hours", MaxDurationHours),
		}
	}

	field, err := m.store.GetField(ctx, fieldID)
	if err != nil {
		return nil, err
	}
	bookings, err := m.store.ListBlockingBookings(ctx, fieldID, date)
	if err != nil {
		return nil, err
	}
	return schedule.ComputeAvailability(field, date, durationHours, bookings)
}

// GetBooking returns a booking by id.
func (m *Manager) GetBooking(ctx context.Context, id schedule.BookingID) (*schedule.Booking, error) {
	return m.store.GetBooking(ctx, id)
}

// ListBookings returns every booking for a field and date, any status.
func (m *Manager) ListBookings(ctx context.Context, fieldID schedule.FieldID, date string) ([]*schedule.Booking, error) {
	if !dateKeyPattern.MatchString(date) {
		return nil, &schedule.ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	if _, err := m.store.GetField(ctx, fieldID); err != nil {
		return nil, err
	}
	return m.store.ListBookings(ctx, fieldID, date)
}

// =============================================================================
// LIFECYCLE - owner-facing status transitions
// =============================================================================

// transitions lists the allowed status moves. Cancellation frees the
// range for rebooking; the row itself stays for history.
var transitions = map[schedule.BookingStatus][]schedule.BookingStatus{
	schedule.StatusPending:   {schedule.StatusConfirmed, schedule.StatusCancelled},
	schedule.StatusConfirmed: {schedule.StatusCancelled, schedule.StatusCompleted},
}

func allowed(from, to schedule.BookingStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (m *Manager) transition(ctx context.Context, id schedule.BookingID, to schedule.BookingStatus) (*schedule.Booking, error) {
	b, err := m.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !allowed(b.Status, to) {
		return nil, fmt.Errorf("cannot move booking %s from %s to %s: %w",
			id, b.Status, to, schedule.ErrInvalidTransition)
	}
	if err := m.store.UpdateBookingStatus(ctx, id, to); err != nil {
		return nil, err
	}
	b.Status = to
	m.logger.Info("booking status changed",
		zap.String("booking_id", string(id)),
		zap.String("status", string(to)),
	)
	return b, nil
}

// ConfirmBooking moves a pending booking to confirmed.
func (m *Manager) ConfirmBooking(ctx context.Context, id schedule.BookingID) (*schedule.Booking, error) {
	return m.transition(ctx, id, schedule.StatusConfirmed)
}

// CancelBooking cancels a pending or confirmed booking. Once cancelled it
// no longer participates in conflict checks.
func (m *Manager) CancelBooking(ctx context.Context, id schedule.BookingID) (*schedule.Booking, error) {
	return m.transition(ctx, id, schedule.StatusCancelled)
}

// CompleteBooking marks a confirmed booking as completed.
func (m *Manager) CompleteBooking(ctx context.Context, id schedule.BookingID) (*schedule.Booking, error) {
	return m.transition(ctx, id, schedule.StatusCompleted)
}
