/*
handlers.go - HTTP handlers for the booking engine

PURPOSE:
  Exposes the scheduling engine over REST. Handlers parse and validate
  the HTTP shape of a request, delegate to the booking manager/blocker,
  and map engine errors onto status codes.

ENDPOINTS:
  Fields:
    GET    /api/fields                       List fields
    POST   /api/fields                       Register a field
    GET    /api/fields/{id}                  Field details with blocked sets
    GET    /api/fields/{id}/availability     Per-slot availability (date, duration)
    GET    /api/fields/{id}/bookings         Bookings for a date
    POST   /api/fields/{id}/blocked-dates    Block whole dates
    DELETE /api/fields/{id}/blocked-dates    Unblock dates
    POST   /api/fields/{id}/blocked-slots    Block 30-minute slots on a date
    DELETE /api/fields/{id}/blocked-slots    Unblock slots

  Bookings:
    POST   /api/bookings                     Create (201 on success)
    GET    /api/bookings/{id}                Lookup
    POST   /api/bookings/{id}/confirm        pending -> confirmed
    POST   /api/bookings/{id}/cancel         pending|confirmed -> cancelled
    POST   /api/bookings/{id}/complete       confirmed -> completed

ERROR MAPPING:
  400 validation, 404 missing field/booking, 409 conflict (with a
  machine-readable reason), 500 anything else. Conflicts from the
  optimistic pre-check and from the in-transaction re-check arrive here
  identically, as the error taxonomy requires.

IDEMPOTENCY:
  POST /api/bookings honors an Idempotency-Key header; a retried key is
  answered with 409 duplicate_submission instead of racing the slot.
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/schedule"
)

// Handler holds the engine dependencies behind the routes.
type Handler struct {
	manager *booking.Manager
	blocker *booking.Blocker
	fields  schedule.FieldStore
}

// NewHandler wires the handler.
func NewHandler(manager *booking.Manager, blocker *booking.Blocker, fields schedule.FieldStore) *Handler {
	return &Handler{manager: manager, blocker: blocker, fields: fields}
}

// =============================================================================
// FIELDS
// =============================================================================

// ListFields handles GET /api/fields.
func (h *Handler) ListFields(w http.ResponseWriter, r *http.Request) {
	fields, err := h.fields.ListFields(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]FieldDTO, 0, len(fields))
	for _, f := range fields {
		dtos = append(dtos, fieldDTO(f))
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": dtos})
}

// CreateField handles POST /api/fields.
func (h *Handler) CreateField(w http.ResponseWriter, r *http.Request) {
	var req CreateFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	price, err := decimal.NewFromString(req.PricePerHour)
	if err != nil || price.IsNegative() {
		writeError(w, http.StatusBadRequest, "price_per_hour must be a non-negative decimal", err)
		return
	}
	hours := schedule.OperatingHours{Open: req.OpenTime, Close: req.CloseTime}.OrDefault()
	if _, err := schedule.GenerateSlots(hours.Open, hours.Close, schedule.DefaultStepMinutes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid operating hours", err)
		return
	}

	field := &schedule.Field{
		ID:               schedule.FieldID(req.ID),
		Name:             req.Name,
		PricePerHour:     price,
		Hours:            hours,
		AllowedDurations: req.AllowedDurations,
		Active:           true,
		BlockedDates:     schedule.NewStringSet(),
		BlockedSlots:     make(map[string]schedule.StringSet),
	}
	if err := h.fields.SaveField(r.Context(), field); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fieldDTO(field))
}

// GetField handles GET /api/fields/{id}.
func (h *Handler) GetField(w http.ResponseWriter, r *http.Request) {
	field, err := h.fields.GetField(r.Context(), schedule.FieldID(chi.URLParam(r, "id")))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fieldDTO(field))
}

// GetAvailability handles GET /api/fields/{id}/availability?date=...&duration=...
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	fieldID := schedule.FieldID(chi.URLParam(r, "id"))
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date query parameter is required", nil)
		return
	}

	duration := 1.0
	if raw := r.URL.Query().Get("duration"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "duration must be a number of hours", err)
			return
		}
		duration = parsed
	}

	avail, err := h.manager.Availability(r.Context(), fieldID, date, duration)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse(avail))
}

// ListFieldBookings handles GET /api/fields/{id}/bookings?date=...
func (h *Handler) ListFieldBookings(w http.ResponseWriter, r *http.Request) {
	fieldID := schedule.FieldID(chi.URLParam(r, "id"))
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date query parameter is required", nil)
		return
	}
	bookings, err := h.manager.ListBookings(r.Context(), fieldID, date)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]BookingDTO, 0, len(bookings))
	for _, b := range bookings {
		dtos = append(dtos, bookingDTO(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": dtos})
}

// =============================================================================
// BLOCKING
// =============================================================================

// BlockDates handles POST /api/fields/{id}/blocked-dates.
func (h *Handler) BlockDates(w http.ResponseWriter, r *http.Request) {
	h.mutateDates(w, r, h.blocker.BlockDates)
}

// UnblockDates handles DELETE /api/fields/{id}/blocked-dates.
func (h *Handler) UnblockDates(w http.ResponseWriter, r *http.Request) {
	h.mutateDates(w, r, h.blocker.UnblockDates)
}

func (h *Handler) mutateDates(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id schedule.FieldID, dates []string) error) {
	fieldID := schedule.FieldID(chi.URLParam(r, "id"))
	var req BlockDatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := op(r.Context(), fieldID, req.Dates); err != nil {
		writeEngineError(w, err)
		return
	}
	field, err := h.fields.GetField(r.Context(), fieldID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocked_dates": field.BlockedDates.Sorted()})
}

// BlockTimeSlots handles POST /api/fields/{id}/blocked-slots.
func (h *Handler) BlockTimeSlots(w http.ResponseWriter, r *http.Request) {
	h.mutateSlots(w, r, h.blocker.BlockTimeSlots)
}

// UnblockTimeSlots handles DELETE /api/fields/{id}/blocked-slots.
func (h *Handler) UnblockTimeSlots(w http.ResponseWriter, r *http.Request) {
	h.mutateSlots(w, r, h.blocker.UnblockTimeSlots)
}

func (h *Handler) mutateSlots(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id schedule.FieldID, date string, slots []string) error) {
	fieldID := schedule.FieldID(chi.URLParam(r, "id"))
	var req BlockSlotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := op(r.Context(), fieldID, req.Date, req.TimeSlots); err != nil {
		writeEngineError(w, err)
		return
	}
	field, err := h.fields.GetField(r.Context(), fieldID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	slots := map[string][]string{}
	for date, set := range field.BlockedSlots {
		slots[date] = set.Sorted()
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocked_time_slots": slots})
}

// =============================================================================
// BOOKINGS
// =============================================================================

// CreateBooking handles POST /api/bookings.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	b, err := h.manager.CreateBooking(r.Context(), booking.CreateBookingInput{
		FieldID:        schedule.FieldID(req.FieldID),
		UserName:       req.UserName,
		UserEmail:      req.UserEmail,
		UserPhone:      req.UserPhone,
		Date:           req.Date,
		StartTime:      req.StartTime,
		Duration:       req.Duration,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateBookingResponse{
		BookingID: string(b.ID),
		Status:    string(b.Status),
	})
}

// GetBooking handles GET /api/bookings/{id}.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.manager.GetBooking(r.Context(), schedule.BookingID(chi.URLParam(r, "id")))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingDTO(b))
}

// ConfirmBooking handles POST /api/bookings/{id}/confirm.
func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.manager.ConfirmBooking)
}

// CancelBooking handles POST /api/bookings/{id}/cancel.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.manager.CancelBooking)
}

// CompleteBooking handles POST /api/bookings/{id}/complete.
func (h *Handler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.manager.CompleteBooking)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id schedule.BookingID) (*schedule.Booking, error)) {
	b, err := op(r.Context(), schedule.BookingID(chi.URLParam(r, "id")))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingDTO(b))
}

// =============================================================================
// helpers
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
// Conflict responses carry a machine-readable reason so clients can react
// per sub-kind without parsing the message.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case schedule.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case schedule.IsConflict(err):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:  conflictMessage(err),
			Reason: conflictReason(err),
		})
	case schedule.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case schedule.IsRetryable(err):
		// Storage timeouts surface as retryable 5xx, never as 409: the
		// slot is not known to be taken.
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:  "Temporary storage failure, please retry",
			Reason: "storage_unavailable",
		})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error"})
	}
}

func conflictMessage(err error) string {
	var c *schedule.ConflictError
	if errors.As(err, &c) {
		return c.Message
	}
	return err.Error()
}

func conflictReason(err error) string {
	var c *schedule.ConflictError
	if errors.As(err, &c) {
		return c.Kind.String()
	}
	if errors.Is(err, schedule.ErrDuplicateSubmission) {
		return "duplicate_submission"
	}
	return "conflict"
}
