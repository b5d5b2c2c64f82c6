/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the booking API. These decouple the domain types
  from the wire contract; handlers do the validation, DTOs are pure data
  carriers.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients
  - *Response: complex response wrappers
*/
package api

import (
	"github.com/warp/booking-engine/schedule"
)

// ErrorResponse is the JSON error envelope for every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// FIELDS
// =============================================================================

// FieldDTO represents a field in API responses.
type FieldDTO struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	PricePerHour     string              `json:"price_per_hour"`
	OpenTime         string              `json:"open_time"`
	CloseTime        string              `json:"close_time"`
	AllowedDurations []float64           `json:"allowed_durations,omitempty"`
	Active           bool                `json:"active"`
	BlockedDates     []string            `json:"blocked_dates"`
	BlockedTimeSlots map[string][]string `json:"blocked_time_slots"`
}

// CreateFieldRequest is the request to register a field.
type CreateFieldRequest struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	PricePerHour     string    `json:"price_per_hour"`
	OpenTime         string    `json:"open_time"`
	CloseTime        string    `json:"close_time"`
	AllowedDurations []float64 `json:"allowed_durations"`
}

func fieldDTO(f *schedule.Field) FieldDTO {
	hours := f.Hours.OrDefault()
	blockedSlots := make(map[string][]string, len(f.BlockedSlots))
	for date, slots := range f.BlockedSlots {
		blockedSlots[date] = slots.Sorted()
	}
	return FieldDTO{
		ID:               string(f.ID),
		Name:             f.Name,
		PricePerHour:     f.PricePerHour.String(),
		OpenTime:         hours.Open,
		CloseTime:        hours.Close,
		AllowedDurations: f.AllowedDurations,
		Active:           f.Active,
		BlockedDates:     f.BlockedDates.Sorted(),
		BlockedTimeSlots: blockedSlots,
	}
}

// =============================================================================
// AVAILABILITY
// =============================================================================

// SlotDTO is the availability verdict for one candidate start time.
type SlotDTO struct {
	Time             string `json:"time"`
	IsAvailable      bool   `json:"is_available"`
	IsBooked         bool   `json:"is_booked"`
	IsBlocked        bool   `json:"is_blocked"`
	ExtendsPastClose bool   `json:"extends_past_close"`
}

// BookedRangeDTO is one occupied [start, end) range.
type BookedRangeDTO struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// AvailabilityResponse answers GET /fields/{id}/availability.
type AvailabilityResponse struct {
	FieldID      string           `json:"field_id"`
	Date         string           `json:"date"`
	OpenHour     string           `json:"open_hour"`
	CloseHour    string           `json:"close_hour"`
	DateBlocked  bool             `json:"date_blocked"`
	Slots        []SlotDTO        `json:"slots"`
	BookedRanges []BookedRangeDTO `json:"booked_ranges"`
}

func availabilityResponse(a *schedule.Availability) AvailabilityResponse {
	resp := AvailabilityResponse{
		FieldID:      string(a.FieldID),
		Date:         a.Date,
		OpenHour:     a.OpenTime,
		CloseHour:    a.CloseTime,
		DateBlocked:  a.DateBlocked,
		Slots:        make([]SlotDTO, 0, len(a.Slots)),
		BookedRanges: make([]BookedRangeDTO, 0, len(a.BookedRanges)),
	}
	for _, s := range a.Slots {
		resp.Slots = append(resp.Slots, SlotDTO{
			Time:             s.Time,
			IsAvailable:      s.Available,
			IsBooked:         s.Booked,
			IsBlocked:        s.Blocked,
			ExtendsPastClose: s.ExtendsPastClose,
		})
	}
	for _, r := range a.BookedRanges {
		resp.BookedRanges = append(resp.BookedRanges, BookedRangeDTO{
			StartTime: r.StartTime,
			EndTime:   r.EndTime,
		})
	}
	return resp
}

// =============================================================================
// BOOKINGS
// =============================================================================

// CreateBookingRequest is the request to create a booking.
type CreateBookingRequest struct {
	FieldID   string  `json:"field_id"`
	UserName  string  `json:"user_name"`
	UserEmail string  `json:"user_email"`
	UserPhone string  `json:"user_phone"`
	Date      string  `json:"date"`
	StartTime string  `json:"start_time"`
	Duration  float64 `json:"duration"`
}

// BookingDTO represents a booking in API responses. The identifier and
// status are what callers get back on creation; the full record is only
// returned from reads.
type BookingDTO struct {
	ID         string  `json:"id"`
	FieldID    string  `json:"field_id"`
	UserName   string  `json:"user_name,omitempty"`
	Date       string  `json:"date"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time"`
	Duration   float64 `json:"duration"`
	TotalPrice string  `json:"total_price"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at,omitempty"`
}

// CreateBookingResponse returns only the identifier and status, never the
// field or owner records.
type CreateBookingResponse struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

func bookingDTO(b *schedule.Booking) BookingDTO {
	dto := BookingDTO{
		ID:         string(b.ID),
		FieldID:    string(b.FieldID),
		UserName:   b.UserName,
		Date:       b.Date,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
		Duration:   b.Duration,
		TotalPrice: b.TotalPrice.String(),
		Status:     string(b.Status),
	}
	if !b.CreatedAt.IsZero() {
		dto.CreatedAt = b.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return dto
}

// =============================================================================
// BLOCKING
// =============================================================================

// BlockDatesRequest blocks or unblocks whole dates.
type BlockDatesRequest struct {
	Dates []string `json:"dates"`
}

// BlockSlotsRequest blocks or unblocks 30-minute time slots on one date.
type BlockSlotsRequest struct {
	Date      string   `json:"date"`
	TimeSlots []string `json:"time_slots"`
}
