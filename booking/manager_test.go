package booking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/schedule"
	"github.com/warp/booking-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// testDay is "today" for the frozen clock; booked dates sit safely after it.
var testClock = schedule.FixedClock(time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC))

func newTestManager(t *testing.T) (*booking.Manager, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	manager := booking.NewManager(store, testClock, nil, nil)
	return manager, store
}

func seedField(t *testing.T, store *sqlite.Store) *schedule.Field {
	t.Helper()
	field := &schedule.Field{
		ID:           "field-1",
		Name:         "Center Court",
		PricePerHour: decimal.NewFromInt(50),
		Hours:        schedule.OperatingHours{Open: "08:00", Close: "23:00"},
		Active:       true,
		BlockedDates: schedule.NewStringSet(),
		BlockedSlots: make(map[string]schedule.StringSet),
	}
	require.NoError(t, store.SaveField(context.Background(), field))
	return field
}

func createInput(start string, duration float64) booking.CreateBookingInput {
	return booking.CreateBookingInput{
		FieldID:   "field-1",
		UserName:  "Dana Reyes",
		UserEmail: "dana@example.com",
		UserPhone: "+1-555-0100",
		Date:      "2025-06-10",
		StartTime: start,
		Duration:  duration,
	}
}

// =============================================================================
// CREATION
// =============================================================================

func TestCreateBooking_Success(t *testing.T) {
	manager, store := newTestManager(t)
	seedField(t, store)
	ctx := context.Background()

	b, err := manager.CreateBooking(ctx, createInput("10:00", 2))
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, schedule.StatusPending, b.Status)
	assert.Equal(t, "10:00", b.StartTime)
	assert.Equal(t, "12:00", b.EndTime)
	assert.True(t, b.TotalPrice.Equal(decimal.NewFromInt(100)), "50/h * 2h, got %s", b.TotalPrice)

	stored, err := store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, stored.ID)
	assert.Equal(t, schedule.StatusPending, stored.Status)
}

func TestCreateBooking_FractionalDurationPricing(t *testing.T) {
	manager, store := newTestManager(t)
	seedField(t, store)

	b, err := manager.CreateBooking(context.Background(), createInput("09:00", 1.5))
	require.NoError(t, err)
	assert.Equal(t, "10:30", b.EndTime)
	assert.True(t, b.TotalPrice.Equal(decimal.NewFromInt(75)), "got %s", b.TotalPrice)
}

func TestCreateBooking_ValidationRejectsBeforeStorage(t *testing.T) {
	// Validation failures never reach the store; a manager with no
	// seeded field still reports the input error, not field-not-found.
	manager, _ := newTestManager(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input booking.CreateBookingInput
	}{
		{"duration 13h", createInput("08:00", 13)},
		{"duration zero", createInput("08:00", 0)},
		{"duration negative", createInput("08:00", -1)},
		{"duration off half-hour grid", createInput("08:00", 1.25)},
		{"bad start time", createInput("8am", 1)},
		{"cross midnight", createInput("23:00", 2)},
	}
	for _, tc := range cases {
		_, err := manager.CreateBooking(ctx, tc.input)
		assert.Error(t, err, tc.name)
		assert.True(t, schedule.IsValidation(err), "%s: got %v", tc.name, err)
		assert.False(t, schedule.IsNotFound(err), tc.name)
	}

	bad := createInput("10:00", 1)
	bad.Date = "06/10/2025"
	_, err := manager.CreateBooking(ctx, bad)
	assert.ErrorIs(t, err, schedule.ErrValidation)

	past := createInput("10:00", 1)
	past.Date = "2025-04-30"
	_, err = manager.CreateBooking(ctx, past)
	assert.ErrorIs(t, err, schedule.ErrValidation)

	missing := createInput("10:00", 1)
	missing.UserEmail = "   "
	_, err = manager.CreateBooking(ctx, missing)
	assert.ErrorIs(t, err, schedule.ErrValidation)
}

func TestCreateBooking_FieldMissingOrInactive(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	_, err := manager.CreateBooking(ctx, createInput("10:00", 1))
	assert.ErrorIs(t, err, schedule.ErrFieldNotFound)

	field := seedField(t, store)
	field.Active = false
	require.NoError(t, store.SaveField(ctx, field))

	_, err = manager.CreateBooking(ctx, createInput("10:00", 1))
	assert.ErrorIs(t, err, schedule.ErrFieldInactive)
}

func TestCreateBooking_OverlapRejected(t *testing.T) {
	// GIVEN: an existing booking 10:00-12:00
	// WHEN: requesting 11:00 for 2 hours
	// THEN: 409-class conflict, and the original booking stands alone

	manager, store := newTestManager(t)
	seedField(t, store)
	ctx := context.Background()

	_, err := manager.CreateBooking(ctx, createInput("10:00", 2))
	require.NoError(t, err)

	_, err = manager.CreateBooking(ctx, createInput("11:00", 2))
	require.Error(t, err)
	assert.ErrorIs(t, err, schedule.ErrOverlapsBooking)

	bookings, err := store.ListBlockingBookings(ctx, "field-1", "2025-06-10")
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}

func TestCreateBooking_AdjacentRangesBothSucceed(t *testing.T) {
	manager, store := newTestManager(t)
	seedField(t, store)
	ctx := context.Background()

	_, err := manager.CreateBooking(ctx, createInput("10:00", 2))
	require.NoError(t, err)

	// Half-open: starting exactly at the previous end is allowed.
	_, err = manager.CreateBooking(ctx, createInput("12:00", 1))
	require.NoError(t, err)

	bookings, err := store.ListBlockingBookings(ctx, "field-1", "2025-06-10")
	require.NoError(t, err)
	assert.Len(t, bookings, 2)
}

func TestCreateBooking_BlockedDateAndSlotRejected(t *testing.T) {
	manager, store := newTestManager(t)
	field := seedField(t, store)
	ctx := context.Background()

	field.BlockedDates.Add("2025-06-10")
	require.NoError(t, store.SaveField(ctx, field))
	_, err := manager.CreateBooking(ctx, createInput("10:00", 1))
	assert.ErrorIs(t, err, schedule.ErrDateBlocked)

	field.BlockedDates.Remove("2025-06-10")
	field.BlockedSlots["2025-06-10"] = schedule.NewStringSet("10:30")
	require.NoError(t, store.SaveField(ctx, field))
	_, err = manager.CreateBooking(ctx, createInput("10:00", 1))
	assert.ErrorIs(t, err, schedule.ErrSlotBlocked)
}

func TestCreateBooking_DuplicateIdempotencyKey(t *testing.T) {
	manager, store := newTestManager(t)
	seedField(t, store)
	ctx := context.Background()

	first := createInput("10:00", 1)
	first.IdempotencyKey = "req-abc"
	_, err := manager.CreateBooking(ctx, first)
	require.NoError(t, err)

	// Same key, different slot: still a duplicate submission, caught by
	// the idempotency index rather than the overlap scan.
	retry := createInput("15:00", 1)
	retry.IdempotencyKey = "req-abc"
	_, err = manager.CreateBooking(ctx, retry)
	assert.ErrorIs(t, err, schedule.ErrDuplicateSubmission)
	assert.True(t, schedule.IsConflict(err))
}

// =============================================================================
// RACE FREEDOM
// =============================================================================

func TestCreateBooking_ConcurrentIdenticalRequests_OneWins(t *testing.T) {
	// GIVEN: two concurrent requests for the same field, date, start, and
	//        duration
	// THEN: exactly one gets a pending booking, the other a conflict, and
	//       exactly one row is persisted

	manager, store := newTestManager(t)
	seedField(t, store)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = manager.CreateBooking(ctx, createInput("10:00", 2))
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case schedule.IsConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected error kind: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)

	bookings, err := store.ListBlockingBookings(ctx, "field-1", "2025-06-10")
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}

func TestCreateBooking_ConcurrentOverlappingRanges_NoDoubleCommit(t *testing.T) {
	// Overlapping but non-identical ranges: every pair among the winners
	// must be disjoint afterwards, whatever the interleaving.

	manager, store := newTestManager(t)
	seedField(t, store)
	ctx := context.Background()

	starts := []string{"09:00", "10:00", "09:00", "10:00", "09:00"}
	var wg sync.WaitGroup
	for _, start := range starts {
		wg.Add(1)
		go func(start string) {
			defer wg.Done()
			_, err := manager.CreateBooking(ctx, createInput(start, 2))
			if err != nil && !schedule.IsConflict(err) {
				t.Errorf("unexpected error kind: %v", err)
			}
		}(start)
	}
	wg.Wait()

	bookings, err := store.ListBlockingBookings(ctx, "field-1", "2025-06-10")
	require.NoError(t, err)
	for i := 0; i < len(bookings); i++ {
		for j := i + 1; j < len(bookings); j++ {
			ri, err := bookings[i].Range()
			require.NoError(t, err)
			rj, err := bookings[j].Range()
			require.NoError(t, err)
			assert.False(t, ri.Overlaps(rj),
				"persisted bookings overlap: %s-%s and %s-%s",
				bookings[i].StartTime, bookings[i].EndTime,
				bookings[j].StartTime, bookings[j].EndTime)
		}
	}
}

// =============================================================================
// AVAILABILITY + LIFECYCLE
// =============================================================================

func TestAvailability_ThroughManager(t *testing.T) {
	manager, store := newTestManager(t)
	seedField(t, store)
	ctx := context.Background()

	_, err := manager.CreateBooking(ctx, createInput("10:00", 2))
	require.NoError(t, err)

	avail, err := manager.Availability(ctx, "field-1", "2025-06-10", 0)
	require.NoError(t, err)
	assert.Equal(t, "08:00", avail.OpenTime)
	assert.Equal(t, "23:00", avail.CloseTime)
	require.Len(t, avail.BookedRanges, 1)
	assert.Equal(t, "10:00", avail.BookedRanges[0].StartTime)

	_, err = manager.Availability(ctx, "field-1", "not-a-date", 1)
	assert.ErrorIs(t, err, schedule.ErrValidation)

	_, err = manager.Availability(ctx, "missing", "2025-06-10", 1)
	assert.ErrorIs(t, err, schedule.ErrFieldNotFound)
}

func TestLifecycle_CancelFreesTheRange(t *testing.T) {
	manager, store := newTestManager(t)
	seedField(t, store)
	ctx := context.Background()

	b, err := manager.CreateBooking(ctx, createInput("10:00", 2))
	require.NoError(t, err)

	_, err = manager.CancelBooking(ctx, b.ID)
	require.NoError(t, err)

	// The slot is bookable again; the cancelled row stays for history.
	_, err = manager.CreateBooking(ctx, createInput("10:00", 2))
	require.NoError(t, err)

	all, err := store.ListBookings(ctx, "field-1", "2025-06-10")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	blocking, err := store.ListBlockingBookings(ctx, "field-1", "2025-06-10")
	require.NoError(t, err)
	assert.Len(t, blocking, 1)
}

func TestLifecycle_Transitions(t *testing.T) {
	manager, store := newTestManager(t)
	seedField(t, store)
	ctx := context.Background()

	b, err := manager.CreateBooking(ctx, createInput("10:00", 1))
	require.NoError(t, err)

	confirmed, err := manager.ConfirmBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusConfirmed, confirmed.Status)

	completed, err := manager.CompleteBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusCompleted, completed.Status)

	// Completed is terminal.
	_, err = manager.CancelBooking(ctx, b.ID)
	assert.ErrorIs(t, err, schedule.ErrInvalidTransition)

	_, err = manager.ConfirmBooking(ctx, "no-such-booking")
	assert.ErrorIs(t, err, schedule.ErrBookingNotFound)
}

// =============================================================================
// EVENTS
// =============================================================================

type captureSink struct {
	mu      sync.Mutex
	created []schedule.BookingID
}

func (c *captureSink) BookingCreated(_ context.Context, b *schedule.Booking) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created = append(c.created, b.ID)
}

func TestCreateBooking_EmitsCreatedEvent(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	seedField(t, store)

	sink := &captureSink{}
	manager := booking.NewManager(store, testClock, sink, nil)

	b, err := manager.CreateBooking(context.Background(), createInput("10:00", 1))
	require.NoError(t, err)
	require.Len(t, sink.created, 1)
	assert.Equal(t, b.ID, sink.created[0])

	// A rejected attempt emits nothing.
	_, err = manager.CreateBooking(context.Background(), createInput("10:00", 1))
	require.Error(t, err)
	assert.Len(t, sink.created, 1)
}
