package booking_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/schedule"
	"github.com/warp/booking-engine/store/sqlite"
)

func newTestBlocker(t *testing.T) (*booking.Blocker, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	seedField(t, store)
	return booking.NewBlocker(store, nil), store
}

func TestBlockDates_Idempotent(t *testing.T) {
	// Blocking the same date twice yields the same set as blocking once.
	blocker, store := newTestBlocker(t)
	ctx := context.Background()

	require.NoError(t, blocker.BlockDates(ctx, "field-1", []string{"2025-06-01", "2025-06-02"}))
	require.NoError(t, blocker.BlockDates(ctx, "field-1", []string{"2025-06-01"}))

	field, err := store.GetField(ctx, "field-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-06-01", "2025-06-02"}, field.BlockedDates.Sorted())
}

func TestUnblockDates_SetDifference(t *testing.T) {
	blocker, store := newTestBlocker(t)
	ctx := context.Background()

	require.NoError(t, blocker.BlockDates(ctx, "field-1", []string{"2025-06-01", "2025-06-02"}))
	// Removing an absent date alongside a present one is a no-op for the
	// absent member, not an error.
	require.NoError(t, blocker.UnblockDates(ctx, "field-1", []string{"2025-06-02", "2025-07-04"}))

	field, err := store.GetField(ctx, "field-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-06-01"}, field.BlockedDates.Sorted())
}

func TestBlockTimeSlots_MergesPerDate(t *testing.T) {
	blocker, store := newTestBlocker(t)
	ctx := context.Background()

	require.NoError(t, blocker.BlockTimeSlots(ctx, "field-1", "2025-06-10", []string{"14:00", "14:30"}))
	require.NoError(t, blocker.BlockTimeSlots(ctx, "field-1", "2025-06-10", []string{"14:30", "15:00"}))

	field, err := store.GetField(ctx, "field-1")
	require.NoError(t, err)
	require.Contains(t, field.BlockedSlots, "2025-06-10")
	assert.Equal(t, []string{"14:00", "14:30", "15:00"}, field.BlockedSlots["2025-06-10"].Sorted())
}

func TestUnblockTimeSlots_RemovesEmptyDateEntry(t *testing.T) {
	blocker, store := newTestBlocker(t)
	ctx := context.Background()

	require.NoError(t, blocker.BlockTimeSlots(ctx, "field-1", "2025-06-10", []string{"14:00"}))
	require.NoError(t, blocker.UnblockTimeSlots(ctx, "field-1", "2025-06-10", []string{"14:00"}))

	field, err := store.GetField(ctx, "field-1")
	require.NoError(t, err)
	assert.NotContains(t, field.BlockedSlots, "2025-06-10")
}

func TestBlocking_Validation(t *testing.T) {
	blocker, _ := newTestBlocker(t)
	ctx := context.Background()

	assert.ErrorIs(t, blocker.BlockDates(ctx, "field-1", nil), schedule.ErrValidation)
	assert.ErrorIs(t, blocker.BlockDates(ctx, "field-1", []string{"06/01/2025"}), schedule.ErrValidation)
	assert.ErrorIs(t, blocker.BlockTimeSlots(ctx, "field-1", "2025-06-10", []string{"14:15"}), schedule.ErrValidation)
	assert.ErrorIs(t, blocker.BlockTimeSlots(ctx, "field-1", "bad-date", []string{"14:00"}), schedule.ErrValidation)
	assert.ErrorIs(t, blocker.BlockDates(ctx, "missing", []string{"2025-06-01"}), schedule.ErrFieldNotFound)
}

func TestBlocking_DoesNotTouchExistingBookings(t *testing.T) {
	// Blocking a date with a confirmed booking prevents future bookings
	// but leaves the existing one untouched. Deliberate policy.
	blocker, store := newTestBlocker(t)
	ctx := context.Background()

	manager := booking.NewManager(store, testClock, nil, nil)
	b, err := manager.CreateBooking(ctx, createInput("10:00", 2))
	require.NoError(t, err)
	_, err = manager.ConfirmBooking(ctx, b.ID)
	require.NoError(t, err)

	require.NoError(t, blocker.BlockDates(ctx, "field-1", []string{"2025-06-10"}))

	stored, err := store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusConfirmed, stored.Status)

	// But new bookings on that date are refused.
	_, err = manager.CreateBooking(ctx, createInput("14:00", 1))
	assert.ErrorIs(t, err, schedule.ErrDateBlocked)
}
