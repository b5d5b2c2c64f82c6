/*
blocking.go - Owner blocking of dates and time slots

Blocking prevents future bookings; it never touches existing ones. An
owner may block a date that already has confirmed bookings - that is
policy, not an oversight: the bookings stand, new ones are refused. All
operations are idempotent set mutations, so they need no transaction
beyond the single statement each one issues.
*/
package booking

import (
	"context"

	"go.uber.org/zap"

	"github.com/warp/booking-engine/schedule"
)

// Blocker mutates a field's blocked-dates and blocked-slots sets.
type Blocker struct {
	store  schedule.FieldStore
	logger *zap.Logger
}

// NewBlocker wires the blocking manager.
func NewBlocker(store schedule.FieldStore, logger *zap.Logger) *Blocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Blocker{store: store, logger: logger}
}

func (b *Blocker) checkField(ctx context.Context, id schedule.FieldID) error {
	_, err := b.store.GetField(ctx, id)
	return err
}

func validateDates(dates []string) error {
	if len(dates) == 0 {
		return &schedule.ValidationError{Field: "dates", Message: "at least one date is required"}
	}
	for _, d := range dates {
		if !dateKeyPattern.MatchString(d) {
			return &schedule.ValidationError{Field: "dates", Message: "must be YYYY-MM-DD"}
		}
	}
	return nil
}

// validateSlots requires every slot to sit on the 30-minute grid.
func validateSlots(slots []string) error {
	if len(slots) == 0 {
		return &schedule.ValidationError{Field: "timeSlots", Message: "at least one time slot is required"}
	}
	for _, s := range slots {
		minutes, err := schedule.ToMinutes(s)
		if err != nil {
			return &schedule.ValidationError{Field: "timeSlots", Message: "must be HH:MM"}
		}
		if minutes%schedule.BlockedSlotMinutes != 0 {
			return &schedule.ValidationError{Field: "timeSlots", Message: "must be on a 30-minute boundary"}
		}
	}
	return nil
}

// BlockDates adds dates to the field's blocked set (union).
func (b *Blocker) BlockDates(ctx context.Context, id schedule.FieldID, dates []string) error {
	if err := validateDates(dates); err != nil {
		return err
	}
	if err := b.checkField(ctx, id); err != nil {
		return err
	}
	if err := b.store.AddBlockedDates(ctx, id, dates); err != nil {
		return err
	}
	b.logger.Info("dates blocked",
		zap.String("field_id", string(id)),
		zap.Strings("dates", dates),
	)
	return nil
}

// UnblockDates removes dates from the blocked set (difference).
func (b *Blocker) UnblockDates(ctx context.Context, id schedule.FieldID, dates []string) error {
	if err := validateDates(dates); err != nil {
		return err
	}
	if err := b.checkField(ctx, id); err != nil {
		return err
	}
	if err := b.store.RemoveBlockedDates(ctx, id, dates); err != nil {
		return err
	}
	b.logger.Info("dates unblocked",
		zap.String("field_id", string(id)),
		zap.Strings("dates", dates),
	)
	return nil
}

// BlockTimeSlots merges 30-minute start times into the per-date blocked
// set, creating the date entry if absent.
func (b *Blocker) BlockTimeSlots(ctx context.Context, id schedule.FieldID, date string, slots []string) error {
	if !dateKeyPattern.MatchString(date) {
		return &schedule.ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	if err := validateSlots(slots); err != nil {
		return err
	}
	if err := b.checkField(ctx, id); err != nil {
		return err
	}
	if err := b.store.AddBlockedSlots(ctx, id, date, slots); err != nil {
		return err
	}
	b.logger.Info("time slots blocked",
		zap.String("field_id", string(id)),
		zap.String("date", date),
		zap.Strings("slots", slots),
	)
	return nil
}

// UnblockTimeSlots removes start times from the per-date set. The store
// drops the date entry entirely once it is empty.
func (b *Blocker) UnblockTimeSlots(ctx context.Context, id schedule.FieldID, date string, slots []string) error {
	if !dateKeyPattern.MatchString(date) {
		return &schedule.ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	if err := validateSlots(slots); err != nil {
		return err
	}
	if err := b.checkField(ctx, id); err != nil {
		return err
	}
	if err := b.store.RemoveBlockedSlots(ctx, id, date, slots); err != nil {
		return err
	}
	b.logger.Info("time slots unblocked",
		zap.String("field_id", string(id)),
		zap.String("date", date),
		zap.Strings("slots", slots),
	)
	return nil
}
