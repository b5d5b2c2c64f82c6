/*
slots.go - Candidate start-time grid

The slot generator enumerates the start times shown to a prospective
booker: one per step from open (inclusive) to close (exclusive). It is a
pure function and encodes no conflict state; availability.go decides what
each slot means for a particular date and duration.
*/
package schedule

// DefaultStepMinutes is the display grid step. Blocked slots use the finer
// BlockedSlotMinutes granularity; see clock.go.
const DefaultStepMinutes = 60

// GenerateSlots returns the ordered candidate start times between open
// (inclusive) and close (exclusive), one per step. A non-positive step
// falls back to the hourly default.
func GenerateSlots(openClock, closeClock string, stepMinutes int) ([]string, error) {
	openMin, err := ToMinutes(openClock)
	if err != nil {
		return nil, err
	}
	closeMin, err := ToMinutes(closeClock)
	if err != nil {
		return nil, err
	}
	if stepMinutes <= 0 {
		stepMinutes = DefaultStepMinutes
	}
	if closeMin <= openMin {
		return nil, &ValidationError{Field: "operatingHours", Message: "close must be after open"}
	}

	slots := make([]string, 0, (closeMin-openMin)/stepMinutes+1)
	for t := openMin; t < closeMin; t += stepMinutes {
		clock, err := ToClock(t)
		if err != nil {
			return nil, err
		}
		slots = append(slots, clock)
	}
	return slots, nil
}
