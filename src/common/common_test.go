package common

import (
	"encoding/json"
	"testing"
	"time"

	"pms/src/models"
	"pms/src/types"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestWindowsOverlap(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	hour := time.Hour

	// Identical windows.
	assert.True(t, windowsOverlap(base, base.Add(hour), base, base.Add(hour)))

	// Partial overlap at the tail.
	assert.True(t, windowsOverlap(base, base.Add(hour), base.Add(30*time.Minute), base.Add(90*time.Minute)))

	// One inside the other.
	assert.True(t, windowsOverlap(base, base.Add(2*hour), base.Add(30*time.Minute), base.Add(hour)))

	// Back to back is not an overlap.
	assert.False(t, windowsOverlap(base, base.Add(hour), base.Add(hour), base.Add(2*hour)))
	assert.False(t, windowsOverlap(base.Add(hour), base.Add(2*hour), base, base.Add(hour)))

	// Fully disjoint.
	assert.False(t, windowsOverlap(base, base.Add(hour), base.Add(3*hour), base.Add(4*hour)))
}

func TestResolveOccupancy(t *testing.T) {
	// Vehicle shows up on a free slot.
	assert.Equal(t, actionArrive, resolveOccupancy(false, false, true))

	// Vehicle shows up on a slot held for a booking.
	assert.Equal(t, actionArrive, resolveOccupancy(false, true, true))

	// Repeated occupied signal is idempotent.
	assert.Equal(t, actionTouch, resolveOccupancy(true, false, true))

	// Vehicle leaves.
	assert.Equal(t, actionDepart, resolveOccupancy(true, false, false))

	// Vacancy noise against a reservation must not release the hold.
	assert.Equal(t, actionProtect, resolveOccupancy(false, true, false))

	// Vacancy on an already free slot changes nothing.
	assert.Equal(t, actionTouch, resolveOccupancy(false, false, false))
}

func TestSanitizeZone(t *testing.T) {
	assert.Equal(t, "A", sanitizeZone(""))
	assert.Equal(t, "B", sanitizeZone("B"))
	assert.Equal(t, "C", sanitizeZone("c"))
	assert.Equal(t, "D", sanitizeZone("D5"))
	assert.Equal(t, "A", sanitizeZone("'; DROP TABLE"))
	assert.Equal(t, "A", sanitizeZone("1"))
}

func TestArrivalWindowError(t *testing.T) {
	scheduled := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Inside the window.
	assert.NoError(t, arrivalWindowError(scheduled, scheduled, false))
	assert.NoError(t, arrivalWindowError(scheduled, scheduled.Add(-10*time.Minute), false))
	assert.NoError(t, arrivalWindowError(scheduled, scheduled.Add(10*time.Minute), false))

	// The window edges are inclusive.
	assert.NoError(t, arrivalWindowError(scheduled, scheduled.Add(-30*time.Minute), false))
	assert.NoError(t, arrivalWindowError(scheduled, scheduled.Add(30*time.Minute), false))

	// Too early, with the distance in the message.
	err := arrivalWindowError(scheduled, scheduled.Add(-45*time.Minute), false)
	assert.ErrorIs(t, err, types.ErrTooEarly)
	assert.Contains(t, err.Error(), "15m")

	// Too late.
	err = arrivalWindowError(scheduled, scheduled.Add(2*time.Hour), false)
	assert.ErrorIs(t, err, types.ErrTooLate)
	assert.Contains(t, err.Error(), "1h30m")

	// Staff force admits any arrival.
	assert.NoError(t, arrivalWindowError(scheduled, scheduled.Add(2*time.Hour), true))
	assert.NoError(t, arrivalWindowError(scheduled, scheduled.Add(-2*time.Hour), true))
}

func TestSlotEventPayload(t *testing.T) {
	slot := models.ParkingSlot{
		SlotID:      "B7",
		IsOccupied:  true,
		IsReserved:  false,
		LastUpdated: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	payload := slotEventPayload(&slot)

	assert.Equal(t, "slot_update", payload["type"])
	assert.Equal(t, "B7", payload["slot_id"])
	assert.Equal(t, "B", payload["zone"])
	assert.Equal(t, true, payload["is_occupied"])
	assert.Equal(t, false, payload["is_reserved"])

	// The same map goes out over both the websocket and the broker, so
	// it has to marshal cleanly.
	_, err := json.Marshal(payload)
	assert.NoError(t, err)
}

func TestOccupancyOutcomeShape(t *testing.T) {
	outcome := OccupancyOutcome{
		Message:       OutcomeStale,
		PreviousState: true,
		NewState:      true,
	}
	raw, err := json.Marshal(&outcome)
	assert.NoError(t, err)

	body := string(raw)
	assert.Equal(t, OutcomeStale, gjson.Get(body, "message").String())
	assert.True(t, gjson.Get(body, "previous_state").Bool())
	assert.True(t, gjson.Get(body, "new_state").Bool())
	assert.False(t, gjson.Get(body, "result").Exists())
}

func TestNoShowExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Still inside the grace window.
	assert.False(t, noShowExpired(now.Add(-29*time.Minute), now))

	// Grace exhausted.
	assert.True(t, noShowExpired(now.Add(-31*time.Minute), now))

	// Future arrivals never expire.
	assert.False(t, noShowExpired(now.Add(time.Hour), now))
}

func TestReminderDue(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, reminderDue(now.Add(30*time.Minute), now))
	assert.True(t, reminderDue(now.Add(25*time.Minute), now))
	assert.True(t, reminderDue(now.Add(35*time.Minute), now))
	assert.False(t, reminderDue(now.Add(24*time.Minute), now))
	assert.False(t, reminderDue(now.Add(36*time.Minute), now))
	assert.False(t, reminderDue(now.Add(-5*time.Minute), now))
}
