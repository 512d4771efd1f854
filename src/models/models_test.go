package models

import (
	"testing"
	"time"

	"pms/src/types"

	"github.com/stretchr/testify/assert"
)

func TestSlotZone(t *testing.T) {
	slot := ParkingSlot{SlotID: "A12"}
	assert.Equal(t, "A", slot.Zone())

	slot = ParkingSlot{SlotID: "B3"}
	assert.Equal(t, "B", slot.Zone())

	slot = ParkingSlot{}
	assert.Equal(t, "", slot.Zone())
}

func TestSlotAvailable(t *testing.T) {
	slot := ParkingSlot{}
	assert.True(t, slot.Available())

	slot.IsReserved = true
	assert.False(t, slot.Available())

	slot = ParkingSlot{IsOccupied: true}
	assert.False(t, slot.Available())
}

func TestSessionTerminal(t *testing.T) {
	session := ParkingSession{Status: string(types.SESSION_PENDING)}
	assert.False(t, session.Terminal())

	session.Status = string(types.SESSION_ACTIVE)
	assert.False(t, session.Terminal())

	session.Status = string(types.SESSION_COMPLETED)
	assert.True(t, session.Terminal())

	session.Status = string(types.SESSION_CANCELLED)
	assert.True(t, session.Terminal())
}

func TestCalculateFee(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	session := ParkingSession{StartTime: &start}

	// 125 seconds is 2 whole minutes.
	fee := session.CalculateFee(2.0, start.Add(125*time.Second))
	assert.Equal(t, 4.0, fee)

	// Under a minute rounds down to zero.
	fee = session.CalculateFee(2.0, start.Add(59*time.Second))
	assert.Equal(t, 0.0, fee)

	fee = session.CalculateFee(1.5, start.Add(2*time.Hour))
	assert.Equal(t, 180.0, fee)
}

func TestCalculateFeeWithoutStart(t *testing.T) {
	session := ParkingSession{}
	assert.Equal(t, 0.0, session.CalculateFee(2.0, time.Now()))

	start := time.Now()
	session.StartTime = &start
	assert.Equal(t, 0.0, session.CalculateFee(2.0, start.Add(-time.Minute)))
}

func TestBookingScheduledDeparture(t *testing.T) {
	arrival := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	booking := Booking{ScheduledArrival: arrival, DurationMinutes: 90}
	assert.Equal(t, arrival.Add(90*time.Minute), booking.ScheduledDeparture())
}

func TestBookingTerminal(t *testing.T) {
	for _, status := range []types.BookingStatus{types.BOOKING_PENDING, types.BOOKING_CONFIRMED, types.BOOKING_ACTIVE} {
		booking := Booking{Status: string(status)}
		assert.False(t, booking.Terminal(), string(status))
	}
	for _, status := range []types.BookingStatus{types.BOOKING_COMPLETED, types.BOOKING_CANCELLED, types.BOOKING_EXPIRED} {
		booking := Booking{Status: string(status)}
		assert.True(t, booking.Terminal(), string(status))
	}
}
