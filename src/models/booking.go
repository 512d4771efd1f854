package models

import (
	"time"

	"pms/src/types"

	"gorm.io/gorm"
)

// Booking is an advance reservation of an arrival window. Creating one
// does not reserve the slot; the slot is only reserved when staff
// confirm the arrival or when the sweeper pre-reserves shortly before
// the scheduled time, which is what lets several future bookings share
// one slot at different times.
type Booking struct {
	ID               uint       `gorm:"primarykey" json:"id"`
	BookingID        string     `gorm:"uniqueIndex" json:"booking_id"`
	CustomerID       string     `gorm:"index" json:"customer_id"`
	CustomerEmail    string     `json:"customer_email,omitempty"`
	VehicleNumber    string     `gorm:"index" json:"vehicle_number"`
	SlotID           *uint      `json:"slot_id,omitempty"`
	ScheduledArrival time.Time  `json:"scheduled_arrival"`
	DurationMinutes  int        `json:"expected_duration_minutes"`
	ActualArrival    *time.Time `json:"actual_arrival,omitempty"`
	ActualDeparture  *time.Time `json:"actual_departure,omitempty"`
	Status           string     `gorm:"default:'confirmed'" json:"status"`
	SessionID        *uint      `json:"session_id,omitempty"`
	CameraDetected   bool       `json:"camera_detected"`
	CameraDetectedAt *time.Time `json:"camera_detected_at,omitempty"`
	EstimatedFee     float64    `json:"estimated_fee"`
	ReminderSentAt   *time.Time `json:"-"`
	Notes            string     `json:"notes,omitempty"`

	Slot    *ParkingSlot    `gorm:"foreignKey:slot_id" json:"slot,omitempty"`
	Session *ParkingSession `gorm:"foreignKey:session_id" json:"session,omitempty"`

	types.Timestamps
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.BookingID != "" {
		return nil
	}
	id, err := generateRecordID(tx, &Booking{}, "booking_id", "BOOK")
	if err != nil {
		return err
	}
	b.BookingID = id
	return nil
}

// ScheduledDeparture is the exclusive end of the booked window.
func (b *Booking) ScheduledDeparture() time.Time {
	return b.ScheduledArrival.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// Terminal reports whether the booking reached one of its final states.
func (b *Booking) Terminal() bool {
	switch types.BookingStatus(b.Status) {
	case types.BOOKING_COMPLETED, types.BOOKING_CANCELLED, types.BOOKING_EXPIRED:
		return true
	}
	return false
}
