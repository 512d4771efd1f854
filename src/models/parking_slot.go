package models

import (
	"time"

	"pms/src/types"
)

// ParkingSlot is the single source of truth for the physical state of a
// space. The two flags are independent: a slot can be reserved while a
// booked customer is still on their way, and occupied once a vehicle is
// actually detected in it. Sessions and bookings reference slots but
// never own them.
type ParkingSlot struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	SlotID      string    `gorm:"uniqueIndex" json:"slot_id"`
	IsOccupied  bool      `json:"is_occupied"`
	IsReserved  bool      `json:"is_reserved"`
	LastUpdated time.Time `json:"last_updated"`

	types.Timestamps
}

// Zone is encoded as the leading character of the slot id ("A1" -> "A").
func (s *ParkingSlot) Zone() string {
	if s.SlotID == "" {
		return ""
	}
	return s.SlotID[:1]
}

// Available reports whether the slot can be claimed by a new session or
// reservation.
func (s *ParkingSlot) Available() bool {
	return !s.IsOccupied && !s.IsReserved
}
