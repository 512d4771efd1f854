package scopes

import "gorm.io/gorm"

func WithID(id uint) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}
}

func WithSlot(slotID uint) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("slot_id = ?", slotID)
	}
}

// NonTerminalSessions keeps sessions that still hold a claim on a slot.
func NonTerminalSessions(db *gorm.DB) *gorm.DB {
	return db.Where("status IN ?", []string{"pending", "active"})
}

// NonTerminalBookings keeps bookings that may still turn into a session.
func NonTerminalBookings(db *gorm.DB) *gorm.DB {
	return db.Where("status IN ?", []string{"pending", "confirmed", "active"})
}
