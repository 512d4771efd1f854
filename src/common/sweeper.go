package common

import (
	"log"
	"time"

	"pms/src/config"
	"pms/src/db"
	"pms/src/models"
	"pms/src/types"

	"gorm.io/gorm"
)

// RunSweep is the periodic lifecycle pass: it expires what customers
// abandoned, releases what nothing holds anymore, pre-reserves slots for
// imminent arrivals and sends reminders. Each step is independent, a
// failure in one is logged and the rest still run.
func RunSweep() {
	now := time.Now()
	if err := expireNoShowBookings(now); err != nil {
		log.Printf("Error expiring no-show bookings: %s\n", err.Error())
	}
	if err := cancelStalePendingSessions(now); err != nil {
		log.Printf("Error cancelling stale pending sessions: %s\n", err.Error())
	}
	if err := preReserveUpcomingBookings(now); err != nil {
		log.Printf("Error pre-reserving upcoming bookings: %s\n", err.Error())
	}
	if err := releaseStaleReservations(now); err != nil {
		log.Printf("Error releasing stale reservations: %s\n", err.Error())
	}
	if err := sendArrivalReminders(now); err != nil {
		log.Printf("Error sending arrival reminders: %s\n", err.Error())
	}
}

// noShowExpired reports whether a confirmed booking has outlived its
// arrival grace without the customer turning up.
func noShowExpired(scheduledArrival time.Time, now time.Time) bool {
	return now.After(scheduledArrival.Add(config.ArrivalGrace()))
}

// expireNoShowBookings marks confirmed bookings whose arrival window
// closed with no confirmed arrival. Their pre-reserved slots are freed
// so the next customer can use them.
func expireNoShowBookings(now time.Time) error {
	conn := db.GetDb()
	var bookings []models.Booking
	err := conn.
		Where("status = ? AND actual_arrival IS NULL AND scheduled_arrival < ?",
			types.BOOKING_CONFIRMED, now.Add(-config.ArrivalGrace())).
		Find(&bookings).
		Error
	if err != nil {
		return err
	}
	for i := range bookings {
		booking := &bookings[i]
		var expired bool
		err := conn.Transaction(func(tx *gorm.DB) error {
			// Lock order is slot row first, booking row second, same as
			// every other lifecycle path in this package.
			if booking.SlotID != nil {
				if _, err := lockSlot(tx, *booking.SlotID); err != nil {
					return err
				}
			}
			res := tx.
				Model(&models.Booking{}).
				Where("id = ? AND status = ?", booking.ID, types.BOOKING_CONFIRMED).
				Update("status", types.BOOKING_EXPIRED)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// Raced a confirm-arrival or cancel since the scan.
				return nil
			}
			booking.Status = string(types.BOOKING_EXPIRED)
			expired = true
			return releaseBookingHold(tx, booking)
		})
		if err != nil {
			log.Printf("Error expiring booking %s: %s\n", booking.BookingID, err.Error())
			continue
		}
		if !expired {
			continue
		}
		log.Printf("Expired no-show booking %s\n", booking.BookingID)
		if booking.Slot != nil {
			broadcastSlot(booking.Slot)
		}
	}
	return nil
}

// cancelStalePendingSessions voids sessions whose vehicle was announced
// but never detected parking. The linked booking, if any, expires with
// it.
func cancelStalePendingSessions(now time.Time) error {
	conn := db.GetDb()
	cutoff := now.Add(-config.PendingExpiry())
	var sessions []models.ParkingSession
	err := conn.
		Where("status = ? AND created_at < ?", types.SESSION_PENDING, cutoff).
		Find(&sessions).
		Error
	if err != nil {
		return err
	}
	for i := range sessions {
		session := &sessions[i]
		err := conn.Transaction(func(tx *gorm.DB) error {
			locked, err := lockSlot(tx, session.SlotID)
			if err != nil {
				return err
			}
			if err := cancelSession(tx, session, locked, now); err != nil {
				return err
			}
			return tx.
				Model(&models.Booking{}).
				Where("session_id = ? AND status IN ?", session.ID,
					[]string{string(types.BOOKING_CONFIRMED), string(types.BOOKING_ACTIVE)}).
				Update("status", types.BOOKING_EXPIRED).
				Error
		})
		if err != nil {
			log.Printf("Error cancelling stale session %s: %s\n", session.SessionID, err.Error())
			continue
		}
		log.Printf("Cancelled stale pending session %s\n", session.SessionID)
		broadcastSlot(session.Slot)
	}
	return nil
}

// preReserveUpcomingBookings holds the slot of every confirmed booking
// whose window opens within the pre-arrival lead, keeping walk-ins from
// taking a slot a booked customer is minutes away from.
func preReserveUpcomingBookings(now time.Time) error {
	conn := db.GetDb()
	var bookings []models.Booking
	err := conn.
		Where("status = ? AND actual_arrival IS NULL AND scheduled_arrival BETWEEN ? AND ?",
			types.BOOKING_CONFIRMED, now, now.Add(config.PreArrivalReserve())).
		Find(&bookings).
		Error
	if err != nil {
		return err
	}
	for i := range bookings {
		booking := &bookings[i]
		if booking.SlotID == nil {
			continue
		}
		var reserved *models.ParkingSlot
		err := conn.Transaction(func(tx *gorm.DB) error {
			locked, err := lockSlot(tx, *booking.SlotID)
			if err != nil {
				return err
			}
			if !locked.Available() {
				return nil
			}
			if err := setSlotFlags(tx, locked, false, true, time.Time{}); err != nil {
				return err
			}
			reserved = locked
			return nil
		})
		if err != nil {
			log.Printf("Error pre-reserving for booking %s: %s\n", booking.BookingID, err.Error())
			continue
		}
		if reserved != nil {
			log.Printf("Pre-reserved slot %s for booking %s\n", reserved.SlotID, booking.BookingID)
			broadcastSlot(reserved)
		}
	}
	return nil
}

// releaseStaleReservations frees reservation flags that nothing backs
// anymore: no live session and no booking close enough to claim the
// hold. These are left behind when processes die between a reserve and
// its follow-up.
func releaseStaleReservations(now time.Time) error {
	conn := db.GetDb()
	var slots []models.ParkingSlot
	err := conn.
		Where("is_reserved = true AND is_occupied = false").
		Find(&slots).
		Error
	if err != nil {
		return err
	}
	for i := range slots {
		slot := &slots[i]
		var released bool
		err := conn.Transaction(func(tx *gorm.DB) error {
			locked, err := lockSlot(tx, slot.ID)
			if err != nil {
				return err
			}
			if !locked.IsReserved || locked.IsOccupied {
				return nil
			}
			var held int64
			err = tx.
				Model(&models.ParkingSession{}).
				Where("slot_id = ? AND status IN ?", locked.ID, []string{"pending", "active"}).
				Count(&held).
				Error
			if err != nil {
				return err
			}
			if held > 0 {
				return nil
			}
			var claims int64
			err = tx.
				Model(&models.Booking{}).
				Where("slot_id = ? AND status IN ? AND scheduled_arrival < ? AND scheduled_arrival > ?",
					locked.ID,
					[]string{string(types.BOOKING_CONFIRMED), string(types.BOOKING_ACTIVE)},
					now.Add(config.PreArrivalReserve()),
					now.Add(-config.ArrivalGrace())).
				Count(&claims).
				Error
			if err != nil {
				return err
			}
			if claims > 0 {
				return nil
			}
			if err := setSlotFlags(tx, locked, false, false, time.Time{}); err != nil {
				return err
			}
			*slot = *locked
			released = true
			return nil
		})
		if err != nil {
			log.Printf("Error releasing reservation on %s: %s\n", slot.SlotID, err.Error())
			continue
		}
		if released {
			log.Printf("Released stale reservation on slot %s\n", slot.SlotID)
			broadcastSlot(slot)
		}
	}
	return nil
}

// reminderDue reports whether a booking sits in the reminder window,
// roughly half an hour out.
func reminderDue(scheduledArrival time.Time, now time.Time) bool {
	lead := scheduledArrival.Sub(now)
	return lead >= 25*time.Minute && lead <= 35*time.Minute
}

// sendArrivalReminders emails customers whose window opens in about half
// an hour. ReminderSentAt guards against duplicates across sweeps.
func sendArrivalReminders(now time.Time) error {
	conn := db.GetDb()
	var bookings []models.Booking
	err := conn.
		Preload("Slot").
		Where("status = ? AND reminder_sent_at IS NULL AND customer_email <> '' AND scheduled_arrival BETWEEN ? AND ?",
			types.BOOKING_CONFIRMED, now.Add(25*time.Minute), now.Add(35*time.Minute)).
		Find(&bookings).
		Error
	if err != nil {
		return err
	}
	for i := range bookings {
		booking := &bookings[i]
		err := conn.
			Model(&models.Booking{}).
			Where("id = ? AND reminder_sent_at IS NULL", booking.ID).
			Update("reminder_sent_at", now).
			Error
		if err != nil {
			log.Printf("Error stamping reminder for %s: %s\n", booking.BookingID, err.Error())
			continue
		}
		go NotifyArrivalReminder(booking)
	}
	return nil
}
