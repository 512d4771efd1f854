package common

import (
	"errors"
	"fmt"
	"log"
	"time"

	"pms/src/config"
	"pms/src/db"
	"pms/src/models"
	"pms/src/models/scopes"
	"pms/src/types"

	"gorm.io/gorm"
)

// CreateBookingParams is the validated input for a new booking, with the
// arrival already parsed to a concrete instant.
type CreateBookingParams struct {
	CustomerID       string
	CustomerEmail    string
	VehicleNumber    string
	SlotID           string
	ScheduledArrival time.Time
	DurationMinutes  int
	Notes            string
}

// windowsOverlap reports whether two half-open time windows intersect.
// Back-to-back windows (one ending exactly when the next starts) do not
// overlap.
func windowsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// slotAvailableForWindow checks a candidate window against every live
// booking on the slot, and against the slot's physical state when the
// window starts soon enough that the current occupant could still be
// there.
func slotAvailableForWindow(tx *gorm.DB, slot *models.ParkingSlot, arrival time.Time, duration time.Duration, excludeBookingID uint) (bool, error) {
	departure := arrival.Add(duration)
	var bookings []models.Booking
	q := tx.
		Where("slot_id = ?", slot.ID).
		Scopes(scopes.NonTerminalBookings)
	if excludeBookingID != 0 {
		q = q.Where("id <> ?", excludeBookingID)
	}
	if err := q.Find(&bookings).Error; err != nil {
		return false, err
	}
	for _, other := range bookings {
		if windowsOverlap(arrival, departure, other.ScheduledArrival, other.ScheduledDeparture()) {
			return false, nil
		}
	}
	// A window starting almost immediately competes with whoever is in
	// the slot right now, not just with other bookings.
	if time.Until(arrival) <= config.PreArrivalReserve() && !slot.Available() {
		return false, nil
	}
	return true, nil
}

// CheckAvailability lists the slots free for the requested window,
// optionally narrowed to one zone.
func CheckAvailability(arrival time.Time, duration time.Duration, zone string) ([]models.ParkingSlot, error) {
	conn := db.GetDb()
	var slots []models.ParkingSlot
	q := conn.Order("slot_id")
	if zone != "" {
		q = q.Where("slot_id LIKE ?", sanitizeZone(zone)+"%")
	}
	if err := q.Find(&slots).Error; err != nil {
		return nil, err
	}
	free := make([]models.ParkingSlot, 0, len(slots))
	for i := range slots {
		ok, err := slotAvailableForWindow(conn, &slots[i], arrival, duration, 0)
		if err != nil {
			return nil, err
		}
		if ok {
			free = append(free, slots[i])
		}
	}
	return free, nil
}

// CreateBooking registers a future arrival window on a slot. The slot is
// not reserved yet; bookings only hold the window, and the physical hold
// happens at confirm-arrival or the sweeper's pre-arrival reserve.
func CreateBooking(params CreateBookingParams) (*models.Booking, error) {
	slot, err := GetSlot(params.SlotID)
	if err != nil {
		return nil, err
	}
	conn := db.GetDb()
	var booking models.Booking
	err = conn.Transaction(func(tx *gorm.DB) error {
		locked, err := lockSlot(tx, slot.ID)
		if err != nil {
			return err
		}
		// Double-parking guard: one live booking and one live session
		// per plate.
		if err := guardNoLiveSession(tx, params.VehicleNumber); err != nil {
			return err
		}
		var live int64
		err = tx.
			Model(&models.Booking{}).
			Where("vehicle_number = ?", params.VehicleNumber).
			Scopes(scopes.NonTerminalBookings).
			Count(&live).
			Error
		if err != nil {
			return err
		}
		if live > 0 {
			return types.ErrConflict
		}
		duration := time.Duration(params.DurationMinutes) * time.Minute
		ok, err := slotAvailableForWindow(tx, locked, params.ScheduledArrival, duration, 0)
		if err != nil {
			return err
		}
		if !ok {
			return types.ErrConflict
		}
		slotRef := locked.ID
		booking = models.Booking{
			CustomerID:       params.CustomerID,
			CustomerEmail:    params.CustomerEmail,
			VehicleNumber:    params.VehicleNumber,
			SlotID:           &slotRef,
			ScheduledArrival: params.ScheduledArrival,
			DurationMinutes:  params.DurationMinutes,
			Status:           string(types.BOOKING_CONFIRMED),
			EstimatedFee:     float64(params.DurationMinutes) * CurrentRate(),
			Notes:            params.Notes,
		}
		if err := tx.Create(&booking).Error; err != nil {
			return err
		}
		booking.Slot = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Created booking %s for vehicle %s on slot %s\n", booking.BookingID, booking.VehicleNumber, slot.SlotID)
	go NotifyBookingConfirmed(&booking)
	return &booking, nil
}

// GetBooking fetches one booking with its slot and session.
func GetBooking(id uint) (*models.Booking, error) {
	conn := db.GetDb()
	var booking models.Booking
	err := conn.
		Preload("Slot").
		Preload("Session").
		Scopes(scopes.WithID(id)).
		First(&booking).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListBookings filters bookings by customer and/or status, newest
// scheduled first.
func ListBookings(customerID string, status string) ([]models.Booking, error) {
	conn := db.GetDb()
	q := conn.Preload("Slot").Order("scheduled_arrival DESC")
	if customerID != "" {
		q = q.Where("customer_id = ?", customerID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var bookings []models.Booking
	if err := q.Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

// arrivalWindowError checks a gate arrival against the grace window
// around the booked time, reporting how far off the customer is. The
// window is inclusive at both edges. Staff force skips the check.
func arrivalWindowError(scheduledArrival, now time.Time, force bool) error {
	if force {
		return nil
	}
	grace := config.ArrivalGrace()
	if now.Before(scheduledArrival.Add(-grace)) {
		early := scheduledArrival.Add(-grace).Sub(now).Round(time.Minute)
		return fmt.Errorf("%w: %s before the arrival window", types.ErrTooEarly, early)
	}
	if now.After(scheduledArrival.Add(grace)) {
		late := now.Sub(scheduledArrival.Add(grace)).Round(time.Minute)
		return fmt.Errorf("%w: %s past the arrival window", types.ErrTooLate, late)
	}
	return nil
}

// ConfirmArrival is the staff gate-check for a booked customer: it opens
// a pending session on the booked slot, reserves it and moves the
// booking to active. Outside the grace window around scheduled_arrival
// it fails with ErrTooEarly or ErrTooLate unless force is set. The
// session itself stays pending until the camera sees the vehicle park.
func ConfirmArrival(id uint, force bool) (*models.Booking, error) {
	conn := db.GetDb()
	var booking models.Booking
	err := conn.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ?", id).First(&booking).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.ErrNotFound
		} else if err != nil {
			return err
		}
		if booking.Status != string(types.BOOKING_CONFIRMED) {
			return types.ErrInvalidState
		}
		now := time.Now()
		if err := arrivalWindowError(booking.ScheduledArrival, now, force); err != nil {
			return err
		}
		if booking.SlotID == nil {
			return types.ErrInvalidState
		}
		locked, err := lockSlot(tx, *booking.SlotID)
		if err != nil {
			return err
		}
		if locked.IsOccupied {
			return types.ErrSlotUnavailable
		}
		if locked.IsReserved {
			// A hold with a live session behind it belongs to someone
			// else; a bare hold is this booking's pre-arrival reserve.
			var held int64
			err := tx.
				Model(&models.ParkingSession{}).
				Where("slot_id = ? AND status IN ?", locked.ID, []string{"pending", "active"}).
				Count(&held).
				Error
			if err != nil {
				return err
			}
			if held > 0 {
				return types.ErrSlotUnavailable
			}
		}
		if err := guardNoLiveSession(tx, booking.VehicleNumber); err != nil {
			return err
		}
		if err := setSlotFlags(tx, locked, false, true, time.Time{}); err != nil {
			return err
		}
		session := models.ParkingSession{
			VehicleNumber: booking.VehicleNumber,
			SlotID:        locked.ID,
			Status:        string(types.SESSION_PENDING),
		}
		if err := tx.Create(&session).Error; err != nil {
			return err
		}
		booking.Status = string(types.BOOKING_ACTIVE)
		booking.ActualArrival = &now
		booking.SessionID = &session.ID
		booking.Session = &session
		booking.Slot = locked
		return tx.
			Model(&models.Booking{}).
			Where("id = ?", booking.ID).
			Updates(map[string]any{
				"status":         types.BOOKING_ACTIVE,
				"actual_arrival": now,
				"session_id":     session.ID,
			}).
			Error
	})
	if err != nil {
		return nil, err
	}
	broadcastSlot(booking.Slot)
	log.Printf("Confirmed arrival for booking %s (session %s)\n", booking.BookingID, booking.Session.SessionID)
	return &booking, nil
}

// CancelBooking voids a booking and releases anything it holds. Customer
// cancellations must come in before the cutoff ahead of the scheduled
// arrival; staff may override the cutoff but nobody cancels a booking
// whose vehicle is already parked.
func CancelBooking(id uint, staffOverride bool) (*models.Booking, error) {
	conn := db.GetDb()
	var booking models.Booking
	err := conn.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ?", id).First(&booking).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.ErrNotFound
		} else if err != nil {
			return err
		}
		switch types.BookingStatus(booking.Status) {
		case types.BOOKING_PENDING, types.BOOKING_CONFIRMED:
		default:
			return types.ErrInvalidState
		}
		if !staffOverride && time.Now().After(booking.ScheduledArrival.Add(-config.CancelCutoff())) {
			return types.ErrTooLate
		}
		booking.Status = string(types.BOOKING_CANCELLED)
		err = tx.
			Model(&models.Booking{}).
			Where("id = ?", booking.ID).
			Update("status", types.BOOKING_CANCELLED).
			Error
		if err != nil {
			return err
		}
		return releaseBookingHold(tx, &booking)
	})
	if err != nil {
		return nil, err
	}
	if booking.Slot != nil {
		broadcastSlot(booking.Slot)
	}
	log.Printf("Cancelled booking %s\n", booking.BookingID)
	go NotifyBookingCancelled(&booking)
	return &booking, nil
}

// releaseBookingHold frees whatever a dying booking still holds: its
// pending session and the reservation flag on its slot. Occupied slots
// are left alone, the occupancy reconciler owns that flag.
func releaseBookingHold(tx *gorm.DB, booking *models.Booking) error {
	if booking.SlotID == nil {
		return nil
	}
	locked, err := lockSlot(tx, *booking.SlotID)
	if err != nil {
		return err
	}
	booking.Slot = locked
	if booking.SessionID != nil {
		var session models.ParkingSession
		err := tx.Where("id = ?", *booking.SessionID).First(&session).Error
		if err == nil && session.Status == string(types.SESSION_PENDING) {
			if err := cancelSession(tx, &session, locked, time.Now()); err != nil {
				return err
			}
			return nil
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}
	if locked.IsReserved && !locked.IsOccupied {
		// Only a bare pre-arrival hold may be released here; a hold
		// with a live session belongs to another visit.
		var held int64
		err := tx.
			Model(&models.ParkingSession{}).
			Where("slot_id = ? AND status IN ?", locked.ID, []string{"pending", "active"}).
			Count(&held).
			Error
		if err != nil {
			return err
		}
		if held == 0 {
			return setSlotFlags(tx, locked, locked.IsOccupied, false, time.Time{})
		}
	}
	return nil
}
