package common

import (
	"errors"
	"fmt"
	"log"
	"time"

	"pms/src/db"
	"pms/src/models"
	"pms/src/models/scopes"
	"pms/src/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssignSlot puts a walk-in vehicle on a specific slot: the slot is
// reserved and a pending session is created, to be activated when the
// camera confirms the vehicle actually parked. Fails with ErrConflict if
// the vehicle already holds a live session and ErrSlotUnavailable if the
// slot is taken.
func AssignSlot(slotID string, vehicleNumber string) (*models.ParkingSession, error) {
	slot, err := GetSlot(slotID)
	if err != nil {
		return nil, err
	}
	conn := db.GetDb()
	var session models.ParkingSession
	err = conn.Transaction(func(tx *gorm.DB) error {
		if err := guardNoLiveSession(tx, vehicleNumber); err != nil {
			return err
		}
		locked, err := lockSlot(tx, slot.ID)
		if err != nil {
			return err
		}
		if !locked.Available() {
			return types.ErrSlotUnavailable
		}
		if err := setSlotFlags(tx, locked, false, true, time.Time{}); err != nil {
			return err
		}
		session = models.ParkingSession{
			VehicleNumber: vehicleNumber,
			SlotID:        locked.ID,
			Status:        string(types.SESSION_PENDING),
		}
		if err := tx.Create(&session).Error; err != nil {
			return err
		}
		session.Slot = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	broadcastSlot(session.Slot)
	log.Printf("Assigned slot %s to vehicle %s (%s)\n", slotID, vehicleNumber, session.SessionID)
	return &session, nil
}

// AutoAssignSlot picks the first free slot for a walk-in, preferring the
// requested zone (zone A when none is given) and falling back to any
// other zone. Each candidate is re-checked under lock so two concurrent
// walk-ins racing for the same slot cannot both win it; the loser simply
// moves on to the next candidate.
func AutoAssignSlot(vehicleNumber string, zonePreference string) (*models.ParkingSession, error) {
	if zonePreference == "" {
		zonePreference = "A"
	}
	conn := db.GetDb()
	var session models.ParkingSession
	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := guardNoLiveSession(tx, vehicleNumber); err != nil {
			return err
		}
		var candidates []models.ParkingSlot
		err := tx.
			Where("is_occupied = false AND is_reserved = false").
			Order(fmt.Sprintf("CASE WHEN slot_id LIKE '%s%%' THEN 0 ELSE 1 END", sanitizeZone(zonePreference))).
			Order("slot_id").
			Find(&candidates).
			Error
		if err != nil {
			return err
		}
		for _, candidate := range candidates {
			var locked models.ParkingSlot
			err := tx.
				Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ? AND is_occupied = false AND is_reserved = false", candidate.ID).
				First(&locked).
				Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Claimed by a concurrent assignment since the scan.
				continue
			} else if err != nil {
				return err
			}
			if err := setSlotFlags(tx, &locked, false, true, time.Time{}); err != nil {
				return err
			}
			session = models.ParkingSession{
				VehicleNumber: vehicleNumber,
				SlotID:        locked.ID,
				Status:        string(types.SESSION_PENDING),
			}
			if err := tx.Create(&session).Error; err != nil {
				return err
			}
			session.Slot = &locked
			return nil
		}
		return types.ErrNoSlotsAvailable
	})
	if err != nil {
		return nil, err
	}
	broadcastSlot(session.Slot)
	log.Printf("Auto-assigned slot %s to vehicle %s (%s)\n", session.Slot.SlotID, vehicleNumber, session.SessionID)
	return &session, nil
}

// EndSessionBySlot terminates whatever live session the slot holds. An
// active session completes with a fee; a pending one is cancelled since
// the vehicle never showed. Frees the slot either way.
func EndSessionBySlot(slotID string) (*models.ParkingSession, error) {
	slot, err := GetSlot(slotID)
	if err != nil {
		return nil, err
	}
	conn := db.GetDb()
	var session models.ParkingSession
	err = conn.Transaction(func(tx *gorm.DB) error {
		locked, err := lockSlot(tx, slot.ID)
		if err != nil {
			return err
		}
		err = tx.
			Where("slot_id = ? AND status IN ?", locked.ID, []string{"pending", "active"}).
			Order("created_at DESC").
			First(&session).
			Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.ErrNotFound
		} else if err != nil {
			return err
		}
		return endSession(tx, &session, locked, time.Now())
	})
	if err != nil {
		return nil, err
	}
	broadcastSlot(session.Slot)
	return &session, nil
}

// EndSessionByVehicle is EndSessionBySlot keyed by the plate instead of
// the slot, for exits where the attendant only has the vehicle number.
func EndSessionByVehicle(vehicleNumber string) (*models.ParkingSession, error) {
	conn := db.GetDb()
	var session models.ParkingSession
	err := conn.Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("vehicle_number = ? AND status IN ?", vehicleNumber, []string{"pending", "active"}).
			Order("created_at DESC").
			First(&session).
			Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.ErrNotFound
		} else if err != nil {
			return err
		}
		locked, err := lockSlot(tx, session.SlotID)
		if err != nil {
			return err
		}
		return endSession(tx, &session, locked, time.Now())
	})
	if err != nil {
		return nil, err
	}
	broadcastSlot(session.Slot)
	return &session, nil
}

// LookupCurrentSession finds the most relevant session for a vehicle:
// an active one first, then pending, then the latest finished visit.
func LookupCurrentSession(vehicleNumber string) (*models.ParkingSession, error) {
	conn := db.GetDb()
	var session models.ParkingSession
	err := conn.
		Preload("Slot").
		Where("vehicle_number = ?", vehicleNumber).
		Order("CASE status WHEN 'active' THEN 1 WHEN 'pending' THEN 2 WHEN 'completed' THEN 3 ELSE 4 END").
		Order("start_time DESC NULLS LAST").
		Order("created_at DESC").
		First(&session).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &session, nil
}

// SessionHistory lists past and present sessions, newest first, filtered
// by vehicle and/or slot when given.
func SessionHistory(vehicleNumber string, slotID string, limit int) ([]models.ParkingSession, error) {
	conn := db.GetDb()
	q := conn.Preload("Slot").Order("created_at DESC")
	if vehicleNumber != "" {
		q = q.Where("vehicle_number = ?", vehicleNumber)
	}
	if slotID != "" {
		slot, err := GetSlot(slotID)
		if err != nil {
			return nil, err
		}
		q = q.Where("slot_id = ?", slot.ID)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var sessions []models.ParkingSession
	if err := q.Limit(limit).Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// guardNoLiveSession rejects a second concurrent visit for one plate.
func guardNoLiveSession(tx *gorm.DB, vehicleNumber string) error {
	var count int64
	err := tx.
		Model(&models.ParkingSession{}).
		Where("vehicle_number = ?", vehicleNumber).
		Scopes(scopes.NonTerminalSessions).
		Count(&count).
		Error
	if err != nil {
		return err
	}
	if count > 0 {
		return types.ErrConflict
	}
	return nil
}

// activateSession flips a pending session to active and stamps its real
// start time. Caller holds the slot lock.
func activateSession(tx *gorm.DB, session *models.ParkingSession, at time.Time) error {
	session.Status = string(types.SESSION_ACTIVE)
	session.StartTime = &at
	return tx.
		Model(&models.ParkingSession{}).
		Where("id = ?", session.ID).
		Updates(map[string]any{
			"status":     types.SESSION_ACTIVE,
			"start_time": at,
		}).
		Error
}

// completeSession closes an active session, prices it, and frees the
// slot entirely. Both flags are cleared: a reservation that was still
// set at this point belonged to the visit that just ended, and keeping
// it would strand the slot.
func completeSession(tx *gorm.DB, session *models.ParkingSession, slot *models.ParkingSlot, at time.Time) error {
	rate := CurrentRate()
	fee := session.CalculateFee(rate, at)
	session.Status = string(types.SESSION_COMPLETED)
	session.EndTime = &at
	session.Fee = &fee
	session.Slot = slot
	err := tx.
		Model(&models.ParkingSession{}).
		Where("id = ?", session.ID).
		Updates(map[string]any{
			"status":   types.SESSION_COMPLETED,
			"end_time": at,
			"fee":      fee,
		}).
		Error
	if err != nil {
		return err
	}
	return setSlotFlags(tx, slot, false, false, at)
}

// cancelSession voids a session that never went active and releases the
// reservation it held. No fee is charged.
func cancelSession(tx *gorm.DB, session *models.ParkingSession, slot *models.ParkingSlot, at time.Time) error {
	session.Status = string(types.SESSION_CANCELLED)
	session.EndTime = &at
	session.Slot = slot
	err := tx.
		Model(&models.ParkingSession{}).
		Where("id = ?", session.ID).
		Updates(map[string]any{
			"status":   types.SESSION_CANCELLED,
			"end_time": at,
		}).
		Error
	if err != nil {
		return err
	}
	return setSlotFlags(tx, slot, slot.IsOccupied, false, time.Time{})
}

func endSession(tx *gorm.DB, session *models.ParkingSession, slot *models.ParkingSlot, at time.Time) error {
	switch types.SessionStatus(session.Status) {
	case types.SESSION_ACTIVE:
		if err := completeSession(tx, session, slot, at); err != nil {
			return err
		}
	case types.SESSION_PENDING:
		if err := cancelSession(tx, session, slot, at); err != nil {
			return err
		}
	default:
		return types.ErrInvalidState
	}
	return closeLinkedBooking(tx, session, at)
}

// closeLinkedBooking completes the booking attached to a session that
// just ended, stamping the actual departure.
func closeLinkedBooking(tx *gorm.DB, session *models.ParkingSession, at time.Time) error {
	var booking models.Booking
	err := tx.
		Where("session_id = ? AND status = ?", session.ID, types.BOOKING_ACTIVE).
		First(&booking).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	} else if err != nil {
		return err
	}
	return tx.
		Model(&models.Booking{}).
		Where("id = ?", booking.ID).
		Updates(map[string]any{
			"status":           types.BOOKING_COMPLETED,
			"actual_departure": at,
		}).
		Error
}

// sanitizeZone keeps zone input to a single letter so it can be spliced
// into the candidate ordering expression.
func sanitizeZone(zone string) string {
	if zone == "" {
		return "A"
	}
	c := zone[0]
	if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
		return string(c &^ 0x20)
	}
	return "A"
}
