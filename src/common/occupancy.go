package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"pms/src/db"
	"pms/src/lib"
	"pms/src/models"
	"pms/src/types"

	"gorm.io/gorm"
)

// OccupancySignal is one observation from a detector: this slot is, or
// is no longer, physically occupied. ObservedAt is the detector's clock;
// a zero value means the signal carried no timestamp.
type OccupancySignal struct {
	SlotID     string
	Occupied   bool
	DetectorID string
	ObservedAt time.Time
}

// OccupancyOutcome reports what a signal actually did once reconciled
// against the registry and session state, including the flag transition
// so detectors can log what they changed.
type OccupancyOutcome struct {
	Message       string                 `json:"message"`
	PreviousState bool                   `json:"previous_state"`
	NewState      bool                   `json:"new_state"`
	SlotCreated   bool                   `json:"slot_created,omitempty"`
	Slot          *models.ParkingSlot    `json:"slot,omitempty"`
	Session       *models.ParkingSession `json:"session,omitempty"`
}

const (
	OutcomeActivated   = "session_activated"
	OutcomeStarted     = "session_started"
	OutcomeCompleted   = "session_completed"
	OutcomeNoChange    = "no_change"
	OutcomeProtected   = "reservation_protected"
	OutcomeStale       = "stale_discarded"
	unknownVehiclePrefix = "UNKNOWN"
)

type occupancyAction int

const (
	actionTouch occupancyAction = iota
	actionProtect
	actionArrive
	actionDepart
)

// resolveOccupancy decides what a signal means given the slot's current
// flags. A vacancy signal against a reserved but empty slot is noise
// from the booking hold, never a departure, so it must not release the
// reservation.
func resolveOccupancy(isOccupied, isReserved, signalOccupied bool) occupancyAction {
	switch {
	case signalOccupied && isOccupied:
		return actionTouch
	case signalOccupied:
		return actionArrive
	case isOccupied:
		return actionDepart
	case isReserved:
		return actionProtect
	default:
		return actionTouch
	}
}

// ReportOccupancy reconciles one detector signal with the registry.
// Signals are idempotent (a repeat of the current state only refreshes
// the slot's last_updated) and ordered (a signal older than the newest
// one already applied for the slot is discarded).
func ReportOccupancy(signal OccupancySignal) (*OccupancyOutcome, error) {
	slot, created, err := GetOrCreateSlot(signal.SlotID)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if !signal.ObservedAt.IsZero() {
		if last := lib.LastSignalAt(ctx, signal.SlotID); !last.IsZero() && signal.ObservedAt.Before(last) {
			log.Printf("Discarding stale signal for %s (%s < %s)\n", signal.SlotID, signal.ObservedAt, last)
			return &OccupancyOutcome{
				Message:       OutcomeStale,
				PreviousState: slot.IsOccupied,
				NewState:      slot.IsOccupied,
				Slot:          slot,
				SlotCreated:   created,
			}, nil
		}
	}
	observedAt := signal.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now()
	}

	outcome := OccupancyOutcome{SlotCreated: created}
	conn := db.GetDb()
	err = conn.Transaction(func(tx *gorm.DB) error {
		locked, err := lockSlot(tx, slot.ID)
		if err != nil {
			return err
		}
		outcome.Slot = locked
		outcome.PreviousState = locked.IsOccupied

		switch resolveOccupancy(locked.IsOccupied, locked.IsReserved, signal.Occupied) {
		case actionTouch:
			outcome.Message = OutcomeNoChange
			return setSlotFlags(tx, locked, locked.IsOccupied, locked.IsReserved, observedAt)

		case actionProtect:
			outcome.Message = OutcomeProtected
			return nil

		case actionArrive:
			return handleArrival(tx, locked, observedAt, &outcome)

		case actionDepart:
			return handleDeparture(tx, locked, observedAt, &outcome)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	outcome.NewState = outcome.Slot.IsOccupied

	lib.RecordSignalAt(ctx, signal.SlotID, observedAt)
	if outcome.Message != OutcomeProtected {
		broadcastSlot(outcome.Slot)
	}
	return &outcome, nil
}

// handleArrival marks the slot occupied and promotes its pending session
// to active. When no session was waiting the vehicle is unannounced, so
// an active session is opened under a placeholder plate for staff to fix
// up at exit.
func handleArrival(tx *gorm.DB, slot *models.ParkingSlot, at time.Time, outcome *OccupancyOutcome) error {
	if err := setSlotFlags(tx, slot, true, false, at); err != nil {
		return err
	}
	var session models.ParkingSession
	err := tx.
		Where("slot_id = ? AND status = ?", slot.ID, types.SESSION_PENDING).
		Order("created_at DESC").
		First(&session).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		session = models.ParkingSession{
			VehicleNumber: fmt.Sprintf("%s-%s-%d", unknownVehiclePrefix, slot.SlotID, at.Unix()),
			SlotID:        slot.ID,
			Status:        string(types.SESSION_ACTIVE),
			StartTime:     &at,
		}
		if err := tx.Create(&session).Error; err != nil {
			return err
		}
		session.Slot = slot
		outcome.Message = OutcomeStarted
		outcome.Session = &session
		return nil
	} else if err != nil {
		return err
	}

	if err := activateSession(tx, &session, at); err != nil {
		return err
	}
	session.Slot = slot
	outcome.Message = OutcomeActivated
	outcome.Session = &session
	return markBookingArrived(tx, &session, at)
}

// handleDeparture clears the slot and completes whatever active session
// it held. A departure with no session on record still frees the slot so
// the registry converges on what the detector sees.
func handleDeparture(tx *gorm.DB, slot *models.ParkingSlot, at time.Time, outcome *OccupancyOutcome) error {
	var session models.ParkingSession
	err := tx.
		Where("slot_id = ? AND status = ?", slot.ID, types.SESSION_ACTIVE).
		Order("created_at DESC").
		First(&session).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		outcome.Message = OutcomeNoChange
		return setSlotFlags(tx, slot, false, slot.IsReserved, at)
	} else if err != nil {
		return err
	}

	if err := completeSession(tx, &session, slot, at); err != nil {
		return err
	}
	slot.LastUpdated = at
	outcome.Message = OutcomeCompleted
	outcome.Session = &session
	return closeLinkedBooking(tx, &session, at)
}

// markBookingArrived records on the linked booking that the camera saw
// the vehicle, completing the staff-plus-camera dual confirmation.
func markBookingArrived(tx *gorm.DB, session *models.ParkingSession, at time.Time) error {
	var booking models.Booking
	err := tx.
		Where("session_id = ? AND status IN ?", session.ID,
			[]string{string(types.BOOKING_CONFIRMED), string(types.BOOKING_ACTIVE)}).
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
			"status":             types.BOOKING_ACTIVE,
			"camera_detected":    true,
			"camera_detected_at": at,
		}).
		Error
}
