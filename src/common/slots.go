package common

import (
	"errors"
	"log"
	"os"
	"time"

	"pms/src/db"
	"pms/src/lib"
	"pms/src/models"
	"pms/src/models/scopes"
	"pms/src/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetOrCreateSlot looks a slot up by its public id and registers it on
// first sight. Detectors report slots the registry has never seen, so
// unknown ids become new vacant slots rather than errors.
func GetOrCreateSlot(slotID string) (*models.ParkingSlot, bool, error) {
	conn := db.GetDb()
	var slot models.ParkingSlot
	err := conn.Where(&models.ParkingSlot{SlotID: slotID}).First(&slot).Error
	if err == nil {
		return &slot, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	slot = models.ParkingSlot{SlotID: slotID, LastUpdated: time.Now()}
	if err := conn.Create(&slot).Error; err != nil {
		// Lost a create race with another request for the same id.
		if ferr := conn.Where(&models.ParkingSlot{SlotID: slotID}).First(&slot).Error; ferr == nil {
			return &slot, false, nil
		}
		return nil, false, err
	}
	log.Printf("Registered new slot %s\n", slotID)
	return &slot, true, nil
}

// GetSlot returns the slot or ErrNotFound, never auto-registering.
func GetSlot(slotID string) (*models.ParkingSlot, error) {
	conn := db.GetDb()
	var slot models.ParkingSlot
	err := conn.Where(&models.ParkingSlot{SlotID: slotID}).First(&slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &slot, nil
}

// ListSlots returns slots matching the filter, ordered by slot id.
func ListSlots(filter types.SlotFilter) ([]models.ParkingSlot, error) {
	conn := db.GetDb()
	var slots []models.ParkingSlot
	q := conn.Order("slot_id")
	switch filter {
	case types.SLOTS_OCCUPIED:
		q = q.Where("is_occupied = true")
	case types.SLOTS_RESERVED:
		q = q.Where("is_reserved = true")
	case types.SLOTS_AVAILABLE:
		q = q.Where("is_occupied = false AND is_reserved = false")
	}
	if err := q.Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}

// SlotStatusReport joins every slot with its current non-terminal
// session, the shape the dashboard and the video annotator poll for.
func SlotStatusReport() ([]types.SlotStatusEntry, error) {
	slots, err := ListSlots(types.SLOTS_ALL)
	if err != nil {
		return nil, err
	}
	conn := db.GetDb()
	entries := make([]types.SlotStatusEntry, 0, len(slots))
	for _, slot := range slots {
		entry := types.SlotStatusEntry{
			SlotID:      slot.SlotID,
			Zone:        slot.Zone(),
			IsOccupied:  slot.IsOccupied,
			IsReserved:  slot.IsReserved,
			LastUpdated: slot.LastUpdated,
		}
		var session models.ParkingSession
		err := conn.
			Scopes(scopes.WithSlot(slot.ID), scopes.NonTerminalSessions).
			Order("created_at DESC").
			First(&session).
			Error
		if err == nil {
			status := session.Status
			vehicle := session.VehicleNumber
			entry.SessionStatus = &status
			entry.VehicleNumber = &vehicle
			entry.SessionStart = session.StartTime
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// SyncSlots registers any of the provided slot ids the registry does not
// know yet and returns how many were created. Used by the layout sync
// endpoint when a lot is commissioned or repainted.
func SyncSlots(slotIDs []string) (int, error) {
	created := 0
	for _, id := range slotIDs {
		if id == "" {
			continue
		}
		_, isNew, err := GetOrCreateSlot(id)
		if err != nil {
			return created, err
		}
		if isNew {
			created++
		}
	}
	return created, nil
}

// lockSlot reloads a slot row under FOR UPDATE inside tx. Every state
// transition on a slot goes through this so concurrent requests for the
// same slot serialize instead of interleaving.
func lockSlot(tx *gorm.DB, id uint) (*models.ParkingSlot, error) {
	var slot models.ParkingSlot
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&slot).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &slot, nil
}

// setSlotFlags persists both flags and stamps LastUpdated. A zero
// observedAt means the change came from a staff action rather than a
// detector signal, so the wall clock is used.
func setSlotFlags(tx *gorm.DB, slot *models.ParkingSlot, occupied, reserved bool, observedAt time.Time) error {
	if observedAt.IsZero() {
		observedAt = time.Now()
	}
	slot.IsOccupied = occupied
	slot.IsReserved = reserved
	slot.LastUpdated = observedAt
	return tx.
		Model(&models.ParkingSlot{}).
		Where("id = ?", slot.ID).
		Updates(map[string]any{
			"is_occupied":  occupied,
			"is_reserved":  reserved,
			"last_updated": observedAt,
		}).
		Error
}

// slotEventPayload is the wire shape shared by the websocket feed and
// the kafka slot-state stream.
func slotEventPayload(slot *models.ParkingSlot) map[string]any {
	return map[string]any{
		"type":         "slot_update",
		"slot_id":      slot.SlotID,
		"zone":         slot.Zone(),
		"is_occupied":  slot.IsOccupied,
		"is_reserved":  slot.IsReserved,
		"last_updated": slot.LastUpdated,
	}
}

// broadcastSlot pushes the slot's new state to websocket subscribers
// and, when a broker is configured, onto the slot-state topic.
func broadcastSlot(slot *models.ParkingSlot) {
	payload := slotEventPayload(slot)
	lib.GetWsHub().BroadcastJSON(payload)
	if os.Getenv("KAFKA_BROKER") != "" {
		go func() {
			if err := lib.KafkaProduceMessage("pms-api", lib.SLOT_STATE_TOPIC, payload); err != nil {
				log.Printf("Error publishing slot state for %s: %s\n", slot.SlotID, err.Error())
			}
		}()
	}
}
