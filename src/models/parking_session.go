package models

import (
	"fmt"
	"strings"
	"time"

	"pms/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ParkingSession is one parking visit: created pending when a slot is
// assigned, active once the vehicle is physically detected, completed or
// cancelled at the end. At most one non-terminal session exists per slot
// at any instant; the managers in common enforce that inside slot-scoped
// transactions.
type ParkingSession struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	SessionID     string     `gorm:"uniqueIndex" json:"session_id"`
	VehicleNumber string     `gorm:"index" json:"vehicle_number"`
	SlotID        uint       `json:"slot_id"`
	Status        string     `gorm:"default:'pending'" json:"status"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	Fee           *float64   `json:"fee,omitempty"`

	Slot *ParkingSlot `gorm:"foreignKey:slot_id" json:"slot,omitempty"`

	types.Timestamps
}

func (s *ParkingSession) BeforeCreate(tx *gorm.DB) error {
	if s.SessionID != "" {
		return nil
	}
	id, err := generateRecordID(tx, &ParkingSession{}, "session_id", "SESS")
	if err != nil {
		return err
	}
	s.SessionID = id
	return nil
}

// Terminal reports whether the session reached one of its final states.
func (s *ParkingSession) Terminal() bool {
	return s.Status == string(types.SESSION_COMPLETED) || s.Status == string(types.SESSION_CANCELLED)
}

// CalculateFee prices a visit at whole elapsed minutes (seconds
// truncated) times the system rate.
func (s *ParkingSession) CalculateFee(rate float64, end time.Time) float64 {
	if s.StartTime == nil || !end.After(*s.StartTime) {
		return 0
	}
	minutes := int64(end.Sub(*s.StartTime).Seconds()) / 60
	return float64(minutes) * rate
}

// generateRecordID builds the date-bucketed identifiers used for
// sessions and bookings, e.g. SESS-20240101-0004. Suffixes count up per
// day; a concurrent insert can race the count, so each candidate is
// re-checked and retried a few times before falling back to a random
// suffix.
func generateRecordID(tx *gorm.DB, model any, column, prefix string) (string, error) {
	date := time.Now().UTC().Format("20060102")
	bucket := fmt.Sprintf("%s-%s-", prefix, date)

	var count int64
	if err := tx.Model(model).Unscoped().
		Where(fmt.Sprintf("%s LIKE ?", column), bucket+"%").
		Count(&count).Error; err != nil {
		return "", err
	}

	for attempt := int64(1); attempt <= 5; attempt++ {
		candidate := fmt.Sprintf("%s%04d", bucket, count+attempt)
		var exists int64
		if err := tx.Model(model).Unscoped().
			Where(fmt.Sprintf("%s = ?", column), candidate).
			Count(&exists).Error; err != nil {
			return "", err
		}
		if exists == 0 {
			return candidate, nil
		}
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return bucket + suffix, nil
}
