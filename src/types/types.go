package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any
type JSONBAny struct {
	Inner any
}

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

func (a JSONBAny) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a.Inner)
	return string(valueString), err
}
func (a *JSONBAny) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	var inner any
	if err := json.Unmarshal(b, &inner); err != nil {
		return err
	}
	a.Inner = inner
	return nil
}

type SessionStatus string

const (
	SESSION_PENDING   SessionStatus = "pending"
	SESSION_ACTIVE    SessionStatus = "active"
	SESSION_COMPLETED SessionStatus = "completed"
	SESSION_CANCELLED SessionStatus = "cancelled"
)

type BookingStatus string

const (
	BOOKING_PENDING   BookingStatus = "pending"
	BOOKING_CONFIRMED BookingStatus = "confirmed"
	BOOKING_ACTIVE    BookingStatus = "active"
	BOOKING_COMPLETED BookingStatus = "completed"
	BOOKING_CANCELLED BookingStatus = "cancelled"
	BOOKING_EXPIRED   BookingStatus = "expired"
)

type Role string

const (
	ROLE_CUSTOMER Role = "customer"
	ROLE_STAFF    Role = "staff"
	ROLE_MANAGER  Role = "manager"
)

// SlotFilter selects a subset of slots in list queries.
type SlotFilter string

const (
	SLOTS_ALL       SlotFilter = ""
	SLOTS_OCCUPIED  SlotFilter = "occupied"
	SLOTS_RESERVED  SlotFilter = "reserved"
	SLOTS_AVAILABLE SlotFilter = "available"
)

type UpdateSlotRequestBody struct {
	SlotID     string `json:"slot_id" binding:"required"`
	IsOccupied *bool  `json:"is_occupied" binding:"required"`
	DetectorID string `json:"detector_id,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
}

type CreateBookingRequestBody struct {
	CustomerID       string `json:"customer_id" binding:"required"`
	CustomerEmail    string `json:"customer_email,omitempty" binding:"omitempty,email"`
	VehicleNumber    string `json:"vehicle_number" binding:"required"`
	SlotID           string `json:"slot_id" binding:"required"`
	ScheduledArrival string `json:"scheduled_arrival" binding:"required,bookabledate" time_format:"2006-01-02 15:04:05 -07:00"`
	DurationMinutes  int    `json:"expected_duration_minutes" binding:"required,min=30"`
	Notes            string `json:"notes,omitempty"`
}

type ConfirmArrivalRequestBody struct {
	Force bool `json:"force,omitempty"`
}

type AssignSlotRequestBody struct {
	VehicleNumber  string `json:"vehicle_number" binding:"required"`
	SlotID         string `json:"slot_id,omitempty"`
	ZonePreference string `json:"zone_preference,omitempty"`
}

type SyncSlotsRequestBody struct {
	SlotIDs []string `json:"slot_ids" binding:"required,min=1"`
}

type SlotsQueryParams struct {
	Filter SlotFilter `form:"filter" binding:"omitempty,oneof=occupied reserved available"`
}

type LookupQueryParams struct {
	VehicleNumber string `form:"vehicle" binding:"required"`
}

type HistoryQueryParams struct {
	VehicleNumber string `form:"vehicle"`
	SlotID        string `form:"slot"`
	Limit         int    `form:"limit,default=50" binding:"omitempty,min=1,max=200"`
}

type BookingsQueryParams struct {
	CustomerID string `form:"customer_id"`
	Status     string `form:"status" binding:"omitempty,oneof=pending confirmed active completed cancelled expired"`
}

type EndSessionByVehicleRequestBody struct {
	VehicleNumber string `json:"vehicle_number" binding:"required"`
}

type UpdateRateRequestBody struct {
	PricePerMinute float64 `json:"price_per_minute" binding:"required,gt=0"`
}

type AvailabilityQueryParams struct {
	Arrival  string `form:"arrival" binding:"required"`
	Duration int    `form:"duration,default=60" binding:"omitempty,min=30"`
	Zone     string `form:"zone"`
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type SlotURIParams struct {
	SlotID string `uri:"slotId" binding:"required"`
}

// SlotStatusEntry is the per-slot payload of the status query, consumed
// by dashboards and the video-feed annotator.
type SlotStatusEntry struct {
	SlotID        string     `json:"slot_id"`
	Zone          string     `json:"zone"`
	IsOccupied    bool       `json:"is_occupied"`
	IsReserved    bool       `json:"is_reserved"`
	SessionStatus *string    `json:"session_status"`
	VehicleNumber *string    `json:"vehicle_number"`
	SessionStart  *time.Time `json:"session_start"`
	LastUpdated   time.Time  `json:"last_updated"`
}

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
