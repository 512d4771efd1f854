package types

import (
	"errors"
	"net/http"
)

// Business errors returned by the lifecycle managers. Handlers translate
// these into 4xx responses; anything else is an infrastructure failure
// and surfaces as a 500.
var (
	ErrSlotUnavailable  = errors.New("slot unavailable")
	ErrConflict         = errors.New("booking conflict")
	ErrInvalidState     = errors.New("invalid state")
	ErrTooEarly         = errors.New("arrival too early")
	ErrTooLate          = errors.New("arrival too late")
	ErrNotFound         = errors.New("not found")
	ErrNoSlotsAvailable = errors.New("no slots available")
)

func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNoSlotsAvailable):
		return http.StatusNotFound
	case errors.Is(err, ErrSlotUnavailable), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrTooEarly), errors.Is(err, ErrTooLate):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
