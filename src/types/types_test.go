package types

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ErrorStatus(ErrNotFound))
	assert.Equal(t, http.StatusNotFound, ErrorStatus(ErrNoSlotsAvailable))
	assert.Equal(t, http.StatusConflict, ErrorStatus(ErrSlotUnavailable))
	assert.Equal(t, http.StatusConflict, ErrorStatus(ErrConflict))
	assert.Equal(t, http.StatusUnprocessableEntity, ErrorStatus(ErrInvalidState))
	assert.Equal(t, http.StatusUnprocessableEntity, ErrorStatus(ErrTooEarly))
	assert.Equal(t, http.StatusUnprocessableEntity, ErrorStatus(ErrTooLate))
	assert.Equal(t, http.StatusInternalServerError, ErrorStatus(fmt.Errorf("boom")))
}

func TestErrorStatusWrapped(t *testing.T) {
	wrapped := fmt.Errorf("cancel booking: %w", ErrTooLate)
	assert.Equal(t, http.StatusUnprocessableEntity, ErrorStatus(wrapped))
}

func TestJSONBRoundTrip(t *testing.T) {
	in := JSONB{"slot_id": "A1", "count": float64(3)}
	val, err := in.Value()
	assert.Nil(t, err)

	var out JSONB
	err = out.Scan([]byte(val.(string)))
	assert.Nil(t, err)
	assert.Equal(t, in, out)
}

func TestJSONBAnyScalar(t *testing.T) {
	in := JSONBAny{Inner: 2.5}
	val, err := in.Value()
	assert.Nil(t, err)
	assert.Equal(t, "2.5", val.(string))

	var out JSONBAny
	err = out.Scan([]byte(val.(string)))
	assert.Nil(t, err)
	assert.Equal(t, 2.5, out.Inner)
}

func TestJSONBScanRejectsNonBytes(t *testing.T) {
	var out JSONB
	assert.NotNil(t, out.Scan("not bytes"))
}
