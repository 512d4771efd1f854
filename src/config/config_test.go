package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGraceDefaults(t *testing.T) {
	os.Unsetenv("ARRIVAL_GRACE_MINUTES")
	os.Unsetenv("PENDING_EXPIRY_MINUTES")
	os.Unsetenv("CANCEL_CUTOFF_MINUTES")
	os.Unsetenv("PREARRIVAL_RESERVE_MINUTES")

	assert.Equal(t, 30*time.Minute, ArrivalGrace())
	assert.Equal(t, 30*time.Minute, PendingExpiry())
	assert.Equal(t, 60*time.Minute, CancelCutoff())
	assert.Equal(t, 15*time.Minute, PreArrivalReserve())
}

func TestGraceOverrides(t *testing.T) {
	os.Setenv("ARRIVAL_GRACE_MINUTES", "45")
	defer os.Unsetenv("ARRIVAL_GRACE_MINUTES")
	assert.Equal(t, 45*time.Minute, ArrivalGrace())

	os.Setenv("CANCEL_CUTOFF_MINUTES", "not-a-number")
	defer os.Unsetenv("CANCEL_CUTOFF_MINUTES")
	assert.Equal(t, 60*time.Minute, CancelCutoff())

	os.Setenv("PENDING_EXPIRY_MINUTES", "-5")
	defer os.Unsetenv("PENDING_EXPIRY_MINUTES")
	assert.Equal(t, 30*time.Minute, PendingExpiry())
}

func TestSweepInterval(t *testing.T) {
	os.Unsetenv("SWEEP_INTERVAL_SECONDS")
	assert.Equal(t, time.Minute, SweepInterval())

	os.Setenv("SWEEP_INTERVAL_SECONDS", "15")
	defer os.Unsetenv("SWEEP_INTERVAL_SECONDS")
	assert.Equal(t, 15*time.Second, SweepInterval())
}

func TestGetDSN(t *testing.T) {
	os.Setenv("DATABASE_HOST", "localhost")
	os.Setenv("DATABASE_USER", "postgres")
	os.Setenv("DATABASE_NAME", "pms")
	defer func() {
		os.Unsetenv("DATABASE_HOST")
		os.Unsetenv("DATABASE_USER")
		os.Unsetenv("DATABASE_NAME")
	}()
	dsn := GetDSN()
	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "user=postgres")
	assert.Contains(t, dsn, "dbname=pms")
}
