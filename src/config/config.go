package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

// Grace windows of the booking/session lifecycle. All are overridable
// through the environment so operators can tune them without a deploy.
const (
	DEFAULT_ARRIVAL_GRACE      = 30 * time.Minute
	DEFAULT_PENDING_EXPIRY     = 30 * time.Minute
	DEFAULT_CANCEL_CUTOFF      = 60 * time.Minute
	DEFAULT_PREARRIVAL_RESERVE = 15 * time.Minute
	DEFAULT_SWEEP_INTERVAL     = time.Minute
)

func durationFromEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	minutes, err := strconv.Atoi(v)
	if err != nil || minutes <= 0 {
		return fallback
	}
	return time.Duration(minutes) * time.Minute
}

// ArrivalGrace is the +/- window around scheduled_arrival within which
// staff may confirm a booking arrival without forcing.
func ArrivalGrace() time.Duration {
	return durationFromEnv("ARRIVAL_GRACE_MINUTES", DEFAULT_ARRIVAL_GRACE)
}

// PendingExpiry is how long a pending session may wait for camera
// detection before the sweeper cancels it.
func PendingExpiry() time.Duration {
	return durationFromEnv("PENDING_EXPIRY_MINUTES", DEFAULT_PENDING_EXPIRY)
}

// CancelCutoff is the minimum lead time before scheduled_arrival for a
// customer-initiated cancellation.
func CancelCutoff() time.Duration {
	return durationFromEnv("CANCEL_CUTOFF_MINUTES", DEFAULT_CANCEL_CUTOFF)
}

// PreArrivalReserve is how far ahead of scheduled_arrival the sweeper
// reserves a confirmed booking's slot.
func PreArrivalReserve() time.Duration {
	return durationFromEnv("PREARRIVAL_RESERVE_MINUTES", DEFAULT_PREARRIVAL_RESERVE)
}

func SweepInterval() time.Duration {
	v := os.Getenv("SWEEP_INTERVAL_SECONDS")
	if v == "" {
		return DEFAULT_SWEEP_INTERVAL
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 {
		return DEFAULT_SWEEP_INTERVAL
	}
	return time.Duration(seconds) * time.Second
}
