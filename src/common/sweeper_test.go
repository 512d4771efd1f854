package common

import (
	"testing"
	"time"

	"pms/src/db"
	"pms/src/types"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockConn(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}

	return gormDB, mock
}

func TestExpireNoShowBookingsLocksSlotFirst(t *testing.T) {
	conn, mock := newMockConn(t)
	db.NewDB(conn)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	scheduled := now.Add(-2 * time.Hour)

	mock.ExpectQuery(`SELECT (.+) FROM "bookings" WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "vehicle_number", "slot_id", "status", "scheduled_arrival"}).
			AddRow(7, "BOOK-20250601-0001", "KA01AB1234", 3, string(types.BOOKING_CONFIRMED), scheduled))

	mock.ExpectBegin()
	// The slot row is locked before the booking row is touched.
	mock.ExpectQuery(`SELECT (.+) FROM "parking_slots" WHERE id = (.+) FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slot_id", "is_occupied", "is_reserved", "last_updated"}).
			AddRow(3, "A3", false, true, scheduled))
	mock.ExpectExec(`UPDATE "bookings" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// releaseBookingHold re-locks the held slot and frees the bare hold.
	mock.ExpectQuery(`SELECT (.+) FROM "parking_slots" WHERE id = (.+) FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slot_id", "is_occupied", "is_reserved", "last_updated"}).
			AddRow(3, "A3", false, true, scheduled))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "parking_sessions"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`UPDATE "parking_slots" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, expireNoShowBookings(now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireNoShowBookingsSkipsRacedConfirm(t *testing.T) {
	conn, mock := newMockConn(t)
	db.NewDB(conn)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	scheduled := now.Add(-2 * time.Hour)

	mock.ExpectQuery(`SELECT (.+) FROM "bookings" WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "vehicle_number", "slot_id", "status", "scheduled_arrival"}).
			AddRow(7, "BOOK-20250601-0001", "KA01AB1234", 3, string(types.BOOKING_CONFIRMED), scheduled))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "parking_slots" WHERE id = (.+) FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slot_id", "is_occupied", "is_reserved", "last_updated"}).
			AddRow(3, "A3", false, true, scheduled))

	// The guarded update matches nothing when a confirm-arrival slipped
	// in between the scan and the expiry, and nothing else runs.
	mock.ExpectExec(`UPDATE "bookings" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	assert.NoError(t, expireNoShowBookings(now))
	assert.NoError(t, mock.ExpectationsWereMet())
}
