package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srgjo27/activity_booking/internal/adapter/repository/postgres"
	"github.com/srgjo27/activity_booking/internal/core/domain"
)

func testKey() domain.SlotKey {
	return domain.SlotKey{ActivityID: uuid.New(), Date: "2025-03-01", TimeSlot: "10:00"}
}

func TestSlotRepository_ReserveSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewSlotRepository(db)
	key := testKey()
	token := domain.ReservationToken{ID: uuid.New(), Slot: key, Quantity: 3, CreatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE availability_slots SET available_spots = available_spots - \$4`).
		WithArgs(key.ActivityID, key.Date, key.TimeSlot, 3, domain.LimitedThreshold).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO reservations`).
		WithArgs(token.ID, key.ActivityID, key.Date, key.TimeSlot, 3, token.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = repo.Reserve(context.Background(), token)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_ReserveNoRowsIsCapacityError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewSlotRepository(db)
	key := testKey()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE availability_slots`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT max_capacity, available_spots, status, weather_status, updated_at FROM availability_slots`).
		WithArgs(key.ActivityID, key.Date, key.TimeSlot).
		WillReturnRows(sqlmock.NewRows([]string{"max_capacity", "available_spots", "status", "weather_status", "updated_at"}).
			AddRow(4, 1, "limited", "clear", time.Now()))
	mock.ExpectRollback()

	err = repo.Reserve(context.Background(), domain.ReservationToken{ID: uuid.New(), Slot: key, Quantity: 2})

	var ce *domain.CapacityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.SpotsLeft)
	assert.Equal(t, 2, ce.Requested)
	assert.False(t, ce.Cancelled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_ReserveOnCancelledSlot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewSlotRepository(db)
	key := testKey()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE availability_slots`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM availability_slots`).
		WillReturnRows(sqlmock.NewRows([]string{"max_capacity", "available_spots", "status", "weather_status", "updated_at"}).
			AddRow(8, 8, "available", "cancelled", time.Now()))
	mock.ExpectRollback()

	err = repo.Reserve(context.Background(), domain.ReservationToken{ID: uuid.New(), Slot: key, Quantity: 1})

	assert.ErrorIs(t, err, domain.ErrSlotCancelled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_ReleaseReturnsSpots(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewSlotRepository(db)
	key := testKey()
	id := uuid.New()
	date, _ := time.Parse(domain.DateLayout, key.Date)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE reservations SET released_at = NOW\(\) WHERE id = \$1 AND released_at IS NULL`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"activity_id", "slot_date", "time_slot", "quantity", "created_at"}).
			AddRow(key.ActivityID.String(), date, key.TimeSlot, 3, time.Now()))
	mock.ExpectExec(`SET available_spots = LEAST\(available_spots \+ \$4, max_capacity\)`).
		WithArgs(key.ActivityID, key.Date, key.TimeSlot, 3, domain.LimitedThreshold).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	token, released, err := repo.Release(context.Background(), id)

	require.NoError(t, err)
	assert.True(t, released)
	assert.Equal(t, key, token.Slot)
	assert.Equal(t, 3, token.Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_ReleaseTwiceIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewSlotRepository(db)
	key := testKey()
	id := uuid.New()
	date, _ := time.Parse(domain.DateLayout, key.Date)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE reservations`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"activity_id", "slot_date", "time_slot", "quantity", "created_at"}))
	mock.ExpectQuery(`SELECT activity_id, slot_date, time_slot, quantity, created_at FROM reservations`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"activity_id", "slot_date", "time_slot", "quantity", "created_at"}).
			AddRow(key.ActivityID.String(), date, key.TimeSlot, 3, time.Now()))
	mock.ExpectRollback()

	_, released, err := repo.Release(context.Background(), id)

	require.NoError(t, err)
	assert.False(t, released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_ReleaseUnknown(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewSlotRepository(db)
	id := uuid.New()
	cols := []string{"activity_id", "slot_date", "time_slot", "quantity", "created_at"}

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE reservations`).WithArgs(id).WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery(`FROM reservations`).WithArgs(id).WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectRollback()

	_, _, err = repo.Release(context.Background(), id)

	assert.ErrorIs(t, err, domain.ErrReservationNotFound)
}

func TestSlotRepository_CancelSlotReleasesHolds(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewSlotRepository(db)
	key := testKey()
	a, b := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`SET status = 'cancelled', weather_status = \$4`).
		WithArgs(key.ActivityID, key.Date, key.TimeSlot, domain.WeatherCancelled).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`UPDATE reservations SET released_at = NOW\(\) WHERE activity_id = \$1`).
		WithArgs(key.ActivityID, key.Date, key.TimeSlot).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quantity", "created_at"}).
			AddRow(a.String(), 2, time.Now()).
			AddRow(b.String(), 3, time.Now()))
	mock.ExpectExec(`SET available_spots = LEAST`).
		WithArgs(key.ActivityID, key.Date, key.TimeSlot, 5, domain.LimitedThreshold).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tokens, err := repo.CancelSlot(context.Background(), key, domain.WeatherCancelled)

	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, a, tokens[0].ID)
	assert.Equal(t, key, tokens[1].Slot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_CancelSlotKeepsSettledReservations(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewSlotRepository(db)
	key := testKey()

	mock.ExpectBegin()
	mock.ExpectExec(`SET status = 'cancelled'`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`released_at IS NULL AND NOT EXISTS \( SELECT 1 FROM bookings WHERE bookings.reservation_id = reservations.id AND bookings.status IN \('completed', 'no_show'\) \)`).
		WithArgs(key.ActivityID, key.Date, key.TimeSlot).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quantity", "created_at"}))
	mock.ExpectCommit()

	tokens, err := repo.CancelSlot(context.Background(), key, domain.WeatherCancelled)

	require.NoError(t, err)
	assert.Empty(t, tokens)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_GetSlotNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewSlotRepository(db)

	mock.ExpectQuery(`FROM availability_slots`).
		WillReturnRows(sqlmock.NewRows([]string{"max_capacity", "available_spots", "status", "weather_status", "updated_at"}))

	_, err = repo.GetSlot(context.Background(), testKey())

	assert.ErrorIs(t, err, domain.ErrSlotNotFound)
}

func TestSlotRepository_ListSlots(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewSlotRepository(db)
	activityID := uuid.New()
	day, _ := time.Parse(domain.DateLayout, "2025-03-02")

	mock.ExpectQuery(`WHERE activity_id = \$1 AND slot_date BETWEEN \$2 AND \$3`).
		WithArgs(activityID, "2025-03-01", "2025-03-07").
		WillReturnRows(sqlmock.NewRows([]string{"slot_date", "time_slot", "max_capacity", "available_spots", "status", "weather_status", "updated_at"}).
			AddRow(day, "09:00", 10, 2, "limited", "warning", time.Now()))

	slots, err := repo.ListSlots(context.Background(), activityID, "2025-03-01", "2025-03-07")

	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "2025-03-02", slots[0].Key.Date)
	assert.Equal(t, domain.SlotLimited, slots[0].Status)
	assert.Equal(t, domain.WeatherWarning, slots[0].WeatherStatus)
}
