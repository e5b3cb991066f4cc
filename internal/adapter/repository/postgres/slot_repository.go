package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/srgjo27/activity_booking/internal/core/domain"
)

// statusAfter recomputes the slot status from the spots column after an
// update. Cancelled slots stay cancelled.
const statusAfter = `
	CASE
		WHEN status = 'cancelled' THEN status
		WHEN %[1]s = 0 THEN 'full'
		WHEN %[1]s <= $5 THEN 'limited'
		ELSE 'available'
	END`

type SlotRepository struct {
	db *sql.DB
}

func NewSlotRepository(db *sql.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SlotRepository) GetSlot(ctx context.Context, key domain.SlotKey) (*domain.Slot, error) {
	return getSlot(ctx, r.db, key)
}

func getSlot(ctx context.Context, q queryer, key domain.SlotKey) (*domain.Slot, error) {
	query := `
	SELECT max_capacity, available_spots, status, weather_status, updated_at
	FROM availability_slots
	WHERE activity_id = $1 AND slot_date = $2 AND time_slot = $3
	`

	slot := domain.Slot{Key: key}
	err := q.QueryRowContext(ctx, query, key.ActivityID, key.Date, key.TimeSlot).Scan(
		&slot.MaxCapacity,
		&slot.AvailableSpots,
		&slot.Status,
		&slot.WeatherStatus,
		&slot.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSlotNotFound
		}
		return nil, err
	}

	return &slot, nil
}

func (r *SlotRepository) ListSlots(ctx context.Context, activityID uuid.UUID, from, to string) ([]domain.Slot, error) {
	query := `
	SELECT slot_date, time_slot, max_capacity, available_spots, status, weather_status, updated_at
	FROM availability_slots
	WHERE activity_id = $1 AND slot_date BETWEEN $2 AND $3
	ORDER BY slot_date, time_slot
	`

	rows, err := r.db.QueryContext(ctx, query, activityID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		var date time.Time
		slot := domain.Slot{Key: domain.SlotKey{ActivityID: activityID}}
		if err := rows.Scan(
			&date,
			&slot.Key.TimeSlot,
			&slot.MaxCapacity,
			&slot.AvailableSpots,
			&slot.Status,
			&slot.WeatherStatus,
			&slot.UpdatedAt,
		); err != nil {
			return nil, err
		}
		slot.Key.Date = date.Format(domain.DateLayout)
		slots = append(slots, slot)
	}

	return slots, rows.Err()
}

// Reserve takes the spots with one conditional UPDATE; concurrent callers
// serialize on the slot row and the loser sees zero rows affected.
func (r *SlotRepository) Reserve(ctx context.Context, token domain.ReservationToken) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	key := token.Slot
	query := `
	UPDATE availability_slots
	SET available_spots = available_spots - $4,
		status = ` + fmt.Sprintf(statusAfter, "available_spots - $4") + `,
		updated_at = NOW()
	WHERE activity_id = $1 AND slot_date = $2 AND time_slot = $3
		AND available_spots >= $4
		AND status <> 'cancelled'
		AND weather_status <> 'cancelled'
	`

	result, err := tx.ExecContext(ctx, query, key.ActivityID, key.Date, key.TimeSlot, token.Quantity, domain.LimitedThreshold)
	if err != nil {
		return fmt.Errorf("failed to reserve spots: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		slot, err := getSlot(ctx, tx, key)
		if err != nil {
			return err
		}
		return &domain.CapacityError{
			Slot:      key,
			Requested: token.Quantity,
			SpotsLeft: slot.AvailableSpots,
			Cancelled: slot.IsCancelled(),
		}
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO reservations (id, activity_id, slot_date, time_slot, quantity, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	`, token.ID, key.ActivityID, key.Date, key.TimeSlot, token.Quantity, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Release marks the reservation released and gives its spots back in the
// same transaction. A reservation that was already released is left alone.
func (r *SlotRepository) Release(ctx context.Context, reservationID uuid.UUID) (domain.ReservationToken, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ReservationToken{}, false, err
	}
	defer tx.Rollback()

	token := domain.ReservationToken{ID: reservationID}
	var date time.Time

	err = tx.QueryRowContext(ctx, `
	UPDATE reservations
	SET released_at = NOW()
	WHERE id = $1 AND released_at IS NULL
	RETURNING activity_id, slot_date, time_slot, quantity, created_at
	`, reservationID).Scan(&token.Slot.ActivityID, &date, &token.Slot.TimeSlot, &token.Quantity, &token.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		existing, err := r.getReservation(ctx, tx, reservationID)
		if err != nil {
			return domain.ReservationToken{}, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return domain.ReservationToken{}, false, fmt.Errorf("failed to release reservation: %w", err)
	}
	token.Slot.Date = date.Format(domain.DateLayout)

	if err := giveBack(ctx, tx, token.Slot, token.Quantity); err != nil {
		return domain.ReservationToken{}, false, err
	}

	if err = tx.Commit(); err != nil {
		return domain.ReservationToken{}, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return token, true, nil
}

func giveBack(ctx context.Context, tx *sql.Tx, key domain.SlotKey, quantity int) error {
	query := `
	UPDATE availability_slots
	SET available_spots = LEAST(available_spots + $4, max_capacity),
		status = ` + fmt.Sprintf(statusAfter, "LEAST(available_spots + $4, max_capacity)") + `,
		updated_at = NOW()
	WHERE activity_id = $1 AND slot_date = $2 AND time_slot = $3
	`

	_, err := tx.ExecContext(ctx, query, key.ActivityID, key.Date, key.TimeSlot, quantity, domain.LimitedThreshold)
	if err != nil {
		return fmt.Errorf("failed to return spots: %w", err)
	}
	return nil
}

func (r *SlotRepository) getReservation(ctx context.Context, q queryer, id uuid.UUID) (domain.ReservationToken, error) {
	token := domain.ReservationToken{ID: id}
	var date time.Time

	err := q.QueryRowContext(ctx, `
	SELECT activity_id, slot_date, time_slot, quantity, created_at
	FROM reservations
	WHERE id = $1
	`, id).Scan(&token.Slot.ActivityID, &date, &token.Slot.TimeSlot, &token.Quantity, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ReservationToken{}, domain.ErrReservationNotFound
		}
		return domain.ReservationToken{}, err
	}

	token.Slot.Date = date.Format(domain.DateLayout)
	return token, nil
}

func (r *SlotRepository) Consume(ctx context.Context, reservationID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
	UPDATE reservations
	SET consumed_at = NOW()
	WHERE id = $1 AND consumed_at IS NULL
	`, reservationID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		_, err := r.getReservation(ctx, r.db, reservationID)
		return err
	}
	return nil
}

// CancelSlot closes the slot and releases every reservation still holding
// spots on it, confirmed ones included. Reservations of completed or no-show
// bookings stay consumed.
func (r *SlotRepository) CancelSlot(ctx context.Context, key domain.SlotKey, weather domain.WeatherStatus) ([]domain.ReservationToken, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
	UPDATE availability_slots
	SET status = 'cancelled', weather_status = $4, updated_at = NOW()
	WHERE activity_id = $1 AND slot_date = $2 AND time_slot = $3
	`, key.ActivityID, key.Date, key.TimeSlot, weather)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel slot: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, domain.ErrSlotNotFound
	}

	rows, err := tx.QueryContext(ctx, `
	UPDATE reservations
	SET released_at = NOW()
	WHERE activity_id = $1 AND slot_date = $2 AND time_slot = $3 AND released_at IS NULL
		AND NOT EXISTS (
			SELECT 1 FROM bookings
			WHERE bookings.reservation_id = reservations.id
				AND bookings.status IN ('completed', 'no_show')
		)
	RETURNING id, quantity, created_at
	`, key.ActivityID, key.Date, key.TimeSlot)
	if err != nil {
		return nil, fmt.Errorf("failed to release reservations: %w", err)
	}

	var (
		tokens []domain.ReservationToken
		total  int
	)
	for rows.Next() {
		tok := domain.ReservationToken{Slot: key}
		if err := rows.Scan(&tok.ID, &tok.Quantity, &tok.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		total += tok.Quantity
		tokens = append(tokens, tok)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if total > 0 {
		if err := giveBack(ctx, tx, key, total); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return tokens, nil
}
