package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/srgjo27/activity_booking/internal/core/domain"
)

type ActivityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) GetByID(ctx context.Context, activityID uuid.UUID) (*domain.Activity, error) {
	query := `
	SELECT id, title, min_participants, max_participants, duration_minutes,
		price_adult, price_child, price_senior, seasonal_multiplier
	FROM activities
	WHERE id = $1
	`

	var a domain.Activity
	err := r.db.QueryRowContext(ctx, query, activityID).Scan(
		&a.ID,
		&a.Title,
		&a.MinParticipants,
		&a.MaxParticipants,
		&a.DurationMinutes,
		&a.Prices.Adult,
		&a.Prices.Child,
		&a.Prices.Senior,
		&a.SeasonalMultiplier,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrActivityNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
	SELECT id, name, unit_price
	FROM activity_add_ons
	WHERE activity_id = $1 AND active
	ORDER BY name
	`, activityID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var o domain.AddOnOffer
		if err := rows.Scan(&o.ID, &o.Name, &o.UnitPrice); err != nil {
			return nil, err
		}
		a.AddOns = append(a.AddOns, o)
	}

	return &a, rows.Err()
}
