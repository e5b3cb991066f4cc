package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/srgjo27/activity_booking/internal/core/domain"
)

const uniqueViolation = "23505"

type BookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *BookingRepository) CreateBooking(ctx context.Context, b *domain.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer tx.Rollback()

	queryHeader := `
	INSERT INTO bookings (
		id, reference, activity_id, customer_id, salesperson_id, slot_date, time_slot,
		adults, children, seniors,
		subtotal, tax_amount, service_fee, total_amount, paid_amount, currency,
		lead_name, lead_email, lead_phone, telegram_chat_id, special_requirements,
		status, reservation_id, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`

	_, err = tx.ExecContext(ctx, queryHeader,
		b.ID, b.Reference, b.ActivityID, b.CustomerID, b.SalespersonID, b.Slot.Date, b.Slot.TimeSlot,
		b.Participants.Adults, b.Participants.Children, b.Participants.Seniors,
		b.Pricing.Subtotal, b.Pricing.TaxAmount, b.Pricing.ServiceFee, b.Pricing.TotalAmount, b.PaidAmount, b.Currency,
		b.Lead.Name, b.Lead.Email, b.Lead.Phone, b.Lead.TelegramChatID, b.SpecialRequirements,
		b.Status, b.ReservationID, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == "bookings_reference_key" {
			return domain.ErrDuplicateReference
		}
		return fmt.Errorf("failed to insert booking header: %w", err)
	}

	if len(b.AddOns) > 0 {
		ids := make([]string, len(b.AddOns))
		addOnIDs := make([]string, len(b.AddOns))
		quantities := make([]int64, len(b.AddOns))
		unitPrices := make([]string, len(b.AddOns))
		totals := make([]string, len(b.AddOns))
		for i, a := range b.AddOns {
			ids[i] = a.ID.String()
			addOnIDs[i] = a.AddOnID.String()
			quantities[i] = int64(a.Quantity)
			unitPrices[i] = a.UnitPrice.String()
			totals[i] = a.TotalPrice.String()
		}

		_, err = tx.ExecContext(ctx, `
		INSERT INTO booking_add_ons (id, booking_id, add_on_id, quantity, unit_price, total_price)
		SELECT unnest($1::uuid[]), $2, unnest($3::uuid[]), unnest($4::int[]), unnest($5::numeric[]), unnest($6::numeric[])
		`, pq.Array(ids), b.ID, pq.Array(addOnIDs), pq.Array(quantities), pq.Array(unitPrices), pq.Array(totals))
		if err != nil {
			return fmt.Errorf("failed to insert booking add-ons: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

const selectBooking = `
	SELECT id, reference, activity_id, customer_id, salesperson_id, slot_date, time_slot,
		adults, children, seniors,
		subtotal, tax_amount, service_fee, total_amount, paid_amount, currency,
		lead_name, lead_email, lead_phone, telegram_chat_id, special_requirements,
		status, cancellation_reason, reservation_id,
		created_at, confirmed_at, cancelled_at, completed_at, no_show_at, updated_at,
		COALESCE((SELECT title FROM activities WHERE activities.id = bookings.activity_id), '') AS activity_title
	FROM bookings
	`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *BookingRepository) GetByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	return r.getOne(ctx, selectBooking+`WHERE reference = $1`, reference)
}

func (r *BookingRepository) GetByReservation(ctx context.Context, reservationID uuid.UUID) (*domain.Booking, error) {
	return r.getOne(ctx, selectBooking+`WHERE reservation_id = $1`, reservationID)
}

// ListByCustomer returns a customer's bookings newest first. Add-on lines
// are not loaded.
func (r *BookingRepository) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]domain.Booking, error) {
	rows, err := r.db.QueryContext(ctx, selectBooking+`
	WHERE customer_id = $1
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3
	`, customerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	defer rows.Close()

	bookings := []domain.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}

	return bookings, rows.Err()
}

func (r *BookingRepository) getOne(ctx context.Context, query string, arg any) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, err
	}

	addOns, err := r.addOns(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	b.AddOns = addOns

	return b, nil
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var (
		b             domain.Booking
		salespersonID uuid.NullUUID
		date          time.Time
		confirmedAt   sql.NullTime
		cancelledAt   sql.NullTime
		completedAt   sql.NullTime
		noShowAt      sql.NullTime
	)

	err := row.Scan(
		&b.ID, &b.Reference, &b.ActivityID, &b.CustomerID, &salespersonID, &date, &b.Slot.TimeSlot,
		&b.Participants.Adults, &b.Participants.Children, &b.Participants.Seniors,
		&b.Pricing.Subtotal, &b.Pricing.TaxAmount, &b.Pricing.ServiceFee, &b.Pricing.TotalAmount, &b.PaidAmount, &b.Currency,
		&b.Lead.Name, &b.Lead.Email, &b.Lead.Phone, &b.Lead.TelegramChatID, &b.SpecialRequirements,
		&b.Status, &b.CancellationReason, &b.ReservationID,
		&b.CreatedAt, &confirmedAt, &cancelledAt, &completedAt, &noShowAt, &b.UpdatedAt,
		&b.ActivityTitle,
	)
	if err != nil {
		return nil, err
	}

	b.Slot.ActivityID = b.ActivityID
	b.Slot.Date = date.Format(domain.DateLayout)
	if salespersonID.Valid {
		id := salespersonID.UUID
		b.SalespersonID = &id
	}
	b.ConfirmedAt = nullTime(confirmedAt)
	b.CancelledAt = nullTime(cancelledAt)
	b.CompletedAt = nullTime(completedAt)
	b.NoShowAt = nullTime(noShowAt)

	return &b, nil
}

func (r *BookingRepository) addOns(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingAddOn, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, add_on_id, quantity, unit_price, total_price
	FROM booking_add_ons
	WHERE booking_id = $1
	`, bookingID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var out []domain.BookingAddOn
	for rows.Next() {
		var a domain.BookingAddOn
		if err := rows.Scan(&a.ID, &a.AddOnID, &a.Quantity, &a.UnitPrice, &a.TotalPrice); err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	return out, rows.Err()
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, b *domain.Booking, from domain.BookingStatus) error {
	return updateStatus(ctx, r.db, b, from)
}

// updateStatus writes the transition guarded on the previous status, so
// two racing transitions cannot both win.
func updateStatus(ctx context.Context, ex execer, b *domain.Booking, from domain.BookingStatus) error {
	query := `
	UPDATE bookings
	SET status = $2,
		paid_amount = $3,
		cancellation_reason = $4,
		confirmed_at = $5,
		cancelled_at = $6,
		completed_at = $7,
		no_show_at = $8,
		updated_at = $9
	WHERE id = $1 AND status = $10
	`

	result, err := ex.ExecContext(ctx, query,
		b.ID, b.Status, b.PaidAmount, b.CancellationReason,
		b.ConfirmedAt, b.CancelledAt, b.CompletedAt, b.NoShowAt, b.UpdatedAt, from,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrStaleBooking
	}
	return nil
}

func (r *BookingRepository) ConfirmWithPayment(ctx context.Context, b *domain.Booking, p *domain.Payment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer tx.Rollback()

	if err := insertPayment(ctx, tx, p); err != nil {
		return err
	}
	if err := updateStatus(ctx, tx, b, domain.BookingPending); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *BookingRepository) CancelBooking(ctx context.Context, b *domain.Booking, from domain.BookingStatus, refund decimal.Decimal) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer tx.Rollback()

	if err := updateStatus(ctx, tx, b, from); err != nil {
		return err
	}

	if refund.IsPositive() {
		if err := refundPayments(ctx, tx, b, refund); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// refundPayments spreads refund over the booking's paid payments, oldest
// first.
func refundPayments(ctx context.Context, tx *sql.Tx, b *domain.Booking, refund decimal.Decimal) error {
	rows, err := tx.QueryContext(ctx, `
	SELECT id, amount FROM payments
	WHERE booking_id = $1 AND status = 'paid'
	ORDER BY created_at
	FOR UPDATE
	`, b.ID)
	if err != nil {
		return fmt.Errorf("failed to load payments: %w", err)
	}

	type paid struct {
		id     uuid.UUID
		amount decimal.Decimal
	}
	var payments []paid
	for rows.Next() {
		var p paid
		if err := rows.Scan(&p.id, &p.amount); err != nil {
			rows.Close()
			return err
		}
		payments = append(payments, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	remaining := refund
	for _, p := range payments {
		if !remaining.IsPositive() {
			break
		}
		amount := decimal.Min(p.amount, remaining)
		remaining = remaining.Sub(amount)

		_, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = 'refunded', refund_amount = $2, refund_reason = $3, refunded_at = $4
		WHERE id = $1
		`, p.id, amount, b.CancellationReason, b.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to refund payment %s: %w", p.id, err)
		}
	}

	return nil
}

// AddPayment stores a further payment on a confirmed booking and raises its
// paid amount. The update only applies while the booking is still confirmed
// and the new paid amount stays within the total.
func (r *BookingRepository) AddPayment(ctx context.Context, b *domain.Booking, p *domain.Payment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer tx.Rollback()

	if err := insertPayment(ctx, tx, p); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
	UPDATE bookings
	SET paid_amount = paid_amount + $2, updated_at = $3
	WHERE id = $1 AND status = 'confirmed' AND paid_amount + $2 <= total_amount
	`, b.ID, p.Amount, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update paid amount: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrStaleBooking
	}

	return tx.Commit()
}

func (r *BookingRepository) CreatePayment(ctx context.Context, p *domain.Payment) error {
	return insertPayment(ctx, r.db, p)
}

func insertPayment(ctx context.Context, ex execer, p *domain.Payment) error {
	query := `
	INSERT INTO payments (
		id, booking_id, method, amount, currency, status, transaction_id,
		failure_reason, refund_amount, paid_at, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := ex.ExecContext(ctx, query,
		p.ID, p.BookingID, p.Method, p.Amount, p.Currency, p.Status, p.TransactionID,
		p.FailureReason, p.RefundAmount, p.PaidAt, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (r *BookingRepository) CreateCommission(ctx context.Context, c *domain.Commission) error {
	query := `
	INSERT INTO commissions (
		id, booking_id, salesperson_id, booking_amount,
		platform_rate, platform_amount, salesperson_rate, salesperson_amount,
		operator_amount, status, calculated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.BookingID, c.SalespersonID, c.BookingAmount,
		c.PlatformRate, c.PlatformAmount, c.SalespersonRate, c.SalespersonAmount,
		c.OperatorAmount, c.Status, c.CalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert commission: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetExpiredBookings(ctx context.Context, createdBefore time.Time, limit int) ([]string, error) {
	query := `
	SELECT reference FROM bookings
	WHERE status = 'pending' AND created_at < $1
	ORDER BY created_at
	LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, createdBefore, limit)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}

		refs = append(refs, ref)
	}

	return refs, rows.Err()
}
