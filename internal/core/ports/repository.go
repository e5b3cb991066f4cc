package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/srgjo27/activity_booking/internal/core/domain"
)

type ActivityRepository interface {
	GetByID(ctx context.Context, activityID uuid.UUID) (*domain.Activity, error)
}

// SlotRepository owns the capacity counters. Reserve and Release must each
// be a single atomic operation at the storage layer.
type SlotRepository interface {
	GetSlot(ctx context.Context, key domain.SlotKey) (*domain.Slot, error)
	ListSlots(ctx context.Context, activityID uuid.UUID, from, to string) ([]domain.Slot, error)
	// Reserve decrements available spots by quantity only when enough are
	// left and records the reservation. It fails with *domain.CapacityError
	// when the conditional update matches no row.
	Reserve(ctx context.Context, token domain.ReservationToken) error
	// Release returns the reserved spots and the token they belonged to.
	// released is false when the token had already been released.
	Release(ctx context.Context, reservationID uuid.UUID) (token domain.ReservationToken, released bool, err error)
	Consume(ctx context.Context, reservationID uuid.UUID) error
	// CancelSlot marks the slot cancelled and releases every outstanding
	// reservation on it, returning the released tokens.
	CancelSlot(ctx context.Context, key domain.SlotKey, weather domain.WeatherStatus) ([]domain.ReservationToken, error)
}

type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *domain.Booking) error
	GetByReference(ctx context.Context, reference string) (*domain.Booking, error)
	GetByReservation(ctx context.Context, reservationID uuid.UUID) (*domain.Booking, error)
	// ListByCustomer returns the customer's bookings, newest first.
	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]domain.Booking, error)
	// UpdateStatus persists booking's status, timestamps and cancellation
	// reason, guarded on the row still being in status from.
	UpdateStatus(ctx context.Context, booking *domain.Booking, from domain.BookingStatus) error
	// ConfirmWithPayment stores the captured payment and the confirmed
	// booking in one transaction.
	ConfirmWithPayment(ctx context.Context, booking *domain.Booking, payment *domain.Payment) error
	// CancelBooking stores the cancelled booking and, when refund is
	// positive, moves its paid payments to refunded in the same transaction.
	CancelBooking(ctx context.Context, booking *domain.Booking, from domain.BookingStatus, refund decimal.Decimal) error
	// AddPayment stores a deposit or balance payment on a confirmed booking
	// and raises its paid amount, failing with domain.ErrStaleBooking when
	// the booking left confirmed or the total would be exceeded.
	AddPayment(ctx context.Context, booking *domain.Booking, payment *domain.Payment) error
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	CreateCommission(ctx context.Context, commission *domain.Commission) error
	GetExpiredBookings(ctx context.Context, createdBefore time.Time, limit int) ([]string, error)
}

type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	Find(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int64, error)
	Stats(ctx context.Context, now time.Time) (*domain.AuditStats, error)
}

// SlotCache holds slot listings per activity. Invalidate drops every
// cached listing of the slot's activity.
type SlotCache interface {
	Get(ctx context.Context, activityID uuid.UUID, from, to string) ([]domain.Slot, bool, error)
	Set(ctx context.Context, activityID uuid.UUID, from, to string, slots []domain.Slot) error
	Invalidate(ctx context.Context, key domain.SlotKey) error
}
