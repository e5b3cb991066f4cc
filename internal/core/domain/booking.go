package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
	BookingNoShow    BookingStatus = "no_show"
)

var transitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled, BookingNoShow},
}

func ParseBookingStatus(s string) (BookingStatus, error) {
	switch st := BookingStatus(s); st {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted, BookingNoShow:
		return st, nil
	}
	return "", fmt.Errorf("unknown booking status %q", s)
}

func CanTransition(from, to BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition returns an *InvalidTransitionError when to is not reachable
// from s.
func (s BookingStatus) Transition(to BookingStatus) error {
	if !CanTransition(s, to) {
		return &InvalidTransitionError{From: s, To: to}
	}
	return nil
}

func (s BookingStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

type LeadCustomer struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone,omitempty"`
	TelegramChatID string `json:"telegram_chat_id,omitempty"`
}

func (l LeadCustomer) Validate() error {
	if l.Name == "" {
		return Validation("lead customer name is required")
	}
	if l.Email == "" {
		return Validation("lead customer email is required")
	}
	return nil
}

type Pricing struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	ServiceFee  decimal.Decimal `json:"service_fee"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type BookingAddOn struct {
	ID         uuid.UUID       `json:"id"`
	AddOnID    uuid.UUID       `json:"add_on_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type Booking struct {
	ID                  uuid.UUID
	Reference           string
	ActivityID          uuid.UUID
	ActivityTitle       string
	CustomerID          string
	SalespersonID       *uuid.UUID
	Slot                SlotKey
	Participants        Participants
	AddOns              []BookingAddOn
	Pricing             Pricing
	PaidAmount          decimal.Decimal
	Currency            string
	Lead                LeadCustomer
	SpecialRequirements string
	Status              BookingStatus
	CancellationReason  string
	ReservationID       uuid.UUID
	CreatedAt           time.Time
	ConfirmedAt         *time.Time
	CancelledAt         *time.Time
	CompletedAt         *time.Time
	NoShowAt            *time.Time
	UpdatedAt           time.Time
}

func (b *Booking) TotalParticipants() int {
	return b.Participants.Total()
}

func (b *Booking) Validate() error {
	if err := b.Participants.Validate(); err != nil {
		return err
	}
	if b.PaidAmount.IsNegative() {
		return Validation("paid amount cannot be negative")
	}
	if b.PaidAmount.GreaterThan(b.Pricing.TotalAmount) {
		return Validation("paid amount exceeds booking total")
	}
	return nil
}

// Apply moves the booking to status `to`, stamping the matching transition
// timestamp.
func (b *Booking) Apply(to BookingStatus, at time.Time) error {
	if err := b.Status.Transition(to); err != nil {
		return err
	}

	switch to {
	case BookingConfirmed:
		b.ConfirmedAt = &at
	case BookingCancelled:
		b.CancelledAt = &at
	case BookingCompleted:
		b.CompletedAt = &at
	case BookingNoShow:
		b.NoShowAt = &at
	}
	b.Status = to
	b.UpdatedAt = at
	return nil
}
