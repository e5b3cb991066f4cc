package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventType string

// Event types double as message routing keys.
const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingCancelled EventType = "booking.cancelled"
	EventBookingCompleted EventType = "booking.completed"
	EventBookingNoShow    EventType = "booking.no_show"
	EventPaymentFailed    EventType = "payment.failed"
	// Slot events are operator alerts and carry no booking.
	EventSlotCancelled EventType = "slot.cancelled"
	EventSlotLimited   EventType = "slot.limited"
)

func ParseEventType(s string) (EventType, error) {
	switch t := EventType(s); t {
	case EventBookingCreated, EventBookingConfirmed, EventBookingCancelled,
		EventBookingCompleted, EventBookingNoShow, EventPaymentFailed,
		EventSlotCancelled, EventSlotLimited:
		return t, nil
	}
	return "", fmt.Errorf("unknown event type %q", s)
}

type Event struct {
	ID            uuid.UUID       `json:"id"`
	Type          EventType       `json:"type"`
	BookingID     uuid.UUID       `json:"booking_id"`
	Reference     string          `json:"booking_reference"`
	ActivityID    uuid.UUID       `json:"activity_id"`
	ActivityTitle string          `json:"activity_title,omitempty"`
	Slot          SlotKey         `json:"slot"`
	Participants  Participants    `json:"participants"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	RefundAmount  decimal.Decimal `json:"refund_amount"`
	Currency      string          `json:"currency"`
	Reason        string          `json:"reason,omitempty"`
	Lead          LeadCustomer    `json:"lead"`
	SpotsLeft     int             `json:"spots_left,omitempty"`
	Affected      int             `json:"affected_bookings,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func NewBookingEvent(t EventType, b *Booking, at time.Time) Event {
	return Event{
		ID:            uuid.New(),
		Type:          t,
		BookingID:     b.ID,
		Reference:     b.Reference,
		ActivityID:    b.ActivityID,
		ActivityTitle: b.ActivityTitle,
		Slot:          b.Slot,
		Participants:  b.Participants,
		TotalAmount:   b.Pricing.TotalAmount,
		RefundAmount:  decimal.Zero,
		Currency:      b.Currency,
		Reason:        b.CancellationReason,
		Lead:          b.Lead,
		OccurredAt:    at,
	}
}

func NewSlotEvent(t EventType, key SlotKey, activityTitle string, at time.Time) Event {
	return Event{
		ID:            uuid.New(),
		Type:          t,
		ActivityID:    key.ActivityID,
		ActivityTitle: activityTitle,
		Slot:          key,
		TotalAmount:   decimal.Zero,
		RefundAmount:  decimal.Zero,
		OccurredAt:    at,
	}
}
