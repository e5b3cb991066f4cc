package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CommissionStatus string

const (
	CommissionPending    CommissionStatus = "pending"
	CommissionCalculated CommissionStatus = "calculated"
	CommissionPaid       CommissionStatus = "paid"
	CommissionWithheld   CommissionStatus = "withheld"
)

// Commission is written once, right after the booking is confirmed.
type Commission struct {
	ID                uuid.UUID
	BookingID         uuid.UUID
	SalespersonID     *uuid.UUID
	BookingAmount     decimal.Decimal
	PlatformRate      decimal.Decimal
	PlatformAmount    decimal.Decimal
	SalespersonRate   decimal.Decimal
	SalespersonAmount decimal.Decimal
	OperatorAmount    decimal.Decimal
	Status            CommissionStatus
	CalculatedAt      time.Time
}

// Balanced reports whether the three shares add up to the booking amount.
func (c *Commission) Balanced() bool {
	sum := c.PlatformAmount.Add(c.SalespersonAmount).Add(c.OperatorAmount)
	return sum.Equal(c.BookingAmount)
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentAuthorized PaymentStatus = "authorized"
	PaymentPaid       PaymentStatus = "paid"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentFailed     PaymentStatus = "failed"
)

type PaymentMethod string

const (
	MethodCard      PaymentMethod = "card"
	MethodPayPal    PaymentMethod = "paypal"
	MethodApplePay  PaymentMethod = "apple_pay"
	MethodGooglePay PaymentMethod = "google_pay"
	MethodSEPA      PaymentMethod = "sepa"
	MethodCash      PaymentMethod = "cash"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case MethodCard, MethodPayPal, MethodApplePay, MethodGooglePay, MethodSEPA, MethodCash:
		return m, nil
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

type Payment struct {
	ID            uuid.UUID
	BookingID     uuid.UUID
	Method        PaymentMethod
	Amount        decimal.Decimal
	Currency      string
	Status        PaymentStatus
	TransactionID string
	FailureReason string
	RefundAmount  decimal.Decimal
	RefundReason  string
	PaidAt        *time.Time
	RefundedAt    *time.Time
	CreatedAt     time.Time
}
