// Package pricing derives customer charges and revenue splits. Everything
// here is deterministic and free of I/O; amounts are decimal and rounded
// half-up to cents.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/srgjo27/activity_booking/internal/core/domain"
)

var (
	ErrNegativeAmount = errors.New("amounts and quantities cannot be negative")
	ErrInvalidRate    = errors.New("rates must be between 0 and 1")
	ErrRatesExceedAll = errors.New("platform and salesperson rates exceed the booking amount")
)

var (
	DefaultTaxRate    = decimal.RequireFromString("0.10")
	DefaultServiceFee = decimal.RequireFromString("5.00")
)

type Rates struct {
	TaxRate    decimal.Decimal
	ServiceFee decimal.Decimal
	// SeasonalMultiplier scales participant unit prices. Zero means 1.
	SeasonalMultiplier decimal.Decimal
}

func DefaultRates() Rates {
	return Rates{TaxRate: DefaultTaxRate, ServiceFee: DefaultServiceFee, SeasonalMultiplier: decimal.NewFromInt(1)}
}

type AddOnLine struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// Round rounds half-up to two decimal places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func PriceBooking(p domain.Participants, prices domain.UnitPrices, addOns []AddOnLine, rates Rates) (domain.Pricing, error) {
	if p.Adults < 0 || p.Children < 0 || p.Seniors < 0 {
		return domain.Pricing{}, ErrNegativeAmount
	}
	if prices.Adult.IsNegative() || prices.Child.IsNegative() || prices.Senior.IsNegative() {
		return domain.Pricing{}, ErrNegativeAmount
	}
	if rates.TaxRate.IsNegative() || rates.ServiceFee.IsNegative() || rates.SeasonalMultiplier.IsNegative() {
		return domain.Pricing{}, ErrNegativeAmount
	}

	multiplier := rates.SeasonalMultiplier
	if multiplier.IsZero() {
		multiplier = decimal.NewFromInt(1)
	}

	participants := prices.Adult.Mul(decimal.NewFromInt(int64(p.Adults))).
		Add(prices.Child.Mul(decimal.NewFromInt(int64(p.Children)))).
		Add(prices.Senior.Mul(decimal.NewFromInt(int64(p.Seniors)))).
		Mul(multiplier)

	extras := decimal.Zero
	for _, a := range addOns {
		if a.Quantity < 0 || a.UnitPrice.IsNegative() {
			return domain.Pricing{}, ErrNegativeAmount
		}
		extras = extras.Add(a.UnitPrice.Mul(decimal.NewFromInt(int64(a.Quantity))))
	}

	subtotal := Round(participants.Add(extras))
	tax := Round(subtotal.Mul(rates.TaxRate))
	fee := Round(rates.ServiceFee)

	return domain.Pricing{
		Subtotal:    subtotal,
		TaxAmount:   tax,
		ServiceFee:  fee,
		TotalAmount: subtotal.Add(tax).Add(fee),
	}, nil
}

type Split struct {
	PlatformAmount    decimal.Decimal
	SalespersonAmount decimal.Decimal
	OperatorAmount    decimal.Decimal
}

// SplitCommission divides amount between platform, salesperson and
// operator. A nil salespersonRate means no salesperson is attributed. The
// operator receives the remainder so the shares always sum to amount.
func SplitCommission(amount, platformRate decimal.Decimal, salespersonRate *decimal.Decimal) (Split, error) {
	if amount.IsNegative() {
		return Split{}, ErrNegativeAmount
	}
	if !validRate(platformRate) {
		return Split{}, ErrInvalidRate
	}

	amount = Round(amount)
	platform := Round(amount.Mul(platformRate))

	salesperson := decimal.Zero
	if salespersonRate != nil {
		if !validRate(*salespersonRate) {
			return Split{}, ErrInvalidRate
		}
		if platformRate.Add(*salespersonRate).GreaterThan(decimal.NewFromInt(1)) {
			return Split{}, ErrRatesExceedAll
		}
		salesperson = Round(amount.Mul(*salespersonRate))
	}

	return Split{
		PlatformAmount:    platform,
		SalespersonAmount: salesperson,
		OperatorAmount:    amount.Sub(platform).Sub(salesperson),
	}, nil
}

// RefundAmount applies the cancellation policy. Confirmed bookings keep the
// non-refundable fee; pending bookings were never captured and get back
// whatever was paid in full.
func RefundAmount(status domain.BookingStatus, paid, nonRefundableFee decimal.Decimal) decimal.Decimal {
	if status != domain.BookingConfirmed {
		return Round(paid)
	}
	refund := paid.Sub(nonRefundableFee)
	if refund.IsNegative() {
		return decimal.Zero
	}
	return Round(refund)
}

func validRate(r decimal.Decimal) bool {
	return !r.IsNegative() && r.LessThanOrEqual(decimal.NewFromInt(1))
}
