package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/srgjo27/activity_booking/internal/core/domain"
	"github.com/srgjo27/activity_booking/internal/core/ports"
	"github.com/srgjo27/activity_booking/internal/core/pricing"
)

const (
	referenceAttempts = 3

	defaultListLimit = 20
	maxListLimit     = 100
)

// Requester is the caller of a customer facing operation. Anyone but an
// admin only reaches their own bookings.
type Requester struct {
	UserID string
	Admin  bool
}

func (r Requester) owns(b *domain.Booking) bool {
	return r.Admin || (r.UserID != "" && r.UserID == b.CustomerID)
}

type AddOnRequest struct {
	AddOnID  string `json:"add_on_id"`
	Quantity int    `json:"quantity"`
}

type CreateBookingRequest struct {
	CustomerID          string              `json:"-"`
	ActivityID          string              `json:"activity_id"`
	Date                string              `json:"date"`
	TimeSlot            string              `json:"time_slot,omitempty"`
	Adults              int                 `json:"adults"`
	Children            int                 `json:"children"`
	Seniors             int                 `json:"seniors"`
	LeadCustomer        domain.LeadCustomer `json:"lead_customer"`
	AddOns              []AddOnRequest      `json:"add_ons,omitempty"`
	SalespersonID       string              `json:"salesperson_id,omitempty"`
	SpecialRequirements string              `json:"special_requirements,omitempty"`
}

type PricingResponse struct {
	Subtotal    string `json:"subtotal"`
	TaxAmount   string `json:"tax_amount"`
	ServiceFee  string `json:"service_fee"`
	TotalAmount string `json:"total_amount"`
	Currency    string `json:"currency"`
}

type CreateBookingResponse struct {
	BookingReference string          `json:"booking_reference"`
	Status           string          `json:"status"`
	Pricing          PricingResponse `json:"pricing"`
}

type ConfirmBookingRequest struct {
	Reference     string `json:"-"`
	ActorID       string `json:"-"`
	Amount        string `json:"amount"`
	Method        string `json:"method"`
	TransactionID string `json:"transaction_id"`
}

type CommissionResponse struct {
	BookingAmount     string `json:"booking_amount"`
	PlatformAmount    string `json:"platform_amount"`
	SalespersonAmount string `json:"salesperson_amount"`
	OperatorAmount    string `json:"operator_amount"`
}

type ConfirmBookingResponse struct {
	BookingReference string              `json:"booking_reference"`
	Status           string              `json:"status"`
	PaidAmount       string              `json:"paid_amount"`
	Commission       *CommissionResponse `json:"commission,omitempty"`
}

type CancelBookingRequest struct {
	Reference string `json:"-"`
	ActorID   string `json:"-"`
	Admin     bool   `json:"-"`
	Reason    string `json:"reason"`
}

// RecordPaymentRequest adds a deposit or balance payment to a confirmed
// booking.
type RecordPaymentRequest struct {
	Reference     string `json:"-"`
	ActorID       string `json:"-"`
	Amount        string `json:"amount"`
	Method        string `json:"method"`
	TransactionID string `json:"transaction_id"`
}

type RecordPaymentResponse struct {
	BookingReference string `json:"booking_reference"`
	PaymentID        string `json:"payment_id"`
	PaidAmount       string `json:"paid_amount"`
	Outstanding      string `json:"outstanding"`
}

type CancelBookingResponse struct {
	BookingReference string `json:"booking_reference"`
	Status           string `json:"status"`
	RefundAmount     string `json:"refund_amount"`
}

type BookingView struct {
	BookingReference   string              `json:"booking_reference"`
	Status             string              `json:"status"`
	ActivityID         string              `json:"activity_id"`
	ActivityTitle      string              `json:"activity_title,omitempty"`
	Date               string              `json:"date"`
	TimeSlot           string              `json:"time_slot,omitempty"`
	Participants       domain.Participants `json:"participants"`
	TotalParticipants  int                 `json:"total_participants"`
	Pricing            PricingResponse     `json:"pricing"`
	PaidAmount         string              `json:"paid_amount"`
	LeadCustomer       domain.LeadCustomer `json:"lead_customer"`
	CancellationReason string              `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	ConfirmedAt        *time.Time          `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
	NoShowAt           *time.Time          `json:"no_show_at,omitempty"`
}

type CancelSlotResult struct {
	Released          int      `json:"released"`
	CancelledBookings []string `json:"cancelled_bookings"`
	// FailedBookings lost their hold but could not be moved to cancelled.
	FailedBookings []string `json:"failed_bookings,omitempty"`
}

type BookingSettings struct {
	Rates           pricing.Rates
	PlatformRate    decimal.Decimal
	SalespersonRate decimal.Decimal
	Currency        string
	// ReservationTTL bounds how long a pending booking may hold capacity.
	// Zero disables the sweep.
	ReservationTTL time.Duration
	SweepInterval  time.Duration
	Location       *time.Location
}

func DefaultBookingSettings() BookingSettings {
	return BookingSettings{
		Rates:           pricing.DefaultRates(),
		PlatformRate:    decimal.RequireFromString("0.15"),
		SalespersonRate: decimal.RequireFromString("0.05"),
		Currency:        "EUR",
		ReservationTTL:  30 * time.Minute,
		SweepInterval:   time.Minute,
		Location:        time.UTC,
	}
}

// BookingService is the booking lifecycle manager. It is the only writer
// of booking rows and drives the ledger around every status change.
type BookingService struct {
	activities ports.ActivityRepository
	bookings   ports.BookingRepository
	ledger     *Ledger
	publisher  ports.EventPublisher
	audit      ports.AuditRecorder
	log        logrus.FieldLogger
	settings   BookingSettings
	tracer     trace.Tracer
	now        func() time.Time
	random     io.Reader
}

type BookingOption func(*BookingService)

func WithClock(now func() time.Time) BookingOption {
	return func(s *BookingService) { s.now = now }
}

func WithRandom(r io.Reader) BookingOption {
	return func(s *BookingService) { s.random = r }
}

func NewBookingService(
	activities ports.ActivityRepository,
	bookings ports.BookingRepository,
	ledger *Ledger,
	publisher ports.EventPublisher,
	audit ports.AuditRecorder,
	log logrus.FieldLogger,
	settings BookingSettings,
	opts ...BookingOption,
) *BookingService {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	s := &BookingService{
		activities: activities,
		bookings:   bookings,
		ledger:     ledger,
		publisher:  publisher,
		audit:      audit,
		log:        log,
		settings:   settings,
		tracer:     otel.Tracer("github.com/srgjo27/activity_booking/services"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (resp *CreateBookingResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.create")
	defer func() { endSpan(span, err) }()

	if req.CustomerID == "" {
		return nil, domain.Validation("customer id is required")
	}

	activityID, err := uuid.Parse(req.ActivityID)
	if err != nil {
		return nil, domain.Validation("invalid activity id")
	}

	var salespersonID *uuid.UUID
	if req.SalespersonID != "" {
		id, err := uuid.Parse(req.SalespersonID)
		if err != nil {
			return nil, domain.Validation("invalid salesperson id")
		}
		salespersonID = &id
	}

	key := domain.SlotKey{ActivityID: activityID, Date: req.Date, TimeSlot: req.TimeSlot}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if err := req.LeadCustomer.Validate(); err != nil {
		return nil, err
	}

	activity, err := s.activities.GetByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, domain.ErrActivityNotFound) {
			return nil, domain.NotFound(err)
		}
		return nil, domain.Transport("load activity failed", err)
	}

	participants := domain.Participants{Adults: req.Adults, Children: req.Children, Seniors: req.Seniors}
	if err := activity.CheckParticipants(participants); err != nil {
		return nil, err
	}

	addOns, lines, err := resolveAddOns(activity, req.AddOns)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("slot", key.String()), attribute.Int("participants", participants.Total()))

	availability, err := s.ledger.Check(ctx, key, participants.Total())
	if err != nil {
		return nil, err
	}
	if !availability.Available {
		return nil, &domain.CapacityError{
			Slot:      key,
			Requested: participants.Total(),
			SpotsLeft: availability.SpotsLeft,
			Cancelled: availability.Status == domain.SlotCancelled,
		}
	}

	token, err := s.ledger.Reserve(ctx, key, participants.Total())
	if err != nil {
		return nil, err
	}

	rates := s.settings.Rates
	if !activity.SeasonalMultiplier.IsZero() {
		rates.SeasonalMultiplier = activity.SeasonalMultiplier
	}

	price, err := pricing.PriceBooking(participants, activity.Prices, lines, rates)
	if err != nil {
		s.compensate(ctx, token)
		return nil, domain.NewError(domain.KindValidation, "price booking", err)
	}

	now := s.now().UTC()
	booking := &domain.Booking{
		ID:                  uuid.New(),
		ActivityID:          activityID,
		ActivityTitle:       activity.Title,
		CustomerID:          req.CustomerID,
		SalespersonID:       salespersonID,
		Slot:                key,
		Participants:        participants,
		AddOns:              addOns,
		Pricing:             price,
		PaidAmount:          decimal.Zero,
		Currency:            s.settings.Currency,
		Lead:                req.LeadCustomer,
		SpecialRequirements: req.SpecialRequirements,
		Status:              domain.BookingPending,
		ReservationID:       token.ID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.persistNew(ctx, booking); err != nil {
		s.compensate(ctx, token)
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"booking_ref": booking.Reference,
		"slot":        key.String(),
		"total":       price.TotalAmount.StringFixed(2),
	}).Info("booking created")

	s.publish(ctx, domain.NewBookingEvent(domain.EventBookingCreated, booking, now))

	left := availability.SpotsLeft - participants.Total()
	if availability.SpotsLeft > domain.LimitedThreshold && left <= domain.LimitedThreshold {
		ev := domain.NewSlotEvent(domain.EventSlotLimited, key, activity.Title, now)
		ev.SpotsLeft = left
		s.publish(ctx, ev)
	}

	s.record(ctx, req.CustomerID, domain.ActionCreateBooking, domain.SeverityInfo, domain.CategoryBooking, booking, domain.AuditDetails{
		"reference":    booking.Reference,
		"slot":         key.String(),
		"participants": strconv.Itoa(participants.Total()),
		"total":        price.TotalAmount.StringFixed(2),
	})

	return &CreateBookingResponse{
		BookingReference: booking.Reference,
		Status:           string(booking.Status),
		Pricing:          s.pricingResponse(price),
	}, nil
}

// persistNew assigns a reference and writes the pending booking, drawing a
// fresh reference when storage reports a collision.
func (s *BookingService) persistNew(ctx context.Context, booking *domain.Booking) error {
	for attempt := 1; ; attempt++ {
		ref, err := domain.NewReference(booking.CreatedAt, s.random)
		if err != nil {
			return domain.Transport("generate booking reference", err)
		}
		booking.Reference = ref

		err = s.bookings.CreateBooking(ctx, booking)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrDuplicateReference) && attempt < referenceAttempts {
			continue
		}
		return domain.Transport("failed to create booking", err)
	}
}

func (s *BookingService) compensate(ctx context.Context, token domain.ReservationToken) {
	if err := s.ledger.Release(ctx, token.ID); err != nil {
		s.log.WithError(err).WithField("reservation_id", token.ID).Error("compensating release failed")
	}
}

func (s *BookingService) ConfirmBooking(ctx context.Context, req ConfirmBookingRequest) (resp *ConfirmBookingResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.confirm")
	defer func() { endSpan(span, err) }()

	booking, err := s.load(ctx, req.Reference)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, domain.Validation("payment amount must be a positive number")
	}
	method, err := domain.ParsePaymentMethod(req.Method)
	if err != nil {
		return nil, domain.Validation(err.Error())
	}

	from := booking.Status
	now := s.now().UTC()
	if err := booking.Apply(domain.BookingConfirmed, now); err != nil {
		return nil, err
	}

	booking.PaidAmount = booking.PaidAmount.Add(pricing.Round(amount))
	if err := booking.Validate(); err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		ID:            uuid.New(),
		BookingID:     booking.ID,
		Method:        method,
		Amount:        pricing.Round(amount),
		Currency:      booking.Currency,
		Status:        domain.PaymentPaid,
		TransactionID: req.TransactionID,
		RefundAmount:  decimal.Zero,
		PaidAt:        &now,
		CreatedAt:     now,
	}

	if err := s.bookings.ConfirmWithPayment(ctx, booking, payment); err != nil {
		if errors.Is(err, domain.ErrStaleBooking) {
			return nil, domain.NewError(domain.KindConflict, "booking changed while confirming", err)
		}
		return nil, domain.Transport("failed to confirm booking", err)
	}

	resp = &ConfirmBookingResponse{
		BookingReference: booking.Reference,
		Status:           string(booking.Status),
		PaidAmount:       booking.PaidAmount.StringFixed(2),
	}

	details := domain.AuditDetails{
		"reference":   booking.Reference,
		"from_status": string(from),
		"payment_id":  payment.ID.String(),
		"amount":      payment.Amount.StringFixed(2),
	}

	commission, err := s.commission(booking, now)
	if err == nil {
		err = s.bookings.CreateCommission(ctx, commission)
	}
	if err != nil {
		// The confirmation is committed; a missing commission row is left
		// for reconciliation and flagged in the audit log.
		s.log.WithError(err).WithField("booking_ref", booking.Reference).Error("commission not recorded")
		details["commission_error"] = err.Error()
	} else {
		resp.Commission = &CommissionResponse{
			BookingAmount:     commission.BookingAmount.StringFixed(2),
			PlatformAmount:    commission.PlatformAmount.StringFixed(2),
			SalespersonAmount: commission.SalespersonAmount.StringFixed(2),
			OperatorAmount:    commission.OperatorAmount.StringFixed(2),
		}
		details["platform_amount"] = resp.Commission.PlatformAmount
		details["operator_amount"] = resp.Commission.OperatorAmount
	}

	if err := s.ledger.Consume(ctx, booking.ReservationID); err != nil {
		s.log.WithError(err).WithField("reservation_id", booking.ReservationID).Warn("reservation not marked consumed")
	}

	s.log.WithField("booking_ref", booking.Reference).Info("booking confirmed")

	actor := req.ActorID
	if actor == "" {
		actor = booking.CustomerID
	}
	severity := domain.SeverityInfo
	if _, failed := details["commission_error"]; failed {
		severity = domain.SeverityError
	}

	s.publish(ctx, domain.NewBookingEvent(domain.EventBookingConfirmed, booking, now))
	s.record(ctx, actor, domain.ActionConfirmBooking, severity, domain.CategoryPayment, booking, details)

	return resp, nil
}

func (s *BookingService) commission(b *domain.Booking, at time.Time) (*domain.Commission, error) {
	var spRate *decimal.Decimal
	if b.SalespersonID != nil {
		r := s.settings.SalespersonRate
		spRate = &r
	}

	split, err := pricing.SplitCommission(b.Pricing.TotalAmount, s.settings.PlatformRate, spRate)
	if err != nil {
		return nil, err
	}

	c := &domain.Commission{
		ID:                uuid.New(),
		BookingID:         b.ID,
		SalespersonID:     b.SalespersonID,
		BookingAmount:     pricing.Round(b.Pricing.TotalAmount),
		PlatformRate:      s.settings.PlatformRate,
		PlatformAmount:    split.PlatformAmount,
		SalespersonRate:   decimal.Zero,
		SalespersonAmount: split.SalespersonAmount,
		OperatorAmount:    split.OperatorAmount,
		Status:            domain.CommissionCalculated,
		CalculatedAt:      at,
	}
	if spRate != nil {
		c.SalespersonRate = *spRate
	}
	if !c.Balanced() {
		return nil, fmt.Errorf("commission for %s does not balance", b.Reference)
	}
	return c, nil
}

// RecordPayment adds a deposit or balance payment to a confirmed booking.
// The paid amount never exceeds the booking total.
func (s *BookingService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (resp *RecordPaymentResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.record_payment")
	defer func() { endSpan(span, err) }()

	booking, err := s.load(ctx, req.Reference)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, domain.Validation("payment amount must be a positive number")
	}
	amount = pricing.Round(amount)
	method, err := domain.ParsePaymentMethod(req.Method)
	if err != nil {
		return nil, domain.Validation(err.Error())
	}

	if booking.Status != domain.BookingConfirmed {
		return nil, domain.NewError(domain.KindConflict,
			fmt.Sprintf("payments can only be added to a confirmed booking, booking is %s", booking.Status), nil)
	}

	now := s.now().UTC()
	booking.PaidAmount = booking.PaidAmount.Add(amount)
	booking.UpdatedAt = now
	if err := booking.Validate(); err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		ID:            uuid.New(),
		BookingID:     booking.ID,
		Method:        method,
		Amount:        amount,
		Currency:      booking.Currency,
		Status:        domain.PaymentPaid,
		TransactionID: req.TransactionID,
		RefundAmount:  decimal.Zero,
		PaidAt:        &now,
		CreatedAt:     now,
	}

	if err := s.bookings.AddPayment(ctx, booking, payment); err != nil {
		if errors.Is(err, domain.ErrStaleBooking) {
			return nil, domain.NewError(domain.KindConflict, "booking changed while recording payment", err)
		}
		return nil, domain.Transport("failed to record payment", err)
	}

	s.log.WithFields(logrus.Fields{
		"booking_ref": booking.Reference,
		"amount":      amount.StringFixed(2),
	}).Info("payment recorded")

	actor := req.ActorID
	if actor == "" {
		actor = domain.SystemActor
	}
	s.record(ctx, actor, domain.ActionRecordPayment, domain.SeverityInfo, domain.CategoryPayment, booking, domain.AuditDetails{
		"reference":   booking.Reference,
		"payment_id":  payment.ID.String(),
		"amount":      amount.StringFixed(2),
		"paid_amount": booking.PaidAmount.StringFixed(2),
	})

	return &RecordPaymentResponse{
		BookingReference: booking.Reference,
		PaymentID:        payment.ID.String(),
		PaidAmount:       booking.PaidAmount.StringFixed(2),
		Outstanding:      booking.Pricing.TotalAmount.Sub(booking.PaidAmount).StringFixed(2),
	}, nil
}

// RecordPaymentFailure stores a failed capture. The booking stays pending
// and keeps its hold until it is cancelled or swept.
func (s *BookingService) RecordPaymentFailure(ctx context.Context, reference, reason, actorID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "booking.payment_failed")
	defer func() { endSpan(span, err) }()

	booking, err := s.load(ctx, reference)
	if err != nil {
		return err
	}
	if booking.Status != domain.BookingPending {
		return domain.NewError(domain.KindPayment, "payment can only fail for a pending booking", nil)
	}

	now := s.now().UTC()
	payment := &domain.Payment{
		ID:            uuid.New(),
		BookingID:     booking.ID,
		Method:        domain.MethodCard,
		Amount:        booking.Pricing.TotalAmount,
		Currency:      booking.Currency,
		Status:        domain.PaymentFailed,
		FailureReason: reason,
		RefundAmount:  decimal.Zero,
		CreatedAt:     now,
	}
	if err := s.bookings.CreatePayment(ctx, payment); err != nil {
		return domain.Transport("failed to record payment failure", err)
	}

	if actorID == "" {
		actorID = booking.CustomerID
	}

	ev := domain.NewBookingEvent(domain.EventPaymentFailed, booking, now)
	ev.Reason = reason
	s.publish(ctx, ev)
	s.record(ctx, actorID, domain.ActionPaymentFailed, domain.SeverityWarning, domain.CategoryPayment, booking, domain.AuditDetails{
		"reference": booking.Reference,
		"reason":    reason,
	})
	return nil
}

func (s *BookingService) CancelBooking(ctx context.Context, req CancelBookingRequest) (resp *CancelBookingResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.cancel")
	defer func() { endSpan(span, err) }()

	booking, err := s.load(ctx, req.Reference)
	if err != nil {
		return nil, err
	}
	if !(Requester{UserID: req.ActorID, Admin: req.Admin}).owns(booking) {
		return nil, domain.NotFound(domain.ErrBookingNotFound)
	}

	reason := req.Reason
	if reason == "" {
		reason = "cancelled by customer"
	}

	return s.cancel(ctx, booking, reason, req.ActorID, domain.ActionCancelBooking)
}

func (s *BookingService) cancel(ctx context.Context, booking *domain.Booking, reason, actor string, action domain.AuditAction) (*CancelBookingResponse, error) {
	from := booking.Status
	now := s.now().UTC()
	if err := booking.Apply(domain.BookingCancelled, now); err != nil {
		return nil, err
	}
	booking.CancellationReason = reason

	refund := pricing.RefundAmount(from, booking.PaidAmount, booking.Pricing.ServiceFee)

	if err := s.bookings.CancelBooking(ctx, booking, from, refund); err != nil {
		if errors.Is(err, domain.ErrStaleBooking) {
			return nil, domain.NewError(domain.KindConflict, "booking changed while cancelling", err)
		}
		return nil, domain.Transport("failed to cancel booking", err)
	}

	if err := s.ledger.Release(ctx, booking.ReservationID); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"booking_ref":    booking.Reference,
			"reservation_id": booking.ReservationID,
		}).Error("capacity not released for cancelled booking")
	}

	s.log.WithFields(logrus.Fields{
		"booking_ref": booking.Reference,
		"from":        from,
		"refund":      refund.StringFixed(2),
	}).Info("booking cancelled")

	ev := domain.NewBookingEvent(domain.EventBookingCancelled, booking, now)
	ev.RefundAmount = refund
	s.publish(ctx, ev)
	s.record(ctx, actor, action, domain.SeverityInfo, domain.CategoryBooking, booking, domain.AuditDetails{
		"reference":      booking.Reference,
		"from_status":    string(from),
		"reason":         reason,
		"refund":         refund.StringFixed(2),
		"reservation_id": booking.ReservationID.String(),
	})

	return &CancelBookingResponse{
		BookingReference: booking.Reference,
		Status:           string(booking.Status),
		RefundAmount:     refund.StringFixed(2),
	}, nil
}

func (s *BookingService) CompleteBooking(ctx context.Context, reference, actorID string) (*BookingView, error) {
	return s.settle(ctx, reference, actorID, domain.BookingCompleted)
}

func (s *BookingService) MarkNoShow(ctx context.Context, reference, actorID string) (*BookingView, error) {
	return s.settle(ctx, reference, actorID, domain.BookingNoShow)
}

// settle applies the post-activity transitions. They carry no monetary
// effect.
func (s *BookingService) settle(ctx context.Context, reference, actorID string, to domain.BookingStatus) (view *BookingView, err error) {
	ctx, span := s.tracer.Start(ctx, "booking."+string(to))
	defer func() { endSpan(span, err) }()

	booking, err := s.load(ctx, reference)
	if err != nil {
		return nil, err
	}

	from := booking.Status
	if err := from.Transition(to); err != nil {
		return nil, err
	}

	now := s.now()
	starts, err := booking.Slot.StartsAt(s.settings.Location)
	if err != nil {
		return nil, domain.Validation("booking has an invalid date")
	}
	if now.Before(starts) {
		return nil, domain.Validation("activity has not taken place yet")
	}

	if err := booking.Apply(to, now.UTC()); err != nil {
		return nil, err
	}
	if err := s.bookings.UpdateStatus(ctx, booking, from); err != nil {
		if errors.Is(err, domain.ErrStaleBooking) {
			return nil, domain.NewError(domain.KindConflict, "booking changed concurrently", err)
		}
		return nil, domain.Transport("failed to update booking", err)
	}

	eventType, action := domain.EventBookingCompleted, domain.ActionCompleteBooking
	if to == domain.BookingNoShow {
		eventType, action = domain.EventBookingNoShow, domain.ActionMarkNoShow
	}

	if actorID == "" {
		actorID = domain.SystemActor
	}

	s.publish(ctx, domain.NewBookingEvent(eventType, booking, now.UTC()))
	s.record(ctx, actorID, action, domain.SeverityInfo, domain.CategoryBooking, booking, domain.AuditDetails{
		"reference": booking.Reference,
	})

	return s.view(booking), nil
}

// GetBooking hides bookings the requester does not own behind not found.
func (s *BookingService) GetBooking(ctx context.Context, reference string, requester Requester) (*BookingView, error) {
	booking, err := s.load(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !requester.owns(booking) {
		return nil, domain.NotFound(domain.ErrBookingNotFound)
	}
	return s.view(booking), nil
}

// ListCustomerBookings pages through a customer's bookings, newest first.
func (s *BookingService) ListCustomerBookings(ctx context.Context, customerID string, limit, offset int) ([]BookingView, error) {
	if customerID == "" {
		return nil, domain.Validation("customer id is required")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		return nil, domain.Validation("offset cannot be negative")
	}

	bookings, err := s.bookings.ListByCustomer(ctx, customerID, limit, offset)
	if err != nil {
		return nil, domain.Transport("list bookings failed", err)
	}

	views := make([]BookingView, 0, len(bookings))
	for i := range bookings {
		views = append(views, *s.view(&bookings[i]))
	}
	return views, nil
}

// CancelSlot closes a slot (weather or operator decision) and cancels every
// booking that still held capacity on it. Bookings that cannot be moved to
// cancelled are reported in the result, logged and audited.
func (s *BookingService) CancelSlot(ctx context.Context, key domain.SlotKey, weather domain.WeatherStatus, actorID string) (*CancelSlotResult, error) {
	tokens, err := s.ledger.CancelSlot(ctx, key, weather)
	if err != nil {
		return nil, err
	}

	if actorID == "" {
		actorID = domain.SystemActor
	}

	result := &CancelSlotResult{Released: len(tokens), CancelledBookings: []string{}}
	reason := "slot cancelled"
	if weather == domain.WeatherCancelled {
		reason = "slot cancelled due to weather"
	}

	for _, token := range tokens {
		booking, err := s.bookings.GetByReservation(ctx, token.ID)
		if err != nil {
			s.log.WithError(err).WithField("reservation_id", token.ID).Warn("no booking for released reservation")
			continue
		}
		if !domain.CanTransition(booking.Status, domain.BookingCancelled) {
			continue
		}
		status := booking.Status
		if _, err := s.cancel(ctx, booking, reason, actorID, domain.ActionCancelBooking); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"booking_ref":    booking.Reference,
				"reservation_id": token.ID,
				"status":         status,
			}).Error("booking lost its hold but could not be cancelled")
			s.record(ctx, actorID, domain.ActionCancelBooking, domain.SeverityError, domain.CategoryBooking, booking, domain.AuditDetails{
				"reference":      booking.Reference,
				"from_status":    string(status),
				"reason":         reason,
				"reservation_id": token.ID.String(),
				"error":          err.Error(),
			})
			result.FailedBookings = append(result.FailedBookings, booking.Reference)
			continue
		}
		result.CancelledBookings = append(result.CancelledBookings, booking.Reference)
	}

	severity := domain.SeverityWarning
	if len(result.FailedBookings) > 0 {
		severity = domain.SeverityError
	}
	s.recordEntry(ctx, domain.AuditEntry{
		ActorID:    actorID,
		Action:     domain.ActionCancelSlot,
		Resource:   "availability",
		ResourceID: key.String(),
		Severity:   severity,
		Category:   domain.CategoryActivity,
		Details: domain.AuditDetails{
			"slot":      key.String(),
			"weather":   string(weather),
			"released":  strconv.Itoa(len(tokens)),
			"cancelled": strconv.Itoa(len(result.CancelledBookings)),
			"failed":    strconv.Itoa(len(result.FailedBookings)),
		},
	})

	ev := domain.NewSlotEvent(domain.EventSlotCancelled, key, s.activityTitle(ctx, key.ActivityID), s.now().UTC())
	ev.Reason = reason
	ev.Affected = len(result.CancelledBookings)
	s.publish(ctx, ev)

	return result, nil
}

// activityTitle is best effort; alerts go out without a title when the
// lookup fails.
func (s *BookingService) activityTitle(ctx context.Context, id uuid.UUID) string {
	activity, err := s.activities.GetByID(ctx, id)
	if err != nil {
		s.log.WithError(err).WithField("activity_id", id).Warn("activity lookup for alert failed")
		return ""
	}
	return activity.Title
}

func (s *BookingService) load(ctx context.Context, reference string) (*domain.Booking, error) {
	if !domain.ValidReference(reference) {
		return nil, domain.Validation("invalid booking reference")
	}
	booking, err := s.bookings.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, domain.ErrBookingNotFound) {
			return nil, domain.NotFound(err)
		}
		return nil, domain.Transport("load booking failed", err)
	}
	return booking, nil
}

func (s *BookingService) publish(ctx context.Context, ev domain.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"booking_ref": ev.Reference,
			"event":       ev.Type,
		}).Warn("publish event failed")
	}
}

func (s *BookingService) record(ctx context.Context, actor string, action domain.AuditAction, severity domain.AuditSeverity, category domain.AuditCategory, b *domain.Booking, details domain.AuditDetails) {
	s.recordEntry(ctx, domain.AuditEntry{
		ActorID:    actor,
		Action:     action,
		Resource:   "booking",
		ResourceID: b.ID.String(),
		Details:    details,
		Severity:   severity,
		Category:   category,
	})
}

func (s *BookingService) recordEntry(ctx context.Context, entry domain.AuditEntry) {
	if s.audit == nil {
		return
	}
	if info, ok := RequestInfoFrom(ctx); ok {
		entry.IPAddress = info.IPAddress
		entry.UserAgent = info.UserAgent
		if entry.ActorEmail == "" {
			entry.ActorEmail = info.Email
		}
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.log.WithError(err).WithField("action", entry.Action).Error("audit record failed")
	}
}

func (s *BookingService) pricingResponse(p domain.Pricing) PricingResponse {
	return PricingResponse{
		Subtotal:    p.Subtotal.StringFixed(2),
		TaxAmount:   p.TaxAmount.StringFixed(2),
		ServiceFee:  p.ServiceFee.StringFixed(2),
		TotalAmount: p.TotalAmount.StringFixed(2),
		Currency:    s.settings.Currency,
	}
}

func (s *BookingService) view(b *domain.Booking) *BookingView {
	return &BookingView{
		BookingReference:   b.Reference,
		Status:             string(b.Status),
		ActivityID:         b.ActivityID.String(),
		ActivityTitle:      b.ActivityTitle,
		Date:               b.Slot.Date,
		TimeSlot:           b.Slot.TimeSlot,
		Participants:       b.Participants,
		TotalParticipants:  b.TotalParticipants(),
		Pricing:            s.pricingResponse(b.Pricing),
		PaidAmount:         b.PaidAmount.StringFixed(2),
		LeadCustomer:       b.Lead,
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt,
		ConfirmedAt:        b.ConfirmedAt,
		CancelledAt:        b.CancelledAt,
		CompletedAt:        b.CompletedAt,
		NoShowAt:           b.NoShowAt,
	}
}

func resolveAddOns(activity *domain.Activity, reqs []AddOnRequest) ([]domain.BookingAddOn, []pricing.AddOnLine, error) {
	addOns := make([]domain.BookingAddOn, 0, len(reqs))
	lines := make([]pricing.AddOnLine, 0, len(reqs))

	for _, r := range reqs {
		id, err := uuid.Parse(r.AddOnID)
		if err != nil {
			return nil, nil, domain.Validation("invalid add-on id")
		}
		if r.Quantity <= 0 {
			return nil, nil, domain.Validation("add-on quantity must be positive")
		}
		offer, ok := activity.AddOn(id)
		if !ok {
			return nil, nil, domain.Validation(fmt.Sprintf("add-on %s is not offered for this activity", id))
		}

		qty := decimal.NewFromInt(int64(r.Quantity))
		addOns = append(addOns, domain.BookingAddOn{
			ID:         uuid.New(),
			AddOnID:    id,
			Quantity:   r.Quantity,
			UnitPrice:  offer.UnitPrice,
			TotalPrice: pricing.Round(offer.UnitPrice.Mul(qty)),
		})
		lines = append(lines, pricing.AddOnLine{Quantity: r.Quantity, UnitPrice: offer.UnitPrice})
	}

	return addOns, lines, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
