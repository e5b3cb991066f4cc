package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/srgjo27/activity_booking/internal/core/domain"
	"github.com/srgjo27/activity_booking/internal/core/ports"
)

const DefaultAvailabilityTimeout = 10 * time.Second

type Availability struct {
	Available bool              `json:"available"`
	SpotsLeft int               `json:"spots_left"`
	Status    domain.SlotStatus `json:"status"`
}

type SlotListing struct {
	Slots []domain.Slot `json:"slots"`
	// Fallback marks generated demo data served because the datastore
	// could not be read.
	Fallback bool `json:"fallback"`
}

// Ledger is the availability ledger. It never keeps counters in memory:
// every admission decision is a conditional update in the slot store.
type Ledger struct {
	slots    ports.SlotRepository
	cache    ports.SlotCache
	log      logrus.FieldLogger
	timeout  time.Duration
	fallback bool
	now      func() time.Time
}

type LedgerOption func(*Ledger)

func WithSlotCache(c ports.SlotCache) LedgerOption {
	return func(l *Ledger) { l.cache = c }
}

func WithAvailabilityTimeout(d time.Duration) LedgerOption {
	return func(l *Ledger) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithDemoFallback lets read-only listings degrade to generated sample
// slots when storage fails. Only meant for demo and staging deployments.
func WithDemoFallback(enabled bool) LedgerOption {
	return func(l *Ledger) { l.fallback = enabled }
}

func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(slots ports.SlotRepository, log logrus.FieldLogger, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		slots:   slots,
		log:     log,
		timeout: DefaultAvailabilityTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Check(ctx context.Context, key domain.SlotKey, requested int) (Availability, error) {
	if err := key.Validate(); err != nil {
		return Availability{}, err
	}
	if requested <= 0 {
		return Availability{}, domain.Validation("requested participants must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	slot, err := l.slots.GetSlot(ctx, key)
	if err != nil {
		return Availability{}, classifySlotErr("availability lookup failed", err)
	}

	left, status := slot.AvailableSpots, slot.Status
	if slot.IsCancelled() {
		left, status = 0, domain.SlotCancelled
	}

	return Availability{
		Available: slot.CanAdmit(requested),
		SpotsLeft: left,
		Status:    status,
	}, nil
}

// Reserve atomically takes requested spots from the slot.
func (l *Ledger) Reserve(ctx context.Context, key domain.SlotKey, requested int) (domain.ReservationToken, error) {
	if err := key.Validate(); err != nil {
		return domain.ReservationToken{}, err
	}
	if requested <= 0 {
		return domain.ReservationToken{}, domain.Validation("requested participants must be positive")
	}

	token := domain.ReservationToken{
		ID:        uuid.New(),
		Slot:      key,
		Quantity:  requested,
		CreatedAt: l.now().UTC(),
	}

	if err := l.slots.Reserve(ctx, token); err != nil {
		var ce *domain.CapacityError
		if errors.As(err, &ce) {
			return domain.ReservationToken{}, err
		}
		return domain.ReservationToken{}, classifySlotErr("reserve capacity failed", err)
	}

	l.invalidate(ctx, key)
	l.log.WithFields(logrus.Fields{
		"slot":           key.String(),
		"reservation_id": token.ID,
		"quantity":       requested,
	}).Debug("capacity reserved")

	return token, nil
}

// Release gives the token's spots back. Releasing twice is a no-op.
func (l *Ledger) Release(ctx context.Context, reservationID uuid.UUID) error {
	token, released, err := l.slots.Release(ctx, reservationID)
	if err != nil {
		if errors.Is(err, domain.ErrReservationNotFound) {
			return domain.NotFound(err)
		}
		return domain.Transport("release capacity failed", err)
	}
	if !released {
		return nil
	}

	l.invalidate(ctx, token.Slot)
	l.log.WithFields(logrus.Fields{
		"slot":           token.Slot.String(),
		"reservation_id": reservationID,
		"quantity":       token.Quantity,
	}).Debug("capacity released")
	return nil
}

// Consume marks the reservation as permanent once its booking is confirmed.
func (l *Ledger) Consume(ctx context.Context, reservationID uuid.UUID) error {
	if err := l.slots.Consume(ctx, reservationID); err != nil {
		if errors.Is(err, domain.ErrReservationNotFound) {
			return domain.NotFound(err)
		}
		return domain.Transport("consume reservation failed", err)
	}
	return nil
}

// CancelSlot closes the slot and force-releases all outstanding holds.
func (l *Ledger) CancelSlot(ctx context.Context, key domain.SlotKey, weather domain.WeatherStatus) ([]domain.ReservationToken, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	tokens, err := l.slots.CancelSlot(ctx, key, weather)
	if err != nil {
		return nil, classifySlotErr("cancel slot failed", err)
	}

	l.invalidate(ctx, key)
	l.log.WithFields(logrus.Fields{
		"slot":     key.String(),
		"weather":  weather,
		"released": len(tokens),
	}).Info("slot cancelled")

	return tokens, nil
}

// ListSlots is the read path behind availability calendars.
func (l *Ledger) ListSlots(ctx context.Context, activityID uuid.UUID, from, to string) (SlotListing, error) {
	if activityID == uuid.Nil {
		return SlotListing{}, domain.Validation("activity id is required")
	}
	fromDate, err := time.Parse(domain.DateLayout, from)
	if err != nil {
		return SlotListing{}, domain.Validation("from must be formatted as YYYY-MM-DD")
	}
	if _, err := time.Parse(domain.DateLayout, to); err != nil {
		return SlotListing{}, domain.Validation("to must be formatted as YYYY-MM-DD")
	}

	if l.cache != nil {
		slots, ok, err := l.cache.Get(ctx, activityID, from, to)
		if err != nil {
			l.log.WithError(err).Warn("slot cache read failed")
		} else if ok {
			return SlotListing{Slots: slots}, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	slots, err := l.slots.ListSlots(ctx, activityID, from, to)
	if err != nil {
		if l.fallback {
			l.log.WithError(err).WithField("activity_id", activityID).Warn("serving fallback availability")
			return SlotListing{Slots: FallbackSlots(activityID, fromDate), Fallback: true}, nil
		}
		return SlotListing{}, domain.Transport("list slots failed", err)
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, activityID, from, to, slots); err != nil {
			l.log.WithError(err).Warn("slot cache write failed")
		}
	}

	return SlotListing{Slots: slots}, nil
}

func (l *Ledger) invalidate(ctx context.Context, key domain.SlotKey) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Invalidate(ctx, key); err != nil {
		l.log.WithError(err).WithField("slot", key.String()).Warn("slot cache invalidation failed")
	}
}

var fallbackTimes = []struct {
	time  string
	spots int
}{
	{"09:00", 8}, {"10:30", 5}, {"12:00", 10}, {"14:00", 6}, {"15:30", 2}, {"17:00", 9},
}

// FallbackSlots generates a week of sample slots starting at from.
func FallbackSlots(activityID uuid.UUID, from time.Time) []domain.Slot {
	const capacity = 10

	slots := make([]domain.Slot, 0, 7*len(fallbackTimes))
	for day := 0; day < 7; day++ {
		date := from.AddDate(0, 0, day).Format(domain.DateLayout)
		for _, ft := range fallbackTimes {
			slots = append(slots, domain.Slot{
				Key:            domain.SlotKey{ActivityID: activityID, Date: date, TimeSlot: ft.time},
				MaxCapacity:    capacity,
				AvailableSpots: ft.spots,
				Status:         domain.DeriveSlotStatus(ft.spots),
				WeatherStatus:  domain.WeatherClear,
			})
		}
	}
	return slots
}

func classifySlotErr(msg string, err error) error {
	if errors.Is(err, domain.ErrSlotNotFound) {
		return domain.NotFound(err)
	}
	return domain.Transport(msg, err)
}
