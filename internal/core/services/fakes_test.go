package services_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/srgjo27/activity_booking/internal/core/domain"
)

// memSlots keeps slots and reservations behind one mutex so Reserve behaves
// like the single-row conditional update of the SQL store.
type memSlots struct {
	mu           sync.Mutex
	slots        map[domain.SlotKey]*domain.Slot
	reservations map[uuid.UUID]*memReservation
	// bookings, when set, lets CancelSlot skip reservations of settled
	// bookings the way the SQL store does.
	bookings *memBookings
}

type memReservation struct {
	token    domain.ReservationToken
	released bool
	consumed bool
}

func newMemSlots(slots ...domain.Slot) *memSlots {
	m := &memSlots{
		slots:        make(map[domain.SlotKey]*domain.Slot),
		reservations: make(map[uuid.UUID]*memReservation),
	}
	for i := range slots {
		s := slots[i]
		m.slots[s.Key] = &s
	}
	return m
}

func (m *memSlots) spots(key domain.SlotKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[key].AvailableSpots
}

func (m *memSlots) GetSlot(_ context.Context, key domain.SlotKey) (*domain.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[key]
	if !ok {
		return nil, domain.ErrSlotNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSlots) ListSlots(_ context.Context, activityID uuid.UUID, from, to string) ([]domain.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Slot
	for k, s := range m.slots {
		if k.ActivityID == activityID && k.Date >= from && k.Date <= to {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSlots) Reserve(_ context.Context, token domain.ReservationToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[token.Slot]
	if !ok {
		return domain.ErrSlotNotFound
	}
	if !s.CanAdmit(token.Quantity) {
		return &domain.CapacityError{
			Slot:      token.Slot,
			Requested: token.Quantity,
			SpotsLeft: s.AvailableSpots,
			Cancelled: s.IsCancelled(),
		}
	}
	s.AvailableSpots -= token.Quantity
	s.Status = domain.DeriveSlotStatus(s.AvailableSpots)
	m.reservations[token.ID] = &memReservation{token: token}
	return nil
}

func (m *memSlots) Release(_ context.Context, id uuid.UUID) (domain.ReservationToken, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok {
		return domain.ReservationToken{}, false, domain.ErrReservationNotFound
	}
	if r.released {
		return r.token, false, nil
	}
	r.released = true

	s := m.slots[r.token.Slot]
	s.AvailableSpots = min(s.AvailableSpots+r.token.Quantity, s.MaxCapacity)
	if !s.IsCancelled() {
		s.Status = domain.DeriveSlotStatus(s.AvailableSpots)
	}
	return r.token, true, nil
}

func (m *memSlots) Consume(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok {
		return domain.ErrReservationNotFound
	}
	r.consumed = true
	return nil
}

func (m *memSlots) CancelSlot(_ context.Context, key domain.SlotKey, weather domain.WeatherStatus) ([]domain.ReservationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[key]
	if !ok {
		return nil, domain.ErrSlotNotFound
	}
	s.Status = domain.SlotCancelled
	s.WeatherStatus = weather

	var out []domain.ReservationToken
	for _, r := range m.reservations {
		if r.token.Slot == key && !r.released && !m.bookings.settled(r.token.ID) {
			r.released = true
			s.AvailableSpots += r.token.Quantity
			out = append(out, r.token)
		}
	}
	return out, nil
}

type memBookings struct {
	mu          sync.Mutex
	byRef       map[string]*domain.Booking
	payments    []domain.Payment
	commissions []domain.Commission
	refunds     map[string]decimal.Decimal
	// cancelErr makes CancelBooking fail for the given references.
	cancelErr map[string]error
}

func newMemBookings() *memBookings {
	return &memBookings{
		byRef:   make(map[string]*domain.Booking),
		refunds: make(map[string]decimal.Decimal),
	}
}

func (m *memBookings) CreateBooking(_ context.Context, b *domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byRef[b.Reference]; ok {
		return domain.ErrDuplicateReference
	}
	cp := *b
	m.byRef[b.Reference] = &cp
	return nil
}

func (m *memBookings) GetByReference(_ context.Context, ref string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.byRef[ref]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBookings) GetByReservation(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.byRef {
		if b.ReservationID == id {
			cp := *b
			return &cp, nil
		}
	}
	return nil, domain.ErrBookingNotFound
}

func (m *memBookings) settled(reservationID uuid.UUID) bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.byRef {
		if b.ReservationID == reservationID {
			return b.Status == domain.BookingCompleted || b.Status == domain.BookingNoShow
		}
	}
	return false
}

func (m *memBookings) ListByCustomer(_ context.Context, customerID string, limit, offset int) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Booking
	for _, b := range m.byRef {
		if b.CustomerID == customerID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if offset >= len(out) {
		return []domain.Booking{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memBookings) AddPayment(_ context.Context, b *domain.Booking, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.byRef[b.Reference]
	if !ok {
		return domain.ErrBookingNotFound
	}
	paid := cur.PaidAmount.Add(p.Amount)
	if cur.Status != domain.BookingConfirmed || paid.GreaterThan(cur.Pricing.TotalAmount) {
		return domain.ErrStaleBooking
	}
	cur.PaidAmount = paid
	cur.UpdatedAt = b.UpdatedAt
	m.payments = append(m.payments, *p)
	return nil
}

func (m *memBookings) store(b *domain.Booking, from domain.BookingStatus) error {
	cur, ok := m.byRef[b.Reference]
	if !ok {
		return domain.ErrBookingNotFound
	}
	if cur.Status != from {
		return domain.ErrStaleBooking
	}
	cp := *b
	m.byRef[b.Reference] = &cp
	return nil
}

func (m *memBookings) UpdateStatus(_ context.Context, b *domain.Booking, from domain.BookingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store(b, from)
}

func (m *memBookings) ConfirmWithPayment(_ context.Context, b *domain.Booking, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store(b, domain.BookingPending); err != nil {
		return err
	}
	m.payments = append(m.payments, *p)
	return nil
}

func (m *memBookings) CancelBooking(_ context.Context, b *domain.Booking, from domain.BookingStatus, refund decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.cancelErr[b.Reference]; err != nil {
		return err
	}
	if err := m.store(b, from); err != nil {
		return err
	}
	m.refunds[b.Reference] = refund
	return nil
}

func (m *memBookings) CreatePayment(_ context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, *p)
	return nil
}

func (m *memBookings) CreateCommission(_ context.Context, c *domain.Commission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commissions = append(m.commissions, *c)
	return nil
}

func (m *memBookings) GetExpiredBookings(_ context.Context, before time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var refs []string
	for ref, b := range m.byRef {
		if b.Status == domain.BookingPending && b.CreatedAt.Before(before) && len(refs) < limit {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

type memActivities map[uuid.UUID]*domain.Activity

func (m memActivities) GetByID(_ context.Context, id uuid.UUID) (*domain.Activity, error) {
	a, ok := m[id]
	if !ok {
		return nil, domain.ErrActivityNotFound
	}
	return a, nil
}

type nopPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *nopPublisher) Publish(_ context.Context, ev domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *nopPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]domain.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func (p *nopPublisher) ofType(t domain.EventType) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []domain.Event
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type nopAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (a *nopAudit) Record(_ context.Context, e domain.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}
