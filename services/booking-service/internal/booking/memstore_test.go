package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopslot/shopslot/libs/outbox"
	"github.com/shopslot/shopslot/services/booking-service/internal/conflict"
	"github.com/shopslot/shopslot/services/booking-service/internal/model"
	"github.com/shopslot/shopslot/services/booking-service/internal/rules"
)

// memStore serializes transactions with one mutex and rolls back by
// restoring a snapshot when fn fails.
type memStore struct {
	mu       sync.Mutex
	shops    map[string]model.Shop
	products map[string]model.Product
	rules    map[string]rules.RuleSet
	bookings map[string]model.Booking
	requests map[string]model.RescheduleRequest
	events   []outbox.Event

	enqueueErr error
	locked     []string
}

func newMemStore() *memStore {
	return &memStore{
		shops:    map[string]model.Shop{},
		products: map[string]model.Product{},
		rules:    map[string]rules.RuleSet{},
		bookings: map[string]model.Booking{},
		requests: map[string]model.RescheduleRequest{},
	}
}

type memSnapshot struct {
	rules    map[string]rules.RuleSet
	bookings map[string]model.Booking
	requests map[string]model.RescheduleRequest
	events   int
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := memSnapshot{
		rules:    copyMap(m.rules),
		bookings: copyMap(m.bookings),
		requests: copyMap(m.requests),
		events:   len(m.events),
	}
	if err := fn(ctx, &memTx{m: m}); err != nil {
		m.rules, m.bookings, m.requests = snap.rules, snap.bookings, snap.requests
		m.events = m.events[:snap.events]
		return err
	}
	return nil
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *memStore) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.EventType)
	}
	return out
}

func (m *memStore) booking(id string) model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id]
}

func (m *memStore) request(id string) model.RescheduleRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[id]
}

type memTx struct {
	m *memStore
}

func (t *memTx) BookingsInWindow(_ context.Context, shopID string, w conflict.Window) ([]conflict.Booked, error) {
	var out []conflict.Booked
	for _, b := range t.m.bookings {
		if b.ShopID != shopID {
			continue
		}
		out = append(out, conflict.Booked{ID: b.ID, Status: b.Status, Window: conflict.Window{Start: b.StartTime, End: b.EndTime}})
	}
	return out, nil
}

func (t *memTx) Product(_ context.Context, id string) (model.Product, error) {
	p, ok := t.m.products[id]
	if !ok {
		return model.Product{}, ErrNotFound
	}
	return p, nil
}

func (t *memTx) Shop(_ context.Context, id string) (model.Shop, error) {
	s, ok := t.m.shops[id]
	if !ok {
		return model.Shop{}, ErrNotFound
	}
	return s, nil
}

func (t *memTx) LockShop(_ context.Context, shopID string) error {
	t.m.locked = append(t.m.locked, shopID)
	return nil
}

func (t *memTx) Rules(_ context.Context, shopID string) (rules.RuleSet, error) {
	return t.m.rules[shopID], nil
}

func (t *memTx) ReplaceRules(_ context.Context, shopID string, rs rules.RuleSet) error {
	t.m.rules[shopID] = rs
	return nil
}

func (t *memTx) Booking(_ context.Context, id string) (model.Booking, error) {
	b, ok := t.m.bookings[id]
	if !ok {
		return model.Booking{}, ErrNotFound
	}
	return b, nil
}

func (t *memTx) BookingForUpdate(ctx context.Context, id string) (model.Booking, error) {
	return t.Booking(ctx, id)
}

func (t *memTx) InsertBooking(_ context.Context, b model.Booking) error {
	t.m.bookings[b.ID] = b
	return nil
}

func (t *memTx) UpdateBookingStatus(ctx context.Context, id string, version int, to model.Status) (model.Booking, error) {
	b, err := t.Booking(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if b.Version != version {
		return model.Booking{}, ErrInvalidTransition
	}
	b.Status = to
	b.Version++
	t.m.bookings[id] = b
	return b, nil
}

func (t *memTx) UpdateBookingWindow(ctx context.Context, id string, version int, w conflict.Window) (model.Booking, error) {
	b, err := t.Booking(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if b.Version != version {
		return model.Booking{}, ErrInvalidTransition
	}
	b.StartTime, b.EndTime = w.Start, w.End
	b.Version++
	t.m.bookings[id] = b
	return b, nil
}

func (t *memTx) CustomerBookings(_ context.Context, customerID string) ([]model.Booking, error) {
	return t.filterBookings(func(b model.Booking) bool { return b.CustomerID == customerID }), nil
}

func (t *memTx) OwnerBookings(_ context.Context, ownerID string) ([]model.Booking, error) {
	return t.filterBookings(func(b model.Booking) bool {
		return t.m.shops[b.ShopID].OwnerID == ownerID && b.Status != model.StatusCancelled
	}), nil
}

func (t *memTx) filterBookings(keep func(model.Booking) bool) []model.Booking {
	var out []model.Booking
	for _, b := range t.m.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (t *memTx) RescheduleRequest(_ context.Context, id string) (model.RescheduleRequest, error) {
	r, ok := t.m.requests[id]
	if !ok {
		return model.RescheduleRequest{}, ErrNotFound
	}
	return r, nil
}

func (t *memTx) RescheduleRequestForUpdate(ctx context.Context, id string) (model.RescheduleRequest, error) {
	return t.RescheduleRequest(ctx, id)
}

func (t *memTx) HasPendingRequest(_ context.Context, bookingID string) (bool, error) {
	for _, r := range t.m.requests {
		if r.BookingID == bookingID && r.Status == model.RequestPending {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertRescheduleRequest(_ context.Context, r model.RescheduleRequest) error {
	t.m.requests[r.ID] = r
	return nil
}

func (t *memTx) CloseRescheduleRequest(ctx context.Context, id string, status model.RequestStatus, respondedBy string, at time.Time) (model.RescheduleRequest, error) {
	r, err := t.RescheduleRequest(ctx, id)
	if err != nil {
		return model.RescheduleRequest{}, err
	}
	r.Status = status
	r.RespondedBy = &respondedBy
	r.RespondedAt = &at
	t.m.requests[id] = r
	return r, nil
}

func (t *memTx) RescheduleRequests(_ context.Context, bookingID string) ([]model.RescheduleRequest, error) {
	var out []model.RescheduleRequest
	for _, r := range t.m.requests {
		if r.BookingID == bookingID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) Enqueue(_ context.Context, evt outbox.Event) error {
	if t.m.enqueueErr != nil {
		return t.m.enqueueErr
	}
	t.m.events = append(t.m.events, evt)
	return nil
}
