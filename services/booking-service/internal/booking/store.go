package booking

import (
	"context"
	"time"

	"github.com/shopslot/shopslot/libs/outbox"
	"github.com/shopslot/shopslot/services/booking-service/internal/conflict"
	"github.com/shopslot/shopslot/services/booking-service/internal/model"
	"github.com/shopslot/shopslot/services/booking-service/internal/rules"
)

// Store runs fn in one database transaction. fn's writes commit together
// when it returns nil and are discarded otherwise.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the transactional view the service works against. Lookups return
// ErrNotFound for missing rows.
type Tx interface {
	conflict.Source

	Product(ctx context.Context, id string) (model.Product, error)
	Shop(ctx context.Context, id string) (model.Shop, error)
	// LockShop serializes every check-then-write on the shop's bookings
	// until the transaction ends.
	LockShop(ctx context.Context, shopID string) error

	Rules(ctx context.Context, shopID string) (rules.RuleSet, error)
	ReplaceRules(ctx context.Context, shopID string, rs rules.RuleSet) error

	Booking(ctx context.Context, id string) (model.Booking, error)
	BookingForUpdate(ctx context.Context, id string) (model.Booking, error)
	InsertBooking(ctx context.Context, b model.Booking) error
	// UpdateBookingStatus and UpdateBookingWindow bump the version and fail
	// with ErrInvalidTransition if the stored version is not version.
	UpdateBookingStatus(ctx context.Context, id string, version int, to model.Status) (model.Booking, error)
	UpdateBookingWindow(ctx context.Context, id string, version int, w conflict.Window) (model.Booking, error)
	CustomerBookings(ctx context.Context, customerID string) ([]model.Booking, error)
	OwnerBookings(ctx context.Context, ownerID string) ([]model.Booking, error)

	RescheduleRequest(ctx context.Context, id string) (model.RescheduleRequest, error)
	RescheduleRequestForUpdate(ctx context.Context, id string) (model.RescheduleRequest, error)
	HasPendingRequest(ctx context.Context, bookingID string) (bool, error)
	InsertRescheduleRequest(ctx context.Context, r model.RescheduleRequest) error
	CloseRescheduleRequest(ctx context.Context, id string, status model.RequestStatus, respondedBy string, at time.Time) (model.RescheduleRequest, error)
	RescheduleRequests(ctx context.Context, bookingID string) ([]model.RescheduleRequest, error)

	Enqueue(ctx context.Context, evt outbox.Event) error
}
