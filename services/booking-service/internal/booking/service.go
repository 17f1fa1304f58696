package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopslot/shopslot/libs/outbox"
	"github.com/shopslot/shopslot/services/booking-service/internal/conflict"
	"github.com/shopslot/shopslot/services/booking-service/internal/model"
	"github.com/shopslot/shopslot/services/booking-service/internal/rules"
)

// Service owns the booking state machine and the reschedule workflow. Every
// check-then-write runs inside one Store transaction under the shop lock.
type Service struct {
	store    Store
	detector conflict.Detector
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

type CreateBookingInput struct {
	ProductID string
	Date      civil.Date
	Slot      rules.TimeSlot
}

// Availability is the answer of CheckAvailability. Reason is the error code
// that CreateBooking would fail with.
type Availability struct {
	Available bool
	Reason    string
}

func (s *Service) CreateBooking(ctx context.Context, actorID string, in CreateBookingInput) (model.Booking, error) {
	if actorID == "" {
		return model.Booking{}, ErrForbidden
	}
	slot, err := validateWindow(in.ProductID, in.Date, in.Slot)
	if err != nil {
		return model.Booking{}, err
	}

	var created model.Booking
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		product, shop, err := productShop(ctx, tx, in.ProductID)
		if err != nil {
			return err
		}
		if err := tx.LockShop(ctx, shop.ID); err != nil {
			return err
		}
		w, err := s.admit(ctx, tx, shop, in.Date, slot)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		created = model.Booking{
			ID:         s.newID(),
			CustomerID: actorID,
			ProductID:  product.ID,
			ShopID:     shop.ID,
			StartTime:  w.Start,
			EndTime:    w.End,
			Status:     model.StatusPending,
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.InsertBooking(ctx, created); err != nil {
			return err
		}
		return enqueue(ctx, tx, bookingEvent(created, shop, product), EventBookingCreated)
	})
	if err != nil {
		return model.Booking{}, err
	}
	s.logger.Info("booking created", "booking_id", created.ID, "shop_id", created.ShopID, "start", created.StartTime)
	return created, nil
}

// CheckAvailability runs the same checks as CreateBooking without writing.
func (s *Service) CheckAvailability(ctx context.Context, productID string, date civil.Date, slot rules.TimeSlot) (Availability, error) {
	slot, err := validateWindow(productID, date, slot)
	if err != nil {
		return Availability{}, err
	}
	var out Availability
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		_, shop, err := productShop(ctx, tx, productID)
		if err != nil {
			return err
		}
		_, err = s.admit(ctx, tx, shop, date, slot)
		var de *Error
		switch {
		case err == nil:
			out = Availability{Available: true}
		case errors.As(err, &de) && de.Kind == KindConflict:
			out = Availability{Reason: de.Code}
		default:
			return err
		}
		return nil
	})
	return out, err
}

// admit checks slot against the shop's rules for date and against every
// blocking booking of the shop. The caller holds the shop lock when it
// intends to write.
func (s *Service) admit(ctx context.Context, tx Tx, shop model.Shop, date civil.Date, slot rules.TimeSlot) (conflict.Window, error) {
	w, err := s.withinHours(ctx, tx, shop, date, slot)
	if err != nil {
		return conflict.Window{}, err
	}
	taken, err := s.detector.HasConflict(ctx, tx, shop.ID, w, "")
	if err != nil {
		return conflict.Window{}, err
	}
	if taken {
		return conflict.Window{}, ErrSlotAlreadyBooked
	}
	return w, nil
}

// withinHours requires slot to sit inside one resolved slot of date and to
// not have started yet.
func (s *Service) withinHours(ctx context.Context, tx Tx, shop model.Shop, date civil.Date, slot rules.TimeSlot) (conflict.Window, error) {
	rs, err := tx.Rules(ctx, shop.ID)
	if err != nil {
		return conflict.Window{}, err
	}
	if !rules.Contains(rules.Resolve(rs, date), slot) {
		return conflict.Window{}, ErrSlotNotAvailable
	}
	start, end := slot.On(date, shop.Location())
	w := conflict.Window{Start: start.UTC(), End: end.UTC()}
	if w.Start.Before(s.now()) {
		return conflict.Window{}, errorf(ErrSlotNotAvailable, "selected time is in the past")
	}
	return w, nil
}

// SetStatus moves a booking along PENDING -> CONFIRMED -> CANCELLED. The shop
// owner may confirm or cancel; the customer may only cancel while PENDING.
// Cancelling a cancelled booking is a no-op.
func (s *Service) SetStatus(ctx context.Context, actorID, bookingID string, to model.Status) (model.Booking, error) {
	if !to.IsValid() {
		return model.Booking{}, errorf(ErrInvalidInput, "invalid status %q", to)
	}

	var out model.Booking
	var changed bool
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		shop, err := tx.Shop(ctx, b.ShopID)
		if err != nil {
			return err
		}
		isOwner := actorID != "" && actorID == shop.OwnerID
		isCustomer := actorID != "" && actorID == b.CustomerID
		if !isOwner && !isCustomer {
			return ErrForbidden
		}
		if b.Status == model.StatusCancelled && to == model.StatusCancelled {
			out = b
			return nil
		}
		if !b.Status.CanTransitionTo(to) {
			return errorf(ErrInvalidTransition, "cannot move booking from %s to %s", b.Status, to)
		}
		if !isOwner && !(to == model.StatusCancelled && b.Status == model.StatusPending) {
			return errorf(ErrForbidden, "only the shop owner can set a booking to %s", to)
		}

		updated, err := tx.UpdateBookingStatus(ctx, b.ID, b.Version, to)
		if err != nil {
			return err
		}
		product, err := tx.Product(ctx, b.ProductID)
		if err != nil {
			return err
		}
		evt := bookingEvent(updated, shop, product)
		evt.PreviousStatus = string(b.Status)
		eventType := EventBookingConfirmed
		if to == model.StatusCancelled {
			eventType = EventBookingCancelled
		}
		if err := enqueue(ctx, tx, evt, eventType); err != nil {
			return err
		}
		out, changed = updated, true
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	if changed {
		s.logger.Info("booking status changed", "booking_id", out.ID, "status", out.Status, "version", out.Version)
	}
	return out, nil
}

// Cancel is SetStatus to CANCELLED.
func (s *Service) Cancel(ctx context.Context, actorID, bookingID string) (model.Booking, error) {
	return s.SetStatus(ctx, actorID, bookingID, model.StatusCancelled)
}

// GetBooking returns a booking visible to its customer or the shop owner.
func (s *Service) GetBooking(ctx context.Context, actorID, bookingID string) (model.Booking, error) {
	var out model.Booking
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.Booking(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := canView(ctx, tx, actorID, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

func (s *Service) ListCustomerBookings(ctx context.Context, actorID string) ([]model.Booking, error) {
	if actorID == "" {
		return nil, ErrForbidden
	}
	var out []model.Booking
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) (err error) {
		out, err = tx.CustomerBookings(ctx, actorID)
		return err
	})
	return out, err
}

// ListShopBookings returns the non-cancelled bookings of every shop the
// actor owns, newest first.
func (s *Service) ListShopBookings(ctx context.Context, actorID string) ([]model.Booking, error) {
	if actorID == "" {
		return nil, ErrForbidden
	}
	var out []model.Booking
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) (err error) {
		out, err = tx.OwnerBookings(ctx, actorID)
		return err
	})
	return out, err
}

// ReplaceRules swaps the shop's whole rule collection in one write.
func (s *Service) ReplaceRules(ctx context.Context, actorID, shopID string, rs rules.RuleSet) (rules.RuleSet, error) {
	normalized, err := rs.Normalize()
	if err != nil {
		return nil, errorf(ErrInvalidInput, "%s", err.Error())
	}
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		shop, err := tx.Shop(ctx, shopID)
		if err != nil {
			return err
		}
		if actorID == "" || shop.OwnerID != actorID {
			return errorf(ErrForbidden, "only the shop owner can edit time slots")
		}
		if err := tx.LockShop(ctx, shop.ID); err != nil {
			return err
		}
		return tx.ReplaceRules(ctx, shop.ID, normalized)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("availability rules replaced", "shop_id", shopID, "rules", len(normalized))
	return normalized, nil
}

func (s *Service) Rules(ctx context.Context, shopID string) (rules.RuleSet, error) {
	var out rules.RuleSet
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Shop(ctx, shopID); err != nil {
			return err
		}
		rs, err := tx.Rules(ctx, shopID)
		out = rs
		return err
	})
	if out == nil && err == nil {
		out = rules.RuleSet{}
	}
	return out, err
}

// AvailableSlots lists the resolved slots of date for product's shop that are
// neither taken nor already started.
func (s *Service) AvailableSlots(ctx context.Context, productID string, date civil.Date) ([]rules.TimeSlot, error) {
	if strings.TrimSpace(productID) == "" || !date.IsValid() {
		return nil, errorf(ErrInvalidInput, "product and a valid date are required")
	}
	var out []rules.TimeSlot
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		_, shop, err := productShop(ctx, tx, productID)
		if err != nil {
			return err
		}
		rs, err := tx.Rules(ctx, shop.ID)
		if err != nil {
			return err
		}
		loc := shop.Location()
		day := conflict.Window{
			Start: civil.DateTime{Date: date}.In(loc),
			End:   civil.DateTime{Date: date.AddDays(1)}.In(loc),
		}
		busy, err := tx.BookingsInWindow(ctx, shop.ID, day)
		if err != nil {
			return err
		}
		out = conflict.FreeSlots(rules.Resolve(rs, date), date, loc, busy, s.now())
		return nil
	})
	return out, err
}

func productShop(ctx context.Context, tx Tx, productID string) (model.Product, model.Shop, error) {
	product, err := tx.Product(ctx, productID)
	if err != nil {
		return model.Product{}, model.Shop{}, err
	}
	shop, err := tx.Shop(ctx, product.ShopID)
	if err != nil {
		return model.Product{}, model.Shop{}, err
	}
	return product, shop, nil
}

func canView(ctx context.Context, tx Tx, actorID string, b model.Booking) error {
	if actorID == "" {
		return ErrForbidden
	}
	if b.CustomerID == actorID {
		return nil
	}
	shop, err := tx.Shop(ctx, b.ShopID)
	if err != nil {
		return err
	}
	if shop.OwnerID != actorID {
		return ErrForbidden
	}
	return nil
}

func validateWindow(productID string, date civil.Date, slot rules.TimeSlot) (rules.TimeSlot, error) {
	if strings.TrimSpace(productID) == "" {
		return rules.TimeSlot{}, errorf(ErrInvalidInput, "productId is required")
	}
	return validateSlot(date, slot)
}

func validateSlot(date civil.Date, slot rules.TimeSlot) (rules.TimeSlot, error) {
	if !date.IsValid() {
		return rules.TimeSlot{}, errorf(ErrInvalidInput, "date must be a valid YYYY-MM-DD date")
	}
	n, err := rules.NewTimeSlot(slot.Start, slot.End)
	if err != nil {
		return rules.TimeSlot{}, errorf(ErrInvalidInput, "%s", err.Error())
	}
	return n, nil
}

type domainEvent interface {
	outbox(eventType string) (outbox.Event, error)
}

func enqueue(ctx context.Context, tx Tx, e domainEvent, eventType string) error {
	evt, err := e.outbox(eventType)
	if err != nil {
		return err
	}
	return tx.Enqueue(ctx, evt)
}
