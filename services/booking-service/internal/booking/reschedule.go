package booking

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopslot/shopslot/services/booking-service/internal/conflict"
	"github.com/shopslot/shopslot/services/booking-service/internal/model"
	"github.com/shopslot/shopslot/services/booking-service/internal/rules"
)

type RescheduleInput struct {
	Date   civil.Date
	Slot   rules.TimeSlot
	Reason string
}

// RespondResult carries the closed request and the booking as it stands
// after the decision.
type RespondResult struct {
	Request model.RescheduleRequest
	Booking model.Booking
}

// RequestReschedule records a customer's proposal to move a CONFIRMED
// booking. At most one request per booking may be pending.
func (s *Service) RequestReschedule(ctx context.Context, actorID, bookingID string, in RescheduleInput) (model.RescheduleRequest, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return model.RescheduleRequest{}, errorf(ErrInvalidInput, "reason is required")
	}
	slot, err := validateSlot(in.Date, in.Slot)
	if err != nil {
		return model.RescheduleRequest{}, err
	}

	var created model.RescheduleRequest
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if actorID == "" || b.CustomerID != actorID {
			return ErrForbidden
		}
		if b.Status != model.StatusConfirmed {
			return errorf(ErrForbidden, "only confirmed bookings can be rescheduled")
		}
		pending, err := tx.HasPendingRequest(ctx, b.ID)
		if err != nil {
			return err
		}
		if pending {
			return ErrDuplicatePendingRequest
		}
		shop, err := tx.Shop(ctx, b.ShopID)
		if err != nil {
			return err
		}

		start, end := slot.On(in.Date, shop.Location())
		created = model.RescheduleRequest{
			ID:                 s.newID(),
			BookingID:          b.ID,
			CustomerID:         actorID,
			RequestedDate:      in.Date,
			RequestedStartTime: start.UTC(),
			RequestedEndTime:   end.UTC(),
			Reason:             reason,
			Status:             model.RequestPending,
			CreatedAt:          s.now().UTC(),
		}
		if err := tx.InsertRescheduleRequest(ctx, created); err != nil {
			return err
		}
		return enqueue(ctx, tx, rescheduleEvent(created, shop), EventRescheduleRequested)
	})
	if err != nil {
		return model.RescheduleRequest{}, err
	}
	s.logger.Info("reschedule requested", "request_id", created.ID, "booking_id", created.BookingID)
	return created, nil
}

// Respond applies the shop owner's decision to a pending request. Approval
// re-checks the shop's current rules, the clock and live bookings, then swaps
// the booking's window in the same transaction that closes the request. A
// rejected approval leaves the request pending.
func (s *Service) Respond(ctx context.Context, actorID, requestID string, decision model.Decision) (RespondResult, error) {
	if decision != model.RequestApproved && decision != model.RequestDeclined {
		return RespondResult{}, errorf(ErrInvalidInput, "decision must be approved or declined")
	}

	var out RespondResult
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		// Booking row first, then the request row, the same order
		// RequestReschedule takes them in.
		peek, err := tx.RescheduleRequest(ctx, requestID)
		if err != nil {
			return err
		}
		b, err := tx.BookingForUpdate(ctx, peek.BookingID)
		if err != nil {
			return err
		}
		req, err := tx.RescheduleRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		shop, err := tx.Shop(ctx, b.ShopID)
		if err != nil {
			return err
		}
		if actorID == "" || shop.OwnerID != actorID {
			return ErrForbidden
		}
		if req.Status != model.RequestPending {
			return errorf(ErrAlreadyProcessed, "request already %s", req.Status)
		}

		if decision == model.RequestDeclined {
			closed, err := tx.CloseRescheduleRequest(ctx, req.ID, model.RequestDeclined, actorID, s.now().UTC())
			if err != nil {
				return err
			}
			out = RespondResult{Request: closed, Booking: b}
			return enqueue(ctx, tx, rescheduleEvent(closed, shop), EventRescheduleDeclined)
		}

		if b.Status != model.StatusConfirmed {
			return errorf(ErrInvalidTransition, "booking is %s and can no longer be rescheduled", b.Status)
		}
		if err := tx.LockShop(ctx, shop.ID); err != nil {
			return err
		}
		w := conflict.Window{Start: req.RequestedStartTime, End: req.RequestedEndTime}
		asked := rules.SlotOf(w.Start, w.End, shop.Location())
		if _, err := s.withinHours(ctx, tx, shop, req.RequestedDate, asked); err != nil {
			if errors.Is(err, ErrSlotNotAvailable) {
				return errorf(ErrSlotNoLongerAvailable, "requested time is no longer available: %s", err.Error())
			}
			return err
		}
		taken, err := s.detector.HasConflict(ctx, tx, shop.ID, w, b.ID)
		if err != nil {
			return err
		}
		if taken {
			return ErrSlotNoLongerAvailable
		}
		moved, err := tx.UpdateBookingWindow(ctx, b.ID, b.Version, w)
		if errors.Is(err, ErrSlotAlreadyBooked) {
			return ErrSlotNoLongerAvailable
		}
		if err != nil {
			return err
		}
		closed, err := tx.CloseRescheduleRequest(ctx, req.ID, model.RequestApproved, actorID, s.now().UTC())
		if err != nil {
			return err
		}
		product, err := tx.Product(ctx, b.ProductID)
		if err != nil {
			return err
		}

		evt := bookingEvent(moved, shop, product)
		prevStart, prevEnd := b.StartTime.UTC(), b.EndTime.UTC()
		evt.PreviousStart, evt.PreviousEnd = &prevStart, &prevEnd
		evt.RequestID = closed.ID
		out = RespondResult{Request: closed, Booking: moved}
		return enqueue(ctx, tx, evt, EventBookingRescheduled)
	})
	if err != nil {
		return RespondResult{}, err
	}
	s.logger.Info("reschedule request closed", "request_id", out.Request.ID, "booking_id", out.Booking.ID, "status", out.Request.Status)
	return out, nil
}

// ListRescheduleRequests returns the request history of a booking, oldest first.
func (s *Service) ListRescheduleRequests(ctx context.Context, actorID, bookingID string) ([]model.RescheduleRequest, error) {
	var out []model.RescheduleRequest
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.Booking(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := canView(ctx, tx, actorID, b); err != nil {
			return err
		}
		out, err = tx.RescheduleRequests(ctx, b.ID)
		return err
	})
	return out, err
}
