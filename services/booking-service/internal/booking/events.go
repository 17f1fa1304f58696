package booking

import (
	"time"

	"github.com/shopslot/shopslot/libs/outbox"
	"github.com/shopslot/shopslot/services/booking-service/internal/model"
)

const (
	EventBookingCreated      = "booking.created.v1"
	EventBookingConfirmed    = "booking.confirmed.v1"
	EventBookingCancelled    = "booking.cancelled.v1"
	EventBookingRescheduled  = "booking.rescheduled.v1"
	EventRescheduleRequested = "booking.reschedule_requested.v1"
	EventRescheduleDeclined  = "booking.reschedule_declined.v1"
	EventCalendarSynced      = "calendar.event.synced.v1"
)

const aggregateBooking = "booking"

// BookingEvent is the payload of every booking.* event.
type BookingEvent struct {
	BookingID      string     `json:"booking_id"`
	Version        int        `json:"version"`
	Status         string     `json:"status"`
	PreviousStatus string     `json:"previous_status,omitempty"`
	CustomerID     string     `json:"customer_id"`
	OwnerID        string     `json:"owner_id"`
	ShopID         string     `json:"shop_id"`
	ShopName       string     `json:"shop_name,omitempty"`
	ProductID      string     `json:"product_id"`
	ProductName    string     `json:"product_name,omitempty"`
	Timezone       string     `json:"timezone,omitempty"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        time.Time  `json:"end_time"`
	PreviousStart  *time.Time `json:"previous_start_time,omitempty"`
	PreviousEnd    *time.Time `json:"previous_end_time,omitempty"`
	RequestID      string     `json:"reschedule_request_id,omitempty"`
}

// RescheduleEvent is the payload of booking.reschedule_requested.v1 and
// booking.reschedule_declined.v1.
type RescheduleEvent struct {
	RequestID      string    `json:"reschedule_request_id"`
	BookingID      string    `json:"booking_id"`
	Status         string    `json:"status"`
	CustomerID     string    `json:"customer_id"`
	OwnerID        string    `json:"owner_id"`
	ShopID         string    `json:"shop_id"`
	RequestedStart time.Time `json:"requested_start_time"`
	RequestedEnd   time.Time `json:"requested_end_time"`
	Reason         string    `json:"reason"`
	RespondedBy    string    `json:"responded_by,omitempty"`
}

// CalendarSynced is published by the calendar sync service once both
// parties' events reflect Version.
type CalendarSynced struct {
	BookingID       string  `json:"booking_id"`
	Version         int     `json:"version"`
	OwnerEventID    *string `json:"owner_event_id"`
	CustomerEventID *string `json:"customer_event_id"`
}

func bookingEvent(b model.Booking, shop model.Shop, product model.Product) BookingEvent {
	return BookingEvent{
		BookingID:   b.ID,
		Version:     b.Version,
		Status:      string(b.Status),
		CustomerID:  b.CustomerID,
		OwnerID:     shop.OwnerID,
		ShopID:      shop.ID,
		ShopName:    shop.Name,
		ProductID:   product.ID,
		ProductName: product.Name,
		Timezone:    shop.Timezone,
		StartTime:   b.StartTime.UTC(),
		EndTime:     b.EndTime.UTC(),
	}
}

func (e BookingEvent) outbox(eventType string) (outbox.Event, error) {
	return outbox.NewEvent(aggregateBooking, e.BookingID, eventType, e)
}

func rescheduleEvent(r model.RescheduleRequest, shop model.Shop) RescheduleEvent {
	e := RescheduleEvent{
		RequestID:      r.ID,
		BookingID:      r.BookingID,
		Status:         string(r.Status),
		CustomerID:     r.CustomerID,
		OwnerID:        shop.OwnerID,
		ShopID:         shop.ID,
		RequestedStart: r.RequestedStartTime.UTC(),
		RequestedEnd:   r.RequestedEndTime.UTC(),
		Reason:         r.Reason,
	}
	if r.RespondedBy != nil {
		e.RespondedBy = *r.RespondedBy
	}
	return e
}

func (e RescheduleEvent) outbox(eventType string) (outbox.Event, error) {
	return outbox.NewEvent(aggregateBooking, e.BookingID, eventType, e)
}
