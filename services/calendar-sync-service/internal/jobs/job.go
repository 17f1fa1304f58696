package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopslot/shopslot/services/calendar-sync-service/internal/gcal"
)

const (
	EventBookingConfirmed   = "booking.confirmed.v1"
	EventBookingCancelled   = "booking.cancelled.v1"
	EventBookingRescheduled = "booking.rescheduled.v1"
	EventCalendarSynced     = "calendar.event.synced.v1"
	EventCalendarSyncDLQ    = "calendar.sync.dlq.v1"
)

// Topics lists the booking events that move calendar entries.
var Topics = []string{EventBookingConfirmed, EventBookingCancelled, EventBookingRescheduled}

type Action string

const (
	ActionUpsert Action = "upsert"
	ActionRemove Action = "remove"
)

// ErrUnsupportedEvent marks a payload that does not describe a sync.
var ErrUnsupportedEvent = errors.New("unsupported booking event")

// bookingEvent is the part of a booking.* payload the sync needs.
type bookingEvent struct {
	BookingID   string    `json:"booking_id"`
	Version     int       `json:"version"`
	CustomerID  string    `json:"customer_id"`
	OwnerID     string    `json:"owner_id"`
	ShopName    string    `json:"shop_name"`
	ProductName string    `json:"product_name"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

type Job struct {
	ID          int64
	BookingID   string
	Version     int
	Action      Action
	OwnerID     string
	CustomerID  string
	Summary     string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Traceparent string
	Tracestate  string
	Attempts    int
	MaxAttempts int
	NextRunAt   time.Time
}

// FromEvent builds the job a booking event asks for.
func FromEvent(eventType string, raw []byte) (Job, error) {
	var action Action
	switch eventType {
	case EventBookingConfirmed, EventBookingRescheduled:
		action = ActionUpsert
	case EventBookingCancelled:
		action = ActionRemove
	default:
		return Job{}, fmt.Errorf("%w: %q", ErrUnsupportedEvent, eventType)
	}
	var evt bookingEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrUnsupportedEvent, err)
	}
	if evt.BookingID == "" || evt.Version <= 0 {
		return Job{}, fmt.Errorf("%w: missing booking_id or version", ErrUnsupportedEvent)
	}
	if action == ActionUpsert && !evt.EndTime.After(evt.StartTime) {
		return Job{}, fmt.Errorf("%w: booking %s has no valid window", ErrUnsupportedEvent, evt.BookingID)
	}
	summary := evt.ProductName
	if evt.ShopName != "" {
		summary += " - " + evt.ShopName
	}
	if eventType == EventBookingRescheduled {
		summary += " (rescheduled)"
	}
	return Job{
		BookingID:   evt.BookingID,
		Version:     evt.Version,
		Action:      action,
		OwnerID:     evt.OwnerID,
		CustomerID:  evt.CustomerID,
		Summary:     summary,
		Description: "Booking " + evt.BookingID,
		StartTime:   evt.StartTime.UTC(),
		EndTime:     evt.EndTime.UTC(),
	}, nil
}

func (j Job) event() gcal.Event {
	return gcal.Event{Summary: j.Summary, Description: j.Description, Start: j.StartTime, End: j.EndTime}
}
