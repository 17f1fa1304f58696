package handlers

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopslot/shopslot/services/booking-service/internal/booking"
	"github.com/shopslot/shopslot/services/booking-service/internal/model"
	"github.com/shopslot/shopslot/services/booking-service/internal/rules"
)

type timeSlotDTO struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

func (t timeSlotDTO) slot() rules.TimeSlot { return rules.TimeSlot{Start: t.Start, End: t.End} }

type slotRequest struct {
	ProductID string      `json:"productId" validate:"required"`
	Date      string      `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot  timeSlotDTO `json:"timeSlot"`
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type rescheduleRequestBody struct {
	RequestedDate      string `json:"requestedDate" validate:"required,datetime=2006-01-02"`
	RequestedStartTime string `json:"requestedStartTime" validate:"required"`
	RequestedEndTime   string `json:"requestedEndTime" validate:"required"`
	Reason             string `json:"reason" validate:"required"`
}

func bookingRescheduleInput(date civil.Date, req rescheduleRequestBody) booking.RescheduleInput {
	return booking.RescheduleInput{
		Date:   date,
		Slot:   rules.TimeSlot{Start: req.RequestedStartTime, End: req.RequestedEndTime},
		Reason: strings.TrimSpace(req.Reason),
	}
}

type respondRequest struct {
	Action string `json:"action" validate:"required"`
}

type timeslotsBody struct {
	Rules rules.RuleSet `json:"rules"`
}

type timeslotsResponse struct {
	ShopID string        `json:"shopId"`
	Rules  rules.RuleSet `json:"rules"`
}

type availabilityResponse struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

type slotsResponse struct {
	Date  string           `json:"date"`
	Slots []rules.TimeSlot `json:"slots"`
}

type bookingResponse struct {
	ID              string  `json:"id"`
	CustomerID      string  `json:"customerId"`
	ProductID       string  `json:"productId"`
	ShopID          string  `json:"shopId"`
	StartTime       string  `json:"startTime"`
	EndTime         string  `json:"endTime"`
	Status          string  `json:"status"`
	Version         int     `json:"version"`
	OwnerEventID    *string `json:"ownerEventId"`
	CustomerEventID *string `json:"customerEventId"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
}

type rescheduleResponse struct {
	ID                 string  `json:"id"`
	BookingID          string  `json:"bookingId"`
	CustomerID         string  `json:"customerId"`
	RequestedDate      string  `json:"requestedDate"`
	RequestedStartTime string  `json:"requestedStartTime"`
	RequestedEndTime   string  `json:"requestedEndTime"`
	Reason             string  `json:"reason"`
	Status             string  `json:"status"`
	CreatedAt          string  `json:"createdAt"`
	RespondedAt        *string `json:"respondedAt"`
	RespondedBy        *string `json:"respondedBy"`
}

type respondResponse struct {
	Request rescheduleResponse `json:"request"`
	Booking bookingResponse    `json:"booking"`
}

func toBookingResponse(b model.Booking) bookingResponse {
	return bookingResponse{
		ID:              b.ID,
		CustomerID:      b.CustomerID,
		ProductID:       b.ProductID,
		ShopID:          b.ShopID,
		StartTime:       formatTime(b.StartTime),
		EndTime:         formatTime(b.EndTime),
		Status:          strings.ToUpper(string(b.Status)),
		Version:         b.Version,
		OwnerEventID:    b.OwnerEventID,
		CustomerEventID: b.CustomerEventID,
		CreatedAt:       formatTime(b.CreatedAt),
		UpdatedAt:       formatTime(b.UpdatedAt),
	}
}

func toBookingList(bs []model.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBookingResponse(b))
	}
	return out
}

func toRescheduleResponse(r model.RescheduleRequest) rescheduleResponse {
	resp := rescheduleResponse{
		ID:                 r.ID,
		BookingID:          r.BookingID,
		CustomerID:         r.CustomerID,
		RequestedDate:      r.RequestedDate.String(),
		RequestedStartTime: formatTime(r.RequestedStartTime),
		RequestedEndTime:   formatTime(r.RequestedEndTime),
		Reason:             r.Reason,
		Status:             strings.ToUpper(string(r.Status)),
		CreatedAt:          formatTime(r.CreatedAt),
		RespondedBy:        r.RespondedBy,
	}
	if r.RespondedAt != nil {
		at := formatTime(*r.RespondedAt)
		resp.RespondedAt = &at
	}
	return resp
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
