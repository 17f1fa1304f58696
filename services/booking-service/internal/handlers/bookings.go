package handlers

import (
	"net/http"
	"strings"

	"github.com/shopslot/shopslot/libs/httpx"
	"github.com/shopslot/shopslot/services/booking-service/internal/booking"
	"github.com/shopslot/shopslot/services/booking-service/internal/model"
)

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	b, err := h.svc.CreateBooking(r.Context(), actorID(r), booking.CreateBookingInput{
		ProductID: strings.TrimSpace(req.ProductID),
		Date:      date,
		Slot:      req.TimeSlot.slot(),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, "create booking", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	got, err := h.svc.CheckAvailability(r.Context(), strings.TrimSpace(req.ProductID), date, req.TimeSlot.slot())
	if err != nil {
		writeServiceError(w, r, h.logger, "check availability", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, availabilityResponse{Available: got.Available, Reason: got.Reason})
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.GetBooking(r.Context(), actorID(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get booking", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	bs, err := h.svc.ListCustomerBookings(r.Context(), actorID(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "list bookings", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingList(bs))
}

func (h *Handler) ListShopBookings(w http.ResponseWriter, r *http.Request) {
	bs, err := h.svc.ListShopBookings(r.Context(), actorID(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "list shop bookings", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingList(bs))
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	b, err := h.svc.SetStatus(r.Context(), actorID(r), r.PathValue("id"), status)
	if err != nil {
		writeServiceError(w, r, h.logger, "set booking status", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
}

// CancelBooking serves DELETE /bookings?bookingId=.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("bookingId"))
	if id == "" {
		writeValidationError(w, "bookingId is required")
		return
	}
	b, err := h.svc.Cancel(r.Context(), actorID(r), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "cancel booking", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
}
