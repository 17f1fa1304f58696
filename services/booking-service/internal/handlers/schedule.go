package handlers

import (
	"net/http"
	"strings"

	"github.com/shopslot/shopslot/libs/httpx"
	"github.com/shopslot/shopslot/services/booking-service/internal/model"
	"github.com/shopslot/shopslot/services/booking-service/internal/rules"
)

func (h *Handler) GetTimeslots(w http.ResponseWriter, r *http.Request) {
	shopID := r.PathValue("id")
	rs, err := h.svc.Rules(r.Context(), shopID)
	if err != nil {
		writeServiceError(w, r, h.logger, "get timeslots", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, timeslotsResponse{ShopID: shopID, Rules: rs})
}

// PatchTimeslots replaces the shop's entire rule collection.
func (h *Handler) PatchTimeslots(w http.ResponseWriter, r *http.Request) {
	var body timeslotsBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		writeValidationError(w, err.Error())
		return
	}
	if body.Rules == nil {
		body.Rules = rules.RuleSet{}
	}
	shopID := r.PathValue("id")
	saved, err := h.svc.ReplaceRules(r.Context(), actorID(r), shopID, body.Rules)
	if err != nil {
		writeServiceError(w, r, h.logger, "replace timeslots", err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, http.StatusOK, timeslotsResponse{ShopID: shopID, Rules: saved})
}

// Slots serves GET /shops/{id}/slots?product_id=&date=, the free slots of one day.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID := strings.TrimSpace(q.Get("product_id"))
	if productID == "" {
		writeValidationError(w, "product_id is required")
		return
	}
	date, err := parseDate(q.Get("date"))
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	slots, err := h.svc.AvailableSlots(r.Context(), productID, date)
	if err != nil {
		writeServiceError(w, r, h.logger, "list slots", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, slotsResponse{Date: date.String(), Slots: slots})
}

func (h *Handler) RequestReschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequestBody
	if !h.decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.RequestedDate)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	created, err := h.svc.RequestReschedule(r.Context(), actorID(r), r.PathValue("id"), bookingRescheduleInput(date, req))
	if err != nil {
		writeServiceError(w, r, h.logger, "request reschedule", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toRescheduleResponse(created))
}

func (h *Handler) ListRescheduleRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.svc.ListRescheduleRequests(r.Context(), actorID(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "list reschedule requests", err)
		return
	}
	out := make([]rescheduleResponse, 0, len(reqs))
	for _, rr := range reqs {
		out = append(out, toRescheduleResponse(rr))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) RespondReschedule(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if !h.decode(w, r, &req) {
		return
	}
	decision, err := model.ParseDecision(req.Action)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	res, err := h.svc.Respond(r.Context(), actorID(r), r.PathValue("id"), decision)
	if err != nil {
		writeServiceError(w, r, h.logger, "respond to reschedule request", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, respondResponse{
		Request: toRescheduleResponse(res.Request),
		Booking: toBookingResponse(res.Booking),
	})
}
