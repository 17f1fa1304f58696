package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"
	"github.com/shopslot/shopslot/libs/auth"
	"github.com/shopslot/shopslot/libs/httpx"
	"github.com/shopslot/shopslot/services/booking-service/internal/booking"
	"github.com/shopslot/shopslot/services/booking-service/internal/model"
	"github.com/shopslot/shopslot/services/booking-service/internal/rules"
)

// Service is the part of booking.Service the HTTP layer drives.
type Service interface {
	CreateBooking(ctx context.Context, actorID string, in booking.CreateBookingInput) (model.Booking, error)
	CheckAvailability(ctx context.Context, productID string, date civil.Date, slot rules.TimeSlot) (booking.Availability, error)
	SetStatus(ctx context.Context, actorID, bookingID string, to model.Status) (model.Booking, error)
	Cancel(ctx context.Context, actorID, bookingID string) (model.Booking, error)
	GetBooking(ctx context.Context, actorID, bookingID string) (model.Booking, error)
	ListCustomerBookings(ctx context.Context, actorID string) ([]model.Booking, error)
	ListShopBookings(ctx context.Context, actorID string) ([]model.Booking, error)
	ReplaceRules(ctx context.Context, actorID, shopID string, rs rules.RuleSet) (rules.RuleSet, error)
	Rules(ctx context.Context, shopID string) (rules.RuleSet, error)
	AvailableSlots(ctx context.Context, productID string, date civil.Date) ([]rules.TimeSlot, error)
	RequestReschedule(ctx context.Context, actorID, bookingID string, in booking.RescheduleInput) (model.RescheduleRequest, error)
	Respond(ctx context.Context, actorID, requestID string, decision model.Decision) (booking.RespondResult, error)
	ListRescheduleRequests(ctx context.Context, actorID, bookingID string) ([]model.RescheduleRequest, error)
}

type Handler struct {
	svc      Service
	validate *validator.Validate
	logger   *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, validate: validator.New(), logger: logger}
}

// Register mounts the API on mux. Identity must already be on the context,
// see httpx.WithIdentity.
func (h *Handler) Register(mux *http.ServeMux) {
	authed := httpx.RequireActor
	owner := httpx.RequireRole(auth.RoleOwner)

	mux.HandleFunc("GET /shops/{id}/timeslots", h.GetTimeslots)
	mux.Handle("PATCH /shops/{id}/timeslots", owner(http.HandlerFunc(h.PatchTimeslots)))
	mux.HandleFunc("GET /shops/{id}/slots", h.Slots)
	mux.HandleFunc("POST /bookings/check-availability", h.CheckAvailability)

	mux.Handle("POST /bookings", authed(http.HandlerFunc(h.CreateBooking)))
	mux.Handle("GET /bookings", authed(http.HandlerFunc(h.ListBookings)))
	mux.Handle("DELETE /bookings", authed(http.HandlerFunc(h.CancelBooking)))
	mux.Handle("GET /bookings/{id}", authed(http.HandlerFunc(h.GetBooking)))
	mux.Handle("PATCH /bookings/{id}", authed(http.HandlerFunc(h.SetStatus)))
	mux.Handle("POST /bookings/{id}/reschedule-request", authed(http.HandlerFunc(h.RequestReschedule)))
	mux.Handle("GET /bookings/{id}/reschedule-requests", authed(http.HandlerFunc(h.ListRescheduleRequests)))
	mux.Handle("PATCH /reschedule-requests/{id}", owner(http.HandlerFunc(h.RespondReschedule)))
	mux.Handle("GET /business/bookings", owner(http.HandlerFunc(h.ListShopBookings)))
}

// decode reads and validates a JSON body, writing the 400 itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		writeValidationError(w, err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeValidationError(w, describeValidation(err))
		return false
	}
	return true
}

func describeValidation(err error) string {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s %s", f.Namespace(), f.Tag(), f.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", f.Namespace(), f.Tag()))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func actorID(r *http.Request) string {
	a, _ := httpx.ActorFromContext(r.Context())
	return a.UserID
}

func parseDate(raw string) (civil.Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		return civil.Date{}, fmt.Errorf("date %q must be YYYY-MM-DD", raw)
	}
	return d, nil
}
