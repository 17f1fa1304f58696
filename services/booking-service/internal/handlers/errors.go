package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopslot/shopslot/libs/httpx"
	"github.com/shopslot/shopslot/services/booking-service/internal/booking"
)

var kindStatus = map[booking.Kind]int{
	booking.KindValidation:       http.StatusBadRequest,
	booking.KindAuthorization:    http.StatusForbidden,
	booking.KindNotFound:         http.StatusNotFound,
	booking.KindConflict:         http.StatusConflict,
	booking.KindAlreadyProcessed: http.StatusBadRequest,
}

// writeServiceError renders a booking.Error by kind. Anything else is logged
// and reported as a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	var de *booking.Error
	if errors.As(err, &de) {
		status, ok := kindStatus[de.Kind]
		if !ok {
			status = http.StatusBadRequest
		}
		httpx.WriteJSON(w, status, httpx.ErrorBody{Error: de.Message, Code: de.Code, Kind: string(de.Kind)})
		return
	}
	logger.Error(op+" failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
	httpx.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
}

func writeValidationError(w http.ResponseWriter, msg string) {
	httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorBody{
		Error: msg,
		Code:  booking.ErrInvalidInput.Code,
		Kind:  string(booking.KindValidation),
	})
}
