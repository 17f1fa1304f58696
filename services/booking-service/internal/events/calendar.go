// Package events applies events other services emit about bookings.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"github.com/shopslot/shopslot/libs/inbox"
	"github.com/shopslot/shopslot/libs/kafkax"
	"github.com/shopslot/shopslot/services/booking-service/internal/booking"
)

// Recorder stores the calendar ids for one booking version, reporting false
// when a newer version was already recorded.
type Recorder func(ctx context.Context, tx pgx.Tx, evt booking.CalendarSynced) (bool, error)

// CalendarSynced handles calendar.event.synced.v1.
func CalendarSynced(logger *slog.Logger, record Recorder) inbox.TxHandler {
	return func(ctx context.Context, tx pgx.Tx, msg kafka.Message) error {
		evt, err := decodeCalendarSynced(msg.Value)
		if err != nil {
			return fmt.Errorf("%w: %v", kafkax.ErrSkip, err)
		}
		applied, err := record(ctx, tx, evt)
		if err != nil {
			return err
		}
		if !applied {
			logger.Info("stale calendar sync ignored", "booking_id", evt.BookingID, "version", evt.Version)
			return nil
		}
		logger.Info("calendar ids recorded", "booking_id", evt.BookingID, "version", evt.Version)
		return nil
	}
}

func decodeCalendarSynced(raw []byte) (booking.CalendarSynced, error) {
	var evt booking.CalendarSynced
	if err := json.Unmarshal(raw, &evt); err != nil {
		return booking.CalendarSynced{}, fmt.Errorf("invalid calendar sync payload: %w", err)
	}
	if evt.BookingID == "" || evt.Version <= 0 {
		return booking.CalendarSynced{}, errors.New("calendar sync payload missing booking_id or version")
	}
	return evt, nil
}
