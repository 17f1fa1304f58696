package storage

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/shopslot/shopslot/services/booking-service/internal/model"
)

const requestColumns = `id::text, booking_id::text, customer_id, requested_date, requested_start_time,
	requested_end_time, reason, status, created_at, responded_at, responded_by`

func scanRequest(row pgx.Row) (model.RescheduleRequest, error) {
	var r model.RescheduleRequest
	var date time.Time
	err := row.Scan(
		&r.ID,
		&r.BookingID,
		&r.CustomerID,
		&date,
		&r.RequestedStartTime,
		&r.RequestedEndTime,
		&r.Reason,
		&r.Status,
		&r.CreatedAt,
		&r.RespondedAt,
		&r.RespondedBy,
	)
	r.RequestedDate = civil.DateOf(date)
	return r, err
}

func (t *txStore) RescheduleRequest(ctx context.Context, id string) (model.RescheduleRequest, error) {
	r, err := scanRequest(t.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM reschedule_requests WHERE id = $1`, id))
	return r, mapErr(err)
}

func (t *txStore) RescheduleRequestForUpdate(ctx context.Context, id string) (model.RescheduleRequest, error) {
	r, err := scanRequest(t.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM reschedule_requests WHERE id = $1 FOR UPDATE`, id))
	return r, mapErr(err)
}

func (t *txStore) HasPendingRequest(ctx context.Context, bookingID string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reschedule_requests
			WHERE booking_id = $1 AND status = 'pending'
		)
	`, bookingID).Scan(&exists)
	return exists, mapErr(err)
}

func (t *txStore) InsertRescheduleRequest(ctx context.Context, r model.RescheduleRequest) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO reschedule_requests
			(id, booking_id, customer_id, requested_date, requested_start_time, requested_end_time, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.ID, r.BookingID, r.CustomerID, dateValue(r.RequestedDate), r.RequestedStartTime, r.RequestedEndTime,
		r.Reason, r.Status, r.CreatedAt)
	return mapErr(err)
}

func (t *txStore) CloseRescheduleRequest(ctx context.Context, id string, status model.RequestStatus, respondedBy string, at time.Time) (model.RescheduleRequest, error) {
	r, err := scanRequest(t.tx.QueryRow(ctx, `
		UPDATE reschedule_requests
		SET status = $2,
			responded_by = $3,
			responded_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING `+requestColumns, id, status, respondedBy, at))
	return r, mapErr(err)
}

func (t *txStore) RescheduleRequests(ctx context.Context, bookingID string) ([]model.RescheduleRequest, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+requestColumns+`
		FROM reschedule_requests
		WHERE booking_id = $1
		ORDER BY created_at, id
	`, bookingID)
	if err != nil {
		return nil, mapErr(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.RescheduleRequest, error) {
		return scanRequest(row)
	})
}
