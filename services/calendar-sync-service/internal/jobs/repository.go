package jobs

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	otelx "github.com/shopslot/shopslot/libs/otel"
)

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Insert ignores a job already queued for the same booking version and action.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, job Job) error {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err := tx.Exec(ctx, `
		INSERT INTO calendar_sync_jobs (booking_id, version, action, owner_id, customer_id, summary, description, start_time, end_time, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (booking_id, version, action) DO NOTHING
	`, job.BookingID, job.Version, string(job.Action), job.OwnerID, job.CustomerID, job.Summary, job.Description, job.StartTime, job.EndTime, traceparent, tracestate)
	return err
}

func (r *Repository) FetchDue(ctx context.Context, tx pgx.Tx, limit int) ([]Job, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, booking_id, version, action, owner_id, customer_id, summary, description, start_time, end_time,
		       COALESCE(traceparent, ''), COALESCE(tracestate, ''), attempts, max_attempts, next_run_at
		FROM calendar_sync_jobs
		WHERE status = 'pending' AND next_run_at <= now()
		ORDER BY next_run_at, version
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var action string
		if err := rows.Scan(&j.ID, &j.BookingID, &j.Version, &action, &j.OwnerID, &j.CustomerID, &j.Summary, &j.Description, &j.StartTime, &j.EndTime, &j.Traceparent, &j.Tracestate, &j.Attempts, &j.MaxAttempts, &j.NextRunAt); err != nil {
			return nil, err
		}
		j.Action = Action(action)
		jobs = append(jobs, j)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return jobs, nil
}

func (r *Repository) MarkProcessed(ctx context.Context, tx pgx.Tx, id int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE calendar_sync_jobs
		SET status = 'processed', updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, tx pgx.Tx, id int64, attempts int, maxAttempts int, nextRunAt time.Time, lastError string) error {
	status := "pending"
	if attempts >= maxAttempts {
		status = "failed"
	}
	_, err := tx.Exec(ctx, `
		UPDATE calendar_sync_jobs
		SET attempts = $2,
		    status = $3,
		    next_run_at = $4,
		    last_error = $5,
		    updated_at = now()
		WHERE id = $1
	`, id, attempts, status, nextRunAt, lastError)
	return err
}

// LockState returns the booking's calendar state, creating an empty row on
// first sight, and holds its row lock until tx ends.
func (r *Repository) LockState(ctx context.Context, tx pgx.Tx, bookingID string) (State, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO calendar_events (booking_id) VALUES ($1)
		ON CONFLICT (booking_id) DO NOTHING
	`, bookingID); err != nil {
		return State{}, err
	}
	s := State{BookingID: bookingID}
	err := tx.QueryRow(ctx, `
		SELECT owner_event_id, customer_event_id, applied_version
		FROM calendar_events
		WHERE booking_id = $1
		FOR UPDATE
	`, bookingID).Scan(&s.OwnerEventID, &s.CustomerEventID, &s.AppliedVersion)
	return s, err
}

func (r *Repository) SaveState(ctx context.Context, tx pgx.Tx, s State) error {
	_, err := tx.Exec(ctx, `
		UPDATE calendar_events
		SET owner_event_id = $2,
		    customer_event_id = $3,
		    applied_version = $4,
		    updated_at = now()
		WHERE booking_id = $1
	`, s.BookingID, s.OwnerEventID, s.CustomerEventID, s.AppliedVersion)
	return err
}
