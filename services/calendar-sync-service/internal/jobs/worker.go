package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	otelx "github.com/shopslot/shopslot/libs/otel"
	"github.com/shopslot/shopslot/libs/outbox"
)

// TxRunner is satisfied by *db.Pool.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// Store is satisfied by *Repository.
type Store interface {
	FetchDue(ctx context.Context, tx pgx.Tx, limit int) ([]Job, error)
	MarkProcessed(ctx context.Context, tx pgx.Tx, id int64) error
	MarkFailed(ctx context.Context, tx pgx.Tx, id int64, attempts int, maxAttempts int, nextRunAt time.Time, lastError string) error
	LockState(ctx context.Context, tx pgx.Tx, bookingID string) (State, error)
	SaveState(ctx context.Context, tx pgx.Tx, s State) error
}

// Outbox is satisfied by *outbox.Repository.
type Outbox interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type Worker struct {
	pool        TxRunner
	repo        Store
	outbox      Outbox
	calendar    Calendar
	logger      *slog.Logger
	interval    time.Duration
	batchSize   int
	backoff     time.Duration
	callTimeout time.Duration
	now         func() time.Time
}

type WorkerConfig struct {
	Interval    time.Duration
	BatchSize   int
	Backoff     time.Duration
	CallTimeout time.Duration
}

func NewWorker(pool TxRunner, repo Store, outboxRepo Outbox, cal Calendar, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 1 * time.Minute
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 15 * time.Second
	}
	return &Worker{
		pool:        pool,
		repo:        repo,
		outbox:      outboxRepo,
		calendar:    cal,
		logger:      logger,
		interval:    cfg.Interval,
		batchSize:   cfg.BatchSize,
		backoff:     cfg.Backoff,
		callTimeout: cfg.CallTimeout,
		now:         time.Now,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				w.logger.Error("calendar sync batch failed", "err", err)
			}
		}
	}
}

// processBatch handles up to batchSize jobs, each in its own transaction so
// one job's calendar calls are never rolled back by another's failure.
func (w *Worker) processBatch(ctx context.Context) error {
	for i := 0; i < w.batchSize; i++ {
		found, err := w.processOne(ctx)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
	}
	return nil
}

func (w *Worker) processOne(ctx context.Context) (bool, error) {
	found := false
	err := w.pool.WithTx(ctx, func(tx pgx.Tx) error {
		due, err := w.repo.FetchDue(ctx, tx, 1)
		if err != nil || len(due) == 0 {
			return err
		}
		found = true
		job := due[0]
		jobCtx := otelx.ContextWithTraceContext(ctx, job.Traceparent, job.Tracestate)

		state, err := w.repo.LockState(jobCtx, tx, job.BookingID)
		if err != nil {
			return err
		}
		if state.Stale(job) {
			w.logger.Info("stale calendar job skipped", "booking_id", job.BookingID, "version", job.Version, "applied_version", state.AppliedVersion)
			return w.repo.MarkProcessed(jobCtx, tx, job.ID)
		}

		callCtx, cancel := context.WithTimeout(jobCtx, w.callTimeout)
		next, syncErr := Apply(callCtx, w.calendar, state, job)
		cancel()
		if err := w.repo.SaveState(jobCtx, tx, next); err != nil {
			return err
		}
		if syncErr != nil {
			return w.fail(jobCtx, tx, job, syncErr)
		}

		evt, err := outbox.NewEvent("booking", job.BookingID, EventCalendarSynced, syncedPayload{
			BookingID:       job.BookingID,
			Version:         job.Version,
			OwnerEventID:    next.OwnerEventID,
			CustomerEventID: next.CustomerEventID,
		})
		if err != nil {
			return err
		}
		if err := w.outbox.Insert(jobCtx, tx, evt); err != nil {
			return err
		}
		w.logger.Info("calendar synced", "booking_id", job.BookingID, "version", job.Version, "action", job.Action)
		return w.repo.MarkProcessed(jobCtx, tx, job.ID)
	})
	return found, err
}

func (w *Worker) fail(ctx context.Context, tx pgx.Tx, job Job, cause error) error {
	attempts := job.Attempts + 1
	nextRunAt := w.now().UTC().Add(w.backoff)
	if err := w.repo.MarkFailed(ctx, tx, job.ID, attempts, job.MaxAttempts, nextRunAt, cause.Error()); err != nil {
		return err
	}
	if attempts < job.MaxAttempts {
		w.logger.Warn("calendar sync failed, will retry", "err", cause, "booking_id", job.BookingID, "attempt", attempts)
		return nil
	}
	w.logger.Error("calendar sync gave up", "err", cause, "booking_id", job.BookingID, "attempt", attempts)
	evt, err := outbox.NewEvent("calendar_sync_job", job.BookingID, EventCalendarSyncDLQ, dlqPayload{
		BookingID:   job.BookingID,
		Version:     job.Version,
		Action:      job.Action,
		Attempts:    attempts,
		ErrorReason: cause.Error(),
		FailedAt:    w.now().UTC(),
	})
	if err != nil {
		return err
	}
	return w.outbox.Insert(ctx, tx, evt)
}

type syncedPayload struct {
	BookingID       string  `json:"booking_id"`
	Version         int     `json:"version"`
	OwnerEventID    *string `json:"owner_event_id"`
	CustomerEventID *string `json:"customer_event_id"`
}

type dlqPayload struct {
	BookingID   string    `json:"booking_id"`
	Version     int       `json:"version"`
	Action      Action    `json:"action"`
	Attempts    int       `json:"attempts"`
	ErrorReason string    `json:"error_reason"`
	FailedAt    time.Time `json:"failed_at"`
}
