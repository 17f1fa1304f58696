package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopslot/shopslot/libs/db"
	"github.com/shopslot/shopslot/libs/outbox"
	"github.com/shopslot/shopslot/services/booking-service/internal/booking"
)

const pendingRequestIndex = "reschedule_one_pending"

// Store implements booking.Store on Postgres.
type Store struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func New(pool *db.Pool, outboxRepo *outbox.Repository) *Store {
	return &Store{pool: pool, outbox: outboxRepo}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	return s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx, outbox: s.outbox})
	})
}

type txStore struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (t *txStore) LockShop(ctx context.Context, shopID string) error {
	return db.LockScope(ctx, t.tx, "shop:"+shopID)
}

func (t *txStore) Enqueue(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

// mapErr translates driver errors into the booking error taxonomy.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows), db.IsInvalidText(err):
		return booking.ErrNotFound
	case db.IsExclusionViolation(err):
		return booking.ErrSlotAlreadyBooked
	case db.IsUniqueViolation(err) && db.ConstraintName(err) == pendingRequestIndex:
		return booking.ErrDuplicatePendingRequest
	}
	return err
}
