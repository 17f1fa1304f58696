package inbox

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"github.com/shopslot/shopslot/libs/db"
	"github.com/shopslot/shopslot/libs/kafkax"
)

// TxHandler processes one event inside the transaction that records it.
type TxHandler func(ctx context.Context, tx pgx.Tx, msg kafka.Message) error

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record reports false when eventID was already processed.
func (r *Repository) Record(ctx context.Context, tx pgx.Tx, eventID string, eventType string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Handler wraps fn so each event id is applied exactly once. The inbox row and
// fn's writes commit together, so a failed fn leaves the event unrecorded.
func (r *Repository) Handler(logger *slog.Logger, fn TxHandler) kafkax.Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		meta := kafkax.ExtractEventMeta(msg)
		return r.pool.WithTx(ctx, func(tx pgx.Tx) error {
			fresh, err := r.Record(ctx, tx, meta.EventID, meta.EventType)
			if err != nil {
				return err
			}
			if !fresh {
				logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
				return nil
			}
			return fn(ctx, tx, msg)
		})
	}
}
