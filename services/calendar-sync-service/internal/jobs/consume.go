package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"github.com/shopslot/shopslot/libs/inbox"
	"github.com/shopslot/shopslot/libs/kafkax"
)

// Queue is satisfied by *Repository.
type Queue interface {
	Insert(ctx context.Context, tx pgx.Tx, job Job) error
}

// Handler queues the sync job each consumed booking event asks for.
// Payloads that can never become a job are skipped, not retried.
func Handler(queue Queue) inbox.TxHandler {
	return func(ctx context.Context, tx pgx.Tx, msg kafka.Message) error {
		meta := kafkax.ExtractEventMeta(msg)
		job, err := FromEvent(meta.EventType, msg.Value)
		if err != nil {
			return fmt.Errorf("%w: %v", kafkax.ErrSkip, err)
		}
		return queue.Insert(ctx, tx, job)
	}
}
