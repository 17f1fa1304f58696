package kafkax

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Reader is the subset of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerConfig struct {
	Brokers      string
	GroupID      string
	Topics       []string
	MaxRetries   int
	RetryBackoff time.Duration
}

// Consumer delivers each message to its handler at least once. The offset is
// committed only after the handler returns nil or retries are exhausted.
type Consumer struct {
	reader      Reader
	logger      *slog.Logger
	handler     Handler
	maxRetries  int
	backoff     time.Duration
	readBackoff time.Duration
}

func NewConsumer(logger *slog.Logger, cfg ConsumerConfig, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     SplitBrokers(cfg.Brokers),
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return newConsumer(reader, logger, cfg, handler)
}

func newConsumer(reader Reader, logger *slog.Logger, cfg ConsumerConfig, handler Handler) *Consumer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	return &Consumer{
		reader:      reader,
		logger:      logger,
		handler:     handler,
		maxRetries:  cfg.MaxRetries,
		backoff:     cfg.RetryBackoff,
		readBackoff: time.Second,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			if !sleep(ctx, c.readBackoff) {
				return
			}
			continue
		}

		if !c.deliver(ctx, msg) {
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

// deliver returns false only when ctx is cancelled mid-retry; the message is
// then left uncommitted for the next group member.
func (c *Consumer) deliver(ctx context.Context, msg kafka.Message) bool {
	meta := ExtractEventMeta(msg)
	msgCtx := ExtractTraceContext(ctx, msg)
	spanCtx, span := otel.Tracer("kafka").Start(msgCtx, "kafka.consume "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.String("messaging.message_id", meta.EventID),
		),
	)
	defer span.End()

	for attempt := 1; ; attempt++ {
		err := c.handler(spanCtx, msg)
		if err == nil {
			return true
		}
		span.RecordError(err)
		if errors.Is(err, ErrSkip) || attempt >= c.maxRetries {
			span.SetStatus(codes.Error, err.Error())
			c.logger.Error("event dropped", "err", err, "event_id", meta.EventID, "event_type", meta.EventType, "attempts", attempt)
			return true
		}
		c.logger.Warn("handler error, retrying", "err", err, "event_id", meta.EventID, "attempt", attempt)
		if !sleep(ctx, c.backoff*time.Duration(attempt)) {
			return false
		}
	}
}

// ErrSkip marks a message that can never succeed, such as a malformed payload.
var ErrSkip = errors.New("skip message")

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
