package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopslot/shopslot/libs/auth"
	"github.com/shopslot/shopslot/libs/config"
	"github.com/shopslot/shopslot/libs/db"
	"github.com/shopslot/shopslot/libs/grpcx"
	"github.com/shopslot/shopslot/libs/httpx"
	"github.com/shopslot/shopslot/libs/inbox"
	"github.com/shopslot/shopslot/libs/kafkax"
	otelx "github.com/shopslot/shopslot/libs/otel"
	"github.com/shopslot/shopslot/libs/outbox"
	"github.com/shopslot/shopslot/libs/runtime"
	"github.com/shopslot/shopslot/services/booking-service/internal/booking"
	"github.com/shopslot/shopslot/services/booking-service/internal/events"
	"github.com/shopslot/shopslot/services/booking-service/internal/handlers"
	"github.com/shopslot/shopslot/services/booking-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if config.Bool("MIGRATE_ON_START", false) {
		if err := storage.Migrate(ctx, pool); err != nil {
			logger.Error("migration failed", "err", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	brokers := config.String("KAFKA_BROKERS", "")
	outboxRepo := outbox.NewRepository()
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	calendarConsumer := kafkax.NewConsumer(logger, kafkax.ConsumerConfig{
		Brokers:      brokers,
		GroupID:      config.String("KAFKA_GROUP_ID", service),
		Topics:       []string{booking.EventCalendarSynced},
		MaxRetries:   config.Int("KAFKA_MAX_RETRIES", 5),
		RetryBackoff: config.Duration("KAFKA_RETRY_BACKOFF", time.Second),
	}, inboxRepo.Handler(logger, events.CalendarSynced(logger, storage.RecordCalendarEvents)))
	go calendarConsumer.Run(ctx)

	svc := booking.NewService(storage.New(pool, outboxRepo), logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	handlers.New(svc, logger).Register(mux)

	verifier := auth.Verifier{Secret: config.String("JWT_SECRET", "")}
	if url := config.String("JWKS_URL", ""); url != "" {
		verifier.Keys = auth.NewJWKSClient(url, config.Duration("JWKS_CACHE_TTL", 5*time.Minute))
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.DefaultCORSPolicy(config.List("CORS_ALLOWED_ORIGINS", ""))),
		rateLimit(logger),
		httpx.WithBodyLimit(int64(config.Int("MAX_BODY_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 10*time.Second)),
		httpx.WithIdentity(verifier),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")

	grpcPort, err := config.Port("GRPC_PORT", "9083")
	if err != nil {
		panic(err)
	}
	health := grpcx.NewServer(logger)
	go health.WatchReadiness(ctx, 5*time.Second, func(ctx context.Context) error {
		for _, c := range readyChecks {
			if err := c.Check(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	go func() {
		lis, err := net.Listen("tcp", ":"+grpcPort)
		if err != nil {
			logger.Error("grpc listen failed", "err", err)
			return
		}
		if err := health.Serve(ctx, lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := runtime.Serve(ctx, srv, logger, 10*time.Second); err != nil {
		os.Exit(1)
	}
}

// rateLimit shares counters through Redis when REDIS_ADDR is set and falls
// back to a per-process limiter otherwise.
func rateLimit(logger *slog.Logger) httpx.Middleware {
	limit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	addr := strings.TrimSpace(config.String("REDIS_ADDR", ""))
	if addr == "" {
		return httpx.NewRateLimiter(limit, time.Minute).Middleware()
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return httpx.NewRedisRateLimiter(rdb, limit, time.Minute, "booking:rl:").Middleware(logger, true)
}
