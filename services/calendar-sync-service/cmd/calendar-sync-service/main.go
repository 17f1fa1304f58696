package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

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
	"github.com/shopslot/shopslot/services/calendar-sync-service/internal/gcal"
	"github.com/shopslot/shopslot/services/calendar-sync-service/internal/jobs"
	"github.com/shopslot/shopslot/services/calendar-sync-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "calendar-sync-service")
	port, err := config.Port("PORT", "8087")
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
	}

	stateSecret, err := config.RequiredString("OAUTH_STATE_SECRET")
	if err != nil {
		panic(err)
	}
	oauthCfg := gcal.NewOAuthConfig(gcal.OAuthConfig{
		ClientID:     config.String("GOOGLE_CLIENT_ID", ""),
		ClientSecret: config.String("GOOGLE_CLIENT_SECRET", ""),
		RedirectURL:  config.String("GOOGLE_REDIRECT_URL", ""),
	})
	connections := storage.NewConnections(pool)
	calendarClient := gcal.NewClient(oauthCfg, connections, config.String("GOOGLE_CALENDAR_ID", "primary"))

	brokers := config.String("KAFKA_BROKERS", "")
	outboxRepo := outbox.NewRepository()
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	jobRepo := jobs.NewRepository()
	worker := jobs.NewWorker(pool, jobRepo, outboxRepo, calendarClient, logger, jobs.WorkerConfig{
		Interval:    config.Duration("SYNC_POLL_INTERVAL", 2*time.Second),
		BatchSize:   config.Int("SYNC_BATCH_SIZE", 20),
		Backoff:     config.Duration("SYNC_BACKOFF", time.Minute),
		CallTimeout: config.Duration("CALENDAR_CALL_TIMEOUT", 15*time.Second),
	})
	go worker.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	consumer := kafkax.NewConsumer(logger, kafkax.ConsumerConfig{
		Brokers:      brokers,
		GroupID:      config.String("KAFKA_GROUP_ID", service),
		Topics:       jobs.Topics,
		MaxRetries:   config.Int("KAFKA_MAX_RETRIES", 5),
		RetryBackoff: config.Duration("KAFKA_RETRY_BACKOFF", time.Second),
	}, inboxRepo.Handler(logger, jobs.Handler(jobRepo)))
	go consumer.Run(ctx)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	gcal.NewConnectHandler(oauthCfg, connections, stateSecret, logger).Register(mux)

	verifier := auth.Verifier{Secret: config.String("JWT_SECRET", "")}
	if url := config.String("JWKS_URL", ""); url != "" {
		verifier.Keys = auth.NewJWKSClient(url, config.Duration("JWKS_CACHE_TTL", 5*time.Minute))
	}
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithIdentity(verifier),
	)
	handler = otelhttp.NewHandler(handler, "calendar-sync")

	grpcPort, err := config.Port("GRPC_PORT", "9087")
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
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := runtime.Serve(ctx, srv, logger, 10*time.Second); err != nil {
		os.Exit(1)
	}
}
