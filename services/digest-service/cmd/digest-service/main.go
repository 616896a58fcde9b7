package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/yared-getachew/bookdesk/libs/config"
	"github.com/yared-getachew/bookdesk/libs/db"
	otelx "github.com/yared-getachew/bookdesk/libs/otel"
	"github.com/yared-getachew/bookdesk/libs/runtime"
	"github.com/yared-getachew/bookdesk/services/digest-service/internal/digest"
	"github.com/yared-getachew/bookdesk/services/digest-service/internal/outbox"
)

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "digest-service")
	port, err := config.Port("PORT", "8084")
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

	loc, err := time.LoadLocation(config.String("SERVICE_TZ", "Africa/Addis_Ababa"))
	if err != nil {
		logger.Error("invalid SERVICE_TZ", "err", err)
		panic(err)
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

	outboxRepo := outbox.NewRepository(pool)
	publisher := outbox.NewPublisher(pool, logger, config.String("KAFKA_BROKERS", ""))
	go publisher.Run(ctx)

	jobs := digest.NewJobs(digest.NewRepository(pool), outboxRepo, logger, loc)
	runner := cron.New(cron.WithLocation(loc))
	if err := jobs.Register(runner); err != nil {
		logger.Error("cron registration failed", "err", err)
		panic(err)
	}
	runner.Start()
	logger.Info("digest schedule started", "tz", loc.String())

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
	)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	cronCtx := runner.Stop()
	select {
	case <-cronCtx.Done():
	case <-time.After(10 * time.Second):
		logger.Warn("cron jobs did not finish before shutdown deadline")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("digest service stopped")
}
