package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yared-getachew/bookdesk/libs/config"
	"github.com/yared-getachew/bookdesk/libs/db"
	"github.com/yared-getachew/bookdesk/libs/httpx"
	"github.com/yared-getachew/bookdesk/libs/kafkax"
	otelx "github.com/yared-getachew/bookdesk/libs/otel"
	"github.com/yared-getachew/bookdesk/libs/runtime"
	"github.com/yared-getachew/bookdesk/services/booking-service/internal/blocking"
	"github.com/yared-getachew/bookdesk/services/booking-service/internal/handlers"
	"github.com/yared-getachew/bookdesk/services/booking-service/internal/notify"
	"github.com/yared-getachew/bookdesk/services/booking-service/internal/outbox"
	"github.com/yared-getachew/bookdesk/services/booking-service/internal/storage"
)

func main() {
	_ = godotenv.Load()

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

	bookings := storage.NewBookingRepository(pool)
	schedule := storage.NewScheduleRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	var notifier notify.Notifier
	if url := config.String("CHAT_WEBHOOK_URL", ""); url != "" {
		notifier = notify.NewWebhookNotifier(url, config.String("CHAT_WEBHOOK_TOKEN", ""))
	} else {
		logger.Warn("chat webhook not configured; cascade notifications disabled")
		notifier = notify.NewNoopNotifier()
	}

	blockStore := blocking.NewStore(pool, bookings, outboxRepo, loc)
	workflow := blocking.NewWorkflow(blockStore, notifier)

	bookingHandler := handlers.NewBookingHandler(pool, bookings, schedule, outboxRepo, logger, loc)
	adminHandler := handlers.NewAdminHandler(schedule, bookings, workflow, logger)

	// without brokers the publisher idles; readiness must not hinge on kafka then
	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.HandleFunc("/api/v1/public/open-days", bookingHandler.OpenDays)
	mux.HandleFunc("/api/v1/public/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/public/book", bookingHandler.Book)
	mux.HandleFunc("/api/v1/appointments", bookingHandler.Appointments)
	mux.HandleFunc("/api/v1/appointments/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/admin/availability", adminHandler.Availability)
	mux.HandleFunc("/api/v1/admin/roster", adminHandler.Roster)
	mux.HandleFunc("/api/v1/admin/blocks", adminHandler.Blocks)
	mux.HandleFunc("/api/v1/admin/blocks/delete", adminHandler.DeleteBlock)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
