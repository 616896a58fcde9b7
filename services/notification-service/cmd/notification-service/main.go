package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/yared-getachew/bookdesk/libs/config"
	"github.com/yared-getachew/bookdesk/libs/db"
	"github.com/yared-getachew/bookdesk/libs/kafkax"
	otelx "github.com/yared-getachew/bookdesk/libs/otel"
	"github.com/yared-getachew/bookdesk/libs/runtime"
	"github.com/yared-getachew/bookdesk/services/notification-service/internal/chat"
	"github.com/yared-getachew/bookdesk/services/notification-service/internal/consumer"
	"github.com/yared-getachew/bookdesk/services/notification-service/internal/directory"
	"github.com/yared-getachew/bookdesk/services/notification-service/internal/dispatch"
	"github.com/yared-getachew/bookdesk/services/notification-service/internal/email"
	"github.com/yared-getachew/bookdesk/services/notification-service/internal/inbox"
	"github.com/yared-getachew/bookdesk/services/notification-service/internal/storage"
)

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
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

	var chatSender chat.Sender
	if url := config.String("CHAT_WEBHOOK_URL", ""); url != "" {
		chatSender = chat.NewWebhookSender(url, config.String("CHAT_WEBHOOK_TOKEN", ""))
	} else {
		logger.Warn("chat webhook not configured; chat deliveries are no-ops")
		chatSender = chat.NewNoopSender()
	}
	emailSender := email.NewSMTPSender(
		config.String("SMTP_HOST", "localhost"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", ""),
	)
	dir, err := directory.NewProvider(config.String("DIRECTORY_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("directory provider init failed", "err", err)
		panic(err)
	}

	dispatcher := dispatch.New(
		chatSender,
		emailSender,
		dir,
		storage.NewRepository(pool),
		logger,
		config.String("OPERATOR_CHAT_ID", ""),
		config.String("OPERATOR_EMAIL", ""),
	)

	inboxRepo := inbox.NewRepository(pool)
	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")
	topics := []string{
		dispatch.TopicSlotBooked,
		dispatch.TopicSlotCancelled,
		dispatch.TopicCascadeCancelled,
		dispatch.TopicNoAvailability,
		dispatch.TopicDigestMessage,
	}
	for _, topic := range topics {
		c := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, dispatcher.Handle)
		go c.Run(ctx)
	}

	// without brokers the consumers idle; readiness must not hinge on kafka then
	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("notification service stopped")
}
