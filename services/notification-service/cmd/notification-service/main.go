package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/olnovikova/slotline/libs/config"
	"github.com/olnovikova/slotline/libs/db"
	"github.com/olnovikova/slotline/libs/httpx"
	"github.com/olnovikova/slotline/libs/kafkax"
	otelx "github.com/olnovikova/slotline/libs/otel"
	"github.com/olnovikova/slotline/libs/runtime"
	"github.com/olnovikova/slotline/services/notification-service/internal/consumer"
	"github.com/olnovikova/slotline/services/notification-service/internal/dispatch"
	"github.com/olnovikova/slotline/services/notification-service/internal/handlers"
	"github.com/olnovikova/slotline/services/notification-service/internal/inbox"
	"github.com/olnovikova/slotline/services/notification-service/internal/model"
	"github.com/olnovikova/slotline/services/notification-service/internal/outbox"
	"github.com/olnovikova/slotline/services/notification-service/internal/sender"
	"github.com/olnovikova/slotline/services/notification-service/internal/storage"
	"github.com/olnovikova/slotline/services/notification-service/internal/worker"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type bookingEventPayload struct {
	BookingID  string `json:"booking_id"`
	BusinessID string `json:"business_id"`
	ClientID   string `json:"client_id"`
	Status     string `json:"status"`
	StartTime  string `json:"start_time"`
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8082")
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
	pool, err := db.Open(ctx, db.DefaultConfig(dbURL))
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	repo := storage.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	dispatcher := dispatch.NewDispatcher(repo, buildSender(logger), outboxRepo, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	dispatchWorker := worker.New(dispatcher, repo, logger, worker.Config{
		Interval:  config.Duration("DISPATCH_INTERVAL", 5*time.Second),
		BatchSize: config.Int("DISPATCH_BATCH_SIZE", 50),
	})
	go dispatchWorker.Run(ctx)

	// Booking lifecycle events drive notification creation. Each topic
	// maps to the templates it triggers; created bookings also get a
	// reminder scheduled ahead of the start time.
	topicTemplates := map[string][]model.Template{
		"booking.created.v1":   {model.TemplateCreated, model.TemplateReminder},
		"booking.confirmed.v1": {model.TemplateConfirmed},
		"booking.cancelled.v1": {model.TemplateCancelled},
	}
	for topic, templates := range topicTemplates {
		templates := templates
		cfg := consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
			Topic:   topic,
		}
		eventConsumer := consumer.New(logger, inboxRepo, cfg, func(ctx context.Context, msg kafka.Message) error {
			var payload bookingEventPayload
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid booking event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if payload.BookingID == "" {
				logger.Error("booking event without booking_id", "topic", msg.Topic)
				return nil
			}
			if payload.ClientID == "" {
				logger.Info("clientless booking, nothing to notify", "booking_id", payload.BookingID)
				return nil
			}

			for _, tpl := range templates {
				_, err := dispatcher.Create(ctx, dispatch.CreateParams{
					BookingID: payload.BookingID,
					Template:  tpl,
				})
				if err != nil {
					if errors.Is(err, dispatch.ErrNoClient) || errors.Is(err, dispatch.ErrNoContact) {
						logger.Info("skipping notification", "booking_id", payload.BookingID, "template", tpl, "reason", err)
						continue
					}
					return err
				}
			}
			return nil
		})
		go eventConsumer.Run(ctx)
	}

	notificationHandler := handlers.NewNotificationHandler(dispatcher, repo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/notifications", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			notificationHandler.List(w, r)
			return
		}
		notificationHandler.Create(w, r)
	})
	mux.HandleFunc("/api/v1/notifications/resend", notificationHandler.Resend)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "notification")
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

func buildSender(logger *slog.Logger) *sender.Composite {
	emailSender := sender.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@slotline.local"),
	)

	var smsSender sender.SMSSender
	switch strings.ToLower(config.String("SMS_PROVIDER", "noop")) {
	case "webhook":
		smsSender = sender.NewWebhookSMSSender(
			config.String("SMS_WEBHOOK_URL", ""),
			config.String("SMS_WEBHOOK_TOKEN", ""),
		)
	default:
		smsSender = sender.NewNoopSMSSender()
	}

	var socialSender sender.SocialSender
	if token := config.String("VK_ACCESS_TOKEN", ""); token != "" {
		socialSender = sender.NewVKSender(config.String("VK_API_URL", ""), token)
	} else {
		logger.Warn("vk access token not configured; vk sends are no-ops")
		socialSender = sender.NewNoopSocialSender()
	}

	return sender.NewComposite(smsSender, emailSender, socialSender)
}
