package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/olnovikova/slotline/libs/kafkax"
	"github.com/olnovikova/slotline/services/notification-service/internal/inbox"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Handler processes one deduplicated booking event.
type Handler func(ctx context.Context, msg kafka.Message) error

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

// Consumer reads one booking event topic and hands each message to the
// handler after recording it in the inbox. The inbox insert runs before the
// handler, so a poisoned message is logged once instead of redelivered
// forever; a crash between insert and handler loses that one event.
type Consumer struct {
	reader  *kafka.Reader
	inbox   *inbox.Repository
	handler Handler
	logger  *slog.Logger
}

const readRetryDelay = time.Second

func New(logger *slog.Logger, inboxRepo *inbox.Repository, cfg Config, handler Handler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  kafkax.SplitBrokers(cfg.Brokers),
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		inbox:   inboxRepo,
		handler: handler,
		logger:  logger.With("topic", cfg.Topic),
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(readRetryDelay)
			continue
		}
		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	ctx = kafkax.ExtractTraceContext(ctx, msg)
	ctx, span := otel.Tracer("notification-consumer").Start(ctx, "booking-event.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	log := c.logger.With("event_id", meta.EventID, "event_type", meta.EventType)

	fresh, err := c.inbox.Record(ctx, meta.EventID, meta.EventType)
	if err != nil {
		log.Error("inbox record failed", "err", err)
		span.RecordError(err)
		return
	}
	if !fresh {
		log.Info("duplicate event ignored")
		return
	}

	if err := c.handler(ctx, msg); err != nil {
		log.Error("booking event handler failed", "err", err)
		span.RecordError(err)
	}
}
