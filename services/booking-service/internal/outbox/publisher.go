package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/olnovikova/slotline/libs/db"
	"github.com/olnovikova/slotline/libs/kafkax"
	otelx "github.com/olnovikova/slotline/libs/otel"
	"github.com/segmentio/kafka-go"
)

// Publisher ships outbox rows to Kafka, one topic per event type. Each
// tick drains the backlog in batches rather than publishing a single
// batch, so a burst of bookings does not back up behind the poll interval.
type Publisher struct {
	pool      *db.Pool
	repo      *Repository
	logger    *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(pool *db.Pool, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	p := &Publisher{
		pool:      pool,
		repo:      repo,
		logger:    logger,
		brokers:   kafkax.SplitBrokers(cfg.Brokers),
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
	if p.pollEvery <= 0 {
		p.pollEvery = 2 * time.Second
	}
	if p.batchSize <= 0 {
		p.batchSize = 50
	}
	return p
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(p.brokers...),
		Balancer: &kafka.Hash{},
	}
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx, writer)
		}
	}
}

func (p *Publisher) drain(ctx context.Context, writer *kafka.Writer) {
	for {
		n, err := p.publishBatch(ctx, writer)
		if err != nil {
			p.logger.Error("outbox publish failed", "err", err)
			return
		}
		if n < p.batchSize {
			return
		}
	}
}

// publishBatch claims one batch, writes it to Kafka, and marks the rows
// published in the same transaction that locked them. A crash after the
// Kafka write re-sends the batch next time; consumers dedup by event id.
func (p *Publisher) publishBatch(ctx context.Context, writer *kafka.Writer) (int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, tx.Commit(ctx)
	}

	msgs := make([]kafka.Message, 0, len(batch))
	ids := make([]int64, 0, len(batch))
	for _, rec := range batch {
		evtCtx := otelx.ContextWithTraceContext(ctx, rec.Traceparent, rec.Tracestate)
		headers := kafkax.InjectTraceHeaders(evtCtx, []kafka.Header{
			{Key: "event_id", Value: []byte(rec.EventID)},
			{Key: "event_type", Value: []byte(rec.EventType)},
		})
		msgs = append(msgs, kafka.Message{
			Topic:   rec.EventType,
			Key:     []byte(rec.AggregateID),
			Value:   rec.Payload,
			Headers: headers,
		})
		ids = append(ids, rec.ID)
	}

	if err := writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, err
	}
	if err := p.repo.MarkPublished(ctx, tx, ids); err != nil {
		return 0, err
	}
	return len(batch), tx.Commit(ctx)
}
