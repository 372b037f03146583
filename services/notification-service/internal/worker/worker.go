package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/olnovikova/slotline/services/notification-service/internal/dispatch"
)

// Worker ticks over due pending notifications and dispatches them. A single
// worker per deployment is assumed; the dispatcher's conditional status
// writes keep an accidental second instance from double-recording.
type Worker struct {
	dispatcher *dispatch.Dispatcher
	store      dispatch.Store
	logger     *slog.Logger
	interval   time.Duration
	batchSize  int
}

type Config struct {
	Interval  time.Duration
	BatchSize int
}

func New(dispatcher *dispatch.Dispatcher, store dispatch.Store, logger *slog.Logger, cfg Config) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Worker{
		dispatcher: dispatcher,
		store:      store,
		logger:     logger,
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				w.logger.Error("dispatch batch failed", "err", err)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) error {
	due, err := w.store.ListDue(ctx, time.Now().UTC(), w.batchSize)
	if err != nil {
		return err
	}
	for _, n := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		outcome, err := w.dispatcher.Send(ctx, n.ID)
		if err != nil {
			w.logger.Error("dispatch failed", "notification_id", n.ID, "err", err)
			continue
		}
		if !outcome.Sent {
			w.logger.Warn("dispatch did not deliver", "notification_id", n.ID, "reason", outcome.Reason)
		}
	}
	return nil
}
