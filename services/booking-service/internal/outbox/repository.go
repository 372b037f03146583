package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/olnovikova/slotline/libs/db"
	otelx "github.com/olnovikova/slotline/libs/otel"
)

// Repository persists booking events for the poll publisher. Event rows
// carry the W3C trace context of the request that produced them, so the
// consumer side joins the same trace.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Emit appends one booking event. It runs outside the booking transaction
// on purpose: the booking has already committed and stands even when the
// event row cannot be written.
func (r *Repository) Emit(ctx context.Context, eventType, bookingID string, payload []byte) error {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ('booking', $1, $2, $3, $4, $5)
	`, bookingID, eventType, payload, traceparent, tracestate)
	return err
}

// Record is an unpublished outbox row. Field order matches the
// FetchUnpublished select list.
type Record struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}

// FetchUnpublished locks up to limit pending rows for the caller's
// transaction. SKIP LOCKED keeps concurrent publishers off each other's
// batches.
func (r *Repository) FetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Record])
}

func (r *Repository) MarkPublished(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE outbox_events SET published_at = now() WHERE id = ANY($1)
	`, ids)
	return err
}
