package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/olnovikova/slotline/libs/db"
	"github.com/olnovikova/slotline/services/notification-service/internal/dispatch"
	"github.com/olnovikova/slotline/services/notification-service/internal/model"
)

// Repository implements dispatch.Store over the shared Postgres schema.
// Booking context reads go against the booking tables directly.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n model.Notification) error {
	clientID := any(nil)
	if n.ClientID != "" {
		clientID = n.ClientID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, business_id, booking_id, client_id, channel, template, message, status, scheduled_for)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, n.ID, n.BusinessID, n.BookingID, clientID, string(n.Channel), string(n.Template), n.Message, string(n.Status), n.ScheduledFor)
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (model.Notification, error) {
	row := r.pool.QueryRow(ctx, selectNotification+` WHERE id = $1`, id)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Notification{}, dispatch.ErrNotFound
		}
		return model.Notification{}, err
	}
	return n, nil
}

func (r *Repository) ListByBusiness(ctx context.Context, businessID string, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, selectNotification+`
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotifications(rows)
}

func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, selectNotification+`
		WHERE status = 'pending' AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotifications(rows)
}

// MarkSent flips a pending notification to sent. Reports false when the
// notification is no longer pending.
func (r *Repository) MarkSent(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'sent', sent_at = $2, failure_reason = ''
		WHERE id = $1 AND status = 'pending'
	`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) MarkFailed(ctx context.Context, id string, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'failed', failure_reason = $2
		WHERE id = $1 AND status = 'pending'
	`, id, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) ResetPending(ctx context.Context, id string, scheduledFor time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'pending', failure_reason = '', sent_at = NULL, scheduled_for = $2
		WHERE id = $1 AND status = 'failed'
	`, id, scheduledFor)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return dispatch.ErrNotFound
	}
	return nil
}

func (r *Repository) GetBookingContext(ctx context.Context, bookingID string) (dispatch.BookingContext, error) {
	var bc dispatch.BookingContext
	err := r.pool.QueryRow(ctx, `
		SELECT b.id::text, b.business_id::text, COALESCE(b.client_id::text, ''), b.start_time, b.status,
			biz.name, biz.timezone,
			COALESCE(s.title, ''), COALESCE(st.name, ''),
			COALESCE(c.name, ''), COALESCE(c.phone, ''), COALESCE(c.email, ''), COALESCE(c.vk_user_id, '')
		FROM bookings b
		JOIN businesses biz ON biz.id = b.business_id
		LEFT JOIN services s ON s.id = b.service_id
		LEFT JOIN staff st ON st.id = b.staff_id
		LEFT JOIN clients c ON c.id = b.client_id
		WHERE b.id = $1
	`, bookingID).Scan(
		&bc.BookingID, &bc.BusinessID, &bc.ClientID, &bc.BookingStart, &bc.BookingStatus,
		&bc.BusinessName, &bc.BusinessTimezone,
		&bc.ServiceTitle, &bc.StaffName,
		&bc.ClientName, &bc.Contact.Phone, &bc.Contact.Email, &bc.Contact.VKUserID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dispatch.BookingContext{}, dispatch.ErrNotFound
		}
		return dispatch.BookingContext{}, err
	}
	return bc, nil
}

const selectNotification = `
	SELECT id::text, business_id::text, booking_id::text, COALESCE(client_id::text, ''),
		channel, template, message, status, scheduled_for, sent_at, COALESCE(failure_reason, ''), created_at
	FROM notifications`

func scanNotification(row pgx.Row) (model.Notification, error) {
	var n model.Notification
	var channel, template, status string
	err := row.Scan(&n.ID, &n.BusinessID, &n.BookingID, &n.ClientID,
		&channel, &template, &n.Message, &status, &n.ScheduledFor, &n.SentAt, &n.FailureReason, &n.CreatedAt)
	if err != nil {
		return model.Notification{}, err
	}
	n.Channel = model.Channel(channel)
	n.Template = model.Template(template)
	n.Status = model.Status(status)
	return n, nil
}

func collectNotifications(rows pgx.Rows) ([]model.Notification, error) {
	var out []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
