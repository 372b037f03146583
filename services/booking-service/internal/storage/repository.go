package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/olnovikova/slotline/libs/db"
	"github.com/olnovikova/slotline/services/booking-service/internal/booking"
	"github.com/olnovikova/slotline/services/booking-service/internal/conflict"
	"github.com/olnovikova/slotline/services/booking-service/internal/model"
)

// Repository implements booking.Store over Postgres. The bookings table
// carries a range-exclusion constraint on (staff_id, booked interval);
// its violation surfaces as booking.ErrSlotTaken.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetBusiness(ctx context.Context, id string) (model.Business, error) {
	var b model.Business
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, timezone
		FROM businesses
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.Timezone)
	if err != nil {
		return model.Business{}, mapNotFound(err)
	}
	return b, nil
}

func (r *Repository) GetService(ctx context.Context, id string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, business_id::text, title, duration_minutes,
			buffer_before_minutes, buffer_after_minutes, price::text
		FROM services
		WHERE id = $1
	`, id).Scan(&s.ID, &s.BusinessID, &s.Title, &s.DurationMins, &s.BufferBeforeMins, &s.BufferAfterMins, &s.Price)
	if err != nil {
		return model.Service{}, mapNotFound(err)
	}
	return s, nil
}

func (r *Repository) GetStaff(ctx context.Context, id string) (model.Staff, error) {
	var s model.Staff
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, business_id::text, name, is_active
		FROM staff
		WHERE id = $1
	`, id).Scan(&s.ID, &s.BusinessID, &s.Name, &s.IsActive)
	if err != nil {
		return model.Staff{}, mapNotFound(err)
	}
	return s, nil
}

func (r *Repository) GetClient(ctx context.Context, id string) (model.Client, error) {
	var c model.Client
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, business_id::text, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(vk_user_id, '')
		FROM clients
		WHERE id = $1
	`, id).Scan(&c.ID, &c.BusinessID, &c.Name, &c.Phone, &c.Email, &c.VKUserID)
	if err != nil {
		return model.Client{}, mapNotFound(err)
	}
	return c, nil
}

func (r *Repository) FindOrCreateClient(ctx context.Context, in model.Client) (model.Client, error) {
	var c model.Client
	err := r.pool.QueryRow(ctx, `
		INSERT INTO clients (id, business_id, name, phone, email)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (business_id, phone) DO UPDATE
		SET name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE clients.name END,
			email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE clients.email END,
			updated_at = now()
		RETURNING id::text, business_id::text, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(vk_user_id, '')
	`, uuid.NewString(), in.BusinessID, in.Name, in.Phone, in.Email).Scan(
		&c.ID, &c.BusinessID, &c.Name, &c.Phone, &c.Email, &c.VKUserID,
	)
	if err != nil {
		return model.Client{}, err
	}
	return c, nil
}

func (r *Repository) ListConflictCandidates(ctx context.Context, staffID string, from, to time.Time) ([]conflict.BookingSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id::text, b.start_time, b.end_time, b.status,
			COALESCE(s.title, ''),
			COALESCE(NULLIF(c.name, ''), 'Guest')
		FROM bookings b
		LEFT JOIN services s ON s.id = b.service_id
		LEFT JOIN clients c ON c.id = b.client_id
		WHERE b.staff_id = $1
			AND b.status <> 'cancelled'
			AND b.start_time < $3
			AND b.end_time > $2
		ORDER BY b.start_time ASC
	`, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []conflict.BookingSummary
	for rows.Next() {
		var s conflict.BookingSummary
		if err := rows.Scan(&s.ID, &s.Start, &s.End, &s.Status, &s.ServiceTitle, &s.ClientName); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) ListByBusiness(ctx context.Context, businessID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, staff_id::text, service_id::text, COALESCE(client_id::text, ''),
			start_time, end_time, status, source, created_at, updated_at
		FROM bookings
		WHERE business_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id::text, business_id::text, staff_id::text, service_id::text, COALESCE(client_id::text, ''),
			start_time, end_time, status, source, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`, id)
	b, err := scanBooking(row)
	if err != nil {
		return model.Booking{}, mapNotFound(err)
	}
	return b, nil
}

func (r *Repository) CreateBooking(ctx context.Context, b model.Booking) error {
	clientID := any(nil)
	if b.ClientID != "" {
		clientID = b.ClientID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bookings (id, business_id, staff_id, service_id, client_id, start_time, end_time, status, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, b.ID, b.BusinessID, b.StaffID, b.ServiceID, clientID, b.StartTime, b.EndTime, string(b.Status), string(b.Source))
	if err != nil {
		if isExclusionViolation(err) {
			return booking.ErrSlotTaken
		}
		return err
	}
	return nil
}

func (r *Repository) UpdateBookingStatus(ctx context.Context, id string, status model.BookingStatus) (model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING id::text, business_id::text, staff_id::text, service_id::text, COALESCE(client_id::text, ''),
			start_time, end_time, status, source, created_at, updated_at
	`, id, string(status))
	b, err := scanBooking(row)
	if err != nil {
		return model.Booking{}, mapNotFound(err)
	}
	return b, nil
}

func (r *Repository) RescheduleBooking(ctx context.Context, id string, start, end time.Time) (model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET start_time = $2, end_time = $3, updated_at = now()
		WHERE id = $1
		RETURNING id::text, business_id::text, staff_id::text, service_id::text, COALESCE(client_id::text, ''),
			start_time, end_time, status, source, created_at, updated_at
	`, id, start, end)
	b, err := scanBooking(row)
	if err != nil {
		if isExclusionViolation(err) {
			return model.Booking{}, booking.ErrSlotTaken
		}
		return model.Booking{}, mapNotFound(err)
	}
	return b, nil
}

func (r *Repository) DeleteBooking(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func (r *Repository) FindException(ctx context.Context, businessID string, date string) (*model.AvailabilityException, error) {
	var (
		exc   model.AvailabilityException
		start *int
		end   *int
	)
	// Matching is by calendar date, never by instant range: a closed day
	// must hit for every business timezone. At most one exception per
	// business+date is expected; pk order makes a duplicate tie-break
	// deterministic.
	err := r.pool.QueryRow(ctx, `
		SELECT id, business_id::text, date, type, start_minute, end_minute
		FROM availability_exceptions
		WHERE business_id = $1 AND date = $2::date
		ORDER BY id
		LIMIT 1
	`, businessID, date).Scan(&exc.ID, &exc.BusinessID, &exc.Date, &exc.Type, &start, &end)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	exc.StartMinute = minuteOrAbsent(start)
	exc.EndMinute = minuteOrAbsent(end)
	return &exc, nil
}

func (r *Repository) GetWorkingHours(ctx context.Context, businessID string, weekday time.Weekday) (*model.WorkingHours, error) {
	var wh model.WorkingHours
	var wd int
	err := r.pool.QueryRow(ctx, `
		SELECT business_id::text, weekday, is_working, start_minute, end_minute
		FROM working_hours
		WHERE business_id = $1 AND weekday = $2
	`, businessID, int(weekday)).Scan(&wh.BusinessID, &wd, &wh.IsWorking, &wh.StartMinute, &wh.EndMinute)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	wh.Weekday = time.Weekday(wd)
	return &wh, nil
}

func (r *Repository) UpsertWorkingHours(ctx context.Context, wh model.WorkingHours) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO working_hours (business_id, weekday, is_working, start_minute, end_minute)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (business_id, weekday) DO UPDATE
		SET is_working = EXCLUDED.is_working,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			updated_at = now()
	`, wh.BusinessID, int(wh.Weekday), wh.IsWorking, wh.StartMinute, wh.EndMinute)
	return err
}

func (r *Repository) UpsertException(ctx context.Context, exc model.AvailabilityException) error {
	start := absentToNull(exc.StartMinute)
	end := absentToNull(exc.EndMinute)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO availability_exceptions (business_id, date, type, start_minute, end_minute)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (business_id, date) DO UPDATE
		SET type = EXCLUDED.type,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			updated_at = now()
	`, exc.BusinessID, exc.Date, string(exc.Type), start, end)
	return err
}

func (r *Repository) DeleteException(ctx context.Context, businessID string, date time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM availability_exceptions
		WHERE business_id = $1 AND date = $2
	`, businessID, date)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	var status, source string
	err := row.Scan(&b.ID, &b.BusinessID, &b.StaffID, &b.ServiceID, &b.ClientID,
		&b.StartTime, &b.EndTime, &status, &source, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	b.Source = model.BookingSource(source)
	return b, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return booking.ErrNotFound
	}
	return err
}

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func minuteOrAbsent(v *int) int {
	if v == nil {
		return -1
	}
	return *v
}

func absentToNull(v int) any {
	if v < 0 {
		return nil
	}
	return v
}
