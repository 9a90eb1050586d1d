package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/zeromonos/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingColumns = `id, token, municipality, description, requested_date, time_slot, status, created_at, updated_at`

const uniqueViolation = "23505"

type PGBookingRepository struct {
	db   *pgxpool.Pool
	opts options
}

func NewBookingRepository(db *pgxpool.Pool, opts ...Option) BookingRepository {
	return &PGBookingRepository{db: db, opts: newOptions(opts)}
}

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	var err error
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		err = r.insert(ctx, booking, r.opts.newToken())
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("create booking after %d attempts: %w", maxTokenAttempts, err)
}

func (r *PGBookingRepository) insert(ctx context.Context, booking *domain.Booking, token string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `INSERT INTO bookings (token, municipality, description, requested_date, time_slot, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, status, created_at, updated_at`,
		token, booking.Municipality, booking.Description, booking.RequestedDate, booking.TimeSlot, domain.BookingStatusReceived)

	var (
		id     int64
		status domain.BookingStatus
	)
	created := *booking
	if err := row.Scan(&id, &status, &created.CreatedAt, &created.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO booking_status_history (booking_id, status, changed_at) VALUES ($1, $2, $3)`,
		id, status, created.CreatedAt); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	created.ID = id
	created.Token = token
	created.Status = status
	*booking = created
	return nil
}

func (r *PGBookingRepository) GetByToken(ctx context.Context, token string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE token=$1`, token)
	return scanBooking(row)
}

func (r *PGBookingRepository) List(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings`
	var args []any
	if filter.Municipality != "" {
		query += ` WHERE municipality=$1`
		args = append(args, filter.Municipality)
	}
	query += ` ORDER BY id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// UpdateStatus locks the booking row for the duration of the transition check.
func (r *PGBookingRepository) UpdateStatus(ctx context.Context, token string, status domain.BookingStatus) (*domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	current, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE token=$1 FOR UPDATE`, token))
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(current.Status, status) {
		return nil, &domain.InvalidTransitionError{From: current.Status, To: status}
	}

	updated, err := scanBooking(tx.QueryRow(ctx, `UPDATE bookings SET status=$1, updated_at=now() WHERE id=$2 RETURNING `+bookingColumns,
		status, current.ID))
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO booking_status_history (booking_id, status, changed_at) VALUES ($1, $2, $3)`,
		updated.ID, updated.Status, updated.UpdatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PGBookingRepository) History(ctx context.Context, token string) ([]domain.StatusChange, error) {
	var id int64
	if err := r.db.QueryRow(ctx, `SELECT id FROM bookings WHERE token=$1`, token).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT status, changed_at FROM booking_status_history WHERE booking_id=$1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]domain.StatusChange, 0)
	for rows.Next() {
		var c domain.StatusChange
		if err := rows.Scan(&c.Status, &c.ChangedAt); err != nil {
			return nil, err
		}
		history = append(history, c)
	}
	return history, rows.Err()
}

func (r *PGBookingRepository) CountActive(ctx context.Context, query domain.SlotQuery) (int, error) {
	sql := `SELECT count(*) FROM bookings WHERE municipality=$1 AND requested_date=$2 AND status<>$3`
	args := []any{query.Municipality, query.RequestedDate, domain.BookingStatusCancelled}
	if query.TimeSlot != "" {
		sql += ` AND time_slot=$4`
		args = append(args, query.TimeSlot)
	}

	var count int
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.Token, &b.Municipality, &b.Description, &b.RequestedDate, &b.TimeSlot, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ BookingRepository = (*PGBookingRepository)(nil)
