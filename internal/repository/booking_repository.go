package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrJefferson29/DrivInn-sub001/internal/domain"
)

type BookingRepository interface {
	Create(ctx context.Context, b *domain.Booking) (*domain.Booking, error)
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	List(ctx context.Context, limit, offset int) ([]domain.Booking, error)
	ListByStatus(ctx context.Context, status domain.BookingStatus, limit, offset int) ([]domain.Booking, error)
	ListByGuest(ctx context.Context, guestID int64, limit, offset int) ([]domain.Booking, error)
	LoadActiveBookings(ctx context.Context, statuses []domain.BookingStatus) ([]domain.Booking, error)
	ConditionalUpdateStatus(ctx context.Context, id int64, expected, next domain.BookingStatus, nowUTC time.Time) (bool, error)
}

type bookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &bookingRepository{pool: pool}
}

const bookingCols = `id, listing_id, guest_id, host_id,
start_date, end_date, check_in_at, check_out_at,
status, status_updated_at, created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	var startDate, endDate time.Time
	err := row.Scan(
		&b.ID, &b.ListingID, &b.GuestID, &b.HostID,
		&startDate, &endDate, &b.CheckInAt, &b.CheckOutAt,
		&b.Status, &b.StatusUpdatedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.StartDate = domain.NewDate(startDate.Year(), startDate.Month(), startDate.Day())
	b.EndDate = domain.NewDate(endDate.Year(), endDate.Month(), endDate.Day())
	b.CheckInAt = b.CheckInAt.UTC()
	b.CheckOutAt = b.CheckOutAt.UTC()
	return &b, nil
}

func (r *bookingRepository) Create(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	const q = `INSERT INTO bookings (
		listing_id, guest_id, host_id,
		start_date, end_date, check_in_at, check_out_at,
		status, status_updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	RETURNING ` + bookingCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	startDate := time.Date(b.StartDate.Year, b.StartDate.Month, b.StartDate.Day, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(b.EndDate.Year, b.EndDate.Month, b.EndDate.Day, 0, 0, 0, 0, time.UTC)

	row := r.pool.QueryRow(ctx, q,
		b.ListingID, b.GuestID, b.HostID,
		startDate, endDate, b.CheckInAt, b.CheckOutAt,
		b.Status, b.StatusUpdatedAt,
	)
	return scanBooking(row)
}

func (r *bookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return b, err
}

func (r *bookingRepository) List(ctx context.Context, limit, offset int) ([]domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return r.queryBookings(ctx, q, clampLimit(limit), clampOffset(offset))
}

func (r *bookingRepository) ListByStatus(ctx context.Context, status domain.BookingStatus, limit, offset int) ([]domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE status=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return r.queryBookings(ctx, q, status, clampLimit(limit), clampOffset(offset))
}

func (r *bookingRepository) ListByGuest(ctx context.Context, guestID int64, limit, offset int) ([]domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE guest_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return r.queryBookings(ctx, q, guestID, clampLimit(limit), clampOffset(offset))
}

// LoadActiveBookings is the sweep's read path. Ordering by check_in_at keeps
// the bookings closest to their window at the front, so a sweep cut short by
// an outage has already handled the most urgent rows.
func (r *bookingRepository) LoadActiveBookings(ctx context.Context, statuses []domain.BookingStatus) ([]domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE status = ANY($1) ORDER BY check_in_at ASC`

	ss := make([]string, len(statuses))
	for i, st := range statuses {
		ss[i] = string(st)
	}
	return r.queryBookings(ctx, q, ss)
}

// ConditionalUpdateStatus is the atomic compare-and-set the scheduler relies
// on: the row moves only if its stored status still matches expected. A false
// return with nil error means another writer got there first (duplicate sweep
// instance, or a cancellation racing the tick) and the caller should treat the
// transition as already handled.
func (r *bookingRepository) ConditionalUpdateStatus(ctx context.Context, id int64, expected, next domain.BookingStatus, nowUTC time.Time) (bool, error) {
	if !expected.CanTransitionTo(next) {
		return false, domain.ErrIllegalTransition
	}

	const q = `UPDATE bookings
		SET status=$3, status_updated_at=$4, updated_at=now()
		WHERE id=$1 AND status=$2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, id, expected, next, nowUTC)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *bookingRepository) queryBookings(ctx context.Context, q string, args ...any) ([]domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
