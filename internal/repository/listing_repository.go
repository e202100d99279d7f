package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrJefferson29/DrivInn-sub001/internal/domain"
)

// ListingRepository exposes the one read the booking flow needs. Creation
// wants the host as well as the schedule, so there is no schedule-only
// accessor; missing listings surface as a nil result, not a driver error.
type ListingRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Listing, error)
}

type listingRepository struct {
	pool *pgxpool.Pool
	// defaultTimezone fills in for hosts that never configured one. Applied
	// on read so the resolver always sees an explicit zone.
	defaultTimezone string
}

func NewListingRepository(pool *pgxpool.Pool, defaultTimezone string) ListingRepository {
	return &listingRepository{pool: pool, defaultTimezone: defaultTimezone}
}

func (r *listingRepository) GetByID(ctx context.Context, id int64) (*domain.Listing, error) {
	const q = `SELECT id, host_id, check_in_time, check_out_time, timezone FROM listings WHERE id=$1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var l domain.Listing
	var checkIn, checkOut string
	var tz *string
	err := r.pool.QueryRow(ctx, q, id).Scan(&l.ID, &l.HostID, &checkIn, &checkOut, &tz)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if l.Schedule.CheckIn, err = domain.ParseLocalTime(checkIn); err != nil {
		return nil, err
	}
	if l.Schedule.CheckOut, err = domain.ParseLocalTime(checkOut); err != nil {
		return nil, err
	}
	if tz != nil {
		l.Schedule.Timezone = *tz
	}
	l.Schedule = l.Schedule.OrDefaultTimezone(r.defaultTimezone)

	return &l, nil
}
