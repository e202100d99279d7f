package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrJefferson29/DrivInn-sub001/internal/domain"
	"github.com/MrJefferson29/DrivInn-sub001/internal/repository"
	"github.com/MrJefferson29/DrivInn-sub001/pkg/events"
	"github.com/MrJefferson29/DrivInn-sub001/pkg/logger"
)

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrBookingNotFound = errors.New("booking not found")
	// ErrStatusConflict means the compare-and-set found the booking already
	// moved by another writer. Benign: the other writer's transition stands.
	ErrStatusConflict = errors.New("booking status changed concurrently")
	// ErrDuplicateRequest means another request holding the same
	// Idempotency-Key is still creating its booking; the client should retry.
	ErrDuplicateRequest = errors.New("a request with this idempotency key is already in flight")
)

type BookingService interface {
	Create(ctx context.Context, req *domain.BookingCreateReq, idempotencyKey string) (*domain.Booking, error)
	Get(ctx context.Context, id int64) (*domain.Booking, error)
	List(ctx context.Context, status *domain.BookingStatus, limit, offset int) ([]domain.Booking, error)
	ListByGuest(ctx context.Context, guestID int64, limit, offset int) ([]domain.Booking, error)
	Confirm(ctx context.Context, id int64, nowUTC time.Time) (*domain.Booking, error)
	Cancel(ctx context.Context, id int64, nowUTC time.Time) (*domain.Booking, error)
	Complete(ctx context.Context, id int64, nowUTC time.Time) (*domain.Booking, error)
}

type bookingService struct {
	bookings    repository.BookingRepository
	listings    repository.ListingRepository
	idempotency repository.IdempotencyRepository
	bus         events.Publisher
}

func NewBookingService(
	bookings repository.BookingRepository,
	listings repository.ListingRepository,
	idempotency repository.IdempotencyRepository,
	bus events.Publisher,
) BookingService {
	return &bookingService{
		bookings:    bookings,
		listings:    listings,
		idempotency: idempotency,
		bus:         bus,
	}
}

// Create resolves the booking's check-in/check-out instants exactly once,
// here, and persists them frozen on the row. A resolution failure aborts the
// whole request: no booking with missing instants is ever written.
func (s *bookingService) Create(ctx context.Context, req *domain.BookingCreateReq, idempotencyKey string) (*domain.Booking, error) {
	if err := validateCreateReq(req); err != nil {
		return nil, err
	}

	// Claim the idempotency key before doing any work, so a concurrent retry
	// with the same key can never create a second booking.
	claimed := false
	if idempotencyKey != "" {
		won, existingID, err := s.idempotency.Claim(ctx, idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency claim failed: %w", err)
		}
		if !won {
			if existingID > 0 {
				return s.bookings.GetByID(ctx, existingID)
			}
			return nil, ErrDuplicateRequest
		}
		claimed = true
	}
	defer func() {
		// A claim with no booking behind it would block retries until it
		// expires; free it when the create did not go through.
		if claimed {
			if err := s.idempotency.Release(context.WithoutCancel(ctx), idempotencyKey); err != nil {
				logger.ErrorContext(ctx, "failed to release idempotency claim", "error", err)
			}
		}
	}()

	listing, err := s.listings.GetByID(ctx, req.ListingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	if listing == nil {
		return nil, ErrListingNotFound
	}

	checkInAt, checkOutAt, err := domain.ResolveStayTimes(req.StartDate, req.EndDate, listing.Schedule)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	booking, err := s.bookings.Create(ctx, &domain.Booking{
		ListingID:       req.ListingID,
		GuestID:         req.GuestID,
		HostID:          listing.HostID,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		CheckInAt:       checkInAt,
		CheckOutAt:      checkOutAt,
		Status:          domain.BookingPending,
		StatusUpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	if claimed {
		if err := s.idempotency.Attach(ctx, idempotencyKey, booking.ID); err != nil {
			logger.ErrorContext(ctx, "failed to attach booking to idempotency claim", "error", err, "booking_id", booking.ID)
		}
		claimed = false
	}

	evt := events.BookingCreatedEvent{
		BookingID:  booking.ID,
		ListingID:  booking.ListingID,
		GuestID:    booking.GuestID,
		HostID:     booking.HostID,
		StartDate:  booking.StartDate.String(),
		EndDate:    booking.EndDate.String(),
		CheckInAt:  booking.CheckInAt,
		CheckOutAt: booking.CheckOutAt,
		CreatedAt:  booking.CreatedAt,
	}
	if err := s.bus.Publish(ctx, events.BookingCreated, evt); err != nil {
		logger.ErrorContext(ctx, "failed to publish booking created event", "error", err, "booking_id", booking.ID)
	}

	return booking, nil
}

func (s *bookingService) Get(ctx context.Context, id int64) (*domain.Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

func (s *bookingService) List(ctx context.Context, status *domain.BookingStatus, limit, offset int) ([]domain.Booking, error) {
	if status != nil {
		return s.bookings.ListByStatus(ctx, *status, limit, offset)
	}
	return s.bookings.List(ctx, limit, offset)
}

func (s *bookingService) ListByGuest(ctx context.Context, guestID int64, limit, offset int) ([]domain.Booking, error) {
	return s.bookings.ListByGuest(ctx, guestID, limit, offset)
}

func (s *bookingService) Confirm(ctx context.Context, id int64, nowUTC time.Time) (*domain.Booking, error) {
	return s.transition(ctx, id, domain.BookingConfirmed, events.BookingConfirmed, nowUTC)
}

func (s *bookingService) Cancel(ctx context.Context, id int64, nowUTC time.Time) (*domain.Booking, error) {
	return s.transition(ctx, id, domain.BookingCancelled, events.BookingCancelled, nowUTC)
}

func (s *bookingService) Complete(ctx context.Context, id int64, nowUTC time.Time) (*domain.Booking, error) {
	return s.transition(ctx, id, domain.BookingCompleted, events.BookingCompleted, nowUTC)
}

// transition applies one externally triggered edge. The current status is
// read first to give a precise error, but the write itself is a
// compare-and-set against that status, so a concurrent writer (including a
// running sweep) can never be double-applied over.
func (s *bookingService) transition(ctx context.Context, id int64, to domain.BookingStatus, subject string, nowUTC time.Time) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if b == nil {
		return nil, ErrBookingNotFound
	}

	from := b.Status
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, from, to)
	}

	applied, err := s.bookings.ConditionalUpdateStatus(ctx, id, from, to, nowUTC)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	if !applied {
		return nil, ErrStatusConflict
	}

	b.Status = to
	b.StatusUpdatedAt = nowUTC

	evt := events.BookingTransitionEvent{
		BookingID:      b.ID,
		ListingID:      b.ListingID,
		GuestID:        b.GuestID,
		FromStatus:     string(from),
		ToStatus:       string(to),
		TransitionedAt: nowUTC,
	}
	if err := s.bus.Publish(ctx, subject, evt); err != nil {
		logger.ErrorContext(ctx, "failed to publish booking transition event", "error", err, "booking_id", b.ID, "subject", subject)
	}

	return b, nil
}

func validateCreateReq(req *domain.BookingCreateReq) error {
	if req.ListingID <= 0 {
		return fmt.Errorf("listing_id is required")
	}
	if req.GuestID <= 0 {
		return fmt.Errorf("guest_id is required")
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return fmt.Errorf("start_date and end_date are required")
	}
	return nil
}
