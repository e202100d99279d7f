package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/MrJefferson29/DrivInn-sub001/internal/domain"
	"github.com/MrJefferson29/DrivInn-sub001/pkg/events"
	"github.com/MrJefferson29/DrivInn-sub001/pkg/logger"
)

// BookingStore is the slice of the persistence layer the scheduler needs:
// a read path for active bookings and an atomic compare-and-set write.
type BookingStore interface {
	LoadActiveBookings(ctx context.Context, statuses []domain.BookingStatus) ([]domain.Booking, error)
	ConditionalUpdateStatus(ctx context.Context, id int64, expected, next domain.BookingStatus, nowUTC time.Time) (bool, error)
}

type Config struct {
	Interval  time.Duration
	Tolerance time.Duration
}

// StatusScheduler advances bookings through the two time-driven edges of the
// state machine (confirmed -> checked_in, checked_in -> checked_out) as real
// time passes. All other edges are externally triggered and the scheduler
// respects them: a booking another writer has moved is left alone.
type StatusScheduler struct {
	store     BookingStore
	bus       events.Publisher
	lock      *SweepLock // nil when no cross-instance lease is configured
	interval  time.Duration
	tolerance time.Duration
	running   atomic.Bool
}

func New(store BookingStore, bus events.Publisher, lock *SweepLock, cfg Config) *StatusScheduler {
	return &StatusScheduler{
		store:     store,
		bus:       bus,
		lock:      lock,
		interval:  cfg.Interval,
		tolerance: cfg.Tolerance,
	}
}

// Run drives sweeps on a fixed ticker until ctx is cancelled. Ticks that fire
// while a sweep is still running are skipped, not queued.
func (s *StatusScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Info("status scheduler started",
		"interval", s.interval.String(),
		"tolerance", s.tolerance.String(),
	)

	for {
		select {
		case <-ctx.Done():
			logger.Info("status scheduler stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx, time.Now().UTC())
		}
	}
}

// SweepReport summarizes one sweep for logging and tests.
type SweepReport struct {
	Examined   int
	CheckedIn  int
	CheckedOut int
	Conflicts  int
	Errors     int
	Skipped    bool
}

// Sweep runs one pass over all active bookings at the given instant. It is
// safe to call repeatedly with the same nowUTC: the conditional update makes
// every transition at-most-once, so duplicate sweeps observe the already
// advanced status and do nothing. One booking's failure never aborts the rest
// of the sweep; the failed booking is retried on the next tick.
func (s *StatusScheduler) Sweep(ctx context.Context, nowUTC time.Time) SweepReport {
	var rep SweepReport

	if !s.running.CompareAndSwap(false, true) {
		rep.Skipped = true
		logger.Debug("sweep already in flight, skipping tick")
		return rep
	}
	defer s.running.Store(false)

	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx)
		switch {
		case err != nil:
			// The lease store being down should not stall status
			// transitions; fall back to in-process exclusion only.
			logger.Warn("sweep lease unavailable, proceeding with local guard only", "error", err)
		case !acquired:
			rep.Skipped = true
			logger.Debug("another instance holds the sweep lease, skipping")
			return rep
		default:
			defer s.lock.Release(context.WithoutCancel(ctx))
		}
	}

	bookings, err := s.store.LoadActiveBookings(ctx, []domain.BookingStatus{
		domain.BookingConfirmed,
		domain.BookingCheckedIn,
	})
	if err != nil {
		rep.Errors++
		logger.Error("sweep failed to load active bookings", "error", err)
		return rep
	}

	rep.Examined = len(bookings)
	for i := range bookings {
		s.advance(ctx, &bookings[i], nowUTC, &rep)
	}

	logger.Info("sweep finished",
		"now", nowUTC.Format(time.RFC3339),
		"examined", rep.Examined,
		"checked_in", rep.CheckedIn,
		"checked_out", rep.CheckedOut,
		"conflicts", rep.Conflicts,
		"errors", rep.Errors,
	)
	return rep
}

// advance applies the transitions due for a single booking. Check-in is
// committed before check-out is even evaluated, so a same-day stay can move
// two states in one sweep but never skips checked_in.
func (s *StatusScheduler) advance(ctx context.Context, b *domain.Booking, nowUTC time.Time, rep *SweepReport) {
	if b.Status == domain.BookingConfirmed && s.due(nowUTC, b.CheckInAt) {
		if !s.apply(ctx, b, domain.BookingConfirmed, domain.BookingCheckedIn, nowUTC, rep) {
			return
		}
		rep.CheckedIn++
	}

	if b.Status == domain.BookingCheckedIn && s.due(nowUTC, b.CheckOutAt) {
		if !s.apply(ctx, b, domain.BookingCheckedIn, domain.BookingCheckedOut, nowUTC, rep) {
			return
		}
		rep.CheckedOut++
	}
}

// apply commits one edge via compare-and-set and mirrors the result onto the
// in-memory copy. A conflict means another writer (a duplicate scheduler
// instance, or a cancellation racing this tick) moved the booking first;
// that writer wins and this booking is left alone.
func (s *StatusScheduler) apply(ctx context.Context, b *domain.Booking, from, to domain.BookingStatus, nowUTC time.Time, rep *SweepReport) bool {
	applied, err := s.store.ConditionalUpdateStatus(ctx, b.ID, from, to, nowUTC)
	if err != nil {
		rep.Errors++
		logger.Error("status transition failed",
			"booking_id", b.ID, "from", from, "to", to, "error", err)
		return false
	}
	if !applied {
		rep.Conflicts++
		logger.Debug("status transition already handled elsewhere",
			"booking_id", b.ID, "from", from, "to", to)
		return false
	}

	b.Status = to
	b.StatusUpdatedAt = nowUTC

	s.publish(ctx, b, from, to, nowUTC)
	return true
}

// due reports whether now has entered the tolerance window around target.
// There is deliberately no upper bound: a window that fully elapsed while the
// scheduler was down still counts, since the stay has unambiguously started
// (or ended) and a missed window must be caught up, not skipped.
func (s *StatusScheduler) due(nowUTC, target time.Time) bool {
	return !nowUTC.Before(target.Add(-s.tolerance))
}

func (s *StatusScheduler) publish(ctx context.Context, b *domain.Booking, from, to domain.BookingStatus, nowUTC time.Time) {
	subject := events.BookingCheckedIn
	if to == domain.BookingCheckedOut {
		subject = events.BookingCheckedOut
	}

	evt := events.BookingTransitionEvent{
		BookingID:      b.ID,
		ListingID:      b.ListingID,
		GuestID:        b.GuestID,
		FromStatus:     string(from),
		ToStatus:       string(to),
		TransitionedAt: nowUTC,
	}
	if err := s.bus.Publish(ctx, subject, evt); err != nil {
		// The persisted transition is the source of truth; a lost event is
		// a logging concern, not a rollback.
		logger.ErrorContext(ctx, "failed to publish transition event",
			"booking_id", b.ID, "subject", subject, "error", err)
	}
}
