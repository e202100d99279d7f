package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrJefferson29/DrivInn-sub001/internal/domain"
	"github.com/MrJefferson29/DrivInn-sub001/internal/service"
)

// ---------- Mocks ----------

type mockBookingRepo struct {
	mu            sync.Mutex
	nextID        int64
	bookings      map[int64]*domain.Booking
	forceConflict bool
}

func newMockBookingRepo() *mockBookingRepo {
	return &mockBookingRepo{nextID: 1, bookings: make(map[int64]*domain.Booking)}
}

func (m *mockBookingRepo) Create(_ context.Context, b *domain.Booking) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *b
	stored.ID = m.nextID
	m.nextID++
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	m.bookings[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (m *mockBookingRepo) GetByID(_ context.Context, id int64) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	out := *b
	return &out, nil
}

func (m *mockBookingRepo) List(context.Context, int, int) ([]domain.Booking, error) { return nil, nil }

func (m *mockBookingRepo) ListByStatus(_ context.Context, status domain.BookingStatus, _, _ int) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Booking
	for _, b := range m.bookings {
		if b.Status == status {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *mockBookingRepo) ListByGuest(context.Context, int64, int, int) ([]domain.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepo) LoadActiveBookings(context.Context, []domain.BookingStatus) ([]domain.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepo) ConditionalUpdateStatus(_ context.Context, id int64, expected, next domain.BookingStatus, nowUTC time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.forceConflict {
		return false, nil
	}

	b, ok := m.bookings[id]
	if !ok || b.Status != expected {
		return false, nil
	}
	b.Status = next
	b.StatusUpdatedAt = nowUTC
	return true, nil
}

func (m *mockBookingRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

type mockListingRepo struct {
	mu       sync.Mutex
	listings map[int64]*domain.Listing
	fetches  int
}

func newMockListingRepo(listings ...*domain.Listing) *mockListingRepo {
	m := &mockListingRepo{listings: make(map[int64]*domain.Listing)}
	for _, l := range listings {
		m.listings[l.ID] = l
	}
	return m
}

func (m *mockListingRepo) GetByID(_ context.Context, id int64) (*domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	l, ok := m.listings[id]
	if !ok {
		return nil, nil
	}
	out := *l
	return &out, nil
}

func (m *mockListingRepo) setSchedule(id int64, cfg domain.ScheduleConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[id].Schedule = cfg
}

// mockIdempotencyRepo mirrors the claim semantics: a key maps to 0 while the
// claiming request is still creating its booking.
type mockIdempotencyRepo struct {
	mu     sync.Mutex
	claims map[string]int64
}

func newMockIdempotencyRepo() *mockIdempotencyRepo {
	return &mockIdempotencyRepo{claims: make(map[string]int64)}
}

func (m *mockIdempotencyRepo) Claim(_ context.Context, key string) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.claims[key]; ok {
		return false, id, nil
	}
	m.claims[key] = 0
	return true, 0, nil
}

func (m *mockIdempotencyRepo) Attach(_ context.Context, key string, bookingID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims[key] = bookingID
	return nil
}

func (m *mockIdempotencyRepo) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claims[key] == 0 {
		delete(m.claims, key)
	}
	return nil
}

func (m *mockIdempotencyRepo) CleanupExpired(context.Context) (int64, error) { return 0, nil }

type mockBus struct {
	mu       sync.Mutex
	subjects []string
}

func (m *mockBus) Publish(_ context.Context, subject string, _ interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	return nil
}

func (m *mockBus) Close() error { return nil }

// ---------- Helpers ----------

func lagosListing(id int64) *domain.Listing {
	return &domain.Listing{
		ID:     id,
		HostID: 99,
		Schedule: domain.ScheduleConfig{
			CheckIn:  domain.NewLocalTime(14, 0),
			CheckOut: domain.NewLocalTime(11, 0),
			Timezone: "Africa/Lagos",
		},
	}
}

func createReq(t *testing.T, listingID int64, start, end string) *domain.BookingCreateReq {
	t.Helper()
	sd, err := domain.ParseDate(start)
	if err != nil {
		t.Fatal(err)
	}
	ed, err := domain.ParseDate(end)
	if err != nil {
		t.Fatal(err)
	}
	return &domain.BookingCreateReq{ListingID: listingID, GuestID: 7, StartDate: sd, EndDate: ed}
}

type fixture struct {
	svc      service.BookingService
	bookings *mockBookingRepo
	listings *mockListingRepo
	idem     *mockIdempotencyRepo
	bus      *mockBus
}

func newFixture(listings ...*domain.Listing) *fixture {
	f := &fixture{
		bookings: newMockBookingRepo(),
		listings: newMockListingRepo(listings...),
		idem:     newMockIdempotencyRepo(),
		bus:      &mockBus{},
	}
	f.svc = service.NewBookingService(f.bookings, f.listings, f.idem, f.bus)
	return f
}

// ---------- Tests ----------

func TestCreateResolvesAndFreezesInstants(t *testing.T) {
	f := newFixture(lagosListing(1))
	ctx := context.Background()

	b, err := f.svc.Create(ctx, createReq(t, 1, "2024-01-15", "2024-01-17"), "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	wantIn := time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC)
	wantOut := time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC)
	if !b.CheckInAt.Equal(wantIn) || !b.CheckOutAt.Equal(wantOut) {
		t.Fatalf("instants = (%v, %v), want (%v, %v)", b.CheckInAt, b.CheckOutAt, wantIn, wantOut)
	}
	if b.Status != domain.BookingPending {
		t.Errorf("status = %s, want pending", b.Status)
	}

	// The host reconfigures the listing after creation. The frozen instants
	// must not move, through any later read or transition.
	f.listings.setSchedule(1, domain.ScheduleConfig{
		CheckIn:  domain.NewLocalTime(16, 0),
		CheckOut: domain.NewLocalTime(9, 0),
		Timezone: "Europe/Paris",
	})

	if _, err := f.svc.Confirm(ctx, b.ID, time.Now().UTC()); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	got, err := f.svc.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.CheckInAt.Equal(wantIn) || !got.CheckOutAt.Equal(wantOut) {
		t.Errorf("instants moved after schedule change: (%v, %v)", got.CheckInAt, got.CheckOutAt)
	}

	if f.listings.fetches != 1 {
		t.Errorf("schedule fetched %d times, want exactly once at creation", f.listings.fetches)
	}
}

func TestCreateRejectsInvalidDateRange(t *testing.T) {
	f := newFixture(lagosListing(1))

	_, err := f.svc.Create(context.Background(), createReq(t, 1, "2024-01-17", "2024-01-15"), "")
	if !errors.Is(err, domain.ErrInvalidDateRange) {
		t.Fatalf("err = %v, want ErrInvalidDateRange", err)
	}
	if f.bookings.count() != 0 {
		t.Error("a booking was persisted despite time resolution failing")
	}
}

func TestCreateRejectsUnknownTimezone(t *testing.T) {
	l := lagosListing(1)
	l.Schedule.Timezone = "Not/AZone"
	f := newFixture(l)

	_, err := f.svc.Create(context.Background(), createReq(t, 1, "2024-01-15", "2024-01-17"), "")
	if !errors.Is(err, domain.ErrUnknownTimezone) {
		t.Fatalf("err = %v, want ErrUnknownTimezone", err)
	}
	if f.bookings.count() != 0 {
		t.Error("a booking was persisted despite time resolution failing")
	}
}

func TestCreateRejectsUnknownListing(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), createReq(t, 42, "2024-01-15", "2024-01-17"), "")
	if !errors.Is(err, service.ErrListingNotFound) {
		t.Fatalf("err = %v, want ErrListingNotFound", err)
	}
}

func TestCreateHonorsIdempotencyKey(t *testing.T) {
	f := newFixture(lagosListing(1))
	ctx := context.Background()

	first, err := f.svc.Create(ctx, createReq(t, 1, "2024-01-15", "2024-01-17"), "retry-key")
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	second, err := f.svc.Create(ctx, createReq(t, 1, "2024-01-15", "2024-01-17"), "retry-key")
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("retry created a new booking: %d vs %d", first.ID, second.ID)
	}
	if f.bookings.count() != 1 {
		t.Errorf("bookings persisted = %d, want 1", f.bookings.count())
	}
}

func TestCreateDuplicateKeyInFlight(t *testing.T) {
	f := newFixture(lagosListing(1))
	ctx := context.Background()

	// A concurrent request already claimed the key but has not finished
	// creating its booking yet.
	if won, _, err := f.idem.Claim(ctx, "racing-key"); err != nil || !won {
		t.Fatalf("seeding claim: won=%v err=%v", won, err)
	}

	_, err := f.svc.Create(ctx, createReq(t, 1, "2024-01-15", "2024-01-17"), "racing-key")
	if !errors.Is(err, service.ErrDuplicateRequest) {
		t.Fatalf("err = %v, want ErrDuplicateRequest", err)
	}
	if f.bookings.count() != 0 {
		t.Errorf("bookings persisted = %d, want 0: the loser must never create a second booking", f.bookings.count())
	}
}

func TestCreateFailureReleasesIdempotencyClaim(t *testing.T) {
	f := newFixture(lagosListing(1))
	ctx := context.Background()

	// First attempt claims the key, then fails in time resolution.
	_, err := f.svc.Create(ctx, createReq(t, 1, "2024-01-17", "2024-01-15"), "retry-key")
	if !errors.Is(err, domain.ErrInvalidDateRange) {
		t.Fatalf("err = %v, want ErrInvalidDateRange", err)
	}

	// The retry with corrected dates must not be blocked by the dead claim.
	b, err := f.svc.Create(ctx, createReq(t, 1, "2024-01-15", "2024-01-17"), "retry-key")
	if err != nil {
		t.Fatalf("retry Create: %v", err)
	}
	if b == nil || b.ID == 0 {
		t.Fatalf("retry returned no booking: %+v", b)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	f := newFixture(lagosListing(1))
	ctx := context.Background()
	now := time.Now().UTC()

	b, err := f.svc.Create(ctx, createReq(t, 1, "2024-01-15", "2024-01-17"), "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Completing a pending booking skips two states; refused.
	if _, err := f.svc.Complete(ctx, b.ID, now); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Errorf("Complete(pending): err = %v, want ErrIllegalTransition", err)
	}

	if _, err := f.svc.Confirm(ctx, b.ID, now); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	// Confirming twice has no legal edge.
	if _, err := f.svc.Confirm(ctx, b.ID, now); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Errorf("Confirm(confirmed): err = %v, want ErrIllegalTransition", err)
	}

	cancelled, err := f.svc.Cancel(ctx, b.ID, now)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != domain.BookingCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}

	// Terminal states have no outgoing edges.
	if _, err := f.svc.Confirm(ctx, b.ID, now); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Errorf("Confirm(cancelled): err = %v, want ErrIllegalTransition", err)
	}
}

func TestCancelInStayBookingRefused(t *testing.T) {
	f := newFixture(lagosListing(1))
	ctx := context.Background()
	now := time.Now().UTC()

	b, err := f.svc.Create(ctx, createReq(t, 1, "2024-01-15", "2024-01-17"), "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.bookings.bookings[b.ID].Status = domain.BookingCheckedIn

	if _, err := f.svc.Cancel(ctx, b.ID, now); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Errorf("Cancel(checked_in): err = %v, want ErrIllegalTransition", err)
	}
}

func TestTransitionConflictSurfaced(t *testing.T) {
	f := newFixture(lagosListing(1))
	ctx := context.Background()

	b, err := f.svc.Create(ctx, createReq(t, 1, "2024-01-15", "2024-01-17"), "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	f.bookings.forceConflict = true
	if _, err := f.svc.Confirm(ctx, b.ID, time.Now().UTC()); !errors.Is(err, service.ErrStatusConflict) {
		t.Errorf("err = %v, want ErrStatusConflict", err)
	}
}

func TestTransitionUnknownBooking(t *testing.T) {
	f := newFixture(lagosListing(1))

	if _, err := f.svc.Confirm(context.Background(), 12345, time.Now().UTC()); !errors.Is(err, service.ErrBookingNotFound) {
		t.Errorf("err = %v, want ErrBookingNotFound", err)
	}
}
