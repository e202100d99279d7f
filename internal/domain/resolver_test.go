package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/MrJefferson29/DrivInn-sub001/internal/domain"
)

func mustParseDate(t *testing.T, s string) domain.Date {
	t.Helper()
	d, err := domain.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func TestResolveStayTimesLagos(t *testing.T) {
	// Lagos is UTC+1 year-round, so the expected instants are exactly one
	// hour behind the local clock times.
	cfg := domain.ScheduleConfig{
		CheckIn:  domain.NewLocalTime(14, 0),
		CheckOut: domain.NewLocalTime(11, 0),
		Timezone: "Africa/Lagos",
	}

	checkIn, checkOut, err := domain.ResolveStayTimes(
		mustParseDate(t, "2024-01-15"),
		mustParseDate(t, "2024-01-17"),
		cfg,
	)
	if err != nil {
		t.Fatalf("ResolveStayTimes: %v", err)
	}

	wantIn := time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC)
	wantOut := time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC)

	if !checkIn.Equal(wantIn) {
		t.Errorf("checkIn = %v, want %v", checkIn, wantIn)
	}
	if !checkOut.Equal(wantOut) {
		t.Errorf("checkOut = %v, want %v", checkOut, wantOut)
	}
}

func TestResolveStayTimesAcrossDSTTransition(t *testing.T) {
	// New York springs forward on 2024-03-10. A stay spanning the transition
	// must get UTC-5 for the check-in date and UTC-4 for the check-out date,
	// not one cached offset for both.
	cfg := domain.ScheduleConfig{
		CheckIn:  domain.NewLocalTime(14, 0),
		CheckOut: domain.NewLocalTime(11, 0),
		Timezone: "America/New_York",
	}

	checkIn, checkOut, err := domain.ResolveStayTimes(
		mustParseDate(t, "2024-03-08"),
		mustParseDate(t, "2024-03-12"),
		cfg,
	)
	if err != nil {
		t.Fatalf("ResolveStayTimes: %v", err)
	}

	wantIn := time.Date(2024, 3, 8, 19, 0, 0, 0, time.UTC)   // EST, UTC-5
	wantOut := time.Date(2024, 3, 12, 15, 0, 0, 0, time.UTC) // EDT, UTC-4

	if !checkIn.Equal(wantIn) {
		t.Errorf("checkIn = %v, want %v (EST offset)", checkIn, wantIn)
	}
	if !checkOut.Equal(wantOut) {
		t.Errorf("checkOut = %v, want %v (EDT offset)", checkOut, wantOut)
	}
}

func TestResolveStayTimesIsDeterministic(t *testing.T) {
	cfg := domain.ScheduleConfig{
		CheckIn:  domain.NewLocalTime(15, 30),
		CheckOut: domain.NewLocalTime(10, 0),
		Timezone: "Europe/Berlin",
	}
	start := mustParseDate(t, "2025-06-01")
	end := mustParseDate(t, "2025-06-05")

	in1, out1, err := domain.ResolveStayTimes(start, end, cfg)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	in2, out2, err := domain.ResolveStayTimes(start, end, cfg)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	if !in1.Equal(in2) || !out1.Equal(out2) {
		t.Errorf("resolve not deterministic: (%v, %v) vs (%v, %v)", in1, out1, in2, out2)
	}
}

func TestResolveStayTimesInvalidDateRange(t *testing.T) {
	cfg := domain.ScheduleConfig{
		CheckIn:  domain.NewLocalTime(14, 0),
		CheckOut: domain.NewLocalTime(11, 0),
		Timezone: "Africa/Lagos",
	}

	cases := []struct {
		name       string
		start, end string
	}{
		{"equal dates", "2024-01-15", "2024-01-15"},
		{"reversed dates", "2024-01-17", "2024-01-15"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := domain.ResolveStayTimes(mustParseDate(t, tc.start), mustParseDate(t, tc.end), cfg)
			if !errors.Is(err, domain.ErrInvalidDateRange) {
				t.Errorf("err = %v, want ErrInvalidDateRange", err)
			}
		})
	}
}

func TestResolveStayTimesUnknownTimezone(t *testing.T) {
	start := mustParseDate(t, "2024-01-15")
	end := mustParseDate(t, "2024-01-17")

	for _, tz := range []string{"Mars/Olympus", ""} {
		cfg := domain.ScheduleConfig{
			CheckIn:  domain.NewLocalTime(14, 0),
			CheckOut: domain.NewLocalTime(11, 0),
			Timezone: tz,
		}
		_, _, err := domain.ResolveStayTimes(start, end, cfg)
		if !errors.Is(err, domain.ErrUnknownTimezone) {
			t.Errorf("timezone %q: err = %v, want ErrUnknownTimezone", tz, err)
		}
	}
}
