package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidDateRange = errors.New("start date must be before end date")
	ErrUnknownTimezone  = errors.New("unknown timezone")
)

// ResolveStayTimes combines guest-selected calendar dates with the listing's
// check-in/check-out clock and timezone to produce the booking's UTC instants.
// The timezone's offset is looked up per calendar date via the zone database,
// so stays that straddle a daylight-saving transition get the correct offset
// on each side. The function is pure: identical inputs always yield identical
// instants, whenever it is called.
//
// The caller freezes the returned instants onto the booking at creation time;
// they are never recomputed, even if the listing's schedule changes later.
func ResolveStayTimes(startDate, endDate Date, cfg ScheduleConfig) (checkInAt, checkOutAt time.Time, err error) {
	if !startDate.Before(endDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start %s, end %s", ErrInvalidDateRange, startDate, endDate)
	}

	// time.LoadLocation("") silently means UTC; reject it so an unset
	// timezone can never masquerade as a configured one.
	if cfg.Timezone == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: schedule config has no timezone", ErrUnknownTimezone)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrUnknownTimezone, cfg.Timezone)
	}

	checkInAt = time.Date(startDate.Year, startDate.Month, startDate.Day,
		cfg.CheckIn.Hour, cfg.CheckIn.Minute, 0, 0, loc).UTC()
	checkOutAt = time.Date(endDate.Year, endDate.Month, endDate.Day,
		cfg.CheckOut.Hour, cfg.CheckOut.Minute, 0, 0, loc).UTC()

	return checkInAt, checkOutAt, nil
}
