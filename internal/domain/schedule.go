package domain

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date with no time-of-day component. Guests select dates;
// the listing's schedule decides what instant on that date they mean.
type Date struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// LocalTime is a wall-clock time of day (hour:minute) with no date attached.
// It only becomes an instant once interpreted against a calendar date and a
// timezone.
type LocalTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func NewLocalTime(hour, minute int) LocalTime {
	return LocalTime{Hour: hour, Minute: minute}
}

func ParseLocalTime(s string) (LocalTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return LocalTime{}, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	return LocalTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (lt LocalTime) String() string {
	return fmt.Sprintf("%02d:%02d", lt.Hour, lt.Minute)
}

func (lt LocalTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + lt.String() + `"`), nil
}

func (lt *LocalTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseLocalTime(s)
	if err != nil {
		return err
	}
	*lt = parsed
	return nil
}

// ScheduleConfig is the host-configured check-in/check-out clock for a
// listing. Timezone is an IANA zone name and decides how the clock times map
// to instants on any given date.
type ScheduleConfig struct {
	CheckIn  LocalTime `json:"check_in"`
	CheckOut LocalTime `json:"check_out"`
	Timezone string    `json:"timezone"`
}

// OrDefaultTimezone substitutes def when the host never configured a
// timezone. Callers that load schedule configs from storage apply this before
// handing the config to the resolver, so a missing timezone is an explicit
// platform decision rather than a silent UTC.
func (c ScheduleConfig) OrDefaultTimezone(def string) ScheduleConfig {
	if c.Timezone == "" {
		c.Timezone = def
	}
	return c
}

// Listing is the slice of a listing the booking core needs: who hosts it and
// when its days start and end.
type Listing struct {
	ID       int64          `json:"id"`
	HostID   int64          `json:"host_id"`
	Schedule ScheduleConfig `json:"schedule"`
}
