package domain

import (
	"errors"
	"time"
)

type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingCheckedIn  BookingStatus = "checked_in"
	BookingCheckedOut BookingStatus = "checked_out"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
)

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(s) {
	case BookingPending, BookingConfirmed, BookingCheckedIn, BookingCheckedOut, BookingCompleted, BookingCancelled:
		return BookingStatus(s), true
	default:
		return "", false
	}
}

// IsTerminal reports whether the status has no outgoing edges. Terminal
// bookings are never transitioned again, only kept for the record.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// CanTransitionTo reports whether the edge s -> next exists in the booking
// state machine:
//
//	pending    -> confirmed | cancelled
//	confirmed  -> checked_in | cancelled
//	checked_in -> checked_out
//	checked_out -> completed
//
// Every status write in the system goes through this predicate, so an illegal
// edge (say checked_out -> confirmed) cannot reach storage.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingPending:
		return next == BookingConfirmed || next == BookingCancelled
	case BookingConfirmed:
		return next == BookingCheckedIn || next == BookingCancelled
	case BookingCheckedIn:
		return next == BookingCheckedOut
	case BookingCheckedOut:
		return next == BookingCompleted
	default:
		return false
	}
}

var ErrIllegalTransition = errors.New("illegal booking status transition")

// Booking is the entity the scheduler mutates. StartDate/EndDate are the
// guest's selected dates and immutable after creation. CheckInAt/CheckOutAt
// are the UTC instants resolved from those dates at creation time and frozen:
// the scheduler compares against them, it never re-derives them.
type Booking struct {
	ID              int64         `json:"id"`
	ListingID       int64         `json:"listing_id"`
	GuestID         int64         `json:"guest_id"`
	HostID          int64         `json:"host_id"`
	StartDate       Date          `json:"start_date"`
	EndDate         Date          `json:"end_date"`
	CheckInAt       time.Time     `json:"check_in_at"`
	CheckOutAt      time.Time     `json:"check_out_at"`
	Status          BookingStatus `json:"status"`
	StatusUpdatedAt time.Time     `json:"status_updated_at"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type BookingCreateReq struct {
	ListingID int64 `json:"listing_id"`
	GuestID   int64 `json:"guest_id"`
	StartDate Date  `json:"start_date"`
	EndDate   Date  `json:"end_date"`
}
