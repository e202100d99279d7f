package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrJefferson29/DrivInn-sub001/internal/domain"
	"github.com/MrJefferson29/DrivInn-sub001/internal/service"
)

// CreateBooking handles booking creation for the marketplace's booking flow.
// Honors an Idempotency-Key header so client retries return the original row.
func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req domain.BookingCreateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")

	booking, err := h.bookingService.Create(r.Context(), &req, idempotencyKey)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	booking, err := h.bookingService.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve booking")
		return
	}
	if booking == nil {
		writeError(w, http.StatusNotFound, "Booking not found")
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

// ListBookings lists bookings, optionally filtered by status.
func (h *Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	var status *domain.BookingStatus
	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		st, ok := domain.ParseBookingStatus(statusParam)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid status parameter")
			return
		}
		status = &st
	}

	bookings, err := h.bookingService.List(r.Context(), status, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve bookings")
		return
	}
	if bookings == nil {
		bookings = []domain.Booking{}
	}

	writeJSON(w, http.StatusOK, bookings)
}

// ListMyBookings lists the bookings belonging to the authenticated guest.
// The guest identity comes from the token, never from the query string.
func (h *Handlers) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	limit, offset := parsePagination(r)

	bookings, err := h.bookingService.ListByGuest(r.Context(), claims.Sub, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve bookings")
		return
	}
	if bookings == nil {
		bookings = []domain.Booking{}
	}

	writeJSON(w, http.StatusOK, bookings)
}

func (h *Handlers) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.bookingService.Confirm)
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.bookingService.Cancel)
}

func (h *Handlers) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.bookingService.Complete)
}

func (h *Handlers) applyTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64, nowUTC time.Time) (*domain.Booking, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	booking, err := fn(r.Context(), id, time.Now().UTC())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidDateRange), errors.Is(err, domain.ErrUnknownTimezone):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrListingNotFound), errors.Is(err, service.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrIllegalTransition), errors.Is(err, service.ErrStatusConflict),
		errors.Is(err, service.ErrDuplicateRequest):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}
