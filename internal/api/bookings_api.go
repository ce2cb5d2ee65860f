package api

import (
	"errors"
	"net/http"
	"time"

	"chargehub/internal/database"
	"chargehub/internal/metrics"
	"chargehub/internal/models"
)

type createBookingRequest struct {
	VehicleID       string    `json:"vehicle_id"`
	StationID       string    `json:"station_id"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

type transitionBookingRequest struct {
	BookingID string `json:"booking_id"`
	Action    string `json:"action"`
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_bookings")

	claims := sessionClaims(r)
	overview, err := s.scheduler.ListBookings(r.Context(), claims.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_booking")

	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := sessionClaims(r)
	booking, err := s.scheduler.CreateBooking(
		r.Context(),
		claims.UserID,
		req.VehicleID,
		req.StationID,
		req.StartTime,
		req.DurationMinutes,
	)
	if err != nil {
		if errors.Is(err, database.ErrSlotConflict) {
			metrics.IncBookingConflict()
		}
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *Server) handleTransitionBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("transition_booking")

	var req transitionBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	action, err := models.ParseAction(req.Action)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	claims := sessionClaims(r)
	booking, err := s.scheduler.TransitionBooking(r.Context(), claims.UserID, req.BookingID, action)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}
