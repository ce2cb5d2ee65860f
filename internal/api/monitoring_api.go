package api

import (
	"errors"
	"net/http"

	"chargehub/internal/database"
	"chargehub/internal/metrics"
	"chargehub/internal/models"
)

// handleMonitoring serves the battery view. The client passes either a
// booking_id (monitor the vehicle attached to that booking) or a vehicle_id.
func (s *Server) handleMonitoring(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("monitoring")

	claims := sessionClaims(r)
	bookingID := r.URL.Query().Get("booking_id")
	vehicleID := r.URL.Query().Get("vehicle_id")

	var (
		vehicle *models.Vehicle
		booking *models.Booking
		err     error
	)
	switch {
	case bookingID != "":
		booking, err = s.db.GetBookingOwned(r.Context(), bookingID, claims.UserID)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		vehicle, err = s.db.GetVehicleOwned(r.Context(), booking.VehicleID, claims.UserID)
	case vehicleID != "":
		vehicle, err = s.db.GetVehicleOwned(r.Context(), vehicleID, claims.UserID)
	default:
		writeError(w, http.StatusBadRequest, "booking_id or vehicle_id is required")
		return
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if booking == nil {
		booking, err = s.db.ActiveBookingForVehicle(r.Context(), vehicle.ID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			s.writeDomainError(w, err)
			return
		}
	}

	snapshot, err := s.monitor.Snapshot(r.Context(), vehicle, booking)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}
