package api

import (
	"net/http"
	"strings"

	"chargehub/internal/metrics"
	"chargehub/internal/models"

	"github.com/go-chi/chi/v5"
)

type addVehicleRequest struct {
	Make               string  `json:"make"`
	Model              string  `json:"model"`
	Year               int     `json:"year"`
	LicensePlate       string  `json:"license_plate"`
	BatteryCapacityKwh float64 `json:"battery_capacity_kwh"`
}

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_vehicles")

	claims := sessionClaims(r)
	vehicles, err := s.db.ListUserVehicles(r.Context(), claims.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vehicles": vehicles})
}

func (s *Server) handleAddVehicle(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("add_vehicle")

	var req addVehicleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Make = strings.TrimSpace(req.Make)
	req.Model = strings.TrimSpace(req.Model)
	req.LicensePlate = strings.TrimSpace(req.LicensePlate)
	if req.Make == "" || req.Model == "" || req.LicensePlate == "" {
		writeError(w, http.StatusBadRequest, "make, model and license_plate are required")
		return
	}
	if req.BatteryCapacityKwh <= 0 {
		writeError(w, http.StatusBadRequest, "battery_capacity_kwh must be positive")
		return
	}

	claims := sessionClaims(r)
	vehicle := &models.Vehicle{
		UserID:             claims.UserID,
		Make:               req.Make,
		Model:              req.Model,
		Year:               req.Year,
		LicensePlate:       req.LicensePlate,
		BatteryCapacityKwh: req.BatteryCapacityKwh,
	}
	if err := s.db.CreateVehicle(r.Context(), vehicle); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.logger.Info().
		Str("vehicle_id", vehicle.ID).
		Str("user_id", claims.UserID).
		Str("plate", vehicle.LicensePlate).
		Msg("vehicle added")
	writeJSON(w, http.StatusCreated, vehicle)
}

func (s *Server) handleDeleteVehicle(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_vehicle")

	claims := sessionClaims(r)
	vehicleID := chi.URLParam(r, "vehicleID")
	if err := s.db.DeleteVehicle(r.Context(), vehicleID, claims.UserID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
