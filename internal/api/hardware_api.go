package api

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"chargehub/internal/database"
	"chargehub/internal/metrics"
	"chargehub/internal/models"
)

const hardwareKeyHeader = "X-API-Key"

// requireHardwareKey gates the device endpoints behind the shared API key and
// a global rate limiter. Devices report far more often than humans click.
func (s *Server) requireHardwareKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Hardware.APIKey == "" {
			writeError(w, http.StatusServiceUnavailable, "hardware interface disabled")
			return
		}
		key := r.Header.Get(hardwareKeyHeader)
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.Hardware.APIKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		if !s.hwLimiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

type hardwareStatusRequest struct {
	VehicleID     string   `json:"vehicle_id"`
	ChargeLevel   float64  `json:"charge_level"`
	Voltage       *float64 `json:"voltage,omitempty"`
	Current       *float64 `json:"current,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	HealthScore   *float64 `json:"health_score,omitempty"`
	ChargingPower *float64 `json:"charging_power,omitempty"`
	EstimatedTime *int     `json:"estimated_time,omitempty"`
}

// handleHardwareStatus ingests one telemetry sample from a charger.
func (s *Server) handleHardwareStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("hardware_status")

	var req hardwareStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.VehicleID == "" {
		writeError(w, http.StatusBadRequest, "vehicle_id is required")
		return
	}
	if req.ChargeLevel < 0 || req.ChargeLevel > 100 {
		writeError(w, http.StatusBadRequest, "charge_level must be between 0 and 100")
		return
	}

	// The vehicle must exist, but the device has no user session; ownership
	// is not checked on this path.
	if _, err := s.db.GetVehicle(r.Context(), req.VehicleID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	log := &models.BatteryLog{
		VehicleID:     req.VehicleID,
		ChargeLevel:   req.ChargeLevel,
		Voltage:       req.Voltage,
		Current:       req.Current,
		Temperature:   req.Temperature,
		HealthScore:   req.HealthScore,
		ChargingPower: req.ChargingPower,
		EstimatedTime: req.EstimatedTime,
	}
	if err := s.monitor.RecordSample(r.Context(), log); err != nil {
		s.writeDomainError(w, err)
		return
	}
	metrics.IncBatteryLogIngested()
	writeJSON(w, http.StatusCreated, log)
}

// handleHardwareCommand tells a charger whether it should be delivering power
// to the given vehicle right now.
func (s *Server) handleHardwareCommand(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("hardware_command")

	vehicleID := r.URL.Query().Get("vehicle_id")
	if vehicleID == "" {
		writeError(w, http.StatusBadRequest, "vehicle_id is required")
		return
	}

	booking, err := s.db.ActiveBookingForVehicle(r.Context(), vehicleID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]any{"command": "idle"})
			return
		}
		s.writeDomainError(w, err)
		return
	}

	resp := map[string]any{"command": "charge", "booking_id": booking.ID}
	if booking.Station != nil {
		resp["station_id"] = booking.Station.ID
		resp["power_output_kw"] = booking.Station.PowerOutputKw
	}
	writeJSON(w, http.StatusOK, resp)
}
