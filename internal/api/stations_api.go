package api

import (
	"net/http"
	"strconv"
	"time"

	"chargehub/internal/metrics"
	"chargehub/internal/models"

	"github.com/go-chi/chi/v5"
)

type setStationStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleListStations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_stations")

	stations, err := s.db.ListStations(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stations": stations})
}

// handleSetStationStatus flips a station in or out of maintenance. Occupied
// is owned by the booking lifecycle and cannot be set directly.
func (s *Server) handleSetStationStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("set_station_status")

	var req setStationStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status := models.StationStatus(req.Status)
	if status != models.StationAvailable && status != models.StationMaintenance {
		writeError(w, http.StatusBadRequest, "status must be available or maintenance")
		return
	}

	stationID := chi.URLParam(r, "stationID")
	if err := s.db.SetStationStatus(r.Context(), stationID, status); err != nil {
		s.writeDomainError(w, err)
		return
	}

	station, err := s.db.GetStation(r.Context(), stationID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.logger.Info().Str("station_id", stationID).Str("status", req.Status).Msg("station status changed")
	writeJSON(w, http.StatusOK, station)
}

// handleCheckAvailability answers whether a station slot is free, without
// reserving anything. The create path re-checks atomically regardless.
func (s *Server) handleCheckAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("check_availability")

	q := r.URL.Query()
	stationID := q.Get("station_id")
	if stationID == "" {
		writeError(w, http.StatusBadRequest, "station_id is required")
		return
	}
	start, err := time.Parse(time.RFC3339, q.Get("start_time"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_time must be RFC 3339")
		return
	}
	minutes, err := strconv.Atoi(q.Get("duration_minutes"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "duration_minutes must be an integer")
		return
	}

	interval, err := models.NewInterval(start, minutes)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if _, err := s.db.GetStation(r.Context(), stationID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	conflict, err := s.db.FindConflict(r.Context(), stationID, interval)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"available": conflict == nil})
}
