// Package api exposes the HTTP surface: auth, vehicles, bookings, monitoring,
// reports and the hardware ingestion endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"chargehub/internal/auth"
	"chargehub/internal/config"
	"chargehub/internal/database"
	"chargehub/internal/models"
	"chargehub/internal/monitoring"
	"chargehub/internal/scheduling"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Server wires handlers to the router. It implements http.Handler.
type Server struct {
	cfg       *config.Config
	db        *database.DB
	scheduler *scheduling.Service
	monitor   *monitoring.Service
	logger    *zerolog.Logger
	router    chi.Router
	hwLimiter *rate.Limiter
}

func NewServer(
	cfg *config.Config,
	db *database.DB,
	scheduler *scheduling.Service,
	monitor *monitoring.Service,
	logger *zerolog.Logger,
) *Server {
	s := &Server{
		cfg:       cfg,
		db:        db,
		scheduler: scheduler,
		monitor:   monitor,
		logger:    logger,
		hwLimiter: rate.NewLimiter(rate.Limit(cfg.Hardware.RatePerSecond), cfg.Hardware.Burst),
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		// Hardware devices authenticate with an API key, not a session.
		r.Get("/hardware", s.requireHardwareKey(s.handleHardwareCommand))
		r.Post("/hardware", s.requireHardwareKey(s.handleHardwareStatus))

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware([]byte(s.cfg.Auth.JWTSecret)))

			r.Get("/vehicles", s.handleListVehicles)
			r.Post("/vehicles", s.handleAddVehicle)
			r.Delete("/vehicles/{vehicleID}", s.handleDeleteVehicle)

			r.Get("/stations", s.handleListStations)
			r.Patch("/stations/{stationID}", s.handleSetStationStatus)

			r.Get("/bookings", s.handleListBookings)
			r.Get("/bookings/availability", s.handleCheckAvailability)
			r.Post("/bookings", s.handleCreateBooking)
			r.Patch("/bookings", s.handleTransitionBooking)

			r.Get("/monitoring", s.handleMonitoring)
			r.Get("/reports/bookings.xlsx", s.handleBookingsReport)
		})
	})

	return r
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Unexpected
// errors become an opaque 500; the request fails, the process does not.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, database.ErrDuplicateEmail),
		errors.Is(err, database.ErrDuplicatePlate):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, database.ErrSlotConflict):
		writeError(w, http.StatusConflict, "this time slot is already booked")
	case errors.Is(err, models.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func sessionClaims(r *http.Request) *auth.Claims {
	claims, _ := auth.ClaimsFromContext(r.Context())
	return claims
}
