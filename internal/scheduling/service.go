// Package scheduling orchestrates booking admission and lifecycle transitions,
// keeping booking and station state consistent.
package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chargehub/internal/events"
	"chargehub/internal/models"

	"github.com/rs/zerolog"
)

// Store is the persistence surface the service needs. *database.DB satisfies
// it; tests use a mock.
type Store interface {
	GetVehicleOwned(ctx context.Context, vehicleID, userID string) (*models.Vehicle, error)
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBookingOwned(ctx context.Context, bookingID, userID string) (*models.Booking, error)
	TransitionBooking(ctx context.Context, bookingID, userID string, action models.Action) (*models.Booking, error)
	ListUserBookings(ctx context.Context, userID string) ([]models.Booking, error)
	ListStations(ctx context.Context) ([]models.Station, error)
	ListUserVehicles(ctx context.Context, userID string) ([]models.Vehicle, error)
}

// Service implements booking creation and lifecycle transitions.
type Service struct {
	store  Store
	bus    *events.EventBus
	logger *zerolog.Logger
}

func NewService(store Store, bus *events.EventBus, logger *zerolog.Logger) *Service {
	return &Service{store: store, bus: bus, logger: logger}
}

// Overview is the bookings page payload: the caller's bookings plus the data
// needed to make a new one.
type Overview struct {
	Bookings []models.Booking `json:"bookings"`
	Stations []models.Station `json:"stations"`
	Vehicles []models.Vehicle `json:"vehicles"`
}

// ListBookings returns the user's bookings, all stations and the user's
// vehicles.
func (s *Service) ListBookings(ctx context.Context, userID string) (*Overview, error) {
	bookings, err := s.store.ListUserBookings(ctx, userID)
	if err != nil {
		return nil, err
	}
	stations, err := s.store.ListStations(ctx)
	if err != nil {
		return nil, err
	}
	vehicles, err := s.store.ListUserVehicles(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Overview{Bookings: bookings, Stations: stations, Vehicles: vehicles}, nil
}

// CreateBooking admits a new booking request:
//  1. the vehicle must belong to the requesting user,
//  2. the window is computed from start time and duration,
//  3. the store inserts it atomically, rejecting overlaps on the station.
func (s *Service) CreateBooking(ctx context.Context, userID, vehicleID, stationID string, startTime time.Time, durationMinutes int) (*models.Booking, error) {
	if strings.TrimSpace(vehicleID) == "" {
		return nil, fmt.Errorf("%w: vehicle_id is required", models.ErrValidation)
	}
	if strings.TrimSpace(stationID) == "" {
		return nil, fmt.Errorf("%w: station_id is required", models.ErrValidation)
	}

	interval, err := models.NewInterval(startTime, durationMinutes)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetVehicleOwned(ctx, vehicleID, userID); err != nil {
		return nil, err
	}

	booking := &models.Booking{
		UserID:    userID,
		VehicleID: vehicleID,
		StationID: stationID,
		StartTime: interval.Start,
		EndTime:   interval.End,
	}
	if err := s.store.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("booking_id", booking.ID).
		Str("station_id", stationID).
		Time("start", interval.Start).
		Time("end", interval.End).
		Msg("booking created")

	s.bus.Publish(events.Event{
		Type:      events.TypeBookingCreated,
		BookingID: booking.ID,
		UserID:    userID,
		StationID: stationID,
		Status:    string(booking.Status),
	})
	return booking, nil
}

// TransitionBooking applies start/complete/cancel to an owned booking. The
// store commits the booking status and the station side effect together.
func (s *Service) TransitionBooking(ctx context.Context, userID, bookingID string, action models.Action) (*models.Booking, error) {
	if strings.TrimSpace(bookingID) == "" {
		return nil, fmt.Errorf("%w: booking_id is required", models.ErrValidation)
	}

	booking, err := s.store.TransitionBooking(ctx, bookingID, userID, action)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("booking_id", booking.ID).
		Str("action", string(action)).
		Str("status", string(booking.Status)).
		Msg("booking transitioned")

	s.bus.Publish(events.Event{
		Type:      events.TypeBookingTransitioned,
		BookingID: booking.ID,
		UserID:    userID,
		StationID: booking.StationID,
		Action:    string(action),
		Status:    string(booking.Status),
	})
	return booking, nil
}
