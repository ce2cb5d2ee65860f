package scheduling

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"chargehub/internal/database"
	"chargehub/internal/events"
	"chargehub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetVehicleOwned(ctx context.Context, vehicleID, userID string) (*models.Vehicle, error) {
	args := m.Called(ctx, vehicleID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *mockStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockStore) GetBookingOwned(ctx context.Context, bookingID, userID string) (*models.Booking, error) {
	args := m.Called(ctx, bookingID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockStore) TransitionBooking(ctx context.Context, bookingID, userID string, action models.Action) (*models.Booking, error) {
	args := m.Called(ctx, bookingID, userID, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockStore) ListUserBookings(ctx context.Context, userID string) ([]models.Booking, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockStore) ListStations(ctx context.Context) ([]models.Station, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Station), args.Error(1)
}

func (m *mockStore) ListUserVehicles(ctx context.Context, userID string) ([]models.Vehicle, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Vehicle), args.Error(1)
}

func newTestService(store Store) (*Service, *events.EventBus) {
	logger := zerolog.New(io.Discard)
	bus := events.NewEventBus()
	return NewService(store, bus, &logger), bus
}

func TestCreateBooking(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 3, 12, 14, 0, 0, 0, time.UTC)

	t.Run("happy path publishes event", func(t *testing.T) {
		store := &mockStore{}
		svc, bus := newTestService(store)

		var published []events.Event
		bus.Subscribe(events.TypeBookingCreated, func(e events.Event) error {
			published = append(published, e)
			return nil
		})

		store.On("GetVehicleOwned", ctx, "v1", "u1").Return(&models.Vehicle{ID: "v1", UserID: "u1"}, nil)
		store.On("CreateBooking", ctx, mock.AnythingOfType("*models.Booking")).
			Run(func(args mock.Arguments) {
				b := args.Get(1).(*models.Booking)
				b.ID = "b1"
				b.Status = models.BookingScheduled
			}).Return(nil)

		booking, err := svc.CreateBooking(ctx, "u1", "v1", "s1", start, 60)
		require.NoError(t, err)
		assert.Equal(t, models.BookingScheduled, booking.Status)
		assert.Equal(t, start, booking.StartTime)
		assert.Equal(t, start.Add(time.Hour), booking.EndTime)

		require.Len(t, published, 1)
		assert.Equal(t, "b1", published[0].BookingID)
		store.AssertExpectations(t)
	})

	t.Run("invalid duration", func(t *testing.T) {
		store := &mockStore{}
		svc, _ := newTestService(store)

		_, err := svc.CreateBooking(ctx, "u1", "v1", "s1", start, 0)
		assert.True(t, errors.Is(err, models.ErrValidation))
		store.AssertNotCalled(t, "CreateBooking")
	})

	t.Run("missing vehicle id", func(t *testing.T) {
		store := &mockStore{}
		svc, _ := newTestService(store)

		_, err := svc.CreateBooking(ctx, "u1", "", "s1", start, 60)
		assert.True(t, errors.Is(err, models.ErrValidation))
	})

	t.Run("vehicle not owned", func(t *testing.T) {
		store := &mockStore{}
		svc, _ := newTestService(store)

		store.On("GetVehicleOwned", ctx, "v2", "u1").Return(nil, database.ErrNotFound)

		_, err := svc.CreateBooking(ctx, "u1", "v2", "s1", start, 60)
		assert.True(t, errors.Is(err, database.ErrNotFound))
		store.AssertNotCalled(t, "CreateBooking")
	})

	t.Run("slot conflict surfaces unchanged", func(t *testing.T) {
		store := &mockStore{}
		svc, bus := newTestService(store)

		published := 0
		bus.Subscribe(events.TypeBookingCreated, func(events.Event) error { published++; return nil })

		store.On("GetVehicleOwned", ctx, "v1", "u1").Return(&models.Vehicle{ID: "v1"}, nil)
		store.On("CreateBooking", ctx, mock.Anything).Return(database.ErrSlotConflict)

		_, err := svc.CreateBooking(ctx, "u1", "v1", "s1", start, 60)
		assert.True(t, errors.Is(err, database.ErrSlotConflict))
		assert.Zero(t, published)
	})
}

func TestTransitionBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("start publishes transition event", func(t *testing.T) {
		store := &mockStore{}
		svc, bus := newTestService(store)

		var published []events.Event
		bus.Subscribe(events.TypeBookingTransitioned, func(e events.Event) error {
			published = append(published, e)
			return nil
		})

		store.On("TransitionBooking", ctx, "b1", "u1", models.ActionStart).
			Return(&models.Booking{ID: "b1", StationID: "s1", Status: models.BookingActive}, nil)

		booking, err := svc.TransitionBooking(ctx, "u1", "b1", models.ActionStart)
		require.NoError(t, err)
		assert.Equal(t, models.BookingActive, booking.Status)

		require.Len(t, published, 1)
		assert.Equal(t, "start", published[0].Action)
		assert.Equal(t, "active", published[0].Status)
	})

	t.Run("invalid transition surfaces unchanged", func(t *testing.T) {
		store := &mockStore{}
		svc, _ := newTestService(store)

		store.On("TransitionBooking", ctx, "b1", "u1", models.ActionComplete).
			Return(nil, models.ErrInvalidTransition)

		_, err := svc.TransitionBooking(ctx, "u1", "b1", models.ActionComplete)
		assert.True(t, errors.Is(err, models.ErrInvalidTransition))
	})

	t.Run("missing booking id", func(t *testing.T) {
		store := &mockStore{}
		svc, _ := newTestService(store)

		_, err := svc.TransitionBooking(ctx, "u1", "", models.ActionCancel)
		assert.True(t, errors.Is(err, models.ErrValidation))
	})
}

func TestListBookings(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	svc, _ := newTestService(store)

	store.On("ListUserBookings", ctx, "u1").Return([]models.Booking{{ID: "b1"}}, nil)
	store.On("ListStations", ctx).Return([]models.Station{{ID: "s1"}, {ID: "s2"}}, nil)
	store.On("ListUserVehicles", ctx, "u1").Return([]models.Vehicle{{ID: "v1"}}, nil)

	overview, err := svc.ListBookings(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, overview.Bookings, 1)
	assert.Len(t, overview.Stations, 2)
	assert.Len(t, overview.Vehicles, 1)
}
