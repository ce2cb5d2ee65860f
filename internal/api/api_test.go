package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"chargehub/internal/config"
	"chargehub/internal/database"
	"chargehub/internal/events"
	"chargehub/internal/models"
	"chargehub/internal/monitoring"
	"chargehub/internal/scheduling"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHardwareKey = "hw-test-key"

func newTestServer(t *testing.T) (*Server, *database.DB) {
	t.Helper()

	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "api_test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.SeedStations(context.Background()))

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.SessionTTLHours = 1
	cfg.Hardware.APIKey = testHardwareKey
	cfg.Hardware.RatePerSecond = 100
	cfg.Hardware.Burst = 100

	scheduler := scheduling.NewService(db, events.NewEventBus(), &logger)
	monitor := monitoring.NewService(db, &logger, 20)
	return NewServer(cfg, db, scheduler, monitor, &logger), db
}

func doJSON(t *testing.T, srv *Server, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// registerAndLogin creates an account and returns its session cookies.
func registerAndLogin(t *testing.T, srv *Server, email string) []*http.Cookie {
	t.Helper()

	rec := doJSON(t, srv, http.MethodPost, "/api/auth/register", map[string]any{
		"email":    email,
		"password": "correct horse battery",
		"name":     "Test Driver",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func addVehicle(t *testing.T, srv *Server, cookies []*http.Cookie, plate string) models.Vehicle {
	t.Helper()

	rec := doJSON(t, srv, http.MethodPost, "/api/vehicles", map[string]any{
		"make":                 "Tesla",
		"model":                "Model 3",
		"year":                 2023,
		"license_plate":        plate,
		"battery_capacity_kwh": 75.0,
	}, cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[models.Vehicle](t, rec)
}

func firstStationID(t *testing.T, db *database.DB) string {
	t.Helper()
	stations, err := db.ListStations(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, stations)
	return stations[0].ID
}

func TestAuthFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("register sets session cookie", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/auth/register", map[string]any{
			"email":    "alice@example.com",
			"password": "longenough",
			"name":     "Alice",
		}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)

		user := decodeBody[models.User](t, rec)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.NotContains(t, rec.Body.String(), "password")

		var found bool
		for _, c := range rec.Result().Cookies() {
			if c.Name == "session" && c.Value != "" {
				found = true
				assert.True(t, c.HttpOnly)
			}
		}
		assert.True(t, found, "session cookie not set")
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/auth/register", map[string]any{
			"email":    "Alice@Example.com",
			"password": "longenough",
			"name":     "Alice Again",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("short password rejected", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/auth/register", map[string]any{
			"email":    "bob@example.com",
			"password": "short",
			"name":     "Bob",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("login with wrong password", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "alice@example.com",
			"password": "wrong password",
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("login with unknown email looks like wrong password", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "nobody@example.com",
			"password": "whatever123",
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("login succeeds", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "ALICE@example.com",
			"password": "longenough",
		}, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("protected route without session", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/vehicles", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("logout clears cookie", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/auth/logout", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		cookies := rec.Result().Cookies()
		require.NotEmpty(t, cookies)
		assert.Equal(t, -1, cookies[0].MaxAge)
	})
}

func TestVehicleEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	cookies := registerAndLogin(t, srv, "driver@example.com")

	vehicle := addVehicle(t, srv, cookies, "ev-100")
	assert.Equal(t, "EV-100", vehicle.LicensePlate, "plate should be upper-cased")

	t.Run("duplicate plate rejected", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/vehicles", map[string]any{
			"make":                 "Nissan",
			"model":                "Leaf",
			"license_plate":        "EV-100",
			"battery_capacity_kwh": 40.0,
		}, cookies)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list returns the vehicle", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/vehicles", nil, cookies)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[map[string][]models.Vehicle](t, rec)
		require.Len(t, body["vehicles"], 1)
		assert.Equal(t, vehicle.ID, body["vehicles"][0].ID)
	})

	t.Run("cannot delete another user's vehicle", func(t *testing.T) {
		other := registerAndLogin(t, srv, "other@example.com")
		rec := doJSON(t, srv, http.MethodDelete, "/api/vehicles/"+vehicle.ID, nil, other)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("owner deletes vehicle", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodDelete, "/api/vehicles/"+vehicle.ID, nil, cookies)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, srv, http.MethodGet, "/api/vehicles", nil, cookies)
		body := decodeBody[map[string][]models.Vehicle](t, rec)
		assert.Empty(t, body["vehicles"])
	})
}

func TestBookingEndpoints(t *testing.T) {
	srv, db := newTestServer(t)
	cookies := registerAndLogin(t, srv, "driver@example.com")
	vehicle := addVehicle(t, srv, cookies, "EV-200")
	stationID := firstStationID(t, db)

	start := time.Now().Add(time.Hour).Truncate(time.Minute)

	createReq := func(startTime time.Time, minutes int) map[string]any {
		return map[string]any{
			"vehicle_id":       vehicle.ID,
			"station_id":       stationID,
			"start_time":       startTime.Format(time.RFC3339),
			"duration_minutes": minutes,
		}
	}

	rec := doJSON(t, srv, http.MethodPost, "/api/bookings", createReq(start, 60), cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booking := decodeBody[models.Booking](t, rec)
	assert.Equal(t, models.BookingScheduled, booking.Status)

	t.Run("overlapping slot conflicts", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/bookings", createReq(start.Add(30*time.Minute), 60), cookies)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("adjacent slot is fine", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/bookings", createReq(start.Add(time.Hour), 30), cookies)
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})

	t.Run("zero duration rejected", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/bookings", createReq(start.Add(6*time.Hour), 0), cookies)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown station is 404", func(t *testing.T) {
		req := createReq(start.Add(8*time.Hour), 30)
		req["station_id"] = "no-such-station"
		rec := doJSON(t, srv, http.MethodPost, "/api/bookings", req, cookies)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("list includes joined vehicle and station", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/bookings", nil, cookies)
		require.Equal(t, http.StatusOK, rec.Code)
		overview := decodeBody[scheduling.Overview](t, rec)
		require.NotEmpty(t, overview.Bookings)
		require.NotNil(t, overview.Bookings[0].Vehicle)
		require.NotNil(t, overview.Bookings[0].Station)
		assert.NotEmpty(t, overview.Stations)
		assert.NotEmpty(t, overview.Vehicles)
	})

	t.Run("lifecycle start then complete", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPatch, "/api/bookings", map[string]any{
			"booking_id": booking.ID,
			"action":     "start",
		}, cookies)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		updated := decodeBody[models.Booking](t, rec)
		assert.Equal(t, models.BookingActive, updated.Status)

		station, err := db.GetStation(context.Background(), stationID)
		require.NoError(t, err)
		assert.Equal(t, models.StationOccupied, station.Status)

		rec = doJSON(t, srv, http.MethodPatch, "/api/bookings", map[string]any{
			"booking_id": booking.ID,
			"action":     "complete",
		}, cookies)
		require.Equal(t, http.StatusOK, rec.Code)

		station, err = db.GetStation(context.Background(), stationID)
		require.NoError(t, err)
		assert.Equal(t, models.StationAvailable, station.Status)
	})

	t.Run("completing again conflicts", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPatch, "/api/bookings", map[string]any{
			"booking_id": booking.ID,
			"action":     "complete",
		}, cookies)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown action rejected", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPatch, "/api/bookings", map[string]any{
			"booking_id": booking.ID,
			"action":     "pause",
		}, cookies)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("other user cannot touch the booking", func(t *testing.T) {
		other := registerAndLogin(t, srv, "intruder@example.com")
		rec := doJSON(t, srv, http.MethodPatch, "/api/bookings", map[string]any{
			"booking_id": booking.ID,
			"action":     "cancel",
		}, other)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestMonitoringEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	cookies := registerAndLogin(t, srv, "driver@example.com")
	vehicle := addVehicle(t, srv, cookies, "EV-300")

	t.Run("requires an id", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/monitoring", nil, cookies)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("simulated snapshot when no telemetry exists", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/monitoring?vehicle_id="+vehicle.ID, nil, cookies)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		snap := decodeBody[monitoring.Snapshot](t, rec)
		assert.True(t, snap.IsSimulated)
		require.NotNil(t, snap.LatestLog)
		assert.GreaterOrEqual(t, snap.LatestLog.ChargeLevel, 20.0)
		assert.LessOrEqual(t, snap.LatestLog.ChargeLevel, 80.0)
	})

	t.Run("real telemetry after hardware report", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/monitoring?vehicle_id="+vehicle.ID, nil, cookies)
		require.Equal(t, http.StatusOK, rec.Code)

		ingest := httptest.NewRequest(http.MethodPost, "/api/hardware", bytes.NewBufferString(
			fmt.Sprintf(`{"vehicle_id":%q,"charge_level":55.5}`, vehicle.ID)))
		ingest.Header.Set(hardwareKeyHeader, testHardwareKey)
		ingestRec := httptest.NewRecorder()
		srv.ServeHTTP(ingestRec, ingest)
		require.Equal(t, http.StatusCreated, ingestRec.Code, ingestRec.Body.String())

		rec = doJSON(t, srv, http.MethodGet, "/api/monitoring?vehicle_id="+vehicle.ID, nil, cookies)
		require.Equal(t, http.StatusOK, rec.Code)
		snap := decodeBody[monitoring.Snapshot](t, rec)
		assert.False(t, snap.IsSimulated)
		assert.Equal(t, 55.5, snap.LatestLog.ChargeLevel)
	})

	t.Run("cannot monitor another user's vehicle", func(t *testing.T) {
		other := registerAndLogin(t, srv, "other@example.com")
		rec := doJSON(t, srv, http.MethodGet, "/api/monitoring?vehicle_id="+vehicle.ID, nil, other)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHardwareEndpoints(t *testing.T) {
	srv, db := newTestServer(t)
	cookies := registerAndLogin(t, srv, "driver@example.com")
	vehicle := addVehicle(t, srv, cookies, "EV-400")
	stationID := firstStationID(t, db)

	hardwareGet := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(hardwareKeyHeader, testHardwareKey)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing api key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/hardware?vehicle_id="+vehicle.ID, nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown vehicle rejected on ingest", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/hardware",
			bytes.NewBufferString(`{"vehicle_id":"ghost","charge_level":50}`))
		req.Header.Set(hardwareKeyHeader, testHardwareKey)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("charge level bounds enforced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/hardware",
			bytes.NewBufferString(fmt.Sprintf(`{"vehicle_id":%q,"charge_level":140}`, vehicle.ID)))
		req.Header.Set(hardwareKeyHeader, testHardwareKey)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("idle command without an active booking", func(t *testing.T) {
		rec := hardwareGet("/api/hardware?vehicle_id=" + vehicle.ID)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[map[string]any](t, rec)
		assert.Equal(t, "idle", body["command"])
	})

	t.Run("charge command while the booking is active", func(t *testing.T) {
		start := time.Now().Add(time.Hour)
		rec := doJSON(t, srv, http.MethodPost, "/api/bookings", map[string]any{
			"vehicle_id":       vehicle.ID,
			"station_id":       stationID,
			"start_time":       start.Format(time.RFC3339),
			"duration_minutes": 60,
		}, cookies)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		booking := decodeBody[models.Booking](t, rec)

		rec = doJSON(t, srv, http.MethodPatch, "/api/bookings", map[string]any{
			"booking_id": booking.ID,
			"action":     "start",
		}, cookies)
		require.Equal(t, http.StatusOK, rec.Code)

		cmd := hardwareGet("/api/hardware?vehicle_id=" + vehicle.ID)
		require.Equal(t, http.StatusOK, cmd.Code)
		body := decodeBody[map[string]any](t, cmd)
		assert.Equal(t, "charge", body["command"])
		assert.Equal(t, booking.ID, body["booking_id"])
		assert.Equal(t, stationID, body["station_id"])
	})

	t.Run("rate limit applies", func(t *testing.T) {
		limited, _ := newTestServer(t)
		limited.hwLimiter.SetLimit(1)
		limited.hwLimiter.SetBurst(2)

		codes := make(map[int]int)
		for i := 0; i < 5; i++ {
			req := httptest.NewRequest(http.MethodGet, "/api/hardware?vehicle_id=none", nil)
			req.Header.Set(hardwareKeyHeader, testHardwareKey)
			rec := httptest.NewRecorder()
			limited.ServeHTTP(rec, req)
			codes[rec.Code]++
		}
		assert.Positive(t, codes[http.StatusTooManyRequests])
	})
}

func TestBookingsReport(t *testing.T) {
	srv, db := newTestServer(t)
	cookies := registerAndLogin(t, srv, "driver@example.com")
	vehicle := addVehicle(t, srv, cookies, "EV-500")
	stationID := firstStationID(t, db)

	rec := doJSON(t, srv, http.MethodPost, "/api/bookings", map[string]any{
		"vehicle_id":       vehicle.ID,
		"station_id":       stationID,
		"start_time":       time.Now().Add(time.Hour).Format(time.RFC3339),
		"duration_minutes": 45,
	}, cookies)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/reports/bookings.xlsx", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "bookings_")
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestStationEndpoints(t *testing.T) {
	srv, db := newTestServer(t)
	cookies := registerAndLogin(t, srv, "driver@example.com")
	stationID := firstStationID(t, db)

	t.Run("list returns the seeded stations", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/stations", nil, cookies)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[map[string][]models.Station](t, rec)
		assert.Len(t, body["stations"], 4)
	})

	t.Run("maintenance toggle", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPatch, "/api/stations/"+stationID,
			map[string]any{"status": "maintenance"}, cookies)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		station := decodeBody[models.Station](t, rec)
		assert.Equal(t, models.StationMaintenance, station.Status)

		rec = doJSON(t, srv, http.MethodPatch, "/api/stations/"+stationID,
			map[string]any{"status": "available"}, cookies)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("occupied cannot be set directly", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPatch, "/api/stations/"+stationID,
			map[string]any{"status": "occupied"}, cookies)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown station is 404", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPatch, "/api/stations/nope",
			map[string]any{"status": "maintenance"}, cookies)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAvailabilityCheck(t *testing.T) {
	srv, db := newTestServer(t)
	cookies := registerAndLogin(t, srv, "driver@example.com")
	vehicle := addVehicle(t, srv, cookies, "EV-600")
	stationID := firstStationID(t, db)

	start := time.Now().Add(2 * time.Hour).Truncate(time.Minute)
	rec := doJSON(t, srv, http.MethodPost, "/api/bookings", map[string]any{
		"vehicle_id":       vehicle.ID,
		"station_id":       stationID,
		"start_time":       start.Format(time.RFC3339),
		"duration_minutes": 60,
	}, cookies)
	require.Equal(t, http.StatusCreated, rec.Code)

	check := func(startTime time.Time, minutes int) map[string]any {
		path := fmt.Sprintf("/api/bookings/availability?station_id=%s&start_time=%s&duration_minutes=%d",
			stationID, url.QueryEscape(startTime.Format(time.RFC3339)), minutes)
		rec := doJSON(t, srv, http.MethodGet, path, nil, cookies)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decodeBody[map[string]any](t, rec)
	}

	assert.Equal(t, false, check(start.Add(30*time.Minute), 60)["available"])
	assert.Equal(t, true, check(start.Add(time.Hour), 60)["available"])

	t.Run("unknown station is 404", func(t *testing.T) {
		path := "/api/bookings/availability?station_id=nope&start_time=" +
			url.QueryEscape(start.Format(time.RFC3339)) + "&duration_minutes=30"
		rec := doJSON(t, srv, http.MethodGet, path, nil, cookies)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
