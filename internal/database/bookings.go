package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chargehub/internal/models"

	"github.com/google/uuid"
)

const bookingColumns = `id, user_id, vehicle_id, station_id, start_time, end_time, status, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	var b models.Booking
	var vehicleID sql.NullString
	err := row.Scan(&b.ID, &b.UserID, &vehicleID, &b.StationID,
		&b.StartTime, &b.EndTime, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.VehicleID = vehicleID.String
	return &b, nil
}

// findConflictTx scans non-terminal bookings on the station for an overlap with
// the half-open interval. Overlap rule: startA < endB && startB < endA.
func findConflictTx(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, stationID string, interval models.Interval) (*models.Booking, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE station_id = ?
		  AND status IN (?, ?)
		  AND start_time < ?
		  AND end_time > ?
		ORDER BY start_time
		LIMIT 1`,
		stationID, models.BookingScheduled, models.BookingActive,
		interval.End, interval.Start,
	)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conflict: %w", err)
	}
	return b, nil
}

// FindConflict returns the first scheduled or active booking on the station
// overlapping the interval, or nil when the slot is free.
func (db *DB) FindConflict(ctx context.Context, stationID string, interval models.Interval) (*models.Booking, error) {
	return findConflictTx(ctx, db, stationID, interval)
}

// CreateBooking inserts a new scheduled booking. The conflict check and the
// insert run inside a single immediate transaction, so two concurrent requests
// for overlapping windows cannot both pass the check.
func (db *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	now := time.Now().UTC()
	b.ID = uuid.NewString()
	b.Status = models.BookingScheduled
	b.CreatedAt = now
	b.UpdatedAt = now

	return db.withTx(ctx, func(tx *sql.Tx) error {
		var exists int64
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM stations WHERE id = ?`, b.StationID).Scan(&exists); err != nil {
			return fmt.Errorf("check station: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("station %s: %w", b.StationID, ErrNotFound)
		}

		conflict, err := findConflictTx(ctx, tx, b.StationID, b.Interval())
		if err != nil {
			return err
		}
		if conflict != nil {
			return fmt.Errorf("overlaps booking %s: %w", conflict.ID, ErrSlotConflict)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO bookings (id, user_id, vehicle_id, station_id, start_time, end_time, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.UserID, b.VehicleID, b.StationID, b.StartTime, b.EndTime, b.Status, b.CreatedAt, b.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		return nil
	})
}

// GetBookingOwned returns the booking only when it belongs to userID.
func (db *DB) GetBookingOwned(ctx context.Context, bookingID, userID string) (*models.Booking, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ? AND user_id = ?`,
		bookingID, userID,
	)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// TransitionBooking applies a lifecycle action. The booking status update and
// the station status side effect commit atomically; a failed transition leaves
// both untouched.
func (db *DB) TransitionBooking(ctx context.Context, bookingID, userID string, action models.Action) (*models.Booking, error) {
	var booking *models.Booking

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE id = ? AND user_id = ?`,
			bookingID, userID,
		)
		b, err := scanBooking(row)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}

		effect, err := models.Transition(b.Status, action)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
			effect.Next, now, b.ID,
		); err != nil {
			return fmt.Errorf("update booking status: %w", err)
		}

		if effect.StationStatus != "" {
			if _, err := tx.ExecContext(ctx,
				`UPDATE stations SET status = ?, updated_at = ? WHERE id = ?`,
				effect.StationStatus, now, b.StationID,
			); err != nil {
				return fmt.Errorf("update station status: %w", err)
			}
		}

		b.Status = effect.Next
		b.UpdatedAt = now
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// ListUserBookings returns the user's bookings newest first, with vehicle and
// station details joined in. The vehicle join is LEFT: bookings whose vehicle
// was deleted come back with Vehicle nil.
func (db *DB) ListUserBookings(ctx context.Context, userID string) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT b.id, b.user_id, b.vehicle_id, b.station_id, b.start_time, b.end_time, b.status, b.created_at, b.updated_at,
		       v.id, v.user_id, v.make, v.model, v.year, v.license_plate, v.battery_capacity_kwh, v.created_at, v.updated_at,
		       s.id, s.name, s.location, s.power_output_kw, s.status, s.created_at, s.updated_at
		FROM bookings b
		LEFT JOIN vehicles v ON v.id = b.vehicle_id
		JOIN stations s ON s.id = b.station_id
		WHERE b.user_id = ?
		ORDER BY b.start_time DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		var b models.Booking
		var s models.Station
		var bVehicleID, vID, vUserID, vMake, vModel, vPlate sql.NullString
		var vYear sql.NullInt64
		var vCapacity sql.NullFloat64
		var vCreated, vUpdated sql.NullTime
		if err := rows.Scan(
			&b.ID, &b.UserID, &bVehicleID, &b.StationID, &b.StartTime, &b.EndTime, &b.Status, &b.CreatedAt, &b.UpdatedAt,
			&vID, &vUserID, &vMake, &vModel, &vYear, &vPlate, &vCapacity, &vCreated, &vUpdated,
			&s.ID, &s.Name, &s.Location, &s.PowerOutputKw, &s.Status, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		b.VehicleID = bVehicleID.String
		if vID.Valid {
			b.Vehicle = &models.Vehicle{
				ID:                 vID.String,
				UserID:             vUserID.String,
				Make:               vMake.String,
				Model:              vModel.String,
				Year:               int(vYear.Int64),
				LicensePlate:       vPlate.String,
				BatteryCapacityKwh: vCapacity.Float64,
				CreatedAt:          vCreated.Time,
				UpdatedAt:          vUpdated.Time,
			}
		}
		b.Station = &s
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ActiveBookingForVehicle returns the vehicle's active booking with station
// details, or ErrNotFound when the vehicle is not charging.
func (db *DB) ActiveBookingForVehicle(ctx context.Context, vehicleID string) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `
		SELECT b.id, b.user_id, b.vehicle_id, b.station_id, b.start_time, b.end_time, b.status, b.created_at, b.updated_at,
		       s.id, s.name, s.location, s.power_output_kw, s.status, s.created_at, s.updated_at
		FROM bookings b
		JOIN stations s ON s.id = b.station_id
		WHERE b.vehicle_id = ? AND b.status = ?
		LIMIT 1`,
		vehicleID, models.BookingActive,
	)

	var b models.Booking
	var s models.Station
	err := row.Scan(
		&b.ID, &b.UserID, &b.VehicleID, &b.StationID, &b.StartTime, &b.EndTime, &b.Status, &b.CreatedAt, &b.UpdatedAt,
		&s.ID, &s.Name, &s.Location, &s.PowerOutputKw, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("active booking for vehicle: %w", err)
	}
	b.Station = &s
	return &b, nil
}
