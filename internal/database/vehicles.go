package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"chargehub/internal/models"

	"github.com/google/uuid"
)

// CreateVehicle registers a vehicle for a user. License plates are
// case-normalized to upper and must be unique system-wide.
func (db *DB) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	now := time.Now().UTC()
	v.ID = uuid.NewString()
	v.LicensePlate = strings.ToUpper(strings.TrimSpace(v.LicensePlate))
	v.CreatedAt = now
	v.UpdatedAt = now

	_, err := db.ExecContext(ctx, `
		INSERT INTO vehicles (id, user_id, make, model, year, license_plate, battery_capacity_kwh, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.UserID, v.Make, v.Model, v.Year, v.LicensePlate, v.BatteryCapacityKwh, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePlate
		}
		return fmt.Errorf("create vehicle: %w", err)
	}
	return nil
}

const vehicleColumns = `id, user_id, make, model, year, license_plate, battery_capacity_kwh, created_at, updated_at`

func scanVehicle(row interface{ Scan(...any) error }) (*models.Vehicle, error) {
	var v models.Vehicle
	err := row.Scan(&v.ID, &v.UserID, &v.Make, &v.Model, &v.Year, &v.LicensePlate,
		&v.BatteryCapacityKwh, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetVehicleOwned returns the vehicle only when it belongs to userID.
func (db *DB) GetVehicleOwned(ctx context.Context, vehicleID, userID string) (*models.Vehicle, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE id = ? AND user_id = ?`,
		vehicleID, userID,
	)
	v, err := scanVehicle(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vehicle: %w", err)
	}
	return v, nil
}

// GetVehicle returns a vehicle regardless of owner. Used by the hardware
// ingestion path, which authenticates with an API key instead of a session.
func (db *DB) GetVehicle(ctx context.Context, vehicleID string) (*models.Vehicle, error) {
	row := db.QueryRowContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = ?`, vehicleID)
	v, err := scanVehicle(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vehicle: %w", err)
	}
	return v, nil
}

// ListUserVehicles returns the user's vehicles, newest first.
func (db *DB) ListUserVehicles(ctx context.Context, userID string) ([]models.Vehicle, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []models.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, *v)
	}
	return vehicles, rows.Err()
}

// DeleteVehicle removes a vehicle owned by userID.
func (db *DB) DeleteVehicle(ctx context.Context, vehicleID, userID string) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM vehicles WHERE id = ? AND user_id = ?`,
		vehicleID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete vehicle: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
