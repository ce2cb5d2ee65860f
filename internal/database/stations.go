package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chargehub/internal/models"

	"github.com/google/uuid"
)

// defaultStations is the fixed seed set for a fresh installation.
var defaultStations = []models.Station{
	{Name: "Station A", Location: "Basement Parking - Spot 1", PowerOutputKw: 7.2},
	{Name: "Station B", Location: "Basement Parking - Spot 2", PowerOutputKw: 7.2},
	{Name: "Station C", Location: "Ground Floor - East Wing", PowerOutputKw: 22.0},
	{Name: "Fast Charger", Location: "Main Entrance", PowerOutputKw: 50.0},
}

// SeedStations inserts the default stations when the table is empty. It is an
// explicit bootstrap step run once at startup, never on the request path.
func (db *DB) SeedStations(ctx context.Context) error {
	var count int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stations`).Scan(&count); err != nil {
		return fmt.Errorf("count stations: %w", err)
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, s := range defaultStations {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO stations (id, name, location, power_output_kw, status, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), s.Name, s.Location, s.PowerOutputKw, models.StationAvailable, now, now,
			)
			if err != nil {
				return fmt.Errorf("seed station %s: %w", s.Name, err)
			}
		}
		db.logger.Info().Int("count", len(defaultStations)).Msg("Seeded charging stations")
		return nil
	})
}

const stationColumns = `id, name, location, power_output_kw, status, created_at, updated_at`

func scanStation(row interface{ Scan(...any) error }) (*models.Station, error) {
	var s models.Station
	err := row.Scan(&s.ID, &s.Name, &s.Location, &s.PowerOutputKw, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetStation returns a station by ID.
func (db *DB) GetStation(ctx context.Context, id string) (*models.Station, error) {
	row := db.QueryRowContext(ctx, `SELECT `+stationColumns+` FROM stations WHERE id = ?`, id)
	s, err := scanStation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get station: %w", err)
	}
	return s, nil
}

// ListStations returns all stations ordered by name.
func (db *DB) ListStations(ctx context.Context) ([]models.Station, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+stationColumns+` FROM stations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		s, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, *s)
	}
	return stations, rows.Err()
}

// SetStationStatus updates the status field only. The scheduling layer is
// responsible for keeping booking and station state consistent; prefer the
// transactional TransitionBooking for lifecycle changes.
func (db *DB) SetStationStatus(ctx context.Context, id string, status models.StationStatus) error {
	result, err := db.ExecContext(ctx, `
		UPDATE stations SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set station status: %w", err)
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
