package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chargehub/internal/models"
)

// InsertBatteryLog appends a telemetry sample for a vehicle.
func (db *DB) InsertBatteryLog(ctx context.Context, log *models.BatteryLog) error {
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO battery_logs (vehicle_id, charge_level, voltage, current, temperature, health_score, charging_power, estimated_time, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.VehicleID, log.ChargeLevel, log.Voltage, log.Current, log.Temperature,
		log.HealthScore, log.ChargingPower, log.EstimatedTime, log.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert battery log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last id: %w", err)
	}
	log.ID = id
	return nil
}

const batteryLogColumns = `id, vehicle_id, charge_level, voltage, current, temperature, health_score, charging_power, estimated_time, timestamp`

func scanBatteryLog(row interface{ Scan(...any) error }) (*models.BatteryLog, error) {
	var l models.BatteryLog
	err := row.Scan(&l.ID, &l.VehicleID, &l.ChargeLevel, &l.Voltage, &l.Current,
		&l.Temperature, &l.HealthScore, &l.ChargingPower, &l.EstimatedTime, &l.Timestamp)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// LatestBatteryLog returns the newest sample for a vehicle, or ErrNotFound
// when no telemetry has ever been recorded.
func (db *DB) LatestBatteryLog(ctx context.Context, vehicleID string) (*models.BatteryLog, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+batteryLogColumns+` FROM battery_logs
		WHERE vehicle_id = ? ORDER BY timestamp DESC LIMIT 1`,
		vehicleID,
	)
	l, err := scanBatteryLog(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest battery log: %w", err)
	}
	return l, nil
}

// RecentBatteryLogs returns up to limit samples for a vehicle, newest first.
func (db *DB) RecentBatteryLogs(ctx context.Context, vehicleID string, limit int) ([]models.BatteryLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+batteryLogColumns+` FROM battery_logs
		WHERE vehicle_id = ? ORDER BY timestamp DESC LIMIT ?`,
		vehicleID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent battery logs: %w", err)
	}
	defer rows.Close()

	var logs []models.BatteryLog
	for rows.Next() {
		l, err := scanBatteryLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}
