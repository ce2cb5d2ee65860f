package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the sqlite connection.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

var (
	// ErrNotFound covers both absent rows and rows not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrSlotConflict means the requested station window overlaps a
	// scheduled or active booking.
	ErrSlotConflict = errors.New("time slot is already booked")
	// ErrDuplicateEmail is returned when registering an existing email.
	ErrDuplicateEmail = errors.New("email is already registered")
	// ErrDuplicatePlate is returned when adding a known license plate.
	ErrDuplicatePlate = errors.New("license plate is already registered")
)

// NewDB opens the database, configures the pool and runs migrations.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL with immediate transactions: every write transaction takes the
	// write lock up front, so a conflict check followed by an insert inside
	// one transaction cannot interleave with another writer.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, logger: logger}

	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			name TEXT NOT NULL,
			phone TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS vehicles (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			make TEXT NOT NULL,
			model TEXT NOT NULL,
			year INTEGER NOT NULL,
			license_plate TEXT UNIQUE NOT NULL,
			battery_capacity_kwh REAL NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY(user_id) REFERENCES users(id)
		)`,
		`CREATE TABLE IF NOT EXISTS stations (
			id TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			location TEXT NOT NULL,
			power_output_kw REAL NOT NULL,
			status TEXT NOT NULL DEFAULT 'available',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		// Bookings outlive their vehicle: deleting a vehicle clears the
		// reference but keeps the row, so station history and the conflict
		// scan stay intact.
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			vehicle_id TEXT,
			station_id TEXT NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'scheduled',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY(user_id) REFERENCES users(id),
			FOREIGN KEY(vehicle_id) REFERENCES vehicles(id) ON DELETE SET NULL,
			FOREIGN KEY(station_id) REFERENCES stations(id)
		)`,
		`CREATE TABLE IF NOT EXISTS battery_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			vehicle_id TEXT NOT NULL,
			charge_level REAL NOT NULL,
			voltage REAL,
			current REAL,
			temperature REAL,
			health_score REAL,
			charging_power REAL,
			estimated_time INTEGER,
			timestamp DATETIME NOT NULL,
			FOREIGN KEY(vehicle_id) REFERENCES vehicles(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_vehicles_user_id ON vehicles(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_id ON bookings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_vehicle_id ON bookings(vehicle_id)`,
		// Conflict scans filter by station and non-terminal status.
		`CREATE INDEX IF NOT EXISTS idx_bookings_station_status ON bookings(station_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_start_time ON bookings(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_battery_logs_vehicle_ts ON battery_logs(vehicle_id, timestamp)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// withTx runs fn inside a transaction, rolling back on error.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
