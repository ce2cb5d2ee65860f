package models

import "time"

// User represents a registered account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Vehicle represents an EV owned by a user. License plates are stored
// upper-cased and are unique across the system.
type Vehicle struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	Make               string    `json:"make"`
	Model              string    `json:"model"`
	Year               int       `json:"year"`
	LicensePlate       string    `json:"license_plate"`
	BatteryCapacityKwh float64   `json:"battery_capacity_kwh"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// StationStatus is persisted as the literal lowercase token.
type StationStatus string

const (
	StationAvailable   StationStatus = "available"
	StationOccupied    StationStatus = "occupied"
	StationMaintenance StationStatus = "maintenance"
)

// Station represents a charging station.
type Station struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Location      string        `json:"location"`
	PowerOutputKw float64       `json:"power_output_kw"`
	Status        StationStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// BookingStatus is persisted as the literal lowercase token.
type BookingStatus string

const (
	BookingScheduled BookingStatus = "scheduled"
	BookingActive    BookingStatus = "active"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// Booking reserves a station for a vehicle over a half-open time window
// [StartTime, EndTime).
type Booking struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	VehicleID string        `json:"vehicle_id"`
	StationID string        `json:"station_id"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`

	// Joined on read paths, not persisted on the booking row.
	Vehicle *Vehicle `json:"vehicle,omitempty"`
	Station *Station `json:"station,omitempty"`
}

// Interval returns the booking's time window.
func (b *Booking) Interval() Interval {
	return Interval{Start: b.StartTime, End: b.EndTime}
}

// BatteryLog is a single telemetry sample for a vehicle. Append-only.
type BatteryLog struct {
	ID            int64     `json:"id"`
	VehicleID     string    `json:"vehicle_id"`
	ChargeLevel   float64   `json:"charge_level"`
	Voltage       *float64  `json:"voltage,omitempty"`
	Current       *float64  `json:"current,omitempty"`
	Temperature   *float64  `json:"temperature,omitempty"`
	HealthScore   *float64  `json:"health_score,omitempty"`
	ChargingPower *float64  `json:"charging_power,omitempty"`
	EstimatedTime *int      `json:"estimated_time,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
