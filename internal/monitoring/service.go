// Package monitoring serves the live battery view: latest telemetry for a
// vehicle, recent history for charts, and a synthesized sample when the
// vehicle has never reported real data.
package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"chargehub/internal/database"
	"chargehub/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Service reads telemetry through an optional Redis cache. The scheduling
// core never calls into this package; it is a pure read path plus the ingest
// write-through.
type Service struct {
	db     *database.DB
	redis  *redis.Client
	ttl    time.Duration
	recent int
	logger *zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewService(db *database.DB, logger *zerolog.Logger, recentSamples int) *Service {
	if recentSamples <= 0 {
		recentSamples = 20
	}
	return &Service{
		db:     db,
		recent: recentSamples,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// UseRedisCache configures optional Redis caching for latest-sample reads.
func (s *Service) UseRedisCache(client *redis.Client, ttl time.Duration) {
	s.redis = client
	s.ttl = ttl
}

// Snapshot is the monitoring payload for one vehicle.
type Snapshot struct {
	Vehicle     *models.Vehicle     `json:"vehicle"`
	Booking     *models.Booking     `json:"booking,omitempty"`
	LatestLog   *models.BatteryLog  `json:"latest_log"`
	RecentLogs  []models.BatteryLog `json:"recent_logs"`
	IsSimulated bool                `json:"is_simulated"`
}

// Snapshot assembles the live view for a vehicle. booking may be nil.
func (s *Service) Snapshot(ctx context.Context, vehicle *models.Vehicle, booking *models.Booking) (*Snapshot, error) {
	latest, err := s.latest(ctx, vehicle.ID)
	simulated := false
	if errors.Is(err, database.ErrNotFound) {
		latest = s.simulate(vehicle.ID)
		simulated = true
	} else if err != nil {
		return nil, err
	}

	recent, err := s.db.RecentBatteryLogs(ctx, vehicle.ID, s.recent)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Vehicle:     vehicle,
		Booking:     booking,
		LatestLog:   latest,
		RecentLogs:  recent,
		IsSimulated: simulated,
	}, nil
}

// RecordSample appends a telemetry sample and refreshes the cache so the next
// monitoring poll sees it without hitting the database.
func (s *Service) RecordSample(ctx context.Context, log *models.BatteryLog) error {
	if err := s.db.InsertBatteryLog(ctx, log); err != nil {
		return err
	}
	s.writeCache(ctx, log)
	return nil
}

func cacheKey(vehicleID string) string {
	return fmt.Sprintf("telemetry:latest:%s", vehicleID)
}

func (s *Service) latest(ctx context.Context, vehicleID string) (*models.BatteryLog, error) {
	if log, ok := s.readCache(ctx, vehicleID); ok {
		return log, nil
	}

	log, err := s.db.LatestBatteryLog(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, log)
	return log, nil
}

func (s *Service) readCache(ctx context.Context, vehicleID string) (*models.BatteryLog, bool) {
	if s.redis == nil || s.ttl <= 0 {
		return nil, false
	}

	data, err := s.redis.Get(ctx, cacheKey(vehicleID)).Bytes()
	if err != nil {
		return nil, false
	}

	var log models.BatteryLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, false
	}
	return &log, true
}

func (s *Service) writeCache(ctx context.Context, log *models.BatteryLog) {
	if s.redis == nil || s.ttl <= 0 {
		return
	}

	data, err := json.Marshal(log)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, cacheKey(log.VehicleID), data, s.ttl).Err(); err != nil {
		s.logger.Debug().Err(err).Msg("telemetry cache write failed")
	}
}

// simulate synthesizes a plausible sample for demo vehicles that have never
// reported hardware telemetry.
func (s *Service) simulate(vehicleID string) *models.BatteryLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := func(min, max float64) *float64 {
		v := min + s.rng.Float64()*(max-min)
		return &v
	}
	eta := 30 + s.rng.Intn(121) // 30-150 min

	return &models.BatteryLog{
		VehicleID:     vehicleID,
		ChargeLevel:   20 + s.rng.Float64()*60, // 20-80%
		Voltage:       f(350, 400),
		Current:       f(10, 50),
		Temperature:   f(25, 40),
		HealthScore:   f(88, 98),
		ChargingPower: f(7, 22),
		EstimatedTime: &eta,
		Timestamp:     time.Now().UTC(),
	}
}
