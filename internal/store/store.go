// Package store keeps sensor history, face detections and alerts in a SQL
// database through GORM. SQLite is the default; Postgres is used when
// configured.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/safem8/controller/internal/alert"
	"github.com/safem8/controller/internal/monitor"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultLimit = 50
	maxLimit     = 1000
)

var ErrUnknownDriver = errors.New("store: unknown driver")

// Reading is a persisted sensor value.
type Reading struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	Sensor     string    `gorm:"size:32;index:idx_sensor_time" json:"sensor"`
	Value      float64   `json:"value"`
	RecordedAt time.Time `gorm:"index:idx_sensor_time" json:"recordedAt"`
}

// Detection is a persisted face-log record with its raw payload.
type Detection struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	Count        int            `json:"count"`
	LastDetected string         `gorm:"size:64" json:"lastDetected"`
	Raw          datatypes.JSON `json:"raw"`
	ReceivedAt   time.Time      `gorm:"index" json:"receivedAt"`
}

// Alert is a persisted local alert.
type Alert struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	Kind      string    `gorm:"size:32;index" json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Value     float64   `json:"value"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

type Config struct {
	Driver string
	// DSN is a file path for sqlite (empty means in-memory) or a connection
	// string for postgres.
	DSN string
}

// Store implements monitor.Recorder and alert.Notifier.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

func Open(cfg Config, log zerolog.Logger) (*Store, error) {
	gcfg := &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case DriverSQLite, "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		db, err = gorm.Open(sqlite.Open(dsn), gcfg)
	case DriverPostgres:
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		}), gcfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.Driver, err)
	}

	if err := db.AutoMigrate(&Reading{}, &Detection{}, &Alert{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	s := &Store{db: db, log: log.With().Str("component", "store").Logger()}
	s.log.Info().Str("driver", cfg.Driver).Msg("History store ready")
	return s, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) RecordReading(ctx context.Context, r monitor.Reading) error {
	row := Reading{Sensor: string(r.Sensor), Value: r.Value, RecordedAt: r.At.UTC()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("store: record reading: %w", err)
	}
	return nil
}

func (s *Store) RecordDetection(ctx context.Context, d monitor.Detection) error {
	row := Detection{
		Count:        d.Count,
		LastDetected: d.LastDetected,
		Raw:          datatypes.JSON(d.Raw),
		ReceivedAt:   d.ReceivedAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("store: record detection: %w", err)
	}
	return nil
}

// Notify persists an alert.
func (s *Store) Notify(ctx context.Context, a alert.Alert) error {
	row := Alert{
		ID:        a.ID,
		Kind:      string(a.Kind),
		Title:     a.Title,
		Body:      a.Body,
		Value:     a.Value,
		CreatedAt: a.CreatedAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("store: record alert: %w", err)
	}
	return nil
}

// Readings returns the most recent values of sensor, newest first.
func (s *Store) Readings(ctx context.Context, sensor string, limit int) ([]Reading, error) {
	var out []Reading
	err := s.db.WithContext(ctx).
		Where("sensor = ?", sensor).
		Order("recorded_at DESC").Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: readings: %w", err)
	}
	return out, nil
}

func (s *Store) Detections(ctx context.Context, limit int) ([]Detection, error) {
	var out []Detection
	err := s.db.WithContext(ctx).
		Order("received_at DESC").Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: detections: %w", err)
	}
	return out, nil
}

func (s *Store) Alerts(ctx context.Context, limit int) ([]Alert, error) {
	var out []Alert
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(clampLimit(limit)).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: alerts: %w", err)
	}
	return out, nil
}

func clampLimit(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return min(n, maxLimit)
}
