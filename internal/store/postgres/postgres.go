// Package postgres reads sensor aggregates and raw readings from, and writes
// raw readings to, the power_readings table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rshade/greenreport/internal/carbon"
	"github.com/rshade/greenreport/internal/engine"
	"github.com/rshade/greenreport/internal/logging"
	"github.com/rshade/greenreport/internal/metrics"
)

// daysPerMonth sizes the look-back window: months are counted as 30 days.
const daysPerMonth = 30

// Config configures the connection pool.
type Config struct {
	URL             string
	MaxConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// querier is the subset of *pgxpool.Pool the store uses.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
	Ping(ctx context.Context) error
}

// Store serves daily, monthly and per-device aggregates.
type Store struct {
	db   querier
	pool *pgxpool.Pool
	now  func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces time.Now when computing the look-back window.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// Open creates a pool from cfg and verifies it with a ping.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("postgres: database url is empty")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := New(pool, opts...)
	s.pool = pool
	return s, nil
}

// New wraps an existing connection or pool.
func New(db querier, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MonitorConnections publishes pool statistics every interval until ctx is
// done. It returns immediately when the store was not opened with Open.
func (s *Store) MonitorConnections(ctx context.Context, interval time.Duration) {
	if s.pool == nil {
		return
	}
	log := logging.FromContext(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.pool.Stat()
			metrics.DBActiveConnections.Set(float64(stats.AcquiredConns()))
			metrics.DBIdleConnections.Set(float64(stats.IdleConns()))
			log.Debug().
				Str("component", "postgres").
				Int32("acquired", stats.AcquiredConns()).
				Int32("idle", stats.IdleConns()).
				Int32("max", stats.MaxConns()).
				Msg("database connection stats")
		}
	}
}

// Close releases the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	defer metrics.ObserveDBQuery("ping", time.Now())
	return s.db.Ping(ctx)
}

// Migrate creates the readings table and its index when missing.
func (s *Store) Migrate(ctx context.Context) error {
	defer metrics.ObserveDBQuery("migrate", time.Now())
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// windowStart is the first day included in a months look-back.
func (s *Store) windowStart(months int) time.Time {
	now := s.now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -months*daysPerMonth)
}

// DailySummaries returns one aggregate per calendar day in the window,
// oldest first.
func (s *Store) DailySummaries(ctx context.Context, months int) ([]carbon.DailyAggregate, error) {
	defer metrics.ObserveDBQuery("daily_summaries", time.Now())

	rows, err := s.db.Query(ctx, dailySQL, s.windowStart(months))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily summaries: %w", err)
	}
	out, err := collect(rows, scanDaily)
	if err != nil {
		return nil, fmt.Errorf("daily summaries: %w", err)
	}
	logging.FromContext(ctx).Info().Ctx(ctx).
		Str("component", "postgres").
		Int("months", months).
		Int("rows", len(out)).
		Msg("generated daily summaries")
	return out, nil
}

// MonthlySummaries returns one aggregate per calendar month in the window.
func (s *Store) MonthlySummaries(ctx context.Context, months int) ([]carbon.MonthlyAggregate, error) {
	defer metrics.ObserveDBQuery("monthly_summaries", time.Now())

	rows, err := s.db.Query(ctx, monthlySQL, s.windowStart(months))
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly summaries: %w", err)
	}
	out, err := collect(rows, scanMonthly)
	if err != nil {
		return nil, fmt.Errorf("monthly summaries: %w", err)
	}
	return out, nil
}

// DeviceStatistics returns per-device figures, highest total first.
func (s *Store) DeviceStatistics(ctx context.Context, months int) ([]carbon.DeviceStats, error) {
	defer metrics.ObserveDBQuery("device_statistics", time.Now())

	rows, err := s.db.Query(ctx, deviceSQL, s.windowStart(months))
	if err != nil {
		return nil, fmt.Errorf("failed to query device statistics: %w", err)
	}
	out, err := collect(rows, scanDevice)
	if err != nil {
		return nil, fmt.Errorf("device statistics: %w", err)
	}
	return out, nil
}

// defaultReadingLimit caps Readings when the query sets no limit.
const defaultReadingLimit = 10000

// Readings returns raw readings of q's range, oldest first. A zero Stop
// means now.
func (s *Store) Readings(ctx context.Context, q engine.ReadingQuery) ([]carbon.Reading, error) {
	defer metrics.ObserveDBQuery("readings", time.Now())

	stop := q.Stop
	if stop.IsZero() {
		stop = s.now()
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultReadingLimit
	}
	order := "ASC"
	if q.Newest {
		order = "DESC"
	}

	rows, err := s.db.Query(ctx, fmt.Sprintf(readingsSQL, order), q.Start.UTC(), stop.UTC(), q.DeviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	out, err := collect(rows, scanReading)
	if err != nil {
		return nil, fmt.Errorf("readings: %w", err)
	}
	if q.Newest {
		slices.Reverse(out)
	}
	return out, nil
}

// readingColumns is the COPY column order of InsertReadings.
var readingColumns = []string{ //nolint:gochecknoglobals // Fixed column list.
	"timestamp", "device_code", "temperature", "humidity", "brightness", "electric",
}

// WriteReadings bulk-inserts raw readings with COPY.
func (s *Store) WriteReadings(ctx context.Context, readings []carbon.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	defer metrics.ObserveDBQuery("insert_readings", time.Now())

	n, err := s.db.CopyFrom(ctx, pgx.Identifier{"power_readings"}, readingColumns,
		pgx.CopyFromSlice(len(readings), func(i int) ([]any, error) {
			r := readings[i]
			return []any{r.Timestamp, r.DeviceID, r.Temperature, r.Humidity, r.Brightness, r.ElectricMA}, nil
		}))
	if err != nil {
		return fmt.Errorf("failed to insert readings: %w", err)
	}
	logging.FromContext(ctx).Debug().Ctx(ctx).
		Str("component", "postgres").
		Int64("rows", n).
		Msg("inserted readings")
	return nil
}
