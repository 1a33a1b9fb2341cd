package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rshade/greenreport/internal/carbon"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS power_readings (
    id          BIGSERIAL PRIMARY KEY,
    timestamp   TIMESTAMPTZ NOT NULL,
    device_code TEXT NOT NULL,
    temperature DOUBLE PRECISION,
    humidity    DOUBLE PRECISION,
    brightness  DOUBLE PRECISION,
    electric    DOUBLE PRECISION,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS power_readings_timestamp_idx ON power_readings (timestamp);`

const dailySQL = `
SELECT
    timestamp::date                AS date,
    AVG(temperature)::float8       AS avg_temp,
    MIN(temperature)::float8       AS min_temp,
    MAX(temperature)::float8       AS max_temp,
    AVG(humidity)::float8          AS avg_humidity,
    MIN(humidity)::float8          AS min_humidity,
    MAX(humidity)::float8          AS max_humidity,
    AVG(brightness)::float8        AS avg_brightness,
    MIN(brightness)::float8        AS min_brightness,
    MAX(brightness)::float8        AS max_brightness,
    AVG(electric)::float8          AS avg_electric,
    MIN(electric)::float8          AS min_electric,
    MAX(electric)::float8          AS max_electric,
    SUM(electric)::float8          AS total_electric,
    COUNT(*)                       AS reading_count
FROM power_readings
WHERE timestamp >= $1
GROUP BY timestamp::date
ORDER BY date ASC`

const monthlySQL = `
SELECT
    EXTRACT(YEAR FROM timestamp)::int  AS year,
    EXTRACT(MONTH FROM timestamp)::int AS month,
    to_char(timestamp, 'YYYY-MM')      AS year_month,
    AVG(temperature)::float8           AS avg_temp,
    AVG(humidity)::float8              AS avg_humidity,
    AVG(brightness)::float8            AS avg_brightness,
    AVG(electric)::float8              AS avg_electric,
    SUM(electric)::float8              AS total_electric,
    COUNT(*)                           AS reading_count,
    MIN(timestamp)                     AS period_start,
    MAX(timestamp)                     AS period_end
FROM power_readings
WHERE timestamp >= $1
GROUP BY 1, 2, 3
ORDER BY year, month ASC`

const deviceSQL = `
SELECT
    device_code,
    COUNT(*)                                            AS total_readings,
    COALESCE(AVG(electric), 0)::float8                  AS avg_power,
    COALESCE(SUM(electric), 0)::float8                  AS total_power,
    MIN(timestamp)                                      AS first_reading,
    MAX(timestamp)                                      AS last_reading,
    (MAX(timestamp)::date - MIN(timestamp)::date) + 1   AS active_days
FROM power_readings
WHERE timestamp >= $1
GROUP BY device_code
ORDER BY total_power DESC`

// readingsSQL selects raw readings in a half-open range. %s is the sort
// direction, fixed by Readings.
const readingsSQL = `
SELECT timestamp, device_code, temperature, humidity, brightness, electric
FROM power_readings
WHERE timestamp >= $1 AND timestamp < $2
  AND ($3::text = '' OR device_code = $3::text)
ORDER BY timestamp %s
LIMIT $4`

// rowScanner is the part of pgx.Rows a scan function needs.
type rowScanner interface {
	Scan(dest ...any) error
}

func collect[T any](rows pgx.Rows, scan func(rowScanner) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

func scanDaily(row rowScanner) (carbon.DailyAggregate, error) {
	var (
		d     carbon.DailyAggregate
		count int64
	)
	err := row.Scan(
		&d.Date,
		&d.AvgTemp, &d.MinTemp, &d.MaxTemp,
		&d.AvgHumidity, &d.MinHumidity, &d.MaxHumidity,
		&d.AvgBrightness, &d.MinBrightness, &d.MaxBrightness,
		&d.AvgElectric, &d.MinElectric, &d.MaxElectric, &d.TotalElectric,
		&count,
	)
	if err != nil {
		return d, err
	}
	d.ReadingCount = carbon.Int(int(count))
	return d, nil
}

func scanMonthly(row rowScanner) (carbon.MonthlyAggregate, error) {
	var (
		m     carbon.MonthlyAggregate
		count int64
		start time.Time
		end   time.Time
	)
	err := row.Scan(
		&m.Year, &m.Month, &m.YearMonth,
		&m.AvgTemp, &m.AvgHumidity, &m.AvgBrightness,
		&m.AvgElectric, &m.TotalElectric,
		&count, &start, &end,
	)
	if err != nil {
		return m, err
	}
	m.ReadingCount = carbon.Int(int(count))
	m.PeriodStart, m.PeriodEnd = start.UTC(), end.UTC()
	return m, nil
}

func scanDevice(row rowScanner) (carbon.DeviceStats, error) {
	var (
		d        carbon.DeviceStats
		readings int64
		days     int32
	)
	err := row.Scan(&d.DeviceCode, &readings, &d.AvgPower, &d.TotalPower, &d.FirstReading, &d.LastReading, &days)
	if err != nil {
		return d, err
	}
	d.TotalReadings = int(readings)
	d.ActiveDays = int(days)
	return d, nil
}

func scanReading(row rowScanner) (carbon.Reading, error) {
	var r carbon.Reading
	err := row.Scan(&r.Timestamp, &r.DeviceID, &r.Temperature, &r.Humidity, &r.Brightness, &r.ElectricMA)
	if err != nil {
		return r, err
	}
	r.Timestamp = r.Timestamp.UTC()
	return r, nil
}
