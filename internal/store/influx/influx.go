// Package influx reads raw sensor readings from InfluxDB and writes
// ingested readings to it.
package influx

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/rshade/greenreport/internal/carbon"
	"github.com/rshade/greenreport/internal/engine"
	"github.com/rshade/greenreport/internal/logging"
	"github.com/rshade/greenreport/internal/metrics"
)

// Field and tag names of the sensor measurement.
const (
	TagDevice        = "device_id"
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
	FieldBrightness  = "brightness"
	FieldElectric    = "electric"

	defaultMeasurement = "sensor_data"
	defaultLimit       = 10000
)

// Config locates the bucket holding sensor readings.
type Config struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
}

// Store queries and writes the sensor measurement.
type Store struct {
	client      influxdb2.Client
	query       api.QueryAPI
	write       api.WriteAPIBlocking
	bucket      string
	measurement string
}

// Open connects to InfluxDB. The connection is verified lazily.
func Open(cfg Config) (*Store, error) {
	if cfg.URL == "" || cfg.Bucket == "" {
		return nil, errors.New("influx: url and bucket are required")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	s := &Store{
		client:      client,
		query:       client.QueryAPI(cfg.Org),
		write:       client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		bucket:      cfg.Bucket,
		measurement: cfg.Measurement,
	}
	if s.measurement == "" {
		s.measurement = defaultMeasurement
	}
	return s, nil
}

// Close releases the client.
func (s *Store) Close() {
	s.client.Close()
}

// Ping checks the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influx ping: %w", err)
	}
	if !ok {
		return errors.New("influx ping: server not ready")
	}
	return nil
}

// Readings returns the readings selected by q, oldest first.
func (s *Store) Readings(ctx context.Context, q engine.ReadingQuery) ([]carbon.Reading, error) {
	defer metrics.ObserveDBQuery("influx_readings", time.Now())

	flux, err := buildFlux(s.bucket, s.measurement, q)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Debug().Ctx(ctx).
		Str("component", "influx").
		Str("query", flux).
		Msg("executing flux query")

	result, err := s.query.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("error querying InfluxDB: %w", err)
	}
	defer result.Close()

	var out []carbon.Reading
	for result.Next() {
		rec := result.Record()
		out = append(out, readingFromValues(rec.Time(), rec.Values()))
	}
	if err = result.Err(); err != nil {
		return nil, fmt.Errorf("error reading InfluxDB result: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// WriteReadings writes one point per reading.
func (s *Store) WriteReadings(ctx context.Context, readings []carbon.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	defer metrics.ObserveDBQuery("influx_write", time.Now())

	points := make([]*write.Point, 0, len(readings))
	for _, r := range readings {
		if p := pointFor(s.measurement, r); p != nil {
			points = append(points, p)
		}
	}
	if err := s.write.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("error writing to InfluxDB: %w", err)
	}
	return nil
}

func pointFor(measurement string, r carbon.Reading) *write.Point {
	fields := make(map[string]any, 4)
	for name, v := range map[string]*float64{
		FieldTemperature: r.Temperature,
		FieldHumidity:    r.Humidity,
		FieldBrightness:  r.Brightness,
		FieldElectric:    r.ElectricMA,
	} {
		if v != nil {
			fields[name] = *v
		}
	}
	if len(fields) == 0 {
		return nil
	}
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return influxdb2.NewPoint(measurement, map[string]string{TagDevice: r.DeviceID}, fields, ts)
}

// buildFlux renders the pivoted reading query. Device IDs are quoted so
// they cannot break out of the string literal.
func buildFlux(bucket, measurement string, q engine.ReadingQuery) (string, error) {
	if q.Start.IsZero() {
		return "", errors.New("influx: query start is required")
	}
	stop := q.Stop
	if stop.IsZero() {
		stop = time.Now()
	}
	if !stop.After(q.Start) {
		return "", fmt.Errorf("influx: stop %s is not after start %s", stop.Format(time.RFC3339), q.Start.Format(time.RFC3339))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %s)\n", quote(bucket))
	fmt.Fprintf(&b, "  |> range(start: %s, stop: %s)\n", q.Start.UTC().Format(time.RFC3339), stop.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r[\"_measurement\"] == %s)\n", quote(measurement))
	if q.DeviceID != "" {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r[%s] == %s)\n", quote(TagDevice), quote(q.DeviceID))
	}
	fmt.Fprintf(&b, "  |> pivot(rowKey: [\"_time\", %s], columnKey: [\"_field\"], valueColumn: \"_value\")\n", quote(TagDevice))
	b.WriteString("  |> group()\n")
	if q.Newest {
		b.WriteString("  |> sort(columns: [\"_time\"], desc: true)\n")
	} else {
		b.WriteString("  |> sort(columns: [\"_time\"])\n")
	}
	fmt.Fprintf(&b, "  |> limit(n: %d)", limit)
	return b.String(), nil
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

// readingFromValues maps a pivoted record onto a Reading. Fields absent
// from the record stay nil.
func readingFromValues(ts time.Time, values map[string]any) carbon.Reading {
	r := carbon.Reading{Timestamp: ts.UTC()}
	if id, ok := values[TagDevice].(string); ok {
		r.DeviceID = id
	}
	r.Temperature = number(values[FieldTemperature])
	r.Humidity = number(values[FieldHumidity])
	r.Brightness = number(values[FieldBrightness])
	r.ElectricMA = number(values[FieldElectric])
	return r
}

func number(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case int64:
		f := float64(n)
		return &f
	case uint64:
		f := float64(n)
		return &f
	default:
		return nil
	}
}
