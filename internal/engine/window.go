package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rshade/greenreport/internal/carbon"
	"github.com/rshade/greenreport/internal/logging"
	"github.com/rshade/greenreport/internal/summary"
)

// ErrInvalidTimeRange indicates a trailing window name outside the accepted set.
var ErrInvalidTimeRange = errors.New("invalid time range")

// Trailing windows accepted by WindowSummary and HourlyTrend.
//
//nolint:gochecknoglobals // Fixed option lists.
var (
	SummaryRanges = []string{"1h", "6h", "24h", "7d", "30d"}
	TrendRanges   = []string{"24h", "7d", "30d"}
)

const (
	DefaultTimeRange = "24h"

	// DefaultRecentLimit is used when a RecentReadings limit is outside
	// 1..MaxRecentLimit.
	DefaultRecentLimit = 100
	MaxRecentLimit     = 1000

	// recentLookback bounds how far back RecentReadings searches.
	recentLookback = 30 * 24 * time.Hour
	// maxWindowReadings caps the readings loaded for one window.
	maxWindowReadings = 100000
)

// WindowQuery selects a trailing window of raw readings ending at Stop.
type WindowQuery struct {
	TimeRange string    `json:"time_range"`
	DeviceID  string    `json:"device_id,omitempty"`
	Stop      time.Time `json:"stop,omitempty"`
	// Factor is a registered factor name or a numeric kgCO2/kWh value.
	Factor string `json:"factor,omitempty"`
}

// ParseTimeRange returns the length of a window named like "6h" or "7d".
// An empty name selects DefaultTimeRange. Names outside allowed fail with
// ErrInvalidTimeRange.
func ParseTimeRange(name string, allowed []string) (time.Duration, error) {
	if name == "" {
		name = DefaultTimeRange
	}
	if !slices.Contains(allowed, name) {
		return 0, fmt.Errorf("%w %q (valid: %s)", ErrInvalidTimeRange, name, strings.Join(allowed, ", "))
	}
	n, err := strconv.Atoi(name[:len(name)-1])
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidTimeRange, name)
	}
	unit := time.Hour
	if strings.HasSuffix(name, "d") {
		unit = 24 * time.Hour
	}
	return time.Duration(n) * unit, nil
}

// window is a loaded trailing window.
type window struct {
	name        string
	start, stop time.Time
	eng         *carbon.Engine
	rows        []carbon.ReadingEmission
}

func (o *Orchestrator) loadWindow(ctx context.Context, q WindowQuery, allowed []string) (*window, error) {
	if o.readings == nil {
		return nil, fmt.Errorf("%w: reading source", ErrUnavailable)
	}
	length, err := ParseTimeRange(q.TimeRange, allowed)
	if err != nil {
		return nil, err
	}
	eng, err := o.engineFor(q.Factor)
	if err != nil {
		return nil, err
	}

	w := &window{name: q.TimeRange, stop: q.Stop, eng: eng}
	if w.name == "" {
		w.name = DefaultTimeRange
	}
	if w.stop.IsZero() {
		w.stop = o.now()
	}
	w.stop = w.stop.UTC()
	w.start = w.stop.Add(-length)

	readings, err := o.readings.Readings(ctx, ReadingQuery{
		DeviceID: q.DeviceID,
		Start:    w.start,
		Stop:     w.stop,
		Limit:    maxWindowReadings,
	})
	if err != nil {
		return nil, fmt.Errorf("loading readings: %w", err)
	}
	if w.rows, err = eng.ApplyReadings(ctx, withElectric(readings)); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Debug().Ctx(ctx).
		Str("component", "engine").
		Str("time_range", w.name).
		Int("readings", len(readings)).
		Int("with_electric", len(w.rows)).
		Msg("loaded reading window")
	return w, nil
}

// withElectric drops readings that carry no current, which cannot be
// converted to energy.
func withElectric(readings []carbon.Reading) []carbon.Reading {
	out := make([]carbon.Reading, 0, len(readings))
	for _, r := range readings {
		if r.ElectricMA != nil {
			out = append(out, r)
		}
	}
	return out
}

// WindowSummary totals power, energy and carbon over a trailing window of
// raw readings. An empty window is not an error.
func (o *Orchestrator) WindowSummary(ctx context.Context, q WindowQuery) (*summary.WindowSummary, error) {
	w, err := o.loadWindow(ctx, q, SummaryRanges)
	if err != nil {
		return nil, err
	}
	ws := summary.BuildWindowSummary(w.rows, w.name, w.start, w.stop, w.eng.Factor())
	ws.DeviceID = q.DeviceID
	return &ws, nil
}

// HourlyTrend buckets a trailing window of raw readings by hour and
// analyzes the trend of hourly energy and carbon.
func (o *Orchestrator) HourlyTrend(ctx context.Context, q WindowQuery) (*summary.HourlyTrend, error) {
	w, err := o.loadWindow(ctx, q, TrendRanges)
	if err != nil {
		return nil, err
	}
	ht := summary.BuildHourlyTrend(w.rows, w.name, w.start, w.stop, w.eng.Factor())
	return &ht, nil
}

// RecentReadings returns the carbon of the latest readings, newest first.
// A limit outside 1..MaxRecentLimit becomes DefaultRecentLimit.
func (o *Orchestrator) RecentReadings(
	ctx context.Context,
	limit int,
	deviceID, factor string,
) ([]carbon.ReadingEmission, error) {
	if o.readings == nil {
		return nil, fmt.Errorf("%w: reading source", ErrUnavailable)
	}
	if limit <= 0 || limit > MaxRecentLimit {
		limit = DefaultRecentLimit
	}
	eng, err := o.engineFor(factor)
	if err != nil {
		return nil, err
	}

	stop := o.now().UTC()
	readings, err := o.readings.Readings(ctx, ReadingQuery{
		DeviceID: deviceID,
		Start:    stop.Add(-recentLookback),
		Stop:     stop,
		Limit:    limit,
		Newest:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("loading readings: %w", err)
	}
	rows, err := eng.ApplyReadings(ctx, withElectric(readings))
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []carbon.ReadingEmission{}
	}
	slices.Reverse(rows)
	return rows, nil
}
