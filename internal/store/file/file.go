// Package file serves sensor data from a JSON fixture for offline runs.
//
// The fixture has the shape
//
//	{"daily": [...], "monthly": [...], "devices": [...], "readings": [...]}
//
// with each element in the JSON form of the matching carbon type. The
// months window is not applied: a fixture is returned as recorded.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/rshade/greenreport/internal/carbon"
	"github.com/rshade/greenreport/internal/engine"
)

// Fixture is the decoded fixture document.
type Fixture struct {
	Daily    []carbon.DailyAggregate   `json:"daily"`
	Monthly  []carbon.MonthlyAggregate `json:"monthly"`
	Devices  []carbon.DeviceStats      `json:"devices"`
	Readings []carbon.Reading          `json:"readings"`
}

// Source serves a Fixture. It is read-only after Load.
type Source struct {
	path string
	data Fixture
}

// Load reads and decodes the fixture at path.
func Load(path string) (*Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture %s: %w", path, err)
	}
	var f Fixture
	if err = json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing fixture %s: %w", path, err)
	}
	return &Source{path: path, data: f}, nil
}

// New serves an in-memory fixture.
func New(f Fixture) *Source {
	return &Source{path: "memory", data: f}
}

// DailySummaries returns the fixture's daily aggregates.
func (s *Source) DailySummaries(ctx context.Context, _ int) ([]carbon.DailyAggregate, error) {
	return s.data.Daily, ctx.Err()
}

// MonthlySummaries returns the fixture's monthly aggregates.
func (s *Source) MonthlySummaries(ctx context.Context, _ int) ([]carbon.MonthlyAggregate, error) {
	return s.data.Monthly, ctx.Err()
}

// DeviceStatistics returns the fixture's device statistics.
func (s *Source) DeviceStatistics(ctx context.Context, _ int) ([]carbon.DeviceStats, error) {
	return s.data.Devices, ctx.Err()
}

// Ping always succeeds once the fixture is loaded.
func (s *Source) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Readings filters the fixture's raw readings by device and time range,
// oldest first. A zero Start or Stop leaves that side open.
func (s *Source) Readings(ctx context.Context, q engine.ReadingQuery) ([]carbon.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []carbon.Reading
	for _, r := range s.data.Readings {
		if q.DeviceID != "" && r.DeviceID != q.DeviceID {
			continue
		}
		if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
			continue
		}
		if !q.Stop.IsZero() && !r.Timestamp.Before(q.Stop) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if q.Limit > 0 && len(out) > q.Limit {
		if q.Newest {
			out = out[len(out)-q.Limit:]
		} else {
			out = out[:q.Limit]
		}
	}
	return out, nil
}

// String names the fixture.
func (s *Source) String() string {
	return "file:" + s.path
}
