package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/greenreport/internal/engine"
)

func TestLoad(t *testing.T) {
	src, err := Load(filepath.Join("testdata", "fixture.json"))
	require.NoError(t, err)
	ctx := context.Background()

	daily, err := src.DailySummaries(ctx, 3)
	require.NoError(t, err)
	require.Len(t, daily, 2)
	require.NotNil(t, daily[0].TotalElectric)
	assert.InDelta(t, 3600.0, *daily[0].TotalElectric, 1e-9)
	assert.Nil(t, daily[1].AvgHumidity)

	monthly, err := src.MonthlySummaries(ctx, 3)
	require.NoError(t, err)
	require.Len(t, monthly, 1)
	assert.Equal(t, 288, *monthly[0].ReadingCount)

	devices, err := src.DeviceStatistics(ctx, 3)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, 2, devices[0].ActiveDays)

	require.NoError(t, src.Ping(ctx))
	assert.Equal(t, "file:"+filepath.Join("testdata", "fixture.json"), src.String())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"daily": [`), 0600))
	_, err = Load(bad)
	require.Error(t, err)
}

func TestReadings(t *testing.T) {
	src, err := Load(filepath.Join("testdata", "fixture.json"))
	require.NoError(t, err)
	t0 := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		q     engine.ReadingQuery
		count int
	}{
		{"all", engine.ReadingQuery{}, 4},
		{"one device", engine.ReadingQuery{DeviceID: "dev-1"}, 3},
		{"range is half open", engine.ReadingQuery{DeviceID: "dev-1", Start: t0, Stop: t0.Add(20 * time.Minute)}, 2},
		{"limit", engine.ReadingQuery{DeviceID: "dev-1", Limit: 1}, 1},
		{"unknown device", engine.ReadingQuery{DeviceID: "dev-9"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := src.Readings(context.Background(), tt.q)
			require.NoError(t, err)
			assert.Len(t, out, tt.count)
			for i := 1; i < len(out); i++ {
				assert.False(t, out[i].Timestamp.Before(out[i-1].Timestamp))
			}
		})
	}
}

func TestReadings_NewestKeepsTail(t *testing.T) {
	src, err := Load(filepath.Join("testdata", "fixture.json"))
	require.NoError(t, err)

	out, err := src.Readings(context.Background(), engine.ReadingQuery{DeviceID: "dev-1", Limit: 2, Newest: true})
	require.NoError(t, err)
	require.Len(t, out, 2)
	all, err := src.Readings(context.Background(), engine.ReadingQuery{DeviceID: "dev-1"})
	require.NoError(t, err)
	assert.Equal(t, all[len(all)-2:], out)
}

func TestCanceledContext(t *testing.T) {
	src := New(Fixture{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.DailySummaries(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
	_, err = src.Readings(ctx, engine.ReadingQuery{})
	require.ErrorIs(t, err, context.Canceled)
}
