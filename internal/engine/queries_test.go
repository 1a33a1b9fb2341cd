package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rshade/greenreport/internal/carbon"
)

func TestDataSummary(t *testing.T) {
	src := loadedSource()
	src.On("DeviceStatistics", mock.Anything, 3).Return([]carbon.DeviceStats{{DeviceCode: "dev-1"}}, nil)
	o := newTestOrchestrator(t, src)

	ds, err := o.DataSummary(context.Background(), 0, "")
	require.NoError(t, err)
	assert.Equal(t, 3, ds.DataAvailability.DailyRecords)
	assert.Equal(t, 1, ds.DataAvailability.MonthlyRecords)
	assert.Equal(t, 1, ds.DataAvailability.DevicesTracked)
	assert.Equal(t, "2025-02-01", ds.DataAvailability.PeriodStart)
	assert.Equal(t, "2025-02-03", ds.DataAvailability.PeriodEnd)
	require.NotNil(t, ds.PowerStatistics.PeakDay)
	assert.Equal(t, "2025-02-02", ds.PowerStatistics.PeakDay.Date)
	require.NotNil(t, ds.CarbonSummary)
	assert.Equal(t, fixedNow, ds.Timestamp)
}

func TestDataSummary_Empty(t *testing.T) {
	src := &mockSource{}
	src.On("DailySummaries", mock.Anything, 1).Return(nil, nil)
	src.On("MonthlySummaries", mock.Anything, 1).Return(nil, nil)
	src.On("DeviceStatistics", mock.Anything, 1).Return(nil, nil)
	o := newTestOrchestrator(t, src)

	ds, err := o.DataSummary(context.Background(), 1, "")
	require.NoError(t, err)
	assert.Zero(t, ds.DataAvailability.DailyRecords)
	assert.Nil(t, ds.CarbonSummary)
	assert.Nil(t, ds.PowerStatistics.PeakDay)
	assert.NotNil(t, ds.DeviceStatistics)
}

func TestFactors(t *testing.T) {
	o := newTestOrchestrator(t, &mockSource{})

	info, err := o.Factors("")
	require.NoError(t, err)
	assert.InDelta(t, 0.478, info.FactorValue, 1e-12)
	assert.Equal(t, carbon.FactorKoreaGrid, info.FactorSource)
	assert.Equal(t, carbon.FactorUnit, info.Unit)
	assert.Len(t, info.AvailableFactors, 6)

	info, err = o.Factors("coal")
	require.NoError(t, err)
	assert.InDelta(t, 0.82, info.FactorValue, 1e-12)

	_, err = o.Factors("peat")
	require.ErrorIs(t, err, carbon.ErrUnknownFactor)
}

func TestReadings(t *testing.T) {
	t0 := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	q := ReadingQuery{DeviceID: "dev-1", Start: t0, Stop: t0.Add(time.Hour)}

	t.Run("not configured", func(t *testing.T) {
		o := newTestOrchestrator(t, &mockSource{})
		_, err := o.Readings(context.Background(), q, "")
		require.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("no readings", func(t *testing.T) {
		rs := &mockReadings{}
		rs.On("Readings", mock.Anything, q).Return([]carbon.Reading{}, nil)
		o := newTestOrchestrator(t, &mockSource{}, WithReadingSource(rs))
		_, err := o.Readings(context.Background(), q, "")
		require.ErrorIs(t, err, ErrNoData)
	})

	t.Run("integrates series", func(t *testing.T) {
		rs := &mockReadings{}
		rs.On("Readings", mock.Anything, q).Return([]carbon.Reading{
			{Timestamp: t0, DeviceID: "dev-1", ElectricMA: carbon.Float(1000)},
			{Timestamp: t0.Add(30 * time.Minute), DeviceID: "dev-1", ElectricMA: carbon.Float(1000)},
		}, nil)
		o := newTestOrchestrator(t, &mockSource{}, WithReadingSource(rs))

		out, err := o.Readings(context.Background(), q, "")
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.InDelta(t, 0.0025, out[1].Carbon.EnergyKWh, 1e-12)
	})

	t.Run("source error", func(t *testing.T) {
		rs := &mockReadings{}
		rs.On("Readings", mock.Anything, q).Return(nil, errors.New("influx down"))
		o := newTestOrchestrator(t, &mockSource{}, WithReadingSource(rs))
		_, err := o.Readings(context.Background(), q, "")
		require.Error(t, err)
	})
}

func TestCheckComponents(t *testing.T) {
	t.Run("all operational", func(t *testing.T) {
		src := loadedSource()
		src.On("Ping", mock.Anything).Return(nil)
		model := &mockModel{}
		model.On("Ping", mock.Anything).Return(nil)
		o := newTestOrchestrator(t, src, WithModel(model))

		r := o.CheckComponents(context.Background())
		assert.True(t, r.Healthy())
		assert.Equal(t, StatusConnected, r.Database.Status)
		assert.True(t, r.Database.TestQuery)
		assert.Equal(t, 3, r.Database.SampleRecords)
		assert.Equal(t, "test-model", r.Model.Model)
		assert.Equal(t, StatusInitialized, r.Carbon.Status)
		src.AssertCalled(t, "DailySummaries", mock.Anything, 1)
	})

	t.Run("issues reported not returned", func(t *testing.T) {
		src := &mockSource{}
		src.On("Ping", mock.Anything).Return(errors.New("refused"))
		src.On("DailySummaries", mock.Anything, 1).Return(nil, errors.New("refused"))
		o := newTestOrchestrator(t, src)

		r := o.CheckComponents(context.Background())
		assert.False(t, r.Healthy())
		assert.Equal(t, OverallIssues, r.OverallStatus)
		assert.Equal(t, StatusDisconnected, r.Database.Status)
		assert.False(t, r.Database.TestQuery)
		assert.Equal(t, "refused", r.Database.QueryError)
		assert.Equal(t, StatusNotConfigured, r.Model.Status)
	})
}
