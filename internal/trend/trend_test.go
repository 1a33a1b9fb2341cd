package trend

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name      string
		values    []float64
		want      Stats
		wantSlope *float64
		wantDir   *Direction
	}{
		{
			name:   "empty",
			values: nil,
			want:   Stats{Period: "daily"},
		},
		{
			name:   "single value",
			values: []float64{4},
			want: Stats{
				Period: "daily", Total: 4, Average: 4, Min: 4, Max: 4,
				Median: 4, P25: 4, P75: 4, Count: 1,
			},
		},
		{
			name:   "increasing series",
			values: []float64{1, 2, 3, 4},
			want: Stats{
				Period: "daily", Total: 10, Average: 2.5, Min: 1, Max: 4,
				Std: math.Sqrt(5.0 / 3.0), Median: 2.5, P25: 1.75, P75: 3.25, Count: 4,
			},
			wantSlope: ptr(1.0),
			wantDir:   ptr(Increasing),
		},
		{
			name:   "decreasing series with NaN",
			values: []float64{9, math.NaN(), 6, 3},
			want: Stats{
				Period: "daily", Total: 18, Average: 6, Min: 3, Max: 9,
				Std: 3, Median: 6, P25: 4.5, P75: 7.5, Count: 3,
			},
			wantSlope: ptr(-3.0),
			wantDir:   ptr(Decreasing),
		},
		{
			name:   "flat series",
			values: []float64{2, 2, 2},
			want: Stats{
				Period: "daily", Total: 6, Average: 2, Min: 2, Max: 2,
				Median: 2, P25: 2, P75: 2, Count: 3,
			},
			wantSlope: ptr(0.0),
			wantDir:   ptr(Stable),
		},
		{
			name:   "all NaN",
			values: []float64{math.NaN(), math.NaN()},
			want:   Stats{Period: "daily"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze(tt.values, "daily")

			assert.Equal(t, tt.want.Period, got.Period)
			assert.Equal(t, tt.want.Count, got.Count)
			assert.InDelta(t, tt.want.Total, got.Total, 1e-12)
			assert.InDelta(t, tt.want.Average, got.Average, 1e-12)
			assert.InDelta(t, tt.want.Min, got.Min, 1e-12)
			assert.InDelta(t, tt.want.Max, got.Max, 1e-12)
			assert.InDelta(t, tt.want.Std, got.Std, 1e-12)
			assert.InDelta(t, tt.want.Median, got.Median, 1e-12)
			assert.InDelta(t, tt.want.P25, got.P25, 1e-12)
			assert.InDelta(t, tt.want.P75, got.P75, 1e-12)

			if tt.wantSlope == nil {
				assert.Nil(t, got.Slope)
				assert.Nil(t, got.Direction)
				return
			}
			require.NotNil(t, got.Slope)
			require.NotNil(t, got.Direction)
			assert.InDelta(t, *tt.wantSlope, *got.Slope, 1e-12)
			assert.Equal(t, *tt.wantDir, *got.Direction)
		})
	}
}

func TestAnalyze_Invariants(t *testing.T) {
	series := [][]float64{
		{0.5, 0.1, 0.9, 0.3},
		{10, 10, 11},
		{-1, 5, 2, 8, 3},
	}
	for _, values := range series {
		s := Analyze(values, "monthly")
		assert.LessOrEqual(t, s.Min, s.P25)
		assert.LessOrEqual(t, s.P25, s.Median)
		assert.LessOrEqual(t, s.Median, s.P75)
		assert.LessOrEqual(t, s.P75, s.Max)
		assert.GreaterOrEqual(t, s.Std, 0.0)
		assert.InDelta(t, s.Total/float64(s.Count), s.Average, 1e-12)
	}
}

func TestAnalyze_DoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	_ = Analyze(in, "")
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestAnalyze_ConstantSeriesIsStable(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		n     int
	}{
		{"daily carbon over a week", 0.001434, 7},
		{"tenth over two weeks", 0.1, 14},
		{"tenth over a month", 0.1, 30},
		{"conversion example over two weeks", 0.00239, 14},
		{"quarter of days", 0.478, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := make([]float64, tt.n)
			for i := range values {
				values[i] = tt.value
			}
			s := Analyze(values, "daily")
			require.NotNil(t, s.Slope)
			assert.Zero(t, *s.Slope)
			assert.Equal(t, Stable, *s.Direction)
		})
	}
}

func TestSlope_MatchesLeastSquares(t *testing.T) {
	assert.InDelta(t, 0.5, Slope([]float64{1, 1.5, 2, 2.5}), 1e-12)
	assert.InDelta(t, -0.2, Slope([]float64{1, 0.8, 0.6}), 1e-12)
	assert.InDelta(t, 0.0, Slope([]float64{1, 2, 1}), 1e-12)
	assert.Zero(t, Slope([]float64{7}))
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}
	assert.InDelta(t, 10, Percentile(sorted, 0), 1e-12)
	assert.InDelta(t, 50, Percentile(sorted, 1), 1e-12)
	assert.InDelta(t, 30, Percentile(sorted, 0.5), 1e-12)
	assert.InDelta(t, 22, Percentile(sorted, 0.3), 1e-12)
	assert.InDelta(t, 0, Percentile(nil, 0.5), 1e-12)
}

func TestDirectionOf(t *testing.T) {
	assert.Equal(t, Increasing, DirectionOf(0.01))
	assert.Equal(t, Decreasing, DirectionOf(-0.01))
	assert.Equal(t, Stable, DirectionOf(0))
}

func ptr[T any](v T) *T { return &v }
