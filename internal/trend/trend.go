// Package trend computes descriptive statistics and a linear trend over a
// series of period values.
package trend

import (
	"math"
	"sort"
)

// Direction is the sign of a fitted trend line.
type Direction string

// Trend directions.
const (
	Increasing Direction = "increasing"
	Decreasing Direction = "decreasing"
	Stable     Direction = "stable"
)

// Stats summarizes a series. Slope and Direction are nil unless the series
// has at least two values.
type Stats struct {
	Period    string     `json:"period"`
	Total     float64    `json:"total"`
	Average   float64    `json:"average"`
	Min       float64    `json:"min"`
	Max       float64    `json:"max"`
	Std       float64    `json:"std"`
	Median    float64    `json:"median"`
	P25       float64    `json:"p25"`
	P75       float64    `json:"p75"`
	Count     int        `json:"count"`
	Slope     *float64   `json:"slope,omitempty"`
	Direction *Direction `json:"direction,omitempty"`
}

// Analyze computes Stats over values in series order. NaN entries are
// treated as missing and dropped. An empty series yields zero Stats.
func Analyze(values []float64, period string) Stats {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}

	stats := Stats{Period: period, Count: len(clean)}
	if len(clean) == 0 {
		return stats
	}

	stats.Min, stats.Max = clean[0], clean[0]
	for _, v := range clean {
		stats.Total += v
		stats.Min = math.Min(stats.Min, v)
		stats.Max = math.Max(stats.Max, v)
	}
	stats.Average = stats.Total / float64(len(clean))
	stats.Std = sampleStd(clean, stats.Average)

	sorted := make([]float64, len(clean))
	copy(sorted, clean)
	sort.Float64s(sorted)
	stats.Median = Percentile(sorted, 0.5)
	stats.P25 = Percentile(sorted, 0.25)
	stats.P75 = Percentile(sorted, 0.75)

	if len(clean) > 1 {
		slope := Slope(clean)
		dir := DirectionOf(slope)
		stats.Slope = &slope
		stats.Direction = &dir
	}
	return stats
}

// Percentile returns the q-quantile (0 <= q <= 1) of sorted using linear
// interpolation between closest ranks. sorted must be in ascending order.
func Percentile(sorted []float64, q float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}
	q = math.Max(0, math.Min(1, q))
	rank := q * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

// Slope fits y = a*x + b by least squares with x the series index and
// returns a. Series shorter than two values and constant series have slope
// exactly 0. Centered sums keep rounding from producing a tiny nonzero slope
// for flat data.
func Slope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	var sumY float64
	constant := true
	for _, y := range values {
		sumY += y
		constant = constant && y == values[0]
	}
	if constant {
		return 0
	}
	meanX := float64(n-1) / 2
	meanY := sumY / float64(n)
	var sxy, sxx float64
	for i, y := range values {
		dx := float64(i) - meanX
		sxy += dx * (y - meanY)
		sxx += dx * dx
	}
	return sxy / sxx
}

// DirectionOf maps a slope to its Direction.
func DirectionOf(slope float64) Direction {
	switch {
	case slope > 0:
		return Increasing
	case slope < 0:
		return Decreasing
	default:
		return Stable
	}
}

func sampleStd(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}
