// Package summary reduces per-period carbon figures into the compact numeric
// documents used for prompting the model and for the data summary endpoint.
package summary

import (
	"math"
	"sort"
	"time"

	"github.com/rshade/greenreport/internal/carbon"
	"github.com/rshade/greenreport/internal/trend"
)

const (
	dateLayout = "2006-01-02"

	// RecentWindowDays is the length of each window in the recent-trend comparison.
	RecentWindowDays = 7

	// MinDaysForRecentTrend is the number of daily periods needed for a recent-trend block.
	MinDaysForRecentTrend = 2 * RecentWindowDays
)

// AnalysisPeriod bounds the daily records covered by a summary.
type AnalysisPeriod struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	TotalDays int    `json:"total_days"`
}

// PowerConsumption holds daily energy statistics in kWh.
type PowerConsumption struct {
	TotalKWh        float64 `json:"total_kwh"`
	AverageDailyKWh float64 `json:"average_daily_kwh"`
	PeakDailyKWh    float64 `json:"peak_daily_kwh"`
	MinDailyKWh     float64 `json:"min_daily_kwh"`
}

// CarbonEmissions holds daily carbon statistics in kgCO2.
type CarbonEmissions struct {
	TotalKgCO2        float64 `json:"total_kg_co2"`
	AverageDailyKgCO2 float64 `json:"average_daily_kg_co2"`
	PeakDailyKgCO2    float64 `json:"peak_daily_kg_co2"`
}

// Range is a closed min/max interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// EnvironmentalFactors holds sensor environment averages across the period.
type EnvironmentalFactors struct {
	AvgTemperature float64 `json:"avg_temperature"`
	AvgHumidity    float64 `json:"avg_humidity"`
	AvgBrightness  float64 `json:"avg_brightness"`
	TempRange      Range   `json:"temp_range"`
}

// MonthlyPoint is one month of the monthly trend block.
type MonthlyPoint struct {
	YearMonth   string   `json:"year_month"`
	AvgElectric *float64 `json:"avg_electric,omitempty"`
	EnergyKWh   float64  `json:"monthly_energy_kwh"`
	CarbonKg    float64  `json:"monthly_carbon_kg"`
}

// MonthlyTrends lists the monthly figures of the period.
type MonthlyTrends struct {
	MonthsAnalyzed  int            `json:"months_analyzed"`
	MonthlyAverages []MonthlyPoint `json:"monthly_averages"`
}

// RecentTrends compares the mean daily energy of the last RecentWindowDays
// days with the window before it. ChangePercent is nil and ChangeUndefined
// true when the previous mean is zero.
type RecentTrends struct {
	RecentAvgKWh    float64  `json:"recent_avg_kwh"`
	PreviousAvgKWh  float64  `json:"previous_avg_kwh"`
	ChangePercent   *float64 `json:"change_percent"`
	ChangeUndefined bool     `json:"change_undefined,omitempty"`
}

// Factor identifies the emission factor behind a summary.
type Factor struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Source string  `json:"source"`
	Unit   string  `json:"unit"`
}

// ReportSummary is the numeric input of report generation.
type ReportSummary struct {
	AnalysisPeriod       AnalysisPeriod       `json:"analysis_period"`
	PowerConsumption     PowerConsumption     `json:"power_consumption"`
	CarbonEmissions      CarbonEmissions      `json:"carbon_emissions"`
	EnvironmentalFactors EnvironmentalFactors `json:"environmental_factors"`
	Factor               Factor               `json:"emission_factor"`
	MonthlyTrends        *MonthlyTrends       `json:"monthly_trends,omitempty"`
	RecentTrends         *RecentTrends        `json:"recent_trends,omitempty"`
}

// Summarize reduces daily and monthly emissions into a ReportSummary.
// Days are ordered by date before windows are taken. Environmental averages
// only consider rows reporting the attribute and are zero when none do.
func Summarize(days []carbon.DailyEmission, months []carbon.MonthlyEmission, factor carbon.EmissionFactor) ReportSummary {
	ordered := sortedDays(days)

	s := ReportSummary{
		AnalysisPeriod: AnalysisPeriod{TotalDays: len(ordered)},
		Factor:         FactorOf(factor),
	}
	if len(ordered) > 0 {
		s.AnalysisPeriod.StartDate = ordered[0].Aggregate.Date.Format(dateLayout)
		s.AnalysisPeriod.EndDate = ordered[len(ordered)-1].Aggregate.Date.Format(dateLayout)
	}

	energy := make([]float64, len(ordered))
	emissions := make([]float64, len(ordered))
	for i, d := range ordered {
		energy[i] = d.Carbon.EnergyKWh
		emissions[i] = d.Carbon.CarbonKg
	}

	energyTotal, energyMin, energyMax := reduce(energy)
	s.PowerConsumption = PowerConsumption{
		TotalKWh:        energyTotal,
		AverageDailyKWh: mean(energyTotal, len(energy)),
		PeakDailyKWh:    energyMax,
		MinDailyKWh:     energyMin,
	}

	carbonTotal, _, carbonMax := reduce(emissions)
	s.CarbonEmissions = CarbonEmissions{
		TotalKgCO2:        carbonTotal,
		AverageDailyKgCO2: mean(carbonTotal, len(emissions)),
		PeakDailyKgCO2:    carbonMax,
	}

	s.EnvironmentalFactors = environmentalFactors(ordered)
	s.MonthlyTrends = monthlyTrends(months)
	s.RecentTrends = recentTrends(energy)
	return s
}

// FactorOf converts an emission factor into its summary form.
func FactorOf(f carbon.EmissionFactor) Factor {
	return Factor{Name: f.Name, Value: f.Value, Source: f.Source, Unit: carbon.FactorUnit}
}

func sortedDays(days []carbon.DailyEmission) []carbon.DailyEmission {
	ordered := make([]carbon.DailyEmission, len(days))
	copy(ordered, days)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Aggregate.Date.Before(ordered[j].Aggregate.Date)
	})
	return ordered
}

func environmentalFactors(days []carbon.DailyEmission) EnvironmentalFactors {
	var temp, humidity, brightness presentMean
	minTemp := presentExtreme{less: true}
	maxTemp := presentExtreme{}
	for _, d := range days {
		a := d.Aggregate
		temp.add(a.AvgTemp)
		humidity.add(a.AvgHumidity)
		brightness.add(a.AvgBrightness)
		minTemp.add(a.MinTemp)
		maxTemp.add(a.MaxTemp)
	}
	return EnvironmentalFactors{
		AvgTemperature: temp.value(),
		AvgHumidity:    humidity.value(),
		AvgBrightness:  brightness.value(),
		TempRange:      Range{Min: minTemp.value, Max: maxTemp.value},
	}
}

func monthlyTrends(months []carbon.MonthlyEmission) *MonthlyTrends {
	if len(months) == 0 {
		return nil
	}
	points := make([]MonthlyPoint, len(months))
	for i, m := range months {
		points[i] = MonthlyPoint{
			YearMonth:   m.Carbon.Period,
			AvgElectric: m.Aggregate.AvgElectric,
			EnergyKWh:   m.Carbon.EnergyKWh,
			CarbonKg:    m.Carbon.CarbonKg,
		}
	}
	return &MonthlyTrends{MonthsAnalyzed: len(months), MonthlyAverages: points}
}

func recentTrends(energy []float64) *RecentTrends {
	if len(energy) < MinDaysForRecentTrend {
		return nil
	}
	tail := energy[len(energy)-MinDaysForRecentTrend:]
	previousTotal, _, _ := reduce(tail[:RecentWindowDays])
	recentTotal, _, _ := reduce(tail[RecentWindowDays:])

	rt := &RecentTrends{
		RecentAvgKWh:   recentTotal / RecentWindowDays,
		PreviousAvgKWh: previousTotal / RecentWindowDays,
	}
	if rt.PreviousAvgKWh == 0 {
		rt.ChangeUndefined = true
		return rt
	}
	change := (rt.RecentAvgKWh - rt.PreviousAvgKWh) / rt.PreviousAvgKWh * 100
	rt.ChangePercent = &change
	return rt
}

func reduce(values []float64) (total, lo, hi float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		total += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return total, lo, hi
}

func mean(total float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// presentMean averages optional values, ignoring nil ones.
type presentMean struct {
	sum float64
	n   int
}

func (m *presentMean) add(v *float64) {
	if v == nil || math.IsNaN(*v) {
		return
	}
	m.sum += *v
	m.n++
}

func (m *presentMean) value() float64 {
	return mean(m.sum, m.n)
}

// presentExtreme tracks the minimum (less) or maximum of optional values.
type presentExtreme struct {
	less  bool
	seen  bool
	value float64
}

func (e *presentExtreme) add(v *float64) {
	if v == nil || math.IsNaN(*v) {
		return
	}
	if !e.seen || (e.less && *v < e.value) || (!e.less && *v > e.value) {
		e.value = *v
		e.seen = true
	}
}

// CarbonTrends are trend statistics over carbon figures annotated with the
// factor that produced them.
type CarbonTrends struct {
	trend.Stats
	EmissionFactorUsed float64 `json:"emission_factor_used"`
	FactorSource       string  `json:"emission_factor_source"`
}

// AnalyzeCarbon runs trend analysis over the CarbonKg of records. It returns
// nil when records is empty.
func AnalyzeCarbon(records []carbon.CarbonRecord, period string, factor carbon.EmissionFactor) *CarbonTrends {
	if len(records) == 0 {
		return nil
	}
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.CarbonKg
	}
	return &CarbonTrends{
		Stats:              trend.Analyze(values, period),
		EmissionFactorUsed: factor.Value,
		FactorSource:       factor.Source,
	}
}

// DailyCarbon extracts the carbon records of daily emissions in date order.
func DailyCarbon(days []carbon.DailyEmission) []carbon.CarbonRecord {
	ordered := sortedDays(days)
	out := make([]carbon.CarbonRecord, len(ordered))
	for i, d := range ordered {
		out[i] = d.Carbon
	}
	return out
}

// MonthlyCarbon extracts the carbon records of monthly emissions.
func MonthlyCarbon(months []carbon.MonthlyEmission) []carbon.CarbonRecord {
	out := make([]carbon.CarbonRecord, len(months))
	for i, m := range months {
		out[i] = m.Carbon
	}
	return out
}

// Availability describes how much data backs a data summary.
type Availability struct {
	DailyRecords   int    `json:"daily_records"`
	MonthlyRecords int    `json:"monthly_records"`
	DevicesTracked int    `json:"devices_tracked"`
	PeriodStart    string `json:"period_start,omitempty"`
	PeriodEnd      string `json:"period_end,omitempty"`
}

// PeakDay is the day with the highest energy consumption.
type PeakDay struct {
	Date          string   `json:"date"`
	EnergyKWh     float64  `json:"daily_energy_kwh"`
	CarbonKg      float64  `json:"daily_carbon_kg"`
	AvgPowerWatts float64  `json:"avg_power_watts"`
	TotalElectric *float64 `json:"total_electric,omitempty"`
}

// PowerStatistics holds the energy figures of a data summary.
type PowerStatistics struct {
	TotalEnergyKWh float64  `json:"total_energy_kwh"`
	AvgDailyKWh    float64  `json:"avg_daily_kwh"`
	PeakDay        *PeakDay `json:"peak_day,omitempty"`
}

// EnvironmentalAverages holds the averaged sensor environment.
type EnvironmentalAverages struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Brightness  float64 `json:"brightness"`
}

// DataSummary describes the data available for report generation.
type DataSummary struct {
	DataAvailability      Availability          `json:"data_availability"`
	PowerStatistics       PowerStatistics       `json:"power_statistics"`
	CarbonSummary         *CarbonTrends         `json:"carbon_summary,omitempty"`
	DeviceStatistics      []carbon.DeviceStats  `json:"device_statistics"`
	EnvironmentalAverages EnvironmentalAverages `json:"environmental_averages"`
	Timestamp             time.Time             `json:"timestamp"`
}

// BuildDataSummary assembles the data summary document. Empty inputs yield
// zeroed figures and a nil carbon summary.
func BuildDataSummary(
	days []carbon.DailyEmission,
	monthlyRecords int,
	devices []carbon.DeviceStats,
	factor carbon.EmissionFactor,
	now time.Time,
) DataSummary {
	rs := Summarize(days, nil, factor)
	if devices == nil {
		devices = []carbon.DeviceStats{}
	}

	ds := DataSummary{
		DataAvailability: Availability{
			DailyRecords:   len(days),
			MonthlyRecords: monthlyRecords,
			DevicesTracked: len(devices),
			PeriodStart:    rs.AnalysisPeriod.StartDate,
			PeriodEnd:      rs.AnalysisPeriod.EndDate,
		},
		PowerStatistics: PowerStatistics{
			TotalEnergyKWh: rs.PowerConsumption.TotalKWh,
			AvgDailyKWh:    rs.PowerConsumption.AverageDailyKWh,
			PeakDay:        peakDay(days),
		},
		CarbonSummary:    AnalyzeCarbon(DailyCarbon(days), "daily", factor),
		DeviceStatistics: devices,
		EnvironmentalAverages: EnvironmentalAverages{
			Temperature: rs.EnvironmentalFactors.AvgTemperature,
			Humidity:    rs.EnvironmentalFactors.AvgHumidity,
			Brightness:  rs.EnvironmentalFactors.AvgBrightness,
		},
		Timestamp: now,
	}
	return ds
}

func peakDay(days []carbon.DailyEmission) *PeakDay {
	if len(days) == 0 {
		return nil
	}
	best := days[0]
	for _, d := range days[1:] {
		if d.Carbon.EnergyKWh > best.Carbon.EnergyKWh {
			best = d
		}
	}
	return &PeakDay{
		Date:          best.Aggregate.Date.Format(dateLayout),
		EnergyKWh:     best.Carbon.EnergyKWh,
		CarbonKg:      best.Carbon.CarbonKg,
		AvgPowerWatts: best.Carbon.AvgPowerWatts,
		TotalElectric: best.Aggregate.TotalElectric,
	}
}
