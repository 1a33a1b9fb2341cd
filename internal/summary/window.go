package summary

import (
	"slices"
	"time"

	"github.com/rshade/greenreport/internal/carbon"
	"github.com/rshade/greenreport/internal/trend"
)

// HourlyPoint is the energy and carbon of the readings in one clock hour.
type HourlyPoint struct {
	Hour           time.Time `json:"hour"`
	Readings       int       `json:"readings"`
	AvgPowerWatts  float64   `json:"avg_power_watts"`
	MaxPowerWatts  float64   `json:"max_power_watts"`
	EnergyKWh      float64   `json:"energy_kwh"`
	CarbonKg       float64   `json:"carbon_kg"`
	AvgTemperature *float64  `json:"avg_temperature,omitempty"`
	AvgHumidity    *float64  `json:"avg_humidity,omitempty"`
}

// HourlyTrend is the hour-by-hour view of a trailing window. Hours without
// readings are absent from Data, not zero.
type HourlyTrend struct {
	TimeRange  string        `json:"time_range"`
	Start      time.Time     `json:"start"`
	Stop       time.Time     `json:"stop"`
	Data       []HourlyPoint `json:"data"`
	TotalHours int           `json:"total_hours"`
	Energy     trend.Stats   `json:"energy_trend"`
	Carbon     *CarbonTrends `json:"carbon_trend,omitempty"`
}

// WindowSummary totals the readings of a trailing window.
type WindowSummary struct {
	TimeRange     string                `json:"time_range"`
	Start         time.Time             `json:"start"`
	Stop          time.Time             `json:"stop"`
	DeviceID      string                `json:"device_id,omitempty"`
	TotalReadings int                   `json:"total_readings"`
	Devices       int                   `json:"devices"`
	AvgPowerWatts float64               `json:"avg_power_watts"`
	MaxPowerWatts float64               `json:"max_power_watts"`
	EnergyKWh     float64               `json:"total_energy_kwh"`
	CarbonKg      float64               `json:"total_carbon_kg"`
	Environment   EnvironmentalAverages `json:"environmental_averages"`
	Factor        Factor                `json:"emission_factor"`
	FirstReading  *time.Time            `json:"first_reading,omitempty"`
	LastReading   *time.Time            `json:"last_reading,omitempty"`
}

// Hourly groups rows by the UTC hour of their reading, oldest hour first.
// Rows without a timestamp are skipped.
func Hourly(rows []carbon.ReadingEmission) []HourlyPoint {
	type acc struct {
		point       HourlyPoint
		power       float64
		temperature presentMean
		humidity    presentMean
	}
	var (
		order   []time.Time
		buckets = make(map[time.Time]*acc)
	)
	for _, row := range rows {
		if row.Reading.Timestamp.IsZero() {
			continue
		}
		hour := row.Reading.Timestamp.UTC().Truncate(time.Hour)
		b, ok := buckets[hour]
		if !ok {
			b = &acc{point: HourlyPoint{Hour: hour}}
			buckets[hour] = b
			order = append(order, hour)
		}
		b.point.Readings++
		b.power += row.Carbon.AvgPowerWatts
		b.point.MaxPowerWatts = max(b.point.MaxPowerWatts, row.Carbon.AvgPowerWatts)
		b.point.EnergyKWh += row.Carbon.EnergyKWh
		b.point.CarbonKg += row.Carbon.CarbonKg
		b.temperature.add(row.Reading.Temperature)
		b.humidity.add(row.Reading.Humidity)
	}

	slices.SortFunc(order, time.Time.Compare)
	out := make([]HourlyPoint, len(order))
	for i, hour := range order {
		b := buckets[hour]
		b.point.AvgPowerWatts = mean(b.power, b.point.Readings)
		b.point.AvgTemperature = b.temperature.pointer()
		b.point.AvgHumidity = b.humidity.pointer()
		out[i] = b.point
	}
	return out
}

// BuildHourlyTrend buckets rows by hour and runs trend analysis over the
// hourly energy and carbon.
func BuildHourlyTrend(
	rows []carbon.ReadingEmission,
	timeRange string,
	start, stop time.Time,
	factor carbon.EmissionFactor,
) HourlyTrend {
	points := Hourly(rows)
	energy := make([]float64, len(points))
	records := make([]carbon.CarbonRecord, len(points))
	for i, p := range points {
		energy[i] = p.EnergyKWh
		records[i] = carbon.CarbonRecord{EnergyKWh: p.EnergyKWh, CarbonKg: p.CarbonKg}
	}
	return HourlyTrend{
		TimeRange:  timeRange,
		Start:      start,
		Stop:       stop,
		Data:       points,
		TotalHours: len(points),
		Energy:     trend.Analyze(energy, "hourly"),
		Carbon:     AnalyzeCarbon(records, "hourly", factor),
	}
}

// BuildWindowSummary totals rows. An empty window yields zero figures.
func BuildWindowSummary(
	rows []carbon.ReadingEmission,
	timeRange string,
	start, stop time.Time,
	factor carbon.EmissionFactor,
) WindowSummary {
	ws := WindowSummary{
		TimeRange:     timeRange,
		Start:         start,
		Stop:          stop,
		TotalReadings: len(rows),
		Factor:        FactorOf(factor),
	}

	var (
		power                             float64
		temperature, humidity, brightness presentMean
		devices                           = make(map[string]struct{})
	)
	for _, row := range rows {
		power += row.Carbon.AvgPowerWatts
		ws.MaxPowerWatts = max(ws.MaxPowerWatts, row.Carbon.AvgPowerWatts)
		ws.EnergyKWh += row.Carbon.EnergyKWh
		ws.CarbonKg += row.Carbon.CarbonKg
		temperature.add(row.Reading.Temperature)
		humidity.add(row.Reading.Humidity)
		brightness.add(row.Reading.Brightness)
		devices[row.Reading.DeviceID] = struct{}{}

		if ts := row.Reading.Timestamp; !ts.IsZero() {
			if ws.FirstReading == nil || ts.Before(*ws.FirstReading) {
				ws.FirstReading = &ts
			}
			if ws.LastReading == nil || ts.After(*ws.LastReading) {
				ws.LastReading = &ts
			}
		}
	}
	ws.Devices = len(devices)
	ws.AvgPowerWatts = mean(power, len(rows))
	ws.Environment = EnvironmentalAverages{
		Temperature: temperature.value(),
		Humidity:    humidity.value(),
		Brightness:  brightness.value(),
	}
	return ws
}

func (m *presentMean) pointer() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.value()
	return &v
}
