package carbon

import "time"

// Reading is a single sensor measurement as delivered by the transport layer.
// Optional attributes are nil when the sensor did not report them.
type Reading struct {
	Timestamp   time.Time `json:"timestamp"`
	DeviceID    string    `json:"device_id"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	Brightness  *float64  `json:"brightness,omitempty"`
	ElectricMA  *float64  `json:"electric,omitempty"`
}

// PowerSample is an instantaneous power value derived from a Reading.
type PowerSample struct {
	Timestamp time.Time `json:"timestamp"`
	Watts     float64   `json:"power_watts"`
}

// EnergyRecord is the energy consumed over a period.
type EnergyRecord struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	EnergyKWh   float64   `json:"energy_kwh"`
}

// Hours returns the duration of the record in hours.
func (r EnergyRecord) Hours() float64 {
	return r.PeriodEnd.Sub(r.PeriodStart).Hours()
}

// DailyAggregate is one row of the daily summary produced by the storage layer.
type DailyAggregate struct {
	Date time.Time `json:"date"`

	AvgTemp *float64 `json:"avg_temp,omitempty"`
	MinTemp *float64 `json:"min_temp,omitempty"`
	MaxTemp *float64 `json:"max_temp,omitempty"`

	AvgHumidity *float64 `json:"avg_humidity,omitempty"`
	MinHumidity *float64 `json:"min_humidity,omitempty"`
	MaxHumidity *float64 `json:"max_humidity,omitempty"`

	AvgBrightness *float64 `json:"avg_brightness,omitempty"`
	MinBrightness *float64 `json:"min_brightness,omitempty"`
	MaxBrightness *float64 `json:"max_brightness,omitempty"`

	AvgElectric   *float64 `json:"avg_electric,omitempty"`
	MinElectric   *float64 `json:"min_electric,omitempty"`
	MaxElectric   *float64 `json:"max_electric,omitempty"`
	TotalElectric *float64 `json:"total_electric,omitempty"`

	ReadingCount *int `json:"reading_count,omitempty"`
}

// MonthlyAggregate is one row of the monthly summary produced by the storage layer.
type MonthlyAggregate struct {
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	YearMonth string `json:"year_month"`

	AvgTemp       *float64 `json:"avg_temp,omitempty"`
	AvgHumidity   *float64 `json:"avg_humidity,omitempty"`
	AvgBrightness *float64 `json:"avg_brightness,omitempty"`
	AvgElectric   *float64 `json:"avg_electric,omitempty"`
	TotalElectric *float64 `json:"total_electric,omitempty"`

	ReadingCount *int `json:"reading_count,omitempty"`

	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// DeviceStats summarizes the readings reported by one device.
type DeviceStats struct {
	DeviceCode    string    `json:"device_code"`
	TotalReadings int       `json:"total_readings"`
	AvgPower      float64   `json:"avg_power"`
	TotalPower    float64   `json:"total_power"`
	FirstReading  time.Time `json:"first_reading"`
	LastReading   time.Time `json:"last_reading"`
	ActiveDays    int       `json:"active_days"`
}

// CarbonRecord is the carbon footprint of one period.
// CarbonKg is EnergyKWh * FactorUsed and CarbonG is CarbonKg * 1000.
type CarbonRecord struct {
	Period        string    `json:"period"`
	PeriodStart   time.Time `json:"period_start"`
	PeriodEnd     time.Time `json:"period_end"`
	AvgPowerWatts float64   `json:"avg_power_watts"`
	EnergyKWh     float64   `json:"energy_kwh"`
	FactorUsed    float64   `json:"carbon_factor_used"`
	FactorSource  string    `json:"carbon_factor_source"`
	CarbonKg      float64   `json:"carbon_kg"`
	CarbonG       float64   `json:"carbon_g"`
}

// ReadingEmission pairs a raw reading with its derived power and carbon.
type ReadingEmission struct {
	Reading Reading      `json:"reading"`
	Carbon  CarbonRecord `json:"carbon"`
}

// DailyEmission pairs a daily aggregate with its carbon figures.
type DailyEmission struct {
	Aggregate DailyAggregate `json:"aggregate"`
	Carbon    CarbonRecord   `json:"carbon"`
}

// MonthlyEmission pairs a monthly aggregate with its carbon figures.
type MonthlyEmission struct {
	Aggregate MonthlyAggregate `json:"aggregate"`
	Carbon    CarbonRecord     `json:"carbon"`
}

// Float returns a pointer to v. It keeps optional-field literals short.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}
