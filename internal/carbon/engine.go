// Package carbon converts electrical sensor readings into energy and carbon
// emission figures.
//
// Current readings (mA) become power (W) under an assumed supply voltage,
// power becomes energy (kWh) over the sampling interval, and energy becomes
// carbon (kgCO2) through an emission factor taken from an immutable
// FactorTable. The same conversion is applied to raw readings and to the daily
// and monthly aggregates produced by the storage layer.
package carbon

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rshade/greenreport/internal/logging"
)

const dateLayout = "2006-01-02"

// Engine applies one emission factor to energy figures at any granularity.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	table   *FactorTable
	factor  EmissionFactor
	voltage float64
}

// Option customizes an Engine.
type Option func(*Engine)

// WithVoltage overrides DefaultVoltage.
func WithVoltage(volts float64) Option {
	return func(e *Engine) {
		if volts > 0 {
			e.voltage = volts
		}
	}
}

// NewEngine creates an Engine using the registered factor called name.
// It returns ErrUnknownFactor if name is not in table.
func NewEngine(table *FactorTable, name string, opts ...Option) (*Engine, error) {
	factor, err := table.Lookup(name)
	if err != nil {
		return nil, err
	}
	return NewEngineWithFactor(table, factor, opts...), nil
}

// NewEngineWithFactor creates an Engine from an already resolved factor,
// typically a CustomFactor or the result of ResolveFactor.
func NewEngineWithFactor(table *FactorTable, factor EmissionFactor, opts ...Option) *Engine {
	e := &Engine{table: table, factor: factor, voltage: DefaultVoltage}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Factor returns the emission factor applied by the engine.
func (e *Engine) Factor() EmissionFactor {
	return e.factor
}

// Voltage returns the supply voltage assumed by the engine.
func (e *Engine) Voltage() float64 {
	return e.voltage
}

// Table returns the registry the engine was built from.
func (e *Engine) Table() *FactorTable {
	return e.table
}

// Apply converts an energy record into a carbon record labelled period.
func (e *Engine) Apply(period string, energy EnergyRecord, avgWatts float64) CarbonRecord {
	kg := energy.EnergyKWh * e.factor.Value
	return CarbonRecord{
		Period:        period,
		PeriodStart:   energy.PeriodStart,
		PeriodEnd:     energy.PeriodEnd,
		AvgPowerWatts: avgWatts,
		EnergyKWh:     energy.EnergyKWh,
		FactorUsed:    e.factor.Value,
		FactorSource:  e.factor.Source,
		CarbonKg:      kg,
		CarbonG:       kg * gramsPerKg,
	}
}

// ApplyReadings computes per-reading carbon for a raw time series.
//
// When every reading carries a timestamp the series is integrated over its
// sampling intervals (see IntegrateSamples); otherwise each reading is assumed
// to cover one hour. Results are returned in timestamp order. A reading
// without an electric value fails the whole call with ErrMissingField.
func (e *Engine) ApplyReadings(ctx context.Context, readings []Reading) ([]ReadingEmission, error) {
	log := logging.FromContext(ctx)
	if len(readings) == 0 {
		log.Warn().Ctx(ctx).Str("component", "carbon").Msg("empty power data provided for carbon calculation")
		return nil, nil
	}

	ordered := make([]Reading, len(readings))
	copy(ordered, readings)
	timed := true
	for i, r := range ordered {
		if r.ElectricMA == nil {
			return nil, fmt.Errorf("%w: electric (reading %d, device %q)", ErrMissingField, i, r.DeviceID)
		}
		if r.Timestamp.IsZero() {
			timed = false
		}
	}
	if timed {
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		})
	}

	samples := make([]PowerSample, len(ordered))
	for i, r := range ordered {
		samples[i] = PowerSample{Timestamp: r.Timestamp, Watts: CurrentToPower(*r.ElectricMA, e.voltage)}
	}

	var energy []EnergyRecord
	if timed {
		energy = IntegrateSamples(samples)
	} else {
		energy = make([]EnergyRecord, len(samples))
		for i, s := range samples {
			energy[i] = EnergyRecord{EnergyKWh: s.Watts * DefaultDeltaHours / wattsPerKilowatt}
		}
	}

	out := make([]ReadingEmission, len(ordered))
	for i, r := range ordered {
		period := ""
		if timed {
			period = r.Timestamp.UTC().Format(time.RFC3339)
		}
		out[i] = ReadingEmission{Reading: r, Carbon: e.Apply(period, energy[i], samples[i].Watts)}
	}

	log.Info().Ctx(ctx).
		Str("component", "carbon").
		Int("records", len(out)).
		Bool("time_series", timed).
		Msg("calculated carbon emissions for readings")
	return out, nil
}

// ApplyDaily computes carbon for daily aggregates, assuming ReadingsPerDay
// readings spread over HoursPerDay. A row without total_electric fails the
// call with ErrMissingField.
func (e *Engine) ApplyDaily(ctx context.Context, days []DailyAggregate) ([]DailyEmission, error) {
	log := logging.FromContext(ctx)
	if len(days) == 0 {
		log.Warn().Ctx(ctx).Str("component", "carbon").Msg("empty daily data provided for carbon calculation")
		return nil, nil
	}

	out := make([]DailyEmission, len(days))
	for i, day := range days {
		if day.TotalElectric == nil {
			return nil, fmt.Errorf("%w: total_electric (day %s)", ErrMissingField, day.Date.Format(dateLayout))
		}
		avgWatts, kwh := AggregateEnergy(*day.TotalElectric, ReadingsPerDay, HoursPerDay, e.voltage)
		energy := EnergyRecord{
			PeriodStart: day.Date,
			PeriodEnd:   day.Date.Add(time.Duration(HoursPerDay) * time.Hour),
			EnergyKWh:   kwh,
		}
		out[i] = DailyEmission{Aggregate: day, Carbon: e.Apply(day.Date.Format(dateLayout), energy, avgWatts)}
	}

	log.Info().Ctx(ctx).Str("component", "carbon").Int("days", len(out)).Msg("calculated daily carbon emissions")
	return out, nil
}

// ApplyMonthly computes carbon for monthly aggregates. The reading count of a
// row, when present and positive, gives both the average and the covered
// hours; otherwise a DaysPerMonth month at ReadingsPerDay is assumed.
func (e *Engine) ApplyMonthly(ctx context.Context, months []MonthlyAggregate) ([]MonthlyEmission, error) {
	log := logging.FromContext(ctx)
	if len(months) == 0 {
		log.Warn().Ctx(ctx).Str("component", "carbon").Msg("empty monthly data provided for carbon calculation")
		return nil, nil
	}

	out := make([]MonthlyEmission, len(months))
	for i, month := range months {
		label := monthLabel(month)
		if month.TotalElectric == nil {
			return nil, fmt.Errorf("%w: total_electric (month %s)", ErrMissingField, label)
		}

		readings := float64(DaysPerMonth * ReadingsPerDay)
		hours := float64(DaysPerMonth) * HoursPerDay
		if month.ReadingCount != nil && *month.ReadingCount > 0 {
			readings = float64(*month.ReadingCount)
			hours = readingsToHours(readings)
		}

		avgWatts, kwh := AggregateEnergy(*month.TotalElectric, readings, hours, e.voltage)
		energy := EnergyRecord{PeriodStart: month.PeriodStart, PeriodEnd: month.PeriodEnd, EnergyKWh: kwh}
		out[i] = MonthlyEmission{Aggregate: month, Carbon: e.Apply(label, energy, avgWatts)}
	}

	log.Info().Ctx(ctx).Str("component", "carbon").Int("months", len(out)).Msg("calculated monthly carbon emissions")
	return out, nil
}

// FactorInfo describes the engine's factor and the full registry.
type FactorInfo struct {
	FactorValue      float64            `json:"factor_value"`
	FactorSource     string             `json:"factor_source"`
	Unit             string             `json:"unit"`
	AvailableFactors map[string]float64 `json:"available_factors"`
}

// FactorInfo returns the factor listing served by the carbon factors endpoint.
func (e *Engine) FactorInfo() FactorInfo {
	return FactorInfo{
		FactorValue:      e.factor.Value,
		FactorSource:     e.factor.Source,
		Unit:             FactorUnit,
		AvailableFactors: e.table.All(),
	}
}

func monthLabel(m MonthlyAggregate) string {
	if m.YearMonth != "" {
		return m.YearMonth
	}
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}
