package carbon

import (
	"sort"
	"time"
)

// IntegrateSamples converts a series of power samples into energy records.
//
// Samples are ordered by timestamp and each one is held for the interval since
// the previous sample. The earliest sample reuses the interval of the second
// one. Missing or non-positive intervals fall back to DefaultDeltaHours, and a
// lone sample is assumed to cover one hour. An empty series yields nil.
func IntegrateSamples(samples []PowerSample) []EnergyRecord {
	if len(samples) == 0 {
		return nil
	}

	ordered := make([]PowerSample, len(samples))
	copy(ordered, samples)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	deltas := sampleDeltas(ordered)
	records := make([]EnergyRecord, len(ordered))
	for i, s := range ordered {
		records[i] = EnergyRecord{
			PeriodStart: s.Timestamp.Add(-deltas[i]),
			PeriodEnd:   s.Timestamp,
			EnergyKWh:   s.Watts * deltas[i].Hours() / wattsPerKilowatt,
		}
	}
	return records
}

// sampleDeltas returns the hold interval of each ordered sample.
func sampleDeltas(ordered []PowerSample) []time.Duration {
	fallback := time.Duration(DefaultDeltaHours * float64(time.Hour))
	deltas := make([]time.Duration, len(ordered))
	if len(ordered) == 1 {
		deltas[0] = fallback
		return deltas
	}

	for i := 1; i < len(ordered); i++ {
		deltas[i] = ordered[i].Timestamp.Sub(ordered[i-1].Timestamp)
	}
	deltas[0] = deltas[1]

	for i, d := range deltas {
		if d <= 0 {
			deltas[i] = fallback
		}
	}
	return deltas
}

// AggregateEnergy derives the average power and the energy of a period from a
// pre-aggregated current total. totalMA is the sum of readings in milliamps,
// readings the number of readings summed and hours the length of the period.
// A non-positive reading count yields zero power and energy.
func AggregateEnergy(totalMA, readings, hours, voltage float64) (avgWatts, energyKWh float64) {
	if readings <= 0 {
		return 0, 0
	}
	avgWatts = CurrentToPower(totalMA/readings, voltage)
	energyKWh = avgWatts * hours / wattsPerKilowatt
	return avgWatts, energyKWh
}
