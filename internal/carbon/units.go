package carbon

import "time"

// Electrical and sampling assumptions for the IoT sensor fleet.
const (
	// DefaultVoltage is the supply voltage assumed for every sensor, in volts.
	DefaultVoltage = 5.0

	// SamplingInterval is the nominal interval between two sensor readings.
	SamplingInterval = 10 * time.Minute

	// ReadingsPerDay is the number of readings a sensor produces in a day at SamplingInterval.
	ReadingsPerDay = 144

	// HoursPerDay is the duration of a daily aggregate.
	HoursPerDay = 24.0

	// DaysPerMonth is the month length assumed when a monthly aggregate has no reading count.
	DaysPerMonth = 30

	// DefaultDeltaHours is the duration assigned to a sample whose interval is unknown or invalid.
	DefaultDeltaHours = 1.0
)

const (
	milliampsPerAmp  = 1000.0
	wattsPerKilowatt = 1000.0
	gramsPerKg       = 1000.0
)

// CurrentToPower converts an instantaneous current reading in milliamps to watts
// using P = V * I. Negative currents are passed through unchanged.
func CurrentToPower(milliamps, voltage float64) float64 {
	return voltage * (milliamps / milliampsPerAmp)
}

// readingsToHours returns the time covered by count readings at SamplingInterval.
func readingsToHours(count float64) float64 {
	const minutesPerHour = 60.0
	return count * SamplingInterval.Minutes() / minutesPerHour
}
