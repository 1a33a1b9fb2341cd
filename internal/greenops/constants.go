package greenops

// EPA greenhouse gas equivalency factors (2024 edition), in kgCO2e per unit
// of activity. Source: https://www.epa.gov/energy/greenhouse-gas-equivalencies-calculator
//
//	equivalency = kgCO2e / factor
const (
	// EPAMilesDrivenFactor is kgCO2e per mile of an average passenger vehicle.
	EPAMilesDrivenFactor = 0.192

	// EPASmartphoneChargeFactor is kgCO2e per full smartphone charge.
	EPASmartphoneChargeFactor = 0.00822

	// EPATreeSeedlingFactor is kgCO2e absorbed by one urban tree seedling grown for 10 years.
	EPATreeSeedlingFactor = 60.0

	// EPAHomeDayFactor is kgCO2e of one day of average home electricity use.
	EPAHomeDayFactor = 18.3
)

// Mass units accepted by NormalizeToKg, expressed in kilograms.
const (
	GramsToKg  = 0.001
	KgToKg     = 1.0
	TonsToKg   = 1000.0
	PoundsToKg = 0.453592
)

// Display thresholds.
const (
	// MinEquivalencyThresholdKg is the smallest total for which equivalencies
	// are produced. Smaller figures read as fractions of a mile or phone charge.
	MinEquivalencyThresholdKg = 1.0

	// SmallEquivalencyThresholdKg is the smallest total for which the
	// smartphone comparison is produced. Sensor fleets rarely reach a kilogram
	// per reporting window, so this keeps a relatable figure for small totals.
	SmallEquivalencyThresholdKg = 0.01

	// LargeNumberThreshold switches FormatLarge to "~X.X million".
	LargeNumberThreshold = 1_000_000

	// BillionThreshold switches FormatLarge to "~X.X billion".
	BillionThreshold = 1_000_000_000
)
