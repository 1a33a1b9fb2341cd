package greenops

import (
	"context"
	"fmt"
	"math"

	"github.com/rshade/greenreport/internal/logging"
)

type equivalencyDef struct {
	kind    EquivalencyType
	factor  float64
	label   string
	compact string
	minKg   float64
}

//nolint:gochecknoglobals // immutable table of EPA definitions
var definitions = []equivalencyDef{
	{EquivalencyMilesDriven, EPAMilesDrivenFactor, "miles driven", "mi", MinEquivalencyThresholdKg},
	{EquivalencySmartphonesCharged, EPASmartphoneChargeFactor, "smartphones charged", "phones", SmallEquivalencyThresholdKg},
	{EquivalencyTreeSeedlings, EPATreeSeedlingFactor, "tree seedlings grown for 10 years", "trees", EPATreeSeedlingFactor},
	{EquivalencyHomeDays, EPAHomeDayFactor, "days of home electricity", "home-days", EPAHomeDayFactor},
}

// Calculate normalizes input to kilograms and computes every equivalency
// whose threshold the total reaches. Totals below SmallEquivalencyThresholdKg
// produce an empty output without error.
func Calculate(input CarbonInput) (EquivalencyOutput, error) {
	kg, err := NormalizeToKg(input.Value, input.Unit)
	if err != nil {
		return EquivalencyOutput{IsEmpty: true}, err
	}
	return FromKg(kg)
}

// FromKg computes equivalencies for a total already expressed in kilograms.
func FromKg(kg float64) (EquivalencyOutput, error) {
	if math.IsInf(kg, 0) || math.IsNaN(kg) {
		return EquivalencyOutput{IsEmpty: true}, ErrCalculationOverflow
	}
	if kg < 0 {
		return EquivalencyOutput{IsEmpty: true}, fmt.Errorf("%w: %g", ErrNegativeValue, kg)
	}

	out := EquivalencyOutput{InputKg: kg}
	for _, def := range definitions {
		if kg < def.minKg {
			continue
		}
		v := kg / def.factor
		out.Results = append(out.Results, EquivalencyResult{
			Type:           def.kind,
			Value:          v,
			FormattedValue: formatEquivalency(v),
			Label:          def.label,
		})
	}
	if len(out.Results) == 0 {
		out.IsEmpty = true
		return out, nil
	}

	out.DisplayText = displayText(out.Results)
	out.CompactText = compactText(out.Results)
	return out, nil
}

// ForReport computes equivalencies for a report's total emissions. Failures
// are logged and yield nil so report generation is never blocked by them.
func ForReport(ctx context.Context, totalKg float64) *EquivalencyOutput {
	out, err := Calculate(CarbonInput{Value: totalKg, Unit: "kg"})
	if err != nil {
		logging.FromContext(ctx).Warn().Ctx(ctx).
			Str("component", "greenops").
			Err(err).
			Float64("total_kg", totalKg).
			Msg("carbon equivalency calculation failed")
		return nil
	}
	if out.IsEmpty {
		return nil
	}
	return &out
}

func displayText(results []EquivalencyResult) string {
	miles, hasMiles := find(results, EquivalencyMilesDriven)
	phones, hasPhones := find(results, EquivalencySmartphonesCharged)
	switch {
	case hasMiles && hasPhones:
		return fmt.Sprintf("Equivalent to driving ~%s miles or charging ~%s smartphones",
			miles.FormattedValue, phones.FormattedValue)
	case hasPhones:
		return fmt.Sprintf("Equivalent to charging ~%s smartphones", phones.FormattedValue)
	default:
		r := results[0]
		return fmt.Sprintf("Equivalent to ~%s %s", r.FormattedValue, r.Label)
	}
}

func compactText(results []EquivalencyResult) string {
	text := "(≈ "
	for i, r := range results {
		if i > 0 {
			text += ", "
		}
		text += r.FormattedValue + " " + compactLabel(r.Type)
	}
	return text + ")"
}

func compactLabel(t EquivalencyType) string {
	for _, def := range definitions {
		if def.kind == t {
			return def.compact
		}
	}
	return t.String()
}

func find(results []EquivalencyResult, t EquivalencyType) (EquivalencyResult, bool) {
	return EquivalencyOutput{Results: results}.Result(t)
}
