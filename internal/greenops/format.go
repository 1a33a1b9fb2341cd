package greenops

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//nolint:gochecknoglobals // message.Printer is safe for concurrent use
var printer = message.NewPrinter(language.English)

// FormatNumber formats n with thousands separators, e.g. "18,248".
func FormatNumber(n int64) string {
	return printer.Sprintf("%d", n)
}

// FormatFloat formats f with precision decimals and thousands separators,
// e.g. FormatFloat(1234.567, 2) is "1,234.57".
func FormatFloat(f float64, precision int) string {
	if precision <= 0 {
		return FormatNumber(int64(math.Round(f)))
	}
	return printer.Sprintf(fmt.Sprintf("%%.%df", precision), f)
}

// FormatLarge abbreviates millions and billions ("~1.5 billion") and
// otherwise formats a rounded integer.
func FormatLarge(n float64) string {
	switch {
	case n >= BillionThreshold:
		return fmt.Sprintf("~%.1f billion", n/BillionThreshold)
	case n >= LargeNumberThreshold:
		return fmt.Sprintf("~%.1f million", n/LargeNumberThreshold)
	default:
		return FormatNumber(int64(math.Round(n)))
	}
}

// FormatCarbon renders a kgCO2 figure in the most readable mass unit.
func FormatCarbon(kg float64) string {
	switch {
	case kg >= TonsToKg:
		return FormatFloat(kg/TonsToKg, 2) + " tCO2"
	case kg >= 1:
		return FormatFloat(kg, 2) + " kgCO2"
	default:
		return FormatFloat(kg/GramsToKg, 1) + " gCO2"
	}
}

func formatEquivalency(v float64) string {
	if v >= LargeNumberThreshold {
		return FormatLarge(v)
	}
	if v < 10 {
		return FormatFloat(v, 1)
	}
	return FormatNumber(int64(math.Round(v)))
}
