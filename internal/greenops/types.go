// Package greenops turns carbon totals into relatable real-world
// equivalencies, such as miles driven or smartphones charged, using EPA
// published factors.
package greenops

import "fmt"

// EquivalencyType is a category of carbon equivalency.
type EquivalencyType int

const (
	EquivalencyMilesDriven EquivalencyType = iota
	EquivalencySmartphonesCharged
	EquivalencyTreeSeedlings
	EquivalencyHomeDays
)

// String returns the JSON name of the equivalency.
func (e EquivalencyType) String() string {
	switch e {
	case EquivalencyMilesDriven:
		return "miles_driven"
	case EquivalencySmartphonesCharged:
		return "smartphones_charged"
	case EquivalencyTreeSeedlings:
		return "tree_seedlings"
	case EquivalencyHomeDays:
		return "home_days"
	default:
		return fmt.Sprintf("equivalency_%d", int(e))
	}
}

// MarshalText encodes the type by name.
func (e EquivalencyType) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText decodes a type name produced by MarshalText.
func (e *EquivalencyType) UnmarshalText(text []byte) error {
	for t := EquivalencyMilesDriven; t <= EquivalencyHomeDays; t++ {
		if t.String() == string(text) {
			*e = t
			return nil
		}
	}
	return fmt.Errorf("unknown equivalency type %q", string(text))
}

// CarbonInput is a carbon amount in an arbitrary mass unit.
type CarbonInput struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// EquivalencyResult is a single equivalency of a carbon total.
type EquivalencyResult struct {
	Type           EquivalencyType `json:"type"`
	Value          float64         `json:"value"`
	FormattedValue string          `json:"formatted_value"`
	Label          string          `json:"label"`
}

// EquivalencyOutput holds every equivalency computed for one carbon total.
type EquivalencyOutput struct {
	InputKg     float64             `json:"input_kg"`
	Results     []EquivalencyResult `json:"results"`
	DisplayText string              `json:"display_text"`
	CompactText string              `json:"compact_text"`
	IsEmpty     bool                `json:"is_empty"`
}

// Result returns the equivalency of type t, if it was computed.
func (o EquivalencyOutput) Result(t EquivalencyType) (EquivalencyResult, bool) {
	for _, r := range o.Results {
		if r.Type == t {
			return r, true
		}
	}
	return EquivalencyResult{}, false
}
