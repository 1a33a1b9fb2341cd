package carbon

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Registered emission factor names, in kgCO2/kWh.
// Source: Korea Energy Economics Institute (KEEI) 2023 data.
const (
	FactorKoreaGrid     = "korea_grid"
	FactorCoal          = "coal"
	FactorNaturalGas    = "natural_gas"
	FactorNuclear       = "nuclear"
	FactorRenewable     = "renewable"
	FactorGlobalAverage = "global_average"

	// DefaultFactorName is used when no factor is configured.
	DefaultFactorName = FactorKoreaGrid

	// CustomFactorSource tags factors supplied as a raw number.
	CustomFactorSource = "custom"

	// FactorUnit is the unit of every emission factor value.
	FactorUnit = "kgCO2/kWh"
)

// EmissionFactor is the carbon intensity of one kWh of delivered electricity.
type EmissionFactor struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Source string  `json:"source"`
}

// FactorTable is an immutable registry of named emission factors.
// A single table is built at startup and shared read-only by every Engine.
type FactorTable struct {
	factors map[string]float64
}

// NewFactorTable builds a registry from the given name/value pairs.
// The map is copied, so later changes by the caller have no effect.
func NewFactorTable(factors map[string]float64) *FactorTable {
	copied := make(map[string]float64, len(factors))
	for name, value := range factors {
		copied[name] = value
	}
	return &FactorTable{factors: copied}
}

// DefaultFactorTable returns the built-in registry.
func DefaultFactorTable() *FactorTable {
	return NewFactorTable(map[string]float64{
		FactorKoreaGrid:     0.478,
		FactorCoal:          0.82,
		FactorNaturalGas:    0.35,
		FactorNuclear:       0.012,
		FactorRenewable:     0.048,
		FactorGlobalAverage: 0.475,
	})
}

// Lookup returns the registered factor with the given name.
// It returns ErrUnknownFactor when the name is not registered.
func (t *FactorTable) Lookup(name string) (EmissionFactor, error) {
	value, ok := t.factors[name]
	if !ok {
		return EmissionFactor{}, fmt.Errorf("%w: %q", ErrUnknownFactor, name)
	}
	return EmissionFactor{Name: name, Value: value, Source: name}, nil
}

// Has reports whether name is registered.
func (t *FactorTable) Has(name string) bool {
	_, ok := t.factors[name]
	return ok
}

// Names returns the registered names in lexical order.
func (t *FactorTable) Names() []string {
	names := make([]string, 0, len(t.factors))
	for name := range t.factors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns a copy of the registry.
func (t *FactorTable) All() map[string]float64 {
	out := make(map[string]float64, len(t.factors))
	for name, value := range t.factors {
		out[name] = value
	}
	return out
}

// CustomFactor wraps a caller-supplied value. It is accepted unconditionally.
func CustomFactor(value float64) EmissionFactor {
	return EmissionFactor{Name: CustomFactorSource, Value: value, Source: CustomFactorSource}
}

// ResolveFactor interprets choice as a registered name, or failing that as a
// numeric custom factor. An empty choice selects DefaultFactorName.
func ResolveFactor(t *FactorTable, choice string) (EmissionFactor, error) {
	choice = strings.TrimSpace(choice)
	if choice == "" {
		choice = DefaultFactorName
	}
	if t.Has(choice) {
		return t.Lookup(choice)
	}
	value, err := strconv.ParseFloat(choice, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return EmissionFactor{}, fmt.Errorf("%w: %q", ErrUnknownFactor, choice)
	}
	return CustomFactor(value), nil
}
