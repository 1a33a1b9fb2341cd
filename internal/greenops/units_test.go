package greenops

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeToKg(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		unit    string
		want    float64
		wantErr error
	}{
		{name: "grams", value: 1500, unit: "g", want: 1.5},
		{name: "kilograms", value: 2, unit: "kgCO2e", want: 2},
		{name: "empty unit is kg", value: 3, unit: "", want: 3},
		{name: "tons upper case", value: 0.15, unit: "T", want: 150},
		{name: "pounds", value: 10, unit: "lb", want: 4.53592},
		{name: "negative", value: -1, unit: "kg", wantErr: ErrNegativeValue},
		{name: "unknown unit", value: 1, unit: "oz", wantErr: ErrInvalidUnit},
		{name: "NaN", value: math.NaN(), unit: "kg", wantErr: ErrCalculationOverflow},
		{name: "overflow", value: math.MaxFloat64, unit: "t", wantErr: ErrCalculationOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeToKg(tt.value, tt.unit)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	assert.True(t, IsRecognizedUnit("gCO2"))
	assert.False(t, IsRecognizedUnit("stone"))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "18,248", FormatNumber(18248))
	assert.Equal(t, "1,234.57", FormatFloat(1234.567, 2))
	assert.Equal(t, "1,235", FormatFloat(1234.567, 0))
	assert.Equal(t, "~1.5 billion", FormatLarge(1_500_000_000))
	assert.Equal(t, "~2.0 million", FormatLarge(2_000_000))
	assert.Equal(t, "999", FormatLarge(999.4))

	assert.Equal(t, "2.4 gCO2", FormatCarbon(0.00239))
	assert.Equal(t, "12.50 kgCO2", FormatCarbon(12.5))
	assert.Equal(t, "1.50 tCO2", FormatCarbon(1500))
}
