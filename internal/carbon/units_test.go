package carbon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrentToPower(t *testing.T) {
	tests := []struct {
		name    string
		ma      float64
		voltage float64
		want    float64
	}{
		{name: "1000 mA at default voltage", ma: 1000, voltage: DefaultVoltage, want: 5.0},
		{name: "zero current", ma: 0, voltage: DefaultVoltage, want: 0},
		{name: "sub-milliamp", ma: 25, voltage: DefaultVoltage, want: 0.125},
		{name: "negative passes through", ma: -200, voltage: DefaultVoltage, want: -1.0},
		{name: "12 volt supply", ma: 500, voltage: 12, want: 6.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CurrentToPower(tt.ma, tt.voltage), 1e-12)
		})
	}
}

func TestCurrentToPower_Monotonic(t *testing.T) {
	prev := CurrentToPower(0, DefaultVoltage)
	for ma := 10.0; ma <= 5000; ma += 10 {
		got := CurrentToPower(ma, DefaultVoltage)
		assert.GreaterOrEqual(t, got, prev, "power must not decrease at %v mA", ma)
		prev = got
	}
}

func TestReadingsToHours(t *testing.T) {
	assert.InDelta(t, 24.0, readingsToHours(ReadingsPerDay), 1e-12)
	assert.InDelta(t, 720.0, readingsToHours(DaysPerMonth*ReadingsPerDay), 1e-12)
	assert.InDelta(t, 1.0, readingsToHours(6), 1e-12)
}
