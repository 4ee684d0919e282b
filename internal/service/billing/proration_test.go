// internal/service/billing/proration_test.go
package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProrate(t *testing.T) {
	tests := []struct {
		name          string
		currentPrice  float64
		newPrice      float64
		daysRemaining int
		cycleDays     int
		want          float64
	}{
		{"upgrade mid-cycle", 100, 200, 10, 30, 33.33},
		{"upgrade half cycle", 149.90, 399.90, 15, 30, 125.00},
		{"upgrade full cycle", 100, 200, 30, 30, 100.00},
		{"from free plan", 0, 149.90, 15, 30, 74.95},
		{"downgrade owes nothing", 200, 100, 10, 30, 0},
		{"same price owes nothing", 100, 100, 10, 30, 0},
		{"no days remaining", 100, 200, 0, 30, 0},
		{"negative days remaining", 100, 200, -3, 30, 0},
		{"zero cycle days", 100, 200, 10, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Prorate(tt.currentPrice, tt.newPrice, tt.daysRemaining, tt.cycleDays))
		})
	}
}

func TestProrateRoundsHalfUp(t *testing.T) {
	// 100 * 1 / 3 = 33.333... -> 33.33; 100 * 1 / 6 = 16.666... -> 16.67
	assert.Equal(t, 33.33, Prorate(0, 100, 1, 3))
	assert.Equal(t, 16.67, Prorate(0, 100, 1, 6))
}

func TestProrateNeverExceedsFullDifference(t *testing.T) {
	for days := 0; days <= 30; days++ {
		got := Prorate(100, 250, days, 30)
		assert.LessOrEqual(t, got, 150.0)
		assert.GreaterOrEqual(t, got, 0.0)
	}
}
