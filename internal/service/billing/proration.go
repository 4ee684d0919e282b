// internal/service/billing/proration.go
package billing

import "github.com/shopspring/decimal"

// Prorate returns the amount owed for an upgrade:
//
//	(new_price - current_price) * days_remaining / cycle_days
//
// rounded half-up to 2 decimals. Downgrades and lateral moves owe nothing;
// the result is never negative.
func Prorate(currentPrice, newPrice float64, daysRemaining, cycleDays int) float64 {
	if cycleDays <= 0 || daysRemaining <= 0 {
		return 0
	}
	diff := decimal.NewFromFloat(newPrice).Sub(decimal.NewFromFloat(currentPrice))
	if diff.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	owed := diff.
		Mul(decimal.NewFromInt(int64(daysRemaining))).
		Div(decimal.NewFromInt(int64(cycleDays))).
		Round(2)
	f, _ := owed.Float64()
	return f
}
