// Package money normalizes stored amounts for display.
//
// Amounts are stored signed, exactly as extracted from the source documents:
// credit notes and refunds carry a negative total. Every figure shown to a user
// (dashboard cards, chart series, chat answers, exports) is the absolute value,
// rounded to cents. SQL aggregates follow the same rule with SUM(ABS(x)).
package money

import "github.com/shopspring/decimal"

// Abs returns |amount| rounded half away from zero to two decimals.
func Abs(amount float64) float64 {
	return decimal.NewFromFloat(amount).Abs().Round(2).InexactFloat64()
}

// Round rounds amount to two decimals without changing its sign.
func Round(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}

// Accumulator sums absolute amounts in decimal precision.
// The zero value is ready to use.
type Accumulator struct {
	total decimal.Decimal
}

// Add records one amount.
func (a *Accumulator) Add(amount float64) {
	a.total = a.total.Add(decimal.NewFromFloat(amount).Abs())
}

// Total returns the rounded sum of absolute amounts.
func (a *Accumulator) Total() float64 {
	return a.total.Round(2).InexactFloat64()
}

