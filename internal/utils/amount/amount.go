// Package amount converts fixed-point token amounts to and from decimal text.
package amount

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the token precision used when none is configured
const DefaultDecimals = 6

var maxAmount = decimal.NewFromUint64(math.MaxUint64)

// Format renders a fixed-point amount with the given number of decimals
func Format(v uint64, decimals int32) string {
	return decimal.NewFromUint64(v).Shift(-decimals).String()
}

// Parse reads decimal text into a fixed-point amount. Fractions finer than
// the token precision and values outside uint64 are rejected.
func Parse(s string, decimals int32) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount %q is negative", s)
	}

	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}
	if scaled.GreaterThan(maxAmount) {
		return 0, fmt.Errorf("amount %q overflows", s)
	}
	return scaled.BigInt().Uint64(), nil
}
