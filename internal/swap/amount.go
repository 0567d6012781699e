package swap

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ToSmallestUnit converts a display amount to an integer string in the
// token's smallest unit, truncating any sub-unit remainder.
func ToSmallestUnit(amount float64, decimals int32) (string, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "", fmt.Errorf("amount %v is not finite", amount)
	}
	if amount < 0 {
		return "", fmt.Errorf("amount %v is negative", amount)
	}
	return decimal.NewFromFloat(amount).Shift(decimals).Truncate(0).String(), nil
}

// FromSmallestUnit converts a provider amount in the smallest unit back to
// display units. An empty string is zero.
func FromSmallestUnit(raw string, decimals int32) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	f, _ := d.Shift(-decimals).Float64()
	return f, nil
}
