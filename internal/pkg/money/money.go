package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// minorUnitExponent is the number of decimals of the supported currencies.
const minorUnitExponent = 2

var ErrInvalidAmount = errors.New("invalid amount")

// Format renders an amount given in the smallest currency unit, for example
// 49900 INR becomes "INR 499.00".
func Format(minor int64, currency string) string {
	value := decimal.New(minor, -minorUnitExponent).StringFixed(minorUnitExponent)
	if currency == "" {
		return value
	}
	return fmt.Sprintf("%s %s", strings.ToUpper(currency), value)
}

// ParseMajor converts a decimal amount in major units ("499.5") into the
// smallest currency unit, rounding half away from zero.
func ParseMajor(major string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(major))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: negative amount", ErrInvalidAmount)
	}
	return d.Shift(minorUnitExponent).Round(0).IntPart(), nil
}
