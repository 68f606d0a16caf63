package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimal lists settlement currencies the processor charges in whole units.
var zeroDecimal = map[string]bool{
	"BIF": true,
	"CLP": true,
	"DJF": true,
	"GNF": true,
	"JPY": true,
	"KMF": true,
	"KRW": true,
	"MGA": true,
	"PYG": true,
	"RWF": true,
	"UGX": true,
	"VND": true,
	"VUV": true,
	"XAF": true,
	"XOF": true,
	"XPF": true,
}

var hundred = decimal.NewFromInt(100)

// NormalizeCurrency upper-cases and trims an ISO 4217 code.
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// Exponent returns the number of minor-unit decimal places for currency.
func Exponent(currency string) int32 {
	if zeroDecimal[NormalizeCurrency(currency)] {
		return 0
	}
	return 2
}

// Divisor returns the minor-unit divisor for currency (1 or 100).
func Divisor(currency string) decimal.Decimal {
	return decimal.New(1, Exponent(currency))
}

// ToMinor converts a decimal amount into processor minor units.
// Fractions below the currency's precision are rounded away from zero.
func ToMinor(amount decimal.Decimal, currency string) int64 {
	return amount.Mul(Divisor(currency)).Round(0).IntPart()
}

// FromMinor converts processor minor units back into a decimal amount.
func FromMinor(minor int64, currency string) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(Divisor(currency))
}

// PlatformFee computes the platform's share of a charge in minor units:
// round(amountMinor * feePercent / 100), half away from zero.
func PlatformFee(amountMinor int64, feePercent decimal.Decimal) int64 {
	if amountMinor <= 0 || !feePercent.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(amountMinor).Mul(feePercent).Div(hundred).Round(0).IntPart()
}

// Format renders amount with the currency's display precision, e.g. "50.00 USD".
func Format(amount decimal.Decimal, currency string) string {
	return fmt.Sprintf("%s %s", amount.StringFixed(Exponent(currency)), NormalizeCurrency(currency))
}
