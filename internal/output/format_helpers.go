package output

import "github.com/shopspring/decimal"

// FormatCurrency formats a decimal as USD currency with 2 decimals.
// Kept here so it can be reused by multiple formatters and unit tested in isolation.
func FormatCurrency(amount decimal.Decimal) string { return "$" + amount.StringFixed(2) }

// FormatPercentage formats a fractional decimal (0.928) as a percentage ("92.80%").
func FormatPercentage(fraction decimal.Decimal) string {
	return fraction.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

// FormatRatio formats a unitless risk ratio with 3 decimals.
func FormatRatio(v decimal.Decimal) string { return v.StringFixed(3) }
