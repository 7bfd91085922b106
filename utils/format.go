package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

var currencySymbols = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
	"cad": "CA$",
	"aud": "A$",
}

// FormatMoney renders an amount for notification copy, e.g. "$12.50" or
// "12.50 CHF" for currencies without a known symbol.
func FormatMoney(amount decimal.Decimal, currency string) string {
	cur := strings.ToLower(currency)
	if cur == "" {
		cur = "usd"
	}
	if sym, ok := currencySymbols[cur]; ok {
		if amount.IsNegative() {
			return "-" + sym + amount.Abs().StringFixed(2)
		}
		return sym + amount.StringFixed(2)
	}
	return amount.StringFixed(2) + " " + strings.ToUpper(cur)
}

// FormatRate renders a fractional rate as a percentage, e.g. 0.15 -> "15%"
// and 0.125 -> "12.5%".
func FormatRate(rate decimal.Decimal) string {
	return rate.Shift(2).Round(2).String() + "%"
}
