package commission

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	// Cent is the currency minor unit every share is rounded to.
	Cent = decimal.New(1, -2)

	// MaxSaleAmount is the largest sale the engine will price.
	MaxSaleAmount = decimal.NewFromInt(1_000_000)

	hundred = decimal.NewFromInt(100)
)

// Round2 rounds to cents, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// SaleAmountFromCents converts a minor-unit amount from the payment platform.
func SaleAmountFromCents(cents int64) (decimal.Decimal, error) {
	amount := decimal.NewFromInt(cents).Div(hundred)
	if err := ValidateSaleAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// SaleAmountFromFloat converts a float amount, rejecting NaN and infinities.
func SaleAmountFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, invalid(ErrInvalidSaleAmount, "amount is not a finite number")
	}
	amount := decimal.NewFromFloat(f)
	if err := ValidateSaleAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// ValidateSaleAmount checks that the amount, once rounded to cents, is
// positive and no larger than MaxSaleAmount.
func ValidateSaleAmount(amount decimal.Decimal) error {
	rounded := Round2(amount)
	if !rounded.IsPositive() {
		return invalid(ErrInvalidSaleAmount, "amount %s must be greater than zero", amount.String())
	}
	if rounded.GreaterThan(MaxSaleAmount) {
		return invalid(ErrInvalidSaleAmount, "amount %s exceeds maximum %s", amount.String(), MaxSaleAmount.String())
	}
	return nil
}
