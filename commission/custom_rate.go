package commission

import (
	"github.com/shopspring/decimal"
)

var (
	MinCustomRate = decimal.RequireFromString("0.10")
	MaxCustomRate = decimal.RequireFromString("0.30")
)

// CustomRateParams are the base rates a custom member rate is measured
// against. The platform keeps PlatformFixedRate; the creator pays for any
// member uplift above BaseTierRate.
type CustomRateParams struct {
	BaseTierRate      decimal.Decimal
	BaseCreatorRate   decimal.Decimal
	PlatformFixedRate decimal.Decimal
}

// DefaultCustomRateParams are the floor tier's rates.
func DefaultCustomRateParams() CustomRateParams {
	floor := FloorTier()
	return CustomRateParams{
		BaseTierRate:      floor.MemberRate,
		BaseCreatorRate:   floor.CreatorRate,
		PlatformFixedRate: floor.PlatformRate,
	}
}

// CreatorRateFloor is the lowest creator rate the overlay can produce, reached
// at MaxCustomRate.
func (p CustomRateParams) CreatorRateFloor() decimal.Decimal {
	return p.BaseCreatorRate.Sub(MaxCustomRate.Sub(p.BaseTierRate))
}

// CreatorRateFor returns the creator rate left once the creator has funded
// the uplift of customRate over the base tier rate.
func (p CustomRateParams) CreatorRateFor(customRate decimal.Decimal) decimal.Decimal {
	uplift := decimal.Max(decimal.Zero, customRate.Sub(p.BaseTierRate))
	return p.BaseCreatorRate.Sub(uplift)
}

// ValidateCustomRate checks a creator-assigned member rate against the
// allowed range.
func ValidateCustomRate(rate decimal.Decimal) error {
	if rate.LessThan(MinCustomRate) || rate.GreaterThan(MaxCustomRate) {
		return invalid(ErrCustomRateOutOfRange, "rate %s not within [%s, %s]", rate.String(), MinCustomRate.String(), MaxCustomRate.String())
	}
	return nil
}

// CalculateCustomSplit prices a sale at a custom member rate. The platform
// share stays pinned at its fixed rate and the creator absorbs the uplift.
// Cent drift from rounding lands on the platform share.
func CalculateCustomSplit(saleAmount, customRate decimal.Decimal, p CustomRateParams) (Split, error) {
	if err := ValidateSaleAmount(saleAmount); err != nil {
		return Split{}, err
	}
	if err := ValidateCustomRate(customRate); err != nil {
		return Split{}, err
	}
	creatorRate := p.CreatorRateFor(customRate)
	if creatorRate.LessThan(p.CreatorRateFloor()) {
		return Split{}, invalid(ErrCreatorRateBelowFloor, "creator rate %s below %s", creatorRate.String(), p.CreatorRateFloor().String())
	}

	sale := Round2(saleAmount)
	member := Round2(sale.Mul(customRate))
	creator := Round2(sale.Mul(creatorRate))

	return Split{
		SaleAmount:    sale,
		MemberShare:   member,
		CreatorShare:  creator,
		PlatformShare: absorbResidualIntoPlatform(sale, member, creator),
		Source:        RateSourceCustom,
		Rates: Rates{
			Member:   customRate,
			Creator:  creatorRate,
			Platform: p.PlatformFixedRate,
		},
	}, nil
}
