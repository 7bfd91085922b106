package commission

import (
	"github.com/shopspring/decimal"
)

// RateSource records where the member rate of a split came from.
type RateSource string

const (
	RateSourceTier   RateSource = "tier"
	RateSourceCustom RateSource = "custom"
)

// Rates are the nominal, pre-rounding rates a split was priced at.
type Rates struct {
	Member   decimal.Decimal `json:"member"`
	Creator  decimal.Decimal `json:"creator"`
	Platform decimal.Decimal `json:"platform"`
}

// Split is the three-way division of one sale. The shares always add up to
// SaleAmount exactly; Rates.Platform is the nominal rate and may differ from
// PlatformShare/SaleAmount by the absorbed rounding residual.
type Split struct {
	SaleAmount    decimal.Decimal `json:"saleAmount"`
	MemberShare   decimal.Decimal `json:"memberShare"`
	CreatorShare  decimal.Decimal `json:"creatorShare"`
	PlatformShare decimal.Decimal `json:"platformShare"`
	AppliedTier   TierName        `json:"appliedTier"`
	Source        RateSource      `json:"rateSource"`
	Rates         Rates           `json:"rates"`
}

// Total is the sum of the three shares.
func (s Split) Total() decimal.Decimal {
	return s.MemberShare.Add(s.CreatorShare).Add(s.PlatformShare)
}

// CalculateSplit prices a sale at a tier's rates. Member and creator shares
// are rounded independently; the platform takes the residual.
func CalculateSplit(saleAmount decimal.Decimal, tier Tier) (Split, error) {
	if err := ValidateSaleAmount(saleAmount); err != nil {
		return Split{}, err
	}
	sale := Round2(saleAmount)

	member := Round2(sale.Mul(tier.MemberRate))
	creator := Round2(sale.Mul(tier.CreatorRate))

	return Split{
		SaleAmount:    sale,
		MemberShare:   member,
		CreatorShare:  creator,
		PlatformShare: absorbResidualIntoPlatform(sale, member, creator),
		AppliedTier:   tier.Name,
		Source:        RateSourceTier,
		Rates: Rates{
			Member:   tier.MemberRate,
			Creator:  tier.CreatorRate,
			Platform: tier.PlatformRate,
		},
	}, nil
}

// absorbResidualIntoPlatform gives the platform whatever the rounded member
// and creator shares leave of the sale, so the three shares sum to the cent.
func absorbResidualIntoPlatform(sale, member, creator decimal.Decimal) decimal.Decimal {
	return Round2(sale.Sub(member).Sub(creator))
}

// Snapshot is the part of a referrer's persisted state the engine prices from.
type Snapshot struct {
	TotalReferred int
	CustomRate    *decimal.Decimal
}

// Calculate prices a sale for a referrer. A valid custom rate supersedes the
// tier resolved from TotalReferred; an out-of-range stored rate is ignored.
// The split is labelled with the resolved tier either way.
func Calculate(saleAmount decimal.Decimal, snap Snapshot) (Split, error) {
	tier := ResolveTier(snap.TotalReferred)
	if snap.CustomRate != nil && ValidateCustomRate(*snap.CustomRate) == nil {
		split, err := CalculateCustomSplit(saleAmount, *snap.CustomRate, DefaultCustomRateParams())
		if err != nil {
			return Split{}, err
		}
		split.AppliedTier = tier.Name
		return split, nil
	}
	return CalculateSplit(saleAmount, tier)
}
