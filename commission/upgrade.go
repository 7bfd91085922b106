package commission

import (
	"github.com/shopspring/decimal"
)

// Upgrade is the outcome of comparing a referrer's recorded tier with the
// tier their new referral count resolves to.
type Upgrade struct {
	ShouldUpgrade bool            `json:"shouldUpgrade"`
	PreviousTier  TierName        `json:"previousTier"`
	NewTier       Tier            `json:"newTier"`
	RateIncrease  decimal.Decimal `json:"rateIncrease"`
}

// CheckUpgrade resolves the tier for newTotalReferred and reports an upgrade
// only when it ranks above currentTier. An empty or unknown current tier is
// treated as the floor tier. RateIncrease is the member rate delta, for
// notification copy.
func CheckUpgrade(currentTier TierName, newTotalReferred int) Upgrade {
	current, ok := TierByName(currentTier)
	if !ok {
		current = FloorTier()
	}
	next := ResolveTier(newTotalReferred)

	up := Upgrade{
		PreviousTier: current.Name,
		NewTier:      next,
	}
	if rank(next.Name) > rank(current.Name) {
		up.ShouldUpgrade = true
		up.RateIncrease = next.MemberRate.Sub(current.MemberRate)
	}
	return up
}
