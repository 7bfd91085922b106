package commission

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TierName identifies a commission tier.
type TierName string

const (
	TierStarter    TierName = "starter"
	TierAmbassador TierName = "ambassador"
	TierElite      TierName = "elite"
)

// Tier is one row of the commission tier table. A referrer qualifies for a
// tier once their lifetime referral count reaches MinReferrals.
type Tier struct {
	Name         TierName        `json:"name"`
	MinReferrals int             `json:"minReferrals"`
	MemberRate   decimal.Decimal `json:"memberRate"`
	PlatformRate decimal.Decimal `json:"platformRate"`
	CreatorRate  decimal.Decimal `json:"creatorRate"`
}

var rateTolerance = decimal.New(1, -3)

var tierTable = mustTierTable([]Tier{
	{
		Name:         TierStarter,
		MinReferrals: 0,
		MemberRate:   decimal.RequireFromString("0.10"),
		PlatformRate: decimal.RequireFromString("0.20"),
		CreatorRate:  decimal.RequireFromString("0.70"),
	},
	{
		Name:         TierAmbassador,
		MinReferrals: 50,
		MemberRate:   decimal.RequireFromString("0.15"),
		PlatformRate: decimal.RequireFromString("0.15"),
		CreatorRate:  decimal.RequireFromString("0.70"),
	},
	{
		Name:         TierElite,
		MinReferrals: 100,
		MemberRate:   decimal.RequireFromString("0.18"),
		PlatformRate: decimal.RequireFromString("0.12"),
		CreatorRate:  decimal.RequireFromString("0.70"),
	},
})

func mustTierTable(tiers []Tier) []Tier {
	if err := ValidateTierTable(tiers); err != nil {
		panic(err)
	}
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// ValidateTierTable checks the invariants every tier table must hold: a
// zero-referral floor tier, strictly increasing thresholds, rates in [0,1]
// summing to one, and the same creator rate on every tier.
func ValidateTierTable(tiers []Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("%w: no tiers", ErrInvalidTierTable)
	}
	if tiers[0].MinReferrals != 0 {
		return fmt.Errorf("%w: first tier %q must start at 0 referrals", ErrInvalidTierTable, tiers[0].Name)
	}

	one := decimal.NewFromInt(1)
	seen := make(map[TierName]bool, len(tiers))
	for i, t := range tiers {
		if t.Name == "" {
			return fmt.Errorf("%w: tier %d has no name", ErrInvalidTierTable, i)
		}
		if seen[t.Name] {
			return fmt.Errorf("%w: duplicate tier %q", ErrInvalidTierTable, t.Name)
		}
		seen[t.Name] = true

		if i > 0 && t.MinReferrals <= tiers[i-1].MinReferrals {
			return fmt.Errorf("%w: tier %q threshold %d not above %d", ErrInvalidTierTable, t.Name, t.MinReferrals, tiers[i-1].MinReferrals)
		}
		for _, r := range []decimal.Decimal{t.MemberRate, t.PlatformRate, t.CreatorRate} {
			if r.IsNegative() || r.GreaterThan(one) {
				return fmt.Errorf("%w: tier %q has rate %s outside [0,1]", ErrInvalidTierTable, t.Name, r.String())
			}
		}
		sum := t.MemberRate.Add(t.PlatformRate).Add(t.CreatorRate)
		if sum.Sub(one).Abs().GreaterThan(rateTolerance) {
			return fmt.Errorf("%w: tier %q rates sum to %s", ErrInvalidTierTable, t.Name, sum.String())
		}
		if !t.CreatorRate.Equal(tiers[0].CreatorRate) {
			return fmt.Errorf("%w: tier %q changes the creator rate", ErrInvalidTierTable, t.Name)
		}
	}
	return nil
}

// Tiers returns a copy of the tier table, ordered by threshold.
func Tiers() []Tier {
	out := make([]Tier, len(tierTable))
	copy(out, tierTable)
	return out
}

// FloorTier is the tier every referrer starts in.
func FloorTier() Tier {
	return tierTable[0]
}

// TierByName looks a tier up by its label.
func TierByName(name TierName) (Tier, bool) {
	for _, t := range tierTable {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}

// ResolveTier returns the highest tier whose threshold totalReferred meets.
func ResolveTier(totalReferred int) Tier {
	for i := len(tierTable) - 1; i >= 0; i-- {
		if totalReferred >= tierTable[i].MinReferrals {
			return tierTable[i]
		}
	}
	return tierTable[0]
}

// NextTier returns the tier after the one totalReferred resolves to and how
// many more referrals are needed to reach it. ok is false at the top tier.
func NextTier(totalReferred int) (next Tier, remaining int, ok bool) {
	current := rank(ResolveTier(totalReferred).Name)
	if current+1 >= len(tierTable) {
		return Tier{}, 0, false
	}
	next = tierTable[current+1]
	return next, next.MinReferrals - totalReferred, true
}

// rank is the tier's position in the table; unknown names rank as the floor.
func rank(name TierName) int {
	for i, t := range tierTable {
		if t.Name == name {
			return i
		}
	}
	return 0
}
