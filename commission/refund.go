package commission

import (
	"github.com/shopspring/decimal"
)

// Shares is a sale and its three-way division, used for refund accounting.
type Shares struct {
	Sale     decimal.Decimal `json:"sale"`
	Member   decimal.Decimal `json:"member"`
	Creator  decimal.Decimal `json:"creator"`
	Platform decimal.Decimal `json:"platform"`
}

// SharesOf returns the shares of a split.
func SharesOf(s Split) Shares {
	return Shares{Sale: s.SaleAmount, Member: s.MemberShare, Creator: s.CreatorShare, Platform: s.PlatformShare}
}

func (s Shares) Sub(o Shares) Shares {
	return Shares{
		Sale:     s.Sale.Sub(o.Sale),
		Member:   s.Member.Sub(o.Member),
		Creator:  s.Creator.Sub(o.Creator),
		Platform: s.Platform.Sub(o.Platform),
	}
}

func (s Shares) Add(o Shares) Shares {
	return Shares{
		Sale:     s.Sale.Add(o.Sale),
		Member:   s.Member.Add(o.Member),
		Creator:  s.Creator.Add(o.Creator),
		Platform: s.Platform.Add(o.Platform),
	}
}

// Reversal is the portion of a commission a refund takes back. Shares.Sale
// is the refund amount actually reversed.
type Reversal struct {
	Shares
	// Full is set when the refund closes out everything left on the commission.
	Full bool `json:"full"`
}

// CalculateReversal works out what a refund reverses. A refund within a cent
// of the unrefunded remainder reverses the remainder exactly; anything smaller
// is reversed in proportion to the original split, with member and creator
// rounded and the platform taking the residual.
func CalculateReversal(original, alreadyReversed Shares, refundAmount decimal.Decimal) (Reversal, error) {
	refund := Round2(refundAmount)
	if !refund.IsPositive() {
		return Reversal{}, invalid(ErrInvalidRefundAmount, "refund %s must be greater than zero", refundAmount.String())
	}
	remaining := original.Sub(alreadyReversed)
	if !remaining.Sale.IsPositive() {
		return Reversal{}, invalid(ErrInvalidRefundAmount, "commission is already fully refunded")
	}
	if refund.Sub(remaining.Sale).GreaterThan(Cent) {
		return Reversal{}, invalid(ErrInvalidRefundAmount, "refund %s exceeds unrefunded amount %s", refund.String(), remaining.Sale.String())
	}

	if refund.Sub(remaining.Sale).Abs().LessThanOrEqual(Cent) {
		return Reversal{Shares: remaining, Full: true}, nil
	}

	ratio := refund.Div(original.Sale)
	member := decimal.Min(Round2(original.Member.Mul(ratio)), remaining.Member)
	creator := decimal.Min(Round2(original.Creator.Mul(ratio)), remaining.Creator)
	member, creator, platform := capPlatformResidual(remaining, refund, member, creator)

	return Reversal{
		Shares: Shares{
			Sale:     refund,
			Member:   member,
			Creator:  creator,
			Platform: platform,
		},
	}, nil
}

// capPlatformResidual keeps the platform's residual within what it has left
// on the commission. Excess moves to the creator, then the member; both have
// room because a partial refund is smaller than the remainder. A negative
// residual is taken back from the creator.
func capPlatformResidual(remaining Shares, refund, member, creator decimal.Decimal) (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	platform := absorbResidualIntoPlatform(refund, member, creator)
	if platform.IsNegative() {
		return member, creator.Add(platform), decimal.Zero
	}
	if excess := platform.Sub(remaining.Platform); excess.IsPositive() {
		platform = remaining.Platform
		shift := decimal.Min(excess, remaining.Creator.Sub(creator))
		creator = creator.Add(shift)
		member = member.Add(excess.Sub(shift))
	}
	return member, creator, platform
}
