package repositories

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/HSouheill/referral_backend/commission"
	"github.com/HSouheill/referral_backend/models"
)

// commissionIncrements builds the $inc documents a committed commission
// applies to its referrer and creator. referralInc is 1 for initial payments
// and 0 for renewals, which move money but not referral counts.
func commissionIncrements(c *models.Commission) (referrerInc, creatorInc bson.M, referralInc int) {
	referrerInc = bson.M{
		"lifetimeEarnings": c.MemberShare,
		"monthlyEarnings":  c.MemberShare,
	}
	creatorInc = bson.M{
		"totalRevenue":   c.SaleAmount,
		"monthlyRevenue": c.SaleAmount,
	}
	if c.PaymentType == models.PaymentTypeInitial {
		referralInc = 1
		referrerInc["totalReferred"] = referralInc
		referrerInc["monthlyReferred"] = referralInc
		creatorInc["totalReferrals"] = referralInc
	}
	return referrerInc, creatorInc, referralInc
}

// tierUpdate checks the referrer's post-increment count against its stored
// tier. set is nil when nothing needs writing; a referrer without a stored
// tier always gets one.
func tierUpdate(r *models.Referrer) (up commission.Upgrade, set bson.M) {
	up = commission.CheckUpgrade(commission.TierName(r.CurrentTier), r.TotalReferred)
	if !up.ShouldUpgrade && r.CurrentTier != "" {
		return up, nil
	}
	return up, bson.M{"$set": bson.M{"currentTier": string(up.NewTier.Name)}}
}

func attributionUpsert(a *models.Attribution, now time.Time) (filter, update bson.M) {
	filter = bson.M{"creatorId": a.CreatorID, "memberUserId": a.MemberUserID}
	update = bson.M{"$setOnInsert": bson.M{
		"referrerId":   a.ReferrerID,
		"referralCode": a.ReferralCode,
		"createdAt":    now,
	}}
	return filter, update
}

// refundCommissionUpdate moves a commission's refund totals. The filter only
// matches while refundedAmount is still what the reversal was priced against.
func refundCommissionUpdate(in RefundCommit, now time.Time) (filter, update bson.M) {
	r := in.Reversal
	filter = bson.M{"_id": r.CommissionID, "refundedAmount": in.ExpectedRefunded}
	update = bson.M{
		"$inc": bson.M{
			"refundedAmount":   r.RefundAmount,
			"refundedMember":   r.MemberShare,
			"refundedCreator":  r.CreatorShare,
			"refundedPlatform": r.PlatformShare,
		},
		"$set": bson.M{"status": in.Status, "updatedAt": now},
	}
	return filter, update
}

func refundReferrerUpdate(r *models.CommissionReversal, now time.Time) bson.M {
	return bson.M{
		"$inc": bson.M{
			"lifetimeEarnings": r.MemberShare.Neg(),
			"monthlyEarnings":  r.MemberShare.Neg(),
		},
		"$set": bson.M{"updatedAt": now},
	}
}

func refundCreatorUpdate(r *models.CommissionReversal, now time.Time) bson.M {
	return bson.M{
		"$inc": bson.M{
			"totalRevenue":   r.RefundAmount.Neg(),
			"monthlyRevenue": r.RefundAmount.Neg(),
		},
		"$set": bson.M{"updatedAt": now},
	}
}
