package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Referrer is a community member who refers new paying members with their
// referral code. Counters are only ever changed with $inc.
type Referrer struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	CreatorID       primitive.ObjectID `json:"creatorId" bson:"creatorId"`
	UserID          string             `json:"userId" bson:"userId"`
	Email           string             `json:"email" bson:"email"`
	DisplayName     string             `json:"displayName" bson:"displayName"`
	FCMToken        string             `json:"-" bson:"fcmToken,omitempty"`
	PayoutAccountID string             `json:"-" bson:"payoutAccountId,omitempty"`
	ReferralCode    string             `json:"referralCode" bson:"referralCode"`

	TotalReferred    int    `json:"totalReferred" bson:"totalReferred"`
	MonthlyReferred  int    `json:"monthlyReferred" bson:"monthlyReferred"`
	LifetimeEarnings Money  `json:"lifetimeEarnings" bson:"lifetimeEarnings"`
	MonthlyEarnings  Money  `json:"monthlyEarnings" bson:"monthlyEarnings"`
	CurrentTier      string `json:"currentTier" bson:"currentTier"`

	// CustomCommissionRate overrides the tier member rate while set.
	CustomCommissionRate *Money     `json:"customCommissionRate,omitempty" bson:"customCommissionRate,omitempty"`
	CustomRateUpdatedAt  *time.Time `json:"customRateUpdatedAt,omitempty" bson:"customRateUpdatedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// JoinProgramRequest is sent by a member joining a creator's referral program.
type JoinProgramRequest struct {
	Email           string `json:"email" validate:"required,email"`
	DisplayName     string `json:"displayName" validate:"required,min=2,max=64"`
	FCMToken        string `json:"fcmToken"`
	PayoutAccountID string `json:"payoutAccountId"`
}

// CustomRateRequest sets a referrer's custom commission rate.
type CustomRateRequest struct {
	Rate float64 `json:"rate" validate:"required,gt=0,lte=1"`
}

// ReferrerStats is returned to a referrer's dashboard.
type ReferrerStats struct {
	Referrer        *Referrer `json:"referrer"`
	CurrentTier     string    `json:"currentTier"`
	MemberRate      string    `json:"memberRate"`
	RateSource      string    `json:"rateSource"`
	NextTier        string    `json:"nextTier,omitempty"`
	ReferralsToNext int       `json:"referralsToNextTier,omitempty"`
	ReferralLink    string    `json:"referralLink"`

	RecentCommissions []Commission `json:"recentCommissions,omitempty"`
}
