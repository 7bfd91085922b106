package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Creator owns a community on the payment platform. ExternalCompanyID is the
// platform's id for the community and is unique.
type Creator struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	OwnerUserID       string             `json:"ownerUserId" bson:"ownerUserId"`
	ExternalCompanyID string             `json:"externalCompanyId" bson:"externalCompanyId"`
	Name              string             `json:"name" bson:"name"`
	Email             string             `json:"email" bson:"email"`
	FCMToken          string             `json:"-" bson:"fcmToken,omitempty"`

	TotalRevenue   Money `json:"totalRevenue" bson:"totalRevenue"`
	MonthlyRevenue Money `json:"monthlyRevenue" bson:"monthlyRevenue"`
	TotalReferrals int   `json:"totalReferrals" bson:"totalReferrals"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// OnboardCreatorRequest registers a community.
type OnboardCreatorRequest struct {
	ExternalCompanyID string `json:"externalCompanyId" validate:"required"`
	Name              string `json:"name" validate:"required,min=2,max=100"`
	Email             string `json:"email" validate:"required,email"`
	FCMToken          string `json:"fcmToken"`
}

// Attribution ties a paying member to the referrer who brought them in, so
// that recurring payments without a referral code still find their referrer.
// Unique on (creatorId, memberUserId).
type Attribution struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	CreatorID    primitive.ObjectID `json:"creatorId" bson:"creatorId"`
	MemberUserID string             `json:"memberUserId" bson:"memberUserId"`
	ReferrerID   primitive.ObjectID `json:"referrerId" bson:"referrerId"`
	ReferralCode string             `json:"referralCode" bson:"referralCode"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
}
