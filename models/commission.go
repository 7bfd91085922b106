package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentType decides whether a commission counts as a new referral.
type PaymentType string

const (
	PaymentTypeInitial   PaymentType = "initial"
	PaymentTypeRecurring PaymentType = "recurring"
)

const (
	CommissionStatusCommitted         = "committed"
	CommissionStatusPartiallyRefunded = "partially_refunded"
	CommissionStatusRefunded          = "refunded"
)

const (
	PayoutStatusPending = "pending"
	PayoutStatusPaid    = "paid"
	PayoutStatusFailed  = "failed"
	PayoutStatusSkipped = "skipped"
)

// Commission is the one record created per successful referred payment.
// ExternalPaymentID carries a unique index.
type Commission struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ExternalPaymentID string             `json:"externalPaymentId" bson:"externalPaymentId"`
	ReferrerID        primitive.ObjectID `json:"referrerId" bson:"referrerId"`
	CreatorID         primitive.ObjectID `json:"creatorId" bson:"creatorId"`
	MemberUserID      string             `json:"memberUserId" bson:"memberUserId"`
	PaymentType       PaymentType        `json:"paymentType" bson:"paymentType"`
	Currency          string             `json:"currency" bson:"currency"`

	SaleAmount    Money `json:"saleAmount" bson:"saleAmount"`
	MemberShare   Money `json:"memberShare" bson:"memberShare"`
	CreatorShare  Money `json:"creatorShare" bson:"creatorShare"`
	PlatformShare Money `json:"platformShare" bson:"platformShare"`

	AppliedTier       string `json:"appliedTier" bson:"appliedTier"`
	AppliedRateSource string `json:"appliedRateSource" bson:"appliedRateSource"`
	MemberRate        Money  `json:"memberRate" bson:"memberRate"`
	CreatorRate       Money  `json:"creatorRate" bson:"creatorRate"`
	PlatformRate      Money  `json:"platformRate" bson:"platformRate"` // nominal, before residual absorption

	Status           string `json:"status" bson:"status"`
	RefundedAmount   Money  `json:"refundedAmount" bson:"refundedAmount"`
	RefundedMember   Money  `json:"-" bson:"refundedMember"`
	RefundedCreator  Money  `json:"-" bson:"refundedCreator"`
	RefundedPlatform Money  `json:"-" bson:"refundedPlatform"`

	PayoutStatus     string     `json:"payoutStatus" bson:"payoutStatus"`
	PayoutTransferID string     `json:"payoutTransferId,omitempty" bson:"payoutTransferId,omitempty"`
	PayoutError      string     `json:"payoutError,omitempty" bson:"payoutError,omitempty"`
	PayoutAttempts   int        `json:"payoutAttempts" bson:"payoutAttempts"`
	PaidAt           *time.Time `json:"paidAt,omitempty" bson:"paidAt,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// CommissionReversal is created once per refund event, keyed by the refund's
// external id.
type CommissionReversal struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ExternalRefundID  string             `json:"externalRefundId" bson:"externalRefundId"`
	ExternalPaymentID string             `json:"externalPaymentId" bson:"externalPaymentId"`
	CommissionID      primitive.ObjectID `json:"commissionId" bson:"commissionId"`
	ReferrerID        primitive.ObjectID `json:"referrerId" bson:"referrerId"`
	CreatorID         primitive.ObjectID `json:"creatorId" bson:"creatorId"`
	RefundAmount      Money              `json:"refundAmount" bson:"refundAmount"`
	MemberShare       Money              `json:"memberShare" bson:"memberShare"`
	CreatorShare      Money              `json:"creatorShare" bson:"creatorShare"`
	PlatformShare     Money              `json:"platformShare" bson:"platformShare"`
	Full              bool               `json:"full" bson:"full"`
	CreatedAt         time.Time          `json:"createdAt" bson:"createdAt"`
}
