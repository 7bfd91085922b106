package models

import (
	"encoding/json"
	"strings"
)

const (
	WebhookActionPaymentSucceeded = "payment.succeeded"
	WebhookActionRefundCreated    = "refund.created"
)

// WebhookEnvelope is the outer body the payment platform posts.
type WebhookEnvelope struct {
	Action string          `json:"action" validate:"required"`
	Data   json.RawMessage `json:"data" validate:"required"`
}

// PaymentData is the payload of a payment.succeeded webhook. Amounts are in
// minor units.
type PaymentData struct {
	ID            string            `json:"id" validate:"required"`
	FinalAmount   int64             `json:"final_amount" validate:"gt=0"`
	Currency      string            `json:"currency"`
	UserID        string            `json:"user_id" validate:"required"`
	CompanyID     string            `json:"company_id" validate:"required"`
	MembershipID  string            `json:"membership_id"`
	PlanType      string            `json:"plan_type"`
	BillingReason string            `json:"billing_reason"`
	AffiliateCode string            `json:"affiliate_code"`
	Metadata      map[string]string `json:"metadata"`
}

// IsSubscription reports whether the payment belongs to a recurring plan.
// One-time product purchases never earn commission.
func (p PaymentData) IsSubscription() bool {
	switch strings.ToLower(p.PlanType) {
	case "renewal", "subscription":
		return true
	case "one_time":
		return false
	}
	return strings.HasPrefix(p.BillingReason, "subscription")
}

// PaymentType infers whether this is the first payment of a subscription.
func (p PaymentData) PaymentType() PaymentType {
	switch p.BillingReason {
	case "subscription_create", "initial":
		return PaymentTypeInitial
	}
	return PaymentTypeRecurring
}

// ReferralCode returns the code the member signed up with, if any.
func (p PaymentData) ReferralCode() string {
	if p.AffiliateCode != "" {
		return strings.TrimSpace(p.AffiliateCode)
	}
	for _, key := range []string{"referral_code", "referralCode", "ref"} {
		if code, ok := p.Metadata[key]; ok && code != "" {
			return strings.TrimSpace(code)
		}
	}
	return ""
}

// RefundData is the payload of a refund.created webhook.
type RefundData struct {
	ID        string `json:"id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
	Amount    int64  `json:"amount" validate:"gt=0"`
}

// WebhookResult is what the webhook endpoint answers with.
type WebhookResult struct {
	OK           bool   `json:"ok"`
	Message      string `json:"message,omitempty"`
	Skipped      bool   `json:"skipped,omitempty"`
	Reason       string `json:"reason,omitempty"`
	CommissionID string `json:"commissionId,omitempty"`
	ReversalID   string `json:"reversalId,omitempty"`
}
