package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskKind names a post-commit side effect.
type TaskKind string

const (
	TaskNotifyCommission    TaskKind = "notify_commission"
	TaskNotifyTierUpgrade   TaskKind = "notify_tier_upgrade"
	TaskNotifyFirstReferral TaskKind = "notify_first_referral"
	TaskNotifyMilestone     TaskKind = "notify_milestone"
	TaskNotifyPayoutSent    TaskKind = "notify_payout_sent"
	TaskEmailCustomRate     TaskKind = "email_custom_rate"
	TaskPushCustomRate      TaskKind = "push_custom_rate"
	TaskPayoutTransfer      TaskKind = "payout_transfer"
)

// Task is one unit of best-effort work. Tasks are JSON so they can sit in a
// Redis list.
type Task struct {
	ID         string          `json:"id"`
	Kind       TaskKind        `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// NewTask wraps payload into a task of the given kind.
func NewTask(kind TaskKind, payload interface{}) (Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the task payload into v.
func (t Task) Decode(v interface{}) error {
	if err := json.Unmarshal(t.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", t.Kind, err)
	}
	return nil
}

// CommissionNotice is the payload of commission and payout notifications.
type CommissionNotice struct {
	CommissionID string `json:"commissionId"`
	ReferrerID   string `json:"referrerId"`
}

type TierUpgradeNotice struct {
	ReferrerID    string `json:"referrerId"`
	PreviousTier  string `json:"previousTier"`
	NewTier       string `json:"newTier"`
	NewMemberRate string `json:"newMemberRate"`
	RateIncrease  string `json:"rateIncrease"`
	TotalReferred int    `json:"totalReferred"`
}

type FirstReferralNotice struct {
	ReferrerID string `json:"referrerId"`
}

type MilestoneNotice struct {
	ReferrerID string `json:"referrerId"`
	Milestone  int    `json:"milestone"`
}

// CustomRateNotice describes a custom rate being set or cleared. Rate is
// empty when the rate was cleared.
type CustomRateNotice struct {
	ReferrerID   string `json:"referrerId"`
	CreatorName  string `json:"creatorName"`
	Rate         string `json:"rate,omitempty"`
	PreviousRate string `json:"previousRate,omitempty"`
}

type PayoutTask struct {
	CommissionID string `json:"commissionId"`
}
