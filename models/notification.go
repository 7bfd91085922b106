package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	NotificationCommissionEarned = "commission_earned"
	NotificationTierUpgrade      = "tier_upgrade"
	NotificationFirstReferral    = "first_referral"
	NotificationMilestone        = "milestone"
	NotificationCustomRate       = "custom_rate"
	NotificationPayoutSent       = "payout_sent"
)

// Notification is an in-app notification shown on the referrer dashboard.
type Notification struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID    string             `json:"userId" bson:"userId"`
	Title     string             `json:"title" bson:"title"`
	Message   string             `json:"message" bson:"message"`
	Type      string             `json:"type" bson:"type"`
	Data      interface{}        `json:"data,omitempty" bson:"data"`
	IsRead    bool               `json:"isRead" bson:"isRead"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}
