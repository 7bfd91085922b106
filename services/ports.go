package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/repositories"
)

// CommissionStore is the persistence the payment and refund flows need.
// *repositories.Store implements it.
type CommissionStore interface {
	FindCommissionByPaymentID(ctx context.Context, paymentID string) (*models.Commission, error)
	FindReversalByRefundID(ctx context.Context, refundID string) (*models.CommissionReversal, error)
	FindCreatorByExternalID(ctx context.Context, externalCompanyID string) (*models.Creator, error)
	FindReferrerByCode(ctx context.Context, code string) (*models.Referrer, error)
	FindReferrerByID(ctx context.Context, id primitive.ObjectID) (*models.Referrer, error)
	FindAttribution(ctx context.Context, creatorID primitive.ObjectID, memberUserID string) (*models.Attribution, error)
	CommitCommission(ctx context.Context, in repositories.CommissionCommit) (*repositories.CommitOutcome, error)
	CommitRefund(ctx context.Context, in repositories.RefundCommit) error
}

// ProgramStore backs creator onboarding, program membership and custom
// rates.
type ProgramStore interface {
	FindCreatorByID(ctx context.Context, id primitive.ObjectID) (*models.Creator, error)
	FindReferrerByID(ctx context.Context, id primitive.ObjectID) (*models.Referrer, error)
	FindReferrerByUser(ctx context.Context, creatorID primitive.ObjectID, userID string) (*models.Referrer, error)
	ListReferrersByUser(ctx context.Context, userID string) ([]models.Referrer, error)
	ListCommissionsByReferrer(ctx context.Context, referrerID primitive.ObjectID, limit int64) ([]models.Commission, error)
	CreateCreator(ctx context.Context, c *models.Creator) error
	CreateReferrer(ctx context.Context, r *models.Referrer) error
	SetCustomRate(ctx context.Context, referrerID primitive.ObjectID, rate *models.Money) (*models.Referrer, error)
	UpdateFCMToken(ctx context.Context, userID, token string) (int64, error)
}

// NotificationStore is what the notifier reads and writes.
type NotificationStore interface {
	FindReferrerByID(ctx context.Context, id primitive.ObjectID) (*models.Referrer, error)
	FindCommissionByID(ctx context.Context, id primitive.ObjectID) (*models.Commission, error)
	SaveNotification(ctx context.Context, n *models.Notification) error
}

// PayoutStore is what the payout flow reads and writes.
type PayoutStore interface {
	FindCommissionByID(ctx context.Context, id primitive.ObjectID) (*models.Commission, error)
	FindReferrerByID(ctx context.Context, id primitive.ObjectID) (*models.Referrer, error)
	RecordPayout(ctx context.Context, commissionID primitive.ObjectID, result repositories.PayoutResult) error
	ListPayoutsToRetry(ctx context.Context, maxAttempts int, pendingBefore time.Time, limit int64) ([]models.Commission, error)
}

// Mailer sends a plain text email.
type Mailer interface {
	Send(to, subject, body string) error
}

// PushSender delivers a push notification to one device token.
type PushSender interface {
	Push(ctx context.Context, token, title, body string, data map[string]string) error
}

// RealtimePublisher pushes an in-app notification to a connected dashboard.
type RealtimePublisher interface {
	Publish(userID string, n *models.Notification) error
}

// PayoutClient moves money to a referrer's payout account.
type PayoutClient interface {
	Transfer(ctx context.Context, req models.PayoutTransferRequest) (transferID string, err error)
}
