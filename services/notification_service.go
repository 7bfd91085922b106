package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/referral_backend/logger"
	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/utils"
)

// Notifier delivers referrer notifications. Every channel is optional: a nil
// mailer, push sender or realtime publisher just skips that channel.
type Notifier struct {
	store    NotificationStore
	mailer   Mailer
	push     PushSender
	realtime RealtimePublisher
}

func NewNotifier(store NotificationStore, mailer Mailer, push PushSender, realtime RealtimePublisher) *Notifier {
	return &Notifier{
		store:    store,
		mailer:   mailer,
		push:     push,
		realtime: realtime,
	}
}

// Register wires the notification task handlers into the pool.
func (n *Notifier) Register(p *WorkerPool) {
	p.Handle(TaskNotifyCommission, n.HandleCommissionEarned)
	p.Handle(TaskNotifyTierUpgrade, n.HandleTierUpgrade)
	p.Handle(TaskNotifyFirstReferral, n.HandleFirstReferral)
	p.Handle(TaskNotifyMilestone, n.HandleMilestone)
	p.Handle(TaskNotifyPayoutSent, n.HandlePayoutSent)
	p.Handle(TaskEmailCustomRate, n.HandleCustomRateEmail)
	p.Handle(TaskPushCustomRate, n.HandleCustomRatePush)
}

func (n *Notifier) HandleCommissionEarned(ctx context.Context, task Task) error {
	var notice CommissionNotice
	if err := task.Decode(&notice); err != nil {
		return err
	}
	r, c, err := n.loadCommission(ctx, notice)
	if err != nil {
		return err
	}

	title := "You earned a commission"
	msg := fmt.Sprintf("A member you referred paid %s. Your share is %s.",
		utils.FormatMoney(c.SaleAmount.Decimal, c.Currency),
		utils.FormatMoney(c.MemberShare.Decimal, c.Currency))
	return n.deliver(ctx, r, models.NotificationCommissionEarned, title, msg, map[string]string{
		"commissionId": c.ID.Hex(),
		"amount":       c.MemberShare.StringFixed(2),
		"tier":         c.AppliedTier,
	})
}

func (n *Notifier) HandleTierUpgrade(ctx context.Context, task Task) error {
	var notice TierUpgradeNotice
	if err := task.Decode(&notice); err != nil {
		return err
	}
	r, err := n.loadReferrer(ctx, notice.ReferrerID)
	if err != nil {
		return err
	}

	rate, _ := decimal.NewFromString(notice.NewMemberRate)
	title := fmt.Sprintf("Welcome to %s", notice.NewTier)
	msg := fmt.Sprintf("With %d referrals you reached the %s tier. You now earn %s on every referred payment.",
		notice.TotalReferred, notice.NewTier, utils.FormatRate(rate))

	errs := []error{n.deliver(ctx, r, models.NotificationTierUpgrade, title, msg, map[string]string{
		"previousTier": notice.PreviousTier,
		"newTier":      notice.NewTier,
		"memberRate":   notice.NewMemberRate,
	})}
	if n.mailer != nil && r.Email != "" {
		body := fmt.Sprintf("Hi %s,\n\n%s\n\nKeep sharing your referral code %s.\n", r.DisplayName, msg, r.ReferralCode)
		if err := n.mailer.Send(r.Email, title, body); err != nil {
			errs = append(errs, fmt.Errorf("tier upgrade email: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) HandleFirstReferral(ctx context.Context, task Task) error {
	var notice FirstReferralNotice
	if err := task.Decode(&notice); err != nil {
		return err
	}
	r, err := n.loadReferrer(ctx, notice.ReferrerID)
	if err != nil {
		return err
	}
	return n.deliver(ctx, r, models.NotificationFirstReferral,
		"Your first referral!",
		"Someone joined with your referral code. Commissions on their payments now go to you.",
		nil)
}

func (n *Notifier) HandleMilestone(ctx context.Context, task Task) error {
	var notice MilestoneNotice
	if err := task.Decode(&notice); err != nil {
		return err
	}
	r, err := n.loadReferrer(ctx, notice.ReferrerID)
	if err != nil {
		return err
	}
	return n.deliver(ctx, r, models.NotificationMilestone,
		fmt.Sprintf("%d referrals", notice.Milestone),
		fmt.Sprintf("You have referred %d paying members. Thank you for growing the community!", notice.Milestone),
		map[string]string{"milestone": fmt.Sprintf("%d", notice.Milestone)})
}

func (n *Notifier) HandlePayoutSent(ctx context.Context, task Task) error {
	var notice CommissionNotice
	if err := task.Decode(&notice); err != nil {
		return err
	}
	r, c, err := n.loadCommission(ctx, notice)
	if err != nil {
		return err
	}
	paid := c.MemberShare.Sub(c.RefundedMember.Decimal)
	return n.deliver(ctx, r, models.NotificationPayoutSent,
		"Payout sent",
		fmt.Sprintf("%s is on its way to your payout account.", utils.FormatMoney(paid, c.Currency)),
		map[string]string{"commissionId": c.ID.Hex(), "transferId": c.PayoutTransferID})
}

// HandleCustomRateEmail emails a referrer about a custom rate change. The
// push counterpart runs as its own task so one channel failing does not
// hold back the other.
func (n *Notifier) HandleCustomRateEmail(ctx context.Context, task Task) error {
	if n.mailer == nil {
		logger.Debug("Email disabled, dropping task %s", task.ID)
		return nil
	}
	var notice CustomRateNotice
	if err := task.Decode(&notice); err != nil {
		return err
	}
	r, err := n.loadReferrer(ctx, notice.ReferrerID)
	if err != nil {
		return err
	}
	if r.Email == "" {
		return nil
	}
	title, msg := customRateCopy(notice)
	body := fmt.Sprintf("Hi %s,\n\n%s\n", r.DisplayName, msg)
	if err := n.mailer.Send(r.Email, title, body); err != nil {
		return fmt.Errorf("custom rate email: %w", err)
	}
	return nil
}

func (n *Notifier) HandleCustomRatePush(ctx context.Context, task Task) error {
	var notice CustomRateNotice
	if err := task.Decode(&notice); err != nil {
		return err
	}
	r, err := n.loadReferrer(ctx, notice.ReferrerID)
	if err != nil {
		return err
	}
	title, msg := customRateCopy(notice)
	return n.deliver(ctx, r, models.NotificationCustomRate, title, msg, map[string]string{
		"rate":         notice.Rate,
		"previousRate": notice.PreviousRate,
	})
}

func customRateCopy(notice CustomRateNotice) (title, msg string) {
	if notice.Rate == "" {
		return "Your commission rate changed",
			fmt.Sprintf("%s removed your custom commission rate. You now earn your tier's standard rate.", notice.CreatorName)
	}
	rate, _ := decimal.NewFromString(notice.Rate)
	return "You have a custom commission rate",
		fmt.Sprintf("%s set your commission rate to %s of every referred payment.", notice.CreatorName, utils.FormatRate(rate))
}

// deliver stores the in-app notification, then pushes it to a connected
// dashboard and to the referrer's device. Realtime misses are expected when
// the dashboard is closed and are not errors.
func (n *Notifier) deliver(ctx context.Context, r *models.Referrer, kind, title, msg string, data map[string]string) error {
	note := &models.Notification{
		UserID:  r.UserID,
		Title:   title,
		Message: msg,
		Type:    kind,
		Data:    data,
	}

	var errs []error
	if err := n.store.SaveNotification(ctx, note); err != nil {
		errs = append(errs, err)
	} else if n.realtime != nil {
		if err := n.realtime.Publish(r.UserID, note); err != nil {
			logger.Debug("Realtime notification to %s not delivered: %v", r.UserID, err)
		}
	}

	if n.push != nil && r.FCMToken != "" {
		pushData := map[string]string{"type": kind, "referrerId": r.ID.Hex()}
		for k, v := range data {
			pushData[k] = v
		}
		if err := n.push.Push(ctx, r.FCMToken, title, msg, pushData); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) loadReferrer(ctx context.Context, hexID string) (*models.Referrer, error) {
	id, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return nil, fmt.Errorf("referrer id %q: %w", hexID, err)
	}
	r, err := n.store.FindReferrerByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load referrer %s: %w", hexID, err)
	}
	return r, nil
}

func (n *Notifier) loadCommission(ctx context.Context, notice CommissionNotice) (*models.Referrer, *models.Commission, error) {
	id, err := primitive.ObjectIDFromHex(notice.CommissionID)
	if err != nil {
		return nil, nil, fmt.Errorf("commission id %q: %w", notice.CommissionID, err)
	}
	c, err := n.store.FindCommissionByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load commission %s: %w", notice.CommissionID, err)
	}
	r, err := n.loadReferrer(ctx, notice.ReferrerID)
	if err != nil {
		return nil, nil, err
	}
	return r, c, nil
}
