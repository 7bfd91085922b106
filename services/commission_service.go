package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/HSouheill/referral_backend/commission"
	"github.com/HSouheill/referral_backend/logger"
	"github.com/HSouheill/referral_backend/metrics"
	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/repositories"
)

// Outcome is how a webhook event ended.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkipped   Outcome = "skipped"
)

// Skip reasons.
const (
	ReasonNonSubscription = "non_subscription"
	ReasonUnknownCreator  = "unknown_creator"
	ReasonNoReferrer      = "no_referrer"
	ReasonSelfReferral    = "self_referral"
	ReasonUnknownPayment  = "unknown_payment"
)

// PaymentEvent is a successful payment reported by the payment platform.
type PaymentEvent struct {
	ExternalPaymentID string
	AmountCents       int64
	Currency          string
	MemberUserID      string
	ExternalCompanyID string
	ReferralCode      string
	PaymentType       models.PaymentType
	Subscription      bool
}

// PaymentEventFromWebhook maps a payment.succeeded payload.
func PaymentEventFromWebhook(p models.PaymentData) PaymentEvent {
	return PaymentEvent{
		ExternalPaymentID: p.ID,
		AmountCents:       p.FinalAmount,
		Currency:          strings.ToLower(p.Currency),
		MemberUserID:      p.UserID,
		ExternalCompanyID: p.CompanyID,
		ReferralCode:      p.ReferralCode(),
		PaymentType:       p.PaymentType(),
		Subscription:      p.IsSubscription(),
	}
}

// RefundEvent is a refund reported by the payment platform.
type RefundEvent struct {
	ExternalRefundID  string
	ExternalPaymentID string
	AmountCents       int64
}

func RefundEventFromWebhook(r models.RefundData) RefundEvent {
	return RefundEvent{
		ExternalRefundID:  r.ID,
		ExternalPaymentID: r.PaymentID,
		AmountCents:       r.Amount,
	}
}

// PaymentResult is the answer to a processed payment. Commission is set for
// committed and duplicate outcomes.
type PaymentResult struct {
	Outcome    Outcome
	Reason     string
	Commission *models.Commission
	Upgrade    *commission.Upgrade
}

type RefundResult struct {
	Outcome    Outcome
	Reason     string
	Reversal   *models.CommissionReversal
	Commission *models.Commission
}

// CommissionService turns payment platform events into commission records.
type CommissionService struct {
	store CommissionStore
	queue TaskQueue
}

func NewCommissionService(store CommissionStore, queue TaskQueue) *CommissionService {
	return &CommissionService{store: store, queue: queue}
}

// ProcessPayment validates the event, resolves the referrer, prices the sale
// and commits the commission with every aggregate update at once. Replays of
// a committed payment return the existing commission. Notifications and the
// payout are queued after the commit and never affect the result.
func (s *CommissionService) ProcessPayment(ctx context.Context, ev PaymentEvent) (*PaymentResult, error) {
	sale, err := validatePayment(ev)
	if err != nil {
		metrics.PaymentsProcessed.WithLabelValues("invalid").Inc()
		return nil, err
	}

	existing, err := s.store.FindCommissionByPaymentID(ctx, ev.ExternalPaymentID)
	if err == nil {
		return s.duplicate(existing), nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}

	if !ev.Subscription {
		return s.skipped(ReasonNonSubscription), nil
	}

	creator, err := s.store.FindCreatorByExternalID(ctx, ev.ExternalCompanyID)
	if errors.Is(err, repositories.ErrNotFound) {
		return s.skipped(ReasonUnknownCreator), nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve creator: %w", err)
	}

	referrer, viaCode, err := s.resolveReferrer(ctx, creator, ev)
	if err != nil {
		return nil, err
	}
	if referrer == nil {
		return s.skipped(ReasonNoReferrer), nil
	}
	if referrer.UserID == ev.MemberUserID {
		return s.skipped(ReasonSelfReferral), nil
	}

	split, err := commission.Calculate(sale, snapshotOf(referrer))
	if err != nil {
		metrics.PaymentsProcessed.WithLabelValues("invalid").Inc()
		return nil, err
	}

	rec := newCommission(ev, creator, referrer, split)
	in := repositories.CommissionCommit{Commission: rec}
	if ev.PaymentType == models.PaymentTypeInitial && viaCode {
		in.Attribution = &models.Attribution{
			CreatorID:    creator.ID,
			MemberUserID: ev.MemberUserID,
			ReferrerID:   referrer.ID,
			ReferralCode: referrer.ReferralCode,
		}
	}

	out, err := s.store.CommitCommission(ctx, in)
	if errors.Is(err, repositories.ErrDuplicate) {
		// Lost the race against a concurrent delivery of the same payment.
		existing, lookupErr := s.store.FindCommissionByPaymentID(ctx, ev.ExternalPaymentID)
		if lookupErr != nil {
			return nil, fmt.Errorf("reload duplicate commission: %w", lookupErr)
		}
		return s.duplicate(existing), nil
	}
	if err != nil {
		metrics.PaymentsProcessed.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("commit commission: %w", err)
	}

	metrics.PaymentsProcessed.WithLabelValues(string(OutcomeCommitted)).Inc()
	metrics.CommissionAmount.WithLabelValues("member").Add(split.MemberShare.InexactFloat64())
	metrics.CommissionAmount.WithLabelValues("creator").Add(split.CreatorShare.InexactFloat64())
	metrics.CommissionAmount.WithLabelValues("platform").Add(split.PlatformShare.InexactFloat64())

	logger.Info("Commission %s committed for payment %s: member=%s creator=%s platform=%s tier=%s source=%s",
		out.Commission.ID.Hex(), ev.ExternalPaymentID,
		split.MemberShare.StringFixed(2), split.CreatorShare.StringFixed(2), split.PlatformShare.StringFixed(2),
		split.AppliedTier, split.Source)

	s.afterCommit(ctx, out)

	res := &PaymentResult{Outcome: OutcomeCommitted, Commission: out.Commission}
	if out.Upgrade.ShouldUpgrade {
		up := out.Upgrade
		res.Upgrade = &up
	}
	return res, nil
}

func validatePayment(ev PaymentEvent) (decimal.Decimal, error) {
	if strings.TrimSpace(ev.ExternalPaymentID) == "" {
		return decimal.Zero, invalidEvent("payment id is required")
	}
	if ev.MemberUserID == "" {
		return decimal.Zero, invalidEvent("payment %s has no user id", ev.ExternalPaymentID)
	}
	if ev.ExternalCompanyID == "" {
		return decimal.Zero, invalidEvent("payment %s has no company id", ev.ExternalPaymentID)
	}
	return commission.SaleAmountFromCents(ev.AmountCents)
}

// resolveReferrer finds the referrer by the payment's referral code, falling
// back to the member's attribution. viaCode reports which path matched. A
// code belonging to another creator's program is ignored.
func (s *CommissionService) resolveReferrer(ctx context.Context, creator *models.Creator, ev PaymentEvent) (*models.Referrer, bool, error) {
	if code := normalizeCode(ev.ReferralCode); code != "" {
		r, err := s.store.FindReferrerByCode(ctx, code)
		switch {
		case err == nil && r.CreatorID == creator.ID:
			return r, true, nil
		case err == nil:
			logger.Warn("Referral code %s on payment %s belongs to another creator", code, ev.ExternalPaymentID)
		case !errors.Is(err, repositories.ErrNotFound):
			return nil, false, fmt.Errorf("resolve referral code: %w", err)
		}
	}

	a, err := s.store.FindAttribution(ctx, creator.ID, ev.MemberUserID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("resolve attribution: %w", err)
	}
	r, err := s.store.FindReferrerByID(ctx, a.ReferrerID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load attributed referrer: %w", err)
	}
	return r, false, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func snapshotOf(r *models.Referrer) commission.Snapshot {
	snap := commission.Snapshot{TotalReferred: r.TotalReferred}
	if r.CustomCommissionRate != nil {
		rate := r.CustomCommissionRate.Decimal
		snap.CustomRate = &rate
	}
	return snap
}

func newCommission(ev PaymentEvent, creator *models.Creator, referrer *models.Referrer, split commission.Split) *models.Commission {
	return &models.Commission{
		ExternalPaymentID: ev.ExternalPaymentID,
		ReferrerID:        referrer.ID,
		CreatorID:         creator.ID,
		MemberUserID:      ev.MemberUserID,
		PaymentType:       ev.PaymentType,
		Currency:          ev.Currency,
		SaleAmount:        models.NewMoney(split.SaleAmount),
		MemberShare:       models.NewMoney(split.MemberShare),
		CreatorShare:      models.NewMoney(split.CreatorShare),
		PlatformShare:     models.NewMoney(split.PlatformShare),
		AppliedTier:       string(split.AppliedTier),
		AppliedRateSource: string(split.Source),
		MemberRate:        models.NewMoney(split.Rates.Member),
		CreatorRate:       models.NewMoney(split.Rates.Creator),
		PlatformRate:      models.NewMoney(split.Rates.Platform),
		Status:            models.CommissionStatusCommitted,
		RefundedAmount:    models.NewMoney(decimal.Zero),
		RefundedMember:    models.NewMoney(decimal.Zero),
		RefundedCreator:   models.NewMoney(decimal.Zero),
		RefundedPlatform:  models.NewMoney(decimal.Zero),
		PayoutStatus:      models.PayoutStatusPending,
	}
}

// afterCommit queues the best-effort side effects of a committed commission.
// The commit is final, so queueing does not follow the request's lifetime.
func (s *CommissionService) afterCommit(ctx context.Context, out *repositories.CommitOutcome) {
	ctx, cancel := detach(ctx)
	defer cancel()

	c := out.Commission
	referrerID := c.ReferrerID.Hex()

	enqueue(ctx, s.queue, TaskNotifyCommission, CommissionNotice{
		CommissionID: c.ID.Hex(),
		ReferrerID:   referrerID,
	})

	if out.Upgrade.ShouldUpgrade {
		metrics.TierUpgrades.WithLabelValues(string(out.Upgrade.NewTier.Name)).Inc()
		enqueue(ctx, s.queue, TaskNotifyTierUpgrade, TierUpgradeNotice{
			ReferrerID:    referrerID,
			PreviousTier:  string(out.Upgrade.PreviousTier),
			NewTier:       string(out.Upgrade.NewTier.Name),
			NewMemberRate: out.Upgrade.NewTier.MemberRate.String(),
			RateIncrease:  out.Upgrade.RateIncrease.String(),
			TotalReferred: out.Referrer.TotalReferred,
		})
	}

	total := out.Referrer.TotalReferred
	if commission.IsFirstReferral(out.PreviousTotalReferred, total) {
		enqueue(ctx, s.queue, TaskNotifyFirstReferral, FirstReferralNotice{ReferrerID: referrerID})
	}
	if m, ok := commission.MilestoneCrossed(out.PreviousTotalReferred, total); ok {
		enqueue(ctx, s.queue, TaskNotifyMilestone, MilestoneNotice{ReferrerID: referrerID, Milestone: m})
	}

	if c.MemberShare.IsPositive() {
		enqueue(ctx, s.queue, TaskPayoutTransfer, PayoutTask{CommissionID: c.ID.Hex()})
	}
}

func (s *CommissionService) duplicate(c *models.Commission) *PaymentResult {
	metrics.PaymentsProcessed.WithLabelValues(string(OutcomeDuplicate)).Inc()
	return &PaymentResult{Outcome: OutcomeDuplicate, Commission: c}
}

func (s *CommissionService) skipped(reason string) *PaymentResult {
	metrics.PaymentsProcessed.WithLabelValues(string(OutcomeSkipped)).Inc()
	return &PaymentResult{Outcome: OutcomeSkipped, Reason: reason}
}

// ProcessRefund reverses the commission of a refunded payment, in full or
// proportionally. It is idempotent on the refund id. Referral counts are
// never decremented.
func (s *CommissionService) ProcessRefund(ctx context.Context, ev RefundEvent) (*RefundResult, error) {
	if strings.TrimSpace(ev.ExternalRefundID) == "" || strings.TrimSpace(ev.ExternalPaymentID) == "" {
		metrics.RefundsProcessed.WithLabelValues("invalid").Inc()
		return nil, invalidEvent("refund id and payment id are required")
	}
	amount, err := commission.SaleAmountFromCents(ev.AmountCents)
	if err != nil {
		metrics.RefundsProcessed.WithLabelValues("invalid").Inc()
		return nil, err
	}

	if existing, err := s.store.FindReversalByRefundID(ctx, ev.ExternalRefundID); err == nil {
		metrics.RefundsProcessed.WithLabelValues(string(OutcomeDuplicate)).Inc()
		return &RefundResult{Outcome: OutcomeDuplicate, Reversal: existing}, nil
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("refund idempotency lookup: %w", err)
	}

	c, err := s.store.FindCommissionByPaymentID(ctx, ev.ExternalPaymentID)
	if errors.Is(err, repositories.ErrNotFound) {
		metrics.RefundsProcessed.WithLabelValues(string(OutcomeSkipped)).Inc()
		return &RefundResult{Outcome: OutcomeSkipped, Reason: ReasonUnknownPayment}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load commission: %w", err)
	}

	rev, err := commission.CalculateReversal(originalShares(c), refundedShares(c), amount)
	if err != nil {
		metrics.RefundsProcessed.WithLabelValues("invalid").Inc()
		return nil, err
	}

	reversal := &models.CommissionReversal{
		ExternalRefundID:  ev.ExternalRefundID,
		ExternalPaymentID: ev.ExternalPaymentID,
		CommissionID:      c.ID,
		ReferrerID:        c.ReferrerID,
		CreatorID:         c.CreatorID,
		RefundAmount:      models.NewMoney(rev.Sale),
		MemberShare:       models.NewMoney(rev.Member),
		CreatorShare:      models.NewMoney(rev.Creator),
		PlatformShare:     models.NewMoney(rev.Platform),
		Full:              rev.Full,
	}
	status := models.CommissionStatusPartiallyRefunded
	if rev.Full {
		status = models.CommissionStatusRefunded
	}

	err = s.store.CommitRefund(ctx, repositories.RefundCommit{
		Reversal:         reversal,
		ExpectedRefunded: c.RefundedAmount,
		Status:           status,
	})
	if errors.Is(err, repositories.ErrDuplicate) {
		existing, lookupErr := s.store.FindReversalByRefundID(ctx, ev.ExternalRefundID)
		if lookupErr != nil {
			return nil, fmt.Errorf("reload duplicate reversal: %w", lookupErr)
		}
		metrics.RefundsProcessed.WithLabelValues(string(OutcomeDuplicate)).Inc()
		return &RefundResult{Outcome: OutcomeDuplicate, Reversal: existing}, nil
	}
	if err != nil {
		metrics.RefundsProcessed.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("commit refund: %w", err)
	}

	metrics.RefundsProcessed.WithLabelValues(string(OutcomeCommitted)).Inc()
	logger.Info("Refund %s reversed commission %s: amount=%s member=%s full=%t",
		ev.ExternalRefundID, c.ID.Hex(), rev.Sale.StringFixed(2), rev.Member.StringFixed(2), rev.Full)

	c.Status = status
	c.RefundedAmount = models.NewMoney(c.RefundedAmount.Add(rev.Sale))
	c.RefundedMember = models.NewMoney(c.RefundedMember.Add(rev.Member))
	c.RefundedCreator = models.NewMoney(c.RefundedCreator.Add(rev.Creator))
	c.RefundedPlatform = models.NewMoney(c.RefundedPlatform.Add(rev.Platform))
	return &RefundResult{Outcome: OutcomeCommitted, Reversal: reversal, Commission: c}, nil
}

func originalShares(c *models.Commission) commission.Shares {
	return commission.Shares{
		Sale:     c.SaleAmount.Decimal,
		Member:   c.MemberShare.Decimal,
		Creator:  c.CreatorShare.Decimal,
		Platform: c.PlatformShare.Decimal,
	}
}

func refundedShares(c *models.Commission) commission.Shares {
	return commission.Shares{
		Sale:     c.RefundedAmount.Decimal,
		Member:   c.RefundedMember.Decimal,
		Creator:  c.RefundedCreator.Decimal,
		Platform: c.RefundedPlatform.Decimal,
	}
}
