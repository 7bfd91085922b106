package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/referral_backend/commission"
	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/repositories"
)

// fakeStore is an in-memory stand-in for repositories.Store. CommitCommission
// and CommitRefund apply all their writes under one lock, mirroring the
// transactional behaviour of the real store.
type fakeStore struct {
	mu sync.Mutex

	commissions   map[string]*models.Commission
	reversals     map[string]*models.CommissionReversal
	referrers     map[primitive.ObjectID]*models.Referrer
	creators      map[primitive.ObjectID]*models.Creator
	attributions  map[string]*models.Attribution
	notifications []*models.Notification
	payouts       map[primitive.ObjectID][]repositories.PayoutResult

	commitErr error
	commits   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		commissions:  make(map[string]*models.Commission),
		reversals:    make(map[string]*models.CommissionReversal),
		referrers:    make(map[primitive.ObjectID]*models.Referrer),
		creators:     make(map[primitive.ObjectID]*models.Creator),
		attributions: make(map[string]*models.Attribution),
		payouts:      make(map[primitive.ObjectID][]repositories.PayoutResult),
	}
}

func attributionKey(creatorID primitive.ObjectID, member string) string {
	return creatorID.Hex() + "/" + member
}

func (f *fakeStore) addCreator(external, owner string) *models.Creator {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &models.Creator{
		ID:                primitive.NewObjectID(),
		OwnerUserID:       owner,
		ExternalCompanyID: external,
		Name:              "Yoga Club",
		Email:             "owner@example.com",
	}
	f.creators[c.ID] = c
	return c
}

func (f *fakeStore) addReferrer(creator *models.Creator, userID, code string, totalReferred int) *models.Referrer {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &models.Referrer{
		ID:              primitive.NewObjectID(),
		CreatorID:       creator.ID,
		UserID:          userID,
		Email:           userID + "@example.com",
		DisplayName:     userID,
		ReferralCode:    code,
		TotalReferred:   totalReferred,
		CurrentTier:     string(commission.ResolveTier(totalReferred).Name),
		PayoutAccountID: "acct_" + userID,
		FCMToken:        "token-" + userID,
	}
	f.referrers[r.ID] = r
	return r
}

func (f *fakeStore) referrer(id primitive.ObjectID) models.Referrer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.referrers[id]
}

func (f *fakeStore) creator(id primitive.ObjectID) models.Creator {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.creators[id]
}

func (f *fakeStore) commissionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commissions)
}

func (f *fakeStore) FindCommissionByPaymentID(_ context.Context, paymentID string) (*models.Commission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.commissions[paymentID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) FindCommissionByID(_ context.Context, id primitive.ObjectID) (*models.Commission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.commissions {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeStore) FindReversalByRefundID(_ context.Context, refundID string) (*models.CommissionReversal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reversals[refundID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) FindCreatorByExternalID(_ context.Context, external string) (*models.Creator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.creators {
		if c.ExternalCompanyID == external {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeStore) FindCreatorByID(_ context.Context, id primitive.ObjectID) (*models.Creator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.creators[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) FindReferrerByCode(_ context.Context, code string) (*models.Referrer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.referrers {
		if r.ReferralCode == code {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeStore) FindReferrerByID(_ context.Context, id primitive.ObjectID) (*models.Referrer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.referrers[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) FindReferrerByUser(_ context.Context, creatorID primitive.ObjectID, userID string) (*models.Referrer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.referrers {
		if r.CreatorID == creatorID && r.UserID == userID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeStore) ListReferrersByUser(_ context.Context, userID string) ([]models.Referrer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Referrer
	for _, r := range f.referrers {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

func (f *fakeStore) ListCommissionsByReferrer(_ context.Context, referrerID primitive.ObjectID, limit int64) ([]models.Commission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Commission
	for _, c := range f.commissions {
		if c.ReferrerID == referrerID && int64(len(out)) < limit {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStore) FindAttribution(_ context.Context, creatorID primitive.ObjectID, member string) (*models.Attribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attributions[attributionKey(creatorID, member)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) CreateCreator(_ context.Context, c *models.Creator) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.creators {
		if existing.ExternalCompanyID == c.ExternalCompanyID {
			return repositories.ErrDuplicate
		}
	}
	c.ID = primitive.NewObjectID()
	cp := *c
	f.creators[c.ID] = &cp
	return nil
}

func (f *fakeStore) CreateReferrer(_ context.Context, r *models.Referrer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.referrers {
		if existing.ReferralCode == r.ReferralCode ||
			(existing.CreatorID == r.CreatorID && existing.UserID == r.UserID) {
			return repositories.ErrDuplicate
		}
	}
	r.ID = primitive.NewObjectID()
	r.CurrentTier = string(commission.FloorTier().Name)
	cp := *r
	f.referrers[r.ID] = &cp
	return nil
}

func (f *fakeStore) SetCustomRate(_ context.Context, referrerID primitive.ObjectID, rate *models.Money) (*models.Referrer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.referrers[referrerID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	before := *r
	if rate != nil {
		v := *rate
		r.CustomCommissionRate = &v
	} else {
		r.CustomCommissionRate = nil
	}
	return &before, nil
}

func (f *fakeStore) UpdateFCMToken(_ context.Context, userID, token string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.referrers {
		if r.UserID == userID {
			r.FCMToken = token
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CommitCommission(_ context.Context, in repositories.CommissionCommit) (*repositories.CommitOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	if f.commitErr != nil {
		return nil, f.commitErr
	}

	c := in.Commission
	if _, dup := f.commissions[c.ExternalPaymentID]; dup {
		return nil, repositories.ErrDuplicate
	}
	r, ok := f.referrers[c.ReferrerID]
	if !ok {
		return nil, fmt.Errorf("update referrer aggregates: %w", repositories.ErrNotFound)
	}
	cr, ok := f.creators[c.CreatorID]
	if !ok {
		return nil, fmt.Errorf("update creator aggregates: %w", repositories.ErrNotFound)
	}

	c.ID = primitive.NewObjectID()
	c.CreatedAt = time.Now().UTC()
	stored := *c
	f.commissions[c.ExternalPaymentID] = &stored

	prev := r.TotalReferred
	initial := c.PaymentType == models.PaymentTypeInitial
	r.LifetimeEarnings = models.NewMoney(r.LifetimeEarnings.Add(c.MemberShare.Decimal))
	r.MonthlyEarnings = models.NewMoney(r.MonthlyEarnings.Add(c.MemberShare.Decimal))
	cr.TotalRevenue = models.NewMoney(cr.TotalRevenue.Add(c.SaleAmount.Decimal))
	cr.MonthlyRevenue = models.NewMoney(cr.MonthlyRevenue.Add(c.SaleAmount.Decimal))
	if initial {
		r.TotalReferred++
		r.MonthlyReferred++
		cr.TotalReferrals++
	}
	up := commission.CheckUpgrade(commission.TierName(r.CurrentTier), r.TotalReferred)
	if up.ShouldUpgrade || r.CurrentTier == "" {
		r.CurrentTier = string(up.NewTier.Name)
	}
	if initial && in.Attribution != nil {
		key := attributionKey(in.Attribution.CreatorID, in.Attribution.MemberUserID)
		if _, exists := f.attributions[key]; !exists {
			a := *in.Attribution
			f.attributions[key] = &a
		}
	}

	after := *r
	return &repositories.CommitOutcome{
		Commission:            c,
		Referrer:              &after,
		PreviousTotalReferred: prev,
		Upgrade:               up,
	}, nil
}

func (f *fakeStore) CommitRefund(_ context.Context, in repositories.RefundCommit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rev := in.Reversal
	if _, dup := f.reversals[rev.ExternalRefundID]; dup {
		return repositories.ErrDuplicate
	}
	c, ok := f.commissions[rev.ExternalPaymentID]
	if !ok || !c.RefundedAmount.Equal(in.ExpectedRefunded.Decimal) {
		return repositories.ErrConflict
	}

	rev.ID = primitive.NewObjectID()
	stored := *rev
	f.reversals[rev.ExternalRefundID] = &stored

	c.Status = in.Status
	c.RefundedAmount = models.NewMoney(c.RefundedAmount.Add(rev.RefundAmount.Decimal))
	c.RefundedMember = models.NewMoney(c.RefundedMember.Add(rev.MemberShare.Decimal))
	c.RefundedCreator = models.NewMoney(c.RefundedCreator.Add(rev.CreatorShare.Decimal))
	c.RefundedPlatform = models.NewMoney(c.RefundedPlatform.Add(rev.PlatformShare.Decimal))

	r := f.referrers[rev.ReferrerID]
	r.LifetimeEarnings = models.NewMoney(r.LifetimeEarnings.Sub(rev.MemberShare.Decimal))
	r.MonthlyEarnings = models.NewMoney(r.MonthlyEarnings.Sub(rev.MemberShare.Decimal))
	cr := f.creators[rev.CreatorID]
	cr.TotalRevenue = models.NewMoney(cr.TotalRevenue.Sub(rev.RefundAmount.Decimal))
	cr.MonthlyRevenue = models.NewMoney(cr.MonthlyRevenue.Sub(rev.RefundAmount.Decimal))
	return nil
}

func (f *fakeStore) SaveNotification(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = primitive.NewObjectID()
	f.notifications = append(f.notifications, n)
	return nil
}

func (f *fakeStore) RecordPayout(_ context.Context, id primitive.ObjectID, result repositories.PayoutResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.commissions {
		if c.ID == id {
			c.PayoutStatus = result.Status
			c.PayoutError = result.Error
			if result.TransferID != "" {
				c.PayoutTransferID = result.TransferID
			}
			if result.Status == models.PayoutStatusPaid || result.Status == models.PayoutStatusFailed {
				c.PayoutAttempts++
			}
			f.payouts[id] = append(f.payouts[id], result)
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (f *fakeStore) ListPayoutsToRetry(_ context.Context, maxAttempts int, pendingBefore time.Time, _ int64) ([]models.Commission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Commission
	for _, c := range f.commissions {
		switch {
		case c.PayoutStatus == models.PayoutStatusFailed && c.PayoutAttempts < maxAttempts:
			out = append(out, *c)
		case c.PayoutStatus == models.PayoutStatusPending && c.CreatedAt.Before(pendingBefore):
			out = append(out, *c)
		}
	}
	return out, nil
}

// recordingQueue keeps every enqueued task.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []Task
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, t Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, t)
	return nil
}

func (q *recordingQueue) Dequeue(ctx context.Context) (Task, error) {
	<-ctx.Done()
	return Task{}, ctx.Err()
}

func (q *recordingQueue) kinds() []TaskKind {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]TaskKind, 0, len(q.tasks))
	for _, t := range q.tasks {
		out = append(out, t.Kind)
	}
	return out
}

func (q *recordingQueue) ofKind(kind TaskKind) []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Task
	for _, t := range q.tasks {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
