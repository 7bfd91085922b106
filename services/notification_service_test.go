package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HSouheill/referral_backend/models"
)

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

type pushed struct {
	token, title string
	data         map[string]string
}

type fakePush struct {
	mu   sync.Mutex
	sent []pushed
	err  error
}

func (p *fakePush) Push(_ context.Context, token, title, _ string, data map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, pushed{token, title, data})
	return nil
}

type fakeRealtime struct {
	published []string
}

func (r *fakeRealtime) Publish(userID string, _ *models.Notification) error {
	r.published = append(r.published, userID)
	return nil
}

func mustTask(t *testing.T, kind TaskKind, payload interface{}) Task {
	t.Helper()
	task, err := NewTask(kind, payload)
	require.NoError(t, err)
	return task
}

func TestNotifierCommissionEarned(t *testing.T) {
	f := newPaymentFixture(t, 0)
	res, err := f.svc.ProcessPayment(context.Background(), initialPayment("pay_1", 10000))
	require.NoError(t, err)

	mailer, push, rt := &fakeMailer{}, &fakePush{}, &fakeRealtime{}
	n := NewNotifier(f.store, mailer, push, rt)

	task := mustTask(t, TaskNotifyCommission, CommissionNotice{
		CommissionID: res.Commission.ID.Hex(),
		ReferrerID:   f.referrer.ID.Hex(),
	})
	require.NoError(t, n.HandleCommissionEarned(context.Background(), task))

	require.Len(t, f.store.notifications, 1)
	note := f.store.notifications[0]
	assert.Equal(t, "user_ref", note.UserID)
	assert.Equal(t, models.NotificationCommissionEarned, note.Type)
	assert.Contains(t, note.Message, "$10.00")
	assert.Contains(t, note.Message, "$100.00")

	assert.Equal(t, []string{"user_ref"}, rt.published)
	require.Len(t, push.sent, 1)
	assert.Equal(t, "token-user_ref", push.sent[0].token)
	assert.Equal(t, models.NotificationCommissionEarned, push.sent[0].data["type"])
	assert.Empty(t, mailer.sent)
}

func TestNotifierTierUpgradeSendsEmail(t *testing.T) {
	f := newPaymentFixture(t, 50)
	mailer := &fakeMailer{}
	n := NewNotifier(f.store, mailer, nil, nil)

	task := mustTask(t, TaskNotifyTierUpgrade, TierUpgradeNotice{
		ReferrerID:    f.referrer.ID.Hex(),
		PreviousTier:  "starter",
		NewTier:       "ambassador",
		NewMemberRate: "0.15",
		RateIncrease:  "0.05",
		TotalReferred: 50,
	})
	require.NoError(t, n.HandleTierUpgrade(context.Background(), task))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "user_ref@example.com", mailer.sent[0].to)
	assert.Contains(t, mailer.sent[0].body, "15%")
	require.Len(t, f.store.notifications, 1)
	assert.Equal(t, models.NotificationTierUpgrade, f.store.notifications[0].Type)
}

func TestNotifierCustomRateChannelsAreIndependent(t *testing.T) {
	f := newPaymentFixture(t, 0)
	mailer := &fakeMailer{err: errors.New("smtp down")}
	push := &fakePush{}
	n := NewNotifier(f.store, mailer, push, nil)

	notice := CustomRateNotice{ReferrerID: f.referrer.ID.Hex(), CreatorName: "Yoga Club", Rate: "0.2"}

	err := n.HandleCustomRateEmail(context.Background(), mustTask(t, TaskEmailCustomRate, notice))
	assert.Error(t, err)

	require.NoError(t, n.HandleCustomRatePush(context.Background(), mustTask(t, TaskPushCustomRate, notice)))
	require.Len(t, push.sent, 1)
	require.Len(t, f.store.notifications, 1)
	assert.Contains(t, f.store.notifications[0].Message, "20%")
}

func TestNotifierWithoutChannels(t *testing.T) {
	f := newPaymentFixture(t, 0)
	n := NewNotifier(f.store, nil, nil, nil)

	notice := CustomRateNotice{ReferrerID: f.referrer.ID.Hex(), CreatorName: "Yoga Club"}
	assert.NoError(t, n.HandleCustomRateEmail(context.Background(), mustTask(t, TaskEmailCustomRate, notice)))

	milestone := mustTask(t, TaskNotifyMilestone, MilestoneNotice{ReferrerID: f.referrer.ID.Hex(), Milestone: 25})
	require.NoError(t, n.HandleMilestone(context.Background(), milestone))
	require.Len(t, f.store.notifications, 1)
	assert.Equal(t, "25 referrals", f.store.notifications[0].Title)
}

func TestNotifierUnknownReferrer(t *testing.T) {
	f := newPaymentFixture(t, 0)
	n := NewNotifier(f.store, nil, nil, nil)

	err := n.HandleFirstReferral(context.Background(), mustTask(t, TaskNotifyFirstReferral, FirstReferralNotice{ReferrerID: "not-an-id"}))
	assert.Error(t, err)
}
