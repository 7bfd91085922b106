package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HSouheill/referral_backend/commission"
	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/repositories"
)

func newProgramFixture(t *testing.T) (*ProgramService, *fakeStore, *recordingQueue, *models.Creator, *models.Referrer) {
	t.Helper()
	store := newFakeStore()
	queue := &recordingQueue{}
	creator := store.addCreator("biz_1", "owner_1")
	referrer := store.addReferrer(creator, "user_ref", "YOGA-ABC123", 12)
	return NewProgramService(store, queue, "https://refer.example.com/"), store, queue, creator, referrer
}

func TestOnboardCreatorRejectsDuplicateCommunity(t *testing.T) {
	svc, _, _, _, _ := newProgramFixture(t)
	ctx := context.Background()

	c, err := svc.OnboardCreator(ctx, "owner_2", models.OnboardCreatorRequest{
		ExternalCompanyID: " biz_2 ",
		Name:              "Chess Masters",
		Email:             "Owner@Example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "biz_2", c.ExternalCompanyID)
	assert.Equal(t, "owner@example.com", c.Email)

	_, err = svc.OnboardCreator(ctx, "owner_3", models.OnboardCreatorRequest{ExternalCompanyID: "biz_2", Name: "Copy", Email: "x@example.com"})
	assert.ErrorIs(t, err, repositories.ErrDuplicate)
}

func TestJoinProgramIssuesCodeOnce(t *testing.T) {
	svc, _, _, creator, _ := newProgramFixture(t)
	ctx := context.Background()
	req := models.JoinProgramRequest{Email: "new@example.com", DisplayName: "Newbie"}

	r, err := svc.JoinProgram(ctx, creator.ID, "user_new", req)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(r.ReferralCode, "YOGA-"), r.ReferralCode)
	assert.Equal(t, string(commission.TierStarter), r.CurrentTier)

	again, err := svc.JoinProgram(ctx, creator.ID, "user_new", req)
	require.NoError(t, err)
	assert.Equal(t, r.ID, again.ID)
	assert.Equal(t, r.ReferralCode, again.ReferralCode)
}

func TestSetCustomRate(t *testing.T) {
	svc, store, queue, _, referrer := newProgramFixture(t)
	ctx := context.Background()

	updated, err := svc.SetCustomRate(ctx, "owner_1", referrer.ID, dec("0.25"))
	require.NoError(t, err)
	require.NotNil(t, updated.CustomCommissionRate)
	assert.Equal(t, "0.25", updated.CustomCommissionRate.String())

	stored := store.referrer(referrer.ID)
	require.NotNil(t, stored.CustomCommissionRate)
	assert.True(t, stored.CustomCommissionRate.Equal(dec("0.25")))

	// Email and push are queued as separate tasks.
	assert.ElementsMatch(t, []TaskKind{TaskEmailCustomRate, TaskPushCustomRate}, queue.kinds())
	var notice CustomRateNotice
	require.NoError(t, queue.ofKind(TaskPushCustomRate)[0].Decode(&notice))
	assert.Equal(t, "0.25", notice.Rate)
	assert.Equal(t, "Yoga Club", notice.CreatorName)
}

func TestSetCustomRateQueuesAfterClientHangsUp(t *testing.T) {
	store := newFakeStore()
	creator := store.addCreator("biz_1", "owner_1")
	referrer := store.addReferrer(creator, "user_ref", "YOGA-ABC123", 12)
	queue := NewMemoryQueue(10)
	svc := NewProgramService(store, queue, "https://refer.example.com/")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.SetCustomRate(ctx, "owner_1", referrer.ID, dec("0.20"))
	require.NoError(t, err)
	assert.Equal(t, 2, queue.Len())
}

func TestSetCustomRateRejects(t *testing.T) {
	svc, store, queue, _, referrer := newProgramFixture(t)
	ctx := context.Background()

	_, err := svc.SetCustomRate(ctx, "owner_1", referrer.ID, dec("0.35"))
	assert.ErrorIs(t, err, commission.ErrCustomRateOutOfRange)

	_, err = svc.SetCustomRate(ctx, "owner_1", referrer.ID, dec("0.05"))
	assert.ErrorIs(t, err, commission.ErrCustomRateOutOfRange)

	// Rounding to four places must not bring these inside the bounds.
	_, err = svc.SetCustomRate(ctx, "owner_1", referrer.ID, dec("0.30004"))
	assert.ErrorIs(t, err, commission.ErrCustomRateOutOfRange)

	_, err = svc.SetCustomRate(ctx, "owner_1", referrer.ID, dec("0.09996"))
	assert.ErrorIs(t, err, commission.ErrCustomRateOutOfRange)

	_, err = svc.SetCustomRate(ctx, "someone_else", referrer.ID, dec("0.20"))
	assert.ErrorIs(t, err, ErrForbidden)

	assert.Nil(t, store.referrer(referrer.ID).CustomCommissionRate)
	assert.Empty(t, queue.kinds())
}

func TestClearCustomRate(t *testing.T) {
	svc, store, queue, _, referrer := newProgramFixture(t)
	ctx := context.Background()

	// Clearing a rate that was never set notifies nobody.
	_, err := svc.ClearCustomRate(ctx, "owner_1", referrer.ID)
	require.NoError(t, err)
	assert.Empty(t, queue.kinds())

	_, err = svc.SetCustomRate(ctx, "owner_1", referrer.ID, dec("0.20"))
	require.NoError(t, err)
	cleared, err := svc.ClearCustomRate(ctx, "owner_1", referrer.ID)
	require.NoError(t, err)
	assert.Nil(t, cleared.CustomCommissionRate)
	assert.Nil(t, store.referrer(referrer.ID).CustomCommissionRate)

	var notice CustomRateNotice
	emails := queue.ofKind(TaskEmailCustomRate)
	require.Len(t, emails, 2)
	require.NoError(t, emails[1].Decode(&notice))
	assert.Empty(t, notice.Rate)
	assert.Equal(t, "0.2", notice.PreviousRate)
}

func TestStatsFor(t *testing.T) {
	svc, _, _, _, referrer := newProgramFixture(t)

	st := svc.StatsFor(referrer)
	assert.Equal(t, "starter", st.CurrentTier)
	assert.Equal(t, "0.1", st.MemberRate)
	assert.Equal(t, "tier", st.RateSource)
	assert.Equal(t, "ambassador", st.NextTier)
	assert.Equal(t, 38, st.ReferralsToNext)
	assert.Equal(t, "https://refer.example.com/r/YOGA-ABC123", st.ReferralLink)

	rate := models.NewMoney(dec("0.22"))
	referrer.CustomCommissionRate = &rate
	st = svc.StatsFor(referrer)
	assert.Equal(t, "0.22", st.MemberRate)
	assert.Equal(t, "custom", st.RateSource)

	referrer.TotalReferred = 150
	st = svc.StatsFor(referrer)
	assert.Equal(t, "elite", st.CurrentTier)
	assert.Empty(t, st.NextTier)
}

func TestStatsListsEveryProgram(t *testing.T) {
	svc, store, _, _, _ := newProgramFixture(t)
	other := store.addCreator("biz_2", "owner_2")
	store.addReferrer(other, "user_ref", "CHES-XYZ789", 0)

	stats, err := svc.Stats(context.Background(), "user_ref")
	require.NoError(t, err)
	assert.Len(t, stats, 2)
}

func TestUpdateFCMToken(t *testing.T) {
	svc, store, _, _, referrer := newProgramFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.UpdateFCMToken(ctx, "user_ref", " device-1 "))
	assert.Equal(t, "device-1", store.referrer(referrer.ID).FCMToken)

	assert.ErrorIs(t, svc.UpdateFCMToken(ctx, "stranger", "device-2"), repositories.ErrNotFound)
}

func TestProgramSanitizesNames(t *testing.T) {
	svc, _, _, creator, _ := newProgramFixture(t)
	ctx := context.Background()

	r, err := svc.JoinProgram(ctx, creator.ID, "user_x", models.JoinProgramRequest{Email: "x@example.com", DisplayName: " Jane\r\n  Doe "})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", r.DisplayName)

	_, err = svc.JoinProgram(ctx, creator.ID, "user_y", models.JoinProgramRequest{Email: "nope", DisplayName: "Y"})
	assert.True(t, commission.IsValidationError(err))
	assert.ErrorIs(t, err, ErrInvalidInput)
}
