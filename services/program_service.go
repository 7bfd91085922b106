package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/referral_backend/commission"
	"github.com/HSouheill/referral_backend/logger"
	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/repositories"
	"github.com/HSouheill/referral_backend/utils"
)

const (
	codeAttempts         = 5
	statsRecentLimit     = 20
	customRateDecimalCap = 4
)

// ProgramService manages creators, their referral programs and the custom
// rates creators grant to individual referrers.
type ProgramService struct {
	store         ProgramStore
	queue         TaskQueue
	publicBaseURL string
}

func NewProgramService(store ProgramStore, queue TaskQueue, publicBaseURL string) *ProgramService {
	return &ProgramService{
		store:         store,
		queue:         queue,
		publicBaseURL: publicBaseURL,
	}
}

// OnboardCreator registers the caller's community. A community can only be
// onboarded once.
func (s *ProgramService) OnboardCreator(ctx context.Context, ownerUserID string, req models.OnboardCreatorRequest) (*models.Creator, error) {
	email, err := utils.SanitizeEmail(req.Email)
	if err != nil {
		return nil, invalidInput("email %q: %v", req.Email, err)
	}
	c := &models.Creator{
		OwnerUserID:       ownerUserID,
		ExternalCompanyID: strings.TrimSpace(req.ExternalCompanyID),
		Name:              utils.SanitizeName(req.Name),
		Email:             email,
		FCMToken:          req.FCMToken,
	}
	if err := s.store.CreateCreator(ctx, c); err != nil {
		return nil, err
	}
	logger.Info("Creator %s onboarded community %s", c.ID.Hex(), c.ExternalCompanyID)
	return c, nil
}

// JoinProgram enrolls userID as a referrer of a creator's community and
// issues their referral code. Joining twice returns the existing record.
func (s *ProgramService) JoinProgram(ctx context.Context, creatorID primitive.ObjectID, userID string, req models.JoinProgramRequest) (*models.Referrer, error) {
	email, err := utils.SanitizeEmail(req.Email)
	if err != nil {
		return nil, invalidInput("email %q: %v", req.Email, err)
	}
	creator, err := s.store.FindCreatorByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if existing, err := s.store.FindReferrerByUser(ctx, creatorID, userID); err == nil {
		return existing, nil
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := utils.GenerateReferralCode(creator.Name)
		if err != nil {
			return nil, fmt.Errorf("generate referral code: %w", err)
		}
		r := &models.Referrer{
			CreatorID:       creatorID,
			UserID:          userID,
			Email:           email,
			DisplayName:     utils.SanitizeName(req.DisplayName),
			FCMToken:        req.FCMToken,
			PayoutAccountID: req.PayoutAccountID,
			ReferralCode:    code,
		}
		err = s.store.CreateReferrer(ctx, r)
		if err == nil {
			logger.Info("User %s joined program of creator %s with code %s", userID, creatorID.Hex(), code)
			return r, nil
		}
		if !errors.Is(err, repositories.ErrDuplicate) {
			return nil, err
		}
		// Either the code collided or a concurrent join won.
		if existing, findErr := s.store.FindReferrerByUser(ctx, creatorID, userID); findErr == nil {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("could not allocate a unique referral code after %d attempts", codeAttempts)
}

// SetCustomRate gives a referrer a custom member rate. Only the owner of the
// referrer's community may do so. The referrer is told by email and by push,
// each as its own task.
func (s *ProgramService) SetCustomRate(ctx context.Context, ownerUserID string, referrerID primitive.ObjectID, rate decimal.Decimal) (*models.Referrer, error) {
	// Bounds apply to the rate as given, before rounding.
	if err := commission.ValidateCustomRate(rate); err != nil {
		return nil, err
	}
	rate = rate.Round(customRateDecimalCap)
	if _, err := commission.CalculateCustomSplit(decimal.NewFromInt(100), rate, commission.DefaultCustomRateParams()); err != nil {
		return nil, err
	}

	creator, _, err := s.authorizeOwner(ctx, ownerUserID, referrerID)
	if err != nil {
		return nil, err
	}

	stored := models.NewMoney(rate)
	before, err := s.store.SetCustomRate(ctx, referrerID, &stored)
	if err != nil {
		return nil, err
	}

	after := *before
	after.CustomCommissionRate = &stored
	now := time.Now().UTC()
	after.CustomRateUpdatedAt = &now

	s.notifyCustomRate(ctx, creator, before, rate.String())
	logger.Info("Creator %s set custom rate %s for referrer %s", creator.ID.Hex(), rate.String(), referrerID.Hex())
	return &after, nil
}

// ClearCustomRate returns a referrer to their tier rate.
func (s *ProgramService) ClearCustomRate(ctx context.Context, ownerUserID string, referrerID primitive.ObjectID) (*models.Referrer, error) {
	creator, _, err := s.authorizeOwner(ctx, ownerUserID, referrerID)
	if err != nil {
		return nil, err
	}

	before, err := s.store.SetCustomRate(ctx, referrerID, nil)
	if err != nil {
		return nil, err
	}
	after := *before
	after.CustomCommissionRate = nil
	now := time.Now().UTC()
	after.CustomRateUpdatedAt = &now

	if before.CustomCommissionRate != nil {
		s.notifyCustomRate(ctx, creator, before, "")
	}
	logger.Info("Creator %s cleared custom rate for referrer %s", creator.ID.Hex(), referrerID.Hex())
	return &after, nil
}

func (s *ProgramService) notifyCustomRate(ctx context.Context, creator *models.Creator, before *models.Referrer, rate string) {
	notice := CustomRateNotice{
		ReferrerID:  before.ID.Hex(),
		CreatorName: creator.Name,
		Rate:        rate,
	}
	if before.CustomCommissionRate != nil {
		notice.PreviousRate = before.CustomCommissionRate.String()
	}
	ctx, cancel := detach(ctx)
	defer cancel()
	enqueue(ctx, s.queue, TaskEmailCustomRate, notice)
	enqueue(ctx, s.queue, TaskPushCustomRate, notice)
}

func (s *ProgramService) authorizeOwner(ctx context.Context, ownerUserID string, referrerID primitive.ObjectID) (*models.Creator, *models.Referrer, error) {
	r, err := s.store.FindReferrerByID(ctx, referrerID)
	if err != nil {
		return nil, nil, err
	}
	c, err := s.store.FindCreatorByID(ctx, r.CreatorID)
	if err != nil {
		return nil, nil, err
	}
	if c.OwnerUserID != ownerUserID {
		return nil, nil, ErrForbidden
	}
	return c, r, nil
}

// Stats returns the dashboard view of every program userID refers for.
func (s *ProgramService) Stats(ctx context.Context, userID string) ([]models.ReferrerStats, error) {
	referrers, err := s.store.ListReferrersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.ReferrerStats, 0, len(referrers))
	for i := range referrers {
		r := &referrers[i]
		st := s.StatsFor(r)
		recent, err := s.store.ListCommissionsByReferrer(ctx, r.ID, statsRecentLimit)
		if err != nil {
			return nil, err
		}
		st.RecentCommissions = recent
		out = append(out, st)
	}
	return out, nil
}

// StatsFor describes a referrer's current rate and tier progress.
func (s *ProgramService) StatsFor(r *models.Referrer) models.ReferrerStats {
	tier := commission.ResolveTier(r.TotalReferred)
	st := models.ReferrerStats{
		Referrer:     r,
		CurrentTier:  string(tier.Name),
		MemberRate:   tier.MemberRate.String(),
		RateSource:   string(commission.RateSourceTier),
		ReferralLink: utils.ReferralLink(s.publicBaseURL, r.ReferralCode),
	}
	if r.CustomCommissionRate != nil && commission.ValidateCustomRate(r.CustomCommissionRate.Decimal) == nil {
		st.MemberRate = r.CustomCommissionRate.String()
		st.RateSource = string(commission.RateSourceCustom)
	}
	if next, remaining, ok := commission.NextTier(r.TotalReferred); ok {
		st.NextTier = string(next.Name)
		st.ReferralsToNext = remaining
	}
	return st
}

// ReferrerForQRCode picks the program whose referral link the QR code
// carries: the one for creatorID when given, else the user's first.
func (s *ProgramService) ReferrerForQRCode(ctx context.Context, userID string, creatorID *primitive.ObjectID) (*models.Referrer, error) {
	if creatorID != nil {
		return s.store.FindReferrerByUser(ctx, *creatorID, userID)
	}
	referrers, err := s.store.ListReferrersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(referrers) == 0 {
		return nil, repositories.ErrNotFound
	}
	return &referrers[0], nil
}

// ReferralLink is the signup link for a referrer.
func (s *ProgramService) ReferralLink(r *models.Referrer) string {
	return utils.ReferralLink(s.publicBaseURL, r.ReferralCode)
}

// UpdateFCMToken registers the device that receives the user's referral push
// notifications.
func (s *ProgramService) UpdateFCMToken(ctx context.Context, userID, token string) error {
	n, err := s.store.UpdateFCMToken(ctx, userID, strings.TrimSpace(token))
	if err != nil {
		return err
	}
	if n == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
