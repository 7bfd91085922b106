package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HSouheill/referral_backend/commission"
	"github.com/HSouheill/referral_backend/models"
)

func (s *Store) FindReferrerByID(ctx context.Context, id primitive.ObjectID) (*models.Referrer, error) {
	var r models.Referrer
	if err := s.referrers().FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// FindReferrerByCode looks a referrer up by referral code. Codes are stored
// upper case.
func (s *Store) FindReferrerByCode(ctx context.Context, code string) (*models.Referrer, error) {
	var r models.Referrer
	if err := s.referrers().FindOne(ctx, bson.M{"referralCode": code}).Decode(&r); err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// FindReferrerByUser returns the referrer record a user holds in a creator's
// program.
func (s *Store) FindReferrerByUser(ctx context.Context, creatorID primitive.ObjectID, userID string) (*models.Referrer, error) {
	var r models.Referrer
	err := s.referrers().FindOne(ctx, bson.M{"creatorId": creatorID, "userId": userID}).Decode(&r)
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// ListReferrersByUser returns every program a user refers for.
func (s *Store) ListReferrersByUser(ctx context.Context, userID string) ([]models.Referrer, error) {
	cursor, err := s.referrers().Find(ctx, bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list referrers: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Referrer
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode referrers: %w", err)
	}
	return out, nil
}

// CreateReferrer inserts a new referrer at the floor tier with zeroed
// counters. ErrDuplicate means the referral code or the (creator, user) pair
// is taken.
func (s *Store) CreateReferrer(ctx context.Context, r *models.Referrer) error {
	now := time.Now().UTC()
	r.ID = primitive.NewObjectID()
	r.CurrentTier = string(commission.FloorTier().Name)
	r.TotalReferred = 0
	r.MonthlyReferred = 0
	r.LifetimeEarnings = models.Money{}
	r.MonthlyEarnings = models.Money{}
	r.CreatedAt = now
	r.UpdatedAt = now

	if _, err := s.referrers().InsertOne(ctx, r); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert referrer: %w", err)
	}
	return nil
}

// SetCustomRate stores rate as the referrer's custom commission rate, or
// removes it when rate is nil. It returns the referrer as it was before the
// change so callers can describe the transition.
func (s *Store) SetCustomRate(ctx context.Context, referrerID primitive.ObjectID, rate *models.Money) (*models.Referrer, error) {
	now := time.Now().UTC()
	var update bson.M
	if rate != nil {
		update = bson.M{"$set": bson.M{
			"customCommissionRate": *rate,
			"customRateUpdatedAt":  now,
			"updatedAt":            now,
		}}
	} else {
		update = bson.M{
			"$unset": bson.M{"customCommissionRate": ""},
			"$set":   bson.M{"customRateUpdatedAt": now, "updatedAt": now},
		}
	}

	var before models.Referrer
	err := s.referrers().FindOneAndUpdate(ctx, bson.M{"_id": referrerID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if err != nil {
		return nil, notFound(err)
	}
	return &before, nil
}

// UpdateFCMToken sets the push token on every referrer record of userID and
// returns how many were matched.
func (s *Store) UpdateFCMToken(ctx context.Context, userID, token string) (int64, error) {
	res, err := s.referrers().UpdateMany(ctx, bson.M{"userId": userID}, bson.M{"$set": bson.M{
		"fcmToken":  token,
		"updatedAt": time.Now().UTC(),
	}})
	if err != nil {
		return 0, fmt.Errorf("update fcm token: %w", err)
	}
	return res.MatchedCount, nil
}

// ResetMonthlyCounters zeroes the monthly aggregates of every referrer and
// creator. Lifetime counters are untouched.
func (s *Store) ResetMonthlyCounters(ctx context.Context) (referrers, creators int64, err error) {
	now := time.Now().UTC()
	zero := models.Money{}

	res, err := s.referrers().UpdateMany(ctx, bson.M{}, bson.M{"$set": bson.M{
		"monthlyReferred": 0,
		"monthlyEarnings": zero,
		"updatedAt":       now,
	}})
	if err != nil {
		return 0, 0, fmt.Errorf("reset referrer counters: %w", err)
	}
	referrers = res.ModifiedCount

	res, err = s.creators().UpdateMany(ctx, bson.M{}, bson.M{"$set": bson.M{
		"monthlyRevenue": zero,
		"updatedAt":      now,
	}})
	if err != nil {
		return referrers, 0, fmt.Errorf("reset creator counters: %w", err)
	}
	return referrers, res.ModifiedCount, nil
}
