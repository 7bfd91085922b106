package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HSouheill/referral_backend/commission"
	"github.com/HSouheill/referral_backend/models"
)

// ErrConflict is returned when a concurrent writer changed the document a
// refund was priced against. The refund can be retried.
var ErrConflict = errors.New("concurrent modification")

// CommissionCommit is everything written for one payment, as one unit.
type CommissionCommit struct {
	Commission *models.Commission
	// Attribution is upserted for initial payments so recurring payments of
	// the same member find their referrer.
	Attribution *models.Attribution
}

// CommitOutcome describes the referrer state right after the commit.
type CommitOutcome struct {
	Commission            *models.Commission
	Referrer              *models.Referrer
	PreviousTotalReferred int
	Upgrade               commission.Upgrade
}

// RefundCommit is everything written for one refund, as one unit.
type RefundCommit struct {
	Reversal *models.CommissionReversal
	// ExpectedRefunded is the commission's refundedAmount the reversal was
	// priced against.
	ExpectedRefunded models.Money
	Status           string
}

// PayoutResult is recorded on the commission after a transfer attempt.
type PayoutResult struct {
	Status     string
	TransferID string
	Error      string
}

func (s *Store) FindCommissionByPaymentID(ctx context.Context, paymentID string) (*models.Commission, error) {
	var c models.Commission
	if err := s.commissions().FindOne(ctx, bson.M{"externalPaymentId": paymentID}).Decode(&c); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) FindCommissionByID(ctx context.Context, id primitive.ObjectID) (*models.Commission, error) {
	var c models.Commission
	if err := s.commissions().FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) FindReversalByRefundID(ctx context.Context, refundID string) (*models.CommissionReversal, error) {
	var r models.CommissionReversal
	if err := s.reversals().FindOne(ctx, bson.M{"externalRefundId": refundID}).Decode(&r); err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// CommitCommission inserts the commission and applies every aggregate
// increment in a single transaction. A second commit for the same payment id
// fails with ErrDuplicate and leaves no trace.
func (s *Store) CommitCommission(ctx context.Context, in CommissionCommit) (*CommitOutcome, error) {
	c := in.Commission
	now := time.Now().UTC()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	c.CreatedAt = now
	c.UpdatedAt = now

	session, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := s.commissions().InsertOne(sc, c); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, ErrDuplicate
			}
			return nil, fmt.Errorf("insert commission: %w", err)
		}

		referrerInc, creatorInc, referralInc := commissionIncrements(c)

		var referrer models.Referrer
		err := s.referrers().FindOneAndUpdate(sc,
			bson.M{"_id": c.ReferrerID},
			bson.M{"$inc": referrerInc, "$set": bson.M{"updatedAt": now}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&referrer)
		if err != nil {
			return nil, fmt.Errorf("update referrer aggregates: %w", notFound(err))
		}

		up, tierSet := tierUpdate(&referrer)
		if tierSet != nil {
			if _, err := s.referrers().UpdateOne(sc, bson.M{"_id": referrer.ID}, tierSet); err != nil {
				return nil, fmt.Errorf("update referrer tier: %w", err)
			}
			referrer.CurrentTier = string(up.NewTier.Name)
		}

		res, err := s.creators().UpdateOne(sc,
			bson.M{"_id": c.CreatorID},
			bson.M{"$inc": creatorInc, "$set": bson.M{"updatedAt": now}},
		)
		if err != nil {
			return nil, fmt.Errorf("update creator aggregates: %w", err)
		}
		if res.MatchedCount == 0 {
			return nil, fmt.Errorf("update creator aggregates: %w", ErrNotFound)
		}

		if referralInc > 0 && in.Attribution != nil {
			filter, update := attributionUpsert(in.Attribution, now)
			if _, err := s.attributions().UpdateOne(sc, filter, update, options.Update().SetUpsert(true)); err != nil {
				return nil, fmt.Errorf("upsert attribution: %w", err)
			}
		}

		return &CommitOutcome{
			Commission:            c,
			Referrer:              &referrer,
			PreviousTotalReferred: referrer.TotalReferred - referralInc,
			Upgrade:               up,
		}, nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return result.(*CommitOutcome), nil
}

// CommitRefund inserts the reversal, moves the commission's refund totals and
// decrements the monetary aggregates, in a single transaction. Referral
// counts are left alone.
func (s *Store) CommitRefund(ctx context.Context, in RefundCommit) error {
	r := in.Reversal
	now := time.Now().UTC()
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	r.CreatedAt = now

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := s.reversals().InsertOne(sc, r); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, ErrDuplicate
			}
			return nil, fmt.Errorf("insert reversal: %w", err)
		}

		filter, update := refundCommissionUpdate(in, now)
		res, err := s.commissions().UpdateOne(sc, filter, update)
		if err != nil {
			return nil, fmt.Errorf("update commission refund totals: %w", err)
		}
		if res.MatchedCount == 0 {
			return nil, ErrConflict
		}

		if _, err := s.referrers().UpdateOne(sc, bson.M{"_id": r.ReferrerID}, refundReferrerUpdate(r, now)); err != nil {
			return nil, fmt.Errorf("decrement referrer earnings: %w", err)
		}
		if _, err := s.creators().UpdateOne(sc, bson.M{"_id": r.CreatorID}, refundCreatorUpdate(r, now)); err != nil {
			return nil, fmt.Errorf("decrement creator revenue: %w", err)
		}
		return nil, nil
	})
	if errors.Is(err, ErrDuplicate) {
		return ErrDuplicate
	}
	if errors.Is(err, ErrConflict) {
		return ErrConflict
	}
	return err
}

// RecordPayout stores the outcome of a payout attempt on the commission.
func (s *Store) RecordPayout(ctx context.Context, commissionID primitive.ObjectID, result PayoutResult) error {
	now := time.Now().UTC()
	set := bson.M{
		"payoutStatus": result.Status,
		"payoutError":  result.Error,
		"updatedAt":    now,
	}
	if result.TransferID != "" {
		set["payoutTransferId"] = result.TransferID
	}
	if result.Status == models.PayoutStatusPaid {
		set["paidAt"] = now
	}
	update := bson.M{"$set": set}
	if result.Status == models.PayoutStatusPaid || result.Status == models.PayoutStatusFailed {
		update["$inc"] = bson.M{"payoutAttempts": 1}
	}

	res, err := s.commissions().UpdateOne(ctx, bson.M{"_id": commissionID}, update)
	if err != nil {
		return fmt.Errorf("record payout: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPayoutsToRetry returns commissions whose payout failed fewer than
// maxAttempts times, plus those still pending since before pendingBefore,
// whose payout task was lost.
func (s *Store) ListPayoutsToRetry(ctx context.Context, maxAttempts int, pendingBefore time.Time, limit int64) ([]models.Commission, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(limit)
	cursor, err := s.commissions().Find(ctx, payoutRetryFilter(maxAttempts, pendingBefore), opts)
	if err != nil {
		return nil, fmt.Errorf("list payouts to retry: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Commission
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode payouts to retry: %w", err)
	}
	return out, nil
}

func payoutRetryFilter(maxAttempts int, pendingBefore time.Time) bson.M {
	return bson.M{
		"$or": bson.A{
			bson.M{
				"payoutStatus":   models.PayoutStatusFailed,
				"payoutAttempts": bson.M{"$lt": maxAttempts},
			},
			bson.M{
				"payoutStatus": models.PayoutStatusPending,
				"createdAt":    bson.M{"$lt": pendingBefore},
			},
		},
	}
}

// ListCommissionsByReferrer returns a referrer's most recent commissions.
func (s *Store) ListCommissionsByReferrer(ctx context.Context, referrerID primitive.ObjectID, limit int64) ([]models.Commission, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)
	cursor, err := s.commissions().Find(ctx, bson.M{"referrerId": referrerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list commissions: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Commission
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode commissions: %w", err)
	}
	return out, nil
}
