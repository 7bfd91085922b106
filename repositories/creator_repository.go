package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/referral_backend/models"
)

func (s *Store) FindCreatorByID(ctx context.Context, id primitive.ObjectID) (*models.Creator, error) {
	var c models.Creator
	if err := s.creators().FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// FindCreatorByExternalID resolves the payment platform's company id.
func (s *Store) FindCreatorByExternalID(ctx context.Context, externalCompanyID string) (*models.Creator, error) {
	var c models.Creator
	err := s.creators().FindOne(ctx, bson.M{"externalCompanyId": externalCompanyID}).Decode(&c)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) CreateCreator(ctx context.Context, c *models.Creator) error {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.TotalRevenue = models.Money{}
	c.MonthlyRevenue = models.Money{}
	c.TotalReferrals = 0
	c.CreatedAt = now
	c.UpdatedAt = now

	if _, err := s.creators().InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert creator: %w", err)
	}
	return nil
}

// FindAttribution returns who referred memberUserID into a creator's
// community.
func (s *Store) FindAttribution(ctx context.Context, creatorID primitive.ObjectID, memberUserID string) (*models.Attribution, error) {
	var a models.Attribution
	err := s.attributions().FindOne(ctx, bson.M{"creatorId": creatorID, "memberUserId": memberUserID}).Decode(&a)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}
