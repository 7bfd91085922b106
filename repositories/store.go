package repositories

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/referral_backend/config"
)

var (
	// ErrNotFound is returned when a lookup matches no document.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique index rejects an insert.
	ErrDuplicate = errors.New("duplicate")
)

// Store is the MongoDB persistence layer.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewStore(client *mongo.Client, dbName string) *Store {
	return &Store{
		client: client,
		db:     client.Database(dbName),
	}
}

func (s *Store) commissions() *mongo.Collection {
	return s.db.Collection(config.CollectionCommissions)
}

func (s *Store) reversals() *mongo.Collection {
	return s.db.Collection(config.CollectionReversals)
}

func (s *Store) referrers() *mongo.Collection {
	return s.db.Collection(config.CollectionReferrers)
}

func (s *Store) creators() *mongo.Collection {
	return s.db.Collection(config.CollectionCreators)
}

func (s *Store) attributions() *mongo.Collection {
	return s.db.Collection(config.CollectionAttributions)
}

func (s *Store) notifications() *mongo.Collection {
	return s.db.Collection(config.CollectionNotification)
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
