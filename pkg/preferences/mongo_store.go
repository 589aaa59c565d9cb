package preferences

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultCollection is the collection holding one document per user.
const DefaultCollection = "notification_preferences"

// collection is the subset of *mongo.Collection used by MongoStore.
type collection interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter any, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongo.UpdateResult, error)
}

// MongoStore reads and writes profiles in MongoDB, keyed by user_id.
type MongoStore struct {
	coll collection
}

// NewMongoStore uses the DefaultCollection of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(DefaultCollection)}
}

func newMongoStore(coll collection) *MongoStore {
	return &MongoStore{coll: coll}
}

func (s *MongoStore) Get(ctx context.Context, userID string) (Preferences, error) {
	var p Preferences
	err := s.coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Preferences{}, ErrNotFound
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return p, nil
}

func (s *MongoStore) Save(ctx context.Context, p Preferences) error {
	if p.UserID == "" {
		return ErrMissingUserID
	}
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"user_id": p.UserID},
		bson.M{"$set": p},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}
