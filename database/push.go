package database

import (
	"context"
	"errors"

	"storyreel/notify"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PushStore struct {
	coll *mongo.Collection
}

func NewPushStore(m *Mongo) *PushStore {
	return &PushStore{coll: m.PushSubs}
}

// Save upserts by user: update if exists, insert if not.
func (s *PushStore) Save(ctx context.Context, sub notify.Subscription) error {
	if sub.ID.IsZero() {
		sub.ID = primitive.NewObjectID()
	}
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"userId": sub.UserID},
		bson.M{
			"$set":         bson.M{"sub": sub.Sub},
			"$setOnInsert": bson.M{"_id": sub.ID},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *PushStore) FindByUser(ctx context.Context, userID primitive.ObjectID) (*notify.Subscription, error) {
	var sub notify.Subscription
	err := s.coll.FindOne(ctx, bson.M{"userId": userID}).Decode(&sub)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notify.ErrNoSubscription
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *PushStore) DeleteByUser(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"userId": userID})
	return err
}

var _ notify.SubscriptionStore = (*PushStore)(nil)
