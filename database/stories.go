package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"storyreel/models"
	"storyreel/stories"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type StoryRepository struct {
	client       *mongo.Client
	coll         *mongo.Collection
	transactions bool
}

func NewStoryRepository(m *Mongo) *StoryRepository {
	return &StoryRepository{client: m.Client, coll: m.Stories, transactions: m.Transactions}
}

func (r *StoryRepository) InsertBatch(ctx context.Context, batch []models.Story) error {
	docs := make([]interface{}, len(batch))
	ids := make([]primitive.ObjectID, len(batch))
	for i := range batch {
		docs[i] = batch[i]
		ids[i] = batch[i].ID
	}

	if r.transactions {
		session, err := r.client.StartSession()
		if err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		defer session.EndSession(ctx)

		_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
			return r.coll.InsertMany(sc, docs)
		})
		return err
	}

	if _, err := r.coll.InsertMany(ctx, docs); err != nil {
		// An ordered insert stops at the first failed write; only the ids
		// before it were stored by this call.
		stored := ids[:insertedPrefix(err, len(ids))]
		if len(stored) > 0 {
			if _, delErr := r.coll.DeleteMany(context.WithoutCancel(ctx), bson.M{"_id": bson.M{"$in": stored}}); delErr != nil {
				slog.ErrorContext(ctx, "[InsertBatch] failed to roll back partial batch", slog.Any("error", delErr))
			}
		}
		return err
	}
	return nil
}

// insertedPrefix returns how many leading documents of an ordered InsertMany
// were written before err. Without per-write details every document may have
// been written.
func insertedPrefix(err error, n int) int {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || len(bwe.WriteErrors) == 0 {
		return n
	}
	first := n
	for _, we := range bwe.WriteErrors {
		if we.Index >= 0 && we.Index < first {
			first = we.Index
		}
	}
	return first
}

func filterDocument(f stories.Filter) bson.M {
	doc := bson.M{}
	owner := bson.M{}
	if f.OwnerID != nil {
		owner["$eq"] = *f.OwnerID
	}
	if f.ExcludeOwnerID != nil {
		owner["$ne"] = *f.ExcludeOwnerID
	}
	if len(owner) > 0 {
		doc["userId"] = owner
	}

	category := bson.M{}
	if f.Category != "" {
		category["$eq"] = f.Category
	}
	if f.ExcludeCategory != "" {
		category["$ne"] = f.ExcludeCategory
	}
	if len(category) > 0 {
		doc["category"] = category
	}

	if f.LikedBy != nil {
		doc["likedBy"] = *f.LikedBy
	}
	if f.SavedBy != nil {
		doc["savedBy"] = *f.SavedBy
	}
	return doc
}

func (r *StoryRepository) Find(ctx context.Context, f stories.Filter) ([]models.Story, error) {
	cursor, err := r.coll.Find(ctx, filterDocument(f), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []models.Story
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *StoryRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Story, error) {
	var story models.Story
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&story)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, stories.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &story, nil
}

func (r *StoryRepository) Update(ctx context.Context, id, ownerID primitive.ObjectID, c stories.Changes) (*models.Story, error) {
	set := bson.M{}
	if c.Heading != nil {
		set["heading"] = *c.Heading
	}
	if c.Description != nil {
		set["description"] = *c.Description
	}
	if c.Media != nil {
		set["media"] = *c.Media
	}
	if c.Category != nil {
		set["category"] = *c.Category
	}
	filter := bson.M{"_id": id, "userId": ownerID}
	if len(set) == 0 {
		var story models.Story
		err := r.coll.FindOne(ctx, filter).Decode(&story)
		return r.decoded(&story, err)
	}

	var story models.Story
	err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&story)
	return r.decoded(&story, err)
}

func (r *StoryRepository) decoded(story *models.Story, err error) (*models.Story, error) {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, stories.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return story, nil
}

func (r *StoryRepository) Delete(ctx context.Context, id, ownerID primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "userId": ownerID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return stories.ErrNotFound
	}
	return nil
}

// AddMember and RemoveMember put the membership test in the filter so the set
// and the like counter change together in one document write.
func (r *StoryRepository) AddMember(ctx context.Context, kind models.Engagement, storyID, userID primitive.ObjectID) (*models.Story, bool, error) {
	filter := bson.M{"_id": storyID, kind.Field(): bson.M{"$ne": userID}}
	update := bson.M{"$addToSet": bson.M{kind.Field(): userID}}
	if kind == models.EngagementLike {
		update["$inc"] = bson.M{"likes": 1}
	}
	return r.changeMember(ctx, storyID, filter, update)
}

func (r *StoryRepository) RemoveMember(ctx context.Context, kind models.Engagement, storyID, userID primitive.ObjectID) (*models.Story, bool, error) {
	filter := bson.M{"_id": storyID, kind.Field(): userID}
	update := bson.M{"$pull": bson.M{kind.Field(): userID}}
	if kind == models.EngagementLike {
		update["$inc"] = bson.M{"likes": -1}
	}
	return r.changeMember(ctx, storyID, filter, update)
}

func (r *StoryRepository) changeMember(ctx context.Context, storyID primitive.ObjectID, filter, update bson.M) (*models.Story, bool, error) {
	var story models.Story
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&story)
	if err == nil {
		return &story, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	// Either the story is gone or the membership was already in the wanted state.
	current, err := r.FindByID(ctx, storyID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

var _ stories.Repository = (*StoryRepository)(nil)
