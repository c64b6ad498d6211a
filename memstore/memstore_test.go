package memstore

import (
	"context"
	"testing"
	"time"

	"storyreel/auth"
	"storyreel/models"
	"storyreel/notify"
	"storyreel/stories"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUsers_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	users := NewUsers()

	u := &models.User{Handle: "ada", PasswordHash: "x"}
	require.NoError(t, users.Create(ctx, u))
	assert.False(t, u.ID.IsZero())

	err := users.Create(ctx, &models.User{Handle: "ada"})
	assert.ErrorIs(t, err, auth.ErrDuplicateHandle)

	got, err := users.FindByHandle(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = users.FindByHandle(ctx, "Ada")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, users.TouchLastLogin(ctx, u.ID, at))
	got, err = users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, at, got.LastLogin)

	assert.ErrorIs(t, users.TouchLastLogin(ctx, primitive.NewObjectID(), at), auth.ErrUserNotFound)
}

func story(owner primitive.ObjectID, category models.Category) models.Story {
	return models.Story{
		ID:       primitive.NewObjectID(),
		UserID:   owner,
		Heading:  "h",
		Category: category,
		LikedBy:  []primitive.ObjectID{},
		SavedBy:  []primitive.ObjectID{},
	}
}

func TestStories_FindFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewStories()
	alice, bob := primitive.NewObjectID(), primitive.NewObjectID()

	a1 := story(alice, models.CategoryFood)
	b1 := story(bob, models.CategoryFood)
	b2 := story(bob, models.CategoryGaming)
	require.NoError(t, repo.InsertBatch(ctx, []models.Story{a1, b1, b2}))

	ids := func(list []models.Story) []primitive.ObjectID {
		var out []primitive.ObjectID
		for _, s := range list {
			out = append(out, s.ID)
		}
		return out
	}

	all, err := repo.Find(ctx, stories.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{a1.ID, b1.ID, b2.ID}, ids(all))

	own, _ := repo.Find(ctx, stories.Filter{OwnerID: &alice})
	assert.Equal(t, []primitive.ObjectID{a1.ID}, ids(own))

	otherFood, _ := repo.Find(ctx, stories.Filter{Category: models.CategoryFood, ExcludeOwnerID: &alice})
	assert.Equal(t, []primitive.ObjectID{b1.ID}, ids(otherFood))

	rest, _ := repo.Find(ctx, stories.Filter{ExcludeCategory: models.CategoryFood, ExcludeOwnerID: &alice})
	assert.Equal(t, []primitive.ObjectID{b2.ID}, ids(rest))
}

func TestStories_MembershipKeepsCounter(t *testing.T) {
	ctx := context.Background()
	repo := NewStories()
	owner, user := primitive.NewObjectID(), primitive.NewObjectID()
	s := story(owner, models.CategoryPeople)
	require.NoError(t, repo.InsertBatch(ctx, []models.Story{s}))

	got, changed, err := repo.AddMember(ctx, models.EngagementLike, s.ID, user)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, got.Likes)

	got, changed, err = repo.AddMember(ctx, models.EngagementLike, s.ID, user)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, got.Likes)
	assert.Len(t, got.LikedBy, 1)

	got, changed, err = repo.RemoveMember(ctx, models.EngagementLike, s.ID, user)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 0, got.Likes)
	assert.Empty(t, got.LikedBy)

	_, changed, err = repo.AddMember(ctx, models.EngagementBookmark, s.ID, user)
	require.NoError(t, err)
	assert.True(t, changed)
	saved, _ := repo.Find(ctx, stories.Filter{SavedBy: &user})
	assert.Len(t, saved, 1)
	assert.Equal(t, 0, saved[0].Likes)

	_, _, err = repo.AddMember(ctx, models.EngagementLike, primitive.NewObjectID(), user)
	assert.ErrorIs(t, err, stories.ErrNotFound)
}

func TestStories_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewStories()
	s := story(primitive.NewObjectID(), models.CategoryPeople)
	require.NoError(t, repo.InsertBatch(ctx, []models.Story{s}))

	got, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	got.LikedBy = append(got.LikedBy, primitive.NewObjectID())
	got.Heading = "changed"

	again, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, again.LikedBy)
	assert.Equal(t, "h", again.Heading)
}

func TestStories_UpdateAndDeleteRequireOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewStories()
	owner, other := primitive.NewObjectID(), primitive.NewObjectID()
	s := story(owner, models.CategoryPeople)
	require.NoError(t, repo.InsertBatch(ctx, []models.Story{s}))

	heading := "new"
	_, err := repo.Update(ctx, s.ID, other, stories.Changes{Heading: &heading})
	assert.ErrorIs(t, err, stories.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, s.ID, other), stories.ErrNotFound)

	got, err := repo.Update(ctx, s.ID, owner, stories.Changes{Heading: &heading})
	require.NoError(t, err)
	assert.Equal(t, "new", got.Heading)

	require.NoError(t, repo.Delete(ctx, s.ID, owner))
	_, err = repo.FindByID(ctx, s.ID)
	assert.ErrorIs(t, err, stories.ErrNotFound)
}

func TestPushSubscriptions(t *testing.T) {
	ctx := context.Background()
	store := NewPushSubscriptions()
	user := primitive.NewObjectID()

	_, err := store.FindByUser(ctx, user)
	assert.ErrorIs(t, err, notify.ErrNoSubscription)

	require.NoError(t, store.Save(ctx, notify.Subscription{UserID: user, Sub: webpush.Subscription{Endpoint: "https://push/1"}}))
	require.NoError(t, store.Save(ctx, notify.Subscription{UserID: user, Sub: webpush.Subscription{Endpoint: "https://push/2"}}))

	got, err := store.FindByUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "https://push/2", got.Sub.Endpoint)

	require.NoError(t, store.DeleteByUser(ctx, user))
	_, err = store.FindByUser(ctx, user)
	assert.ErrorIs(t, err, notify.ErrNoSubscription)
}
