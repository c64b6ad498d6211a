package stories_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"storyreel/apperror"
	"storyreel/memstore"
	"storyreel/models"
	"storyreel/stories"
	"storyreel/video"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeVideos struct {
	durations map[string]time.Duration
	err       error
}

func (f fakeVideos) Duration(_ context.Context, id string) (time.Duration, error) {
	if f.err != nil {
		return 0, f.err
	}
	d, ok := f.durations[id]
	if !ok {
		return 0, video.ErrVideoNotFound
	}
	return d, nil
}

type recordedNotice struct {
	owner, actor primitive.ObjectID
	kind         models.Engagement
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []recordedNotice
}

func (f *fakeNotifier) NotifyEngagement(owner, actor primitive.ObjectID, _ models.Story, kind models.Engagement) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, recordedNotice{owner, actor, kind})
}

type fakeEvents struct {
	mu     sync.Mutex
	events []models.Event
}

func (f *fakeEvents) Publish(e models.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeEvents) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	repo     *memstore.Stories
	svc      *stories.Service
	events   *fakeEvents
	notifier *fakeNotifier
}

func newFixture(t *testing.T, videos video.DurationProvider) *fixture {
	t.Helper()
	f := &fixture{
		repo:     memstore.NewStories(),
		events:   &fakeEvents{},
		notifier: &fakeNotifier{},
	}
	if videos == nil {
		videos = fakeVideos{}
	}
	f.svc = stories.NewService(f.repo, stories.Options{
		Videos:       videos,
		Events:       f.events,
		Notifier:     f.notifier,
		ShareBaseURL: "https://stories.example.com/",
	})
	return f
}

func slides(n int, category string) []models.Slide {
	out := make([]models.Slide, n)
	for i := range out {
		out[i] = models.Slide{
			Heading:     fmt.Sprintf("Slide %d", i+1),
			Description: "A short description",
			Media:       "https://images.example.com/cat.jpg",
			Category:    category,
		}
	}
	return out
}

func (f *fixture) create(t *testing.T, owner primitive.ObjectID, n int, category string) []models.Story {
	t.Helper()
	created, err := f.svc.Create(context.Background(), owner, slides(n, category))
	require.NoError(t, err)
	return created
}

func TestCreate_BatchSize(t *testing.T) {
	owner := primitive.NewObjectID()
	for _, n := range []int{0, 2, 7} {
		t.Run(fmt.Sprintf("rejects %d", n), func(t *testing.T) {
			f := newFixture(t, nil)
			_, err := f.svc.Create(context.Background(), owner, slides(n, "Food"))
			assert.True(t, apperror.Is(err, apperror.KindValidation))

			all, _ := f.svc.Feed(context.Background(), nil, "")
			assert.Empty(t, all)
		})
	}
	for _, n := range []int{3, 6} {
		t.Run(fmt.Sprintf("accepts %d", n), func(t *testing.T) {
			f := newFixture(t, nil)
			created := f.create(t, owner, n, "Food")
			assert.Len(t, created, n)
			for _, s := range created {
				assert.Equal(t, owner, s.UserID)
				assert.Equal(t, 0, s.Likes)
				assert.Empty(t, s.LikedBy)
				assert.Empty(t, s.SavedBy)
			}
			assert.Equal(t, []string{"stories_created"}, f.events.types())
		})
	}
}

func TestCreate_ValidatesEverySlide(t *testing.T) {
	f := newFixture(t, nil)
	owner := primitive.NewObjectID()

	batch := slides(3, "Food")
	batch[2].Category = "food"
	_, err := f.svc.Create(context.Background(), owner, batch)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Contains(t, apperror.Message(err), "Slide 3")

	batch = slides(3, "Food")
	batch[1].Heading = "<b></b>  "
	_, err = f.svc.Create(context.Background(), owner, batch)
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	all, _ := f.svc.Feed(context.Background(), nil, "")
	assert.Empty(t, all)
}

func TestCreate_SanitizesText(t *testing.T) {
	f := newFixture(t, nil)
	batch := slides(3, "People")
	batch[0].Heading = `<script>alert(1)</script>Tom & Jerry`
	created, err := f.svc.Create(context.Background(), primitive.NewObjectID(), batch)
	require.NoError(t, err)
	assert.Equal(t, "Tom & Jerry", created[0].Heading)
}

func TestCreate_StripsEntityEncodedMarkup(t *testing.T) {
	tests := []struct {
		name, heading, want string
	}{
		{"encoded tag", `&lt;img src=x onerror=alert(1)&gt;hi`, "hi"},
		{"double encoded tag", `&amp;lt;script&amp;gt;alert(1)&amp;lt;/script&amp;gt;hi`, "hi"},
		{"plain comparison", `1 < 2 & 3 > 2`, "1 < 2 & 3 > 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			batch := slides(3, "People")
			batch[0].Heading = tt.heading
			batch[1].Description = tt.heading
			created, err := f.svc.Create(context.Background(), primitive.NewObjectID(), batch)
			require.NoError(t, err)
			assert.Equal(t, tt.want, created[0].Heading)
			assert.Equal(t, tt.want, created[1].Description)
			assert.NotContains(t, created[0].Heading, "<img")
			assert.NotContains(t, created[0].Heading, "<script")
		})
	}
}

func TestUpdate_StripsEntityEncodedMarkup(t *testing.T) {
	f := newFixture(t, nil)
	owner := primitive.NewObjectID()
	story := f.create(t, owner, 3, "Food")[0]

	updated, err := f.svc.Update(context.Background(), owner, story.ID, models.Slide{
		Heading: `&lt;img src=x onerror=alert(1)&gt;fresh`,
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", updated.Heading)
}

func TestCreate_VideoDuration(t *testing.T) {
	owner := primitive.NewObjectID()
	videos := fakeVideos{durations: map[string]time.Duration{
		"shortshort1": 15 * time.Second,
		"longlonglon": 16 * time.Second,
	}}

	t.Run("within limit", func(t *testing.T) {
		f := newFixture(t, videos)
		batch := slides(3, "Gaming")
		batch[0].Media = "https://youtu.be/shortshort1"
		_, err := f.svc.Create(context.Background(), owner, batch)
		assert.NoError(t, err)
	})

	t.Run("too long", func(t *testing.T) {
		f := newFixture(t, videos)
		batch := slides(3, "Gaming")
		batch[1].Media = "https://www.youtube.com/watch?v=longlonglon"
		_, err := f.svc.Create(context.Background(), owner, batch)
		require.Error(t, err)
		assert.True(t, apperror.Is(err, apperror.KindValidation))
		assert.Contains(t, apperror.Message(err), "15 seconds")
	})

	t.Run("too long behind other link shapes", func(t *testing.T) {
		for _, link := range []string{
			"https://music.youtube.com/watch?v=longlonglon",
			"https://www.youtube.com/live/longlonglon",
			"https://www.youtube.com/watch?si=share&v=longlonglon",
		} {
			f := newFixture(t, videos)
			batch := slides(3, "Gaming")
			batch[2].Media = link
			_, err := f.svc.Create(context.Background(), owner, batch)
			assert.True(t, apperror.Is(err, apperror.KindValidation), link)
		}
	})

	t.Run("lookup failure commits nothing", func(t *testing.T) {
		f := newFixture(t, fakeVideos{err: errors.New("quota exceeded")})
		batch := slides(4, "Gaming")
		batch[3].Media = "https://youtube.com/shorts/shortshort1"
		_, err := f.svc.Create(context.Background(), owner, batch)
		assert.True(t, apperror.Is(err, apperror.KindUnavailable))

		all, _ := f.svc.Feed(context.Background(), nil, "")
		assert.Empty(t, all)
	})
}

// failingInsertStore stores nothing and fails every batch insert.
type failingInsertStore struct {
	*memstore.Stories
	calls int
}

func (s *failingInsertStore) InsertBatch(context.Context, []models.Story) error {
	s.calls++
	return errors.New("write conflict")
}

type countingRecorder struct {
	created, engagements, lookupFailures int
}

func (r *countingRecorder) RecordStoriesCreated(n int)               { r.created += n }
func (r *countingRecorder) RecordEngagement(models.Engagement, bool) { r.engagements++ }
func (r *countingRecorder) RecordVideoLookupFailure()                { r.lookupFailures++ }

func TestCreate_StoreFailureCommitsNothing(t *testing.T) {
	repo := &failingInsertStore{Stories: memstore.NewStories()}
	events := &fakeEvents{}
	rec := &countingRecorder{}
	svc := stories.NewService(repo, stories.Options{
		Videos:  fakeVideos{},
		Events:  events,
		Metrics: rec,
	})

	created, err := svc.Create(context.Background(), primitive.NewObjectID(), slides(4, "Sports"))
	require.Error(t, err)
	assert.Nil(t, created)
	assert.True(t, apperror.Is(err, apperror.KindInternal))
	assert.Equal(t, "Failed to create stories", apperror.Message(err))

	assert.Equal(t, 1, repo.calls)
	assert.Empty(t, events.types())
	assert.Zero(t, rec.created)

	all, err := svc.Feed(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func storyIDs(list []models.Story) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(list))
	for _, s := range list {
		out = append(out, s.ID)
	}
	return out
}

func TestFeed_Partitions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	alice, bob, carol := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

	bobFood := f.create(t, bob, 3, "Food")
	aliceGaming := f.create(t, alice, 3, "Gaming")
	carolGaming := f.create(t, carol, 3, "Gaming")

	t.Run("anonymous sees everything", func(t *testing.T) {
		feed, err := f.svc.Feed(ctx, nil, "")
		require.NoError(t, err)
		assert.Len(t, feed, 9)
	})

	t.Run("identified sees own first", func(t *testing.T) {
		feed, err := f.svc.Feed(ctx, &alice, "")
		require.NoError(t, err)
		want := append(storyIDs(aliceGaming), storyIDs(bobFood)...)
		want = append(want, storyIDs(carolGaming)...)
		assert.Equal(t, want, storyIDs(feed))
	})

	t.Run("category partitions are disjoint", func(t *testing.T) {
		feed, err := f.svc.Feed(ctx, &alice, "Gaming")
		require.NoError(t, err)
		want := append(storyIDs(aliceGaming), storyIDs(carolGaming)...)
		want = append(want, storyIDs(bobFood)...)
		assert.Equal(t, want, storyIDs(feed))
	})

	t.Run("anonymous with category", func(t *testing.T) {
		feed, err := f.svc.Feed(ctx, nil, "Food")
		require.NoError(t, err)
		want := append(storyIDs(bobFood), storyIDs(aliceGaming)...)
		want = append(want, storyIDs(carolGaming)...)
		assert.Equal(t, want, storyIDs(feed))
	})

	t.Run("invalid category", func(t *testing.T) {
		_, err := f.svc.Feed(ctx, &alice, "Cars")
		assert.True(t, apperror.Is(err, apperror.KindValidation))
	})

	t.Run("empty store", func(t *testing.T) {
		empty := newFixture(t, nil)
		feed, err := empty.svc.Feed(ctx, &alice, "Food")
		require.NoError(t, err)
		assert.NotNil(t, feed)
		assert.Empty(t, feed)
	})
}

func TestUpdate_OwnerOnly(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner, other := primitive.NewObjectID(), primitive.NewObjectID()
	s := f.create(t, owner, 3, "Food")[0]

	_, err := f.svc.Update(ctx, other, s.ID, models.Slide{Heading: "hijacked"})
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	unchanged, err := f.repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Heading, unchanged.Heading)

	updated, err := f.svc.Update(ctx, owner, s.ID, models.Slide{Heading: "Fresh", Category: "Sports"})
	require.NoError(t, err)
	assert.Equal(t, "Fresh", updated.Heading)
	assert.Equal(t, models.CategorySports, updated.Category)
	assert.Equal(t, s.Description, updated.Description)

	_, err = f.svc.Update(ctx, owner, s.ID, models.Slide{Category: "sports"})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = f.svc.Update(ctx, owner, primitive.NewObjectID(), models.Slide{Heading: "x"})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestDelete_OwnerOnly(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner, other := primitive.NewObjectID(), primitive.NewObjectID()
	s := f.create(t, owner, 3, "Food")[0]

	_, err := f.svc.Toggle(ctx, models.EngagementBookmark, other, s.ID)
	require.NoError(t, err)

	err = f.svc.Delete(ctx, other, s.ID)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	require.NoError(t, f.svc.Delete(ctx, owner, s.ID))
	_, err = f.repo.FindByID(ctx, s.ID)
	assert.ErrorIs(t, err, stories.ErrNotFound)

	saved, err := f.svc.Bookmarks(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, saved)

	err = f.svc.Delete(ctx, owner, s.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestShare(t *testing.T) {
	f := newFixture(t, nil)
	s := f.create(t, primitive.NewObjectID(), 3, "India")[0]

	link, err := f.svc.Share(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://stories.example.com/story/"+s.ID.Hex(), link)

	_, err = f.svc.Share(context.Background(), primitive.NewObjectID())
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}
