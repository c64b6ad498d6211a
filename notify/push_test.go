package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"storyreel/models"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type mapStore struct {
	mu   sync.Mutex
	subs map[primitive.ObjectID]Subscription
}

func newMapStore() *mapStore {
	return &mapStore{subs: make(map[primitive.ObjectID]Subscription)}
}

func (s *mapStore) Save(_ context.Context, sub Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.UserID] = sub
	return nil
}

func (s *mapStore) FindByUser(_ context.Context, userID primitive.ObjectID) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[userID]
	if !ok {
		return nil, ErrNoSubscription
	}
	return &sub, nil
}

func (s *mapStore) DeleteByUser(_ context.Context, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, userID)
	return nil
}

type sent struct {
	endpoint string
	payload  Payload
	options  webpush.Options
}

type recorder struct {
	mu     sync.Mutex
	calls  []sent
	status int
	err    error
}

func (r *recorder) send(message []byte, s *webpush.Subscription, o *webpush.Options) (*http.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var p Payload
	if err := json.Unmarshal(message, &p); err != nil {
		return nil, err
	}
	r.calls = append(r.calls, sent{endpoint: s.Endpoint, payload: p, options: *o})
	status := r.status
	if status == 0 {
		status = http.StatusCreated
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}, r.err
}

func testSubscription(endpoint string) webpush.Subscription {
	return webpush.Subscription{
		Endpoint: endpoint,
		Keys:     webpush.Keys{P256dh: "p256dh", Auth: "auth"},
	}
}

func newTestPusher(store SubscriptionStore, rec *recorder) *Pusher {
	return NewPusher(store, PusherConfig{
		PublicKey:  "pub",
		PrivateKey: "priv",
		Subject:    "mailto:test@example.com",
	}).WithSender(rec.send)
}

func TestPusher_NotifyEngagement(t *testing.T) {
	store := newMapStore()
	rec := &recorder{}
	p := newTestPusher(store, rec)
	owner, actor := primitive.NewObjectID(), primitive.NewObjectID()
	require.NoError(t, p.Subscribe(context.Background(), owner, testSubscription("https://push.example.com/owner")))

	story := models.Story{ID: primitive.NewObjectID(), UserID: owner, Heading: "Sunset"}
	p.NotifyEngagement(owner, actor, story, models.EngagementLike)
	p.NotifyEngagement(owner, actor, story, models.EngagementBookmark)
	p.Wait()

	require.Len(t, rec.calls, 2)
	titles := []string{rec.calls[0].payload.Title, rec.calls[1].payload.Title}
	assert.ElementsMatch(t, []string{"Someone liked your story", "Someone bookmarked your story"}, titles)
	assert.Equal(t, "Sunset", rec.calls[0].payload.Body)
	assert.Equal(t, story.ID.Hex(), rec.calls[0].payload.Data["storyId"])
	assert.Equal(t, "priv", rec.calls[0].options.VAPIDPrivateKey)
	assert.Equal(t, 30, rec.calls[0].options.TTL)
}

func TestPusher_SkipsSelfAndUnsubscribed(t *testing.T) {
	rec := &recorder{}
	p := newTestPusher(newMapStore(), rec)
	owner := primitive.NewObjectID()

	p.NotifyEngagement(owner, owner, models.Story{}, models.EngagementLike)
	p.NotifyEngagement(owner, primitive.NewObjectID(), models.Story{}, models.EngagementLike)
	p.Wait()

	assert.Empty(t, rec.calls)
}

func TestPusher_GoneDeletesSubscription(t *testing.T) {
	store := newMapStore()
	rec := &recorder{status: http.StatusGone, err: errors.New("gone")}
	p := newTestPusher(store, rec)
	owner := primitive.NewObjectID()
	require.NoError(t, p.Subscribe(context.Background(), owner, testSubscription("https://push.example.com/old")))

	p.Send(owner, Payload{Title: "hi"})
	p.Wait()

	_, err := store.FindByUser(context.Background(), owner)
	assert.ErrorIs(t, err, ErrNoSubscription)
}

func TestPusher_SenderPanicIsRecovered(t *testing.T) {
	store := newMapStore()
	owner := primitive.NewObjectID()
	p := NewPusher(store, PusherConfig{}).WithSender(func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
		panic("boom")
	})
	require.NoError(t, p.Subscribe(context.Background(), owner, testSubscription("https://push.example.com/x")))

	assert.NotPanics(t, func() {
		p.Send(owner, Payload{Title: "hi"})
		p.Wait()
	})
}

func TestPusher_SubscribeValidates(t *testing.T) {
	p := newTestPusher(newMapStore(), &recorder{})
	err := p.Subscribe(context.Background(), primitive.NewObjectID(), webpush.Subscription{Endpoint: "https://push"})
	assert.Error(t, err)
	assert.Equal(t, "pub", p.PublicKey())
}
