// Package memstore keeps users, stories and push subscriptions in process
// memory. It backs STORE_BACKEND=memory and the service tests.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"storyreel/auth"
	"storyreel/models"
	"storyreel/notify"
	"storyreel/stories"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Users struct {
	mu    sync.RWMutex
	byID  map[primitive.ObjectID]models.User
	index map[string]primitive.ObjectID
}

func NewUsers() *Users {
	return &Users{
		byID:  make(map[primitive.ObjectID]models.User),
		index: make(map[string]primitive.ObjectID),
	}
}

func (u *Users) Create(_ context.Context, user *models.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, taken := u.index[user.Handle]; taken {
		return auth.ErrDuplicateHandle
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	u.byID[user.ID] = *user
	u.index[user.Handle] = user.ID
	return nil
}

func (u *Users) FindByHandle(_ context.Context, handle string) (*models.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	id, ok := u.index[handle]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	user := u.byID[id]
	return &user, nil
}

func (u *Users) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.byID[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return &user, nil
}

func (u *Users) TouchLastLogin(_ context.Context, id primitive.ObjectID, at time.Time) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.byID[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	user.LastLogin = at
	user.UpdatedAt = at
	u.byID[id] = user
	return nil
}

// Stories holds stories in insertion order. Every read returns deep copies.
type Stories struct {
	mu      sync.RWMutex
	stories []*models.Story
}

func NewStories() *Stories {
	return &Stories{}
}

func (s *Stories) InsertBatch(_ context.Context, batch []models.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range batch {
		story := clone(batch[i])
		s.stories = append(s.stories, &story)
	}
	return nil
}

func (s *Stories) Find(_ context.Context, f stories.Filter) ([]models.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Story
	for _, story := range s.stories {
		if matches(story, f) {
			out = append(out, clone(*story))
		}
	}
	return out, nil
}

func matches(s *models.Story, f stories.Filter) bool {
	switch {
	case f.OwnerID != nil && s.UserID != *f.OwnerID:
		return false
	case f.ExcludeOwnerID != nil && s.UserID == *f.ExcludeOwnerID:
		return false
	case f.Category != "" && s.Category != f.Category:
		return false
	case f.ExcludeCategory != "" && s.Category == f.ExcludeCategory:
		return false
	case f.LikedBy != nil && !slices.Contains(s.LikedBy, *f.LikedBy):
		return false
	case f.SavedBy != nil && !slices.Contains(s.SavedBy, *f.SavedBy):
		return false
	}
	return true
}

func (s *Stories) FindByID(_ context.Context, id primitive.ObjectID) (*models.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	story, _ := s.lookup(id)
	if story == nil {
		return nil, stories.ErrNotFound
	}
	out := clone(*story)
	return &out, nil
}

func (s *Stories) Update(_ context.Context, id, ownerID primitive.ObjectID, c stories.Changes) (*models.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, _ := s.lookup(id)
	if story == nil || story.UserID != ownerID {
		return nil, stories.ErrNotFound
	}
	if c.Heading != nil {
		story.Heading = *c.Heading
	}
	if c.Description != nil {
		story.Description = *c.Description
	}
	if c.Media != nil {
		story.Media = *c.Media
	}
	if c.Category != nil {
		story.Category = *c.Category
	}
	out := clone(*story)
	return &out, nil
}

func (s *Stories) Delete(_ context.Context, id, ownerID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, i := s.lookup(id)
	if story == nil || story.UserID != ownerID {
		return stories.ErrNotFound
	}
	s.stories = slices.Delete(s.stories, i, i+1)
	return nil
}

func (s *Stories) AddMember(_ context.Context, kind models.Engagement, storyID, userID primitive.ObjectID) (*models.Story, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, _ := s.lookup(storyID)
	if story == nil {
		return nil, false, stories.ErrNotFound
	}
	changed := !story.HasMember(kind, userID)
	if changed {
		if kind == models.EngagementBookmark {
			story.SavedBy = append(story.SavedBy, userID)
		} else {
			story.LikedBy = append(story.LikedBy, userID)
			story.Likes++
		}
	}
	out := clone(*story)
	return &out, changed, nil
}

func (s *Stories) RemoveMember(_ context.Context, kind models.Engagement, storyID, userID primitive.ObjectID) (*models.Story, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, _ := s.lookup(storyID)
	if story == nil {
		return nil, false, stories.ErrNotFound
	}
	changed := story.HasMember(kind, userID)
	if changed {
		without := func(id primitive.ObjectID) bool { return id == userID }
		if kind == models.EngagementBookmark {
			story.SavedBy = slices.DeleteFunc(story.SavedBy, without)
		} else {
			story.LikedBy = slices.DeleteFunc(story.LikedBy, without)
			story.Likes--
		}
	}
	out := clone(*story)
	return &out, changed, nil
}

func (s *Stories) lookup(id primitive.ObjectID) (*models.Story, int) {
	for i, story := range s.stories {
		if story.ID == id {
			return story, i
		}
	}
	return nil, -1
}

func clone(s models.Story) models.Story {
	s.LikedBy = append([]primitive.ObjectID{}, s.LikedBy...)
	s.SavedBy = append([]primitive.ObjectID{}, s.SavedBy...)
	return s
}

type PushSubscriptions struct {
	mu   sync.RWMutex
	subs map[primitive.ObjectID]notify.Subscription
}

func NewPushSubscriptions() *PushSubscriptions {
	return &PushSubscriptions{subs: make(map[primitive.ObjectID]notify.Subscription)}
}

func (p *PushSubscriptions) Save(_ context.Context, sub notify.Subscription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs[sub.UserID] = sub
	return nil
}

func (p *PushSubscriptions) FindByUser(_ context.Context, userID primitive.ObjectID) (*notify.Subscription, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sub, ok := p.subs[userID]
	if !ok {
		return nil, notify.ErrNoSubscription
	}
	return &sub, nil
}

func (p *PushSubscriptions) DeleteByUser(_ context.Context, userID primitive.ObjectID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subs, userID)
	return nil
}

var (
	_ auth.UserRepository      = (*Users)(nil)
	_ stories.Repository       = (*Stories)(nil)
	_ notify.SubscriptionStore = (*PushSubscriptions)(nil)
)
