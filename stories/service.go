// Package stories implements story creation, feed composition, engagement
// toggling and owner mutations on top of a Repository.
package stories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storyreel/apperror"
	"storyreel/models"
	"storyreel/video"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MinSlides = 3
	MaxSlides = 6

	// Each toggle attempt is one conditional add followed by one conditional
	// remove; a retry is only needed when the same user races themselves.
	maxToggleAttempts = 3
)

// EventPublisher fans story events out to realtime subscribers.
type EventPublisher interface {
	Publish(event models.Event)
}

// EngagementNotifier tells a story owner that someone engaged with their story.
type EngagementNotifier interface {
	NotifyEngagement(owner, actor primitive.ObjectID, story models.Story, kind models.Engagement)
}

// Recorder receives domain metrics.
type Recorder interface {
	RecordStoriesCreated(n int)
	RecordEngagement(kind models.Engagement, active bool)
	RecordVideoLookupFailure()
}

type Options struct {
	Videos           video.DurationProvider
	Events           EventPublisher
	Notifier         EngagementNotifier
	Metrics          Recorder
	MaxVideoDuration time.Duration
	ShareBaseURL     string
}

type Service struct {
	repo      Repository
	videos    video.DurationProvider
	events    EventPublisher
	notifier  EngagementNotifier
	metrics   Recorder
	maxVideo  time.Duration
	shareBase string
	text      *textSanitizer
	now       func() time.Time
}

func NewService(repo Repository, opts Options) *Service {
	s := &Service{
		repo:      repo,
		videos:    opts.Videos,
		events:    opts.Events,
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		maxVideo:  opts.MaxVideoDuration,
		shareBase: strings.TrimRight(opts.ShareBaseURL, "/"),
		text:      newTextSanitizer(),
		now:       time.Now,
	}
	if s.videos == nil {
		s.videos = video.DisabledProvider{}
	}
	if s.events == nil {
		s.events = noopEvents{}
	}
	if s.notifier == nil {
		s.notifier = noopNotifier{}
	}
	if s.metrics == nil {
		s.metrics = noopRecorder{}
	}
	if s.maxVideo <= 0 {
		s.maxVideo = 15 * time.Second
	}
	return s
}

// Create validates a batch of slides and stores them all-or-nothing. Each slide
// keeps the category it was submitted with.
func (s *Service) Create(ctx context.Context, owner primitive.ObjectID, slides []models.Slide) ([]models.Story, error) {
	if len(slides) < MinSlides || len(slides) > MaxSlides {
		return nil, apperror.Validation("You must provide between %d and %d stories.", MinSlides, MaxSlides)
	}

	now := s.now().UTC()
	batch := make([]models.Story, 0, len(slides))
	for i, slide := range slides {
		story, err := s.buildStory(owner, slide, now)
		if err != nil {
			return nil, prefixSlide(i, err)
		}
		batch = append(batch, story)
	}

	// Video checks run before any write so a failed lookup commits nothing.
	for i, story := range batch {
		if err := s.checkVideo(ctx, story.Media); err != nil {
			return nil, prefixSlide(i, err)
		}
	}

	if err := s.repo.InsertBatch(ctx, batch); err != nil {
		return nil, apperror.Internal("Failed to create stories", err)
	}

	s.metrics.RecordStoriesCreated(len(batch))
	s.events.Publish(models.Event{Type: "stories_created", Payload: batch})
	slog.InfoContext(ctx, "[CreateStories] stories created",
		slog.String("user_id", owner.Hex()),
		slog.Int("count", len(batch)),
	)
	return batch, nil
}

func (s *Service) buildStory(owner primitive.ObjectID, slide models.Slide, now time.Time) (models.Story, error) {
	heading := s.text.Clean(slide.Heading)
	description := s.text.Clean(slide.Description)
	media := strings.TrimSpace(slide.Media)
	if heading == "" || description == "" || media == "" || slide.Category == "" {
		return models.Story{}, apperror.Validation("Please fill in all fields for each slide.")
	}
	category, ok := models.ParseCategory(slide.Category)
	if !ok {
		return models.Story{}, apperror.Validation("Invalid category %q", slide.Category)
	}
	return models.Story{
		ID:          primitive.NewObjectID(),
		UserID:      owner,
		Heading:     heading,
		Description: description,
		Media:       media,
		Category:    category,
		CreatedAt:   now,
		Likes:       0,
		LikedBy:     []primitive.ObjectID{},
		SavedBy:     []primitive.ObjectID{},
	}, nil
}

func (s *Service) checkVideo(ctx context.Context, media string) error {
	id, ok := video.YouTubeID(media)
	if !ok {
		return nil
	}
	d, err := s.videos.Duration(ctx, id)
	if errors.Is(err, video.ErrVideoNotFound) {
		return apperror.Validation("Video %s was not found", id)
	}
	if err != nil {
		s.metrics.RecordVideoLookupFailure()
		slog.WarnContext(ctx, "[CreateStories] video duration lookup failed",
			slog.String("video_id", id),
			slog.Any("error", err),
		)
		return apperror.Unavailable("Could not verify video duration, please retry", err)
	}
	if d > s.maxVideo {
		return apperror.Validation("Video must be at most %d seconds long", int(s.maxVideo.Seconds()))
	}
	return nil
}

func prefixSlide(i int, err error) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return &apperror.Error{
			Kind:    appErr.Kind,
			Message: fmt.Sprintf("Slide %d: %s", i+1, appErr.Message),
			Err:     appErr.Err,
		}
	}
	return err
}

// Feed returns the stories visible to requester (nil for anonymous). With a
// category it returns three disjoint partitions: the requester's own stories,
// other stories in the category, then everything else.
func (s *Service) Feed(ctx context.Context, requester *primitive.ObjectID, category string) ([]models.Story, error) {
	var filters []Filter
	if category == "" {
		if requester == nil {
			filters = []Filter{{}}
		} else {
			filters = []Filter{
				{OwnerID: requester},
				{ExcludeOwnerID: requester},
			}
		}
	} else {
		c, ok := models.ParseCategory(category)
		if !ok {
			return nil, apperror.Validation("Invalid category %q", category)
		}
		if requester != nil {
			filters = append(filters, Filter{OwnerID: requester})
		}
		filters = append(filters,
			Filter{Category: c, ExcludeOwnerID: requester},
			Filter{ExcludeCategory: c, ExcludeOwnerID: requester},
		)
	}

	feed := []models.Story{}
	for _, f := range filters {
		part, err := s.repo.Find(ctx, f)
		if err != nil {
			return nil, apperror.Internal("Failed to fetch stories", err)
		}
		feed = append(feed, part...)
	}
	return feed, nil
}

// Liked returns the stories userID has liked.
func (s *Service) Liked(ctx context.Context, userID primitive.ObjectID) ([]models.Story, error) {
	return s.findOrEmpty(ctx, Filter{LikedBy: &userID})
}

// Bookmarks returns the stories userID has bookmarked. The savedBy set on each
// story is the only record of the relation.
func (s *Service) Bookmarks(ctx context.Context, userID primitive.ObjectID) ([]models.Story, error) {
	return s.findOrEmpty(ctx, Filter{SavedBy: &userID})
}

func (s *Service) findOrEmpty(ctx context.Context, f Filter) ([]models.Story, error) {
	found, err := s.repo.Find(ctx, f)
	if err != nil {
		return nil, apperror.Internal("Failed to fetch stories", err)
	}
	if found == nil {
		found = []models.Story{}
	}
	return found, nil
}

// Update applies the provided fields of an owned story. Empty strings are
// treated as not provided.
func (s *Service) Update(ctx context.Context, userID, storyID primitive.ObjectID, in models.Slide) (*models.Story, error) {
	if _, err := s.ownedStory(ctx, userID, storyID, "update"); err != nil {
		return nil, err
	}

	var changes Changes
	if v := s.text.Clean(in.Heading); v != "" {
		changes.Heading = &v
	}
	if v := s.text.Clean(in.Description); v != "" {
		changes.Description = &v
	}
	if v := strings.TrimSpace(in.Media); v != "" {
		if err := s.checkVideo(ctx, v); err != nil {
			return nil, err
		}
		changes.Media = &v
	}
	if in.Category != "" {
		c, ok := models.ParseCategory(in.Category)
		if !ok {
			return nil, apperror.Validation("Invalid category %q", in.Category)
		}
		changes.Category = &c
	}

	updated, err := s.repo.Update(ctx, storyID, userID, changes)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.NotFound("Story not found")
	}
	if err != nil {
		return nil, apperror.Internal("Failed to update story", err)
	}

	s.events.Publish(models.Event{Type: "story_updated", Payload: updated})
	return updated, nil
}

// Delete removes an owned story. Likes and bookmarks live on the story
// document, so deleting it retracts every membership in the same write.
func (s *Service) Delete(ctx context.Context, userID, storyID primitive.ObjectID) error {
	if _, err := s.ownedStory(ctx, userID, storyID, "delete"); err != nil {
		return err
	}

	err := s.repo.Delete(ctx, storyID, userID)
	if errors.Is(err, ErrNotFound) {
		return apperror.NotFound("Story not found")
	}
	if err != nil {
		return apperror.Internal("Failed to delete story", err)
	}

	s.events.Publish(models.Event{Type: "story_deleted", Payload: map[string]string{"storyId": storyID.Hex()}})
	slog.InfoContext(ctx, "[DeleteStory] story deleted",
		slog.String("user_id", userID.Hex()),
		slog.String("story_id", storyID.Hex()),
	)
	return nil
}

func (s *Service) ownedStory(ctx context.Context, userID, storyID primitive.ObjectID, action string) (*models.Story, error) {
	story, err := s.repo.FindByID(ctx, storyID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.NotFound("Story not found")
	}
	if err != nil {
		return nil, apperror.Internal("Failed to fetch story", err)
	}
	if story.UserID != userID {
		return nil, apperror.Forbidden(fmt.Sprintf("Not authorized to %s this story", action))
	}
	return story, nil
}

// Share returns a public link to the story.
func (s *Service) Share(ctx context.Context, storyID primitive.ObjectID) (string, error) {
	if _, err := s.repo.FindByID(ctx, storyID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", apperror.NotFound("Story not found")
		}
		return "", apperror.Internal("Failed to fetch story", err)
	}
	return s.shareBase + "/story/" + storyID.Hex(), nil
}

type noopEvents struct{}

func (noopEvents) Publish(models.Event) {}

type noopNotifier struct{}

func (noopNotifier) NotifyEngagement(primitive.ObjectID, primitive.ObjectID, models.Story, models.Engagement) {
}

type noopRecorder struct{}

func (noopRecorder) RecordStoriesCreated(int)                 {}
func (noopRecorder) RecordEngagement(models.Engagement, bool) {}
func (noopRecorder) RecordVideoLookupFailure()                {}
