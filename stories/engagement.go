package stories

import (
	"context"
	"errors"
	"log/slog"

	"storyreel/apperror"
	"storyreel/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Toggle flips userID's membership in the story's like or bookmark set. Two
// consecutive toggles restore the original set and counter.
func (s *Service) Toggle(ctx context.Context, kind models.Engagement, userID, storyID primitive.ObjectID) (models.MembershipState, error) {
	for attempt := 0; attempt < maxToggleAttempts; attempt++ {
		story, added, err := s.repo.AddMember(ctx, kind, storyID, userID)
		if err != nil {
			return models.MembershipState{}, engagementError(err)
		}
		if added {
			return s.changed(ctx, kind, userID, story, true), nil
		}

		story, removed, err := s.repo.RemoveMember(ctx, kind, storyID, userID)
		if err != nil {
			return models.MembershipState{}, engagementError(err)
		}
		if removed {
			return s.changed(ctx, kind, userID, story, false), nil
		}
	}
	return models.MembershipState{}, apperror.Conflict("Engagement changed concurrently, please retry")
}

// Set moves userID's membership to active. Likes are idempotent; adding an
// existing bookmark is a conflict and removing a missing one is not found.
func (s *Service) Set(ctx context.Context, kind models.Engagement, userID, storyID primitive.ObjectID, active bool) (models.MembershipState, error) {
	var (
		story   *models.Story
		changed bool
		err     error
	)
	if active {
		story, changed, err = s.repo.AddMember(ctx, kind, storyID, userID)
	} else {
		story, changed, err = s.repo.RemoveMember(ctx, kind, storyID, userID)
	}
	if err != nil {
		return models.MembershipState{}, engagementError(err)
	}

	if !changed {
		if kind == models.EngagementBookmark {
			if active {
				return models.MembershipState{}, apperror.Conflict("Story already bookmarked")
			}
			return models.MembershipState{}, apperror.NotFound("Bookmark not found")
		}
		return stateOf(kind, userID, story), nil
	}
	return s.changed(ctx, kind, userID, story, active), nil
}

func (s *Service) changed(ctx context.Context, kind models.Engagement, userID primitive.ObjectID, story *models.Story, active bool) models.MembershipState {
	state := stateOf(kind, userID, story)
	// The returned document reflects our own update; report the change we made.
	state.Active = active

	s.metrics.RecordEngagement(kind, active)
	s.events.Publish(models.Event{Type: eventType(kind, active), Payload: state})
	if active && story.UserID != userID {
		s.notifier.NotifyEngagement(story.UserID, userID, *story, kind)
	}

	slog.DebugContext(ctx, "[Engagement] membership changed",
		slog.String("kind", string(kind)),
		slog.String("story_id", story.ID.Hex()),
		slog.String("user_id", userID.Hex()),
		slog.Bool("active", active),
	)
	return state
}

func stateOf(kind models.Engagement, userID primitive.ObjectID, story *models.Story) models.MembershipState {
	return models.MembershipState{
		StoryID: story.ID.Hex(),
		Kind:    kind,
		Active:  story.HasMember(kind, userID),
		Likes:   story.Likes,
	}
}

func eventType(kind models.Engagement, active bool) string {
	switch {
	case kind == models.EngagementLike && active:
		return "story_liked"
	case kind == models.EngagementLike:
		return "story_unliked"
	case active:
		return "story_bookmarked"
	default:
		return "story_unbookmarked"
	}
}

func engagementError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperror.NotFound("Story not found")
	}
	return apperror.Internal("Failed to update story", err)
}
