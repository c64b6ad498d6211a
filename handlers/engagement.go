package handlers

import (
	"net/http"

	"storyreel/apperror"
	"storyreel/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LikeStory returns a handler that sets (active) or clears the requester's like.
func (h *Handler) LikeStory(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		storyID, ok := storyIDParam(c, "id")
		if !ok {
			return
		}
		h.setEngagement(c, "LikeStory", models.EngagementLike, storyID, active)
	}
}

func (h *Handler) ToggleLike(c *gin.Context) {
	h.toggle(c, "ToggleLike", models.EngagementLike)
}

func (h *Handler) ToggleBookmark(c *gin.Context) {
	h.toggle(c, "ToggleBookmark", models.EngagementBookmark)
}

type bookmarkRequest struct {
	StoryID string `json:"storyId"`
}

func (h *Handler) AddBookmark(c *gin.Context) {
	var req bookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "AddBookmark", apperror.Validation("Invalid request body"))
		return
	}
	storyID, err := primitive.ObjectIDFromHex(req.StoryID)
	if err != nil {
		respondError(c, "AddBookmark", apperror.Validation("Invalid story id"))
		return
	}
	h.setEngagement(c, "AddBookmark", models.EngagementBookmark, storyID, true)
}

func (h *Handler) RemoveBookmark(c *gin.Context) {
	storyID, ok := storyIDParam(c, "id")
	if !ok {
		return
	}
	h.setEngagement(c, "RemoveBookmark", models.EngagementBookmark, storyID, false)
}

func (h *Handler) GetBookmarks(c *gin.Context) {
	userID, ok := requester(c)
	if !ok {
		return
	}
	saved, err := h.stories.Bookmarks(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "GetBookmarks", err)
		return
	}
	respond(c, http.StatusOK, "Bookmarks fetched successfully", saved)
}

func (h *Handler) GetLikedStories(c *gin.Context) {
	userID, ok := requester(c)
	if !ok {
		return
	}
	liked, err := h.stories.Liked(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "GetLikedStories", err)
		return
	}
	respond(c, http.StatusOK, "Liked stories fetched successfully", liked)
}

func (h *Handler) toggle(c *gin.Context, op string, kind models.Engagement) {
	userID, ok := requester(c)
	if !ok {
		return
	}
	storyID, ok := storyIDParam(c, "id")
	if !ok {
		return
	}
	state, err := h.stories.Toggle(c.Request.Context(), kind, userID, storyID)
	if err != nil {
		respondError(c, op, err)
		return
	}
	respond(c, http.StatusOK, engagementMessage(state), state)
}

func (h *Handler) setEngagement(c *gin.Context, op string, kind models.Engagement, storyID primitive.ObjectID, active bool) {
	userID, ok := requester(c)
	if !ok {
		return
	}
	state, err := h.stories.Set(c.Request.Context(), kind, userID, storyID, active)
	if err != nil {
		respondError(c, op, err)
		return
	}
	respond(c, http.StatusOK, engagementMessage(state), state)
}

func engagementMessage(s models.MembershipState) string {
	switch {
	case s.Kind == models.EngagementLike && s.Active:
		return "Story liked"
	case s.Kind == models.EngagementLike:
		return "Story unliked"
	case s.Active:
		return "Story bookmarked"
	default:
		return "Bookmark removed"
	}
}
