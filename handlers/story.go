package handlers

import (
	"net/http"

	"storyreel/apperror"
	"storyreel/middleware"
	"storyreel/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type createStoriesRequest struct {
	Slides []models.Slide `json:"slides"`
}

func (h *Handler) CreateStories(c *gin.Context) {
	userID, ok := requester(c)
	if !ok {
		return
	}
	var req createStoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "CreateStories", apperror.Validation("Invalid request body"))
		return
	}

	created, err := h.stories.Create(c.Request.Context(), userID, req.Slides)
	if err != nil {
		respondError(c, "CreateStories", err)
		return
	}
	respond(c, http.StatusCreated, "Stories created successfully", created)
}

// GetStories serves both the plain feed and the category filtered feed.
func (h *Handler) GetStories(c *gin.Context) {
	var viewer *primitive.ObjectID
	if id, ok := middleware.UserID(c); ok {
		viewer = &id
	}

	category, filtered := c.GetQuery("category")
	if filtered && category == "" {
		respondError(c, "GetStories", apperror.Validation("Category is required"))
		return
	}

	feed, err := h.stories.Feed(c.Request.Context(), viewer, category)
	if err != nil {
		respondError(c, "GetStories", err)
		return
	}
	respond(c, http.StatusOK, "Stories fetched successfully", feed)
}

func (h *Handler) UpdateStory(c *gin.Context) {
	userID, ok := requester(c)
	if !ok {
		return
	}
	storyID, ok := storyIDParam(c, "id")
	if !ok {
		return
	}
	var req models.Slide
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "UpdateStory", apperror.Validation("Invalid request body"))
		return
	}

	updated, err := h.stories.Update(c.Request.Context(), userID, storyID, req)
	if err != nil {
		respondError(c, "UpdateStory", err)
		return
	}
	respond(c, http.StatusOK, "Story updated successfully", updated)
}

func (h *Handler) DeleteStory(c *gin.Context) {
	userID, ok := requester(c)
	if !ok {
		return
	}
	storyID, ok := storyIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.stories.Delete(c.Request.Context(), userID, storyID); err != nil {
		respondError(c, "DeleteStory", err)
		return
	}
	respond(c, http.StatusOK, "Story deleted successfully", nil)
}

func (h *Handler) ShareStory(c *gin.Context) {
	storyID, ok := storyIDParam(c, "id")
	if !ok {
		return
	}
	link, err := h.stories.Share(c.Request.Context(), storyID)
	if err != nil {
		respondError(c, "ShareStory", err)
		return
	}
	respond(c, http.StatusOK, "Share link generated", gin.H{"shareLink": link})
}
