package handlers

import (
	"net/http"

	"storyreel/apperror"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type credentialsRequest struct {
	Handle string `json:"handle"`
	Secret string `json:"secret"`
}

func bindCredentials(c *gin.Context) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "Auth", apperror.Validation("Invalid request body"))
		return req, false
	}
	return req, true
}

func (h *Handler) Register(c *gin.Context) {
	req, ok := bindCredentials(c)
	if !ok {
		return
	}
	identity, err := h.auth.Register(c.Request.Context(), req.Handle, req.Secret)
	if err != nil {
		respondError(c, "Register", err)
		return
	}
	respond(c, http.StatusCreated, "User registered successfully", identity)
}

func (h *Handler) Login(c *gin.Context) {
	req, ok := bindCredentials(c)
	if !ok {
		return
	}
	identity, err := h.auth.Authenticate(c.Request.Context(), req.Handle, req.Secret)
	if err != nil {
		respondError(c, "Login", err)
		return
	}
	respond(c, http.StatusOK, "Logged in successfully", identity)
}

// Logout is acknowledged only; tokens are stateless and discarded by the client.
func (h *Handler) Logout(c *gin.Context) {
	respond(c, http.StatusOK, "Logged out successfully", nil)
}

func (h *Handler) WhoAmI(c *gin.Context) {
	userID, ok := requester(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user, err := h.auth.Me(ctx, userID)
	if err != nil {
		respondError(c, "WhoAmI", err)
		return
	}

	saved, err := h.stories.Bookmarks(ctx, userID)
	if err != nil {
		respondError(c, "WhoAmI", err)
		return
	}
	bookmarks := make([]primitive.ObjectID, 0, len(saved))
	for _, s := range saved {
		bookmarks = append(bookmarks, s.ID)
	}

	respond(c, http.StatusOK, "User fetched successfully", gin.H{
		"user":      user,
		"bookmarks": bookmarks,
	})
}
