package handlers

import (
	"log/slog"
	"net/http"

	"storyreel/apperror"
	"storyreel/auth"
	"storyreel/media"
	"storyreel/middleware"
	"storyreel/notify"
	"storyreel/stories"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Handler holds the services the HTTP endpoints delegate to.
type Handler struct {
	auth     *auth.Service
	stories  *stories.Service
	uploader media.Uploader
	pusher   *notify.Pusher
}

func New(authSvc *auth.Service, storySvc *stories.Service, uploader media.Uploader, pusher *notify.Pusher) *Handler {
	if uploader == nil {
		uploader = media.Disabled{}
	}
	return &Handler{
		auth:     authSvc,
		stories:  storySvc,
		uploader: uploader,
		pusher:   pusher,
	}
}

func respond(c *gin.Context, status int, message string, data any) {
	body := gin.H{"success": true, "message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

// respondError renders err as the error envelope. Server-side failures are
// logged with their cause; the client only sees the safe message.
func respondError(c *gin.Context, op string, err error) {
	status := apperror.Status(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "["+op+"] request failed",
			slog.Int("status", status),
			slog.Any("error", err),
		)
	}
	c.JSON(status, gin.H{"success": false, "message": apperror.Message(err)})
}

// requester returns the authenticated user; routes using it sit behind
// JWTAuthMiddleware.
func requester(c *gin.Context) (primitive.ObjectID, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		respondError(c, "Auth", apperror.Unauthorized("Unauthorized - no token provided"))
	}
	return id, ok
}

func storyIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		respondError(c, "StoryID", apperror.Validation("Invalid story id"))
		return primitive.NilObjectID, false
	}
	return id, true
}
