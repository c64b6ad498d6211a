package handlers

import (
	"net/http"

	"storyreel/apperror"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
)

func (h *Handler) GetVapidPublicKey(c *gin.Context) {
	if h.pusher == nil || h.pusher.PublicKey() == "" {
		respondError(c, "GetVapidPublicKey", apperror.Unavailable("Push notifications are not configured", nil))
		return
	}
	respond(c, http.StatusOK, "VAPID public key retrieved successfully", gin.H{"publicKey": h.pusher.PublicKey()})
}

type subscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

func (h *Handler) SubscribePush(c *gin.Context) {
	userID, ok := requester(c)
	if !ok {
		return
	}
	if h.pusher == nil {
		respondError(c, "SubscribePush", apperror.Unavailable("Push notifications are not configured", nil))
		return
	}

	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "SubscribePush", apperror.Validation("endpoint and keys are required"))
		return
	}

	sub := webpush.Subscription{
		Endpoint: req.Endpoint,
		Keys: webpush.Keys{
			P256dh: req.Keys.P256dh,
			Auth:   req.Keys.Auth,
		},
	}
	if err := h.pusher.Subscribe(c.Request.Context(), userID, sub); err != nil {
		respondError(c, "SubscribePush", apperror.Internal("Failed to save subscription", err))
		return
	}
	respond(c, http.StatusOK, "Push subscription saved successfully", nil)
}
