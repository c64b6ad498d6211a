package handlers

import (
	"errors"
	"net/http"

	"storyreel/apperror"
	"storyreel/media"

	"github.com/gin-gonic/gin"
)

func (h *Handler) UploadMedia(c *gin.Context) {
	userID, ok := requester(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, media.MaxUploadSize)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respondError(c, "UploadMedia", apperror.Validation("No media file provided"))
		return
	}
	defer file.Close()

	url, err := h.uploader.Upload(c.Request.Context(), userID, header.Filename, file)
	switch {
	case errors.Is(err, media.ErrDisabled):
		respondError(c, "UploadMedia", apperror.Unavailable("Media uploads are not available", err))
		return
	case errors.Is(err, media.ErrUnsupportedType):
		respondError(c, "UploadMedia", apperror.Validation("Unsupported media type"))
		return
	case err != nil:
		respondError(c, "UploadMedia", apperror.Unavailable("Failed to upload media", err))
		return
	}
	respond(c, http.StatusCreated, "Media uploaded successfully", gin.H{"url": url})
}
