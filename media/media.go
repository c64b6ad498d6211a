// Package media stores uploaded slide images and clips and returns the public
// URL a story's media field can point at.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrDisabled        = errors.New("media uploads are not configured")
	ErrUnsupportedType = errors.New("unsupported media type")
)

// MaxUploadSize bounds the multipart body accepted for one file.
const MaxUploadSize = 20 << 20

type Uploader interface {
	Upload(ctx context.Context, owner primitive.ObjectID, filename string, body io.Reader) (string, error)
}

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
}

// Extension returns the lower-cased extension of filename if it is an
// accepted image or video type.
func Extension(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := contentTypes[ext]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	return ext, nil
}

// ObjectKey builds a date-partitioned random key for an upload.
func ObjectKey(now time.Time, ext string) string {
	return fmt.Sprintf("stories/%d/%d/%d/%v%s", now.Year(), now.Month(), now.Day(), uuid.New(), ext)
}

// Disabled rejects every upload.
type Disabled struct{}

func (Disabled) Upload(context.Context, primitive.ObjectID, string, io.Reader) (string, error) {
	return "", ErrDisabled
}
