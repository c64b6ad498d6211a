package media

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const cloudinaryFolder = "storyreel/stories"

type Cloudinary struct {
	cld *cloudinary.Cloudinary
	now func() time.Time
}

func NewCloudinary(url string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromURL(url)
	if err != nil {
		return nil, fmt.Errorf("cloudinary configuration: %w", err)
	}
	return &Cloudinary{cld: cld, now: time.Now}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, owner primitive.ObjectID, filename string, body io.Reader) (string, error) {
	if _, err := Extension(filename); err != nil {
		return "", err
	}

	res, err := c.cld.Upload.Upload(ctx, body, uploadParams(owner, c.now()))
	if err != nil {
		return "", fmt.Errorf("upload to cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("upload to cloudinary: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}

func uploadParams(owner primitive.ObjectID, now time.Time) uploader.UploadParams {
	return uploader.UploadParams{
		Folder:         cloudinaryFolder,
		PublicID:       owner.Hex() + "_" + now.UTC().Format("20060102150405") + "_" + uuid.NewString()[:8],
		ResourceType:   "auto",
		Transformation: "c_limit,w_1080,h_1920,q_auto",
	}
}
