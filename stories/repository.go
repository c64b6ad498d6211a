package stories

import (
	"context"
	"errors"

	"storyreel/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrNotFound = errors.New("story not found")

// Filter selects stories. Zero-valued fields do not constrain the result.
type Filter struct {
	OwnerID         *primitive.ObjectID
	ExcludeOwnerID  *primitive.ObjectID
	Category        models.Category
	ExcludeCategory models.Category
	LikedBy         *primitive.ObjectID
	SavedBy         *primitive.ObjectID
}

// Changes holds the owner-editable fields; nil fields keep their value.
type Changes struct {
	Heading     *string
	Description *string
	Media       *string
	Category    *models.Category
}

func (c Changes) Empty() bool {
	return c.Heading == nil && c.Description == nil && c.Media == nil && c.Category == nil
}

// Repository persists stories. Implementations must make AddMember and
// RemoveMember single atomic conditional updates so that Likes == len(LikedBy)
// holds under concurrent calls.
type Repository interface {
	// InsertBatch stores all stories or none of them.
	InsertBatch(ctx context.Context, batch []models.Story) error
	// Find returns matching stories in stored order.
	Find(ctx context.Context, filter Filter) ([]models.Story, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Story, error)
	// Update applies changes to the story only if it is owned by ownerID.
	Update(ctx context.Context, id, ownerID primitive.ObjectID, changes Changes) (*models.Story, error)
	// Delete removes the story only if it is owned by ownerID.
	Delete(ctx context.Context, id, ownerID primitive.ObjectID) error
	// AddMember adds userID to the kind's set when absent and reports whether
	// anything changed. For likes the counter moves with the set.
	AddMember(ctx context.Context, kind models.Engagement, storyID, userID primitive.ObjectID) (*models.Story, bool, error)
	// RemoveMember removes userID from the kind's set when present.
	RemoveMember(ctx context.Context, kind models.Engagement, storyID, userID primitive.ObjectID) (*models.Story, bool, error)
}
