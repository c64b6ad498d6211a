package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an account identified by a unique handle. Bookmarks are not stored
// here: stories own the savedBy relation and a user's bookmarks are queried.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Handle       string             `bson:"handle" json:"handle"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	LastLogin    time.Time          `bson:"lastLogin" json:"lastLogin"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}
