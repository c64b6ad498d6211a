package models

import (
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Category string

const (
	CategoryGaming  Category = "Gaming"
	CategoryPeople  Category = "People"
	CategorySports  Category = "Sports"
	CategoryFood    Category = "Food"
	CategoryIndia   Category = "India"
	CategoryAnimals Category = "Animals"
)

// Categories is the fixed set a story category must match exactly.
var Categories = []Category{
	CategoryGaming,
	CategoryPeople,
	CategorySports,
	CategoryFood,
	CategoryIndia,
	CategoryAnimals,
}

// ParseCategory matches s case-sensitively against Categories.
func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	if slices.Contains(Categories, c) {
		return c, true
	}
	return "", false
}

// Story is a single slide. Likes always equals len(LikedBy).
type Story struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID   `bson:"userId" json:"userId"`
	Heading     string               `bson:"heading" json:"heading"`
	Description string               `bson:"description" json:"description"`
	Media       string               `bson:"media" json:"media"`
	Category    Category             `bson:"category" json:"category"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	Likes       int                  `bson:"likes" json:"likes"`
	LikedBy     []primitive.ObjectID `bson:"likedBy" json:"likedBy"`
	SavedBy     []primitive.ObjectID `bson:"savedBy" json:"-"`
}

// Slide is one submitted unit of a story batch, before validation.
type Slide struct {
	Heading     string `json:"heading"`
	Description string `json:"description"`
	Media       string `json:"media"`
	Category    string `json:"category"`
}

type Engagement string

const (
	EngagementLike     Engagement = "like"
	EngagementBookmark Engagement = "bookmark"
)

// Field is the story document field holding the members of e.
func (e Engagement) Field() string {
	if e == EngagementBookmark {
		return "savedBy"
	}
	return "likedBy"
}

// Members returns the membership set of s for e.
func (s *Story) Members(e Engagement) []primitive.ObjectID {
	if e == EngagementBookmark {
		return s.SavedBy
	}
	return s.LikedBy
}

func (s *Story) HasMember(e Engagement, userID primitive.ObjectID) bool {
	return slices.Contains(s.Members(e), userID)
}

// MembershipState is the result of a like or bookmark change for one user.
type MembershipState struct {
	StoryID string     `json:"storyId"`
	Kind    Engagement `json:"kind"`
	Active  bool       `json:"active"`
	Likes   int        `json:"likes"`
}

// Event is a realtime notification pushed to connected clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}
