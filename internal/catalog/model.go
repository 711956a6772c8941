package catalog

import "time"

// Kind selects the states or the categories collection.
type Kind string

const (
	KindStates     Kind = "states"
	KindCategories Kind = "categories"
)

type Entry struct {
	ID        string    `bson:"_id,omitempty" json:"_id"`
	Name      string    `bson:"name" json:"name"`
	Slug      string    `bson:"slug" json:"slug"`
	ImageURL  string    `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

type UpsertRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Slug     string `json:"slug" validate:"omitempty,slug"`
	ImageURL string `json:"imageUrl" validate:"omitempty,url"`
}
