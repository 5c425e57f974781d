package tree

import "time"

type Location struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

type Tree struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Location      Location  `json:"location"`
	Address       string    `json:"address"`
	UserID        string    `json:"user_id"`
	UserName      string    `json:"user_name"`
	ImageURLs     []string  `json:"image_urls"`
	Difficulty    float64   `json:"difficulty"`
	TreeType      string    `json:"tree_type"`
	Height        float64   `json:"height"`
	Features      []string  `json:"features"`
	CreatedAt     time.Time `json:"created_at"`
	ClimbCount    int       `json:"climb_count"`
	AverageRating float64   `json:"average_rating"`
}

type ReviewSummary struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Rating    float64   `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type Detail struct {
	Tree
	Reviews []ReviewSummary `json:"reviews"`
}

// Result is a tree as returned by listing and search.
type Result struct {
	Tree
	Distance       *float64 `json:"distance,omitempty"`
	RelevanceScore *float64 `json:"relevance_score,omitempty"`
}

type CreateInput struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	Location    Location `json:"location"`
	Address     string   `json:"address"`
	ImageURLs   []string `json:"image_urls"`
	Difficulty  float64  `json:"difficulty" validate:"gte=1,lte=5"`
	TreeType    string   `json:"tree_type" validate:"required"`
	Height      float64  `json:"height" validate:"gte=0"`
	Features    []string `json:"features"`
}

type UpdateInput struct {
	Name        *string   `json:"name" validate:"omitempty,min=1"`
	Description *string   `json:"description"`
	Difficulty  *float64  `json:"difficulty" validate:"omitempty,gte=1,lte=5"`
	TreeType    *string   `json:"tree_type" validate:"omitempty,min=1"`
	Height      *float64  `json:"height" validate:"omitempty,gte=0"`
	Features    *[]string `json:"features"`
}
