package review

import "time"

type Review struct {
	ID        string    `json:"id"`
	TreeID    string    `json:"tree_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Rating    float64   `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// MyReview is a review as listed for its author, with the reviewed tree's name.
type MyReview struct {
	ID        string    `json:"id"`
	TreeID    string    `json:"tree_id"`
	TreeName  string    `json:"tree_name"`
	Rating    float64   `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateInput struct {
	TreeID  string  `json:"tree_id" validate:"required"`
	Rating  float64 `json:"rating" validate:"gte=1,lte=5"`
	Comment string  `json:"comment"`
}

type UpdateInput struct {
	Rating  float64 `json:"rating" validate:"gte=1,lte=5"`
	Comment string  `json:"comment"`
}
