package storage

import "time"

const (
	KindTreeImage    = "tree_image"
	KindProfileImage = "profile_image"
)

type Object struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	URL       string    `json:"url"`
	Kind      string    `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
}

type UploadRequest struct {
	FileName string `json:"file_name"`
	Kind     string `json:"kind" validate:"required,oneof=tree_image profile_image"`
}
