package auth

import "time"

type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"display_name"`
	PasswordHash    string    `json:"-"`
	FirebaseUID     *string   `json:"firebase_uid,omitempty"`
	ProfileImageURL *string   `json:"profile_image_url"`
	ClimbedTrees    []string  `json:"climbed_trees"`
	AddedTrees      []string  `json:"added_trees"`
	TotalClimbs     int       `json:"total_climbs"`
	JoinedDate      time.Time `json:"joined_date"`
	IsActive        bool      `json:"is_active"`
}

type RegisterRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=6"`
	DisplayName string  `json:"display_name" validate:"required"`
	FirebaseUID *string `json:"firebase_uid"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SyncRequest links an externally authenticated identity to an account.
type SyncRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required"`
	FirebaseUID string `json:"firebase_uid" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type UpdateProfileRequest struct {
	DisplayName     *string `json:"display_name" validate:"omitempty,min=1"`
	ProfileImageURL *string `json:"profile_image_url" validate:"omitempty,url"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthResponse is returned by register, login and sync.
type AuthResponse struct {
	TokenResponse
	User User `json:"user"`
}
