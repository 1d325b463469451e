// Package structs defines the account domain models.
package structs

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

type User struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	Role             Role      `json:"role"`
	EmailVerified    bool      `json:"email_verified"`
	VerificationCode string    `json:"-"`
	IsOAuthUser      bool      `json:"is_oauth_user"`
	UsernameSet      bool      `json:"username_set"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Profile is created together with its user and lives as long as the user.
type Profile struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	DisplayName   string    `json:"display_name,omitempty"`
	About         string    `json:"about,omitempty"`
	SocialLink    string    `json:"social_link,omitempty"`
	Avatar        string    `json:"avatar,omitempty"`
	CoverPhoto    string    `json:"cover_photo,omitempty"`
	Subcategories []string  `json:"subcategories"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

type TokenPair struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
	ExpiresIn    int64  `json:"expires_in"`
}

type SendOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required"`
}

type SetCredentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,min=3,max=30"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest accepts either an email address or a username.
type LoginRequest struct {
	EmailOrUsername string `json:"email_or_username" binding:"required"`
	Password        string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email" binding:"required,email"`
	OTP      string `json:"otp" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type OAuthRequest struct {
	Provider    string `json:"provider" binding:"required,oneof=google apple"`
	AccessToken string `json:"access_token" binding:"required"`
}

type UpdateProfileRequest struct {
	DisplayName   *string  `json:"display_name"`
	About         *string  `json:"about"`
	SocialLink    *string  `json:"social_link"`
	Avatar        *string  `json:"avatar"`
	CoverPhoto    *string  `json:"cover_photo"`
	Subcategories []string `json:"subcategories"`
}
