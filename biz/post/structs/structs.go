// Package structs defines the post domain models.
package structs

import "time"

// Status is the moderation state of a post.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Post struct {
	ID             string    `json:"id"`
	AuthorID       string    `json:"author_id"`
	AuthorUsername string    `json:"author_username,omitempty"`
	Content        string    `json:"content"`
	Image          string    `json:"image,omitempty"`
	Status         Status    `json:"status"`
	LikesCount     int       `json:"likes_count"`
	CommentsCount  int       `json:"comments_count"`
	SharesCount    int       `json:"shares_count"`
	ViewsCount     int       `json:"views_count"`
	Liked          bool      `json:"liked,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	ParentID  string    `json:"parent_id,omitempty"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Share struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	Caption   string    `json:"caption,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Follow links a follower to the user being followed.
type Follow struct {
	FollowerID string    `json:"follower_id"`
	FolloweeID string    `json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// FollowUser is one entry in a followers or following listing.
type FollowUser struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	FollowedAt time.Time `json:"followed_at"`
}

// UserStats summarizes a user's public activity.
type UserStats struct {
	UserID         string `json:"user_id"`
	PostsCount     int    `json:"posts_count"`
	FollowersCount int    `json:"followers_count"`
	FollowingCount int    `json:"following_count"`
	IsFollowing    bool   `json:"is_following,omitempty"`
}

type CreatePostRequest struct {
	Content string `json:"content" binding:"required,max=5000"`
	Image   string `json:"image"`
}

type UpdatePostRequest struct {
	Content *string `json:"content"`
	Image   *string `json:"image"`
}

type CreateCommentRequest struct {
	Content  string `json:"content" binding:"required,max=2000"`
	ParentID string `json:"parent_id"`
}

type SharePostRequest struct {
	Caption string `json:"caption"`
}
