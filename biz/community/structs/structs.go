// Package structs defines community models.
package structs

import "time"

// Privacy controls how users join.
type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyPrivate Privacy = "private"
)

// MemberRole orders community permissions.
type MemberRole string

const (
	MemberRoleMember    MemberRole = "member"
	MemberRoleModerator MemberRole = "moderator"
	MemberRoleOwner     MemberRole = "owner"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

type Community struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Description  string    `json:"description,omitempty"`
	Avatar       string    `json:"avatar,omitempty"`
	CoverPhoto   string    `json:"cover_photo,omitempty"`
	Privacy      Privacy   `json:"privacy"`
	CreatorID    string    `json:"creator_id"`
	MembersCount int       `json:"members_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Member struct {
	CommunityID string     `json:"community_id"`
	UserID      string     `json:"user_id"`
	Username    string     `json:"username,omitempty"`
	Role        MemberRole `json:"role"`
	JoinedAt    time.Time  `json:"joined_at"`
}

type JoinRequest struct {
	ID          string        `json:"id"`
	CommunityID string        `json:"community_id"`
	UserID      string        `json:"user_id"`
	Username    string        `json:"username,omitempty"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

type CreateCommunityRequest struct {
	Name        string  `json:"name" binding:"required,max=100"`
	Description string  `json:"description"`
	Avatar      string  `json:"avatar"`
	CoverPhoto  string  `json:"cover_photo"`
	Privacy     Privacy `json:"privacy" binding:"omitempty,oneof=public private"`
}

type UpdateCommunityRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Avatar      *string  `json:"avatar"`
	CoverPhoto  *string  `json:"cover_photo"`
	Privacy     *Privacy `json:"privacy" binding:"omitempty,oneof=public private"`
}

type ChangeRoleRequest struct {
	Role MemberRole `json:"role" binding:"required,oneof=member moderator"`
}
