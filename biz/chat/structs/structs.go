// Package structs defines chat models.
package structs

import "time"

type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	IsGroup   bool      `json:"is_group"`
	CreatorID string    `json:"creator_id"`
	Members   []*Member `json:"members,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Member struct {
	RoomID   string    `json:"room_id"`
	UserID   string    `json:"user_id"`
	Username string    `json:"username,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

type Message struct {
	ID             string    `json:"id"`
	RoomID         string    `json:"room_id"`
	SenderID       string    `json:"sender_id"`
	SenderUsername string    `json:"sender_username,omitempty"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateRoomRequest creates a group room, or a direct room when exactly
// one member is given and is_group is false.
type CreateRoomRequest struct {
	Name    string   `json:"name"`
	IsGroup bool     `json:"is_group"`
	Members []string `json:"members" binding:"required,min=1"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required,max=4000"`
}
