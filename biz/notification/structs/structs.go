// Package structs defines notification models.
package structs

import "time"

type Kind string

const (
	KindLike         Kind = "like"
	KindComment      Kind = "comment"
	KindShare        Kind = "share"
	KindFollow       Kind = "follow"
	KindJoinRequest  Kind = "join_request"
	KindJoinApproved Kind = "join_approved"
	KindJoinRejected Kind = "join_rejected"
	KindPayment      Kind = "payment"
)

type Notification struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ActorID       string    `json:"actor_id,omitempty"`
	ActorUsername string    `json:"actor_username,omitempty"`
	Kind          Kind      `json:"kind"`
	ObjectID      string    `json:"object_id,omitempty"`
	Message       string    `json:"message"`
	Read          bool      `json:"read"`
	CreatedAt     time.Time `json:"created_at"`
}
